package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"shareit/internal/models"

	"github.com/doug-martin/goqu/v9"
)

func (db *DB) CreateUser(ctx context.Context, user *models.User) error {
	if user.CreatedAt.IsZero() {
		user.CreatedAt = time.Now().UTC()
	}
	record := goqu.Record{
		"name":       user.Name,
		"email":      user.Email,
		"created_at": toUnix(user.CreatedAt),
	}
	if user.ID != 0 {
		record["id"] = user.ID
	}

	id, err := db.insert(ctx, "users", record)
	if err != nil {
		return fmt.Errorf("failed to create user: %w", err)
	}
	user.ID = id
	return nil
}

func (db *DB) GetUser(ctx context.Context, id int64) (*models.User, error) {
	query, args, err := db.dialect.From("users").
		Select("id", "name", "email", "created_at").
		Where(goqu.C("id").Eq(id)).
		Prepared(true).ToSQL()
	if err != nil {
		return nil, fmt.Errorf("failed to build user query: %w", err)
	}

	var (
		user      models.User
		createdAt int64
	)
	err = db.QueryRowContext(ctx, query, args...).Scan(&user.ID, &user.Name, &user.Email, &createdAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrUserNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get user: %w", err)
	}
	user.CreatedAt = fromUnix(createdAt)
	return &user, nil
}

func (db *DB) UserExists(ctx context.Context, id int64) (bool, error) {
	query, args, err := db.dialect.From("users").
		Select(goqu.COUNT("*")).
		Where(goqu.C("id").Eq(id)).
		Prepared(true).ToSQL()
	if err != nil {
		return false, fmt.Errorf("failed to build user query: %w", err)
	}

	var count int
	if err := db.QueryRowContext(ctx, query, args...).Scan(&count); err != nil {
		return false, fmt.Errorf("failed to check user: %w", err)
	}
	return count > 0, nil
}
