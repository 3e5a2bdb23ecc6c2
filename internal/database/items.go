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

var itemColumns = []interface{}{"id", "owner_id", "name", "description", "available", "created_at"}

func (db *DB) CreateItem(ctx context.Context, item *models.Item) error {
	if item.CreatedAt.IsZero() {
		item.CreatedAt = time.Now().UTC()
	}
	record := goqu.Record{
		"owner_id":    item.OwnerID,
		"name":        item.Name,
		"description": item.Description,
		"available":   item.Available,
		"created_at":  toUnix(item.CreatedAt),
	}
	if item.ID != 0 {
		record["id"] = item.ID
	}

	id, err := db.insert(ctx, "items", record)
	if err != nil {
		return fmt.Errorf("failed to create item: %w", err)
	}
	item.ID = id
	return nil
}

func (db *DB) GetItem(ctx context.Context, id int64) (*models.Item, error) {
	query, args, err := db.dialect.From("items").
		Select(itemColumns...).
		Where(goqu.C("id").Eq(id)).
		Prepared(true).ToSQL()
	if err != nil {
		return nil, fmt.Errorf("failed to build item query: %w", err)
	}

	item, err := scanItem(db.QueryRowContext(ctx, query, args...))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrItemNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get item: %w", err)
	}
	return item, nil
}

func (db *DB) ListItemsByOwner(ctx context.Context, ownerID int64) ([]*models.Item, error) {
	query, args, err := db.dialect.From("items").
		Select(itemColumns...).
		Where(goqu.C("owner_id").Eq(ownerID)).
		Order(goqu.C("id").Asc()).
		Prepared(true).ToSQL()
	if err != nil {
		return nil, fmt.Errorf("failed to build items query: %w", err)
	}

	rows, err := db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list items: %w", err)
	}
	defer rows.Close()

	items := make([]*models.Item, 0)
	for rows.Next() {
		item, err := scanItem(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan item: %w", err)
		}
		items = append(items, item)
	}
	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate items: %w", err)
	}
	return items, nil
}

func scanItem(row rowScanner) (*models.Item, error) {
	var (
		item      models.Item
		createdAt int64
	)
	if err := row.Scan(&item.ID, &item.OwnerID, &item.Name, &item.Description, &item.Available, &createdAt); err != nil {
		return nil, err
	}
	item.CreatedAt = fromUnix(createdAt)
	return &item, nil
}
