package database

import (
	"context"
	"fmt"
	"time"

	"shareit/internal/config"
	"shareit/internal/models"

	"github.com/doug-martin/goqu/v9"
)

// Seed вставляет демо-пользователей и вещи; существующие id пропускаются
func (db *DB) Seed(ctx context.Context, seed config.SeedConfig) error {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	for _, u := range seed.Users {
		query, args, err := db.dialect.Insert("users").
			Rows(goqu.Record{
				"id":         u.ID,
				"name":       u.Name,
				"email":      u.Email,
				"created_at": toUnix(orNow(u.CreatedAt)),
			}).
			OnConflict(goqu.DoNothing()).
			Prepared(true).ToSQL()
		if err != nil {
			return fmt.Errorf("failed to build seed user query: %w", err)
		}
		if _, err := tx.ExecContext(ctx, query, args...); err != nil {
			return fmt.Errorf("failed to seed user %d: %w", u.ID, err)
		}
	}

	for _, item := range seed.Items {
		query, args, err := db.dialect.Insert("items").
			Rows(goqu.Record{
				"id":          item.ID,
				"owner_id":    item.OwnerID,
				"name":        item.Name,
				"description": item.Description,
				"available":   item.Available,
				"created_at":  toUnix(orNow(item.CreatedAt)),
			}).
			OnConflict(goqu.DoNothing()).
			Prepared(true).ToSQL()
		if err != nil {
			return fmt.Errorf("failed to build seed item query: %w", err)
		}
		if _, err := tx.ExecContext(ctx, query, args...); err != nil {
			return fmt.Errorf("failed to seed item %d: %w", item.ID, err)
		}
	}

	// Явные id не двигают sequence в postgres
	if db.returning {
		for _, table := range []string{"users", "items"} {
			q := fmt.Sprintf(
				"SELECT setval(pg_get_serial_sequence('%s', 'id'), COALESCE((SELECT MAX(id) FROM %s), 0) + 1, false)",
				table, table)
			if _, err := tx.ExecContext(ctx, q); err != nil {
				return fmt.Errorf("failed to reset %s sequence: %w", table, err)
			}
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit seed: %w", err)
	}

	db.logger.Info().Int("users", len(seed.Users)).Int("items", len(seed.Items)).Msg("Seed data applied")
	return nil
}

// SeedUsers и SeedItems удобны в тестах
func (db *DB) SeedUsers(ctx context.Context, users ...models.User) error {
	return db.Seed(ctx, config.SeedConfig{Users: users})
}

func (db *DB) SeedItems(ctx context.Context, items ...models.Item) error {
	return db.Seed(ctx, config.SeedConfig{Items: items})
}

func orNow(t time.Time) time.Time {
	if t.IsZero() {
		return time.Now().UTC()
	}
	return t
}
