package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"shareit/internal/models"

	"github.com/doug-martin/goqu/v9"
	"github.com/doug-martin/goqu/v9/exp"
)

var bookingColumns = []interface{}{
	"b.id", "b.item_id", "b.booker_id", "b.start_at", "b.end_at",
	"b.status", "b.version", "b.created_at",
}

func (db *DB) InsertBooking(ctx context.Context, booking *models.Booking) error {
	now := time.Now().UTC()
	record := goqu.Record{
		"item_id":    booking.ItemID,
		"booker_id":  booking.BookerID,
		"start_at":   toUnix(booking.Start),
		"end_at":     toUnix(booking.End),
		"status":     booking.Status.String(),
		"version":    1,
		"created_at": toUnix(now),
	}

	id, err := db.insert(ctx, "bookings", record)
	if err != nil {
		return fmt.Errorf("failed to create booking: %w", err)
	}

	booking.ID = id
	booking.CreatedAt = fromUnix(toUnix(now))
	booking.Version = 1
	return nil
}

// UpdateBookingStatus переводит бронь из WAITING в новый статус.
// Если бронь уже решена или версия устарела, возвращает ErrConcurrentModification.
func (db *DB) UpdateBookingStatus(ctx context.Context, id, version int64, status models.Status) error {
	query, args, err := db.dialect.Update("bookings").
		Set(goqu.Record{
			"status":  status.String(),
			"version": goqu.L("version + 1"),
		}).
		Where(
			goqu.C("id").Eq(id),
			goqu.C("status").Eq(models.StatusWaiting.String()),
			goqu.C("version").Eq(version),
		).
		Prepared(true).ToSQL()
	if err != nil {
		return fmt.Errorf("failed to build update query: %w", err)
	}

	result, err := db.ExecContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("failed to update booking status: %w", err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rows == 0 {
		return ErrConcurrentModification
	}
	return nil
}

func (db *DB) DeleteBooking(ctx context.Context, id int64) error {
	query, args, err := db.dialect.Delete("bookings").
		Where(goqu.C("id").Eq(id)).
		Prepared(true).ToSQL()
	if err != nil {
		return fmt.Errorf("failed to build delete query: %w", err)
	}

	result, err := db.ExecContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("failed to delete booking: %w", err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rows == 0 {
		return ErrBookingNotFound
	}
	return nil
}

func (db *DB) GetBooking(ctx context.Context, id int64) (*models.Booking, error) {
	query, args, err := db.bookings().
		Where(goqu.I("b.id").Eq(id)).
		Prepared(true).ToSQL()
	if err != nil {
		return nil, fmt.Errorf("failed to build booking query: %w", err)
	}

	booking, err := scanBooking(db.QueryRowContext(ctx, query, args...))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrBookingNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get booking: %w", err)
	}
	return booking, nil
}

// FindBookings выполняет выборку истории: роль, состояние, сортировка по end desc и страница
func (db *DB) FindBookings(ctx context.Context, filter models.Filter) ([]*models.Booking, error) {
	ds := db.bookings().
		Join(goqu.T("items").As("i"), goqu.On(goqu.I("i.id").Eq(goqu.I("b.item_id")))).
		Where(scopeExpressions(filter)...).
		Order(goqu.I("b.end_at").Desc(), goqu.I("b.id").Desc())

	if filter.Page.Size > 0 {
		ds = ds.Limit(uint(filter.Page.Size)).Offset(uint(filter.Page.Offset()))
	}

	query, args, err := ds.Prepared(true).ToSQL()
	if err != nil {
		return nil, fmt.Errorf("failed to build bookings query: %w", err)
	}

	return db.queryBookings(ctx, query, args...)
}

// ListItemBookings возвращает все брони вещи, включая отклонённые
func (db *DB) ListItemBookings(ctx context.Context, itemID int64) ([]*models.Booking, error) {
	query, args, err := db.bookings().
		Where(goqu.I("b.item_id").Eq(itemID)).
		Order(goqu.I("b.id").Asc()).
		Prepared(true).ToSQL()
	if err != nil {
		return nil, fmt.Errorf("failed to build item bookings query: %w", err)
	}

	return db.queryBookings(ctx, query, args...)
}

func (db *DB) bookings() *goqu.SelectDataset {
	return db.dialect.From(goqu.T("bookings").As("b")).Select(bookingColumns...)
}

func scopeExpressions(filter models.Filter) []exp.Expression {
	now := toUnix(filter.Now)
	var where []exp.Expression

	switch filter.Role {
	case models.RoleOwner:
		where = append(where, goqu.I("i.owner_id").Eq(filter.ActorID))
	default:
		where = append(where, goqu.I("b.booker_id").Eq(filter.ActorID))
	}

	switch filter.State {
	case models.StateCurrent:
		where = append(where, goqu.I("b.start_at").Lte(now), goqu.I("b.end_at").Gt(now))
	case models.StatePast:
		where = append(where, goqu.I("b.end_at").Lt(now))
	case models.StateFuture:
		where = append(where, goqu.I("b.start_at").Gt(now))
	case models.StateWaiting:
		where = append(where,
			goqu.I("b.start_at").Gt(now),
			goqu.I("b.status").Eq(models.StatusWaiting.String()))
	case models.StateRejected:
		where = append(where, goqu.I("b.status").Eq(models.StatusRejected.String()))
	}
	return where
}

func (db *DB) queryBookings(ctx context.Context, query string, args ...interface{}) ([]*models.Booking, error) {
	rows, err := db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query bookings: %w", err)
	}
	defer rows.Close()

	bookings := make([]*models.Booking, 0)
	for rows.Next() {
		b, err := scanBooking(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan booking: %w", err)
		}
		bookings = append(bookings, b)
	}
	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate bookings: %w", err)
	}
	return bookings, nil
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanBooking(row rowScanner) (*models.Booking, error) {
	var (
		b                     models.Booking
		start, end, createdAt int64
		status                string
	)
	if err := row.Scan(&b.ID, &b.ItemID, &b.BookerID, &start, &end, &status, &b.Version, &createdAt); err != nil {
		return nil, err
	}

	parsed, err := models.ParseStatus(status)
	if err != nil {
		return nil, err
	}
	b.Status = parsed
	b.Start = fromUnix(start)
	b.End = fromUnix(end)
	b.CreatedAt = fromUnix(createdAt)
	return &b, nil
}

// insert добавляет строку и возвращает её id; postgres через RETURNING, sqlite через LastInsertId
func (db *DB) insert(ctx context.Context, table string, record goqu.Record) (int64, error) {
	ds := db.dialect.Insert(table).Rows(record)

	if db.returning {
		query, args, err := ds.Returning("id").Prepared(true).ToSQL()
		if err != nil {
			return 0, err
		}
		var id int64
		if err := db.QueryRowContext(ctx, query, args...).Scan(&id); err != nil {
			return 0, err
		}
		return id, nil
	}

	query, args, err := ds.Prepared(true).ToSQL()
	if err != nil {
		return 0, err
	}
	result, err := db.ExecContext(ctx, query, args...)
	if err != nil {
		return 0, err
	}
	return result.LastInsertId()
}
