package domain

import (
	"context"
	"time"

	"shareit/internal/models"
)

// UserDirectory answers whether a user id is known.
type UserDirectory interface {
	UserExists(ctx context.Context, id int64) (bool, error)
}

// ItemCatalog is read-only for the booking core.
type ItemCatalog interface {
	GetItem(ctx context.Context, id int64) (*models.Item, error)
	ListItemsByOwner(ctx context.Context, ownerID int64) ([]*models.Item, error)
}

type BookingStore interface {
	InsertBooking(ctx context.Context, booking *models.Booking) error
	// UpdateBookingStatus меняет статус, только если бронь всё ещё WAITING и версия совпадает
	UpdateBookingStatus(ctx context.Context, id int64, version int64, status models.Status) error
	DeleteBooking(ctx context.Context, id int64) error
	GetBooking(ctx context.Context, id int64) (*models.Booking, error)
	FindBookings(ctx context.Context, filter models.Filter) ([]*models.Booking, error)
	ListItemBookings(ctx context.Context, itemID int64) ([]*models.Booking, error)
}

// ItemCache хранит снимки вещей; ok=false означает промах. Снимок живет до
// истечения TTL; явной инвалидации нет, операций изменения вещей в API нет.
type ItemCache interface {
	GetItem(ctx context.Context, id int64) (item *models.Item, ok bool, err error)
	SetItem(ctx context.Context, item *models.Item) error
}

type EventPublisher interface {
	PublishJSON(eventType string, payload interface{}) error
}

// Clock supplies the evaluation instant of one logical operation.
type Clock interface {
	Now() time.Time
}

type ClockFunc func() time.Time

func (f ClockFunc) Now() time.Time { return f() }

// SystemClock reads the wall clock in UTC.
var SystemClock Clock = ClockFunc(func() time.Time { return time.Now().UTC() })

type BookingService interface {
	CreateBooking(ctx context.Context, bookerID, itemID int64, start, end time.Time) (*models.Booking, error)
	SetApproval(ctx context.Context, bookingID, actorID int64, approved bool) (*models.Booking, error)
	RemoveBooking(ctx context.Context, bookingID, actorID int64) (*models.Booking, error)
	GetBooking(ctx context.Context, bookingID, actorID int64) (*models.Booking, error)
}

type QueryService interface {
	ListByBookerState(ctx context.Context, actorID int64, state string, page models.Page) ([]*models.Booking, error)
	ListByOwnerState(ctx context.Context, actorID int64, state string, page models.Page) ([]*models.Booking, error)
	ResolveNearest(ctx context.Context, itemID, viewerID int64) (*models.ItemBookings, error)
	AnnotateOwnerItems(ctx context.Context, ownerID int64) ([]*models.ItemBookings, error)
}
