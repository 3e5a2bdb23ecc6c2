package api

import (
	"context"
	"testing"
	"time"

	"shareit/internal/config"
	"shareit/internal/database"
	"shareit/internal/domain"
	"shareit/internal/events"
	"shareit/internal/models"
	"shareit/internal/service"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"
)

const (
	ownerID  int64 = 1
	bookerID int64 = 2
	otherID  int64 = 3
	itemID   int64 = 10
)

var now = time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

type testStack struct {
	db       *database.DB
	bookings *service.BookingService
	queries  *service.QueryService
}

func newTestStack(t *testing.T) *testStack {
	t.Helper()
	logger := zerolog.Nop()

	db, err := database.NewDB(":memory:", &logger)
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	require.NoError(t, db.Seed(context.Background(), config.SeedConfig{
		Users: []models.User{
			{ID: ownerID, Name: "Owner"},
			{ID: bookerID, Name: "Booker"},
			{ID: otherID, Name: "Other"},
		},
		Items: []models.Item{
			{ID: itemID, OwnerID: ownerID, Name: "Drill", Available: true},
			{ID: itemID + 1, OwnerID: ownerID, Name: "Ladder", Available: false},
		},
	}))

	clock := domain.ClockFunc(func() time.Time { return now })
	history := service.NewHistoryService(db, db, &logger)

	return &testStack{
		db:       db,
		bookings: service.NewBookingService(db, db, db, events.NewEventBus(), &logger),
		queries:  service.NewQueryService(history, db, db, db, clock, config.ExportConfig{SheetName: "Bookings"}, &logger),
	}
}
