package database

import (
	"context"
	"errors"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"shareit/internal/config"
	"shareit/internal/models"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestConcurrentApproval(t *testing.T) {
	logger := zerolog.Nop()
	db, err := NewDB(filepath.Join(t.TempDir(), "concurrency.db"), &logger)
	require.NoError(t, err)
	defer db.Close()

	ctx := context.Background()
	require.NoError(t, db.Seed(ctx, config.SeedConfig{
		Users: []models.User{{ID: ownerID, Name: "Owner"}, {ID: bookerID, Name: "Booker"}},
		Items: []models.Item{{ID: itemID, OwnerID: ownerID, Name: "Drill", Available: true}},
	}))

	start := time.Now().UTC().Add(time.Hour)
	booking := &models.Booking{ItemID: itemID, BookerID: bookerID, Start: start, End: start.Add(time.Hour)}
	require.NoError(t, db.InsertBooking(ctx, booking))

	const numGoroutines = 10
	var wg sync.WaitGroup
	wg.Add(numGoroutines)

	results := make(chan error, numGoroutines)

	for i := 0; i < numGoroutines; i++ {
		go func(id int) {
			defer wg.Done()
			results <- db.UpdateBookingStatus(ctx, booking.ID, booking.Version, models.Decide(id%2 == 0))
		}(i)
	}

	wg.Wait()
	close(results)

	successCount := 0
	for err := range results {
		if err == nil {
			successCount++
			continue
		}
		assert.True(t, errors.Is(err, ErrConcurrentModification), "unexpected error: %v", err)
	}

	// Ровно одно решение должно закрепиться
	assert.Equal(t, 1, successCount)

	got, err := db.GetBooking(ctx, booking.ID)
	require.NoError(t, err)
	assert.True(t, got.Status.Terminal())
	assert.Equal(t, int64(2), got.Version)
}
