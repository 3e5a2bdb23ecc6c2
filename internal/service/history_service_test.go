package service

import (
	"context"
	"testing"
	"time"

	"shareit/internal/domain"
	"shareit/internal/models"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

func newHistory() (*HistoryService, *mockUsers, *mockStore) {
	users := new(mockUsers)
	store := new(mockStore)
	logger := zerolog.Nop()
	return NewHistoryService(users, store, &logger), users, store
}

func TestHistoryList(t *testing.T) {
	ctx := context.Background()
	page := models.Page{From: 0, Size: 10}

	t.Run("BuildsFilter", func(t *testing.T) {
		svc, users, store := newHistory()
		users.On("UserExists", ctx, ownerID).Return(true, nil)

		want := []*models.Booking{{ID: 1}}
		store.On("FindBookings", ctx, models.Filter{
			Role:    models.RoleOwner,
			ActorID: ownerID,
			State:   models.StateRejected,
			Now:     now,
			Page:    models.Page{From: 15, Size: 10},
		}).Return(want, nil)

		got, err := svc.List(ctx, models.RoleOwner, ownerID, "rejected", models.Page{From: 15, Size: 10}, now)
		require.NoError(t, err)
		assert.Equal(t, want, got)
		store.AssertExpectations(t)
	})

	t.Run("UnknownStateForBothRoles", func(t *testing.T) {
		for _, role := range []models.Role{models.RoleBooker, models.RoleOwner} {
			svc, users, store := newHistory()
			users.On("UserExists", ctx, bookerID).Return(true, nil)

			_, err := svc.List(ctx, role, bookerID, "BOGUS", page, now)
			assert.ErrorIs(t, err, domain.ErrInvalidState)
			assert.EqualError(t, err, "Unknown state: BOGUS")
			store.AssertNotCalled(t, "FindBookings", mock.Anything, mock.Anything)
		}
	})

	t.Run("UnknownActor", func(t *testing.T) {
		svc, users, _ := newHistory()
		users.On("UserExists", ctx, int64(99)).Return(false, nil)

		// пользователь проверяется раньше токена
		_, err := svc.List(ctx, models.RoleBooker, 99, "BOGUS", page, now)
		assert.ErrorIs(t, err, domain.ErrNotFound)
	})

	t.Run("InvalidPage", func(t *testing.T) {
		pages := []models.Page{{From: -1, Size: 10}, {From: 0, Size: 0}, {From: 0, Size: -5}}
		for _, p := range pages {
			svc, users, _ := newHistory()

			_, err := svc.List(ctx, models.RoleBooker, bookerID, "ALL", p, now)
			assert.ErrorIs(t, err, domain.ErrInvalidRange, "page %+v", p)
			users.AssertNotCalled(t, "UserExists", mock.Anything, mock.Anything)
		}
	})
}

func TestHistoryHeadUsesFirstPage(t *testing.T) {
	ctx := context.Background()
	svc, users, store := newHistory()
	users.On("UserExists", ctx, ownerID).Return(true, nil)
	store.On("FindBookings", ctx, mock.MatchedBy(func(f models.Filter) bool {
		return f.Page == models.Page{From: 0, Size: 50} && f.State == models.StateAll && f.Now.Equal(now.Add(time.Minute))
	})).Return([]*models.Booking{}, nil)

	_, err := svc.head(ctx, models.RoleOwner, ownerID, "all", 50, now.Add(time.Minute))
	require.NoError(t, err)
	store.AssertExpectations(t)

	_, err = svc.head(ctx, models.RoleOwner, ownerID, "all", 0, now)
	assert.ErrorIs(t, err, domain.ErrInvalidRange)
}
