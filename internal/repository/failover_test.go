package repository

import (
	"context"
	"errors"
	"io"
	"testing"
	"time"

	"shareit/internal/models"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
)

type mockCache struct {
	mock.Mock
}

func (m *mockCache) GetItem(ctx context.Context, id int64) (*models.Item, bool, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Bool(1), args.Error(2)
	}
	return args.Get(0).(*models.Item), args.Bool(1), args.Error(2)
}

func (m *mockCache) SetItem(ctx context.Context, item *models.Item) error {
	return m.Called(ctx, item).Error(0)
}

func TestFailoverItemCache(t *testing.T) {
	primary := new(mockCache)
	fallback := new(mockCache)
	logger := zerolog.New(io.Discard)
	repo := NewFailoverItemCache(primary, fallback, &logger)
	ctx := context.Background()

	t.Run("PrimarySuccess", func(t *testing.T) {
		item := &models.Item{ID: 1}
		primary.On("GetItem", ctx, int64(1)).Return(item, true, nil).Once()

		got, ok, err := repo.GetItem(ctx, 1)
		assert.NoError(t, err)
		assert.True(t, ok)
		assert.Equal(t, item, got)
		primary.AssertExpectations(t)
	})

	t.Run("PrimaryFailFallbackSuccess", func(t *testing.T) {
		item := &models.Item{ID: 2}
		primary.On("GetItem", ctx, int64(2)).Return(nil, false, errors.New("fail")).Once()
		fallback.On("GetItem", ctx, int64(2)).Return(item, true, nil).Once()

		got, ok, err := repo.GetItem(ctx, 2)
		assert.NoError(t, err)
		assert.True(t, ok)
		assert.Equal(t, item, got)
		assert.True(t, repo.isDown.Load())
		primary.AssertExpectations(t)
		fallback.AssertExpectations(t)
	})

	t.Run("AlreadyDownSkipsPrimary", func(t *testing.T) {
		item := &models.Item{ID: 44}
		fallback.On("SetItem", ctx, item).Return(nil).Once()

		assert.NoError(t, repo.SetItem(ctx, item))
		primary.AssertNotCalled(t, "SetItem", ctx, item)
		fallback.AssertExpectations(t)
	})

	t.Run("RecoveryAttempt", func(t *testing.T) {
		repo.isDown.Store(true)
		repo.lastCheck.Store(time.Now().Add(-2 * time.Minute).UnixNano())

		item := &models.Item{ID: 3}
		primary.On("GetItem", ctx, int64(3)).Return(item, true, nil).Once()

		got, _, err := repo.GetItem(ctx, 3)
		assert.NoError(t, err)
		assert.Equal(t, item, got)
		assert.False(t, repo.isDown.Load())
		primary.AssertExpectations(t)
	})

	t.Run("RecoveryAttemptFail", func(t *testing.T) {
		repo.isDown.Store(true)
		repo.lastCheck.Store(time.Now().Add(-2 * time.Minute).UnixNano())

		primary.On("GetItem", ctx, int64(33)).Return(nil, false, errors.New("still fail")).Once()
		fallback.On("GetItem", ctx, int64(33)).Return(nil, false, nil).Once()

		_, ok, err := repo.GetItem(ctx, 33)
		assert.NoError(t, err)
		assert.False(t, ok)
		assert.True(t, repo.isDown.Load())
		primary.AssertExpectations(t)
		fallback.AssertExpectations(t)
	})

	t.Run("SetItemFailover", func(t *testing.T) {
		repo.isDown.Store(false)
		item := &models.Item{ID: 4}
		primary.On("SetItem", ctx, item).Return(errors.New("fail")).Once()
		fallback.On("SetItem", ctx, item).Return(nil).Once()

		assert.NoError(t, repo.SetItem(ctx, item))
		assert.True(t, repo.isDown.Load())
		primary.AssertExpectations(t)
		fallback.AssertExpectations(t)
	})
}
