package repository

import (
	"context"
	"sync/atomic"
	"time"

	"shareit/internal/domain"
	"shareit/internal/models"

	"github.com/rs/zerolog"
)

const recoveryInterval = time.Minute

// FailoverItemCache переключается на резервный кэш, пока основной недоступен
type FailoverItemCache struct {
	primary   domain.ItemCache
	fallback  domain.ItemCache
	logger    *zerolog.Logger
	isDown    atomic.Bool
	lastCheck atomic.Int64
}

func NewFailoverItemCache(primary, fallback domain.ItemCache, logger *zerolog.Logger) *FailoverItemCache {
	return &FailoverItemCache{
		primary:  primary,
		fallback: fallback,
		logger:   logger,
	}
}

func (r *FailoverItemCache) markDown(err error) {
	if !r.isDown.Swap(true) {
		r.logger.Error().Err(err).Msg("Primary item cache failed, falling back to memory")
	}
	r.lastCheck.Store(time.Now().UnixNano())
}

// usePrimary решает, идти ли в основной кэш: он жив или пора пробовать восстановление
func (r *FailoverItemCache) usePrimary() bool {
	if !r.isDown.Load() {
		return true
	}
	return time.Since(time.Unix(0, r.lastCheck.Load())) > recoveryInterval
}

func (r *FailoverItemCache) recovered() {
	if r.isDown.Swap(false) {
		r.logger.Info().Msg("Primary item cache recovered")
	}
}

func (r *FailoverItemCache) GetItem(ctx context.Context, id int64) (*models.Item, bool, error) {
	if r.usePrimary() {
		item, ok, err := r.primary.GetItem(ctx, id)
		if err == nil {
			r.recovered()
			return item, ok, nil
		}
		r.markDown(err)
	}

	return r.fallback.GetItem(ctx, id)
}

func (r *FailoverItemCache) SetItem(ctx context.Context, item *models.Item) error {
	if r.usePrimary() {
		err := r.primary.SetItem(ctx, item)
		if err == nil {
			r.recovered()
			return nil
		}
		r.markDown(err)
	}

	return r.fallback.SetItem(ctx, item)
}

