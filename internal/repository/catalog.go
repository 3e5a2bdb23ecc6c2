package repository

import (
	"context"

	"shareit/internal/domain"
	"shareit/internal/metrics"
	"shareit/internal/models"

	"github.com/rs/zerolog"
)

// CachedCatalog implements domain.ItemCatalog with a read-through cache.
type CachedCatalog struct {
	source domain.ItemCatalog
	cache  domain.ItemCache
	logger *zerolog.Logger
}

func NewCachedCatalog(source domain.ItemCatalog, cache domain.ItemCache, logger *zerolog.Logger) *CachedCatalog {
	return &CachedCatalog{
		source: source,
		cache:  cache,
		logger: logger,
	}
}

func (c *CachedCatalog) GetItem(ctx context.Context, id int64) (*models.Item, error) {
	item, ok, err := c.cache.GetItem(ctx, id)
	switch {
	case err != nil:
		metrics.IncCache("error")
		c.logger.Warn().Err(err).Int64("item_id", id).Msg("item cache lookup failed")
	case ok:
		metrics.IncCache("hit")
		return item, nil
	default:
		metrics.IncCache("miss")
	}

	item, err = c.source.GetItem(ctx, id)
	if err != nil {
		return nil, err
	}
	c.store(ctx, item)
	return item, nil
}

func (c *CachedCatalog) ListItemsByOwner(ctx context.Context, ownerID int64) ([]*models.Item, error) {
	items, err := c.source.ListItemsByOwner(ctx, ownerID)
	if err != nil {
		return nil, err
	}
	for _, item := range items {
		c.store(ctx, item)
	}
	return items, nil
}

func (c *CachedCatalog) store(ctx context.Context, item *models.Item) {
	if err := c.cache.SetItem(ctx, item); err != nil {
		c.logger.Warn().Err(err).Int64("item_id", item.ID).Msg("item cache store failed")
	}
}
