package repository

import (
	"context"
	"sync"
	"time"

	"shareit/internal/models"
)

type memoryEntry struct {
	item      models.Item
	expiresAt time.Time
}

type MemoryItemCache struct {
	items sync.Map
	ttl   time.Duration
	now   func() time.Time
}

func NewMemoryItemCache(ttl time.Duration) *MemoryItemCache {
	return &MemoryItemCache{
		ttl: ttl,
		now: time.Now,
	}
}

func (r *MemoryItemCache) GetItem(ctx context.Context, id int64) (*models.Item, bool, error) {
	val, ok := r.items.Load(id)
	if !ok {
		return nil, false, nil
	}
	entry := val.(*memoryEntry)
	if r.ttl > 0 && r.now().After(entry.expiresAt) {
		r.items.Delete(id)
		return nil, false, nil
	}
	item := entry.item
	return &item, true, nil
}

func (r *MemoryItemCache) SetItem(ctx context.Context, item *models.Item) error {
	r.items.Store(item.ID, &memoryEntry{item: *item, expiresAt: r.now().Add(r.ttl)})
	return nil
}

