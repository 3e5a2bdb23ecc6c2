package service

import (
	"context"
	"fmt"
	"io"
	"time"

	"shareit/internal/config"
	"shareit/internal/domain"
	"shareit/internal/export"
	"shareit/internal/models"

	"github.com/rs/zerolog"
)

// QueryService reads one clock value per request and forwards it to the read side.
type QueryService struct {
	history *HistoryService
	users   domain.UserDirectory
	items   domain.ItemCatalog
	store   domain.BookingStore
	clock   domain.Clock
	exports config.ExportConfig
	logger  *zerolog.Logger
}

func NewQueryService(
	history *HistoryService,
	users domain.UserDirectory,
	items domain.ItemCatalog,
	store domain.BookingStore,
	clock domain.Clock,
	exports config.ExportConfig,
	logger *zerolog.Logger,
) *QueryService {
	if clock == nil {
		clock = domain.SystemClock
	}
	if exports.SheetName == "" {
		exports.SheetName = "Bookings"
	}
	if exports.MaxRows <= 0 {
		exports.MaxRows = models.DefaultExportMaxRows
	}
	return &QueryService{
		history: history,
		users:   users,
		items:   items,
		store:   store,
		clock:   clock,
		exports: exports,
		logger:  logger,
	}
}

func (s *QueryService) ListByBookerState(ctx context.Context, actorID int64, state string, page models.Page) ([]*models.Booking, error) {
	return s.history.List(ctx, models.RoleBooker, actorID, state, page, s.clock.Now())
}

func (s *QueryService) ListByOwnerState(ctx context.Context, actorID int64, state string, page models.Page) ([]*models.Booking, error) {
	return s.history.List(ctx, models.RoleOwner, actorID, state, page, s.clock.Now())
}

// ResolveNearest возвращает последнюю и следующую бронь вещи. Не владельцу
// возвращается пустая аннотация.
func (s *QueryService) ResolveNearest(ctx context.Context, itemID, viewerID int64) (*models.ItemBookings, error) {
	item, err := lookupItem(ctx, s.items, itemID)
	if err != nil {
		return nil, err
	}
	return s.annotate(ctx, item, viewerID, s.clock.Now())
}

// AnnotateOwnerItems строит аннотации last/next для всех вещей владельца
func (s *QueryService) AnnotateOwnerItems(ctx context.Context, ownerID int64) ([]*models.ItemBookings, error) {
	exists, err := s.users.UserExists(ctx, ownerID)
	if err != nil {
		return nil, fmt.Errorf("failed to check user %d: %w", ownerID, err)
	}
	if !exists {
		return nil, domain.NotFound("user", ownerID)
	}

	items, err := s.items.ListItemsByOwner(ctx, ownerID)
	if err != nil {
		return nil, err
	}

	now := s.clock.Now()
	result := make([]*models.ItemBookings, 0, len(items))
	for _, item := range items {
		ann, err := s.annotate(ctx, item, ownerID, now)
		if err != nil {
			return nil, err
		}
		result = append(result, ann)
	}
	return result, nil
}

// ExportOwnerBookings пишет брони владельца в выбранном состоянии в xlsx, не
// больше exports.max_rows строк, начиная с самых поздних.
func (s *QueryService) ExportOwnerBookings(ctx context.Context, ownerID int64, state string, w io.Writer) error {
	// лишняя строка показывает, что выгрузка обрезана
	bookings, err := s.history.head(ctx, models.RoleOwner, ownerID, state, s.exports.MaxRows+1, s.clock.Now())
	if err != nil {
		return err
	}
	if len(bookings) > s.exports.MaxRows {
		bookings = bookings[:s.exports.MaxRows]
		s.logger.Warn().Int64("owner_id", ownerID).Int("max_rows", s.exports.MaxRows).Msg("owner bookings export truncated")
	}

	if err := export.WriteBookings(w, s.exports.SheetName, bookings); err != nil {
		return err
	}

	s.logger.Info().Int64("owner_id", ownerID).Int("count", len(bookings)).Msg("owner bookings exported")
	return nil
}

func (s *QueryService) annotate(ctx context.Context, item *models.Item, viewerID int64, now time.Time) (*models.ItemBookings, error) {
	ann := &models.ItemBookings{ItemID: item.ID}
	if item.OwnerID != viewerID {
		return ann, nil
	}

	bookings, err := s.store.ListItemBookings(ctx, item.ID)
	if err != nil {
		return nil, err
	}
	ann.Last, ann.Next = ResolveNearest(bookings, now)
	return ann, nil
}
