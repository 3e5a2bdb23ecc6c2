package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"shareit/internal/database"
	"shareit/internal/domain"
	"shareit/internal/events"
	"shareit/internal/metrics"
	"shareit/internal/models"

	"github.com/rs/zerolog"
)

type BookingService struct {
	users    domain.UserDirectory
	items    domain.ItemCatalog
	store    domain.BookingStore
	eventBus domain.EventPublisher
	logger   *zerolog.Logger
}

func NewBookingService(
	users domain.UserDirectory,
	items domain.ItemCatalog,
	store domain.BookingStore,
	eventBus domain.EventPublisher,
	logger *zerolog.Logger,
) *BookingService {
	return &BookingService{
		users:    users,
		items:    items,
		store:    store,
		eventBus: eventBus,
		logger:   logger,
	}
}

// CreateBooking проверяет предусловия по порядку и сохраняет бронь в статусе WAITING.
// Пересечения с другими бронями не проверяются.
func (s *BookingService) CreateBooking(ctx context.Context, bookerID, itemID int64, start, end time.Time) (booking *models.Booking, err error) {
	defer func() { observe("create", err) }()

	if err := s.requireUser(ctx, bookerID); err != nil {
		return nil, err
	}

	item, err := s.getItem(ctx, itemID)
	if err != nil {
		return nil, err
	}
	if item.OwnerID == bookerID {
		return nil, domain.InvalidOperation("owner cannot book their own item")
	}
	if !item.Available {
		return nil, domain.InvalidState(fmt.Sprintf("item %d is not available for booking", itemID))
	}
	if !start.Before(end) {
		return nil, domain.InvalidRange("booking start must be before end")
	}

	booking = &models.Booking{
		ItemID:   itemID,
		BookerID: bookerID,
		Start:    start.UTC(),
		End:      end.UTC(),
		Status:   models.StatusWaiting,
	}
	if err := s.store.InsertBooking(ctx, booking); err != nil {
		return nil, err
	}

	s.logger.Info().
		Int64("booking_id", booking.ID).
		Int64("item_id", itemID).
		Int64("booker_id", bookerID).
		Msg("booking created")
	s.publishEvent(events.EventBookingCreated, booking, item.OwnerID, "booker", bookerID)

	return booking, nil
}

// SetApproval принимает решение владельца. Решение может быть принято только один раз:
// запись идёт условным UPDATE по статусу WAITING и версии.
func (s *BookingService) SetApproval(ctx context.Context, bookingID, actorID int64, approved bool) (booking *models.Booking, err error) {
	op := "approve"
	if !approved {
		op = "reject"
	}
	defer func() { observe(op, err) }()

	booking, err = s.getBooking(ctx, bookingID)
	if err != nil {
		return nil, err
	}

	item, err := s.getItem(ctx, booking.ItemID)
	if err != nil {
		return nil, err
	}
	if item.OwnerID != actorID {
		return nil, domain.Forbidden(actorID, op+" booking")
	}
	if booking.Status.Terminal() {
		return nil, domain.InvalidState(fmt.Sprintf("booking %d is already decided: %s", bookingID, booking.Status))
	}

	status := models.Decide(approved)
	err = s.store.UpdateBookingStatus(ctx, booking.ID, booking.Version, status)
	if errors.Is(err, database.ErrConcurrentModification) {
		return nil, domain.InvalidState(fmt.Sprintf("booking %d is already decided", bookingID))
	}
	if err != nil {
		return nil, err
	}

	booking.Status = status
	booking.Version++

	s.logger.Info().
		Int64("booking_id", booking.ID).
		Int64("owner_id", actorID).
		Str("status", status.String()).
		Msg("booking decided")

	eventType := events.EventBookingApproved
	if !approved {
		eventType = events.EventBookingRejected
	}
	s.publishEvent(eventType, booking, item.OwnerID, "owner", actorID)

	return booking, nil
}

// RemoveBooking удаляет бронь; доступно только автору брони. Возвращает снимок до удаления.
func (s *BookingService) RemoveBooking(ctx context.Context, bookingID, actorID int64) (booking *models.Booking, err error) {
	defer func() { observe("remove", err) }()

	booking, err = s.getBooking(ctx, bookingID)
	if err != nil {
		return nil, err
	}
	if booking.BookerID != actorID {
		return nil, domain.Forbidden(actorID, "remove booking")
	}
	// владелец нужен в событии отмены, после удаления брони его не узнать
	item, err := s.getItem(ctx, booking.ItemID)
	if err != nil {
		return nil, err
	}

	err = s.store.DeleteBooking(ctx, bookingID)
	if errors.Is(err, database.ErrBookingNotFound) {
		return nil, domain.NotFound("booking", bookingID)
	}
	if err != nil {
		return nil, err
	}

	s.logger.Info().Int64("booking_id", bookingID).Int64("booker_id", actorID).Msg("booking removed")
	s.publishEvent(events.EventBookingCanceled, booking, item.OwnerID, "booker", actorID)

	return booking, nil
}

// GetBooking видна автору брони и владельцу вещи
func (s *BookingService) GetBooking(ctx context.Context, bookingID, actorID int64) (booking *models.Booking, err error) {
	defer func() { observe("get", err) }()

	booking, err = s.getBooking(ctx, bookingID)
	if err != nil {
		return nil, err
	}
	if booking.BookerID == actorID {
		return booking, nil
	}

	item, err := s.getItem(ctx, booking.ItemID)
	if err != nil {
		return nil, err
	}
	if item.OwnerID != actorID {
		return nil, domain.Forbidden(actorID, "view booking")
	}
	return booking, nil
}

func (s *BookingService) requireUser(ctx context.Context, userID int64) error {
	exists, err := s.users.UserExists(ctx, userID)
	if err != nil {
		return fmt.Errorf("failed to check user %d: %w", userID, err)
	}
	if !exists {
		return domain.NotFound("user", userID)
	}
	return nil
}

func (s *BookingService) getItem(ctx context.Context, itemID int64) (*models.Item, error) {
	return lookupItem(ctx, s.items, itemID)
}

func (s *BookingService) getBooking(ctx context.Context, bookingID int64) (*models.Booking, error) {
	booking, err := s.store.GetBooking(ctx, bookingID)
	if errors.Is(err, database.ErrBookingNotFound) {
		return nil, domain.NotFound("booking", bookingID)
	}
	if err != nil {
		return nil, err
	}
	return booking, nil
}

func (s *BookingService) publishEvent(eventType string, booking *models.Booking, ownerID int64, changedBy string, changedByID int64) {
	if s.eventBus == nil {
		return
	}

	payload := events.BookingEventPayload{
		BookingID:   booking.ID,
		ItemID:      booking.ItemID,
		BookerID:    booking.BookerID,
		OwnerID:     ownerID,
		Status:      booking.Status.String(),
		Start:       booking.Start,
		End:         booking.End,
		ChangedBy:   changedBy,
		ChangedByID: changedByID,
	}

	if err := s.eventBus.PublishJSON(eventType, payload); err != nil {
		s.logger.Error().Err(err).Str("event_type", eventType).Int64("booking_id", booking.ID).Msg("publish event error")
	}
}

func lookupItem(ctx context.Context, items domain.ItemCatalog, itemID int64) (*models.Item, error) {
	item, err := items.GetItem(ctx, itemID)
	if errors.Is(err, database.ErrItemNotFound) {
		return nil, domain.NotFound("item", itemID)
	}
	if err != nil {
		return nil, err
	}
	return item, nil
}

func observe(op string, err error) {
	result := "ok"
	if err != nil {
		result = "error"
		if kind := domain.KindOf(err); kind != 0 {
			result = kind.String()
		}
	}
	metrics.IncBookingOp(op, result)
}
