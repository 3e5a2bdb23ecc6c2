package service

import (
	"context"
	"fmt"
	"time"

	"shareit/internal/domain"
	"shareit/internal/models"

	"github.com/rs/zerolog"
)

// HistoryService classifies a user's bookings into time-relative views.
type HistoryService struct {
	users  domain.UserDirectory
	store  domain.BookingStore
	logger *zerolog.Logger
}

func NewHistoryService(users domain.UserDirectory, store domain.BookingStore, logger *zerolog.Logger) *HistoryService {
	return &HistoryService{
		users:  users,
		store:  store,
		logger: logger,
	}
}

// List returns one page of the actor's bookings in the given state, newest end first.
// Checks run in order: page bounds, actor existence, state token.
func (s *HistoryService) List(
	ctx context.Context,
	role models.Role,
	actorID int64,
	token string,
	page models.Page,
	now time.Time,
) (bookings []*models.Booking, err error) {
	defer func() { observe("list_"+role.String(), err) }()

	if page.From < 0 {
		return nil, domain.InvalidRange(fmt.Sprintf("from must not be negative, got %d", page.From))
	}
	if page.Size <= 0 {
		return nil, domain.InvalidRange(fmt.Sprintf("size must be positive, got %d", page.Size))
	}

	filter, err := s.filter(ctx, role, actorID, token, now)
	if err != nil {
		return nil, err
	}
	filter.Page = page

	bookings, err = s.store.FindBookings(ctx, filter)
	if err != nil {
		return nil, err
	}

	s.logger.Debug().
		Str("role", role.String()).
		Int64("actor_id", actorID).
		Str("state", filter.State.String()).
		Int("from", page.From).
		Int("size", page.Size).
		Int("count", len(bookings)).
		Msg("bookings listed")
	return bookings, nil
}

// head returns at most limit matching bookings from the start of the sorted view.
func (s *HistoryService) head(ctx context.Context, role models.Role, actorID int64, token string, limit int, now time.Time) ([]*models.Booking, error) {
	if limit <= 0 {
		return nil, domain.InvalidRange(fmt.Sprintf("limit must be positive, got %d", limit))
	}
	filter, err := s.filter(ctx, role, actorID, token, now)
	if err != nil {
		return nil, err
	}
	filter.Page = models.Page{From: 0, Size: limit}
	return s.store.FindBookings(ctx, filter)
}

func (s *HistoryService) filter(ctx context.Context, role models.Role, actorID int64, token string, now time.Time) (models.Filter, error) {
	exists, err := s.users.UserExists(ctx, actorID)
	if err != nil {
		return models.Filter{}, fmt.Errorf("failed to check user %d: %w", actorID, err)
	}
	if !exists {
		return models.Filter{}, domain.NotFound("user", actorID)
	}

	state, ok := models.ParseState(token)
	if !ok {
		return models.Filter{}, domain.InvalidState("Unknown state: " + token)
	}

	return models.Filter{
		Role:    role,
		ActorID: actorID,
		State:   state,
		Now:     now,
	}, nil
}
