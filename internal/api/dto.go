package api

import (
	"context"
	"io"
	"strings"
	"time"

	"shareit/internal/domain"
	"shareit/internal/models"
)

// Queries is the read side exposed by both transports.
type Queries interface {
	domain.QueryService
	ExportOwnerBookings(ctx context.Context, ownerID int64, state string, w io.Writer) error
}

// время без зоны трактуется как UTC
var timeLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05",
	"2006-01-02T15:04",
}

func parseTime(field, raw string) (time.Time, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return time.Time{}, badRequest(field + " is required")
	}
	for _, layout := range timeLayouts {
		if t, err := time.Parse(layout, raw); err == nil {
			return t.UTC(), nil
		}
	}
	return time.Time{}, badRequest("invalid " + field + ": expected RFC3339 or 2006-01-02T15:04:05")
}

type bookingView struct {
	ID       int64     `json:"id"`
	ItemID   int64     `json:"itemId"`
	BookerID int64     `json:"bookerId"`
	Start    time.Time `json:"start"`
	End      time.Time `json:"end"`
	Status   string    `json:"status"`
}

func newBookingView(b *models.Booking) *bookingView {
	if b == nil {
		return nil
	}
	return &bookingView{
		ID:       b.ID,
		ItemID:   b.ItemID,
		BookerID: b.BookerID,
		Start:    b.Start.UTC(),
		End:      b.End.UTC(),
		Status:   b.Status.String(),
	}
}

func newBookingViews(bookings []*models.Booking) []*bookingView {
	out := make([]*bookingView, 0, len(bookings))
	for _, b := range bookings {
		out = append(out, newBookingView(b))
	}
	return out
}

type itemBookingsView struct {
	ItemID      int64        `json:"itemId"`
	LastBooking *bookingView `json:"lastBooking"`
	NextBooking *bookingView `json:"nextBooking"`
}

func newItemBookingsView(ib *models.ItemBookings) *itemBookingsView {
	return &itemBookingsView{
		ItemID:      ib.ItemID,
		LastBooking: newBookingView(ib.Last),
		NextBooking: newBookingView(ib.Next),
	}
}

// bookingMap is the structpb-compatible form of a booking.
func bookingMap(b *models.Booking) map[string]any {
	if b == nil {
		return nil
	}
	return map[string]any{
		"id":       b.ID,
		"itemId":   b.ItemID,
		"bookerId": b.BookerID,
		"start":    b.Start.UTC().Format(time.RFC3339),
		"end":      b.End.UTC().Format(time.RFC3339),
		"status":   b.Status.String(),
	}
}

func bookingList(bookings []*models.Booking) []any {
	out := make([]any, 0, len(bookings))
	for _, b := range bookings {
		out = append(out, bookingMap(b))
	}
	return out
}

func itemBookingsMap(ib *models.ItemBookings) map[string]any {
	m := map[string]any{
		"itemId":      ib.ItemID,
		"lastBooking": nil,
		"nextBooking": nil,
	}
	if ib.Last != nil {
		m["lastBooking"] = bookingMap(ib.Last)
	}
	if ib.Next != nil {
		m["nextBooking"] = bookingMap(ib.Next)
	}
	return m
}
