package service

import (
	"time"

	"shareit/internal/models"
)

// ResolveNearest picks the last booking (max end among those started before now)
// and the next one (min end among those starting after now). Rejected bookings
// are ignored; equal ends go to the lowest id.
func ResolveNearest(bookings []*models.Booking, now time.Time) (last, next *models.Booking) {
	for _, b := range bookings {
		if b == nil || b.Status == models.StatusRejected {
			continue
		}

		switch {
		case b.Start.Before(now):
			if last == nil || b.End.After(last.End) || (b.End.Equal(last.End) && b.ID < last.ID) {
				last = b
			}
		case b.Start.After(now):
			if next == nil || b.End.Before(next.End) || (b.End.Equal(next.End) && b.ID < next.ID) {
				next = b
			}
		}
	}
	return last, next
}
