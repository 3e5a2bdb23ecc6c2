package models

import (
	"fmt"
	"strings"
	"time"
)

// Status is the approval state of a booking.
type Status uint8

const (
	StatusWaiting Status = iota
	StatusApproved
	StatusRejected
)

var statusNames = [...]string{
	StatusWaiting:  "WAITING",
	StatusApproved: "APPROVED",
	StatusRejected: "REJECTED",
}

func (s Status) String() string {
	if int(s) < len(statusNames) {
		return statusNames[s]
	}
	return fmt.Sprintf("Status(%d)", uint8(s))
}

// Valid reports whether s is one of the declared statuses.
func (s Status) Valid() bool {
	return int(s) < len(statusNames)
}

// Terminal reports whether no further transition is allowed out of s.
func (s Status) Terminal() bool {
	switch s {
	case StatusApproved, StatusRejected:
		return true
	default:
		return false
	}
}

// ParseStatus maps a status name (case-insensitive) to a Status.
func ParseStatus(name string) (Status, error) {
	upper := strings.ToUpper(strings.TrimSpace(name))
	for i, n := range statusNames {
		if n == upper {
			return Status(i), nil
		}
	}
	return 0, fmt.Errorf("unknown booking status %q", name)
}

func (s Status) MarshalText() ([]byte, error) {
	if !s.Valid() {
		return nil, fmt.Errorf("invalid booking status %d", uint8(s))
	}
	return []byte(s.String()), nil
}

func (s *Status) UnmarshalText(text []byte) error {
	parsed, err := ParseStatus(string(text))
	if err != nil {
		return err
	}
	*s = parsed
	return nil
}

// Booking is a reservation of one item by one user for the half-open window [Start, End).
type Booking struct {
	ID        int64     `json:"id"`
	ItemID    int64     `json:"item_id"`
	BookerID  int64     `json:"booker_id"`
	Start     time.Time `json:"start"`
	End       time.Time `json:"end"`
	Status    Status    `json:"status"`
	CreatedAt time.Time `json:"created_at"`
	Version   int64     `json:"version"`
}

// Decide returns the status an approval decision leads to.
func Decide(approved bool) Status {
	if approved {
		return StatusApproved
	}
	return StatusRejected
}
