package models

import "time"

type Item struct {
	ID          int64     `yaml:"id" json:"id"`
	OwnerID     int64     `yaml:"owner_id" json:"owner_id"`
	Name        string    `yaml:"name" json:"name"`
	Description string    `yaml:"description" json:"description"`
	Available   bool      `yaml:"available" json:"available"`
	CreatedAt   time.Time `yaml:"created_at" json:"created_at"`
}

// ItemBookings carries the last and next bookings of an item as seen by its owner.
type ItemBookings struct {
	ItemID int64    `json:"item_id"`
	Last   *Booking `json:"last_booking"`
	Next   *Booking `json:"next_booking"`
}
