package database

import "errors"

var (
	ErrBookingNotFound        = errors.New("booking not found")
	ErrItemNotFound           = errors.New("item not found")
	ErrUserNotFound           = errors.New("user not found")
	ErrConcurrentModification = errors.New("booking was modified by another request")
)
