package store

import "errors"

var (
	ErrNotFound          = errors.New("not found")
	ErrConflict          = errors.New("conflict")
	ErrUnavailable       = errors.New("event not available")
	ErrAlreadyBooked     = errors.New("event already booked")
	ErrInvalidTransition = errors.New("invalid status transition")
)
