package scheduling

import "errors"

// Input errors. Booking rejections are reported through Decision instead.
var (
	ErrInvalidFormat      = errors.New("invalid format")
	ErrInvalidRange       = errors.New("value out of range")
	ErrInvalidAppointment = errors.New("invalid appointment")
	ErrInvalidConfig      = errors.New("invalid tenant configuration")
	ErrNotFound           = errors.New("appointment not found")
	ErrInvalidTransition  = errors.New("invalid status transition")
)
