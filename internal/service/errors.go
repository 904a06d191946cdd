package service

import "errors"

var (
	ErrInvalidInput = errors.New("invalid input")
	ErrNotFound     = errors.New("not found")

	ErrNoAvailableSpot      = errors.New("no available spot")
	ErrVehicleNotRegistered = errors.New("vehicle not registered")
	ErrNoOpenSession        = errors.New("no open parking session")
	ErrAlreadyParked        = errors.New("vehicle already has an open session")
	ErrReservationOverlap   = errors.New("reservation window overlaps an existing session")
	ErrPaymentCompleted     = errors.New("payment already completed")
)
