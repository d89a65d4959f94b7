package errors

import "errors"

var (
	ErrInvalidIntentInput = errors.New("invalid payment intent input")
	ErrIntentNotFound     = errors.New("payment intent not found")
)
