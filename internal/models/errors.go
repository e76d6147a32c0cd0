package models

import "errors"

// Error constants for OTP and identity operations
var (
	ErrNotFound          = errors.New("not found")
	ErrInvalidPhone      = errors.New("invalid phone number")
	ErrInvalidCodeFormat = errors.New("invalid code format")
	ErrDuplicatePhone    = errors.New("phone number already registered")
)
