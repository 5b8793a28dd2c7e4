package model

import "errors"

// Common errors used across the application
var (
	// Storage errors
	ErrStoreClosed = errors.New("credential store is closed")

	// Account errors
	ErrEmptyAddress = errors.New("account address is empty")
)
