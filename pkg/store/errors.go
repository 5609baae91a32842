package store

import "errors"

// Common errors for store operations.
var (
	// User errors
	ErrUserNotFound  = errors.New("user not found")
	ErrDuplicateUser = errors.New("user already exists")

	// Room errors
	ErrRoomNotFound  = errors.New("room not found")
	ErrDuplicateRoom = errors.New("room already exists")

	// Client directory errors
	ErrClientNotFound = errors.New("client mapping not found")
)
