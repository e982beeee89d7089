package domain

import "errors"

var (
	ErrInvalidUserID        = errors.New("invalid roll number (alphanumeric only)")
	ErrDuplicateUser        = errors.New("roll number already exists")
	ErrUserNotFound         = errors.New("user not found")
	ErrDirectoryUnavailable = errors.New("user directory unavailable")
	ErrNotRegistered        = errors.New("session has not registered an identity")
	ErrInvalidTransition    = errors.New("invalid call state transition")
	ErrEmptyMessage         = errors.New("message content cannot be empty")
)
