package domain

import (
	"fmt"
	"regexp"

	"github.com/google/uuid"
)

var userIDPattern = regexp.MustCompile(`^[A-Za-z0-9]+$`)

// UserID is the roll number a user registers with. It is the routing key
// for every relayed event.
type UserID string

func ParseUserID(s string) (UserID, error) {
	if !userIDPattern.MatchString(s) {
		return "", fmt.Errorf("%w: %q", ErrInvalidUserID, s)
	}
	return UserID(s), nil
}

func (id UserID) String() string {
	return string(id)
}

// Handle identifies one live transport connection. It is only valid while
// that connection is open.
type Handle uuid.UUID

func NewHandle() Handle {
	return Handle(uuid.New())
}

func ParseHandle(s string) (Handle, error) {
	id, err := uuid.Parse(s)
	if err != nil {
		return Handle{}, err
	}
	return Handle(id), nil
}

func (h Handle) String() string {
	return uuid.UUID(h).String()
}

func (h Handle) IsZero() bool {
	return h == Handle{}
}
