package domain

import "time"

const DefaultDisplayName = "User"

type User struct {
	ID        UserID
	Name      string
	Email     string
	Online    bool
	Handle    *Handle
	CreatedAt time.Time
}

func NewUser(id UserID, name, email string) User {
	if name == "" {
		name = DefaultDisplayName
	}
	return User{
		ID:    id,
		Name:  name,
		Email: email,
	}
}

// BoundTo reports whether the user is online through exactly h.
func (u User) BoundTo(h Handle) bool {
	return u.Online && u.Handle != nil && *u.Handle == h
}

// PresenceEntry is the projection of a User pushed in presence snapshots.
type PresenceEntry struct {
	ID     UserID
	Name   string
	Email  string
	Online bool
}

func (u User) Presence() PresenceEntry {
	return PresenceEntry{
		ID:     u.ID,
		Name:   u.Name,
		Email:  u.Email,
		Online: u.Online,
	}
}
