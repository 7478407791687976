package domain

import "time"

// User represents a chat client of the dispatch service.
type User struct {
	ID         string
	ExternalID int64
	Username   string
	FirstName  string
	LastName   string
	Phone      string
	CreatedAt  time.Time
}

// DisplayName returns the best human-readable name for the user.
func (u *User) DisplayName() string {
	switch {
	case u.FirstName != "" && u.LastName != "":
		return u.FirstName + " " + u.LastName
	case u.FirstName != "":
		return u.FirstName
	case u.Username != "":
		return "@" + u.Username
	default:
		return "client"
	}
}
