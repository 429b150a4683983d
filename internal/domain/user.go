package domain

import "time"

// User is a local account bound to one design platform user.
type User struct {
	ID           string
	DesignUserID string
	TeamID       string
	CreatedAt    time.Time
}
