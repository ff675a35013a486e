package domain

import "time"

type ID string

// User is a registered principal. PasswordHash never leaves the auth
// boundary.
type User struct {
	ID           ID
	Email        string
	PasswordHash string
	CreatedAt    time.Time
}
