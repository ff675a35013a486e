package domain

import "time"

// RefreshToken is the persisted half of a refresh JWT, keyed by the SHA-256
// of the signed token. A row exists for every live refresh token; consuming
// the token deletes the row.
type RefreshToken struct {
	ID        string
	TokenHash string
	UserID    string
	ExpiresAt time.Time
	CreatedAt time.Time
}

func (t RefreshToken) IsExpired(now time.Time) bool {
	return !now.Before(t.ExpiresAt)
}
