package entity

import (
	"errors"
	"time"
)

// ErrNotFound is returned by every store when a key is absent or expired.
var ErrNotFound = errors.New("session not found")

// Session is the server-side half of a browser session. The browser holds
// only the opaque id pointing at it; the refresh token never leaves the
// server.
type Session struct {
	RefreshToken string    `json:"refresh_token" db:"refresh_token"`
	CreatedAt    time.Time `json:"created_at" db:"created_at"`
}
