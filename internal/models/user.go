package models

import "time"

// User is an account created on first Google sign-in.
type User struct {
	ID      string
	Email   string
	Name    string
	Picture string

	// GoogleSubject is the stable "sub" claim of the linked Google account.
	GoogleSubject string
	CreatedAt     time.Time
}

// Session is a signed-in browser session. Token is the opaque value kept in the session cookie.
type Session struct {
	Token     string
	UserID    string
	ExpiresAt time.Time
}

// Expired reports whether the session is no longer valid at now.
func (s Session) Expired(now time.Time) bool {
	return !now.Before(s.ExpiresAt)
}
