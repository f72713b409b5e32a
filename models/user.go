package models

import "time"

// User is an administrative account for the back-office.
type User struct {
	ID           string    `json:"id"`
	Email        string    `json:"email"`
	Name         *string   `json:"name,omitempty"`
	PasswordHash string    `json:"-"`
	IsAdmin      bool      `json:"isAdmin"`
	CreatedAt    time.Time `json:"createdAt"`
}

// Session represents an authenticated session token.
type Session struct {
	Token     string    `json:"token"`
	UserID    string    `json:"userId"`
	IsAdmin   bool      `json:"isAdmin"`
	UserAgent string    `json:"userAgent,omitempty"`
	IPAddress string    `json:"ipAddress,omitempty"`
	ExpiresAt time.Time `json:"expiresAt"`
	CreatedAt time.Time `json:"createdAt"`
}

// IsExpired reports whether the session is past its expiry time.
func (s Session) IsExpired() bool {
	return time.Now().After(s.ExpiresAt)
}
