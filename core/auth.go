package core

import (
	"errors"
	"time"
)

// SessionUser is the user shape exposed to handlers and clients. The session
// provider fills every field except Admin, which it does not track; the
// session service reads Admin from the user repository when augmenting.
type SessionUser struct {
	ID            string    `json:"id"`
	Name          string    `json:"name"`
	Email         string    `json:"email"`
	EmailVerified bool      `json:"emailVerified"`
	Admin         bool      `json:"admin"`
	CreatedAt     time.Time `json:"createdAt"`
}

var (
	// ErrInvalidCredentials is returned when email/password is wrong.
	ErrInvalidCredentials = errors.New("invalid credentials")
	// ErrEmailTaken is returned on signup with an already registered email.
	ErrEmailTaken = errors.New("email already registered")
	// ErrUserNotFound is returned by repositories when no row matches.
	ErrUserNotFound = errors.New("user not found")
)
