package auth

import (
	"context"
	"errors"
	"strings"
)

var (
	ErrUserNotFound  = errors.New("user not found")
	ErrWrongPassword = errors.New("wrong password")
	// ErrInFlight is returned by Login.Submit while an earlier attempt for
	// the same email is still outstanding.
	ErrInFlight = errors.New("sign-in already in progress")
)

// Messages shown to the user for each class of sign-in failure.
const (
	MessageUserNotFound  = "No account found with this email"
	MessageWrongPassword = "Wrong password"
	MessageLoginFailed   = "Login failed. Try again."
)

// Identity is what a successful sign-in yields.
type Identity struct {
	ID       string `json:"id"`
	Email    string `json:"email"`
	Username string `json:"username"`
}

// NewIdentity fills in Username from the email.
func NewIdentity(id, email string) *Identity {
	return &Identity{ID: id, Email: email, Username: UsernameFromEmail(email)}
}

// Provider signs users in with email and password. Failures are either
// ErrUserNotFound, ErrWrongPassword (possibly wrapped) or anything else.
type Provider interface {
	SignIn(ctx context.Context, email, password string) (*Identity, error)
}

// UsernameFromEmail returns the local part of email.
func UsernameFromEmail(email string) string {
	if i := strings.IndexByte(email, '@'); i >= 0 {
		return email[:i]
	}
	return email
}

// Message maps a sign-in error to the text shown to the user.
func Message(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrUserNotFound):
		return MessageUserNotFound
	case errors.Is(err, ErrWrongPassword):
		return MessageWrongPassword
	}
	return MessageLoginFailed
}

// Code is the machine-readable counterpart of Message.
func Code(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrUserNotFound):
		return "user-not-found"
	case errors.Is(err, ErrWrongPassword):
		return "wrong-password"
	case errors.Is(err, ErrInFlight):
		return "in-flight"
	}
	return "login-failed"
}
