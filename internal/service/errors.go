package service

import (
	"errors"
	"fmt"
)

var (
	ErrInvalidCredentials      = errors.New("invalid credentials")
	ErrTokenRevoked            = errors.New("token has been revoked")
	ErrUserBlocked             = errors.New("user blocked")
	ErrUserNotFound            = errors.New("user not found")
	ErrSessionRevokedOrExpired = errors.New("refresh session revoked or expired")
	ErrInvalidRefreshToken     = errors.New("invalid or expired refresh token")
	ErrRefreshTokenMissing     = errors.New("refresh token missing")
	ErrSessionNotFound         = errors.New("session not found")
	ErrSessionCreation         = errors.New("session creation failed")
	ErrDuplicateUsername       = errors.New("username already exists")
	ErrDuplicateEmail          = errors.New("email already exists")
	ErrNotFound                = errors.New("not found")
	ErrTokenNotFound           = errors.New("token not found")
	ErrBadRequest              = errors.New("bad request")
	ErrAlreadyBlocked          = errors.New("user was already blocked")
	ErrAlreadyActive           = errors.New("user was already unblocked")
	ErrIncorrectPassword       = errors.New("old password is incorrect")
	ErrPasswordMismatch        = errors.New("password confirmation does not match")
)

// PersistenceError marks a store-level fault. Callers on security paths fail
// closed on it; audit paths drop it after logging.
type PersistenceError struct {
	Op  string
	Err error
}

func (e *PersistenceError) Error() string { return fmt.Sprintf("%s: %v", e.Op, e.Err) }
func (e *PersistenceError) Unwrap() error { return e.Err }

func persistence(op string, err error) error {
	if err == nil {
		return nil
	}
	return &PersistenceError{Op: op, Err: err}
}

func IsPersistence(err error) bool {
	var pe *PersistenceError
	return errors.As(err, &pe)
}
