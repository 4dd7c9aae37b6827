package service

import (
	"errors"
	"fmt"

	"gorm.io/gorm"
)

// Sentinel errors mapped to HTTP status codes by the handlers
var (
	ErrNotFound           = errors.New("not found")
	ErrConflict           = errors.New("conflict")
	ErrValidation         = errors.New("validation failed")
	ErrInvalidCredentials = errors.New("invalid email or password")
	ErrAccountDeactivated = errors.New("account deactivated")
	ErrInvalidToken       = errors.New("invalid or expired token")
)

// notFound translates gorm.ErrRecordNotFound into ErrNotFound and wraps anything else
func notFound(err error, what string) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return fmt.Errorf("%s %w", what, ErrNotFound)
	}
	return fmt.Errorf("failed to fetch %s: %w", what, err)
}

func validationf(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrValidation, fmt.Sprintf(format, args...))
}

func conflictf(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrConflict, fmt.Sprintf(format, args...))
}

const timeLayout = "2006-01-02T15:04:05Z07:00"

func isNotFound(err error) bool {
	return errors.Is(err, gorm.ErrRecordNotFound)
}
