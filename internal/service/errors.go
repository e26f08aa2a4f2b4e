package service

import (
	"errors"
	"fmt"

	"gorm.io/gorm"

	"github.com/nurpe/lease-contracts/internal/validation"
)

var (
	ErrNotFound           = errors.New("not found")
	ErrPermissionDenied   = errors.New("permission denied")
	ErrPreconditionFailed = errors.New("precondition failed")
	ErrValidationFailed   = errors.New("validation failed")
	ErrConflict           = errors.New("conflict")
	ErrExternalFailure    = errors.New("external failure")
	ErrInvalidInput       = errors.New("invalid input")
)

// ValidationError carries the failing checklist items.
type ValidationError struct {
	Errors []validation.FieldError
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("%s: %d field(s) failed", ErrValidationFailed, len(e.Errors))
}

func (e *ValidationError) Unwrap() error { return ErrValidationFailed }

func precondition(message string) error {
	return fmt.Errorf("%w: %s", ErrPreconditionFailed, message)
}

// notFound translates repository misses; other errors pass through.
func notFound(err error, what string) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return fmt.Errorf("%w: %s", ErrNotFound, what)
	}
	return err
}
