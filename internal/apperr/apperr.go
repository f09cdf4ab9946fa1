package apperr

import (
	"errors"
	"fmt"
	"strings"
)

var (
	ErrNotFound            = errors.New("not_found")
	ErrProvider            = errors.New("provider_error")
	ErrWebhookVerification = errors.New("webhook_verification_failed")
	ErrConflict            = errors.New("conflict")
)

// ValidationError carries one or more reasons a request was rejected.
// It is never retried automatically.
type ValidationError struct {
	Reasons []string
}

func (e *ValidationError) Error() string {
	return "validation failed: " + strings.Join(e.Reasons, "; ")
}

func Validation(format string, args ...interface{}) *ValidationError {
	return &ValidationError{Reasons: []string{fmt.Sprintf(format, args...)}}
}

func ValidationReasons(reasons []string) *ValidationError {
	return &ValidationError{Reasons: reasons}
}

func IsValidation(err error) bool {
	var ve *ValidationError
	return errors.As(err, &ve)
}

func NotFound(what, id string) error {
	return fmt.Errorf("%s %s: %w", what, id, ErrNotFound)
}

func Provider(op string, err error) error {
	return fmt.Errorf("%s: %w: %w", op, ErrProvider, err)
}
