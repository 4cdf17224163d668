package settings

import (
	"errors"
	"fmt"
)

// Sentinel errors for rejected user input. Each represents a validation
// failure, not a transient fault - callers surface them and never retry.
var (
	// ErrInvalidLocale is returned when a locale tag is not in the
	// supported set.
	ErrInvalidLocale = errors.New("unsupported locale")

	// ErrInvalidTimezone is returned when a timezone is not a valid IANA
	// zone identifier.
	ErrInvalidTimezone = errors.New("unsupported timezone")

	// ErrInvalidOrder is returned when a reorder request is not a
	// permutation of the existing ids.
	ErrInvalidOrder = errors.New("order is not a permutation of existing ids")

	// ErrLastEntry is returned when a removal would leave an ordered
	// sequence empty.
	ErrLastEntry = errors.New("cannot remove the last entry")

	// ErrUnknownKey is returned when a toggle key is outside the closed
	// set of known keys.
	ErrUnknownKey = errors.New("unknown settings key")

	// ErrEntryNotFound is returned when a stage or status id does not
	// exist in the organization's config.
	ErrEntryNotFound = errors.New("entry not found")
)

// ValidationError rejects a field-level update, carrying the field name so
// the rendering layer can attach a localized message to the right input.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid value for %s: %s", e.Field, e.Reason)
}

// IsRejectedInput reports whether err represents rejected user input rather
// than a storage failure.
func IsRejectedInput(err error) bool {
	var ve *ValidationError
	return errors.Is(err, ErrInvalidLocale) ||
		errors.Is(err, ErrInvalidTimezone) ||
		errors.Is(err, ErrInvalidOrder) ||
		errors.Is(err, ErrLastEntry) ||
		errors.Is(err, ErrUnknownKey) ||
		errors.Is(err, ErrEntryNotFound) ||
		errors.As(err, &ve)
}
