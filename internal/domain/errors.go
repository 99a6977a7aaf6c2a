package domain

import "errors"

// ─── Sentinel Errors ────────────────────────────────────────────────────────
// Domain errors carry no infrastructure dependency.

var (
	// Input validation
	ErrInvalidUserID      = errors.New("user id must not be empty")
	ErrInvalidItemType    = errors.New("item type must be task, flashcard or assignment")
	ErrInvalidDateKey     = errors.New("invalid date key, want YYYY-MM-DD")
	ErrInvalidTimezone    = errors.New("timezone offset out of range (-840..720 minutes)")
	ErrInvalidMonth       = errors.New("invalid month key, want YYYY-MM")
	ErrInvalidInstitution = errors.New("institution id must not be empty")

	// Catalogs
	ErrInvalidAchievement = errors.New("invalid achievement definition")

	// Storage
	ErrNotFound      = errors.New("record not found")
	ErrUnknownDriver = errors.New("unknown storage driver")
)

// ValidateTimezone checks a browser-style offset in minutes.
func ValidateTimezone(offsetMinutes int) error {
	if offsetMinutes < -840 || offsetMinutes > 720 {
		return ErrInvalidTimezone
	}
	return nil
}

// IsValidation reports whether err is a caller input error.
func IsValidation(err error) bool {
	return errors.Is(err, ErrInvalidUserID) ||
		errors.Is(err, ErrInvalidItemType) ||
		errors.Is(err, ErrInvalidDateKey) ||
		errors.Is(err, ErrInvalidTimezone) ||
		errors.Is(err, ErrInvalidMonth) ||
		errors.Is(err, ErrInvalidInstitution) ||
		errors.Is(err, ErrInvalidAchievement)
}
