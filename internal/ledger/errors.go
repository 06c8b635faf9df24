package ledger

import "errors"

var (
	// ErrInvalidRange is returned when a requested range ends before it starts.
	ErrInvalidRange = errors.New("invalid date range")
	// ErrMissingSettings marks that no policy has been configured yet. Classification
	// never fails with it; it is only reported by callers that need the settings row itself.
	ErrMissingSettings = errors.New("settings not configured")
	// ErrNegativeMinutes rejects any minute value below zero at the boundary.
	ErrNegativeMinutes = errors.New("minutes must not be negative")
	// ErrConcurrentSettingsChange is returned when the policy changed while a
	// recalculation was running. Re-invoking the recalculation is always safe.
	ErrConcurrentSettingsChange = errors.New("settings changed during recalculation")
)

// CheckMinutes returns ErrNegativeMinutes for negative values.
func CheckMinutes(minutes int) error {
	if minutes < 0 {
		return ErrNegativeMinutes
	}
	return nil
}
