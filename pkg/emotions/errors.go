package emotions

import "errors"

var (
	// ErrNotFound is returned when a tag has no registered preset.
	ErrNotFound = errors.New("emotion not found")

	// ErrInvalidPreset is returned when preset values are out of range.
	ErrInvalidPreset = errors.New("invalid emotion preset")

	// ErrInvalidRules is returned when a keyword table is malformed.
	ErrInvalidRules = errors.New("invalid emotion keyword rules")
)
