package landmark

import "errors"

var (
	// ErrNoFace is the detector's "no face detected" signal.
	ErrNoFace = errors.New("no face detected")

	// ErrInsufficientLandmarks is returned when a detection has fewer
	// than Count points.
	ErrInsufficientLandmarks = errors.New("insufficient landmarks")
)
