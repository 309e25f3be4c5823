package landmark

import "context"

// Detector extracts a face mesh from an encoded image.
type Detector interface {
	// Detect returns Count or more raw landmarks for the most prominent
	// face, or ErrNoFace.
	Detect(ctx context.Context, image []byte) ([]RawLandmark, error)

	// Close releases detector resources.
	Close() error
}
