package pipeline

import "errors"

var (
	// ErrNoImages is returned when Build is called without images.
	ErrNoImages = errors.New("no images supplied")

	// ErrNoFaceDetected is returned when every image failed detection.
	// The accompanying Result carries the unmodified template.
	ErrNoFaceDetected = errors.New("no face detected in any image")
)
