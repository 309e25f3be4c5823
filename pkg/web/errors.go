package web

import "errors"

var (
	// ErrSessionNotFound is returned for an unknown session ID.
	ErrSessionNotFound = errors.New("session not found")

	// ErrSharedSource is returned when a session's audio comes from the
	// shared RTP listener and cannot take its own input.
	ErrSharedSource = errors.New("session audio is fed by the shared rtp source")
)
