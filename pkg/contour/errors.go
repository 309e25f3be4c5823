package contour

import "errors"

// ErrTopologyMismatch is returned when a contour set does not match the
// template's name to point-count mapping.
var ErrTopologyMismatch = errors.New("contour topology mismatch")
