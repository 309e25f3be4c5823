package animator

import "errors"

// ErrAlreadyRunning is returned when Run is called on a running session.
var ErrAlreadyRunning = errors.New("animator: session already running")
