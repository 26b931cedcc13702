package alerts

import "errors"

// ErrNotFound is returned for unknown alert ids.
var ErrNotFound = errors.New("alerts: alert not found")
