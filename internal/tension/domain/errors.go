package tension

import "errors"

// ErrInvalidReading marks a malformed reading (unknown line, zero
// timestamp, negative tension, out-of-order timestamp). The whole batch
// carrying it is rejected.
var ErrInvalidReading = errors.New("tension: invalid reading")

// ErrConfiguration marks a non-recoverable setup fault such as a
// non-positive reference tension. Fatal at startup.
var ErrConfiguration = errors.New("tension: configuration error")
