package state

import "errors"

// ErrStale is returned when vehicle state has not been updated within the stale threshold.
var ErrStale = errors.New("state: vehicle state is stale")
