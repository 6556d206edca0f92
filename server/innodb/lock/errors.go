package lock

import "errors"

// Lock error taxonomy (spec.md §7 "lock" kind).
var (
	ErrConflict = errors.New("lock: incompatible with an existing grant")
	ErrTimeout  = errors.New("lock: wait exceeded context deadline")
)
