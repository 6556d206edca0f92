package btree

import "errors"

// Index error taxonomy (spec.md §7 "index" kind).
var (
	ErrNullKey      = errors.New("btree: range bound is absent")
	ErrBadRange     = errors.New("btree: lo > hi")
	ErrInvalidOrder = errors.New("btree: order must be >= 3")
)
