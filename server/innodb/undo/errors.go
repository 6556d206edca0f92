package undo

import "errors"

// Transaction/undo error taxonomy (spec.md §7 "transaction" kind).
var (
	ErrNotActive  = errors.New("undo: transaction is not active")
	ErrPurgeUnsafe = errors.New("undo: purge requested for a still-visible transaction")
)
