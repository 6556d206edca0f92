package redo

import "errors"

// Recovery error taxonomy (spec.md §7 "recovery" kind).
var ErrUnreadable = errors.New("redo: log file could not be read during recovery")
