package buffer_pool

import "errors"

// Buffer-pool error taxonomy (spec.md §7 "buffer" kind).
var (
	ErrPoolExhausted = errors.New("buffer_pool: exhausted, no evictable frame available")
	ErrPageNotCached = errors.New("buffer_pool: page not present in any frame")
)
