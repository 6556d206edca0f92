package page

import "errors"

// Storage-layer error taxonomy (spec.md §7 "storage" / "logical" kinds).
var (
	ErrOutOfBounds        = errors.New("page: offset/length out of bounds")
	ErrBadPageLength      = errors.New("page: serialized length is not 16384 bytes")
	ErrPageCorrupted      = errors.New("page: checksum/lsn verification failed")
	ErrPageNotFound       = errors.New("tablespace: page not found")
	ErrLockedByOther      = errors.New("tablespace: file locked by another process")
	ErrTableSpaceNotFound = errors.New("diskmanager: table space not registered")
	ErrTableSpaceExists   = errors.New("diskmanager: table space already registered")
)
