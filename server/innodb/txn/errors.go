package txn

import "errors"

// Transaction error taxonomy (spec.md §7 "transaction" kind).
var (
	ErrNotActive       = errors.New("txn: transaction is not active")
	ErrAlreadyFinalized = errors.New("txn: transaction already committed or aborted")
)
