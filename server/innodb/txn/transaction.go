package txn

import "time"

// State is a transaction's lifecycle state.
type State int

const (
	Active State = iota
	Committed
	Aborted
)

// Transaction is a single unit of work. The manager is the only writer
// of its fields; callers treat it as read-only.
type Transaction struct {
	ID        uint64
	Isolation Isolation
	State     State
	StartTime time.Time
	Priority  int

	view        *ReadView // cached for RepeatableRead, nil otherwise until first snapshot read
	savepoints  map[string]int
}

func newTransaction(id uint64, isolation Isolation) *Transaction {
	return &Transaction{
		ID:         id,
		Isolation:  isolation,
		State:      Active,
		StartTime:  time.Now(),
		savepoints: make(map[string]int),
	}
}

// SecondsRunning is used by the deadlock detector's victim scoring
// (spec.md §4.5).
func (t *Transaction) SecondsRunning() int64 {
	return int64(time.Since(t.StartTime).Seconds())
}
