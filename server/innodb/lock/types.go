package lock

import "fmt"

// Mode enumerates every lock mode the manager grants (spec.md §4.4).
type Mode int

const (
	IS Mode = iota
	IX
	S
	X
	RecordS
	RecordX
	Gap
	NextKey
)

func (m Mode) String() string {
	switch m {
	case IS:
		return "IS"
	case IX:
		return "IX"
	case S:
		return "S"
	case X:
		return "X"
	case RecordS:
		return "Record-S"
	case RecordX:
		return "Record-X"
	case Gap:
		return "Gap"
	case NextKey:
		return "Next-Key"
	default:
		return "?"
	}
}

// tableCompat is the table-intention/table-mode compatibility matrix,
// holder-row by requester-column, spec.md §4.4.
var tableCompat = map[Mode]map[Mode]bool{
	IS: {IS: true, IX: true, S: true, X: false},
	IX: {IS: true, IX: true, S: false, X: false},
	S:  {IS: true, IX: false, S: true, X: false},
	X:  {IS: false, IX: false, S: false, X: false},
}

// Resource identifies a lockable object: a table, a specific row within
// a table, or a gap below a row. IsGap keeps a gap's resource identity
// out of the row namespace: a gap anchored at lo and a row locked at
// id == lo must never hash to the same bucket, or a Record-X request
// would wrongly see the Gap grant as a conflicting holder.
type Resource struct {
	Table string
	RowID int64 // meaningful only for row/gap resources
	IsGap bool
}

func (r Resource) String() string {
	if r.IsGap {
		return fmt.Sprintf("%s#gap#%d", r.Table, r.RowID)
	}
	return fmt.Sprintf("%s#%d", r.Table, r.RowID)
}

// grant is one lock held by one transaction on one resource.
type grant struct {
	txn      uint64
	mode     Mode
	resource Resource
	lo, hi   int64 // Gap/NextKey interval bounds
}
