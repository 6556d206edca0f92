// Package txn implements the L3 transaction manager: lifecycle,
// isolation levels and MVCC read-views (spec.md §4.8).
//
// Grounded on the teacher's manager.TransactionManager and the
// deleted storage/store/mvcc.ReadView, generalized to the full
// RU/RC/RR/Serializable isolation matrix.
package txn

import "sort"

// Isolation is one of the four standard SQL isolation levels.
type Isolation int

const (
	ReadUncommitted Isolation = iota
	ReadCommitted
	RepeatableRead
	Serializable
)

// ReadView is an immutable snapshot of the active-transaction set used
// to decide version visibility (spec.md §4.8).
type ReadView struct {
	mIDs       map[uint64]struct{}
	minTrx     uint64
	maxTrx     uint64
	creatorTrx uint64
}

// NewReadView builds a view as of "now": activeTxnIDs is the snapshot
// of currently-active transaction ids, nextTxnID is the id that would
// be assigned to the next new transaction, and creator is the viewing
// transaction's own id.
func NewReadView(activeTxnIDs []uint64, nextTxnID, creator uint64) *ReadView {
	m := make(map[uint64]struct{}, len(activeTxnIDs))
	minTrx := nextTxnID
	for _, id := range activeTxnIDs {
		m[id] = struct{}{}
		if id < minTrx {
			minTrx = id
		}
	}
	return &ReadView{mIDs: m, minTrx: minTrx, maxTrx: nextTxnID, creatorTrx: creator}
}

// IsVisible applies the five-step visibility predicate of spec.md §4.8.
func (v *ReadView) IsVisible(dbTrxID uint64) bool {
	switch {
	case dbTrxID == v.creatorTrx:
		return true
	case dbTrxID < v.minTrx:
		return true
	case dbTrxID >= v.maxTrx:
		return false
	}
	if _, active := v.mIDs[dbTrxID]; active {
		return false
	}
	return true
}

// ActiveIDs returns the snapshot's active transaction ids, sorted,
// for diagnostics and tests.
func (v *ReadView) ActiveIDs() []uint64 {
	out := make([]uint64, 0, len(v.mIDs))
	for id := range v.mIDs {
		out = append(out, id)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

func (v *ReadView) MinTrx() uint64 { return v.minTrx }
func (v *ReadView) MaxTrx() uint64 { return v.maxTrx }
