package txn

import "github.com/zhukovaskychina/xmysql-server/server/innodb/undo"

// ReconstructSnapshot implements spec.md §4.8's snapshot-read
// algorithm: if the row's current version is visible under view,
// return it; otherwise walk the undo chain (newest to oldest, as
// returned by undo.Log.VersionChain), applying each record's inverse
// until a visible version is found. If the chain is exhausted without
// one, the row is invisible (effectively absent).
func ReconstructSnapshot(view *ReadView, currentTrxID uint64, currentData []byte, chain []*undo.Record) ([]byte, bool) {
	if view == nil || view.IsVisible(currentTrxID) {
		return currentData, true
	}

	for _, rec := range chain {
		if rec.Kind == undo.KindInsert {
			// Genesis: nothing existed before this row was inserted.
			return nil, false
		}
		if view.IsVisible(rec.PrevTrxID) {
			return rec.Old, true
		}
	}
	return nil, false
}
