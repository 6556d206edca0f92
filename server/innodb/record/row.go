package record

// Row is the MVCC-visible unit stored in the clustered index leaf: the
// row's own payload plus the two fields that bind it into the undo
// version chain (spec.md §3 "Row record (MVCC-visible)").
type Row struct {
	RowID      int64
	Data       []byte
	DBTrxID    int64
	DBRollPtr  int64 // 0 means no older version
}

// Clone returns a deep copy so callers holding a *Row read from the
// row store never observe a concurrent mutation through an aliased slice.
func (r *Row) Clone() *Row {
	data := make([]byte, len(r.Data))
	copy(data, r.Data)
	return &Row{
		RowID:     r.RowID,
		Data:      data,
		DBTrxID:   r.DBTrxID,
		DBRollPtr: r.DBRollPtr,
	}
}
