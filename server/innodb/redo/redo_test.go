package redo

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeApplier struct {
	lsns    map[uint64]uint64 // (spaceID<<32|pageNo) -> durable lsn
	applied []*Record
}

func newFakeApplier() *fakeApplier {
	return &fakeApplier{lsns: map[uint64]uint64{}}
}

func key(spaceID, pageNo uint32) uint64 { return uint64(spaceID)<<32 | uint64(pageNo) }

func (f *fakeApplier) CurrentPageLSN(spaceID, pageNo uint32) (uint64, error) {
	return f.lsns[key(spaceID, pageNo)], nil
}

func (f *fakeApplier) ApplyWrite(rec *Record) error {
	f.applied = append(f.applied, rec)
	f.lsns[key(rec.SpaceID, rec.PageNo)] = rec.LSN
	return nil
}

func TestFlushAndRecoverReplaysWrites(t *testing.T) {
	path := filepath.Join(t.TempDir(), "redo.log")
	l, err := Open(path, 0)
	require.NoError(t, err)

	_, err = l.LogWrite(1, 10, []byte("payload-a"))
	require.NoError(t, err)
	_, err = l.LogWrite(1, 11, []byte("payload-b"))
	require.NoError(t, err)
	require.NoError(t, l.Flush())
	require.NoError(t, l.Close())

	l2, err := Open(path, 0)
	require.NoError(t, err)
	applier := newFakeApplier()
	require.NoError(t, l2.Recover(applier))
	assert.Len(t, applier.applied, 2)
}

func TestRecoverIsIdempotentPastCheckpoint(t *testing.T) {
	path := filepath.Join(t.TempDir(), "redo.log")
	l, err := Open(path, 0)
	require.NoError(t, err)

	lsn, err := l.LogWrite(1, 10, []byte("v1"))
	require.NoError(t, err)
	_, err = l.Checkpoint()
	require.NoError(t, err)
	require.NoError(t, l.Close())

	l2, err := Open(path, 0)
	require.NoError(t, err)
	applier := newFakeApplier()
	applier.lsns[key(1, 10)] = lsn // already durable
	require.NoError(t, l2.Recover(applier))
	assert.Empty(t, applier.applied)
}

func TestScanTransactionsClassifiesPrepareAndCommit(t *testing.T) {
	path := filepath.Join(t.TempDir(), "redo.log")
	l, err := Open(path, 0)
	require.NoError(t, err)

	_, err = l.LogPrepare(7)
	require.NoError(t, err)
	require.NoError(t, l.Flush())

	dispositions, err := l.ScanTransactions()
	require.NoError(t, err)
	assert.Equal(t, DispositionPrepared, dispositions[7])

	_, err = l.LogCommit(7)
	require.NoError(t, err)
	require.NoError(t, l.Flush())

	dispositions, err = l.ScanTransactions()
	require.NoError(t, err)
	assert.Equal(t, DispositionCommitted, dispositions[7])
}
