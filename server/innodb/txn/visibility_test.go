package txn

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/zhukovaskychina/xmysql-server/server/innodb/undo"
)

func TestReconstructSnapshotReturnsCurrentWhenVisible(t *testing.T) {
	view := NewReadView(nil, 5, 5)
	data, ok := ReconstructSnapshot(view, 5, []byte("current"), nil)
	assert.True(t, ok)
	assert.Equal(t, []byte("current"), data)
}

func TestReconstructSnapshotWalksChainPastConcurrentWriter(t *testing.T) {
	// T1 inserted, T2 (concurrently active w.r.t. the viewer) updated.
	view := NewReadView([]uint64{2}, 3, 3)
	chain := []*undo.Record{
		{Txn: 2, PrevTrxID: 1, Kind: undo.KindUpdate, Old: []byte("pre-T2")},
	}
	data, ok := ReconstructSnapshot(view, 2, []byte("post-T2"), chain)
	assert.True(t, ok)
	assert.Equal(t, []byte("pre-T2"), data)
}

func TestReconstructSnapshotGenesisIsInvisible(t *testing.T) {
	view := NewReadView([]uint64{1}, 2, 2)
	chain := []*undo.Record{
		{Txn: 1, Kind: undo.KindInsert},
	}
	_, ok := ReconstructSnapshot(view, 1, []byte("row"), chain)
	assert.False(t, ok)
}
