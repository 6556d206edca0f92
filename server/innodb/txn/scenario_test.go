package txn

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"

	"github.com/zhukovaskychina/xmysql-server/server/innodb/undo"
)

// repeatableReadFixture captures spec.md §8 Scenario C: T1 opens a
// repeatable-read view, T2 concurrently writes and commits the same
// row, and T1's snapshot read must still see the pre-T2 version by
// walking the undo chain.
type repeatableReadFixture struct {
	ActiveAtOpen   []uint64 `yaml:"active_at_open"`
	NextTxnID      uint64   `yaml:"next_txn_id"`
	CreatorTxnID   uint64   `yaml:"creator_txn_id"`
	WriterTxnID    uint64   `yaml:"writer_txn_id"`
	OriginalTxnID  uint64   `yaml:"original_txn_id"`
	CurrentValue   string   `yaml:"current_value"`
	PreWriteValue  string   `yaml:"pre_write_value"`
	WantVisibleVal string   `yaml:"want_visible_value"`
}

const repeatableReadYAML = `
active_at_open: [10]
next_txn_id: 11
creator_txn_id: 10
writer_txn_id: 11
original_txn_id: 5
current_value: post-T2
pre_write_value: pre-T2
want_visible_value: pre-T2
`

func TestRepeatableReadSnapshotFixture(t *testing.T) {
	var fx repeatableReadFixture
	require.NoError(t, yaml.Unmarshal([]byte(repeatableReadYAML), &fx))

	view := NewReadView(fx.ActiveAtOpen, fx.NextTxnID, fx.CreatorTxnID)
	assert.True(t, view.IsVisible(fx.OriginalTxnID), "original writer must be visible")
	assert.False(t, view.IsVisible(fx.WriterTxnID), "concurrent committer must not be visible")

	chain := []*undo.Record{
		{Txn: fx.WriterTxnID, PrevTrxID: fx.OriginalTxnID, Kind: undo.KindUpdate, Old: []byte(fx.PreWriteValue)},
	}
	data, ok := ReconstructSnapshot(view, fx.WriterTxnID, []byte(fx.CurrentValue), chain)
	require.True(t, ok)
	assert.Equal(t, fx.WantVisibleVal, string(data))
}
