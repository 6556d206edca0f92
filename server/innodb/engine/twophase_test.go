package engine

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/zhukovaskychina/xmysql-server/server/innodb/binlog"
	"github.com/zhukovaskychina/xmysql-server/server/innodb/redo"
)

func openPair(t *testing.T) (*redo.Log, *binlog.Log) {
	dir := t.TempDir()
	r, err := redo.Open(filepath.Join(dir, "redo.log"), 0)
	require.NoError(t, err)
	b, err := binlog.Open(filepath.Join(dir, "bin.log"))
	require.NoError(t, err)
	return r, b
}

func TestTwoPhaseCommitHappyPath(t *testing.T) {
	r, b := openPair(t)
	tpc := NewTwoPhaseCommit(r, b)

	tpc.RecordEvent(1, binlog.EventInsert, "orders", "INSERT")
	require.NoError(t, tpc.Commit(1))

	events, err := b.ReadByTransaction(1)
	require.NoError(t, err)
	require.Len(t, events, 2) // the insert plus the commit marker
	assert.Equal(t, binlog.EventCommit, events[len(events)-1].Type)

	dispositions, err := tpc.Recover()
	require.NoError(t, err)
	assert.Equal(t, RecoveredCommitted, dispositions[1])
}

// TestTwoPhaseCommitPreparedWithoutRedoCommit simulates Scenario E: the
// binlog reached its commit marker but the redo commit record was
// never written, which must still resolve to committed.
func TestTwoPhaseCommitPreparedWithoutRedoCommit(t *testing.T) {
	r, b := openPair(t)
	tpc := NewTwoPhaseCommit(r, b)

	_, err := r.LogPrepare(1)
	require.NoError(t, err)
	require.NoError(t, r.Flush())

	_, err = b.Append(1, binlog.EventInsert, "orders", "INSERT")
	require.NoError(t, err)
	_, err = b.Append(1, binlog.EventCommit, "", "")
	require.NoError(t, err)
	require.NoError(t, b.Flush())
	// crash: no redo commit record written

	dispositions, err := tpc.Recover()
	require.NoError(t, err)
	assert.Equal(t, RecoveredCommitted, dispositions[1])
}

func TestTwoPhaseCommitPreparedWithoutBinlogCommitRollsBack(t *testing.T) {
	r, b := openPair(t)
	tpc := NewTwoPhaseCommit(r, b)

	_, err := r.LogPrepare(1)
	require.NoError(t, err)
	require.NoError(t, r.Flush())
	// crash before any binlog event, and before redo commit

	dispositions, err := tpc.Recover()
	require.NoError(t, err)
	assert.Equal(t, RecoveredRolledBack, dispositions[1])
}
