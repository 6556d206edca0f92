package engine

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/zhukovaskychina/xmysql-server/server/innodb/lock"
)

func newTestEngine(t *testing.T) *Engine {
	t.Helper()
	cfg := DefaultConfig()
	cfg.DataDir = t.TempDir()
	cfg.FlushInterval = time.Hour // tests flush explicitly
	e, err := Open(cfg)
	require.NoError(t, err)
	t.Cleanup(func() { _ = e.Close() })
	return e
}

func TestEngineOpenWiresEverySubsystem(t *testing.T) {
	e := newTestEngine(t)
	assert.NotNil(t, e.Disk)
	assert.NotNil(t, e.Pool)
	assert.NotNil(t, e.Locks)
	assert.NotNil(t, e.Deadlocks)
	assert.NotNil(t, e.Undo)
	assert.NotNil(t, e.Redo)
	assert.NotNil(t, e.Binlog)
	assert.NotNil(t, e.TwoPhase)
	assert.NotNil(t, e.Txns)
	assert.NotNil(t, e.Indexes)
	assert.NotNil(t, e.Rows)
}

func TestEngineRoundTripsRowsThroughRowStoreAndIndex(t *testing.T) {
	e := newTestEngine(t)

	_, _, err := e.Disk.CreateSpace("orders")
	require.NoError(t, err)

	e.Rows.Put("orders", 1, []byte("alice's order"), 100)
	e.Indexes.Insert("orders", "by_customer", "alice", 1)

	pk, ok := e.Indexes.Search("orders", "by_customer", "alice")
	require.True(t, ok)
	assert.Equal(t, int64(1), pk)

	data, ok := e.Indexes.Lookup("orders", "by_customer", "alice")
	require.True(t, ok)
	assert.Equal(t, []byte("alice's order"), data)
}

// TestEngineRecoverRollsBackUnresolvedTransaction exercises the
// redo+binlog+undo recovery path end to end against the engine's own
// RowStore: a transaction that never reached its binlog commit marker
// must end up rolled back after Recover.
func TestEngineRecoverRollsBackUnresolvedTransaction(t *testing.T) {
	cfg := DefaultConfig()
	cfg.DataDir = t.TempDir()
	cfg.FlushInterval = time.Hour
	e, err := Open(cfg)
	require.NoError(t, err)
	t.Cleanup(func() { _ = e.Close() })

	require.NoError(t, e.Rows.InsertRow("orders", 1, []byte("v1")))
	e.Undo.LogInsert(42, "orders", 1)

	require.NoError(t, e.Rows.UpdateRow("orders", 1, []byte("v2")))
	e.Undo.LogUpdate(42, "orders", 1, 1, []byte("v1"), []byte("v2"))

	_, err = e.Redo.LogPrepare(42)
	require.NoError(t, err)
	require.NoError(t, e.Redo.Flush())
	// crash: no binlog commit marker, no redo commit record

	require.NoError(t, e.Recover(nil))

	// Rolling back txn 42 undoes its update and then its insert, so the
	// row is gone.
	row, ok := e.Rows.Get("orders", 1)
	require.False(t, ok)
	assert.Nil(t, row)
}

func TestEngineConfigDataDirLayout(t *testing.T) {
	e := newTestEngine(t)
	assert.Equal(t, filepath.Join(e.Config.DataDir), e.Config.DataDir)
}

func TestAcquireRecordBlockingTimesOutOnConflict(t *testing.T) {
	e := newTestEngine(t)
	e.Config.LockWaitTimeout = 20 * time.Millisecond

	e.Locks.Begin(1)
	e.Locks.Begin(2)
	require.NoError(t, e.Locks.AcquireRecord(1, "orders", 1, lock.RecordX))

	err := e.AcquireRecordBlocking(2, "orders", 1, lock.RecordX)
	assert.ErrorIs(t, err, lock.ErrTimeout)
}

func TestAcquireRecordBlockingGrantsAfterRelease(t *testing.T) {
	e := newTestEngine(t)
	e.Config.LockWaitTimeout = time.Second

	e.Locks.Begin(1)
	e.Locks.Begin(2)
	require.NoError(t, e.Locks.AcquireRecord(1, "orders", 1, lock.RecordX))

	go func() {
		time.Sleep(10 * time.Millisecond)
		e.Locks.ReleaseAll(1)
	}()

	require.NoError(t, e.AcquireRecordBlocking(2, "orders", 1, lock.RecordX))
}
