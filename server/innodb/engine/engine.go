package engine

import (
	"context"
	"path/filepath"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"github.com/zhukovaskychina/xmysql-server/logger"
	"github.com/zhukovaskychina/xmysql-server/server/innodb/binlog"
	"github.com/zhukovaskychina/xmysql-server/server/innodb/buffer_pool"
	"github.com/zhukovaskychina/xmysql-server/server/innodb/deadlock"
	"github.com/zhukovaskychina/xmysql-server/server/innodb/lock"
	"github.com/zhukovaskychina/xmysql-server/server/innodb/page"
	"github.com/zhukovaskychina/xmysql-server/server/innodb/redo"
	"github.com/zhukovaskychina/xmysql-server/server/innodb/txn"
	"github.com/zhukovaskychina/xmysql-server/server/innodb/undo"
)

var log = logrus.WithField("component", "engine")

// Engine is the coherent handle spec.md §9 asks for in place of a
// process-wide singleton: every subsystem is constructed here and
// passed around through this struct, not through package-level state.
type Engine struct {
	Config Config

	Disk      *page.DiskManager
	Pool      *buffer_pool.BufferPool
	Locks     *lock.Manager
	Deadlocks *deadlock.Graph
	Undo      *undo.Log
	Redo      *redo.Log
	Binlog    *binlog.Log
	TwoPhase  *TwoPhaseCommit
	Txns      *txn.Manager
	Indexes   *IndexManager
	Rows      *RowStore
}

// Open constructs every subsystem per cfg, including a default in-memory
// RowStore wired as both the undo applier and the index manager's
// clustered lookup. It does not run recovery; call Recover explicitly.
func Open(cfg Config) (*Engine, error) {
	if err := logger.InitLogger(logger.LogConfig{LogLevel: "info"}); err != nil {
		return nil, errors.Wrap(err, "engine: init logger")
	}

	disk := page.NewDiskManager(cfg.DataDir)

	pool := buffer_pool.New(cfg.BufferPoolFrames, disk)

	redoLog, err := redo.Open(filepath.Join(cfg.DataDir, "redo.log"), cfg.RedoBufferLimit)
	if err != nil {
		return nil, errors.Wrap(err, "engine: open redo log")
	}

	binLog, err := binlog.Open(filepath.Join(cfg.DataDir, "bin.log"))
	if err != nil {
		return nil, errors.Wrap(err, "engine: open binlog")
	}

	locks := lock.New()
	undoLog := undo.New()
	rows := NewRowStore()

	twoPhase := NewTwoPhaseCommit(redoLog, binLog)
	twoPhase.SetFlushPolicy(cfg.FlushLogAtTrxCommit != 0)

	e := &Engine{
		Config:    cfg,
		Disk:      disk,
		Pool:      pool,
		Locks:     locks,
		Deadlocks: deadlock.New(),
		Undo:      undoLog,
		Redo:      redoLog,
		Binlog:    binLog,
		TwoPhase:  twoPhase,
		Txns:      txn.NewManager(locks, undoLog),
		Indexes:   NewIndexManager(rows.Lookup),
		Rows:      rows,
	}

	pool.StartBackgroundFlush(cfg.FlushInterval)
	log.WithField("data_dir", cfg.DataDir).Info("engine opened")
	return e, nil
}

// AcquireRecordBlocking retries a record lock request until it is
// granted or Config.LockWaitTimeout elapses, per
// innodb_lock_wait_timeout. It is a thin wrapper around
// lock.AcquireBlocking binding the manager's non-blocking
// AcquireRecord to the engine's configured wait budget.
func (e *Engine) AcquireRecordBlocking(txnID uint64, table string, rowID int64, mode lock.Mode) error {
	ctx, cancel := context.WithTimeout(context.Background(), e.Config.LockWaitTimeout)
	defer cancel()
	return lock.AcquireBlocking(ctx, func() error {
		return e.Locks.AcquireRecord(txnID, table, rowID, mode)
	})
}

// Close flushes and releases every subsystem's resources.
func (e *Engine) Close() error {
	if err := e.Pool.Stop(); err != nil {
		return errors.Wrap(err, "engine: stop buffer pool")
	}
	if err := e.Redo.Close(); err != nil {
		return errors.Wrap(err, "engine: close redo log")
	}
	if err := e.Binlog.Close(); err != nil {
		return errors.Wrap(err, "engine: close binlog")
	}
	if err := e.Disk.CloseAll(); err != nil {
		return errors.Wrap(err, "engine: close table spaces")
	}
	return nil
}

// pageApplier adapts the disk manager to redo.PageApplier, reading and
// writing pages straight through their table spaces.
type pageApplier struct {
	disk *page.DiskManager
}

func (a pageApplier) CurrentPageLSN(spaceID, pageNo uint32) (uint64, error) {
	space, err := a.disk.Space(spaceID)
	if err != nil {
		return 0, err
	}
	p, err := space.ReadPage(pageNo)
	if err != nil {
		return 0, err
	}
	return p.Header.LSN, nil
}

func (a pageApplier) ApplyWrite(rec *redo.Record) error {
	space, err := a.disk.Space(rec.SpaceID)
	if err != nil {
		return err
	}
	p, err := space.ReadPage(rec.PageNo)
	if err != nil {
		return err
	}
	p.Write(0, rec.Payload)
	p.UpdateChecksumAndLSN(rec.LSN)
	return space.WritePage(p)
}

// Recover runs redo replay followed by two-phase-commit disposition,
// rolling back every transaction that resolves to rolled-back against
// applier. Pass nil to roll back against the engine's own RowStore.
// Spec.md §4.10's recovery disposition table.
func (e *Engine) Recover(applier undo.Applier) error {
	if applier == nil {
		applier = e.Rows
	}
	if err := e.Redo.Recover(pageApplier{disk: e.Disk}); err != nil {
		return errors.Wrap(err, "engine: redo recovery")
	}

	dispositions, err := e.TwoPhase.Recover()
	if err != nil {
		return errors.Wrap(err, "engine: two-phase recovery")
	}

	for txnID, disposition := range dispositions {
		if disposition != RecoveredRolledBack {
			continue
		}
		if err := e.Undo.Rollback(txnID, applier); err != nil {
			return errors.Wrapf(err, "engine: rollback recovered txn %d", txnID)
		}
	}

	log.WithField("transactions", len(dispositions)).Info("recovery complete")
	return nil
}
