// Package engine wires every subsystem (page, buffer pool, btree,
// lock, deadlock, undo, redo, txn, binlog) into the coherent handle
// spec.md §9 calls for instead of process-wide mutable state, and
// implements the two cross-cutting protocols that sit above all of
// them: two-phase commit (§4.10) and the secondary-index manager
// (§6).
package engine

import (
	"sync"

	"github.com/pkg/errors"

	"github.com/zhukovaskychina/xmysql-server/server/innodb/binlog"
	"github.com/zhukovaskychina/xmysql-server/server/innodb/redo"
)

type pendingEvent struct {
	typ  binlog.EventType
	name string
	sql  string
}

// TwoPhaseCommit binds the physical redo log to the logical binlog so
// that crash recovery can always determine a transaction's final
// disposition. Spec.md §4.10.
type TwoPhaseCommit struct {
	redoLog *redo.Log
	binLog  *binlog.Log

	// flushEveryCommit mirrors innodb_flush_log_at_trx_commit=1: flush
	// the redo log to stable storage as part of every commit. Set to
	// false for innodb_flush_log_at_trx_commit=0: the redo commit record
	// then stays in the redo buffer until a later redo Flush (the next
	// commit's prepare, a full buffer, or Checkpoint); no background task
	// flushes the redo log.
	flushEveryCommit bool

	mu      sync.Mutex
	pending map[uint64][]pendingEvent
}

func NewTwoPhaseCommit(redoLog *redo.Log, binLog *binlog.Log) *TwoPhaseCommit {
	return &TwoPhaseCommit{
		redoLog:          redoLog,
		binLog:           binLog,
		flushEveryCommit: true,
		pending:          make(map[uint64][]pendingEvent),
	}
}

// SetFlushPolicy configures whether Commit flushes the redo log after
// its commit record, per Config.FlushLogAtTrxCommit.
func (tpc *TwoPhaseCommit) SetFlushPolicy(everyCommit bool) {
	tpc.flushEveryCommit = everyCommit
}

// RecordEvent buffers a logical event for txnID, to be written to the
// binlog when the transaction commits.
func (tpc *TwoPhaseCommit) RecordEvent(txnID uint64, typ binlog.EventType, name, sql string) {
	tpc.mu.Lock()
	defer tpc.mu.Unlock()
	tpc.pending[txnID] = append(tpc.pending[txnID], pendingEvent{typ: typ, name: name, sql: sql})
}

// Commit runs the three-step protocol of spec.md §4.10: redo prepare
// + flush, binlog events + commit marker + flush, redo commit + flush.
// The binlog must land on stable storage between the redo prepare and
// the redo commit; this ordering is non-negotiable.
func (tpc *TwoPhaseCommit) Commit(txnID uint64) error {
	tpc.mu.Lock()
	events := tpc.pending[txnID]
	delete(tpc.pending, txnID)
	tpc.mu.Unlock()

	if _, err := tpc.redoLog.LogPrepare(txnID); err != nil {
		return errors.Wrap(err, "2pc: redo prepare")
	}
	if err := tpc.redoLog.Flush(); err != nil {
		return errors.Wrap(err, "2pc: flush redo prepare")
	}

	for _, ev := range events {
		if _, err := tpc.binLog.Append(txnID, ev.typ, ev.name, ev.sql); err != nil {
			return errors.Wrap(err, "2pc: append binlog event")
		}
	}
	if _, err := tpc.binLog.Append(txnID, binlog.EventCommit, "", ""); err != nil {
		return errors.Wrap(err, "2pc: append binlog commit marker")
	}
	if err := tpc.binLog.Flush(); err != nil {
		return errors.Wrap(err, "2pc: flush binlog")
	}

	if _, err := tpc.redoLog.LogCommit(txnID); err != nil {
		return errors.Wrap(err, "2pc: redo commit")
	}
	if !tpc.flushEveryCommit {
		return nil
	}
	return errors.Wrap(tpc.redoLog.Flush(), "2pc: flush redo commit")
}

// Disposition is a transaction's recovered fate.
type Disposition int

const (
	NeverCommitted Disposition = iota
	RecoveredCommitted
	RecoveredRolledBack
)

// Recover classifies every transaction the redo log has any record of,
// per the disposition table of spec.md §4.10.
func (tpc *TwoPhaseCommit) Recover() (map[uint64]Disposition, error) {
	redoDispositions, err := tpc.redoLog.ScanTransactions()
	if err != nil {
		return nil, errors.Wrap(err, "2pc: scan redo")
	}

	out := make(map[uint64]Disposition, len(redoDispositions))
	for txn, d := range redoDispositions {
		switch d {
		case redo.DispositionCommitted:
			out[txn] = RecoveredCommitted
		case redo.DispositionPrepared:
			events, err := tpc.binLog.ReadByTransaction(txn)
			if err != nil {
				return nil, errors.Wrap(err, "2pc: scan binlog")
			}
			out[txn] = RecoveredRolledBack
			for _, ev := range events {
				if ev.Type == binlog.EventCommit {
					out[txn] = RecoveredCommitted
					break
				}
			}
		}
	}
	return out, nil
}
