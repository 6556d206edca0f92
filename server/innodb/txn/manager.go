package txn

import (
	"sort"
	"sync"

	"github.com/sirupsen/logrus"

	"github.com/zhukovaskychina/xmysql-server/server/innodb/lock"
	"github.com/zhukovaskychina/xmysql-server/server/innodb/undo"
)

var log = logrus.WithField("component", "txn")

// TwoPhaseCommitter is implemented by the engine package's
// TwoPhaseCommit coordinator; the transaction manager depends on the
// interface, not the concrete type, to keep the dependency direction
// leaf-ward (spec.md §9 "coherent engine handle").
type TwoPhaseCommitter interface {
	Commit(txnID uint64) error
}

// Manager is the transaction manager: id allocation, active-set
// tracking, isolation-dependent read-view construction, and
// commit/abort orchestration. Spec.md §4.8.
type Manager struct {
	mu     sync.Mutex
	nextID uint64
	active map[uint64]*Transaction

	locks   *lock.Manager
	undoLog *undo.Log
}

func NewManager(locks *lock.Manager, undoLog *undo.Log) *Manager {
	return &Manager{
		nextID:  1,
		active:  make(map[uint64]*Transaction),
		locks:   locks,
		undoLog: undoLog,
	}
}

// Begin allocates a new txn_id, marks it active, and registers it with
// the lock manager for deadlock-scoring metadata. Spec.md §4.8.
func (m *Manager) Begin(isolation Isolation) *Transaction {
	m.mu.Lock()
	id := m.nextID
	m.nextID++
	tx := newTransaction(id, isolation)
	m.active[id] = tx
	m.mu.Unlock()

	m.locks.Begin(id)
	return tx
}

// activeIDsLocked returns the active transaction ids, caller holds mu.
func (m *Manager) activeIDsLocked() []uint64 {
	ids := make([]uint64, 0, len(m.active))
	for id := range m.active {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}

// ViewFor returns the read-view tx should use for its next snapshot
// read, per the per-isolation allocation strategy of spec.md §4.8:
// RU needs none (read latest), RC builds fresh every call, RR builds
// once and caches, Serializable takes no view (current reads only).
func (m *Manager) ViewFor(tx *Transaction) *ReadView {
	switch tx.Isolation {
	case ReadUncommitted, Serializable:
		return nil
	case ReadCommitted:
		return m.freshView(tx.ID)
	case RepeatableRead:
		m.mu.Lock()
		defer m.mu.Unlock()
		if tx.view == nil {
			tx.view = m.buildViewLocked(tx.ID)
		}
		return tx.view
	default:
		return nil
	}
}

func (m *Manager) freshView(creator uint64) *ReadView {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.buildViewLocked(creator)
}

func (m *Manager) buildViewLocked(creator uint64) *ReadView {
	return NewReadView(m.activeIDsLocked(), m.nextID, creator)
}

// Savepoint records an undo-log mark under name for later rollback.
func (m *Manager) Savepoint(tx *Transaction, name string) {
	tx.savepoints[name] = m.undoLog.Mark(tx.ID)
}

// RollbackToSavepoint undoes every change tx made after name was
// recorded, leaving tx active.
func (m *Manager) RollbackToSavepoint(tx *Transaction, name string, applier undo.Applier) error {
	mark, ok := tx.savepoints[name]
	if !ok {
		return ErrNotActive
	}
	return m.undoLog.RollbackToMark(tx.ID, mark, applier)
}

// Commit runs the two-phase commit protocol, releases tx's locks and
// removes it from the active set. Spec.md §4.8.
func (m *Manager) Commit(tx *Transaction, twoPhase TwoPhaseCommitter) error {
	if tx.State != Active {
		return ErrAlreadyFinalized
	}

	if twoPhase != nil {
		if err := twoPhase.Commit(tx.ID); err != nil {
			return err
		}
	}

	m.locks.ReleaseAll(tx.ID)

	m.mu.Lock()
	tx.State = Committed
	delete(m.active, tx.ID)
	m.mu.Unlock()

	log.WithField("txn", tx.ID).Debug("transaction committed")
	return nil
}

// Abort rolls back tx's undo log, releases its locks and removes it
// from the active set.
func (m *Manager) Abort(tx *Transaction, applier undo.Applier) error {
	if tx.State != Active {
		return ErrAlreadyFinalized
	}

	err := m.undoLog.Rollback(tx.ID, applier)

	m.locks.ReleaseAll(tx.ID)

	m.mu.Lock()
	tx.State = Aborted
	delete(m.active, tx.ID)
	m.mu.Unlock()

	log.WithField("txn", tx.ID).Debug("transaction aborted")
	return err
}

// IsSafeToPurge reports whether txnID is older than every active
// transaction and the next id to be assigned, the precondition undo
// purge requires (spec.md §4.6).
func (m *Manager) IsSafeToPurge(txnID uint64) bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	bound := m.nextID
	for id := range m.active {
		if id < bound {
			bound = id
		}
	}
	return txnID < bound
}

// ActiveTxnIDs returns a sorted snapshot of active transaction ids.
func (m *Manager) ActiveTxnIDs() []uint64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.activeIDsLocked()
}
