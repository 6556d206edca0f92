// Package redo implements the L1 write-ahead log: an in-memory record
// buffer, fsync'd flush, checkpointing and idempotent crash recovery
// (spec.md §4.7).
//
// Grounded on the teacher's manager.RedoLogManager (LSN allocation,
// append-only file, binary.Write framing) but restructured around an
// explicit flush boundary and snappy-compressed flush batches, per
// SPEC_FULL.md's domain-stack wiring for github.com/golang/snappy.
package redo

import (
	"bytes"
	"encoding/binary"
	"io"
	"os"
	"sync"

	"github.com/golang/snappy"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
	"go.uber.org/atomic"
)

var log = logrus.WithField("component", "redo")

// Kind tags a redo record.
type Kind uint8

const (
	KindWrite Kind = iota
	KindPrepare
	KindCommit
	KindCheckpoint
)

// Record is one WAL entry. For KindWrite, SpaceID/PageNo/Payload carry
// the physical change; for KindPrepare/KindCommit, Txn identifies the
// transaction; for KindCheckpoint, Payload carries the big-endian
// flushed LSN at checkpoint time.
type Record struct {
	LSN     uint64
	Kind    Kind
	Txn     uint64
	SpaceID uint32
	PageNo  uint32
	Payload []byte
}

// PageApplier lets Recover replay a write record against live
// storage, checking the page's durable LSN first so replay of an
// already-durable change is a no-op (spec.md §4.7 idempotency).
type PageApplier interface {
	CurrentPageLSN(spaceID, pageNo uint32) (uint64, error)
	ApplyWrite(rec *Record) error
}

// Log is the redo log: a bounded in-memory buffer backed by an
// append-only file.
type Log struct {
	mu     sync.Mutex
	file   *os.File
	buf    []*Record
	maxBuf int

	nextLSN     atomic.Uint64
	flushedLSN  atomic.Uint64
	checkpointLSN atomic.Uint64
}

// Open opens (creating if absent) the redo log file at path.
func Open(path string, maxBufferedRecords int) (*Log, error) {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_RDWR|os.O_APPEND, 0644)
	if err != nil {
		return nil, errors.Wrap(err, "redo: open log file")
	}
	l := &Log{file: f, maxBuf: maxBufferedRecords}
	l.nextLSN.Store(1)
	return l, nil
}

func (l *Log) Close() error { return l.file.Close() }

// LogWrite appends a KindWrite record for a page mutation.
func (l *Log) LogWrite(spaceID, pageNo uint32, payload []byte) (uint64, error) {
	return l.append(&Record{Kind: KindWrite, SpaceID: spaceID, PageNo: pageNo, Payload: payload})
}

// LogPrepare appends a KindPrepare record for txn (two-phase commit,
// spec.md §4.10 step 1).
func (l *Log) LogPrepare(txn uint64) (uint64, error) {
	return l.append(&Record{Kind: KindPrepare, Txn: txn})
}

// LogCommit appends a KindCommit record for txn (spec.md §4.10 step 3).
func (l *Log) LogCommit(txn uint64) (uint64, error) {
	return l.append(&Record{Kind: KindCommit, Txn: txn})
}

func (l *Log) append(rec *Record) (uint64, error) {
	l.mu.Lock()
	rec.LSN = l.nextLSN.Load()
	l.nextLSN.Inc()
	l.buf = append(l.buf, rec)
	full := len(l.buf) >= l.maxBuf && l.maxBuf > 0
	l.mu.Unlock()

	if full {
		if err := l.Flush(); err != nil {
			return rec.LSN, err
		}
	}
	return rec.LSN, nil
}

// Flush serializes every buffered record in order, snappy-compresses
// the batch, writes it length-framed, fsyncs, advances flushedLSN and
// empties the buffer. Spec.md §4.7.
func (l *Log) Flush() error {
	l.mu.Lock()
	batch := l.buf
	l.buf = nil
	l.mu.Unlock()

	if len(batch) == 0 {
		return nil
	}

	var raw bytes.Buffer
	var maxLSN uint64
	for _, rec := range batch {
		if err := encodeRecord(&raw, rec); err != nil {
			return err
		}
		if rec.LSN > maxLSN {
			maxLSN = rec.LSN
		}
	}

	compressed := snappy.Encode(nil, raw.Bytes())

	var header [8]byte
	binary.BigEndian.PutUint32(header[0:4], uint32(len(compressed)))
	binary.BigEndian.PutUint32(header[4:8], uint32(raw.Len()))

	if _, err := l.file.Write(header[:]); err != nil {
		return errors.Wrap(err, "redo: write batch header")
	}
	if _, err := l.file.Write(compressed); err != nil {
		return errors.Wrap(err, "redo: write batch body")
	}
	if err := l.file.Sync(); err != nil {
		return errors.Wrap(err, "redo: fsync")
	}

	if maxLSN > l.flushedLSN.Load() {
		l.flushedLSN.Store(maxLSN)
	}
	return nil
}

// Checkpoint flushes, writes a checkpoint record carrying the current
// flushed LSN, flushes again, and records checkpointLSN. Spec.md §4.7.
func (l *Log) Checkpoint() (uint64, error) {
	if err := l.Flush(); err != nil {
		return 0, err
	}

	var payload [8]byte
	binary.BigEndian.PutUint64(payload[:], l.flushedLSN.Load())

	l.mu.Lock()
	rec := &Record{Kind: KindCheckpoint, Payload: payload[:]}
	rec.LSN = l.nextLSN.Load()
	l.nextLSN.Inc()
	l.buf = append(l.buf, rec)
	l.mu.Unlock()

	if err := l.Flush(); err != nil {
		return 0, err
	}

	l.checkpointLSN.Store(rec.LSN)
	return rec.LSN, nil
}

func (l *Log) FlushedLSN() uint64     { return l.flushedLSN.Load() }
func (l *Log) CheckpointLSN() uint64  { return l.checkpointLSN.Load() }

// Recover scans the redo file linearly, tracks the latest checkpoint
// record's LSN, and replays every record with lsn > checkpoint_lsn via
// applier, skipping writes whose page is already at-or-past that LSN.
// A short read at the end of the file (truncated tail) terminates the
// scan without error. Spec.md §4.7.
func (l *Log) Recover(applier PageApplier) error {
	if _, err := l.file.Seek(0, io.SeekStart); err != nil {
		return errors.Wrap(err, "redo: seek to start")
	}

	records, err := readAllBatches(l.file)
	if err != nil {
		return errors.Wrap(err, "redo: scan log")
	}

	var checkpointLSN uint64
	for _, rec := range records {
		if rec.Kind == KindCheckpoint && len(rec.Payload) == 8 {
			checkpointLSN = binary.BigEndian.Uint64(rec.Payload)
		}
	}

	var maxLSN uint64
	for _, rec := range records {
		if rec.LSN > maxLSN {
			maxLSN = rec.LSN
		}
		if rec.LSN <= checkpointLSN {
			continue
		}
		if rec.Kind != KindWrite {
			continue
		}
		current, err := applier.CurrentPageLSN(rec.SpaceID, rec.PageNo)
		if err != nil {
			return errors.Wrap(err, "redo: query page lsn")
		}
		if current >= rec.LSN {
			continue // already durable, idempotent skip
		}
		if err := applier.ApplyWrite(rec); err != nil {
			return errors.Wrapf(err, "redo: replay lsn %d", rec.LSN)
		}
	}

	l.checkpointLSN.Store(checkpointLSN)
	if maxLSN >= l.nextLSN.Load() {
		l.nextLSN.Store(maxLSN + 1)
	}
	l.flushedLSN.Store(maxLSN)

	log.WithFields(logrus.Fields{"records": len(records), "checkpoint_lsn": checkpointLSN}).Info("redo recovery complete")
	return nil
}

// CommitDisposition reports how a transaction should be treated by
// recovery based on the redo records alone, before consulting the
// binlog (spec.md §4.10).
type CommitDisposition int

const (
	DispositionUnknown CommitDisposition = iota
	DispositionCommitted
	DispositionPrepared // needs binlog lookup to resolve
	DispositionNone
)

// ScanTransactions replays the whole file (ignoring checkpoint_lsn)
// and classifies every transaction seen as committed, prepared-only,
// or absent; used by the two-phase-commit recovery driver.
func (l *Log) ScanTransactions() (map[uint64]CommitDisposition, error) {
	if _, err := l.file.Seek(0, io.SeekStart); err != nil {
		return nil, errors.Wrap(err, "redo: seek to start")
	}
	records, err := readAllBatches(l.file)
	if err != nil {
		return nil, errors.Wrap(err, "redo: scan log")
	}

	out := make(map[uint64]CommitDisposition)
	for _, rec := range records {
		switch rec.Kind {
		case KindPrepare:
			if out[rec.Txn] == DispositionUnknown {
				out[rec.Txn] = DispositionPrepared
			}
		case KindCommit:
			out[rec.Txn] = DispositionCommitted
		}
	}
	return out, nil
}

func encodeRecord(w *bytes.Buffer, rec *Record) error {
	var fixed [1 + 8 + 8 + 4 + 4 + 4]byte
	off := 0
	fixed[off] = byte(rec.Kind)
	off++
	binary.BigEndian.PutUint64(fixed[off:], rec.LSN)
	off += 8
	binary.BigEndian.PutUint64(fixed[off:], rec.Txn)
	off += 8
	binary.BigEndian.PutUint32(fixed[off:], rec.SpaceID)
	off += 4
	binary.BigEndian.PutUint32(fixed[off:], rec.PageNo)
	off += 4
	binary.BigEndian.PutUint32(fixed[off:], uint32(len(rec.Payload)))

	if _, err := w.Write(fixed[:]); err != nil {
		return err
	}
	_, err := w.Write(rec.Payload)
	return err
}

// readAllBatches reads every [header][compressed-body] frame from f,
// decompresses it and decodes the fixed-width records inside,
// tolerating a truncated trailing frame or a truncated trailing
// record within the last frame.
func readAllBatches(f *os.File) ([]*Record, error) {
	var out []*Record
	for {
		var header [8]byte
		n, err := io.ReadFull(f, header[:])
		if err == io.EOF || (err == io.ErrUnexpectedEOF && n == 0) {
			break
		}
		if err == io.ErrUnexpectedEOF {
			break // truncated header, tolerate
		}
		if err != nil {
			return nil, err
		}

		compLen := binary.BigEndian.Uint32(header[0:4])
		rawLen := binary.BigEndian.Uint32(header[4:8])

		compressed := make([]byte, compLen)
		if _, err := io.ReadFull(f, compressed); err != nil {
			break // truncated body, tolerate
		}

		raw, err := snappy.Decode(make([]byte, 0, rawLen), compressed)
		if err != nil {
			break // corrupted trailing frame, tolerate per truncation policy
		}

		out = append(out, decodeBatch(raw)...)
	}
	return out, nil
}

func decodeBatch(raw []byte) []*Record {
	var out []*Record
	for len(raw) >= 1+8+8+4+4+4 {
		off := 0
		kind := Kind(raw[off])
		off++
		lsn := binary.BigEndian.Uint64(raw[off:])
		off += 8
		txn := binary.BigEndian.Uint64(raw[off:])
		off += 8
		spaceID := binary.BigEndian.Uint32(raw[off:])
		off += 4
		pageNo := binary.BigEndian.Uint32(raw[off:])
		off += 4
		payloadLen := binary.BigEndian.Uint32(raw[off:])
		off += 4

		if off+int(payloadLen) > len(raw) {
			break // truncated trailing record, tolerate
		}
		payload := append([]byte{}, raw[off:off+int(payloadLen)]...)
		out = append(out, &Record{
			LSN: lsn, Kind: kind, Txn: txn,
			SpaceID: spaceID, PageNo: pageNo, Payload: payload,
		})
		raw = raw[off+int(payloadLen):]
	}
	return out
}
