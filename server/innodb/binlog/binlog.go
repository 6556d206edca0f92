// Package binlog implements the L3 logical binlog: an append-only,
// length-prefixed event log used by two-phase commit to durably record
// what a transaction did, independent of the physical redo log
// (spec.md §4.9).
//
// Grounded on the teacher's manager.RedoLogManager framing style
// (binary.Write length prefixes) applied to the binlog's own payload
// shape, with optional lz4 payload compression per SPEC_FULL.md's
// domain-stack wiring for github.com/pierrec/lz4/v4.
package binlog

import (
	"bytes"
	"encoding/binary"
	"io"
	"os"
	"sync"
	"time"

	"github.com/pierrec/lz4/v4"
	"github.com/pkg/errors"
	"go.uber.org/atomic"
)

// EventType distinguishes row-change events from statement events.
type EventType uint32

const (
	EventInsert EventType = iota
	EventUpdate
	EventDelete
	EventStatement
	// EventCommit is the terminal marker two-phase commit appends after
	// a transaction's row events, so recovery can tell "binlog reached
	// the commit point" apart from "binlog has some of T's events but
	// crashed before finishing" (spec.md §4.10).
	EventCommit
)

// Event is one binlog record. Name identifies the affected table (or
// is empty for a pure statement event); SQL carries the logical
// payload (a rendered statement, or an application-defined encoding of
// the row change).
type Event struct {
	LSN     uint64
	TxnID   uint64
	Type    EventType
	Ts      uint64
	Name    string
	SQL     string
}

// Log is the binlog: an append-only file of length-prefixed,
// optionally lz4-compressed records.
type Log struct {
	mu      sync.Mutex
	file    *os.File
	nextLSN atomic.Uint64
}

// Open opens (creating if absent) the binlog file at path.
func Open(path string) (*Log, error) {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_RDWR|os.O_APPEND, 0644)
	if err != nil {
		return nil, errors.Wrap(err, "binlog: open log file")
	}
	l := &Log{file: f}
	l.nextLSN.Store(1)
	return l, nil
}

func (l *Log) Close() error { return l.file.Close() }

// Append allocates a monotone LSN, writes the length-prefixed,
// compressed payload, and returns the assigned LSN. It does not fsync;
// callers needing durability call Flush. Spec.md §4.9.
func (l *Log) Append(txnID uint64, typ EventType, name, sql string) (uint64, error) {
	lsn := l.nextLSN.Load()
	l.nextLSN.Inc()

	ev := Event{LSN: lsn, TxnID: txnID, Type: typ, Ts: uint64(time.Now().UnixNano()), Name: name, SQL: sql}

	var payload bytes.Buffer
	if err := encodeEvent(&payload, &ev); err != nil {
		return 0, err
	}

	compressed := make([]byte, lz4.CompressBlockBound(payload.Len()))
	n, err := lz4.CompressBlock(payload.Bytes(), compressed, nil)
	if err != nil {
		return 0, errors.Wrap(err, "binlog: compress event")
	}
	// Incompressible or tiny payloads: lz4 reports n==0, store raw with
	// a sentinel so ReadAll knows to skip decompression.
	compressed, rawLen := frameBody(compressed[:n], payload.Bytes())

	l.mu.Lock()
	defer l.mu.Unlock()

	var header [12]byte
	binary.BigEndian.PutUint32(header[0:4], uint32(len(compressed)))
	binary.BigEndian.PutUint32(header[4:8], uint32(rawLen))
	binary.BigEndian.PutUint32(header[8:12], compressedFlag(rawLen, len(compressed)))

	if _, err := l.file.Write(header[:]); err != nil {
		return 0, errors.Wrap(err, "binlog: write header")
	}
	if _, err := l.file.Write(compressed); err != nil {
		return 0, errors.Wrap(err, "binlog: write body")
	}
	return lsn, nil
}

func frameBody(compressed, raw []byte) ([]byte, int) {
	if len(compressed) == 0 || len(compressed) >= len(raw) {
		return raw, len(raw)
	}
	return compressed, len(raw)
}

func compressedFlag(rawLen, storedLen int) uint32 {
	if storedLen == rawLen {
		return 0
	}
	return 1
}

// Flush fsyncs the file. Spec.md §4.9.
func (l *Log) Flush() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	return errors.Wrap(l.file.Sync(), "binlog: fsync")
}

// ReadAll linearly decodes every record. A short read at the end of
// the file (truncated tail) terminates the scan without error.
func (l *Log) ReadAll() ([]Event, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if _, err := l.file.Seek(0, io.SeekStart); err != nil {
		return nil, errors.Wrap(err, "binlog: seek to start")
	}

	var out []Event
	for {
		var header [12]byte
		n, err := io.ReadFull(l.file, header[:])
		if err == io.EOF || (err == io.ErrUnexpectedEOF && n == 0) {
			break
		}
		if err == io.ErrUnexpectedEOF {
			break
		}
		if err != nil {
			return nil, err
		}

		storedLen := binary.BigEndian.Uint32(header[0:4])
		rawLen := binary.BigEndian.Uint32(header[4:8])
		flag := binary.BigEndian.Uint32(header[8:12])

		body := make([]byte, storedLen)
		if _, err := io.ReadFull(l.file, body); err != nil {
			break
		}

		raw := body
		if flag == 1 {
			raw = make([]byte, rawLen)
			if _, err := lz4.UncompressBlock(body, raw); err != nil {
				break // corrupted trailing frame, tolerate
			}
		}

		ev, ok := decodeEvent(raw)
		if !ok {
			break
		}
		out = append(out, ev)
	}
	return out, nil
}

// ReadByTransaction filters ReadAll's linear scan down to one
// transaction. Spec.md §4.9.
func (l *Log) ReadByTransaction(txnID uint64) ([]Event, error) {
	all, err := l.ReadAll()
	if err != nil {
		return nil, err
	}
	var out []Event
	for _, ev := range all {
		if ev.TxnID == txnID {
			out = append(out, ev)
		}
	}
	return out, nil
}

func encodeEvent(w *bytes.Buffer, ev *Event) error {
	var fixed [8 + 4 + 8 + 8]byte
	binary.BigEndian.PutUint64(fixed[0:8], ev.TxnID)
	binary.BigEndian.PutUint32(fixed[8:12], uint32(ev.Type))
	binary.BigEndian.PutUint64(fixed[12:20], ev.Ts)
	binary.BigEndian.PutUint64(fixed[20:28], ev.LSN)
	if _, err := w.Write(fixed[:]); err != nil {
		return err
	}

	name := []byte(ev.Name)
	var nameLen [4]byte
	binary.BigEndian.PutUint32(nameLen[:], uint32(len(name)))
	if _, err := w.Write(nameLen[:]); err != nil {
		return err
	}
	if _, err := w.Write(name); err != nil {
		return err
	}

	sql := []byte(ev.SQL)
	var sqlLen [4]byte
	binary.BigEndian.PutUint32(sqlLen[:], uint32(len(sql)))
	if _, err := w.Write(sqlLen[:]); err != nil {
		return err
	}
	_, err := w.Write(sql)
	return err
}

func decodeEvent(raw []byte) (Event, bool) {
	const fixedLen = 8 + 4 + 8 + 8
	if len(raw) < fixedLen+4 {
		return Event{}, false
	}
	var ev Event
	ev.TxnID = binary.BigEndian.Uint64(raw[0:8])
	ev.Type = EventType(binary.BigEndian.Uint32(raw[8:12]))
	ev.Ts = binary.BigEndian.Uint64(raw[12:20])
	ev.LSN = binary.BigEndian.Uint64(raw[20:28])

	off := fixedLen
	nameLen := int(binary.BigEndian.Uint32(raw[off:]))
	off += 4
	if off+nameLen > len(raw) {
		return Event{}, false
	}
	ev.Name = string(raw[off : off+nameLen])
	off += nameLen

	if off+4 > len(raw) {
		return Event{}, false
	}
	sqlLen := int(binary.BigEndian.Uint32(raw[off:]))
	off += 4
	if off+sqlLen > len(raw) {
		return Event{}, false
	}
	ev.SQL = string(raw[off : off+sqlLen])

	return ev, true
}
