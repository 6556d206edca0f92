package page

import (
	"os"
	"sync"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
	"golang.org/x/sys/unix"
)

var log = logrus.WithField("component", "page")

// TableSpace is a file of N contiguous 16 KiB pages. Offset of page p is
// p*Size. Page 0 gets no special treatment: nothing is reserved or
// written for metadata, and the first AllocatePage on an empty file
// returns page 0. Spec.md §3/§4.1.
type TableSpace struct {
	mu sync.Mutex

	name      string
	path      string
	file      *os.File
	pageCount uint32
	locked    bool
}

// Open opens (creating if necessary) the backing file, acquires a
// process-wide exclusive OS advisory lock on it via flock(2), and
// computes the current page count from the file size.
func Open(name, path string) (*TableSpace, error) {
	f, err := os.OpenFile(path, os.O_RDWR|os.O_CREATE, 0644)
	if err != nil {
		return nil, errors.Wrap(err, "tablespace: open")
	}

	if err := unix.Flock(int(f.Fd()), unix.LOCK_EX|unix.LOCK_NB); err != nil {
		f.Close()
		return nil, errors.Wrap(ErrLockedByOther, err.Error())
	}

	info, err := f.Stat()
	if err != nil {
		unix.Flock(int(f.Fd()), unix.LOCK_UN)
		f.Close()
		return nil, errors.Wrap(err, "tablespace: stat")
	}

	ts := &TableSpace{
		name:      name,
		path:      path,
		file:      f,
		pageCount: uint32(info.Size() / Size),
		locked:    true,
	}
	log.WithFields(logrus.Fields{"name": name, "pages": ts.pageCount}).Info("table space opened")
	return ts, nil
}

// PageCount returns the number of pages currently allocated.
func (ts *TableSpace) PageCount() uint32 {
	ts.mu.Lock()
	defer ts.mu.Unlock()
	return ts.pageCount
}

// AllocatePage extends the file by one page and returns its page number.
func (ts *TableSpace) AllocatePage() (uint32, error) {
	ts.mu.Lock()
	defer ts.mu.Unlock()

	pageNo := ts.pageCount
	offset := int64(pageNo) * Size
	if err := ts.file.Truncate(offset + Size); err != nil {
		return 0, errors.Wrap(err, "tablespace: allocate")
	}
	ts.pageCount++
	return pageNo, nil
}

// ReadPage reads exactly Size bytes at page p's offset and deserializes
// it, failing if p is out of range or the page fails verification.
func (ts *TableSpace) ReadPage(p uint32) (*Page, error) {
	ts.mu.Lock()
	defer ts.mu.Unlock()

	if p >= ts.pageCount {
		return nil, ErrPageNotFound
	}

	buf := make([]byte, Size)
	if _, err := ts.file.ReadAt(buf, int64(p)*Size); err != nil {
		return nil, errors.Wrap(err, "tablespace: read")
	}

	pg, err := Deserialize(buf)
	if err != nil {
		return nil, err
	}
	if !pg.Verify() {
		log.WithField("page_no", p).Error("page failed checksum verification")
		return nil, ErrPageCorrupted
	}
	return pg, nil
}

// WritePage serializes pg and writes it at its page number's offset,
// extending the file if necessary, then fsyncs. The caller is
// responsible for clearing the page's dirty flag on success.
func (ts *TableSpace) WritePage(pg *Page) error {
	ts.mu.Lock()
	defer ts.mu.Unlock()

	offset := int64(pg.Header.PageNo) * Size
	buf := pg.Serialize()
	if _, err := ts.file.WriteAt(buf, offset); err != nil {
		return errors.Wrap(err, "tablespace: write")
	}
	if pg.Header.PageNo >= ts.pageCount {
		ts.pageCount = pg.Header.PageNo + 1
	}
	return ts.file.Sync()
}

// Sync fsyncs the underlying file.
func (ts *TableSpace) Sync() error {
	ts.mu.Lock()
	defer ts.mu.Unlock()
	return ts.file.Sync()
}

// Close releases the OS lock and file handle.
func (ts *TableSpace) Close() error {
	ts.mu.Lock()
	defer ts.mu.Unlock()

	if ts.locked {
		unix.Flock(int(ts.file.Fd()), unix.LOCK_UN)
		ts.locked = false
	}
	return ts.file.Close()
}
