// Package buffer_pool implements the L1 pinning buffer pool with LRU
// replacement (spec.md §4.2), grounded on the teacher's
// manager.BufferPoolManager and buffer_pool.BufferPool.
package buffer_pool

import (
	"sync"
	"time"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"github.com/zhukovaskychina/xmysql-server/server/innodb/page"
)

var log = logrus.WithField("component", "buffer_pool")

// SpaceResolver resolves a space id to its table space, satisfied by
// *page.DiskManager.
type SpaceResolver interface {
	Space(spaceID uint32) (*page.TableSpace, error)
}

// BufferPool is a fixed array of frames with a page table, a free list
// and an LRU over evictable frames (spec.md §4.2).
type BufferPool struct {
	mu sync.Mutex

	storage SpaceResolver
	frames  []*Frame
	table   map[pageKey]int // (space,page) -> frame id
	free    []int
	lru     *lru
	stats   Stats

	stopFlush chan struct{}
	flushWG   sync.WaitGroup
}

// New creates a buffer pool with n frames backed by storage.
func New(n int, storage SpaceResolver) *BufferPool {
	bp := &BufferPool{
		storage: storage,
		frames:  make([]*Frame, n),
		table:   make(map[pageKey]int, n),
		lru:     newLRU(),
	}
	for i := 0; i < n; i++ {
		bp.frames[i] = newFrame(i)
		bp.free = append(bp.free, i)
	}
	return bp
}

// FetchPage implements the spec.md §4.2 fetch contract: hit pins and
// removes the frame from the LRU; miss obtains a frame (free list,
// else LRU victim — flushing it first if dirty), reads the page from
// disk, loads it, pins it and returns.
func (bp *BufferPool) FetchPage(spaceID, pageNo uint32) (*Frame, error) {
	key := pageKey{spaceID, pageNo}

	bp.mu.Lock()
	if fid, ok := bp.table[key]; ok {
		f := bp.frames[fid]
		f.pin()
		bp.lru.pin(fid)
		bp.stats.hits.Inc()
		bp.mu.Unlock()
		log.WithFields(logrus.Fields{"space": spaceID, "page": pageNo}).Debug("buffer pool hit")
		return f, nil
	}
	bp.stats.misses.Inc()

	fid, err := bp.obtainFrameLocked()
	if err != nil {
		bp.mu.Unlock()
		return nil, err
	}
	bp.mu.Unlock()

	ts, err := bp.storage.Space(spaceID)
	if err != nil {
		bp.returnFrame(fid)
		return nil, errors.Wrap(err, "buffer_pool: resolve space")
	}
	pg, err := ts.ReadPage(pageNo)
	if err != nil {
		bp.returnFrame(fid)
		return nil, errors.Wrap(err, "buffer_pool: read page")
	}

	bp.mu.Lock()
	f := bp.frames[fid]
	f.load(key, pg)
	bp.table[key] = fid
	bp.mu.Unlock()

	log.WithFields(logrus.Fields{"space": spaceID, "page": pageNo}).Debug("buffer pool miss, loaded")
	return f, nil
}

// obtainFrameLocked must be called with bp.mu held. It returns a free
// frame id, evicting via LRU (flushing a dirty victim first) if the
// free list is empty.
func (bp *BufferPool) obtainFrameLocked() (int, error) {
	if n := len(bp.free); n > 0 {
		fid := bp.free[n-1]
		bp.free = bp.free[:n-1]
		return fid, nil
	}

	fid, ok := bp.lru.victim()
	if !ok {
		return 0, ErrPoolExhausted
	}
	f := bp.frames[fid]

	if f.IsDirty() {
		if err := bp.flushFrameLocked(f); err != nil {
			// Victim is unusable; put it back at the head so another
			// caller may retry rather than losing it.
			bp.lru.unpin(fid)
			return 0, errors.Wrap(err, "buffer_pool: flush victim")
		}
	}
	delete(bp.table, f.key)
	f.reset()
	bp.stats.evictions.Inc()
	return fid, nil
}

// returnFrame undoes obtainFrameLocked when a later step (disk read)
// fails, putting the frame back on the free list.
func (bp *BufferPool) returnFrame(fid int) {
	bp.mu.Lock()
	defer bp.mu.Unlock()
	bp.frames[fid].reset()
	bp.free = append(bp.free, fid)
}

// UnpinPage decrements the pin count, ORs in dirty, and when the count
// reaches zero makes the frame evictable again (LRU head).
func (bp *BufferPool) UnpinPage(spaceID, pageNo uint32, madeDirty bool) {
	key := pageKey{spaceID, pageNo}

	bp.mu.Lock()
	defer bp.mu.Unlock()

	fid, ok := bp.table[key]
	if !ok {
		// Spec.md §7: unpinning an absent page is a no-op, not a panic.
		log.WithFields(logrus.Fields{"space": spaceID, "page": pageNo}).Warn("unpin of page not present in pool")
		return
	}
	f := bp.frames[fid]
	if remaining := f.unpin(madeDirty); remaining == 0 {
		bp.lru.unpin(fid)
	}
}

// FlushPage writes the page back to disk if dirty; no-op if clean or
// absent.
func (bp *BufferPool) FlushPage(spaceID, pageNo uint32) error {
	bp.mu.Lock()
	fid, ok := bp.table[pageKey{spaceID, pageNo}]
	if !ok {
		bp.mu.Unlock()
		return nil
	}
	f := bp.frames[fid]
	bp.mu.Unlock()

	if !f.IsDirty() {
		return nil
	}
	return bp.flushFrame(f)
}

func (bp *BufferPool) flushFrame(f *Frame) error {
	bp.mu.Lock()
	err := bp.flushFrameLocked(f)
	bp.mu.Unlock()
	return err
}

// flushFrameLocked writes f's page via the table space and clears the
// dirty bit on success. Caller holds bp.mu (harmless re-entrant use:
// the frame's own latch, not bp.mu, guards the page bytes).
func (bp *BufferPool) flushFrameLocked(f *Frame) error {
	ts, err := bp.storage.Space(f.key.spaceID)
	if err != nil {
		return err
	}
	if err := ts.WritePage(f.Page()); err != nil {
		return err
	}
	f.latch.Lock()
	f.dirty = false
	f.latch.Unlock()
	bp.stats.flushes.Inc()
	return nil
}

// FlushAll writes every dirty, non-free frame to disk.
func (bp *BufferPool) FlushAll() error {
	bp.mu.Lock()
	dirty := make([]*Frame, 0)
	for _, f := range bp.frames {
		if f.loaded && f.IsDirty() {
			dirty = append(dirty, f)
		}
	}
	bp.mu.Unlock()

	for _, f := range dirty {
		if err := bp.flushFrame(f); err != nil {
			return err
		}
	}
	return nil
}

// UsedFrames returns the number of frames currently holding a page.
func (bp *BufferPool) UsedFrames() int {
	bp.mu.Lock()
	defer bp.mu.Unlock()
	return len(bp.table)
}

// Stats returns a snapshot of hit/miss/eviction/flush counters.
func (bp *BufferPool) Stats() Snapshot { return bp.stats.snapshot() }

// StartBackgroundFlush runs FlushAll on a ticker until Stop is called,
// implementing the teacher's previously-empty startBackgroundThreads
// hook (manager/buffer_pool_manager.go).
func (bp *BufferPool) StartBackgroundFlush(interval time.Duration) {
	bp.stopFlush = make(chan struct{})
	bp.flushWG.Add(1)
	go func() {
		defer bp.flushWG.Done()
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				if err := bp.FlushAll(); err != nil {
					log.WithError(err).Warn("background flush failed")
				}
			case <-bp.stopFlush:
				return
			}
		}
	}()
}

// Stop halts the background flush goroutine, if running, and performs
// a final FlushAll.
func (bp *BufferPool) Stop() error {
	if bp.stopFlush != nil {
		close(bp.stopFlush)
		bp.flushWG.Wait()
		bp.stopFlush = nil
	}
	return bp.FlushAll()
}
