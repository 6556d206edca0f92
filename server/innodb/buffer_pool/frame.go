package buffer_pool

import (
	"time"

	"github.com/zhukovaskychina/xmysql-server/server/innodb/latch"
	"github.com/zhukovaskychina/xmysql-server/server/innodb/page"
)

// pageKey identifies a cached page across the whole pool.
type pageKey struct {
	spaceID uint32
	pageNo  uint32
}

// Frame is a slot in the buffer pool owning at most one loaded page.
// Spec.md §3 "Frame". The embedded latch gives interior mutability per
// spec.md §9's "frame sharing" note: callers hold a non-owning handle
// and must Unpin exactly once; they never lock the frame directly.
type Frame struct {
	latch latch.Latch

	id       int
	key      pageKey
	page     *page.Page
	pinCount int
	dirty    bool
	lastUse  time.Time
	loaded   bool
}

func newFrame(id int) *Frame {
	return &Frame{id: id}
}

// Page returns the currently loaded page. Callers must hold a pin.
func (f *Frame) Page() *page.Page {
	f.latch.RLock()
	defer f.latch.RUnlock()
	return f.page
}

// PinCount returns the current pin count.
func (f *Frame) PinCount() int {
	f.latch.RLock()
	defer f.latch.RUnlock()
	return f.pinCount
}

// IsDirty reports whether the frame's page has unflushed writes.
func (f *Frame) IsDirty() bool {
	f.latch.RLock()
	defer f.latch.RUnlock()
	return f.dirty
}

func (f *Frame) load(key pageKey, p *page.Page) {
	f.latch.Lock()
	defer f.latch.Unlock()
	f.key = key
	f.page = p
	f.pinCount = 1
	f.dirty = false
	f.loaded = true
	f.lastUse = time.Now()
}

func (f *Frame) reset() {
	f.latch.Lock()
	defer f.latch.Unlock()
	f.key = pageKey{}
	f.page = nil
	f.pinCount = 0
	f.dirty = false
	f.loaded = false
}

func (f *Frame) pin() {
	f.latch.Lock()
	defer f.latch.Unlock()
	f.pinCount++
	f.lastUse = time.Now()
}

// unpin decrements the pin count with a floor of zero and ORs in
// madeDirty, returning the resulting pin count.
func (f *Frame) unpin(madeDirty bool) int {
	f.latch.Lock()
	defer f.latch.Unlock()
	if f.pinCount > 0 {
		f.pinCount--
	}
	f.dirty = f.dirty || madeDirty
	return f.pinCount
}
