package buffer_pool

import "container/list"

// lru is a strict doubly-linked list over currently evictable frame
// ids, matching the teacher's use of container/list for the buffer
// pool's replacement data structure (server/innodb/buffer_pool/buffer_pool.go).
// All three operations are O(1), per spec.md §4.2.
type lru struct {
	l        *list.List
	elements map[int]*list.Element
}

func newLRU() *lru {
	return &lru{
		l:        list.New(),
		elements: make(map[int]*list.Element),
	}
}

// unpin inserts frameID at the head (most-recently-used end).
func (r *lru) unpin(frameID int) {
	if _, ok := r.elements[frameID]; ok {
		return
	}
	r.elements[frameID] = r.l.PushFront(frameID)
}

// pin removes frameID from the list, transitioning it out of eviction
// candidacy.
func (r *lru) pin(frameID int) {
	if e, ok := r.elements[frameID]; ok {
		r.l.Remove(e)
		delete(r.elements, frameID)
	}
}

// victim returns the tail (most-stale) frame id and removes it from
// the list, or (0, false) if the list is empty.
func (r *lru) victim() (int, bool) {
	e := r.l.Back()
	if e == nil {
		return 0, false
	}
	r.l.Remove(e)
	id := e.Value.(int)
	delete(r.elements, id)
	return id, true
}

func (r *lru) contains(frameID int) bool {
	_, ok := r.elements[frameID]
	return ok
}

func (r *lru) len() int { return r.l.Len() }
