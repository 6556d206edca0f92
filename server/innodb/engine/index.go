package engine

import (
	"sync"

	"github.com/zhukovaskychina/xmysql-server/server/innodb/btree"
)

// Default fan-out for secondary-index trees; matches the clustered
// index order used elsewhere in tests and examples.
const defaultIndexOrder = 64

type indexKey struct {
	table string
	index string
}

// ClusteredLookup resolves a primary key back to its row bytes in the
// clustered index, the "back-table" step of a secondary-index point
// lookup (spec.md §6).
type ClusteredLookup func(table string, primaryKey int64) ([]byte, bool)

func stringLess(a, b string) bool { return a < b }

// IndexManager owns every secondary index as (table, index) ->
// BPlusTree<indexed-key, primary-key>, plus the paired back-table
// lookup into the clustered index. Grounded on the teacher's
// manager.IndexManager's table-of-indexes shape, rebuilt over the
// generic btree.Tree instead of a page-cache-coupled one.
type IndexManager struct {
	mu      sync.RWMutex
	indexes map[indexKey]*btree.Tree[string, int64]
	lookup  ClusteredLookup
}

func NewIndexManager(lookup ClusteredLookup) *IndexManager {
	return &IndexManager{
		indexes: make(map[indexKey]*btree.Tree[string, int64]),
		lookup:  lookup,
	}
}

// CreateIndex registers a new empty secondary index, a no-op if it
// already exists.
func (im *IndexManager) CreateIndex(table, index string) *btree.Tree[string, int64] {
	im.mu.Lock()
	defer im.mu.Unlock()

	k := indexKey{table, index}
	if t, ok := im.indexes[k]; ok {
		return t
	}
	t := btree.New[string, int64](defaultIndexOrder, stringLess)
	im.indexes[k] = t
	return t
}

func (im *IndexManager) tree(table, index string) (*btree.Tree[string, int64], bool) {
	im.mu.RLock()
	defer im.mu.RUnlock()
	t, ok := im.indexes[indexKey{table, index}]
	return t, ok
}

// Insert maps key -> primaryKey in the named secondary index.
func (im *IndexManager) Insert(table, index, key string, primaryKey int64) {
	t := im.CreateIndex(table, index)
	t.Insert(key, primaryKey)
}

// Delete removes key from the named secondary index.
func (im *IndexManager) Delete(table, index, key string) bool {
	t, ok := im.tree(table, index)
	if !ok {
		return false
	}
	return t.Delete(key)
}

// Search returns the primary key mapped to key, the raw index lookup
// without the back-table hop.
func (im *IndexManager) Search(table, index, key string) (int64, bool) {
	t, ok := im.tree(table, index)
	if !ok {
		return 0, false
	}
	return t.Search(key)
}

// RangeSearch returns every (key, primaryKey) pair in [lo, hi].
func (im *IndexManager) RangeSearch(table, index, lo, hi string) ([]btree.Entry[string, int64], error) {
	t, ok := im.tree(table, index)
	if !ok {
		return nil, nil
	}
	return t.RangeSearch(lo, hi)
}

// Lookup performs the full secondary-index point lookup: resolve key
// to a primary key, then back-table into the clustered index for the
// row bytes.
func (im *IndexManager) Lookup(table, index, key string) ([]byte, bool) {
	pk, ok := im.Search(table, index, key)
	if !ok {
		return nil, false
	}
	return im.lookup(table, pk)
}
