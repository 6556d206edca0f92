package engine

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestIndexManagerInsertSearchAndBackTableLookup(t *testing.T) {
	clustered := map[int64][]byte{100: []byte("row-100")}
	im := NewIndexManager(func(table string, pk int64) ([]byte, bool) {
		row, ok := clustered[pk]
		return row, ok
	})

	im.Insert("orders", "by_customer", "alice", 100)

	pk, ok := im.Search("orders", "by_customer", "alice")
	assert.True(t, ok)
	assert.Equal(t, int64(100), pk)

	row, ok := im.Lookup("orders", "by_customer", "alice")
	assert.True(t, ok)
	assert.Equal(t, []byte("row-100"), row)

	_, ok = im.Lookup("orders", "by_customer", "bob")
	assert.False(t, ok)
}

func TestIndexManagerRangeSearch(t *testing.T) {
	im := NewIndexManager(nil)
	im.Insert("t", "idx", "a", 1)
	im.Insert("t", "idx", "b", 2)
	im.Insert("t", "idx", "c", 3)

	entries, err := im.RangeSearch("t", "idx", "a", "b")
	assert.NoError(t, err)
	assert.Len(t, entries, 2)
}

func TestIndexManagerDelete(t *testing.T) {
	im := NewIndexManager(nil)
	im.Insert("t", "idx", "a", 1)
	assert.True(t, im.Delete("t", "idx", "a"))
	_, ok := im.Search("t", "idx", "a")
	assert.False(t, ok)
}
