package btree

import (
	"strconv"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"
)

// splitAndRangeFixture is the literal input/expectation pair for the
// order-5 split-and-range walk: insert every key in Inserts, then check
// Height, a point search and a range search all land where expected.
type splitAndRangeFixture struct {
	Order        int      `yaml:"order"`
	Inserts      []int    `yaml:"inserts"`
	WantHeight   int      `yaml:"want_height"`
	SearchKey    int      `yaml:"search_key"`
	WantSearch   string   `yaml:"want_search"`
	RangeLo      int      `yaml:"range_lo"`
	RangeHi      int      `yaml:"range_hi"`
	WantRangeVal []string `yaml:"want_range_values"`
}

const splitAndRangeYAML = `
order: 5
inserts: [10, 20, 30, 40, 50, 60]
want_height: 2
search_key: 40
want_search: v_40
range_lo: 20
range_hi: 50
want_range_values: [v_20, v_30, v_40, v_50]
`

func TestTreeSplitAndRangeFixture(t *testing.T) {
	var fx splitAndRangeFixture
	require.NoError(t, yaml.Unmarshal([]byte(splitAndRangeYAML), &fx))

	tree := New[int, string](fx.Order, func(a, b int) bool { return a < b })
	for _, k := range fx.Inserts {
		tree.Insert(k, "v_"+strconv.Itoa(k))
	}

	assert.Equal(t, fx.WantHeight, tree.Height())

	got, ok := tree.Search(fx.SearchKey)
	require.True(t, ok)
	assert.Equal(t, fx.WantSearch, got)

	entries, err := tree.RangeSearch(fx.RangeLo, fx.RangeHi)
	require.NoError(t, err)
	values := make([]string, len(entries))
	for i, e := range entries {
		values[i] = e.Value
	}
	assert.Equal(t, fx.WantRangeVal, values)
}
