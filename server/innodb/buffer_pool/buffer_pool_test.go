package buffer_pool

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/zhukovaskychina/xmysql-server/server/innodb/page"
)

func newTestPool(t *testing.T, frames int) (*BufferPool, uint32) {
	t.Helper()
	dir := t.TempDir()
	disk := page.NewDiskManager(dir)
	spaceID, ts, err := disk.CreateSpace("t")
	require.NoError(t, err)
	for i := uint32(0); i < 32; i++ {
		no, err := ts.AllocatePage()
		require.NoError(t, err)
		pg := page.New(spaceID, no, page.TypeIndex)
		pg.UpdateChecksumAndLSN(1)
		require.NoError(t, ts.WritePage(pg))
	}
	return New(frames, disk), spaceID
}

func TestFetchPageHitsAndUnpins(t *testing.T) {
	bp, space := newTestPool(t, 10)

	f, err := bp.FetchPage(space, 0)
	require.NoError(t, err)
	assert.Equal(t, 1, f.PinCount())
	bp.UnpinPage(space, 0, false)
	assert.Equal(t, 0, f.PinCount())

	_, err = bp.FetchPage(space, 0)
	require.NoError(t, err)
	snap := bp.Stats()
	assert.Equal(t, uint64(1), snap.Hits)
	assert.Equal(t, uint64(1), snap.Misses)
}

// TestHitMissAndEvictionScenario is spec.md §8 Scenario B, literally:
// pool of 10 frames, fetch/unpin pages 0..9 (all misses), fetch/unpin
// them again (all hits), then fetch a brand new page 10 and observe
// exactly one eviction.
func TestHitMissAndEvictionScenario(t *testing.T) {
	bp, space := newTestPool(t, 10)

	for i := uint32(0); i < 10; i++ {
		f, err := bp.FetchPage(space, i)
		require.NoError(t, err)
		bp.UnpinPage(space, i, false)
		_ = f
	}
	snap := bp.Stats()
	assert.Equal(t, 10, bp.UsedFrames())
	assert.Equal(t, float64(0), snap.HitRate)

	for i := uint32(0); i < 10; i++ {
		_, err := bp.FetchPage(space, i)
		require.NoError(t, err)
		bp.UnpinPage(space, i, false)
	}
	snap = bp.Stats()
	assert.Equal(t, 0.5, snap.HitRate)

	before := bp.Stats().Evictions
	_, err := bp.FetchPage(space, 10)
	require.NoError(t, err)
	after := bp.Stats()
	assert.Equal(t, before+1, after.Evictions)
	assert.Equal(t, 10, bp.UsedFrames())
}

func TestFlushPageWritesDirtyFrameAndClearsFlag(t *testing.T) {
	bp, space := newTestPool(t, 4)

	f, err := bp.FetchPage(space, 0)
	require.NoError(t, err)
	require.NoError(t, f.Page().Write(0, []byte("hello")))
	bp.UnpinPage(space, 0, true)
	assert.True(t, f.IsDirty())

	require.NoError(t, bp.FlushPage(space, 0))
	assert.False(t, f.IsDirty())
}

func TestUnpinAbsentPageIsNoOp(t *testing.T) {
	bp, space := newTestPool(t, 4)
	bp.UnpinPage(space, 99, false)
}
