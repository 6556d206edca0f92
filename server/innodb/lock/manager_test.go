package lock

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestTableIntentionIdempotent(t *testing.T) {
	m := New()
	assert.NoError(t, m.AcquireTableIntention(1, "t", IS))
	assert.NoError(t, m.AcquireTableIntention(1, "t", IS))
	assert.Equal(t, 1, m.HeldCount(1))
}

func TestTableLockCompatibility(t *testing.T) {
	m := New()
	assert.NoError(t, m.AcquireTable(1, "t", S))
	assert.NoError(t, m.AcquireTable(2, "t", S))
	assert.ErrorIs(t, m.AcquireTable(3, "t", X), ErrConflict)
}

func TestRecordLockConflict(t *testing.T) {
	m := New()
	assert.NoError(t, m.AcquireRecord(1, "t", 5, RecordX))
	assert.ErrorIs(t, m.AcquireRecord(2, "t", 5, RecordS), ErrConflict)
	assert.ErrorIs(t, m.AcquireRecord(2, "t", 5, RecordX), ErrConflict)
}

func TestRecordSharedCompatible(t *testing.T) {
	m := New()
	assert.NoError(t, m.AcquireRecord(1, "t", 5, RecordS))
	assert.NoError(t, m.AcquireRecord(2, "t", 5, RecordS))
}

func TestGapLocksAlwaysCompatible(t *testing.T) {
	m := New()
	assert.NoError(t, m.AcquireGap(1, "t", 10, 20))
	assert.NoError(t, m.AcquireGap(2, "t", 10, 20))
}

// TestGapLockDoesNotConflictWithRecordAtSameID guards the row/gap
// resource namespaces staying distinct: a gap anchored at lo=10 must
// not collide with a Record-X request on row id 10.
func TestGapLockDoesNotConflictWithRecordAtSameID(t *testing.T) {
	m := New()
	assert.NoError(t, m.AcquireGap(1, "t", 10, 20))
	assert.NoError(t, m.AcquireRecord(2, "t", 10, RecordX))
}

func TestReleaseAllFreesResources(t *testing.T) {
	m := New()
	assert.NoError(t, m.AcquireTable(1, "t", X))
	m.ReleaseAll(1)
	assert.Equal(t, 0, m.HeldCount(1))
	assert.NoError(t, m.AcquireTable(2, "t", X))
}

func TestAcquireBlockingSucceedsAfterRelease(t *testing.T) {
	m := New()
	assert.NoError(t, m.AcquireTable(1, "t", X))

	done := make(chan error, 1)
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), time.Second)
		defer cancel()
		done <- AcquireBlocking(ctx, func() error {
			return m.AcquireTable(2, "t", X)
		})
	}()

	time.Sleep(10 * time.Millisecond)
	m.ReleaseAll(1)
	assert.NoError(t, <-done)
}

func TestAcquireBlockingTimesOut(t *testing.T) {
	m := New()
	assert.NoError(t, m.AcquireTable(1, "t", X))

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	err := AcquireBlocking(ctx, func() error {
		return m.AcquireTable(2, "t", X)
	})
	assert.ErrorIs(t, err, ErrTimeout)
}
