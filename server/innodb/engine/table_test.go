package engine

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/zhukovaskychina/xmysql-server/server/innodb/record"
	"github.com/zhukovaskychina/xmysql-server/server/innodb/undo"
)

func TestRowStoreRoundTrip(t *testing.T) {
	rs := NewRowStore()
	rs.Put("orders", 1, []byte("v1"), 100)

	row, ok := rs.Get("orders", 1)
	require.True(t, ok)
	assert.Equal(t, []byte("v1"), row.Data)
	assert.Equal(t, int64(100), row.DBTrxID)

	data, ok := rs.Lookup("orders", 1)
	require.True(t, ok)
	assert.Equal(t, []byte("v1"), data)
}

func TestRowStoreSatisfiesUndoApplier(t *testing.T) {
	rs := NewRowStore()
	log := undo.New()

	require.NoError(t, rs.InsertRow("orders", 1, []byte("v1")))
	log.LogInsert(1, "orders", 1)

	require.NoError(t, rs.UpdateRow("orders", 1, []byte("v2")))
	log.LogUpdate(1, "orders", 1, 100, []byte("v1"), []byte("v2"))

	require.NoError(t, log.Rollback(1, rs))

	// Rollback undoes the update and then the insert, so the row is gone.
	row, ok := rs.Get("orders", 1)
	require.False(t, ok)
	assert.Nil(t, row)
}

func TestRowStoreDeleteUnknownRowErrors(t *testing.T) {
	rs := NewRowStore()
	assert.Error(t, rs.DeleteRow("orders", 99))
}

func TestRowStorePutValuesRoundTripsDecimal(t *testing.T) {
	rs := NewRowStore()

	price, err := record.NewDecimal("19.99")
	require.NoError(t, err)
	values := []record.Value{record.IntValue(7), record.VarcharValue("widget"), price}

	rs.PutValues("orders", 1, values, 100)

	got, ok := rs.GetValues("orders", 1)
	require.True(t, ok)
	require.Len(t, got, 3)

	assert.Equal(t, record.IntValue(7), got[0])
	assert.Equal(t, record.VarcharValue("widget"), got[1])
	gotPrice, ok := got[2].(record.DecimalValue)
	require.True(t, ok)
	assert.True(t, price.Decimal.Equal(gotPrice.Decimal))
}
