package record

import "testing"

func TestEncodeDecodeValuesRoundTrip(t *testing.T) {
	price, err := NewDecimal("1024.50")
	if err != nil {
		t.Fatal(err)
	}
	values := []Value{IntValue(-42), VarcharValue("hello"), price}

	data := EncodeValues(values)
	got, err := DecodeValues(data)
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 3 {
		t.Fatalf("got %d values, want 3", len(got))
	}

	if got[0].(IntValue) != IntValue(-42) {
		t.Fatalf("int value = %v, want -42", got[0])
	}
	if got[1].(VarcharValue) != VarcharValue("hello") {
		t.Fatalf("varchar value = %v, want hello", got[1])
	}
	if !got[2].(DecimalValue).Decimal.Equal(price.Decimal) {
		t.Fatalf("decimal value = %v, want %v", got[2], price)
	}
}

func TestDecodeValuesRejectsTruncatedPayload(t *testing.T) {
	if _, err := DecodeValues([]byte{0, 0}); err == nil {
		t.Fatal("expected error for truncated payload")
	}
}
