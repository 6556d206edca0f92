package record

import (
	"fmt"

	"github.com/shopspring/decimal"
)

// Kind tags the dynamic type carried by a Value, the way the teacher's
// basic.ValType enumerates SQL column kinds, trimmed down to what the
// storage core itself needs to compare and encode row payloads.
type Kind uint8

const (
	KindInt Kind = iota
	KindVarchar
	KindDecimal
)

// Value is a single column value flowing through rows, undo records and
// redo/binlog payloads. It is intentionally small: the execution layer
// (out of scope) owns type coercion and SQL semantics.
type Value interface {
	Kind() Kind
	Bytes() []byte
	Less(other Value) bool
	String() string
}

// IntValue is a signed 64-bit column value.
type IntValue int64

func (v IntValue) Kind() Kind { return KindInt }

func (v IntValue) Bytes() []byte {
	b := make([]byte, 8)
	u := uint64(v) + (1 << 63) // order-preserving encoding for negative ints
	for i := 7; i >= 0; i-- {
		b[i] = byte(u)
		u >>= 8
	}
	return b
}

func (v IntValue) Less(other Value) bool {
	o, ok := other.(IntValue)
	if !ok {
		return v.Kind() < other.Kind()
	}
	return v < o
}

func (v IntValue) String() string { return fmt.Sprintf("%d", int64(v)) }

// VarcharValue is a variable-length string column value.
type VarcharValue string

func (v VarcharValue) Kind() Kind     { return KindVarchar }
func (v VarcharValue) Bytes() []byte  { return []byte(v) }
func (v VarcharValue) String() string { return string(v) }

func (v VarcharValue) Less(other Value) bool {
	o, ok := other.(VarcharValue)
	if !ok {
		return v.Kind() < other.Kind()
	}
	return v < o
}

// DecimalValue is an exact decimal column value, grounded on the
// teacher's use of shopspring/decimal for money-like columns.
type DecimalValue struct {
	decimal.Decimal
}

func NewDecimal(s string) (DecimalValue, error) {
	d, err := decimal.NewFromString(s)
	if err != nil {
		return DecimalValue{}, err
	}
	return DecimalValue{d}, nil
}

func (v DecimalValue) Kind() Kind    { return KindDecimal }
func (v DecimalValue) Bytes() []byte { return []byte(v.Decimal.String()) }

func (v DecimalValue) Less(other Value) bool {
	o, ok := other.(DecimalValue)
	if !ok {
		return v.Kind() < other.Kind()
	}
	return v.Decimal.LessThan(o.Decimal)
}

func (v DecimalValue) String() string { return v.Decimal.String() }
