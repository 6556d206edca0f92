package record

import (
	"encoding/binary"
	"fmt"
)

// EncodeValues serializes a row's column values into the byte payload
// carried by Row.Data: a 4-byte count, then each value as a 1-byte
// Kind tag, a 4-byte length prefix and its Bytes() encoding.
func EncodeValues(values []Value) []byte {
	buf := make([]byte, 4, 16*len(values)+4)
	binary.BigEndian.PutUint32(buf, uint32(len(values)))

	for _, v := range values {
		raw := v.Bytes()
		header := make([]byte, 5)
		header[0] = byte(v.Kind())
		binary.BigEndian.PutUint32(header[1:], uint32(len(raw)))
		buf = append(buf, header...)
		buf = append(buf, raw...)
	}
	return buf
}

// DecodeValues parses a payload produced by EncodeValues back into its
// column values, the counterpart the row payload path needs to ever
// read a DecimalValue, IntValue or VarcharValue back out of storage.
func DecodeValues(data []byte) ([]Value, error) {
	if len(data) < 4 {
		return nil, fmt.Errorf("record: truncated row payload")
	}
	count := binary.BigEndian.Uint32(data)
	data = data[4:]

	values := make([]Value, 0, count)
	for i := uint32(0); i < count; i++ {
		if len(data) < 5 {
			return nil, fmt.Errorf("record: truncated value header")
		}
		kind := Kind(data[0])
		n := binary.BigEndian.Uint32(data[1:5])
		data = data[5:]
		if uint32(len(data)) < n {
			return nil, fmt.Errorf("record: truncated value payload")
		}
		raw := data[:n]
		data = data[n:]

		v, err := decodeOne(kind, raw)
		if err != nil {
			return nil, err
		}
		values = append(values, v)
	}
	return values, nil
}

func decodeOne(kind Kind, raw []byte) (Value, error) {
	switch kind {
	case KindInt:
		if len(raw) != 8 {
			return nil, fmt.Errorf("record: malformed int value (%d bytes)", len(raw))
		}
		u := binary.BigEndian.Uint64(raw)
		return IntValue(int64(u - (1 << 63))), nil
	case KindVarchar:
		return VarcharValue(raw), nil
	case KindDecimal:
		return NewDecimal(string(raw))
	default:
		return nil, fmt.Errorf("record: unknown value kind %d", kind)
	}
}
