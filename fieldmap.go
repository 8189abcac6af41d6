package tupelo

import (
	"bytes"
	"encoding/binary"

	"github.com/vmihailenco/msgpack/v5"
)

// fieldMapSlot addresses a slot in a field-map buffer. Slots are
// negative and count backward from the end of the map, which sits
// immediately before the tuple data.
func fieldMapSlot(fieldMap []byte, slot int32) []byte {
	off := len(fieldMap) + int(slot)*4
	return fieldMap[off : off+4]
}

func fieldMapGet(fieldMap []byte, slot int32) uint32 {
	return binary.LittleEndian.Uint32(fieldMapSlot(fieldMap, slot))
}

// InitFieldMap validates the encoded tuple against the format and fills
// the field-map buffer with byte offsets (relative to the start of data)
// of every field that has an offset slot. fieldMap must be
// f.FieldMapSize bytes long.
func (f *TupleFormat) InitFieldMap(fieldMap []byte, data []byte) error {
	if len(fieldMap) != int(f.FieldMapSize) {
		panic("field map buffer size does not match the format")
	}

	r := bytes.NewReader(data)
	dec := msgpack.NewDecoder(r)

	n, err := dec.DecodeArrayLen()
	if err != nil {
		return clientErrf(ErrFieldType, 1, "tuple is not an array: %v", err)
	}
	fieldCount := uint32(n)
	if f.ExactFieldCount > 0 && fieldCount != f.ExactFieldCount {
		return clientErrf(ErrExactFieldCount, 0,
			"tuple field count %d does not match space field count %d",
			fieldCount, f.ExactFieldCount)
	}
	if fieldCount < f.MinFieldCount {
		return clientErrf(ErrMinFieldCount, 0,
			"tuple field count %d is less than required by space format or defined indexes (expected at least %d)",
			fieldCount, f.MinFieldCount)
	}

	definedFieldCount := min(fieldCount, f.FieldCount)
	for i := uint32(0); i < definedFieldCount; i++ {
		code, err := dec.PeekCode()
		if err != nil {
			return clientErrf(ErrFieldType, int(i)+1, "truncated tuple at field %d: %v", i+1, err)
		}
		field := &f.Fields[i]
		if !field.Type.Matches(code, field.IsNullable()) {
			return clientErrf(ErrFieldType, int(i)+1,
				"tuple field %d type does not match one required by operation: expected %s, got %s",
				i+1, field.Type, mpTypeName(code))
		}
		if i > 0 && field.OffsetSlot != OffsetSlotNil {
			off := uint32(len(data) - r.Len())
			binary.LittleEndian.PutUint32(fieldMapSlot(fieldMap, field.OffsetSlot), off)
		}
		if err := dec.Skip(); err != nil {
			return clientErrf(ErrFieldType, int(i)+1, "malformed tuple at field %d: %v", i+1, err)
		}
	}
	return nil
}

// mpElementSize returns the encoded size of the first msgpack element of
// data.
func mpElementSize(data []byte) (int, error) {
	r := bytes.NewReader(data)
	if err := msgpack.NewDecoder(r).Skip(); err != nil {
		return 0, err
	}
	return len(data) - r.Len(), nil
}

// mpArrayBody decodes the array header of data, returning the element
// count and the offset of the first element.
func mpArrayBody(data []byte) (count uint32, body int, err error) {
	r := bytes.NewReader(data)
	n, err := msgpack.NewDecoder(r).DecodeArrayLen()
	if err != nil {
		return 0, 0, err
	}
	return uint32(n), len(data) - r.Len(), nil
}
