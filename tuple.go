package tupelo

import (
	"bytes"

	"github.com/vmihailenco/msgpack/v5"
)

// TupleVtab is the allocation operation table of a format. External
// collaborators go through it so hosts can substitute arena or quota
// aware allocators.
type TupleVtab interface {
	NewTuple(f *TupleFormat, data []byte) (*Tuple, error)
	DeleteTuple(f *TupleFormat, t *Tuple)
}

// RuntimeVtab allocates tuples on the Go heap.
var RuntimeVtab TupleVtab = runtimeVtab{}

type runtimeVtab struct{}

func (runtimeVtab) NewTuple(f *TupleFormat, data []byte) (*Tuple, error) {
	return newTuple(f, data)
}

func (runtimeVtab) DeleteTuple(f *TupleFormat, t *Tuple) {
	t.buf = nil
}

// QuotaVtab allocates on the Go heap but fails once the total live
// tuple memory would exceed Limit bytes.
type QuotaVtab struct {
	Limit int
	used  int
}

func (v *QuotaVtab) Used() int {
	return v.used
}

func (v *QuotaVtab) NewTuple(f *TupleFormat, data []byte) (*Tuple, error) {
	size := int(f.ExtraSize) + int(f.FieldMapSize) + len(data)
	if v.used+size > v.Limit {
		return nil, oomErrf(size, "quota vtab", "tuple")
	}
	t, err := newTuple(f, data)
	if err != nil {
		return nil, err
	}
	v.used += size
	return t, nil
}

func (v *QuotaVtab) DeleteTuple(f *TupleFormat, t *Tuple) {
	v.used -= len(t.buf)
	t.buf = nil
}

// Tuple is a single allocation holding caller extra bytes, the field
// map, and the msgpack-encoded data, in that order. Tuples are
// reference-counted; the count starts at zero and the tuple is released
// through the format vtab when it drops back to zero.
type Tuple struct {
	format  *TupleFormat
	refs    int32
	dataOff uint16
	buf     []byte
}

func newTuple(f *TupleFormat, data []byte) (*Tuple, error) {
	dataOff := int(f.ExtraSize) + int(f.FieldMapSize)
	buf := make([]byte, dataOff+len(data))
	copy(buf[dataOff:], data)
	if err := f.InitFieldMap(buf[f.ExtraSize:dataOff], buf[dataOff:]); err != nil {
		return nil, err
	}
	return &Tuple{format: f, dataOff: uint16(dataOff), buf: buf}, nil
}

// NewTuple validates data against the format and materializes a tuple
// with its field map computed. The new tuple has zero references.
func (f *TupleFormat) NewTuple(data []byte) (*Tuple, error) {
	return f.Vtab.NewTuple(f, data)
}

func (t *Tuple) Format() *TupleFormat {
	return t.format
}

// Data returns the msgpack-encoded array.
func (t *Tuple) Data() []byte {
	return t.buf[t.dataOff:]
}

// Extra returns the caller-reserved prefix bytes.
func (t *Tuple) Extra() []byte {
	return t.buf[:t.format.ExtraSize]
}

func (t *Tuple) fieldMap() []byte {
	return t.buf[t.format.ExtraSize:t.dataOff]
}

func (t *Tuple) Refs() int32 {
	return t.refs
}

func (t *Tuple) Ref() {
	t.refs++
}

func (t *Tuple) Unref() {
	if t.refs <= 0 {
		panic("tuple reference count underflow")
	}
	t.refs--
	if t.refs == 0 {
		t.format.Vtab.DeleteTuple(t.format, t)
	}
}

// FieldCount returns the number of fields in the encoded array.
func (t *Tuple) FieldCount() uint32 {
	n, _, err := mpArrayBody(t.Data())
	ensure(err)
	return n
}

// Field returns the raw encoded bytes of field i, or nil if the tuple
// has no such field. Fields with offset slots resolve in O(1) through
// the field map; the rest are reached by a linear walk from the array
// header.
func (t *Tuple) Field(i uint32) []byte {
	data := t.Data()
	n, body, err := mpArrayBody(data)
	ensure(err)
	if i >= n {
		return nil
	}
	var off int
	switch {
	case i == 0:
		off = body
	case i < t.format.FieldCount && t.format.Fields[i].OffsetSlot != OffsetSlotNil:
		off = int(fieldMapGet(t.fieldMap(), t.format.Fields[i].OffsetSlot))
	default:
		r := bytes.NewReader(data[body:])
		dec := msgpack.NewDecoder(r)
		for k := uint32(0); k < i; k++ {
			ensure(dec.Skip())
		}
		off = len(data) - r.Len()
	}
	size, err := mpElementSize(data[off:])
	ensure(err)
	return data[off : off+size]
}
