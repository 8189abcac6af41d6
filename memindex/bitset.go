package memindex

import (
	"bytes"
	"fmt"

	"github.com/RoaringBitmap/roaring/v2"
	"github.com/tupelodb/tupelo"
	"github.com/vmihailenco/msgpack/v5"
	"github.com/vmihailenco/msgpack/v5/msgpcode"
)

// bitsetIndex maps every bit of the key value to the set of tuples that
// have it set. Tuples get small internal ids; a bitmap per bit position
// plus an "all" bitmap answer the supported queries.
type bitsetIndex struct {
	def    *tupelo.KeyDef
	all    *roaring.Bitmap
	bits   map[uint32]*roaring.Bitmap
	tuples map[uint32]*tupelo.Tuple
	ids    map[*tupelo.Tuple]uint32
	nextID uint32
}

func newBitsetIndex(def *tupelo.KeyDef) *bitsetIndex {
	return &bitsetIndex{
		def:    def,
		all:    roaring.New(),
		bits:   make(map[uint32]*roaring.Bitmap),
		tuples: make(map[uint32]*tupelo.Tuple),
		ids:    make(map[*tupelo.Tuple]uint32),
	}
}

// bitPositions decodes the encoded key into the positions of its set
// bits. Unsigned keys are bit masks; string and varbinary keys are
// treated as byte strings, LSB of byte 0 first.
func bitPositions(key []byte) ([]uint32, error) {
	dec := msgpack.NewDecoder(bytes.NewReader(key))
	code, err := dec.PeekCode()
	if err != nil {
		return nil, err
	}
	var positions []uint32
	switch {
	case msgpcode.IsString(code) || msgpcode.IsBin(code):
		var raw []byte
		if msgpcode.IsBin(code) {
			raw, err = dec.DecodeBytes()
		} else {
			var s string
			s, err = dec.DecodeString()
			raw = []byte(s)
		}
		if err != nil {
			return nil, err
		}
		for i, b := range raw {
			for bit := 0; bit < 8; bit++ {
				if b&(1<<bit) != 0 {
					positions = append(positions, uint32(i*8+bit))
				}
			}
		}
	default:
		v, err := dec.DecodeUint64()
		if err != nil {
			return nil, fmt.Errorf("BITSET key must be unsigned or string: %w", err)
		}
		for bit := uint32(0); bit < 64; bit++ {
			if v&(1<<bit) != 0 {
				positions = append(positions, bit)
			}
		}
	}
	return positions, nil
}

func (idx *bitsetIndex) KeyDef() *tupelo.KeyDef {
	return idx.def
}

func (idx *bitsetIndex) Len() int {
	return int(idx.all.GetCardinality())
}

func (idx *bitsetIndex) Get(key []byte) (*tupelo.Tuple, error) {
	it, err := idx.Iterator(tupelo.IterEQ, key)
	if err != nil {
		return nil, err
	}
	return it.Next(), nil
}

func (idx *bitsetIndex) getByKey(key []byte) *tupelo.Tuple {
	t, err := idx.Get(key)
	ensure(err)
	return t
}

func (idx *bitsetIndex) insert(t *tupelo.Tuple) error {
	positions, err := bitPositions(ExtractKey(t, idx.def))
	if err != nil {
		return err
	}
	id := idx.nextID
	idx.nextID++
	idx.all.Add(id)
	for _, pos := range positions {
		bm := idx.bits[pos]
		if bm == nil {
			bm = roaring.New()
			idx.bits[pos] = bm
		}
		bm.Add(id)
	}
	idx.tuples[id] = t
	idx.ids[t] = id
	return nil
}

func (idx *bitsetIndex) remove(t *tupelo.Tuple) error {
	id, ok := idx.ids[t]
	if !ok {
		return fmt.Errorf("tuple is missing from BITSET index %d", idx.def.IndexID)
	}
	idx.all.Remove(id)
	for pos, bm := range idx.bits {
		bm.Remove(id)
		if bm.IsEmpty() {
			delete(idx.bits, pos)
		}
	}
	delete(idx.tuples, id)
	delete(idx.ids, t)
	return nil
}

func (idx *bitsetIndex) Replace(old, new *tupelo.Tuple, mode tupelo.DupMode) (*tupelo.Tuple, error) {
	return replace(idx.def, idx, old, new, mode)
}

// Iterator supports IterAll (insertion id order) and IterEQ, which
// yields the tuples whose value has every bit of the key set.
func (idx *bitsetIndex) Iterator(mode tupelo.IterMode, key []byte) (tupelo.Iterator, error) {
	var matched *roaring.Bitmap
	switch mode {
	case tupelo.IterAll:
		matched = idx.all
	case tupelo.IterEQ:
		positions, err := bitPositions(key)
		if err != nil {
			return nil, err
		}
		matched = idx.all.Clone()
		for _, pos := range positions {
			bm := idx.bits[pos]
			if bm == nil {
				matched = roaring.New()
				break
			}
			matched.And(bm)
		}
	default:
		return nil, fmt.Errorf("unsupported iterator mode %d for BITSET index", mode)
	}
	tuples := make([]*tupelo.Tuple, 0, matched.GetCardinality())
	iter := matched.Iterator()
	for iter.HasNext() {
		tuples = append(tuples, idx.tuples[iter.Next()])
	}
	return &sliceIter{tuples: tuples}, nil
}
