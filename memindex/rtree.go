package memindex

import (
	"bytes"
	"fmt"

	"github.com/tidwall/rtree"
	"github.com/tupelodb/tupelo"
	"github.com/vmihailenco/msgpack/v5"
)

// rtreeIndex keeps tuples in a 2-dimensional R-tree. The single ARRAY
// key part must decode to 2 numbers (a point) or 4 numbers (a
// rectangle).
type rtreeIndex struct {
	def   *tupelo.KeyDef
	tr    rtree.RTreeG[*tupelo.Tuple]
	rects map[*tupelo.Tuple]rect
}

type rect struct {
	min, max [2]float64
}

func newRTreeIndex(def *tupelo.KeyDef) *rtreeIndex {
	return &rtreeIndex{
		def:   def,
		rects: make(map[*tupelo.Tuple]rect),
	}
}

func decodeRect(key []byte) (rect, error) {
	var coords []float64
	if err := msgpack.NewDecoder(bytes.NewReader(key)).Decode(&coords); err != nil {
		return rect{}, fmt.Errorf("RTREE key is not an array of numbers: %w", err)
	}
	switch len(coords) {
	case 2:
		pt := [2]float64{coords[0], coords[1]}
		return rect{pt, pt}, nil
	case 4:
		return rect{[2]float64{coords[0], coords[1]}, [2]float64{coords[2], coords[3]}}, nil
	default:
		return rect{}, fmt.Errorf("RTREE key must have 2 or 4 coordinates, got %d", len(coords))
	}
}

func (idx *rtreeIndex) KeyDef() *tupelo.KeyDef {
	return idx.def
}

func (idx *rtreeIndex) Len() int {
	return idx.tr.Len()
}

func (idx *rtreeIndex) Get(key []byte) (*tupelo.Tuple, error) {
	r, err := decodeRect(key)
	if err != nil {
		return nil, err
	}
	var found *tupelo.Tuple
	idx.tr.Search(r.min, r.max, func(min, max [2]float64, t *tupelo.Tuple) bool {
		if min == r.min && max == r.max {
			found = t
			return false
		}
		return true
	})
	return found, nil
}

func (idx *rtreeIndex) getByKey(key []byte) *tupelo.Tuple {
	t, err := idx.Get(key)
	ensure(err)
	return t
}

func (idx *rtreeIndex) insert(t *tupelo.Tuple) error {
	r, err := decodeRect(ExtractKey(t, idx.def))
	if err != nil {
		return err
	}
	idx.tr.Insert(r.min, r.max, t)
	idx.rects[t] = r
	return nil
}

func (idx *rtreeIndex) remove(t *tupelo.Tuple) error {
	r, ok := idx.rects[t]
	if !ok {
		return fmt.Errorf("tuple is missing from RTREE index %d", idx.def.IndexID)
	}
	idx.tr.Delete(r.min, r.max, t)
	delete(idx.rects, t)
	return nil
}

func (idx *rtreeIndex) Replace(old, new *tupelo.Tuple, mode tupelo.DupMode) (*tupelo.Tuple, error) {
	return replace(idx.def, idx, old, new, mode)
}

func (idx *rtreeIndex) Iterator(mode tupelo.IterMode, key []byte) (tupelo.Iterator, error) {
	var tuples []*tupelo.Tuple
	switch mode {
	case tupelo.IterAll:
		idx.tr.Scan(func(min, max [2]float64, t *tupelo.Tuple) bool {
			tuples = append(tuples, t)
			return true
		})
	case tupelo.IterEQ:
		r, err := decodeRect(key)
		if err != nil {
			return nil, err
		}
		idx.tr.Search(r.min, r.max, func(min, max [2]float64, t *tupelo.Tuple) bool {
			if min == r.min && max == r.max {
				tuples = append(tuples, t)
			}
			return true
		})
	default:
		return nil, fmt.Errorf("unsupported iterator mode %d for RTREE index", mode)
	}
	return &sliceIter{tuples: tuples}, nil
}
