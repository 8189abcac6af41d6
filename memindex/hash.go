package memindex

import (
	"bytes"
	"fmt"

	"github.com/cespare/xxhash/v2"
	"github.com/tupelodb/tupelo"
)

// hashIndex buckets tuples by the xxhash of their encoded key.
// Colliding keys share a bucket and are told apart by byte comparison.
type hashIndex struct {
	def     *tupelo.KeyDef
	buckets map[uint64][]hashEntry
	n       int
}

type hashEntry struct {
	key []byte
	t   *tupelo.Tuple
}

func newHashIndex(def *tupelo.KeyDef) *hashIndex {
	return &hashIndex{
		def:     def,
		buckets: make(map[uint64][]hashEntry),
	}
}

func (idx *hashIndex) KeyDef() *tupelo.KeyDef {
	return idx.def
}

func (idx *hashIndex) Len() int {
	return idx.n
}

func (idx *hashIndex) Get(key []byte) (*tupelo.Tuple, error) {
	return idx.getByKey(key), nil
}

func (idx *hashIndex) getByKey(key []byte) *tupelo.Tuple {
	for _, e := range idx.buckets[xxhash.Sum64(key)] {
		if bytes.Equal(e.key, key) {
			return e.t
		}
	}
	return nil
}

func (idx *hashIndex) insert(t *tupelo.Tuple) error {
	key := ExtractKey(t, idx.def)
	h := xxhash.Sum64(key)
	idx.buckets[h] = append(idx.buckets[h], hashEntry{key, t})
	idx.n++
	return nil
}

func (idx *hashIndex) remove(t *tupelo.Tuple) error {
	key := ExtractKey(t, idx.def)
	h := xxhash.Sum64(key)
	bucket := idx.buckets[h]
	for i := range bucket {
		if bucket[i].t == t {
			idx.buckets[h] = append(bucket[:i], bucket[i+1:]...)
			if len(idx.buckets[h]) == 0 {
				delete(idx.buckets, h)
			}
			idx.n--
			return nil
		}
	}
	return fmt.Errorf("tuple is missing from HASH index %d", idx.def.IndexID)
}

func (idx *hashIndex) Replace(old, new *tupelo.Tuple, mode tupelo.DupMode) (*tupelo.Tuple, error) {
	return replace(idx.def, idx, old, new, mode)
}

func (idx *hashIndex) Iterator(mode tupelo.IterMode, key []byte) (tupelo.Iterator, error) {
	switch mode {
	case tupelo.IterAll:
		tuples := make([]*tupelo.Tuple, 0, idx.n)
		for _, bucket := range idx.buckets {
			for _, e := range bucket {
				tuples = append(tuples, e.t)
			}
		}
		return &sliceIter{tuples: tuples}, nil
	case tupelo.IterEQ:
		if t := idx.getByKey(key); t != nil {
			return &sliceIter{tuples: []*tupelo.Tuple{t}}, nil
		}
		return &sliceIter{}, nil
	default:
		return nil, fmt.Errorf("HASH index does not support ordered iteration")
	}
}
