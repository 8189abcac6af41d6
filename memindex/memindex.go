// Package memindex implements the in-memory index variants consumed by
// the tupelo engine: HASH, TREE, RTREE and BITSET.
package memindex

import (
	"fmt"

	"github.com/tupelodb/tupelo"
)

// New constructs an index of the variant requested by the key
// definition. The definition is assumed to have passed the engine's
// CheckKeyDef.
func New(def *tupelo.KeyDef) (tupelo.Index, error) {
	switch def.Kind {
	case tupelo.IndexHash:
		return newHashIndex(def), nil
	case tupelo.IndexTree:
		return newTreeIndex(def), nil
	case tupelo.IndexRTree:
		return newRTreeIndex(def), nil
	case tupelo.IndexBitset:
		return newBitsetIndex(def), nil
	default:
		return nil, fmt.Errorf("unsupported index type %v", def.Kind)
	}
}

// store is the mutation surface shared by all variants; replace layers
// the duplicate handling contract on top of it.
type store interface {
	getByKey(key []byte) *tupelo.Tuple
	insert(t *tupelo.Tuple) error
	remove(t *tupelo.Tuple) error
}

// replace removes old, inserts new, and resolves unique-key conflicts
// according to mode. Returns the displaced tuple.
func replace(def *tupelo.KeyDef, s store, old, new *tupelo.Tuple, mode tupelo.DupMode) (*tupelo.Tuple, error) {
	displaced := old
	if old != nil {
		if err := s.remove(old); err != nil {
			return nil, err
		}
	}
	if new != nil {
		if def.IsUnique {
			if existing := s.getByKey(ExtractKey(new, def)); existing != nil {
				if mode == tupelo.DupInsert {
					if old != nil {
						ensure(s.insert(old))
					}
					return nil, &tupelo.DuplicateKeyError{Index: def}
				}
				if err := s.remove(existing); err != nil {
					return nil, err
				}
				displaced = existing
			}
		}
		if mode == tupelo.DupReplace && displaced == nil {
			return nil, &tupelo.NotFoundError{Index: def}
		}
		if err := s.insert(new); err != nil {
			return nil, err
		}
	}
	return displaced, nil
}

func ensure(err error) {
	if err != nil {
		panic(err)
	}
}

// sliceIter is a positional iterator over a materialized tuple list.
type sliceIter struct {
	tuples []*tupelo.Tuple
	pos    int
}

func (it *sliceIter) Next() *tupelo.Tuple {
	if it.pos >= len(it.tuples) {
		return nil
	}
	t := it.tuples[it.pos]
	it.pos++
	return t
}
