package memindex

import (
	"fmt"

	"github.com/google/btree"
	"github.com/tupelodb/tupelo"
)

const treeDegree = 32

// treeIndex keeps tuples ordered by decoded key part values. Duplicates
// in a non-unique tree are told apart by an insertion sequence number.
type treeIndex struct {
	def     *tupelo.KeyDef
	bt      *btree.BTreeG[treeItem]
	seqs    map[*tupelo.Tuple]uint64
	nextSeq uint64
}

type treeItem struct {
	key []byte
	seq uint64
	t   *tupelo.Tuple
}

func newTreeIndex(def *tupelo.KeyDef) *treeIndex {
	idx := &treeIndex{
		def:  def,
		seqs: make(map[*tupelo.Tuple]uint64),
	}
	idx.bt = btree.NewG(treeDegree, func(a, b treeItem) bool {
		if c := compareKeys(a.key, b.key, def.Parts); c != 0 {
			return c < 0
		}
		if def.IsUnique {
			return false
		}
		return a.seq < b.seq
	})
	return idx
}

func (idx *treeIndex) KeyDef() *tupelo.KeyDef {
	return idx.def
}

func (idx *treeIndex) Len() int {
	return idx.bt.Len()
}

func (idx *treeIndex) Get(key []byte) (*tupelo.Tuple, error) {
	return idx.getByKey(key), nil
}

func (idx *treeIndex) getByKey(key []byte) *tupelo.Tuple {
	var found *tupelo.Tuple
	idx.bt.AscendGreaterOrEqual(treeItem{key: key}, func(item treeItem) bool {
		if compareKeys(item.key, key, idx.def.Parts) == 0 {
			found = item.t
		}
		return false
	})
	return found
}

func (idx *treeIndex) insert(t *tupelo.Tuple) error {
	seq := idx.nextSeq
	idx.nextSeq++
	idx.seqs[t] = seq
	idx.bt.ReplaceOrInsert(treeItem{key: ExtractKey(t, idx.def), seq: seq, t: t})
	return nil
}

func (idx *treeIndex) remove(t *tupelo.Tuple) error {
	seq, ok := idx.seqs[t]
	if !ok {
		return fmt.Errorf("tuple is missing from TREE index %d", idx.def.IndexID)
	}
	delete(idx.seqs, t)
	idx.bt.Delete(treeItem{key: ExtractKey(t, idx.def), seq: seq})
	return nil
}

func (idx *treeIndex) Replace(old, new *tupelo.Tuple, mode tupelo.DupMode) (*tupelo.Tuple, error) {
	return replace(idx.def, idx, old, new, mode)
}

func (idx *treeIndex) Iterator(mode tupelo.IterMode, key []byte) (tupelo.Iterator, error) {
	var tuples []*tupelo.Tuple
	switch mode {
	case tupelo.IterAll:
		idx.bt.Ascend(func(item treeItem) bool {
			tuples = append(tuples, item.t)
			return true
		})
	case tupelo.IterEQ:
		idx.bt.AscendGreaterOrEqual(treeItem{key: key}, func(item treeItem) bool {
			if compareKeys(item.key, key, idx.def.Parts) != 0 {
				return false
			}
			tuples = append(tuples, item.t)
			return true
		})
	case tupelo.IterGE:
		idx.bt.AscendGreaterOrEqual(treeItem{key: key}, func(item treeItem) bool {
			tuples = append(tuples, item.t)
			return true
		})
	default:
		return nil, fmt.Errorf("unsupported iterator mode %d", mode)
	}
	return &sliceIter{tuples: tuples}, nil
}
