package memindex_test

import (
	"testing"

	"github.com/stretchr/testify/require"
	"github.com/vmihailenco/msgpack/v5"

	"github.com/tupelodb/tupelo"
	"github.com/tupelodb/tupelo/memindex"
)

func mp(t *testing.T, vals ...any) []byte {
	t.Helper()
	data, err := msgpack.Marshal(vals)
	if err != nil {
		t.Fatal(err)
	}
	return data
}

func mpKey(t *testing.T, vals ...any) []byte {
	t.Helper()
	var key []byte
	for _, v := range vals {
		el, err := msgpack.Marshal(v)
		if err != nil {
			t.Fatal(err)
		}
		key = append(key, el...)
	}
	return key
}

func newFormat(t *testing.T, keys []*tupelo.KeyDef) *tupelo.TupleFormat {
	t.Helper()
	reg := tupelo.NewFormatRegistry()
	t.Cleanup(reg.FreeAll)
	f, err := reg.NewFormat(nil, keys, 0, nil, nil)
	require.NoError(t, err)
	return f
}

func newTuple(t *testing.T, f *tupelo.TupleFormat, vals ...any) *tupelo.Tuple {
	t.Helper()
	tup, err := f.NewTuple(mp(t, vals...))
	require.NoError(t, err)
	return tup
}

func hashDef() *tupelo.KeyDef {
	return &tupelo.KeyDef{
		Name: "primary", IndexID: 0, SpaceID: 512,
		Kind: tupelo.IndexHash, IsUnique: true,
		Parts: []tupelo.KeyPart{{FieldNo: 0, Type: tupelo.FieldTypeUnsigned}},
	}
}

func TestHashIndex(t *testing.T) {
	def := hashDef()
	f := newFormat(t, []*tupelo.KeyDef{def})
	idx, err := memindex.New(def)
	require.NoError(t, err)

	t1 := newTuple(t, f, 1, "one")
	t2 := newTuple(t, f, 2, "two")

	_, err = idx.Replace(nil, t1, tupelo.DupInsert)
	require.NoError(t, err)
	_, err = idx.Replace(nil, t2, tupelo.DupInsert)
	require.NoError(t, err)
	require.Equal(t, 2, idx.Len())

	got, err := idx.Get(mpKey(t, 2))
	require.NoError(t, err)
	require.Same(t, t2, got)

	// A different tuple with a taken key is rejected under DupInsert.
	t2b := newTuple(t, f, 2, "deux")
	_, err = idx.Replace(nil, t2b, tupelo.DupInsert)
	var dup *tupelo.DuplicateKeyError
	require.ErrorAs(t, err, &dup)
	require.Equal(t, 2, idx.Len())

	// ...and displaces it under DupReplace.
	displaced, err := idx.Replace(nil, t2b, tupelo.DupReplace)
	require.NoError(t, err)
	require.Same(t, t2, displaced)

	got, err = idx.Get(mpKey(t, 2))
	require.NoError(t, err)
	require.Same(t, t2b, got)

	// Updating a tuple in place keeps the key reachable.
	t1b := newTuple(t, f, 1, "uno")
	displaced, err = idx.Replace(t1, t1b, tupelo.DupInsert)
	require.NoError(t, err)
	require.Same(t, t1, displaced)

	it, err := idx.Iterator(tupelo.IterAll, nil)
	require.NoError(t, err)
	var n int
	for tup := it.Next(); tup != nil; tup = it.Next() {
		n++
	}
	require.Equal(t, 2, n)

	_, err = idx.Iterator(tupelo.IterGE, mpKey(t, 1))
	require.Error(t, err)
}

func TestTreeIndexOrdering(t *testing.T) {
	def := &tupelo.KeyDef{
		Name: "by_name", IndexID: 1, SpaceID: 512,
		Kind: tupelo.IndexTree,
		Parts: []tupelo.KeyPart{
			{FieldNo: 1, Type: tupelo.FieldTypeString},
			{FieldNo: 0, Type: tupelo.FieldTypeUnsigned},
		},
	}
	f := newFormat(t, []*tupelo.KeyDef{def})
	idx, err := memindex.New(def)
	require.NoError(t, err)

	tuples := []*tupelo.Tuple{
		newTuple(t, f, 3, "cherry"),
		newTuple(t, f, 1, "apple"),
		newTuple(t, f, 2, "banana"),
		newTuple(t, f, 4, "banana"),
	}
	for _, tup := range tuples {
		_, err := idx.Replace(nil, tup, tupelo.DupInsert)
		require.NoError(t, err)
	}
	require.Equal(t, 4, idx.Len())

	it, err := idx.Iterator(tupelo.IterAll, nil)
	require.NoError(t, err)
	var names []string
	var ids []uint64
	for tup := it.Next(); tup != nil; tup = it.Next() {
		var vals []any
		require.NoError(t, msgpack.Unmarshal(tup.Data(), &vals))
		names = append(names, vals[1].(string))
		ids = append(ids, toUint64(vals[0]))
	}
	require.Equal(t, []string{"apple", "banana", "banana", "cherry"}, names)
	require.Equal(t, []uint64{1, 2, 4, 3}, ids)

	// Range scan from a pivot key.
	it, err = idx.Iterator(tupelo.IterGE, mpKey(t, "banana", 3))
	require.NoError(t, err)
	var rest int
	for tup := it.Next(); tup != nil; tup = it.Next() {
		rest++
	}
	require.Equal(t, 2, rest) // banana/4 and cherry/3

	it, err = idx.Iterator(tupelo.IterEQ, mpKey(t, "banana", 2))
	require.NoError(t, err)
	tup := it.Next()
	require.NotNil(t, tup)
	require.Nil(t, it.Next())
}

func toUint64(v any) uint64 {
	switch n := v.(type) {
	case uint64:
		return n
	case int64:
		return uint64(n)
	case int8:
		return uint64(n)
	case uint8:
		return uint64(n)
	case int16:
		return uint64(n)
	case uint16:
		return uint64(n)
	case int32:
		return uint64(n)
	case uint32:
		return uint64(n)
	case int:
		return uint64(n)
	default:
		panic("unexpected numeric type")
	}
}

func TestRTreeIndex(t *testing.T) {
	def := &tupelo.KeyDef{
		Name: "spatial", IndexID: 1, SpaceID: 512,
		Kind:  tupelo.IndexRTree,
		Parts: []tupelo.KeyPart{{FieldNo: 1, Type: tupelo.FieldTypeArray}},
	}
	f := newFormat(t, []*tupelo.KeyDef{def})
	idx, err := memindex.New(def)
	require.NoError(t, err)

	p1 := newTuple(t, f, 1, []float64{1, 1})
	p2 := newTuple(t, f, 2, []float64{5, 5})
	box := newTuple(t, f, 3, []float64{0, 0, 10, 10})
	for _, tup := range []*tupelo.Tuple{p1, p2, box} {
		_, err := idx.Replace(nil, tup, tupelo.DupInsert)
		require.NoError(t, err)
	}
	require.Equal(t, 3, idx.Len())

	got, err := idx.Get(mpKey(t, []float64{5, 5}))
	require.NoError(t, err)
	require.Same(t, p2, got)

	it, err := idx.Iterator(tupelo.IterEQ, mpKey(t, []float64{0, 0, 10, 10}))
	require.NoError(t, err)
	require.Same(t, box, it.Next())
	require.Nil(t, it.Next())

	_, err = idx.Replace(p1, nil, tupelo.DupInsert)
	require.NoError(t, err)
	require.Equal(t, 2, idx.Len())
}

func TestBitsetIndex(t *testing.T) {
	def := &tupelo.KeyDef{
		Name: "flags", IndexID: 1, SpaceID: 512,
		Kind:  tupelo.IndexBitset,
		Parts: []tupelo.KeyPart{{FieldNo: 1, Type: tupelo.FieldTypeUnsigned}},
	}
	f := newFormat(t, []*tupelo.KeyDef{def})
	idx, err := memindex.New(def)
	require.NoError(t, err)

	t1 := newTuple(t, f, 1, 0b0011)
	t2 := newTuple(t, f, 2, 0b0110)
	t3 := newTuple(t, f, 3, 0b0111)
	for _, tup := range []*tupelo.Tuple{t1, t2, t3} {
		_, err := idx.Replace(nil, tup, tupelo.DupInsert)
		require.NoError(t, err)
	}
	require.Equal(t, 3, idx.Len())

	// Tuples whose value has all bits of the query set.
	it, err := idx.Iterator(tupelo.IterEQ, mpKey(t, 0b0110))
	require.NoError(t, err)
	var matched []*tupelo.Tuple
	for tup := it.Next(); tup != nil; tup = it.Next() {
		matched = append(matched, tup)
	}
	require.Equal(t, []*tupelo.Tuple{t2, t3}, matched)

	_, err = idx.Replace(t3, nil, tupelo.DupInsert)
	require.NoError(t, err)
	it, err = idx.Iterator(tupelo.IterEQ, mpKey(t, 0b0110))
	require.NoError(t, err)
	require.Same(t, t2, it.Next())
	require.Nil(t, it.Next())
}

func TestSpaceEndToEnd(t *testing.T) {
	e := tupelo.New(tupelo.Options{NewIndex: memindex.New})
	t.Cleanup(e.Formats().FreeAll)
	e.EndRecoverSnapshot()
	e.EndRecovery()

	primary := hashDef()
	secondary := &tupelo.KeyDef{
		Name: "by_name", IndexID: 1, SpaceID: 512,
		Kind:  tupelo.IndexTree,
		Parts: []tupelo.KeyPart{{FieldNo: 1, Type: tupelo.FieldTypeString}},
	}
	keys := []*tupelo.KeyDef{primary, secondary}
	f, err := e.Formats().NewFormat(nil, keys, 0, nil, nil)
	require.NoError(t, err)
	sp, err := tupelo.NewSpace(e.Open(), 512, "users", f, keys)
	require.NoError(t, err)

	t1 := newTupleIn(t, sp, 1, "ada")
	t2 := newTupleIn(t, sp, 2, "grace")

	_, err = sp.Replace(nil, t1, tupelo.DupInsert)
	require.NoError(t, err)
	_, err = sp.Replace(nil, t2, tupelo.DupInsert)
	require.NoError(t, err)
	require.EqualValues(t, 2, t1.Refs()) // one per index

	got, err := sp.Get(mpKey(t, 1))
	require.NoError(t, err)
	require.Same(t, t1, got)

	got, err = sp.Index(1).Get(mpKey(t, "grace"))
	require.NoError(t, err)
	require.Same(t, t2, got)

	// A primary-key conflict leaves both indexes untouched.
	t1b := newTupleIn(t, sp, 1, "ada lovelace")
	_, err = sp.Replace(nil, t1b, tupelo.DupInsert)
	var dup *tupelo.DuplicateKeyError
	require.ErrorAs(t, err, &dup)
	require.Equal(t, 2, sp.PrimaryKey().Len())
	require.Equal(t, 2, sp.Index(1).Len())

	// Update through the primary key.
	displaced, err := sp.Replace(t1, t1b, tupelo.DupReplaceOrInsert)
	require.NoError(t, err)
	require.Same(t, t1, displaced)
	require.EqualValues(t, 0, t1.Refs())
	got, err = sp.Index(1).Get(mpKey(t, "ada lovelace"))
	require.NoError(t, err)
	require.Same(t, t1b, got)

	require.NoError(t, sp.Drop())
	require.EqualValues(t, 0, t2.Refs())
}

func newTupleIn(t *testing.T, sp *tupelo.Space, vals ...any) *tupelo.Tuple {
	t.Helper()
	tup, err := sp.Format().NewTuple(mp(t, vals...))
	require.NoError(t, err)
	return tup
}
