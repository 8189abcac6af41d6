package tupelo

import "fmt"

// DupMode controls how index replacement treats an existing tuple with
// the same key.
type DupMode uint8

const (
	// DupInsert fails when the new key is already taken by another
	// tuple.
	DupInsert DupMode = iota
	// DupReplace requires the old tuple to be present.
	DupReplace
	// DupReplaceOrInsert overwrites or inserts.
	DupReplaceOrInsert
)

// IterMode selects the iteration order and filter of an index iterator.
type IterMode uint8

const (
	IterAll IterMode = iota
	IterEQ
	IterGE
)

// Iterator is a positional cursor over index tuples. Next returns nil
// when the iterator is exhausted.
type Iterator interface {
	Next() *Tuple
}

// Index is the common capability set of the supported index variants.
// The variants themselves live in the memindex subpackage.
type Index interface {
	KeyDef() *KeyDef
	Len() int

	// Get returns the tuple matching the encoded key, or nil. The key
	// is a concatenation of encoded part values.
	Get(key []byte) (*Tuple, error)

	// Replace removes old (if not nil) and inserts new (if not nil) in
	// one step, returning the tuple actually displaced.
	Replace(old, new *Tuple, mode DupMode) (*Tuple, error)

	// Iterator positions a cursor according to mode and key.
	Iterator(mode IterMode, key []byte) (Iterator, error)
}

// DuplicateKeyError reports a unique index violation.
type DuplicateKeyError struct {
	Index *KeyDef
}

func (e *DuplicateKeyError) Error() string {
	return fmt.Sprintf("duplicate key in unique index %d of space %d",
		e.Index.IndexID, e.Index.SpaceID)
}

// NotFoundError reports a DupReplace with no tuple to replace.
type NotFoundError struct {
	Index *KeyDef
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("no tuple to replace in index %d of space %d",
		e.Index.IndexID, e.Index.SpaceID)
}
