package tupelo

// IndexKind selects one of the supported index variants.
type IndexKind uint8

const (
	IndexHash IndexKind = iota
	IndexTree
	IndexRTree
	IndexBitset
)

var indexKindNames = [...]string{
	IndexHash:   "HASH",
	IndexTree:   "TREE",
	IndexRTree:  "RTREE",
	IndexBitset: "BITSET",
}

func (k IndexKind) String() string {
	if int(k) < len(indexKindNames) {
		return indexKindNames[k]
	}
	return "unknown"
}

// KeyPart is one component of an index key: a 0-based field number, the
// expected field type and the nullability action to apply to the field.
type KeyPart struct {
	FieldNo        uint32
	Type           FieldType
	NullableAction NullableAction
}

func (p *KeyPart) IsNullable() bool {
	return p.NullableAction == ActionNone
}

// KeyDef describes one index of a space.
type KeyDef struct {
	Name     string
	IndexID  uint32
	SpaceID  uint32
	Kind     IndexKind
	IsUnique bool
	Parts    []KeyPart
}

// IsSequential reports whether the key parts cover fields 0, 1, ..., n-1
// in order. Such keys are walked linearly at index time and their parts
// never need offset slots in the field map.
func (kd *KeyDef) IsSequential() bool {
	for i := range kd.Parts {
		if kd.Parts[i].FieldNo != uint32(i) {
			return false
		}
	}
	return true
}

// MaxFieldNo returns 1 + the largest field number referenced by the key,
// or 0 if the key has no parts.
func (kd *KeyDef) MaxFieldNo() uint32 {
	var n uint32
	for i := range kd.Parts {
		if fn := kd.Parts[i].FieldNo + 1; fn > n {
			n = fn
		}
	}
	return n
}
