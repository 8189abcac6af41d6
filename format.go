package tupelo

import (
	"fmt"
	"math"
	"slices"
)

// OffsetSlotNil marks a field that has no slot in the field map. Real
// slots are negative and index backward from the end of the map.
const OffsetSlotNil int32 = math.MaxInt32

// TupleField is the per-field record of a format: the effective type and
// nullability merged from the space definition and all key parts, and
// the field's offset slot, if any.
type TupleField struct {
	Type           FieldType
	OffsetSlot     int32
	IsKeyPart      bool
	NullableAction NullableAction
}

func (f *TupleField) IsNullable() bool {
	return f.NullableAction == ActionNone
}

var tupleFieldDefault = TupleField{FieldTypeAny, OffsetSlotNil, false, ActionDefault}

// TupleFormat is the per-space layout descriptor. It is produced by a
// FormatRegistry, reference-counted by its holders, and deleted when the
// last reference is dropped.
type TupleFormat struct {
	Vtab TupleVtab

	reg  *FormatRegistry
	id   uint16
	refs int32
	dict *Dict

	FieldCount      uint32
	IndexFieldCount uint32
	ExactFieldCount uint32
	MinFieldCount   uint32
	FieldMapSize    uint32
	ExtraSize       uint16
	Fields          []TupleField
}

func (f *TupleFormat) ID() uint16 {
	return f.id
}

func (f *TupleFormat) Dict() *Dict {
	return f.dict
}

// NewFormat builds and registers a format from the space field
// definitions and the key definitions of all its indexes. A nil dict is
// only valid with no space fields; a fresh empty dictionary is created
// for it. A nil vtab selects the runtime allocator.
func (reg *FormatRegistry) NewFormat(vtab TupleVtab, keys []*KeyDef, extraSize uint16, spaceFields []FieldDef, dict *Dict) (*TupleFormat, error) {
	if dict != nil && dict.Len() != len(spaceFields) {
		panic(fmt.Errorf("dictionary has %d names for %d space fields", dict.Len(), len(spaceFields)))
	}
	f := allocFormat(reg, keys, uint32(len(spaceFields)), dict)
	if vtab == nil {
		vtab = RuntimeVtab
	}
	f.Vtab = vtab
	f.ExtraSize = extraSize
	if err := reg.register(f); err != nil {
		f.destroy()
		return nil, err
	}
	if err := f.create(keys, spaceFields); err != nil {
		f.Delete()
		return nil, err
	}
	return f, nil
}

func allocFormat(reg *FormatRegistry, keys []*KeyDef, spaceFieldCount uint32, dict *Dict) *TupleFormat {
	var indexFieldCount uint32
	for _, kd := range keys {
		if n := kd.MaxFieldNo(); n > indexFieldCount {
			indexFieldCount = n
		}
	}
	fieldCount := max(spaceFieldCount, indexFieldCount)
	if dict == nil {
		if spaceFieldCount != 0 {
			panic("space fields without a dictionary")
		}
		dict = NewDict(nil)
	} else {
		dict.Ref()
	}
	return &TupleFormat{
		reg:             reg,
		id:              FormatIDNil,
		dict:            dict,
		FieldCount:      fieldCount,
		IndexFieldCount: indexFieldCount,
		MinFieldCount:   indexFieldCount,
		Fields:          make([]TupleField, fieldCount),
	}
}

// create extracts all available type info from the keys and the space
// field definitions, assigning offset slots to every field of a
// non-sequential key in first-encounter order.
func (f *TupleFormat) create(keys []*KeyDef, spaceFields []FieldDef) error {
	if f.FieldCount == 0 {
		f.FieldMapSize = 0
		return nil
	}
	for i := range spaceFields {
		def := &spaceFields[i]
		f.Fields[i] = TupleField{
			Type:           def.Type,
			OffsetSlot:     OffsetSlotNil,
			NullableAction: def.NullableAction,
		}
		if uint32(i)+1 > f.MinFieldCount && !def.IsNullable {
			f.MinFieldCount = uint32(i) + 1
		}
	}
	for i := len(spaceFields); i < int(f.FieldCount); i++ {
		f.Fields[i] = tupleFieldDefault
	}

	var curSlot int32

	for _, kd := range keys {
		isSequential := kd.IsSequential()
		for pi := range kd.Parts {
			part := &kd.Parts[pi]
			field := &f.Fields[part.FieldNo]
			if int(part.FieldNo) >= len(spaceFields) {
				field.NullableAction = part.NullableAction
			} else {
				if field.IsNullable() != part.IsNullable() {
					return clientErrf(ErrNullableMismatch, int(part.FieldNo)+1,
						"field %d is %s in space format, but %s in index parts",
						part.FieldNo+1, nullability(field.IsNullable()),
						nullability(part.IsNullable()))
				}
				if field.NullableAction == ActionDefault &&
					part.NullableAction != ActionNone &&
					part.NullableAction != ActionDefault {
					field.NullableAction = part.NullableAction
				} else if field.NullableAction != part.NullableAction &&
					part.NullableAction != ActionDefault {
					return clientErrf(ErrActionMismatch, int(part.FieldNo)+1,
						"field %d has conflicting nullability actions: %s vs %s",
						part.FieldNo+1, field.NullableAction, part.NullableAction)
				}
			}

			if field.Type == FieldTypeAny {
				field.Type = part.Type
			} else if field.Type != part.Type {
				name := fmt.Sprintf("%d", part.FieldNo+1)
				if int(part.FieldNo) < len(spaceFields) {
					name = fmt.Sprintf("%q", spaceFields[part.FieldNo].Name)
				}
				if !field.IsKeyPart {
					return clientErrf(ErrFormatMismatchIndexPart, int(part.FieldNo)+1,
						"field %s has type %s in space format, but type %s in index definition",
						name, field.Type, part.Type)
				}
				return clientErrf(ErrIndexPartTypeMismatch, int(part.FieldNo)+1,
					"field %s has type %s in one index, but type %s in another",
					name, field.Type, part.Type)
			}
			field.IsKeyPart = true

			// Only fields of non-sequential keys need stored offsets;
			// field 0 sits right past the array header.
			if field.OffsetSlot == OffsetSlotNil && !isSequential && part.FieldNo > 0 {
				curSlot--
				field.OffsetSlot = curSlot
			}
		}
	}

	fieldMapSize := uint32(-curSlot) * 4
	if fieldMapSize+uint32(f.ExtraSize) > math.MaxUint16 {
		// The tuple data offset is 16 bits.
		return clientErrf(ErrIndexFieldCountLimit, 0,
			"%d index fields exceed the tuple offset map limit", -curSlot)
	}
	f.FieldMapSize = fieldMapSize
	return nil
}

func nullability(nullable bool) string {
	if nullable {
		return "nullable"
	}
	return "not nullable"
}

// Eq reports structural equality of two formats. The dictionary is not
// part of equality.
func (f *TupleFormat) Eq(other *TupleFormat) bool {
	if f.FieldMapSize != other.FieldMapSize || f.FieldCount != other.FieldCount {
		return false
	}
	for i := range f.Fields {
		a, b := &f.Fields[i], &other.Fields[i]
		if a.Type != b.Type || a.OffsetSlot != b.OffsetSlot {
			return false
		}
		if a.IsKeyPart != b.IsKeyPart {
			return false
		}
		if a.IsNullable() != b.IsNullable() {
			return false
		}
	}
	return true
}

// Dup produces an independently registered duplicate with a fresh id,
// zero references and a shared dictionary.
func (f *TupleFormat) Dup() (*TupleFormat, error) {
	dup := &TupleFormat{
		Vtab:            f.Vtab,
		reg:             f.reg,
		id:              FormatIDNil,
		dict:            f.dict,
		FieldCount:      f.FieldCount,
		IndexFieldCount: f.IndexFieldCount,
		ExactFieldCount: f.ExactFieldCount,
		MinFieldCount:   f.MinFieldCount,
		FieldMapSize:    f.FieldMapSize,
		ExtraSize:       f.ExtraSize,
		Fields:          slices.Clone(f.Fields),
	}
	dup.dict.Ref()
	if err := f.reg.register(dup); err != nil {
		dup.destroy()
		return nil, err
	}
	return dup, nil
}

func (f *TupleFormat) Ref() {
	f.refs++
}

// Unref drops one reference and deletes the format when the count
// reaches zero.
func (f *TupleFormat) Unref() {
	if f.refs <= 0 {
		panic("tuple format reference count underflow")
	}
	f.refs--
	if f.refs == 0 {
		f.Delete()
	}
}

// Delete deregisters the format, releases the dictionary and invalidates
// the id.
func (f *TupleFormat) Delete() {
	f.reg.deregister(f)
	f.destroy()
}

// destroy frees format resources without touching the registry.
func (f *TupleFormat) destroy() {
	f.dict.Unref()
	f.dict = nil
}
