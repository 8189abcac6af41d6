package tupelo

import "github.com/vmihailenco/msgpack/v5/msgpcode"

// FieldType is the declared type of a tuple field. FieldTypeAny matches
// any encoded value; every other type demands its msgpack tag class.
type FieldType uint8

const (
	FieldTypeAny FieldType = iota
	FieldTypeUnsigned
	FieldTypeString
	FieldTypeNumber
	FieldTypeInteger
	FieldTypeBoolean
	FieldTypeVarbinary
	FieldTypeArray
	FieldTypeMap
)

var fieldTypeNames = [...]string{
	FieldTypeAny:       "any",
	FieldTypeUnsigned:  "unsigned",
	FieldTypeString:    "string",
	FieldTypeNumber:    "number",
	FieldTypeInteger:   "integer",
	FieldTypeBoolean:   "boolean",
	FieldTypeVarbinary: "varbinary",
	FieldTypeArray:     "array",
	FieldTypeMap:       "map",
}

func (t FieldType) String() string {
	if int(t) < len(fieldTypeNames) {
		return fieldTypeNames[t]
	}
	return "unknown"
}

// Matches reports whether an encoded element with the given msgpack code
// is acceptable for the field type. A nullable field additionally accepts
// nil.
func (t FieldType) Matches(code byte, nullable bool) bool {
	if nullable && code == msgpcode.Nil {
		return true
	}
	switch t {
	case FieldTypeAny:
		return true
	case FieldTypeUnsigned:
		return isUintCode(code)
	case FieldTypeInteger:
		return isUintCode(code) || isIntCode(code)
	case FieldTypeNumber:
		return isUintCode(code) || isIntCode(code) ||
			code == msgpcode.Float || code == msgpcode.Double
	case FieldTypeString:
		return msgpcode.IsString(code)
	case FieldTypeBoolean:
		return code == msgpcode.True || code == msgpcode.False
	case FieldTypeVarbinary:
		return msgpcode.IsBin(code)
	case FieldTypeArray:
		return msgpcode.IsFixedArray(code) ||
			code == msgpcode.Array16 || code == msgpcode.Array32
	case FieldTypeMap:
		return msgpcode.IsFixedMap(code) ||
			code == msgpcode.Map16 || code == msgpcode.Map32
	}
	return false
}

func isUintCode(code byte) bool {
	return code <= msgpcode.PosFixedNumHigh ||
		(code >= msgpcode.Uint8 && code <= msgpcode.Uint64)
}

func isIntCode(code byte) bool {
	return code >= msgpcode.NegFixedNumLow ||
		(code >= msgpcode.Int8 && code <= msgpcode.Int64)
}

// mpTypeName names the encoded type class of a msgpack code for error
// messages.
func mpTypeName(code byte) string {
	switch {
	case code == msgpcode.Nil:
		return "nil"
	case isUintCode(code):
		return "unsigned"
	case isIntCode(code):
		return "integer"
	case code == msgpcode.Float || code == msgpcode.Double:
		return "number"
	case msgpcode.IsString(code):
		return "string"
	case msgpcode.IsBin(code):
		return "varbinary"
	case code == msgpcode.True || code == msgpcode.False:
		return "boolean"
	case msgpcode.IsFixedArray(code) || code == msgpcode.Array16 || code == msgpcode.Array32:
		return "array"
	case msgpcode.IsFixedMap(code) || code == msgpcode.Map16 || code == msgpcode.Map32:
		return "map"
	default:
		return "extension"
	}
}

// NullableAction says what to do when a field is missing or nil.
// ActionDefault is the unset value; two actions match iff they are equal
// or either is ActionDefault.
type NullableAction uint8

const (
	ActionDefault NullableAction = iota
	ActionNone
	ActionAbort
	ActionFail
	ActionIgnore
	ActionReplace
)

var nullableActionNames = [...]string{
	ActionDefault: "default",
	ActionNone:    "none",
	ActionAbort:   "abort",
	ActionFail:    "fail",
	ActionIgnore:  "ignore",
	ActionReplace: "replace",
}

func (a NullableAction) String() string {
	if int(a) < len(nullableActionNames) {
		return nullableActionNames[a]
	}
	return "unknown"
}

// FieldDef is a space-level field definition.
type FieldDef struct {
	Name           string
	Type           FieldType
	IsNullable     bool
	NullableAction NullableAction
}
