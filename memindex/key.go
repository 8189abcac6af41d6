package memindex

import (
	"bytes"
	"strings"

	"github.com/tupelodb/tupelo"
	"github.com/vmihailenco/msgpack/v5"
	"github.com/vmihailenco/msgpack/v5/msgpcode"
)

// ExtractKey concatenates the raw encoded values of the key part fields
// of a tuple. A missing nullable field contributes an encoded nil.
func ExtractKey(t *tupelo.Tuple, def *tupelo.KeyDef) []byte {
	var key []byte
	for i := range def.Parts {
		el := t.Field(def.Parts[i].FieldNo)
		if el == nil {
			key = append(key, msgpcode.Nil)
			continue
		}
		key = append(key, el...)
	}
	return key
}

// compareKeys orders two encoded keys part by part, decoding each value
// according to its declared part type. nil sorts before every value.
func compareKeys(a, b []byte, parts []tupelo.KeyPart) int {
	da := msgpack.NewDecoder(bytes.NewReader(a))
	db := msgpack.NewDecoder(bytes.NewReader(b))
	for i := range parts {
		if c := comparePart(da, db, parts[i].Type); c != 0 {
			return c
		}
	}
	return 0
}

func comparePart(da, db *msgpack.Decoder, typ tupelo.FieldType) int {
	ca := must(da.PeekCode())
	cb := must(db.PeekCode())
	if ca == msgpcode.Nil || cb == msgpcode.Nil {
		if ca == cb {
			ensure(da.Skip())
			ensure(db.Skip())
			return 0
		}
		if ca == msgpcode.Nil {
			ensure(da.Skip())
			return -1
		}
		ensure(db.Skip())
		return 1
	}
	switch typ {
	case tupelo.FieldTypeUnsigned:
		return cmpOrdered(must(da.DecodeUint64()), must(db.DecodeUint64()))
	case tupelo.FieldTypeInteger:
		return cmpOrdered(must(da.DecodeInt64()), must(db.DecodeInt64()))
	case tupelo.FieldTypeNumber:
		return cmpOrdered(must(da.DecodeFloat64()), must(db.DecodeFloat64()))
	case tupelo.FieldTypeString:
		return strings.Compare(must(da.DecodeString()), must(db.DecodeString()))
	case tupelo.FieldTypeBoolean:
		return cmpBool(must(da.DecodeBool()), must(db.DecodeBool()))
	case tupelo.FieldTypeVarbinary:
		return bytes.Compare(must(da.DecodeBytes()), must(db.DecodeBytes()))
	default:
		return bytes.Compare(rawElement(da), rawElement(db))
	}
}

func cmpOrdered[T int64 | uint64 | float64](a, b T) int {
	switch {
	case a < b:
		return -1
	case a > b:
		return 1
	default:
		return 0
	}
}

func cmpBool(a, b bool) int {
	switch {
	case a == b:
		return 0
	case !a:
		return -1
	default:
		return 1
	}
}

func rawElement(d *msgpack.Decoder) []byte {
	return must(d.DecodeRaw())
}

func must[T any](v T, err error) T {
	if err != nil {
		panic(err)
	}
	return v
}
