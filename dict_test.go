package tupelo

import "testing"

func TestDictLookup(t *testing.T) {
	d := NewDict([]string{"id", "email", "name"})
	defer d.Unref()

	if no, ok := d.FieldNo("email"); !ok || no != 1 {
		t.Errorf("FieldNo(email) = (%d, %v), wanted (1, true)", no, ok)
	}
	if _, ok := d.FieldNo("missing"); ok {
		t.Errorf("FieldNo(missing) = ok, wanted not found")
	}
	if name := d.FieldName(2); name != "name" {
		t.Errorf("FieldName(2) = %q, wanted %q", name, "name")
	}
	if name := d.FieldName(9); name != "" {
		t.Errorf("FieldName(9) = %q, wanted empty", name)
	}
}

func TestDictSharedAcrossFormats(t *testing.T) {
	reg := newTestRegistry(t)
	dict := NewDict([]string{"a"})

	fields := []FieldDef{{Name: "a", Type: FieldTypeInteger}}
	keys := []*KeyDef{key(IndexHash, true, part(0, FieldTypeInteger))}
	f1 := must(reg.NewFormat(nil, keys, 0, fields, dict))
	f2 := must(reg.NewFormat(nil, keys, 0, fields, dict))
	dict.Unref() // formats keep it alive now

	if f1.Dict() != f2.Dict() {
		t.Fatalf("formats of one space do not share the dictionary")
	}
	f1.Delete()
	if no, ok := f2.Dict().FieldNo("a"); !ok || no != 0 {
		t.Fatalf("dictionary gone after deleting one of two formats")
	}
	f2.Delete()
}

func TestDictDuplicateNamePanics(t *testing.T) {
	defer func() {
		if recover() == nil {
			t.Fatalf("NewDict with duplicate names did not panic")
		}
	}()
	NewDict([]string{"a", "a"})
}
