package tupelo

import "fmt"

// Dict is a reference-counted field name dictionary shared by all
// formats of a space. Names map to 0-based field numbers.
type Dict struct {
	refs   int32
	names  []string
	byName map[string]uint32
}

// NewDict builds a dictionary from an ordered name list. The caller owns
// the initial reference.
func NewDict(names []string) *Dict {
	d := &Dict{
		refs:   1,
		names:  append([]string(nil), names...),
		byName: make(map[string]uint32, len(names)),
	}
	for i, name := range names {
		if _, dup := d.byName[name]; dup {
			panic(fmt.Errorf("duplicate field name %q", name))
		}
		d.byName[name] = uint32(i)
	}
	return d
}

func (d *Dict) Len() int {
	return len(d.names)
}

func (d *Dict) FieldNo(name string) (uint32, bool) {
	no, ok := d.byName[name]
	return no, ok
}

func (d *Dict) FieldName(no uint32) string {
	if int(no) >= len(d.names) {
		return ""
	}
	return d.names[no]
}

func (d *Dict) Ref() {
	d.refs++
}

func (d *Dict) Unref() {
	if d.refs <= 0 {
		panic("dictionary reference count underflow")
	}
	d.refs--
	if d.refs == 0 {
		d.names = nil
		d.byName = nil
	}
}
