package tupelo

// Space is a table of tuples sharing one format and a set of indexes.
// Index 0 is the primary key.
type Space struct {
	ID   uint32
	Name string

	engine  *Instance
	format  *TupleFormat
	indexes []Index

	// pending accumulates tuples inserted before the primary key is
	// built (recovery bookkeeping).
	pending []*Tuple
}

// NewSpace creates a space on the given engine instance, constructing
// an index for every key definition. The space takes a reference on the
// format.
func NewSpace(in *Instance, id uint32, name string, format *TupleFormat, keys []*KeyDef) (*Space, error) {
	indexes := make([]Index, 0, len(keys))
	for _, kd := range keys {
		idx, err := in.engine.CreateIndex(kd)
		if err != nil {
			return nil, err
		}
		indexes = append(indexes, idx)
	}
	format.Ref()
	return &Space{
		ID:      id,
		Name:    name,
		engine:  in,
		format:  format,
		indexes: indexes,
	}, nil
}

func (sp *Space) Format() *TupleFormat {
	return sp.format
}

func (sp *Space) PrimaryKey() Index {
	return sp.indexes[0]
}

func (sp *Space) Index(i int) Index {
	return sp.indexes[i]
}

func (sp *Space) IndexCount() int {
	return len(sp.indexes)
}

// Get looks a tuple up by primary key.
func (sp *Space) Get(key []byte) (*Tuple, error) {
	return sp.indexes[0].Get(key)
}

// Replace removes old and installs new, routed through the engine's
// recovery state. Returns the tuple actually displaced.
func (sp *Space) Replace(old, new *Tuple, mode DupMode) (*Tuple, error) {
	return sp.engine.Replace(sp, old, new, mode)
}

// Recover advances the space through the engine's current recovery
// stage.
func (sp *Space) Recover() error {
	return sp.engine.Recover(sp)
}

// Drop releases every index's tuple references and the space's format
// reference.
func (sp *Space) Drop() error {
	for _, idx := range sp.indexes {
		if err := sp.engine.engine.DropIndex(idx); err != nil {
			return err
		}
	}
	for _, t := range sp.pending {
		t.Unref()
	}
	sp.pending = nil
	sp.format.Unref()
	sp.format = nil
	return nil
}

// replaceNoKeys is the replace behavior before any key is built: no
// index maintenance, only bookkeeping of inserted tuples.
func (sp *Space) replaceNoKeys(old, new *Tuple, mode DupMode) (*Tuple, error) {
	if new != nil {
		new.Ref()
		sp.pending = append(sp.pending, new)
	}
	return old, nil
}

// replacePrimaryKey maintains the primary key only, used while xlogs
// replay.
func (sp *Space) replacePrimaryKey(old, new *Tuple, mode DupMode) (*Tuple, error) {
	displaced, err := sp.indexes[0].Replace(old, new, mode)
	if err != nil {
		return nil, err
	}
	if new != nil {
		new.Ref()
	}
	if displaced != nil {
		displaced.Unref()
	}
	return displaced, nil
}

// replaceAllKeys maintains every index: primary first, then each
// secondary, rolling the already-updated indexes back if one fails.
func (sp *Space) replaceAllKeys(old, new *Tuple, mode DupMode) (*Tuple, error) {
	pk := sp.indexes[0]
	displaced, err := pk.Replace(old, new, mode)
	if err != nil {
		return nil, err
	}
	old = displaced
	for i := 1; i < len(sp.indexes); i++ {
		if _, err := sp.indexes[i].Replace(old, new, DupInsert); err != nil {
			for j := i - 1; j >= 1; j-- {
				_, undoErr := sp.indexes[j].Replace(new, old, DupInsert)
				ensure(undoErr)
			}
			_, undoErr := pk.Replace(new, old, DupReplaceOrInsert)
			ensure(undoErr)
			return nil, err
		}
	}
	if new != nil {
		for range sp.indexes {
			new.Ref()
		}
	}
	if old != nil {
		for range sp.indexes {
			old.Unref()
		}
	}
	return old, nil
}

func (sp *Space) beginBuildPrimaryKey() error {
	sp.engine.engine.logf("space %q: begin building primary key", sp.Name)
	return nil
}

// buildPrimaryKey moves the accumulated tuples into the primary key.
// The bookkeeping reference becomes the index's.
func (sp *Space) buildPrimaryKey() error {
	pk := sp.indexes[0]
	for _, t := range sp.pending {
		if _, err := pk.Replace(nil, t, DupInsert); err != nil {
			return err
		}
	}
	sp.pending = nil
	return nil
}

// buildAllKeys fills every secondary key from the primary.
func (sp *Space) buildAllKeys() error {
	pk := sp.indexes[0]
	for i := 1; i < len(sp.indexes); i++ {
		it, err := pk.Iterator(IterAll, nil)
		if err != nil {
			return err
		}
		for t := it.Next(); t != nil; t = it.Next() {
			if _, err := sp.indexes[i].Replace(nil, t, DupInsert); err != nil {
				return err
			}
			t.Ref()
		}
	}
	return nil
}
