package tupelo

import "fmt"

// EngineFlags describe engine capabilities to the host.
type EngineFlags uint8

const (
	EngineTransactional EngineFlags = 1 << iota
	EngineNoYield
	EngineCanBeTemporary
)

// Options configure an engine.
type Options struct {
	// Logf receives occasional progress messages. Nil disables logging.
	Logf func(format string, args ...any)

	// NewIndex constructs an index variant for a validated key
	// definition. Usually memindex.New.
	NewIndex func(def *KeyDef) (Index, error)
}

// Engine is the in-memory engine façade: it owns the format registry,
// builds and validates indexes, drives per-space recovery and undoes
// transactions.
//
// The engine is single-threaded and cooperative (EngineNoYield): no
// method suspends or blocks, so no locking is needed anywhere below.
type Engine struct {
	flags    EngineFlags
	opts     Options
	formats  *FormatRegistry
	recovery RecoveryState
}

func New(opts Options) *Engine {
	return &Engine{
		flags:   EngineTransactional | EngineNoYield | EngineCanBeTemporary,
		opts:    opts,
		formats: NewFormatRegistry(),
	}
}

func (e *Engine) Flags() EngineFlags {
	return e.flags
}

func (e *Engine) Formats() *FormatRegistry {
	return e.formats
}

func (e *Engine) RecoveryState() RecoveryState {
	return e.recovery
}

func (e *Engine) logf(format string, args ...any) {
	if e.opts.Logf != nil {
		e.opts.Logf(format, args...)
	}
}

// Open returns a new engine instance for one space.
func (e *Engine) Open() *Instance {
	return &Instance{engine: e}
}

// CheckKeyDef validates a key definition against the per-variant
// constraints without constructing an index.
func (e *Engine) CheckKeyDef(def *KeyDef) error {
	switch def.Kind {
	case IndexHash:
		if !def.IsUnique {
			return modifyIndexErr(def, "HASH index must be unique")
		}
	case IndexTree:
		// TREE index has no limitations.
	case IndexRTree:
		if len(def.Parts) != 1 {
			return modifyIndexErr(def, "RTREE index key can not be multipart")
		}
		if def.IsUnique {
			return modifyIndexErr(def, "RTREE index can not be unique")
		}
	case IndexBitset:
		if len(def.Parts) != 1 {
			return modifyIndexErr(def, "BITSET index key can not be multipart")
		}
		if def.IsUnique {
			return modifyIndexErr(def, "BITSET can not be unique")
		}
	default:
		return clientErrf(ErrIndexType, 0,
			"unsupported index type for index %d in space %d",
			def.IndexID, def.SpaceID)
	}
	for i := range def.Parts {
		switch def.Parts[i].Type {
		case FieldTypeArray:
			if def.Kind != IndexRTree {
				return modifyIndexErr(def, "ARRAY field type is not supported")
			}
		default:
			if def.Kind == IndexRTree {
				return modifyIndexErr(def, "RTREE index field type must be ARRAY")
			}
		}
	}
	return nil
}

func modifyIndexErr(def *KeyDef, msg string) error {
	return clientErrf(ErrModifyIndex, 0,
		"can't create or modify index %d in space %d: %s",
		def.IndexID, def.SpaceID, msg)
}

// CreateIndex validates the key definition and constructs an index of
// the requested variant.
func (e *Engine) CreateIndex(def *KeyDef) (Index, error) {
	if err := e.CheckKeyDef(def); err != nil {
		return nil, err
	}
	if e.opts.NewIndex == nil {
		panic(fmt.Errorf("tupelo: Options.NewIndex is not configured"))
	}
	return e.opts.NewIndex(def)
}

// DropIndex releases the reference the index held on every contained
// tuple, walking the index's own iterator.
func (e *Engine) DropIndex(idx Index) error {
	it, err := idx.Iterator(IterAll, nil)
	if err != nil {
		return err
	}
	for t := it.Next(); t != nil; t = it.Next() {
		t.Unref()
	}
	return nil
}

// Rollback undoes the statements of a transaction in reverse order, so
// later mutations are unwound before earlier ones and intermediate
// unique-key invariants hold. A failed undo leaves memory inconsistent
// and is fatal.
func (e *Engine) Rollback(txn *Txn) {
	for i := len(txn.Stmts) - 1; i >= 0; i-- {
		stmt := &txn.Stmts[i]
		if stmt.OldTuple != nil || stmt.NewTuple != nil {
			if _, err := stmt.Space.Replace(stmt.NewTuple, stmt.OldTuple, DupInsert); err != nil {
				panic(fmt.Errorf("failed to undo statement %d of space %q: %w",
					i, stmt.Space.Name, err))
			}
		}
	}
}

// BeginRecoverSnapshot tells the engine to recover to the given LSN.
// Snapshotting is performed by the surrounding host, so there is
// nothing to prepare here.
func (e *Engine) BeginRecoverSnapshot(lsn int64) {
}

// EndRecoverSnapshot is called after the snapshot rows are loaded.
func (e *Engine) EndRecoverSnapshot() {
	e.recovery = RecoverySnapshotLoaded
}

// EndRecovery is called after all xlogs are replayed; terminal.
func (e *Engine) EndRecovery() {
	e.recovery = RecoveryComplete
}

// Checkpointing is handled by the surrounding host; the engine hooks
// are successful no-ops.

func (e *Engine) BeginCheckpoint(lsn int64) error {
	return nil
}

func (e *Engine) WaitCheckpoint(lsn int64) error {
	return nil
}

func (e *Engine) DeleteCheckpoint(lsn int64) {
}

// Instance is a per-space engine binding. It dispatches recover and
// replace through the engine's current recovery state.
type Instance struct {
	engine *Engine
}

func (in *Instance) Engine() *Engine {
	return in.engine
}

// Recover advances the space through the current recovery stage.
func (in *Instance) Recover(sp *Space) error {
	return recoveryTable[in.engine.recovery].recover(sp)
}

// Replace performs the space mutation appropriate for the current
// recovery state.
func (in *Instance) Replace(sp *Space, old, new *Tuple, mode DupMode) (*Tuple, error) {
	return recoveryTable[in.engine.recovery].replace(sp, old, new, mode)
}
