// Package tupelo is the core of an in-memory tuple storage engine.
//
// User data lives in spaces: tables of self-describing tuples encoded as
// MessagePack arrays. Every space has a tuple format, a precomputed layout
// that gives O(1) access to every field of a non-sequential index key
// despite the variable-length encoding (fields of sequential keys are
// reached by a linear walk), and a set of secondary indexes built by the
// engine's index factory.
//
// The engine is single-threaded and cooperative: no operation in this
// package suspends, blocks or takes locks, so every public operation is
// atomic with respect to other cooperatively scheduled work.
//
// Index algorithms live in the memindex subpackage; snapshot persistence
// lives in the snapshot subpackage. The core itself is volatile.
package tupelo
