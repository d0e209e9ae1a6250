// Package refs implements the root-reference tracker the core treats as
// opaque: a small mutable key/value store mapping table name to current
// root digest, with an append-only history and compare-and-set semantics
// for advancing a root.
package refs

import "errors"

// ErrCASMismatch is returned by Advance when the expected current digest no
// longer matches what is stored, meaning a concurrent writer already
// advanced the root.
var ErrCASMismatch = errors.New("root reference changed concurrently")

// ErrUnknownTable is returned by Current and History for a name that has
// never been advanced.
var ErrUnknownTable = errors.New("unknown table")
