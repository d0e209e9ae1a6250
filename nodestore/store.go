package nodestore

import (
	"context"
	"fmt"

	"github.com/pombredanne/merkle-db/errs"
)

// Store is the content-addressed blob store the core consumes. Put is
// idempotent: encoding the same node value twice yields the same digest, so
// storing it again is a no-op from the caller's perspective. Get fails with
// errs.ErrMissingNode when the digest is unknown. Link records a named
// reference to an already-stored node; the reference value is what a parent
// node embeds for a child or tablet.
type Store interface {
	Put(ctx context.Context, node Node) (Digest, error)
	Get(ctx context.Context, digest Digest) (Node, error)
	Link(ctx context.Context, name string, digest Digest, size int64) (Reference, error)
	Close() error
}

// MissingNodeError reports that a referenced digest is absent from the
// store, carrying the digest so callers can log or retry against a
// different replica.
type MissingNodeError struct {
	Digest Digest
}

func (e *MissingNodeError) Error() string {
	return fmt.Sprintf("node %s not found", e.Digest)
}

func (e *MissingNodeError) Unwrap() error {
	return errs.ErrMissingNode
}

// TypeMismatchError reports that a node was loaded expecting one type tag
// but carried another.
type TypeMismatchError struct {
	Digest   Digest
	Expected Type
	Actual   Type
}

func (e *TypeMismatchError) Error() string {
	return fmt.Sprintf("node %s: expected type %q, got %q", e.Digest, e.Expected, e.Actual)
}

func (e *TypeMismatchError) Unwrap() error {
	return errs.ErrTypeMismatch
}

// GetTyped loads a node from store and asserts its type tag, a convenience
// every caller that knows what kind of node it expects otherwise repeats.
func GetTyped(ctx context.Context, store Store, digest Digest, want Type) (Node, error) {
	node, err := store.Get(ctx, digest)
	if err != nil {
		return Node{}, err
	}
	if node.Type != want {
		return Node{}, &TypeMismatchError{Digest: digest, Expected: want, Actual: node.Type}
	}
	return node, nil
}
