// Package errs collects the sentinel errors shared across the core: the
// failure kinds a caller needs to distinguish when a lexicoder, partition,
// tablet or data-tree operation fails. Use errors.Is against these sentinels;
// wrap them with fmt.Errorf("...: %w", ...) to attach the offending key,
// digest or attribute.
package errs

import "errors"

// Sentinel errors for the failure kinds the core must distinguish.
var (
	// ErrInvalidArgument covers malformed keys, wrong arity, empty input to a
	// coder that forbids it, and unordered input.
	ErrInvalidArgument = errors.New("invalid argument")

	// ErrPartitionOverflow is returned when constructing a partition from more
	// records than its configured limit allows.
	ErrPartitionOverflow = errors.New("partition overflow")

	// ErrMissingNode is returned when a referenced digest is absent from the
	// node store.
	ErrMissingNode = errors.New("missing node")

	// ErrTypeMismatch is returned when a node has an unexpected data type tag.
	ErrTypeMismatch = errors.New("node type mismatch")

	// ErrCorruptNode is returned when a node's attributes fail an invariant,
	// e.g. child count not matching split-key count plus one.
	ErrCorruptNode = errors.New("corrupt node")

	// ErrUnsupportedConfig is returned for an unknown lexicoder tag or a
	// wrong parameter count for a known one.
	ErrUnsupportedConfig = errors.New("unsupported configuration")
)
