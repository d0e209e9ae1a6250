// Package tree implements the data tree's bulk-update algorithm and read
// paths: the structure that assembles partitions into a balanced,
// content-addressed index above them.
package tree

import (
	"github.com/pombredanne/merkle-db/key"
	"github.com/pombredanne/merkle-db/nodestore"
)

// Ref points at a stored node one level of the tree: height 0 is a
// partition, height > 0 is an index node. FirstKey is the smallest key
// reachable under this node, carried alongside the digest so split keys and
// redistribution decisions never require reloading the node itself.
type Ref struct {
	Digest   nodestore.Digest
	FirstKey key.Key
	Height   int
}
