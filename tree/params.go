package tree

import "github.com/pombredanne/merkle-db/partition"

// DefaultBranchingFactor is the branching factor b used when a table does
// not configure one, matching the reference default.
const DefaultBranchingFactor = 256

// Params carries the per-table configuration the bulk-update algorithm and
// read paths are run against: the partition parameters (L, families) and
// the index branching factor b.
type Params struct {
	Partition partition.Params
	Branching int
}

// MinBranching is ceil(b/2), the minimum number of children an index node
// may hold once the tree has settled.
func (p Params) MinBranching() int {
	return (p.Branching + 1) / 2
}
