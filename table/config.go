package table

import (
	"fmt"

	"github.com/pombredanne/merkle-db/errs"
	"github.com/pombredanne/merkle-db/lexicoder"
	"github.com/pombredanne/merkle-db/partition"
	"github.com/pombredanne/merkle-db/tree"
)

// DefaultPartitionLimit is the partition size limit L used when a table
// does not configure one.
const DefaultPartitionLimit = 1000

// Config carries the recognized table options: branching-factor,
// partition-limit, families and key-lexicoder. Built the way the teacher
// assembles service/mapper.Config, a struct of defaults plus Option funcs.
type Config struct {
	Branching      int
	PartitionLimit int
	Families       map[string][]string
	KeyLexicoder   lexicoder.Tag
}

// Option configures a Config.
type Option func(*Config)

// WithBranchingFactor overrides the index branching factor b. Must be ≥ 4.
func WithBranchingFactor(b int) Option {
	return func(c *Config) { c.Branching = b }
}

// WithPartitionLimit overrides the partition size limit L. Must be ≥ 1.
func WithPartitionLimit(l int) Option {
	return func(c *Config) { c.PartitionLimit = l }
}

// WithFamilies assigns fields to disjoint families. partition.BaseFamily is
// reserved and must not appear as a key here.
func WithFamilies(families map[string][]string) Option {
	return func(c *Config) { c.Families = families }
}

// WithKeyLexicoder sets the coder configuration used to turn application
// values into table keys.
func WithKeyLexicoder(tag lexicoder.Tag) Option {
	return func(c *Config) { c.KeyLexicoder = tag }
}

// defaultConfig holds the documented defaults: branching factor 256,
// partition limit 1000, no families beyond the implicit base family, and a
// raw bytes key-lexicoder.
var defaultConfig = Config{
	Branching:      tree.DefaultBranchingFactor,
	PartitionLimit: DefaultPartitionLimit,
	KeyLexicoder:   lexicoder.Tag{Head: "bytes"},
}

func buildConfig(opts []Option) (Config, error) {
	cfg := defaultConfig
	for _, opt := range opts {
		opt(&cfg)
	}
	if cfg.Branching < 4 {
		return Config{}, fmt.Errorf("%w: branching factor must be at least 4, got %d", errs.ErrUnsupportedConfig, cfg.Branching)
	}
	if cfg.PartitionLimit < 1 {
		return Config{}, fmt.Errorf("%w: partition limit must be at least 1, got %d", errs.ErrUnsupportedConfig, cfg.PartitionLimit)
	}
	if _, ok := cfg.Families[partition.BaseFamily]; ok {
		return Config{}, fmt.Errorf("%w: family name %q is reserved", errs.ErrUnsupportedConfig, partition.BaseFamily)
	}
	return cfg, nil
}

func (c Config) treeParams() tree.Params {
	return tree.Params{
		Partition: partition.Params{
			Limit:    c.PartitionLimit,
			Families: c.Families,
		},
		Branching: c.Branching,
	}
}
