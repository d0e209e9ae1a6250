// Package bloom implements the probabilistic membership filter attached to
// each partition: a fixed-size bit array plus a family of hash functions
// that lets a reader skip a partition's node entirely when a key is
// provably absent, at the cost of an occasional false positive.
package bloom

import (
	"encoding/binary"
	"fmt"
	"math"

	"github.com/bits-and-blooms/bitset"
	"github.com/cespare/xxhash/v2"

	"github.com/pombredanne/merkle-db/errs"
)

// DefaultFalsePositiveRate is used whenever a caller does not specify its
// own target.
const DefaultFalsePositiveRate = 0.01

// Filter is a Bloom filter over opaque keys. The zero value is not usable;
// construct one with New or Load.
type Filter struct {
	bits *bitset.BitSet
	m    uint
	k    uint
}

// New sizes a filter for n expected elements at the given target false
// positive rate. A zero rate falls back to DefaultFalsePositiveRate.
func New(n uint, falsePositiveRate float64) *Filter {
	if falsePositiveRate <= 0 || falsePositiveRate >= 1 {
		falsePositiveRate = DefaultFalsePositiveRate
	}
	if n == 0 {
		n = 1
	}
	m, k := estimateParameters(n, falsePositiveRate)
	return &Filter{
		bits: bitset.New(m),
		m:    m,
		k:    k,
	}
}

func estimateParameters(n uint, p float64) (m uint, k uint) {
	mf := math.Ceil(-1 * float64(n) * math.Log(p) / (math.Ln2 * math.Ln2))
	if mf < 1 {
		mf = 1
	}
	kf := math.Round(mf / float64(n) * math.Ln2)
	if kf < 1 {
		kf = 1
	}
	return uint(mf), uint(kf)
}

// Insert adds a key to the filter.
func (f *Filter) Insert(key []byte) {
	h1, h2 := baseHashes(key)
	for i := uint(0); i < f.k; i++ {
		f.bits.Set(f.index(h1, h2, i))
	}
}

// Contains reports whether key may be in the filter. A false return is
// certain; a true return may be a false positive.
func (f *Filter) Contains(key []byte) bool {
	h1, h2 := baseHashes(key)
	for i := uint(0); i < f.k; i++ {
		if !f.bits.Test(f.index(h1, h2, i)) {
			return false
		}
	}
	return true
}

func (f *Filter) index(h1, h2 uint64, i uint) uint {
	combined := h1 + uint64(i)*h2
	return uint(combined % uint64(f.m))
}

// baseHashes derives two independent 64-bit hashes from key using a single
// xxhash pass plus a salted second pass, per the Kirsch-Mitzenmacher
// double-hashing scheme: every other hash is a linear combination of these
// two, which is provably as good as k independent hash functions for Bloom
// filter purposes.
func baseHashes(key []byte) (uint64, uint64) {
	h1 := xxhash.Sum64(key)
	salted := make([]byte, len(key)+8)
	copy(salted, key)
	binary.LittleEndian.PutUint64(salted[len(key):], h1)
	h2 := xxhash.Sum64(salted)
	return h1, h2
}

// Merge unions other into f in place. Both filters must share identical
// (m, k) parameters, since a union of differently-sized filters is not a
// valid Bloom filter.
func (f *Filter) Merge(other *Filter) error {
	if f.m != other.m || f.k != other.k {
		return fmt.Errorf("%w: cannot merge bloom filters with different parameters (m=%d,k=%d) vs (m=%d,k=%d)",
			errs.ErrInvalidArgument, f.m, f.k, other.m, other.k)
	}
	f.bits.InPlaceUnion(other.bits)
	return nil
}

// M returns the number of bits in the filter.
func (f *Filter) M() uint { return f.m }

// K returns the number of hash functions used by the filter.
func (f *Filter) K() uint { return f.k }

// Marshal serializes the filter as (m, k, packed bits), matching the wire
// form a partition's metadata node stores alongside its tablets.
func (f *Filter) Marshal() ([]byte, error) {
	bitBytes, err := f.bits.MarshalBinary()
	if err != nil {
		return nil, fmt.Errorf("could not marshal bloom bitset: %w", err)
	}
	out := make([]byte, 16+len(bitBytes))
	binary.BigEndian.PutUint64(out[0:8], uint64(f.m))
	binary.BigEndian.PutUint64(out[8:16], uint64(f.k))
	copy(out[16:], bitBytes)
	return out, nil
}

// Unmarshal reconstructs a filter from its Marshal form.
func Unmarshal(data []byte) (*Filter, error) {
	if len(data) < 16 {
		return nil, fmt.Errorf("%w: bloom filter encoding requires at least 16 bytes, got %d", errs.ErrInvalidArgument, len(data))
	}
	m := uint(binary.BigEndian.Uint64(data[0:8]))
	k := uint(binary.BigEndian.Uint64(data[8:16]))
	bits := &bitset.BitSet{}
	if err := bits.UnmarshalBinary(data[16:]); err != nil {
		return nil, fmt.Errorf("%w: could not unmarshal bloom bitset: %v", errs.ErrCorruptNode, err)
	}
	return &Filter{bits: bits, m: m, k: k}, nil
}
