package partition

import (
	"context"
	"fmt"

	"github.com/pombredanne/merkle-db/bloom"
	"github.com/pombredanne/merkle-db/errs"
	"github.com/pombredanne/merkle-db/key"
	"github.com/pombredanne/merkle-db/nodestore"
)

// Store serializes and persists p as a nodestore.TypePartition node.
func Store(ctx context.Context, store nodestore.Store, p *Partition) (nodestore.Digest, error) {
	membership, err := p.Membership.Marshal()
	if err != nil {
		return nodestore.Digest{}, fmt.Errorf("could not marshal membership filter: %w", err)
	}

	tablets := make(map[string]interface{}, len(p.Tablets))
	for family, ref := range p.Tablets {
		tablets[family] = encodeReference(ref)
	}

	families := make(map[string]interface{}, len(p.Families))
	for family, fields := range p.Families {
		list := make([]interface{}, len(fields))
		for i, f := range fields {
			list[i] = f
		}
		families[family] = list
	}

	node := nodestore.Node{
		Type: nodestore.TypePartition,
		Attributes: map[string]interface{}{
			"tablets":    tablets,
			"membership": membership,
			"count":      int64(p.Count),
			"families":   families,
			"first-key":  []byte(p.FirstKey),
			"last-key":   []byte(p.LastKey),
		},
	}
	return store.Put(ctx, node)
}

// Load reconstructs a Partition from its stored representation.
func Load(ctx context.Context, nstore nodestore.Store, digest nodestore.Digest) (*Partition, error) {
	node, err := nodestore.GetTyped(ctx, nstore, digest, nodestore.TypePartition)
	if err != nil {
		return nil, err
	}

	rawTablets, ok := node.Attributes["tablets"].(map[string]interface{})
	if !ok {
		return nil, fmt.Errorf("%w: partition node %s has malformed tablets attribute", errs.ErrCorruptNode, digest)
	}
	tablets := make(map[string]nodestore.Reference, len(rawTablets))
	for family, raw := range rawTablets {
		ref, err := decodeReference(raw)
		if err != nil {
			return nil, fmt.Errorf("%w: partition node %s tablet %q: %v", errs.ErrCorruptNode, digest, family, err)
		}
		tablets[family] = ref
	}

	membershipBytes, ok := node.Attributes["membership"].([]byte)
	if !ok {
		return nil, fmt.Errorf("%w: partition node %s has malformed membership attribute", errs.ErrCorruptNode, digest)
	}
	membership, err := bloom.Unmarshal(membershipBytes)
	if err != nil {
		return nil, fmt.Errorf("%w: partition node %s: %v", errs.ErrCorruptNode, digest, err)
	}

	count, ok := asInt64(node.Attributes["count"])
	if !ok {
		return nil, fmt.Errorf("%w: partition node %s has malformed count attribute", errs.ErrCorruptNode, digest)
	}

	rawFamilies, _ := node.Attributes["families"].(map[string]interface{})
	families := make(map[string][]string, len(rawFamilies))
	for family, raw := range rawFamilies {
		list, ok := raw.([]interface{})
		if !ok {
			return nil, fmt.Errorf("%w: partition node %s family %q is malformed", errs.ErrCorruptNode, digest, family)
		}
		fields := make([]string, len(list))
		for i, v := range list {
			s, ok := v.(string)
			if !ok {
				return nil, fmt.Errorf("%w: partition node %s family %q has non-string field name", errs.ErrCorruptNode, digest, family)
			}
			fields[i] = s
		}
		families[family] = fields
	}

	firstKey, _ := node.Attributes["first-key"].([]byte)
	lastKey, _ := node.Attributes["last-key"].([]byte)

	return &Partition{
		Tablets:    tablets,
		Membership: membership,
		Count:      int(count),
		Families:   families,
		FirstKey:   key.Key(firstKey),
		LastKey:    key.Key(lastKey),
	}, nil
}

func encodeReference(ref nodestore.Reference) map[string]interface{} {
	return map[string]interface{}{
		"name":   ref.Name,
		"digest": ref.Digest[:],
		"size":   ref.Size,
	}
}

func decodeReference(raw interface{}) (nodestore.Reference, error) {
	m, ok := raw.(map[string]interface{})
	if !ok {
		return nodestore.Reference{}, fmt.Errorf("not a map")
	}
	name, _ := m["name"].(string)
	digestBytes, ok := m["digest"].([]byte)
	if !ok || len(digestBytes) != len(nodestore.Digest{}) {
		return nodestore.Reference{}, fmt.Errorf("malformed digest")
	}
	var digest nodestore.Digest
	copy(digest[:], digestBytes)
	size, _ := asInt64(m["size"])
	return nodestore.Reference{Name: name, Digest: digest, Size: size}, nil
}

func asInt64(v interface{}) (int64, bool) {
	switch n := v.(type) {
	case int64:
		return n, true
	case uint64:
		return int64(n), true
	case int:
		return int64(n), true
	default:
		return 0, false
	}
}
