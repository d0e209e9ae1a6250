package partition

// BaseFamily is the name of the implicit family that catches every field
// not claimed by a configured family.
const BaseFamily = "base"

// Params carries the per-table configuration a partition is built against:
// the record-count limit L and the family definitions.
type Params struct {
	Limit    int
	Families map[string][]string // family name -> field names; must not contain BaseFamily
}

// FamilyOf returns the name of the family that owns field, or BaseFamily if
// no configured family claims it.
func (p Params) FamilyOf(field string) string {
	for family, fields := range p.Families {
		for _, f := range fields {
			if f == field {
				return family
			}
		}
	}
	return BaseFamily
}

func fieldSet(fields []string) map[string]struct{} {
	out := make(map[string]struct{}, len(fields))
	for _, f := range fields {
		out[f] = struct{}{}
	}
	return out
}

// HalfLimit is ⌈L/2⌉, the minimum size of a non-singleton, non-final
// partition.
func (p Params) HalfLimit() int {
	return (p.Limit + 1) / 2
}

// SplitThreshold is L + ⌈L/2⌉, the pending-record count at which
// partition_records emits a full partition and keeps the remainder.
func (p Params) SplitThreshold() int {
	return p.Limit + p.HalfLimit()
}
