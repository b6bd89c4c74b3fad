package relationship

import (
	"strings"
)

// PairMemo records relationships already produced during one analysis run so a
// relationship reached from both of its tables is reported once. It is not safe
// for concurrent use and must not outlive the run it was created for.
type PairMemo struct {
	seen map[string]struct{}
}

// NewPairMemo returns an empty memo.
func NewPairMemo() *PairMemo {
	return &PairMemo{seen: make(map[string]struct{})}
}

// Seen records rel and reports whether an equivalent relationship was recorded before.
func (m *PairMemo) Seen(rel Relationship) bool {
	k := pairKey(rel)
	if _, ok := m.seen[k]; ok {
		return true
	}
	m.seen[k] = struct{}{}
	return false
}

// Len returns the number of recorded relationships.
func (m *PairMemo) Len() int {
	return len(m.seen)
}

// pairKey is order-independent in the two table names. Many-to-many keys are
// scoped by junction, the rest by the participating constraints.
func pairKey(rel Relationship) string {
	a, b := strings.ToLower(rel.SourceTable), strings.ToLower(rel.TargetTable)
	if a > b {
		a, b = b, a
	}

	if rel.Junction != nil {
		return "junction|" + strings.ToLower(rel.Junction.TableName) + "|" + a + "|" + b
	}

	constraints := make([]string, 0, len(rel.ForeignKeys))
	for _, fk := range rel.ForeignKeys {
		constraints = append(constraints, fk.ConstraintName+"."+fk.Column)
	}
	return rel.Kind.String() + "|" + a + "|" + b + "|" + strings.Join(constraints, ",")
}
