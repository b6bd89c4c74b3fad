package formatter

import (
	"fmt"
	"strings"

	"github.com/howjerry/efreverse/internal/emit"
	"github.com/howjerry/efreverse/internal/relationship"
	"github.com/howjerry/efreverse/internal/schema"
)

// Report is the input of the relationship report formatters
type Report struct {
	Tables        []schema.Table
	Relationships []relationship.Relationship
	Plans         []*emit.EntityPlan
}

// Warnings returns the warnings of every plan in order.
func (r *Report) Warnings() []emit.Warning {
	var out []emit.Warning
	for _, p := range r.Plans {
		if p != nil {
			out = append(out, p.Warnings...)
		}
	}
	return out
}

// planFor returns the plan generated for a table.
func (r *Report) planFor(table string) (*emit.EntityPlan, bool) {
	for _, p := range r.Plans {
		if p != nil && p.Table != nil && strings.EqualFold(p.Table.Name, table) {
			return p, true
		}
	}
	return nil, false
}

// entityLabel describes what the table becomes in the generated model.
func (r *Report) entityLabel(table string) string {
	p, ok := r.planFor(table)
	switch {
	case !ok:
		return ""
	case p.Err != nil:
		return "planning failed: " + p.Err.Error()
	case p.Elided:
		return "junction, no entity"
	default:
		return p.EntityName
	}
}

func columnType(col schema.Column) string {
	switch {
	case col.Precision != nil && col.Scale != nil:
		return fmt.Sprintf("%s(%d,%d)", col.DataType, *col.Precision, *col.Scale)
	case col.MaxLength != nil:
		return fmt.Sprintf("%s(%d)", col.DataType, *col.MaxLength)
	default:
		return col.DataType
	}
}

func columnConstraints(t schema.Table, col schema.Column) []string {
	var constraints []string
	if col.PrimaryKey {
		constraints = append(constraints, "PK")
	}
	if !col.Nullable {
		constraints = append(constraints, "NOT NULL")
	}
	if col.Identity {
		constraints = append(constraints, "IDENTITY")
	}
	if col.Computed {
		constraints = append(constraints, "COMPUTED")
	}
	if col.DefaultValue != nil {
		constraints = append(constraints, "DEFAULT "+*col.DefaultValue)
	}
	for _, fk := range t.ForeignKeys {
		for _, p := range fk.ColumnPairs {
			if p.Column == col.Name {
				constraints = append(constraints, fmt.Sprintf("FK→%s.%s", fk.ReferencedTable, p.ReferencedColumn))
			}
		}
	}
	return constraints
}

// relationshipVia describes the constraint or junction behind a relationship.
func relationshipVia(rel relationship.Relationship) string {
	if rel.Junction != nil {
		via := "through " + rel.Junction.TableName
		if len(rel.Junction.PayloadColumns) > 0 {
			via += fmt.Sprintf(" (payload: %s)", strings.Join(rel.Junction.PayloadColumns, ", "))
		}
		return via
	}

	var (
		names []string
		pairs []string
		rule  schema.ReferentialAction
	)
	seen := make(map[string]bool)
	for _, fk := range rel.ForeignKeys {
		if !seen[fk.ConstraintName] {
			seen[fk.ConstraintName] = true
			names = append(names, fk.ConstraintName)
		}
		pairs = append(pairs, fk.Column+" → "+fk.ReferencedColumn)
		rule = fk.DeleteRule
	}

	via := fmt.Sprintf("via %s [%s]", strings.Join(names, ", "), strings.Join(pairs, ", "))
	if rule != schema.ActionUnspecified {
		via += " ON DELETE " + string(rule)
	}
	return via
}

func relationshipArrow(rel relationship.Relationship) string {
	if rel.Kind == relationship.ManyToMany {
		return "↔"
	}
	return "→"
}

func indexColumnNames(idx schema.Index) string {
	names := idx.KeyColumns()
	var included []string
	for _, c := range idx.Columns {
		if c.Included {
			included = append(included, c.Name)
		}
	}
	s := strings.Join(names, ", ")
	if len(included) > 0 {
		s += " INCLUDE " + strings.Join(included, ", ")
	}
	return s
}
