package schema

import "strings"

// DefaultPayloadTolerance is the number of non-key columns a junction table may
// carry and still be treated as a pure many-to-many link.
const DefaultPayloadTolerance = 2

// JunctionColumnSlack is the number of columns beyond its foreign keys a table
// may have to pass the IsJunctionTable pre-filter.
const JunctionColumnSlack = 2

// Column returns the named column.
func (t *Table) Column(name string) (*Column, bool) {
	for i := range t.Columns {
		if t.Columns[i].Name == name {
			return &t.Columns[i], true
		}
	}
	return nil, false
}

// PrimaryKeyColumns returns the primary key column names in column order.
func PrimaryKeyColumns(t *Table) []string {
	var pk []string
	for _, c := range t.Columns {
		if c.PrimaryKey {
			pk = append(pk, c.Name)
		}
	}
	return pk
}

// IsPrimaryKeyColumn reports whether the named column is part of the primary key.
func IsPrimaryKeyColumn(t *Table, name string) bool {
	c, ok := t.Column(name)
	return ok && c.PrimaryKey
}

// EnabledForeignKeys returns the enabled foreign keys in declaration order.
func EnabledForeignKeys(t *Table) []ForeignKey {
	fks := make([]ForeignKey, 0, len(t.ForeignKeys))
	for _, fk := range t.ForeignKeys {
		if fk.Enabled {
			fks = append(fks, fk)
		}
	}
	return fks
}

// ForeignKeyColumns returns the set of local columns used by enabled foreign keys.
func ForeignKeyColumns(t *Table) map[string]bool {
	cols := make(map[string]bool)
	for _, fk := range t.ForeignKeys {
		if !fk.Enabled {
			continue
		}
		for _, p := range fk.ColumnPairs {
			cols[p.Column] = true
		}
	}
	return cols
}

// PayloadColumns returns the columns that are neither primary key nor foreign key columns.
func PayloadColumns(t *Table) []string {
	fkCols := ForeignKeyColumns(t)
	var payload []string
	for _, c := range t.Columns {
		if !c.PrimaryKey && !fkCols[c.Name] {
			payload = append(payload, c.Name)
		}
	}
	return payload
}

// IsOneToOne reports whether fkColumn carries a one-to-one reference: a unique,
// non-primary-key index covers exactly that column, the column belongs to exactly
// one foreign key which is not composite, and the column is not in the primary key.
func IsOneToOne(t *Table, fkColumn string) bool {
	if IsPrimaryKeyColumn(t, fkColumn) {
		return false
	}

	owners := 0
	composite := false
	for _, fk := range t.ForeignKeys {
		if !fk.Enabled {
			continue
		}
		for _, p := range fk.ColumnPairs {
			if p.Column == fkColumn {
				owners++
				composite = composite || fk.IsComposite()
				break
			}
		}
	}
	if owners != 1 || composite {
		return false
	}

	for _, idx := range t.Indexes {
		if !idx.Unique || idx.PrimaryKey || idx.Disabled {
			continue
		}
		key := idx.KeyColumns()
		if len(key) == 1 && key[0] == fkColumn {
			return true
		}
	}
	return false
}

// IsManyToMany reports whether t is a junction table using DefaultPayloadTolerance.
func IsManyToMany(t *Table) bool {
	return IsManyToManyWithin(t, DefaultPayloadTolerance)
}

// IsManyToManyWithin reports whether t links two other tables through a composite
// primary key made only of foreign key columns, with at most tolerance payload columns.
func IsManyToManyWithin(t *Table, tolerance int) bool {
	fks := EnabledForeignKeys(t)
	if len(fks) < 2 {
		return false
	}
	if len(JunctionSides(t)) < 2 {
		return false
	}

	pk := PrimaryKeyColumns(t)
	if len(pk) < 2 {
		return false
	}

	fkCols := ForeignKeyColumns(t)
	for _, col := range pk {
		if !fkCols[col] {
			return false
		}
	}

	return len(PayloadColumns(t)) <= tolerance
}

// JunctionSides returns the first two distinct tables referenced by foreign keys
// whose columns all sit in the primary key, in declaration order. Self references
// are skipped.
func JunctionSides(t *Table) []ForeignKey {
	var sides []ForeignKey
	seen := make(map[string]bool)
	for _, fk := range EnabledForeignKeys(t) {
		ref := strings.ToLower(fk.ReferencedTable)
		if strings.EqualFold(fk.ReferencedTable, t.Name) || seen[ref] || len(fk.ColumnPairs) == 0 {
			continue
		}
		inPK := true
		for _, p := range fk.ColumnPairs {
			if !IsPrimaryKeyColumn(t, p.Column) {
				inPK = false
				break
			}
		}
		if !inPK {
			continue
		}
		seen[ref] = true
		sides = append(sides, fk)
		if len(sides) == 2 {
			break
		}
	}
	return sides
}

// IsJunctionTable is a cheap structural pre-filter for IsManyToMany: at least two
// foreign keys and few columns beyond them.
func IsJunctionTable(t *Table) bool {
	return len(t.ForeignKeys) >= 2 && len(t.Columns) <= len(t.ForeignKeys)+JunctionColumnSlack
}
