package db

import (
	"github.com/howjerry/efreverse/internal/schema"
)

// foreignKeyRow is one column pair of a foreign key as returned by a catalog query.
type foreignKeyRow struct {
	Constraint       string
	Column           string
	ReferencedTable  string
	ReferencedSchema string
	ReferencedColumn string
	DeleteRule       string
	UpdateRule       string
	Enabled          bool
}

// groupForeignKeys folds per-column rows into constraints, keeping the order in
// which constraints and their columns first appear.
func groupForeignKeys(rows []foreignKeyRow) []schema.ForeignKey {
	var fks []schema.ForeignKey
	pos := make(map[string]int)

	for _, r := range rows {
		i, ok := pos[r.Constraint]
		if !ok {
			i = len(fks)
			pos[r.Constraint] = i
			fks = append(fks, schema.ForeignKey{
				Name:             r.Constraint,
				ReferencedTable:  r.ReferencedTable,
				ReferencedSchema: r.ReferencedSchema,
				DeleteRule:       schema.ParseReferentialAction(r.DeleteRule),
				UpdateRule:       schema.ParseReferentialAction(r.UpdateRule),
				Enabled:          r.Enabled,
			})
		}
		fks[i].ColumnPairs = append(fks[i].ColumnPairs, schema.ColumnPair{
			Column:           r.Column,
			ReferencedColumn: r.ReferencedColumn,
		})
	}
	return fks
}

// indexRow is one column entry of an index as returned by a catalog query.
type indexRow struct {
	Index      string
	Unique     bool
	PrimaryKey bool
	Disabled   bool
	Column     string
	Ordinal    int
	Descending bool
	Included   bool
}

func groupIndexes(rows []indexRow) []schema.Index {
	var indexes []schema.Index
	pos := make(map[string]int)

	for _, r := range rows {
		i, ok := pos[r.Index]
		if !ok {
			i = len(indexes)
			pos[r.Index] = i
			indexes = append(indexes, schema.Index{
				Name:       r.Index,
				Unique:     r.Unique,
				PrimaryKey: r.PrimaryKey,
				Disabled:   r.Disabled,
			})
		}
		indexes[i].Columns = append(indexes[i].Columns, schema.IndexColumn{
			Name:       r.Column,
			Descending: r.Descending,
			Ordinal:    r.Ordinal,
			Included:   r.Included,
		})
	}
	return indexes
}

// markPrimaryKey flags the named columns as primary key members.
func markPrimaryKey(columns []schema.Column, pk []string) {
	set := make(map[string]bool, len(pk))
	for _, name := range pk {
		set[name] = true
	}
	for i := range columns {
		if set[columns[i].Name] {
			columns[i].PrimaryKey = true
		}
	}
}

func intPtr(v int) *int {
	return &v
}
