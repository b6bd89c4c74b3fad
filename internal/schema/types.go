package schema

import (
	"fmt"
	"sort"
	"strings"
)

// Schema represents a complete database schema
type Schema struct {
	Tables []Table
}

// Table looks up a table by name. An exact match wins over a case-insensitive one.
func (s *Schema) Table(name string) (*Table, bool) {
	for i := range s.Tables {
		if s.Tables[i].Name == name {
			return &s.Tables[i], true
		}
	}
	for i := range s.Tables {
		if strings.EqualFold(s.Tables[i].Name, name) {
			return &s.Tables[i], true
		}
	}
	return nil, false
}

// Names returns the table names in schema order.
func (s *Schema) Names() []string {
	names := make([]string, len(s.Tables))
	for i, t := range s.Tables {
		names[i] = t.Name
	}
	return names
}

// Exclude drops the named tables from the schema. Names match case-insensitively.
func (s *Schema) Exclude(names []string) {
	if len(names) == 0 {
		return
	}

	excludeSet := make(map[string]bool, len(names))
	for _, name := range names {
		excludeSet[strings.ToLower(name)] = true
	}

	kept := make([]Table, 0, len(s.Tables))
	for _, table := range s.Tables {
		if !excludeSet[strings.ToLower(table.Name)] {
			kept = append(kept, table)
		}
	}
	s.Tables = kept
}

// Table represents a database table
type Table struct {
	Name        string
	Schema      string
	Columns     []Column
	ForeignKeys []ForeignKey
	Indexes     []Index
	Comment     string
}

// Column represents a table column
type Column struct {
	Name         string
	DataType     string
	Nullable     bool
	PrimaryKey   bool
	Identity     bool
	Computed     bool
	MaxLength    *int
	Precision    *int
	Scale        *int
	Comment      string
	DefaultValue *string
}

// ForeignKey represents a foreign key constraint, possibly spanning several columns
type ForeignKey struct {
	Name             string
	ColumnPairs      []ColumnPair
	ReferencedTable  string
	ReferencedSchema string
	DeleteRule       ReferentialAction
	UpdateRule       ReferentialAction
	Enabled          bool
}

// ColumnPair binds a local column to the column it references
type ColumnPair struct {
	Column           string
	ReferencedColumn string
}

// IsComposite reports whether the key spans more than one column.
func (fk ForeignKey) IsComposite() bool {
	return len(fk.ColumnPairs) > 1
}

// LocalColumns returns the referencing columns in key order.
func (fk ForeignKey) LocalColumns() []string {
	cols := make([]string, len(fk.ColumnPairs))
	for i, p := range fk.ColumnPairs {
		cols[i] = p.Column
	}
	return cols
}

// ReferencedColumns returns the referenced columns in key order.
func (fk ForeignKey) ReferencedColumns() []string {
	cols := make([]string, len(fk.ColumnPairs))
	for i, p := range fk.ColumnPairs {
		cols[i] = p.ReferencedColumn
	}
	return cols
}

// Index represents a database index
type Index struct {
	Name       string
	Unique     bool
	PrimaryKey bool
	Disabled   bool
	Columns    []IndexColumn
}

// IndexColumn is one column entry of an index
type IndexColumn struct {
	Name       string
	Descending bool
	Ordinal    int
	Included   bool
}

// KeyColumns returns the names of the non-included columns ordered by key ordinal.
func (idx Index) KeyColumns() []string {
	key := make([]IndexColumn, 0, len(idx.Columns))
	for _, c := range idx.Columns {
		if !c.Included {
			key = append(key, c)
		}
	}
	sort.SliceStable(key, func(i, j int) bool { return key[i].Ordinal < key[j].Ordinal })

	names := make([]string, len(key))
	for i, c := range key {
		names[i] = c.Name
	}
	return names
}

// ReferentialAction is the ON DELETE / ON UPDATE behavior of a foreign key
type ReferentialAction string

const (
	ActionUnspecified ReferentialAction = ""
	ActionCascade     ReferentialAction = "CASCADE"
	ActionSetNull     ReferentialAction = "SET NULL"
	ActionSetDefault  ReferentialAction = "SET DEFAULT"
	ActionNoAction    ReferentialAction = "NO ACTION"
	ActionRestrict    ReferentialAction = "RESTRICT"
)

// ParseReferentialAction normalizes the spellings used by the supported catalogs:
// "SET_NULL" (SQL Server), "set null" (SQLite) and the single-letter pg_constraint codes.
func ParseReferentialAction(s string) ReferentialAction {
	v := strings.ToUpper(strings.TrimSpace(s))
	v = strings.ReplaceAll(v, "_", " ")

	switch v {
	case "CASCADE", "C":
		return ActionCascade
	case "SET NULL", "N":
		return ActionSetNull
	case "SET DEFAULT", "D":
		return ActionSetDefault
	case "NO ACTION", "A":
		return ActionNoAction
	case "RESTRICT", "R":
		return ActionRestrict
	default:
		return ActionUnspecified
	}
}

// Validate checks the structural invariants of a table.
func (t *Table) Validate() error {
	if err := t.ValidateColumns(); err != nil {
		return err
	}
	for _, fk := range t.ForeignKeys {
		if err := t.ValidateForeignKey(fk); err != nil {
			return err
		}
	}
	return nil
}

// ValidateColumns checks the table name and that column names are present and unique.
func (t *Table) ValidateColumns() error {
	if t.Name == "" {
		return fmt.Errorf("table name is empty")
	}

	seen := make(map[string]bool, len(t.Columns))
	for _, c := range t.Columns {
		if c.Name == "" {
			return fmt.Errorf("table %s: column with empty name", t.Name)
		}
		if seen[c.Name] {
			return fmt.Errorf("table %s: duplicate column %s", t.Name, c.Name)
		}
		seen[c.Name] = true
	}

	if len(t.Columns) == 0 && (len(t.ForeignKeys) > 0 || len(t.Indexes) > 0) {
		return fmt.Errorf("table %s: has keys but no columns", t.Name)
	}
	return nil
}

// ValidateForeignKey checks that fk has columns and that each one exists in t.
func (t *Table) ValidateForeignKey(fk ForeignKey) error {
	if len(fk.ColumnPairs) == 0 {
		return fmt.Errorf("table %s: foreign key %s has no columns", t.Name, fk.Name)
	}
	for _, p := range fk.ColumnPairs {
		if _, ok := t.Column(p.Column); !ok {
			return fmt.Errorf("table %s: foreign key %s references unknown column %q", t.Name, fk.Name, p.Column)
		}
	}
	return nil
}
