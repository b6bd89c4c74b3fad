// Package relationship classifies the relationships between tables of a schema
// snapshot as one-to-one, one-to-many or many-to-many.
package relationship

import (
	"github.com/howjerry/efreverse/internal/schema"
)

// Kind is the cardinality of a relationship
type Kind int

const (
	Unknown Kind = iota
	OneToOne
	OneToMany
	ManyToMany
)

func (k Kind) String() string {
	switch k {
	case OneToOne:
		return "OneToOne"
	case OneToMany:
		return "OneToMany"
	case ManyToMany:
		return "ManyToMany"
	default:
		return "Unknown"
	}
}

// Cardinality returns the short notation used in reports, e.g. "1:N".
func (k Kind) Cardinality() string {
	switch k {
	case OneToOne:
		return "1:1"
	case OneToMany:
		return "1:N"
	case ManyToMany:
		return "N:M"
	default:
		return "?"
	}
}

// Relationship is the classification of one table pair.
//
// For OneToMany, SourceTable is the referenced ("one") table and TargetTable the
// table declaring the foreign key. For OneToOne, SourceTable declares the key.
// For ManyToMany both are the tables linked by the junction.
type Relationship struct {
	Kind        Kind
	SourceTable string
	TargetTable string
	ForeignKeys []ForeignKeyInfo
	Junction    *JunctionTableInfo
}

// ForeignKeyInfo describes one column pair of a participating foreign key
type ForeignKeyInfo struct {
	ConstraintName   string
	Column           string
	ReferencedColumn string
	DeleteRule       schema.ReferentialAction
	UpdateRule       schema.ReferentialAction
}

// JunctionTableInfo describes the table carrying a many-to-many relationship
type JunctionTableInfo struct {
	TableName        string
	SourceKeyColumns []string
	TargetKeyColumns []string
	PayloadColumns   []string
}

func foreignKeyInfos(fks []schema.ForeignKey) []ForeignKeyInfo {
	var infos []ForeignKeyInfo
	for _, fk := range fks {
		for _, p := range fk.ColumnPairs {
			infos = append(infos, ForeignKeyInfo{
				ConstraintName:   fk.Name,
				Column:           p.Column,
				ReferencedColumn: p.ReferencedColumn,
				DeleteRule:       fk.DeleteRule,
				UpdateRule:       fk.UpdateRule,
			})
		}
	}
	return infos
}
