// Package emit decides, per table, which properties, navigations and mapping
// directives the generated object model needs. It renders nothing itself.
package emit

import (
	"github.com/howjerry/efreverse/internal/relationship"
	"github.com/howjerry/efreverse/internal/schema"
)

// WarningCode classifies non-fatal planning problems
type WarningCode string

const (
	// MissingReferencedTable marks a foreign key whose referenced table is not in the loaded set.
	MissingReferencedTable WarningCode = "MissingReferencedTable"
)

// Warning is a non-fatal problem recorded while planning a table
type Warning struct {
	Code            WarningCode
	Table           string
	ForeignKey      string
	ReferencedTable string
	Message         string
}

// EntityPlan holds everything the emitters need for one table.
type EntityPlan struct {
	Table      *schema.Table
	EntityName string

	// Elided is set for pure junction tables. They get no entity class; the
	// linked entities carry the many-to-many mapping instead.
	Elided bool

	Properties  []ScalarProperty
	Navigations []NavigationProperty
	Mappings    []MappingDirective
	Warnings    []Warning

	// Err is set by PlanAll when planning this table failed.
	Err error
}

// ScalarProperty maps one column
type ScalarProperty struct {
	Name         string
	Column       string
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

// NavigationProperty is a reference or collection pointing at another entity
type NavigationProperty struct {
	Name         string
	TargetEntity string
	TargetTable  string
	Collection   bool
	Kind         relationship.Kind

	// Inverse is the name of the navigation on the other entity, empty when there is none.
	Inverse    string
	ForeignKey string

	// Dependent is true on the side that declares the foreign key.
	Dependent bool
}

// MappingDirective is the configuration of one relationship, attached to the
// entity that owns its foreign key (or to the first side of a many-to-many).
type MappingDirective struct {
	Kind              relationship.Kind
	Navigation        string
	InverseNavigation string
	TargetEntity      string
	TargetTable       string
	ForeignKey        string
	Columns           []ColumnBinding
	Required          bool
	CascadeOnDelete   bool
	DeleteRule        schema.ReferentialAction
	Junction          *JunctionMapping
}

// ColumnBinding ties a foreign key column to its property and referenced column
type ColumnBinding struct {
	Property         string
	Column           string
	ReferencedColumn string
}

// JunctionMapping describes the table behind a many-to-many directive
type JunctionMapping struct {
	Table         string
	Schema        string
	LocalColumns  []string
	RemoteColumns []string
	RemoteEntity  string

	// RemoteDeleteRule is the delete rule of the foreign key to the remote side.
	RemoteDeleteRule schema.ReferentialAction

	// Payload holds the junction columns that are neither key nor foreign key.
	Payload []ScalarProperty
}

// Property returns the scalar property mapped to column.
func (p *EntityPlan) Property(column string) (ScalarProperty, bool) {
	for _, prop := range p.Properties {
		if prop.Column == column {
			return prop, true
		}
	}
	return ScalarProperty{}, false
}

// Navigation returns the navigation with the given name.
func (p *EntityPlan) Navigation(name string) (NavigationProperty, bool) {
	for _, nav := range p.Navigations {
		if nav.Name == name {
			return nav, true
		}
	}
	return NavigationProperty{}, false
}

// KeyProperties returns the primary key properties in column order.
func (p *EntityPlan) KeyProperties() []ScalarProperty {
	var keys []ScalarProperty
	for _, prop := range p.Properties {
		if prop.PrimaryKey {
			keys = append(keys, prop)
		}
	}
	return keys
}
