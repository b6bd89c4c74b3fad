package formatter

import (
	"github.com/howjerry/efreverse/internal/emit"
	"github.com/howjerry/efreverse/internal/naming"
)

const (
	usingDataAnnotations       = "System.ComponentModel.DataAnnotations"
	usingDataAnnotationsSchema = "System.ComponentModel.DataAnnotations.Schema"
	usingEntityFramework       = "Microsoft.EntityFrameworkCore"
	usingMetadataBuilders      = "Microsoft.EntityFrameworkCore.Metadata.Builders"
)

// Elements selects the generated parts
type Elements struct {
	Entities       bool
	Configurations bool
	DbContext      bool
}

// AllElements generates every part.
func AllElements() Elements {
	return Elements{Entities: true, Configurations: true, DbContext: true}
}

// Options controls how C# source is rendered
type Options struct {
	Namespace          string
	DbContextName      string
	UseDataAnnotations bool
	IncludeComments    bool
	Pluralize          bool
	Elements           Elements
}

func (o Options) entitiesNamespace() string {
	return o.Namespace + ".Entities"
}

func (o Options) configurationsNamespace() string {
	return o.Namespace + ".Configurations"
}

func (o Options) setName(entity string) string {
	if o.Pluralize {
		return naming.Pluralize(entity)
	}
	return entity
}

// Model is the set of entities rendered together. Failed and elided plans
// are left out.
type Model struct {
	Plans    []*emit.EntityPlan
	byEntity map[string]*emit.EntityPlan
}

// NewModel collects the renderable plans.
func NewModel(plans []*emit.EntityPlan) *Model {
	m := &Model{byEntity: make(map[string]*emit.EntityPlan)}
	for _, p := range plans {
		if p == nil || p.Err != nil || p.Elided {
			continue
		}
		m.Plans = append(m.Plans, p)
		m.byEntity[p.EntityName] = p
	}
	return m
}

// Entity returns the plan of the named entity.
func (m *Model) Entity(name string) (*emit.EntityPlan, bool) {
	p, ok := m.byEntity[name]
	return p, ok
}
