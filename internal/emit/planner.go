package emit

import (
	"context"
	"fmt"
	"runtime"
	"sync"

	"go.uber.org/multierr"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/howjerry/efreverse/internal/naming"
	"github.com/howjerry/efreverse/internal/relationship"
	"github.com/howjerry/efreverse/internal/schema"
)

// Planner builds EntityPlans from an immutable schema snapshot. Plans for
// different tables are independent and may be computed concurrently.
type Planner struct {
	schema      *schema.Schema
	analyzer    *relationship.Analyzer
	namer       naming.Namer
	logger      *zap.Logger
	concurrency int

	// Fixed at construction, read-only afterwards.
	entities map[*schema.Table]string
	elided   map[*schema.Table]bool

	pairs sync.Map // pairKey -> pairResult
	slots sync.Map // *schema.Table -> slotSet
}

// PlannerOption configures a Planner
type PlannerOption func(*Planner)

// WithConcurrency bounds the number of tables PlanAll plans at once.
func WithConcurrency(n int) PlannerOption {
	return func(p *Planner) {
		if n > 0 {
			p.concurrency = n
		}
	}
}

// NewPlanner creates a planner over tables. The tables must not be modified
// while the planner is in use. A nil analyzer gets default settings.
func NewPlanner(tables []schema.Table, analyzer *relationship.Analyzer, namer naming.Namer, logger *zap.Logger, opts ...PlannerOption) *Planner {
	if logger == nil {
		logger = zap.NewNop()
	}
	if analyzer == nil {
		analyzer = relationship.New(logger)
	}

	p := &Planner{
		schema:      &schema.Schema{Tables: tables},
		analyzer:    analyzer,
		namer:       namer,
		logger:      logger.Named("emit"),
		concurrency: runtime.GOMAXPROCS(0),
	}
	for _, opt := range opts {
		opt(p)
	}

	p.entities = p.assignEntityNames()
	p.elided = p.findElidedJunctions()
	return p
}

// EntityName returns the class name assigned to a table.
func (p *Planner) EntityName(table string) (string, bool) {
	t, ok := p.schema.Table(table)
	if !ok {
		return "", false
	}
	return p.entities[t], true
}

// PlanTable plans the named table.
func (p *Planner) PlanTable(name string) (*EntityPlan, error) {
	t, ok := p.schema.Table(name)
	if !ok {
		return nil, fmt.Errorf("table %s not found in schema", name)
	}
	return p.plan(t)
}

// PlanAll plans every table. A table that fails is returned with Err set and
// its error joined into the result; the other tables are still planned.
func (p *Planner) PlanAll(ctx context.Context) ([]*EntityPlan, error) {
	plans := make([]*EntityPlan, len(p.schema.Tables))

	var g errgroup.Group
	g.SetLimit(p.concurrency)

	for i := range p.schema.Tables {
		if ctx.Err() != nil {
			break
		}
		t := &p.schema.Tables[i]
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			plan, err := p.plan(t)
			if err != nil {
				p.logger.Error("Failed to plan table", zap.String("table", t.Name), zap.Error(err))
				plan = &EntityPlan{Table: t, EntityName: p.entities[t], Err: err}
			}
			plans[i] = plan
			return nil
		})
	}

	waitErr := g.Wait()
	if waitErr == nil {
		waitErr = ctx.Err()
	}

	var (
		out  = make([]*EntityPlan, 0, len(plans))
		errs = waitErr
	)
	for _, plan := range plans {
		if plan == nil {
			continue
		}
		out = append(out, plan)
		if plan.Err != nil {
			errs = multierr.Append(errs, plan.Err)
		}
	}
	return out, errs
}

func (p *Planner) plan(t *schema.Table) (*EntityPlan, error) {
	plan := &EntityPlan{
		Table:      t,
		EntityName: p.entities[t],
		Elided:     p.elided[t],
	}

	propNames := p.propertyNames(t)
	plan.Properties = scalarProperties(t, propNames)

	if plan.Elided {
		p.logger.Debug("Eliding junction table", zap.String("table", t.Name))
		return plan, nil
	}

	set := p.slotsFor(t)
	plan.Warnings = set.warnings
	for _, w := range set.warnings {
		p.logger.Warn("Foreign key references a missing table",
			zap.String("table", w.Table),
			zap.String("foreign_key", w.ForeignKey),
			zap.String("referenced_table", w.ReferencedTable))
	}
	if set.err != nil {
		return nil, fmt.Errorf("failed to plan table %s: %w", t.Name, set.err)
	}

	for _, s := range set.slots {
		inverse := p.partnerName(s)
		plan.Navigations = append(plan.Navigations, NavigationProperty{
			Name:         s.name,
			TargetEntity: p.entities[s.other],
			TargetTable:  s.other.Name,
			Collection:   s.collection,
			Kind:         s.rel,
			Inverse:      inverse,
			ForeignKey:   s.fk.Name,
			Dependent:    s.kind == slotReference,
		})

		switch s.kind {
		case slotReference:
			plan.Mappings = append(plan.Mappings, foreignKeyMapping(t, s, inverse, propNames, p.entities[s.other]))
		case slotManyToMany:
			if m, ok := p.junctionMapping(t, s, inverse); ok {
				plan.Mappings = append(plan.Mappings, m)
			}
		}
	}
	return plan, nil
}

func scalarProperties(t *schema.Table, propNames []string) []ScalarProperty {
	props := make([]ScalarProperty, 0, len(t.Columns))
	for i, c := range t.Columns {
		props = append(props, ScalarProperty{
			Name:         propNames[i],
			Column:       c.Name,
			DataType:     c.DataType,
			Nullable:     c.Nullable,
			PrimaryKey:   c.PrimaryKey,
			Identity:     c.Identity,
			Computed:     c.Computed,
			MaxLength:    c.MaxLength,
			Precision:    c.Precision,
			Scale:        c.Scale,
			Comment:      c.Comment,
			DefaultValue: c.DefaultValue,
		})
	}
	return props
}

func foreignKeyMapping(t *schema.Table, s slot, inverse string, propNames []string, targetEntity string) MappingDirective {
	m := MappingDirective{
		Kind:              s.rel,
		Navigation:        s.name,
		InverseNavigation: inverse,
		TargetEntity:      targetEntity,
		TargetTable:       s.other.Name,
		ForeignKey:        s.fk.Name,
		Required:          true,
		CascadeOnDelete:   s.fk.DeleteRule == schema.ActionCascade,
		DeleteRule:        s.fk.DeleteRule,
	}

	for _, pair := range s.fk.ColumnPairs {
		binding := ColumnBinding{Property: pair.Column, Column: pair.Column, ReferencedColumn: pair.ReferencedColumn}
		if i := columnIndex(t, pair.Column); i >= 0 {
			binding.Property = propNames[i]
			if t.Columns[i].Nullable {
				m.Required = false
			}
		}
		m.Columns = append(m.Columns, binding)
	}
	return m
}

// junctionMapping attaches the many-to-many configuration to the first side only.
func (p *Planner) junctionMapping(t *schema.Table, s slot, inverse string) (MappingDirective, bool) {
	sides := schema.JunctionSides(s.junction)
	first, _ := p.schema.Table(sides[0].ReferencedTable)
	if first != t {
		return MappingDirective{}, false
	}

	payload := make(map[string]bool)
	for _, c := range schema.PayloadColumns(s.junction) {
		payload[c] = true
	}
	var payloadProps []ScalarProperty
	for _, prop := range scalarProperties(s.junction, p.propertyNames(s.junction)) {
		if payload[prop.Column] {
			payloadProps = append(payloadProps, prop)
		}
	}

	return MappingDirective{
		Kind:              relationship.ManyToMany,
		Navigation:        s.name,
		InverseNavigation: inverse,
		TargetEntity:      p.entities[s.other],
		TargetTable:       s.other.Name,
		ForeignKey:        sides[0].Name,
		CascadeOnDelete:   sides[0].DeleteRule == schema.ActionCascade,
		DeleteRule:        sides[0].DeleteRule,
		Junction: &JunctionMapping{
			Table:         s.junction.Name,
			Schema:        s.junction.Schema,
			LocalColumns:  sides[0].LocalColumns(),
			RemoteColumns: sides[1].LocalColumns(),
			RemoteEntity:  p.entities[s.other],

			RemoteDeleteRule: sides[1].DeleteRule,
			Payload:          payloadProps,
		},
	}, true
}

type pairKey struct {
	source, target *schema.Table
}

type pairResult struct {
	rel relationship.Relationship
	err error
}

// classify analyzes each ordered pair once per planner.
func (p *Planner) classify(source, target *schema.Table) (relationship.Relationship, error) {
	k := pairKey{source, target}
	if v, ok := p.pairs.Load(k); ok {
		r := v.(pairResult)
		return r.rel, r.err
	}

	rel, err := p.analyzer.AnalyzeRelationship(source, target)
	v, _ := p.pairs.LoadOrStore(k, pairResult{rel: rel, err: err})
	r := v.(pairResult)
	return r.rel, r.err
}

func (p *Planner) assignEntityNames() map[*schema.Table]string {
	names := make(map[*schema.Table]string, len(p.schema.Tables))
	used := make(map[string]bool, len(p.schema.Tables))
	for i := range p.schema.Tables {
		t := &p.schema.Tables[i]
		base := p.namer.EntityName(t.Name)
		name := base
		for n := 2; used[name]; n++ {
			name = fmt.Sprintf("%s%d", base, n)
		}
		used[name] = true
		names[t] = name
	}
	return names
}

// findElidedJunctions returns the junction tables that can be dropped from the
// entity model: both sides are loaded, the sides are their only enabled foreign
// keys and no other table references them.
func (p *Planner) findElidedJunctions() map[*schema.Table]bool {
	referenced := make(map[*schema.Table]bool)
	for i := range p.schema.Tables {
		t := &p.schema.Tables[i]
		for _, fk := range t.ForeignKeys {
			if !fk.Enabled {
				continue
			}
			if target, ok := p.schema.Table(fk.ReferencedTable); ok && target != t {
				referenced[target] = true
			}
		}
	}

	elided := make(map[*schema.Table]bool)
	for i := range p.schema.Tables {
		t := &p.schema.Tables[i]
		if referenced[t] || !p.analyzer.IsJunction(t) {
			continue
		}
		if n := len(schema.EnabledForeignKeys(t)); n != 2 {
			p.logger.Debug("Junction table has extra foreign keys, mapping it as an entity",
				zap.String("table", t.Name),
				zap.Int("foreign_keys", n))
			continue
		}
		sides := schema.JunctionSides(t)
		_, okA := p.schema.Table(sides[0].ReferencedTable)
		_, okB := p.schema.Table(sides[1].ReferencedTable)
		if okA && okB {
			elided[t] = true
		}
	}
	return elided
}

func (p *Planner) propertyNames(t *schema.Table) []string {
	entity := p.entities[t]
	names := make([]string, len(t.Columns))
	used := make(map[string]bool, len(t.Columns))
	for i, c := range t.Columns {
		base := p.namer.PropertyName(c.Name)
		if base == entity {
			// C# members cannot share the name of their enclosing type.
			base += "Value"
		}
		name := base
		for n := 2; used[name]; n++ {
			name = fmt.Sprintf("%s%d", base, n)
		}
		used[name] = true
		names[i] = name
	}
	return names
}

func columnIndex(t *schema.Table, name string) int {
	for i, c := range t.Columns {
		if c.Name == name {
			return i
		}
	}
	return -1
}
