package emit

import (
	"fmt"
	"strings"

	"go.uber.org/multierr"

	"github.com/howjerry/efreverse/internal/relationship"
	"github.com/howjerry/efreverse/internal/schema"
)

type slotKind int

const (
	slotReference slotKind = iota
	slotInverse
	slotManyToMany
)

// slot is one navigation of an entity before rendering. Every slot has a
// partner on the other entity, found through partnerID.
type slot struct {
	id         string
	partnerID  string
	kind       slotKind
	natural    string
	name       string
	rel        relationship.Kind
	collection bool
	other      *schema.Table
	fk         schema.ForeignKey
	junction   *schema.Table
}

type slotSet struct {
	slots    []slot
	warnings []Warning
	err      error
}

// slotsFor lists the navigations of t in a fixed order: references for its own
// foreign keys, inverses for keys pointing at it, then many-to-many collections.
// Names are resolved per entity, so both ends of a relationship compute the
// same result independently.
func (p *Planner) slotsFor(t *schema.Table) slotSet {
	if v, ok := p.slots.Load(t); ok {
		return v.(slotSet)
	}

	var set slotSet
	if !p.elided[t] {
		p.referenceSlots(t, &set)
		p.inverseSlots(t, &set)
		p.manyToManySlots(t, &set)
		p.resolveNames(t, set.slots)
	}

	v, _ := p.slots.LoadOrStore(t, set)
	return v.(slotSet)
}

func (p *Planner) referenceSlots(t *schema.Table, set *slotSet) {
	for i, fk := range t.ForeignKeys {
		if !fk.Enabled {
			continue
		}

		target, ok := p.schema.Table(fk.ReferencedTable)
		if !ok {
			set.warnings = append(set.warnings, Warning{
				Code:            MissingReferencedTable,
				Table:           t.Name,
				ForeignKey:      fk.Name,
				ReferencedTable: fk.ReferencedTable,
				Message: fmt.Sprintf("foreign key %s on table %s references table %s, which is not in the schema; only the scalar column is emitted",
					fk.Name, t.Name, fk.ReferencedTable),
			})
			continue
		}

		rel, err := p.classify(t, target)
		if err != nil {
			set.err = multierr.Append(set.err, err)
			continue
		}

		id := foreignKeyID(t, i, fk)
		set.slots = append(set.slots, slot{
			id:        "ref|" + id,
			partnerID: "inv|" + id,
			kind:      slotReference,
			natural:   p.referenceName(t, target, fk),
			rel:       navigationKind(rel.Kind),
			other:     target,
			fk:        fk,
		})
	}
}

func (p *Planner) inverseSlots(t *schema.Table, set *slotSet) {
	for i := range p.schema.Tables {
		source := &p.schema.Tables[i]
		if p.elided[source] {
			continue
		}

		for j, fk := range source.ForeignKeys {
			if !fk.Enabled {
				continue
			}
			if target, ok := p.schema.Table(fk.ReferencedTable); !ok || target != t {
				continue
			}

			rel, err := p.classify(source, t)
			if err != nil {
				// Reported by the plan of the declaring table.
				continue
			}

			kind := navigationKind(rel.Kind)
			id := foreignKeyID(source, j, fk)
			set.slots = append(set.slots, slot{
				id:         "inv|" + id,
				partnerID:  "ref|" + id,
				kind:       slotInverse,
				natural:    p.inverseName(source, t, fk, kind),
				rel:        kind,
				collection: kind == relationship.OneToMany,
				other:      source,
				fk:         fk,
			})
		}
	}
}

func (p *Planner) manyToManySlots(t *schema.Table, set *slotSet) {
	for i := range p.schema.Tables {
		j := &p.schema.Tables[i]
		if !p.elided[j] {
			continue
		}

		sides := schema.JunctionSides(j)
		a, _ := p.schema.Table(sides[0].ReferencedTable)
		b, _ := p.schema.Table(sides[1].ReferencedTable)

		var other *schema.Table
		switch t {
		case a:
			other = b
		case b:
			other = a
		default:
			continue
		}

		id := "m2m|" + strings.ToLower(j.Name)
		set.slots = append(set.slots, slot{
			id:         id,
			partnerID:  id,
			kind:       slotManyToMany,
			natural:    p.namer.CollectionName(p.entities[other]),
			rel:        relationship.ManyToMany,
			collection: true,
			other:      other,
			fk:         sides[0],
			junction:   j,
		})
	}
}

// resolveNames settles collisions with the entity name, its scalar properties
// and earlier navigations by appending "Navigation" and then a counter.
func (p *Planner) resolveNames(t *schema.Table, slots []slot) {
	reserved := map[string]bool{p.entities[t]: true}
	for _, name := range p.propertyNames(t) {
		reserved[name] = true
	}

	for i := range slots {
		name := slots[i].natural
		for n := 1; reserved[name]; n++ {
			if n == 1 {
				name = slots[i].natural + "Navigation"
			} else {
				name = fmt.Sprintf("%sNavigation%d", slots[i].natural, n)
			}
		}
		reserved[name] = true
		slots[i].name = name
	}
}

func (p *Planner) partnerName(s slot) string {
	for _, other := range p.slotsFor(s.other).slots {
		if other.id == s.partnerID {
			return other.name
		}
	}
	return ""
}

// referenceName is the referenced entity's name, or the key column's role when
// the table holds several keys to that entity or references itself.
func (p *Planner) referenceName(t, target *schema.Table, fk schema.ForeignKey) string {
	name := p.entities[target]
	if target == t || p.countReferences(t, target) > 1 {
		if role := p.roleName(fk); role != "" {
			name = role
		}
	}
	return name
}

func (p *Planner) inverseName(source, t *schema.Table, fk schema.ForeignKey, kind relationship.Kind) string {
	name := p.entities[source]
	if kind == relationship.OneToMany {
		name = p.namer.CollectionName(name)
	}
	if source == t || p.countReferences(source, t) > 1 {
		name = p.roleName(fk) + name
	}
	return name
}

func (p *Planner) roleName(fk schema.ForeignKey) string {
	if len(fk.ColumnPairs) == 0 {
		return ""
	}
	return p.namer.RoleName(fk.ColumnPairs[0].Column)
}

func (p *Planner) countReferences(t, target *schema.Table) int {
	n := 0
	for _, fk := range t.ForeignKeys {
		if !fk.Enabled {
			continue
		}
		if ref, ok := p.schema.Table(fk.ReferencedTable); ok && ref == target {
			n++
		}
	}
	return n
}

// navigationKind folds the classifications that do not apply to a single key
// into one-to-many: a non-elided junction acts as an ordinary dependent.
func navigationKind(k relationship.Kind) relationship.Kind {
	if k == relationship.OneToOne {
		return relationship.OneToOne
	}
	return relationship.OneToMany
}

func foreignKeyID(t *schema.Table, i int, fk schema.ForeignKey) string {
	return fmt.Sprintf("%s#%d:%s", strings.ToLower(t.Name), i, fk.Name)
}
