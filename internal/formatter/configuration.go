package formatter

import (
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/howjerry/efreverse/internal/emit"
	"github.com/howjerry/efreverse/internal/relationship"
	"github.com/howjerry/efreverse/internal/schema"
)

// ConfigurationFormatter renders IEntityTypeConfiguration classes
type ConfigurationFormatter struct {
	opts  Options
	model *Model
}

// NewConfigurationFormatter creates a new configuration formatter. The model
// resolves principal keys of related entities.
func NewConfigurationFormatter(opts Options, model *Model) *ConfigurationFormatter {
	return &ConfigurationFormatter{opts: opts, model: model}
}

// Format writes the configuration class of plan as a complete source file
func (f *ConfigurationFormatter) Format(w io.Writer, plan *emit.EntityPlan) error {
	return writeUnits(w, []unit{f.render(plan)})
}

// ConfigurationName returns the configuration class name for an entity.
func ConfigurationName(entity string) string {
	return entity + "Configuration"
}

func (f *ConfigurationFormatter) render(plan *emit.EntityPlan) unit {
	usings := []string{usingEntityFramework, usingMetadataBuilders, f.opts.entitiesNamespace()}
	for _, m := range plan.Mappings {
		if m.Junction != nil {
			usings = append(usings, "System.Collections.Generic")
			if len(m.Junction.Payload) > 0 {
				usings = append(usings, "System")
			}
			break
		}
	}

	entity := plan.EntityName
	cw := &codeWriter{}
	cw.line("public partial class %s : IEntityTypeConfiguration<%s>", ConfigurationName(entity), entity)
	cw.open()
	cw.line("public void Configure(EntityTypeBuilder<%s> builder)", entity)
	cw.open()

	f.writeTable(cw, plan)
	f.writeKey(cw, plan)
	f.writeProperties(cw, plan)
	f.writeIndexes(cw, plan)
	for _, m := range plan.Mappings {
		cw.line("")
		f.writeMapping(cw, plan, m)
	}

	cw.line("")
	cw.line("OnConfigurePartial(builder);")
	cw.close("")
	cw.line("")
	cw.line("partial void OnConfigurePartial(EntityTypeBuilder<%s> builder);", entity)
	cw.close("")

	return unit{usings: usings, namespace: f.opts.configurationsNamespace(), body: cw.String()}
}

func (f *ConfigurationFormatter) writeTable(cw *codeWriter, plan *emit.EntityPlan) {
	t := plan.Table
	args := []string{literal(t.Name)}
	if t.Schema != "" {
		args = append(args, literal(t.Schema))
	}
	if f.opts.IncludeComments && strings.TrimSpace(t.Comment) != "" {
		args = append(args, "tb => tb.HasComment("+literal(strings.TrimSpace(t.Comment))+")")
	}
	cw.line("builder.ToTable(%s);", strings.Join(args, ", "))
	cw.line("")
}

func (f *ConfigurationFormatter) writeKey(cw *codeWriter, plan *emit.EntityPlan) {
	keys := plan.KeyProperties()
	if len(keys) == 0 {
		cw.line("builder.HasNoKey();")
		return
	}
	names := make([]string, len(keys))
	for i, k := range keys {
		names[i] = k.Name
	}
	cw.line("builder.HasKey(%s);", selector("e", names))
}

func (f *ConfigurationFormatter) writeProperties(cw *codeWriter, plan *emit.EntityPlan) {
	singleKey := len(plan.KeyProperties()) == 1
	for _, p := range plan.Properties {
		calls := f.propertyFacets(p, singleKey)
		if len(calls) == 0 {
			continue
		}
		cw.line("")
		cw.chain(fmt.Sprintf("builder.Property(e => e.%s)", p.Name), calls)
	}
}

// propertyFacets lists the fluent calls for one property. Facets already
// expressed by data annotations are skipped.
func (f *ConfigurationFormatter) propertyFacets(p emit.ScalarProperty, singleKey bool) []string {
	return f.facets(p, singleKey, !f.opts.UseDataAnnotations)
}

// facets lists the fluent calls for a column. Shape facets (name, nullability,
// length, type, value generation) are included only when shape is set.
func (f *ConfigurationFormatter) facets(p emit.ScalarProperty, singleKey, shape bool) []string {
	var calls []string
	if shape {
		if p.Name != p.Column {
			calls = append(calls, "HasColumnName("+literal(p.Column)+")")
		}
		if !p.Nullable && isReferenceType(p) {
			calls = append(calls, "IsRequired()")
		}
		if p.MaxLength != nil && *p.MaxLength > 0 {
			if t := baseType(p.DataType); t == "string" || t == "byte[]" {
				calls = append(calls, "HasMaxLength("+strconv.Itoa(*p.MaxLength)+")")
			}
		}
		if typeName, ok := decimalColumnType(p); ok {
			calls = append(calls, "HasColumnType("+literal(typeName)+")")
		}
		switch {
		case p.Identity:
			calls = append(calls, "ValueGeneratedOnAdd()")
		case p.Computed:
			calls = append(calls, "ValueGeneratedOnAddOrUpdate()")
		case p.PrimaryKey && singleKey && isIntegral(p):
			calls = append(calls, "ValueGeneratedNever()")
		}
	}
	if p.DefaultValue != nil && !p.Identity {
		calls = append(calls, "HasDefaultValueSql("+literal(*p.DefaultValue)+")")
	}
	if f.opts.IncludeComments && strings.TrimSpace(p.Comment) != "" {
		calls = append(calls, "HasComment("+literal(strings.TrimSpace(p.Comment))+")")
	}
	return calls
}

func (f *ConfigurationFormatter) writeIndexes(cw *codeWriter, plan *emit.EntityPlan) {
	for _, idx := range plan.Table.Indexes {
		if idx.PrimaryKey || idx.Disabled {
			continue
		}

		var (
			props      []string
			descending []string
			anyDesc    bool
		)
		for _, c := range keyIndexColumns(idx) {
			p, ok := plan.Property(c.Name)
			if !ok {
				props = nil
				break
			}
			props = append(props, p.Name)
			descending = append(descending, strconv.FormatBool(c.Descending))
			anyDesc = anyDesc || c.Descending
		}
		if len(props) == 0 {
			continue
		}

		var calls []string
		if idx.Unique {
			calls = append(calls, "IsUnique()")
		}
		if anyDesc {
			calls = append(calls, "IsDescending("+strings.Join(descending, ", ")+")")
		}
		cw.line("")
		cw.chain(fmt.Sprintf("builder.HasIndex(%s, %s)", selector("e", props), literal(idx.Name)), calls)
	}
}

func keyIndexColumns(idx schema.Index) []schema.IndexColumn {
	byName := make(map[string]schema.IndexColumn, len(idx.Columns))
	for _, c := range idx.Columns {
		byName[c.Name] = c
	}
	names := idx.KeyColumns()
	cols := make([]schema.IndexColumn, len(names))
	for i, n := range names {
		cols[i] = byName[n]
	}
	return cols
}

func (f *ConfigurationFormatter) writeMapping(cw *codeWriter, plan *emit.EntityPlan, m emit.MappingDirective) {
	if m.Junction != nil {
		f.writeManyToMany(cw, plan, m)
		return
	}

	props := make([]string, len(m.Columns))
	refs := make([]string, len(m.Columns))
	for i, c := range m.Columns {
		props[i] = c.Property
		refs[i] = c.ReferencedColumn
	}

	var calls []string
	principal := ""
	if m.Kind == relationship.OneToOne {
		calls = append(calls, withNavigation("WithOne", m.InverseNavigation))
		calls = append(calls, fmt.Sprintf("HasForeignKey<%s>(%s)", plan.EntityName, selector("d", props)))
		principal = "<" + m.TargetEntity + ">"
	} else {
		calls = append(calls, withNavigation("WithMany", m.InverseNavigation))
		calls = append(calls, fmt.Sprintf("HasForeignKey(%s)", selector("d", props)))
	}
	if keys, ok := f.principalKey(m.TargetEntity, refs); ok {
		calls = append(calls, fmt.Sprintf("HasPrincipalKey%s(%s)", principal, selector("p", keys)))
	}
	if m.Required {
		calls = append(calls, "IsRequired()")
	}
	calls = append(calls, "OnDelete(DeleteBehavior."+DeleteBehavior(m.DeleteRule)+")")
	if m.ForeignKey != "" {
		calls = append(calls, "HasConstraintName("+literal(m.ForeignKey)+")")
	}

	cw.chain(fmt.Sprintf("builder.HasOne(d => d.%s)", m.Navigation), calls)
}

// principalKey returns the referenced properties when the key does not point
// at the primary key of the target entity.
func (f *ConfigurationFormatter) principalKey(entity string, refColumns []string) ([]string, bool) {
	target, ok := f.model.Entity(entity)
	if !ok {
		return nil, false
	}

	keys := target.KeyProperties()
	if len(keys) == len(refColumns) {
		same := true
		for i, k := range keys {
			if !strings.EqualFold(k.Column, refColumns[i]) {
				same = false
				break
			}
		}
		if same {
			return nil, false
		}
	}

	props := make([]string, len(refColumns))
	for i, c := range refColumns {
		p, ok := target.Property(c)
		if !ok {
			return nil, false
		}
		props[i] = p.Name
	}
	return props, true
}

func (f *ConfigurationFormatter) writeManyToMany(cw *codeWriter, plan *emit.EntityPlan, m emit.MappingDirective) {
	j := m.Junction

	cw.line("builder.HasMany(d => d.%s)", m.Navigation)
	cw.indent++
	cw.line(".%s", withNavigation("WithMany", m.InverseNavigation))
	cw.line(".UsingEntity<Dictionary<string, object>>(")
	cw.indent++
	cw.line("%s,", literal(j.Table))
	cw.line("r => r.HasOne<%s>().WithMany().HasForeignKey(%s).OnDelete(DeleteBehavior.%s),",
		j.RemoteEntity, literals(j.RemoteColumns), DeleteBehavior(j.RemoteDeleteRule))
	cw.line("l => l.HasOne<%s>().WithMany().HasForeignKey(%s).OnDelete(DeleteBehavior.%s),",
		plan.EntityName, literals(j.LocalColumns), DeleteBehavior(m.DeleteRule))
	cw.line("j =>")
	cw.open()
	cw.line("j.HasKey(%s);", literals(append(append([]string(nil), j.LocalColumns...), j.RemoteColumns...)))
	if j.Schema != "" {
		cw.line("j.ToTable(%s, %s);", literal(j.Table), literal(j.Schema))
	} else {
		cw.line("j.ToTable(%s);", literal(j.Table))
	}
	// The join entity is a property bag, so payload columns are indexer properties.
	for _, p := range j.Payload {
		cw.chain(fmt.Sprintf("j.IndexerProperty<%s>(%s)", CSharpType(p), literal(p.Name)), f.facets(p, false, true))
	}
	cw.close(");")
	cw.indent -= 2
}

// DeleteBehavior maps a referential action to the EF Core DeleteBehavior member.
func DeleteBehavior(rule schema.ReferentialAction) string {
	switch rule {
	case schema.ActionCascade:
		return "Cascade"
	case schema.ActionSetNull:
		return "SetNull"
	case schema.ActionRestrict:
		return "Restrict"
	case schema.ActionSetDefault:
		return "NoAction"
	default:
		return "ClientSetNull"
	}
}

func withNavigation(method, navigation string) string {
	if navigation == "" {
		return method + "()"
	}
	return fmt.Sprintf("%s(p => p.%s)", method, navigation)
}

// selector renders a lambda selecting one property or an anonymous type of several.
func selector(param string, props []string) string {
	if len(props) == 1 {
		return fmt.Sprintf("%s => %s.%s", param, param, props[0])
	}
	parts := make([]string, len(props))
	for i, p := range props {
		parts[i] = param + "." + p
	}
	return fmt.Sprintf("%s => new { %s }", param, strings.Join(parts, ", "))
}

func literals(values []string) string {
	quoted := make([]string, len(values))
	for i, v := range values {
		quoted[i] = literal(v)
	}
	return strings.Join(quoted, ", ")
}
