package formatter

import (
	"io"
	"strconv"
	"strings"

	"github.com/howjerry/efreverse/internal/emit"
)

// EntityFormatter renders entity classes
type EntityFormatter struct {
	opts Options
}

// NewEntityFormatter creates a new entity formatter
func NewEntityFormatter(opts Options) *EntityFormatter {
	return &EntityFormatter{opts: opts}
}

// Format writes the entity class of plan as a complete source file
func (f *EntityFormatter) Format(w io.Writer, plan *emit.EntityPlan) error {
	return writeUnits(w, []unit{f.render(plan)})
}

func (f *EntityFormatter) render(plan *emit.EntityPlan) unit {
	usings := []string{"System", "System.Collections.Generic"}
	if f.opts.UseDataAnnotations {
		usings = append(usings, usingDataAnnotations, usingDataAnnotationsSchema)
	}

	cw := &codeWriter{}
	t := plan.Table
	if f.opts.IncludeComments {
		cw.summary(t.Comment)
	}
	if f.opts.UseDataAnnotations {
		if t.Schema != "" {
			cw.line("[Table(%s, Schema = %s)]", literal(t.Name), literal(t.Schema))
		} else {
			cw.line("[Table(%s)]", literal(t.Name))
		}
	}
	cw.line("public partial class %s", plan.EntityName)
	cw.open()

	f.writeConstructor(cw, plan)

	singleKey := len(plan.KeyProperties()) == 1
	spaced := f.opts.UseDataAnnotations || f.opts.IncludeComments
	for i, p := range plan.Properties {
		if i > 0 && spaced {
			cw.line("")
		}
		f.writeProperty(cw, p, singleKey)
	}

	if len(plan.Navigations) > 0 && len(plan.Properties) > 0 {
		cw.line("")
	}
	for i, nav := range plan.Navigations {
		if i > 0 && f.opts.UseDataAnnotations {
			cw.line("")
		}
		f.writeNavigation(cw, plan, nav)
	}

	cw.close("")
	return unit{usings: usings, namespace: f.opts.entitiesNamespace(), body: cw.String()}
}

func (f *EntityFormatter) writeConstructor(cw *codeWriter, plan *emit.EntityPlan) {
	var collections []emit.NavigationProperty
	for _, nav := range plan.Navigations {
		if nav.Collection {
			collections = append(collections, nav)
		}
	}
	if len(collections) == 0 {
		return
	}

	cw.line("public %s()", plan.EntityName)
	cw.open()
	for _, nav := range collections {
		cw.line("%s = new HashSet<%s>();", nav.Name, nav.TargetEntity)
	}
	cw.close("")
	cw.line("")
}

func (f *EntityFormatter) writeProperty(cw *codeWriter, p emit.ScalarProperty, singleKey bool) {
	if f.opts.IncludeComments {
		cw.summary(p.Comment)
	}

	if f.opts.UseDataAnnotations {
		for _, a := range propertyAnnotations(p, singleKey) {
			cw.line("[%s]", a)
		}
	}
	cw.line("public %s %s { get; set; }", CSharpType(p), p.Name)
}

func propertyAnnotations(p emit.ScalarProperty, singleKey bool) []string {
	var attrs []string
	if p.PrimaryKey && singleKey {
		attrs = append(attrs, "Key")
	}
	if !p.Nullable && isReferenceType(p) {
		attrs = append(attrs, "Required")
	}
	if p.MaxLength != nil && *p.MaxLength > 0 {
		switch baseType(p.DataType) {
		case "string":
			attrs = append(attrs, "StringLength("+strconv.Itoa(*p.MaxLength)+")")
		case "byte[]":
			attrs = append(attrs, "MaxLength("+strconv.Itoa(*p.MaxLength)+")")
		}
	}

	var column []string
	if p.Name != p.Column {
		column = append(column, literal(p.Column))
	}
	if typeName, ok := decimalColumnType(p); ok {
		column = append(column, "TypeName = "+literal(typeName))
	}
	if len(column) > 0 {
		attrs = append(attrs, "Column("+strings.Join(column, ", ")+")")
	}

	switch {
	case p.Identity:
		attrs = append(attrs, "DatabaseGenerated(DatabaseGeneratedOption.Identity)")
	case p.Computed:
		attrs = append(attrs, "DatabaseGenerated(DatabaseGeneratedOption.Computed)")
	case p.PrimaryKey && singleKey && isIntegral(p):
		attrs = append(attrs, "DatabaseGenerated(DatabaseGeneratedOption.None)")
	}
	return attrs
}

func (f *EntityFormatter) writeNavigation(cw *codeWriter, plan *emit.EntityPlan, nav emit.NavigationProperty) {
	if f.opts.UseDataAnnotations {
		if nav.Dependent && !nav.Collection {
			if props := foreignKeyProperties(plan, nav.Name); len(props) > 0 {
				cw.line("[ForeignKey(%s)]", literal(strings.Join(props, ", ")))
			}
		}
		if nav.Inverse != "" && !nav.Dependent {
			cw.line("[InverseProperty(nameof(%s.%s))]", nav.TargetEntity, nav.Inverse)
		}
	}

	if nav.Collection {
		cw.line("public virtual ICollection<%s> %s { get; set; }", nav.TargetEntity, nav.Name)
		return
	}
	cw.line("public virtual %s %s { get; set; }", nav.TargetEntity, nav.Name)
}

func foreignKeyProperties(plan *emit.EntityPlan, navigation string) []string {
	for _, m := range plan.Mappings {
		if m.Navigation != navigation || m.Junction != nil {
			continue
		}
		props := make([]string, len(m.Columns))
		for i, c := range m.Columns {
			props[i] = c.Property
		}
		return props
	}
	return nil
}

func isIntegral(p emit.ScalarProperty) bool {
	switch baseType(p.DataType) {
	case "int", "long", "short", "byte":
		return true
	}
	return false
}
