package formatter

import (
	"io"
	"strconv"
)

// DbContextFormatter renders the DbContext class
type DbContextFormatter struct {
	opts  Options
	model *Model
}

// NewDbContextFormatter creates a new DbContext formatter
func NewDbContextFormatter(opts Options, model *Model) *DbContextFormatter {
	return &DbContextFormatter{opts: opts, model: model}
}

// Format writes the DbContext as a complete source file
func (f *DbContextFormatter) Format(w io.Writer) error {
	return writeUnits(w, []unit{f.render()})
}

// SetNames returns the DbSet property name of every entity in the model.
// Names never repeat and never equal the context class name.
func (f *DbContextFormatter) SetNames() map[string]string {
	used := map[string]bool{f.opts.DbContextName: true}
	names := make(map[string]string, len(f.model.Plans))
	for _, p := range f.model.Plans {
		name := f.opts.setName(p.EntityName)
		if used[name] {
			base := name
			for i := 2; used[name]; i++ {
				name = base + strconv.Itoa(i)
			}
		}
		used[name] = true
		names[p.EntityName] = name
	}
	return names
}

func (f *DbContextFormatter) render() unit {
	usings := []string{usingEntityFramework, f.opts.entitiesNamespace()}
	applyConfigurations := f.opts.Elements.Configurations && len(f.model.Plans) > 0
	if applyConfigurations {
		usings = append(usings, f.opts.configurationsNamespace())
	}

	ctx := f.opts.DbContextName
	cw := &codeWriter{}
	cw.line("public partial class %s : DbContext", ctx)
	cw.open()
	cw.line("public %s(DbContextOptions<%s> options)", ctx, ctx)
	cw.indent++
	cw.line(": base(options)")
	cw.indent--
	cw.open()
	cw.close("")

	names := f.SetNames()
	if len(f.model.Plans) > 0 {
		cw.line("")
	}
	for _, p := range f.model.Plans {
		cw.line("public virtual DbSet<%s> %s { get; set; }", p.EntityName, names[p.EntityName])
	}

	cw.line("")
	cw.line("protected override void OnModelCreating(ModelBuilder modelBuilder)")
	cw.open()
	if applyConfigurations {
		for _, p := range f.model.Plans {
			cw.line("modelBuilder.ApplyConfiguration(new %s());", ConfigurationName(p.EntityName))
		}
		cw.line("")
	}
	cw.line("OnModelCreatingPartial(modelBuilder);")
	cw.close("")
	cw.line("")
	cw.line("partial void OnModelCreatingPartial(ModelBuilder modelBuilder);")
	cw.close("")

	return unit{usings: usings, namespace: f.opts.Namespace, body: cw.String()}
}
