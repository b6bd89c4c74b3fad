package formatter

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/howjerry/efreverse/internal/emit"
)

// SingleFileFormatter writes every selected element into <DbContextName>.Generated.cs
type SingleFileFormatter struct {
	OutputDir string
	Options   Options
}

// NewSingleFileFormatter creates a new single-file formatter
func NewSingleFileFormatter(outputDir string, opts Options) *SingleFileFormatter {
	return &SingleFileFormatter{
		OutputDir: outputDir,
		Options:   opts,
	}
}

// FileName returns the name of the generated file.
func (f *SingleFileFormatter) FileName() string {
	return f.Options.DbContextName + ".Generated" + sourceExt
}

// Format writes entities, then configurations, then the context.
func (f *SingleFileFormatter) Format(plans []*emit.EntityPlan) ([]string, error) {
	if err := os.MkdirAll(f.OutputDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create output directory: %w", err)
	}

	model := NewModel(plans)
	var units []unit

	if f.Options.Elements.Entities {
		entities := NewEntityFormatter(f.Options)
		for _, p := range model.Plans {
			units = append(units, entities.render(p))
		}
	}
	if f.Options.Elements.Configurations {
		configs := NewConfigurationFormatter(f.Options, model)
		for _, p := range model.Plans {
			units = append(units, configs.render(p))
		}
	}
	if f.Options.Elements.DbContext {
		units = append(units, NewDbContextFormatter(f.Options, model).render())
	}
	if len(units) == 0 {
		return nil, nil
	}

	path := filepath.Join(f.OutputDir, f.FileName())
	if err := writeSourceFile(path, units...); err != nil {
		return nil, fmt.Errorf("failed to write %s: %w", f.FileName(), err)
	}
	return []string{path}, nil
}
