package formatter

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/howjerry/efreverse/internal/emit"
)

const (
	entitiesDir       = "Entities"
	configurationsDir = "Configurations"
	sourceExt         = ".cs"
)

// CodeFormatter writes generated source for a set of plans and returns the written paths
type CodeFormatter interface {
	Format(plans []*emit.EntityPlan) ([]string, error)
}

// NewCodeFormatter returns the multi-file formatter when separate is set and
// the single-file formatter otherwise.
func NewCodeFormatter(outputDir string, separate bool, opts Options) CodeFormatter {
	if separate {
		return NewMultiFileFormatter(outputDir, opts)
	}
	return NewSingleFileFormatter(outputDir, opts)
}

// MultiFileFormatter writes one file per entity and configuration plus the context
type MultiFileFormatter struct {
	OutputDir string
	Options   Options
}

// NewMultiFileFormatter creates a new multi-file formatter
func NewMultiFileFormatter(outputDir string, opts Options) *MultiFileFormatter {
	return &MultiFileFormatter{
		OutputDir: outputDir,
		Options:   opts,
	}
}

// Format writes Entities/<Entity>.cs, Configurations/<Entity>Configuration.cs
// and <DbContextName>.cs for the selected elements.
func (f *MultiFileFormatter) Format(plans []*emit.EntityPlan) ([]string, error) {
	if err := os.MkdirAll(f.OutputDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create output directory: %w", err)
	}

	model := NewModel(plans)
	var written []string

	if f.Options.Elements.Entities {
		entities := NewEntityFormatter(f.Options)
		for _, p := range model.Plans {
			path := filepath.Join(f.OutputDir, entitiesDir, p.EntityName+sourceExt)
			if err := writeSourceFile(path, entities.render(p)); err != nil {
				return written, fmt.Errorf("failed to write entity %s: %w", p.EntityName, err)
			}
			written = append(written, path)
		}
	}

	if f.Options.Elements.Configurations {
		configs := NewConfigurationFormatter(f.Options, model)
		for _, p := range model.Plans {
			path := filepath.Join(f.OutputDir, configurationsDir, ConfigurationName(p.EntityName)+sourceExt)
			if err := writeSourceFile(path, configs.render(p)); err != nil {
				return written, fmt.Errorf("failed to write configuration for %s: %w", p.EntityName, err)
			}
			written = append(written, path)
		}
	}

	if f.Options.Elements.DbContext {
		path := filepath.Join(f.OutputDir, f.Options.DbContextName+sourceExt)
		if err := writeSourceFile(path, NewDbContextFormatter(f.Options, model).render()); err != nil {
			return written, fmt.Errorf("failed to write %s: %w", f.Options.DbContextName, err)
		}
		written = append(written, path)
	}

	return written, nil
}

func writeSourceFile(path string, units ...unit) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return err
	}

	file, err := os.Create(path)
	if err != nil {
		return err
	}

	if err := writeUnits(file, units); err != nil {
		_ = file.Close()
		return err
	}
	return file.Close()
}
