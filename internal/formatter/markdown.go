package formatter

import (
	"fmt"
	"io"
	"strings"

	"github.com/howjerry/efreverse/internal/schema"
)

// MarkdownFormatter formats the relationship report as markdown
type MarkdownFormatter struct {
	writer io.Writer
}

// NewMarkdownFormatter creates a new markdown formatter
func NewMarkdownFormatter(w io.Writer) *MarkdownFormatter {
	return &MarkdownFormatter{writer: w}
}

// Format writes the report in markdown format
func (f *MarkdownFormatter) Format(r *Report) error {
	_, _ = fmt.Fprintln(f.writer, "# Relationship Report")
	_, _ = fmt.Fprintln(f.writer)

	for _, table := range r.Tables {
		f.formatTable(r, table)
	}

	if len(r.Relationships) > 0 {
		_, _ = fmt.Fprintln(f.writer, "## Relationships")
		_, _ = fmt.Fprintln(f.writer)
		for _, rel := range r.Relationships {
			_, _ = fmt.Fprintf(f.writer, "- **%s** %s **%s**: %s (%s), %s\n",
				rel.SourceTable, relationshipArrow(rel), rel.TargetTable,
				rel.Kind, rel.Kind.Cardinality(), relationshipVia(rel))
		}
		_, _ = fmt.Fprintln(f.writer)
	}

	if warnings := r.Warnings(); len(warnings) > 0 {
		_, _ = fmt.Fprintln(f.writer, "## Warnings")
		_, _ = fmt.Fprintln(f.writer)
		for _, w := range warnings {
			_, _ = fmt.Fprintf(f.writer, "- `%s` %s\n", w.Code, w.Message)
		}
		_, _ = fmt.Fprintln(f.writer)
	}
	return nil
}

func (f *MarkdownFormatter) formatTable(r *Report, table schema.Table) {
	_, _ = fmt.Fprintf(f.writer, "## %s\n\n", table.Name)
	if label := r.entityLabel(table.Name); label != "" {
		_, _ = fmt.Fprintf(f.writer, "Entity: `%s`\n\n", label)
	}
	if table.Comment != "" {
		_, _ = fmt.Fprintf(f.writer, "%s\n\n", table.Comment)
	}

	_, _ = fmt.Fprintln(f.writer, "### Columns")
	_, _ = fmt.Fprintln(f.writer)
	for _, col := range table.Columns {
		constraints := columnConstraints(table, col)
		if len(constraints) > 0 {
			_, _ = fmt.Fprintf(f.writer, "- **%s:** %s, %s\n", col.Name, columnType(col), strings.Join(constraints, ", "))
		} else {
			_, _ = fmt.Fprintf(f.writer, "- **%s:** %s\n", col.Name, columnType(col))
		}
	}
	_, _ = fmt.Fprintln(f.writer)

	if len(table.Indexes) > 0 {
		_, _ = fmt.Fprintln(f.writer, "### Indexes")
		_, _ = fmt.Fprintln(f.writer)
		for _, idx := range table.Indexes {
			if idx.Unique {
				_, _ = fmt.Fprintf(f.writer, "- %s on (%s), unique\n", idx.Name, indexColumnNames(idx))
			} else {
				_, _ = fmt.Fprintf(f.writer, "- %s on (%s)\n", idx.Name, indexColumnNames(idx))
			}
		}
		_, _ = fmt.Fprintln(f.writer)
	}
}
