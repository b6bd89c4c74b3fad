package formatter

import (
	"fmt"
	"io"
	"strings"

	"github.com/howjerry/efreverse/internal/schema"
)

// TextFormatter formats the relationship report as compact text
type TextFormatter struct {
	writer io.Writer
}

// NewTextFormatter creates a new text formatter
func NewTextFormatter(w io.Writer) *TextFormatter {
	return &TextFormatter{writer: w}
}

// Format writes the report in compact text format
func (f *TextFormatter) Format(r *Report) error {
	for i, table := range r.Tables {
		if i > 0 {
			_, _ = fmt.Fprintln(f.writer) // Blank line between tables
		}
		f.formatTable(r, table)
	}

	if len(r.Relationships) > 0 {
		_, _ = fmt.Fprintln(f.writer)
		_, _ = fmt.Fprintln(f.writer, "RELATIONSHIPS")
		for _, rel := range r.Relationships {
			_, _ = fmt.Fprintf(f.writer, "  %s %s %s  %s (%s) %s\n",
				rel.SourceTable, relationshipArrow(rel), rel.TargetTable,
				rel.Kind, rel.Kind.Cardinality(), relationshipVia(rel))
		}
	}

	if warnings := r.Warnings(); len(warnings) > 0 {
		_, _ = fmt.Fprintln(f.writer)
		_, _ = fmt.Fprintln(f.writer, "WARNINGS")
		for _, w := range warnings {
			_, _ = fmt.Fprintf(f.writer, "  %s: %s\n", w.Code, w.Message)
		}
	}
	return nil
}

func (f *TextFormatter) formatTable(r *Report, table schema.Table) {
	// Table header with primary key
	pkStr := ""
	if pk := schema.PrimaryKeyColumns(&table); len(pk) > 0 {
		pkStr = fmt.Sprintf(" (PK: %s)", strings.Join(pk, ", "))
	}
	entityStr := ""
	if label := r.entityLabel(table.Name); label != "" {
		entityStr = " → " + label
	}
	_, _ = fmt.Fprintf(f.writer, "TABLE %s%s%s\n", table.Name, pkStr, entityStr)

	for _, col := range table.Columns {
		parts := []string{col.Name + ":", columnType(col)}
		parts = append(parts, columnConstraints(table, col)...)
		_, _ = fmt.Fprintf(f.writer, "  %s\n", strings.Join(parts, " "))
	}

	if len(table.Indexes) > 0 {
		_, _ = fmt.Fprintln(f.writer)
		_, _ = fmt.Fprintln(f.writer, "  INDEXES:")
		for _, idx := range table.Indexes {
			unique := ""
			if idx.Unique {
				unique = " UNIQUE"
			}
			_, _ = fmt.Fprintf(f.writer, "    %s (%s)%s\n", idx.Name, indexColumnNames(idx), unique)
		}
	}
}
