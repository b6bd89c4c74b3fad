package db

import (
	"context"
	"database/sql"
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"go.uber.org/zap"

	"github.com/howjerry/efreverse/internal/schema"
)

// declaredTypeRe splits a declared column type such as "DECIMAL(10, 2)"
var declaredTypeRe = regexp.MustCompile(`^\s*([^(]+?)\s*(?:\(\s*(\d+)\s*(?:,\s*(\d+)\s*)?\))?\s*$`)

// SQLiteExtractor handles schema extraction from SQLite
type SQLiteExtractor struct {
	client *SQLiteClient
	logger *zap.Logger
}

// NewSQLiteExtractor creates a new SQLite schema extractor
func NewSQLiteExtractor(client *SQLiteClient, logger *zap.Logger) *SQLiteExtractor {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &SQLiteExtractor{
		client: client,
		logger: logger,
	}
}

// ExtractSchema extracts the complete schema for specified tables
// If tables is empty, extracts all tables in the database
func (e *SQLiteExtractor) ExtractSchema(ctx context.Context, tables []string) (*schema.Schema, error) {
	tableNames, err := e.getTableNames(ctx, tables)
	if err != nil {
		return nil, fmt.Errorf("failed to get table names: %w", err)
	}

	extracted := make([]schema.Table, 0, len(tableNames))
	for _, tableName := range tableNames {
		table, err := e.extractTable(ctx, tableName)
		if err != nil {
			return nil, fmt.Errorf("failed to extract table %s: %w", tableName, err)
		}
		e.logger.Debug("Extracted table",
			zap.String("table", tableName),
			zap.Int("columns", len(table.Columns)),
			zap.Int("foreign_keys", len(table.ForeignKeys)))
		extracted = append(extracted, *table)
	}

	return &schema.Schema{Tables: extracted}, nil
}

// getTableNames returns the list of tables to extract
func (e *SQLiteExtractor) getTableNames(ctx context.Context, requestedTables []string) ([]string, error) {
	if len(requestedTables) > 0 {
		return requestedTables, nil
	}

	query := `
		SELECT name
		FROM sqlite_master
		WHERE type = 'table' AND name NOT LIKE 'sqlite_%'
		ORDER BY name
	`

	rows, err := e.client.GetDB().QueryContext(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var tables []string
	for rows.Next() {
		var tableName string
		if err := rows.Scan(&tableName); err != nil {
			return nil, err
		}
		tables = append(tables, tableName)
	}

	return tables, rows.Err()
}

// extractTable extracts all information for a single table
func (e *SQLiteExtractor) extractTable(ctx context.Context, tableName string) (*schema.Table, error) {
	table := &schema.Table{Name: tableName}

	columns, err := e.extractColumns(ctx, tableName)
	if err != nil {
		return nil, fmt.Errorf("failed to extract columns: %w", err)
	}
	if len(columns) == 0 {
		return nil, fmt.Errorf("table not found")
	}
	table.Columns = columns

	fks, err := e.extractForeignKeys(ctx, tableName)
	if err != nil {
		return nil, fmt.Errorf("failed to extract foreign keys: %w", err)
	}
	table.ForeignKeys = fks

	indexes, err := e.extractIndexes(ctx, tableName)
	if err != nil {
		return nil, fmt.Errorf("failed to extract indexes: %w", err)
	}
	table.Indexes = indexes

	return table, nil
}

// quoteIdent quotes an identifier for use inside a PRAGMA call
func quoteIdent(name string) string {
	return `"` + strings.ReplaceAll(name, `"`, `""`) + `"`
}

// parseDeclaredType returns the base type and any length or precision in a
// declared column type. A single argument is a length for character types
// and a precision otherwise.
func parseDeclaredType(declared string) (base string, length, precision, scale *int) {
	m := declaredTypeRe.FindStringSubmatch(declared)
	if m == nil {
		return strings.ToLower(strings.TrimSpace(declared)), nil, nil, nil
	}
	base = strings.ToLower(m[1])

	if m[2] != "" {
		n, _ := strconv.Atoi(m[2])
		if m[3] == "" && (strings.Contains(base, "char") || strings.Contains(base, "text") || strings.Contains(base, "binary")) {
			length = intPtr(n)
		} else {
			precision = intPtr(n)
		}
	}
	if m[3] != "" {
		n, _ := strconv.Atoi(m[3])
		scale = intPtr(n)
	}
	return base, length, precision, scale
}

// extractColumns reads PRAGMA table_xinfo so generated columns are included
func (e *SQLiteExtractor) extractColumns(ctx context.Context, tableName string) ([]schema.Column, error) {
	query := fmt.Sprintf("PRAGMA table_xinfo(%s)", quoteIdent(tableName))

	rows, err := e.client.GetDB().QueryContext(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var (
		columns []schema.Column
		pkCount int
	)
	for rows.Next() {
		var (
			cid, notNull, pk, hidden int
			name, colType            string
			defaultValue             sql.NullString
		)
		if err := rows.Scan(&cid, &name, &colType, &notNull, &defaultValue, &pk, &hidden); err != nil {
			return nil, err
		}
		// Hidden columns of virtual tables
		if hidden == 1 {
			continue
		}

		col := schema.Column{
			Name:       name,
			Nullable:   notNull == 0 && pk == 0,
			PrimaryKey: pk > 0,
			Computed:   hidden == 2 || hidden == 3,
		}
		col.DataType, col.MaxLength, col.Precision, col.Scale = parseDeclaredType(colType)
		if defaultValue.Valid {
			v := defaultValue.String
			col.DefaultValue = &v
		}
		if pk > 0 {
			pkCount++
		}

		columns = append(columns, col)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	// A single INTEGER PRIMARY KEY aliases the rowid
	if pkCount == 1 {
		for i := range columns {
			if columns[i].PrimaryKey && columns[i].DataType == "integer" {
				columns[i].Identity = true
			}
		}
	}

	return columns, nil
}

// primaryKeyColumns lists the primary key of a table in key order
func (e *SQLiteExtractor) primaryKeyColumns(ctx context.Context, tableName string) ([]string, error) {
	query := fmt.Sprintf("PRAGMA table_info(%s)", quoteIdent(tableName))

	rows, err := e.client.GetDB().QueryContext(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	byOrder := make(map[int]string)
	for rows.Next() {
		var (
			cid, notNull, pkOrder int
			name, colType         string
			defaultValue          sql.NullString
		)
		if err := rows.Scan(&cid, &name, &colType, &notNull, &defaultValue, &pkOrder); err != nil {
			return nil, err
		}
		if pkOrder > 0 {
			byOrder[pkOrder] = name
		}
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	pk := make([]string, 0, len(byOrder))
	for i := 1; i <= len(byOrder); i++ {
		pk = append(pk, byOrder[i])
	}
	return pk, nil
}

// extractForeignKeys extracts foreign keys. SQLite leaves the referenced
// column empty when a key targets the parent's primary key implicitly.
func (e *SQLiteExtractor) extractForeignKeys(ctx context.Context, tableName string) ([]schema.ForeignKey, error) {
	query := fmt.Sprintf("PRAGMA foreign_key_list(%s)", quoteIdent(tableName))

	rows, err := e.client.GetDB().QueryContext(ctx, query)
	if err != nil {
		return nil, err
	}

	type fkEntry struct {
		id, seq int
		row     foreignKeyRow
		implied bool
	}

	var entries []fkEntry
	for rows.Next() {
		var (
			id, seq                                         int
			targetTable, fromCol, onUpdate, onDelete, match string
			toCol                                           sql.NullString
		)
		if err := rows.Scan(&id, &seq, &targetTable, &fromCol, &toCol, &onUpdate, &onDelete, &match); err != nil {
			_ = rows.Close()
			return nil, err
		}
		entries = append(entries, fkEntry{
			id:  id,
			seq: seq,
			row: foreignKeyRow{
				Constraint:       fmt.Sprintf("FK_%s_%s_%d", tableName, targetTable, id),
				Column:           fromCol,
				ReferencedTable:  targetTable,
				ReferencedColumn: toCol.String,
				DeleteRule:       onDelete,
				UpdateRule:       onUpdate,
				Enabled:          true,
			},
			implied: !toCol.Valid || toCol.String == "",
		})
	}
	if err := rows.Err(); err != nil {
		_ = rows.Close()
		return nil, err
	}
	_ = rows.Close()

	pkCache := make(map[string][]string)
	fkRows := make([]foreignKeyRow, 0, len(entries))
	for _, entry := range entries {
		if entry.implied {
			pk, ok := pkCache[entry.row.ReferencedTable]
			if !ok {
				pk, err = e.primaryKeyColumns(ctx, entry.row.ReferencedTable)
				if err != nil {
					return nil, fmt.Errorf("failed to resolve key of %s: %w", entry.row.ReferencedTable, err)
				}
				pkCache[entry.row.ReferencedTable] = pk
			}
			if entry.seq < len(pk) {
				entry.row.ReferencedColumn = pk[entry.seq]
			}
		}
		fkRows = append(fkRows, entry.row)
	}

	return groupForeignKeys(fkRows), nil
}

// extractIndexes extracts indexes, including the ones SQLite creates for
// UNIQUE and PRIMARY KEY constraints
func (e *SQLiteExtractor) extractIndexes(ctx context.Context, tableName string) ([]schema.Index, error) {
	query := fmt.Sprintf("PRAGMA index_list(%s)", quoteIdent(tableName))

	rows, err := e.client.GetDB().QueryContext(ctx, query)
	if err != nil {
		return nil, err
	}

	type indexEntry struct {
		name   string
		unique bool
		pk     bool
	}

	var entries []indexEntry
	for rows.Next() {
		var (
			seq, unique, partial int
			name, origin         string
		)
		if err := rows.Scan(&seq, &name, &unique, &origin, &partial); err != nil {
			_ = rows.Close()
			return nil, err
		}
		entries = append(entries, indexEntry{name: name, unique: unique == 1, pk: origin == "pk"})
	}
	if err := rows.Err(); err != nil {
		_ = rows.Close()
		return nil, err
	}
	_ = rows.Close()

	var idxRows []indexRow
	for _, entry := range entries {
		cols, err := e.indexColumns(ctx, entry.name)
		if err != nil {
			return nil, fmt.Errorf("failed to read index %s: %w", entry.name, err)
		}
		for _, c := range cols {
			c.Index = entry.name
			c.Unique = entry.unique
			c.PrimaryKey = entry.pk
			idxRows = append(idxRows, c)
		}
	}

	return groupIndexes(idxRows), nil
}

func (e *SQLiteExtractor) indexColumns(ctx context.Context, indexName string) ([]indexRow, error) {
	query := fmt.Sprintf("PRAGMA index_xinfo(%s)", quoteIdent(indexName))

	rows, err := e.client.GetDB().QueryContext(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var cols []indexRow
	for rows.Next() {
		var (
			seqno, cid, desc, key int
			name, coll            sql.NullString
		)
		if err := rows.Scan(&seqno, &cid, &name, &desc, &coll, &key); err != nil {
			return nil, err
		}
		// Auxiliary rowid entries and expression columns carry no name
		if key == 0 || !name.Valid {
			continue
		}
		cols = append(cols, indexRow{
			Column:     name.String,
			Ordinal:    seqno + 1,
			Descending: desc == 1,
		})
	}

	return cols, rows.Err()
}
