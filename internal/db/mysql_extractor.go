package db

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/howjerry/efreverse/internal/schema"
)

// MySQLExtractor handles schema extraction from MySQL
type MySQLExtractor struct {
	client     *MySQLClient
	schemaName string
	logger     *zap.Logger
}

// NewMySQLExtractor creates a new MySQL schema extractor
func NewMySQLExtractor(client *MySQLClient, schemaName string, logger *zap.Logger) *MySQLExtractor {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &MySQLExtractor{
		client:     client,
		schemaName: schemaName,
		logger:     logger,
	}
}

// ExtractSchema extracts the complete schema for specified tables
// If tables is empty, extracts all tables in the schema
func (e *MySQLExtractor) ExtractSchema(ctx context.Context, tables []string) (*schema.Schema, error) {
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
func (e *MySQLExtractor) getTableNames(ctx context.Context, requestedTables []string) ([]string, error) {
	if len(requestedTables) > 0 {
		return requestedTables, nil
	}

	query := `
		SELECT table_name
		FROM information_schema.tables
		WHERE table_schema = ? AND table_type = 'BASE TABLE'
		ORDER BY table_name
	`

	rows, err := e.client.GetDB().QueryContext(ctx, query, e.schemaName)
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
func (e *MySQLExtractor) extractTable(ctx context.Context, tableName string) (*schema.Table, error) {
	table := &schema.Table{Name: tableName, Schema: e.schemaName}

	comment, err := e.extractComment(ctx, tableName)
	if err != nil {
		return nil, fmt.Errorf("failed to extract table comment: %w", err)
	}
	table.Comment = comment

	columns, err := e.extractColumns(ctx, tableName)
	if err != nil {
		return nil, fmt.Errorf("failed to extract columns: %w", err)
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

func (e *MySQLExtractor) extractComment(ctx context.Context, tableName string) (string, error) {
	var comment sql.NullString
	err := e.client.GetDB().QueryRowContext(ctx, `
		SELECT table_comment
		FROM information_schema.tables
		WHERE table_schema = ? AND table_name = ?
	`, e.schemaName, tableName).Scan(&comment)
	if err == sql.ErrNoRows {
		return "", fmt.Errorf("table not found in schema %s", e.schemaName)
	}
	if err != nil {
		return "", err
	}
	return comment.String, nil
}

// extractColumns extracts column information for a table
func (e *MySQLExtractor) extractColumns(ctx context.Context, tableName string) ([]schema.Column, error) {
	query := `
		SELECT
			c.column_name,
			c.data_type,
			c.is_nullable,
			c.column_default,
			c.character_maximum_length,
			c.numeric_precision,
			c.numeric_scale,
			c.column_key,
			c.extra,
			c.column_comment
		FROM information_schema.columns c
		WHERE c.table_schema = ? AND c.table_name = ?
		ORDER BY c.ordinal_position
	`

	rows, err := e.client.GetDB().QueryContext(ctx, query, e.schemaName, tableName)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var columns []schema.Column
	for rows.Next() {
		var (
			col          schema.Column
			isNullable   string
			defaultValue sql.NullString
			maxLength    sql.NullInt64
			precision    sql.NullInt64
			scale        sql.NullInt64
			columnKey    string
			extra        string
		)

		if err := rows.Scan(&col.Name, &col.DataType, &isNullable, &defaultValue,
			&maxLength, &precision, &scale, &columnKey, &extra, &col.Comment); err != nil {
			return nil, err
		}

		col.Nullable = isNullable == "YES"
		col.PrimaryKey = columnKey == "PRI"
		extra = strings.ToLower(extra)
		col.Identity = strings.Contains(extra, "auto_increment")
		col.Computed = strings.Contains(extra, "virtual generated") || strings.Contains(extra, "stored generated")
		if defaultValue.Valid {
			v := defaultValue.String
			col.DefaultValue = &v
		}
		// Lengths past int32 are LONGTEXT and friends; treat them as unbounded.
		if maxLength.Valid && maxLength.Int64 <= 1<<31-1 {
			col.MaxLength = intPtr(int(maxLength.Int64))
		}
		if precision.Valid {
			col.Precision = intPtr(int(precision.Int64))
		}
		if scale.Valid {
			col.Scale = intPtr(int(scale.Int64))
		}

		columns = append(columns, col)
	}

	return columns, rows.Err()
}

// extractForeignKeys joins key_column_usage with referential_constraints for the rules
func (e *MySQLExtractor) extractForeignKeys(ctx context.Context, tableName string) ([]schema.ForeignKey, error) {
	query := `
		SELECT
			kcu.constraint_name,
			kcu.column_name,
			kcu.referenced_table_name,
			kcu.referenced_table_schema,
			kcu.referenced_column_name,
			rc.delete_rule,
			rc.update_rule
		FROM information_schema.key_column_usage kcu
		JOIN information_schema.referential_constraints rc
			ON rc.constraint_schema = kcu.constraint_schema
			AND rc.constraint_name = kcu.constraint_name
			AND rc.table_name = kcu.table_name
		WHERE kcu.table_schema = ?
			AND kcu.table_name = ?
			AND kcu.referenced_table_name IS NOT NULL
		ORDER BY kcu.constraint_name, kcu.ordinal_position
	`

	rows, err := e.client.GetDB().QueryContext(ctx, query, e.schemaName, tableName)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var fkRows []foreignKeyRow
	for rows.Next() {
		r := foreignKeyRow{Enabled: true}
		if err := rows.Scan(&r.Constraint, &r.Column, &r.ReferencedTable, &r.ReferencedSchema,
			&r.ReferencedColumn, &r.DeleteRule, &r.UpdateRule); err != nil {
			return nil, err
		}
		fkRows = append(fkRows, r)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	return groupForeignKeys(fkRows), nil
}

// extractIndexes extracts index information for a table
func (e *MySQLExtractor) extractIndexes(ctx context.Context, tableName string) ([]schema.Index, error) {
	query := `
		SELECT
			s.index_name,
			s.non_unique,
			s.column_name,
			s.seq_in_index,
			COALESCE(s.collation, 'A')
		FROM information_schema.statistics s
		WHERE s.table_schema = ? AND s.table_name = ? AND s.column_name IS NOT NULL
		ORDER BY s.index_name, s.seq_in_index
	`

	rows, err := e.client.GetDB().QueryContext(ctx, query, e.schemaName, tableName)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var idxRows []indexRow
	for rows.Next() {
		var (
			r         indexRow
			nonUnique int
			collation string
		)
		if err := rows.Scan(&r.Index, &nonUnique, &r.Column, &r.Ordinal, &collation); err != nil {
			return nil, err
		}
		r.Unique = nonUnique == 0
		r.PrimaryKey = r.Index == "PRIMARY"
		r.Descending = collation == "D"
		idxRows = append(idxRows, r)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	return groupIndexes(idxRows), nil
}
