package db

import (
	"context"
	"database/sql"
	"fmt"

	"go.uber.org/zap"

	"github.com/howjerry/efreverse/internal/schema"
)

// SQLServerExtractor reads tables from the sys catalog views of SQL Server
type SQLServerExtractor struct {
	client *SQLServerClient
	schema string
	logger *zap.Logger
}

// NewSQLServerExtractor creates a new schema extractor for one SQL Server schema
func NewSQLServerExtractor(client *SQLServerClient, schemaName string, logger *zap.Logger) *SQLServerExtractor {
	if logger == nil {
		logger = zap.NewNop()
	}
	if schemaName == "" {
		schemaName = "dbo"
	}
	return &SQLServerExtractor{
		client: client,
		schema: schemaName,
		logger: logger,
	}
}

// ExtractSchema extracts the complete schema for specified tables
// If tables is empty, extracts all user tables in the schema
func (e *SQLServerExtractor) ExtractSchema(ctx context.Context, tables []string) (*schema.Schema, error) {
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

func (e *SQLServerExtractor) getTableNames(ctx context.Context, requestedTables []string) ([]string, error) {
	if len(requestedTables) > 0 {
		return requestedTables, nil
	}

	query := `
		SET NOCOUNT ON;
		SELECT t.name
		FROM sys.tables t
		WHERE SCHEMA_NAME(t.schema_id) = @schema
		  AND t.is_ms_shipped = 0
		  AND t.name <> 'sysdiagrams'
		ORDER BY t.name
	`

	rows, err := e.client.GetDB().QueryContext(ctx, query, sql.Named("schema", e.schema))
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

func (e *SQLServerExtractor) extractTable(ctx context.Context, tableName string) (*schema.Table, error) {
	table := &schema.Table{Name: tableName, Schema: e.schema}

	comment, err := e.extractComment(ctx, tableName)
	if err != nil {
		return nil, fmt.Errorf("failed to extract table comment: %w", err)
	}
	table.Comment = comment

	columns, err := e.extractColumns(ctx, tableName)
	if err != nil {
		return nil, fmt.Errorf("failed to extract columns: %w", err)
	}
	if len(columns) == 0 {
		return nil, fmt.Errorf("table not found in schema %s", e.schema)
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

func (e *SQLServerExtractor) extractComment(ctx context.Context, tableName string) (string, error) {
	query := `
		SET NOCOUNT ON;
		SELECT CAST(ep.value AS nvarchar(4000))
		FROM sys.extended_properties ep
		WHERE ep.major_id = OBJECT_ID(QUOTENAME(@schema) + N'.' + QUOTENAME(@table))
		  AND ep.minor_id = 0
		  AND ep.class = 1
		  AND ep.name = N'MS_Description'
	`

	var comment sql.NullString
	err := e.client.GetDB().QueryRowContext(ctx, query,
		sql.Named("schema", e.schema),
		sql.Named("table", tableName),
	).Scan(&comment)
	if err == sql.ErrNoRows {
		return "", nil
	}
	if err != nil {
		return "", err
	}
	return comment.String, nil
}

// sqlServerLength converts sys.columns.max_length, which is in bytes and -1
// for MAX, to a character count
func sqlServerLength(typeName string, maxLength int) *int {
	switch typeName {
	case "nvarchar", "nchar":
		if maxLength < 0 {
			return nil
		}
		return intPtr(maxLength / 2)
	case "varchar", "char", "varbinary", "binary":
		if maxLength < 0 {
			return nil
		}
		return intPtr(maxLength)
	default:
		return nil
	}
}

func (e *SQLServerExtractor) extractColumns(ctx context.Context, tableName string) ([]schema.Column, error) {
	query := `
		SET NOCOUNT ON;
		SELECT
		    c.name,
		    tp.name,
		    c.is_nullable,
		    c.is_identity,
		    c.is_computed,
		    CAST(c.max_length AS int),
		    CAST(c.precision AS int),
		    CAST(c.scale AS int),
		    CASE WHEN pk.column_id IS NOT NULL THEN 1 ELSE 0 END,
		    dc.definition,
		    CAST(ep.value AS nvarchar(4000))
		FROM sys.columns c
		INNER JOIN sys.types tp ON c.user_type_id = tp.user_type_id
		LEFT JOIN (
		    SELECT ic.object_id, ic.column_id
		    FROM sys.index_columns ic
		    INNER JOIN sys.indexes i ON ic.object_id = i.object_id AND ic.index_id = i.index_id
		    WHERE i.is_primary_key = 1
		) pk ON c.object_id = pk.object_id AND c.column_id = pk.column_id
		LEFT JOIN sys.default_constraints dc ON dc.object_id = c.default_object_id
		LEFT JOIN sys.extended_properties ep
		    ON ep.major_id = c.object_id AND ep.minor_id = c.column_id
		    AND ep.class = 1 AND ep.name = N'MS_Description'
		WHERE c.object_id = OBJECT_ID(QUOTENAME(@schema) + N'.' + QUOTENAME(@table))
		ORDER BY c.column_id
	`

	rows, err := e.client.GetDB().QueryContext(ctx, query,
		sql.Named("schema", e.schema),
		sql.Named("table", tableName),
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var columns []schema.Column
	for rows.Next() {
		var (
			col                         schema.Column
			maxLength, precision, scale int
			isPrimary                   int
			defaultValue, comment       sql.NullString
		)
		if err := rows.Scan(&col.Name, &col.DataType, &col.Nullable, &col.Identity, &col.Computed,
			&maxLength, &precision, &scale, &isPrimary, &defaultValue, &comment); err != nil {
			return nil, err
		}

		col.PrimaryKey = isPrimary == 1
		col.MaxLength = sqlServerLength(col.DataType, maxLength)
		if col.DataType == "decimal" || col.DataType == "numeric" {
			col.Precision = intPtr(precision)
			col.Scale = intPtr(scale)
		}
		if defaultValue.Valid {
			v := defaultValue.String
			col.DefaultValue = &v
		}
		col.Comment = comment.String

		columns = append(columns, col)
	}

	return columns, rows.Err()
}

func (e *SQLServerExtractor) extractForeignKeys(ctx context.Context, tableName string) ([]schema.ForeignKey, error) {
	query := `
		SET NOCOUNT ON;
		SELECT
		    fk.name,
		    COL_NAME(fkc.parent_object_id, fkc.parent_column_id),
		    OBJECT_NAME(fk.referenced_object_id),
		    SCHEMA_NAME(rt.schema_id),
		    COL_NAME(fkc.referenced_object_id, fkc.referenced_column_id),
		    fk.delete_referential_action_desc,
		    fk.update_referential_action_desc,
		    fk.is_disabled
		FROM sys.foreign_keys fk
		INNER JOIN sys.foreign_key_columns fkc ON fk.object_id = fkc.constraint_object_id
		INNER JOIN sys.tables rt ON fk.referenced_object_id = rt.object_id
		WHERE fk.parent_object_id = OBJECT_ID(QUOTENAME(@schema) + N'.' + QUOTENAME(@table))
		ORDER BY fk.name, fkc.constraint_column_id
	`

	rows, err := e.client.GetDB().QueryContext(ctx, query,
		sql.Named("schema", e.schema),
		sql.Named("table", tableName),
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var fkRows []foreignKeyRow
	for rows.Next() {
		var (
			r        foreignKeyRow
			disabled bool
		)
		if err := rows.Scan(&r.Constraint, &r.Column, &r.ReferencedTable, &r.ReferencedSchema,
			&r.ReferencedColumn, &r.DeleteRule, &r.UpdateRule, &disabled); err != nil {
			return nil, err
		}
		r.Enabled = !disabled
		fkRows = append(fkRows, r)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	return groupForeignKeys(fkRows), nil
}

func (e *SQLServerExtractor) extractIndexes(ctx context.Context, tableName string) ([]schema.Index, error) {
	query := `
		SET NOCOUNT ON;
		SELECT
		    i.name,
		    i.is_unique,
		    i.is_primary_key,
		    i.is_disabled,
		    c.name,
		    CAST(ic.key_ordinal AS int),
		    ic.is_descending_key,
		    ic.is_included_column
		FROM sys.indexes i
		INNER JOIN sys.index_columns ic ON ic.object_id = i.object_id AND ic.index_id = i.index_id
		INNER JOIN sys.columns c ON c.object_id = ic.object_id AND c.column_id = ic.column_id
		WHERE i.object_id = OBJECT_ID(QUOTENAME(@schema) + N'.' + QUOTENAME(@table))
		  AND i.name IS NOT NULL
		ORDER BY i.name, ic.is_included_column, ic.key_ordinal, ic.index_column_id
	`

	rows, err := e.client.GetDB().QueryContext(ctx, query,
		sql.Named("schema", e.schema),
		sql.Named("table", tableName),
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var idxRows []indexRow
	for rows.Next() {
		var r indexRow
		if err := rows.Scan(&r.Index, &r.Unique, &r.PrimaryKey, &r.Disabled,
			&r.Column, &r.Ordinal, &r.Descending, &r.Included); err != nil {
			return nil, err
		}
		idxRows = append(idxRows, r)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	return groupIndexes(idxRows), nil
}
