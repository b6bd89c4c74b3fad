package db

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/howjerry/efreverse/internal/schema"
)

const varcharType = "varchar"

// PostgresExtractor reads tables from the PostgreSQL catalog
type PostgresExtractor struct {
	client *PostgresClient
	schema string
	logger *zap.Logger
}

// NewPostgresExtractor creates a new schema extractor for one PostgreSQL schema
func NewPostgresExtractor(client *PostgresClient, schemaName string, logger *zap.Logger) *PostgresExtractor {
	if logger == nil {
		logger = zap.NewNop()
	}
	if schemaName == "" {
		schemaName = "public"
	}
	return &PostgresExtractor{
		client: client,
		schema: schemaName,
		logger: logger,
	}
}

// ExtractSchema extracts the complete schema for specified tables
// If tables is empty, extracts all tables in the schema
func (e *PostgresExtractor) ExtractSchema(ctx context.Context, tables []string) (*schema.Schema, error) {
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

func (e *PostgresExtractor) getTableNames(ctx context.Context, requestedTables []string) ([]string, error) {
	if len(requestedTables) > 0 {
		return requestedTables, nil
	}

	query := `
		SELECT table_name::text
		FROM information_schema.tables
		WHERE table_schema = $1 AND table_type = 'BASE TABLE'
		ORDER BY table_name
	`

	rows, err := e.client.Conn().Query(ctx, query, e.schema)
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

func (e *PostgresExtractor) extractTable(ctx context.Context, tableName string) (*schema.Table, error) {
	table := &schema.Table{Name: tableName, Schema: e.schema}

	columns, err := e.extractColumns(ctx, tableName)
	if err != nil {
		return nil, fmt.Errorf("failed to extract columns: %w", err)
	}
	if len(columns) == 0 {
		return nil, fmt.Errorf("table not found in schema %s", e.schema)
	}
	table.Columns = columns

	pk, err := e.extractPrimaryKey(ctx, tableName)
	if err != nil {
		return nil, fmt.Errorf("failed to extract primary key: %w", err)
	}
	markPrimaryKey(table.Columns, pk)

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

	comment, err := e.extractComment(ctx, tableName)
	if err != nil {
		return nil, fmt.Errorf("failed to extract table comment: %w", err)
	}
	table.Comment = comment

	return table, nil
}

// normalizePostgresType maps verbose SQL type names to commonly-used PostgreSQL equivalents
func normalizePostgresType(dataType, udtName string) string {
	switch dataType {
	case "timestamp with time zone":
		return "timestamptz"
	case "timestamp without time zone":
		return "timestamp"
	case "time with time zone":
		return "timetz"
	case "time without time zone":
		return "time"
	case "character varying":
		return varcharType
	case "character":
		return "char"
	case "ARRAY":
		// udt_name carries an underscore prefix for arrays, e.g. "_int4" for integer[]
		if strings.HasPrefix(udtName, "_") {
			return normalizeUdtName(udtName[1:]) + "[]"
		}
		return "array"
	case "USER-DEFINED":
		return udtName
	default:
		return dataType
	}
}

func normalizeUdtName(udtName string) string {
	switch udtName {
	case "int4":
		return "integer"
	case "int8":
		return "bigint"
	case "int2":
		return "smallint"
	case "float4":
		return "real"
	case "float8":
		return "double precision"
	case "bool":
		return "boolean"
	default:
		return udtName
	}
}

func (e *PostgresExtractor) extractColumns(ctx context.Context, tableName string) ([]schema.Column, error) {
	query := `
		SELECT
			c.column_name::text,
			c.data_type::text,
			c.udt_name::text,
			c.is_nullable::text = 'YES',
			c.column_default::text,
			c.character_maximum_length::int,
			c.numeric_precision::int,
			c.numeric_scale::int,
			c.is_identity::text = 'YES' OR COALESCE(c.column_default::text LIKE 'nextval(%', false),
			c.is_generated::text = 'ALWAYS',
			col_description(format('%I.%I', c.table_schema, c.table_name)::regclass, c.ordinal_position::int)
		FROM information_schema.columns c
		WHERE c.table_schema = $1 AND c.table_name = $2
		ORDER BY c.ordinal_position
	`

	rows, err := e.client.Conn().Query(ctx, query, e.schema, tableName)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var columns []schema.Column
	for rows.Next() {
		var (
			col      schema.Column
			dataType string
			udtName  string
			comment  *string
		)
		if err := rows.Scan(
			&col.Name, &dataType, &udtName, &col.Nullable, &col.DefaultValue,
			&col.MaxLength, &col.Precision, &col.Scale,
			&col.Identity, &col.Computed, &comment,
		); err != nil {
			return nil, err
		}

		col.DataType = normalizePostgresType(dataType, udtName)
		if comment != nil {
			col.Comment = *comment
		}
		columns = append(columns, col)
	}

	return columns, rows.Err()
}

func (e *PostgresExtractor) extractPrimaryKey(ctx context.Context, tableName string) ([]string, error) {
	query := `
		SELECT a.attname::text
		FROM pg_index ix
		JOIN pg_class t ON t.oid = ix.indrelid
		JOIN pg_namespace n ON n.oid = t.relnamespace
		CROSS JOIN LATERAL unnest(ix.indkey::int2[]) WITH ORDINALITY AS k(attnum, ord)
		JOIN pg_attribute a ON a.attrelid = t.oid AND a.attnum = k.attnum
		WHERE ix.indisprimary AND n.nspname = $1 AND t.relname = $2
		ORDER BY k.ord
	`

	rows, err := e.client.Conn().Query(ctx, query, e.schema, tableName)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var pk []string
	for rows.Next() {
		var colName string
		if err := rows.Scan(&colName); err != nil {
			return nil, err
		}
		pk = append(pk, colName)
	}

	return pk, rows.Err()
}

// extractForeignKeys reads pg_constraint so that composite keys keep their
// column pairing. PostgreSQL cannot disable a foreign key, so all are enabled.
func (e *PostgresExtractor) extractForeignKeys(ctx context.Context, tableName string) ([]schema.ForeignKey, error) {
	query := `
		SELECT
			con.conname::text,
			att.attname::text,
			ref_cls.relname::text,
			ref_ns.nspname::text,
			ref_att.attname::text,
			con.confdeltype::text,
			con.confupdtype::text
		FROM pg_constraint con
		JOIN pg_class cls ON cls.oid = con.conrelid
		JOIN pg_namespace ns ON ns.oid = cls.relnamespace
		JOIN pg_class ref_cls ON ref_cls.oid = con.confrelid
		JOIN pg_namespace ref_ns ON ref_ns.oid = ref_cls.relnamespace
		CROSS JOIN LATERAL unnest(con.conkey, con.confkey) WITH ORDINALITY AS k(attnum, ref_attnum, ord)
		JOIN pg_attribute att ON att.attrelid = con.conrelid AND att.attnum = k.attnum
		JOIN pg_attribute ref_att ON ref_att.attrelid = con.confrelid AND ref_att.attnum = k.ref_attnum
		WHERE con.contype = 'f' AND ns.nspname = $1 AND cls.relname = $2
		ORDER BY con.oid, k.ord
	`

	rows, err := e.client.Conn().Query(ctx, query, e.schema, tableName)
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

func (e *PostgresExtractor) extractIndexes(ctx context.Context, tableName string) ([]schema.Index, error) {
	query := `
		SELECT
			i.relname::text,
			ix.indisunique,
			ix.indisprimary,
			NOT ix.indisvalid,
			a.attname::text,
			k.ord::int,
			COALESCE((ix.indoption::int2[])[k.ord - 1] & 1 = 1, false),
			k.ord > ix.indnkeyatts
		FROM pg_index ix
		JOIN pg_class t ON t.oid = ix.indrelid
		JOIN pg_class i ON i.oid = ix.indexrelid
		JOIN pg_namespace n ON n.oid = t.relnamespace
		CROSS JOIN LATERAL unnest(ix.indkey::int2[]) WITH ORDINALITY AS k(attnum, ord)
		JOIN pg_attribute a ON a.attrelid = t.oid AND a.attnum = k.attnum
		WHERE n.nspname = $1 AND t.relname = $2
		ORDER BY i.relname, k.ord
	`

	rows, err := e.client.Conn().Query(ctx, query, e.schema, tableName)
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

func (e *PostgresExtractor) extractComment(ctx context.Context, tableName string) (string, error) {
	var comment *string
	err := e.client.Conn().QueryRow(ctx,
		`SELECT obj_description(format('%I.%I', $1::text, $2::text)::regclass, 'pg_class')`,
		e.schema, tableName,
	).Scan(&comment)
	if err != nil {
		return "", err
	}
	if comment == nil {
		return "", nil
	}
	return *comment, nil
}
