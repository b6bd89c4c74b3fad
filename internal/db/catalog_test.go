package db

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/howjerry/efreverse/internal/schema"
)

func TestGroupForeignKeys(t *testing.T) {
	rows := []foreignKeyRow{
		{Constraint: "fk_line_order", Column: "order_id", ReferencedTable: "orders", ReferencedColumn: "id", DeleteRule: "CASCADE", UpdateRule: "NO ACTION", Enabled: true},
		{Constraint: "fk_line_product", Column: "product_id", ReferencedTable: "products", ReferencedColumn: "id", DeleteRule: "r", UpdateRule: "a", Enabled: false},
		{Constraint: "fk_line_order", Column: "order_rev", ReferencedTable: "orders", ReferencedColumn: "rev", DeleteRule: "CASCADE", UpdateRule: "NO ACTION", Enabled: true},
	}

	fks := groupForeignKeys(rows)
	require.Len(t, fks, 2)

	assert.Equal(t, "fk_line_order", fks[0].Name)
	assert.Equal(t, "orders", fks[0].ReferencedTable)
	assert.Equal(t, []schema.ColumnPair{
		{Column: "order_id", ReferencedColumn: "id"},
		{Column: "order_rev", ReferencedColumn: "rev"},
	}, fks[0].ColumnPairs)
	assert.Equal(t, schema.ActionCascade, fks[0].DeleteRule)
	assert.Equal(t, schema.ActionNoAction, fks[0].UpdateRule)
	assert.True(t, fks[0].Enabled)

	assert.Equal(t, "fk_line_product", fks[1].Name)
	assert.Equal(t, schema.ActionRestrict, fks[1].DeleteRule)
	assert.Equal(t, schema.ActionNoAction, fks[1].UpdateRule)
	assert.False(t, fks[1].Enabled)
}

func TestGroupForeignKeysEmpty(t *testing.T) {
	assert.Empty(t, groupForeignKeys(nil))
}

func TestGroupIndexes(t *testing.T) {
	rows := []indexRow{
		{Index: "pk_orders", Unique: true, PrimaryKey: true, Column: "id", Ordinal: 1},
		{Index: "ix_orders_customer", Column: "customer_id", Ordinal: 1},
		{Index: "ix_orders_customer", Column: "placed_at", Ordinal: 2, Descending: true},
		{Index: "ix_orders_customer", Column: "total", Ordinal: 3, Included: true},
	}

	indexes := groupIndexes(rows)
	require.Len(t, indexes, 2)

	assert.Equal(t, "pk_orders", indexes[0].Name)
	assert.True(t, indexes[0].PrimaryKey)
	assert.True(t, indexes[0].Unique)

	ix := indexes[1]
	assert.False(t, ix.Unique)
	require.Len(t, ix.Columns, 3)
	assert.True(t, ix.Columns[1].Descending)
	assert.True(t, ix.Columns[2].Included)
	assert.Len(t, ix.KeyColumns(), 2)
}

func TestMarkPrimaryKey(t *testing.T) {
	columns := []schema.Column{{Name: "order_id"}, {Name: "line_no"}, {Name: "qty"}}
	markPrimaryKey(columns, []string{"order_id", "line_no"})

	assert.True(t, columns[0].PrimaryKey)
	assert.True(t, columns[1].PrimaryKey)
	assert.False(t, columns[2].PrimaryKey)
}

func TestNormalizePostgresType(t *testing.T) {
	tests := []struct {
		dataType string
		udtName  string
		want     string
	}{
		{"character varying", "varchar", "varchar"},
		{"timestamp with time zone", "timestamptz", "timestamptz"},
		{"timestamp without time zone", "timestamp", "timestamp"},
		{"ARRAY", "_int4", "integer[]"},
		{"ARRAY", "_text", "text[]"},
		{"USER-DEFINED", "order_status", "order_status"},
		{"integer", "int4", "integer"},
	}

	for _, tt := range tests {
		t.Run(tt.dataType+"/"+tt.udtName, func(t *testing.T) {
			assert.Equal(t, tt.want, normalizePostgresType(tt.dataType, tt.udtName))
		})
	}
}

func TestParseDeclaredType(t *testing.T) {
	tests := []struct {
		declared  string
		base      string
		length    *int
		precision *int
		scale     *int
	}{
		{"INTEGER", "integer", nil, nil, nil},
		{"VARCHAR(50)", "varchar", intPtr(50), nil, nil},
		{"nvarchar( 120 )", "nvarchar", intPtr(120), nil, nil},
		{"DECIMAL(10, 2)", "decimal", nil, intPtr(10), intPtr(2)},
		{"NUMERIC(8)", "numeric", nil, intPtr(8), nil},
		{"", "", nil, nil, nil},
	}

	for _, tt := range tests {
		t.Run(tt.declared, func(t *testing.T) {
			base, length, precision, scale := parseDeclaredType(tt.declared)
			assert.Equal(t, tt.base, base)
			assert.Equal(t, tt.length, length)
			assert.Equal(t, tt.precision, precision)
			assert.Equal(t, tt.scale, scale)
		})
	}
}

func TestSQLServerLength(t *testing.T) {
	assert.Equal(t, intPtr(50), sqlServerLength("nvarchar", 100))
	assert.Equal(t, intPtr(10), sqlServerLength("char", 10))
	assert.Nil(t, sqlServerLength("nvarchar", -1))
	assert.Nil(t, sqlServerLength("varbinary", -1))
	assert.Nil(t, sqlServerLength("int", 4))
}

func TestQuoteIdent(t *testing.T) {
	assert.Equal(t, `"orders"`, quoteIdent("orders"))
	assert.Equal(t, `"Order Details"`, quoteIdent("Order Details"))
	assert.Equal(t, `"a""b"`, quoteIdent(`a"b`))
}
