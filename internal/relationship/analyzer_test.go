package relationship

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"github.com/howjerry/efreverse/internal/schema"
)

func fk(name, column, refTable, refColumn string) schema.ForeignKey {
	return schema.ForeignKey{
		Name:            name,
		ColumnPairs:     []schema.ColumnPair{{Column: column, ReferencedColumn: refColumn}},
		ReferencedTable: refTable,
		DeleteRule:      schema.ActionNoAction,
		UpdateRule:      schema.ActionNoAction,
		Enabled:         true,
	}
}

func customer() *schema.Table {
	return &schema.Table{
		Name:    "Customer",
		Columns: []schema.Column{{Name: "CustomerId", DataType: "int", PrimaryKey: true}},
	}
}

func order() *schema.Table {
	return &schema.Table{
		Name: "Order",
		Columns: []schema.Column{
			{Name: "OrderId", DataType: "int", PrimaryKey: true},
			{Name: "CustomerId", DataType: "int"},
		},
		ForeignKeys: []schema.ForeignKey{fk("FK_Order_Customer", "CustomerId", "Customer", "CustomerId")},
	}
}

func user() *schema.Table {
	return &schema.Table{
		Name: "User",
		Columns: []schema.Column{
			{Name: "UserId", DataType: "int", PrimaryKey: true},
			{Name: "UserProfileId", DataType: "int"},
		},
		ForeignKeys: []schema.ForeignKey{fk("FK_User_UserProfile", "UserProfileId", "UserProfile", "ProfileId")},
		Indexes: []schema.Index{
			{Name: "UX_User_UserProfileId", Unique: true, Columns: []schema.IndexColumn{{Name: "UserProfileId", Ordinal: 1}}},
		},
	}
}

func userProfile() *schema.Table {
	return &schema.Table{
		Name:    "UserProfile",
		Columns: []schema.Column{{Name: "ProfileId", DataType: "int", PrimaryKey: true}},
	}
}

func student() *schema.Table {
	return &schema.Table{Name: "Student", Columns: []schema.Column{{Name: "StudentId", PrimaryKey: true}}}
}

func course() *schema.Table {
	return &schema.Table{Name: "Course", Columns: []schema.Column{{Name: "CourseId", PrimaryKey: true}}}
}

func enrollment() *schema.Table {
	return &schema.Table{
		Name: "Enrollment",
		Columns: []schema.Column{
			{Name: "StudentId", PrimaryKey: true},
			{Name: "CourseId", PrimaryKey: true},
		},
		ForeignKeys: []schema.ForeignKey{
			fk("FK_Enrollment_Student", "StudentId", "Student", "StudentId"),
			fk("FK_Enrollment_Course", "CourseId", "Course", "CourseId"),
		},
	}
}

func TestAnalyzeRelationship_OneToMany(t *testing.T) {
	a := New(nil)

	rel, err := a.AnalyzeRelationship(order(), customer())
	require.NoError(t, err)

	assert.Equal(t, OneToMany, rel.Kind)
	assert.Equal(t, "Customer", rel.SourceTable)
	assert.Equal(t, "Order", rel.TargetTable)
	require.Len(t, rel.ForeignKeys, 1)
	assert.Equal(t, ForeignKeyInfo{
		ConstraintName:   "FK_Order_Customer",
		Column:           "CustomerId",
		ReferencedColumn: "CustomerId",
		DeleteRule:       schema.ActionNoAction,
		UpdateRule:       schema.ActionNoAction,
	}, rel.ForeignKeys[0])
	assert.Nil(t, rel.Junction)
}

func TestAnalyzeRelationship_OneToOneByUniqueIndex(t *testing.T) {
	rel, err := New(nil).AnalyzeRelationship(user(), userProfile())
	require.NoError(t, err)

	assert.Equal(t, OneToOne, rel.Kind)
	assert.Equal(t, "User", rel.SourceTable)
	assert.Equal(t, "UserProfile", rel.TargetTable)
}

func TestAnalyzeRelationship_OneToOneBySharedPrimaryKey(t *testing.T) {
	details := &schema.Table{
		Name:        "CustomerDetails",
		Columns:     []schema.Column{{Name: "CustomerId", PrimaryKey: true}, {Name: "Notes"}},
		ForeignKeys: []schema.ForeignKey{fk("FK_Details_Customer", "CustomerId", "Customer", "CustomerId")},
	}

	rel, err := New(nil).AnalyzeRelationship(details, customer())
	require.NoError(t, err)
	assert.Equal(t, OneToOne, rel.Kind)
	assert.Equal(t, "CustomerDetails", rel.SourceTable)
}

func TestAnalyzeRelationship_KeyInsideCompositePrimaryKey(t *testing.T) {
	line := &schema.Table{
		Name: "OrderLine",
		Columns: []schema.Column{
			{Name: "OrderId", PrimaryKey: true},
			{Name: "LineNo", PrimaryKey: true},
			{Name: "Quantity"},
		},
		ForeignKeys: []schema.ForeignKey{fk("FK_Line_Order", "OrderId", "Order", "OrderId")},
	}

	// Every local column is a source key column and the key covers the target key.
	rel, err := New(nil).AnalyzeRelationship(line, order())
	require.NoError(t, err)
	assert.Equal(t, OneToOne, rel.Kind)
	assert.Equal(t, "OrderLine", rel.SourceTable)
	assert.Equal(t, "Order", rel.TargetTable)

	line.Columns[0].PrimaryKey = false
	rel, err = New(nil).AnalyzeRelationship(line, order())
	require.NoError(t, err)
	assert.Equal(t, OneToMany, rel.Kind)
	assert.Equal(t, "Order", rel.SourceTable)
}

func TestAnalyzeRelationship_IgnoresFaultsInUnrelatedKeys(t *testing.T) {
	o := order()
	o.ForeignKeys = append(o.ForeignKeys,
		schema.ForeignKey{Name: "FK_dead", ReferencedTable: "Archive"},
		schema.ForeignKey{Name: "FK_stale", ReferencedTable: "Archive", Enabled: true,
			ColumnPairs: []schema.ColumnPair{{Column: "Gone", ReferencedColumn: "Id"}}},
	)

	rel, err := New(nil).AnalyzeRelationship(o, customer())
	require.NoError(t, err)
	assert.Equal(t, OneToMany, rel.Kind)

	_, err = New(nil).AnalyzeRelationship(o, &schema.Table{Name: "Archive", Columns: []schema.Column{{Name: "Id", PrimaryKey: true}}})
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrAnalysisFailed)
	assert.Contains(t, err.Error(), "FK_stale")
}

func TestAnalyzeRelationship_ManyToMany(t *testing.T) {
	a := New(nil)

	for _, target := range []*schema.Table{student(), course()} {
		t.Run(target.Name, func(t *testing.T) {
			rel, err := a.AnalyzeRelationship(enrollment(), target)
			require.NoError(t, err)

			assert.Equal(t, ManyToMany, rel.Kind)
			assert.Equal(t, "Student", rel.SourceTable)
			assert.Equal(t, "Course", rel.TargetTable)
			require.NotNil(t, rel.Junction)
			assert.Equal(t, "Enrollment", rel.Junction.TableName)
			assert.Equal(t, []string{"StudentId"}, rel.Junction.SourceKeyColumns)
			assert.Equal(t, []string{"CourseId"}, rel.Junction.TargetKeyColumns)
			assert.Empty(t, rel.Junction.PayloadColumns)
		})
	}
}

func TestAnalyzeRelationship_ManyToManyWithPayload(t *testing.T) {
	j := enrollment()
	j.Columns = append(j.Columns, schema.Column{Name: "EnrolledOn"}, schema.Column{Name: "Grade"})

	rel, err := New(nil).AnalyzeRelationship(j, student())
	require.NoError(t, err)
	assert.Equal(t, ManyToMany, rel.Kind)
	assert.Equal(t, []string{"EnrolledOn", "Grade"}, rel.Junction.PayloadColumns)

	j.Columns = append(j.Columns, schema.Column{Name: "Notes"})
	rel, err = New(nil).AnalyzeRelationship(j, student())
	require.NoError(t, err)
	assert.NotEqual(t, ManyToMany, rel.Kind)

	rel, err = New(nil, WithPayloadTolerance(3)).AnalyzeRelationship(j, student())
	require.NoError(t, err)
	assert.Equal(t, ManyToMany, rel.Kind)
}

func TestAnalyzeRelationship_Unknown(t *testing.T) {
	a := New(nil)

	tests := []struct {
		name   string
		source *schema.Table
		target *schema.Table
	}{
		{"no foreign keys", customer(), order()},
		{"foreign key to another table", order(), userProfile()},
		{"reverse direction of junction", student(), enrollment()},
		{"disabled foreign key", func() *schema.Table {
			o := order()
			o.ForeignKeys[0].Enabled = false
			return o
		}(), customer()},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rel, err := a.AnalyzeRelationship(tt.source, tt.target)
			require.NoError(t, err)
			assert.Equal(t, Unknown, rel.Kind)
		})
	}
}

func TestAnalyzeRelationship_MultipleKeysToSameTarget(t *testing.T) {
	doc := &schema.Table{
		Name: "Document",
		Columns: []schema.Column{
			{Name: "DocumentId", PrimaryKey: true},
			{Name: "AuthorId"},
			{Name: "ReviewerId"},
		},
		ForeignKeys: []schema.ForeignKey{
			fk("FK_Doc_Author", "AuthorId", "User", "UserId"),
			fk("FK_Doc_Reviewer", "ReviewerId", "User", "UserId"),
		},
		Indexes: []schema.Index{
			{Name: "UX_Author", Unique: true, Columns: []schema.IndexColumn{{Name: "AuthorId", Ordinal: 1}}},
		},
	}

	rel, err := New(nil).AnalyzeRelationship(doc, user())
	require.NoError(t, err)
	assert.Equal(t, OneToMany, rel.Kind)
	assert.Equal(t, "User", rel.SourceTable)
	assert.Equal(t, "Document", rel.TargetTable)
	assert.Len(t, rel.ForeignKeys, 2)
}

func TestAnalyzeRelationship_UnmappedReferencedColumn(t *testing.T) {
	u := user()
	u.ForeignKeys[0].ColumnPairs[0].ReferencedColumn = ""

	rel, err := New(nil).AnalyzeRelationship(u, userProfile())
	require.NoError(t, err)
	assert.Equal(t, OneToMany, rel.Kind)
}

func TestAnalyzeRelationship_InvalidArgument(t *testing.T) {
	a := New(nil)

	tests := []struct {
		name    string
		source  *schema.Table
		target  *schema.Table
		message string
	}{
		{"nil source", nil, customer(), "source table is nil"},
		{"nil target", order(), nil, "target table is nil"},
		{"empty source name", &schema.Table{}, customer(), "source table name is empty"},
		{"empty target name", order(), &schema.Table{}, "target table name is empty"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := a.AnalyzeRelationship(tt.source, tt.target)
			require.Error(t, err)
			assert.ErrorIs(t, err, ErrInvalidArgument)
			assert.ErrorContains(t, err, tt.message)
		})
	}
}

func TestAnalyzeRelationship_CorruptTableIsLoggedAndWrapped(t *testing.T) {
	core, logs := observer.New(zapcore.DebugLevel)
	a := New(zap.New(core))

	broken := &schema.Table{
		Name:        "InvalidTable",
		ForeignKeys: []schema.ForeignKey{fk("FK_Invalid", "NonExistentColumn", "Customer", "CustomerId")},
	}

	_, err := a.AnalyzeRelationship(broken, customer())
	require.Error(t, err)

	var analysisErr *AnalysisError
	require.True(t, errors.As(err, &analysisErr))
	assert.Equal(t, "InvalidTable", analysisErr.Source)
	assert.Equal(t, "Customer", analysisErr.Target)
	assert.ErrorIs(t, err, ErrAnalysisFailed)
	assert.ErrorContains(t, err, "InvalidTable")
	assert.ErrorContains(t, err, "Customer")

	errorLogs := logs.FilterLevelExact(zapcore.ErrorLevel).All()
	require.Len(t, errorLogs, 1)
	assert.Equal(t, "Relationship analysis failed", errorLogs[0].Message)
	assert.Equal(t, "InvalidTable", errorLogs[0].ContextMap()["source"])
	assert.Equal(t, "Customer", errorLogs[0].ContextMap()["target"])
}

func TestAnalyzeRelationship_DoesNotMutateInput(t *testing.T) {
	j := enrollment()
	before := *j
	before.Columns = append([]schema.Column(nil), j.Columns...)
	before.ForeignKeys = append([]schema.ForeignKey(nil), j.ForeignKeys...)

	_, err := New(nil).AnalyzeRelationship(j, student())
	require.NoError(t, err)
	assert.Equal(t, before, *j)
}

func TestAnalyzeAll(t *testing.T) {
	core, logs := observer.New(zapcore.DebugLevel)
	a := New(zap.New(core))

	orphan := &schema.Table{
		Name:        "Audit",
		Columns:     []schema.Column{{Name: "AuditId", PrimaryKey: true}, {Name: "ActorId"}},
		ForeignKeys: []schema.ForeignKey{fk("FK_Audit_Actor", "ActorId", "Actor", "ActorId")},
	}
	tables := []schema.Table{*customer(), *order(), *user(), *userProfile(), *student(), *course(), *enrollment(), *orphan}

	rels, err := a.AnalyzeAll(tables, nil)
	require.NoError(t, err)

	kinds := make(map[Kind]int)
	for _, rel := range rels {
		kinds[rel.Kind]++
	}
	assert.Equal(t, 1, kinds[OneToMany])
	assert.Equal(t, 1, kinds[OneToOne])
	assert.Equal(t, 1, kinds[ManyToMany], "junction is reported once")

	warnings := logs.FilterMessage("Referenced table not loaded").All()
	require.Len(t, warnings, 1)
	assert.Equal(t, "Actor", warnings[0].ContextMap()["referenced_table"])
}

func TestAnalyzeAll_ContinuesPastFailures(t *testing.T) {
	broken := schema.Table{
		Name:        "Broken",
		Columns:     []schema.Column{{Name: "Id", PrimaryKey: true}},
		ForeignKeys: []schema.ForeignKey{fk("FK_Broken", "Missing", "Customer", "CustomerId")},
	}
	tables := []schema.Table{*customer(), broken, *order()}

	rels, err := New(nil).AnalyzeAll(tables, nil)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrAnalysisFailed)
	require.Len(t, rels, 1)
	assert.Equal(t, "Order", rels[0].TargetTable)
}

func TestAnalyzeAll_SharedMemoSkipsKnownRelationships(t *testing.T) {
	a := New(nil)
	memo := NewPairMemo()
	tables := []schema.Table{*customer(), *order()}

	first, err := a.AnalyzeAll(tables, memo)
	require.NoError(t, err)
	assert.Len(t, first, 1)

	second, err := a.AnalyzeAll(tables, memo)
	require.NoError(t, err)
	assert.Empty(t, second)
	assert.Equal(t, 1, memo.Len())
}

func TestKindString(t *testing.T) {
	assert.Equal(t, "Unknown", Unknown.String())
	assert.Equal(t, "OneToOne", OneToOne.String())
	assert.Equal(t, "OneToMany", OneToMany.String())
	assert.Equal(t, "ManyToMany", ManyToMany.String())
	assert.Equal(t, "1:N", OneToMany.Cardinality())
}
