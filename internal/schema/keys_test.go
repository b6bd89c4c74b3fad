package schema

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func fk(name, column, refTable, refColumn string) ForeignKey {
	return ForeignKey{
		Name:            name,
		ColumnPairs:     []ColumnPair{{Column: column, ReferencedColumn: refColumn}},
		ReferencedTable: refTable,
		DeleteRule:      ActionNoAction,
		Enabled:         true,
	}
}

func enrollment() *Table {
	return &Table{
		Name: "Enrollment",
		Columns: []Column{
			{Name: "StudentId", DataType: "int", PrimaryKey: true},
			{Name: "CourseId", DataType: "int", PrimaryKey: true},
		},
		ForeignKeys: []ForeignKey{
			fk("FK_Enrollment_Student", "StudentId", "Student", "StudentId"),
			fk("FK_Enrollment_Course", "CourseId", "Course", "CourseId"),
		},
	}
}

func TestIsManyToMany(t *testing.T) {
	withPayload := func(n int) *Table {
		tbl := enrollment()
		for i := 0; i < n; i++ {
			tbl.Columns = append(tbl.Columns, Column{Name: string(rune('A'+i)) + "Payload", DataType: "int"})
		}
		return tbl
	}

	selfRef := &Table{
		Name: "Friendship",
		Columns: []Column{
			{Name: "UserId", PrimaryKey: true},
			{Name: "FriendId", PrimaryKey: true},
		},
		ForeignKeys: []ForeignKey{
			fk("FK1", "UserId", "User", "UserId"),
			fk("FK2", "FriendId", "User", "UserId"),
		},
	}

	selfDeclared := &Table{
		Name: "Node",
		Columns: []Column{
			{Name: "NodeId", PrimaryKey: true},
			{Name: "GraphId", PrimaryKey: true},
		},
		ForeignKeys: []ForeignKey{
			fk("FK1", "NodeId", "Node", "NodeId"),
			fk("FK2", "GraphId", "Graph", "GraphId"),
		},
	}

	singlePK := &Table{
		Name: "Link",
		Columns: []Column{
			{Name: "LinkId", PrimaryKey: true},
			{Name: "AId"},
			{Name: "BId"},
		},
		ForeignKeys: []ForeignKey{
			fk("FK1", "AId", "A", "AId"),
			fk("FK2", "BId", "B", "BId"),
		},
	}

	nonFKKey := &Table{
		Name: "Link",
		Columns: []Column{
			{Name: "AId", PrimaryKey: true},
			{Name: "Seq", PrimaryKey: true},
			{Name: "BId"},
		},
		ForeignKeys: []ForeignKey{
			fk("FK1", "AId", "A", "AId"),
			fk("FK2", "BId", "B", "BId"),
		},
	}

	disabled := enrollment()
	disabled.ForeignKeys[1].Enabled = false

	tests := []struct {
		name  string
		table *Table
		want  bool
	}{
		{"pure junction", enrollment(), true},
		{"two payload columns", withPayload(2), true},
		{"three payload columns", withPayload(3), false},
		{"both keys reference the same table", selfRef, false},
		{"self reference does not count as a side", selfDeclared, false},
		{"single column primary key", singlePK, false},
		{"primary key column without foreign key", nonFKKey, false},
		{"disabled foreign key", disabled, false},
		{"no foreign keys", &Table{Name: "Empty", Columns: []Column{{Name: "Id", PrimaryKey: true}}}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, IsManyToMany(tt.table))
		})
	}
}

func TestIsManyToManyWithin(t *testing.T) {
	tbl := enrollment()
	tbl.Columns = append(tbl.Columns,
		Column{Name: "EnrolledOn", DataType: "date"},
		Column{Name: "Grade", DataType: "char"},
		Column{Name: "Notes", DataType: "text"},
	)

	assert.False(t, IsManyToManyWithin(tbl, 2))
	assert.True(t, IsManyToManyWithin(tbl, 3))
	assert.False(t, IsManyToManyWithin(tbl, 0))
}

func TestJunctionSides(t *testing.T) {
	sides := JunctionSides(enrollment())

	if assert.Len(t, sides, 2) {
		assert.Equal(t, "Student", sides[0].ReferencedTable)
		assert.Equal(t, "Course", sides[1].ReferencedTable)
	}
}

func TestIsOneToOne(t *testing.T) {
	user := func() *Table {
		return &Table{
			Name: "User",
			Columns: []Column{
				{Name: "UserId", PrimaryKey: true},
				{Name: "UserProfileId"},
			},
			ForeignKeys: []ForeignKey{fk("FK_User_Profile", "UserProfileId", "UserProfile", "ProfileId")},
			Indexes: []Index{
				{Name: "PK_User", Unique: true, PrimaryKey: true, Columns: []IndexColumn{{Name: "UserId", Ordinal: 1}}},
				{Name: "UX_User_Profile", Unique: true, Columns: []IndexColumn{{Name: "UserProfileId", Ordinal: 1}}},
			},
		}
	}

	t.Run("unique index on foreign key column", func(t *testing.T) {
		assert.True(t, IsOneToOne(user(), "UserProfileId"))
	})

	t.Run("non-unique index", func(t *testing.T) {
		tbl := user()
		tbl.Indexes[1].Unique = false
		assert.False(t, IsOneToOne(tbl, "UserProfileId"))
	})

	t.Run("disabled index", func(t *testing.T) {
		tbl := user()
		tbl.Indexes[1].Disabled = true
		assert.False(t, IsOneToOne(tbl, "UserProfileId"))
	})

	t.Run("multi column unique index", func(t *testing.T) {
		tbl := user()
		tbl.Columns = append(tbl.Columns, Column{Name: "TenantId"})
		tbl.Indexes[1].Columns = append(tbl.Indexes[1].Columns, IndexColumn{Name: "TenantId", Ordinal: 2})
		assert.False(t, IsOneToOne(tbl, "UserProfileId"))
	})

	t.Run("included column does not widen the key", func(t *testing.T) {
		tbl := user()
		tbl.Columns = append(tbl.Columns, Column{Name: "DisplayName"})
		tbl.Indexes[1].Columns = append(tbl.Indexes[1].Columns, IndexColumn{Name: "DisplayName", Ordinal: 2, Included: true})
		assert.True(t, IsOneToOne(tbl, "UserProfileId"))
	})

	t.Run("primary key column", func(t *testing.T) {
		tbl := user()
		tbl.Columns[1].PrimaryKey = true
		assert.False(t, IsOneToOne(tbl, "UserProfileId"))
	})

	t.Run("column in two foreign keys", func(t *testing.T) {
		tbl := user()
		tbl.ForeignKeys = append(tbl.ForeignKeys, fk("FK_User_Other", "UserProfileId", "Other", "OtherId"))
		assert.False(t, IsOneToOne(tbl, "UserProfileId"))
	})

	t.Run("composite foreign key", func(t *testing.T) {
		tbl := user()
		tbl.Columns = append(tbl.Columns, Column{Name: "TenantId"})
		tbl.ForeignKeys[0].ColumnPairs = append(tbl.ForeignKeys[0].ColumnPairs, ColumnPair{Column: "TenantId", ReferencedColumn: "TenantId"})
		assert.False(t, IsOneToOne(tbl, "UserProfileId"))
	})
}

func TestIsJunctionTable(t *testing.T) {
	assert.True(t, IsJunctionTable(enrollment()))

	wide := enrollment()
	for _, name := range []string{"A", "B", "C"} {
		wide.Columns = append(wide.Columns, Column{Name: name})
	}
	assert.False(t, IsJunctionTable(wide))

	one := &Table{Name: "One", Columns: []Column{{Name: "Id"}}, ForeignKeys: []ForeignKey{fk("FK", "Id", "X", "Id")}}
	assert.False(t, IsJunctionTable(one))
}

func TestPayloadColumns(t *testing.T) {
	tbl := enrollment()
	tbl.Columns = append(tbl.Columns, Column{Name: "EnrolledOn"})

	assert.Equal(t, []string{"EnrolledOn"}, PayloadColumns(tbl))
	assert.Equal(t, []string{"StudentId", "CourseId"}, PrimaryKeyColumns(tbl))
}
