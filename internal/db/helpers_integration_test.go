//go:build integration
// +build integration

package db

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/howjerry/efreverse/internal/schema"
)

// schoolDDL is the shared fixture: a one-to-many, a one-to-one through a
// unique key, and a many-to-many through a pure junction table.
var schoolDDL = []string{
	`CREATE TABLE students (
		id INTEGER PRIMARY KEY,
		full_name VARCHAR(100) NOT NULL,
		email VARCHAR(200)
	)`,
	`CREATE TABLE courses (
		id INTEGER PRIMARY KEY,
		title VARCHAR(120) NOT NULL,
		credits DECIMAL(4, 1)
	)`,
	`CREATE TABLE enrollments (
		student_id INTEGER NOT NULL,
		course_id INTEGER NOT NULL,
		PRIMARY KEY (student_id, course_id),
		CONSTRAINT fk_enrollments_students FOREIGN KEY (student_id) REFERENCES students (id) ON DELETE CASCADE,
		CONSTRAINT fk_enrollments_courses FOREIGN KEY (course_id) REFERENCES courses (id) ON DELETE CASCADE
	)`,
	`CREATE TABLE badges (
		id INTEGER PRIMARY KEY,
		student_id INTEGER NOT NULL,
		issued_on DATE,
		CONSTRAINT uq_badges_student UNIQUE (student_id),
		CONSTRAINT fk_badges_students FOREIGN KEY (student_id) REFERENCES students (id)
	)`,
	`CREATE TABLE assignments (
		id INTEGER PRIMARY KEY,
		course_id INTEGER,
		due_on DATE,
		CONSTRAINT fk_assignments_courses FOREIGN KEY (course_id) REFERENCES courses (id) ON DELETE SET NULL
	)`,
}

var schoolTables = []string{"assignments", "badges", "courses", "enrollments", "students"}

func tableNames(tables []schema.Table) []string {
	names := make([]string, 0, len(tables))
	for _, t := range tables {
		names = append(names, t.Name)
	}
	return names
}

func findTable(t *testing.T, tables []schema.Table, name string) *schema.Table {
	t.Helper()
	for i := range tables {
		if tables[i].Name == name {
			return &tables[i]
		}
	}
	t.Fatalf("table %s not found", name)
	return nil
}

func findForeignKey(t *testing.T, table *schema.Table, referenced string) schema.ForeignKey {
	t.Helper()
	for _, fk := range table.ForeignKeys {
		if fk.ReferencedTable == referenced {
			return fk
		}
	}
	t.Fatalf("no foreign key from %s to %s", table.Name, referenced)
	return schema.ForeignKey{}
}

// verifySchool checks the parts of the fixture every engine reports the same way
func verifySchool(t *testing.T, tables []schema.Table) {
	t.Helper()

	assert.ElementsMatch(t, schoolTables, tableNames(tables))

	students := findTable(t, tables, "students")
	require.NoError(t, students.Validate())
	assert.Equal(t, []string{"id"}, schema.PrimaryKeyColumns(students))
	name, ok := students.Column("full_name")
	require.True(t, ok)
	assert.False(t, name.Nullable)
	require.NotNil(t, name.MaxLength)
	assert.Equal(t, 100, *name.MaxLength)

	enrollments := findTable(t, tables, "enrollments")
	assert.Len(t, schema.PrimaryKeyColumns(enrollments), 2)
	assert.True(t, schema.IsManyToMany(enrollments))
	fk := findForeignKey(t, enrollments, "students")
	assert.Equal(t, []schema.ColumnPair{{Column: "student_id", ReferencedColumn: "id"}}, fk.ColumnPairs)
	assert.Equal(t, schema.ActionCascade, fk.DeleteRule)
	assert.True(t, fk.Enabled)

	badges := findTable(t, tables, "badges")
	assert.True(t, schema.IsOneToOne(badges, "student_id"))

	assignments := findTable(t, tables, "assignments")
	assert.Equal(t, schema.ActionSetNull, findForeignKey(t, assignments, "courses").DeleteRule)
}
