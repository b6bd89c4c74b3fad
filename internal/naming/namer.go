package naming

import (
	"strings"
	"unicode"
)

// Namer derives entity, property and collection names from schema identifiers.
type Namer struct {
	PascalCase          bool
	Pluralize           bool
	SingularizeEntities bool
}

// EntityName returns the class name for a table.
func (n Namer) EntityName(table string) string {
	name := table
	if n.SingularizeEntities {
		name = Singularize(name)
	}
	if n.PascalCase {
		name = ToPascalCase(name)
	}
	return Identifier(name)
}

// PropertyName returns the member name for a column.
func (n Namer) PropertyName(column string) string {
	name := column
	if n.PascalCase {
		name = ToPascalCase(name)
	}
	return Identifier(name)
}

// CollectionName returns the name of a collection navigation holding entity values.
func (n Namer) CollectionName(entity string) string {
	if !n.Pluralize {
		return entity + "List"
	}
	return Pluralize(entity)
}

// RoleName derives a navigation name from a foreign key column by dropping a
// trailing Id, e.g. "created_by_user_id" becomes "CreatedByUser".
func (n Namer) RoleName(column string) string {
	name := column
	lower := strings.ToLower(name)
	switch {
	case strings.HasSuffix(lower, "_id"):
		name = name[:len(name)-3]
	case strings.HasSuffix(lower, "id") && len(name) > 2:
		name = name[:len(name)-2]
	}
	return n.PropertyName(strings.TrimRight(name, "_"))
}

// Identifier makes s usable as a C# identifier: invalid characters become
// underscores, a leading digit gets an underscore prefix and keywords are escaped with @.
func Identifier(s string) string {
	if s == "" {
		return "_"
	}

	var b strings.Builder
	b.Grow(len(s) + 1)
	for i, r := range s {
		if i == 0 && unicode.IsDigit(r) {
			b.WriteByte('_')
		}
		if r == '_' || unicode.IsLetter(r) || unicode.IsDigit(r) {
			b.WriteRune(r)
			continue
		}
		b.WriteByte('_')
	}

	id := b.String()
	if csharpKeywords[id] {
		return "@" + id
	}
	return id
}

var csharpKeywords = map[string]bool{
	"abstract": true, "as": true, "base": true, "bool": true, "break": true, "byte": true,
	"case": true, "catch": true, "char": true, "checked": true, "class": true, "const": true,
	"continue": true, "decimal": true, "default": true, "delegate": true, "do": true, "double": true,
	"else": true, "enum": true, "event": true, "explicit": true, "extern": true, "false": true,
	"finally": true, "fixed": true, "float": true, "for": true, "foreach": true, "goto": true,
	"if": true, "implicit": true, "in": true, "int": true, "interface": true, "internal": true,
	"is": true, "lock": true, "long": true, "namespace": true, "new": true, "null": true,
	"object": true, "operator": true, "out": true, "override": true, "params": true, "private": true,
	"protected": true, "public": true, "readonly": true, "ref": true, "return": true, "sbyte": true,
	"sealed": true, "short": true, "sizeof": true, "stackalloc": true, "static": true, "string": true,
	"struct": true, "switch": true, "this": true, "throw": true, "true": true, "try": true,
	"typeof": true, "uint": true, "ulong": true, "unchecked": true, "unsafe": true, "ushort": true,
	"using": true, "virtual": true, "void": true, "volatile": true, "while": true,
}
