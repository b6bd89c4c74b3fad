// Package formatter renders entity plans as C# source and relationship reports.
package formatter

import (
	"bytes"
	"fmt"
	"io"
	"sort"
	"strings"

	"github.com/howjerry/efreverse/internal/emit"
)

const indentUnit = "    "

var csharpTypes = map[string]string{
	"int":       "int",
	"integer":   "int",
	"int4":      "int",
	"mediumint": "int",
	"serial":    "int",

	"bigint":    "long",
	"int8":      "long",
	"bigserial": "long",

	"smallint":    "short",
	"int2":        "short",
	"smallserial": "short",
	"year":        "short",
	"tinyint":     "byte",

	"bit":     "bool",
	"bool":    "bool",
	"boolean": "bool",

	"decimal":    "decimal",
	"numeric":    "decimal",
	"money":      "decimal",
	"smallmoney": "decimal",

	"float":            "double",
	"double":           "double",
	"double precision": "double",
	"float8":           "double",
	"real":             "float",
	"float4":           "float",

	"char":              "string",
	"nchar":             "string",
	"varchar":           "string",
	"nvarchar":          "string",
	"character":         "string",
	"character varying": "string",
	"text":              "string",
	"ntext":             "string",
	"tinytext":          "string",
	"mediumtext":        "string",
	"longtext":          "string",
	"clob":              "string",
	"citext":            "string",
	"xml":               "string",
	"json":              "string",
	"jsonb":             "string",
	"enum":              "string",
	"set":               "string",

	"date":                        "DateTime",
	"datetime":                    "DateTime",
	"datetime2":                   "DateTime",
	"smalldatetime":               "DateTime",
	"timestamp":                   "DateTime",
	"timestamp without time zone": "DateTime",

	"datetimeoffset":           "DateTimeOffset",
	"timestamptz":              "DateTimeOffset",
	"timestamp with time zone": "DateTimeOffset",

	"time":                   "TimeSpan",
	"time without time zone": "TimeSpan",
	"interval":               "TimeSpan",

	"uniqueidentifier": "Guid",
	"uuid":             "Guid",

	"binary":     "byte[]",
	"varbinary":  "byte[]",
	"image":      "byte[]",
	"bytea":      "byte[]",
	"blob":       "byte[]",
	"tinyblob":   "byte[]",
	"mediumblob": "byte[]",
	"longblob":   "byte[]",
	"rowversion": "byte[]",
}

var valueTypes = map[string]bool{
	"int": true, "long": true, "short": true, "byte": true, "bool": true,
	"decimal": true, "double": true, "float": true,
	"DateTime": true, "DateTimeOffset": true, "TimeSpan": true, "Guid": true,
}

// CSharpType returns the C# type of a property. Nullable value types get a
// trailing ?; unknown catalog types map to object.
func CSharpType(p emit.ScalarProperty) string {
	t := baseType(p.DataType)
	if p.Nullable && valueTypes[t] {
		return t + "?"
	}
	return t
}

func baseType(dataType string) string {
	dt := strings.ToLower(strings.TrimSpace(dataType))
	if strings.HasSuffix(dt, "[]") {
		return baseType(strings.TrimSuffix(dt, "[]")) + "[]"
	}
	if i := strings.IndexByte(dt, '('); i >= 0 {
		dt = strings.TrimSpace(dt[:i])
	}
	if t, ok := csharpTypes[dt]; ok {
		return t
	}
	return "object"
}

func isReferenceType(p emit.ScalarProperty) bool {
	return !valueTypes[baseType(p.DataType)]
}

// decimalColumnType returns e.g. "decimal(10, 2)" for decimal columns with a declared precision.
func decimalColumnType(p emit.ScalarProperty) (string, bool) {
	if baseType(p.DataType) != "decimal" || p.Precision == nil {
		return "", false
	}
	scale := 0
	if p.Scale != nil {
		scale = *p.Scale
	}
	name := strings.ToLower(strings.TrimSpace(p.DataType))
	if i := strings.IndexByte(name, '('); i >= 0 {
		name = strings.TrimSpace(name[:i])
	}
	return fmt.Sprintf("%s(%d, %d)", name, *p.Precision, scale), true
}

var (
	literalEscaper = strings.NewReplacer(`\`, `\\`, `"`, `\"`, "\r", `\r`, "\n", `\n`, "\t", `\t`)
	xmlEscaper     = strings.NewReplacer("&", "&amp;", "<", "&lt;", ">", "&gt;")
)

// literal quotes s as a C# string literal.
func literal(s string) string {
	return `"` + literalEscaper.Replace(s) + `"`
}

// codeWriter accumulates indented C# lines.
type codeWriter struct {
	buf    bytes.Buffer
	indent int
}

func (w *codeWriter) line(format string, args ...any) {
	if format == "" {
		w.buf.WriteByte('\n')
		return
	}
	w.buf.WriteString(strings.Repeat(indentUnit, w.indent))
	_, _ = fmt.Fprintf(&w.buf, format, args...)
	w.buf.WriteByte('\n')
}

func (w *codeWriter) open() {
	w.line("{")
	w.indent++
}

func (w *codeWriter) close(suffix string) {
	w.indent--
	w.line("%s", "}"+suffix)
}

// block copies pre-rendered text at the current indentation.
func (w *codeWriter) block(text string) {
	for _, l := range strings.Split(strings.TrimRight(text, "\n"), "\n") {
		if l == "" {
			w.line("")
			continue
		}
		w.line("%s", l)
	}
}

// chain writes a statement made of head and fluent calls, one call per line.
func (w *codeWriter) chain(head string, calls []string) {
	if len(calls) == 0 {
		w.line("%s;", head)
		return
	}
	w.line("%s", head)
	w.indent++
	for i, c := range calls {
		if i == len(calls)-1 {
			w.line(".%s;", c)
		} else {
			w.line(".%s", c)
		}
	}
	w.indent--
}

func (w *codeWriter) summary(text string) {
	text = strings.TrimSpace(text)
	if text == "" {
		return
	}
	w.line("/// <summary>")
	for _, l := range strings.Split(text, "\n") {
		w.line("/// %s", xmlEscaper.Replace(strings.TrimRight(l, "\r")))
	}
	w.line("/// </summary>")
}

func (w *codeWriter) String() string {
	return w.buf.String()
}

// unit is one rendered type declaration with the usings and namespace it needs.
type unit struct {
	usings    []string
	namespace string
	body      string
}

// writeUnits writes a complete source file. Usings are merged with System
// namespaces first; consecutive units sharing a namespace share one block.
func writeUnits(w io.Writer, units []unit) error {
	cw := &codeWriter{}
	cw.line("// <auto-generated />")

	usings := mergeUsings(units)
	if len(usings) > 0 {
		cw.line("")
	}
	for _, u := range usings {
		cw.line("using %s;", u)
	}

	for i := 0; i < len(units); {
		ns := units[i].namespace
		cw.line("")
		cw.line("namespace %s", ns)
		cw.open()
		for first := true; i < len(units) && units[i].namespace == ns; i++ {
			if !first {
				cw.line("")
			}
			first = false
			cw.block(units[i].body)
		}
		cw.close("")
	}

	if _, err := w.Write(cw.buf.Bytes()); err != nil {
		return fmt.Errorf("failed to write source: %w", err)
	}
	return nil
}

func mergeUsings(units []unit) []string {
	seen := make(map[string]bool)
	var out []string
	for _, u := range units {
		for _, name := range u.usings {
			if !seen[name] {
				seen[name] = true
				out = append(out, name)
			}
		}
	}
	sort.Slice(out, func(i, j int) bool {
		si, sj := isSystemNamespace(out[i]), isSystemNamespace(out[j])
		if si != sj {
			return si
		}
		return out[i] < out[j]
	})
	return out
}

func isSystemNamespace(ns string) bool {
	return ns == "System" || strings.HasPrefix(ns, "System.")
}
