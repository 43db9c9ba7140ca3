package sql

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/iancoleman/strcase"

	"github.com/mcncl/convertkit/internal/models"
)

// Dialect selects identifier quoting, boolean literals and column types.
type Dialect string

const (
	MySQL      Dialect = "mysql"
	PostgreSQL Dialect = "postgresql"
	SQLite     Dialect = "sqlite"
	SQLServer  Dialect = "sqlserver"
	Oracle     Dialect = "oracle"
)

// LongStringThreshold is the length above which strings use the dialect's
// unbounded text type.
const LongStringThreshold = 255

// Options controls SQL output
type Options struct {
	// TableName overrides the table. When empty the _table marker of the
	// first row is used, then "data".
	TableName     string
	IncludeCreate bool
	Dialect       Dialect
	// BatchSize groups that many rows into one INSERT. Zero or one writes
	// a statement per row.
	BatchSize int
}

// DefaultOptions returns MySQL output with a CREATE TABLE statement
func DefaultOptions() Options {
	return Options{IncludeCreate: true, Dialect: MySQL}
}

type columnType int

const (
	typeUnknown columnType = iota
	typeBool
	typeInteger
	typeDecimal
	typeString
	typeLongString
	typeJSON
)

var typeNames = map[Dialect]map[columnType]string{
	MySQL: {
		typeBool: "BOOLEAN", typeInteger: "INT", typeDecimal: "DECIMAL(10,2)",
		typeString: "VARCHAR(255)", typeLongString: "TEXT", typeJSON: "JSON",
	},
	PostgreSQL: {
		typeBool: "BOOLEAN", typeInteger: "INTEGER", typeDecimal: "DECIMAL(10,2)",
		typeString: "VARCHAR(255)", typeLongString: "TEXT", typeJSON: "JSONB",
	},
	SQLite: {
		typeBool: "INTEGER", typeInteger: "INTEGER", typeDecimal: "REAL",
		typeString: "TEXT", typeLongString: "TEXT", typeJSON: "TEXT",
	},
	SQLServer: {
		typeBool: "BIT", typeInteger: "INT", typeDecimal: "DECIMAL(10,2)",
		typeString: "NVARCHAR(255)", typeLongString: "NVARCHAR(MAX)", typeJSON: "NVARCHAR(MAX)",
	},
	Oracle: {
		typeBool: "NUMBER(1)", typeInteger: "NUMBER(10)", typeDecimal: "NUMBER(10,2)",
		typeString: "VARCHAR2(255)", typeLongString: "CLOB", typeJSON: "CLOB",
	},
}

func (d Dialect) known() Dialect {
	if _, ok := typeNames[d]; ok {
		return d
	}
	return MySQL
}

// TypeFor returns the column type the dialect uses for v.
func (d Dialect) TypeFor(v models.Value) string {
	return typeNames[d.known()][classify(v)]
}

func classify(v models.Value) columnType {
	switch v.Kind() {
	case models.KindBool:
		return typeBool
	case models.KindNumber:
		if v.IsInteger() {
			return typeInteger
		}
		return typeDecimal
	case models.KindString:
		if len([]rune(v.AsString())) > LongStringThreshold {
			return typeLongString
		}
		return typeString
	case models.KindArray, models.KindObject:
		return typeJSON
	}
	return typeString
}

// Quote quotes an identifier for the dialect.
func (d Dialect) Quote(name string) string {
	switch d.known() {
	case MySQL:
		return "`" + strings.ReplaceAll(name, "`", "``") + "`"
	case SQLServer:
		return "[" + strings.ReplaceAll(name, "]", "]]") + "]"
	default:
		return `"` + strings.ReplaceAll(name, `"`, `""`) + `"`
	}
}

// Literal renders v as a SQL literal. Containers are stored as JSON text.
func (d Dialect) Literal(v models.Value) string {
	switch v.Kind() {
	case models.KindNull:
		return "NULL"
	case models.KindBool:
		switch d.known() {
		case MySQL, PostgreSQL:
			if v.AsBool() {
				return "TRUE"
			}
			return "FALSE"
		default:
			if v.AsBool() {
				return "1"
			}
			return "0"
		}
	case models.KindNumber:
		return models.FormatNumber(v.AsNumber())
	case models.KindString:
		return quoteString(v.AsString())
	}
	return quoteString(models.EncodeJSON(v, 0))
}

func quoteString(s string) string {
	return "'" + strings.ReplaceAll(s, "'", "''") + "'"
}

var identifier = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)

// TableName normalizes a table name to snake_case unless it already is a
// plain identifier.
func TableName(name string) string {
	if identifier.MatchString(name) {
		return name
	}
	snake := strcase.ToSnake(name)
	snake = strings.Map(func(r rune) rune {
		if r == '_' || (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z') || (r >= '0' && r <= '9') {
			return r
		}
		return '_'
	}, snake)
	if snake == "" || (snake[0] >= '0' && snake[0] <= '9') {
		snake = "t_" + snake
	}
	return snake
}

// Generate renders rows as an optional CREATE TABLE followed by INSERT
// statements.
func Generate(v models.Value, opts Options) (string, error) {
	rows, err := models.Rows(v)
	if err != nil {
		return "", err
	}
	d := opts.Dialect.known()
	table := TableName(tableFor(rows, opts.TableName))
	columns := models.Columns(rows, TableKey)

	var b strings.Builder
	if opts.IncludeCreate && len(columns) > 0 {
		writeCreate(&b, d, table, columns, rows)
	}
	if len(rows) == 0 || len(columns) == 0 {
		return b.String(), nil
	}

	quoted := make([]string, len(columns))
	for i, c := range columns {
		quoted[i] = d.Quote(c)
	}
	prefix := fmt.Sprintf("INSERT INTO %s (%s) VALUES", d.Quote(table), strings.Join(quoted, ", "))

	batch := opts.BatchSize
	if batch < 1 {
		batch = 1
	}
	for start := 0; start < len(rows); start += batch {
		end := min(start+batch, len(rows))
		b.WriteString(prefix)
		if end-start == 1 {
			b.WriteString(" " + tuple(d, columns, rows[start]) + ";\n")
			continue
		}
		for i, row := range rows[start:end] {
			sep := ","
			if i == end-start-1 {
				sep = ";"
			}
			b.WriteString("\n  " + tuple(d, columns, row) + sep)
		}
		b.WriteByte('\n')
	}
	return b.String(), nil
}

func tableFor(rows []*models.Object, override string) string {
	if override != "" {
		return override
	}
	for _, row := range rows {
		if t, ok := row.Get(TableKey); ok && t.Kind() == models.KindString && t.AsString() != "" {
			return t.AsString()
		}
	}
	return "data"
}

func writeCreate(b *strings.Builder, d Dialect, table string, columns []string, rows []*models.Object) {
	fmt.Fprintf(b, "CREATE TABLE %s (\n", d.Quote(table))
	for i, col := range columns {
		sep := ","
		if i == len(columns)-1 {
			sep = ""
		}
		fmt.Fprintf(b, "  %s %s%s\n", d.Quote(col), typeNames[d][columnTypeOf(col, rows)], sep)
	}
	b.WriteString(");\n\n")
}

// columnTypeOf uses the first non-null value of the column, widening a
// short string column when any value is long.
func columnTypeOf(col string, rows []*models.Object) columnType {
	t := typeUnknown
	for _, row := range rows {
		v, ok := row.Get(col)
		if !ok || v.IsNull() {
			continue
		}
		c := classify(v)
		switch {
		case t == typeUnknown:
			t = c
		case t == typeString && c == typeLongString:
			t = typeLongString
		case t == typeInteger && c == typeDecimal:
			t = typeDecimal
		}
	}
	if t == typeUnknown {
		return typeString
	}
	return t
}

func tuple(d Dialect, columns []string, row *models.Object) string {
	values := make([]string, len(columns))
	for i, col := range columns {
		v, _ := row.Get(col)
		values[i] = d.Literal(v)
	}
	return "(" + strings.Join(values, ", ") + ")"
}
