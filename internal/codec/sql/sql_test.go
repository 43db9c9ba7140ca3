package sql

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mcncl/convertkit/internal/errors"
	"github.com/mcncl/convertkit/internal/models"
)

func TestParse(t *testing.T) {
	input := `-- dump
CREATE TABLE users (id INT, name VARCHAR(255));
/* seed rows */
INSERT INTO ` + "`users`" + ` (` + "`id`" + `, "name", [active], score, note)
VALUES (1, 'O''Brien', TRUE, -2.5, NULL),
       (2, 'a, (b)', false, .5, 'it\'s');
insert into dbo.orders values (10, N'café', NOW());
`

	v, err := Parse(input)
	require.NoError(t, err)
	require.Len(t, v.Items(), 3)

	first := v.Items()[0].Object()
	assert.Equal(t, []string{"id", "name", "active", "score", "note", "_table"}, first.Keys())

	get := func(row int, key string) models.Value {
		got, ok := v.Items()[row].Object().Get(key)
		require.True(t, ok, key)
		return got
	}
	assert.Equal(t, 1.0, get(0, "id").AsNumber())
	assert.Equal(t, "O'Brien", get(0, "name").AsString())
	assert.True(t, get(0, "active").AsBool())
	assert.Equal(t, -2.5, get(0, "score").AsNumber())
	assert.True(t, get(0, "note").IsNull())
	assert.Equal(t, "users", get(0, "_table").AsString())

	assert.Equal(t, "a, (b)", get(1, "name").AsString())
	assert.False(t, get(1, "active").AsBool())
	assert.Equal(t, 0.5, get(1, "score").AsNumber())
	assert.Equal(t, "it's", get(1, "note").AsString())

	assert.Equal(t, "dbo.orders", get(2, "_table").AsString())
	assert.Equal(t, 10.0, get(2, "column_1").AsNumber())
	assert.Equal(t, "café", get(2, "column_2").AsString())
	assert.Equal(t, "NOW()", get(2, "column_3").AsString())
}

func TestParse_Errors(t *testing.T) {
	tests := map[string]string{
		"no inserts":          "SELECT * FROM users;",
		"unterminated string": "INSERT INTO t (a) VALUES ('open);",
		"missing values":      "INSERT INTO t (a) (1);",
		"broken tuple":        "INSERT INTO t (a) VALUES (1 2);",
		"unterminated":        "INSERT INTO t (a) VALUES (1",
	}
	for name, input := range tests {
		t.Run(name, func(t *testing.T) {
			_, err := Parse(input)
			require.Error(t, err)
			assert.Equal(t, errors.ErrorTypeSyntax, errors.TypeOf(err))
		})
	}

	_, err := Parse("")
	assert.ErrorIs(t, err, errors.ErrNoStatements)
}

func TestParse_SkipsStatementsWithoutValues(t *testing.T) {
	input := `CREATE TRIGGER audit AFTER INSERT ON orders FOR EACH ROW BEGIN END;
INSERT INTO archive (id) SELECT id FROM orders;
INSERT INTO archive SELECT * FROM orders;
INSERT INTO u (a) VALUES (1);`

	v, err := Parse(input)
	require.NoError(t, err)
	require.Len(t, v.Items(), 1)

	row := v.Items()[0].Object()
	a, _ := row.Get("a")
	table, _ := row.Get("_table")
	assert.Equal(t, 1.0, a.AsNumber())
	assert.Equal(t, "u", table.AsString())
}

func TestGenerate_MySQL(t *testing.T) {
	v := models.Array(
		models.ObjectOf(
			models.Field("id", models.Number(1)),
			models.Field("name", models.String("O'Brien")),
			models.Field("active", models.Bool(true)),
			models.Field("_table", models.String("ignored")),
		),
		models.ObjectOf(
			models.Field("id", models.Number(2)),
			models.Field("price", models.Number(9.99)),
			models.Field("tags", models.Array(models.String("x"))),
		),
	)

	out, err := Generate(v, Options{TableName: "Order Items", IncludeCreate: true, Dialect: MySQL})
	require.NoError(t, err)

	expected := "CREATE TABLE `order_items` (\n" +
		"  `id` INT,\n" +
		"  `name` VARCHAR(255),\n" +
		"  `active` BOOLEAN,\n" +
		"  `price` DECIMAL(10,2),\n" +
		"  `tags` JSON\n" +
		");\n\n" +
		"INSERT INTO `order_items` (`id`, `name`, `active`, `price`, `tags`) VALUES (1, 'O''Brien', TRUE, NULL, NULL);\n" +
		"INSERT INTO `order_items` (`id`, `name`, `active`, `price`, `tags`) VALUES (2, NULL, NULL, 9.99, '[\"x\"]');\n"
	assert.Equal(t, expected, out)
}

func TestGenerate_BooleanTypeByDialect(t *testing.T) {
	v := models.ObjectOf(models.Field("flag", models.Bool(true)))

	mysql, err := Generate(v, Options{TableName: "t", IncludeCreate: true, Dialect: MySQL})
	require.NoError(t, err)
	sqlserver, err := Generate(v, Options{TableName: "t", IncludeCreate: true, Dialect: SQLServer})
	require.NoError(t, err)

	assert.Contains(t, mysql, "`flag` BOOLEAN")
	assert.Contains(t, mysql, "VALUES (TRUE);")
	assert.Contains(t, sqlserver, "[flag] BIT")
	assert.Contains(t, sqlserver, "VALUES (1);")
}

func TestDialect_OnlyBooleanColumnDiffers(t *testing.T) {
	row := models.ObjectOf(
		models.Field("active", models.Bool(true)),
		models.Field("price", models.Number(19.99)),
		models.Field("id", models.Number(7)),
	)

	var differing []string
	row.Object().Range(func(key string, v models.Value) bool {
		if MySQL.TypeFor(v) != SQLServer.TypeFor(v) {
			differing = append(differing, key)
		}
		return true
	})
	assert.Equal(t, []string{"active"}, differing)
	assert.Equal(t, "BOOLEAN", MySQL.TypeFor(models.Bool(true)))
	assert.Equal(t, "BIT", SQLServer.TypeFor(models.Bool(true)))
}

func TestDialect_TypeFor(t *testing.T) {
	long := models.String(strings.Repeat("x", LongStringThreshold+1))
	tests := []struct {
		dialect  Dialect
		value    models.Value
		expected string
	}{
		{PostgreSQL, models.Number(3), "INTEGER"},
		{PostgreSQL, models.ObjectValue(nil), "JSONB"},
		{SQLite, models.Bool(false), "INTEGER"},
		{SQLite, models.Number(1.5), "REAL"},
		{SQLServer, long, "NVARCHAR(MAX)"},
		{Oracle, models.Bool(true), "NUMBER(1)"},
		{Oracle, long, "CLOB"},
		{Oracle, models.String("short"), "VARCHAR2(255)"},
		{Dialect("unknown"), models.String("x"), "VARCHAR(255)"},
	}
	for _, tt := range tests {
		t.Run(string(tt.dialect)+"/"+tt.expected, func(t *testing.T) {
			assert.Equal(t, tt.expected, tt.dialect.TypeFor(tt.value))
		})
	}
}

func TestGenerate_BatchAndTableFallback(t *testing.T) {
	v := models.Array(
		models.ObjectOf(models.Field("a", models.Number(1)), models.Field("_table", models.String("src"))),
		models.ObjectOf(models.Field("a", models.Number(2))),
		models.ObjectOf(models.Field("a", models.Number(3))),
	)

	out, err := Generate(v, Options{Dialect: PostgreSQL, BatchSize: 2})
	require.NoError(t, err)

	expected := `INSERT INTO "src" ("a") VALUES
  (1),
  (2);
INSERT INTO "src" ("a") VALUES (3);
`
	assert.Equal(t, expected, out)
}

func TestGenerate_DefaultTableName(t *testing.T) {
	parsed, err := Parse("INSERT INTO users (id) VALUES (1);")
	require.NoError(t, err)
	out, err := Generate(parsed, DefaultOptions())
	require.NoError(t, err)
	assert.Contains(t, out, "INSERT INTO `users` (`id`) VALUES (1);")

	out, err = Generate(models.Array(models.ObjectOf(models.Field("id", models.Number(1)))), DefaultOptions())
	require.NoError(t, err)
	assert.Contains(t, out, "INSERT INTO `data` (`id`) VALUES (1);")
}

func TestGenerate_RejectsScalars(t *testing.T) {
	_, err := Generate(models.Number(1), DefaultOptions())
	require.Error(t, err)
	assert.Equal(t, errors.ErrorTypeUnsupportedShape, errors.TypeOf(err))
}

func TestTableName(t *testing.T) {
	assert.Equal(t, "users", TableName("users"))
	assert.Equal(t, "UserAccounts", TableName("UserAccounts"))
	assert.Equal(t, "user_accounts", TableName("user accounts"))
	assert.Equal(t, "t_2024_sales", TableName("2024 sales"))
}

func TestRoundTrip(t *testing.T) {
	original := models.Array(
		models.ObjectOf(
			models.Field("id", models.Number(1)),
			models.Field("name", models.String("Ann's")),
			models.Field("ok", models.Bool(true)),
		),
		models.ObjectOf(
			models.Field("id", models.Number(2)),
			models.Field("name", models.String("Bob")),
			models.Field("ok", models.Bool(false)),
		),
	)

	for _, batch := range []int{0, 5} {
		text, err := Generate(original, Options{TableName: "people", IncludeCreate: true, Dialect: MySQL, BatchSize: batch})
		require.NoError(t, err)
		back, err := Parse(text)
		require.NoError(t, err, text)
		require.Len(t, back.Items(), 2)
		for i, row := range back.Items() {
			obj := row.Object().Clone()
			table, _ := obj.Get(TableKey)
			assert.Equal(t, "people", table.AsString())
			obj.Delete(TableKey)
			assert.True(t, models.Equal(original.Items()[i], models.ObjectValue(obj)), text)
		}
	}
}
