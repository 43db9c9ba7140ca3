package csv

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mcncl/convertkit/internal/errors"
	"github.com/mcncl/convertkit/internal/models"
)

func get(t *testing.T, row models.Value, key string) models.Value {
	t.Helper()
	v, ok := row.Object().Get(key)
	require.True(t, ok, "missing key %q", key)
	return v
}

func TestParse_Basic(t *testing.T) {
	v, err := Parse("name,age,active\nJohn,30,true\nJane,25,FALSE\n", DefaultOptions())
	require.NoError(t, err)

	rows := v.Items()
	require.Len(t, rows, 2)
	assert.Equal(t, []string{"name", "age", "active"}, rows[0].Object().Keys())
	assert.Equal(t, "John", get(t, rows[0], "name").AsString())
	assert.Equal(t, 30.0, get(t, rows[0], "age").AsNumber())
	assert.True(t, get(t, rows[0], "active").AsBool())
	assert.False(t, get(t, rows[1], "active").AsBool())
	assert.Equal(t, models.KindBool, get(t, rows[1], "active").Kind())
}

func TestParse_Quoting(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected string
	}{
		{"doubled quote", "quote\n\"He said \"\"hi\"\"\"", `He said "hi"`},
		{"delimiter inside quotes", "quote\n\"a, b\"", "a, b"},
		{"newline inside quotes", "quote\n\"line1\nline2\"", "line1\nline2"},
		{"crlf inside quotes", "quote\r\n\"x\r\ny\"\r\n", "x\r\ny"},
		{"quoted number stays text", "quote\n\"42\"", "42"},
		{"quote opens after space", "quote\n \"padded\" ", "padded"},
		{"quote mid field is literal", "quote\nab\"c", `ab"c`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			v, err := Parse(tt.input, DefaultOptions())
			require.NoError(t, err)
			require.Len(t, v.Items(), 1)
			got := get(t, v.Items()[0], "quote")
			assert.Equal(t, models.KindString, got.Kind())
			assert.Equal(t, tt.expected, got.AsString())
		})
	}
}

func TestParse_ColumnSynthesis(t *testing.T) {
	t.Run("no header", func(t *testing.T) {
		opts := DefaultOptions()
		opts.HasHeader = false
		v, err := Parse("a,b\nc,d,e", opts)
		require.NoError(t, err)
		require.Len(t, v.Items(), 2)
		assert.Equal(t, []string{"column_1", "column_2"}, v.Items()[0].Object().Keys())
		assert.Equal(t, []string{"column_1", "column_2", "column_3"}, v.Items()[1].Object().Keys())
	})

	t.Run("missing trailing fields become empty strings", func(t *testing.T) {
		v, err := Parse("a,b,c\n1", DefaultOptions())
		require.NoError(t, err)
		row := v.Items()[0]
		assert.Equal(t, "", get(t, row, "b").AsString())
		assert.Equal(t, models.KindString, get(t, row, "c").Kind())
	})

	t.Run("empty and duplicate headers", func(t *testing.T) {
		v, err := Parse("id,,id\n1,2,3", DefaultOptions())
		require.NoError(t, err)
		assert.Equal(t, []string{"id", "column_2", "id_2"}, v.Items()[0].Object().Keys())
	})

	t.Run("extra fields", func(t *testing.T) {
		v, err := Parse("a\n1,2", DefaultOptions())
		require.NoError(t, err)
		assert.Equal(t, 2.0, get(t, v.Items()[0], "column_2").AsNumber())
	})
}

func TestParse_EmptyLines(t *testing.T) {
	input := "a,b\n\n1,2\n   \n3,4\n"

	v, err := Parse(input, DefaultOptions())
	require.NoError(t, err)
	assert.Len(t, v.Items(), 2)

	opts := DefaultOptions()
	opts.SkipEmptyLines = false
	v, err = Parse(input, opts)
	require.NoError(t, err)
	assert.Len(t, v.Items(), 4)
}

func TestParse_Delimiters(t *testing.T) {
	for _, delim := range []rune{';', '\t', '|'} {
		t.Run(string(delim), func(t *testing.T) {
			opts := DefaultOptions()
			opts.Delimiter = delim
			text := "x" + string(delim) + "y\n1" + string(delim) + "two"
			v, err := Parse(text, opts)
			require.NoError(t, err)
			assert.Equal(t, "two", get(t, v.Items()[0], "y").AsString())
		})
	}
}

func TestParse_UnterminatedQuote(t *testing.T) {
	_, err := Parse("a\n\"open", DefaultOptions())
	require.Error(t, err)
	assert.Equal(t, errors.ErrorTypeSyntax, errors.TypeOf(err))
	assert.Contains(t, err.Error(), "line 2")
}

func TestGenerate_Shapes(t *testing.T) {
	tests := []struct {
		name     string
		value    models.Value
		expected string
	}{
		{
			name: "array of objects with union columns",
			value: models.Array(
				models.ObjectOf(models.Field("id", models.Number(1)), models.Field("name", models.String("Ann"))),
				models.ObjectOf(models.Field("id", models.Number(2)), models.Field("email", models.String("b@x.io"))),
			),
			expected: "id,name,email\n1,Ann,\n2,,b@x.io",
		},
		{
			name:     "single object is wrapped",
			value:    models.ObjectOf(models.Field("id", models.Number(1)), models.Field("ok", models.Bool(true))),
			expected: "id,ok\n1,true",
		},
		{
			name: "single array property is unwrapped",
			value: models.ObjectOf(models.Field("users", models.Array(
				models.ObjectOf(models.Field("id", models.Number(1))),
				models.ObjectOf(models.Field("id", models.Number(2))),
			))),
			expected: "id\n1\n2",
		},
		{
			name:     "primitive array uses value column",
			value:    models.Array(models.String("a"), models.Number(2)),
			expected: "value\na\n2",
		},
		{
			name: "nested values are flattened",
			value: models.ObjectOf(
				models.Field("user", models.ObjectOf(models.Field("name", models.String("Ann")))),
				models.Field("tags", models.Array(models.String("x"), models.String("y"))),
				models.Field("orders", models.Array(models.ObjectOf(models.Field("sku", models.String("A1"))))),
			),
			expected: "user.name,tags,orders[0].sku\nAnn,\"x, y\",A1",
		},
		{
			name:     "special characters are quoted",
			value:    models.ObjectOf(models.Field("q", models.String(`He said "hi"`)), models.Field("n", models.String("a\nb"))),
			expected: "q,n\n\"He said \"\"hi\"\"\",\"a\nb\"",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out, err := Generate(tt.value, DefaultOptions())
			require.NoError(t, err)
			assert.Equal(t, tt.expected, out)
		})
	}
}

func TestGenerate_NoFlatten(t *testing.T) {
	opts := DefaultOptions()
	opts.FlattenData = false
	out, err := Generate(models.ObjectOf(models.Field("meta", models.ObjectOf(models.Field("a", models.Number(1))))), opts)
	require.NoError(t, err)
	assert.Equal(t, "meta\n\"{\"\"a\"\":1}\"", out)
}

func TestGenerate_UnsupportedShape(t *testing.T) {
	_, err := Generate(models.String("plain"), DefaultOptions())
	require.Error(t, err)
	assert.ErrorIs(t, err, errors.ErrUnsupportedShape)
}

func TestRoundTrip_PreservesLeafValues(t *testing.T) {
	original := models.Array(
		models.ObjectOf(
			models.Field("id", models.Number(1)),
			models.Field("name", models.String("Smith, John")),
			models.Field("address", models.ObjectOf(models.Field("city", models.String("Oslo")))),
			models.Field("active", models.Bool(true)),
		),
	)

	text, err := Generate(original, DefaultOptions())
	require.NoError(t, err)
	parsed, err := Parse(text, DefaultOptions())
	require.NoError(t, err)

	flat := models.FlattenRecord(original.Items()[0].Object())
	back := parsed.Items()[0].Object()
	flat.Range(func(key string, want models.Value) bool {
		got, ok := back.Get(key)
		assert.True(t, ok, key)
		assert.True(t, models.Equal(want, got), "%s: want %v got %v", key, want.Interface(), got.Interface())
		return true
	})
}
