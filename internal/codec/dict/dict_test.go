package dict

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mcncl/convertkit/internal/errors"
	"github.com/mcncl/convertkit/internal/models"
)

func TestRewrite(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected string
	}{
		{"keywords", `{'a': None, 'b': True, 'c': False}`, `{"a": null, "b": true, "c": false}`},
		{"tuple", `(1, 2, 3)`, `[1, 2, 3]`},
		{"escaped quote", `'it\'s'`, `"it's"`},
		{"embedded double quote", `'say "hi"'`, `"say \"hi\""`},
		{"keywords inside strings", `'None True'`, `"None True"`},
		{"identifier prefix", `NoneType`, `NoneType`},
		{"trailing commas", `{'a': [1, 2,], }`, `{"a": [1, 2] }`},
		{"hex escape", `'\x41'`, `"\u0041"`},
		{"comment", "{'a': 1}  # trailing", "{\"a\": 1}  \n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Rewrite(tt.input)
			require.NoError(t, err)
			assert.Equal(t, tt.expected, got)
		})
	}
}

func TestParse(t *testing.T) {
	input := `{
    'name': 'convertkit',
    "version": 1.5,
    'active': True,
    'owner': None,
    'point': (1, -2),
    'nested': {'tags': ['a', 'b',]},
}`

	v, err := Parse(input)
	require.NoError(t, err)

	assert.Equal(t, []string{"name", "version", "active", "owner", "point", "nested"}, v.Object().Keys())
	owner, _ := v.Object().Get("owner")
	assert.True(t, owner.IsNull())
	y, ok := models.Get(v, "point[1]")
	require.True(t, ok)
	assert.Equal(t, -2.0, y.AsNumber())
	tag, ok := models.Get(v, "nested.tags[1]")
	require.True(t, ok)
	assert.Equal(t, "b", tag.AsString())
}

func TestParse_Invalid(t *testing.T) {
	tests := []string{
		`{'a': }`,
		`{'a': 'open}`,
		`{'a': undefined_name}`,
	}
	for _, input := range tests {
		t.Run(input, func(t *testing.T) {
			_, err := Parse(input)
			require.Error(t, err)
			assert.Equal(t, errors.ErrorTypeSyntax, errors.TypeOf(err))
			assert.Contains(t, err.Error(), "Invalid Python dict format")
		})
	}
}

func TestGenerate(t *testing.T) {
	v := models.ObjectOf(
		models.Field("name", models.String("O'Brien")),
		models.Field("ok", models.Bool(false)),
		models.Field("none", models.Null()),
		models.Field("list", models.Array(models.Number(1), models.Number(2.5))),
		models.Field("empty", models.ObjectValue(nil)),
	)

	assert.Equal(t, `{'name': 'O\'Brien', 'ok': False, 'none': None, 'list': [1, 2.5], 'empty': {}}`,
		Generate(v, Options{}))

	expected := `{
    'name': 'O\'Brien',
    'ok': False,
    'none': None,
    'list': [
        1,
        2.5
    ],
    'empty': {}
}`
	assert.Equal(t, expected, Generate(v, DefaultOptions()))
}

func TestRoundTrip(t *testing.T) {
	original := models.ObjectOf(
		models.Field("title", models.String("it's \"quoted\" and \\ slashed")),
		models.Field("count", models.Number(12)),
		models.Field("ratio", models.Number(0.75)),
		models.Field("flags", models.Array(models.Bool(true), models.Bool(false), models.Null())),
		models.Field("child", models.ObjectOf(
			models.Field("line", models.String("a\nb\tc")),
			models.Field("items", models.Array(models.ObjectOf(models.Field("id", models.Number(1))))),
		)),
	)

	for _, opts := range []Options{{}, DefaultOptions()} {
		text := Generate(original, opts)
		back, err := Parse(text)
		require.NoError(t, err, text)
		assert.True(t, models.Equal(original, back), text)
	}
}
