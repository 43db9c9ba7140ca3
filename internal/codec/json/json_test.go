package json

import (
	stderrors "errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mcncl/convertkit/internal/errors"
	"github.com/mcncl/convertkit/internal/models"
)

func TestParse_SimpleObject(t *testing.T) {
	v, err := Parse(strings.NewReader(`{"name": "John Doe", "age": 30, "isStudent": false, "city": null}`))
	require.NoError(t, err)

	require.Equal(t, models.KindObject, v.Kind())
	assert.Equal(t, []string{"name", "age", "isStudent", "city"}, v.Object().Keys())

	age, _ := v.Object().Get("age")
	assert.Equal(t, 30.0, age.AsNumber())
	city, _ := v.Object().Get("city")
	assert.True(t, city.IsNull())
}

func TestParse_RootKinds(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected models.Kind
	}{
		{"array", `[1, 2, 3]`, models.KindArray},
		{"string", `"hello"`, models.KindString},
		{"number", `12.5`, models.KindNumber},
		{"bool", `true`, models.KindBool},
		{"null", `null`, models.KindNull},
		{"trailing whitespace", "{\"a\": 1}\n\n  ", models.KindObject},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			v, err := ParseString(tt.input)
			require.NoError(t, err)
			assert.Equal(t, tt.expected, v.Kind())
		})
	}
}

func TestParse_Errors(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		errType  errors.ErrorType
		sentinel error
	}{
		{"empty", "", errors.ErrorTypeInput, errors.ErrEmptyInput},
		{"whitespace", "  \n\t ", errors.ErrorTypeInput, errors.ErrEmptyInput},
		{"multiple values", `{"a": 1} {"b": 2}`, errors.ErrorTypeSyntax, errors.ErrMultipleJSON},
		{"syntax", `{"a": tru}`, errors.ErrorTypeSyntax, nil},
		{"truncated", `{"a": [1, 2`, errors.ErrorTypeSyntax, nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse(strings.NewReader(tt.input))
			require.Error(t, err)
			assert.Equal(t, tt.errType, errors.TypeOf(err))
			if tt.sentinel != nil {
				assert.True(t, stderrors.Is(err, tt.sentinel))
			}
		})
	}
}

func TestParseFile(t *testing.T) {
	dir := t.TempDir()

	t.Run("valid file", func(t *testing.T) {
		path := filepath.Join(dir, "data.json")
		require.NoError(t, os.WriteFile(path, []byte(`{"b": 1, "a": 2}`), 0o644))

		v, err := ParseFile(path)
		require.NoError(t, err)
		assert.Equal(t, []string{"b", "a"}, v.Object().Keys())
	})

	t.Run("empty file", func(t *testing.T) {
		path := filepath.Join(dir, "empty.json")
		require.NoError(t, os.WriteFile(path, nil, 0o644))

		_, err := ParseFile(path)
		assert.ErrorIs(t, err, errors.ErrFileEmpty)
	})

	t.Run("missing file", func(t *testing.T) {
		_, err := ParseFile(filepath.Join(dir, "nope.json"))
		assert.ErrorIs(t, err, errors.ErrFileNotFound)
	})

	t.Run("empty path", func(t *testing.T) {
		_, err := ParseFile("  ")
		assert.ErrorIs(t, err, errors.ErrInvalidFilePath)
	})
}

func TestGenerate(t *testing.T) {
	v := models.ObjectOf(
		models.Field("id", models.Number(7)),
		models.Field("tags", models.Array(models.String("a"))),
	)

	assert.Equal(t, `{"id":7,"tags":["a"]}`, Generate(v, Options{Indent: 0}))
	assert.Equal(t, "{\n  \"id\": 7,\n  \"tags\": [\n    \"a\"\n  ]\n}", Generate(v, DefaultOptions()))
}
