package properties

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mcncl/convertkit/internal/errors"
	"github.com/mcncl/convertkit/internal/models"
)

func TestParse(t *testing.T) {
	input := "# application settings\n" +
		"! legacy comment\n" +
		"app.name = Demo App\n" +
		"app.port: 8080\n" +
		"app.debug=true\n" +
		"message = Hello, \\\n" +
		"          World\n" +
		"path=C:\\\\temp\\tdir\n" +
		"greeting=caf\\u00e9 \\uD83D\\uDE00\n" +
		"key\\=with\\:colon = value\n" +
		"servers.0.host=a\n" +
		"servers.1.host=b\n" +
		"bare\n"

	v, err := Parse(input, DefaultOptions())
	require.NoError(t, err)

	get := func(path string) models.Value {
		got, ok := models.Get(v, path)
		require.True(t, ok, path)
		return got
	}

	assert.Equal(t, "Demo App", get("app.name").AsString())
	assert.Equal(t, 8080.0, get("app.port").AsNumber())
	assert.True(t, get("app.debug").AsBool())
	assert.Equal(t, "Hello, World", get("message").AsString())
	assert.Equal(t, "C:\\temp\tdir", get("path").AsString())
	assert.Equal(t, "café 😀", get("greeting").AsString())
	assert.Equal(t, "value", get("key=with:colon").AsString())
	assert.Equal(t, models.KindArray, get("servers").Kind())
	assert.Equal(t, "b", get("servers[1].host").AsString())
	assert.Equal(t, "", get("bare").AsString())
}

func TestParse_FlatWithoutCoercion(t *testing.T) {
	v, err := Parse("a.b=1\na.c=true\n", Options{})
	require.NoError(t, err)
	assert.Equal(t, []string{"a.b", "a.c"}, v.Object().Keys())
	got, _ := v.Object().Get("a.b")
	assert.Equal(t, models.String("1"), got)
}

func TestParse_ScalarThenNested(t *testing.T) {
	v, err := Parse("a=1\na.b=2\n", DefaultOptions())
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "a.b"}, v.Object().Keys())
}

func TestParse_BadUnicodeEscape(t *testing.T) {
	_, err := Parse("a=\\u12\n", DefaultOptions())
	require.Error(t, err)
	assert.Equal(t, errors.ErrorTypeSyntax, errors.TypeOf(err))
}

func TestGenerate(t *testing.T) {
	v := models.ObjectOf(
		models.Field("db", models.ObjectOf(
			models.Field("url", models.String("jdbc:mysql://host/db")),
			models.Field("pool", models.Number(5)),
		)),
		models.Field("tags", models.Array(models.String("a"), models.String("b"))),
		models.Field("first name", models.String(" ünï")),
		models.Field("none", models.Null()),
	)

	out, err := Generate(v)
	require.NoError(t, err)

	expected := "db.url=jdbc\\:mysql\\://host/db\n" +
		"db.pool=5\n" +
		"tags.0=a\n" +
		"tags.1=b\n" +
		"first\\ name=\\ \\u00FCn\\u00EF\n" +
		"none=\n"
	assert.Equal(t, expected, out)
}

func TestGenerate_RejectsScalars(t *testing.T) {
	_, err := Generate(models.String("x"))
	require.Error(t, err)
	assert.Equal(t, errors.ErrorTypeUnsupportedShape, errors.TypeOf(err))
}

func TestRoundTrip(t *testing.T) {
	original := models.ObjectOf(
		models.Field("app", models.ObjectOf(
			models.Field("name", models.String("demo service")),
			models.Field("version", models.Number(2.5)),
			models.Field("enabled", models.Bool(true)),
			models.Field("hosts", models.Array(models.String("alpha"), models.String("beta"))),
		)),
		models.Field("greeting", models.String("Grüße, world")),
		models.Field("matrix", models.Array(
			models.Array(models.Number(1), models.Number(2)),
			models.Array(models.Number(3)),
		)),
	)

	text, err := Generate(original)
	require.NoError(t, err)
	back, err := Parse(text, DefaultOptions())
	require.NoError(t, err, text)
	assert.True(t, models.Equal(original, back), text)
}
