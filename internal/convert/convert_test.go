package convert

import (
	"bytes"
	"context"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mcncl/convertkit/internal/config"
	"github.com/mcncl/convertkit/internal/errors"
	"github.com/mcncl/convertkit/internal/models"
)

func compact() *Converter {
	opts := DefaultOptions()
	opts.JSON.Indent = 0
	return New(WithOptions(opts))
}

func TestDecodeText(t *testing.T) {
	tests := []struct {
		name     string
		input    []byte
		expected string
	}{
		{"plain", []byte("a=1"), "a=1"},
		{"utf8 bom", []byte("\xEF\xBB\xBFa=1"), "a=1"},
		{"utf16le bom", []byte("\xFF\xFEa\x00=\x001\x00"), "a=1"},
		{"utf16be bom", []byte("\xFE\xFF\x00a\x00=\x001"), "a=1"},
		{"invalid utf8", []byte("a=\xff"), "a=�"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := DecodeText(tt.input)
			require.NoError(t, err)
			assert.Equal(t, tt.expected, got)
		})
	}
}

func TestConvert_DetectsSource(t *testing.T) {
	res, err := compact().Convert(context.Background(), Request{
		Name: "people.csv",
		Data: []byte("name,age\nAnn,31\nBob,27\n"),
		To:   models.FormatJSON,
	})
	require.NoError(t, err)
	assert.Equal(t, models.FormatCSV, res.From)
	assert.Equal(t, `[{"name":"Ann","age":31},{"name":"Bob","age":27}]`, string(res.Output))
	assert.NoError(t, res.Err)
}

func TestConvert_UnknownSource(t *testing.T) {
	res, err := compact().Convert(context.Background(), Request{Data: []byte("just words"), To: models.FormatJSON})
	require.Error(t, err)
	assert.ErrorIs(t, err, errors.ErrUnknownFormat)
	assert.Equal(t, err, res.Err)
	assert.Equal(t, errors.ErrorTypeInput, errors.TypeOf(err))
}

func TestConvert_UnsupportedTarget(t *testing.T) {
	_, err := compact().Convert(context.Background(), Request{
		Data: []byte(`{"a":1}`), From: models.FormatJSON, To: models.Format("pdf"),
	})
	require.Error(t, err)
	assert.Equal(t, errors.ErrorTypeConversion, errors.TypeOf(err))
}

func TestConvert_CodecErrorPropagates(t *testing.T) {
	_, err := compact().Convert(context.Background(), Request{
		Data: []byte(`"scalar"`), From: models.FormatJSON, To: models.FormatCSV,
	})
	require.Error(t, err)
	assert.Equal(t, errors.ErrorTypeUnsupportedShape, errors.TypeOf(err))
}

func TestConvert_Overrides(t *testing.T) {
	var logs bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&logs, &slog.HandlerOptions{Level: slog.LevelDebug}))
	opts := DefaultOptions()
	opts.JSON.Indent = 0
	c := New(WithOptions(opts), WithLogger(logger))

	res, err := c.Convert(context.Background(), Request{
		Data:      []byte(`{"server":{"port":80,"tags":["a"]}}`),
		From:      models.FormatJSON,
		To:        models.FormatJSON,
		Overrides: []string{"server.port=9090", `server.tags[1]="b"`, "debug=true"},
	})
	require.NoError(t, err)
	assert.Equal(t, `{"server":{"port":9090,"tags":["a","b"]},"debug":true}`, string(res.Output))
	assert.Contains(t, logs.String(), "replaced value")

	_, err = c.Convert(context.Background(), Request{
		Data:      []byte(`{"a":1}`),
		From:      models.FormatJSON,
		To:        models.FormatJSON,
		Overrides: []string{"missing.child=1"},
	})
	require.Error(t, err)
	assert.Equal(t, errors.ErrorTypeConversion, errors.TypeOf(err))
}

func TestConvert_Cancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := compact().Convert(ctx, Request{Data: []byte(`{}`), From: models.FormatJSON, To: models.FormatYAML})
	require.Error(t, err)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestConvert_RoundTripThroughFormats(t *testing.T) {
	c := compact()
	source := []byte(`{"name":"app","replicas":3,"debug":false,"database":{"host":"db","port":5432}}`)
	want, _, err := c.Decode(source, models.FormatJSON)
	require.NoError(t, err)

	for _, f := range []models.Format{models.FormatYAML, models.FormatTOML, models.FormatDict, models.FormatProperties} {
		t.Run(string(f), func(t *testing.T) {
			encoded, err := c.Encode(want, f)
			require.NoError(t, err)
			got, from, err := c.Decode(encoded, f)
			require.NoError(t, err)
			assert.Equal(t, f, from)
			assert.True(t, models.Equal(want, got), "got %s", models.EncodeJSON(got, 0))
		})
	}
}

func TestConvert_SQLKeepsTableName(t *testing.T) {
	fromConfig, err := OptionsFromConfig(config.NewConfig())
	require.NoError(t, err)

	tests := []struct {
		name string
		conv *Converter
	}{
		{"default options", New()},
		{"config defaults", New(WithOptions(fromConfig))},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res, err := tt.conv.Convert(context.Background(), Request{
				Data: []byte("INSERT INTO users (id, name) VALUES (1, 'a');"),
				From: models.FormatSQL,
				To:   models.FormatSQL,
			})
			require.NoError(t, err)
			assert.Contains(t, string(res.Output), "INSERT INTO `users` (`id`, `name`) VALUES (1, 'a');")
			assert.NotContains(t, string(res.Output), "`data`")
		})
	}

	opts := DefaultOptions()
	opts.SQL.TableName = "archive"
	res, err := New(WithOptions(opts)).Convert(context.Background(), Request{
		Data: []byte("INSERT INTO users (id) VALUES (1);"),
		From: models.FormatSQL,
		To:   models.FormatSQL,
	})
	require.NoError(t, err)
	assert.Contains(t, string(res.Output), "INSERT INTO `archive`")
}

func TestConvert_Workbook(t *testing.T) {
	c := compact()
	rows := []byte(`[{"sku":"A-1","qty":3},{"sku":"B-2","qty":0}]`)

	res, err := c.Convert(context.Background(), Request{Data: rows, From: models.FormatJSON, To: models.FormatXLSX})
	require.NoError(t, err)

	back, err := c.Convert(context.Background(), Request{Data: res.Output, To: models.FormatJSON})
	require.NoError(t, err)
	assert.Equal(t, models.FormatXLSX, back.From)
	assert.Equal(t, string(rows), string(back.Output))
}

func TestConvertBatch(t *testing.T) {
	reqs := []Request{
		{Name: "a.json", Data: []byte(`{"a":1}`), To: models.FormatYAML},
		{Name: "bad.json", Data: []byte(`{"a":`), From: models.FormatJSON, To: models.FormatYAML},
		{Name: "c.ini", Data: []byte("[s]\nk = v\n"), To: models.FormatJSON},
	}

	results, err := compact().ConvertBatch(context.Background(), reqs, 2)
	require.NoError(t, err)
	require.Len(t, results, 3)

	assert.Equal(t, "a.json", results[0].Name)
	assert.NoError(t, results[0].Err)
	assert.Equal(t, "a: 1\n", string(results[0].Output))

	assert.Equal(t, "bad.json", results[1].Name)
	assert.Equal(t, errors.ErrorTypeSyntax, errors.TypeOf(results[1].Err))

	assert.Equal(t, models.FormatINI, results[2].From)
	assert.Equal(t, `{"s":{"k":"v"}}`, string(results[2].Output))
}

func TestConvertBatch_Cancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	results, err := compact().ConvertBatch(ctx, []Request{
		{Name: "a", Data: []byte(`{}`), To: models.FormatYAML},
		{Name: "b", Data: []byte(`{}`), To: models.FormatYAML},
	}, 0)
	require.NoError(t, err)
	for _, r := range results {
		assert.ErrorIs(t, r.Err, context.Canceled)
	}
}

func TestParseFormat(t *testing.T) {
	f, err := ParseFormat("YML", "source")
	require.NoError(t, err)
	assert.Equal(t, models.FormatYAML, f)

	_, err = ParseFormat("parquet", "target")
	require.Error(t, err)
	assert.ErrorIs(t, err, errors.ErrUnknownFormat)
	assert.Equal(t, errors.ErrorTypeInput, errors.TypeOf(err))
	msg := err.Error()
	assert.Contains(t, msg, "unknown target format 'parquet'")
	for _, f := range models.Formats() {
		assert.Contains(t, msg, string(f))
	}
}

func TestParseOverride(t *testing.T) {
	tests := []struct {
		expr     string
		path     string
		expected models.Value
	}{
		{"a.b=42", "a.b", models.Number(42)},
		{"flag = TRUE", "flag", models.Bool(true)},
		{"name=app", "name", models.String("app")},
		{"name='007'", "name", models.String("007")},
		{"empty=null", "empty", models.Null()},
		{`tags=["x","y"]`, "tags", models.Array(models.String("x"), models.String("y"))},
		{`obj={"k":1}`, "obj", models.ObjectOf(models.Field("k", models.Number(1)))},
		{"url=http://x/?q=1", "url", models.String("http://x/?q=1")},
	}
	for _, tt := range tests {
		t.Run(tt.expr, func(t *testing.T) {
			path, v, err := ParseOverride(tt.expr)
			require.NoError(t, err)
			assert.Equal(t, tt.path, path)
			assert.True(t, models.Equal(tt.expected, v), "got %s", models.EncodeJSON(v, 0))
		})
	}

	for _, bad := range []string{"noequals", "=1", `k={"open"`} {
		_, _, err := ParseOverride(bad)
		assert.Error(t, err, bad)
	}
}

func TestOptionsFromConfig(t *testing.T) {
	cfg := config.NewConfig()
	cfg.CSV.Delimiter = "tab"
	cfg.SQL.Dialect = "sqlserver"
	cfg.XML.ItemNames["people"] = "person"

	opts, err := OptionsFromConfig(cfg)
	require.NoError(t, err)
	assert.Equal(t, '\t', opts.CSV.Delimiter)
	assert.Equal(t, "sqlserver", string(opts.SQL.Dialect))
	assert.Equal(t, "person", opts.XML.ItemNames["people"])
	assert.True(t, opts.Properties.Expand)

	cfg.CSV.Delimiter = "ab"
	_, err = OptionsFromConfig(cfg)
	assert.Equal(t, errors.ErrorTypeConfig, errors.TypeOf(err))
}

func TestOutputName(t *testing.T) {
	assert.Equal(t, "users.yaml", OutputName("/tmp/in/users.json", models.FormatYAML))
	assert.Equal(t, "settings.py", OutputName("settings.toml", models.FormatDict))
	assert.Equal(t, "noext.csv", OutputName("noext", models.FormatCSV))
}
