package convert

import (
	"github.com/mcncl/convertkit/internal/codec/csv"
	"github.com/mcncl/convertkit/internal/codec/dict"
	"github.com/mcncl/convertkit/internal/codec/ini"
	jsoncodec "github.com/mcncl/convertkit/internal/codec/json"
	"github.com/mcncl/convertkit/internal/codec/properties"
	"github.com/mcncl/convertkit/internal/codec/sql"
	"github.com/mcncl/convertkit/internal/codec/toml"
	"github.com/mcncl/convertkit/internal/codec/xlsx"
	"github.com/mcncl/convertkit/internal/codec/xml"
	"github.com/mcncl/convertkit/internal/codec/yaml"
	"github.com/mcncl/convertkit/internal/models"
)

// codec adapts one format package to a common shape. Text codecs receive
// input already decoded by DecodeText.
type codec struct {
	decode func(data []byte, opts Options) (models.Value, error)
	encode func(v models.Value, opts Options) ([]byte, error)
}

func textDecoder(parse func(text string, opts Options) (models.Value, error)) func([]byte, Options) (models.Value, error) {
	return func(data []byte, opts Options) (models.Value, error) {
		text, err := DecodeText(data)
		if err != nil {
			return models.Value{}, err
		}
		return parse(text, opts)
	}
}

func textEncoder(generate func(v models.Value, opts Options) (string, error)) func(models.Value, Options) ([]byte, error) {
	return func(v models.Value, opts Options) ([]byte, error) {
		out, err := generate(v, opts)
		if err != nil {
			return nil, err
		}
		return []byte(out), nil
	}
}

var registry = map[models.Format]codec{
	models.FormatJSON: {
		decode: textDecoder(func(text string, _ Options) (models.Value, error) { return jsoncodec.ParseString(text) }),
		encode: textEncoder(func(v models.Value, o Options) (string, error) { return jsoncodec.Generate(v, o.JSON), nil }),
	},
	models.FormatCSV: {
		decode: textDecoder(func(text string, o Options) (models.Value, error) { return csv.Parse(text, o.CSV) }),
		encode: textEncoder(func(v models.Value, o Options) (string, error) { return csv.Generate(v, o.CSV) }),
	},
	models.FormatXML: {
		decode: textDecoder(func(text string, o Options) (models.Value, error) { return xml.Parse(text, o.XML) }),
		encode: textEncoder(func(v models.Value, o Options) (string, error) { return xml.Generate(v, o.XML) }),
	},
	models.FormatYAML: {
		decode: textDecoder(func(text string, _ Options) (models.Value, error) { return yaml.Parse(text) }),
		encode: textEncoder(func(v models.Value, o Options) (string, error) { return yaml.Generate(v, o.YAML), nil }),
	},
	models.FormatTOML: {
		decode: textDecoder(func(text string, _ Options) (models.Value, error) { return toml.Parse(text) }),
		encode: textEncoder(func(v models.Value, _ Options) (string, error) { return toml.Generate(v) }),
	},
	models.FormatINI: {
		decode: textDecoder(func(text string, _ Options) (models.Value, error) { return ini.Parse(text) }),
		encode: textEncoder(func(v models.Value, _ Options) (string, error) { return ini.Generate(v) }),
	},
	models.FormatProperties: {
		decode: textDecoder(func(text string, o Options) (models.Value, error) { return properties.Parse(text, o.Properties) }),
		encode: textEncoder(func(v models.Value, _ Options) (string, error) { return properties.Generate(v) }),
	},
	models.FormatDict: {
		decode: textDecoder(func(text string, _ Options) (models.Value, error) { return dict.Parse(text) }),
		encode: textEncoder(func(v models.Value, o Options) (string, error) { return dict.Generate(v, o.Dict), nil }),
	},
	models.FormatSQL: {
		decode: textDecoder(func(text string, _ Options) (models.Value, error) { return sql.Parse(text) }),
		encode: textEncoder(func(v models.Value, o Options) (string, error) { return sql.Generate(v, o.SQL) }),
	},
	models.FormatXLSX: {
		decode: func(data []byte, o Options) (models.Value, error) { return xlsx.Parse(data, o.XLSX) },
		encode: func(v models.Value, o Options) ([]byte, error) { return xlsx.Generate(v, o.XLSX) },
	},
}
