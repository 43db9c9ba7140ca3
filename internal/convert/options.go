package convert

import (
	"github.com/mcncl/convertkit/internal/codec/csv"
	"github.com/mcncl/convertkit/internal/codec/dict"
	jsoncodec "github.com/mcncl/convertkit/internal/codec/json"
	"github.com/mcncl/convertkit/internal/codec/properties"
	"github.com/mcncl/convertkit/internal/codec/sql"
	"github.com/mcncl/convertkit/internal/codec/xlsx"
	"github.com/mcncl/convertkit/internal/codec/xml"
	"github.com/mcncl/convertkit/internal/codec/yaml"
	"github.com/mcncl/convertkit/internal/config"
)

// Options carries the per-codec settings for one conversion. Codecs without
// settings (INI, TOML) are absent.
type Options struct {
	JSON       jsoncodec.Options
	CSV        csv.Options
	XML        xml.Options
	YAML       yaml.Options
	SQL        sql.Options
	XLSX       xlsx.Options
	Dict       dict.Options
	Properties properties.Options
}

// DefaultOptions returns every codec's defaults
func DefaultOptions() Options {
	return Options{
		JSON:       jsoncodec.DefaultOptions(),
		CSV:        csv.DefaultOptions(),
		XML:        xml.DefaultOptions(),
		YAML:       yaml.DefaultOptions(),
		SQL:        sql.DefaultOptions(),
		XLSX:       xlsx.DefaultOptions(),
		Dict:       dict.DefaultOptions(),
		Properties: properties.DefaultOptions(),
	}
}

// OptionsFromConfig maps a validated config onto codec options
func OptionsFromConfig(cfg *config.Config) (Options, error) {
	delim, err := cfg.CSV.DelimiterRune()
	if err != nil {
		return Options{}, err
	}

	items := make(map[string]string, len(cfg.XML.ItemNames))
	for k, v := range cfg.XML.ItemNames {
		items[k] = v
	}

	return Options{
		JSON: jsoncodec.Options{Indent: cfg.JSON.Indent},
		CSV: csv.Options{
			Delimiter:      delim,
			HasHeader:      cfg.CSV.HasHeader,
			SkipEmptyLines: cfg.CSV.SkipEmptyLines,
			FlattenData:    cfg.CSV.FlattenData,
		},
		XML: xml.Options{
			RootElement:     cfg.XML.RootElement,
			AttributePrefix: cfg.XML.AttributePrefix,
			TextKey:         cfg.XML.TextKey,
			AddDeclaration:  cfg.XML.AddDeclaration,
			Indentation:     cfg.XML.Indentation,
			ItemNames:       items,
		},
		YAML: yaml.Options{
			Indentation: cfg.YAML.Indentation,
			SortKeys:    cfg.YAML.SortKeys,
		},
		SQL: sql.Options{
			TableName:     cfg.SQL.TableName,
			IncludeCreate: cfg.SQL.IncludeCreate,
			Dialect:       sql.Dialect(cfg.SQL.Dialect),
			BatchSize:     cfg.SQL.BatchSize,
		},
		XLSX: xlsx.Options{
			SheetIndex: cfg.XLSX.SheetIndex,
			SheetName:  cfg.XLSX.SheetName,
			HasHeaders: cfg.XLSX.HasHeaders,
			Range:      cfg.XLSX.Range,
		},
		Dict: dict.Options{Indent: cfg.Dict.Indent},
		Properties: properties.Options{
			Expand:       cfg.Properties.Expand,
			CoerceValues: cfg.Properties.CoerceValues,
		},
	}, nil
}
