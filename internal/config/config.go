package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"unicode/utf8"

	"gopkg.in/yaml.v3"

	"github.com/mcncl/convertkit/internal/errors"
)

// Config represents the complete configuration for convertkit
type Config struct {
	JSON       JSONConfig       `yaml:"json"`
	CSV        CSVConfig        `yaml:"csv"`
	XML        XMLConfig        `yaml:"xml"`
	YAML       YAMLConfig       `yaml:"yaml"`
	SQL        SQLConfig        `yaml:"sql"`
	XLSX       XLSXConfig       `yaml:"xlsx"`
	Dict       DictConfig       `yaml:"dict"`
	Properties PropertiesConfig `yaml:"properties"`
	Batch      BatchConfig      `yaml:"batch"`
	Server     ServerConfig     `yaml:"server"`
	Log        LogConfig        `yaml:"log"`
}

// JSONConfig controls JSON output
type JSONConfig struct {
	Indent int `yaml:"indent"`
}

// CSVConfig controls CSV parsing and generation
type CSVConfig struct {
	Delimiter      string `yaml:"delimiter"` // a single character, or "tab"
	HasHeader      bool   `yaml:"has_header"`
	SkipEmptyLines bool   `yaml:"skip_empty_lines"`
	FlattenData    bool   `yaml:"flatten_data"`
}

// XMLConfig controls XML parsing and generation
type XMLConfig struct {
	RootElement     string            `yaml:"root_element"`
	AttributePrefix string            `yaml:"attribute_prefix"`
	TextKey         string            `yaml:"text_key"`
	AddDeclaration  bool              `yaml:"add_declaration"`
	Indentation     int               `yaml:"indentation"`
	ItemNames       map[string]string `yaml:"item_names"`
}

// YAMLConfig controls YAML generation
type YAMLConfig struct {
	Indentation int  `yaml:"indentation"`
	SortKeys    bool `yaml:"sort_keys"`
}

// SQLConfig controls SQL generation
type SQLConfig struct {
	// TableName forces the output table; empty keeps the source table
	TableName     string `yaml:"table_name"`
	IncludeCreate bool   `yaml:"include_create"`
	Dialect       string `yaml:"dialect"`
	BatchSize     int    `yaml:"batch_size"`
}

// XLSXConfig controls workbook reading and writing
type XLSXConfig struct {
	SheetIndex int    `yaml:"sheet_index"`
	SheetName  string `yaml:"sheet_name"`
	HasHeaders bool   `yaml:"has_headers"`
	Range      string `yaml:"range"`
}

// DictConfig controls Python literal output
type DictConfig struct {
	Indent int `yaml:"indent"`
}

// PropertiesConfig controls Java properties parsing
type PropertiesConfig struct {
	Expand       bool `yaml:"expand"`
	CoerceValues bool `yaml:"coerce_values"`
}

// BatchConfig controls concurrent conversion of several inputs
type BatchConfig struct {
	Workers int `yaml:"workers"`
}

// ServerConfig controls the HTTP API
type ServerConfig struct {
	Addr         string `yaml:"addr"`
	MaxBodyBytes int64  `yaml:"max_body_bytes"`
}

// LogConfig controls structured logging
type LogConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// Dialects lists the SQL dialects the generator understands.
var Dialects = []string{"mysql", "postgresql", "sqlite", "sqlserver", "oracle"}

// NewConfig creates a new Config with default values
func NewConfig() *Config {
	return &Config{
		JSON: JSONConfig{Indent: 2},
		CSV: CSVConfig{
			Delimiter:      ",",
			HasHeader:      true,
			SkipEmptyLines: true,
			FlattenData:    true,
		},
		XML: XMLConfig{
			AttributePrefix: "@",
			TextKey:         "#text",
			AddDeclaration:  true,
			Indentation:     2,
			ItemNames:       make(map[string]string),
		},
		YAML: YAMLConfig{Indentation: 2},
		SQL: SQLConfig{
			IncludeCreate: true,
			Dialect:       "mysql",
		},
		XLSX: XLSXConfig{HasHeaders: true},
		Dict: DictConfig{Indent: 4},
		Properties: PropertiesConfig{
			Expand:       true,
			CoerceValues: true,
		},
		Batch: BatchConfig{Workers: 4},
		Server: ServerConfig{
			Addr:         ":8080",
			MaxBodyBytes: 32 << 20,
		},
		Log: LogConfig{
			Level:  "info",
			Format: "text",
		},
	}
}

// LoadConfig loads configuration from a YAML file
func LoadConfig(path string) (*Config, error) {
	// Read file
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.NewConfigError("failed to read config file", err)
	}

	// Start with defaults
	cfg := NewConfig()

	// Parse YAML
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, errors.NewConfigError("failed to parse config file", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// FindConfigFile searches for a config file in the given directory and its parents.
// An empty start uses the current working directory.
func FindConfigFile(start string) string {
	configNames := []string{".convertkit.yml", ".convertkit.yaml", "convertkit.yml", "convertkit.yaml"}

	currentDir := start
	if currentDir == "" {
		wd, err := os.Getwd()
		if err != nil {
			return ""
		}
		currentDir = wd
	}

	// Search up the directory tree
	for {
		for _, name := range configNames {
			configPath := filepath.Join(currentDir, name)
			if _, err := os.Stat(configPath); err == nil {
				return configPath
			}
		}

		parentDir := filepath.Dir(currentDir)
		if parentDir == currentDir {
			// Reached root directory
			break
		}
		currentDir = parentDir
	}

	return ""
}

// Validate checks option values that the codecs cannot recover from
func (c *Config) Validate() error {
	if _, err := c.CSV.DelimiterRune(); err != nil {
		return err
	}
	if !IsDialect(c.SQL.Dialect) {
		return errors.NewConfigError(
			fmt.Sprintf("unknown SQL dialect '%s' (expected one of %s)", c.SQL.Dialect, strings.Join(Dialects, ", ")), nil)
	}
	if c.SQL.BatchSize < 0 {
		return errors.NewConfigError("sql.batch_size must not be negative", nil)
	}
	if c.JSON.Indent < 0 || c.YAML.Indentation < 0 || c.XML.Indentation < 0 || c.Dict.Indent < 0 {
		return errors.NewConfigError("indentation must not be negative", nil)
	}
	if c.Batch.Workers < 1 {
		return errors.NewConfigError("batch.workers must be at least 1", nil)
	}
	switch c.Log.Format {
	case "text", "json":
	default:
		return errors.NewConfigError(fmt.Sprintf("unknown log format '%s'", c.Log.Format), nil)
	}
	return nil
}

// DelimiterRune returns the configured CSV delimiter
func (c CSVConfig) DelimiterRune() (rune, error) {
	switch strings.ToLower(c.Delimiter) {
	case "tab", `\t`:
		return '\t', nil
	case "":
		return ',', nil
	}
	if utf8.RuneCountInString(c.Delimiter) != 1 {
		return 0, errors.NewConfigError(fmt.Sprintf("csv.delimiter must be a single character, got '%s'", c.Delimiter), nil)
	}
	r, _ := utf8.DecodeRuneInString(c.Delimiter)
	if r == '"' || r == '\n' || r == '\r' {
		return 0, errors.NewConfigError(fmt.Sprintf("csv.delimiter cannot be %q", r), nil)
	}
	return r, nil
}

// IsDialect reports whether name is a supported SQL dialect
func IsDialect(name string) bool {
	for _, d := range Dialects {
		if d == name {
			return true
		}
	}
	return false
}

// Overrides holds values given on the command line. Empty strings and nil
// pointers leave the config file value in place.
type Overrides struct {
	Delimiter   string
	RootElement string
	TableName   string
	Dialect     string
	SheetName   string
	Indent      *int
	SortKeys    *bool
	NoHeader    *bool
	NoCreate    *bool
	Workers     int
	LogLevel    string
	LogFormat   string
}

// MergeConfigs applies CLI overrides to a base config and returns a new config
func MergeConfigs(base *Config, o Overrides) *Config {
	merged := *base // Start with a copy of base
	merged.XML.ItemNames = make(map[string]string, len(base.XML.ItemNames))
	for k, v := range base.XML.ItemNames {
		merged.XML.ItemNames[k] = v
	}

	if o.Delimiter != "" {
		merged.CSV.Delimiter = o.Delimiter
	}
	if o.RootElement != "" {
		merged.XML.RootElement = o.RootElement
	}
	if o.TableName != "" {
		merged.SQL.TableName = o.TableName
	}
	if o.Dialect != "" {
		merged.SQL.Dialect = strings.ToLower(o.Dialect)
	}
	if o.SheetName != "" {
		merged.XLSX.SheetName = o.SheetName
	}
	if o.Indent != nil {
		merged.JSON.Indent = *o.Indent
		merged.YAML.Indentation = *o.Indent
		merged.XML.Indentation = *o.Indent
		merged.Dict.Indent = *o.Indent
	}
	if o.SortKeys != nil {
		merged.YAML.SortKeys = *o.SortKeys
	}
	if o.NoHeader != nil && *o.NoHeader {
		merged.CSV.HasHeader = false
		merged.XLSX.HasHeaders = false
	}
	if o.NoCreate != nil && *o.NoCreate {
		merged.SQL.IncludeCreate = false
	}
	if o.Workers > 0 {
		merged.Batch.Workers = o.Workers
	}
	if o.LogLevel != "" {
		merged.Log.Level = o.LogLevel
	}
	if o.LogFormat != "" {
		merged.Log.Format = o.LogFormat
	}

	return &merged
}

// LoadConfigWithCLI loads the config file, if any, and applies CLI overrides on top
func LoadConfigWithCLI(configPath string, o Overrides) (*Config, error) {
	cfg := NewConfig()

	if configPath != "" {
		fileConfig, err := LoadConfig(configPath)
		if err != nil {
			return nil, err
		}
		cfg = fileConfig
	}

	merged := MergeConfigs(cfg, o)
	if err := merged.Validate(); err != nil {
		return nil, err
	}
	return merged, nil
}
