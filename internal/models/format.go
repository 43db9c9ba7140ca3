package models

import "strings"

// Format tags a serialization the engine can read or write.
type Format string

const (
	FormatJSON       Format = "json"
	FormatCSV        Format = "csv"
	FormatXML        Format = "xml"
	FormatYAML       Format = "yaml"
	FormatINI        Format = "ini"
	FormatTOML       Format = "toml"
	FormatDict       Format = "dict"
	FormatSQL        Format = "sql"
	FormatProperties Format = "properties"
	FormatXLSX       Format = "xlsx"
	FormatUnknown    Format = "unknown"
)

var formatAliases = map[string]Format{
	"json":       FormatJSON,
	"csv":        FormatCSV,
	"tsv":        FormatCSV,
	"xml":        FormatXML,
	"yaml":       FormatYAML,
	"yml":        FormatYAML,
	"ini":        FormatINI,
	"cfg":        FormatINI,
	"toml":       FormatTOML,
	"dict":       FormatDict,
	"py":         FormatDict,
	"python":     FormatDict,
	"sql":        FormatSQL,
	"properties": FormatProperties,
	"props":      FormatProperties,
	"xlsx":       FormatXLSX,
	"excel":      FormatXLSX,
}

// ParseFormat resolves a format name or file extension. Unknown names map to
// FormatUnknown and false.
func ParseFormat(name string) (Format, bool) {
	f, ok := formatAliases[strings.ToLower(strings.TrimPrefix(strings.TrimSpace(name), "."))]
	if !ok {
		return FormatUnknown, false
	}
	return f, true
}

// Extension returns the conventional file extension including the dot.
func (f Format) Extension() string {
	switch f {
	case FormatDict:
		return ".py"
	case FormatUnknown:
		return ".txt"
	default:
		return "." + string(f)
	}
}

// Binary reports whether the format is not text.
func (f Format) Binary() bool {
	return f == FormatXLSX
}

// Formats lists every concrete format.
func Formats() []Format {
	return []Format{
		FormatJSON, FormatCSV, FormatXML, FormatYAML, FormatINI,
		FormatTOML, FormatDict, FormatSQL, FormatProperties, FormatXLSX,
	}
}
