// Package detect guesses the format of a document from its content.
package detect

import (
	"bytes"
	"regexp"
	"strings"

	"github.com/goccy/go-json"

	"github.com/mcncl/convertkit/internal/models"
)

// sampleLines bounds how many lines the line-oriented rules look at.
const sampleLines = 5

var (
	dictMarker   = regexp.MustCompile(`\b(True|False|None)\b|'[^'\n]*'|\(`)
	sqlInsert    = regexp.MustCompile(`(?is)\binsert\s+into\b.*\bvalues\b`)
	yamlKey      = regexp.MustCompile(`(?m)^\s*[A-Za-z0-9_.\-"']+\s*:(\s|$)`)
	yamlItem     = regexp.MustCompile(`(?m)^\s*-\s`)
	tableArray   = regexp.MustCompile(`(?m)^\s*\[\[[^\]]+\]\]\s*$`)
	section      = regexp.MustCompile(`(?m)^\s*\[[^\[\]]+\]\s*$`)
	assignment   = regexp.MustCompile(`(?m)^\s*[A-Za-z0-9_.\-"'\[\]]+\s*=`)
	bangComment  = regexp.MustCompile(`(?m)^\s*!`)
	hashComment  = regexp.MustCompile(`(?m)^\s*#`)
	continuation = regexp.MustCompile(`(?m)[^\\]\\$`)
	dottedKey    = regexp.MustCompile(`(?m)^\s*[A-Za-z0-9_\-]+(\.[A-Za-z0-9_\-]+)+\s*[=:]`)
	tomlValue    = regexp.MustCompile(`(?m)=\s*("|'|\[|\{|true\s*$|false\s*$)`)
)

// DetectFormat classifies text. The rules run in a fixed order and the first
// match wins; anything unrecognised is FormatUnknown.
func DetectFormat(text string) models.Format {
	trimmed := strings.TrimSpace(strings.TrimPrefix(text, "\uFEFF"))
	if trimmed == "" {
		return models.FormatUnknown
	}

	wrapped := (trimmed[0] == '{' && trimmed[len(trimmed)-1] == '}') ||
		(trimmed[0] == '[' && trimmed[len(trimmed)-1] == ']')

	switch {
	case wrapped && json.Valid([]byte(trimmed)):
		return models.FormatJSON
	case wrapped && dictMarker.MatchString(trimmed) && !assignment.MatchString(trimmed):
		return models.FormatDict
	case trimmed[0] == '<' && strings.Contains(trimmed, ">"):
		return models.FormatXML
	case sqlInsert.MatchString(trimmed):
		return models.FormatSQL
	case isCSV(trimmed):
		return models.FormatCSV
	case strings.Contains(trimmed, ":") && (yamlItem.MatchString(trimmed) || yamlKey.MatchString(trimmed)) &&
		!assignment.MatchString(trimmed) && !section.MatchString(trimmed):
		return models.FormatYAML
	case tableArray.MatchString(trimmed):
		return models.FormatTOML
	case assignment.MatchString(trimmed) || section.MatchString(trimmed):
		return keyValueFormat(trimmed)
	}
	return models.FormatUnknown
}

// keyValueFormat separates properties, TOML and INI, which share the
// key=value line shape.
func keyValueFormat(text string) models.Format {
	hasSection := section.MatchString(text)
	if !hasSection && (bangComment.MatchString(text) || continuation.MatchString(text) ||
		hashComment.MatchString(text) || dottedKey.MatchString(text)) {
		return models.FormatProperties
	}
	if tomlValue.MatchString(text) {
		return models.FormatTOML
	}
	return models.FormatINI
}

// isCSV reports whether the first lines agree on a non-zero count of one
// delimiter.
func isCSV(text string) bool {
	var lines []string
	for _, line := range strings.Split(text, "\n") {
		line = strings.TrimRight(line, "\r")
		if strings.TrimSpace(line) == "" {
			continue
		}
		lines = append(lines, line)
		if len(lines) == sampleLines {
			break
		}
	}
	if len(lines) < 2 {
		return false
	}

	for _, delim := range []byte{',', ';', '\t'} {
		want := countOutsideQuotes(lines[0], delim)
		if want == 0 {
			continue
		}
		consistent := true
		for _, line := range lines[1:] {
			if countOutsideQuotes(line, delim) != want {
				consistent = false
				break
			}
		}
		if consistent {
			return true
		}
	}
	return false
}

func countOutsideQuotes(line string, delim byte) int {
	n := 0
	quoted := false
	for i := 0; i < len(line); i++ {
		switch line[i] {
		case '"':
			quoted = !quoted
		case delim:
			if !quoted {
				n++
			}
		}
	}
	return n
}

var zipMagic = []byte("PK\x03\x04")

// DetectBytes extends DetectFormat to binary input: a ZIP container holding
// xl/ entries is an XLSX workbook.
func DetectBytes(data []byte) models.Format {
	if bytes.HasPrefix(data, zipMagic) {
		if bytes.Contains(data, []byte("xl/workbook")) ||
			(bytes.Contains(data, []byte("[Content_Types].xml")) && bytes.Contains(data, []byte("xl/"))) {
			return models.FormatXLSX
		}
		return models.FormatUnknown
	}
	return DetectFormat(string(data))
}
