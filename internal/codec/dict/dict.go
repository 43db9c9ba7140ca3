// Package dict reads and writes Python literal syntax: dicts, lists,
// tuples, strings, numbers, True, False and None.
package dict

import (
	"fmt"
	"strings"

	"github.com/mcncl/convertkit/internal/errors"
	"github.com/mcncl/convertkit/internal/models"
)

// Options controls Python literal output
type Options struct {
	Indent int
}

// DefaultOptions returns PEP 8 style four-space indentation
func DefaultOptions() Options {
	return Options{Indent: 4}
}

// Parse rewrites Python literal text into JSON and decodes it.
func Parse(text string) (models.Value, error) {
	rewritten, err := Rewrite(text)
	if err != nil {
		return models.Value{}, errors.NewSyntaxError("Invalid Python dict format", err)
	}
	v, err := models.ReadJSON(strings.NewReader(rewritten))
	if err != nil {
		return models.Value{}, errors.NewSyntaxError("Invalid Python dict format", err)
	}
	return v, nil
}

// Rewrite converts Python literal tokens into their JSON spelling: None,
// True and False become null, true and false, single quoted strings become
// double quoted, tuples become arrays and trailing commas are dropped.
func Rewrite(text string) (string, error) {
	var b strings.Builder
	b.Grow(len(text))

	for i := 0; i < len(text); i++ {
		c := text[i]
		switch {
		case c == '\'' || c == '"':
			end, err := rewriteString(&b, text, i)
			if err != nil {
				return "", err
			}
			i = end
		case c == '(':
			b.WriteByte('[')
		case c == ')':
			b.WriteByte(']')
		case c == ',':
			if next := nextSignificant(text, i+1); next == ']' || next == '}' || next == ')' {
				continue
			}
			b.WriteByte(c)
		case c == '#':
			for i < len(text) && text[i] != '\n' {
				i++
			}
			b.WriteByte('\n')
		case isIdentStart(c) && (i == 0 || !isIdentPart(text[i-1])):
			j := i
			for j < len(text) && isIdentPart(text[j]) {
				j++
			}
			switch word := text[i:j]; word {
			case "None":
				b.WriteString("null")
			case "True":
				b.WriteString("true")
			case "False":
				b.WriteString("false")
			default:
				b.WriteString(word)
			}
			i = j - 1
		default:
			b.WriteByte(c)
		}
	}
	return b.String(), nil
}

// rewriteString copies the Python string starting at text[start] as a JSON
// string and returns the index of its closing quote.
func rewriteString(b *strings.Builder, text string, start int) (int, error) {
	quote := text[start]
	b.WriteByte('"')
	for i := start + 1; i < len(text); i++ {
		c := text[i]
		switch {
		case c == '\\' && i+1 < len(text):
			i++
			switch next := text[i]; next {
			case '\'':
				b.WriteByte('\'')
			case 'x':
				if i+2 >= len(text) {
					return 0, fmt.Errorf("truncated \\x escape")
				}
				b.WriteString(`\u00` + text[i+1:i+3])
				i += 2
			default:
				b.WriteByte('\\')
				b.WriteByte(next)
			}
		case c == quote:
			b.WriteByte('"')
			return i, nil
		case c == '"':
			b.WriteString(`\"`)
		case c == '\n':
			return 0, fmt.Errorf("unterminated string starting at offset %d", start)
		default:
			b.WriteByte(c)
		}
	}
	return 0, fmt.Errorf("unterminated string starting at offset %d", start)
}

func nextSignificant(text string, from int) byte {
	for i := from; i < len(text); i++ {
		switch text[i] {
		case ' ', '\t', '\n', '\r':
			continue
		default:
			return text[i]
		}
	}
	return 0
}

func isIdentStart(c byte) bool {
	return c == '_' || (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z')
}

func isIdentPart(c byte) bool {
	return isIdentStart(c) || (c >= '0' && c <= '9')
}

// Generate renders v as a Python literal.
func Generate(v models.Value, opts Options) string {
	var b strings.Builder
	write(&b, v, opts.Indent, 0)
	return b.String()
}

func write(b *strings.Builder, v models.Value, indent, depth int) {
	switch v.Kind() {
	case models.KindNull:
		b.WriteString("None")
	case models.KindBool:
		if v.AsBool() {
			b.WriteString("True")
		} else {
			b.WriteString("False")
		}
	case models.KindNumber:
		b.WriteString(models.FormatNumber(v.AsNumber()))
	case models.KindString:
		b.WriteString(Quote(v.AsString()))
	case models.KindArray:
		if len(v.Items()) == 0 {
			b.WriteString("[]")
			return
		}
		b.WriteByte('[')
		for i, item := range v.Items() {
			if i > 0 {
				b.WriteByte(',')
				if indent <= 0 {
					b.WriteByte(' ')
				}
			}
			newline(b, indent, depth+1)
			write(b, item, indent, depth+1)
		}
		newline(b, indent, depth)
		b.WriteByte(']')
	case models.KindObject:
		if v.Object().Len() == 0 {
			b.WriteString("{}")
			return
		}
		b.WriteByte('{')
		first := true
		v.Object().Range(func(key string, val models.Value) bool {
			if !first {
				b.WriteByte(',')
				if indent <= 0 {
					b.WriteByte(' ')
				}
			}
			first = false
			newline(b, indent, depth+1)
			b.WriteString(Quote(key))
			b.WriteString(": ")
			write(b, val, indent, depth+1)
			return true
		})
		newline(b, indent, depth)
		b.WriteByte('}')
	}
}

func newline(b *strings.Builder, indent, depth int) {
	if indent <= 0 {
		return
	}
	b.WriteByte('\n')
	b.WriteString(strings.Repeat(" ", indent*depth))
}

// Quote returns s as a single quoted Python string.
func Quote(s string) string {
	var b strings.Builder
	b.WriteByte('\'')
	for _, r := range s {
		switch r {
		case '\'':
			b.WriteString(`\'`)
		case '\\':
			b.WriteString(`\\`)
		case '\n':
			b.WriteString(`\n`)
		case '\r':
			b.WriteString(`\r`)
		case '\t':
			b.WriteString(`\t`)
		default:
			if r < 0x20 {
				fmt.Fprintf(&b, `\x%02x`, r)
			} else {
				b.WriteRune(r)
			}
		}
	}
	b.WriteByte('\'')
	return b.String()
}
