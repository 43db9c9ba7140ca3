// Package toml reads and writes a line-oriented TOML subset: tables, arrays
// of tables, dotted keys, inline arrays and tables, strings, numbers,
// booleans and date-times (kept as RFC 3339 strings).
package toml

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/mcncl/convertkit/internal/errors"
	"github.com/mcncl/convertkit/internal/models"
)

// DateLayout is the form every parsed date-time is normalized to.
const DateLayout = "2006-01-02T15:04:05.000Z"

type parser struct {
	lines   []string
	pos     int
	root    *models.Object
	current *models.Object
}

// Parse converts TOML text into an object
func Parse(text string) (models.Value, error) {
	root := models.NewObject()
	p := &parser{
		lines:   strings.Split(strings.ReplaceAll(text, "\r\n", "\n"), "\n"),
		root:    root,
		current: root,
	}
	if err := p.run(); err != nil {
		return models.Value{}, err
	}
	return models.ObjectValue(root), nil
}

func syntaxError(no int, format string, args ...any) error {
	return errors.NewSyntaxError(fmt.Sprintf("line %d: %s", no, fmt.Sprintf(format, args...)), nil)
}

func (p *parser) run() error {
	for p.pos < len(p.lines) {
		no := p.pos + 1
		text := strings.TrimSpace(stripComment(p.lines[p.pos]))
		p.pos++
		if text == "" {
			continue
		}

		switch {
		case strings.HasPrefix(text, "[["):
			if !strings.HasSuffix(text, "]]") {
				return syntaxError(no, "unterminated array-of-tables header %q", text)
			}
			path, err := parseKeyPath(text[2 : len(text)-2])
			if err != nil {
				return syntaxError(no, "%v", err)
			}
			if err := p.arrayTable(path); err != nil {
				return syntaxError(no, "%v", err)
			}
		case strings.HasPrefix(text, "["):
			if !strings.HasSuffix(text, "]") {
				return syntaxError(no, "unterminated table header %q", text)
			}
			path, err := parseKeyPath(text[1 : len(text)-1])
			if err != nil {
				return syntaxError(no, "%v", err)
			}
			table, err := descendPath(p.root, path)
			if err != nil {
				return syntaxError(no, "%v", err)
			}
			p.current = table
		default:
			if err := p.assignment(text, no); err != nil {
				return err
			}
		}
	}
	return nil
}

func (p *parser) assignment(text string, no int) error {
	eq := indexUnquoted(text, '=')
	if eq < 0 {
		return syntaxError(no, "expected 'key = value', got %q", text)
	}
	path, err := parseKeyPath(text[:eq])
	if err != nil {
		return syntaxError(no, "%v", err)
	}
	valText := strings.TrimSpace(text[eq+1:])

	switch {
	case strings.HasPrefix(valText, `"""`) || strings.HasPrefix(valText, "'''"):
		delim := valText[:3]
		for strings.Count(valText[3:], delim) == 0 {
			if p.pos >= len(p.lines) {
				return syntaxError(no, "unterminated multi-line string")
			}
			valText += "\n" + p.lines[p.pos]
			p.pos++
		}
	default:
		for nesting(valText) > 0 {
			if p.pos >= len(p.lines) {
				return syntaxError(no, "unterminated inline array or table")
			}
			valText += "\n" + strings.TrimSpace(stripComment(p.lines[p.pos]))
			p.pos++
		}
	}

	v, err := parseValue(valText)
	if err != nil {
		return syntaxError(no, "%v", err)
	}
	return setPath(p.current, path, v, no)
}

func setPath(obj *models.Object, path []string, v models.Value, no int) error {
	parent, err := descendPath(obj, path[:len(path)-1])
	if err != nil {
		return syntaxError(no, "%v", err)
	}
	parent.Set(path[len(path)-1], v)
	return nil
}

func (p *parser) arrayTable(path []string) error {
	parent, err := descendPath(p.root, path[:len(path)-1])
	if err != nil {
		return err
	}
	key := path[len(path)-1]
	table := models.NewObject()

	existing, ok := parent.Get(key)
	switch {
	case !ok:
		parent.Set(key, models.Array(models.ObjectValue(table)))
	case existing.Kind() == models.KindArray:
		items := append(append([]models.Value{}, existing.Items()...), models.ObjectValue(table))
		parent.Set(key, models.Array(items...))
	default:
		return fmt.Errorf("key %q is already defined as %s", key, existing.Kind())
	}
	p.current = table
	return nil
}

// descendPath walks to the table at path, creating missing tables. An array
// of tables resolves to its last element.
func descendPath(obj *models.Object, path []string) (*models.Object, error) {
	cur := obj
	for _, key := range path {
		v, ok := cur.Get(key)
		if !ok {
			next := models.NewObject()
			cur.Set(key, models.ObjectValue(next))
			cur = next
			continue
		}
		switch {
		case v.Kind() == models.KindObject:
			cur = v.Object()
		case v.Kind() == models.KindArray && len(v.Items()) > 0 && v.Items()[len(v.Items())-1].Kind() == models.KindObject:
			cur = v.Items()[len(v.Items())-1].Object()
		default:
			return nil, fmt.Errorf("key %q is already defined as %s", key, v.Kind())
		}
	}
	return cur, nil
}

// stripComment removes a '#' comment outside of strings.
func stripComment(s string) string {
	var quote byte
	for i := 0; i < len(s); i++ {
		c := s[i]
		switch {
		case quote == '"':
			if c == '\\' {
				i++
			} else if c == '"' {
				quote = 0
			}
		case quote == '\'':
			if c == '\'' {
				quote = 0
			}
		case c == '"' || c == '\'':
			quote = c
		case c == '#':
			return s[:i]
		}
	}
	return s
}

// scanUnquoted calls fn for every byte outside string literals until fn
// returns false.
func scanUnquoted(s string, fn func(i int, c byte) bool) {
	var quote byte
	for i := 0; i < len(s); i++ {
		c := s[i]
		switch {
		case quote == '"':
			if c == '\\' {
				i++
			} else if c == '"' {
				quote = 0
			}
		case quote == '\'':
			if c == '\'' {
				quote = 0
			}
		case c == '"' || c == '\'':
			quote = c
		default:
			if !fn(i, c) {
				return
			}
		}
	}
}

func indexUnquoted(s string, target byte) int {
	idx := -1
	scanUnquoted(s, func(i int, c byte) bool {
		if c == target {
			idx = i
			return false
		}
		return true
	})
	return idx
}

func nesting(s string) int {
	depth := 0
	scanUnquoted(s, func(_ int, c byte) bool {
		switch c {
		case '[', '{':
			depth++
		case ']', '}':
			depth--
		}
		return true
	})
	return depth
}

// splitTopLevel splits s on sep outside strings, arrays and inline tables.
func splitTopLevel(s string, sep byte) []string {
	var (
		parts []string
		depth int
		start int
	)
	scanUnquoted(s, func(i int, c byte) bool {
		switch {
		case c == '[' || c == '{':
			depth++
		case c == ']' || c == '}':
			depth--
		case c == sep && depth == 0:
			parts = append(parts, s[start:i])
			start = i + 1
		}
		return true
	})
	return append(parts, s[start:])
}

func parseKeyPath(s string) ([]string, error) {
	parts := splitTopLevel(s, '.')
	path := make([]string, 0, len(parts))
	for _, part := range parts {
		part = strings.TrimSpace(part)
		switch {
		case part == "":
			return nil, fmt.Errorf("empty key in %q", strings.TrimSpace(s))
		case part[0] == '"':
			key, n, err := readBasic(part)
			if err != nil {
				return nil, err
			}
			if n != len(part) {
				return nil, fmt.Errorf("invalid quoted key %q", part)
			}
			path = append(path, key)
		case part[0] == '\'':
			if len(part) < 2 || part[len(part)-1] != '\'' {
				return nil, fmt.Errorf("invalid quoted key %q", part)
			}
			path = append(path, part[1:len(part)-1])
		default:
			if !bareKey.MatchString(part) {
				return nil, fmt.Errorf("invalid bare key %q", part)
			}
			path = append(path, part)
		}
	}
	return path, nil
}

var (
	bareKey    = regexp.MustCompile(`^[A-Za-z0-9_-]+$`)
	datePrefix = regexp.MustCompile(`^\d{4}-\d{2}-\d{2}`)
)

func parseValue(s string) (models.Value, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return models.Value{}, fmt.Errorf("missing value")
	}

	switch {
	case strings.HasPrefix(s, `"""`):
		return multiline(s, `"""`)
	case strings.HasPrefix(s, "'''"):
		return multiline(s, "'''")
	case s[0] == '"':
		str, n, err := readBasic(s)
		if err != nil {
			return models.Value{}, err
		}
		if strings.TrimSpace(s[n:]) != "" {
			return models.Value{}, fmt.Errorf("unexpected text after string: %q", s[n:])
		}
		return models.String(str), nil
	case s[0] == '\'':
		end := strings.IndexByte(s[1:], '\'')
		if end < 0 {
			return models.Value{}, fmt.Errorf("unterminated literal string")
		}
		if strings.TrimSpace(s[end+2:]) != "" {
			return models.Value{}, fmt.Errorf("unexpected text after string: %q", s[end+2:])
		}
		return models.String(s[1 : end+1]), nil
	case s[0] == '[':
		return inlineArray(s)
	case s[0] == '{':
		return inlineTable(s)
	case s == "true":
		return models.Bool(true), nil
	case s == "false":
		return models.Bool(false), nil
	}

	if d, ok := parseDate(s); ok {
		return models.String(d), nil
	}
	if n, ok := parseNumber(s); ok {
		return models.Number(n), nil
	}
	return models.String(s), nil
}

func inlineArray(s string) (models.Value, error) {
	if !strings.HasSuffix(s, "]") || nesting(s) != 0 {
		return models.Value{}, fmt.Errorf("unterminated inline array")
	}
	items := []models.Value{}
	for _, part := range splitTopLevel(s[1:len(s)-1], ',') {
		if strings.TrimSpace(part) == "" {
			continue // trailing comma or empty array
		}
		v, err := parseValue(part)
		if err != nil {
			return models.Value{}, err
		}
		items = append(items, v)
	}
	return models.Array(items...), nil
}

func inlineTable(s string) (models.Value, error) {
	if !strings.HasSuffix(s, "}") || nesting(s) != 0 {
		return models.Value{}, fmt.Errorf("unterminated inline table")
	}
	obj := models.NewObject()
	for _, part := range splitTopLevel(s[1:len(s)-1], ',') {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		eq := indexUnquoted(part, '=')
		if eq < 0 {
			return models.Value{}, fmt.Errorf("expected 'key = value' in inline table, got %q", part)
		}
		path, err := parseKeyPath(part[:eq])
		if err != nil {
			return models.Value{}, err
		}
		v, err := parseValue(part[eq+1:])
		if err != nil {
			return models.Value{}, err
		}
		parent, err := descendPath(obj, path[:len(path)-1])
		if err != nil {
			return models.Value{}, err
		}
		parent.Set(path[len(path)-1], v)
	}
	return models.ObjectValue(obj), nil
}

func multiline(s, delim string) (models.Value, error) {
	body := s[3:]
	end := strings.Index(body, delim)
	if end < 0 {
		return models.Value{}, fmt.Errorf("unterminated multi-line string")
	}
	if strings.TrimSpace(body[end+3:]) != "" {
		return models.Value{}, fmt.Errorf("unexpected text after string: %q", body[end+3:])
	}
	body = strings.TrimPrefix(body[:end], "\n")
	if delim == "'''" {
		return models.String(body), nil
	}

	// a backslash at the end of a line trims the newline and leading whitespace
	var b strings.Builder
	for i := 0; i < len(body); i++ {
		c := body[i]
		if c != '\\' {
			b.WriteByte(c)
			continue
		}
		rest := strings.TrimLeft(body[i+1:], " \t")
		if strings.HasPrefix(rest, "\n") {
			i = len(body) - len(strings.TrimLeft(rest, " \t\n")) - 1
			continue
		}
		if i+1 >= len(body) {
			return models.Value{}, fmt.Errorf("unterminated escape")
		}
		n, err := unescape(&b, body[i+1:])
		if err != nil {
			return models.Value{}, err
		}
		i += n
	}
	return models.String(b.String()), nil
}

// readBasic reads a double quoted string at the start of s and returns its
// value and the number of bytes consumed.
func readBasic(s string) (string, int, error) {
	var b strings.Builder
	for i := 1; i < len(s); i++ {
		switch c := s[i]; c {
		case '"':
			return b.String(), i + 1, nil
		case '\\':
			if i+1 >= len(s) {
				return "", 0, fmt.Errorf("unterminated escape")
			}
			n, err := unescape(&b, s[i+1:])
			if err != nil {
				return "", 0, err
			}
			i += n
		default:
			b.WriteByte(c)
		}
	}
	return "", 0, fmt.Errorf("unterminated string")
}

func unescape(b *strings.Builder, s string) (int, error) {
	switch s[0] {
	case 'b':
		b.WriteByte('\b')
	case 't':
		b.WriteByte('\t')
	case 'n':
		b.WriteByte('\n')
	case 'f':
		b.WriteByte('\f')
	case 'r':
		b.WriteByte('\r')
	case 'e':
		b.WriteByte(0x1b)
	case '"':
		b.WriteByte('"')
	case '\\':
		b.WriteByte('\\')
	case 'u', 'U':
		width := 4
		if s[0] == 'U' {
			width = 8
		}
		if len(s) < 1+width {
			return 0, fmt.Errorf("short unicode escape")
		}
		code, err := strconv.ParseUint(s[1:1+width], 16, 32)
		if err != nil {
			return 0, fmt.Errorf("invalid unicode escape \\%s", s[:1+width])
		}
		b.WriteRune(rune(code))
		return 1 + width, nil
	default:
		return 0, fmt.Errorf("unknown escape \\%c", s[0])
	}
	return 1, nil
}

var dateLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02 15:04:05Z07:00",
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
	"2006-01-02T15:04",
	"2006-01-02",
}

// parseDate recognises TOML date-times. Values without an offset are taken
// as UTC.
func parseDate(s string) (string, bool) {
	if !datePrefix.MatchString(s) {
		return "", false
	}
	norm := strings.ToUpper(s)
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, norm); err == nil {
			return t.UTC().Format(DateLayout), true
		}
	}
	return "", false
}

func parseNumber(s string) (float64, bool) {
	if strings.Contains(s, "_") {
		for i := 0; i < len(s); i++ {
			if s[i] == '_' && (i == 0 || i == len(s)-1 || !isAlnum(s[i-1]) || !isAlnum(s[i+1])) {
				return 0, false
			}
		}
		s = strings.ReplaceAll(s, "_", "")
	}

	neg := false
	switch {
	case strings.HasPrefix(s, "+"):
		s = s[1:]
	case strings.HasPrefix(s, "-"):
		neg, s = true, s[1:]
	}

	base := 0
	switch {
	case strings.HasPrefix(s, "0x"):
		base = 16
	case strings.HasPrefix(s, "0o"):
		base = 8
	case strings.HasPrefix(s, "0b"):
		base = 2
	}
	if base != 0 {
		n, err := strconv.ParseInt(s[2:], base, 64)
		if err != nil {
			return 0, false
		}
		if neg {
			n = -n
		}
		return float64(n), true
	}

	if neg {
		s = "-" + s
	}
	return models.ParseNumber(s)
}

func isAlnum(c byte) bool {
	return (c >= '0' && c <= '9') || (c >= 'a' && c <= 'f') || (c >= 'A' && c <= 'F')
}
