// Package yaml implements a pragmatic, indentation-driven YAML subset:
// block mappings and sequences, plain and quoted scalars, flow collections,
// block scalars and comments. Anchors, aliases and multiple documents are not
// supported; only the first document of a stream is read.
package yaml

import (
	"fmt"
	"strings"

	"github.com/mcncl/convertkit/internal/errors"
	"github.com/mcncl/convertkit/internal/models"
)

type line struct {
	no     int
	indent int
	text   string // comment stripped and trimmed
	raw    string
	blank  bool
}

// Parse converts YAML text into a value. An empty document is null.
func Parse(text string) (models.Value, error) {
	lines := splitLines(text)
	return parseBlock(lines)
}

func syntaxError(no int, format string, args ...any) error {
	return errors.NewSyntaxError(fmt.Sprintf("line %d: %s", no, fmt.Sprintf(format, args...)), nil)
}

func splitLines(text string) []line {
	text = strings.ReplaceAll(text, "\r\n", "\n")
	var out []line
	started := false
	for i, raw := range strings.Split(text, "\n") {
		trimmed := strings.TrimSpace(raw)
		switch {
		case trimmed == "---" || strings.HasPrefix(trimmed, "--- "):
			if started {
				return out
			}
			rest := strings.TrimSpace(stripComment(strings.TrimPrefix(trimmed, "---")))
			if rest == "" {
				continue
			}
			raw = rest
		case trimmed == "...":
			if started {
				return out
			}
			continue
		case !started && strings.HasPrefix(trimmed, "%"):
			continue
		}

		content := strings.TrimSpace(stripComment(raw))
		l := line{
			no:     i + 1,
			indent: leadingSpace(raw),
			text:   content,
			raw:    raw,
			blank:  content == "",
		}
		if !l.blank {
			started = true
		}
		out = append(out, l)
	}
	return out
}

func leadingSpace(s string) int {
	n := 0
	for n < len(s) && (s[n] == ' ' || s[n] == '\t') {
		n++
	}
	return n
}

// stripComment cuts a trailing comment. A '#' starts a comment at the start
// of the line or after whitespace, outside quoted scalars.
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
				if i+1 < len(s) && s[i+1] == '\'' {
					i++
				} else {
					quote = 0
				}
			}
		case (c == '"' || c == '\'') && tokenStart(s, i):
			quote = c
		case c == '#' && (i == 0 || s[i-1] == ' ' || s[i-1] == '\t'):
			return s[:i]
		}
	}
	return s
}

func tokenStart(s string, i int) bool {
	if i == 0 {
		return true
	}
	return strings.IndexByte(" \t:[{,-", s[i-1]) >= 0
}

func nonBlank(lines []line) []line {
	var out []line
	for _, l := range lines {
		if !l.blank {
			out = append(out, l)
		}
	}
	return out
}

func isSeqItem(text string) bool {
	return text == "-" || strings.HasPrefix(text, "- ") || strings.HasPrefix(text, "-\t")
}

func isBlockIndicator(text string) bool {
	switch text {
	case "|", "|-", "|+", ">", ">-", ">+":
		return true
	}
	return false
}

// keyColon returns the index of the ':' that separates a mapping key from its
// value, or -1 when text is not a mapping entry.
func keyColon(text string) int {
	if text == "" || text[0] == '[' || text[0] == '{' {
		return -1
	}
	if text[0] == '"' || text[0] == '\'' {
		_, n, err := readQuoted(text)
		if err != nil {
			return -1
		}
		rest := strings.TrimLeft(text[n:], " \t")
		idx := len(text) - len(rest)
		if strings.HasPrefix(rest, ":") && (idx+1 == len(text) || text[idx+1] == ' ' || text[idx+1] == '\t') {
			return idx
		}
		return -1
	}
	for i := 0; i < len(text); i++ {
		if text[i] == ':' && (i+1 == len(text) || text[i+1] == ' ' || text[i+1] == '\t') {
			return i
		}
	}
	return -1
}

func parseKey(text string, no int) (string, error) {
	text = strings.TrimSpace(text)
	if text != "" && (text[0] == '"' || text[0] == '\'') {
		s, n, err := readQuoted(text)
		if err != nil {
			return "", syntaxError(no, "%v", err)
		}
		if strings.TrimSpace(text[n:]) != "" {
			return "", syntaxError(no, "unexpected text after quoted key")
		}
		return s, nil
	}
	return text, nil
}

// parseBlock parses lines that share one base indentation.
func parseBlock(lines []line) (models.Value, error) {
	content := nonBlank(lines)
	if len(content) == 0 {
		return models.Null(), nil
	}
	first := content[0]
	for _, l := range content[1:] {
		if l.indent < first.indent {
			return models.Value{}, syntaxError(l.no, "bad indentation")
		}
	}

	switch {
	case isSeqItem(first.text):
		return parseSequence(lines, first.indent)
	case keyColon(first.text) >= 0:
		return parseMapping(lines, first.indent)
	}

	parts := make([]string, len(content))
	for i, l := range content {
		parts[i] = l.text
	}
	return parseScalar(strings.Join(parts, " "), first.no)
}

// childEnd returns the index just past the last line that belongs to the
// entry at lines[i]: more indented lines, plus same-indent sequence items when
// the entry's value is empty (compact sequences under a key).
func childEnd(lines []line, i, base int, compact bool) int {
	last := i
	for k := i + 1; k < len(lines); k++ {
		c := lines[k]
		if c.blank {
			continue
		}
		if c.indent > base || (compact && c.indent == base && isSeqItem(c.text)) {
			last = k
			continue
		}
		break
	}
	return last + 1
}

// blockEnd is childEnd for block scalar bodies, which are measured on the
// raw text so that '#' lines inside the block are kept.
func blockEnd(lines []line, i, base int) int {
	last := i
	for k := i + 1; k < len(lines); k++ {
		c := lines[k]
		if strings.TrimSpace(c.raw) == "" {
			continue
		}
		if leadingSpace(c.raw) > base {
			last = k
			continue
		}
		break
	}
	return last + 1
}

func parseMapping(lines []line, base int) (models.Value, error) {
	obj := models.NewObject()
	for i := 0; i < len(lines); {
		ln := lines[i]
		if ln.blank {
			i++
			continue
		}
		if ln.indent != base {
			return models.Value{}, syntaxError(ln.no, "unexpected indentation")
		}
		idx := keyColon(ln.text)
		if idx < 0 {
			return models.Value{}, syntaxError(ln.no, "expected 'key: value', got %q", ln.text)
		}
		key, err := parseKey(ln.text[:idx], ln.no)
		if err != nil {
			return models.Value{}, err
		}
		rest := strings.TrimSpace(ln.text[idx+1:])

		end := childEnd(lines, i, base, rest == "")
		if isBlockIndicator(rest) {
			end = blockEnd(lines, i, base)
		}
		v, err := parseValue(rest, ln.no, lines[i+1:end])
		if err != nil {
			return models.Value{}, err
		}
		obj.Set(key, v)
		i = end
	}
	return models.ObjectValue(obj), nil
}

func parseSequence(lines []line, base int) (models.Value, error) {
	var items []models.Value
	for i := 0; i < len(lines); {
		ln := lines[i]
		if ln.blank {
			i++
			continue
		}
		if ln.indent != base || !isSeqItem(ln.text) {
			return models.Value{}, syntaxError(ln.no, "expected '- ' sequence item")
		}
		after := ln.text[1:]
		content := strings.TrimLeft(after, " \t")

		end := childEnd(lines, i, base, false)
		if isBlockIndicator(content) {
			end = blockEnd(lines, i, base)
		}
		children := lines[i+1 : end]
		var (
			item models.Value
			err  error
		)
		if isSeqItem(content) || keyColon(content) >= 0 {
			// Re-home the inline content at its own column so that the
			// following lines line up with it.
			col := ln.indent + 1 + len(after) - len(content)
			virtual := line{no: ln.no, indent: col, text: content, raw: strings.Repeat(" ", col) + content}
			item, err = parseBlock(append([]line{virtual}, children...))
		} else {
			item, err = parseValue(content, ln.no, children)
		}
		if err != nil {
			return models.Value{}, err
		}
		items = append(items, item)
		i = end
	}
	return models.Array(items...), nil
}

// parseValue interprets the inline text after "key:" or "- " together with
// the more indented lines that follow it.
func parseValue(rest string, no int, children []line) (models.Value, error) {
	content := nonBlank(children)
	switch {
	case rest == "":
		return parseBlock(children)
	case isBlockIndicator(rest):
		return models.String(blockScalar(rest, children)), nil
	case len(content) == 0:
		return parseScalar(rest, no)
	}
	parts := []string{rest}
	for _, c := range content {
		parts = append(parts, c.text)
	}
	return parseScalar(strings.Join(parts, " "), no)
}

func blockScalar(indicator string, children []line) string {
	// trailing blank lines are not part of the block
	for len(children) > 0 && strings.TrimSpace(children[len(children)-1].raw) == "" {
		children = children[:len(children)-1]
	}
	if len(children) == 0 {
		return ""
	}

	indent := -1
	for _, c := range children {
		if strings.TrimSpace(c.raw) == "" {
			continue
		}
		if n := leadingSpace(c.raw); indent < 0 || n < indent {
			indent = n
		}
	}
	texts := make([]string, len(children))
	for i, c := range children {
		if len(c.raw) >= indent {
			texts[i] = strings.TrimRight(c.raw[indent:], " \t")
		}
	}

	var body string
	if indicator[0] == '|' {
		body = strings.Join(texts, "\n")
	} else {
		var b strings.Builder
		for i, t := range texts {
			switch {
			case i == 0:
			case t == "":
				b.WriteByte('\n')
			case texts[i-1] == "":
			default:
				b.WriteByte(' ')
			}
			b.WriteString(t)
		}
		body = b.String()
	}

	if strings.HasSuffix(indicator, "-") {
		return body
	}
	return body + "\n"
}

func parseScalar(text string, no int) (models.Value, error) {
	text = strings.TrimSpace(text)
	if strings.HasPrefix(text, "!!") {
		tag, rest, _ := strings.Cut(text, " ")
		rest = strings.TrimSpace(rest)
		if tag == "!!str" {
			if rest != "" && (rest[0] == '"' || rest[0] == '\'') {
				return parseScalar(rest, no)
			}
			return models.String(rest), nil
		}
		text = rest
	}
	if text == "" {
		return models.Null(), nil
	}

	switch text[0] {
	case '"', '\'':
		s, n, err := readQuoted(text)
		if err != nil {
			return models.Value{}, syntaxError(no, "%v", err)
		}
		if strings.TrimSpace(text[n:]) != "" {
			return models.Value{}, syntaxError(no, "unexpected text after quoted scalar")
		}
		return models.String(s), nil
	case '[', '{':
		f := &flow{s: text, no: no}
		v, err := f.value()
		if err != nil {
			return models.Value{}, err
		}
		f.skipSpace()
		if f.pos < len(f.s) {
			return models.Value{}, syntaxError(no, "unexpected text after flow collection")
		}
		return v, nil
	}
	return models.CoerceScalar(text, models.YAMLRules), nil
}

// flow parses inline [a, b] and {k: v} collections.
type flow struct {
	s   string
	pos int
	no  int
}

func (f *flow) skipSpace() {
	for f.pos < len(f.s) && (f.s[f.pos] == ' ' || f.s[f.pos] == '\t') {
		f.pos++
	}
}

func (f *flow) value() (models.Value, error) {
	f.skipSpace()
	if f.pos >= len(f.s) {
		return models.Value{}, syntaxError(f.no, "unterminated flow collection")
	}
	switch f.s[f.pos] {
	case '[':
		return f.sequence()
	case '{':
		return f.mapping()
	case '"', '\'':
		s, n, err := readQuoted(f.s[f.pos:])
		if err != nil {
			return models.Value{}, syntaxError(f.no, "%v", err)
		}
		f.pos += n
		return models.String(s), nil
	}
	start := f.pos
	for f.pos < len(f.s) && strings.IndexByte(",]}", f.s[f.pos]) < 0 {
		f.pos++
	}
	return models.CoerceScalar(f.s[start:f.pos], models.YAMLRules), nil
}

func (f *flow) sequence() (models.Value, error) {
	f.pos++ // [
	items := []models.Value{}
	for {
		f.skipSpace()
		if f.pos >= len(f.s) {
			return models.Value{}, syntaxError(f.no, "unterminated flow sequence")
		}
		if f.s[f.pos] == ']' {
			f.pos++
			return models.Array(items...), nil
		}
		v, err := f.value()
		if err != nil {
			return models.Value{}, err
		}
		items = append(items, v)
		if err := f.separator(']'); err != nil {
			return models.Value{}, err
		}
	}
}

func (f *flow) mapping() (models.Value, error) {
	f.pos++ // {
	obj := models.NewObject()
	for {
		f.skipSpace()
		if f.pos >= len(f.s) {
			return models.Value{}, syntaxError(f.no, "unterminated flow mapping")
		}
		if f.s[f.pos] == '}' {
			f.pos++
			return models.ObjectValue(obj), nil
		}

		var key string
		if c := f.s[f.pos]; c == '"' || c == '\'' {
			s, n, err := readQuoted(f.s[f.pos:])
			if err != nil {
				return models.Value{}, syntaxError(f.no, "%v", err)
			}
			key = s
			f.pos += n
			f.skipSpace()
		} else {
			start := f.pos
			for f.pos < len(f.s) && strings.IndexByte(":,}", f.s[f.pos]) < 0 {
				f.pos++
			}
			key = strings.TrimSpace(f.s[start:f.pos])
		}

		value := models.Null()
		if f.pos < len(f.s) && f.s[f.pos] == ':' {
			f.pos++
			f.skipSpace()
			if f.pos < len(f.s) && f.s[f.pos] != ',' && f.s[f.pos] != '}' {
				v, err := f.value()
				if err != nil {
					return models.Value{}, err
				}
				value = v
			}
		}
		obj.Set(key, value)
		if err := f.separator('}'); err != nil {
			return models.Value{}, err
		}
	}
}

func (f *flow) separator(closer byte) error {
	f.skipSpace()
	if f.pos >= len(f.s) {
		return syntaxError(f.no, "unterminated flow collection")
	}
	switch f.s[f.pos] {
	case ',':
		f.pos++
		return nil
	case closer:
		return nil
	}
	return syntaxError(f.no, "expected ',' or '%c' in flow collection", closer)
}

// readQuoted reads a single or double quoted scalar at the start of s and
// returns its value and the number of bytes consumed.
func readQuoted(s string) (string, int, error) {
	q := s[0]
	var b strings.Builder
	for i := 1; i < len(s); i++ {
		c := s[i]
		if q == '\'' {
			if c == '\'' {
				if i+1 < len(s) && s[i+1] == '\'' {
					b.WriteByte('\'')
					i++
					continue
				}
				return b.String(), i + 1, nil
			}
			b.WriteByte(c)
			continue
		}

		switch c {
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
	return "", 0, fmt.Errorf("unterminated quoted string")
}

// unescape decodes one escape sequence (without its backslash) and returns
// how many bytes it used.
func unescape(b *strings.Builder, s string) (int, error) {
	simple := map[byte]string{
		'n': "\n", 't': "\t", 'r': "\r", '0': "\x00", 'b': "\b", 'f': "\f",
		'a': "\a", 'e': "\x1b", 'v': "\v", '"': `"`, '\\': `\`, '/': "/", ' ': " ",
	}
	if rep, ok := simple[s[0]]; ok {
		b.WriteString(rep)
		return 1, nil
	}
	width := map[byte]int{'x': 2, 'u': 4, 'U': 8}[s[0]]
	if width == 0 {
		return 0, fmt.Errorf("unknown escape \\%c", s[0])
	}
	if len(s) < 1+width {
		return 0, fmt.Errorf("short \\%c escape", s[0])
	}
	var r rune
	for _, h := range s[1 : 1+width] {
		d := hexValue(h)
		if d < 0 {
			return 0, fmt.Errorf("invalid hex digit %q in escape", h)
		}
		r = r<<4 | rune(d)
	}
	b.WriteRune(r)
	return 1 + width, nil
}

func hexValue(r rune) int {
	switch {
	case r >= '0' && r <= '9':
		return int(r - '0')
	case r >= 'a' && r <= 'f':
		return int(r-'a') + 10
	case r >= 'A' && r <= 'F':
		return int(r-'A') + 10
	}
	return -1
}
