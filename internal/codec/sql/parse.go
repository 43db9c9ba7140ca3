// Package sql reads INSERT statements into rows and writes rows back as
// CREATE TABLE and INSERT statements for several SQL dialects.
package sql

import (
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/mcncl/convertkit/internal/errors"
	"github.com/mcncl/convertkit/internal/models"
)

// TableKey marks the source table on every parsed row.
const TableKey = "_table"

type tokenKind int

const (
	tokWord tokenKind = iota
	tokIdent
	tokString
	tokNumber
	tokPunct
)

type token struct {
	kind tokenKind
	text string
	pos  int
}

func (t token) is(kind tokenKind, text string) bool {
	if t.kind != kind {
		return false
	}
	if kind == tokWord {
		return strings.EqualFold(t.text, text)
	}
	return t.text == text
}

// lex splits text into tokens, dropping whitespace and comments.
func lex(text string) ([]token, error) {
	var toks []token
	for i := 0; i < len(text); {
		c := text[i]
		switch {
		case c == ' ' || c == '\t' || c == '\n' || c == '\r':
			i++
		case c == '#' || strings.HasPrefix(text[i:], "--"):
			for i < len(text) && text[i] != '\n' {
				i++
			}
		case strings.HasPrefix(text[i:], "/*"):
			end := strings.Index(text[i+2:], "*/")
			if end < 0 {
				return nil, fmt.Errorf("unterminated comment at offset %d", i)
			}
			i += end + 4
		case c == '\'' || ((c == 'N' || c == 'n') && i+1 < len(text) && text[i+1] == '\''):
			start := i
			if c != '\'' {
				i++
			}
			s, n, err := readString(text[i:])
			if err != nil {
				return nil, fmt.Errorf("%v at offset %d", err, start)
			}
			toks = append(toks, token{kind: tokString, text: s, pos: start})
			i += n
		case c == '"' || c == '`' || c == '[':
			closer := c
			if c == '[' {
				closer = ']'
			}
			s, n, err := readQuotedIdent(text[i:], closer)
			if err != nil {
				return nil, fmt.Errorf("%v at offset %d", err, i)
			}
			toks = append(toks, token{kind: tokIdent, text: s, pos: i})
			i += n
		case isDigit(c) || (c == '.' && i+1 < len(text) && isDigit(text[i+1])):
			start := i
			for i < len(text) && (isDigit(text[i]) || text[i] == '.') {
				i++
			}
			if i < len(text) && (text[i] == 'e' || text[i] == 'E') {
				j := i + 1
				if j < len(text) && (text[j] == '+' || text[j] == '-') {
					j++
				}
				if j < len(text) && isDigit(text[j]) {
					for i = j; i < len(text) && isDigit(text[i]); i++ {
					}
				}
			}
			toks = append(toks, token{kind: tokNumber, text: text[start:i], pos: start})
		case isWordStart(c):
			start := i
			for i < len(text) && isWordPart(text[i]) {
				i++
			}
			toks = append(toks, token{kind: tokWord, text: text[start:i], pos: start})
		default:
			toks = append(toks, token{kind: tokPunct, text: string(c), pos: i})
			i++
		}
	}
	return toks, nil
}

// readString reads a single quoted literal. Both '' and backslash escapes
// are accepted.
func readString(s string) (string, int, error) {
	var b strings.Builder
	for i := 1; i < len(s); i++ {
		c := s[i]
		switch {
		case c == '\'' && i+1 < len(s) && s[i+1] == '\'':
			b.WriteByte('\'')
			i++
		case c == '\'':
			return b.String(), i + 1, nil
		case c == '\\' && i+1 < len(s):
			i++
			switch s[i] {
			case 'n':
				b.WriteByte('\n')
			case 'r':
				b.WriteByte('\r')
			case 't':
				b.WriteByte('\t')
			case '0':
				b.WriteByte(0)
			default:
				b.WriteByte(s[i])
			}
		default:
			b.WriteByte(c)
		}
	}
	return "", 0, fmt.Errorf("unterminated string literal")
}

func readQuotedIdent(s string, closer byte) (string, int, error) {
	var b strings.Builder
	for i := 1; i < len(s); i++ {
		if s[i] != closer {
			b.WriteByte(s[i])
			continue
		}
		if closer != ']' && i+1 < len(s) && s[i+1] == closer {
			b.WriteByte(closer)
			i++
			continue
		}
		return b.String(), i + 1, nil
	}
	return "", 0, fmt.Errorf("unterminated quoted identifier")
}

func isDigit(c byte) bool { return c >= '0' && c <= '9' }

func isWordStart(c byte) bool {
	return c == '_' || (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z') || c >= 0x80
}

func isWordPart(c byte) bool { return isWordStart(c) || isDigit(c) || c == '$' }

type parser struct {
	toks []token
	pos  int
}

func (p *parser) peek() (token, bool) {
	if p.pos >= len(p.toks) {
		return token{}, false
	}
	return p.toks[p.pos], true
}

func (p *parser) accept(kind tokenKind, text string) bool {
	if t, ok := p.peek(); ok && t.is(kind, text) {
		p.pos++
		return true
	}
	return false
}

func (p *parser) expect(kind tokenKind, text string) error {
	if p.accept(kind, text) {
		return nil
	}
	if t, ok := p.peek(); ok {
		return fmt.Errorf("expected %s at offset %d, found %q", text, t.pos, t.text)
	}
	return fmt.Errorf("expected %s, found end of input", text)
}

// Parse extracts the rows of every INSERT INTO ... VALUES statement. Other
// statements, including INSERT ... SELECT, are skipped. Rows without a
// column list name their columns column_N.
func Parse(text string) (models.Value, error) {
	toks, err := lex(text)
	if err != nil {
		return models.Value{}, errors.NewSyntaxError("SQL parsing failed", err)
	}

	p := &parser{toks: toks}
	var rows []models.Value
	for p.pos < len(p.toks) {
		if !p.toks[p.pos].is(tokWord, "INSERT") || !p.at(1, tokWord, "INTO") {
			p.pos++
			continue
		}
		p.pos += 2
		inserted, ok, err := p.insert()
		if err != nil {
			return models.Value{}, errors.NewSyntaxError("SQL parsing failed", err)
		}
		if !ok {
			p.skipStatement()
			continue
		}
		rows = append(rows, inserted...)
	}

	if len(rows) == 0 {
		return models.Value{}, errors.NewSyntaxError("no INSERT INTO ... VALUES statements found", errors.ErrNoStatements)
	}
	return models.Array(rows...), nil
}

// at reports whether the token offset positions ahead matches.
func (p *parser) at(offset int, kind tokenKind, text string) bool {
	i := p.pos + offset
	return i < len(p.toks) && p.toks[i].is(kind, text)
}

// skipStatement moves past the next semicolon, or to the end of input.
func (p *parser) skipStatement() {
	for p.pos < len(p.toks) {
		t := p.toks[p.pos]
		p.pos++
		if t.is(tokPunct, ";") {
			return
		}
	}
}

// insert reads the statement after INSERT INTO. It reports false without an
// error when the statement has no VALUES list, such as INSERT ... SELECT.
func (p *parser) insert() ([]models.Value, bool, error) {
	start := p.pos
	table, err := p.name()
	if err != nil {
		return nil, false, err
	}

	var columns []string
	if p.accept(tokPunct, "(") {
		for {
			col, err := p.name()
			if err != nil {
				p.pos = start
				return nil, false, nil
			}
			columns = append(columns, col)
			if p.accept(tokPunct, ")") {
				break
			}
			if !p.accept(tokPunct, ",") {
				p.pos = start
				return nil, false, nil
			}
		}
	}

	if !p.accept(tokWord, "VALUES") {
		return nil, false, nil
	}

	var rows []models.Value
	for {
		values, err := p.tuple()
		if err != nil {
			return nil, false, err
		}
		rows = append(rows, row(table, columns, values))
		if !p.accept(tokPunct, ",") {
			break
		}
	}
	p.accept(tokPunct, ";")
	return rows, true, nil
}

// name reads a possibly qualified identifier such as schema.table.
func (p *parser) name() (string, error) {
	var parts []string
	for {
		t, ok := p.peek()
		if !ok || (t.kind != tokWord && t.kind != tokIdent) {
			if ok {
				return "", fmt.Errorf("expected a name at offset %d, found %q", t.pos, t.text)
			}
			return "", fmt.Errorf("expected a name, found end of input")
		}
		p.pos++
		parts = append(parts, t.text)
		if !p.accept(tokPunct, ".") {
			return strings.Join(parts, "."), nil
		}
	}
}

func (p *parser) tuple() ([]models.Value, error) {
	if err := p.expect(tokPunct, "("); err != nil {
		return nil, err
	}
	var values []models.Value
	for {
		v, err := p.value()
		if err != nil {
			return nil, err
		}
		values = append(values, v)
		if p.accept(tokPunct, ")") {
			return values, nil
		}
		if err := p.expect(tokPunct, ","); err != nil {
			return nil, err
		}
	}
}

func (p *parser) value() (models.Value, error) {
	t, ok := p.peek()
	if !ok {
		return models.Value{}, fmt.Errorf("expected a value, found end of input")
	}
	p.pos++

	switch t.kind {
	case tokString:
		return models.String(t.text), nil
	case tokNumber:
		return number(t.text), nil
	case tokPunct:
		if t.text == "-" || t.text == "+" {
			if next, ok := p.peek(); ok && next.kind == tokNumber {
				p.pos++
				if t.text == "-" {
					return number("-" + next.text), nil
				}
				return number(next.text), nil
			}
		}
		return models.Value{}, fmt.Errorf("unexpected %q at offset %d", t.text, t.pos)
	case tokWord:
		if next, ok := p.peek(); ok && next.is(tokPunct, "(") {
			return models.String(t.text + p.call()), nil
		}
		return models.CoerceScalar(t.text, models.SQLRules), nil
	}
	return models.String(t.text), nil
}

// call consumes a parenthesised argument list such as NOW() and returns
// its text.
func (p *parser) call() string {
	var b strings.Builder
	depth := 0
	for p.pos < len(p.toks) {
		t := p.toks[p.pos]
		p.pos++
		switch {
		case t.is(tokPunct, "("):
			depth++
		case t.is(tokPunct, ")"):
			depth--
		}
		if t.kind == tokString {
			b.WriteString("'" + strings.ReplaceAll(t.text, "'", "''") + "'")
		} else {
			if t.kind != tokPunct && b.Len() > 0 && !strings.HasSuffix(b.String(), "(") {
				b.WriteByte(' ')
			}
			b.WriteString(t.text)
		}
		if depth == 0 {
			break
		}
	}
	return b.String()
}

// number accepts the looser SQL numeric forms such as .5 and 007.
func number(text string) models.Value {
	n, err := strconv.ParseFloat(text, 64)
	if err != nil || math.IsInf(n, 0) {
		return models.String(text)
	}
	return models.Number(n)
}

func row(table string, columns []string, values []models.Value) models.Value {
	obj := models.NewObject()
	for i, v := range values {
		name := fmt.Sprintf("column_%d", i+1)
		if i < len(columns) {
			name = columns[i]
		}
		obj.Set(name, v)
	}
	obj.Set(TableKey, models.String(table))
	return models.ObjectValue(obj)
}
