// Package xml maps XML documents to values and back.
//
// Parsing walks an etree DOM: attributes are collected under "@attributes",
// text-only leaves become coerced scalars, repeated sibling tags become arrays
// and text mixed with child elements is kept under the text key.
package xml

import (
	"fmt"
	"strings"
	"unicode"

	"github.com/beevik/etree"
	"github.com/iancoleman/strcase"

	"github.com/mcncl/convertkit/internal/errors"
	"github.com/mcncl/convertkit/internal/models"
)

// AttributesKey holds an element's attributes in the parsed value.
const AttributesKey = "@attributes"

// Options controls parsing and generation
type Options struct {
	// RootElement names the document element. Empty picks the single key of
	// a one-key object, or "root".
	RootElement string
	// AttributePrefix marks object keys that generate attributes, e.g. "@id".
	AttributePrefix string
	TextKey         string
	AddDeclaration  bool
	Indentation     int
	// ItemNames overrides the element name used for the items of an array
	// held under the given key. Without an entry the key loses a trailing "s".
	ItemNames map[string]string
}

// DefaultOptions returns the standard attribute/text conventions
func DefaultOptions() Options {
	return Options{
		AttributePrefix: "@",
		TextKey:         "#text",
		AddDeclaration:  true,
		Indentation:     2,
	}
}

var leafRules = models.Rules{
	NullTokens:      []string{"null"},
	CaseInsensitive: true,
	Booleans:        true,
	Numbers:         true,
	TrimSpace:       true,
}

// Parse converts an XML document into {rootTag: value}
func Parse(text string, opts Options) (models.Value, error) {
	if opts.TextKey == "" {
		opts.TextKey = "#text"
	}
	doc := etree.NewDocument()
	if err := doc.ReadFromString(text); err != nil {
		return models.Value{}, errors.NewSyntaxError("XML parsing failed", err)
	}
	root := doc.Root()
	if root == nil {
		return models.Value{}, errors.NewSyntaxError("XML parsing failed", fmt.Errorf("document has no root element"))
	}
	return models.ObjectOf(models.Field(root.FullTag(), elementValue(root, opts))), nil
}

func elementValue(el *etree.Element, opts Options) models.Value {
	children := el.ChildElements()
	text := directText(el)

	if len(el.Attr) == 0 && len(children) == 0 {
		return models.CoerceScalar(text, leafRules)
	}

	obj := models.NewObject()
	if len(el.Attr) > 0 {
		attrs := models.NewObject()
		for _, a := range el.Attr {
			attrs.Set(a.FullKey(), models.CoerceScalar(a.Value, leafRules))
		}
		obj.Set(AttributesKey, models.ObjectValue(attrs))
	}

	var order []string
	groups := make(map[string][]*etree.Element)
	for _, child := range children {
		tag := child.FullTag()
		if _, ok := groups[tag]; !ok {
			order = append(order, tag)
		}
		groups[tag] = append(groups[tag], child)
	}
	for _, tag := range order {
		group := groups[tag]
		if len(group) == 1 {
			obj.Set(tag, elementValue(group[0], opts))
			continue
		}
		items := make([]models.Value, len(group))
		for i, child := range group {
			items[i] = elementValue(child, opts)
		}
		obj.Set(tag, models.Array(items...))
	}

	if text != "" {
		obj.Set(opts.TextKey, models.CoerceScalar(text, leafRules))
	}
	return models.ObjectValue(obj)
}

func directText(el *etree.Element) string {
	var parts []string
	for _, tok := range el.Child {
		if cd, ok := tok.(*etree.CharData); ok {
			if s := strings.TrimSpace(cd.Data); s != "" {
				parts = append(parts, s)
			}
		}
	}
	return strings.Join(parts, " ")
}

// Generate renders v as an XML document
func Generate(v models.Value, opts Options) (string, error) {
	if opts.TextKey == "" {
		opts.TextKey = "#text"
	}
	g := &generator{opts: opts}
	if opts.AddDeclaration {
		g.b.WriteString(`<?xml version="1.0" encoding="UTF-8"?>`)
		g.newline()
	}

	name, body := rootOf(v, opts)
	g.element(name, body, 0)
	return g.b.String(), nil
}

func rootOf(v models.Value, opts Options) (string, models.Value) {
	if opts.RootElement != "" {
		return opts.RootElement, v
	}
	if v.Kind() == models.KindObject && v.Object().Len() == 1 {
		key := v.Object().Keys()[0]
		if !strings.HasPrefix(key, opts.AttributePrefix) || opts.AttributePrefix == "" {
			only, _ := v.Object().Get(key)
			return key, only
		}
	}
	return "root", v
}

type generator struct {
	b    strings.Builder
	opts Options
}

func (g *generator) newline() {
	if g.opts.Indentation > 0 {
		g.b.WriteByte('\n')
	}
}

func (g *generator) indent(depth int) {
	if g.opts.Indentation > 0 {
		g.b.WriteString(strings.Repeat(" ", g.opts.Indentation*depth))
	}
}

func (g *generator) element(name string, v models.Value, depth int) {
	tag := SanitizeTag(name)
	g.indent(depth)

	switch v.Kind() {
	case models.KindNull:
		fmt.Fprintf(&g.b, "<%s/>", tag)
		g.newline()
	case models.KindBool, models.KindNumber, models.KindString:
		fmt.Fprintf(&g.b, "<%s>%s</%s>", tag, Escape(models.ScalarText(v)), tag)
		g.newline()
	case models.KindArray:
		if len(v.Items()) == 0 {
			fmt.Fprintf(&g.b, "<%s/>", tag)
			g.newline()
			return
		}
		fmt.Fprintf(&g.b, "<%s>", tag)
		g.newline()
		item := g.itemName(name)
		for _, child := range v.Items() {
			g.element(item, child, depth+1)
		}
		g.indent(depth)
		fmt.Fprintf(&g.b, "</%s>", tag)
		g.newline()
	case models.KindObject:
		g.object(tag, v.Object(), depth)
	}
}

func (g *generator) object(tag string, obj *models.Object, depth int) {
	var (
		attrs    []string
		text     string
		hasText  bool
		children []models.Pair
	)
	obj.Range(func(key string, val models.Value) bool {
		switch {
		case key == AttributesKey && val.Kind() == models.KindObject:
			val.Object().Range(func(k string, av models.Value) bool {
				attrs = append(attrs, fmt.Sprintf(`%s="%s"`, SanitizeTag(k), Escape(models.ScalarText(av))))
				return true
			})
		case key == g.opts.TextKey:
			text, hasText = models.ScalarText(val), true
		case g.opts.AttributePrefix != "" && strings.HasPrefix(key, g.opts.AttributePrefix) && val.IsScalar():
			name := strings.TrimPrefix(key, g.opts.AttributePrefix)
			attrs = append(attrs, fmt.Sprintf(`%s="%s"`, SanitizeTag(name), Escape(models.ScalarText(val))))
		default:
			children = append(children, models.Field(key, val))
		}
		return true
	})

	open := tag
	if len(attrs) > 0 {
		open = tag + " " + strings.Join(attrs, " ")
	}

	switch {
	case len(children) == 0 && !hasText:
		fmt.Fprintf(&g.b, "<%s/>", open)
		g.newline()
		return
	case len(children) == 0:
		fmt.Fprintf(&g.b, "<%s>%s</%s>", open, Escape(text), tag)
		g.newline()
		return
	}

	fmt.Fprintf(&g.b, "<%s>", open)
	g.newline()
	if hasText && text != "" {
		g.indent(depth + 1)
		g.b.WriteString(Escape(text))
		g.newline()
	}
	for _, child := range children {
		if child.Value.Kind() == models.KindArray {
			// repeated element, one per item
			for _, item := range child.Value.Items() {
				g.element(child.Key, item, depth+1)
			}
			continue
		}
		g.element(child.Key, child.Value, depth+1)
	}
	g.indent(depth)
	fmt.Fprintf(&g.b, "</%s>", tag)
	g.newline()
}

func (g *generator) itemName(parent string) string {
	if name, ok := g.opts.ItemNames[parent]; ok && name != "" {
		return name
	}
	return Singularize(parent)
}

// Singularize strips one trailing "s". It is a rough heuristic ("species"
// becomes "specie"); use Options.ItemNames for exact names. Keys without a
// trailing "s" produce "item".
func Singularize(name string) string {
	if len(name) > 1 && strings.HasSuffix(name, "s") && !strings.HasSuffix(name, "ss") {
		return name[:len(name)-1]
	}
	return "item"
}

// SanitizeTag turns an arbitrary key into a valid element or attribute name.
func SanitizeTag(name string) string {
	if strings.IndexFunc(name, unicode.IsSpace) >= 0 {
		name = strcase.ToSnake(strings.TrimSpace(name))
	}
	var b strings.Builder
	for _, r := range name {
		switch {
		case unicode.IsLetter(r), unicode.IsDigit(r), r == '_', r == '-', r == '.', r == ':':
			b.WriteRune(r)
		default:
			b.WriteByte('_')
		}
	}
	out := b.String()
	if out == "" {
		return "_"
	}
	first := []rune(out)[0]
	if unicode.IsDigit(first) || first == '-' || first == '.' {
		out = "_" + out
	}
	return out
}

var escaper = strings.NewReplacer(
	"&", "&amp;",
	"<", "&lt;",
	">", "&gt;",
	`"`, "&quot;",
	"'", "&apos;",
)

// Escape replaces the five XML special characters with entities
func Escape(s string) string {
	return escaper.Replace(s)
}
