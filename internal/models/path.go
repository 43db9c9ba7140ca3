package models

import (
	"fmt"
	"log/slog"
	"strconv"
	"strings"
)

// IndexStyle selects how array positions appear in a flattened path.
type IndexStyle int

const (
	// IndexBrackets renders items[0].name.
	IndexBrackets IndexStyle = iota
	// IndexDotted renders items.0.name, the Java properties convention.
	IndexDotted
)

// PathValue is one leaf of a flattened tree. Empty arrays and objects are
// leaves too so that callers can decide how to render them.
type PathValue struct {
	Path  string
	Value Value
}

// Flatten walks v depth first and returns its leaves in document order.
func Flatten(v Value, style IndexStyle) []PathValue {
	var out []PathValue
	flattenPath(&out, "", v, style)
	return out
}

func flattenPath(out *[]PathValue, prefix string, v Value, style IndexStyle) {
	switch v.Kind() {
	case KindObject:
		if v.Object().Len() == 0 {
			*out = append(*out, PathValue{Path: prefix, Value: v})
			return
		}
		v.Object().Range(func(key string, child Value) bool {
			flattenPath(out, joinKey(prefix, key), child, style)
			return true
		})
	case KindArray:
		if len(v.Items()) == 0 {
			*out = append(*out, PathValue{Path: prefix, Value: v})
			return
		}
		for i, item := range v.Items() {
			flattenPath(out, joinIndex(prefix, i, style), item, style)
		}
	default:
		*out = append(*out, PathValue{Path: prefix, Value: v})
	}
}

func joinKey(prefix, key string) string {
	if prefix == "" {
		return key
	}
	return prefix + "." + key
}

func joinIndex(prefix string, i int, style IndexStyle) string {
	if style == IndexDotted {
		return joinKey(prefix, strconv.Itoa(i))
	}
	return fmt.Sprintf("%s[%d]", prefix, i)
}

type segment struct {
	key     string
	index   int
	isIndex bool
}

func parsePath(path string) ([]segment, error) {
	var segs []segment
	var key strings.Builder
	flush := func() {
		if key.Len() > 0 {
			segs = append(segs, segment{key: key.String()})
			key.Reset()
		}
	}
	for i := 0; i < len(path); i++ {
		switch c := path[i]; c {
		case '.':
			flush()
		case '[':
			flush()
			end := strings.IndexByte(path[i:], ']')
			if end < 0 {
				return nil, fmt.Errorf("unterminated index in path %q", path)
			}
			idx, err := strconv.Atoi(path[i+1 : i+end])
			if err != nil || idx < 0 {
				return nil, fmt.Errorf("invalid index %q in path %q", path[i+1:i+end], path)
			}
			segs = append(segs, segment{index: idx, isIndex: true})
			i += end
		default:
			key.WriteByte(c)
		}
	}
	flush()
	if len(segs) == 0 {
		return nil, fmt.Errorf("empty path")
	}
	return segs, nil
}

// Get returns the value at a bracket-style path such as users[0].name.
func Get(v Value, path string) (Value, bool) {
	segs, err := parsePath(path)
	if err != nil {
		return Value{}, false
	}
	cur := v
	for _, seg := range segs {
		if seg.isIndex {
			if cur.Kind() != KindArray || seg.index >= len(cur.Items()) {
				return Value{}, false
			}
			cur = cur.Items()[seg.index]
			continue
		}
		if cur.Kind() != KindObject {
			return Value{}, false
		}
		next, ok := cur.Object().Get(seg.key)
		if !ok {
			return Value{}, false
		}
		cur = next
	}
	return cur, true
}

// Replace returns a copy of root with the value at path replaced by repl.
// The final key may be new; intermediate segments must exist. The input tree
// is not modified. A nil logger disables the debug trace.
func Replace(root Value, path string, repl Value, logger *slog.Logger) (Value, error) {
	segs, err := parsePath(path)
	if err != nil {
		return Value{}, err
	}
	out, old, err := replaceAt(root, segs, repl, path)
	if err != nil {
		return Value{}, err
	}
	if logger != nil {
		logger.Debug("replaced value",
			"path", path,
			"old_kind", old.Kind().String(),
			"new_kind", repl.Kind().String())
	}
	return out, nil
}

func replaceAt(cur Value, segs []segment, repl Value, path string) (Value, Value, error) {
	if len(segs) == 0 {
		return repl, cur, nil
	}
	seg, rest := segs[0], segs[1:]

	if seg.isIndex {
		if cur.Kind() != KindArray {
			return Value{}, Value{}, fmt.Errorf("path %q: expected array, found %s", path, cur.Kind())
		}
		items := cur.Items()
		switch {
		case seg.index < len(items):
		case seg.index == len(items) && len(rest) == 0:
		default:
			return Value{}, Value{}, fmt.Errorf("path %q: index %d out of range", path, seg.index)
		}
		copied := make([]Value, len(items), len(items)+1)
		copy(copied, items)
		var child Value
		if seg.index < len(items) {
			child = items[seg.index]
		}
		updated, old, err := replaceAt(child, rest, repl, path)
		if err != nil {
			return Value{}, Value{}, err
		}
		if seg.index == len(copied) {
			copied = append(copied, updated)
		} else {
			copied[seg.index] = updated
		}
		return Array(copied...), old, nil
	}

	if cur.Kind() != KindObject {
		return Value{}, Value{}, fmt.Errorf("path %q: expected object, found %s", path, cur.Kind())
	}
	child, ok := cur.Object().Get(seg.key)
	if !ok && len(rest) > 0 {
		return Value{}, Value{}, fmt.Errorf("path %q: key %q not found", path, seg.key)
	}
	updated, old, err := replaceAt(child, rest, repl, path)
	if err != nil {
		return Value{}, Value{}, err
	}
	clone := cur.Object().Clone()
	clone.Set(seg.key, updated)
	return ObjectValue(clone), old, nil
}
