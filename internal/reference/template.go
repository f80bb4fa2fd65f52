// Package reference resolves document references: lookup templates stored on properties,
// the queries built from them, DBRef bulk fetches and lazily loaded holders.
package reference

import (
	"errors"
	"fmt"
	"regexp"
	"strings"

	"go.mongodb.org/mongo-driver/v2/bson"

	"github.com/kailas-cloud/mongomap/internal/bsonutil"
)

// Reference errors.
var (
	ErrInvalidTemplate = errors.New("reference: invalid lookup template")
	ErrInvalidSource   = errors.New("reference: source value does not fit the lookup template")
	ErrMissingTarget   = errors.New("reference: target document lacks a lookup field")
	ErrNotBound        = errors.New("reference: lazy reference is not bound")
)

const (
	targetExpr   = "#target"
	markerPrefix = "__mongomap_ref_"
)

var placeholderPattern = regexp.MustCompile(`\?#\{\s*([^}]*?)\s*\}`)

// DefaultLookup matches the target by its id.
const DefaultLookup = "{ '_id' : ?#{#target} }"

type slot struct {
	path string // dot path of the placeholder inside the template
	expr string
}

// Template is a parsed lookup document with `?#{expr}` placeholders. `#target` stands for the
// stored reference value, `name` (or `#target.name`) for a field of a stored document.
type Template struct {
	raw     string
	doc     bson.D
	markers map[string]string
	slots   []slot
}

// ParseTemplate parses a relaxed JSON lookup document.
func ParseTemplate(s string) (Template, error) {
	t := Template{raw: s, markers: make(map[string]string)}
	n := 0
	replaced := placeholderPattern.ReplaceAllStringFunc(s, func(m string) string {
		expr := placeholderPattern.FindStringSubmatch(m)[1]
		marker := fmt.Sprintf("%s%d__", markerPrefix, n)
		n++
		t.markers[marker] = expr
		return `"` + marker + `"`
	})
	if n == 0 {
		return Template{}, fmt.Errorf("%w: %q has no placeholder", ErrInvalidTemplate, s)
	}

	doc, err := bsonutil.ParseRelaxed(replaced)
	if err != nil {
		return Template{}, fmt.Errorf("%w: %w", ErrInvalidTemplate, err)
	}
	t.doc = doc
	t.collect(doc, "")

	if len(t.slots) != n {
		return Template{}, fmt.Errorf("%w: %q uses a placeholder outside a value position", ErrInvalidTemplate, s)
	}
	for _, sl := range t.slots {
		if sl.expr == "" {
			return Template{}, fmt.Errorf("%w: %q has an empty placeholder", ErrInvalidTemplate, s)
		}
		if sl.expr == targetExpr && n > 1 {
			return Template{}, fmt.Errorf("%w: %q mixes #target with field placeholders", ErrInvalidTemplate, s)
		}
	}
	return t, nil
}

// MustParseTemplate is ParseTemplate that panics on error.
func MustParseTemplate(s string) Template {
	t, err := ParseTemplate(s)
	if err != nil {
		panic(err)
	}
	return t
}

func (t *Template) collect(d bson.D, prefix string) {
	for _, e := range d {
		path := e.Key
		if prefix != "" {
			path = prefix + "." + e.Key
		}
		switch v := e.Value.(type) {
		case string:
			if expr, ok := t.markers[v]; ok {
				t.slots = append(t.slots, slot{path: path, expr: expr})
			}
		case bson.D:
			t.collect(v, path)
		}
	}
}

// String returns the template as written.
func (t Template) String() string { return t.raw }

// IsTargetOnly reports whether the stored value is the whole `#target` (a plain id reference).
func (t Template) IsTargetOnly() bool {
	return len(t.slots) == 1 && t.slots[0].expr == targetExpr
}

// TargetPath returns the target field a `#target` template stores.
func (t Template) TargetPath() (string, bool) {
	if !t.IsTargetOnly() {
		return "", false
	}
	return t.slots[0].path, true
}

// Filter evaluates the template against a stored reference value.
func (t Template) Filter(source any) (bson.D, error) {
	out, err := t.substitute(t.doc, source)
	if err != nil {
		return nil, err
	}
	return out.(bson.D), nil
}

func (t Template) substitute(v, source any) (any, error) {
	switch x := v.(type) {
	case bson.D:
		out := make(bson.D, len(x))
		for i, e := range x {
			val, err := t.substitute(e.Value, source)
			if err != nil {
				return nil, err
			}
			out[i] = bson.E{Key: e.Key, Value: val}
		}
		return out, nil
	case bson.A:
		out := make(bson.A, len(x))
		for i, item := range x {
			val, err := t.substitute(item, source)
			if err != nil {
				return nil, err
			}
			out[i] = val
		}
		return out, nil
	case string:
		if expr, ok := t.markers[x]; ok {
			return evaluate(expr, source)
		}
	}
	return v, nil
}

func evaluate(expr string, source any) (any, error) {
	if expr == targetExpr {
		return source, nil
	}
	field := strings.TrimPrefix(expr, targetExpr+".")
	doc, ok := bsonutil.ToD(source)
	if !ok {
		return nil, fmt.Errorf("%w: ?#{%s} needs a document, got %T", ErrInvalidSource, expr, source)
	}
	v, _ := bsonutil.Lookup(doc, field)
	return v, nil
}

// Pointer builds the value stored on the source side for a target document: the target's value
// for a `#target` template, otherwise a document keyed by the placeholder names.
func (t Template) Pointer(target bson.D) (any, error) {
	if t.IsTargetOnly() {
		v, ok := bsonutil.Lookup(target, t.slots[0].path)
		if !ok {
			return nil, fmt.Errorf("%w: %q", ErrMissingTarget, t.slots[0].path)
		}
		return v, nil
	}
	out := make(bson.D, 0, len(t.slots))
	for _, sl := range t.slots {
		v, ok := bsonutil.Lookup(target, sl.path)
		if !ok {
			return nil, fmt.Errorf("%w: %q", ErrMissingTarget, sl.path)
		}
		out = bsonutil.Set(out, strings.TrimPrefix(sl.expr, targetExpr+"."), v)
	}
	return out, nil
}
