package query

import (
	"fmt"
	"reflect"
	"regexp"
	"slices"

	"go.mongodb.org/mongo-driver/v2/bson"

	"github.com/kailas-cloud/mongomap/internal/convert"
	"github.com/kailas-cloud/mongomap/internal/mapping"
)

// StringMatcher tells how string values of a probe are compared.
type StringMatcher int

// String matchers.
const (
	MatchDefault StringMatcher = iota
	MatchExact
	MatchStarting
	MatchEnding
	MatchContaining
	MatchRegex
)

type matchMode int

const (
	matchAll matchMode = iota
	matchAny
)

// PropertyMatcher overrides matching for one path.
type PropertyMatcher struct {
	StringMatcher StringMatcher
	IgnoreCase    bool
}

// ExampleMatcher configures how a probe turns into a filter. Methods return modified copies.
type ExampleMatcher struct {
	mode         matchMode
	strings      StringMatcher
	ignoreCase   bool
	ignoredPaths []string
	ignoreCaseAt []string
	properties   map[string]PropertyMatcher
	includeNulls bool
}

// MatchingAll requires every probe property to match.
func MatchingAll() ExampleMatcher { return ExampleMatcher{mode: matchAll} }

// MatchingAny requires at least one probe property to match.
func MatchingAny() ExampleMatcher { return ExampleMatcher{mode: matchAny} }

// WithStringMatcher sets the default string matcher.
func (m ExampleMatcher) WithStringMatcher(s StringMatcher) ExampleMatcher {
	m.strings = s
	return m
}

// WithIgnoreCase ignores case for the given paths, or for every path when none is given.
func (m ExampleMatcher) WithIgnoreCase(paths ...string) ExampleMatcher {
	if len(paths) == 0 {
		m.ignoreCase = true
		return m
	}
	m.ignoreCaseAt = slices.Concat(m.ignoreCaseAt, paths)
	return m
}

// WithMatcher overrides matching for path.
func (m ExampleMatcher) WithMatcher(path string, pm PropertyMatcher) ExampleMatcher {
	props := make(map[string]PropertyMatcher, len(m.properties)+1)
	for k, v := range m.properties {
		props[k] = v
	}
	props[path] = pm
	m.properties = props
	return m
}

// WithIgnorePaths leaves paths out of the filter.
func (m ExampleMatcher) WithIgnorePaths(paths ...string) ExampleMatcher {
	m.ignoredPaths = slices.Concat(m.ignoredPaths, paths)
	return m
}

// WithIncludeNullValues renders nil pointers, slices and maps as `path: null` conditions.
func (m ExampleMatcher) WithIncludeNullValues() ExampleMatcher {
	m.includeNulls = true
	return m
}

func (m ExampleMatcher) ignored(path string) bool { return slices.Contains(m.ignoredPaths, path) }

func (m ExampleMatcher) matcherFor(path string) (StringMatcher, bool) {
	if pm, ok := m.properties[path]; ok {
		return pm.StringMatcher, pm.IgnoreCase
	}
	return m.strings, m.ignoreCase || slices.Contains(m.ignoreCaseAt, path)
}

// Example pairs a probe entity with a matcher.
type Example struct {
	Probe   any
	Matcher ExampleMatcher
}

// ExampleOf creates an example matching all set properties exactly.
func ExampleOf(probe any) Example { return Example{Probe: probe, Matcher: MatchingAll()} }

// With replaces the matcher.
func (ex Example) With(m ExampleMatcher) Example {
	ex.Matcher = m
	return ex
}

// Filter renders the example. Zero valued scalars are never part of the filter; embedded values
// are flattened to dot paths.
func (ex Example) Filter(mc *mapping.Context) (bson.D, error) {
	v := reflect.ValueOf(ex.Probe)
	for v.Kind() == reflect.Pointer {
		if v.IsNil() {
			return nil, fmt.Errorf("%w: nil probe", ErrInvalidCriteria)
		}
		v = v.Elem()
	}
	e, err := mc.Entity(v.Type())
	if err != nil {
		return nil, err
	}

	var conds bson.D
	ex.collect(e, v, "", &conds)

	if ex.Matcher.mode == matchAny && len(conds) > 1 {
		clauses := make(bson.A, len(conds))
		for i, c := range conds {
			clauses[i] = bson.D{c}
		}
		return bson.D{{Key: "$or", Value: clauses}}, nil
	}
	if conds == nil {
		conds = bson.D{}
	}
	return conds, nil
}

func (ex Example) collect(e *mapping.Entity, v reflect.Value, prefix string, out *bson.D) {
	for _, p := range e.Properties {
		path := p.FieldName
		if prefix != "" {
			path = prefix + "." + path
		}
		if ex.Matcher.ignored(path) {
			continue
		}
		fv := p.Value(v)
		if !fv.IsValid() {
			continue
		}
		if isNil(fv) {
			if ex.Matcher.includeNulls {
				*out = append(*out, bson.E{Key: path, Value: nil})
			}
			continue
		}
		if fv.IsZero() {
			continue
		}

		switch {
		case p.IsReference():
			ex.reference(p, fv, path, out)
		case p.IsEmbedded() && !p.IsCollection && !p.IsMap && !p.IsLazy:
			for fv.Kind() == reflect.Pointer {
				fv = fv.Elem()
			}
			ex.collect(p.Entity(), fv, path, out)
		case fv.Kind() == reflect.String:
			*out = append(*out, bson.E{Key: path, Value: ex.stringCondition(path, fv.String())})
		default:
			*out = append(*out, bson.E{Key: path, Value: convert.StoredValue(fv.Interface())})
		}
	}
}

// reference matches on the id of a single referenced value.
func (ex Example) reference(p *mapping.Property, fv reflect.Value, path string, out *bson.D) {
	if p.IsCollection || p.IsMap || p.IsLazy {
		return
	}
	target := p.Entity()
	if target.IDProperty == nil {
		return
	}
	for fv.Kind() == reflect.Pointer {
		fv = fv.Elem()
	}
	id := target.IDProperty.Value(fv)
	if !id.IsValid() || id.IsZero() {
		return
	}
	if p.Directives.Reference == mapping.DBRef {
		path += ".$id"
	}
	*out = append(*out, bson.E{Key: path, Value: convert.StoredValue(id.Interface())})
}

func (ex Example) stringCondition(path, s string) any {
	sm, ignoreCase := ex.Matcher.matcherFor(path)
	opts := ""
	if ignoreCase {
		opts = "i"
	}
	var pattern string
	switch sm {
	case MatchStarting:
		pattern = "^" + regexp.QuoteMeta(s)
	case MatchEnding:
		pattern = regexp.QuoteMeta(s) + "$"
	case MatchContaining:
		pattern = regexp.QuoteMeta(s)
	case MatchRegex:
		pattern = s
	default:
		if !ignoreCase {
			return s
		}
		pattern = "^" + regexp.QuoteMeta(s) + "$"
	}
	return bson.Regex{Pattern: pattern, Options: opts}
}

func isNil(v reflect.Value) bool {
	switch v.Kind() {
	case reflect.Pointer, reflect.Slice, reflect.Map, reflect.Interface:
		return v.IsNil()
	}
	return false
}
