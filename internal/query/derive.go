package query

import (
	"fmt"
	"reflect"
	"regexp"
	"strings"

	"go.mongodb.org/mongo-driver/v2/bson"
)

// Query builds the query for args. The argument count must match the parts.
func (t *PartTree) Query(args ...any) (*Query, error) {
	if want := t.ArgCount(); want != len(args) {
		return nil, fmt.Errorf("%w: %s expects %d arguments, got %d", ErrInvalidMethod, t.Method, want, len(args))
	}

	var groups []*Criteria
	next := 0
	for _, group := range t.Ors {
		var parts []*Criteria
		for _, p := range group {
			c, err := p.criteria(args[next : next+p.Args])
			if err != nil {
				return nil, fmt.Errorf("%s: %s: %w", t.Method, p.Property, err)
			}
			next += p.Args
			parts = append(parts, c)
		}
		groups = append(groups, joinAnd(parts))
	}

	q := New()
	switch len(groups) {
	case 0:
	case 1:
		q.AddCriteria(groups[0])
	default:
		q.AddCriteria(Or(groups...))
	}
	q.SortBy(t.Sort...)
	if t.Limit > 0 {
		q.Limit(t.Limit)
	}
	return q, nil
}

// joinAnd links parts into one chain, or into `$and` when a path repeats.
func joinAnd(parts []*Criteria) *Criteria {
	if len(parts) == 1 {
		return parts[0]
	}
	seen := make(map[string]bool, len(parts))
	for _, p := range parts {
		if seen[p.key] {
			return And(parts...)
		}
		seen[p.key] = true
	}
	head := parts[0]
	for _, p := range parts[1:] {
		if head.chain.err == nil {
			head.chain.err = p.chain.err
		}
		p.chain = head.chain
		head.chain.items = append(head.chain.items, p)
	}
	return head
}

//nolint:gocyclo // one case per keyword
func (p Part) criteria(args []any) (*Criteria, error) {
	c := Where(p.Path)
	switch p.Type {
	case Simple:
		if s, ok := args[0].(string); ok && p.IgnoreCase {
			return c.Regex("^"+regexp.QuoteMeta(s)+"$", "i"), nil
		}
		return c.Is(args[0]), nil
	case Negating:
		if s, ok := args[0].(string); ok && p.IgnoreCase {
			return c.Not().Regex("^"+regexp.QuoteMeta(s)+"$", "i"), nil
		}
		return c.Ne(args[0]), nil
	case LessThan, Before:
		return c.Lt(args[0]), nil
	case LessThanEqual:
		return c.Lte(args[0]), nil
	case GreaterThan, After:
		return c.Gt(args[0]), nil
	case GreaterThanEqual:
		return c.Gte(args[0]), nil
	case Between:
		return c.Gt(args[0]).Lt(args[1]), nil
	case In, NotIn:
		values, err := toValues(args[0])
		if err != nil {
			return nil, err
		}
		if p.Type == In {
			return c.In(values...), nil
		}
		return c.Nin(values...), nil
	case Like, NotLike, StartingWith, EndingWith:
		s, ok := args[0].(string)
		if !ok {
			return nil, fmt.Errorf("%w: expected a string, got %T", ErrInvalidCriteria, args[0])
		}
		pattern := likePattern(p.Type, s)
		if p.Type == NotLike {
			c.Not()
		}
		return c.Regex(pattern, p.options()), nil
	case Containing, NotContaining:
		return p.containing(c, args[0])
	case IsNull:
		return c.Is(nil), nil
	case IsNotNull:
		return c.Ne(nil), nil
	case True:
		return c.Is(true), nil
	case False:
		return c.Is(false), nil
	case Exists:
		b, ok := args[0].(bool)
		if !ok {
			return nil, fmt.Errorf("%w: Exists expects a bool, got %T", ErrInvalidCriteria, args[0])
		}
		return c.Exists(b), nil
	case Regex:
		switch r := args[0].(type) {
		case string:
			return c.Regex(r, p.options()), nil
		case bson.Regex:
			return c.Regex(r.Pattern, r.Options), nil
		case *regexp.Regexp:
			return c.Regex(r.String(), p.options()), nil
		}
		return nil, fmt.Errorf("%w: Regex expects a pattern, got %T", ErrInvalidCriteria, args[0])
	case Near:
		pt, err := toPoint(args[0])
		if err != nil {
			return nil, err
		}
		return c.Near(pt), nil
	}
	return nil, fmt.Errorf("%w: unsupported keyword %d", ErrInvalidCriteria, p.Type)
}

func (p Part) options() string {
	if p.IgnoreCase {
		return "i"
	}
	return ""
}

// containing is an element match on collections and a substring match on strings.
func (p Part) containing(c *Criteria, arg any) (*Criteria, error) {
	negate := p.Type == NotContaining
	if p.prop != nil && p.prop.IsCollection {
		if negate {
			return c.Nin(arg), nil
		}
		return c.In(arg), nil
	}
	s, ok := arg.(string)
	if !ok {
		return nil, fmt.Errorf("%w: expected a string, got %T", ErrInvalidCriteria, arg)
	}
	if negate {
		c.Not()
	}
	return c.Regex(regexp.QuoteMeta(s), p.options()), nil
}

// likePattern turns a Like value into a regex. '*' is a wildcard; without wildcards Like matches
// anywhere in the value.
func likePattern(t PartType, s string) string {
	switch t {
	case StartingWith:
		return "^" + regexp.QuoteMeta(s)
	case EndingWith:
		return regexp.QuoteMeta(s) + "$"
	}
	if !strings.Contains(s, "*") {
		return regexp.QuoteMeta(s)
	}
	segments := strings.Split(s, "*")
	for i, seg := range segments {
		segments[i] = regexp.QuoteMeta(seg)
	}
	pattern := strings.Join(segments, ".*")
	if !strings.HasPrefix(s, "*") {
		pattern = "^" + pattern
	}
	if !strings.HasSuffix(s, "*") {
		pattern += "$"
	}
	return pattern
}

func toValues(v any) ([]any, error) {
	rv := reflect.ValueOf(v)
	if !rv.IsValid() || (rv.Kind() != reflect.Slice && rv.Kind() != reflect.Array) {
		return nil, fmt.Errorf("%w: expected a slice, got %T", ErrInvalidCriteria, v)
	}
	out := make([]any, rv.Len())
	for i := range out {
		out[i] = rv.Index(i).Interface()
	}
	return out, nil
}

func toPoint(v any) (Point, error) {
	switch p := v.(type) {
	case Point:
		return p, nil
	case []float64:
		if len(p) == 2 {
			return Point{X: p[0], Y: p[1]}, nil
		}
	case [2]float64:
		return Point{X: p[0], Y: p[1]}, nil
	}
	return Point{}, fmt.Errorf("%w: Near expects a point, got %v", ErrInvalidCriteria, v)
}
