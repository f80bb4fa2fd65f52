package query

import (
	"errors"
	"fmt"
	"regexp"
	"sort"
	"strconv"
	"strings"
	"unicode"

	"github.com/kailas-cloud/mongomap/internal/mapping"
)

// ErrInvalidMethod signals a method name that cannot be derived into a query.
var ErrInvalidMethod = errors.New("query: invalid method name")

// Subject is what a derived query does with the matching documents.
type Subject int

// Subjects.
const (
	SubjectFind Subject = iota
	SubjectCount
	SubjectExists
	SubjectDelete
)

func (s Subject) String() string {
	switch s {
	case SubjectCount:
		return "count"
	case SubjectExists:
		return "exists"
	case SubjectDelete:
		return "delete"
	default:
		return "find"
	}
}

// PartType is the comparison keyword of a predicate part.
type PartType int

// Part types.
const (
	Simple PartType = iota
	Negating
	LessThan
	LessThanEqual
	GreaterThan
	GreaterThanEqual
	Before
	After
	Between
	In
	NotIn
	Like
	NotLike
	StartingWith
	EndingWith
	Containing
	NotContaining
	IsNull
	IsNotNull
	True
	False
	Exists
	Regex
	Near
)

type keyword struct {
	typ  PartType
	args int
	word string
}

// keywords lists every suffix, longest first so that e.g. LessThanEqual wins over LessThan.
var keywords = func() []keyword {
	spec := []struct {
		typ   PartType
		args  int
		words []string
	}{
		{IsNotNull, 0, []string{"IsNotNull", "NotNull"}},
		{IsNull, 0, []string{"IsNull", "Null"}},
		{LessThanEqual, 1, []string{"IsLessThanEqual", "LessThanEqual"}},
		{LessThan, 1, []string{"IsLessThan", "LessThan"}},
		{GreaterThanEqual, 1, []string{"IsGreaterThanEqual", "GreaterThanEqual"}},
		{GreaterThan, 1, []string{"IsGreaterThan", "GreaterThan"}},
		{Before, 1, []string{"IsBefore", "Before"}},
		{After, 1, []string{"IsAfter", "After"}},
		{Between, 2, []string{"IsBetween", "Between"}},
		{NotIn, 1, []string{"IsNotIn", "NotIn"}},
		{In, 1, []string{"IsIn", "In"}},
		{NotLike, 1, []string{"IsNotLike", "NotLike"}},
		{Like, 1, []string{"IsLike", "Like"}},
		{StartingWith, 1, []string{"IsStartingWith", "StartingWith", "StartsWith"}},
		{EndingWith, 1, []string{"IsEndingWith", "EndingWith", "EndsWith"}},
		{NotContaining, 1, []string{"IsNotContaining", "NotContaining", "NotContains"}},
		{Containing, 1, []string{"IsContaining", "Containing", "Contains"}},
		{True, 0, []string{"IsTrue", "True"}},
		{False, 0, []string{"IsFalse", "False"}},
		{Exists, 1, []string{"Exists"}},
		{Regex, 1, []string{"MatchesRegex", "Matches", "Regex"}},
		{Near, 1, []string{"IsNear", "Near"}},
		{Negating, 1, []string{"IsNot", "Not"}},
		{Simple, 1, []string{"Is", "Equals"}},
	}
	var out []keyword
	for _, s := range spec {
		for _, w := range s.words {
			out = append(out, keyword{typ: s.typ, args: s.args, word: w})
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return len(out[i].word) > len(out[j].word) })
	return out
}()

// Part is one predicate of a derived query.
type Part struct {
	// Property is the source segment of the method name, Path the resolved document path.
	Property   string
	Path       string
	Type       PartType
	Args       int
	IgnoreCase bool

	prop *mapping.Property
}

// PartTree is the parsed form of a repository method name.
type PartTree struct {
	Method   string
	Subject  Subject
	Distinct bool
	// Limit is set by First/Top, zero when unlimited.
	Limit int64
	// Ors holds OR-ed groups of AND-ed parts.
	Ors  [][]Part
	Sort []Order
}

var (
	prefixPattern = regexp.MustCompile(`^(find|read|get|query|search|stream|count|exists|delete|remove)((?:\p{Lu}.*?)?)By`)
	allPattern    = regexp.MustCompile(`^(find|read|get|query|search|stream|count|exists|delete|remove)(\p{Lu}\w*)?$`)
	limitPattern  = regexp.MustCompile(`(First|Top)(\d*)`)
)

// ParsePartTree parses method against the properties of e.
func ParsePartTree(method string, e *mapping.Entity) (*PartTree, error) {
	t := &PartTree{Method: method}

	var predicate string
	hasBy := false
	if m := prefixPattern.FindStringSubmatch(method); m != nil {
		subject, rest := m[2], method[len(m[0]):]
		hasBy = true
		// findAllOrderByX has no criteria, only an order clause
		if strings.HasSuffix(subject, "Order") {
			subject, rest, hasBy = strings.TrimSuffix(subject, "Order"), "OrderBy"+rest, false
		}
		t.setSubject(m[1], subject)
		predicate = rest
	} else if am := allPattern.FindStringSubmatch(method); am != nil {
		t.setSubject(am[1], am[2])
	} else {
		return nil, fmt.Errorf("%w: %q does not start with a query prefix", ErrInvalidMethod, method)
	}

	if i := strings.Index(predicate, "OrderBy"); i >= 0 {
		orders, err := parseOrder(predicate[i+len("OrderBy"):], e)
		if err != nil {
			return nil, fmt.Errorf("%w: %s: %w", ErrInvalidMethod, method, err)
		}
		t.Sort = orders
		predicate = predicate[:i]
	}

	allIgnoreCase := false
	for _, suffix := range []string{"AllIgnoringCase", "AllIgnoreCase"} {
		if strings.HasSuffix(predicate, suffix) {
			allIgnoreCase = true
			predicate = strings.TrimSuffix(predicate, suffix)
			break
		}
	}

	if predicate == "" {
		if hasBy {
			return nil, fmt.Errorf("%w: %q has no criteria after By", ErrInvalidMethod, method)
		}
		return t, nil
	}

	for _, orPart := range splitKeyword(predicate, "Or") {
		var group []Part
		for _, raw := range splitKeyword(orPart, "And") {
			p, err := parsePart(raw, e, allIgnoreCase)
			if err != nil {
				return nil, fmt.Errorf("%w: %s: %w", ErrInvalidMethod, method, err)
			}
			group = append(group, p)
		}
		t.Ors = append(t.Ors, group)
	}
	return t, nil
}

func (t *PartTree) setSubject(prefix, subject string) {
	switch prefix {
	case "count":
		t.Subject = SubjectCount
	case "exists":
		t.Subject = SubjectExists
		t.Limit = 1
	case "delete", "remove":
		t.Subject = SubjectDelete
	default:
		t.Subject = SubjectFind
	}
	if strings.Contains(subject, "Distinct") {
		t.Distinct = true
	}
	if lm := limitPattern.FindStringSubmatch(subject); lm != nil {
		t.Limit = 1
		if lm[2] != "" {
			n, _ := strconv.ParseInt(lm[2], 10, 64)
			if n > 0 {
				t.Limit = n
			}
		}
	}
}

// ArgCount returns the number of arguments the derived query expects.
func (t *PartTree) ArgCount() int {
	n := 0
	for _, g := range t.Ors {
		for _, p := range g {
			n += p.Args
		}
	}
	return n
}

// splitKeyword splits s at kw when kw is followed by an upper case letter and preceded by something.
func splitKeyword(s, kw string) []string {
	var out []string
	start := 0
	for i := 1; i+len(kw) < len(s); i++ {
		if !strings.HasPrefix(s[i:], kw) {
			continue
		}
		next := rune(s[i+len(kw)])
		if !unicode.IsUpper(next) || !unicode.IsLower(rune(s[i-1])) && !unicode.IsDigit(rune(s[i-1])) {
			continue
		}
		out = append(out, s[start:i])
		start = i + len(kw)
		i = start
	}
	return append(out, s[start:])
}

func parsePart(raw string, e *mapping.Entity, allIgnoreCase bool) (Part, error) {
	p := Part{Type: Simple, Args: 1, IgnoreCase: allIgnoreCase}
	for _, suffix := range []string{"IgnoringCase", "IgnoreCase"} {
		if strings.HasSuffix(raw, suffix) {
			p.IgnoreCase = true
			raw = strings.TrimSuffix(raw, suffix)
			break
		}
	}

	for _, kw := range keywords {
		if len(raw) <= len(kw.word) || !strings.HasSuffix(raw, kw.word) {
			continue
		}
		candidate := strings.TrimSuffix(raw, kw.word)
		path, prop, err := resolvePath(e, candidate)
		if err != nil {
			continue
		}
		p.Property, p.Path, p.Type, p.Args, p.prop = candidate, path, kw.typ, kw.args, prop
		return p, nil
	}

	path, prop, err := resolvePath(e, raw)
	if err != nil {
		return Part{}, err
	}
	p.Property, p.Path, p.prop = raw, path, prop
	return p, nil
}

// resolvePath maps a camel case property expression to a document path. Nested properties are
// concatenated (AddressCity) or separated explicitly with '_' (Address_City).
func resolvePath(e *mapping.Entity, source string) (string, *mapping.Property, error) {
	if source == "" {
		return "", nil, errors.New("empty property")
	}
	if head, tail, ok := strings.Cut(source, "_"); ok && head != "" {
		p, found := propertyByName(e, head)
		if !found {
			return "", nil, fmt.Errorf("no property %s on %s", head, e.Name)
		}
		if !p.IsEntity() {
			return "", nil, fmt.Errorf("property %s on %s has no nested properties", head, e.Name)
		}
		rest, leaf, err := resolvePath(p.Entity(), tail)
		if err != nil {
			return "", nil, err
		}
		return p.FieldName + "." + rest, leaf, nil
	}

	if p, ok := propertyByName(e, source); ok {
		return p.FieldName, p, nil
	}
	runes := []rune(source)
	for i := len(runes) - 1; i > 0; i-- {
		if !unicode.IsUpper(runes[i]) {
			continue
		}
		p, ok := propertyByName(e, string(runes[:i]))
		if !ok || !p.IsEntity() {
			continue
		}
		if rest, leaf, err := resolvePath(p.Entity(), string(runes[i:])); err == nil {
			return p.FieldName + "." + rest, leaf, nil
		}
	}
	return "", nil, fmt.Errorf("no property %s on %s", source, e.Name)
}

func propertyByName(e *mapping.Entity, name string) (*mapping.Property, bool) {
	if p, ok := e.PropertyByName(name); ok {
		return p, true
	}
	for _, p := range e.Properties {
		if strings.EqualFold(p.Name, name) {
			return p, true
		}
	}
	return nil, false
}

func parseOrder(clause string, e *mapping.Entity) ([]Order, error) {
	if clause == "" {
		return nil, errors.New("empty OrderBy clause")
	}
	var orders []Order
	rest := clause
	for rest != "" {
		end, dir, next := nextOrder(rest)
		path, _, err := resolvePath(e, rest[:end])
		if err != nil {
			return nil, err
		}
		orders = append(orders, Order{Path: path, Direction: dir})
		rest = next
	}
	return orders, nil
}

// nextOrder finds the first Asc/Desc terminator in s followed by the end or an upper case letter.
// Without a terminator the whole remainder is one ascending property.
func nextOrder(s string) (end int, dir Direction, rest string) {
	for i := 1; i < len(s); i++ {
		for _, kw := range []struct {
			word string
			dir  Direction
		}{{"Desc", Desc}, {"Asc", Asc}} {
			if !strings.HasPrefix(s[i:], kw.word) {
				continue
			}
			after := i + len(kw.word)
			if after == len(s) || unicode.IsUpper(rune(s[after])) {
				return i, kw.dir, s[after:]
			}
		}
	}
	return len(s), Asc, ""
}
