package reference

import (
	"fmt"
	"strings"

	"go.mongodb.org/mongo-driver/v2/bson"

	"github.com/kailas-cloud/mongomap/internal/bsonutil"
	"github.com/kailas-cloud/mongomap/internal/mapping"
)

// Ref is the resolved reference configuration of one property.
type Ref struct {
	Kind       mapping.ReferenceKind
	Collection string
	Lookup     Template
	Sort       bson.D
}

// For reads the reference directives of p.
func For(p *mapping.Property) (Ref, error) {
	if !p.IsReference() {
		return Ref{}, fmt.Errorf("%s.%s is not a reference", p.Owner.Name, p.Name)
	}
	r := Ref{Kind: p.Directives.Reference, Collection: p.Entity().Collection}
	if r.Kind == mapping.DBRef {
		return r, nil
	}

	lookup := p.Directives.Lookup
	if lookup == "" {
		lookup = DefaultLookup
	}
	tpl, err := ParseTemplate(lookup)
	if err != nil {
		return Ref{}, fmt.Errorf("%s.%s: %w", p.Owner.Name, p.Name, err)
	}
	r.Lookup = tpl

	if p.Directives.Sort != "" {
		sort, err := bsonutil.ParseRelaxed(p.Directives.Sort)
		if err != nil {
			return Ref{}, fmt.Errorf("%s.%s: sort: %w", p.Owner.Name, p.Name, err)
		}
		r.Sort = sort
	}
	return r, nil
}

// Query is the lookup for one or many stored reference values.
type Query struct {
	Collection string
	Filter     bson.D
	Sort       bson.D
	clauses    []bson.D
}

// Query builds the lookup for sources. Several sources are combined with `$or`.
func (r Ref) Query(sources ...any) (Query, error) {
	q := Query{Collection: r.Collection, Sort: r.Sort}
	for _, s := range sources {
		f, err := r.Lookup.Filter(s)
		if err != nil {
			return Query{}, err
		}
		q.clauses = append(q.clauses, f)
	}
	switch len(q.clauses) {
	case 0:
	case 1:
		q.Filter = q.clauses[0]
	default:
		or := make(bson.A, len(q.clauses))
		for i, c := range q.clauses {
			or[i] = c
		}
		q.Filter = bson.D{{Key: "$or", Value: or}}
	}
	return q, nil
}

// Restore lines docs up with the sources the query was built from: result i is the first
// document matching clause i, or nil. A document matching several clauses appears once per clause.
func (q Query) Restore(docs []bson.Raw) []bson.Raw {
	decoded := make([]bson.D, len(docs))
	for i, raw := range docs {
		if d, ok := bsonutil.ToD(raw); ok {
			decoded[i] = d
		}
	}
	out := make([]bson.Raw, len(q.clauses))
	for i, clause := range q.clauses {
		for j, d := range decoded {
			if d != nil && matches(clause, d) {
				out[i] = docs[j]
				break
			}
		}
	}
	return out
}

// matches checks the equality conditions of clause against doc. Operator conditions are not
// evaluated.
func matches(clause, doc bson.D) bool {
	for _, e := range clause {
		if strings.HasPrefix(e.Key, "$") || isOperatorDoc(e.Value) {
			continue
		}
		v, ok := bsonutil.Lookup(doc, e.Key)
		if !ok {
			if e.Value != nil {
				return false
			}
			continue
		}
		if !bsonutil.Equal(v, e.Value) {
			return false
		}
	}
	return true
}

func isOperatorDoc(v any) bool {
	d, ok := v.(bson.D)
	return ok && len(d) > 0 && strings.HasPrefix(d[0].Key, "$")
}
