package query

import (
	"fmt"

	"go.mongodb.org/mongo-driver/v2/bson"

	"github.com/kailas-cloud/mongomap/internal/db"
)

// Direction is a sort direction.
type Direction int

// Sort directions.
const (
	Asc  Direction = 1
	Desc Direction = -1
)

// Order sorts by one document path.
type Order struct {
	Path      string
	Direction Direction
}

// Query combines a filter with sort, paging and projection.
type Query struct {
	filter     bson.D
	criteria   []*Criteria
	sort       []Order
	skip       int64
	limit      int64
	projection bson.D
	collation  bson.D
}

// New creates a query from criteria chains.
func New(criteria ...*Criteria) *Query {
	return &Query{criteria: criteria}
}

// FromFilter creates a query from a ready filter document.
func FromFilter(filter bson.D) *Query {
	return &Query{filter: filter}
}

// AddCriteria adds another chain. Its keys must not repeat keys already present.
func (q *Query) AddCriteria(c *Criteria) *Query {
	q.criteria = append(q.criteria, c)
	return q
}

// SortBy appends sort orders.
func (q *Query) SortBy(orders ...Order) *Query {
	q.sort = append(q.sort, orders...)
	return q
}

// Skip sets the number of documents to skip.
func (q *Query) Skip(n int64) *Query {
	q.skip = n
	return q
}

// Limit sets the maximum number of documents. Zero means unlimited.
func (q *Query) Limit(n int64) *Query {
	q.limit = n
	return q
}

// Include projects the given paths.
func (q *Query) Include(paths ...string) *Query {
	for _, p := range paths {
		q.projection = append(q.projection, bson.E{Key: p, Value: 1})
	}
	return q
}

// Exclude hides the given paths.
func (q *Query) Exclude(paths ...string) *Query {
	for _, p := range paths {
		q.projection = append(q.projection, bson.E{Key: p, Value: 0})
	}
	return q
}

// Collation sets the collation document used for string comparison.
func (q *Query) Collation(c bson.D) *Query {
	q.collation = c
	return q
}

// SortDocument returns the sort specification.
func (q *Query) SortDocument() bson.D {
	if len(q.sort) == 0 {
		return nil
	}
	d := make(bson.D, 0, len(q.sort))
	for _, o := range q.sort {
		d = append(d, bson.E{Key: o.Path, Value: int32(o.Direction)})
	}
	return d
}

// LimitValue returns the limit, zero when unlimited.
func (q *Query) LimitValue() int64 { return q.limit }

// Filter renders the filter document.
func (q *Query) Filter() (bson.D, error) {
	out := append(bson.D{}, q.filter...)
	seen := make(map[string]bool, len(out))
	for _, e := range out {
		seen[e.Key] = true
	}
	for _, c := range q.criteria {
		d, err := c.Document()
		if err != nil {
			return nil, err
		}
		for _, e := range d {
			if seen[e.Key] {
				return nil, fmt.Errorf("%w: query already holds a condition on %q", ErrInvalidCriteria, e.Key)
			}
			seen[e.Key] = true
			out = append(out, e)
		}
	}
	return out, nil
}

// FindOptions returns the store options of the query.
func (q *Query) FindOptions() db.FindOptions {
	return db.FindOptions{
		Sort:       q.SortDocument(),
		Skip:       q.skip,
		Limit:      q.limit,
		Projection: q.projection,
		Collation:  q.collation,
	}
}
