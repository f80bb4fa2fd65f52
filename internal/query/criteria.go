// Package query builds MongoDB filter documents: a fluent Criteria builder, queries derived from
// repository method names and query by example.
package query

import (
	"errors"
	"fmt"

	"go.mongodb.org/mongo-driver/v2/bson"
)

// ErrInvalidCriteria signals a criteria chain that cannot be rendered as a filter.
var ErrInvalidCriteria = errors.New("query: invalid criteria")

type operator struct {
	name  string
	value any
}

// chain is shared by every criteria linked with And.
type chain struct {
	items []*Criteria
	err   error
}

// Criteria is a condition on a single key, linked to sibling conditions through And.
// Builder methods mutate and return the receiver. Misuse is recorded on the chain and reported
// by Document.
type Criteria struct {
	key   string
	chain *chain

	is    any
	isSet bool
	ops   []operator
	not   bool

	group   string
	members []*Criteria
}

// Point is a GeoJSON point. X is the longitude and Y the latitude.
type Point struct {
	X, Y float64
}

func (p Point) document() bson.D {
	return bson.D{{Key: "type", Value: "Point"}, {Key: "coordinates", Value: bson.A{p.X, p.Y}}}
}

// Where starts a chain with a condition on key.
func Where(key string) *Criteria {
	c := &Criteria{key: key, chain: &chain{}}
	c.chain.items = append(c.chain.items, c)
	return c
}

// Empty starts a chain without a leading key, to be followed by And or a group operator.
func Empty() *Criteria {
	return &Criteria{chain: &chain{}}
}

// And adds a condition on key to the chain and returns it.
func (c *Criteria) And(key string) *Criteria {
	n := &Criteria{key: key, chain: c.chain}
	c.chain.items = append(c.chain.items, n)
	return n
}

// Key returns the key of this condition.
func (c *Criteria) Key() string { return c.key }

// Is sets an equality condition.
func (c *Criteria) Is(v any) *Criteria {
	if c.isSet {
		c.fail(fmt.Errorf("%w: multiple 'is' values for %q", ErrInvalidCriteria, c.key))
		return c
	}
	if c.not {
		c.fail(fmt.Errorf("%w: 'not' cannot precede 'is' on %q, use Ne", ErrInvalidCriteria, c.key))
		return c
	}
	c.is, c.isSet = v, true
	return c
}

// Ne adds $ne.
func (c *Criteria) Ne(v any) *Criteria { return c.op("$ne", v) }

// Lt adds $lt.
func (c *Criteria) Lt(v any) *Criteria { return c.op("$lt", v) }

// Lte adds $lte.
func (c *Criteria) Lte(v any) *Criteria { return c.op("$lte", v) }

// Gt adds $gt.
func (c *Criteria) Gt(v any) *Criteria { return c.op("$gt", v) }

// Gte adds $gte.
func (c *Criteria) Gte(v any) *Criteria { return c.op("$gte", v) }

// In adds $in.
func (c *Criteria) In(values ...any) *Criteria { return c.op("$in", bson.A(values)) }

// Nin adds $nin.
func (c *Criteria) Nin(values ...any) *Criteria { return c.op("$nin", bson.A(values)) }

// Exists adds $exists.
func (c *Criteria) Exists(b bool) *Criteria { return c.op("$exists", b) }

// Regex adds $regex. A preceding Not renders `{$not: /pattern/}`.
func (c *Criteria) Regex(pattern, options string) *Criteria {
	re := bson.Regex{Pattern: pattern, Options: options}
	if c.not {
		c.not = false
		c.ops = append(c.ops, operator{name: "$not", value: re})
		return c
	}
	return c.op("$regex", re)
}

// Size adds $size.
func (c *Criteria) Size(n int) *Criteria { return c.op("$size", n) }

// All adds $all.
func (c *Criteria) All(values ...any) *Criteria { return c.op("$all", bson.A(values)) }

// ElemMatch adds $elemMatch with the conditions of sub.
func (c *Criteria) ElemMatch(sub *Criteria) *Criteria { return c.op("$elemMatch", sub) }

// Not negates the next operator.
func (c *Criteria) Not() *Criteria {
	c.not = true
	return c
}

// Near adds $near with a GeoJSON point.
func (c *Criteria) Near(p Point) *Criteria {
	return c.op("$near", bson.D{{Key: "$geometry", Value: p.document()}})
}

// MaxDistance bounds a preceding Near, in meters.
func (c *Criteria) MaxDistance(meters float64) *Criteria {
	for i := range c.ops {
		if near, ok := c.ops[i].value.(bson.D); ok && c.ops[i].name == "$near" {
			c.ops[i].value = append(near, bson.E{Key: "$maxDistance", Value: meters})
			return c
		}
	}
	c.fail(fmt.Errorf("%w: maxDistance without near on %q", ErrInvalidCriteria, c.key))
	return c
}

// OrOperator adds `$or` over the given criteria to the chain.
func (c *Criteria) OrOperator(cs ...*Criteria) *Criteria { return c.groupOp("$or", cs) }

// AndOperator adds `$and` over the given criteria to the chain.
func (c *Criteria) AndOperator(cs ...*Criteria) *Criteria { return c.groupOp("$and", cs) }

// NorOperator adds `$nor` over the given criteria to the chain.
func (c *Criteria) NorOperator(cs ...*Criteria) *Criteria { return c.groupOp("$nor", cs) }

// Or returns a chain holding only `$or` over cs.
func Or(cs ...*Criteria) *Criteria { return Empty().OrOperator(cs...) }

// And returns a chain holding only `$and` over cs.
func And(cs ...*Criteria) *Criteria { return Empty().AndOperator(cs...) }

// Nor returns a chain holding only `$nor` over cs.
func Nor(cs ...*Criteria) *Criteria { return Empty().NorOperator(cs...) }

func (c *Criteria) groupOp(name string, cs []*Criteria) *Criteria {
	if len(cs) == 0 {
		c.fail(fmt.Errorf("%w: %s needs at least one criteria", ErrInvalidCriteria, name))
		return c
	}
	g := &Criteria{key: name, chain: c.chain, group: name, members: cs}
	c.chain.items = append(c.chain.items, g)
	return c
}

func (c *Criteria) op(name string, v any) *Criteria {
	if c.not {
		c.not = false
		c.ops = append(c.ops, operator{name: "$not", value: bson.D{{Key: name, Value: v}}})
		return c
	}
	for _, o := range c.ops {
		if o.name == name {
			c.fail(fmt.Errorf("%w: operator %s repeated on %q", ErrInvalidCriteria, name, c.key))
			return c
		}
	}
	c.ops = append(c.ops, operator{name: name, value: v})
	return c
}

func (c *Criteria) fail(err error) {
	if c.chain.err == nil {
		c.chain.err = err
	}
}

// Document renders the whole chain c belongs to. A key may appear only once per chain.
func (c *Criteria) Document() (bson.D, error) {
	if c.chain.err != nil {
		return nil, c.chain.err
	}
	out := bson.D{}
	seen := make(map[string]bool, len(c.chain.items))
	for _, item := range c.chain.items {
		if seen[item.key] {
			return nil, fmt.Errorf("%w: key %q used twice in one criteria chain, use AndOperator", ErrInvalidCriteria, item.key)
		}
		seen[item.key] = true
		e, err := item.element()
		if err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	return out, nil
}

func (c *Criteria) element() (bson.E, error) {
	if c.group != "" {
		docs := make(bson.A, 0, len(c.members))
		for _, m := range c.members {
			d, err := m.Document()
			if err != nil {
				return bson.E{}, err
			}
			docs = append(docs, d)
		}
		return bson.E{Key: c.group, Value: docs}, nil
	}
	if c.not {
		return bson.E{}, fmt.Errorf("%w: dangling 'not' on %q", ErrInvalidCriteria, c.key)
	}
	switch {
	case c.isSet && len(c.ops) > 0:
		return bson.E{}, fmt.Errorf("%w: %q mixes 'is' with operators", ErrInvalidCriteria, c.key)
	case c.isSet:
		return bson.E{Key: c.key, Value: c.is}, nil
	case len(c.ops) == 0:
		return bson.E{}, fmt.Errorf("%w: no condition on %q", ErrInvalidCriteria, c.key)
	}

	ops := make(bson.D, 0, len(c.ops))
	for _, o := range c.ops {
		v := o.value
		if sub, ok := v.(*Criteria); ok {
			d, err := sub.Document()
			if err != nil {
				return bson.E{}, err
			}
			v = d
		}
		ops = append(ops, bson.E{Key: o.name, Value: v})
	}
	return bson.E{Key: c.key, Value: ops}, nil
}
