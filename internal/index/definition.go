// Package index derives MongoDB index definitions from mapping metadata or fluent builders and
// parses index documents returned by the server.
package index

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"go.mongodb.org/mongo-driver/v2/bson"
)

// Definition is anything that can be turned into a createIndexes element.
type Definition interface {
	// IndexKeys returns the ordered key document, e.g. {lastname: 1, age: -1}.
	IndexKeys() bson.D
	// IndexOptions returns the option document (name, unique, ...). May be empty.
	IndexOptions() bson.D
}

// Direction is the sort direction of an index key.
type Direction int

const (
	// Asc is an ascending key.
	Asc Direction = 1
	// Desc is a descending key.
	Desc Direction = -1
)

// Errors returned by builders and parsers.
var (
	ErrInvalidDefinition = errors.New("index: invalid definition")
	ErrUnsupportedKey    = errors.New("index: unsupported key value")
)

// Index is a fluent builder for regular (single field and compound) indexes.
// Builder methods mutate and return the receiver, as the collection index builder does.
type Index struct {
	keys          bson.D
	name          string
	unique        bool
	sparse        bool
	background    bool
	hidden        bool
	expire        *time.Duration
	partialFilter bson.D
	collation     *Collation
}

// NewIndex starts an empty index definition.
func NewIndex() *Index {
	return &Index{}
}

// On adds key with the given direction. Re-adding an existing key replaces its direction in place.
func (i *Index) On(key string, dir Direction) *Index {
	for n := range i.keys {
		if i.keys[n].Key == key {
			i.keys[n].Value = int32(dir)
			return i
		}
	}
	i.keys = append(i.keys, bson.E{Key: key, Value: int32(dir)})
	return i
}

// Named sets the index name.
func (i *Index) Named(name string) *Index {
	i.name = name
	return i
}

// Unique marks the index unique.
func (i *Index) Unique() *Index {
	i.unique = true
	return i
}

// Sparse marks the index sparse.
func (i *Index) Sparse() *Index {
	i.sparse = true
	return i
}

// Background requests a background build. Ignored by servers >= 4.2 but still accepted.
func (i *Index) Background() *Index {
	i.background = true
	return i
}

// Hidden hides the index from the query planner.
func (i *Index) Hidden() *Index {
	i.hidden = true
	return i
}

// ExpireAfter turns the index into a TTL index. Sub-second precision is truncated.
func (i *Index) ExpireAfter(d time.Duration) *Index {
	i.expire = &d
	return i
}

// PartialFilter restricts the index to documents matching filter.
func (i *Index) PartialFilter(filter bson.D) *Index {
	i.partialFilter = filter
	return i
}

// Collation sets the index collation.
func (i *Index) Collation(c Collation) *Index {
	i.collation = &c
	return i
}

// Name returns the configured index name (may be empty).
func (i *Index) Name() string { return i.name }

// IndexKeys implements Definition.
func (i *Index) IndexKeys() bson.D {
	return append(bson.D(nil), i.keys...)
}

// IndexOptions implements Definition.
func (i *Index) IndexOptions() bson.D {
	return commonOptions{
		name:          i.name,
		unique:        i.unique,
		sparse:        i.sparse,
		background:    i.background,
		hidden:        i.hidden,
		expire:        i.expire,
		partialFilter: i.partialFilter,
		collation:     i.collation,
	}.document()
}

// Validate checks the definition before it is sent to the server.
func (i *Index) Validate() error {
	if len(i.keys) == 0 {
		return fmt.Errorf("%w: at least one key is required", ErrInvalidDefinition)
	}
	if i.expire != nil {
		if *i.expire < 0 {
			return fmt.Errorf("%w: negative expireAfter", ErrInvalidDefinition)
		}
		if len(i.keys) > 1 {
			return fmt.Errorf("%w: TTL indexes must have a single key", ErrInvalidDefinition)
		}
	}
	return nil
}

// commonOptions collects options shared by all definition kinds.
type commonOptions struct {
	name          string
	unique        bool
	sparse        bool
	background    bool
	hidden        bool
	expire        *time.Duration
	partialFilter bson.D
	collation     *Collation
}

func (o commonOptions) document() bson.D {
	var d bson.D
	if o.name != "" {
		d = append(d, bson.E{Key: "name", Value: o.name})
	}
	if o.unique {
		d = append(d, bson.E{Key: "unique", Value: true})
	}
	if o.sparse {
		d = append(d, bson.E{Key: "sparse", Value: true})
	}
	if o.background {
		d = append(d, bson.E{Key: "background", Value: true})
	}
	if o.hidden {
		d = append(d, bson.E{Key: "hidden", Value: true})
	}
	if o.expire != nil {
		d = append(d, bson.E{Key: "expireAfterSeconds", Value: int64(*o.expire / time.Second)})
	}
	if len(o.partialFilter) > 0 {
		d = append(d, bson.E{Key: "partialFilterExpression", Value: o.partialFilter})
	}
	if o.collation != nil {
		d = append(d, bson.E{Key: "collation", Value: o.collation.Document()})
	}
	return d
}

// Model assembles the createIndexes element for def: key, name and options.
// When def carries no name, the server-side default name is generated.
func Model(def Definition) bson.D {
	keys := def.IndexKeys()
	opts := def.IndexOptions()
	out := bson.D{{Key: "key", Value: keys}}
	if _, named := lookup(opts, "name"); !named {
		out = append(out, bson.E{Key: "name", Value: DefaultName(keys)})
	}
	return append(out, opts...)
}

// NameOf returns the explicit name of def, or the server default name derived from its keys.
func NameOf(def Definition) string {
	if v, ok := lookup(def.IndexOptions(), "name"); ok {
		if s, ok := v.(string); ok && s != "" {
			return s
		}
	}
	return DefaultName(def.IndexKeys())
}

// DefaultName builds the name the server assigns to an unnamed index: key_value pairs joined by '_'.
func DefaultName(keys bson.D) string {
	parts := make([]string, 0, len(keys)*2)
	for _, k := range keys {
		parts = append(parts, k.Key, fmt.Sprint(k.Value))
	}
	return strings.Join(parts, "_")
}

func lookup(d bson.D, key string) (any, bool) {
	for _, e := range d {
		if e.Key == key {
			return e.Value, true
		}
	}
	return nil, false
}
