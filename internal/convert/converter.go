// Package convert maps entities to BSON documents and back using mapping metadata.
//
// Writes store references as pointers (the target id, a lookup document or a DBRef) and
// generate missing ObjectID and UUID ids. Reads resolve references eagerly through a Resolver,
// or bind lazy holders that resolve on first use.
package convert

import (
	"context"
	"errors"
	"fmt"
	"reflect"
	"sort"
	"sync"

	"github.com/google/uuid"
	"go.mongodb.org/mongo-driver/v2/bson"
	"go.uber.org/zap"

	"github.com/kailas-cloud/mongomap/internal/mapping"
	"github.com/kailas-cloud/mongomap/internal/reference"
)

// Conversion errors.
var (
	ErrNoID          = errors.New("convert: entity has no id property")
	ErrMissingID     = errors.New("convert: referenced entity has no id")
	ErrUnresolved    = errors.New("convert: no reference resolver configured")
	ErrTooDeep       = errors.New("convert: reference nesting too deep")
	ErrInvalidTarget = errors.New("convert: target must be a non-nil pointer to a struct")
)

// maxDepth bounds eager reference chains.
const maxDepth = 16

var (
	uuidType     = reflect.TypeOf(uuid.UUID{})
	objectIDType = reflect.TypeOf(bson.ObjectID{})
)

// Resolver fetches the documents a stored reference points at.
type Resolver interface {
	Resolve(ctx context.Context, ref reference.Ref, sources []any) ([]bson.Raw, error)
	ResolveAll(ctx context.Context, ref reference.Ref, sources []any) ([]bson.Raw, error)
}

// Converter converts between entities and documents. Safe for concurrent use.
type Converter struct {
	mc       *mapping.Context
	resolver Resolver
	logger   *zap.Logger
	refs     sync.Map // *mapping.Property -> reference.Ref
}

// Option configures a Converter.
type Option func(*Converter)

// WithResolver sets the reference resolver used by Read.
func WithResolver(r Resolver) Option {
	return func(c *Converter) { c.resolver = r }
}

// WithLogger sets the logger.
func WithLogger(l *zap.Logger) Option {
	return func(c *Converter) {
		if l != nil {
			c.logger = l
		}
	}
}

// New creates a Converter backed by mc.
func New(mc *mapping.Context, opts ...Option) *Converter {
	c := &Converter{mc: mc, logger: zap.NewNop()}
	for _, o := range opts {
		o(c)
	}
	return c
}

// Mapping returns the mapping context.
func (c *Converter) Mapping() *mapping.Context { return c.mc }

// IDOf returns the stored form of v's id.
func (c *Converter) IDOf(v any) (any, error) {
	rv, err := structValue(v)
	if err != nil {
		return nil, err
	}
	e, err := c.mc.Entity(rv.Type())
	if err != nil {
		return nil, err
	}
	if e.IDProperty == nil {
		return nil, fmt.Errorf("%w: %s", ErrNoID, e.Name)
	}
	return writeValue(e.IDProperty.Value(rv)), nil
}

// StoredValue returns the stored form of a plain value such as an id passed to a finder.
func StoredValue(v any) any { return writeValue(reflect.ValueOf(v)) }

func (c *Converter) ref(p *mapping.Property) (reference.Ref, error) {
	if r, ok := c.refs.Load(p); ok {
		return r.(reference.Ref), nil
	}
	r, err := reference.For(p)
	if err != nil {
		return reference.Ref{}, err
	}
	c.refs.Store(p, r)
	return r, nil
}

func structValue(v any) (reflect.Value, error) {
	rv := reflect.ValueOf(v)
	for rv.IsValid() && rv.Kind() == reflect.Pointer {
		if rv.IsNil() {
			return reflect.Value{}, ErrInvalidTarget
		}
		rv = rv.Elem()
	}
	if !rv.IsValid() || rv.Kind() != reflect.Struct {
		return reflect.Value{}, ErrInvalidTarget
	}
	return rv, nil
}

// writeValue converts a simple value to its stored form. UUIDs become binary subtype 4.
func writeValue(v reflect.Value) any {
	if !v.IsValid() {
		return nil
	}
	t := v.Type()
	if t == uuidType {
		u := v.Interface().(uuid.UUID)
		return bson.Binary{Subtype: bson.TypeBinaryUUID, Data: u[:]}
	}
	if !hasUUID(t) {
		return v.Interface()
	}
	switch v.Kind() {
	case reflect.Pointer:
		if v.IsNil() {
			return nil
		}
		return writeValue(v.Elem())
	case reflect.Slice, reflect.Array:
		if v.Kind() == reflect.Slice && v.IsNil() {
			return nil
		}
		out := make(bson.A, v.Len())
		for i := range out {
			out[i] = writeValue(v.Index(i))
		}
		return out
	case reflect.Map:
		if v.IsNil() {
			return nil
		}
		out := make(bson.D, 0, v.Len())
		for _, k := range sortedKeys(v) {
			out = append(out, bson.E{Key: k.String(), Value: writeValue(v.MapIndex(k))})
		}
		return out
	}
	return v.Interface()
}

func hasUUID(t reflect.Type) bool {
	switch t.Kind() {
	case reflect.Pointer, reflect.Slice, reflect.Map:
		return hasUUID(t.Elem())
	case reflect.Array:
		return t == uuidType || hasUUID(t.Elem())
	}
	return false
}

func sortedKeys(m reflect.Value) []reflect.Value {
	keys := m.MapKeys()
	sort.Slice(keys, func(i, j int) bool { return keys[i].String() < keys[j].String() })
	return keys
}
