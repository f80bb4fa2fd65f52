// Package mapping builds persistent entity metadata from Go struct types.
//
// Documents are plain structs. Document keys follow the `bson` tag (or the lower-cased field
// name), mapping directives live in the `mongo` tag and entity-level declarations are optional
// interfaces implemented by the type (CollectionNamer, CompoundIndexer, WildcardIndexer).
package mapping

import (
	"encoding/json"
	"errors"
	"fmt"
	"reflect"
	"strings"
	"sync"
	"time"
	"unicode"

	"github.com/google/uuid"
	"go.mongodb.org/mongo-driver/v2/bson"
	"go.uber.org/zap"
)

// ErrNotStruct signals an attempt to map a non-struct type.
var ErrNotStruct = errors.New("mapping: type is not a struct")

// LazyHolder is implemented by lazily resolved reference containers. Target is the referenced type.
type LazyHolder interface {
	LazyTarget() reflect.Type
}

var (
	lazyHolderType = reflect.TypeOf((*LazyHolder)(nil)).Elem()
	marshalerType  = reflect.TypeOf((*bson.Marshaler)(nil)).Elem()
	valueMarshaler = reflect.TypeOf((*bson.ValueMarshaler)(nil)).Elem()
)

var simpleStructs = map[reflect.Type]bool{
	reflect.TypeOf(time.Time{}):       true,
	reflect.TypeOf(bson.ObjectID{}):   true,
	reflect.TypeOf(bson.Decimal128{}): true,
	reflect.TypeOf(bson.Binary{}):     true,
	reflect.TypeOf(bson.Regex{}):      true,
	reflect.TypeOf(bson.Timestamp{}):  true,
	reflect.TypeOf(bson.DBPointer{}):  true,
	reflect.TypeOf(uuid.UUID{}):       true,
	reflect.TypeOf(json.RawMessage{}): true,
}

// IsSimpleType reports whether values of t are stored as-is rather than as mapped documents.
func IsSimpleType(t reflect.Type) bool {
	for t.Kind() == reflect.Pointer {
		t = t.Elem()
	}
	if simpleStructs[t] {
		return true
	}
	if t.Implements(marshalerType) || t.Implements(valueMarshaler) ||
		reflect.PointerTo(t).Implements(marshalerType) || reflect.PointerTo(t).Implements(valueMarshaler) {
		return true
	}
	return t.Kind() != reflect.Struct
}

// Context caches entity metadata per type. Safe for concurrent use.
type Context struct {
	mu       sync.RWMutex
	entities map[reflect.Type]*Entity
	logger   *zap.Logger

	// types added by the build in progress, dropped together when it fails
	built []reflect.Type
}

// Option configures a Context.
type Option func(*Context)

// WithLogger sets the logger used for mapping diagnostics.
func WithLogger(l *zap.Logger) Option {
	return func(c *Context) {
		if l != nil {
			c.logger = l
		}
	}
}

// NewContext creates an empty mapping context.
func NewContext(opts ...Option) *Context {
	c := &Context{entities: make(map[reflect.Type]*Entity), logger: zap.NewNop()}
	for _, o := range opts {
		o(c)
	}
	return c
}

// EntityOf returns the metadata for the type of v (a struct or pointer to struct).
func (c *Context) EntityOf(v any) (*Entity, error) {
	return c.Entity(reflect.TypeOf(v))
}

// Entity returns (building on first use) the metadata for t.
func (c *Context) Entity(t reflect.Type) (*Entity, error) {
	if t == nil {
		return nil, ErrNotStruct
	}
	for t.Kind() == reflect.Pointer {
		t = t.Elem()
	}

	c.mu.RLock()
	e, ok := c.entities[t]
	c.mu.RUnlock()
	if ok {
		return e, nil
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	c.built = c.built[:0]
	e, err := c.buildLocked(t)
	if err != nil {
		// nested types mapped along the way may hold properties pointing at the failed type
		for _, bt := range c.built {
			delete(c.entities, bt)
		}
	}
	c.built = nil
	return e, err
}

// Entities returns every entity built so far, ordered by name.
func (c *Context) Entities() []*Entity {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return sortedEntities(c.entities)
}

// Documents returns the entities that name a collection, ordered by name.
func (c *Context) Documents() []*Entity {
	var out []*Entity
	for _, e := range c.Entities() {
		if e.Document {
			out = append(out, e)
		}
	}
	return out
}

func (c *Context) buildLocked(t reflect.Type) (*Entity, error) {
	if e, ok := c.entities[t]; ok {
		return e, nil
	}
	if t.Kind() != reflect.Struct || IsSimpleType(t) {
		return nil, fmt.Errorf("%w: %s", ErrNotStruct, t)
	}

	e := &Entity{Type: t, Name: t.Name(), Collection: uncapitalize(t.Name())}
	applyEntityInterfaces(e)
	c.entities[t] = e
	c.built = append(c.built, t)

	if err := c.collectProperties(e, t, nil); err != nil {
		return nil, fmt.Errorf("mapping %s: %w", t, err)
	}
	e.index()

	c.logger.Debug("mapped entity",
		zap.String("entity", e.Name),
		zap.String("collection", e.Collection),
		zap.Int("properties", len(e.Properties)),
	)
	return e, nil
}

func applyEntityInterfaces(e *Entity) {
	v := reflect.New(e.Type).Interface()
	if n, ok := v.(CollectionNamer); ok {
		if name := n.CollectionName(); name != "" {
			e.Collection = name
		}
		e.Document = true
	}
	if ci, ok := v.(CompoundIndexer); ok {
		e.CompoundIndexes = ci.CompoundIndexes()
	}
	if wi, ok := v.(WildcardIndexer); ok {
		spec := wi.WildcardIndex()
		e.Wildcard = &spec
	}
	if ld, ok := v.(LanguageDefaulter); ok {
		e.Language = ld.DefaultLanguage()
	}
}

func (c *Context) collectProperties(e *Entity, t reflect.Type, prefix []int) error {
	seen := make(map[string]string)
	for _, p := range e.Properties {
		seen[p.FieldName] = p.Name
	}

	for i := range t.NumField() {
		f := t.Field(i)
		if !f.IsExported() {
			continue
		}
		bsonTag := f.Tag.Get("bson")
		if bsonTag == "-" {
			continue
		}
		name, opts, _ := strings.Cut(bsonTag, ",")
		index := append(append([]int(nil), prefix...), i)

		if strings.Contains(opts, "inline") || (f.Anonymous && name == "" && f.Type.Kind() == reflect.Struct && !IsSimpleType(f.Type)) {
			if err := c.collectInline(e, f, index); err != nil {
				return fmt.Errorf("field %s: %w", f.Name, err)
			}
			for _, p := range e.Properties {
				seen[p.FieldName] = p.Name
			}
			continue
		}

		p, err := c.newProperty(e, f, name, opts, index)
		if err != nil {
			return fmt.Errorf("field %s: %w", f.Name, err)
		}
		if other, dup := seen[p.FieldName]; dup {
			return fmt.Errorf("field %s: document key %q already used by %s", f.Name, p.FieldName, other)
		}
		seen[p.FieldName] = p.Name
		e.Properties = append(e.Properties, p)
		if p.IsID {
			e.IDProperty = p
		}
	}
	return nil
}

// collectInline flattens an inline struct (or pointer to struct) into e, or records an inline
// string-keyed map as the entity's catch-all for keys no property claims.
func (c *Context) collectInline(e *Entity, f reflect.StructField, index []int) error {
	t := f.Type
	if t.Kind() == reflect.Pointer {
		t = t.Elem()
	}
	switch {
	case t.Kind() == reflect.Map:
		if t.Key().Kind() != reflect.String {
			return fmt.Errorf("inline map keys must be strings, got %s", t.Key())
		}
		if e.Extra != nil {
			return fmt.Errorf("only one inline map allowed, %s already declared", e.Extra.Name)
		}
		if f.Type.Kind() == reflect.Pointer {
			return fmt.Errorf("inline map must not be a pointer")
		}
		e.Extra = &Property{
			Owner:      e,
			Name:       f.Name,
			Index:      index,
			Type:       f.Type,
			ActualType: t.Elem(),
			IsMap:      true,
		}
		return nil
	case t.Kind() == reflect.Struct && !IsSimpleType(t):
		return c.collectProperties(e, t, index)
	}
	return fmt.Errorf("inline field must be a struct or a string-keyed map, got %s", f.Type)
}

func (c *Context) newProperty(e *Entity, f reflect.StructField, name, opts string, index []int) (*Property, error) {
	d, err := ParseTag(f.Tag.Get(TagKey))
	if err != nil {
		return nil, err
	}

	p := &Property{
		Owner:      e,
		Name:       f.Name,
		FieldName:  name,
		Index:      index,
		Type:       f.Type,
		OmitEmpty:  strings.Contains(opts, "omitempty"),
		Directives: d,
	}
	if p.FieldName == "" {
		p.FieldName = strings.ToLower(f.Name)
		if f.Name == "ID" || f.Name == "Id" {
			p.FieldName = "_id"
		}
	}
	p.IsID = p.FieldName == "_id"

	actual := f.Type
	if actual.Kind() == reflect.Pointer {
		p.IsPointer = true
		actual = actual.Elem()
	}
	if reflect.PointerTo(actual).Implements(lazyHolderType) {
		p.IsLazy = true
		if d.Reference == NoReference {
			return nil, fmt.Errorf("lazy holder requires ref or dbref directive")
		}
		p.Directives.Lazy = true
		actual = reflect.New(actual).Interface().(LazyHolder).LazyTarget()
	}
	switch actual.Kind() {
	case reflect.Slice, reflect.Array:
		if actual.Elem().Kind() != reflect.Uint8 {
			p.IsCollection = true
			actual = actual.Elem()
		}
	case reflect.Map:
		if actual.Key().Kind() != reflect.String {
			return nil, fmt.Errorf("map keys must be strings, got %s", actual.Key())
		}
		p.IsMap = true
		actual = actual.Elem()
	}
	for actual.Kind() == reflect.Pointer {
		actual = actual.Elem()
	}
	p.ActualType = actual

	if actual.Kind() == reflect.Struct && !IsSimpleType(actual) {
		nested, err := c.buildLocked(actual)
		if err != nil {
			return nil, err
		}
		p.entity = nested
	}
	if p.IsReference() && p.entity == nil {
		return nil, fmt.Errorf("reference target %s is not a struct", actual)
	}
	return p, nil
}

func uncapitalize(s string) string {
	if s == "" {
		return s
	}
	r := []rune(s)
	r[0] = unicode.ToLower(r[0])
	return string(r)
}
