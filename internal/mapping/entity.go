package mapping

import (
	"reflect"
	"sort"
)

// CollectionNamer names the collection a type is stored in. Types implementing it are documents.
type CollectionNamer interface {
	CollectionName() string
}

// CompoundIndexer declares compound indexes on a type.
type CompoundIndexer interface {
	CompoundIndexes() []CompoundIndexSpec
}

// WildcardIndexer declares a wildcard index on a type.
type WildcardIndexer interface {
	WildcardIndex() WildcardSpec
}

// LanguageDefaulter sets the default language of a type's text index.
type LanguageDefaulter interface {
	DefaultLanguage() string
}

// CompoundIndexSpec is an entity-level compound index declaration.
// Def is a relaxed JSON key document, e.g. `{'lastname': 1, 'age': -1}`.
type CompoundIndexSpec struct {
	Def              string
	Name             string
	Unique           bool
	Sparse           bool
	Background       bool
	Hidden           bool
	UseGeneratedName bool
	PartialFilter    string
	Collation        string
}

// WildcardSpec is an entity-level wildcard index declaration.
type WildcardSpec struct {
	Name          string
	Projection    string
	PartialFilter string
	Collation     string
}

// Entity is the mapping metadata of a struct type.
type Entity struct {
	Type            reflect.Type
	Name            string
	Collection      string
	Document        bool
	Properties      []*Property
	IDProperty      *Property
	CompoundIndexes []CompoundIndexSpec
	Wildcard        *WildcardSpec
	Language        string

	// Extra is the inline string-keyed map receiving keys no property claims, if declared.
	Extra *Property

	byName  map[string]*Property
	byField map[string]*Property
}

// PropertyByName looks a property up by its Go field name.
func (e *Entity) PropertyByName(name string) (*Property, bool) {
	p, ok := e.byName[name]
	return p, ok
}

// PropertyByField looks a property up by its document key.
func (e *Entity) PropertyByField(field string) (*Property, bool) {
	p, ok := e.byField[field]
	return p, ok
}

// Instance returns a new zero value of the entity type as interface (a pointer).
func (e *Entity) Instance() any {
	return reflect.New(e.Type).Interface()
}

// Property is the mapping metadata of a single struct field.
type Property struct {
	Owner      *Entity
	Name       string
	FieldName  string
	Index      []int
	Type       reflect.Type
	ActualType reflect.Type

	IsID         bool
	IsCollection bool
	IsMap        bool
	IsPointer    bool
	IsLazy       bool
	OmitEmpty    bool

	Directives Directives

	entity *Entity
}

// Entity returns the nested entity metadata when the property's actual type is a mapped struct.
func (p *Property) Entity() *Entity { return p.entity }

// IsEntity reports whether the property's actual type is a mapped struct.
func (p *Property) IsEntity() bool { return p.entity != nil }

// IsReference reports whether the property is stored as a reference to another document.
func (p *Property) IsReference() bool { return p.Directives.Reference != NoReference }

// IsEmbedded reports whether the property is an embedded (non-reference) entity.
func (p *Property) IsEmbedded() bool { return p.IsEntity() && !p.IsReference() }

// Value returns the field value of p on the struct value v. The result is invalid when the
// path crosses a nil inline pointer.
func (p *Property) Value(v reflect.Value) reflect.Value {
	for i, x := range p.Index {
		if i > 0 && v.Kind() == reflect.Pointer {
			if v.IsNil() {
				return reflect.Value{}
			}
			v = v.Elem()
		}
		v = v.Field(x)
	}
	return v
}

// Field returns the settable field of p on the addressable struct value v, allocating nil
// inline pointers on the way.
func (p *Property) Field(v reflect.Value) reflect.Value {
	for i, x := range p.Index {
		if i > 0 && v.Kind() == reflect.Pointer {
			if v.IsNil() {
				v.Set(reflect.New(v.Type().Elem()))
			}
			v = v.Elem()
		}
		v = v.Field(x)
	}
	return v
}

func (e *Entity) index() {
	e.byName = make(map[string]*Property, len(e.Properties))
	e.byField = make(map[string]*Property, len(e.Properties))
	for _, p := range e.Properties {
		e.byName[p.Name] = p
		e.byField[p.FieldName] = p
	}
}

// sortedEntities returns entities ordered by name.
func sortedEntities(m map[reflect.Type]*Entity) []*Entity {
	out := make([]*Entity, 0, len(m))
	for _, e := range m {
		out = append(out, e)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}
