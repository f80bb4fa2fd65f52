package schema

import (
	"errors"
	"fmt"
	"slices"

	"go.mongodb.org/mongo-driver/v2/bson"

	"github.com/kailas-cloud/mongomap/internal/bsonutil"
)

// ErrConflict signals two schemas restricting the same path differently.
var ErrConflict = errors.New("schema: conflicting restrictions")

// Property is a named node inside an object.
type Property struct {
	name     string
	node     Node
	required bool
}

// Prop names a node.
func Prop(name string, n Node) Property { return Property{name: name, node: n} }

// Required marks the property as required by its enclosing object.
func (p Property) Required() Property {
	p.required = true
	return p
}

// Name returns the property name.
func (p Property) Name() string { return p.name }

// Node returns the property restrictions.
func (p Property) Node() Node { return p.node }

// IsRequired reports whether the property is required.
func (p Property) IsRequired() bool { return p.required }

func propertiesDocument(props []Property) bson.D {
	d := make(bson.D, 0, len(props))
	for _, p := range props {
		d = append(d, bson.E{Key: p.name, Value: p.node.Document()})
	}
	return d
}

// JSONSchema is a collection validator schema.
type JSONSchema struct {
	doc bson.D
}

// New creates a schema from its root node.
func New(root Node) JSONSchema { return JSONSchema{doc: root.Document()} }

// Build creates an object schema from properties.
func Build(props ...Property) JSONSchema { return New(Object().Properties(props...)) }

// FromDocument wraps an already rendered schema document (without the $jsonSchema envelope).
func FromDocument(d bson.D) JSONSchema { return JSONSchema{doc: slices.Clone(d)} }

// SchemaDocument returns the schema without the $jsonSchema envelope.
func (s JSONSchema) SchemaDocument() bson.D { return slices.Clone(s.doc) }

// Document returns `{$jsonSchema: ...}`, usable as a collection validator or a query filter.
func (s JSONSchema) Document() bson.D {
	return bson.D{{Key: "$jsonSchema", Value: s.SchemaDocument()}}
}

// ExtJSON renders the validator as relaxed extended JSON.
func (s JSONSchema) ExtJSON() (string, error) {
	b, err := bson.MarshalExtJSON(s.Document(), false, false)
	if err != nil {
		return "", fmt.Errorf("render schema: %w", err)
	}
	return string(b), nil
}

// ConflictResolver decides the value at path when two schemas disagree.
type ConflictResolver func(path string, left, right any) (any, error)

// FailOnConflict is the default resolver: differing values are an error.
func FailOnConflict(path string, left, right any) (any, error) {
	return nil, fmt.Errorf("%w at %s: %v vs %v", ErrConflict, path, left, right)
}

// Merge combines schemas left to right. Nested documents merge key by key, `required` lists are
// united and any other differing value goes through resolve (FailOnConflict when nil).
func Merge(resolve ConflictResolver, schemas ...JSONSchema) (JSONSchema, error) {
	if resolve == nil {
		resolve = FailOnConflict
	}
	var out bson.D
	for _, s := range schemas {
		merged, err := mergeDocuments("", out, s.doc, resolve)
		if err != nil {
			return JSONSchema{}, err
		}
		out = merged
	}
	return JSONSchema{doc: out}, nil
}

func mergeDocuments(path string, left, right bson.D, resolve ConflictResolver) (bson.D, error) {
	out := slices.Clone(left)
	for _, e := range right {
		at := e.Key
		if path != "" {
			at = path + "." + e.Key
		}
		existing, ok := bsonutil.Get(out, e.Key)
		if !ok {
			out = append(out, e)
			continue
		}
		if bsonutil.Equal(existing, e.Value) {
			continue
		}

		ld, lok := existing.(bson.D)
		rd, rok := e.Value.(bson.D)
		switch {
		case lok && rok:
			merged, err := mergeDocuments(at, ld, rd, resolve)
			if err != nil {
				return nil, err
			}
			out = bsonutil.Set(out, e.Key, merged)
		case e.Key == "required":
			out = bsonutil.Set(out, e.Key, union(existing, e.Value))
		default:
			v, err := resolve(at, existing, e.Value)
			if err != nil {
				return nil, err
			}
			out = bsonutil.Set(out, e.Key, v)
		}
	}
	return out, nil
}

func union(a, b any) bson.A {
	var out bson.A
	seen := make(map[any]bool)
	for _, v := range []any{a, b} {
		arr, _ := v.(bson.A)
		for _, x := range arr {
			if !seen[x] {
				seen[x] = true
				out = append(out, x)
			}
		}
	}
	return out
}
