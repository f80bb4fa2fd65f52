package schema

import (
	"slices"

	"go.mongodb.org/mongo-driver/v2/bson"
)

// DefaultAlgorithm is the field level encryption algorithm used when none is set.
const DefaultAlgorithm = "AEAD_AES_256_CBC_HMAC_SHA_512-Deterministic"

// Node is a single schema restriction node.
type Node struct {
	types       []Type
	description string
	generate    bool
	enum        []any
	allOf       []Node
	anyOf       []Node
	oneOf       []Node
	not         *Node

	// string
	minLength *int
	maxLength *int
	pattern   string

	// number
	multipleOf       any
	minimum          any
	maximum          any
	exclusiveMinimum bool
	exclusiveMaximum bool

	// array
	items           []Node
	additionalItems *restriction
	minItems        *int
	maxItems        *int
	uniqueItems     bool

	// object
	required             []string
	properties           []Property
	patternProperties    []Property
	additionalProperties *restriction
	minProperties        *int
	maxProperties        *int
	dependencies         []dependency

	encrypt *encryption
}

// restriction is either a boolean or a schema, as used by additionalItems/additionalProperties.
type restriction struct {
	allowed bool
	schema  *Node
}

type dependency struct {
	name   string
	fields []string
	schema *Node
}

type encryption struct {
	bsonType  Type
	algorithm string
	keyIDs    []any
	pointer   string
}

// Of returns a node accepting any of types.
func Of(types ...Type) Node { return Node{types: slices.Clone(types)} }

// Untyped returns a node without type restriction.
func Untyped() Node { return Node{} }

// Object returns an object node.
func Object() Node { return Of(TypeObject) }

// String returns a string node.
func String() Node { return Of(TypeString) }

// Number returns a node accepting any numeric value.
func Number() Node { return Of(TypeNumber) }

// Int returns a 32-bit integer node.
func Int() Node { return Of(TypeInt) }

// Long returns a 64-bit integer node.
func Long() Node { return Of(TypeLong) }

// Double returns a double node.
func Double() Node { return Of(TypeDouble) }

// Decimal returns a decimal128 node.
func Decimal() Node { return Of(TypeDecimal) }

// Array returns an array node.
func Array() Node { return Of(TypeArray) }

// Boolean returns a boolean node.
func Boolean() Node { return Of(TypeBoolean) }

// Null returns a node accepting only null.
func Null() Node { return Of(TypeNull) }

// Date returns a date node.
func Date() Node { return Of(TypeDate) }

// Timestamp returns a timestamp node.
func Timestamp() Node { return Of(TypeTimestamp) }

// ObjectID returns an ObjectId node.
func ObjectID() Node { return Of(TypeObjectID) }

// BinData returns a binary data node.
func BinData() Node { return Of(TypeBinData) }

// Encrypted returns a client side encrypted field node holding values of bsonType.
func Encrypted(bsonType Type) Node {
	return Node{encrypt: &encryption{bsonType: bsonType, algorithm: DefaultAlgorithm}}
}

// Types returns the accepted types.
func (n Node) Types() []Type { return slices.Clone(n.types) }

// IsEncrypted reports whether n describes an encrypted field.
func (n Node) IsEncrypted() bool { return n.encrypt != nil }

// Description sets an explicit description.
func (n Node) Description(s string) Node {
	n.description = s
	return n
}

// GenerateDescription derives a description from the restrictions when none is set explicitly.
func (n Node) GenerateDescription() Node {
	n.generate = true
	return n
}

// PossibleValues restricts the node to an enumeration.
func (n Node) PossibleValues(values ...any) Node {
	n.enum = slices.Concat(n.enum, values)
	return n
}

// AllOf requires every given schema to match.
func (n Node) AllOf(nodes ...Node) Node {
	n.allOf = slices.Concat(n.allOf, nodes)
	return n
}

// AnyOf requires at least one given schema to match.
func (n Node) AnyOf(nodes ...Node) Node {
	n.anyOf = slices.Concat(n.anyOf, nodes)
	return n
}

// OneOf requires exactly one given schema to match.
func (n Node) OneOf(nodes ...Node) Node {
	n.oneOf = slices.Concat(n.oneOf, nodes)
	return n
}

// NotMatch requires other not to match.
func (n Node) NotMatch(other Node) Node {
	n.not = &other
	return n
}

// Nullable additionally accepts null. No-op for untyped nodes.
func (n Node) Nullable() Node {
	if len(n.types) == 0 || slices.Contains(n.types, TypeNull) {
		return n
	}
	n.types = slices.Concat(n.types, []Type{TypeNull})
	return n
}

// MinLength sets the minimum string length.
func (n Node) MinLength(v int) Node {
	n.minLength = &v
	return n
}

// MaxLength sets the maximum string length.
func (n Node) MaxLength(v int) Node {
	n.maxLength = &v
	return n
}

// Pattern sets the regular expression strings must match.
func (n Node) Pattern(p string) Node {
	n.pattern = p
	return n
}

// MultipleOf requires numbers to be a multiple of v.
func (n Node) MultipleOf(v any) Node {
	n.multipleOf = v
	return n
}

// Gt sets an exclusive lower bound.
func (n Node) Gt(v any) Node {
	n.minimum, n.exclusiveMinimum = v, true
	return n
}

// Gte sets an inclusive lower bound.
func (n Node) Gte(v any) Node {
	n.minimum, n.exclusiveMinimum = v, false
	return n
}

// Lt sets an exclusive upper bound.
func (n Node) Lt(v any) Node {
	n.maximum, n.exclusiveMaximum = v, true
	return n
}

// Lte sets an inclusive upper bound.
func (n Node) Lte(v any) Node {
	n.maximum, n.exclusiveMaximum = v, false
	return n
}

// Items sets the item schemas. One item renders as a document (every element), several as a
// positional array.
func (n Node) Items(nodes ...Node) Node {
	n.items = slices.Concat(n.items, nodes)
	return n
}

// AdditionalItems allows or forbids elements beyond the positional items.
func (n Node) AdditionalItems(allowed bool) Node {
	n.additionalItems = &restriction{allowed: allowed}
	return n
}

// AdditionalItemsSchema restricts elements beyond the positional items to s.
func (n Node) AdditionalItemsSchema(s Node) Node {
	n.additionalItems = &restriction{schema: &s}
	return n
}

// MinItems sets the minimum array length.
func (n Node) MinItems(v int) Node {
	n.minItems = &v
	return n
}

// MaxItems sets the maximum array length.
func (n Node) MaxItems(v int) Node {
	n.maxItems = &v
	return n
}

// UniqueItems requires array elements to be distinct.
func (n Node) UniqueItems() Node {
	n.uniqueItems = true
	return n
}

// Required adds required property names.
func (n Node) Required(names ...string) Node {
	n.required = slices.Concat(n.required, names)
	return n
}

// Properties adds property restrictions. Required properties are added to `required`.
func (n Node) Properties(props ...Property) Node {
	n.properties = slices.Concat(n.properties, props)
	return n
}

// PatternProperties adds restrictions for properties whose name matches the property name regex.
func (n Node) PatternProperties(props ...Property) Node {
	n.patternProperties = slices.Concat(n.patternProperties, props)
	return n
}

// AdditionalProperties allows or forbids properties not listed in Properties.
func (n Node) AdditionalProperties(allowed bool) Node {
	n.additionalProperties = &restriction{allowed: allowed}
	return n
}

// AdditionalPropertiesSchema restricts unlisted properties to s.
func (n Node) AdditionalPropertiesSchema(s Node) Node {
	n.additionalProperties = &restriction{schema: &s}
	return n
}

// MinProperties sets the minimum number of properties.
func (n Node) MinProperties(v int) Node {
	n.minProperties = &v
	return n
}

// MaxProperties sets the maximum number of properties.
func (n Node) MaxProperties(v int) Node {
	n.maxProperties = &v
	return n
}

// Dependency requires fields to be present whenever property name is.
func (n Node) Dependency(name string, fields ...string) Node {
	n.dependencies = slices.Concat(n.dependencies, []dependency{{name: name, fields: slices.Clone(fields)}})
	return n
}

// DependencySchema requires the document to match s whenever property name is present.
func (n Node) DependencySchema(name string, s Node) Node {
	n.dependencies = slices.Concat(n.dependencies, []dependency{{name: name, schema: &s}})
	return n
}

// Algorithm sets the encryption algorithm of an encrypted node.
func (n Node) Algorithm(a string) Node {
	if n.encrypt == nil {
		return n
	}
	e := *n.encrypt
	e.algorithm = a
	n.encrypt = &e
	return n
}

// KeyIDs sets the data encryption key ids of an encrypted node.
func (n Node) KeyIDs(ids ...any) Node {
	if n.encrypt == nil {
		return n
	}
	e := *n.encrypt
	e.keyIDs, e.pointer = slices.Clone(ids), ""
	n.encrypt = &e
	return n
}

// KeyIDPointer resolves the encryption key id from another field (`/fieldName`).
func (n Node) KeyIDPointer(p string) Node {
	if n.encrypt == nil {
		return n
	}
	e := *n.encrypt
	e.keyIDs, e.pointer = nil, p
	n.encrypt = &e
	return n
}

// Document renders the node as a schema document.
//
//nolint:gocyclo // flat keyword emission
func (n Node) Document() bson.D {
	if n.encrypt != nil {
		return n.encryptedDocument()
	}

	var d bson.D
	if e, ok := typeKeyword(n.types); ok {
		d = append(d, e)
	}
	if desc := n.describe(); desc != "" {
		d = append(d, bson.E{Key: "description", Value: desc})
	}
	if len(n.enum) > 0 {
		d = append(d, bson.E{Key: "enum", Value: bson.A(slices.Clone(n.enum))})
	}

	d = appendInt(d, "minLength", n.minLength)
	d = appendInt(d, "maxLength", n.maxLength)
	if n.pattern != "" {
		d = append(d, bson.E{Key: "pattern", Value: n.pattern})
	}

	if n.multipleOf != nil {
		d = append(d, bson.E{Key: "multipleOf", Value: n.multipleOf})
	}
	if n.minimum != nil {
		d = append(d, bson.E{Key: "minimum", Value: n.minimum})
		if n.exclusiveMinimum {
			d = append(d, bson.E{Key: "exclusiveMinimum", Value: true})
		}
	}
	if n.maximum != nil {
		d = append(d, bson.E{Key: "maximum", Value: n.maximum})
		if n.exclusiveMaximum {
			d = append(d, bson.E{Key: "exclusiveMaximum", Value: true})
		}
	}

	switch len(n.items) {
	case 0:
	case 1:
		d = append(d, bson.E{Key: "items", Value: n.items[0].Document()})
	default:
		d = append(d, bson.E{Key: "items", Value: documents(n.items)})
	}
	if n.additionalItems != nil {
		d = append(d, bson.E{Key: "additionalItems", Value: n.additionalItems.value()})
	}
	d = appendInt(d, "minItems", n.minItems)
	d = appendInt(d, "maxItems", n.maxItems)
	if n.uniqueItems {
		d = append(d, bson.E{Key: "uniqueItems", Value: true})
	}

	if req := n.requiredNames(); len(req) > 0 {
		d = append(d, bson.E{Key: "required", Value: req})
	}
	if len(n.properties) > 0 {
		d = append(d, bson.E{Key: "properties", Value: propertiesDocument(n.properties)})
	}
	if len(n.patternProperties) > 0 {
		d = append(d, bson.E{Key: "patternProperties", Value: propertiesDocument(n.patternProperties)})
	}
	if n.additionalProperties != nil {
		d = append(d, bson.E{Key: "additionalProperties", Value: n.additionalProperties.value()})
	}
	d = appendInt(d, "minProperties", n.minProperties)
	d = appendInt(d, "maxProperties", n.maxProperties)
	if len(n.dependencies) > 0 {
		deps := make(bson.D, 0, len(n.dependencies))
		for _, dep := range n.dependencies {
			if dep.schema != nil {
				deps = append(deps, bson.E{Key: dep.name, Value: dep.schema.Document()})
				continue
			}
			fields := make(bson.A, len(dep.fields))
			for i, f := range dep.fields {
				fields[i] = f
			}
			deps = append(deps, bson.E{Key: dep.name, Value: fields})
		}
		d = append(d, bson.E{Key: "dependencies", Value: deps})
	}

	if len(n.allOf) > 0 {
		d = append(d, bson.E{Key: "allOf", Value: documents(n.allOf)})
	}
	if len(n.anyOf) > 0 {
		d = append(d, bson.E{Key: "anyOf", Value: documents(n.anyOf)})
	}
	if len(n.oneOf) > 0 {
		d = append(d, bson.E{Key: "oneOf", Value: documents(n.oneOf)})
	}
	if n.not != nil {
		d = append(d, bson.E{Key: "not", Value: n.not.Document()})
	}
	return d
}

func (n Node) encryptedDocument() bson.D {
	enc := bson.D{}
	if n.encrypt.bsonType != "" {
		enc = append(enc, bson.E{Key: "bsonType", Value: n.encrypt.bsonType.bsonName()})
	}
	enc = append(enc, bson.E{Key: "algorithm", Value: n.encrypt.algorithm})
	switch {
	case n.encrypt.pointer != "":
		enc = append(enc, bson.E{Key: "keyId", Value: n.encrypt.pointer})
	case len(n.encrypt.keyIDs) > 0:
		enc = append(enc, bson.E{Key: "keyId", Value: bson.A(slices.Clone(n.encrypt.keyIDs))})
	}
	d := bson.D{{Key: "encrypt", Value: enc}}
	if desc := n.describe(); desc != "" {
		d = append(d, bson.E{Key: "description", Value: desc})
	}
	return d
}

// requiredNames merges explicit required names with properties marked required, keeping the
// first occurrence of each.
func (n Node) requiredNames() bson.A {
	seen := make(map[string]bool)
	var out bson.A
	add := func(name string) {
		if !seen[name] {
			seen[name] = true
			out = append(out, name)
		}
	}
	for _, r := range n.required {
		add(r)
	}
	for _, p := range n.properties {
		if p.required {
			add(p.name)
		}
	}
	return out
}

func (r restriction) value() any {
	if r.schema != nil {
		return r.schema.Document()
	}
	return r.allowed
}

func documents(nodes []Node) bson.A {
	out := make(bson.A, len(nodes))
	for i, n := range nodes {
		out[i] = n.Document()
	}
	return out
}

func appendInt(d bson.D, key string, v *int) bson.D {
	if v == nil {
		return d
	}
	return append(d, bson.E{Key: key, Value: *v})
}
