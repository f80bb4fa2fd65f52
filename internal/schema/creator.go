package schema

import (
	"reflect"
	"time"

	"github.com/google/uuid"
	"go.mongodb.org/mongo-driver/v2/bson"

	"github.com/kailas-cloud/mongomap/internal/mapping"
)

// Creator derives validator schemas from mapping metadata.
type Creator struct {
	filter func(*mapping.Property) bool
	keyIDs func(*mapping.Property) []any
}

// CreatorOption configures a Creator.
type CreatorOption func(*Creator)

// WithPropertyFilter keeps only properties for which keep returns true.
func WithPropertyFilter(keep func(*mapping.Property) bool) CreatorOption {
	return func(c *Creator) { c.filter = keep }
}

// WithKeyIDs supplies the data encryption key ids of encrypted properties.
func WithKeyIDs(f func(*mapping.Property) []any) CreatorOption {
	return func(c *Creator) { c.keyIDs = f }
}

// NewCreator creates a schema creator.
func NewCreator(opts ...CreatorOption) *Creator {
	c := &Creator{}
	for _, o := range opts {
		o(c)
	}
	return c
}

// Create renders the schema of e. Embedded types appearing again below themselves are rendered
// as plain objects.
func (c *Creator) Create(e *mapping.Entity) JSONSchema {
	return New(c.object(e, map[reflect.Type]bool{}))
}

func (c *Creator) object(e *mapping.Entity, path map[reflect.Type]bool) Node {
	path[e.Type] = true
	defer delete(path, e.Type)

	props := make([]Property, 0, len(e.Properties))
	for _, p := range e.Properties {
		if c.filter != nil && !c.filter(p) {
			continue
		}
		prop := Prop(p.FieldName, c.property(p, path))
		if p.Directives.Required {
			prop = prop.Required()
		}
		props = append(props, prop)
	}
	return Object().Properties(props...)
}

func (c *Creator) property(p *mapping.Property, path map[reflect.Type]bool) Node {
	var elem Node
	switch {
	case p.IsReference():
		elem = referenceNode(p)
	case p.IsEntity():
		if path[p.ActualType] {
			elem = Object()
		} else {
			elem = c.object(p.Entity(), path)
		}
	default:
		elem = typeNode(p.ActualType)
	}

	n := elem
	switch {
	case p.IsCollection:
		n = Array().Items(elem)
	case p.IsMap:
		n = Object().AdditionalPropertiesSchema(elem)
	}

	if p.Directives.Encrypted != "" {
		enc := Encrypted(primaryType(n)).Algorithm(p.Directives.Encrypted)
		if c.keyIDs != nil {
			enc = enc.KeyIDs(c.keyIDs(p)...)
		}
		return enc
	}
	if p.IsPointer && !p.Directives.Required {
		n = n.Nullable()
	}
	return n
}

// referenceNode describes the stored form of a reference: the target id, a lookup document or
// a DBRef.
func referenceNode(p *mapping.Property) Node {
	id := ObjectID()
	if target := p.Entity(); target.IDProperty != nil {
		id = typeNode(target.IDProperty.ActualType)
	}
	switch {
	case p.Directives.Reference == mapping.DBRef:
		return Object().Properties(
			Prop("$ref", String()).Required(),
			Prop("$id", id).Required(),
		)
	case p.Directives.Lookup != "":
		return Object()
	default:
		return id
	}
}

func primaryType(n Node) Type {
	if len(n.types) == 0 {
		return ""
	}
	return n.types[0]
}

var (
	timeType       = reflect.TypeOf(time.Time{})
	objectIDType   = reflect.TypeOf(bson.ObjectID{})
	decimalType    = reflect.TypeOf(bson.Decimal128{})
	binaryType     = reflect.TypeOf(bson.Binary{})
	uuidType       = reflect.TypeOf(uuid.UUID{})
	timestampType  = reflect.TypeOf(bson.Timestamp{})
	regexType      = reflect.TypeOf(bson.Regex{})
	dateTimeType   = reflect.TypeOf(bson.DateTime(0))
	rawMessageType = reflect.TypeOf(bson.RawValue{})
)

// typeNode maps a Go type to its stored BSON type.
//
//nolint:gocyclo // flat type switch
func typeNode(t reflect.Type) Node {
	for t.Kind() == reflect.Pointer {
		t = t.Elem()
	}
	switch t {
	case timeType, dateTimeType:
		return Date()
	case objectIDType:
		return ObjectID()
	case decimalType:
		return Decimal()
	case binaryType, uuidType:
		return BinData()
	case timestampType:
		return Timestamp()
	case regexType:
		return Of(TypeRegex)
	case rawMessageType:
		return Untyped()
	}

	switch t.Kind() {
	case reflect.String:
		return String()
	case reflect.Bool:
		return Boolean()
	case reflect.Int8, reflect.Int16, reflect.Int32, reflect.Uint8, reflect.Uint16:
		return Int()
	case reflect.Int, reflect.Int64, reflect.Uint, reflect.Uint32, reflect.Uint64:
		return Long()
	case reflect.Float32, reflect.Float64:
		return Double()
	case reflect.Slice, reflect.Array:
		if t.Elem().Kind() == reflect.Uint8 {
			return BinData()
		}
		return Array().Items(typeNode(t.Elem()))
	case reflect.Map, reflect.Struct:
		return Object()
	default:
		return Untyped()
	}
}
