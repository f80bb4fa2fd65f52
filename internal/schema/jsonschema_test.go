package schema

import (
	"reflect"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/v2/bson"

	"github.com/kailas-cloud/mongomap/internal/mapping"
)

func TestJSONSchema_Envelope(t *testing.T) {
	s := Build(Prop("name", String()).Required())

	doc := s.Document()
	require.Len(t, doc, 1)
	assert.Equal(t, "$jsonSchema", doc[0].Key)
	assert.Equal(t, bson.D{
		{Key: "type", Value: "object"},
		{Key: "required", Value: bson.A{"name"}},
		{Key: "properties", Value: bson.D{{Key: "name", Value: bson.D{{Key: "type", Value: "string"}}}}},
	}, doc[0].Value)

	js, err := s.ExtJSON()
	require.NoError(t, err)
	assert.Contains(t, js, `"$jsonSchema"`)
}

func TestMerge_DisjointProperties(t *testing.T) {
	a := Build(Prop("name", String()).Required())
	b := Build(Prop("age", Int()).Required())

	merged, err := Merge(nil, a, b)
	require.NoError(t, err)

	d := merged.SchemaDocument()
	assert.Equal(t, bson.E{Key: "required", Value: bson.A{"name", "age"}}, d[1])
	props := d[2].Value.(bson.D)
	require.Len(t, props, 2)
	assert.Equal(t, "name", props[0].Key)
	assert.Equal(t, "age", props[1].Key)
}

func TestMerge_Conflict(t *testing.T) {
	a := Build(Prop("age", Int()))
	b := Build(Prop("age", Long()))

	_, err := Merge(nil, a, b)
	require.ErrorIs(t, err, ErrConflict)
	assert.Contains(t, err.Error(), "properties.age.")

	var seenPath string
	merged, err := Merge(func(path string, _, right any) (any, error) {
		seenPath = path
		return right, nil
	}, a, b)
	require.NoError(t, err)
	assert.Equal(t, "properties.age.bsonType", seenPath)
	assert.Equal(t, "long", merged.SchemaDocument()[1].Value.(bson.D)[0].Value.(bson.D)[0].Value)
}

func TestMerge_IdenticalValuesAreNotConflicts(t *testing.T) {
	a := Build(Prop("age", Int().Gte(0)))
	_, err := Merge(nil, a, a)
	assert.NoError(t, err)
}

// --- Creator ---

type street struct {
	Name   string `bson:"name" mongo:"required"`
	Number int32  `bson:"number"`
}

type owner struct {
	ID bson.ObjectID `bson:"_id"`
}

func (owner) CollectionName() string { return "owners" }

type treeNode struct {
	Label    string      `bson:"label"`
	Children []*treeNode `bson:"children"`
}

type house struct {
	ID       uuid.UUID         `bson:"_id"`
	Street   street            `bson:"street"`
	Floors   int               `bson:"floors" mongo:"required"`
	Price    *float64          `bson:"price"`
	Built    time.Time         `bson:"built"`
	Tags     []string          `bson:"tags"`
	Rooms    map[string]street `bson:"rooms"`
	Owner    *owner            `bson:"owner" mongo:"ref"`
	Previous []owner           `bson:"previous" mongo:"dbref"`
	Secret   string            `bson:"secret" mongo:"encrypted"`
	Tree     treeNode          `bson:"tree"`
	Photo    []byte            `bson:"photo"`
}

func (house) CollectionName() string { return "houses" }

func TestCreator_Entity(t *testing.T) {
	e, err := mapping.NewContext().Entity(reflect.TypeOf(house{}))
	require.NoError(t, err)

	key := bson.Binary{Subtype: 4, Data: make([]byte, 16)}
	s := NewCreator(WithKeyIDs(func(*mapping.Property) []any { return []any{key} })).Create(e).SchemaDocument()

	assert.Equal(t, bson.E{Key: "required", Value: bson.A{"floors"}}, s[1])
	props := s[2].Value.(bson.D)
	get := func(name string) bson.D {
		t.Helper()
		for _, p := range props {
			if p.Key == name {
				return p.Value.(bson.D)
			}
		}
		t.Fatalf("property %s missing", name)
		return nil
	}

	assert.Equal(t, bson.D{{Key: "bsonType", Value: "binData"}}, get("_id"))
	assert.Equal(t, bson.D{
		{Key: "type", Value: "object"},
		{Key: "required", Value: bson.A{"name"}},
		{Key: "properties", Value: bson.D{
			{Key: "name", Value: bson.D{{Key: "type", Value: "string"}}},
			{Key: "number", Value: bson.D{{Key: "bsonType", Value: "int"}}},
		}},
	}, get("street"))
	assert.Equal(t, bson.D{{Key: "bsonType", Value: "long"}}, get("floors"))
	assert.Equal(t, bson.D{{Key: "bsonType", Value: bson.A{"double", "null"}}}, get("price"))
	assert.Equal(t, bson.D{{Key: "bsonType", Value: "date"}}, get("built"))
	assert.Equal(t, bson.D{
		{Key: "type", Value: "array"},
		{Key: "items", Value: bson.D{{Key: "type", Value: "string"}}},
	}, get("tags"))
	assert.Equal(t, "additionalProperties", get("rooms")[1].Key)
	assert.Equal(t, bson.D{{Key: "bsonType", Value: bson.A{"objectId", "null"}}}, get("owner"))
	assert.Equal(t, bson.D{{Key: "bsonType", Value: "binData"}}, get("photo"))

	previous := get("previous")
	items := previous[1].Value.(bson.D)
	assert.Equal(t, bson.A{"$ref", "$id"}, items[1].Value)

	assert.Equal(t, bson.D{{Key: "encrypt", Value: bson.D{
		{Key: "bsonType", Value: "string"},
		{Key: "algorithm", Value: DefaultAlgorithm},
		{Key: "keyId", Value: bson.A{key}},
	}}}, get("secret"))

	// the recursive children stop at a plain object
	tree := get("tree")
	children := tree[1].Value.(bson.D)[1].Value.(bson.D)
	assert.Equal(t, bson.D{
		{Key: "type", Value: "array"},
		{Key: "items", Value: bson.D{{Key: "type", Value: "object"}}},
	}, children)
}

func TestCreator_Filter(t *testing.T) {
	e, err := mapping.NewContext().Entity(reflect.TypeOf(street{}))
	require.NoError(t, err)

	s := NewCreator(WithPropertyFilter(func(p *mapping.Property) bool { return p.FieldName != "number" })).
		Create(e).SchemaDocument()
	props := s[2].Value.(bson.D)
	require.Len(t, props, 1)
	assert.Equal(t, "name", props[0].Key)
}
