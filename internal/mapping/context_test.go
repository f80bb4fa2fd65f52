package mapping

import (
	"reflect"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/v2/bson"
)

type address struct {
	Street string `bson:"street"`
	City   string `bson:"city" mongo:"index"`
}

type person struct {
	ID        bson.ObjectID     `bson:"_id"`
	FirstName string            `bson:"firstname" mongo:"index;unique;indexName:first_idx"`
	Email     string            `mongo:"index;sparse"`
	Home      address           `bson:"home"`
	Addresses []address         `bson:"addresses"`
	Spouse    *person           `bson:"spouse"`
	Tags      map[string]string `bson:"tags,omitempty"`
	Created   time.Time         `bson:"created" mongo:"expireAfter:1h"`
	secret    string
	Ignored   string `bson:"-"`
}

func (person) CollectionName() string { return "people" }

func (person) CompoundIndexes() []CompoundIndexSpec {
	return []CompoundIndexSpec{{Def: "{'firstname': 1, 'email': -1}", Name: "name_email"}}
}

type embedded struct {
	Audit `bson:",inline"`
	Title string `bson:"title"`
}

type Audit struct {
	CreatedBy string `bson:"created_by"`
}

func TestEntity_Person(t *testing.T) {
	c := NewContext()
	e, err := c.EntityOf(person{})
	require.NoError(t, err)

	assert.Equal(t, "people", e.Collection)
	assert.True(t, e.Document)
	require.NotNil(t, e.IDProperty)
	assert.Equal(t, "ID", e.IDProperty.Name)
	require.Len(t, e.CompoundIndexes, 1)

	names := make([]string, 0, len(e.Properties))
	for _, p := range e.Properties {
		names = append(names, p.FieldName)
	}
	assert.Equal(t, []string{"_id", "firstname", "email", "home", "addresses", "spouse", "tags", "created"}, names)

	first, ok := e.PropertyByField("firstname")
	require.True(t, ok)
	assert.True(t, first.Directives.Unique)
	assert.Equal(t, "first_idx", first.Directives.IndexName)

	home, _ := e.PropertyByName("Home")
	assert.True(t, home.IsEmbedded())
	assert.Equal(t, "address", home.Entity().Name)

	addrs, _ := e.PropertyByName("Addresses")
	assert.True(t, addrs.IsCollection)
	assert.True(t, addrs.IsEntity())

	spouse, _ := e.PropertyByName("Spouse")
	assert.True(t, spouse.IsPointer)
	assert.Same(t, e, spouse.Entity(), "self reference resolves to the same entity")

	tags, _ := e.PropertyByName("Tags")
	assert.True(t, tags.IsMap)
	assert.True(t, tags.OmitEmpty)
	assert.False(t, tags.IsEntity())

	created, _ := e.PropertyByName("Created")
	assert.False(t, created.IsEntity())
	require.NotNil(t, created.Directives.ExpireAfter)
	assert.Equal(t, time.Hour, *created.Directives.ExpireAfter)
}

func TestEntity_Cached(t *testing.T) {
	c := NewContext()
	a, err := c.Entity(reflect.TypeOf(&person{}))
	require.NoError(t, err)
	b, err := c.EntityOf(person{})
	require.NoError(t, err)
	assert.Same(t, a, b)

	docs := c.Documents()
	require.Len(t, docs, 1)
	assert.Equal(t, "person", docs[0].Name)
	assert.Len(t, c.Entities(), 2, "person and address")
}

func TestEntity_Inline(t *testing.T) {
	t.Run("struct", func(t *testing.T) {
		e, err := NewContext().EntityOf(embedded{})
		require.NoError(t, err)
		require.Len(t, e.Properties, 2)
		assert.Equal(t, "created_by", e.Properties[0].FieldName)
		assert.Equal(t, []int{0, 0}, e.Properties[0].Index)
		assert.Equal(t, "embedded", e.Collection)
		assert.False(t, e.Document)
		assert.Nil(t, e.Extra)
	})

	t.Run("pointer struct", func(t *testing.T) {
		type withAudit struct {
			*Audit `bson:",inline"`
			Title  string `bson:"title"`
		}
		e, err := NewContext().EntityOf(withAudit{})
		require.NoError(t, err)
		require.Len(t, e.Properties, 2)
		by := e.Properties[0]
		assert.Equal(t, "created_by", by.FieldName)
		assert.Equal(t, []int{0, 0}, by.Index)

		v := reflect.ValueOf(&withAudit{Title: "t"}).Elem()
		assert.False(t, by.Value(v).IsValid(), "nil inline pointer has no value")
		by.Field(v).SetString("ann")
		assert.Equal(t, "ann", v.Interface().(withAudit).CreatedBy)
		assert.Equal(t, "ann", by.Value(v).String())
	})

	t.Run("map", func(t *testing.T) {
		type open struct {
			Name  string         `bson:"name"`
			Extra map[string]any `bson:",inline"`
		}
		e, err := NewContext().EntityOf(open{})
		require.NoError(t, err)
		require.Len(t, e.Properties, 1, "the catch-all map is not a property")
		require.NotNil(t, e.Extra)
		assert.Equal(t, "Extra", e.Extra.Name)
		assert.Equal(t, []int{1}, e.Extra.Index)
		assert.True(t, e.Extra.IsMap)
	})

	t.Run("invalid", func(t *testing.T) {
		type intKeys struct {
			M map[int]string `bson:",inline"`
		}
		type twoMaps struct {
			A map[string]any    `bson:",inline"`
			B map[string]string `bson:",inline"`
		}
		type scalar struct {
			S string `bson:",inline"`
		}
		c := NewContext()
		for _, v := range []any{intKeys{}, twoMaps{}, scalar{}} {
			assert.NotPanics(t, func() {
				_, err := c.EntityOf(v)
				assert.Error(t, err, "%T", v)
			})
		}
		assert.Empty(t, c.Entities())
	})
}

type brokenMid struct {
	Owner *brokenRoot `bson:"owner"`
	Name  string      `bson:"name"`
}

type brokenRoot struct {
	Mid brokenMid      `bson:"mid"`
	Bad map[int]string `bson:"bad"`
}

func TestEntity_FailedBuildRollsBackNested(t *testing.T) {
	c := NewContext()
	_, err := c.EntityOf(brokenRoot{})
	require.Error(t, err)
	assert.Empty(t, c.Entities(), "brokenMid mapped fine but points at the failed root")

	_, err = c.EntityOf(brokenMid{})
	require.Error(t, err, "a retry rebuilds instead of returning a half-built entity")
	assert.Empty(t, c.Entities())

	a, err := c.EntityOf(address{})
	require.NoError(t, err)
	require.Len(t, c.Entities(), 1)
	assert.Same(t, a, c.Entities()[0])
}

func TestEntity_Errors(t *testing.T) {
	type badTag struct {
		Name string `mongo:"bogus"`
	}
	type dupKey struct {
		A string `bson:"x"`
		B string `bson:"x"`
	}
	type badMap struct {
		M map[int]string
	}
	type badRef struct {
		R string `mongo:"ref"`
	}

	c := NewContext()
	for _, v := range []any{badTag{}, dupKey{}, badMap{}, badRef{}, 42, time.Time{}} {
		_, err := c.EntityOf(v)
		assert.Error(t, err, "%T", v)
	}
	assert.Empty(t, c.Entities(), "failed builds are not cached")
}

func TestParseTag(t *testing.T) {
	d, err := ParseTag("geoIndex:2d; geoMin:-180; geoMax:180; geoBits:26; indexName:loc")
	require.NoError(t, err)
	assert.Equal(t, "2d", d.GeoIndex)
	assert.Equal(t, -180.0, *d.GeoMin)
	assert.Equal(t, 26, d.GeoBits)
	assert.False(t, d.Index, "indexName on a geo property names the geo index")

	d, err = ParseTag("ref:lazy;lookup:{ 'acronym' : ?#{acc} };sort:{ 'name' : -1 }")
	require.NoError(t, err)
	assert.Equal(t, DocumentReference, d.Reference)
	assert.True(t, d.Lazy)
	assert.Equal(t, "{ 'acronym' : ?#{acc} }", d.Lookup)

	d, err = ParseTag("vector:1536,cosine,scalar")
	require.NoError(t, err)
	assert.Equal(t, &VectorSpec{Dimensions: 1536, Similarity: "cosine", Quantization: "scalar"}, d.Vector)

	d, err = ParseTag("textIndexed:2.5;desc")
	require.NoError(t, err)
	assert.Equal(t, 2.5, d.TextWeight)
	assert.True(t, d.Index)
	assert.True(t, d.HasIndex())

	d, err = ParseTag("hashed")
	require.NoError(t, err)
	assert.True(t, d.HasIndex())

	d, err = ParseTag("ref;required;vector:3,cosine")
	require.NoError(t, err)
	assert.False(t, d.HasIndex(), "vector and reference directives create no regular index")

	for _, bad := range []string{
		"geoIndex:3d", "geoBits:3", "lookup:{a:1}", "vector:abc,cosine", "expireAfter:-1s",
		"ref:eager", "indexName:", "expireAfterSeconds:x",
	} {
		_, err := ParseTag(bad)
		assert.Error(t, err, bad)
	}
}
