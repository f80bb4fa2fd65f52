package index

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/v2/bson"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"github.com/kailas-cloud/mongomap/internal/mapping"
)

type zipCode struct {
	Code string `bson:"code" mongo:"index;indexName:code_idx"`
}

type address struct {
	City string  `bson:"city" mongo:"index"`
	Zip  zipCode `bson:"zip"`
}

type customer struct {
	ID       bson.ObjectID      `bson:"_id"`
	Email    string             `bson:"email" mongo:"unique"`
	LastName string             `bson:"lastname" mongo:"index;desc"`
	Home     address            `bson:"home"`
	Previous []address          `bson:"previous"`
	Attrs    map[string]address `bson:"attrs" mongo:"wildcard"`
	Shard    string             `bson:"shard" mongo:"index;hashed"`
	Location []float64          `bson:"location" mongo:"geoIndex:2dsphere"`
	Created  time.Time          `bson:"created" mongo:"expireAfter:1h"`
}

func (customer) CollectionName() string { return "customers" }

func (customer) CompoundIndexes() []mapping.CompoundIndexSpec {
	return []mapping.CompoundIndexSpec{{Def: "{'lastname': 1, 'email': 1}", Name: "name_email", Unique: true}}
}

func resolve(t *testing.T, v any) []Holder {
	t.Helper()
	e, err := mapping.NewContext().EntityOf(v)
	require.NoError(t, err)
	holders, err := NewResolver(zap.NewNop()).ResolveIndexFor(e)
	require.NoError(t, err)
	return holders
}

func names(holders []Holder) []string {
	out := make([]string, len(holders))
	for i, h := range holders {
		out[i] = h.Name()
	}
	return out
}

func TestResolver_OrderAndNames(t *testing.T) {
	holders := resolve(t, customer{})

	assert.Equal(t, []string{
		"name_email",
		"email",
		"lastname",
		"home.city",
		"home.zip.code_idx",
		"previous.city",
		"previous.zip.code_idx",
		"attrs.$**_1",
		"shard",
		"shard_hashed",
		"location",
		"created",
	}, names(holders))

	for _, h := range holders {
		assert.Equal(t, "customers", h.Collection)
	}

	assert.Equal(t, bson.D{{Key: "lastname", Value: int32(-1)}}, holders[2].Definition.IndexKeys())
	assert.Equal(t, "home.zip.code", holders[4].Definition.IndexKeys()[0].Key)
	assert.Equal(t, "home.zip.code", holders[4].Path)

	unique, ok := lookup(holders[1].Definition.IndexOptions(), "unique")
	require.True(t, ok)
	assert.Equal(t, true, unique)

	ttl, ok := lookup(holders[11].Definition.IndexOptions(), "expireAfterSeconds")
	require.True(t, ok)
	assert.Equal(t, int64(3600), ttl)
}

type review struct {
	Text string `bson:"text" mongo:"textIndexed"`
}

type article struct {
	ID      string   `bson:"_id"`
	Title   string   `bson:"title" mongo:"textIndexed:3"`
	Body    string   `bson:"body" mongo:"textIndexed"`
	Lang    string   `bson:"lang" mongo:"language"`
	Reviews []review `bson:"reviews"`
	Slug    string   `bson:"slug" mongo:"unique"`
}

func (article) CollectionName() string  { return "articles" }
func (article) DefaultLanguage() string { return "german" }

func TestResolver_TextIndex(t *testing.T) {
	holders := resolve(t, article{})
	require.Len(t, holders, 2)

	text, ok := holders[0].Definition.(*TextIndex)
	require.True(t, ok, "text index precedes property indexes")
	assert.Equal(t, bson.D{
		{Key: "title", Value: "text"},
		{Key: "body", Value: "text"},
		{Key: "reviews.text", Value: "text"},
	}, text.IndexKeys())
	assert.Equal(t, bson.D{
		{Key: "weights", Value: bson.D{{Key: "title", Value: 3.0}}},
		{Key: "default_language", Value: "german"},
		{Key: "language_override", Value: "lang"},
	}, text.IndexOptions())

	assert.Equal(t, "slug", holders[1].Name())
}

type node struct {
	ID       string `bson:"_id"`
	Name     string `bson:"name" mongo:"index"`
	Parent   *node  `bson:"parent"`
	Children []node `bson:"children"`
}

func (node) CollectionName() string { return "nodes" }

func TestResolver_CycleGuard(t *testing.T) {
	core, logs := observer.New(zapcore.DebugLevel)
	e, err := mapping.NewContext().EntityOf(node{})
	require.NoError(t, err)

	holders, err := NewResolver(zap.New(core)).ResolveIndexFor(e)
	require.NoError(t, err)

	assert.Equal(t, []string{
		"name",
		"parent.name",
		"parent.children.name",
		"children.name",
		"children.parent.name",
	}, names(holders))
	assert.NotZero(t, logs.FilterMessage("stopping index resolution at cyclic property").Len())
}

type teamA struct {
	Label string `bson:"label" mongo:"index"`
	B     *teamB `bson:"b"`
}

type teamB struct {
	Code string `bson:"code" mongo:"index"`
	A    *teamA `bson:"a"`
}

type league struct {
	ID   string `bson:"_id"`
	Team teamA  `bson:"team"`
}

func (league) CollectionName() string { return "leagues" }

func TestResolver_MutualRecursionTerminates(t *testing.T) {
	holders := resolve(t, league{})
	assert.Equal(t, []string{"team.label", "team.b.code", "team.b.a.label"}, names(holders))
}

type author struct {
	ID   bson.ObjectID `bson:"_id"`
	Name string        `bson:"name" mongo:"index"`
}

func (author) CollectionName() string { return "authors" }

type book struct {
	ID      bson.ObjectID `bson:"_id"`
	Author  *author       `bson:"author" mongo:"ref;index"`
	Editors []author      `bson:"editors" mongo:"dbref"`
}

func (book) CollectionName() string { return "books" }

func TestResolver_ReferencesNotDescended(t *testing.T) {
	holders := resolve(t, book{})
	require.Len(t, holders, 1)
	assert.Equal(t, "author", holders[0].Name())
	assert.Equal(t, "author", holders[0].Path)
}

type duplicated struct {
	ID    string `bson:"_id"`
	Email string `bson:"email" mongo:"index;unique"`
}

func (duplicated) CollectionName() string { return "dups" }

func (duplicated) CompoundIndexes() []mapping.CompoundIndexSpec {
	return []mapping.CompoundIndexSpec{{Def: "{'email': 1}", Name: "email_compound"}}
}

func TestResolver_DuplicateKeysFirstWins(t *testing.T) {
	core, logs := observer.New(zapcore.DebugLevel)
	e, err := mapping.NewContext().EntityOf(duplicated{})
	require.NoError(t, err)

	holders, err := NewResolver(zap.New(core)).ResolveIndexFor(e)
	require.NoError(t, err)
	assert.Equal(t, []string{"email_compound"}, names(holders))

	dropped := logs.FilterMessage("dropping index with duplicate keys").All()
	require.Len(t, dropped, 1)
	assert.Equal(t, zapcore.WarnLevel, dropped[0].Level, "options differ")
}

type meta struct {
	Data string `bson:"data"`
}

func (meta) WildcardIndex() mapping.WildcardSpec {
	return mapping.WildcardSpec{Projection: "{'data': 1}"}
}

type metaHolder struct {
	ID   string `bson:"_id"`
	Meta meta   `bson:"meta"`
}

func (metaHolder) CollectionName() string { return "holders" }

type rootWildcard struct {
	ID     string `bson:"_id"`
	Secret string `bson:"secret"`
}

func (rootWildcard) CollectionName() string { return "wild" }

func (rootWildcard) WildcardIndex() mapping.WildcardSpec {
	return mapping.WildcardSpec{Name: "all", Projection: "{'secret': 0}"}
}

func TestResolver_Wildcard(t *testing.T) {
	holders := resolve(t, rootWildcard{})
	require.Len(t, holders, 1)
	assert.Equal(t, "all", holders[0].Name())
	assert.Equal(t, bson.D{{Key: "$**", Value: int32(1)}}, holders[0].Definition.IndexKeys())

	e, err := mapping.NewContext().EntityOf(metaHolder{})
	require.NoError(t, err)
	_, err = NewResolver(nil).ResolveIndexFor(e)
	assert.ErrorIs(t, err, ErrInvalidDefinition, "nested wildcard cannot carry a projection")
}

type nestedCompound struct {
	First string `bson:"first"`
	Last  string `bson:"last"`
}

func (nestedCompound) CompoundIndexes() []mapping.CompoundIndexSpec {
	return []mapping.CompoundIndexSpec{{Def: "{'first': 1, 'last': 1}", Name: "full"}}
}

type withNestedCompound struct {
	ID   string         `bson:"_id"`
	Name nestedCompound `bson:"name"`
}

func (withNestedCompound) CollectionName() string { return "nested" }

func TestResolver_NestedCompoundReRooted(t *testing.T) {
	holders := resolve(t, withNestedCompound{})
	require.Len(t, holders, 1)
	assert.Equal(t, "name.full", holders[0].Name())
	assert.Equal(t, bson.D{
		{Key: "name.first", Value: int32(1)},
		{Key: "name.last", Value: int32(1)},
	}, holders[0].Definition.IndexKeys())
}

func TestResolver_NotADocument(t *testing.T) {
	e, err := mapping.NewContext().EntityOf(address{})
	require.NoError(t, err)
	_, err = NewResolver(nil).ResolveIndexFor(e)
	assert.ErrorIs(t, err, ErrNotDocument)
}

func TestPathAwareName(t *testing.T) {
	assert.Equal(t, "email", pathAwareName("", "email", "email", false))
	assert.Equal(t, "idx", pathAwareName("idx", "email", "email", false))
	assert.Equal(t, "home.idx", pathAwareName("idx", "home.city", "city", false))
	assert.Equal(t, "", pathAwareName("idx", "home.city", "city", true))
}
