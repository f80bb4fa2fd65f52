package reference

import (
	"context"
	"errors"
	"reflect"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/v2/bson"

	"github.com/kailas-cloud/mongomap/internal/mapping"
)

type author struct {
	ID   string `bson:"_id"`
	Name string `bson:"name"`
}

func (author) CollectionName() string { return "authors" }

type book struct {
	ID        string          `bson:"_id"`
	Author    *author         `bson:"author" mongo:"ref"`
	Editors   []*author       `bson:"editors" mongo:"ref;sort:{ 'name' : 1 }"`
	Reviewer  *author         `bson:"reviewer" mongo:"ref;lookup:{ 'name' : ?#{name} }"`
	Publisher *author         `bson:"publisher" mongo:"dbref"`
	Owner     *Lazy[*author]  `bson:"owner" mongo:"ref:lazy"`
	Fans      *Lazy[[]author] `bson:"fans" mongo:"ref:lazy"`
	Title     string          `bson:"title"`
}

func (book) CollectionName() string { return "books" }

func bookProperty(t *testing.T, name string) *mapping.Property {
	t.Helper()
	e, err := mapping.NewContext().EntityOf(book{})
	require.NoError(t, err)
	p, ok := e.PropertyByName(name)
	require.True(t, ok, name)
	return p
}

func TestFor_ReadsDirectives(t *testing.T) {
	r, err := For(bookProperty(t, "Author"))
	require.NoError(t, err)
	assert.Equal(t, mapping.DocumentReference, r.Kind)
	assert.Equal(t, "authors", r.Collection)
	assert.True(t, r.Lookup.IsTargetOnly())
	assert.Nil(t, r.Sort)

	r, err = For(bookProperty(t, "Editors"))
	require.NoError(t, err)
	assert.Equal(t, bson.D{{Key: "name", Value: int32(1)}}, r.Sort)

	r, err = For(bookProperty(t, "Reviewer"))
	require.NoError(t, err)
	assert.False(t, r.Lookup.IsTargetOnly())

	r, err = For(bookProperty(t, "Publisher"))
	require.NoError(t, err)
	assert.Equal(t, mapping.DBRef, r.Kind)

	_, err = For(bookProperty(t, "Title"))
	assert.Error(t, err)
}

func TestFor_LazyProperties(t *testing.T) {
	owner := bookProperty(t, "Owner")
	assert.True(t, owner.IsLazy)
	assert.False(t, owner.IsCollection)
	assert.Equal(t, reflect.TypeOf(author{}), owner.ActualType)

	fans := bookProperty(t, "Fans")
	assert.True(t, fans.IsLazy)
	assert.True(t, fans.IsCollection)

	r, err := For(fans)
	require.NoError(t, err)
	assert.Equal(t, "authors", r.Collection)
}

func TestLazy_LoadsOnceConcurrently(t *testing.T) {
	var loads atomic.Int32
	l := &Lazy[*author]{}
	l.BindSource("a1", func(context.Context) (any, error) {
		loads.Add(1)
		return &author{ID: "a1", Name: "Ada"}, nil
	})
	assert.Equal(t, "a1", l.Source())
	assert.False(t, l.Loaded())

	var wg sync.WaitGroup
	for range 8 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			a, err := l.Get(context.Background())
			assert.NoError(t, err)
			assert.Equal(t, "Ada", a.Name)
		}()
	}
	wg.Wait()

	assert.Equal(t, int32(1), loads.Load())
	v, ok := l.Current()
	require.True(t, ok)
	assert.Equal(t, "a1", v.(*author).ID)
}

func TestLazy_RetriesAfterFailure(t *testing.T) {
	fail := true
	l := &Lazy[string]{}
	l.BindSource("x", func(context.Context) (any, error) {
		if fail {
			return nil, errors.New("boom")
		}
		return "ok", nil
	})

	_, err := l.Get(context.Background())
	require.Error(t, err)
	assert.False(t, l.Loaded())

	fail = false
	v, err := l.Get(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "ok", v)
}

func TestLazy_UnboundAndPreset(t *testing.T) {
	_, err := (&Lazy[int]{}).Get(context.Background())
	assert.ErrorIs(t, err, ErrNotBound)

	l := Of(42)
	v, err := l.Get(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 42, v)
	assert.Equal(t, reflect.TypeOf(0), l.LazyTarget())

	l.Set(7)
	v, _ = l.Get(context.Background())
	assert.Equal(t, 7, v)
}

func TestLazy_WrongLoaderTypeFails(t *testing.T) {
	l := &Lazy[int]{}
	l.BindSource(nil, func(context.Context) (any, error) { return "nope", nil })
	_, err := l.Get(context.Background())
	assert.Error(t, err)
}
