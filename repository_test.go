package mongomap

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/v2/bson"

	"github.com/kailas-cloud/mongomap/internal/db"
)

func newPersonRepo(t *testing.T, ms *mockStore, opts ...Option) *Repository[person] {
	t.Helper()
	r, err := NewRepository[person](context.Background(), newTestClient(t, ms, opts...))
	require.NoError(t, err)
	return r
}

func personRaw(id, first, last string, age int) bson.Raw {
	return rawDoc(bson.D{
		{Key: "_id", Value: id},
		{Key: "firstname", Value: first},
		{Key: "lastname", Value: last},
		{Key: "age", Value: int32(age)},
	})
}

func field(d bson.D, key string) any {
	for _, e := range d {
		if e.Key == key {
			return e.Value
		}
	}
	return nil
}

func TestNewRepository_NotDocument(t *testing.T) {
	_, err := NewRepository[note](context.Background(), newTestClient(t, &mockStore{}))
	require.ErrorIs(t, err, ErrNotDocument)
}

func TestNewRepository_AutoIndexCreation(t *testing.T) {
	ms := &mockStore{}
	var models []bson.D
	ms.createIndexesFn = func(_ context.Context, coll string, m []bson.D) error {
		assert.Equal(t, "people", coll)
		models = append(models, m...)
		return nil
	}

	r := newPersonRepo(t, ms, WithAutoIndexCreation(true))
	assert.Equal(t, "people", r.Collection())
	require.Len(t, models, 1)
	key, ok := field(models[0], "key").(bson.D)
	require.True(t, ok)
	assert.Equal(t, "firstname", key[0].Key)
}

func TestNewRepository_AutoIndexFailFast(t *testing.T) {
	ms := &mockStore{createIndexesFn: func(context.Context, string, []bson.D) error {
		return errors.New("boom")
	}}
	_, err := NewRepository[person](context.Background(),
		newTestClient(t, ms, WithAutoIndexCreation(true), WithIndexOptions(IndexOptions{FailFast: true})))
	require.Error(t, err)
}

func TestRepository_Save(t *testing.T) {
	ms := &mockStore{}
	var (
		gotID  any
		gotDoc bson.D
	)
	ms.upsertFn = func(_ context.Context, coll string, id any, doc bson.D) error {
		assert.Equal(t, "people", coll)
		gotID, gotDoc = id, doc
		return nil
	}
	r := newPersonRepo(t, ms)

	require.NoError(t, r.Save(context.Background(), &person{ID: "p1", Firstname: "Dave", Age: 42}))
	assert.Equal(t, "p1", gotID)
	assert.Equal(t, "Dave", field(gotDoc, "firstname"))
}

func TestRepository_SaveRejectsEmptyID(t *testing.T) {
	r := newPersonRepo(t, &mockStore{})

	require.ErrorIs(t, r.Save(context.Background(), &person{Firstname: "Dave"}), ErrEmptyID)
	require.Error(t, r.Save(context.Background(), nil))
}

func TestRepository_SaveGeneratesObjectID(t *testing.T) {
	ms := &mockStore{}
	var gotID any
	ms.upsertFn = func(_ context.Context, _ string, id any, _ bson.D) error {
		gotID = id
		return nil
	}
	c := newTestClient(t, ms)
	r, err := NewRepository[article](context.Background(), c)
	require.NoError(t, err)

	a := &article{Title: "Go"}
	require.NoError(t, r.Save(context.Background(), a))
	assert.False(t, a.ID.IsZero())
	assert.Equal(t, a.ID, gotID)
}

func TestRepository_SaveAllChunks(t *testing.T) {
	ms := &mockStore{}
	var sizes []int
	ms.upsertMultiFn = func(_ context.Context, _ string, items []db.UpsertItem) error {
		sizes = append(sizes, len(items))
		return nil
	}
	r := newPersonRepo(t, ms, WithMaxBatchSize(2))

	people := []*person{{ID: "1"}, {ID: "2"}, {ID: "3"}}
	require.NoError(t, r.SaveAll(context.Background(), people))
	assert.Equal(t, []int{2, 1}, sizes)
}

func TestRepository_SaveAllReportsBadItem(t *testing.T) {
	r := newPersonRepo(t, &mockStore{})

	err := r.SaveAll(context.Background(), []*person{{ID: "1"}, {}})
	require.ErrorIs(t, err, ErrEmptyID)
	assert.Contains(t, err.Error(), "item 1")
}

func TestRepository_FindByID(t *testing.T) {
	ms := &mockStore{}
	ms.findOneFn = func(_ context.Context, _ string, filter bson.D) (bson.Raw, error) {
		assert.Equal(t, bson.D{{Key: "_id", Value: "p1"}}, filter)
		return personRaw("p1", "Dave", "Matthews", 42), nil
	}
	r := newPersonRepo(t, ms)

	p, err := r.FindByID(context.Background(), "p1")
	require.NoError(t, err)
	assert.Equal(t, &person{ID: "p1", Firstname: "Dave", Lastname: "Matthews", Age: 42}, p)
}

func TestRepository_FindByIDMissing(t *testing.T) {
	r := newPersonRepo(t, &mockStore{})

	_, err := r.FindByID(context.Background(), "nope")
	require.ErrorIs(t, err, ErrDocumentNotFound)
}

func TestRepository_FindWithQuery(t *testing.T) {
	ms := &mockStore{}
	ms.findFn = func(_ context.Context, _ string, filter bson.D, opts db.FindOptions) ([]bson.Raw, error) {
		assert.Equal(t, bson.D{{Key: "lastname", Value: "Matthews"}}, filter)
		assert.Equal(t, bson.D{{Key: "age", Value: int32(-1)}}, opts.Sort)
		assert.Equal(t, int64(5), opts.Limit)
		return []bson.Raw{personRaw("p1", "Dave", "Matthews", 42), personRaw("p2", "Carter", "Matthews", 30)}, nil
	}
	r := newPersonRepo(t, ms)

	q := NewQuery(Where("lastname").Is("Matthews")).SortBy(Order{Path: "age", Direction: Desc}).Limit(5)
	out, err := r.Find(context.Background(), q)
	require.NoError(t, err)
	require.Len(t, out, 2)
	assert.Equal(t, "Carter", out[1].Firstname)
}

func TestRepository_FindAll(t *testing.T) {
	ms := &mockStore{}
	ms.findFn = func(_ context.Context, _ string, filter bson.D, _ db.FindOptions) ([]bson.Raw, error) {
		assert.Empty(t, filter)
		return []bson.Raw{personRaw("p1", "Dave", "Matthews", 42)}, nil
	}
	r := newPersonRepo(t, ms)

	out, err := r.FindAll(context.Background())
	require.NoError(t, err)
	assert.Len(t, out, 1)
}

func TestRepository_FindOne(t *testing.T) {
	ms := &mockStore{}
	r := newPersonRepo(t, ms)

	_, err := r.FindOne(context.Background(), NewQuery(Where("age").Gt(100)))
	require.ErrorIs(t, err, ErrDocumentNotFound)

	ms.findFn = func(_ context.Context, _ string, _ bson.D, opts db.FindOptions) ([]bson.Raw, error) {
		assert.Equal(t, int64(1), opts.Limit)
		return []bson.Raw{personRaw("p1", "Dave", "Matthews", 42)}, nil
	}
	p, err := r.FindOne(context.Background(), NewQuery(Where("age").Gt(40)))
	require.NoError(t, err)
	assert.Equal(t, "p1", p.ID)
}

func TestRepository_FindByExample(t *testing.T) {
	ms := &mockStore{}
	ms.findFn = func(_ context.Context, _ string, filter bson.D, _ db.FindOptions) ([]bson.Raw, error) {
		assert.Equal(t, bson.D{{Key: "lastname", Value: "Matthews"}}, filter)
		return nil, nil
	}
	r := newPersonRepo(t, ms)

	out, err := r.FindByExample(context.Background(), ExampleOf(person{Lastname: "Matthews"}))
	require.NoError(t, err)
	assert.Empty(t, out)
}

func TestRepository_FindByDerivedQuery(t *testing.T) {
	ms := &mockStore{}
	ms.findFn = func(_ context.Context, _ string, filter bson.D, opts db.FindOptions) ([]bson.Raw, error) {
		assert.Equal(t, bson.D{
			{Key: "lastname", Value: "Matthews"},
			{Key: "age", Value: bson.D{{Key: "$gt", Value: 30}}},
		}, filter)
		assert.Equal(t, int64(3), opts.Limit)
		return []bson.Raw{personRaw("p1", "Dave", "Matthews", 42)}, nil
	}
	r := newPersonRepo(t, ms)

	out, err := r.FindBy(context.Background(), "findTop3ByLastnameAndAgeGreaterThan", "Matthews", 30)
	require.NoError(t, err)
	require.Len(t, out, 1)
	assert.Equal(t, "Dave", out[0].Firstname)
}

func TestRepository_FindByRejectsWrongSubjectAndArity(t *testing.T) {
	r := newPersonRepo(t, &mockStore{})

	_, err := r.FindBy(context.Background(), "countByLastname", "Matthews")
	require.ErrorIs(t, err, ErrInvalidQuery)

	_, err = r.FindBy(context.Background(), "findByLastname")
	require.ErrorIs(t, err, ErrInvalidQuery)

	_, err = r.FindBy(context.Background(), "findByShoeSize", 9)
	require.ErrorIs(t, err, ErrInvalidQuery)
}

func TestRepository_CountExistsDeleteBy(t *testing.T) {
	ms := &mockStore{}
	ms.countFn = func(_ context.Context, _ string, filter bson.D) (int64, error) {
		assert.Equal(t, bson.D{{Key: "lastname", Value: "Matthews"}}, filter)
		return 2, nil
	}
	ms.findFn = func(_ context.Context, _ string, filter bson.D, opts db.FindOptions) ([]bson.Raw, error) {
		assert.Equal(t, bson.D{{Key: "lastname", Value: "Matthews"}}, filter)
		assert.Equal(t, int64(1), opts.Limit)
		return []bson.Raw{rawDoc(bson.D{{Key: "_id", Value: "p1"}})}, nil
	}
	ms.deleteFn = func(_ context.Context, _ string, filter bson.D) (int64, error) {
		assert.Equal(t, bson.D{{Key: "lastname", Value: "Matthews"}}, filter)
		return 2, nil
	}
	r := newPersonRepo(t, ms)
	ctx := context.Background()

	n, err := r.CountBy(ctx, "countByLastname", "Matthews")
	require.NoError(t, err)
	assert.Equal(t, int64(2), n)

	ok, err := r.ExistsBy(ctx, "existsByLastname", "Matthews")
	require.NoError(t, err)
	assert.True(t, ok)

	n, err = r.DeleteBy(ctx, "deleteByLastname", "Matthews")
	require.NoError(t, err)
	assert.Equal(t, int64(2), n)
}

func TestRepository_CountAndExists(t *testing.T) {
	ms := &mockStore{}
	ms.countFn = func(_ context.Context, _ string, filter bson.D) (int64, error) {
		assert.Empty(t, filter)
		return 7, nil
	}
	ms.findFn = func(_ context.Context, _ string, filter bson.D, _ db.FindOptions) ([]bson.Raw, error) {
		assert.Equal(t, bson.D{{Key: "_id", Value: "p1"}}, filter)
		return []bson.Raw{rawDoc(bson.D{{Key: "_id", Value: "p1"}})}, nil
	}
	r := newPersonRepo(t, ms)

	n, err := r.Count(context.Background(), nil)
	require.NoError(t, err)
	assert.Equal(t, int64(7), n)

	ok, err := r.Exists(context.Background(), "p1")
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestRepository_DeleteByID(t *testing.T) {
	ms := &mockStore{}
	ms.deleteFn = func(_ context.Context, _ string, filter bson.D) (int64, error) {
		if filter[0].Value == "p1" {
			return 1, nil
		}
		return 0, nil
	}
	r := newPersonRepo(t, ms)

	require.NoError(t, r.DeleteByID(context.Background(), "p1"))
	require.NoError(t, r.Delete(context.Background(), &person{ID: "p1"}))
	require.ErrorIs(t, r.DeleteByID(context.Background(), "p2"), ErrDocumentNotFound)
}

func TestRepository_WritesInvalidateReferenceCache(t *testing.T) {
	cache := newMockCache()
	c, err := wireClient(&mockStore{}, cache, &clientConfig{})
	require.NoError(t, err)
	r, err := NewRepository[person](context.Background(), c)
	require.NoError(t, err)

	require.NoError(t, r.Save(context.Background(), &person{ID: "p1"}))
	assert.NotEmpty(t, cache.invalidated)
}

func TestRepository_EnsureCollectionUsesSchemaValidator(t *testing.T) {
	ms := &mockStore{}
	var validator bson.D
	ms.createCollFn = func(_ context.Context, name string, v bson.D) error {
		assert.Equal(t, "people", name)
		validator = v
		return nil
	}
	r := newPersonRepo(t, ms)

	created, err := r.EnsureCollection(context.Background())
	require.NoError(t, err)
	assert.True(t, created)
	require.NotEmpty(t, validator)
	assert.Equal(t, "$jsonSchema", validator[0].Key)
	assert.Equal(t, r.Schema().Document(), validator)
}
