package mongodb

import (
	"context"

	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"

	"github.com/kailas-cloud/mongomap/internal/db"
)

// Find returns all documents matching filter.
func (s *Store) Find(ctx context.Context, collection string, filter bson.D, o db.FindOptions) ([]bson.Raw, error) {
	opts := options.Find()
	if len(o.Sort) > 0 {
		opts.SetSort(o.Sort)
	}
	if o.Skip > 0 {
		opts.SetSkip(o.Skip)
	}
	if o.Limit > 0 {
		opts.SetLimit(o.Limit)
	}
	if len(o.Projection) > 0 {
		opts.SetProjection(o.Projection)
	}
	if len(o.Collation) > 0 {
		opts.SetCollation(collationOf(o.Collation))
	}

	cur, err := s.coll(collection).Find(ctx, nonNil(filter), opts)
	if err != nil {
		return nil, wrap(db.OpFind, err)
	}
	docs, err := drain(ctx, cur)
	if err != nil {
		return nil, wrap(db.OpFind, err)
	}
	return docs, nil
}

// FindOne returns the first matching document or db.ErrNotFound.
func (s *Store) FindOne(ctx context.Context, collection string, filter bson.D) (bson.Raw, error) {
	raw, err := s.coll(collection).FindOne(ctx, nonNil(filter)).Raw()
	if err != nil {
		return nil, wrap(db.OpFind, err)
	}
	return raw, nil
}

// Count counts matching documents.
func (s *Store) Count(ctx context.Context, collection string, filter bson.D) (int64, error) {
	n, err := s.coll(collection).CountDocuments(ctx, nonNil(filter))
	if err != nil {
		return 0, wrap(db.OpCount, err)
	}
	return n, nil
}

// Aggregate runs pipeline and returns all result documents.
func (s *Store) Aggregate(ctx context.Context, collection string, pipeline bson.A) ([]bson.Raw, error) {
	cur, err := s.coll(collection).Aggregate(ctx, pipeline)
	if err != nil {
		return nil, wrap(db.OpAggregate, err)
	}
	docs, err := drain(ctx, cur)
	if err != nil {
		return nil, wrap(db.OpAggregate, err)
	}
	return docs, nil
}

// Insert inserts a single document.
func (s *Store) Insert(ctx context.Context, collection string, doc bson.D) error {
	if _, err := s.coll(collection).InsertOne(ctx, doc); err != nil {
		return wrap(db.OpInsert, err)
	}
	return nil
}

// Upsert replaces the document with the given id, inserting it when missing.
func (s *Store) Upsert(ctx context.Context, collection string, id any, doc bson.D) error {
	_, err := s.coll(collection).ReplaceOne(ctx, bson.D{{Key: "_id", Value: id}}, doc,
		options.Replace().SetUpsert(true))
	if err != nil {
		return wrap(db.OpUpsert, err)
	}
	return nil
}

// UpsertMulti replaces many documents in one unordered bulk write.
func (s *Store) UpsertMulti(ctx context.Context, collection string, items []db.UpsertItem) error {
	if len(items) == 0 {
		return nil
	}
	models := make([]mongo.WriteModel, len(items))
	for i, it := range items {
		models[i] = mongo.NewReplaceOneModel().
			SetFilter(bson.D{{Key: "_id", Value: it.ID}}).
			SetReplacement(it.Doc).
			SetUpsert(true)
	}
	if _, err := s.coll(collection).BulkWrite(ctx, models, options.BulkWrite().SetOrdered(false)); err != nil {
		return wrap(db.OpUpsert, err)
	}
	return nil
}

// Delete removes every matching document.
func (s *Store) Delete(ctx context.Context, collection string, filter bson.D) (int64, error) {
	res, err := s.coll(collection).DeleteMany(ctx, nonNil(filter))
	if err != nil {
		return 0, wrap(db.OpDelete, err)
	}
	return res.DeletedCount, nil
}

func nonNil(filter bson.D) bson.D {
	if filter == nil {
		return bson.D{}
	}
	return filter
}

func collationOf(d bson.D) *options.Collation {
	c := &options.Collation{}
	for _, e := range d {
		switch e.Key {
		case "locale":
			c.Locale, _ = e.Value.(string)
		case "caseLevel":
			c.CaseLevel, _ = e.Value.(bool)
		case "caseFirst":
			c.CaseFirst, _ = e.Value.(string)
		case "strength":
			switch n := e.Value.(type) {
			case int32:
				c.Strength = int(n)
			case int:
				c.Strength = n
			case int64:
				c.Strength = int(n)
			}
		case "numericOrdering":
			c.NumericOrdering, _ = e.Value.(bool)
		case "alternate":
			c.Alternate, _ = e.Value.(string)
		case "maxVariable":
			c.MaxVariable, _ = e.Value.(string)
		case "normalization":
			c.Normalization, _ = e.Value.(bool)
		case "backwards":
			c.Backwards, _ = e.Value.(bool)
		}
	}
	return c
}
