package document

import (
	"context"
	"errors"
	"fmt"

	"go.mongodb.org/mongo-driver/v2/bson"

	"github.com/kailas-cloud/mongomap/internal/db"
	"github.com/kailas-cloud/mongomap/internal/domain"
)

// store is the consumer interface for documents (ISP).
type store interface {
	Find(ctx context.Context, collection string, filter bson.D, opts db.FindOptions) ([]bson.Raw, error)
	FindOne(ctx context.Context, collection string, filter bson.D) (bson.Raw, error)
	Count(ctx context.Context, collection string, filter bson.D) (int64, error)
	Upsert(ctx context.Context, collection string, id any, doc bson.D) error
	UpsertMulti(ctx context.Context, collection string, items []db.UpsertItem) error
	Delete(ctx context.Context, collection string, filter bson.D) (int64, error)
}

// Repo implements usecase/document.Repository.
type Repo struct {
	store store
}

// New creates a document repository.
func New(s store) *Repo {
	return &Repo{store: s}
}

// Upsert replaces the document stored under id, inserting it when missing.
func (r *Repo) Upsert(ctx context.Context, collection string, id any, doc bson.D) error {
	if err := r.store.Upsert(ctx, collection, id, doc); err != nil {
		return fmt.Errorf("upsert %s: %w", collection, err)
	}
	return nil
}

// BatchUpsert replaces many documents in one bulk write.
func (r *Repo) BatchUpsert(ctx context.Context, collection string, items []db.UpsertItem) error {
	if err := r.store.UpsertMulti(ctx, collection, items); err != nil {
		return fmt.Errorf("batch upsert %s (%d docs): %w", collection, len(items), err)
	}
	return nil
}

// Get returns the document with the given id.
func (r *Repo) Get(ctx context.Context, collection string, id any) (bson.Raw, error) {
	raw, err := r.store.FindOne(ctx, collection, byID(id))
	if err != nil {
		if errors.Is(err, db.ErrNotFound) {
			return nil, domain.ErrDocumentNotFound
		}
		return nil, fmt.Errorf("find %s by id: %w", collection, err)
	}
	return raw, nil
}

// Find returns documents matching filter in server order.
func (r *Repo) Find(ctx context.Context, collection string, filter bson.D, opts db.FindOptions) ([]bson.Raw, error) {
	docs, err := r.store.Find(ctx, collection, filter, opts)
	if err != nil {
		return nil, fmt.Errorf("find %s: %w", collection, err)
	}
	return docs, nil
}

// Count returns the number of documents matching filter.
func (r *Repo) Count(ctx context.Context, collection string, filter bson.D) (int64, error) {
	n, err := r.store.Count(ctx, collection, filter)
	if err != nil {
		return 0, fmt.Errorf("count %s: %w", collection, err)
	}
	return n, nil
}

// Exists reports whether any document matches filter, fetching at most one id.
func (r *Repo) Exists(ctx context.Context, collection string, filter bson.D) (bool, error) {
	docs, err := r.store.Find(ctx, collection, filter, db.FindOptions{
		Limit:      1,
		Projection: bson.D{{Key: "_id", Value: 1}},
	})
	if err != nil {
		return false, fmt.Errorf("exists %s: %w", collection, err)
	}
	return len(docs) > 0, nil
}

// Delete removes every document matching filter and reports how many were removed.
func (r *Repo) Delete(ctx context.Context, collection string, filter bson.D) (int64, error) {
	n, err := r.store.Delete(ctx, collection, filter)
	if err != nil {
		return 0, fmt.Errorf("delete %s: %w", collection, err)
	}
	return n, nil
}

// DeleteByID removes the document with id. A missing document is ErrDocumentNotFound.
func (r *Repo) DeleteByID(ctx context.Context, collection string, id any) error {
	n, err := r.Delete(ctx, collection, byID(id))
	if err != nil {
		return err
	}
	if n == 0 {
		return domain.ErrDocumentNotFound
	}
	return nil
}

func byID(id any) bson.D {
	return bson.D{{Key: "_id", Value: id}}
}
