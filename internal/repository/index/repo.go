package index

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/v2/bson"

	"github.com/kailas-cloud/mongomap/internal/db"
	"github.com/kailas-cloud/mongomap/internal/domain"
	domidx "github.com/kailas-cloud/mongomap/internal/index"
)

// store is the consumer interface for index management (ISP).
type store interface {
	CreateIndexes(ctx context.Context, collection string, models []bson.D) error
	DropIndex(ctx context.Context, collection, name string) error
	DropIndexes(ctx context.Context, collection string) error
	ListIndexes(ctx context.Context, collection string) ([]bson.Raw, error)
	ModifyIndex(ctx context.Context, collection, name string, changes bson.D) error
}

type validator interface {
	Validate() error
}

// AlterOptions are the index properties that can change without a rebuild.
type AlterOptions struct {
	Hidden      *bool
	ExpireAfter *time.Duration
}

func (o AlterOptions) document() bson.D {
	var d bson.D
	if o.Hidden != nil {
		d = append(d, bson.E{Key: "hidden", Value: *o.Hidden})
	}
	if o.ExpireAfter != nil {
		d = append(d, bson.E{Key: "expireAfterSeconds", Value: int64(*o.ExpireAfter / time.Second)})
	}
	return d
}

// Repo implements index operations per collection.
type Repo struct {
	store store
}

// New creates an index repository.
func New(s store) *Repo {
	return &Repo{store: s}
}

// Ensure creates the index described by def, returning its name. Creating an identical
// existing index is a no-op on the server; clashing definitions yield an IndexConflictError.
func (r *Repo) Ensure(ctx context.Context, collection string, def domidx.Definition) (string, error) {
	if v, ok := def.(validator); ok {
		if err := v.Validate(); err != nil {
			return "", fmt.Errorf("%w: %w", domain.ErrInvalidSchema, err)
		}
	}
	name := domidx.NameOf(def)
	if err := r.store.CreateIndexes(ctx, collection, []bson.D{domidx.Model(def)}); err != nil {
		if errors.Is(err, db.ErrIndexConflict) {
			return "", domain.NewIndexConflict(collection, name, err)
		}
		return "", fmt.Errorf("create index %s.%s: %w", collection, name, err)
	}
	return name, nil
}

// Drop removes the named index.
func (r *Repo) Drop(ctx context.Context, collection, name string) error {
	if err := r.store.DropIndex(ctx, collection, name); err != nil {
		if errors.Is(err, db.ErrIndexNotFound) {
			return fmt.Errorf("%s.%s: %w", collection, name, domain.ErrIndexNotFound)
		}
		return fmt.Errorf("drop index %s.%s: %w", collection, name, err)
	}
	return nil
}

// DropAll removes every index but _id.
func (r *Repo) DropAll(ctx context.Context, collection string) error {
	if err := r.store.DropIndexes(ctx, collection); err != nil {
		return fmt.Errorf("drop indexes %s: %w", collection, err)
	}
	return nil
}

// List returns the parsed indexes of collection in server order.
func (r *Repo) List(ctx context.Context, collection string) ([]domidx.Info, error) {
	raws, err := r.store.ListIndexes(ctx, collection)
	if err != nil {
		return nil, fmt.Errorf("list indexes %s: %w", collection, err)
	}
	out := make([]domidx.Info, 0, len(raws))
	for _, raw := range raws {
		info, err := domidx.ParseInfoRaw(raw)
		if err != nil {
			return nil, fmt.Errorf("list indexes %s: %w", collection, err)
		}
		out = append(out, info)
	}
	return out, nil
}

// Get returns the named index.
func (r *Repo) Get(ctx context.Context, collection, name string) (domidx.Info, error) {
	infos, err := r.List(ctx, collection)
	if err != nil {
		return domidx.Info{}, err
	}
	for _, info := range infos {
		if info.Name == name {
			return info, nil
		}
	}
	return domidx.Info{}, fmt.Errorf("%s.%s: %w", collection, name, domain.ErrIndexNotFound)
}

// Alter changes mutable index properties through collMod.
func (r *Repo) Alter(ctx context.Context, collection, name string, opts AlterOptions) error {
	changes := opts.document()
	if len(changes) == 0 {
		return nil
	}
	if err := r.store.ModifyIndex(ctx, collection, name, changes); err != nil {
		if errors.Is(err, db.ErrIndexNotFound) {
			return fmt.Errorf("%s.%s: %w", collection, name, domain.ErrIndexNotFound)
		}
		return fmt.Errorf("alter index %s.%s: %w", collection, name, err)
	}
	return nil
}
