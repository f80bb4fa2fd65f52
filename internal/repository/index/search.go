package index

import (
	"context"
	"errors"
	"fmt"

	"go.mongodb.org/mongo-driver/v2/bson"

	"github.com/kailas-cloud/mongomap/internal/db"
	"github.com/kailas-cloud/mongomap/internal/domain"
	domidx "github.com/kailas-cloud/mongomap/internal/index"
)

// searchStore is the consumer interface for Atlas search index management.
type searchStore interface {
	CreateSearchIndexes(ctx context.Context, collection string, models []db.SearchIndexModel) error
	UpdateSearchIndex(ctx context.Context, collection, name string, definition bson.D) error
	DropSearchIndex(ctx context.Context, collection, name string) error
	ListSearchIndexes(ctx context.Context, collection, name string) ([]bson.Raw, error)
}

// SearchRepo implements search and vector search index operations.
type SearchRepo struct {
	store searchStore
}

// NewSearch creates a search index repository.
func NewSearch(s searchStore) *SearchRepo {
	return &SearchRepo{store: s}
}

// Create creates the search index and returns its name.
func (r *SearchRepo) Create(ctx context.Context, collection string, def domidx.SearchIndexDefinition) (string, error) {
	if v, ok := def.(validator); ok {
		if err := v.Validate(); err != nil {
			return "", fmt.Errorf("%w: %w", domain.ErrInvalidSchema, err)
		}
	}
	model := db.SearchIndexModel{Name: def.Name(), Type: string(def.Type()), Definition: def.Definition()}
	if err := r.store.CreateSearchIndexes(ctx, collection, []db.SearchIndexModel{model}); err != nil {
		return "", searchErr("create", collection, def.Name(), err)
	}
	return def.Name(), nil
}

// Update replaces the definition of an existing search index.
func (r *SearchRepo) Update(ctx context.Context, collection string, def domidx.SearchIndexDefinition) error {
	if err := r.store.UpdateSearchIndex(ctx, collection, def.Name(), def.Definition()); err != nil {
		return searchErr("update", collection, def.Name(), err)
	}
	return nil
}

// Drop removes the named search index.
func (r *SearchRepo) Drop(ctx context.Context, collection, name string) error {
	if err := r.store.DropSearchIndex(ctx, collection, name); err != nil {
		return searchErr("drop", collection, name, err)
	}
	return nil
}

// DropAll removes every search index of collection.
func (r *SearchRepo) DropAll(ctx context.Context, collection string) error {
	infos, err := r.List(ctx, collection)
	if err != nil {
		return err
	}
	var errs []error
	for _, info := range infos {
		if err := r.Drop(ctx, collection, info.Name); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// List returns all search indexes of collection.
func (r *SearchRepo) List(ctx context.Context, collection string) ([]domidx.SearchIndexInfo, error) {
	return r.list(ctx, collection, "")
}

// Exists reports whether the named search index exists.
func (r *SearchRepo) Exists(ctx context.Context, collection, name string) (bool, error) {
	infos, err := r.list(ctx, collection, name)
	if err != nil {
		return false, err
	}
	return len(infos) > 0, nil
}

// Status returns the lifecycle state of the named search index, DOES_NOT_EXIST when missing.
func (r *SearchRepo) Status(ctx context.Context, collection, name string) (domidx.SearchStatus, error) {
	infos, err := r.list(ctx, collection, name)
	if err != nil {
		return "", err
	}
	if len(infos) == 0 {
		return domidx.StatusDoesNotExist, nil
	}
	return infos[0].Status, nil
}

func (r *SearchRepo) list(ctx context.Context, collection, name string) ([]domidx.SearchIndexInfo, error) {
	raws, err := r.store.ListSearchIndexes(ctx, collection, name)
	if err != nil {
		return nil, searchErr("list", collection, name, err)
	}
	out := make([]domidx.SearchIndexInfo, 0, len(raws))
	for _, raw := range raws {
		info, err := domidx.ParseSearchIndexInfo(raw)
		if err != nil {
			return nil, fmt.Errorf("list search indexes %s: %w", collection, err)
		}
		out = append(out, info)
	}
	return out, nil
}

func searchErr(op, collection, name string, err error) error {
	if errors.Is(err, db.ErrSearchNotEnabled) {
		return fmt.Errorf("%s search index %s.%s: %w: %w", op, collection, name, domain.ErrSearchNotSupported, err)
	}
	return fmt.Errorf("%s search index %s.%s: %w", op, collection, name, err)
}
