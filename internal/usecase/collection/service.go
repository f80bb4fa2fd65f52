package collection

import (
	"context"
	"errors"
	"fmt"
	"slices"

	"go.mongodb.org/mongo-driver/v2/bson"
	"go.uber.org/zap"

	"github.com/kailas-cloud/mongomap/internal/db"
	"github.com/kailas-cloud/mongomap/internal/domain"
)

// Service handles collection lifecycle and schema validators.
type Service struct {
	repo   Repository
	logger *zap.Logger
}

// New creates a collection service.
func New(repo Repository, logger *zap.Logger) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{repo: repo, logger: logger}
}

// Create creates a collection with an optional validator.
func (s *Service) Create(ctx context.Context, name string, validator bson.D) error {
	if name == "" {
		return fmt.Errorf("create collection: %w: empty name", domain.ErrInvalidSchema)
	}
	if err := s.repo.CreateCollection(ctx, name, validator); err != nil {
		if errors.Is(err, db.ErrCollectionExists) {
			return fmt.Errorf("collection %q: %w", name, domain.ErrAlreadyExists)
		}
		return fmt.Errorf("create collection: %w", err)
	}
	return nil
}

// Ensure creates the collection when missing and otherwise replaces its validator, so a
// changed entity schema reaches collections that already exist. Returns true if created.
func (s *Service) Ensure(ctx context.Context, name string, validator bson.D) (bool, error) {
	exists, err := s.repo.CollectionExists(ctx, name)
	if err != nil {
		return false, fmt.Errorf("check collection: %w", err)
	}
	if !exists {
		err = s.repo.CreateCollection(ctx, name, validator)
		switch {
		case err == nil:
			s.logger.Info("Collection created",
				zap.String("collection", name), zap.Bool("validator", len(validator) > 0))
			return true, nil
		case !errors.Is(err, db.ErrCollectionExists):
			return false, fmt.Errorf("create collection: %w", err)
		}
		// created concurrently, fall through to the validator update
	}
	if len(validator) == 0 {
		return false, nil
	}
	if err := s.repo.SetValidator(ctx, name, validator); err != nil {
		return false, fmt.Errorf("set validator: %w", err)
	}
	s.logger.Debug("Collection validator replaced", zap.String("collection", name))
	return false, nil
}

// List returns collection names in sorted order.
func (s *Service) List(ctx context.Context) ([]string, error) {
	names, err := s.repo.ListCollections(ctx)
	if err != nil {
		return nil, fmt.Errorf("list collections: %w", err)
	}
	slices.Sort(names)
	return names, nil
}

// Delete drops a collection. A missing collection is ErrNotFound.
func (s *Service) Delete(ctx context.Context, name string) error {
	exists, err := s.repo.CollectionExists(ctx, name)
	if err != nil {
		return fmt.Errorf("check collection: %w", err)
	}
	if !exists {
		return fmt.Errorf("collection %q: %w", name, domain.ErrNotFound)
	}
	if err := s.repo.DropCollection(ctx, name); err != nil {
		return fmt.Errorf("delete collection: %w", err)
	}
	return nil
}
