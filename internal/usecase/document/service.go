package document

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/v2/bson"
	"go.uber.org/zap"

	"github.com/kailas-cloud/mongomap/internal/db"
	"github.com/kailas-cloud/mongomap/internal/domain"
	"github.com/kailas-cloud/mongomap/internal/metrics"
)

// DefaultMaxBatchSize is the number of documents per bulk write.
const DefaultMaxBatchSize = 500

// Service runs document reads and writes, timing each store call and keeping the reference
// cache consistent with writes.
type Service struct {
	repo         Repository
	inv          Invalidator
	logger       *zap.Logger
	maxBatchSize int
}

// New creates a document service. inv can be nil.
func New(repo Repository, inv Invalidator, logger *zap.Logger) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{repo: repo, inv: inv, logger: logger, maxBatchSize: DefaultMaxBatchSize}
}

// WithMaxBatchSize configures the bulk write chunk size.
func (s *Service) WithMaxBatchSize(size int) *Service {
	if size > 0 {
		s.maxBatchSize = size
	}
	return s
}

// Save replaces the document stored under id, inserting it when missing.
func (s *Service) Save(ctx context.Context, collection string, id any, doc bson.D) (err error) {
	defer s.observe(collection, "save", time.Now(), &err)

	if err = s.repo.Upsert(ctx, collection, id, doc); err != nil {
		return fmt.Errorf("save document: %w", err)
	}
	s.invalidate(ctx, collection)
	return nil
}

// SaveMany writes items in bulk chunks. On failure the chunks before the failing one stay
// written; the error reports how many items were stored.
func (s *Service) SaveMany(ctx context.Context, collection string, items []db.UpsertItem) (err error) {
	defer s.observe(collection, "save_many", time.Now(), &err)

	if len(items) == 0 {
		return nil
	}
	written := 0
	for offset := 0; offset < len(items); offset += s.maxBatchSize {
		end := min(offset+s.maxBatchSize, len(items))
		if err = s.repo.BatchUpsert(ctx, collection, items[offset:end]); err != nil {
			if written > 0 {
				s.invalidate(ctx, collection)
			}
			return fmt.Errorf("save documents (%d of %d written): %w", written, len(items), err)
		}
		written = end
	}
	s.invalidate(ctx, collection)
	return nil
}

// Get returns the document with the given id.
func (s *Service) Get(ctx context.Context, collection string, id any) (raw bson.Raw, err error) {
	defer s.observe(collection, "get", time.Now(), &err)

	raw, err = s.repo.Get(ctx, collection, id)
	if err != nil {
		return nil, fmt.Errorf("get document: %w", err)
	}
	return raw, nil
}

// Find returns the documents matching filter.
func (s *Service) Find(ctx context.Context, collection string, filter bson.D, opts db.FindOptions) (docs []bson.Raw, err error) {
	defer s.observe(collection, "find", time.Now(), &err)

	docs, err = s.repo.Find(ctx, collection, filter, opts)
	if err != nil {
		return nil, fmt.Errorf("find documents: %w", err)
	}
	return docs, nil
}

// Count returns the number of documents matching filter.
func (s *Service) Count(ctx context.Context, collection string, filter bson.D) (n int64, err error) {
	defer s.observe(collection, "count", time.Now(), &err)

	n, err = s.repo.Count(ctx, collection, filter)
	if err != nil {
		return 0, fmt.Errorf("count documents: %w", err)
	}
	return n, nil
}

// Exists reports whether any document matches filter.
func (s *Service) Exists(ctx context.Context, collection string, filter bson.D) (ok bool, err error) {
	defer s.observe(collection, "exists", time.Now(), &err)

	ok, err = s.repo.Exists(ctx, collection, filter)
	if err != nil {
		return false, fmt.Errorf("check documents: %w", err)
	}
	return ok, nil
}

// Delete removes the documents matching filter and returns how many were removed.
func (s *Service) Delete(ctx context.Context, collection string, filter bson.D) (n int64, err error) {
	defer s.observe(collection, "delete", time.Now(), &err)

	n, err = s.repo.Delete(ctx, collection, filter)
	if err != nil {
		return 0, fmt.Errorf("delete documents: %w", err)
	}
	if n > 0 {
		s.invalidate(ctx, collection)
	}
	return n, nil
}

// DeleteByID removes one document. A missing document is ErrDocumentNotFound.
func (s *Service) DeleteByID(ctx context.Context, collection string, id any) (err error) {
	defer s.observe(collection, "delete_by_id", time.Now(), &err)

	if err = s.repo.DeleteByID(ctx, collection, id); err != nil {
		return fmt.Errorf("delete document: %w", err)
	}
	s.invalidate(ctx, collection)
	return nil
}

// invalidate drops cached references into collection. A cache failure only risks stale reads
// until the entries expire, so it is logged.
func (s *Service) invalidate(ctx context.Context, collection string) {
	if s.inv == nil {
		return
	}
	if err := s.inv.Invalidate(ctx, collection); err != nil {
		s.logger.Warn("Failed to invalidate reference cache",
			zap.String("collection", collection), zap.Error(err))
	}
}

func (s *Service) observe(collection, op string, start time.Time, errp *error) {
	status := "ok"
	switch {
	case *errp == nil:
	case errors.Is(*errp, domain.ErrDocumentNotFound):
		status = "not_found"
	default:
		status = "error"
	}
	metrics.RepositoryOpDuration.WithLabelValues(collection, op, status).Observe(time.Since(start).Seconds())
}
