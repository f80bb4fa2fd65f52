package mongodb

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"

	"github.com/kailas-cloud/mongomap/internal/db"
)

// Compile-time check: Store implements db.Store.
var _ db.Store = (*Store)(nil)

// Server error codes mapped to db sentinels.
const (
	codeNamespaceNotFound    = 26
	codeIndexNotFound        = 27
	codeNamespaceExists      = 48
	codeIndexOptionsConflict = 85
	codeIndexKeySpecConflict = 86
	codeSearchNotEnabled     = 31082
	codeDuplicateKey         = 11000
)

// Config holds connection parameters for a MongoDB store.
type Config struct {
	URI            string
	Database       string
	AppName        string
	ConnectTimeout time.Duration
}

// Store implements db.Store via the official MongoDB driver.
type Store struct {
	client   *mongo.Client
	database *mongo.Database
}

// NewStore connects lazily; use WaitForReady to block until the deployment answers.
func NewStore(cfg Config) (*Store, error) {
	if cfg.URI == "" {
		return nil, fmt.Errorf("uri is required")
	}
	if cfg.Database == "" {
		return nil, fmt.Errorf("database is required")
	}

	opts := options.Client().ApplyURI(cfg.URI)
	if cfg.AppName != "" {
		opts.SetAppName(cfg.AppName)
	}
	if cfg.ConnectTimeout > 0 {
		opts.SetConnectTimeout(cfg.ConnectTimeout)
	}
	client, err := mongo.Connect(opts)
	if err != nil {
		return nil, fmt.Errorf("failed to create client: %w", err)
	}

	return &Store{client: client, database: client.Database(cfg.Database)}, nil
}

// Ping checks connectivity.
func (s *Store) Ping(ctx context.Context) error {
	if err := s.client.Ping(ctx, nil); err != nil {
		return &db.Error{Op: db.OpPing, Err: err}
	}
	return nil
}

// Close disconnects the client.
func (s *Store) Close(ctx context.Context) error {
	if err := s.client.Disconnect(ctx); err != nil {
		return fmt.Errorf("disconnect: %w", err)
	}
	return nil
}

// WaitForReady blocks until the deployment answers a ping or timeout expires.
func (s *Store) WaitForReady(ctx context.Context, timeout time.Duration) error {
	return db.WaitReady(ctx, "database", timeout, s.Ping)
}

func (s *Store) coll(name string) *mongo.Collection {
	return s.database.Collection(name)
}

func (s *Store) run(ctx context.Context, op string, cmd bson.D) error {
	if err := s.database.RunCommand(ctx, cmd).Err(); err != nil {
		return wrap(op, err)
	}
	return nil
}

// drain copies every document of cur; cur.Current is only valid until the next call.
func drain(ctx context.Context, cur *mongo.Cursor) ([]bson.Raw, error) {
	defer func() { _ = cur.Close(ctx) }()
	var out []bson.Raw
	for cur.Next(ctx) {
		out = append(out, append(bson.Raw(nil), cur.Current...))
	}
	if err := cur.Err(); err != nil {
		return nil, err
	}
	return out, nil
}

// wrap maps driver errors onto db sentinels and tags them with the operation.
func wrap(op string, err error) error {
	if err == nil {
		return nil
	}
	switch {
	case errors.Is(err, mongo.ErrNoDocuments):
		return db.ErrNotFound
	case mongo.IsDuplicateKeyError(err):
		return &db.Error{Op: op, Err: fmt.Errorf("%w: %w", db.ErrDuplicateKey, err)}
	}

	var se mongo.ServerError
	if errors.As(err, &se) {
		switch {
		case se.HasErrorCode(codeIndexOptionsConflict), se.HasErrorCode(codeIndexKeySpecConflict):
			return &db.Error{Op: op, Err: fmt.Errorf("%w: %w", db.ErrIndexConflict, err)}
		case se.HasErrorCode(codeIndexNotFound):
			return &db.Error{Op: op, Err: fmt.Errorf("%w: %w", db.ErrIndexNotFound, err)}
		case se.HasErrorCode(codeNamespaceExists):
			return &db.Error{Op: op, Err: fmt.Errorf("%w: %w", db.ErrCollectionExists, err)}
		case se.HasErrorCode(codeSearchNotEnabled):
			return &db.Error{Op: op, Err: fmt.Errorf("%w: %w", db.ErrSearchNotEnabled, err)}
		}
	}
	return &db.Error{Op: op, Err: err}
}

func isNamespaceNotFound(err error) bool {
	var se mongo.ServerError
	return errors.As(err, &se) && se.HasErrorCode(codeNamespaceNotFound)
}
