package db

import "errors"

// Sentinel errors for database operations.
var (
	ErrNotFound         = errors.New("db: document not found")
	ErrDuplicateKey     = errors.New("db: duplicate key")
	ErrIndexNotFound    = errors.New("db: index not found")
	ErrIndexConflict    = errors.New("db: index conflicts with an existing index")
	ErrCollectionExists = errors.New("db: collection already exists")
	ErrSearchNotEnabled = errors.New("db: search indexes are not supported by this deployment")
)

// Op constants map to MongoDB and Redis command names for error context.
const (
	OpPing                = "ping"
	OpFind                = "find"
	OpCount               = "count"
	OpAggregate           = "aggregate"
	OpInsert              = "insert"
	OpUpsert              = "update"
	OpDelete              = "delete"
	OpCreateIndexes       = "createIndexes"
	OpDropIndexes         = "dropIndexes"
	OpListIndexes         = "listIndexes"
	OpCollMod             = "collMod"
	OpCreateSearchIndexes = "createSearchIndexes"
	OpUpdateSearchIndex   = "updateSearchIndex"
	OpDropSearchIndex     = "dropSearchIndex"
	OpListSearchIndexes   = "$listSearchIndexes"
	OpCreateCollection    = "create"
	OpDropCollection      = "drop"
	OpListCollections     = "listCollections"

	// Cache commands (Redis).
	OpCachePing   = "PING"
	OpCacheGet    = "GET"
	OpCacheSet    = "SET"
	OpCacheDel    = "DEL"
	OpCacheScan   = "SCAN"
	OpCacheIncrBy = "INCRBY"
	OpCacheExpire = "EXPIRE"
)

// Error wraps an underlying error with the operation name for diagnostics.
type Error struct {
	Op  string
	Err error
}

func (e *Error) Error() string { return e.Op + ": " + e.Err.Error() }
func (e *Error) Unwrap() error { return e.Err }
