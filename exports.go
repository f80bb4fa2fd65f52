package mongomap

import (
	"go.mongodb.org/mongo-driver/v2/bson"

	"github.com/kailas-cloud/mongomap/internal/index"
	"github.com/kailas-cloud/mongomap/internal/mapping"
	"github.com/kailas-cloud/mongomap/internal/query"
	"github.com/kailas-cloud/mongomap/internal/reference"
	"github.com/kailas-cloud/mongomap/internal/schema"
)

// Entity-level declarations. Implement them on the document type.
type (
	CollectionNamer   = mapping.CollectionNamer
	CompoundIndexer   = mapping.CompoundIndexer
	WildcardIndexer   = mapping.WildcardIndexer
	LanguageDefaulter = mapping.LanguageDefaulter
	SearchIndexer     = index.SearchIndexer

	CompoundIndexSpec = mapping.CompoundIndexSpec
	WildcardSpec      = mapping.WildcardSpec
)

// Search index definitions returned by SearchIndexer.
type (
	SearchIndexDefinition = index.SearchIndexDefinition
	VectorIndex           = index.VectorIndex
	SearchIndex           = index.SearchIndex
	SearchFieldType       = index.SearchFieldType
)

// NewVectorIndex starts a vectorSearch index definition.
func NewVectorIndex(name string) *VectorIndex { return index.NewVectorIndex(name) }

// NewSearchIndex starts an Atlas search index definition with dynamic mappings.
func NewSearchIndex(name string) *SearchIndex { return index.NewSearchIndex(name) }

// Queries.
type (
	Query     = query.Query
	Criteria  = query.Criteria
	Order     = query.Order
	Direction = query.Direction
	Point     = query.Point
)

// Sort directions.
const (
	Asc  = query.Asc
	Desc = query.Desc
)

// NewQuery creates a query from criteria chains.
func NewQuery(criteria ...*Criteria) *Query { return query.New(criteria...) }

// QueryFromFilter wraps a raw filter document.
func QueryFromFilter(filter bson.D) *Query { return query.FromFilter(filter) }

// Where starts a criteria chain on a document path.
func Where(key string) *Criteria { return query.Where(key) }

// Or joins criteria with $or.
func Or(cs ...*Criteria) *Criteria { return query.Or(cs...) }

// And joins criteria with $and.
func And(cs ...*Criteria) *Criteria { return query.And(cs...) }

// Query by example.
type (
	Example         = query.Example
	ExampleMatcher  = query.ExampleMatcher
	PropertyMatcher = query.PropertyMatcher
	StringMatcher   = query.StringMatcher
)

// String matchers.
const (
	MatchDefault    = query.MatchDefault
	MatchExact      = query.MatchExact
	MatchStarting   = query.MatchStarting
	MatchEnding     = query.MatchEnding
	MatchContaining = query.MatchContaining
	MatchRegex      = query.MatchRegex
)

// ExampleOf creates an example matching all populated fields of probe.
func ExampleOf(probe any) Example { return query.ExampleOf(probe) }

// MatchingAll requires every populated field to match.
func MatchingAll() ExampleMatcher { return query.MatchingAll() }

// MatchingAny requires at least one populated field to match.
func MatchingAny() ExampleMatcher { return query.MatchingAny() }

// Lazy is a reference loaded on first Get.
type Lazy[T any] = reference.Lazy[T]

// LazyOf returns a loaded Lazy holding v, for assigning references before a save.
func LazyOf[T any](v T) *Lazy[T] { return reference.Of(v) }

// JSONSchema is a collection validator derived from a mapped type.
type JSONSchema = schema.JSONSchema
