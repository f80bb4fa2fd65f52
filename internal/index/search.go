package index

import (
	"errors"
	"fmt"
	"reflect"
	"sort"

	"go.mongodb.org/mongo-driver/v2/bson"

	"github.com/kailas-cloud/mongomap/internal/bsonutil"
	"github.com/kailas-cloud/mongomap/internal/mapping"
)

// SearchType is the kind of an Atlas search index.
type SearchType string

// Search index types.
const (
	SearchTypeSearch SearchType = "search"
	SearchTypeVector SearchType = "vectorSearch"
)

// Similarity functions for vector fields.
const (
	SimilarityEuclidean  = "euclidean"
	SimilarityCosine     = "cosine"
	SimilarityDotProduct = "dotProduct"
)

// Quantization modes for vector fields.
const (
	QuantizationNone   = "none"
	QuantizationScalar = "scalar"
	QuantizationBinary = "binary"
)

// ErrInvalidSearchDefinition is returned for malformed search or vector index definitions.
var ErrInvalidSearchDefinition = errors.New("index: invalid search index definition")

// SearchIndexDefinition describes an Atlas search or vector search index.
type SearchIndexDefinition interface {
	Name() string
	Type() SearchType
	Definition() bson.D
}

// SearchIndexer declares search indexes on an entity type, replacing the ones derived from tags.
type SearchIndexer interface {
	SearchIndexes() []SearchIndexDefinition
}

// VectorField is one field of a vector search index.
type VectorField struct {
	Path         string
	Filter       bool
	Dimensions   int
	Similarity   string
	Quantization string
}

// VectorIndex is a vectorSearch index definition.
type VectorIndex struct {
	name   string
	fields []VectorField
}

// NewVectorIndex starts a vector index definition.
func NewVectorIndex(name string) *VectorIndex {
	return &VectorIndex{name: name}
}

// AddVector adds a vector field. Empty quantization means none.
func (v *VectorIndex) AddVector(path string, dims int, similarity, quantization string) *VectorIndex {
	v.fields = append(v.fields, VectorField{
		Path: path, Dimensions: dims, Similarity: similarity, Quantization: quantization,
	})
	return v
}

// AddFilter adds a pre-filter field.
func (v *VectorIndex) AddFilter(path string) *VectorIndex {
	v.fields = append(v.fields, VectorField{Path: path, Filter: true})
	return v
}

// Fields returns the configured fields.
func (v *VectorIndex) Fields() []VectorField {
	return append([]VectorField(nil), v.fields...)
}

// Name implements SearchIndexDefinition.
func (v *VectorIndex) Name() string { return v.name }

// Type implements SearchIndexDefinition.
func (v *VectorIndex) Type() SearchType { return SearchTypeVector }

// Definition implements SearchIndexDefinition.
func (v *VectorIndex) Definition() bson.D {
	fields := make(bson.A, 0, len(v.fields))
	for _, f := range v.fields {
		if f.Filter {
			fields = append(fields, bson.D{{Key: "type", Value: "filter"}, {Key: "path", Value: f.Path}})
			continue
		}
		d := bson.D{
			{Key: "type", Value: "vector"},
			{Key: "path", Value: f.Path},
			{Key: "numDimensions", Value: int32(f.Dimensions)},
			{Key: "similarity", Value: f.Similarity},
		}
		if f.Quantization != "" && f.Quantization != QuantizationNone {
			d = append(d, bson.E{Key: "quantization", Value: f.Quantization})
		}
		fields = append(fields, d)
	}
	return bson.D{{Key: "fields", Value: fields}}
}

// Validate checks names, dimensions, similarity and quantization.
func (v *VectorIndex) Validate() error {
	if v.name == "" {
		return fmt.Errorf("%w: vector index requires a name", ErrInvalidSearchDefinition)
	}
	vectors := 0
	for _, f := range v.fields {
		if f.Path == "" {
			return fmt.Errorf("%w: field without path", ErrInvalidSearchDefinition)
		}
		if f.Filter {
			continue
		}
		vectors++
		if f.Dimensions <= 0 {
			return fmt.Errorf("%w: %s: dimensions must be positive", ErrInvalidSearchDefinition, f.Path)
		}
		switch f.Similarity {
		case SimilarityEuclidean, SimilarityCosine, SimilarityDotProduct:
		default:
			return fmt.Errorf("%w: %s: unknown similarity %q", ErrInvalidSearchDefinition, f.Path, f.Similarity)
		}
		switch f.Quantization {
		case "", QuantizationNone, QuantizationScalar, QuantizationBinary:
		default:
			return fmt.Errorf("%w: %s: unknown quantization %q", ErrInvalidSearchDefinition, f.Path, f.Quantization)
		}
	}
	if vectors == 0 {
		return fmt.Errorf("%w: %s has no vector field", ErrInvalidSearchDefinition, v.name)
	}
	return nil
}

// SearchFieldType is an Atlas search field mapping type.
type SearchFieldType string

// Search field mapping types.
const (
	SearchString       SearchFieldType = "string"
	SearchNumber       SearchFieldType = "number"
	SearchToken        SearchFieldType = "token"
	SearchAutocomplete SearchFieldType = "autocomplete"
	SearchDate         SearchFieldType = "date"
	SearchBoolean      SearchFieldType = "boolean"
	SearchDocument     SearchFieldType = "document"
)

// SearchIndex is a full-text Atlas search index definition.
type SearchIndex struct {
	name           string
	dynamic        bool
	fields         map[string]SearchFieldType
	analyzer       string
	searchAnalyzer string
}

// NewSearchIndex starts a search index with dynamic mappings.
func NewSearchIndex(name string) *SearchIndex {
	return &SearchIndex{name: name, dynamic: true, fields: map[string]SearchFieldType{}}
}

// Map adds an explicit field mapping and turns dynamic mapping off.
func (s *SearchIndex) Map(field string, t SearchFieldType) *SearchIndex {
	s.fields[field] = t
	s.dynamic = false
	return s
}

// Dynamic toggles dynamic field mapping.
func (s *SearchIndex) Dynamic(on bool) *SearchIndex {
	s.dynamic = on
	return s
}

// Analyzer sets the index analyzer.
func (s *SearchIndex) Analyzer(name string) *SearchIndex {
	s.analyzer = name
	return s
}

// SearchAnalyzer sets the query analyzer.
func (s *SearchIndex) SearchAnalyzer(name string) *SearchIndex {
	s.searchAnalyzer = name
	return s
}

// Name implements SearchIndexDefinition.
func (s *SearchIndex) Name() string { return s.name }

// Type implements SearchIndexDefinition.
func (s *SearchIndex) Type() SearchType { return SearchTypeSearch }

// Definition implements SearchIndexDefinition. Fields are emitted sorted by path.
func (s *SearchIndex) Definition() bson.D {
	mappings := bson.D{{Key: "dynamic", Value: s.dynamic}}
	if len(s.fields) > 0 {
		paths := make([]string, 0, len(s.fields))
		for p := range s.fields {
			paths = append(paths, p)
		}
		sort.Strings(paths)
		fields := make(bson.D, 0, len(paths))
		for _, p := range paths {
			fields = append(fields, bson.E{Key: p, Value: bson.D{{Key: "type", Value: string(s.fields[p])}}})
		}
		mappings = append(mappings, bson.E{Key: "fields", Value: fields})
	}
	d := bson.D{{Key: "mappings", Value: mappings}}
	if s.analyzer != "" {
		d = append(d, bson.E{Key: "analyzer", Value: s.analyzer})
	}
	if s.searchAnalyzer != "" {
		d = append(d, bson.E{Key: "searchAnalyzer", Value: s.searchAnalyzer})
	}
	return d
}

// SearchStatus is the lifecycle state of a search index.
type SearchStatus string

// Search index statuses reported by $listSearchIndexes.
const (
	StatusPending      SearchStatus = "PENDING"
	StatusBuilding     SearchStatus = "BUILDING"
	StatusReady        SearchStatus = "READY"
	StatusFailed       SearchStatus = "FAILED"
	StatusDeleting     SearchStatus = "DELETING"
	StatusStale        SearchStatus = "STALE"
	StatusDoesNotExist SearchStatus = "DOES_NOT_EXIST"
)

// SearchIndexInfo is the parsed form of a $listSearchIndexes entry.
type SearchIndexInfo struct {
	ID         string
	Name       string
	Type       SearchType
	Status     SearchStatus
	Queryable  bool
	Definition bson.D
}

// ParseSearchIndexInfo parses one $listSearchIndexes document.
func ParseSearchIndexInfo(raw bson.Raw) (SearchIndexInfo, error) {
	var d bson.D
	if err := bson.Unmarshal(raw, &d); err != nil {
		return SearchIndexInfo{}, fmt.Errorf("decode search index document: %w", err)
	}
	info := SearchIndexInfo{Type: SearchTypeSearch, Status: StatusPending}
	for _, e := range d {
		switch e.Key {
		case "id":
			info.ID, _ = e.Value.(string)
		case "name":
			info.Name, _ = e.Value.(string)
		case "type":
			if s, ok := e.Value.(string); ok && s != "" {
				info.Type = SearchType(s)
			}
		case "status":
			if s, ok := e.Value.(string); ok && s != "" {
				info.Status = SearchStatus(s)
			}
		case "queryable":
			info.Queryable, _ = e.Value.(bool)
		case "latestDefinition":
			info.Definition, _ = bsonutil.ToD(e.Value)
		}
	}
	if info.Name == "" {
		return SearchIndexInfo{}, fmt.Errorf("%w: search index document has no name", ErrInvalidSearchDefinition)
	}
	return info, nil
}

// ResolveSearchIndexes returns the search indexes for e: the ones it declares through
// SearchIndexer, otherwise one "<collection>_vector" index built from vector and vectorFilter
// directives. Nested embedded properties contribute dot paths.
func ResolveSearchIndexes(e *mapping.Entity) ([]SearchIndexDefinition, error) {
	if !e.Document {
		return nil, fmt.Errorf("%w: %s", ErrNotDocument, e.Name)
	}
	if si, ok := reflect.New(e.Type).Interface().(SearchIndexer); ok {
		return si.SearchIndexes(), nil
	}

	vi := NewVectorIndex(e.Collection + "_vector")
	var collect func(ent *mapping.Entity, prefix string, guard *cycleGuard)
	collect = func(ent *mapping.Entity, prefix string, guard *cycleGuard) {
		for _, p := range ent.Properties {
			path := joinPath(prefix, p.FieldName)
			if v := p.Directives.Vector; v != nil {
				vi.AddVector(path, v.Dimensions, v.Similarity, v.Quantization)
			}
			if p.Directives.VectorFilter {
				vi.AddFilter(path)
			}
			if !p.IsEmbedded() || p.IsMap || !guard.enter(p) {
				continue
			}
			collect(p.Entity(), path, guard)
			guard.leave(p)
		}
	}
	collect(e, "", newCycleGuard())
	if len(vi.fields) == 0 {
		return nil, nil
	}
	if err := vi.Validate(); err != nil {
		return nil, fmt.Errorf("%s: %w", e.Name, err)
	}
	return []SearchIndexDefinition{vi}, nil
}
