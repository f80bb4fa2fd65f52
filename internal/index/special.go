package index

import (
	"fmt"
	"strings"

	"go.mongodb.org/mongo-driver/v2/bson"

	"github.com/kailas-cloud/mongomap/internal/bsonutil"
)

// GeoType is the kind of a geospatial index.
type GeoType string

const (
	// Geo2D is a legacy flat-coordinate index.
	Geo2D GeoType = "2d"
	// Geo2DSphere is a spherical (GeoJSON) index.
	Geo2DSphere GeoType = "2dsphere"
)

// GeospatialIndex indexes a location field.
type GeospatialIndex struct {
	field     string
	geoType   GeoType
	name      string
	min, max  *float64
	bits      int
	partial   bson.D
	collation *Collation
}

// NewGeospatialIndex creates a 2d index on field. Use Typed to switch to 2dsphere.
func NewGeospatialIndex(field string) *GeospatialIndex {
	return &GeospatialIndex{field: field, geoType: Geo2D}
}

// Typed sets the geo index type.
func (g *GeospatialIndex) Typed(t GeoType) *GeospatialIndex {
	g.geoType = t
	return g
}

// Named sets the index name.
func (g *GeospatialIndex) Named(name string) *GeospatialIndex {
	g.name = name
	return g
}

// WithMin sets the lower coordinate bound (2d only).
func (g *GeospatialIndex) WithMin(v float64) *GeospatialIndex {
	g.min = &v
	return g
}

// WithMax sets the upper coordinate bound (2d only).
func (g *GeospatialIndex) WithMax(v float64) *GeospatialIndex {
	g.max = &v
	return g
}

// WithBits sets the geohash precision (2d only).
func (g *GeospatialIndex) WithBits(bits int) *GeospatialIndex {
	g.bits = bits
	return g
}

// PartialFilter restricts the index to documents matching filter.
func (g *GeospatialIndex) PartialFilter(filter bson.D) *GeospatialIndex {
	g.partial = filter
	return g
}

// Collation sets the index collation.
func (g *GeospatialIndex) Collation(c Collation) *GeospatialIndex {
	g.collation = &c
	return g
}

// IndexKeys implements Definition.
func (g *GeospatialIndex) IndexKeys() bson.D {
	return bson.D{{Key: g.field, Value: string(g.geoType)}}
}

// IndexOptions implements Definition.
func (g *GeospatialIndex) IndexOptions() bson.D {
	d := commonOptions{name: g.name, partialFilter: g.partial, collation: g.collation}.document()
	if g.geoType != Geo2D {
		return d
	}
	if g.min != nil {
		d = append(d, bson.E{Key: "min", Value: *g.min})
	}
	if g.max != nil {
		d = append(d, bson.E{Key: "max", Value: *g.max})
	}
	if g.bits > 0 {
		d = append(d, bson.E{Key: "bits", Value: int32(g.bits)})
	}
	return d
}

// Validate checks option compatibility with the geo type.
func (g *GeospatialIndex) Validate() error {
	if g.field == "" {
		return fmt.Errorf("%w: geo index requires a field", ErrInvalidDefinition)
	}
	if g.geoType != Geo2D && (g.min != nil || g.max != nil || g.bits > 0) {
		return fmt.Errorf("%w: min, max and bits only apply to 2d indexes", ErrInvalidDefinition)
	}
	if g.min != nil && g.max != nil && *g.min >= *g.max {
		return fmt.Errorf("%w: min must be lower than max", ErrInvalidDefinition)
	}
	return nil
}

// HashedIndex is a hashed index on a single field.
type HashedIndex struct {
	field string
	name  string
}

// NewHashedIndex creates a hashed index on field.
func NewHashedIndex(field string) *HashedIndex {
	return &HashedIndex{field: field}
}

// Named sets the index name.
func (h *HashedIndex) Named(name string) *HashedIndex {
	h.name = name
	return h
}

// IndexKeys implements Definition.
func (h *HashedIndex) IndexKeys() bson.D {
	return bson.D{{Key: h.field, Value: "hashed"}}
}

// IndexOptions implements Definition.
func (h *HashedIndex) IndexOptions() bson.D {
	return commonOptions{name: h.name}.document()
}

// WildcardIndex indexes all fields ($**) or all fields below a path (path.$**).
type WildcardIndex struct {
	path       string
	name       string
	projection bson.D
	partial    bson.D
	collation  *Collation
}

// NewWildcardIndex creates a wildcard index. An empty path indexes the whole document.
func NewWildcardIndex(path string) *WildcardIndex {
	return &WildcardIndex{path: path}
}

// Named sets the index name.
func (w *WildcardIndex) Named(name string) *WildcardIndex {
	w.name = name
	return w
}

// WildcardProjection includes (1) or excludes (0) paths. Only valid on the root wildcard.
func (w *WildcardIndex) WildcardProjection(projection bson.D) *WildcardIndex {
	w.projection = projection
	return w
}

// PartialFilter restricts the index to documents matching filter.
func (w *WildcardIndex) PartialFilter(filter bson.D) *WildcardIndex {
	w.partial = filter
	return w
}

// Collation sets the index collation.
func (w *WildcardIndex) Collation(c Collation) *WildcardIndex {
	w.collation = &c
	return w
}

// Key returns the wildcard key ($** or path.$**).
func (w *WildcardIndex) Key() string {
	if w.path == "" {
		return "$**"
	}
	return w.path + ".$**"
}

// IndexKeys implements Definition.
func (w *WildcardIndex) IndexKeys() bson.D {
	return bson.D{{Key: w.Key(), Value: int32(1)}}
}

// IndexOptions implements Definition.
func (w *WildcardIndex) IndexOptions() bson.D {
	d := commonOptions{name: w.name, partialFilter: w.partial, collation: w.collation}.document()
	if len(w.projection) > 0 {
		d = append(d, bson.E{Key: "wildcardProjection", Value: w.projection})
	}
	return d
}

// Validate rejects projections on path-scoped wildcard indexes.
func (w *WildcardIndex) Validate() error {
	if w.path != "" && len(w.projection) > 0 {
		return fmt.Errorf("%w: wildcardProjection is only allowed on the root wildcard index, not on %q",
			ErrInvalidDefinition, w.Key())
	}
	return nil
}

// CompoundIndex is an index whose keys come from a JSON definition.
type CompoundIndex struct {
	Index
}

// NewCompoundIndex parses a relaxed JSON key document such as `{'lastname': 1, 'age': -1}`.
// Values may be 1, -1 or one of the special index types ("2dsphere", "text", "hashed").
func NewCompoundIndex(def string) (*CompoundIndex, error) {
	keys, err := bsonutil.ParseRelaxed(def)
	if err != nil {
		return nil, fmt.Errorf("%w: compound index: %w", ErrInvalidDefinition, err)
	}
	if len(keys) == 0 {
		return nil, fmt.Errorf("%w: compound index %q has no keys", ErrInvalidDefinition, def)
	}
	for i, k := range keys {
		switch v := k.Value.(type) {
		case string:
			if !isSpecialKeyType(v) {
				return nil, fmt.Errorf("%w: %q: %q", ErrUnsupportedKey, k.Key, v)
			}
		default:
			n, ok := bsonutil.ToInt64(v)
			if !ok || (n != 1 && n != -1) {
				return nil, fmt.Errorf("%w: %q: %v", ErrUnsupportedKey, k.Key, v)
			}
			keys[i].Value = int32(n)
		}
	}
	return &CompoundIndex{Index: Index{keys: keys}}, nil
}

// Prefixed returns a copy with every key moved below path.
func (c *CompoundIndex) Prefixed(path string) *CompoundIndex {
	if path == "" {
		return c
	}
	cp := *c
	cp.keys = make(bson.D, len(c.keys))
	for i, k := range c.keys {
		cp.keys[i] = bson.E{Key: path + "." + k.Key, Value: k.Value}
	}
	return &cp
}

func isSpecialKeyType(v string) bool {
	switch strings.ToLower(v) {
	case "2d", "2dsphere", "text", "hashed":
		return true
	}
	return false
}
