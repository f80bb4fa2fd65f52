package index

import (
	"fmt"
	"strings"
	"time"

	"go.mongodb.org/mongo-driver/v2/bson"

	"github.com/kailas-cloud/mongomap/internal/bsonutil"
)

// FieldType classifies a key of an existing index.
type FieldType string

// Index field types as reported by the server.
const (
	FieldDefault  FieldType = "default"
	FieldGeo      FieldType = "geo"
	FieldText     FieldType = "text"
	FieldHashed   FieldType = "hashed"
	FieldWildcard FieldType = "wildcard"
)

// Field is one key of an index returned by listIndexes.
type Field struct {
	Key       string
	Type      FieldType
	Direction Direction // set for default and wildcard fields
	GeoType   GeoType   // set for geo fields
	Weight    float64   // set for text fields
}

// IsGeo reports whether the field is a geospatial key.
func (f Field) IsGeo() bool { return f.Type == FieldGeo }

// Info is the parsed form of an index document returned by the server.
type Info struct {
	Name                    string
	Fields                  []Field
	Unique                  bool
	Sparse                  bool
	Hidden                  bool
	Language                string
	LanguageOverride        string
	PartialFilterExpression bson.D
	Collation               *Collation
	ExpireAfter             *time.Duration
	WildcardProjection      bson.D
	Version                 int
}

// ParseInfoRaw parses a raw index document.
func ParseInfoRaw(raw bson.Raw) (Info, error) {
	var d bson.D
	if err := bson.Unmarshal(raw, &d); err != nil {
		return Info{}, fmt.Errorf("decode index document: %w", err)
	}
	return ParseInfo(d)
}

// ParseInfo parses an index document such as
// {v: 2, key: {lastname: 1}, name: "lastname_1", unique: true}.
func ParseInfo(d bson.D) (Info, error) {
	keysVal, ok := bsonutil.Get(d, "key")
	if !ok {
		return Info{}, fmt.Errorf("%w: index document has no key", ErrInvalidDefinition)
	}
	keys, ok := bsonutil.ToD(keysVal)
	if !ok {
		return Info{}, fmt.Errorf("%w: key is not a document", ErrInvalidDefinition)
	}

	info := Info{}
	if v, ok := bsonutil.Get(d, "name"); ok {
		info.Name, _ = v.(string)
	}

	weights, _ := optionalD(d, "weights")
	fields, err := parseFields(keys, weights)
	if err != nil {
		return Info{}, fmt.Errorf("index %q: %w", info.Name, err)
	}
	info.Fields = fields

	info.Unique = boolOf(d, "unique")
	info.Sparse = boolOf(d, "sparse")
	info.Hidden = boolOf(d, "hidden")
	if v, ok := bsonutil.Get(d, "default_language"); ok {
		info.Language, _ = v.(string)
	}
	if v, ok := bsonutil.Get(d, "language_override"); ok {
		info.LanguageOverride, _ = v.(string)
	}
	if v, ok := bsonutil.Get(d, "v"); ok {
		n, _ := bsonutil.ToInt64(v)
		info.Version = int(n)
	}
	if v, ok := bsonutil.Get(d, "expireAfterSeconds"); ok {
		secs, ok := bsonutil.ToFloat64(v)
		if !ok {
			return Info{}, fmt.Errorf("index %q: expireAfterSeconds is not numeric", info.Name)
		}
		dur := time.Duration(secs * float64(time.Second))
		info.ExpireAfter = &dur
	}
	if pf, ok := optionalD(d, "partialFilterExpression"); ok {
		info.PartialFilterExpression = pf
	}
	if wp, ok := optionalD(d, "wildcardProjection"); ok {
		info.WildcardProjection = wp
	}
	if cd, ok := optionalD(d, "collation"); ok {
		c, err := CollationFromDocument(cd)
		if err != nil {
			return Info{}, fmt.Errorf("index %q: %w", info.Name, err)
		}
		info.Collation = &c
	}
	return info, nil
}

// parseFields converts the key document into fields. Text indexes store _fts/_ftsx
// pseudo-keys; these are replaced by one text field per weights entry, in weights order.
func parseFields(keys, weights bson.D) ([]Field, error) {
	fields := make([]Field, 0, len(keys))
	textAdded := false
	for _, k := range keys {
		if k.Key == "_fts" || k.Key == "_ftsx" {
			if textAdded {
				continue
			}
			textAdded = true
			for _, w := range weights {
				weight, ok := bsonutil.ToFloat64(w.Value)
				if !ok {
					return nil, fmt.Errorf("%w: text weight for %q", ErrUnsupportedKey, w.Key)
				}
				fields = append(fields, Field{Key: w.Key, Type: FieldText, Weight: weight})
			}
			continue
		}

		f, err := parseField(k)
		if err != nil {
			return nil, err
		}
		fields = append(fields, f)
	}
	return fields, nil
}

func parseField(k bson.E) (Field, error) {
	if s, ok := k.Value.(string); ok {
		switch strings.ToLower(s) {
		case "2d":
			return Field{Key: k.Key, Type: FieldGeo, GeoType: Geo2D}, nil
		case "2dsphere":
			return Field{Key: k.Key, Type: FieldGeo, GeoType: Geo2DSphere}, nil
		case "text":
			return Field{Key: k.Key, Type: FieldText, Weight: 1}, nil
		case "hashed":
			return Field{Key: k.Key, Type: FieldHashed}, nil
		default:
			return Field{}, fmt.Errorf("%w: %q: %q", ErrUnsupportedKey, k.Key, s)
		}
	}

	n, ok := bsonutil.ToFloat64(k.Value)
	if !ok || n == 0 {
		return Field{}, fmt.Errorf("%w: %q: %v", ErrUnsupportedKey, k.Key, k.Value)
	}
	dir := Asc
	if n < 0 {
		dir = Desc
	}
	ft := FieldDefault
	if isWildcardKey(k.Key) {
		ft = FieldWildcard
	}
	return Field{Key: k.Key, Type: ft, Direction: dir}, nil
}

func isWildcardKey(key string) bool {
	return key == "$**" || strings.HasSuffix(key, ".$**")
}

// FieldKeys returns the keys of all fields in index order.
func (i Info) FieldKeys() []string {
	keys := make([]string, len(i.Fields))
	for n, f := range i.Fields {
		keys[n] = f.Key
	}
	return keys
}

// IsIndexForFields reports whether the index covers exactly keys, in order.
func (i Info) IsIndexForFields(keys []string) bool {
	if len(keys) != len(i.Fields) {
		return false
	}
	for n, f := range i.Fields {
		if f.Key != keys[n] {
			return false
		}
	}
	return true
}

// HasField reports whether key participates in the index.
func (i Info) HasField(key string) bool {
	for _, f := range i.Fields {
		if f.Key == key {
			return true
		}
	}
	return false
}

// IsWildcard reports whether the index is a wildcard index.
func (i Info) IsWildcard() bool {
	for _, f := range i.Fields {
		if f.Type == FieldWildcard {
			return true
		}
	}
	return false
}

// IsText reports whether the index is a text index.
func (i Info) IsText() bool {
	for _, f := range i.Fields {
		if f.Type == FieldText {
			return true
		}
	}
	return false
}

// IsTTL reports whether documents expire through this index.
func (i Info) IsTTL() bool { return i.ExpireAfter != nil }

func optionalD(d bson.D, key string) (bson.D, bool) {
	v, ok := bsonutil.Get(d, key)
	if !ok {
		return nil, false
	}
	return bsonutil.ToD(v)
}

func boolOf(d bson.D, key string) bool {
	v, ok := bsonutil.Get(d, key)
	if !ok {
		return false
	}
	switch b := v.(type) {
	case bool:
		return b
	default:
		// some server versions report sparse/unique as 1/0
		n, ok := bsonutil.ToFloat64(v)
		return ok && n != 0
	}
}
