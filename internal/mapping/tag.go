package mapping

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// TagKey is the struct tag carrying mapping directives.
const TagKey = "mongo"

// ReferenceKind tells how a property stores a pointer to another collection's document.
type ReferenceKind int

const (
	// NoReference is a plain (embedded or simple) value.
	NoReference ReferenceKind = iota
	// DocumentReference stores the target id, or a lookup document, and resolves via a query.
	DocumentReference
	// DBRef stores a {$ref, $id} pointer.
	DBRef
)

// VectorSpec describes a vector search field.
type VectorSpec struct {
	Dimensions   int
	Similarity   string
	Quantization string
}

// Directives are the parsed `mongo` tag directives of a property.
type Directives struct {
	Index            bool
	Unique           bool
	Sparse           bool
	Desc             bool
	Hidden           bool
	Background       bool
	UseGeneratedName bool
	IndexName        string
	ExpireAfter      *time.Duration
	PartialFilter    string
	Collation        string

	GeoIndex string
	GeoMin   *float64
	GeoMax   *float64
	GeoBits  int

	Hashed      bool
	Wildcard    bool
	TextIndexed bool
	TextWeight  float64
	Language    bool

	Reference ReferenceKind
	Lazy      bool
	Lookup    string
	Sort      string

	Required  bool
	Encrypted string

	Vector       *VectorSpec
	VectorFilter bool
}

// HasIndex reports whether any index directive is present.
func (d Directives) HasIndex() bool {
	return d.Index || d.Unique || d.GeoIndex != "" || d.Hashed || d.Wildcard || d.TextIndexed
}

// ParseTag parses a `mongo` tag value: directives separated by ';', each `name` or `name:value`.
func ParseTag(tag string) (Directives, error) {
	var d Directives
	for _, raw := range strings.Split(tag, ";") {
		raw = strings.TrimSpace(raw)
		if raw == "" {
			continue
		}
		name, value, _ := strings.Cut(raw, ":")
		name = strings.TrimSpace(name)
		value = strings.TrimSpace(value)
		if err := d.apply(name, value); err != nil {
			return Directives{}, fmt.Errorf("directive %q: %w", name, err)
		}
	}
	if d.Unique || d.Sparse || d.Desc || d.ExpireAfter != nil || d.PartialFilter != "" {
		d.Index = true
	}
	if d.IndexName != "" && !d.Index && d.GeoIndex == "" {
		d.Index = true
	}
	if d.GeoIndex == "" && (d.GeoMin != nil || d.GeoMax != nil || d.GeoBits != 0) {
		return Directives{}, fmt.Errorf("geoMin/geoMax/geoBits require geoIndex")
	}
	if (d.Lookup != "" || d.Sort != "") && d.Reference != DocumentReference {
		return Directives{}, fmt.Errorf("lookup and sort require ref")
	}
	return d, nil
}

//nolint:gocyclo // flat directive switch
func (d *Directives) apply(name, value string) error {
	var err error
	switch name {
	case "index":
		d.Index = true
	case "unique":
		d.Unique = true
	case "sparse":
		d.Sparse = true
	case "desc":
		d.Desc = true
	case "hidden":
		d.Hidden = true
	case "background":
		d.Background = true
	case "useGeneratedName":
		d.UseGeneratedName = true
	case "indexName":
		d.IndexName, err = required(value)
	case "expireAfter":
		var dur time.Duration
		if dur, err = time.ParseDuration(value); err == nil {
			if dur < 0 {
				return fmt.Errorf("negative duration %s", value)
			}
			d.ExpireAfter = &dur
		}
	case "expireAfterSeconds":
		var n int
		if n, err = strconv.Atoi(value); err == nil {
			if n < 0 {
				return fmt.Errorf("negative seconds %d", n)
			}
			dur := time.Duration(n) * time.Second
			d.ExpireAfter = &dur
		}
	case "partialFilter":
		d.PartialFilter, err = required(value)
	case "collation":
		d.Collation, err = required(value)
	case "geoIndex":
		switch value {
		case "2d", "2dsphere":
			d.GeoIndex = value
		default:
			return fmt.Errorf("unsupported geo index type %q", value)
		}
	case "geoMin":
		d.GeoMin, err = parseFloatPtr(value)
	case "geoMax":
		d.GeoMax, err = parseFloatPtr(value)
	case "geoBits":
		d.GeoBits, err = strconv.Atoi(value)
	case "hashed":
		d.Hashed = true
	case "wildcard":
		d.Wildcard = true
	case "textIndexed":
		d.TextIndexed = true
		d.TextWeight = 1
		if value != "" {
			d.TextWeight, err = strconv.ParseFloat(value, 64)
		}
	case "language":
		d.Language = true
	case "ref", "dbref":
		d.Reference = DocumentReference
		if name == "dbref" {
			d.Reference = DBRef
		}
		switch value {
		case "":
		case "lazy":
			d.Lazy = true
		default:
			return fmt.Errorf("unknown option %q", value)
		}
	case "lookup":
		d.Lookup, err = required(value)
	case "sort":
		d.Sort, err = required(value)
	case "required":
		d.Required = true
	case "encrypted":
		d.Encrypted = value
		if d.Encrypted == "" {
			d.Encrypted = "AEAD_AES_256_CBC_HMAC_SHA_512-Deterministic"
		}
	case "vector":
		d.Vector, err = parseVector(value)
	case "vectorFilter":
		d.VectorFilter = true
	default:
		return fmt.Errorf("unknown directive")
	}
	return err
}

func required(value string) (string, error) {
	if value == "" {
		return "", fmt.Errorf("value is required")
	}
	return value, nil
}

func parseFloatPtr(value string) (*float64, error) {
	f, err := strconv.ParseFloat(value, 64)
	if err != nil {
		return nil, err
	}
	return &f, nil
}

// parseVector parses "DIMS,SIMILARITY[,QUANTIZATION]".
func parseVector(value string) (*VectorSpec, error) {
	parts := strings.Split(value, ",")
	if len(parts) < 2 || len(parts) > 3 {
		return nil, fmt.Errorf("expected DIMS,SIMILARITY[,QUANTIZATION], got %q", value)
	}
	dims, err := strconv.Atoi(strings.TrimSpace(parts[0]))
	if err != nil || dims <= 0 {
		return nil, fmt.Errorf("dimensions must be a positive integer, got %q", parts[0])
	}
	spec := &VectorSpec{Dimensions: dims, Similarity: strings.TrimSpace(parts[1])}
	if len(parts) == 3 {
		spec.Quantization = strings.TrimSpace(parts[2])
	}
	return spec, nil
}
