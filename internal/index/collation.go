package index

import (
	"fmt"
	"strings"

	"go.mongodb.org/mongo-driver/v2/bson"

	"github.com/kailas-cloud/mongomap/internal/bsonutil"
)

// Collation describes language-specific string comparison rules.
type Collation struct {
	Locale          string
	CaseLevel       *bool
	CaseFirst       string
	Strength        int
	NumericOrdering *bool
	Alternate       string
	MaxVariable     string
	Normalization   *bool
	Backwards       *bool
}

// Document renders the collation as the server expects it.
func (c Collation) Document() bson.D {
	d := bson.D{{Key: "locale", Value: c.Locale}}
	if c.CaseLevel != nil {
		d = append(d, bson.E{Key: "caseLevel", Value: *c.CaseLevel})
	}
	if c.CaseFirst != "" {
		d = append(d, bson.E{Key: "caseFirst", Value: c.CaseFirst})
	}
	if c.Strength != 0 {
		d = append(d, bson.E{Key: "strength", Value: int32(c.Strength)})
	}
	if c.NumericOrdering != nil {
		d = append(d, bson.E{Key: "numericOrdering", Value: *c.NumericOrdering})
	}
	if c.Alternate != "" {
		d = append(d, bson.E{Key: "alternate", Value: c.Alternate})
	}
	if c.MaxVariable != "" {
		d = append(d, bson.E{Key: "maxVariable", Value: c.MaxVariable})
	}
	if c.Normalization != nil {
		d = append(d, bson.E{Key: "normalization", Value: *c.Normalization})
	}
	if c.Backwards != nil {
		d = append(d, bson.E{Key: "backwards", Value: *c.Backwards})
	}
	return d
}

// ParseCollation accepts either a bare locale ("de") or a relaxed JSON collation document.
func ParseCollation(s string) (Collation, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return Collation{}, fmt.Errorf("%w: empty collation", ErrInvalidDefinition)
	}
	if !strings.HasPrefix(s, "{") {
		return Collation{Locale: s}, nil
	}
	d, err := bsonutil.ParseRelaxed(s)
	if err != nil {
		return Collation{}, fmt.Errorf("%w: collation: %w", ErrInvalidDefinition, err)
	}
	return CollationFromDocument(d)
}

// CollationFromDocument reads a collation document as returned by listIndexes.
func CollationFromDocument(d bson.D) (Collation, error) {
	var c Collation
	for _, e := range d {
		switch e.Key {
		case "locale":
			c.Locale, _ = e.Value.(string)
		case "caseLevel":
			c.CaseLevel = boolPtr(e.Value)
		case "caseFirst":
			c.CaseFirst, _ = e.Value.(string)
		case "strength":
			n, _ := bsonutil.ToInt64(e.Value)
			c.Strength = int(n)
		case "numericOrdering":
			c.NumericOrdering = boolPtr(e.Value)
		case "alternate":
			c.Alternate, _ = e.Value.(string)
		case "maxVariable":
			c.MaxVariable, _ = e.Value.(string)
		case "normalization":
			c.Normalization = boolPtr(e.Value)
		case "backwards":
			c.Backwards = boolPtr(e.Value)
		case "version":
			// server-assigned ICU version, not part of the request
		}
	}
	if c.Locale == "" {
		return Collation{}, fmt.Errorf("%w: collation requires a locale", ErrInvalidDefinition)
	}
	return c, nil
}

func boolPtr(v any) *bool {
	b, ok := v.(bool)
	if !ok {
		return nil
	}
	return &b
}
