package index

import (
	"fmt"

	"go.mongodb.org/mongo-driver/v2/bson"
)

// TextField is a field participating in a text index.
type TextField struct {
	Path   string
	Weight float64
}

// TextIndex is a full-text index over one or more fields.
type TextIndex struct {
	fields           []TextField
	name             string
	defaultLanguage  string
	languageOverride string
	partial          bson.D
}

// TextIndexBuilder assembles a TextIndex.
type TextIndexBuilder struct {
	idx TextIndex
}

// NewTextIndex starts a text index definition.
func NewTextIndex() *TextIndexBuilder {
	return &TextIndexBuilder{}
}

// OnField adds path with the default weight of 1.
func (b *TextIndexBuilder) OnField(path string) *TextIndexBuilder {
	return b.OnFieldWeighted(path, 1)
}

// OnFieldWeighted adds path with weight. A repeated path replaces the previous weight.
func (b *TextIndexBuilder) OnFieldWeighted(path string, weight float64) *TextIndexBuilder {
	for i := range b.idx.fields {
		if b.idx.fields[i].Path == path {
			b.idx.fields[i].Weight = weight
			return b
		}
	}
	b.idx.fields = append(b.idx.fields, TextField{Path: path, Weight: weight})
	return b
}

// OnAllFields indexes every string field ($**).
func (b *TextIndexBuilder) OnAllFields() *TextIndexBuilder {
	return b.OnField("$**")
}

// Named sets the index name.
func (b *TextIndexBuilder) Named(name string) *TextIndexBuilder {
	b.idx.name = name
	return b
}

// WithDefaultLanguage sets the language used for stemming and stop words.
func (b *TextIndexBuilder) WithDefaultLanguage(lang string) *TextIndexBuilder {
	b.idx.defaultLanguage = lang
	return b
}

// WithLanguageOverride names the document field that overrides the language per document.
func (b *TextIndexBuilder) WithLanguageOverride(field string) *TextIndexBuilder {
	b.idx.languageOverride = field
	return b
}

// PartialFilter restricts the index to documents matching filter.
func (b *TextIndexBuilder) PartialFilter(filter bson.D) *TextIndexBuilder {
	b.idx.partial = filter
	return b
}

// Build validates and returns the text index.
func (b *TextIndexBuilder) Build() (*TextIndex, error) {
	if len(b.idx.fields) == 0 {
		return nil, fmt.Errorf("%w: text index requires at least one field", ErrInvalidDefinition)
	}
	for _, f := range b.idx.fields {
		if f.Weight <= 0 {
			return nil, fmt.Errorf("%w: text weight for %q must be positive", ErrInvalidDefinition, f.Path)
		}
	}
	idx := b.idx
	idx.fields = append([]TextField(nil), b.idx.fields...)
	return &idx, nil
}

// Fields returns the indexed fields.
func (t *TextIndex) Fields() []TextField {
	return append([]TextField(nil), t.fields...)
}

// IndexKeys implements Definition.
func (t *TextIndex) IndexKeys() bson.D {
	d := make(bson.D, len(t.fields))
	for i, f := range t.fields {
		d[i] = bson.E{Key: f.Path, Value: "text"}
	}
	return d
}

// IndexOptions implements Definition. Only non-default weights are emitted.
func (t *TextIndex) IndexOptions() bson.D {
	d := commonOptions{name: t.name, partialFilter: t.partial}.document()
	var weights bson.D
	for _, f := range t.fields {
		if f.Weight != 1 {
			weights = append(weights, bson.E{Key: f.Path, Value: f.Weight})
		}
	}
	if len(weights) > 0 {
		d = append(d, bson.E{Key: "weights", Value: weights})
	}
	if t.defaultLanguage != "" {
		d = append(d, bson.E{Key: "default_language", Value: t.defaultLanguage})
	}
	if t.languageOverride != "" {
		d = append(d, bson.E{Key: "language_override", Value: t.languageOverride})
	}
	return d
}
