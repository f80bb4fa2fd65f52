package index

import (
	"errors"
	"fmt"
	"reflect"
	"strings"

	"go.uber.org/zap"

	"github.com/kailas-cloud/mongomap/internal/bsonutil"
	"github.com/kailas-cloud/mongomap/internal/mapping"
)

// ErrNotDocument signals index resolution for a type that names no collection.
var ErrNotDocument = errors.New("index: entity is not a document")

// Holder binds a resolved definition to the collection and property path it was derived from.
type Holder struct {
	Path       string
	Collection string
	Definition Definition
}

// Name returns the explicit or server-default index name.
func (h Holder) Name() string { return NameOf(h.Definition) }

// Resolver walks entity graphs and derives index definitions from mapping directives.
type Resolver struct {
	logger *zap.Logger
}

// NewResolver creates a resolver.
func NewResolver(logger *zap.Logger) *Resolver {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Resolver{logger: logger}
}

// ResolveIndexFor returns every index definition for the collection of e, in this order:
// root compound indexes, root wildcard index, text index, then property indexes depth first.
// Definitions whose key set was already produced are dropped (the first one wins).
func (r *Resolver) ResolveIndexFor(e *mapping.Entity) ([]Holder, error) {
	if !e.Document {
		return nil, fmt.Errorf("%w: %s", ErrNotDocument, e.Name)
	}

	w := &walk{root: e, logger: r.logger}
	if err := w.entityLevel(e, ""); err != nil {
		return nil, err
	}
	text, err := resolveText(e, r.logger)
	if err != nil {
		return nil, err
	}
	if text != nil {
		w.add("", text)
	}
	if err := w.properties(e, "", newCycleGuard()); err != nil {
		return nil, err
	}
	return w.dedupe(), nil
}

type walk struct {
	root    *mapping.Entity
	logger  *zap.Logger
	holders []Holder
}

func (w *walk) add(path string, def Definition) {
	w.holders = append(w.holders, Holder{Path: path, Collection: w.root.Collection, Definition: def})
}

// entityLevel adds compound and wildcard indexes declared by e, re-rooted under path.
func (w *walk) entityLevel(e *mapping.Entity, path string) error {
	for _, spec := range e.CompoundIndexes {
		def, err := compoundFromSpec(spec, path)
		if err != nil {
			return fmt.Errorf("%s: %w", e.Name, err)
		}
		w.add(path, def)
	}
	if e.Wildcard != nil {
		def, err := wildcardFromSpec(*e.Wildcard, path)
		if err != nil {
			return fmt.Errorf("%s: %w", e.Name, err)
		}
		w.add(path, def)
	}
	return nil
}

func (w *walk) properties(e *mapping.Entity, prefix string, guard *cycleGuard) error {
	for _, p := range e.Properties {
		path := joinPath(prefix, p.FieldName)

		if err := w.propertyIndexes(p, path); err != nil {
			return fmt.Errorf("%s.%s: %w", e.Name, p.Name, err)
		}
		if !p.IsEmbedded() || p.IsMap {
			continue
		}
		if !guard.enter(p) {
			w.logger.Debug("stopping index resolution at cyclic property",
				zap.String("entity", w.root.Name),
				zap.String("path", path),
			)
			continue
		}
		nested := p.Entity()
		if err := w.entityLevel(nested, path); err != nil {
			return err
		}
		if err := w.properties(nested, path, guard); err != nil {
			return err
		}
		guard.leave(p)
	}
	return nil
}

func (w *walk) propertyIndexes(p *mapping.Property, path string) error {
	d := p.Directives
	if !d.HasIndex() {
		return nil
	}
	if d.Index {
		def, err := propertyIndex(p, path)
		if err != nil {
			return err
		}
		w.add(path, def)
	}
	if d.GeoIndex != "" {
		def, err := geoIndex(p, path)
		if err != nil {
			return err
		}
		w.add(path, def)
	}
	if d.Hashed {
		w.add(path, NewHashedIndex(path))
	}
	if d.Wildcard {
		w.add(path, NewWildcardIndex(path))
	}
	return nil
}

// dedupe keeps the first definition per key set. Text indexes are unique per collection.
func (w *walk) dedupe() []Holder {
	seen := make(map[string]Holder, len(w.holders))
	out := make([]Holder, 0, len(w.holders))
	for _, h := range w.holders {
		key := DefaultName(h.Definition.IndexKeys())
		if _, isText := h.Definition.(*TextIndex); isText {
			key = "$text"
		}
		if first, dup := seen[key]; dup {
			level := zap.DebugLevel
			if !bsonutil.Equal(first.Definition.IndexOptions(), h.Definition.IndexOptions()) {
				level = zap.WarnLevel
			}
			w.logger.Check(level, "dropping index with duplicate keys").Write(
				zap.String("collection", h.Collection),
				zap.String("path", h.Path),
				zap.String("kept", first.Name()),
				zap.String("dropped", h.Name()),
			)
			continue
		}
		seen[key] = h
		out = append(out, h)
	}
	return out
}

func propertyIndex(p *mapping.Property, path string) (*Index, error) {
	d := p.Directives
	dir := Asc
	if d.Desc {
		dir = Desc
	}
	idx := NewIndex().On(path, dir)
	if name := pathAwareName(d.IndexName, path, p.FieldName, d.UseGeneratedName); name != "" {
		idx.Named(name)
	}
	if d.Unique {
		idx.Unique()
	}
	if d.Sparse {
		idx.Sparse()
	}
	if d.Background {
		idx.Background()
	}
	if d.Hidden {
		idx.Hidden()
	}
	if d.ExpireAfter != nil {
		idx.ExpireAfter(*d.ExpireAfter)
	}
	if d.PartialFilter != "" {
		pf, err := bsonutil.ParseRelaxed(d.PartialFilter)
		if err != nil {
			return nil, fmt.Errorf("%w: partialFilter: %w", ErrInvalidDefinition, err)
		}
		idx.PartialFilter(pf)
	}
	if d.Collation != "" {
		c, err := ParseCollation(d.Collation)
		if err != nil {
			return nil, err
		}
		idx.Collation(c)
	}
	if err := idx.Validate(); err != nil {
		return nil, err
	}
	return idx, nil
}

func geoIndex(p *mapping.Property, path string) (*GeospatialIndex, error) {
	d := p.Directives
	g := NewGeospatialIndex(path).Typed(GeoType(d.GeoIndex))
	if name := pathAwareName(d.IndexName, path, p.FieldName, d.UseGeneratedName); name != "" {
		g.Named(name)
	}
	if d.GeoMin != nil {
		g.WithMin(*d.GeoMin)
	}
	if d.GeoMax != nil {
		g.WithMax(*d.GeoMax)
	}
	if d.GeoBits > 0 {
		g.WithBits(d.GeoBits)
	}
	if err := g.Validate(); err != nil {
		return nil, err
	}
	return g, nil
}

func compoundFromSpec(spec mapping.CompoundIndexSpec, path string) (*CompoundIndex, error) {
	c, err := NewCompoundIndex(spec.Def)
	if err != nil {
		return nil, err
	}
	c = c.Prefixed(path)
	if spec.Name != "" && !spec.UseGeneratedName {
		c.Named(joinPath(path, spec.Name))
	}
	if spec.Unique {
		c.Unique()
	}
	if spec.Sparse {
		c.Sparse()
	}
	if spec.Background {
		c.Background()
	}
	if spec.Hidden {
		c.Hidden()
	}
	if spec.PartialFilter != "" {
		pf, err := bsonutil.ParseRelaxed(spec.PartialFilter)
		if err != nil {
			return nil, fmt.Errorf("%w: partialFilter: %w", ErrInvalidDefinition, err)
		}
		c.PartialFilter(pf)
	}
	if spec.Collation != "" {
		col, err := ParseCollation(spec.Collation)
		if err != nil {
			return nil, err
		}
		c.Collation(col)
	}
	return c, nil
}

func wildcardFromSpec(spec mapping.WildcardSpec, path string) (*WildcardIndex, error) {
	w := NewWildcardIndex(path)
	if spec.Name != "" {
		w.Named(joinPath(path, spec.Name))
	}
	if spec.Projection != "" {
		proj, err := bsonutil.ParseRelaxed(spec.Projection)
		if err != nil {
			return nil, fmt.Errorf("%w: wildcardProjection: %w", ErrInvalidDefinition, err)
		}
		w.WildcardProjection(proj)
	}
	if spec.PartialFilter != "" {
		pf, err := bsonutil.ParseRelaxed(spec.PartialFilter)
		if err != nil {
			return nil, fmt.Errorf("%w: partialFilter: %w", ErrInvalidDefinition, err)
		}
		w.PartialFilter(pf)
	}
	if spec.Collation != "" {
		c, err := ParseCollation(spec.Collation)
		if err != nil {
			return nil, err
		}
		w.Collation(c)
	}
	if err := w.Validate(); err != nil {
		return nil, err
	}
	return w, nil
}

// resolveText collects textIndexed properties (nested ones by dot path) into one text index.
func resolveText(e *mapping.Entity, logger *zap.Logger) (*TextIndex, error) {
	b := NewTextIndex()
	found := false
	var collect func(ent *mapping.Entity, prefix string, guard *cycleGuard)
	collect = func(ent *mapping.Entity, prefix string, guard *cycleGuard) {
		for _, p := range ent.Properties {
			path := joinPath(prefix, p.FieldName)
			if p.Directives.TextIndexed {
				b.OnFieldWeighted(path, p.Directives.TextWeight)
				found = true
			}
			if prefix == "" && p.Directives.Language {
				b.WithLanguageOverride(p.FieldName)
			}
			if !p.IsEmbedded() || p.IsMap {
				continue
			}
			if !guard.enter(p) {
				logger.Debug("stopping text index resolution at cyclic property", zap.String("path", path))
				continue
			}
			collect(p.Entity(), path, guard)
			guard.leave(p)
		}
	}
	collect(e, "", newCycleGuard())
	if !found {
		return nil, nil
	}
	if e.Language != "" {
		b.WithDefaultLanguage(e.Language)
	}
	return b.Build()
}

// pathAwareName derives the index name: explicit names of nested properties are qualified with
// the parent path, unnamed indexes are named after their path unless generated names are wanted.
func pathAwareName(name, path, fieldName string, generated bool) string {
	if generated {
		return ""
	}
	if name == "" {
		return path
	}
	if path == fieldName {
		return name
	}
	return strings.TrimSuffix(path, "."+fieldName) + "." + name
}

func joinPath(prefix, name string) string {
	if prefix == "" {
		return name
	}
	return prefix + "." + name
}

// cycleGuard tracks the properties on the current walk path.
type cycleGuard struct {
	active map[propertyKey]bool
}

type propertyKey struct {
	owner reflect.Type
	name  string
}

func newCycleGuard() *cycleGuard {
	return &cycleGuard{active: make(map[propertyKey]bool)}
}

// enter returns false when p is already on the path.
func (g *cycleGuard) enter(p *mapping.Property) bool {
	k := propertyKey{owner: p.Owner.Type, name: p.Name}
	if g.active[k] {
		return false
	}
	g.active[k] = true
	return true
}

func (g *cycleGuard) leave(p *mapping.Property) {
	delete(g.active, propertyKey{owner: p.Owner.Type, name: p.Name})
}
