package convert

import (
	"context"
	"fmt"
	"reflect"

	"github.com/google/uuid"
	"go.mongodb.org/mongo-driver/v2/bson"
	"go.uber.org/zap"

	"github.com/kailas-cloud/mongomap/internal/mapping"
	"github.com/kailas-cloud/mongomap/internal/reference"
)

// Read decodes raw into out, a pointer to an entity. Eager references are resolved before Read
// returns; lazy ones are bound to resolve on first Get.
func (c *Converter) Read(ctx context.Context, raw bson.Raw, out any) error {
	rv := reflect.ValueOf(out)
	if !rv.IsValid() || rv.Kind() != reflect.Pointer || rv.IsNil() || rv.Elem().Kind() != reflect.Struct {
		return ErrInvalidTarget
	}
	e, err := c.mc.Entity(rv.Type())
	if err != nil {
		return err
	}
	return c.readEntity(ctx, raw, e, rv.Elem(), 0)
}

func (c *Converter) readEntity(ctx context.Context, raw bson.Raw, e *mapping.Entity, v reflect.Value, depth int) error {
	for _, p := range e.Properties {
		val, err := raw.LookupErr(p.FieldName)
		if err != nil {
			continue
		}
		if err := c.readProperty(ctx, p, val, p.Field(v), depth); err != nil {
			return fmt.Errorf("%s.%s: %w", e.Name, p.Name, err)
		}
	}
	if e.Extra != nil {
		if err := readExtra(raw, e, v); err != nil {
			return fmt.Errorf("%s.%s: %w", e.Name, e.Extra.Name, err)
		}
	}
	return nil
}

// readExtra collects the keys no property claims into the inline catch-all map.
func readExtra(raw bson.Raw, e *mapping.Entity, v reflect.Value) error {
	elems, err := raw.Elements()
	if err != nil {
		return err
	}
	var m reflect.Value
	for _, el := range elems {
		key := el.Key()
		if _, owned := e.PropertyByField(key); owned {
			continue
		}
		if !m.IsValid() {
			m = e.Extra.Field(v)
			if m.IsNil() {
				m.Set(reflect.MakeMap(m.Type()))
			}
		}
		item := reflect.New(m.Type().Elem()).Elem()
		if err := readValue(el.Value(), item); err != nil {
			return fmt.Errorf("%s: %w", key, err)
		}
		m.SetMapIndex(reflect.ValueOf(key).Convert(m.Type().Key()), item)
	}
	return nil
}

func (c *Converter) readProperty(ctx context.Context, p *mapping.Property, val bson.RawValue, fv reflect.Value, depth int) error {
	if val.Type == bson.TypeNull {
		fv.SetZero()
		return nil
	}
	switch {
	case p.IsLazy:
		return c.bindLazy(p, val, fv)
	case p.IsReference():
		return c.readReference(ctx, p, val, fv, depth)
	case p.IsEmbedded():
		return readShaped(val, fv, isStruct, func(item bson.RawValue, target reflect.Value) error {
			doc, ok := item.DocumentOK()
			if !ok {
				return fmt.Errorf("expected a document, got %s", item.Type)
			}
			return c.readEntity(ctx, doc, p.Entity(), target, depth)
		})
	}
	return readValue(val, fv)
}

func isStruct(t reflect.Type) bool { return t.Kind() == reflect.Struct }

func isUUID(t reflect.Type) bool { return t == uuidType }

// readValue decodes a simple value, reading UUIDs from binary subtype 4 or strings.
func readValue(val bson.RawValue, fv reflect.Value) error {
	if hasUUID(fv.Type()) {
		return readShaped(val, fv, isUUID, func(item bson.RawValue, target reflect.Value) error {
			u, err := decodeUUID(item)
			if err != nil {
				return err
			}
			target.Set(reflect.ValueOf(u))
			return nil
		})
	}
	return val.Unmarshal(fv.Addr().Interface())
}

func decodeUUID(val bson.RawValue) (uuid.UUID, error) {
	if _, data, ok := val.BinaryOK(); ok {
		return uuid.FromBytes(data)
	}
	if s, ok := val.StringValueOK(); ok {
		return uuid.Parse(s)
	}
	return uuid.Nil, fmt.Errorf("expected a UUID, got %s", val.Type)
}

// readShaped allocates pointers, slices, arrays and maps down to values matching isLeaf.
func readShaped(val bson.RawValue, fv reflect.Value, isLeaf func(reflect.Type) bool,
	leaf func(bson.RawValue, reflect.Value) error,
) error {
	if val.Type == bson.TypeNull {
		fv.SetZero()
		return nil
	}
	if isLeaf(fv.Type()) {
		return leaf(val, fv)
	}
	switch fv.Kind() {
	case reflect.Pointer:
		n := reflect.New(fv.Type().Elem())
		if err := readShaped(val, n.Elem(), isLeaf, leaf); err != nil {
			return err
		}
		fv.Set(n)
		return nil
	case reflect.Slice, reflect.Array:
		arr, ok := val.ArrayOK()
		if !ok {
			return fmt.Errorf("expected an array, got %s", val.Type)
		}
		items, err := arr.Values()
		if err != nil {
			return err
		}
		target := fv
		if fv.Kind() == reflect.Slice {
			target = reflect.MakeSlice(fv.Type(), len(items), len(items))
		}
		for i := 0; i < len(items) && i < target.Len(); i++ {
			if err := readShaped(items[i], target.Index(i), isLeaf, leaf); err != nil {
				return fmt.Errorf("[%d]: %w", i, err)
			}
		}
		fv.Set(target)
		return nil
	case reflect.Map:
		doc, ok := val.DocumentOK()
		if !ok {
			return fmt.Errorf("expected a document, got %s", val.Type)
		}
		elems, err := doc.Elements()
		if err != nil {
			return err
		}
		m := reflect.MakeMapWithSize(fv.Type(), len(elems))
		for _, el := range elems {
			item := reflect.New(fv.Type().Elem()).Elem()
			if err := readShaped(el.Value(), item, isLeaf, leaf); err != nil {
				return fmt.Errorf("[%s]: %w", el.Key(), err)
			}
			m.SetMapIndex(reflect.ValueOf(el.Key()).Convert(fv.Type().Key()), item)
		}
		fv.Set(m)
		return nil
	}
	return fmt.Errorf("cannot decode %s into %s", val.Type, fv.Type())
}

func (c *Converter) readReference(ctx context.Context, p *mapping.Property, val bson.RawValue, fv reflect.Value, depth int) error {
	var source any
	if err := val.Unmarshal(&source); err != nil {
		return err
	}
	resolved, err := c.resolve(ctx, p, source, fv.Type(), depth)
	if err != nil {
		return err
	}
	fv.Set(resolved)
	return nil
}

// bindLazy attaches the stored pointer to a lazy holder, allocating the holder when needed.
func (c *Converter) bindLazy(p *mapping.Property, val bson.RawValue, fv reflect.Value) error {
	var source any
	if err := val.Unmarshal(&source); err != nil {
		return err
	}
	var h reference.Holder
	if fv.Kind() == reflect.Pointer {
		n := reflect.New(fv.Type().Elem())
		fv.Set(n)
		h = n.Interface().(reference.Holder)
	} else {
		h = fv.Addr().Interface().(reference.Holder)
	}
	target := h.LazyTarget()
	h.BindSource(source, func(ctx context.Context) (any, error) {
		v, err := c.resolve(ctx, p, source, target, 0)
		if err != nil {
			return nil, err
		}
		return v.Interface(), nil
	})
	return nil
}

// resolve fetches the targets of source and builds a value of type t: an entity, a pointer to
// one, or a slice or map of either.
func (c *Converter) resolve(ctx context.Context, p *mapping.Property, source any, t reflect.Type, depth int) (reflect.Value, error) {
	if c.resolver == nil {
		return reflect.Value{}, ErrUnresolved
	}
	if depth >= maxDepth {
		return reflect.Value{}, fmt.Errorf("%w: resolving %s", ErrTooDeep, p.Name)
	}
	ref, err := c.ref(p)
	if err != nil {
		return reflect.Value{}, err
	}
	te := p.Entity()

	switch t.Kind() {
	case reflect.Slice:
		sources, ok := source.(bson.A)
		if !ok {
			return reflect.Value{}, fmt.Errorf("expected an array of references, got %T", source)
		}
		docs, err := c.resolver.ResolveAll(ctx, ref, sources)
		if err != nil {
			return reflect.Value{}, err
		}
		out := reflect.MakeSlice(t, 0, len(docs))
		for _, doc := range docs {
			item, err := c.readTarget(ctx, te, doc, t.Elem(), depth+1)
			if err != nil {
				return reflect.Value{}, err
			}
			out = reflect.Append(out, item)
		}
		return out, nil

	case reflect.Map:
		d, ok := source.(bson.D)
		if !ok {
			return reflect.Value{}, fmt.Errorf("expected a document of references, got %T", source)
		}
		sources := make([]any, len(d))
		for i, e := range d {
			sources[i] = e.Value
		}
		docs, err := c.resolver.Resolve(ctx, ref, sources)
		if err != nil {
			return reflect.Value{}, err
		}
		out := reflect.MakeMapWithSize(t, len(d))
		for i, e := range d {
			if docs[i] == nil {
				continue
			}
			item, err := c.readTarget(ctx, te, docs[i], t.Elem(), depth+1)
			if err != nil {
				return reflect.Value{}, err
			}
			out.SetMapIndex(reflect.ValueOf(e.Key).Convert(t.Key()), item)
		}
		return out, nil
	}

	docs, err := c.resolver.Resolve(ctx, ref, []any{source})
	if err != nil {
		return reflect.Value{}, err
	}
	if len(docs) == 0 || docs[0] == nil {
		c.logger.Debug("reference target not found",
			zap.String("property", p.Owner.Name+"."+p.Name),
			zap.String("collection", ref.Collection))
		return reflect.Zero(t), nil
	}
	return c.readTarget(ctx, te, docs[0], t, depth+1)
}

func (c *Converter) readTarget(ctx context.Context, te *mapping.Entity, raw bson.Raw, t reflect.Type, depth int) (reflect.Value, error) {
	st := t
	if t.Kind() == reflect.Pointer {
		st = t.Elem()
	}
	n := reflect.New(st)
	if err := c.readEntity(ctx, raw, te, n.Elem(), depth); err != nil {
		return reflect.Value{}, err
	}
	if t.Kind() == reflect.Pointer {
		return n, nil
	}
	return n.Elem(), nil
}
