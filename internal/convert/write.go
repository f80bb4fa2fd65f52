package convert

import (
	"fmt"
	"reflect"

	"github.com/google/uuid"
	"go.mongodb.org/mongo-driver/v2/bson"

	"github.com/kailas-cloud/mongomap/internal/mapping"
	"github.com/kailas-cloud/mongomap/internal/reference"
)

// Write converts v to a document. When v is a pointer, a zero ObjectID or UUID id is generated
// and stored back into v.
func (c *Converter) Write(v any) (bson.D, error) {
	rv := reflect.ValueOf(v)
	if !rv.IsValid() {
		return nil, ErrInvalidTarget
	}
	if rv.Kind() != reflect.Pointer {
		ptr := reflect.New(rv.Type())
		ptr.Elem().Set(rv)
		rv = ptr
	}
	rv, err := structValue(rv.Interface())
	if err != nil {
		return nil, err
	}
	e, err := c.mc.Entity(rv.Type())
	if err != nil {
		return nil, err
	}
	if e.IDProperty != nil {
		generateID(e.IDProperty.Value(rv))
	}
	return c.writeEntity(e, rv, 0)
}

func generateID(v reflect.Value) {
	if !v.CanSet() {
		return
	}
	switch v.Type() {
	case objectIDType:
		if v.IsZero() {
			v.Set(reflect.ValueOf(bson.NewObjectID()))
		}
	case uuidType:
		if v.IsZero() {
			v.Set(reflect.ValueOf(uuid.New()))
		}
	case reflect.PointerTo(objectIDType), reflect.PointerTo(uuidType):
		if v.IsNil() {
			v.Set(reflect.New(v.Type().Elem()))
		}
		generateID(v.Elem())
	}
}

func (c *Converter) writeEntity(e *mapping.Entity, v reflect.Value, depth int) (bson.D, error) {
	if depth > maxDepth {
		return nil, fmt.Errorf("%w: writing %s", ErrTooDeep, e.Name)
	}
	doc := make(bson.D, 0, len(e.Properties))
	for _, p := range e.Properties {
		fv := p.Value(v)
		if !fv.IsValid() {
			// behind a nil inline pointer
			continue
		}
		if p.OmitEmpty && fv.IsZero() {
			continue
		}
		val, err := c.writeProperty(p, fv, depth)
		if err != nil {
			return nil, fmt.Errorf("%s.%s: %w", e.Name, p.Name, err)
		}
		doc = append(doc, bson.E{Key: p.FieldName, Value: val})
	}
	return appendExtra(doc, e, v), nil
}

// appendExtra adds the entries of the inline catch-all map in key order. Keys owned by a
// property are skipped.
func appendExtra(doc bson.D, e *mapping.Entity, v reflect.Value) bson.D {
	if e.Extra == nil {
		return doc
	}
	m := e.Extra.Value(v)
	if !m.IsValid() || m.Len() == 0 {
		return doc
	}
	for _, k := range sortedKeys(m) {
		if _, owned := e.PropertyByField(k.String()); owned {
			continue
		}
		item := m.MapIndex(k)
		if item.Kind() == reflect.Interface && !item.IsNil() {
			item = item.Elem()
		}
		doc = append(doc, bson.E{Key: k.String(), Value: writeValue(item)})
	}
	return doc
}

func (c *Converter) writeProperty(p *mapping.Property, v reflect.Value, depth int) (any, error) {
	switch {
	case p.IsLazy:
		return c.writeLazy(p, v, depth)
	case p.IsReference():
		ref, err := c.ref(p)
		if err != nil {
			return nil, err
		}
		return writeShaped(v, func(target reflect.Value) (any, error) {
			return c.pointerTo(p.Entity(), ref, target, depth)
		})
	case p.IsEmbedded():
		return writeShaped(v, func(nested reflect.Value) (any, error) {
			return c.writeEntity(p.Entity(), nested, depth+1)
		})
	}
	return writeValue(v), nil
}

// writeShaped walks pointers, slices, arrays and maps down to struct values.
func writeShaped(v reflect.Value, leaf func(reflect.Value) (any, error)) (any, error) {
	switch v.Kind() {
	case reflect.Pointer, reflect.Interface:
		if v.IsNil() {
			return nil, nil
		}
		return writeShaped(v.Elem(), leaf)
	case reflect.Slice, reflect.Array:
		if v.Kind() == reflect.Slice && v.IsNil() {
			return nil, nil
		}
		out := make(bson.A, v.Len())
		for i := range out {
			item, err := writeShaped(v.Index(i), leaf)
			if err != nil {
				return nil, err
			}
			out[i] = item
		}
		return out, nil
	case reflect.Map:
		if v.IsNil() {
			return nil, nil
		}
		out := make(bson.D, 0, v.Len())
		for _, k := range sortedKeys(v) {
			item, err := writeShaped(v.MapIndex(k), leaf)
			if err != nil {
				return nil, err
			}
			out = append(out, bson.E{Key: k.String(), Value: item})
		}
		return out, nil
	case reflect.Struct:
		return leaf(v)
	case reflect.Invalid:
		return nil, nil
	}
	return nil, fmt.Errorf("unexpected %s value", v.Type())
}

// pointerTo builds the stored pointer to target.
func (c *Converter) pointerTo(te *mapping.Entity, ref reference.Ref, target reflect.Value, depth int) (any, error) {
	if ref.Kind == mapping.DBRef {
		id, err := targetID(te, target)
		if err != nil {
			return nil, err
		}
		return reference.DBRefValue{Collection: te.Collection, ID: id}.Document(), nil
	}
	if path, ok := ref.Lookup.TargetPath(); ok && path == "_id" {
		return targetID(te, target)
	}
	doc, err := c.writeEntity(te, target, depth+1)
	if err != nil {
		return nil, err
	}
	return ref.Lookup.Pointer(doc)
}

func targetID(te *mapping.Entity, target reflect.Value) (any, error) {
	if te.IDProperty == nil {
		return nil, fmt.Errorf("%w: %s", ErrNoID, te.Name)
	}
	id := te.IDProperty.Value(target)
	if !id.IsValid() || id.IsZero() {
		return nil, fmt.Errorf("%w: %s", ErrMissingID, te.Name)
	}
	return writeValue(id), nil
}

// writeLazy stores the resolved value when there is one, otherwise the pointer it was read from.
func (c *Converter) writeLazy(p *mapping.Property, v reflect.Value, depth int) (any, error) {
	var h reference.Holder
	switch {
	case v.Kind() == reflect.Pointer && v.IsNil():
		return nil, nil
	case v.Kind() == reflect.Pointer:
		h = v.Interface().(reference.Holder)
	case v.CanAddr():
		h = v.Addr().Interface().(reference.Holder)
	default:
		return nil, fmt.Errorf("lazy reference %s is not addressable", p.Name)
	}

	cur, ok := h.Current()
	if !ok {
		return h.Source(), nil
	}
	ref, err := c.ref(p)
	if err != nil {
		return nil, err
	}
	return writeShaped(reflect.ValueOf(cur), func(target reflect.Value) (any, error) {
		return c.pointerTo(p.Entity(), ref, target, depth)
	})
}
