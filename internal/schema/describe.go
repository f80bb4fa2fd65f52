package schema

import (
	"fmt"
	"strings"
)

func (n Node) describe() string {
	if n.description != "" {
		return n.description
	}
	if !n.generate {
		return ""
	}
	return n.generatedDescription()
}

//nolint:gocyclo // one branch per type family
func (n Node) generatedDescription() string {
	var b strings.Builder
	switch {
	case n.encrypt != nil:
		b.WriteString("Must be encrypted")
	case len(n.types) == 0:
		if len(n.enum) == 0 {
			return ""
		}
		fmt.Fprintf(&b, "Must be one of %s", list(n.enum))
		return b.String() + "."
	case len(n.types) > 1:
		fmt.Fprintf(&b, "Must be one of the types %s", list(n.types))
	default:
		t := n.types[0]
		switch {
		case t == TypeString:
			b.WriteString("Must be a string")
			if n.minLength != nil || n.maxLength != nil {
				fmt.Fprintf(&b, " with length %s", intRange(n.minLength, n.maxLength))
			}
			if n.pattern != "" {
				fmt.Fprintf(&b, " matching %s", n.pattern)
			}
		case t.isNumeric():
			b.WriteString("Must be a numeric value")
			if n.multipleOf != nil {
				fmt.Fprintf(&b, " multiple of %v", n.multipleOf)
			}
			if n.minimum != nil || n.maximum != nil {
				fmt.Fprintf(&b, " within range %s", valueRange(n.minimum, n.maximum, n.exclusiveMinimum, n.exclusiveMaximum))
			}
		case t == TypeArray:
			b.WriteString("Must be an array")
			if n.uniqueItems {
				b.WriteString(" of unique values")
			}
			if n.minItems != nil || n.maxItems != nil {
				fmt.Fprintf(&b, " with %s items", intRange(n.minItems, n.maxItems))
			}
		case t == TypeObject:
			b.WriteString("Must be an object")
			if n.minProperties != nil || n.maxProperties != nil {
				fmt.Fprintf(&b, " with %s properties", intRange(n.minProperties, n.maxProperties))
			}
			if len(n.properties) > 0 {
				names := make([]string, len(n.properties))
				for i, p := range n.properties {
					names[i] = p.name
				}
				fmt.Fprintf(&b, " defining restrictions for %s", strings.Join(names, ", "))
			}
			if req := n.requiredNames(); len(req) > 0 {
				fmt.Fprintf(&b, " requiring %s", list(req))
			}
		case t == TypeBoolean:
			b.WriteString("Must be a boolean")
		case t == TypeNull:
			b.WriteString("Must be null")
		case t == TypeDate:
			b.WriteString("Must be a date")
		case t == TypeTimestamp:
			b.WriteString("Must be a timestamp")
		case t == TypeObjectID:
			b.WriteString("Must be an objectId")
		case t == TypeBinData:
			b.WriteString("Must be binary data")
		default:
			fmt.Fprintf(&b, "Must be of type %s", t)
		}
	}
	if len(n.enum) > 0 {
		fmt.Fprintf(&b, " with possible values %s", list(n.enum))
	}
	return b.String() + "."
}

func list[T any](values []T) string {
	parts := make([]string, len(values))
	for i, v := range values {
		parts[i] = fmt.Sprint(v)
	}
	return "[" + strings.Join(parts, ", ") + "]"
}

func intRange(lo, hi *int) string {
	var l, h any
	if lo != nil {
		l = *lo
	}
	if hi != nil {
		h = *hi
	}
	return valueRange(l, h, false, false)
}

// valueRange renders bounds as [lo-hi]; exclusive bounds use parentheses, missing ones "unbounded".
func valueRange(lo, hi any, exclLo, exclHi bool) string {
	open, closing := "[", "]"
	if exclLo {
		open = "("
	}
	if exclHi {
		closing = ")"
	}
	bound := func(v any) string {
		if v == nil {
			return "unbounded"
		}
		return fmt.Sprint(v)
	}
	return open + bound(lo) + "-" + bound(hi) + closing
}
