// Package bsonutil holds small helpers over the driver's bson types: relaxed JSON parsing for
// definitions written in struct tags, numeric coercion and document comparison.
package bsonutil

import (
	"fmt"
	"strings"

	"go.mongodb.org/mongo-driver/v2/bson"
)

// ParseRelaxed parses a JSON document that may use single-quoted strings and unquoted keys,
// e.g. `{ 'lastname' : 1, age: -1 }`. Key order is preserved.
func ParseRelaxed(s string) (bson.D, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil, fmt.Errorf("empty document")
	}
	normalized, err := normalize(s)
	if err != nil {
		return nil, fmt.Errorf("parse %q: %w", s, err)
	}
	var doc bson.D
	if err := bson.UnmarshalExtJSON([]byte(normalized), false, &doc); err != nil {
		return nil, fmt.Errorf("parse %q: %w", s, err)
	}
	return doc, nil
}

// MustParseRelaxed is ParseRelaxed that panics on error. Intended for package-level literals.
func MustParseRelaxed(s string) bson.D {
	d, err := ParseRelaxed(s)
	if err != nil {
		panic(err)
	}
	return d
}

// normalize rewrites single-quoted strings to double-quoted ones and quotes bare object keys.
func normalize(s string) (string, error) {
	var b strings.Builder
	b.Grow(len(s) + 8)

	for i := 0; i < len(s); i++ {
		c := s[i]
		switch {
		case c == '"' || c == '\'':
			end, err := copyString(&b, s, i)
			if err != nil {
				return "", err
			}
			i = end
		case isKeyStart(c) && expectsKey(s, i):
			j := i
			for j < len(s) && isKeyChar(s[j]) {
				j++
			}
			word := s[i:j]
			if isLiteral(word) {
				b.WriteString(word)
			} else {
				b.WriteByte('"')
				b.WriteString(word)
				b.WriteByte('"')
			}
			i = j - 1
		default:
			b.WriteByte(c)
		}
	}
	return b.String(), nil
}

// copyString copies the quoted string starting at s[start] as a double-quoted JSON string.
// Returns the index of the closing quote.
func copyString(b *strings.Builder, s string, start int) (int, error) {
	quote := s[start]
	b.WriteByte('"')
	for i := start + 1; i < len(s); i++ {
		c := s[i]
		switch {
		case c == '\\' && i+1 < len(s):
			next := s[i+1]
			if next == '\'' {
				b.WriteByte('\'')
			} else {
				b.WriteByte('\\')
				b.WriteByte(next)
			}
			i++
		case c == quote:
			b.WriteByte('"')
			return i, nil
		case c == '"':
			b.WriteString(`\"`)
		default:
			b.WriteByte(c)
		}
	}
	return 0, fmt.Errorf("unterminated string at offset %d", start)
}

// expectsKey reports whether position i is where an object key may start
// (previous non-space character is '{' or ',' inside an object).
func expectsKey(s string, i int) bool {
	for j := i - 1; j >= 0; j-- {
		switch s[j] {
		case ' ', '\t', '\n', '\r':
			continue
		case '{', ',':
			return true
		default:
			return false
		}
	}
	return false
}

func isKeyStart(c byte) bool {
	return c == '_' || c == '$' || (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z')
}

func isKeyChar(c byte) bool {
	return isKeyStart(c) || c == '.' || (c >= '0' && c <= '9')
}

func isLiteral(w string) bool {
	return w == "true" || w == "false" || w == "null"
}
