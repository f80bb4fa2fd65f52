// Package schema models MongoDB flavored JSON schema documents.
//
// Nodes are immutable values: every mutator returns a modified copy and leaves the receiver
// untouched, so partially configured nodes can be shared and extended freely.
package schema

import "go.mongodb.org/mongo-driver/v2/bson"

// Type is a schema type name.
type Type string

// JSON types, rendered with the `type` keyword when a node only uses these.
const (
	TypeObject  Type = "object"
	TypeArray   Type = "array"
	TypeString  Type = "string"
	TypeNumber  Type = "number"
	TypeBoolean Type = "boolean"
	TypeNull    Type = "null"
)

// BSON types, rendered with the `bsonType` keyword.
const (
	TypeInt       Type = "int"
	TypeLong      Type = "long"
	TypeDouble    Type = "double"
	TypeDecimal   Type = "decimal"
	TypeDate      Type = "date"
	TypeTimestamp Type = "timestamp"
	TypeObjectID  Type = "objectId"
	TypeBinData   Type = "binData"
	TypeRegex     Type = "regex"
)

// IsJSON reports whether t is a plain JSON type.
func (t Type) IsJSON() bool {
	switch t {
	case TypeObject, TypeArray, TypeString, TypeNumber, TypeBoolean, TypeNull:
		return true
	}
	return false
}

// bsonName is the `bsonType` spelling of t.
func (t Type) bsonName() string {
	if t == TypeBoolean {
		return "bool"
	}
	return string(t)
}

func (t Type) isNumeric() bool {
	switch t {
	case TypeNumber, TypeInt, TypeLong, TypeDouble, TypeDecimal:
		return true
	}
	return false
}

// typeKeyword renders `type` when every type is a JSON type and `bsonType` otherwise.
// A single type is a string, several are an array.
func typeKeyword(types []Type) (bson.E, bool) {
	if len(types) == 0 {
		return bson.E{}, false
	}
	key := "type"
	for _, t := range types {
		if !t.IsJSON() {
			key = "bsonType"
			break
		}
	}
	names := make(bson.A, len(types))
	for i, t := range types {
		if key == "bsonType" {
			names[i] = t.bsonName()
		} else {
			names[i] = string(t)
		}
	}
	if len(names) == 1 {
		return bson.E{Key: key, Value: names[0]}, true
	}
	return bson.E{Key: key, Value: names}, true
}
