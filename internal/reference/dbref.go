package reference

import (
	"go.mongodb.org/mongo-driver/v2/bson"

	"github.com/kailas-cloud/mongomap/internal/bsonutil"
)

// DBRefValue is a `{$ref, $id[, $db]}` pointer.
type DBRefValue struct {
	Collection string
	ID         any
	DB         string
}

// Document renders the pointer as stored.
func (r DBRefValue) Document() bson.D {
	d := bson.D{{Key: "$ref", Value: r.Collection}, {Key: "$id", Value: r.ID}}
	if r.DB != "" {
		d = append(d, bson.E{Key: "$db", Value: r.DB})
	}
	return d
}

// ParseDBRef reads a stored DBRef document.
func ParseDBRef(v any) (DBRefValue, bool) {
	d, ok := bsonutil.ToD(v)
	if !ok {
		return DBRefValue{}, false
	}
	coll, ok := bsonutil.Get(d, "$ref")
	if !ok {
		return DBRefValue{}, false
	}
	name, ok := coll.(string)
	if !ok || name == "" {
		return DBRefValue{}, false
	}
	id, ok := bsonutil.Get(d, "$id")
	if !ok {
		return DBRefValue{}, false
	}
	ref := DBRefValue{Collection: name, ID: id}
	if dbName, ok := bsonutil.Get(d, "$db"); ok {
		ref.DB, _ = dbName.(string)
	}
	return ref, true
}

// groupDBRefs groups ids by collection, keeping the order in which collections first appear.
func groupDBRefs(refs []DBRefValue) ([]string, map[string]bson.A) {
	var order []string
	ids := make(map[string]bson.A)
	for _, r := range refs {
		if _, seen := ids[r.Collection]; !seen {
			order = append(order, r.Collection)
		}
		ids[r.Collection] = append(ids[r.Collection], r.ID)
	}
	return order, ids
}

// byID returns the first document whose _id equals id.
func byID(docs []bson.Raw, id any) bson.Raw {
	for _, raw := range docs {
		v, err := raw.LookupErr("_id")
		if err != nil {
			continue
		}
		var got any
		if err := v.Unmarshal(&got); err != nil {
			continue
		}
		if bsonutil.Equal(got, id) {
			return raw
		}
	}
	return nil
}
