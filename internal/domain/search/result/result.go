package result

import "go.mongodb.org/mongo-driver/v2/bson"

// Result is a single search hit: the matched document and its relevance score.
type Result struct {
	doc   bson.Raw
	score float64
}

// New creates a search result.
func New(doc bson.Raw, score float64) Result {
	return Result{doc: doc, score: score}
}

// Document returns the raw matched document.
func (r *Result) Document() bson.Raw { return r.doc }

// Score returns the relevance score.
func (r *Result) Score() float64 { return r.score }

// ID returns the document's _id value.
func (r *Result) ID() bson.RawValue {
	v, err := r.doc.LookupErr("_id")
	if err != nil {
		return bson.RawValue{}
	}
	return v
}

// Key identifies the document across result lists.
func (r *Result) Key() string {
	id := r.ID()
	if id.Type == 0 {
		return r.doc.String()
	}
	return id.Type.String() + ":" + id.String()
}

// WithScore returns a copy with a different score.
func (r Result) WithScore(score float64) Result {
	r.score = score
	return r
}
