package db

import (
	"bytes"
	"fmt"
	"reflect"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

// IDField is the name of the field holding the identity of a document
const IDField = "_id"

// --------------------------------------------------------------------------
// Encoding
// --------------------------------------------------------------------------

// DecodeDocument decodes a single BSON document.
// Nested documents are decoded as bson.D and arrays as bson.A.
func DecodeDocument(data []byte) (bson.D, error) {
	if err := bson.Raw(data).Validate(); err != nil {
		return nil, fmt.Errorf("invalid document: %w", err)
	}
	var doc bson.D
	if err := bson.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("invalid document: %w", err)
	}
	if doc == nil {
		doc = bson.D{}
	}
	return doc, nil
}

// EncodeDocument encodes a document into its BSON representation
func EncodeDocument(doc bson.D) ([]byte, error) {
	if doc == nil {
		doc = bson.D{}
	}
	return bson.Marshal(doc)
}

// --------------------------------------------------------------------------
// Field Access
// --------------------------------------------------------------------------

// Lookup returns the value of the first field with the given key
func Lookup(doc bson.D, key string) (interface{}, bool) {
	for _, e := range doc {
		if e.Key == key {
			return e.Value, true
		}
	}
	return nil, false
}

// Set returns a copy of doc where the field key holds value.
// An existing field keeps its position, a new field is appended.
func Set(doc bson.D, key string, value interface{}) bson.D {
	out := make(bson.D, len(doc), len(doc)+1)
	copy(out, doc)
	for i := range out {
		if out[i].Key == key {
			out[i].Value = value
			return out
		}
	}
	return append(out, bson.E{Key: key, Value: value})
}

// Merge returns a copy of doc with every field of updates added or overwritten.
// The identity field of updates is ignored, the identity of doc never changes.
func Merge(doc bson.D, updates bson.D) bson.D {
	out := make(bson.D, len(doc), len(doc)+len(updates))
	copy(out, doc)
	for _, u := range updates {
		if u.Key == IDField {
			continue
		}
		replaced := false
		for i := range out {
			if out[i].Key == u.Key {
				out[i].Value = u.Value
				replaced = true
				break
			}
		}
		if !replaced {
			out = append(out, u)
		}
	}
	return out
}

// --------------------------------------------------------------------------
// Matching
// --------------------------------------------------------------------------

// Matches reports whether doc has every field of filter with an equal value.
// An empty filter matches every document.
func Matches(doc bson.D, filter bson.D) bool {
	for _, f := range filter {
		v, ok := Lookup(doc, f.Key)
		if !ok || !Equal(v, f.Value) {
			return false
		}
	}
	return true
}

// Equal compares two decoded BSON values by type and content
func Equal(a, b interface{}) bool {
	switch av := a.(type) {
	case bson.D:
		bv, ok := b.(bson.D)
		return ok && equalDocuments(av, bv)
	case bson.M:
		bv, ok := b.(bson.M)
		if !ok || len(av) != len(bv) {
			return false
		}
		for k, v := range av {
			w, found := bv[k]
			if !found || !Equal(v, w) {
				return false
			}
		}
		return true
	case bson.A:
		bv, ok := b.(bson.A)
		if !ok || len(av) != len(bv) {
			return false
		}
		for i := range av {
			if !Equal(av[i], bv[i]) {
				return false
			}
		}
		return true
	case primitive.Binary:
		bv, ok := b.(primitive.Binary)
		return ok && av.Subtype == bv.Subtype && bytes.Equal(av.Data, bv.Data)
	case nil:
		return b == nil
	default:
		return reflect.DeepEqual(a, b)
	}
}

// equalDocuments compares two documents as sets of fields
func equalDocuments(a, b bson.D) bool {
	if len(a) != len(b) {
		return false
	}
	for _, e := range a {
		v, ok := Lookup(b, e.Key)
		if !ok || !Equal(e.Value, v) {
			return false
		}
	}
	return true
}
