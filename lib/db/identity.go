package db

import (
	"github.com/google/uuid"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

// BSON binary subtypes that may carry an identity
const (
	binarySubtypeUUIDOld byte = 0x03
	binarySubtypeUUID    byte = 0x04
)

// ParseID interprets a decoded BSON value as an identity
func ParseID(v interface{}) (uuid.UUID, bool) {
	switch id := v.(type) {
	case primitive.Binary:
		if (id.Subtype != binarySubtypeUUID && id.Subtype != binarySubtypeUUIDOld) || len(id.Data) != 16 {
			return uuid.Nil, false
		}
		parsed, err := uuid.FromBytes(id.Data)
		return parsed, err == nil
	case string:
		parsed, err := uuid.Parse(id)
		return parsed, err == nil
	default:
		return uuid.Nil, false
	}
}

// IDValue returns the BSON representation of an identity
func IDValue(id uuid.UUID) primitive.Binary {
	data := make([]byte, 16)
	copy(data, id[:])
	return primitive.Binary{Subtype: binarySubtypeUUID, Data: data}
}

// DocumentID returns the identity of a document if its "_id" field holds a valid one
func DocumentID(doc bson.D) (uuid.UUID, bool) {
	v, ok := Lookup(doc, IDField)
	if !ok {
		return uuid.Nil, false
	}
	return ParseID(v)
}

// EnsureID returns the identity of doc. If doc carries no valid identity, a new
// random one is generated and written into the "_id" field of the returned copy.
func EnsureID(doc bson.D) (bson.D, uuid.UUID) {
	if id, ok := DocumentID(doc); ok {
		return doc, id
	}
	id := uuid.New()
	return Set(doc, IDField, IDValue(id)), id
}
