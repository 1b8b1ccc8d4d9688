// Package db provides the in-memory data model of the document store: documents,
// their identities and the collection structure that holds them.
//
// The package focuses on:
//   - A schema-less document type based on ordered BSON documents (bson.D)
//   - 128-bit random identities (UUID v4) stored in the "_id" field
//   - Deep structural equality used by equality filters
//   - An identity-sorted collection structure with a whole-collection binary codec
//
// Key Components:
//
//   - Document: An ordered field-to-value mapping. Values are any BSON value
//     (null, bool, int32, int64, double, string, binary, datetime, nested
//     documents, arrays, ...). Documents returned to callers are snapshots;
//     mutation always replaces the stored document of an identity.
//
//   - Identity: The value of the "_id" field. A value is a valid identity if it
//     is a BSON binary of subtype 4 (or the legacy subtype 3) holding exactly
//     16 bytes, or a string in any format accepted by uuid.Parse. Generated
//     identities are stored as binary subtype 4.
//
//   - Collection: A B-tree (github.com/google/btree) of documents keyed by
//     identity. Iteration happens in identity byte order, not in insertion order.
//     The structure itself is not synchronized; callers own the locking (see the
//     cstore package).
//
//   - Codec: EncodeCollection and DecodeCollection translate a collection to and
//     from a single BSON document of the form {"<uuid>": <document>, ...}.
//     Malformed input is reported as ErrCorrupt and never silently treated as
//     an empty collection.
//
// Equality Semantics:
//
//	Equal compares decoded values by type and content. int32(1) and int64(1) are
//	different values. Nested documents compare as sets of fields (field order is
//	ignored), arrays compare element-wise in order and binaries compare subtype
//	and payload.
package db
