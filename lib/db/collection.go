package db

import (
	"bytes"
	"errors"
	"fmt"

	"github.com/google/btree"
	"github.com/google/uuid"
	"go.mongodb.org/mongo-driver/bson"
)

// ErrCorrupt is returned when persisted collection bytes cannot be decoded
var ErrCorrupt = errors.New("corrupt collection data")

// btreeDegree is the degree of the B-tree backing a collection
const btreeDegree = 32

// item is a single document stored in the collection tree
type item struct {
	id  uuid.UUID
	doc bson.D
}

func lessItem(a, b item) bool {
	return bytes.Compare(a.id[:], b.id[:]) < 0
}

// Collection is a set of documents keyed by identity and ordered by identity bytes.
//
// Thread-safety: Collection is not synchronized. Concurrent readers are safe,
// writers need exclusive access.
type Collection struct {
	tree *btree.BTreeG[item]
}

// NewCollection creates an empty collection
func NewCollection() *Collection {
	return &Collection{tree: btree.NewG[item](btreeDegree, lessItem)}
}

// Put stores doc under id, replacing a document with the same identity.
// It reports whether a document was replaced.
func (c *Collection) Put(id uuid.UUID, doc bson.D) bool {
	_, replaced := c.tree.ReplaceOrInsert(item{id: id, doc: doc})
	return replaced
}

// Get returns the document stored under id
func (c *Collection) Get(id uuid.UUID) (bson.D, bool) {
	it, ok := c.tree.Get(item{id: id})
	return it.doc, ok
}

// Delete removes the document stored under id and reports whether it existed
func (c *Collection) Delete(id uuid.UUID) bool {
	_, ok := c.tree.Delete(item{id: id})
	return ok
}

// Len returns the number of documents
func (c *Collection) Len() int {
	return c.tree.Len()
}

// Ascend calls fn for every document in identity order until fn returns false
func (c *Collection) Ascend(fn func(id uuid.UUID, doc bson.D) bool) {
	c.tree.Ascend(func(it item) bool {
		return fn(it.id, it.doc)
	})
}

// --------------------------------------------------------------------------
// Codec
// --------------------------------------------------------------------------

// EncodeCollection encodes the whole collection as one BSON document that maps
// the string form of every identity to its document.
func EncodeCollection(c *Collection) ([]byte, error) {
	root := make(bson.D, 0, c.Len())
	c.Ascend(func(id uuid.UUID, doc bson.D) bool {
		root = append(root, bson.E{Key: id.String(), Value: doc})
		return true
	})
	data, err := bson.Marshal(root)
	if err != nil {
		return nil, fmt.Errorf("encode collection: %w", err)
	}
	return data, nil
}

// DecodeCollection decodes bytes produced by EncodeCollection.
// Any malformed input is reported as an error wrapping ErrCorrupt.
func DecodeCollection(data []byte) (*Collection, error) {
	raw := bson.Raw(data)
	if err := raw.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrCorrupt, err)
	}
	elements, err := raw.Elements()
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrCorrupt, err)
	}

	c := NewCollection()
	for _, elem := range elements {
		id, err := uuid.Parse(elem.Key())
		if err != nil {
			return nil, fmt.Errorf("%w: invalid identity %q", ErrCorrupt, elem.Key())
		}
		nested, ok := elem.Value().DocumentOK()
		if !ok {
			return nil, fmt.Errorf("%w: value of %s is not a document", ErrCorrupt, id)
		}
		var doc bson.D
		if err := bson.Unmarshal(nested, &doc); err != nil {
			return nil, fmt.Errorf("%w: document %s: %v", ErrCorrupt, id, err)
		}
		if doc == nil {
			doc = bson.D{}
		}
		c.Put(id, doc)
	}
	return c, nil
}
