package cstore

import (
	"github.com/ValentinKolb/docdb/lib/db"
	"github.com/ValentinKolb/docdb/lib/store"
	"github.com/google/uuid"
	"go.mongodb.org/mongo-driver/bson"
)

// --------------------------------------------------------------------------
// Interface Methods (docu see store/interface.go)
// --------------------------------------------------------------------------

type candidate struct {
	id  uuid.UUID
	doc bson.D
}

func (e *Engine) Insert(collection string, documents [][]byte, returnOld bool) ([]store.InsertResult, error) {
	if len(documents) == 0 {
		return nil, store.NewError(store.RetCInvalidArgument, "no documents to insert")
	}

	// decoding happens before the collection is locked
	candidates := make([]candidate, 0, len(documents))
	results := make([]store.InsertResult, 0, len(documents))
	for i, raw := range documents {
		doc, err := db.DecodeDocument(raw)
		if err != nil {
			Logger.Debugf("insert into %s: skipping document %d: %v", collection, i, err)
			continue
		}
		doc, id := db.EnsureID(doc)
		candidates = append(candidates, candidate{id: id, doc: doc})

		result := store.InsertResult{ID: id.String()}
		if returnOld {
			encoded, err := db.EncodeDocument(doc)
			if err != nil {
				return nil, store.Errorf(store.RetCInternalError, "encode document %s: %v", id, err)
			}
			result.Document = encoded
		}
		results = append(results, result)
	}

	err := e.withCollection(collection, true, store.RetCNotFound, func(docs *db.Collection) (int, error) {
		for _, c := range candidates {
			docs.Put(c.id, c.doc)
		}
		return len(candidates), nil
	})
	if err != nil {
		return nil, err
	}
	return results, nil
}

func (e *Engine) Update(collection string, filter, updates bson.D, limit uint32) ([][]byte, error) {
	if len(updates) == 0 {
		return nil, store.NewError(store.RetCInvalidArgument, "no updates given")
	}

	var out [][]byte
	err := e.withCollection(collection, true, store.RetCInternalError, func(docs *db.Collection) (int, error) {
		// collect first, the tree must not change while it is iterated
		var matched []candidate
		docs.Ascend(func(id uuid.UUID, doc bson.D) bool {
			if limitReached(len(matched), limit) {
				return false
			}
			if db.Matches(doc, filter) {
				matched = append(matched, candidate{id: id, doc: db.Merge(doc, updates)})
			}
			return true
		})

		// encode everything before applying anything
		out = make([][]byte, 0, len(matched))
		for _, m := range matched {
			encoded, err := db.EncodeDocument(m.doc)
			if err != nil {
				return 0, store.Errorf(store.RetCInternalError, "encode document %s: %v", m.id, err)
			}
			out = append(out, encoded)
		}
		for _, m := range matched {
			docs.Put(m.id, m.doc)
		}
		return len(matched), nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

func (e *Engine) Remove(collection string, filter bson.D, limit uint32) (uint32, error) {
	var removed uint32
	err := e.withCollection(collection, true, store.RetCInternalError, func(docs *db.Collection) (int, error) {
		var ids []uuid.UUID
		docs.Ascend(func(id uuid.UUID, doc bson.D) bool {
			if limitReached(len(ids), limit) {
				return false
			}
			if db.Matches(doc, filter) {
				ids = append(ids, id)
			}
			return true
		})
		for _, id := range ids {
			if docs.Delete(id) {
				removed++
			}
		}
		return int(removed), nil
	})
	if err != nil {
		return 0, err
	}
	return removed, nil
}

func (e *Engine) Find(collection string, filter bson.D, limit uint32) ([][]byte, error) {
	var out [][]byte
	err := e.withCollection(collection, false, store.RetCInternalError, func(docs *db.Collection) (int, error) {
		var encodeErr error
		docs.Ascend(func(id uuid.UUID, doc bson.D) bool {
			if limitReached(len(out), limit) {
				return false
			}
			if !db.Matches(doc, filter) {
				return true
			}
			encoded, err := db.EncodeDocument(doc)
			if err != nil {
				encodeErr = store.Errorf(store.RetCInternalError, "encode document %s: %v", id, err)
				return false
			}
			out = append(out, encoded)
			return true
		})
		return 0, encodeErr
	})
	if err != nil {
		return nil, err
	}
	if out == nil {
		out = [][]byte{}
	}
	return out, nil
}

func (e *Engine) Get(collection string, id string) ([]byte, bool, error) {
	parsed, err := uuid.Parse(id)
	if err != nil {
		return nil, false, store.Errorf(store.RetCInvalidArgument, "invalid document id %q: %v", id, err)
	}

	var out []byte
	err = e.withCollection(collection, false, store.RetCInternalError, func(docs *db.Collection) (int, error) {
		doc, ok := docs.Get(parsed)
		if !ok {
			return 0, nil
		}
		encoded, err := db.EncodeDocument(doc)
		if err != nil {
			return 0, store.Errorf(store.RetCInternalError, "encode document %s: %v", parsed, err)
		}
		out = encoded
		return 0, nil
	})
	if err != nil {
		return nil, false, err
	}
	return out, out != nil, nil
}

// limitReached reports whether n matches exhaust limit, 0 means unlimited
func limitReached(n int, limit uint32) bool {
	return limit > 0 && uint32(n) >= limit
}
