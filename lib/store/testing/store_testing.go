package testing

import (
	"fmt"
	"sync"
	"testing"

	"github.com/ValentinKolb/docdb/lib/db"
	"github.com/ValentinKolb/docdb/lib/store"
	"github.com/google/go-cmp/cmp"
	"github.com/google/uuid"
	"go.mongodb.org/mongo-driver/bson"
)

// StoreFactory creates a new, empty IDocStore. Resources should be released with t.Cleanup.
type StoreFactory func(t testing.TB) store.IDocStore

// RunDocStoreTests runs the conformance suite for an IDocStore implementation.
func RunDocStoreTests(t *testing.T, name string, factory StoreFactory) {
	t.Run(name, func(t *testing.T) {
		t.Run("InsertGet", func(t *testing.T) {
			testInsertGet(t, factory(t))
		})

		t.Run("InsertKeepsIdentity", func(t *testing.T) {
			testInsertKeepsIdentity(t, factory(t))
		})

		t.Run("InsertSkipsUndecodable", func(t *testing.T) {
			testInsertSkipsUndecodable(t, factory(t))
		})

		t.Run("EmptyInsertRejected", func(t *testing.T) {
			testEmptyInsertRejected(t, factory(t))
		})

		t.Run("UpdateWithLimit", func(t *testing.T) {
			testUpdateWithLimit(t, factory(t))
		})

		t.Run("UpdatePreservesIdentity", func(t *testing.T) {
			testUpdatePreservesIdentity(t, factory(t))
		})

		t.Run("EmptyUpdateRejected", func(t *testing.T) {
			testEmptyUpdateRejected(t, factory(t))
		})

		t.Run("Remove", func(t *testing.T) {
			testRemove(t, factory(t))
		})

		t.Run("FilterConjunction", func(t *testing.T) {
			testFilterConjunction(t, factory(t))
		})

		t.Run("LimitMonotonicity", func(t *testing.T) {
			testLimitMonotonicity(t, factory(t))
		})

		t.Run("Get", func(t *testing.T) {
			testGet(t, factory(t))
		})

		t.Run("NestedValues", func(t *testing.T) {
			testNestedValues(t, factory(t))
		})

		t.Run("ConcurrentCollections", func(t *testing.T) {
			testConcurrentCollections(t, factory(t))
		})

		t.Run("Info", func(t *testing.T) {
			testInfo(t, factory(t))
		})
	})
}

// --------------------------------------------------------------------------
// Helper functions
// --------------------------------------------------------------------------

func encode(t testing.TB, doc bson.D) []byte {
	t.Helper()
	data, err := db.EncodeDocument(doc)
	if err != nil {
		t.Fatalf("encode %v: %v", doc, err)
	}
	return data
}

func decode(t testing.TB, data []byte) bson.D {
	t.Helper()
	doc, err := db.DecodeDocument(data)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	return doc
}

func insert(t testing.TB, s store.IDocStore, collection string, docs ...bson.D) []store.InsertResult {
	t.Helper()
	raw := make([][]byte, len(docs))
	for i, d := range docs {
		raw[i] = encode(t, d)
	}
	results, err := s.Insert(collection, raw, false)
	if err != nil {
		t.Fatalf("insert into %s: %v", collection, err)
	}
	return results
}

func find(t testing.TB, s store.IDocStore, collection string, filter bson.D, limit uint32) []bson.D {
	t.Helper()
	raw, err := s.Find(collection, filter, limit)
	if err != nil {
		t.Fatalf("find in %s: %v", collection, err)
	}
	docs := make([]bson.D, len(raw))
	for i, r := range raw {
		docs[i] = decode(t, r)
	}
	return docs
}

func requireCode(t testing.TB, err error, code store.RetCode) {
	t.Helper()
	if !store.IsCode(err, code) {
		t.Fatalf("expected error code %s, got %v", code, err)
	}
}

// --------------------------------------------------------------------------
// Test functions
// --------------------------------------------------------------------------

func testInsertGet(t *testing.T, s store.IDocStore) {
	results := insert(t, s, "users", bson.D{{Key: "name", Value: "a"}})
	if len(results) != 1 {
		t.Fatalf("expected 1 result, got %d", len(results))
	}
	id, err := uuid.Parse(results[0].ID)
	if err != nil || id.Version() != 4 {
		t.Fatalf("expected a generated v4 identity, got %q (%v)", results[0].ID, err)
	}

	raw, found, err := s.Get("users", results[0].ID)
	if err != nil || !found {
		t.Fatalf("get: found=%v err=%v", found, err)
	}
	doc := decode(t, raw)
	if v, _ := db.Lookup(doc, "name"); v != "a" {
		t.Errorf("expected name = a, got %v", v)
	}
	if got, ok := db.DocumentID(doc); !ok || got != id {
		t.Errorf("stored identity %v does not match %s", got, id)
	}
}

func testInsertKeepsIdentity(t *testing.T, s store.IDocStore) {
	id := uuid.New()
	first := insert(t, s, "items", bson.D{{Key: "_id", Value: db.IDValue(id)}, {Key: "v", Value: int32(1)}})
	second := insert(t, s, "items", bson.D{{Key: "_id", Value: id.String()}, {Key: "v", Value: int32(2)}})
	if first[0].ID != id.String() || second[0].ID != id.String() {
		t.Fatalf("expected identity %s to be kept, got %s and %s", id, first[0].ID, second[0].ID)
	}

	docs := find(t, s, "items", nil, 0)
	if len(docs) != 1 {
		t.Fatalf("expected the colliding insert to replace, got %d documents", len(docs))
	}
	if v, _ := db.Lookup(docs[0], "v"); v != int32(2) {
		t.Errorf("expected the last write to win, got v = %v", v)
	}

	// returnOld carries the stored document
	results, err := s.Insert("items", [][]byte{encode(t, bson.D{{Key: "w", Value: true}})}, true)
	if err != nil {
		t.Fatal(err)
	}
	doc := decode(t, results[0].Document)
	if got, ok := db.DocumentID(doc); !ok || got.String() != results[0].ID {
		t.Errorf("returned document does not carry its identity: %v", doc)
	}
}

func testInsertSkipsUndecodable(t *testing.T, s store.IDocStore) {
	raw := [][]byte{
		encode(t, bson.D{{Key: "n", Value: int32(1)}}),
		[]byte("not a document"),
		encode(t, bson.D{{Key: "n", Value: int32(2)}}),
	}
	results, err := s.Insert("mixed", raw, false)
	if err != nil {
		t.Fatalf("insert: %v", err)
	}
	if len(results) != 2 {
		t.Errorf("expected 2 results, got %d", len(results))
	}
	if docs := find(t, s, "mixed", nil, 0); len(docs) != 2 {
		t.Errorf("expected 2 stored documents, got %d", len(docs))
	}
}

func testEmptyInsertRejected(t *testing.T, s store.IDocStore) {
	insert(t, s, "stable", bson.D{{Key: "x", Value: int32(1)}})

	for i := 0; i < 2; i++ {
		_, err := s.Insert("stable", nil, false)
		requireCode(t, err, store.RetCInvalidArgument)
	}
	if docs := find(t, s, "stable", nil, 0); len(docs) != 1 {
		t.Errorf("rejected insert changed the collection: %d documents", len(docs))
	}
}

func testUpdateWithLimit(t *testing.T, s store.IDocStore) {
	insert(t, s, "upd", bson.D{{Key: "x", Value: int32(1)}}, bson.D{{Key: "x", Value: int32(2)}})

	updated, err := s.Update("upd", bson.D{}, bson.D{{Key: "y", Value: true}}, 1)
	if err != nil {
		t.Fatalf("update: %v", err)
	}
	if len(updated) != 1 {
		t.Fatalf("expected 1 updated document, got %d", len(updated))
	}
	if v, _ := db.Lookup(decode(t, updated[0]), "y"); v != true {
		t.Errorf("returned document is not the updated one: y = %v", v)
	}

	withY := find(t, s, "upd", bson.D{{Key: "y", Value: true}}, 0)
	if len(withY) != 1 {
		t.Fatalf("expected exactly one document with y = true, got %d", len(withY))
	}
	all := find(t, s, "upd", nil, 0)
	for _, doc := range all {
		if db.Equal(doc, withY[0]) {
			continue
		}
		if _, has := db.Lookup(doc, "y"); has || len(doc) != 2 {
			t.Errorf("the other document must stay unchanged, got %v", doc)
		}
	}
}

func testUpdatePreservesIdentity(t *testing.T, s store.IDocStore) {
	results := insert(t, s, "ids", bson.D{{Key: "a", Value: int32(1)}}, bson.D{{Key: "a", Value: int32(1)}})
	updated, err := s.Update("ids", bson.D{{Key: "a", Value: int32(1)}}, bson.D{
		{Key: "_id", Value: db.IDValue(uuid.New())},
		{Key: "a", Value: int32(2)},
	}, 0)
	if err != nil {
		t.Fatalf("update: %v", err)
	}
	if len(updated) != 2 {
		t.Fatalf("expected 2 updated documents, got %d", len(updated))
	}

	for _, r := range results {
		raw, found, err := s.Get("ids", r.ID)
		if err != nil || !found {
			t.Fatalf("document %s lost after update: %v", r.ID, err)
		}
		if v, _ := db.Lookup(decode(t, raw), "a"); v != int32(2) {
			t.Errorf("document %s not updated: a = %v", r.ID, v)
		}
	}
}

func testEmptyUpdateRejected(t *testing.T, s store.IDocStore) {
	insert(t, s, "noupd", bson.D{{Key: "a", Value: int32(1)}})
	_, err := s.Update("noupd", bson.D{}, bson.D{}, 0)
	requireCode(t, err, store.RetCInvalidArgument)
}

func testRemove(t *testing.T, s store.IDocStore) {
	insert(t, s, "rm", bson.D{{Key: "x", Value: int32(1)}}, bson.D{{Key: "x", Value: int32(2)}})

	count, err := s.Remove("rm", bson.D{{Key: "x", Value: int32(1)}}, 0)
	if err != nil || count != 1 {
		t.Fatalf("expected 1 removed document, got %d (%v)", count, err)
	}
	if docs := find(t, s, "rm", bson.D{{Key: "x", Value: int32(1)}}, 0); len(docs) != 0 {
		t.Errorf("removed document still found: %v", docs)
	}
	if docs := find(t, s, "rm", nil, 0); len(docs) != 1 {
		t.Errorf("expected 1 remaining document, got %d", len(docs))
	}

	count, err = s.Remove("rm", bson.D{{Key: "x", Value: int32(99)}}, 0)
	if err != nil || count != 0 {
		t.Errorf("expected nothing removed, got %d (%v)", count, err)
	}
}

func testFilterConjunction(t *testing.T, s store.IDocStore) {
	insert(t, s, "conj",
		bson.D{{Key: "a", Value: int32(1)}, {Key: "b", Value: "x"}},
		bson.D{{Key: "a", Value: int32(1)}, {Key: "b", Value: "y"}},
		bson.D{{Key: "a", Value: int32(1)}},
		bson.D{{Key: "b", Value: "x"}},
		bson.D{{Key: "a", Value: int64(1)}, {Key: "b", Value: "x"}},
	)

	filter := bson.D{{Key: "a", Value: int32(1)}, {Key: "b", Value: "x"}}
	docs := find(t, s, "conj", filter, 0)
	if len(docs) != 1 {
		t.Fatalf("expected exactly 1 match, got %d", len(docs))
	}
	if !db.Matches(docs[0], filter) {
		t.Errorf("returned document does not match the filter: %v", docs[0])
	}

	updated, err := s.Update("conj", filter, bson.D{{Key: "hit", Value: true}}, 0)
	if err != nil || len(updated) != 1 {
		t.Errorf("expected update to hit 1 document, got %d (%v)", len(updated), err)
	}
	count, err := s.Remove("conj", filter, 0)
	if err != nil || count != 1 {
		t.Errorf("expected remove to hit 1 document, got %d (%v)", count, err)
	}
}

func testLimitMonotonicity(t *testing.T, s store.IDocStore) {
	docs := make([]bson.D, 10)
	for i := range docs {
		docs[i] = bson.D{{Key: "group", Value: "g"}, {Key: "i", Value: int32(i)}}
	}
	insert(t, s, "limits", docs...)

	for _, limit := range []uint32{0, 1, 3, 10, 20} {
		want := 10
		if limit > 0 && int(limit) < want {
			want = int(limit)
		}
		if got := find(t, s, "limits", bson.D{{Key: "group", Value: "g"}}, limit); len(got) != want {
			t.Errorf("find limit %d: expected %d documents, got %d", limit, want, len(got))
		}
	}

	updated, err := s.Update("limits", nil, bson.D{{Key: "u", Value: true}}, 4)
	if err != nil || len(updated) != 4 {
		t.Errorf("update limit 4: expected 4, got %d (%v)", len(updated), err)
	}
	count, err := s.Remove("limits", nil, 3)
	if err != nil || count != 3 {
		t.Errorf("remove limit 3: expected 3, got %d (%v)", count, err)
	}
	if rest := find(t, s, "limits", nil, 0); len(rest) != 7 {
		t.Errorf("expected 7 remaining documents, got %d", len(rest))
	}
}

func testGet(t *testing.T, s store.IDocStore) {
	_, _, err := s.Get("get", "not-a-uuid")
	requireCode(t, err, store.RetCInvalidArgument)

	raw, found, err := s.Get("get", uuid.NewString())
	if err != nil || found || raw != nil {
		t.Errorf("expected an empty result for an absent document, got found=%v err=%v", found, err)
	}
}

func testNestedValues(t *testing.T, s store.IDocStore) {
	doc := bson.D{
		{Key: "profile", Value: bson.D{{Key: "city", Value: "berlin"}, {Key: "zip", Value: "10115"}}},
		{Key: "tags", Value: bson.A{"a", "b"}},
	}
	results := insert(t, s, "nested", doc)

	// nested documents compare as field sets
	reordered := bson.D{{Key: "profile", Value: bson.D{{Key: "zip", Value: "10115"}, {Key: "city", Value: "berlin"}}}}
	if got := find(t, s, "nested", reordered, 0); len(got) != 1 {
		t.Errorf("expected a match with reordered nested fields, got %d", len(got))
	}

	// no partial match on nested documents or arrays
	partial := bson.D{{Key: "profile", Value: bson.D{{Key: "city", Value: "berlin"}}}}
	if got := find(t, s, "nested", partial, 0); len(got) != 0 {
		t.Errorf("expected no partial nested match, got %d", len(got))
	}
	if got := find(t, s, "nested", bson.D{{Key: "tags", Value: bson.A{"b", "a"}}}, 0); len(got) != 0 {
		t.Errorf("array order must matter, got %d matches", len(got))
	}

	raw, _, err := s.Get("nested", results[0].ID)
	if err != nil {
		t.Fatal(err)
	}
	got := decode(t, raw)
	want := append(bson.D{}, doc...)
	want = append(want, bson.E{Key: "_id", Value: db.IDValue(uuid.MustParse(results[0].ID))})
	if !db.Equal(want, got) {
		t.Errorf("stored document differs:\n%s", cmp.Diff(want, got))
	}
}

func testConcurrentCollections(t *testing.T, s store.IDocStore) {
	const workers = 8
	const perWorker = 25

	var wg sync.WaitGroup
	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func(w int) {
			defer wg.Done()
			// two workers share every collection
			collection := fmt.Sprintf("concurrent-%d", w%4)
			for i := 0; i < perWorker; i++ {
				raw, _ := db.EncodeDocument(bson.D{{Key: "w", Value: int32(w)}, {Key: "i", Value: int32(i)}})
				if _, err := s.Insert(collection, [][]byte{raw}, false); err != nil {
					t.Errorf("insert: %v", err)
					return
				}
				if _, err := s.Find(collection, bson.D{{Key: "w", Value: int32(w)}}, 0); err != nil {
					t.Errorf("find: %v", err)
					return
				}
			}
		}(w)
	}
	wg.Wait()

	for c := 0; c < 4; c++ {
		if docs := find(t, s, fmt.Sprintf("concurrent-%d", c), nil, 0); len(docs) != 2*perWorker {
			t.Errorf("collection %d: expected %d documents, got %d", c, 2*perWorker, len(docs))
		}
	}
}

func testInfo(t *testing.T, s store.IDocStore) {
	insert(t, s, "info-a", bson.D{{Key: "x", Value: int32(1)}})
	insert(t, s, "info-b", bson.D{{Key: "x", Value: int32(1)}}, bson.D{{Key: "x", Value: int32(2)}})

	info, err := s.GetInfo()
	if err != nil {
		t.Fatalf("info: %v", err)
	}
	counts := map[string]int{}
	for _, c := range info.Collections {
		counts[c.Name] = c.Documents
	}
	if counts["info-a"] != 1 || counts["info-b"] != 2 {
		t.Errorf("unexpected collection info: %v", counts)
	}
}
