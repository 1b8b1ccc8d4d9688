package server

import (
	"testing"
	"time"

	"github.com/ValentinKolb/docdb/lib/db"
	"github.com/ValentinKolb/docdb/lib/store"
	"github.com/ValentinKolb/docdb/lib/store/cstore"
	"github.com/ValentinKolb/docdb/rpc/common"
	"go.mongodb.org/mongo-driver/bson"
)

func newTestStore(t *testing.T) store.IDocStore {
	t.Helper()
	engine, err := cstore.NewEngine(cstore.Config{
		DataDir:   t.TempDir(),
		CacheTime: time.Minute,
		FlushTime: 5 * time.Minute,
	})
	if err != nil {
		t.Fatalf("failed to create engine: %v", err)
	}
	t.Cleanup(func() { _ = engine.Close() })
	return engine
}

func mustEncode(t *testing.T, doc bson.D) []byte {
	t.Helper()
	data, err := db.EncodeDocument(doc)
	if err != nil {
		t.Fatal(err)
	}
	return data
}

func TestSanitizeName(t *testing.T) {
	testCases := []struct {
		name    string
		want    string
		wantErr bool
	}{
		{name: "users", want: "users"},
		{name: "Users", want: "users"},
		{name: "MIXED_case-42", want: "mixed_case-42"},
		{name: "", wantErr: true},
		{name: "a.b", wantErr: true},
		{name: "..", wantErr: true},
		{name: "a/b", wantErr: true},
		{name: "a\\b", wantErr: true},
		{name: "a\x00b", wantErr: true},
	}

	for _, tc := range testCases {
		got, err := SanitizeName(tc.name)
		if tc.wantErr {
			if err == nil {
				t.Errorf("SanitizeName(%q): expected error, got %q", tc.name, got)
			}
			continue
		}
		if err != nil || got != tc.want {
			t.Errorf("SanitizeName(%q) = %q, %v; want %q", tc.name, got, err, tc.want)
		}
	}
}

func TestAdapterValidation(t *testing.T) {
	adapter := NewIDocStoreServerAdapter()
	s := newTestStore(t)

	testCases := []struct {
		name string
		req  *common.Message
	}{
		{name: "insert into invalid name", req: common.NewInsertRequest("../etc", [][]byte{mustEncode(t, bson.D{})}, false)},
		{name: "insert without documents", req: common.NewInsertRequest("users", nil, false)},
		{name: "find with malformed filter", req: common.NewFindRequest("users", []byte{1, 2, 3}, 0)},
		{name: "remove with malformed filter", req: common.NewRemoveRequest("users", []byte{5, 0, 0, 0, 1}, 0)},
		{name: "update with malformed updates", req: common.NewUpdateRequest("users", nil, []byte{9}, 0)},
		{name: "get with empty name", req: common.NewGetRequest("", "id")},
		{name: "unsupported message", req: &common.Message{MsgType: common.MsgTSuccess, Collection: "users"}},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			resp := adapter.Handle(tc.req, s)
			if err := resp.AsError(); !store.IsCode(err, store.RetCInvalidArgument) {
				t.Errorf("expected invalid argument, got %v", err)
			}
		})
	}

	if resp := adapter.Handle(common.NewInfoRequest(), nil); !store.IsCode(resp.AsError(), store.RetCInternalError) {
		t.Errorf("expected internal error without store, got %v", resp.AsError())
	}
}

func TestAdapterOperations(t *testing.T) {
	adapter := NewIDocStoreServerAdapter()
	s := newTestStore(t)

	// names are normalized before they reach the store
	insert := adapter.Handle(common.NewInsertRequest("Users", [][]byte{
		mustEncode(t, bson.D{{Key: "name", Value: "ada"}, {Key: "role", Value: "admin"}}),
		mustEncode(t, bson.D{{Key: "name", Value: "bob"}, {Key: "role", Value: "user"}}),
	}, false), s)
	if err := insert.AsError(); err != nil {
		t.Fatalf("insert failed: %v", err)
	}
	results := insert.InsertResults()
	if len(results) != 2 {
		t.Fatalf("expected 2 insert results, got %d", len(results))
	}

	get := adapter.Handle(common.NewGetRequest("users", results[0].ID), s)
	if !get.Ok || len(get.Documents) != 1 {
		t.Fatalf("expected document %s to be found, got %+v", results[0].ID, get)
	}

	// an empty filter matches everything
	find := adapter.Handle(common.NewFindRequest("USERS", nil, 0), s)
	if find.Count != 2 {
		t.Errorf("expected 2 documents, got %d", find.Count)
	}

	update := adapter.Handle(common.NewUpdateRequest("users",
		mustEncode(t, bson.D{{Key: "role", Value: "user"}}),
		mustEncode(t, bson.D{{Key: "role", Value: "admin"}}), 0), s)
	if update.Count != 1 {
		t.Errorf("expected 1 updated document, got %d (%v)", update.Count, update.AsError())
	}

	remove := adapter.Handle(common.NewRemoveRequest("users", mustEncode(t, bson.D{{Key: "role", Value: "admin"}}), 1), s)
	if remove.Count != 1 {
		t.Errorf("expected 1 removed document with limit 1, got %d", remove.Count)
	}

	info := adapter.Handle(common.NewInfoRequest(), s)
	if err := info.AsError(); err != nil || len(info.Meta) == 0 {
		t.Errorf("expected info meta, got %v", err)
	}
}
