package server

import (
	"context"
	"testing"
	"time"

	"github.com/ValentinKolb/docdb/lib/persist"
	"github.com/ValentinKolb/docdb/lib/store"
	"github.com/ValentinKolb/docdb/rpc/common"
	"github.com/ValentinKolb/docdb/rpc/serializer"
	"github.com/ValentinKolb/docdb/rpc/transport"
	"go.mongodb.org/mongo-driver/bson"
)

// captureTransport records the registered handler and blocks in Listen until cancellation
type captureTransport struct {
	handler   transport.ServerHandleFunc
	listening chan struct{}
}

func (c *captureTransport) RegisterHandler(handler transport.ServerHandleFunc) {
	c.handler = handler
}

func (c *captureTransport) Listen(ctx context.Context, _ common.ServerConfig) error {
	close(c.listening)
	<-ctx.Done()
	return nil
}

func TestRequestHandler(t *testing.T) {
	ser := serializer.NewBinarySerializer()
	handler := NewRequestHandler(newTestStore(t), ser, NewIDocStoreServerAdapter())

	var resp common.Message
	if err := ser.Deserialize(handler([]byte{}), &resp); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if !store.IsCode(resp.AsError(), store.RetCInvalidArgument) {
		t.Errorf("expected invalid argument for undecodable request, got %v", resp.AsError())
	}

	req, err := ser.Serialize(*common.NewInsertRequest("users", [][]byte{mustEncode(t, bson.D{{Key: "a", Value: 1}})}, false))
	if err != nil {
		t.Fatal(err)
	}
	if err := ser.Deserialize(handler(req), &resp); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if err := resp.AsError(); err != nil || len(resp.IDs) != 1 {
		t.Errorf("expected one inserted document, got %+v", resp)
	}
}

func TestRunSyncsOnShutdown(t *testing.T) {
	dir := t.TempDir()
	tr := &captureTransport{listening: make(chan struct{})}
	ser := serializer.NewBinarySerializer()

	s := NewRPCServer(common.ServerConfig{
		DataDir:          dir,
		CacheTimeMinutes: 60,
		FlushTimeMinutes: 60,
		Compression:      "zstd",
	}, tr, ser)

	ctx, cancel := context.WithCancel(context.Background())
	runErr := make(chan error, 1)
	go func() { runErr <- s.Run(ctx) }()

	select {
	case <-tr.listening:
	case <-time.After(5 * time.Second):
		t.Fatal("server did not start listening")
	}

	req, err := ser.Serialize(*common.NewInsertRequest("notes", [][]byte{mustEncode(t, bson.D{{Key: "text", Value: "persist me"}})}, false))
	if err != nil {
		t.Fatal(err)
	}
	var resp common.Message
	if err := ser.Deserialize(tr.handler(req), &resp); err != nil || resp.AsError() != nil {
		t.Fatalf("insert failed: %v %v", err, resp.AsError())
	}

	cancel()
	select {
	case err := <-runErr:
		if err != nil {
			t.Fatalf("run returned error: %v", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("server did not stop")
	}

	// the final sync has written the document, the data directory is released
	disk, err := persist.Open(dir, persist.NoCompression)
	if err != nil {
		t.Fatalf("data directory still locked: %v", err)
	}
	defer disk.Close()
	c, ok, err := disk.Read("notes")
	if err != nil || !ok {
		t.Fatalf("collection not persisted: ok=%v err=%v", ok, err)
	}
	if c.Len() != 1 {
		t.Errorf("expected 1 persisted document, got %d", c.Len())
	}
}

func TestRunRejectsInvalidConfig(t *testing.T) {
	testCases := map[string]common.ServerConfig{
		"unknown compression": {DataDir: t.TempDir(), CacheTimeMinutes: 1, FlushTimeMinutes: 1, Compression: "brotli"},
		"zero cache time":     {DataDir: t.TempDir(), CacheTimeMinutes: 0, FlushTimeMinutes: 1},
	}

	for name, config := range testCases {
		t.Run(name, func(t *testing.T) {
			tr := &captureTransport{listening: make(chan struct{})}
			if err := NewRPCServer(config, tr, serializer.NewBinarySerializer()).Run(context.Background()); err == nil {
				t.Errorf("expected error")
			}
		})
	}
}
