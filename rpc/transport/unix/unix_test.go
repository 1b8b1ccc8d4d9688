package unix

import (
	"bytes"
	"context"
	"fmt"
	"net"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/ValentinKolb/docdb/rpc/common"
)

// shortSocketPath returns a socket path below the length limit of unix sockets
func shortSocketPath(t *testing.T) string {
	dir, err := os.MkdirTemp("", "docdb")
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { os.RemoveAll(dir) })
	return filepath.Join(dir, "rpc.sock")
}

func waitForSocket(t *testing.T, path string) {
	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		if conn, err := net.Dial("unix", path); err == nil {
			conn.Close()
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatalf("server did not start listening on %s", path)
}

func TestUnixTransport(t *testing.T) {
	path := shortSocketPath(t)

	server := NewUnixServerTransport()
	server.RegisterHandler(func(req []byte) []byte {
		return bytes.ToUpper(req)
	})

	ctx, cancel := context.WithCancel(context.Background())
	listenErr := make(chan error, 1)
	go func() {
		listenErr <- server.Listen(ctx, common.ServerConfig{
			TimeoutSecond: 5,
			Transport:     common.ServerTransportConfig{Endpoint: path, WorkersPerConn: 4},
		})
	}()
	waitForSocket(t, path)

	client := NewUnixClientTransport()
	err := client.Connect(common.ClientConfig{
		TimeoutSecond: 5,
		Transport: common.ClientTransportConfig{
			Endpoints:              []string{path},
			ConnectionsPerEndpoint: 2,
			RetryCount:             2,
		},
	})
	if err != nil {
		t.Fatalf("failed to connect: %v", err)
	}
	defer client.Close()

	// concurrent requests are matched to their own responses
	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			req := []byte(fmt.Sprintf("request-%d", i))
			resp, err := client.Send(req)
			if err != nil {
				t.Errorf("request %d failed: %v", i, err)
				return
			}
			if !bytes.Equal(resp, bytes.ToUpper(req)) {
				t.Errorf("request %d got response %q", i, resp)
			}
		}(i)
	}
	wg.Wait()

	cancel()
	select {
	case err := <-listenErr:
		if err != nil {
			t.Errorf("expected nil error after cancellation, got %v", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("server did not stop after cancellation")
	}
}

func TestConnectWithoutServer(t *testing.T) {
	client := NewUnixClientTransport()
	err := client.Connect(common.ClientConfig{
		Transport: common.ClientTransportConfig{Endpoints: []string{shortSocketPath(t)}},
	})
	if err == nil {
		client.Close()
		t.Fatal("expected error when no server is listening")
	}
}

func TestListenWithoutHandler(t *testing.T) {
	server := NewUnixServerTransport()
	err := server.Listen(context.Background(), common.ServerConfig{
		Transport: common.ServerTransportConfig{Endpoint: shortSocketPath(t)},
	})
	if err == nil {
		t.Fatal("expected error when no handler is registered")
	}
}
