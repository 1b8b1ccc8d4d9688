package base

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"os"
	"sync"
	"time"

	"github.com/ValentinKolb/docdb/rpc/common"
	"github.com/ValentinKolb/docdb/rpc/transport"
	"github.com/puzpuzpuz/xsync/v3"
	"github.com/sourcegraph/conc"
	"github.com/sourcegraph/conc/pool"
)

// -----------------------------------------------------------
// Interface Definitions for dependency injection
// -----------------------------------------------------------

// IServerConnector defines the interface for transport-specific server operations
type IServerConnector interface {
	// Listen creates a listener and returns it
	Listen(config common.ServerConfig) (net.Listener, error)

	// GetName returns the name of the transport type (e.g., "unix", "tcp")
	GetName() string

	// UpgradeConnection applies protocol-specific settings to an accepted connection
	UpgradeConnection(conn net.Conn, config common.ServerConfig) error
}

// -----------------------------------------------------------
// Helper Types
// -----------------------------------------------------------

// serverTransport implements the core server transport functionality
type serverTransport struct {
	connector      IServerConnector
	handler        transport.ServerHandleFunc
	config         common.ServerConfig
	bufferPool     *sync.Pool
	workersPerConn int
	conns          *xsync.MapOf[net.Conn, struct{}]
}

// -----------------------------------------------------------
// Transport Factory Method (used for tcp, unix)
// -----------------------------------------------------------

// NewBaseServerTransport creates a new base server transport with a per-connection worker pool.
// workersPerConn is the default limit, config.Transport.WorkersPerConn overrides it.
func NewBaseServerTransport(connector IServerConnector, bufferSize int, workersPerConn int) transport.IRPCServerTransport {
	return &serverTransport{
		connector:      connector,
		workersPerConn: max(workersPerConn, 1), // minimum one worker per connection
		conns:          xsync.NewMapOf[net.Conn, struct{}](),
		bufferPool: &sync.Pool{
			New: func() interface{} {
				return make([]byte, bufferSize)
			},
		},
	}
}

// --------------------------------------------------------------------------
// Interface Methods (docu see transport.IRPCServerTransport)
// --------------------------------------------------------------------------

func (t *serverTransport) RegisterHandler(handler transport.ServerHandleFunc) {
	t.handler = handler
}

func (t *serverTransport) Listen(ctx context.Context, config common.ServerConfig) error {
	if t.handler == nil {
		return fmt.Errorf("no handler registered")
	}
	t.config = config
	if config.Transport.WorkersPerConn > 0 {
		t.workersPerConn = config.Transport.WorkersPerConn
	}

	listener, err := t.connector.Listen(config)
	if err != nil {
		return fmt.Errorf("failed to create listener: %w", err)
	}

	Logger.Infof("Starting %s server on %s with %d workers per connection",
		t.connector.GetName(), config.Transport.Endpoint, t.workersPerConn)

	// stop accepting and unblock all readers once the context is cancelled
	stop := context.AfterFunc(ctx, func() {
		listener.Close()
		t.conns.Range(func(conn net.Conn, _ struct{}) bool {
			conn.Close()
			return true
		})
	})
	defer stop()

	var wg conc.WaitGroup
	defer wg.Wait()

	for {
		conn, err := listener.Accept()
		if err != nil {
			if ctx.Err() != nil {
				Logger.Infof("Stopping %s server on %s", t.connector.GetName(), config.Transport.Endpoint)
				return nil
			}
			if errors.Is(err, net.ErrClosed) {
				return fmt.Errorf("listener closed: %w", err)
			}
			Logger.Errorf("Accept error: %v", err)
			continue
		}

		if err := t.connector.UpgradeConnection(conn, config); err != nil {
			Logger.Warningf("Failed to upgrade connection from %s: %v", conn.RemoteAddr(), err)
		}

		t.conns.Store(conn, struct{}{})
		// the connection may have been accepted right before cancellation
		if ctx.Err() != nil {
			conn.Close()
		}
		wg.Go(func() {
			defer t.conns.Delete(conn)
			t.handleConnection(conn)
		})
	}
}

// --------------------------------------------------------------------------
// Helper Methods
// --------------------------------------------------------------------------

// handleConnection handles incoming requests for one connection.
// Requests are processed by at most workersPerConn goroutines, responses
// carry the requestID of their request and may be written out of order.
func (t *serverTransport) handleConnection(conn net.Conn) {
	defer conn.Close()

	timeout := time.Duration(t.config.TimeoutSecond) * time.Second

	// Go blocks while all workers are busy
	workers := pool.New().WithMaxGoroutines(t.workersPerConn)
	defer workers.Wait()

	// protects writes to the connection
	var connMutex sync.Mutex

	handleResponse := func(requestID uint64, data []byte) {
		start := time.Now()
		resp := t.handler(data)
		Logger.Debugf("Processed request %d in %s", requestID, time.Since(start))

		connMutex.Lock()
		defer connMutex.Unlock()

		if timeout > 0 {
			if err := conn.SetWriteDeadline(time.Now().Add(timeout)); err != nil {
				Logger.Errorf("Failed to set write deadline: %v", err)
				return
			}
		}

		if err := writeFrame(conn, requestID, resp); err != nil {
			Logger.Errorf("Failed to write response: %v", err)
		}
	}

	handleRequest := func() error {
		if timeout > 0 {
			if err := conn.SetReadDeadline(time.Now().Add(timeout)); err != nil {
				return fmt.Errorf("failed to set read deadline: %w", err)
			}
		}

		buf := t.bufferPool.Get().([]byte)

		requestID, data, err := readFrame(conn, buf)
		if err != nil {
			t.bufferPool.Put(buf)
			return err
		}

		workers.Go(func() {
			defer t.bufferPool.Put(buf)
			handleResponse(requestID, data)
		})
		return nil
	}

	for {
		err := handleRequest()

		// Case EOF: Connection closed by client
		if errors.Is(err, io.EOF) {
			Logger.Debugf("Connection closed by client")
			return
		}

		// Case closed during shutdown or idle timeout
		if errors.Is(err, net.ErrClosed) || errors.Is(err, os.ErrDeadlineExceeded) {
			Logger.Debugf("Connection closed: %v", err)
			return
		}

		if err != nil {
			Logger.Errorf("Error handling request: %v", err)
			return
		}
	}
}
