package transport

import (
	"context"

	"github.com/ValentinKolb/docdb/rpc/common"
)

// --------------------------------------------------------------------------
// Server Transport
// --------------------------------------------------------------------------

// ServerHandleFunc is a function type that handles incoming requests.
// It is called by a server transport for every received request and returns
// the serialized response.
type ServerHandleFunc func(req []byte) (resp []byte)

// IRPCServerTransport is the interface for the server side of the RPC transport layer
type IRPCServerTransport interface {
	// RegisterHandler registers the handler that is called for every request.
	// It must be called before Listen.
	RegisterHandler(handler ServerHandleFunc)
	// Listen starts the transport and serves requests until ctx is cancelled.
	// A cancelled context is not an error.
	Listen(ctx context.Context, config common.ServerConfig) error
}

// --------------------------------------------------------------------------
// Client Transport
// --------------------------------------------------------------------------

// IRPCClientTransport is the interface for the RPC client transport
type IRPCClientTransport interface {
	// Connect initializes the transport with the given configuration
	Connect(config common.ClientConfig) error
	// Send sends a request to the server and returns the response
	Send(req []byte) (resp []byte, err error)
	// Close closes the transport connection
	Close() error
}
