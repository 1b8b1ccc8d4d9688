// Package base implements the stream transports of the docdb RPC system
// independent of the network protocol. The tcp and unix packages extend it
// with protocol-specific connectors.
//
// Frame format (both directions):
//
//	requestID (8 bytes, big endian) | length (4 bytes, big endian) | payload
//
// Key Components:
//
//   - IClientConnector/IServerConnector: Interfaces for protocol-specific operations
//     (dialing, listening and socket options).
//
//   - clientTransport: Manages a pool of connections (ConnectionsPerEndpoint per
//     endpoint) with round-robin selection. Requests are multiplexed on a
//     connection and matched to responses by requestID. Failed requests are
//     retried with exponential backoff. A connection whose reader fails answers
//     all pending requests with an error and reconnects in the background.
//
//   - serverTransport: Accepts connections and processes the requests of each
//     connection on a bounded worker pool (WorkersPerConn). Responses may be
//     written out of order. Cancelling the context passed to Listen closes the
//     listener and all connections, Listen returns once every in-flight request
//     is answered.
//
// Performance Notes:
//
//   - Buffer Pooling: The server uses a sync.Pool to reuse read buffers.
//
//   - Frame Batching: Header and payload are written with net.Buffers, a single
//     writev where the platform supports it.
//
// Thread Safety:
//
//	All public methods are thread-safe.
package base
