// Package rpc is the communication layer between docdb clients and the
// server.
//
// The package is organized into several subpackages:
//
//   - common: The Message protocol, configuration structures and logging.
//
//   - transport: Network communication abstractions with pluggable implementations
//     (TCP, Unix sockets, HTTP).
//
//   - serializer: Message serialization with multiple format options (Binary, JSON, GOB).
//
//   - client: An IDocStore implementation that forwards every call to a server.
//
//   - server: The server that runs the engine and answers requests through
//     the IDocStore adapter.
package rpc
