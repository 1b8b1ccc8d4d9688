// Package transport defines the interfaces for RPC communication between a
// docdb client and server. Implementations move opaque request and response
// bytes; encoding is the job of the serializer package.
//
// Implementations:
//
//   - http: one POST request per RPC on the /rpc route
//   - tcp, unix: a framed protocol on long lived connections (see package base)
//
// Key Components:
//
//   - IRPCClientTransport: Interface for client-side transport implementations that
//     handles connection management and request sending.
//
//   - IRPCServerTransport: Interface for server-side transport implementations that
//     receives requests and passes them to the registered handler. Listen returns
//     once its context is cancelled.
//
//   - ServerHandleFunc: Function type for request handling callbacks.
package transport
