// Package http implements an HTTP-based transport layer for the docdb RPC
// system. Every RPC is one POST request to the /rpc route of an endpoint, the
// serialized message is the request and the response body.
//
// Key Components:
//
//   - httpClientTransport: Implements IRPCClientTransport. Endpoints without a
//     scheme are treated as http. Requests are distributed round-robin over the
//     endpoints and retried on the next endpoint if they fail.
//
//   - httpServerTransport: Implements IRPCServerTransport on top of net/http.
//     Cancelling the context passed to Listen shuts the server down gracefully.
//     With log level debug, every request is logged with its duration.
//
// Thread Safety:
//
//	The client transport is thread-safe after Connect. It uses an atomic
//	counter for the round-robin selection.
package http
