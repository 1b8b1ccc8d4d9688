// Package unix implements the Unix domain socket transport of the docdb RPC
// system, for clients running on the same host as the server. The endpoint is
// the socket path, an existing socket file is replaced on Listen.
//
// See the base package for framing and connection handling.
package unix
