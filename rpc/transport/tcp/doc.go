// Package tcp implements the TCP socket transport of the docdb RPC system.
// It provides the TCP connectors for the base package, which contains the
// framing, connection pooling and worker handling.
//
// Socket options (TCPConf, SocketConf) are applied to dialed and accepted
// connections alike. The default server read buffer is 512 KB.
package tcp
