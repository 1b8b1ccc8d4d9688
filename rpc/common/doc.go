// Package common provides core data structures and utilities shared across
// the docdb RPC system. It defines the message protocol, configuration
// structures and the logger used by every other package.
//
// The package focuses on:
//   - Message protocol definition for client/server communication
//   - Configuration structures for client and server components
//   - Custom logging implementation integrated with the Dragonboat logger package
//
// Key Components:
//
//   - Message: Core data structure for all RPC communication, with a flexible
//     structure that adapts to the different document operations. Filters and
//     updates travel as encoded BSON, documents as lists of encoded BSON.
//     Includes factory methods for every request and response.
//
//   - Error transport: A failed operation is answered with Err and Code set. Code
//     carries the store.RetCode so that AsError can rebuild a *store.Error on the
//     client side and callers can tell invalid arguments from internal failures.
//
//   - ServerConfig: Storage settings (data directory, cache and flush interval,
//     compression), transport settings, metrics endpoint and log level.
//
//   - ClientConfig: Connection parameters, timeouts, and retry behavior.
//
//   - Logger: Custom logging implementation registered as the factory of
//     github.com/lni/dragonboat/v4/logger, which gives every package a named
//     logger with consistent formatting.
package common
