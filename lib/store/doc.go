// Package store provides the high-level interface of the document store and its
// unified error handling.
//
// The package focuses on:
//   - A unified interface (IDocStore) for document operations, implemented by the
//     caching engine (cstore) and the RPC client
//   - A structured error taxonomy that survives the RPC boundary
//
// Key Components:
//
//   - IDocStore Interface: Insert, Update, Remove, Find and Get on named collections
//     plus GetInfo for introspection. Documents are passed as encoded BSON, filters
//     and updates as decoded bson.D values. Filters match on equality of every
//     listed field. A limit of 0 means unlimited.
//
//   - Error System: Every failure is reported as *Error carrying a RetCode.
//     RetCInvalidArgument marks a malformed request (empty document list, empty
//     updates, malformed identity, unusable collection name). RetCNotFound is
//     returned when an insert could not load its collection. RetCInternalError
//     covers storage and encoding failures. Use IsCode to check the code of an
//     error returned by any implementation.
//
// Implementations:
//
//	- Collection Store (cstore): the caching engine. Collections are loaded lazily
//	  from disk, kept in memory while they are used and written back in the
//	  background. Available in "github.com/ValentinKolb/docdb/lib/store/cstore".
//
//	- RPC Client: a remote store reached over any transport and serializer.
//	  Available in "github.com/ValentinKolb/docdb/rpc/client".
//
// The conformance suite in "github.com/ValentinKolb/docdb/lib/store/testing" runs
// against every implementation.
package store
