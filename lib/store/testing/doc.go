// Package testing provides standardised tests and benchmarks for document store
// implementations that satisfy the store.IDocStore interface.
//
// The package contains:
//   - testing: A test suite for the query and mutation contract (identity handling,
//     equality filters, field merge, limits, error codes)
//   - benchmark: Throughput of the common operations
//
// The same suite runs against the caching engine and against the RPC client, so
// both sides of the wire are held to one contract.
//
// Example usage:
//
//	factory := func(t testing.TB) store.IDocStore {
//		return newEngine(t)
//	}
//
//	storetesting.RunDocStoreTests(t, "Engine", factory)
//	storetesting.RunDocStoreBenchmarks(b, "Engine", factory)
package testing
