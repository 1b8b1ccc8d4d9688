// Package cstore implements the collection storage and caching engine of the
// document store. It satisfies the store.IDocStore interface.
//
// Collections live on disk (see the persist package) and are loaded lazily on
// first access. A loaded collection stays resident in a table of slots until it
// has not been accessed for one flush interval, then the sweep writes it back and
// drops it. Independently, a full sync writes every resident collection to disk
// once per cache interval.
//
// Concurrency:
//
//   - The table is a xsync.MapOf. Residency checks never block other collections.
//     First-access loads and evictions run inside MapOf.Compute for their name, so
//     a name is loaded at most once and an eviction cannot interleave with a load
//     of the same name.
//
//   - Every slot has its own sync.RWMutex. Find and Get take the read lock, Insert,
//     Update and Remove take the write lock. Collections never share a lock.
//
//   - The sweep marks a slot as evicted while holding its write lock. An operation
//     that acquires the lock of an evicted slot releases it and resolves the name
//     again, which reloads the written state from disk.
//
//   - Lock order is table bucket, then slot. No slot lock is held while calling into
//     the table.
//
// Lifecycle:
//
//	Run owns both background loops and returns after the context is cancelled and
//	one final full sync has completed. A failed cycle is logged and retried with
//	exponential backoff (starting at one second, capped at the loop interval) if the
//	failure is retryable, or on the next regular tick otherwise.
//
// Example usage:
//
//	engine, err := cstore.NewEngine(cstore.Config{
//		DataDir:   "./docdb",
//		CacheTime: time.Minute,
//		FlushTime: 5 * time.Minute,
//	})
//	if err != nil {
//		return err
//	}
//	defer engine.Close()
//
//	go engine.Run(ctx)
//
//	results, err := engine.Insert("users", [][]byte{doc}, false)
package cstore
