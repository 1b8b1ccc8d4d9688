// Package client implements the RPC client of docdb. NewRPCStore returns a
// store.IDocStore that forwards every operation to a server over the configured
// transport and serializer.
//
// Filters and updates are encoded to BSON on the client, the empty document is
// sent as an absent payload. Errors returned by the server keep their code, so
// callers can use store.IsCode to tell invalid arguments from internal errors.
// Transport failures are reported as internal errors.
//
// Usage Example:
//
//	config := common.ClientConfig{
//	  TimeoutSecond: 5,
//	  Transport: common.ClientTransportConfig{
//	    Endpoints:  []string{"localhost:8009"},
//	    RetryCount: 3,
//	  },
//	}
//
//	docs, _ := client.NewRPCStore(config, tcp.NewTCPClientTransport(), serializer.NewBinarySerializer())
//	results, _ := docs.Insert("users", [][]byte{encoded}, false)
//	raw, found, _ := docs.Get("users", results[0].ID)
//
// Thread Safety:
//
//	The client is thread-safe and can be used concurrently from multiple
//	goroutines without additional synchronization.
package client
