// Package server implements the RPC server of docdb. It owns the collection
// engine (cstore.Engine) and connects it to a transport and a serializer.
//
// Key Components:
//
//   - IRPCServerAdapter: Interface defining the contract for server adapters,
//     with the Handle method that processes a request against a store.IDocStore.
//
//   - NewIDocStoreServerAdapter: Adapter translating requests into engine calls.
//     It validates what the engine expects to be valid: collection names are
//     sanitized (SanitizeName), filter and update payloads are decoded from BSON
//     (no bytes mean the empty document) and inserts without documents are
//     rejected. Validation failures are answered with RetCInvalidArgument.
//
//   - NewRequestHandler: Glue between transport, serializer and adapter. A request
//     that cannot be deserialized is answered with an error response.
//
//   - RPCServer: Runs engine, transport and the optional metrics endpoint. Serve
//     stops on SIGINT or SIGTERM, Run on cancellation of its context. Shutdown
//     order is transport first, then the engine with its final full sync.
//
// Usage Example:
//
//	config := common.ServerConfig{
//	  DataDir:          "./docdb",
//	  CacheTimeMinutes: 1,
//	  FlushTimeMinutes: 5,
//	  Compression:      "zstd",
//	  TimeoutSecond:    5,
//	  Transport:        common.ServerTransportConfig{Endpoint: "0.0.0.0:8009"},
//	  LogLevel:         "info",
//	}
//
//	s := server.NewRPCServer(config, tcp.NewTCPServerTransport(), serializer.NewBinarySerializer())
//	if err := s.Serve(); err != nil {
//	  log.Fatalf("Server error: %v", err)
//	}
//
// Thread Safety:
//
//	Requests are handled concurrently, the engine synchronizes access per
//	collection. Serve and Run must be called only once.
package server
