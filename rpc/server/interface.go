package server

import (
	"github.com/ValentinKolb/docdb/lib/store"
	"github.com/ValentinKolb/docdb/rpc/common"
)

// IRPCServerAdapter is the interface for all RPC server adapters.
// It translates requests into calls of a store and the results back into responses.
type IRPCServerAdapter interface {
	// Handle handles a request against s and returns the response.
	// Errors are reported in the response, never returned.
	Handle(req *common.Message, s store.IDocStore) (resp *common.Message)
}
