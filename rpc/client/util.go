package client

import (
	"github.com/ValentinKolb/docdb/lib/store"
	"github.com/ValentinKolb/docdb/rpc/common"
	"github.com/ValentinKolb/docdb/rpc/serializer"
	"github.com/ValentinKolb/docdb/rpc/transport"
	"github.com/lni/dragonboat/v4/logger"
)

var (
	Logger = logger.GetLogger("rpc")
)

// rpcClientAdapter stores everything an RPC client implementation needs
type rpcClientAdapter struct {
	config     common.ClientConfig
	transport  transport.IRPCClientTransport
	serializer serializer.IRPCSerializer
}

// invokeRPCRequest sends a request and returns the decoded response.
// An error response is returned as the *store.Error it carries, transport and
// decoding failures as internal errors. The response type must match the request type.
func invokeRPCRequest(req *common.Message, transport transport.IRPCClientTransport, serializer serializer.IRPCSerializer) (*common.Message, error) {
	reqBytes, err := serializer.Serialize(*req)
	if err != nil {
		return nil, store.Errorf(store.RetCInternalError, "RPC IDocStoreAdapter - failed to serialize request: %v", err)
	}

	respBytes, err := transport.Send(reqBytes)
	if err != nil {
		Logger.Debugf("Sending %s request failed: %v", req.MsgType, err)
		return nil, store.Errorf(store.RetCInternalError, "RPC IDocStoreAdapter - %v", err)
	}

	resp := &common.Message{}
	if err := serializer.Deserialize(respBytes, resp); err != nil {
		return nil, store.Errorf(store.RetCInternalError, "RPC IDocStoreAdapter - failed to deserialize response: %v", err)
	}

	if err := resp.AsError(); err != nil {
		return nil, err
	}

	if resp.MsgType != req.MsgType {
		return nil, store.Errorf(store.RetCInternalError, "RPC IDocStoreAdapter - Unexpected message type: %s, expected %s", resp.MsgType, req.MsgType)
	}

	return resp, nil
}
