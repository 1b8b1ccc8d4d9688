package client

import (
	"encoding/json"
	"fmt"

	"github.com/ValentinKolb/docdb/lib/db"
	"github.com/ValentinKolb/docdb/lib/store"
	"github.com/ValentinKolb/docdb/rpc/common"
	"github.com/ValentinKolb/docdb/rpc/serializer"
	"github.com/ValentinKolb/docdb/rpc/transport"
	"go.mongodb.org/mongo-driver/bson"
)

// NewRPCStore creates a new RPC document store.
// The function takes a config, a transport and a serializer as parameters,
// connects the transport and returns a store.IDocStore.
func NewRPCStore(
	config common.ClientConfig,
	transport transport.IRPCClientTransport,
	serializer serializer.IRPCSerializer,
) (store.IDocStore, error) {

	// Connect the transport
	if err := transport.Connect(config); err != nil {
		return nil, err
	}

	return &rpcStore{
		rpcClientAdapter{
			config:     config,
			transport:  transport,
			serializer: serializer,
		},
	}, nil
}

type rpcStore struct {
	rpcClientAdapter
}

// --------------------------------------------------------------------------
// Interface Methods (docu see the store package in interface.go)
// --------------------------------------------------------------------------

func (i *rpcStore) Insert(collection string, documents [][]byte, returnOld bool) ([]store.InsertResult, error) {
	req := common.NewInsertRequest(collection, documents, returnOld)
	resp, err := invokeRPCRequest(req, i.transport, i.serializer)
	if err != nil {
		return nil, err
	}
	return resp.InsertResults(), nil
}

func (i *rpcStore) Update(collection string, filter, updates bson.D, limit uint32) ([][]byte, error) {
	filterBytes, err := encodePayload("filter", filter)
	if err != nil {
		return nil, err
	}
	updateBytes, err := encodePayload("updates", updates)
	if err != nil {
		return nil, err
	}

	req := common.NewUpdateRequest(collection, filterBytes, updateBytes, limit)
	resp, err := invokeRPCRequest(req, i.transport, i.serializer)
	if err != nil {
		return nil, err
	}
	return documentsOf(resp), nil
}

func (i *rpcStore) Remove(collection string, filter bson.D, limit uint32) (uint32, error) {
	filterBytes, err := encodePayload("filter", filter)
	if err != nil {
		return 0, err
	}

	req := common.NewRemoveRequest(collection, filterBytes, limit)
	resp, err := invokeRPCRequest(req, i.transport, i.serializer)
	if err != nil {
		return 0, err
	}
	return resp.Count, nil
}

func (i *rpcStore) Find(collection string, filter bson.D, limit uint32) ([][]byte, error) {
	filterBytes, err := encodePayload("filter", filter)
	if err != nil {
		return nil, err
	}

	req := common.NewFindRequest(collection, filterBytes, limit)
	resp, err := invokeRPCRequest(req, i.transport, i.serializer)
	if err != nil {
		return nil, err
	}
	return documentsOf(resp), nil
}

func (i *rpcStore) Get(collection string, id string) ([]byte, bool, error) {
	req := common.NewGetRequest(collection, id)
	resp, err := invokeRPCRequest(req, i.transport, i.serializer)
	if err != nil {
		return nil, false, err
	}
	if !resp.Ok || len(resp.Documents) == 0 {
		return nil, false, nil
	}
	return resp.Documents[0], true, nil
}

func (i *rpcStore) GetInfo() (store.Info, error) {
	resp, err := invokeRPCRequest(common.NewInfoRequest(), i.transport, i.serializer)
	if err != nil {
		return store.Info{}, err
	}

	var info store.Info
	if err := json.Unmarshal(resp.Meta, &info); err != nil {
		return store.Info{}, store.Errorf(store.RetCInternalError, "failed to decode info: %v", err)
	}
	return info, nil
}

// --------------------------------------------------------------------------
// Helper Methods
// --------------------------------------------------------------------------

// encodePayload encodes a filter or update document. The empty document is sent as no bytes.
func encodePayload(field string, doc bson.D) ([]byte, error) {
	if len(doc) == 0 {
		return nil, nil
	}
	data, err := db.EncodeDocument(doc)
	if err != nil {
		return nil, store.Errorf(store.RetCInvalidArgument, "failed to encode %s: %v", field, err)
	}
	return data, nil
}

// documentsOf returns the documents of a response, never nil.
// Serializers may drop an empty list.
func documentsOf(resp *common.Message) [][]byte {
	if resp.Documents == nil {
		return [][]byte{}
	}
	return resp.Documents
}

// Close closes the underlying transport
func (i *rpcStore) Close() error {
	if err := i.transport.Close(); err != nil {
		return fmt.Errorf("failed to close transport: %w", err)
	}
	return nil
}
