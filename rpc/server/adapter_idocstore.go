package server

import (
	"fmt"
	"strings"

	"github.com/ValentinKolb/docdb/lib/db"
	"github.com/ValentinKolb/docdb/lib/store"
	"github.com/ValentinKolb/docdb/rpc/common"
	"go.mongodb.org/mongo-driver/bson"
)

func NewIDocStoreServerAdapter() IRPCServerAdapter {
	return &iDocStoreServerAdapterImpl{}
}

type iDocStoreServerAdapterImpl struct{}

func (adapter *iDocStoreServerAdapterImpl) Handle(req *common.Message, s store.IDocStore) *common.Message {
	if s == nil {
		return common.NewErrorResponse(store.RetCInternalError, "handler: store is nil")
	}

	// info is the only request without a collection
	if req.MsgType == common.MsgTInfo {
		info, err := s.GetInfo()
		return common.NewInfoResponse(info, err)
	}

	name, err := SanitizeName(req.Collection)
	if err != nil {
		return common.NewErrorResponse(store.RetCInvalidArgument, err.Error())
	}

	switch req.MsgType {
	case common.MsgTInsert:
		if len(req.Documents) == 0 {
			return common.NewErrorResponse(store.RetCInvalidArgument, "no documents to insert")
		}
		results, err := s.Insert(name, req.Documents, req.ReturnOld)
		return common.NewInsertResponse(results, err)

	case common.MsgTUpdate:
		filter, err := decodePayload("filter", req.Filter)
		if err != nil {
			return common.NewErrorResponse(store.RetCInvalidArgument, err.Error())
		}
		updates, err := decodePayload("updates", req.Updates)
		if err != nil {
			return common.NewErrorResponse(store.RetCInvalidArgument, err.Error())
		}
		documents, err := s.Update(name, filter, updates, req.Limit)
		return common.NewUpdateResponse(documents, err)

	case common.MsgTRemove:
		filter, err := decodePayload("filter", req.Filter)
		if err != nil {
			return common.NewErrorResponse(store.RetCInvalidArgument, err.Error())
		}
		count, err := s.Remove(name, filter, req.Limit)
		return common.NewRemoveResponse(count, err)

	case common.MsgTFind:
		filter, err := decodePayload("filter", req.Filter)
		if err != nil {
			return common.NewErrorResponse(store.RetCInvalidArgument, err.Error())
		}
		documents, err := s.Find(name, filter, req.Limit)
		return common.NewFindResponse(documents, err)

	case common.MsgTGet:
		document, ok, err := s.Get(name, req.ID)
		return common.NewGetResponse(document, ok, err)

	default:
		return common.NewErrorResponse(store.RetCInvalidArgument,
			fmt.Sprintf("RPC IDocStoreAdapter - Unsupported message type: %s", req.MsgType),
		)
	}
}

// --------------------------------------------------------------------------
// Request validation
// --------------------------------------------------------------------------

// SanitizeName normalizes a collection name to lower case and rejects names
// that could address a path outside the collection directory.
func SanitizeName(name string) (string, error) {
	if name == "" {
		return "", fmt.Errorf("collection name must not be empty")
	}
	if strings.ContainsAny(name, "./\\\x00") {
		return "", fmt.Errorf("invalid collection name %q: must not contain '.', '/', '\\' or NUL", name)
	}
	return strings.ToLower(name), nil
}

// decodePayload decodes a filter or update document. No bytes mean the empty document.
func decodePayload(field string, payload []byte) (bson.D, error) {
	if len(payload) == 0 {
		return bson.D{}, nil
	}
	doc, err := db.DecodeDocument(payload)
	if err != nil {
		return nil, fmt.Errorf("malformed %s: %v", field, err)
	}
	return doc, nil
}
