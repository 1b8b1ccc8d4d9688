package common

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/ValentinKolb/docdb/lib/store"
)

// --------------------------------------------------------------------------
// Message Structure
// --------------------------------------------------------------------------

// Message represents a single message used for both requests and responses.
// Which fields are used depends on the type of message.
type Message struct {
	// Type of message
	MsgType MessageType `json:"msg_type"`

	// General fields
	Collection string   `json:"collection,omitempty"` // Used for: all document operations
	ID         string   `json:"id,omitempty"`         // Used for: Get
	Documents  [][]byte `json:"documents,omitempty"`  // Used for: Insert (request), Insert, Update, Find, Get (response)
	IDs        []string `json:"ids,omitempty"`        // Used for: Insert (response)
	Filter     []byte   `json:"filter,omitempty"`     // Used for: Update, Remove, Find (encoded BSON document)
	Updates    []byte   `json:"updates,omitempty"`    // Used for: Update (encoded BSON document)
	Limit      uint32   `json:"limit,omitempty"`      // Used for: Update, Remove, Find (0 = unlimited)
	ReturnOld  bool     `json:"return_old,omitempty"` // Used for: Insert

	// Response only fields
	Count uint32 `json:"count,omitempty"` // Used for: Insert, Update, Remove, Find responses
	Ok    bool   `json:"ok,omitempty"`    // Used for: Get responses
	Code  uint64 `json:"code,omitempty"`  // store.RetCode of a failed operation
	Err   string `json:"err,omitempty"`   // Empty if no error, otherwise contains the error message

	// Meta information
	Meta []byte `json:"meta,omitempty"` // Used for: Info (response, JSON encoded store.Info)
}

// setError stores err in the response. A *store.Error keeps its code, every
// other error is reported as an internal error.
func (m *Message) setError(err error) {
	if err == nil {
		return
	}
	var storeErr *store.Error
	if errors.As(err, &storeErr) {
		m.Code = uint64(storeErr.Code)
		m.Err = storeErr.Msg
		return
	}
	m.Code = uint64(store.RetCInternalError)
	m.Err = err.Error()
}

// AsError rebuilds the error carried by a response, nil if there is none
func (m *Message) AsError() error {
	if m.MsgType != MsgTError && m.Err == "" {
		return nil
	}
	code := store.RetCode(m.Code)
	if code == store.RetCSuccess {
		code = store.RetCInternalError
	}
	return store.NewError(code, m.Err)
}

// --------------------------------------------------------------------------
// Message Factory Functions
// --------------------------------------------------------------------------

// NewInsertRequest creates a new Insert request
func NewInsertRequest(collection string, documents [][]byte, returnOld bool) *Message {
	return &Message{
		MsgType:    MsgTInsert,
		Collection: collection,
		Documents:  documents,
		ReturnOld:  returnOld,
	}
}

// NewInsertResponse creates a new Insert response
func NewInsertResponse(results []store.InsertResult, err error) *Message {
	msg := &Message{
		MsgType: MsgTInsert,
	}
	if err != nil {
		msg.setError(err)
		return msg
	}
	msg.Count = uint32(len(results))
	msg.IDs = make([]string, len(results))
	for i, r := range results {
		msg.IDs[i] = r.ID
		if r.Document != nil {
			if msg.Documents == nil {
				msg.Documents = make([][]byte, len(results))
			}
			msg.Documents[i] = r.Document
		}
	}
	return msg
}

// InsertResults converts an Insert response back into the results of the store
func (m *Message) InsertResults() []store.InsertResult {
	results := make([]store.InsertResult, len(m.IDs))
	for i, id := range m.IDs {
		results[i].ID = id
		if i < len(m.Documents) && len(m.Documents[i]) > 0 {
			results[i].Document = m.Documents[i]
		}
	}
	return results
}

// NewUpdateRequest creates a new Update request
func NewUpdateRequest(collection string, filter, updates []byte, limit uint32) *Message {
	return &Message{
		MsgType:    MsgTUpdate,
		Collection: collection,
		Filter:     filter,
		Updates:    updates,
		Limit:      limit,
	}
}

// NewUpdateResponse creates a new Update response
func NewUpdateResponse(documents [][]byte, err error) *Message {
	msg := &Message{
		MsgType:   MsgTUpdate,
		Documents: documents,
		Count:     uint32(len(documents)),
	}
	msg.setError(err)
	return msg
}

// NewRemoveRequest creates a new Remove request
func NewRemoveRequest(collection string, filter []byte, limit uint32) *Message {
	return &Message{
		MsgType:    MsgTRemove,
		Collection: collection,
		Filter:     filter,
		Limit:      limit,
	}
}

// NewRemoveResponse creates a new Remove response
func NewRemoveResponse(count uint32, err error) *Message {
	msg := &Message{
		MsgType: MsgTRemove,
		Count:   count,
	}
	msg.setError(err)
	return msg
}

// NewFindRequest creates a new Find request
func NewFindRequest(collection string, filter []byte, limit uint32) *Message {
	return &Message{
		MsgType:    MsgTFind,
		Collection: collection,
		Filter:     filter,
		Limit:      limit,
	}
}

// NewFindResponse creates a new Find response
func NewFindResponse(documents [][]byte, err error) *Message {
	msg := &Message{
		MsgType:   MsgTFind,
		Documents: documents,
		Count:     uint32(len(documents)),
	}
	msg.setError(err)
	return msg
}

// NewGetRequest creates a new Get request
func NewGetRequest(collection, id string) *Message {
	return &Message{
		MsgType:    MsgTGet,
		Collection: collection,
		ID:         id,
	}
}

// NewGetResponse creates a new Get response
func NewGetResponse(document []byte, ok bool, err error) *Message {
	msg := &Message{
		MsgType: MsgTGet,
		Ok:      ok,
	}
	if ok {
		msg.Documents = [][]byte{document}
	}
	msg.setError(err)
	return msg
}

// NewInfoRequest creates a new Info request
func NewInfoRequest() *Message {
	return &Message{
		MsgType: MsgTInfo,
	}
}

// NewInfoResponse creates a new Info response carrying the JSON encoded info
func NewInfoResponse(info store.Info, err error) *Message {
	msg := &Message{
		MsgType: MsgTInfo,
	}
	if err != nil {
		msg.setError(err)
		return msg
	}
	meta, err := json.Marshal(info)
	if err != nil {
		msg.setError(fmt.Errorf("failed to encode info: %w", err))
		return msg
	}
	msg.Meta = meta
	return msg
}

// NewErrorResponse creates a new Error response
func NewErrorResponse(code store.RetCode, err string) *Message {
	return &Message{
		MsgType: MsgTError,
		Code:    uint64(code),
		Err:     err,
	}
}

// --------------------------------------------------------------------------
// Message Type Definition
// --------------------------------------------------------------------------

// MessageType defines the type of message used in RPC communication.
type MessageType uint8

// String returns the string representation of a MessageType.
func (t MessageType) String() string {
	switch t {
	case MsgTInsert:
		return "insert"
	case MsgTUpdate:
		return "update"
	case MsgTRemove:
		return "remove"
	case MsgTFind:
		return "find"
	case MsgTGet:
		return "get"
	case MsgTInfo:
		return "info"
	case MsgTError:
		return "error"
	case MsgTSuccess:
		return "success"
	default:
		return "unknown"
	}
}

// MarshalJSON implements the json.Marshaller interface for MessageType.
// This allows MessageType to be serialized as a string in JSON.
func (t MessageType) MarshalJSON() ([]byte, error) {
	return json.Marshal(t.String())
}

// UnmarshalJSON implements the json.Unmarshaler interface for MessageType.
// This allows MessageType to be deserialized from a string in JSON.
func (t *MessageType) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}

	// Convert string back to MessageType
	switch s {
	case "insert":
		*t = MsgTInsert
	case "update":
		*t = MsgTUpdate
	case "remove":
		*t = MsgTRemove
	case "find":
		*t = MsgTFind
	case "get":
		*t = MsgTGet
	case "info":
		*t = MsgTInfo
	case "error":
		*t = MsgTError
	case "success":
		*t = MsgTSuccess
	case "unknown":
		*t = MsgTUnknown
	default:
		return fmt.Errorf("unknown message type: %s", s)
	}

	return nil
}

// --------------------------------------------------------------------------
// Message Type Constants
// --------------------------------------------------------------------------

const (
	// General message types

	MsgTUnknown MessageType = iota
	MsgTSuccess             // Indicates a successful operation
	MsgTError               // Indicates an error occurred

	// IDocStore operations

	MsgTInsert // Insert (upsert) documents
	MsgTUpdate // Merge fields into matching documents
	MsgTRemove // Remove matching documents
	MsgTFind   // Find matching documents
	MsgTGet    // Get a document by identity
	MsgTInfo   // Describe the resident collections
)
