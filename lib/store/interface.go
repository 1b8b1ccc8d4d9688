package store

import (
	"errors"
	"fmt"
	"time"

	"github.com/ValentinKolb/docdb/lib/db/util"
	"go.mongodb.org/mongo-driver/bson"
)

// --------------------------------------------------------------------------
// Interface Definition
// --------------------------------------------------------------------------

// IDocStore is the interface for interacting with a document store.
// Collections are addressed by sanitized names, documents are exchanged as
// encoded BSON. A limit of 0 means unlimited.
// All methods return a *Error on failure.
type IDocStore interface {
	// Insert upserts documents into a collection, creating the collection if needed.
	// Candidates that cannot be decoded are skipped. A document keeps a valid "_id",
	// otherwise a new identity is assigned. If returnOld is set, every result carries
	// the stored document.
	Insert(collection string, documents [][]byte, returnOld bool) (results []InsertResult, err error)
	// Update merges the fields of updates into every document matching filter,
	// up to limit documents, and returns the updated documents.
	Update(collection string, filter, updates bson.D, limit uint32) (documents [][]byte, err error)
	// Remove deletes up to limit documents matching filter and returns how many were deleted.
	Remove(collection string, filter bson.D, limit uint32) (count uint32, err error)
	// Find returns up to limit documents matching filter in identity order.
	Find(collection string, filter bson.D, limit uint32) (documents [][]byte, err error)
	// Get returns the document with the given identity. The boolean return value
	// indicates whether the document was found.
	Get(collection string, id string) (document []byte, found bool, err error)
	// GetInfo returns metadata about the resident collections.
	// It is not guaranteed that the information is up-to-date!
	GetInfo() (info Info, err error)
}

// InsertResult describes a single inserted document
type InsertResult struct {
	ID       string `json:"id"`
	Document []byte `json:"document,omitempty"`
}

// Info describes the state of a store
type Info struct {
	DataDir     string           `json:"data_dir"`
	Compression string           `json:"compression"`
	CacheTime   time.Duration    `json:"cache_time"`
	FlushTime   time.Duration    `json:"flush_time"`
	Collections []CollectionInfo `json:"collections"`
	// Distribution of the document counts over all resident collections
	Distribution util.DistributionStats `json:"distribution"`
}

// CollectionInfo describes a single resident collection
type CollectionInfo struct {
	Name          string    `json:"name"`
	Documents     int       `json:"documents"`
	Version       uint64    `json:"version"`
	LastAccess    time.Time `json:"last_access"`
	FlushAt       time.Time `json:"flush_at"`
	MedianDocSize int       `json:"median_doc_size"`
	EstimatedSize int       `json:"estimated_size_bytes"`
}

// --------------------------------------------------------------------------
// Custom Error Type
// --------------------------------------------------------------------------

// Error is a custom error type that wraps a return code (of type RetCode)
// and an error message.
type Error struct {
	Code RetCode // The return code
	Msg  string  // The error message.
}

// Error implements the error interface.
func (e *Error) Error() string {
	return fmt.Sprintf("DocStoreError (code %s): %s", e.Code, e.Msg)
}

// NewError creates a new Error with the given code and message.
func NewError(code RetCode, msg string) *Error {
	return &Error{
		Code: code,
		Msg:  msg,
	}
}

// Errorf creates a new Error with a formatted message.
func Errorf(code RetCode, format string, args ...interface{}) *Error {
	return NewError(code, fmt.Sprintf(format, args...))
}

// IsCode reports whether err is a *Error with the given code
func IsCode(err error, code RetCode) bool {
	var e *Error
	return errors.As(err, &e) && e.Code == code
}

// --------------------------------------------------------------------------
// Return Codes
// --------------------------------------------------------------------------

type RetCode uint64

const (
	RetCSuccess         RetCode = iota // 0: Command executed successfully.
	RetCInternalError                  // 1: Command failed due to an internal error (storage, encoding).
	RetCInvalidArgument                // 2: The request was malformed.
	RetCNotFound                       // 3: The collection could not be loaded.
)

func (c RetCode) String() string {
	switch c {
	case RetCSuccess:
		return "Success"
	case RetCInternalError:
		return "InternalError"
	case RetCInvalidArgument:
		return "InvalidArgument"
	case RetCNotFound:
		return "NotFound"
	default:
		return "Unknown"
	}
}
