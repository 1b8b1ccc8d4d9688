// Package serializer provides message serialization for the docdb RPC system.
// It defines a common interface and multiple implementations for serializing
// and deserializing messages between client and server components.
//
// Key Components:
//
//   - IRPCSerializer: Core interface that all serializer implementations must satisfy.
//
//   - binarySerializerImpl: Custom binary format. A 16 bit flag set marks the
//     present fields, only those are written. Lists (documents, ids) are written
//     as element count followed by length prefixed elements.
//
//   - gobSerializerImpl: Go's gob encoding. Every message is a complete gob
//     stream including type information, which makes it the largest format.
//
//   - jsonSerializerImpl: JSON encoding, useful for debugging. BSON payloads are
//     base64 encoded by encoding/json.
//
// Empty versus absent: the binary format keeps the difference between a nil and
// an empty slice. JSON and gob drop empty slices, a receiver sees them as nil.
//
// Thread Safety:
//
//	All serializer implementations are stateless and safe for concurrent use
//	across multiple goroutines without additional synchronization.
//
// Usage:
//
//	serializer := serializer.NewBinarySerializer()
//	data, err := serializer.Serialize(message)
//	// ... send data ...
//	var receivedMsg common.Message
//	err = serializer.Deserialize(receivedData, &receivedMsg)
package serializer
