package serializer

import (
	"bytes"
	"reflect"
	"testing"

	"github.com/ValentinKolb/docdb/lib/store"
	"github.com/ValentinKolb/docdb/rpc/common"
)

// testSerializers is a map of serializer name to factory function
var testSerializers = map[string]func() IRPCSerializer{
	"JSON":   NewJSONSerializer,
	"GOB":    NewGOBSerializer,
	"Binary": NewBinarySerializer,
}

// testMessages creates a set of test messages with different fields filled
func testMessages() []common.Message {
	return []common.Message{
		// Basic message with just a type
		{MsgType: common.MsgTSuccess},

		// Insert request
		{
			MsgType:    common.MsgTInsert,
			Collection: "users",
			Documents:  [][]byte{[]byte("doc-1"), []byte("doc-2")},
			ReturnOld:  true,
		},

		// Insert response
		{
			MsgType: common.MsgTInsert,
			IDs:     []string{"4e3c1c2a-0f4e-4c4c-9d1e-0b8a0c7a4b11", "c0ffee00-0000-4000-8000-000000000000"},
			Count:   2,
		},

		// Update request
		{
			MsgType:    common.MsgTUpdate,
			Collection: "users",
			Filter:     []byte("filter"),
			Updates:    []byte("updates"),
			Limit:      10,
		},

		// Get response
		{
			MsgType:   common.MsgTGet,
			Documents: [][]byte{[]byte("found")},
			Ok:        true,
		},

		// Error response
		{
			MsgType: common.MsgTError,
			Code:    uint64(store.RetCInvalidArgument),
			Err:     "test error message",
		},

		// Message with all fields filled
		{
			MsgType:    common.MsgTFind,
			Collection: "everything",
			ID:         "some-id",
			Documents:  [][]byte{[]byte("a"), []byte("bc")},
			IDs:        []string{"x"},
			Filter:     []byte("f"),
			Updates:    []byte("u"),
			Limit:      7,
			ReturnOld:  true,
			Count:      3,
			Ok:         true,
			Code:       uint64(store.RetCInternalError),
			Err:        "err",
			Meta:       []byte("test-meta-data"),
		},
	}
}

// TestSerializerRoundTrip tests that messages can be serialized and deserialized correctly
func TestSerializerRoundTrip(t *testing.T) {
	messages := testMessages()

	for name, factory := range testSerializers {
		t.Run(name, func(t *testing.T) {
			serializer := factory()

			for i, msg := range messages {
				// Serialize
				data, err := serializer.Serialize(msg)
				if err != nil {
					t.Errorf("Failed to serialize message %d: %v", i, err)
					continue
				}

				// Deserialize
				var result common.Message
				err = serializer.Deserialize(data, &result)
				if err != nil {
					t.Errorf("Failed to deserialize message %d: %v", i, err)
					continue
				}

				// Compare
				if !reflect.DeepEqual(msg, result) {
					t.Errorf("Message %d doesn't match after round trip:\nOriginal: %+v\nResult: %+v",
						i, msg, result)
				}
			}
		})
	}
}

// TestDeserializeResetsMessage tests that a reused message does not keep old fields
func TestDeserializeResetsMessage(t *testing.T) {
	for name, factory := range testSerializers {
		t.Run(name, func(t *testing.T) {
			serializer := factory()
			data, err := serializer.Serialize(common.Message{MsgType: common.MsgTRemove, Count: 1})
			if err != nil {
				t.Fatal(err)
			}

			msg := common.Message{Collection: "stale", Err: "stale", Documents: [][]byte{[]byte("stale")}}
			if err := serializer.Deserialize(data, &msg); err != nil {
				t.Fatal(err)
			}
			if msg.Collection != "" || msg.Err != "" || msg.Documents != nil {
				t.Errorf("stale fields survived: %+v", msg)
			}
		})
	}
}

// TestMessageTypes tests each message type with each serializer
func TestMessageTypes(t *testing.T) {
	for name, factory := range testSerializers {
		t.Run(name, func(t *testing.T) {
			serializer := factory()

			for msgType := common.MsgTSuccess; msgType <= common.MsgTInfo; msgType++ {
				msg := common.Message{MsgType: msgType}

				data, err := serializer.Serialize(msg)
				if err != nil {
					t.Errorf("Failed to serialize message type %s: %v", msgType.String(), err)
					continue
				}

				var result common.Message
				err = serializer.Deserialize(data, &result)
				if err != nil {
					t.Errorf("Failed to deserialize message type %s: %v", msgType.String(), err)
					continue
				}

				if result.MsgType != msgType {
					t.Errorf("Message type doesn't match after round trip: Expected %s, got %s",
						msgType.String(), result.MsgType.String())
				}
			}
		})
	}
}

// TestBinaryEmptyVersusNil tests that the binary serializer keeps empty slices apart from nil
func TestBinaryEmptyVersusNil(t *testing.T) {
	serializer := NewBinarySerializer()

	testCases := []struct {
		name string
		msg  common.Message
	}{
		{
			name: "Empty message",
			msg:  common.Message{},
		},
		{
			name: "Empty document list",
			msg:  common.Message{MsgType: common.MsgTFind, Documents: [][]byte{}},
		},
		{
			name: "Empty filter",
			msg:  common.Message{MsgType: common.MsgTFind, Filter: []byte{}},
		},
		{
			name: "Empty document inside list",
			msg:  common.Message{MsgType: common.MsgTInsert, Documents: [][]byte{{}, []byte("x")}},
		},
		{
			name: "Empty meta",
			msg:  common.Message{MsgType: common.MsgTInfo, Meta: []byte{}},
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			data, err := serializer.Serialize(tc.msg)
			if err != nil {
				t.Fatalf("Failed to serialize: %v", err)
			}

			var result common.Message
			if err := serializer.Deserialize(data, &result); err != nil {
				t.Fatalf("Failed to deserialize: %v", err)
			}

			if (tc.msg.Documents == nil) != (result.Documents == nil) || len(tc.msg.Documents) != len(result.Documents) {
				t.Errorf("Documents mismatch: expected %v, got %v", tc.msg.Documents, result.Documents)
			}
			for i := range tc.msg.Documents {
				if i < len(result.Documents) && !bytes.Equal(tc.msg.Documents[i], result.Documents[i]) {
					t.Errorf("Document %d mismatch", i)
				}
			}
			if (tc.msg.Filter == nil) != (result.Filter == nil) {
				t.Errorf("Filter nil/non-nil mismatch: expected %v, got %v", tc.msg.Filter, result.Filter)
			}
			if (tc.msg.Meta == nil) != (result.Meta == nil) {
				t.Errorf("Meta nil/non-nil mismatch: expected %v, got %v", tc.msg.Meta, result.Meta)
			}
			if tc.msg.MsgType != result.MsgType {
				t.Errorf("MsgType mismatch: expected %v, got %v", tc.msg.MsgType, result.MsgType)
			}
		})
	}
}

// TestInvalidBinaryData tests how the binary serializer handles corrupt or invalid data
func TestInvalidBinaryData(t *testing.T) {
	serializer := NewBinarySerializer()

	testCases := []struct {
		name        string
		data        []byte
		expectError bool
	}{
		{
			name:        "Empty data",
			data:        []byte{},
			expectError: true,
		},
		{
			name:        "Too short header",
			data:        []byte{1, 0}, // Message type and half of the flags
			expectError: true,
		},
		{
			name:        "Valid header only",
			data:        []byte{1, 0, 0}, // Message type 1, no flags
			expectError: false,
		},
		{
			name:        "Invalid length for collection",
			data:        []byte{3, 0, 1, 0, 0, 0, 5, 'a', 'b', 'c'}, // Claims length 5 but only 3 bytes provided
			expectError: true,
		},
		{
			name:        "Invalid document count",
			data:        []byte{3, 0, 4, 0, 0, 0, 2, 0, 0, 0, 1, 'a'}, // Claims 2 documents but only one provided
			expectError: true,
		},
		{
			name:        "Truncated code",
			data:        []byte{2, 4, 0, 0, 0, 0, 1}, // Code flag set but only 4 bytes follow
			expectError: true,
		},
		{
			name:        "Flags without payload",
			data:        []byte{2, 0, 0x40}, // Limit flag set but no bytes follow
			expectError: true,
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			var msg common.Message
			err := serializer.Deserialize(tc.data, &msg)

			if tc.expectError && err == nil {
				t.Errorf("Expected error but got none")
			} else if !tc.expectError && err != nil {
				t.Errorf("Did not expect error but got: %v", err)
			}
		})
	}
}
