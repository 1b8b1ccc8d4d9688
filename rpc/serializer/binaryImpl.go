package serializer

import (
	"encoding/binary"
	"fmt"

	"github.com/ValentinKolb/docdb/rpc/common"
)

// NewBinarySerializer creates a new serializer using a custom binary format
// optimized for speed and efficiency
func NewBinarySerializer() IRPCSerializer {
	return &binarySerializerImpl{}
}

// binarySerializerImpl implements IRPCSerializer using a custom binary format.
//
// Layout: MsgType (1 byte) | flags (2 bytes, big endian) | present fields in flag order.
// Strings and byte slices are length prefixed (4 bytes), lists carry their element
// count (4 bytes) followed by the length prefixed elements.
type binarySerializerImpl struct {
}

// Bit flags to indicate which optional fields are present
const (
	hasCollection uint16 = 1 << 0
	hasID         uint16 = 1 << 1
	hasDocuments  uint16 = 1 << 2
	hasIDs        uint16 = 1 << 3
	hasFilter     uint16 = 1 << 4
	hasUpdates    uint16 = 1 << 5
	hasLimit      uint16 = 1 << 6
	hasReturnOld  uint16 = 1 << 7
	hasCount      uint16 = 1 << 8
	hasOk         uint16 = 1 << 9
	hasCode       uint16 = 1 << 10
	hasErr        uint16 = 1 << 11
	hasMeta       uint16 = 1 << 12
)

// headerSize is MsgType + flags
const headerSize = 3

// --------------------------------------------------------------------------
// Interface Methods (docu see serializer.IRPCSerializer)
// --------------------------------------------------------------------------

func (b binarySerializerImpl) Serialize(msg common.Message) ([]byte, error) {
	w := binaryWriter{buf: make([]byte, headerSize, b.sizeBytes(msg))}
	w.buf[0] = byte(msg.MsgType)

	var flags uint16

	if msg.Collection != "" {
		flags |= hasCollection
		w.putBytes([]byte(msg.Collection))
	}
	if msg.ID != "" {
		flags |= hasID
		w.putBytes([]byte(msg.ID))
	}
	if msg.Documents != nil {
		flags |= hasDocuments
		w.putUint32(uint32(len(msg.Documents)))
		for _, doc := range msg.Documents {
			w.putBytes(doc)
		}
	}
	if msg.IDs != nil {
		flags |= hasIDs
		w.putUint32(uint32(len(msg.IDs)))
		for _, id := range msg.IDs {
			w.putBytes([]byte(id))
		}
	}
	if msg.Filter != nil {
		flags |= hasFilter
		w.putBytes(msg.Filter)
	}
	if msg.Updates != nil {
		flags |= hasUpdates
		w.putBytes(msg.Updates)
	}
	if msg.Limit > 0 {
		flags |= hasLimit
		w.putUint32(msg.Limit)
	}
	if msg.ReturnOld {
		flags |= hasReturnOld
	}
	if msg.Count > 0 {
		flags |= hasCount
		w.putUint32(msg.Count)
	}
	if msg.Ok {
		flags |= hasOk
	}
	if msg.Code > 0 {
		flags |= hasCode
		w.buf = binary.BigEndian.AppendUint64(w.buf, msg.Code)
	}
	if msg.Err != "" {
		flags |= hasErr
		w.putBytes([]byte(msg.Err))
	}
	if msg.Meta != nil {
		flags |= hasMeta
		w.putBytes(msg.Meta)
	}

	// Set flags after knowing which fields are present
	binary.BigEndian.PutUint16(w.buf[1:headerSize], flags)

	return w.buf, nil
}

func (b binarySerializerImpl) Deserialize(data []byte, msg *common.Message) error {
	// Check minimum size (MsgType + flags)
	if len(data) < headerSize {
		return fmt.Errorf("data too short for message header")
	}

	*msg = common.Message{MsgType: common.MessageType(data[0])}
	flags := binary.BigEndian.Uint16(data[1:headerSize])
	r := binaryReader{data: data, pos: headerSize}

	if flags&hasCollection != 0 {
		v, err := r.bytes("collection")
		if err != nil {
			return err
		}
		msg.Collection = string(v)
	}
	if flags&hasID != 0 {
		v, err := r.bytes("id")
		if err != nil {
			return err
		}
		msg.ID = string(v)
	}
	if flags&hasDocuments != 0 {
		n, err := r.uint32("document count")
		if err != nil {
			return err
		}
		msg.Documents = make([][]byte, 0, min(int(n), len(data)))
		for i := uint32(0); i < n; i++ {
			v, err := r.bytes("document")
			if err != nil {
				return err
			}
			msg.Documents = append(msg.Documents, v)
		}
	}
	if flags&hasIDs != 0 {
		n, err := r.uint32("id count")
		if err != nil {
			return err
		}
		msg.IDs = make([]string, 0, min(int(n), len(data)))
		for i := uint32(0); i < n; i++ {
			v, err := r.bytes("id")
			if err != nil {
				return err
			}
			msg.IDs = append(msg.IDs, string(v))
		}
	}
	if flags&hasFilter != 0 {
		v, err := r.bytes("filter")
		if err != nil {
			return err
		}
		msg.Filter = v
	}
	if flags&hasUpdates != 0 {
		v, err := r.bytes("updates")
		if err != nil {
			return err
		}
		msg.Updates = v
	}
	if flags&hasLimit != 0 {
		v, err := r.uint32("limit")
		if err != nil {
			return err
		}
		msg.Limit = v
	}
	msg.ReturnOld = flags&hasReturnOld != 0
	if flags&hasCount != 0 {
		v, err := r.uint32("count")
		if err != nil {
			return err
		}
		msg.Count = v
	}
	msg.Ok = flags&hasOk != 0
	if flags&hasCode != 0 {
		if r.pos+8 > len(data) {
			return fmt.Errorf("data too short for code")
		}
		msg.Code = binary.BigEndian.Uint64(data[r.pos : r.pos+8])
		r.pos += 8
	}
	if flags&hasErr != 0 {
		v, err := r.bytes("error")
		if err != nil {
			return err
		}
		msg.Err = string(v)
	}
	if flags&hasMeta != 0 {
		v, err := r.bytes("meta")
		if err != nil {
			return err
		}
		msg.Meta = v
	}

	return nil
}

// --------------------------------------------------------------------------
// Helper Methods
// --------------------------------------------------------------------------

// sizeBytes calculates the total size needed for serialization
func (b binarySerializerImpl) sizeBytes(msg common.Message) int {
	size := headerSize

	if msg.Collection != "" {
		size += 4 + len(msg.Collection)
	}
	if msg.ID != "" {
		size += 4 + len(msg.ID)
	}
	if msg.Documents != nil {
		size += 4
		for _, doc := range msg.Documents {
			size += 4 + len(doc)
		}
	}
	if msg.IDs != nil {
		size += 4
		for _, id := range msg.IDs {
			size += 4 + len(id)
		}
	}
	if msg.Filter != nil {
		size += 4 + len(msg.Filter)
	}
	if msg.Updates != nil {
		size += 4 + len(msg.Updates)
	}
	if msg.Limit > 0 {
		size += 4
	}
	if msg.Count > 0 {
		size += 4
	}
	if msg.Code > 0 {
		size += 8
	}
	if msg.Err != "" {
		size += 4 + len(msg.Err)
	}
	if msg.Meta != nil {
		size += 4 + len(msg.Meta)
	}

	return size
}

type binaryWriter struct {
	buf []byte
}

func (w *binaryWriter) putUint32(v uint32) {
	w.buf = binary.BigEndian.AppendUint32(w.buf, v)
}

func (w *binaryWriter) putBytes(v []byte) {
	w.putUint32(uint32(len(v)))
	w.buf = append(w.buf, v...)
}

type binaryReader struct {
	data []byte
	pos  int
}

func (r *binaryReader) uint32(field string) (uint32, error) {
	if r.pos+4 > len(r.data) {
		return 0, fmt.Errorf("data too short for %s", field)
	}
	v := binary.BigEndian.Uint32(r.data[r.pos : r.pos+4])
	r.pos += 4
	return v, nil
}

// bytes reads a length prefixed field. The result is a copy, never nil.
func (r *binaryReader) bytes(field string) ([]byte, error) {
	n, err := r.uint32(field + " length")
	if err != nil {
		return nil, err
	}
	if r.pos+int(n) > len(r.data) {
		return nil, fmt.Errorf("data too short for %s data", field)
	}
	v := make([]byte, n)
	copy(v, r.data[r.pos:r.pos+int(n)])
	r.pos += int(n)
	return v, nil
}
