package serializer

import (
	"encoding/json"
	"fmt"

	"github.com/ValentinKolb/docdb/rpc/common"
)

// NewJSONSerializer creates a new serializer using json encoding.
// Documents, filters and updates are binary BSON and therefore appear base64 encoded.
func NewJSONSerializer() IRPCSerializer {
	return &jsonSerializerImpl{}
}

// jsonSerializerImpl implements the IRPCSerializer interface using json encoding
type jsonSerializerImpl struct {
}

// --------------------------------------------------------------------------
// Interface Methods (docu see serializer.IRPCSerializer)
// --------------------------------------------------------------------------

func (j jsonSerializerImpl) Serialize(msg common.Message) ([]byte, error) {
	data, err := json.Marshal(msg)
	if err != nil {
		return nil, fmt.Errorf("json encode %s message: %w", msg.MsgType, err)
	}
	return data, nil
}

func (j jsonSerializerImpl) Deserialize(b []byte, msg *common.Message) error {
	// omitted fields must not keep values of a previous message
	*msg = common.Message{}
	if err := json.Unmarshal(b, msg); err != nil {
		return fmt.Errorf("json decode message: %w", err)
	}
	return nil
}
