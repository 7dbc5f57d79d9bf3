package pluginpb

import (
	"fmt"

	"google.golang.org/protobuf/proto"
)

// CodecName is the gRPC content-subtype of the codec. The protocol messages
// use the protobuf binary format, so the codec answers to the standard name.
const CodecName = "proto"

// Codec encodes protocol messages and plain protobuf messages (for example
// the gRPC health service) in the protobuf binary format.
type Codec struct{}

func (Codec) Name() string { return CodecName }

func (Codec) Marshal(v any) ([]byte, error) {
	switch m := v.(type) {
	case wireMessage:
		return m.appendWire(nil)
	case proto.Message:
		return proto.Marshal(m)
	}
	return nil, fmt.Errorf("pluginpb: cannot marshal %T", v)
}

func (Codec) Unmarshal(data []byte, v any) error {
	switch m := v.(type) {
	case wireMessage:
		return m.consumeWire(data)
	case proto.Message:
		return proto.Unmarshal(data, m)
	}
	return fmt.Errorf("pluginpb: cannot unmarshal into %T", v)
}
