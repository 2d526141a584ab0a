package codec

import (
	"google.golang.org/protobuf/proto"
	"google.golang.org/protobuf/types/known/structpb"
)

// ProtoValue encodes dynamic values as a google.protobuf.Value message.
// Supported shapes are those accepted by structpb.NewValue: nil, bools, numbers,
// strings, []byte (stored base64), []any and map[string]any. Numbers come back as
// float64 and []byte as a base64 string.
type ProtoValue struct{}

var _ Codec[any] = ProtoValue{}

func (ProtoValue) Encode(v any) ([]byte, error) {
	pv, err := structpb.NewValue(v)
	if err != nil {
		return nil, err
	}
	return proto.Marshal(pv)
}

func (ProtoValue) Decode(b []byte) (any, error) {
	var pv structpb.Value
	if err := proto.Unmarshal(b, &pv); err != nil {
		return nil, err
	}
	return pv.AsInterface(), nil
}
