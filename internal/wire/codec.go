package wire

import (
	"bytes"
	"encoding/gob"
)

// CodecName is the gRPC content-subtype this module registers its codec
// under (negotiated as "application/grpc+gob2pc").
const CodecName = "gob2pc"

// gobCodec implements google.golang.org/grpc/encoding.Codec over
// encoding/gob, standing in for protoc-generated marshaling: the wire
// messages in this package are plain structs, not proto.Message values,
// since stub generation is out of scope for this module.
type gobCodec struct{}

func (gobCodec) Marshal(v interface{}) ([]byte, error) {
	var buf bytes.Buffer
	if err := gob.NewEncoder(&buf).Encode(v); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func (gobCodec) Unmarshal(data []byte, v interface{}) error {
	return gob.NewDecoder(bytes.NewReader(data)).Decode(v)
}

func (gobCodec) Name() string { return CodecName }
