// Package wire defines the messages exchanged between the readkeeper client
// and the annotation service, the gRPC method names, and the JSON codec that
// carries them.
//
// Importing the package registers the codec under the "json" content subtype.
// Clients select it with grpc.CallContentSubtype(wire.CodecName); servers pick
// it up from the request's content type.
package wire

import (
	"encoding/json"

	"google.golang.org/grpc/encoding"
)

const CodecName = "json"

// Codec marshals gRPC messages as JSON.
type Codec struct{}

func (Codec) Marshal(v any) ([]byte, error) {
	return json.Marshal(v)
}

func (Codec) Unmarshal(data []byte, v any) error {
	return json.Unmarshal(data, v)
}

func (Codec) Name() string {
	return CodecName
}

func init() {
	encoding.RegisterCodec(Codec{})
}
