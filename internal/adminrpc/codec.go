// Package adminrpc implements a read-only gRPC status/admin surface:
// current peers, the running match, GP standings, and a streaming feed
// of lobby state transitions, mirroring the teacher's channel
// fan-out/mutex-guarded StreamRaceUpdates shape.
package adminrpc

import (
	"encoding/json"

	"google.golang.org/grpc/encoding"
)

// jsonCodec is a grpc/encoding.Codec that marshals RPC messages as
// JSON instead of protobuf wire format. The module carries no
// protoc-generated types (generating them would require invoking the
// protobuf compiler), so the service descriptors below dispatch into
// plain Go structs through this codec rather than *_, pb.go stubs.
type jsonCodec struct{}

func (jsonCodec) Marshal(v any) ([]byte, error) {
	return json.Marshal(v)
}

func (jsonCodec) Unmarshal(data []byte, v any) error {
	return json.Unmarshal(data, v)
}

func (jsonCodec) Name() string {
	return "json"
}

func init() {
	encoding.RegisterCodec(jsonCodec{})
}

// Codec returns the JSON codec registered in init, for callers that
// force it on a grpc.Server or a dialed client.
func Codec() encoding.Codec {
	return jsonCodec{}
}
