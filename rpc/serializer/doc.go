// Package serializer encodes protocol messages for the storage service. It
// defines a common interface and three implementations with different size
// and speed characteristics.
//
// Every implementation writes into a caller-owned buffer and fails with
// common.ErrBufferTooSmall instead of growing it. This is what bounds the
// size of a response before it crosses the service boundary. Decoding never
// panics; every failure wraps common.ErrDecode.
//
// Key Components:
//
//   - IRPCSerializer: Core interface that all serializer implementations must satisfy.
//
//   - jsonSerializerImpl: JSON encoding and the reference wire format. Human
//     readable and easy to consume from other languages.
//
//   - binarySerializerImpl: Custom binary format using a flag byte to encode only
//     present fields. Smallest payloads, computes the exact size before writing.
//
//   - gobSerializerImpl: Go's gob encoding. Larger payloads, kept for
//     compatibility with Go-only tooling.
//
//   - EncodeRequest / DecodeRequest / EncodeResponse / DecodeResponse: typed
//     helpers that convert between common.Request / common.Response and the wire
//     and check the command id of decoded messages.
//
// Thread Safety:
//
//	All serializer implementations are stateless and safe for concurrent use
//	across multiple goroutines without additional synchronization.
//
// Usage:
//
//	s := serializer.NewJSONSerializer()
//	buf := make([]byte, common.MaxResponseSize(req))
//	n, err := serializer.EncodeResponse(s, resp, buf)
//	...
//	resp, err := serializer.DecodeResponse(s, buf[:n], req.CommandID())
package serializer
