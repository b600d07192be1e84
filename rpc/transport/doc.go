// Package transport defines the contract between the untrusted caller side
// and the storage server. A transport moves opaque, already serialized
// payloads; it routes every call by domain UUID and command ID and carries
// the caller EUID next to the payload.
//
// Key Components:
//
//   - IRPCClientTransport: sends a request and receives the response into a
//     caller-owned buffer sized for the command. Responses that do not fit
//     fail with common.ErrBufferTooSmall.
//
//   - IRPCServerTransport: receives requests and passes them to the
//     registered ServerHandleFunc together with a bounded response buffer.
//
//   - CallInfo: domain, command and caller of a single call.
//
// Implementations live in the subpackages unix, tcp and http, the stream
// based ones share the framing of the base package.
package transport
