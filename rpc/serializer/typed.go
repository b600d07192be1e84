package serializer

import (
	"fmt"

	"github.com/ValentinKolb/secstore/rpc/common"
)

// --------------------------------------------------------------------------
// Typed helpers
// --------------------------------------------------------------------------

// EncodeRequest serializes req into out
func EncodeRequest(s IRPCSerializer, req common.Request, out []byte) (int, error) {
	return s.Serialize(req.ToMessage(), out)
}

// DecodeRequest deserializes a request that was sent as cmd. A request of a
// different variant is rejected with common.ErrCommandMismatch.
func DecodeRequest(s IRPCSerializer, data []byte, cmd common.CommandID) (common.Request, error) {
	var msg common.Message
	if err := s.Deserialize(data, &msg); err != nil {
		return nil, err
	}
	if msg.Cmd != cmd {
		return nil, fmt.Errorf("%w: sent as %s, decoded %s", common.ErrCommandMismatch, cmd, msg.Cmd)
	}
	return common.RequestFromMessage(&msg)
}

// EncodeResponse serializes resp into out. The buffer is limited to the
// maximum response size of the command before encoding, so an oversized
// response fails with common.ErrBufferTooSmall even if out is larger.
func EncodeResponse(s IRPCSerializer, resp common.Response, out []byte) (int, error) {
	if limit := int(resp.CommandID().MaxResponseSize()); len(out) > limit {
		out = out[:limit]
	}
	return s.Serialize(resp.ToMessage(), out)
}

// DecodeResponse deserializes the response to a request sent as cmd. Error
// responses are returned as *common.RemoteError.
func DecodeResponse(s IRPCSerializer, data []byte, cmd common.CommandID) (common.Response, error) {
	var msg common.Message
	if err := s.Deserialize(data, &msg); err != nil {
		return nil, err
	}
	if msg.Cmd != cmd {
		return nil, fmt.Errorf("%w: expected response to %s, got %s", common.ErrCommandMismatch, cmd, msg.Cmd)
	}
	return common.ResponseFromMessage(&msg)
}
