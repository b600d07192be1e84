package serializer

import (
	"github.com/ValentinKolb/secstore/rpc/common"
)

// IRPCSerializer is the interface for all Message Serializers
type IRPCSerializer interface {
	// Serialize writes the encoded message into out and returns the number of
	// bytes written. If the encoding does not fit, common.ErrBufferTooSmall is
	// returned and out is left untouched.
	Serialize(msg common.Message, out []byte) (int, error)
	// Deserialize decodes b into msg. Every failure wraps common.ErrDecode,
	// malformed input never causes a panic.
	Deserialize(b []byte, msg *common.Message) error
}

// checkCommand rejects decoded messages without a known command id
func checkCommand(msg *common.Message) error {
	if !msg.Cmd.Valid() {
		return decodeError("unknown command id %d", uint32(msg.Cmd))
	}
	return nil
}
