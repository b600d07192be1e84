package serializer

import (
	"bytes"
	"encoding/gob"
	"fmt"

	"github.com/ValentinKolb/secstore/rpc/common"
)

// NewGOBSerializer creates a new serializer using Go's binary gob format
func NewGOBSerializer() IRPCSerializer {
	return &gobSerializerImpl{}
}

// gobSerializerImpl implements the IRPCSerializer interface using gob encoding
type gobSerializerImpl struct {
}

// gobMessage carries the euid explicitly. gob flattens pointers and drops
// zero values, which would turn an euid of 0 into "no euid".
type gobMessage struct {
	common.Message
	HasEUID   bool
	EUIDValue uint32
}

// --------------------------------------------------------------------------
// Interface Methods (docu see serializer.IRPCSerializer)
// --------------------------------------------------------------------------

func (g gobSerializerImpl) Serialize(msg common.Message, out []byte) (int, error) {
	wire := gobMessage{Message: msg}
	if msg.EUID != nil {
		wire.HasEUID = true
		wire.EUIDValue = *msg.EUID
		wire.Message.EUID = nil
	}

	var buf bytes.Buffer
	if err := gob.NewEncoder(&buf).Encode(wire); err != nil {
		return 0, fmt.Errorf("failed to encode gob: %w", err)
	}
	return copyOut(buf.Bytes(), out)
}

func (g gobSerializerImpl) Deserialize(b []byte, msg *common.Message) (err error) {
	// encoding/gob is not hardened against hostile input
	defer func() {
		if r := recover(); r != nil {
			err = decodeError("gob decoder panicked: %v", r)
		}
	}()

	var wire gobMessage
	if err := gob.NewDecoder(bytes.NewReader(b)).Decode(&wire); err != nil {
		return fmt.Errorf("%w: %v", common.ErrDecode, err)
	}

	*msg = wire.Message
	msg.EUID = nil
	if wire.HasEUID {
		euid := wire.EUIDValue
		msg.EUID = &euid
	}
	return checkCommand(msg)
}
