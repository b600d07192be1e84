package internal

import (
	"encoding/binary"
	"fmt"

	"github.com/ValentinKolb/secstore/lib/db"
)

// CommandType defines the possible operations for the state machine.
type CommandType uint8

const (
	CommandTPut CommandType = iota + 1 // Insert or replace an entry.
)

func (ct CommandType) String() string {
	switch ct {
	case CommandTPut:
		return "Put"
	default:
		return fmt.Sprintf("Unknown(%d)", ct)
	}
}

// ToDBFeature converts a CommandType to the corresponding db.Feature.
// This can be used for checking if the database supports a certain operation.
func (ct CommandType) ToDBFeature() (db.Feature, error) {
	switch ct {
	case CommandTPut:
		return db.FeaturePut, nil
	default:
		return 0, fmt.Errorf("unknown command type %d", ct)
	}
}

const commandHeaderSize = 1 + 4 // Type + KeyLen

// Command represents a command to be executed by the state machine (a single entry in the raft log)
type Command struct {
	Type  CommandType
	Key   string
	Value []byte
}

// SizeBytes returns the exact number of bytes needed to serialize this command
func (command *Command) SizeBytes() int {
	return commandHeaderSize + len(command.Key) + len(command.Value)
}

// Serialize serializes a command into a byte array with the format:
// 1 byte for operation type,
// 4 bytes for key length (big endian),
// N bytes for key data,
// N bytes for value data (rest of the entry)
func (command *Command) Serialize() []byte {
	result := make([]byte, command.SizeBytes())

	result[0] = byte(command.Type)
	binary.BigEndian.PutUint32(result[1:5], uint32(len(command.Key)))
	n := copy(result[commandHeaderSize:], command.Key)
	copy(result[commandHeaderSize+n:], command.Value)

	return result
}

// Deserialize extracts all Command fields from a byte array.
// The value is copied, data may be reused by the caller.
func (command *Command) Deserialize(data []byte) error {
	if len(data) < commandHeaderSize {
		return fmt.Errorf("data too short for command")
	}

	command.Type = CommandType(data[0])
	keyLen := binary.BigEndian.Uint32(data[1:5])

	if uint64(len(data)-commandHeaderSize) < uint64(keyLen) {
		return fmt.Errorf("data too short for key of length %d", keyLen)
	}
	keyEnd := commandHeaderSize + int(keyLen)
	command.Key = string(data[commandHeaderSize:keyEnd])

	// an empty value is a value, never nil
	command.Value = make([]byte, len(data)-keyEnd)
	copy(command.Value, data[keyEnd:])

	return nil
}

// --------------------------------------------------------------------------
// Put Result
// --------------------------------------------------------------------------

// EncodePutResult encodes the previous value of a put into the data of a
// raft result: 1 byte replaced flag followed by the previous value.
func EncodePutResult(prev []byte, replaced bool) []byte {
	data := make([]byte, 1+len(prev))
	if replaced {
		data[0] = 1
	}
	copy(data[1:], prev)
	return data
}

// DecodePutResult is the inverse of EncodePutResult
func DecodePutResult(data []byte) (prev []byte, replaced bool, err error) {
	if len(data) == 0 {
		return nil, false, fmt.Errorf("empty put result")
	}
	switch data[0] {
	case 0:
		return nil, false, nil
	case 1:
		prev = make([]byte, len(data)-1)
		copy(prev, data[1:])
		return prev, true, nil
	default:
		return nil, false, fmt.Errorf("invalid put result flag %d", data[0])
	}
}
