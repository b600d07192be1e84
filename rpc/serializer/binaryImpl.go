package serializer

import (
	"encoding/binary"

	"github.com/ValentinKolb/secstore/rpc/common"
)

// NewBinarySerializer creates a new serializer using a custom binary format
// optimized for speed and efficiency
func NewBinarySerializer() IRPCSerializer {
	return &binarySerializerImpl{}
}

// binarySerializerImpl implements IRPCSerializer using a custom binary format.
//
// Layout: 4 bytes command id (big endian), 1 byte presence flags, then each
// present field in flag order. Strings and byte slices are prefixed with a
// 4 byte length, the key list with a 4 byte count.
type binarySerializerImpl struct {
}

// Bit flags to indicate which optional fields are present
const (
	hasKey     byte = 1 << 0
	hasEUID    byte = 1 << 1
	hasPrefix  byte = 1 << 2
	hasValue   byte = 1 << 3
	hasOk      byte = 1 << 4
	hasKeys    byte = 1 << 5
	hasVersion byte = 1 << 6
	hasErr     byte = 1 << 7
)

const binaryHeaderSize = 5

// --------------------------------------------------------------------------
// Interface Methods (docu see serializer.IRPCSerializer)
// --------------------------------------------------------------------------

func (b binarySerializerImpl) Serialize(msg common.Message, out []byte) (int, error) {
	totalSize := b.sizeBytes(msg)
	if totalSize > len(out) {
		return 0, common.ErrBufferTooSmall
	}
	result := out[:totalSize]

	binary.BigEndian.PutUint32(result[0:4], uint32(msg.Cmd))

	var flags byte = 0
	pos := binaryHeaderSize

	if msg.Key != "" {
		flags |= hasKey
		pos = putString(result, pos, msg.Key)
	}

	if msg.EUID != nil {
		flags |= hasEUID
		binary.BigEndian.PutUint32(result[pos:pos+4], *msg.EUID)
		pos += 4
	}

	if msg.Prefix != "" {
		flags |= hasPrefix
		pos = putString(result, pos, msg.Prefix)
	}

	// a nil value and an empty value are distinguished
	if msg.Value != nil {
		flags |= hasValue
		binary.BigEndian.PutUint32(result[pos:pos+4], uint32(len(msg.Value)))
		pos += 4
		pos += copy(result[pos:], msg.Value)
	}

	if msg.Ok {
		flags |= hasOk
	}

	if msg.Keys != nil {
		flags |= hasKeys
		binary.BigEndian.PutUint32(result[pos:pos+4], uint32(len(msg.Keys)))
		pos += 4
		for _, key := range msg.Keys {
			pos = putString(result, pos, key)
		}
	}

	if msg.Version != "" {
		flags |= hasVersion
		pos = putString(result, pos, msg.Version)
	}

	if msg.Err != "" {
		flags |= hasErr
		pos = putString(result, pos, msg.Err)
	}

	// Set flags byte after knowing which fields are present
	result[4] = flags

	return pos, nil
}

func (b binarySerializerImpl) Deserialize(data []byte, msg *common.Message) error {
	*msg = common.Message{}

	if len(data) < binaryHeaderSize {
		return decodeError("data too short for message header")
	}

	msg.Cmd = common.CommandID(binary.BigEndian.Uint32(data[0:4]))
	if err := checkCommand(msg); err != nil {
		return err
	}

	flags := data[4]
	r := reader{data: data, pos: binaryHeaderSize}

	if flags&hasKey != 0 {
		msg.Key = r.readString("key")
	}

	if flags&hasEUID != 0 {
		euid := r.readUint32("euid")
		msg.EUID = &euid
	}

	if flags&hasPrefix != 0 {
		msg.Prefix = r.readString("prefix")
	}

	if flags&hasValue != 0 {
		value := r.readBytes("value")
		if r.err == nil {
			// copy, data belongs to the transport buffer
			msg.Value = make([]byte, len(value))
			copy(msg.Value, value)
		}
	}

	msg.Ok = flags&hasOk != 0

	if flags&hasKeys != 0 {
		count := r.readUint32("key count")
		// every entry needs at least its length prefix
		if r.err == nil && uint64(count)*4 > uint64(r.remaining()) {
			return decodeError("key count %d exceeds message size", count)
		}
		msg.Keys = make([]string, 0, count)
		for i := uint32(0); i < count && r.err == nil; i++ {
			msg.Keys = append(msg.Keys, r.readString("key entry"))
		}
	}

	if flags&hasVersion != 0 {
		msg.Version = r.readString("version")
	}

	if flags&hasErr != 0 {
		msg.Err = r.readString("error")
	}

	if r.err != nil {
		return r.err
	}
	if r.remaining() != 0 {
		return decodeError("%d trailing bytes after message", r.remaining())
	}
	return nil
}

// --------------------------------------------------------------------------
// Helper Methods
// --------------------------------------------------------------------------

// sizeBytes calculates the total size needed for serialization
func (b binarySerializerImpl) sizeBytes(msg common.Message) int {
	size := binaryHeaderSize

	if msg.Key != "" {
		size += 4 + len(msg.Key)
	}
	if msg.EUID != nil {
		size += 4
	}
	if msg.Prefix != "" {
		size += 4 + len(msg.Prefix)
	}
	if msg.Value != nil {
		size += 4 + len(msg.Value)
	}
	if msg.Keys != nil {
		size += 4
		for _, key := range msg.Keys {
			size += 4 + len(key)
		}
	}
	if msg.Version != "" {
		size += 4 + len(msg.Version)
	}
	if msg.Err != "" {
		size += 4 + len(msg.Err)
	}

	return size
}

// putString writes a length prefixed string and returns the new position
func putString(buf []byte, pos int, s string) int {
	binary.BigEndian.PutUint32(buf[pos:pos+4], uint32(len(s)))
	pos += 4
	return pos + copy(buf[pos:], s)
}

// reader reads length prefixed fields and remembers the first error
type reader struct {
	data []byte
	pos  int
	err  error
}

func (r *reader) remaining() int {
	return len(r.data) - r.pos
}

func (r *reader) readUint32(field string) uint32 {
	if r.err != nil {
		return 0
	}
	if r.remaining() < 4 {
		r.err = decodeError("data too short for %s", field)
		return 0
	}
	v := binary.BigEndian.Uint32(r.data[r.pos : r.pos+4])
	r.pos += 4
	return v
}

func (r *reader) readBytes(field string) []byte {
	n := r.readUint32(field + " length")
	if r.err != nil {
		return nil
	}
	if uint64(n) > uint64(r.remaining()) {
		r.err = decodeError("data too short for %s data", field)
		return nil
	}
	b := r.data[r.pos : r.pos+int(n)]
	r.pos += int(n)
	return b
}

func (r *reader) readString(field string) string {
	return string(r.readBytes(field))
}
