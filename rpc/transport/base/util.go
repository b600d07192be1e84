package base

import (
	"encoding/binary"
	"fmt"
	"io"
	"net"

	"github.com/ValentinKolb/secstore/rpc/common"
	"github.com/ValentinKolb/secstore/rpc/transport"
)

// frameHeaderSize is the size of the header preceding every payload:
// - 16 bytes: domain UUID
// - 8 bytes: requestID (uint64, big endian)
// - 4 bytes: command ID (uint32, big endian)
// - 4 bytes: caller EUID (uint32, big endian)
// - 4 bytes: payload length (uint32, big endian)
const frameHeaderSize = 16 + 8 + 4 + 4 + 4

// frameHeader is the decoded header of a frame
type frameHeader struct {
	call      transport.CallInfo
	requestID uint64
	length    uint32
}

func putFrameHeader(buf []byte, call transport.CallInfo, requestID uint64, length int) {
	copy(buf[:16], call.Domain[:])
	binary.BigEndian.PutUint64(buf[16:24], requestID)
	binary.BigEndian.PutUint32(buf[24:28], uint32(call.Command))
	binary.BigEndian.PutUint32(buf[28:32], call.EUID)
	binary.BigEndian.PutUint32(buf[32:36], uint32(length))
}

// writeFrame writes header and payload with a single vectored write
func writeFrame(conn net.Conn, call transport.CallInfo, requestID uint64, data []byte) error {
	if len(data) > transport.MaxFrameSize {
		return fmt.Errorf("frame of %d bytes exceeds maximum of %d bytes", len(data), transport.MaxFrameSize)
	}

	header := make([]byte, frameHeaderSize)
	putFrameHeader(header, call, requestID, len(data))

	b := net.Buffers{header, data}
	_, err := b.WriteTo(conn)
	return err
}

// readFrameHeader reads and decodes a frame header. Frames announcing more
// than transport.MaxFrameSize bytes are rejected.
func readFrameHeader(r io.Reader) (frameHeader, error) {
	var buf [frameHeaderSize]byte
	if _, err := io.ReadFull(r, buf[:]); err != nil {
		return frameHeader{}, err
	}

	var hdr frameHeader
	copy(hdr.call.Domain[:], buf[:16])
	hdr.requestID = binary.BigEndian.Uint64(buf[16:24])
	hdr.call.Command = common.CommandID(binary.BigEndian.Uint32(buf[24:28]))
	hdr.call.EUID = binary.BigEndian.Uint32(buf[28:32])
	hdr.length = binary.BigEndian.Uint32(buf[32:36])

	if hdr.length > transport.MaxFrameSize {
		return hdr, fmt.Errorf("frame of %d bytes exceeds maximum of %d bytes", hdr.length, transport.MaxFrameSize)
	}
	return hdr, nil
}

// readFrame reads a frame from the connection using the provided buffer
// If the buffer is too small, it will allocate a new temporary buffer for the data
func readFrame(r io.Reader, buf []byte) (frameHeader, []byte, error) {
	hdr, err := readFrameHeader(r)
	if err != nil {
		return hdr, nil, err
	}

	if hdr.length == 0 {
		return hdr, []byte{}, nil
	}

	if len(buf) < int(hdr.length) {
		buf = make([]byte, hdr.length)
	}

	if _, err := io.ReadFull(r, buf[:hdr.length]); err != nil {
		return hdr, nil, err
	}
	return hdr, buf[:hdr.length], nil
}
