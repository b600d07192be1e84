package transport

import (
	"fmt"

	"github.com/ValentinKolb/secstore/rpc/common"
	"github.com/google/uuid"
)

// MaxFrameSize bounds the payload of a single request or response.
const MaxFrameSize = 4 * 1024 * 1024

// CallInfo describes a single call: the storage domain it is routed to, the
// command the payload encodes and the identity of the caller.
type CallInfo struct {
	Domain  uuid.UUID
	Command common.CommandID
	EUID    uint32
}

func (c CallInfo) String() string {
	return fmt.Sprintf("%s/%s (euid=0x%X)", c.Domain, c.Command, c.EUID)
}

// --------------------------------------------------------------------------
// Server Transport
// --------------------------------------------------------------------------

// ServerHandleFunc is a function type that handles incoming requests.
// It is called by a server transport when a request is received and writes
// the encoded response into out, returning the number of bytes written.
// out is owned by the transport and only valid during the call.
type ServerHandleFunc func(call CallInfo, req []byte, out []byte) (n int)

// IRPCServerTransport is the interface for the RPC transport layer
type IRPCServerTransport interface {
	// RegisterHandler registers a handler for the transport layer
	// This handler should be called when a request is received
	RegisterHandler(handler ServerHandleFunc)
	// Listen starts the transport layer and blocks while serving requests.
	// It returns nil after Close was called.
	Listen(config common.ServerConfig) error
	// Close stops accepting requests
	Close() error
}

// --------------------------------------------------------------------------
// Client Transport
// --------------------------------------------------------------------------

// IRPCClientTransport is the interface for the RPC client transport
type IRPCClientTransport interface {
	// Connect initializes the transport with the given configuration
	Connect(config common.ClientConfig) error
	// Send sends a request to the server and copies the response into resp.
	// A response larger than resp fails with common.ErrBufferTooSmall.
	Send(call CallInfo, req []byte, resp []byte) (n int, err error)
	// Close closes the transport connection
	Close() error
}
