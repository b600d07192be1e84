package client

import (
	"fmt"
	"sync"

	"github.com/ValentinKolb/secstore/rpc/common"
	"github.com/ValentinKolb/secstore/rpc/serializer"
	"github.com/ValentinKolb/secstore/rpc/transport"
	"github.com/google/uuid"
	"github.com/lni/dragonboat/v4/logger"
)

var (
	Logger = logger.GetLogger("rpc")
)

// requestBuffers holds buffers large enough for every request frame
var requestBuffers = sync.Pool{
	New: func() interface{} {
		buf := make([]byte, transport.MaxFrameSize)
		return &buf
	},
}

// rpcClientAdapter stores everything needed to issue requests to one storage domain
type rpcClientAdapter struct {
	domain     uuid.UUID
	config     common.ClientConfig
	transport  transport.IRPCClientTransport
	serializer serializer.IRPCSerializer
}

// invokeRPCRequest sends req to the domain and decodes the response.
// The receive buffer is sized to the maximum response size of the command
// before the call, a larger response fails with common.ErrBufferTooSmall.
// Error responses of the server are returned as *common.RemoteError.
func (a *rpcClientAdapter) invokeRPCRequest(req common.Request) (common.Response, error) {
	cmd := req.CommandID()

	reqBuf := requestBuffers.Get().(*[]byte)
	defer requestBuffers.Put(reqBuf)

	n, err := serializer.EncodeRequest(a.serializer, req, *reqBuf)
	if err != nil {
		return nil, fmt.Errorf("failed to encode %s request: %w", cmd, err)
	}

	resp := make([]byte, common.MaxResponseSize(req))
	call := transport.CallInfo{Domain: a.domain, Command: cmd, EUID: a.config.EUID}

	m, err := a.transport.Send(call, (*reqBuf)[:n], resp)
	if err != nil {
		return nil, fmt.Errorf("%s request failed: %w", cmd, err)
	}

	return serializer.DecodeResponse(a.serializer, resp[:m], cmd)
}
