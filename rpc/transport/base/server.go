package base

import (
	"errors"
	"fmt"
	"io"
	"net"
	"sync"
	"time"

	"github.com/ValentinKolb/secstore/rpc/common"
	"github.com/ValentinKolb/secstore/rpc/transport"
)

const defaultWorkersPerConn = 16

// -----------------------------------------------------------
// Interface Definitions for dependency injection
// -----------------------------------------------------------

// IServerConnector defines the interface for transport-specific server operations
type IServerConnector interface {
	// Listen creates a listener and returns it
	Listen(config common.ServerConfig) (net.Listener, error)

	// GetName returns the name of the transport type (e.g., "unix", "tcp")
	GetName() string

	// UpgradeConnection applies protocol-specific settings to an accepted connection
	UpgradeConnection(conn net.Conn, config common.ServerConfig) error

	// PeerEUID returns the effective user id of the process on the other end
	// of conn. ok is false if the medium cannot tell, the EUID declared in
	// the frames is used then.
	PeerEUID(conn net.Conn) (euid uint32, ok bool, err error)
}

// -----------------------------------------------------------
// Helper Types
// -----------------------------------------------------------

// serverTransport implements the core server transport functionality
type serverTransport struct {
	connector  IServerConnector
	handler    transport.ServerHandleFunc
	config     common.ServerConfig
	listenerMu sync.Mutex
	listener   net.Listener
	closed     bool
	reqPool    *sync.Pool // request payloads
	respPool   *sync.Pool // response buffers of common.MaxDataResponseSize
}

// -----------------------------------------------------------
// Transport Factory Method (used for tcp, unix, etc.)
// -----------------------------------------------------------

// NewBaseServerTransport creates a new base server transport with a per-connection worker pool.
// Request buffers of bufferSize bytes are pooled, larger requests are read into temporary buffers.
func NewBaseServerTransport(connector IServerConnector, bufferSize int) transport.IRPCServerTransport {
	return &serverTransport{
		connector: connector,
		reqPool: &sync.Pool{
			New: func() interface{} {
				buf := make([]byte, bufferSize)
				return &buf
			},
		},
		respPool: &sync.Pool{
			New: func() interface{} {
				buf := make([]byte, common.MaxDataResponseSize)
				return &buf
			},
		},
	}
}

// --------------------------------------------------------------------------
// Interface Methods (docu see transport.IRPCServerTransport)
// --------------------------------------------------------------------------

func (t *serverTransport) RegisterHandler(handler transport.ServerHandleFunc) {
	t.handler = handler
}

func (t *serverTransport) Listen(config common.ServerConfig) error {
	if t.handler == nil {
		return fmt.Errorf("no handler registered")
	}
	t.config = config

	listener, err := t.connector.Listen(config)
	if err != nil {
		return fmt.Errorf("failed to create listener: %w", err)
	}

	t.listenerMu.Lock()
	if t.closed {
		t.listenerMu.Unlock()
		listener.Close()
		return nil
	}
	t.listener = listener
	t.listenerMu.Unlock()

	Logger.Infof("Starting %s server on %s with %d workers per connection",
		t.connector.GetName(), listener.Addr(), t.workersPerConn())

	for {
		conn, err := listener.Accept()
		if errors.Is(err, net.ErrClosed) {
			Logger.Infof("%s server on %s stopped", t.connector.GetName(), listener.Addr())
			return nil
		}
		if err != nil {
			Logger.Errorf("Accept error: %v", err)
			continue
		}

		go t.handleConnection(conn)
	}
}

func (t *serverTransport) Close() error {
	t.listenerMu.Lock()
	defer t.listenerMu.Unlock()

	t.closed = true
	if t.listener == nil {
		return nil
	}
	return t.listener.Close()
}

// --------------------------------------------------------------------------
// Helper Methods
// --------------------------------------------------------------------------

func (t *serverTransport) workersPerConn() int {
	if t.config.Transport.WorkersPerConn > 0 {
		return t.config.Transport.WorkersPerConn
	}
	return defaultWorkersPerConn
}

// handleConnection handles incoming requests for one connection
func (t *serverTransport) handleConnection(conn net.Conn) {
	defer conn.Close()

	if err := t.connector.UpgradeConnection(conn, t.config); err != nil {
		Logger.Errorf("Failed to upgrade connection from %s: %v", conn.RemoteAddr(), err)
		return
	}

	peerEUID, hasPeerEUID, err := t.connector.PeerEUID(conn)
	if err != nil {
		Logger.Errorf("Failed to read peer credentials: %v", err)
		return
	}

	timeout := time.Duration(t.config.TimeoutSecond) * time.Second

	// The buffered channel acts as a counting semaphore for the workers of this connection
	workerSemaphore := make(chan struct{}, t.workersPerConn())
	var wg sync.WaitGroup
	var connMutex sync.Mutex

	handleResponse := func(hdr frameHeader, data []byte) {
		defer func() {
			<-workerSemaphore
			wg.Done()
		}()

		out := t.respPool.Get().(*[]byte)
		defer t.respPool.Put(out)

		start := time.Now()
		n := t.handler(hdr.call, data, *out)
		Logger.Debugf("Processed %s with requestID %d took %s", hdr.call, hdr.requestID, time.Since(start))

		connMutex.Lock()
		defer connMutex.Unlock()

		if timeout > 0 {
			if err := conn.SetWriteDeadline(time.Now().Add(timeout)); err != nil {
				Logger.Errorf("Failed to set write deadline: %v", err)
				return
			}
		}

		if err := writeFrame(conn, hdr.call, hdr.requestID, (*out)[:n]); err != nil {
			Logger.Errorf("Failed to write response: %v", err)
		}
	}

	handleRequest := func() error {
		buf := t.reqPool.Get().(*[]byte)

		hdr, data, err := readFrame(conn, *buf)
		if err != nil {
			t.reqPool.Put(buf)
			return err
		}

		if hasPeerEUID {
			hdr.call.EUID = peerEUID
		}

		workerSemaphore <- struct{}{}
		wg.Add(1)

		go func() {
			defer t.reqPool.Put(buf)
			handleResponse(hdr, data)
		}()

		return nil
	}

	for {
		err := handleRequest()

		if errors.Is(err, io.EOF) || errors.Is(err, net.ErrClosed) {
			Logger.Debugf("Connection closed by client")
			break
		}
		if err != nil {
			Logger.Errorf("Error handling request: %v", err)
			break
		}
	}

	// Wait for all workers to finish before closing the connection
	wg.Wait()
}
