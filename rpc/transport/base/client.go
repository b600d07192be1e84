package base

import (
	"errors"
	"fmt"
	"io"
	"math/rand"
	"net"
	"sync"
	"sync/atomic"
	"time"

	"github.com/ValentinKolb/secstore/rpc/common"
	"github.com/ValentinKolb/secstore/rpc/transport"
	"github.com/lni/dragonboat/v4/logger"
	"github.com/puzpuzpuz/xsync/v3"
)

var Logger = logger.GetLogger("transport/rpc")

var errConnectionClosed = errors.New("connection is closed")

// -----------------------------------------------------------
// Interface Definitions for dependency injection
// -----------------------------------------------------------

// IClientConnector defines the interface for transport-specific connection operations
type IClientConnector interface {
	// Connect establishes a single connection to the endpoint
	Connect(endpoint string) (net.Conn, error)

	// GetName returns the name of the transport type (e.g., "unix", "tcp")
	GetName() string

	// UpgradeConnection applies protocol-specific settings to an established connection
	UpgradeConnection(conn net.Conn, config common.ClientConfig) error
}

// -----------------------------------------------------------
// Helper Types
// -----------------------------------------------------------

// responseResult contains the result of a request
type responseResult struct {
	n   int
	err error
}

// pendingRequest is a request waiting for its response. The response
// payload is read directly into buf.
type pendingRequest struct {
	buf []byte
	ch  chan responseResult
}

// clientConnection represents a single net connection
type clientConnection struct {
	conn     net.Conn
	endpoint string
	stopCh   chan struct{} // Close signal for the reader goroutine
	pending  *xsync.MapOf[uint64, *pendingRequest]
	connMu   sync.Mutex // Protects the connection itself
	parent   *clientTransport
}

// clientTransport implements the core client transport functionality
// independent of the specific transport medium (unix, tcp, etc.)
type clientTransport struct {
	connector     IClientConnector
	config        common.ClientConfig
	connections   []*clientConnection
	connectionsMu sync.RWMutex
	nextConnIndex atomic.Uint64 // Round Robin
	nextRequestID atomic.Uint64 // unique request IDs
}

// -----------------------------------------------------------
// Transport Factory Method (used for tcp, unix, etc.)
// -----------------------------------------------------------

// NewBaseClientTransport creates a new base client transport with the specified connector
func NewBaseClientTransport(connector IClientConnector) transport.IRPCClientTransport {
	return &clientTransport{
		connector: connector,
	}
}

// --------------------------------------------------------------------------
// Interface Methods (docu see transport.IRPCClientTransport)
// --------------------------------------------------------------------------

func (t *clientTransport) Connect(config common.ClientConfig) error {
	if len(config.Transport.Endpoints) == 0 {
		return fmt.Errorf("no endpoints provided")
	}

	t.closeConnections()
	t.config = config

	connectionsPerEP := 1
	if config.Transport.ConnectionsPerEndpoint > 0 {
		connectionsPerEP = config.Transport.ConnectionsPerEndpoint
	}

	connections := make([]*clientConnection, 0, len(config.Transport.Endpoints)*connectionsPerEP)
	for _, endpoint := range config.Transport.Endpoints {
		for i := 0; i < connectionsPerEP; i++ {
			clientConn := &clientConnection{
				endpoint: endpoint,
				stopCh:   make(chan struct{}),
				pending:  xsync.NewMapOf[uint64, *pendingRequest](),
				parent:   t,
			}

			if err := clientConn.reconnect(); err != nil {
				Logger.Warningf("Failed to connect to %s (connection %d/%d): %v", endpoint, i+1, connectionsPerEP, err)
				continue
			}

			connections = append(connections, clientConn)
			Logger.Debugf("Connected to %s (connection %d/%d)", endpoint, i+1, connectionsPerEP)

			go clientConn.readResponses()
		}
	}

	if len(connections) == 0 {
		return fmt.Errorf("failed to connect to any endpoint")
	}

	t.connectionsMu.Lock()
	t.connections = connections
	t.connectionsMu.Unlock()

	Logger.Infof("Connected to %d out of %d connections to %d endpoints using %s transport",
		len(connections), len(config.Transport.Endpoints)*connectionsPerEP, len(config.Transport.Endpoints), t.connector.GetName())

	return nil
}

func (t *clientTransport) Send(call transport.CallInfo, req []byte, resp []byte) (int, error) {
	maxRetries := t.config.Transport.RetryCount
	if maxRetries < 1 {
		maxRetries = 1
	}

	var lastErr error
	backoffMs := 50

	for i := 0; i < maxRetries; i++ {
		conn := t.getNextConnection()
		if conn == nil {
			return 0, fmt.Errorf("no active connections available")
		}

		n, err := conn.send(call, t.nextRequestID.Add(1), req, resp)
		if err == nil {
			return n, nil
		}
		// the server answered, retrying does not change the size of the answer
		if errors.Is(err, common.ErrBufferTooSmall) {
			return 0, err
		}

		lastErr = err
		Logger.Debugf("Request attempt %d/%d failed: %v", i+1, maxRetries, err)

		if i < maxRetries-1 {
			// Exponential backoff with a small random jitter (+-10%)
			jitter := float64(backoffMs) * (0.9 + 0.2*rand.Float64())
			time.Sleep(time.Duration(jitter) * time.Millisecond)
			backoffMs *= 2
		}
	}

	return 0, fmt.Errorf("failed to send request after %d attempts: %w", maxRetries, lastErr)
}

func (t *clientTransport) Close() error {
	t.closeConnections()
	return nil
}

// --------------------------------------------------------------------------
// Helper Methods
// --------------------------------------------------------------------------

// getNextConnection selects the next connection via Round Robin
func (t *clientTransport) getNextConnection() *clientConnection {
	t.connectionsMu.RLock()
	defer t.connectionsMu.RUnlock()

	switch len(t.connections) {
	case 0:
		return nil
	case 1:
		return t.connections[0]
	default:
		return t.connections[t.nextConnIndex.Add(1)%uint64(len(t.connections))]
	}
}

// closeConnections closes all active connections
func (t *clientTransport) closeConnections() {
	t.connectionsMu.Lock()
	connections := t.connections
	t.connections = nil
	t.connectionsMu.Unlock()

	for _, conn := range connections {
		close(conn.stopCh)

		conn.connMu.Lock()
		if conn.conn != nil {
			conn.conn.Close()
		}
		conn.connMu.Unlock()

		conn.failPending(errConnectionClosed)
	}
}

func (t *clientTransport) timeout() time.Duration {
	return time.Duration(t.config.TimeoutSecond) * time.Second
}

// send writes one request frame and waits for the matching response
func (c *clientConnection) send(call transport.CallInfo, requestID uint64, req []byte, resp []byte) (int, error) {
	p := &pendingRequest{buf: resp, ch: make(chan responseResult, 1)}
	c.pending.Store(requestID, p)

	timeout := c.parent.timeout()

	c.connMu.Lock()
	conn := c.conn
	var err error
	if conn == nil {
		err = errConnectionClosed
	} else {
		if timeout > 0 {
			conn.SetWriteDeadline(time.Now().Add(timeout))
		}
		err = writeFrame(conn, call, requestID, req)
	}
	c.connMu.Unlock()

	if err != nil {
		c.pending.Delete(requestID)
		return 0, err
	}

	var timeoutCh <-chan time.Time
	if timeout > 0 {
		timer := time.NewTimer(timeout)
		defer timer.Stop()
		timeoutCh = timer.C
	}

	select {
	case result := <-p.ch:
		return result.n, result.err
	case <-timeoutCh:
		// The reader may already own the request and be writing into resp,
		// in that case its result is awaited.
		if _, owned := c.pending.LoadAndDelete(requestID); owned {
			return 0, fmt.Errorf("request timed out")
		}
		result := <-p.ch
		return result.n, result.err
	}
}

// failPending completes all waiting requests with err
func (c *clientConnection) failPending(err error) {
	c.pending.Range(func(requestID uint64, p *pendingRequest) bool {
		if _, owned := c.pending.LoadAndDelete(requestID); owned {
			p.ch <- responseResult{err: err}
		}
		return true
	})
}

func (c *clientConnection) stopped() bool {
	select {
	case <-c.stopCh:
		return true
	default:
		return false
	}
}

// readResponses reads responses in a loop and distributes them to waiting requests
func (c *clientConnection) readResponses() {
	for {
		c.connMu.Lock()
		conn := c.conn
		c.connMu.Unlock()

		err := c.readResponse(conn)
		if err == nil {
			continue
		}
		if c.stopped() {
			return
		}

		c.failPending(fmt.Errorf("error reading response: %w", err))
		if errors.Is(err, io.EOF) {
			Logger.Infof("Connection to %s closed by server, reconnecting", c.endpoint)
		} else {
			Logger.Warningf("Connection to %s failed, reconnecting: %v", c.endpoint, err)
		}

		if err := c.reconnect(); err != nil {
			Logger.Errorf("Failed to reconnect to %s: %v", c.endpoint, err)
			return
		}
	}
}

// readResponse reads one response frame into the buffer of its request.
// An error means the connection is no longer usable.
func (c *clientConnection) readResponse(conn net.Conn) error {
	hdr, err := readFrameHeader(conn)
	if err != nil {
		return err
	}

	// the payload follows the header immediately, a stalled peer must not
	// block a request that was already claimed
	if timeout := c.parent.timeout(); timeout > 0 {
		conn.SetReadDeadline(time.Now().Add(timeout))
		defer conn.SetReadDeadline(time.Time{})
	}

	p, found := c.pending.LoadAndDelete(hdr.requestID)
	if !found {
		Logger.Warningf("Received response for unknown request ID %d (%s)", hdr.requestID, hdr.call)
		_, err := io.CopyN(io.Discard, conn, int64(hdr.length))
		return err
	}

	if int(hdr.length) > len(p.buf) {
		p.ch <- responseResult{err: fmt.Errorf("%w: response of %d bytes, buffer of %d bytes",
			common.ErrBufferTooSmall, hdr.length, len(p.buf))}
		_, err := io.CopyN(io.Discard, conn, int64(hdr.length))
		return err
	}

	if _, err := io.ReadFull(conn, p.buf[:hdr.length]); err != nil {
		p.ch <- responseResult{err: fmt.Errorf("error reading response: %w", err)}
		return err
	}

	p.ch <- responseResult{n: int(hdr.length)}
	return nil
}

// reconnect establishes or restores a connection to the endpoint
func (c *clientConnection) reconnect() error {
	c.connMu.Lock()
	defer c.connMu.Unlock()

	if c.conn != nil {
		c.conn.Close()
		c.conn = nil
	}
	if c.stopped() {
		return errConnectionClosed
	}

	conn, err := c.parent.connector.Connect(c.endpoint)
	if err != nil {
		return fmt.Errorf("failed to connect to %s: %w", c.endpoint, err)
	}

	if err := c.parent.connector.UpgradeConnection(conn, c.parent.config); err != nil {
		conn.Close()
		return fmt.Errorf("failed to upgrade connection to %s: %w", c.endpoint, err)
	}

	c.conn = conn
	return nil
}
