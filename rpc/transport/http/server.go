package http

import (
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/ValentinKolb/secstore/rpc/common"
	"github.com/ValentinKolb/secstore/rpc/transport"
	"github.com/VictoriaMetrics/metrics"
	"github.com/google/uuid"
	"github.com/lni/dragonboat/v4/logger"
)

var Logger = logger.GetLogger("transport/rpc")

// EUIDHeader carries the caller EUID of a request
const EUIDHeader = "X-Secstore-Euid"

func NewHttpServerTransport() transport.IRPCServerTransport {
	return &httpServerTransport{
		respPool: &sync.Pool{
			New: func() interface{} {
				buf := make([]byte, common.MaxDataResponseSize)
				return &buf
			},
		},
	}
}

type httpServerTransport struct {
	handler  transport.ServerHandleFunc
	config   common.ServerConfig
	respPool *sync.Pool
	serverMu sync.Mutex
	server   *http.Server
	closed   bool
}

// --------------------------------------------------------------------------
// Interface Methods (docu see transport.IRPCServerTransport)
// --------------------------------------------------------------------------

func (t *httpServerTransport) RegisterHandler(handler transport.ServerHandleFunc) {
	t.handler = handler
}

func (t *httpServerTransport) Listen(config common.ServerConfig) error {
	if t.handler == nil {
		return fmt.Errorf("no handler registered")
	}
	t.config = config

	listener, err := net.Listen("tcp", config.Transport.Endpoint)
	if err != nil {
		return fmt.Errorf("failed to create listener: %w", err)
	}

	t.serverMu.Lock()
	if t.closed {
		t.serverMu.Unlock()
		listener.Close()
		return nil
	}
	t.server = &http.Server{Handler: t.Handler()}
	server := t.server
	t.serverMu.Unlock()

	Logger.Infof("Starting HTTP server on %s", listener.Addr())

	if err := server.Serve(listener); !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

func (t *httpServerTransport) Close() error {
	t.serverMu.Lock()
	defer t.serverMu.Unlock()

	t.closed = true
	if t.server == nil {
		return nil
	}
	return t.server.Close()
}

// Handler returns the routes of the transport: the rpc endpoint and the
// prometheus metrics.
func (t *httpServerTransport) Handler() http.Handler {
	mux := http.NewServeMux()

	rpcHandler := http.HandlerFunc(t.handleRequest)
	if t.config.LogLevel == "debug" {
		rpcHandler = loggerMiddleware(rpcHandler)
	}
	mux.Handle("POST /{domain}/{command}", rpcHandler)
	mux.HandleFunc("GET /metrics", func(w http.ResponseWriter, r *http.Request) {
		metrics.WritePrometheus(w, true)
	})

	return mux
}

// --------------------------------------------------------------------------
// Helper Methods
// --------------------------------------------------------------------------

// parseCall extracts domain, command and caller from the request
func parseCall(r *http.Request) (transport.CallInfo, error) {
	domain, err := uuid.Parse(r.PathValue("domain"))
	if err != nil {
		return transport.CallInfo{}, fmt.Errorf("invalid domain: %w", err)
	}

	command, err := strconv.ParseUint(r.PathValue("command"), 10, 32)
	if err != nil {
		return transport.CallInfo{}, fmt.Errorf("invalid command: %w", err)
	}

	var euid uint64
	if header := r.Header.Get(EUIDHeader); header != "" {
		// decimal or 0x prefixed hex
		euid, err = strconv.ParseUint(header, 0, 32)
		if err != nil {
			return transport.CallInfo{}, fmt.Errorf("invalid %s header: %w", EUIDHeader, err)
		}
	}

	return transport.CallInfo{
		Domain:  domain,
		Command: common.CommandID(command),
		EUID:    uint32(euid),
	}, nil
}

// handleRequest handles incoming HTTP requests and writes the response to the writer
func (t *httpServerTransport) handleRequest(w http.ResponseWriter, r *http.Request) {
	call, err := parseCall(r)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, transport.MaxFrameSize))
	defer r.Body.Close()
	if err != nil {
		var maxBytesErr *http.MaxBytesError
		if errors.As(err, &maxBytesErr) {
			http.Error(w, "Request body too large", http.StatusRequestEntityTooLarge)
			return
		}
		http.Error(w, "Failed to read request body", http.StatusInternalServerError)
		return
	}

	out := t.respPool.Get().(*[]byte)
	defer t.respPool.Put(out)

	n := t.handler(call, body, *out)

	w.Header().Set("Content-Type", "application/octet-stream")
	w.Header().Set("Content-Length", strconv.Itoa(n))
	if _, err = w.Write((*out)[:n]); err != nil {
		Logger.Errorf("Failed to write response: %v", err)
	}
}

// --------------------------------------------------------------------------
// Middleware (logging)
// --------------------------------------------------------------------------

// responseWriter is a custom ResponseWriter that captures status code
type responseWriter struct {
	http.ResponseWriter
	statusCode int
}

// WriteHeader captures the status code before writing it
func (rw *responseWriter) WriteHeader(code int) {
	rw.statusCode = code
	rw.ResponseWriter.WriteHeader(code)
}

// loggerMiddleware is a middleware that logs HTTP requests
func loggerMiddleware(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()

		rw := &responseWriter{
			ResponseWriter: w,
			statusCode:     http.StatusOK,
		}

		next.ServeHTTP(rw, r)

		Logger.Debugf("%s %s => %d took %s", r.Method, r.URL.Path, rw.statusCode, time.Since(start))
	}
}
