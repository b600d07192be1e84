package http

import (
	"bytes"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"sync/atomic"
	"time"

	"github.com/ValentinKolb/secstore/rpc/common"
	"github.com/ValentinKolb/secstore/rpc/transport"
)

func NewHttpClientTransport() transport.IRPCClientTransport {
	return &httpClientTransport{}
}

type httpClientTransport struct {
	serverURLs []*url.URL
	client     *http.Client
	counter    atomic.Uint32
	retryCount int
}

// --------------------------------------------------------------------------
// Interface Methods (docu see transport.IRPCClientTransport)
// --------------------------------------------------------------------------

func (t *httpClientTransport) Connect(config common.ClientConfig) error {
	if len(config.Transport.Endpoints) == 0 {
		return fmt.Errorf("no endpoints provided")
	}

	parsedURLs := make([]*url.URL, len(config.Transport.Endpoints))
	for i, server := range config.Transport.Endpoints {
		// endpoints may be given as host:port
		if !strings.Contains(server, "://") {
			server = "http://" + server
		}
		parsedURL, err := url.Parse(server)
		if err != nil {
			return err
		}
		parsedURLs[i] = parsedURL
	}

	connsPerHost := config.Transport.ConnectionsPerEndpoint
	if connsPerHost < 1 {
		connsPerHost = 10
	}

	t.client = &http.Client{
		Timeout: time.Duration(config.TimeoutSecond) * time.Second,
		Transport: &http.Transport{
			MaxIdleConns:        100,
			MaxIdleConnsPerHost: connsPerHost,
			IdleConnTimeout:     90 * time.Second,
		},
	}
	t.serverURLs = parsedURLs
	t.counter.Store(0)
	t.retryCount = max(config.Transport.RetryCount, 1)

	return nil
}

func (t *httpClientTransport) Send(call transport.CallInfo, req []byte, resp []byte) (int, error) {
	if t.client == nil {
		return 0, fmt.Errorf("http transport not initialized")
	}

	var lastErr error
	for i := 0; i < t.retryCount; i++ {
		n, retry, err := t.send(call, req, resp)
		if err == nil || !retry {
			return n, err
		}
		lastErr = err
		Logger.Debugf("Request attempt %d/%d failed: %v", i+1, t.retryCount, err)
	}
	return 0, fmt.Errorf("failed to send request after %d attempts: %w", t.retryCount, lastErr)
}

func (t *httpClientTransport) Close() error {
	if t.client != nil {
		t.client.CloseIdleConnections()
	}

	t.client = nil
	t.serverURLs = nil

	return nil
}

// --------------------------------------------------------------------------
// Helper Methods
// --------------------------------------------------------------------------

// send performs one attempt against the next server (round-robin).
// retry reports whether the error is worth another attempt.
func (t *httpClientTransport) send(call transport.CallInfo, req []byte, resp []byte) (n int, retry bool, err error) {
	idx := t.counter.Add(1) % uint32(len(t.serverURLs))
	requestURL := t.serverURLs[idx].JoinPath(call.Domain.String(), strconv.FormatUint(uint64(call.Command), 10))

	httpRequest, err := http.NewRequest(http.MethodPost, requestURL.String(), bytes.NewReader(req))
	if err != nil {
		return 0, false, err
	}
	httpRequest.Header.Set(EUIDHeader, strconv.FormatUint(uint64(call.EUID), 10))
	httpRequest.Header.Set("Content-Type", "application/octet-stream")

	httpResponse, err := t.client.Do(httpRequest)
	if err != nil {
		return 0, true, err
	}
	defer func() {
		if err := httpResponse.Body.Close(); err != nil {
			Logger.Errorf("Failed to close response body: %v", err)
		}
	}()

	if httpResponse.StatusCode != http.StatusOK {
		return 0, httpResponse.StatusCode >= 500, fmt.Errorf("http error: %s", httpResponse.Status)
	}

	tooSmall := func(size string) error {
		return fmt.Errorf("%w: response of %s bytes, buffer of %d bytes", common.ErrBufferTooSmall, size, len(resp))
	}
	if httpResponse.ContentLength > int64(len(resp)) {
		return 0, false, tooSmall(strconv.FormatInt(httpResponse.ContentLength, 10))
	}

	n, err = io.ReadFull(httpResponse.Body, resp)
	switch {
	case err == io.EOF || err == io.ErrUnexpectedEOF:
		return n, false, nil
	case err != nil:
		return 0, true, fmt.Errorf("error reading response: %w", err)
	}

	// resp is full, the body must end here
	var probe [1]byte
	if m, _ := httpResponse.Body.Read(probe[:]); m > 0 {
		return 0, false, tooSmall("more than " + strconv.Itoa(len(resp)))
	}
	return n, false, nil
}
