package http

import (
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/ValentinKolb/secstore/rpc/common"
	"github.com/ValentinKolb/secstore/rpc/transport"
	"github.com/google/uuid"
)

var testCall = transport.CallInfo{
	Domain:  uuid.MustParse("5f7d2c1e-9a4b-4e3f-8c21-6b0d9e4a7f13"),
	Command: common.CmdPut,
	EUID:    0xDEADBEEF,
}

func startServer(t *testing.T) (*httptest.Server, transport.IRPCClientTransport) {
	t.Helper()

	server := NewHttpServerTransport().(*httpServerTransport)
	server.RegisterHandler(func(call transport.CallInfo, req []byte, out []byte) int {
		n := copy(out, fmt.Sprintf("%s|%d|%d|", call.Domain, call.Command, call.EUID))
		return n + copy(out[n:], req)
	})

	ts := httptest.NewServer(server.Handler())
	t.Cleanup(ts.Close)

	client := NewHttpClientTransport()
	if err := client.Connect(common.ClientConfig{
		Transport:     common.ClientTransportConfig{Endpoints: []string{ts.URL}, RetryCount: 1},
		TimeoutSecond: 5,
	}); err != nil {
		t.Fatalf("Connect failed: %v", err)
	}
	t.Cleanup(func() { client.Close() })

	return ts, client
}

func TestSendReceive(t *testing.T) {
	_, client := startServer(t)

	resp := make([]byte, 1024)
	n, err := client.Send(testCall, []byte("body"), resp)
	if err != nil {
		t.Fatalf("Send failed: %v", err)
	}
	want := fmt.Sprintf("%s|1|%d|body", testCall.Domain, uint32(0xDEADBEEF))
	if string(resp[:n]) != want {
		t.Errorf("response = %q, want %q", resp[:n], want)
	}
}

func TestResponseBufferTooSmall(t *testing.T) {
	_, client := startServer(t)

	resp := make([]byte, 8)
	if _, err := client.Send(testCall, []byte("body"), resp); !errors.Is(err, common.ErrBufferTooSmall) {
		t.Errorf("expected ErrBufferTooSmall, got %v", err)
	}
}

func TestBadRequests(t *testing.T) {
	ts, _ := startServer(t)

	tests := []struct {
		name   string
		path   string
		euid   string
		status int
	}{
		{"invalid domain", "/not-a-uuid/1", "", http.StatusBadRequest},
		{"invalid command", "/" + testCall.Domain.String() + "/put", "", http.StatusBadRequest},
		{"command overflow", "/" + testCall.Domain.String() + "/4294967296", "", http.StatusBadRequest},
		{"invalid euid", "/" + testCall.Domain.String() + "/1", "root", http.StatusBadRequest},
		{"hex euid", "/" + testCall.Domain.String() + "/1", "0x3E8", http.StatusOK},
		{"no euid", "/" + testCall.Domain.String() + "/1", "", http.StatusOK},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req, err := http.NewRequest(http.MethodPost, ts.URL+tt.path, strings.NewReader("x"))
			if err != nil {
				t.Fatal(err)
			}
			if tt.euid != "" {
				req.Header.Set(EUIDHeader, tt.euid)
			}
			resp, err := http.DefaultClient.Do(req)
			if err != nil {
				t.Fatal(err)
			}
			resp.Body.Close()
			if resp.StatusCode != tt.status {
				t.Errorf("status = %d, want %d", resp.StatusCode, tt.status)
			}
		})
	}
}

func TestHexEUIDHeader(t *testing.T) {
	ts, _ := startServer(t)

	req, _ := http.NewRequest(http.MethodPost, ts.URL+"/"+testCall.Domain.String()+"/2", nil)
	req.Header.Set(EUIDHeader, "0x3E8")
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()

	body, _ := io.ReadAll(resp.Body)
	if want := testCall.Domain.String() + "|2|1000|"; string(body) != want {
		t.Errorf("body = %q, want %q", body, want)
	}
}

func TestMetricsEndpoint(t *testing.T) {
	ts, _ := startServer(t)

	resp, err := http.Get(ts.URL + "/metrics")
	if err != nil {
		t.Fatal(err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Errorf("status = %d", resp.StatusCode)
	}
}

func TestSendNotConnected(t *testing.T) {
	client := NewHttpClientTransport()
	if _, err := client.Send(testCall, nil, make([]byte, 16)); err == nil {
		t.Error("expected error for unconnected transport")
	}
	if err := client.Connect(common.ClientConfig{}); err == nil {
		t.Error("expected error without endpoints")
	}
}

func TestServerError(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "unavailable", http.StatusServiceUnavailable)
	}))
	defer ts.Close()

	client := NewHttpClientTransport()
	if err := client.Connect(common.ClientConfig{
		Transport: common.ClientTransportConfig{Endpoints: []string{strings.TrimPrefix(ts.URL, "http://")}, RetryCount: 2},
	}); err != nil {
		t.Fatal(err)
	}
	defer client.Close()

	if _, err := client.Send(testCall, nil, make([]byte, 16)); err == nil || !strings.Contains(err.Error(), "2 attempts") {
		t.Errorf("expected error after 2 attempts, got %v", err)
	}
}
