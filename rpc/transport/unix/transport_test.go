package unix

import (
	"encoding/binary"
	"os"
	"path/filepath"
	"runtime"
	"testing"
	"time"

	"github.com/ValentinKolb/secstore/rpc/common"
	"github.com/ValentinKolb/secstore/rpc/transport"
	"github.com/google/uuid"
)

func TestCallerIdentity(t *testing.T) {
	socketPath := filepath.Join(t.TempDir(), "secstore.sock")

	server := NewUnixDefaultServerTransport()
	server.RegisterHandler(func(call transport.CallInfo, req []byte, out []byte) int {
		binary.BigEndian.PutUint32(out, call.EUID)
		return 4
	})

	done := make(chan error, 1)
	go func() {
		done <- server.Listen(common.ServerConfig{Transport: common.ServerTransportConfig{Endpoint: socketPath}})
	}()
	defer func() {
		server.Close()
		<-done
	}()

	// wait for the socket
	deadline := time.Now().Add(5 * time.Second)
	for {
		if _, err := os.Stat(socketPath); err == nil {
			break
		}
		if time.Now().After(deadline) {
			t.Fatal("socket was not created")
		}
		time.Sleep(10 * time.Millisecond)
	}

	client := NewUnixClientTransport()
	if err := client.Connect(common.ClientConfig{
		Transport:     common.ClientTransportConfig{Endpoints: []string{socketPath}},
		TimeoutSecond: 5,
	}); err != nil {
		t.Fatalf("Connect failed: %v", err)
	}
	defer client.Close()

	declared := uint32(0xFFFF0001)
	call := transport.CallInfo{
		Domain:  uuid.New(),
		Command: common.CmdVersion,
		EUID:    declared,
	}

	resp := make([]byte, 16)
	n, err := client.Send(call, nil, resp)
	if err != nil {
		t.Fatalf("Send failed: %v", err)
	}
	if n != 4 {
		t.Fatalf("response length = %d", n)
	}

	got := binary.BigEndian.Uint32(resp[:4])
	want := declared
	if runtime.GOOS == "linux" {
		want = uint32(os.Geteuid())
	}
	if got != want {
		t.Errorf("EUID seen by the handler = %d, want %d", got, want)
	}
}
