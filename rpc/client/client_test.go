package client

import (
	"errors"
	"os"
	"path/filepath"
	"runtime"
	"testing"
	"time"

	"github.com/ValentinKolb/secstore/lib/db"
	"github.com/ValentinKolb/secstore/lib/db/engines/oak"
	"github.com/ValentinKolb/secstore/lib/store/lstore"
	"github.com/ValentinKolb/secstore/rpc/common"
	"github.com/ValentinKolb/secstore/rpc/serializer"
	"github.com/ValentinKolb/secstore/rpc/server"
	"github.com/ValentinKolb/secstore/rpc/transport"
	"github.com/ValentinKolb/secstore/rpc/transport/unix"
)

// loopbackTransport hands requests directly to a dispatcher
type loopbackTransport struct {
	dispatcher *server.Dispatcher
	bufSizes   map[common.CommandID]int
	override   []byte // replaces the response if set
}

func newLoopback() *loopbackTransport {
	st := lstore.NewLocalStore(func() db.KVDB { return oak.NewOakDB(nil) })
	return &loopbackTransport{
		dispatcher: server.NewDispatcher(common.DomainWifiProfiles, st, server.NewIStoreServerAdapter("test"), serializer.NewBinarySerializer()),
		bufSizes:   make(map[common.CommandID]int),
	}
}

func (l *loopbackTransport) Connect(common.ClientConfig) error { return nil }

func (l *loopbackTransport) Send(call transport.CallInfo, req []byte, resp []byte) (int, error) {
	l.bufSizes[call.Command] = len(resp)
	if l.override != nil {
		if len(l.override) > len(resp) {
			return 0, common.ErrBufferTooSmall
		}
		return copy(resp, l.override), nil
	}
	return l.dispatcher.Dispatch(call.EUID, call.Command, req, resp), nil
}

func (l *loopbackTransport) Close() error { return nil }

func newLoopbackStorage(t *testing.T, euid uint32) (*RPCStorage, *loopbackTransport) {
	t.Helper()
	lb := newLoopback()
	s, err := NewRPCStorage(common.DomainWifiProfiles, common.ClientConfig{EUID: euid}, lb, serializer.NewBinarySerializer())
	if err != nil {
		t.Fatalf("NewRPCStorage failed: %v", err)
	}
	return s, lb
}

func TestStorageOperations(t *testing.T) {
	s, _ := newLoopbackStorage(t, 0x3E8)

	if _, replaced, err := s.Put("home", []byte("one")); err != nil || replaced {
		t.Fatalf("Put: replaced=%v err=%v", replaced, err)
	}
	prev, replaced, err := s.Put("home", []byte("two"))
	if err != nil || !replaced || string(prev) != "one" {
		t.Fatalf("Put: prev=%q replaced=%v err=%v", prev, replaced, err)
	}

	val, found, err := s.Get("home")
	if err != nil || !found || string(val) != "two" {
		t.Fatalf("Get: val=%q found=%v err=%v", val, found, err)
	}

	keys, err := s.List(nil, "")
	if err != nil {
		t.Fatalf("List failed: %v", err)
	}
	if len(keys) != 1 || keys[0].String() != "v=1,euid=0x3E8/home" {
		t.Errorf("List returned %v", keys)
	}

	version, err := s.Version()
	if err != nil || version != "test" {
		t.Errorf("Version: %q, %v", version, err)
	}

	resp, err := s.Invoke(common.GetRequest{Key: "missing"})
	if err != nil {
		t.Fatalf("Invoke failed: %v", err)
	}
	if get, ok := resp.(common.GetResponse); !ok || get.Found {
		t.Errorf("Invoke returned %#v", resp)
	}
}

func TestReceiveBufferSizing(t *testing.T) {
	s, lb := newLoopbackStorage(t, 1)

	s.Put("k", []byte("v"))
	s.Get("k")
	s.List(nil, "")
	s.Version()

	want := map[common.CommandID]int{
		common.CmdPut:     1024 * 1024,
		common.CmdGet:     1024 * 1024,
		common.CmdList:    1024 * 1024,
		common.CmdVersion: 1024,
	}
	for cmd, size := range want {
		if lb.bufSizes[cmd] != size {
			t.Errorf("%s: receive buffer of %d bytes, want %d", cmd, lb.bufSizes[cmd], size)
		}
	}
}

func TestOversizedVersionResponse(t *testing.T) {
	s, lb := newLoopbackStorage(t, 1)
	lb.override = make([]byte, 2048)

	if _, err := s.Version(); !errors.Is(err, common.ErrBufferTooSmall) {
		t.Errorf("expected ErrBufferTooSmall, got %v", err)
	}
}

func TestMismatchedResponse(t *testing.T) {
	s, lb := newLoopbackStorage(t, 1)

	buf := make([]byte, 1024)
	n, err := serializer.NewBinarySerializer().Serialize(common.VersionResponse{Version: "x"}.ToMessage(), buf)
	if err != nil {
		t.Fatal(err)
	}
	lb.override = buf[:n]

	if _, _, err := s.Get("k"); !errors.Is(err, common.ErrCommandMismatch) {
		t.Errorf("expected ErrCommandMismatch, got %v", err)
	}
}

func TestRemoteError(t *testing.T) {
	s, lb := newLoopbackStorage(t, 1)

	buf := make([]byte, 1024)
	n, err := serializer.NewBinarySerializer().Serialize(common.Message{Cmd: common.CmdGet, Err: "boom"}, buf)
	if err != nil {
		t.Fatal(err)
	}
	lb.override = buf[:n]

	_, _, err = s.Get("k")
	var remoteErr *common.RemoteError
	if !errors.As(err, &remoteErr) || remoteErr.Msg != "boom" {
		t.Errorf("expected RemoteError 'boom', got %v", err)
	}
}

func TestUnixEndToEnd(t *testing.T) {
	socketPath := filepath.Join(t.TempDir(), "secstore.sock")

	srv := server.NewRPCServer(common.ServerConfig{
		Domains:       []common.ServerDomain{{Domain: common.DomainWifiProfiles, Type: common.DomainTypeLocal}},
		Engine:        common.EngineOak,
		TimeoutSecond: 5,
		Transport:     common.ServerTransportConfig{Endpoint: socketPath},
		Version:       "e2e",
	}, unix.NewUnixDefaultServerTransport(), serializer.NewJSONSerializer())

	done := make(chan error, 1)
	go func() { done <- srv.Serve() }()
	t.Cleanup(func() {
		srv.Close()
		<-done
	})

	deadline := time.Now().Add(5 * time.Second)
	for {
		if _, err := os.Stat(socketPath); err == nil {
			break
		}
		if time.Now().After(deadline) {
			t.Fatal("server socket was not created")
		}
		time.Sleep(10 * time.Millisecond)
	}

	declared := uint32(0xABCD)
	s, err := NewRPCStorage(common.DomainWifiProfiles, common.ClientConfig{
		Transport:     common.ClientTransportConfig{Endpoints: []string{socketPath}, RetryCount: 1},
		TimeoutSecond: 5,
		EUID:          declared,
	}, unix.NewUnixClientTransport(), serializer.NewJSONSerializer())
	if err != nil {
		t.Fatalf("NewRPCStorage failed: %v", err)
	}
	defer s.Close()

	if _, _, err := s.Put("home", []byte("hunter2")); err != nil {
		t.Fatalf("Put failed: %v", err)
	}
	val, found, err := s.Get("home")
	if err != nil || !found || string(val) != "hunter2" {
		t.Fatalf("Get: val=%q found=%v err=%v", val, found, err)
	}

	// the key is namespaced by the peer credentials, not the declared euid
	owner := declared
	if runtime.GOOS == "linux" {
		owner = uint32(os.Geteuid())
	}
	keys, err := s.List(&owner, "")
	if err != nil {
		t.Fatalf("List failed: %v", err)
	}
	if len(keys) != 1 || keys[0] != (common.Key{EUID: owner, UserKey: "home"}) {
		t.Errorf("List returned %v, want key of euid %d", keys, owner)
	}

	if version, err := s.Version(); err != nil || version != "e2e" {
		t.Errorf("Version: %q, %v", version, err)
	}
}
