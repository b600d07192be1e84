package server

import (
	"errors"
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"testing"

	"github.com/ValentinKolb/secstore/lib/store/lstore"
	"github.com/ValentinKolb/secstore/rpc/common"
	"github.com/ValentinKolb/secstore/rpc/serializer"
	"github.com/ValentinKolb/secstore/rpc/transport"
	"github.com/google/uuid"
)

// captureTransport records the registered handler instead of listening
type captureTransport struct {
	handler transport.ServerHandleFunc
}

func (c *captureTransport) RegisterHandler(handler transport.ServerHandleFunc) {
	c.handler = handler
}

func (c *captureTransport) Listen(common.ServerConfig) error { return nil }

func (c *captureTransport) Close() error { return nil }

func newTestServer(t *testing.T, config common.ServerConfig) *captureTransport {
	t.Helper()

	ct := &captureTransport{}
	s := NewRPCServer(config, ct, serializer.NewJSONSerializer())
	if err := s.Serve(); err != nil {
		t.Fatalf("Serve failed: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return ct
}

func wifiProfilesID(t *testing.T) uuid.UUID {
	t.Helper()
	id, err := common.DomainWifiProfiles.UUID()
	if err != nil {
		t.Fatal(err)
	}
	return id
}

// roundTrip sends req through the registered handler
func (c *captureTransport) roundTrip(t *testing.T, domain uuid.UUID, euid uint32, req common.Request) (common.Response, error) {
	t.Helper()
	s := serializer.NewJSONSerializer()

	raw := make([]byte, 64*1024)
	n, err := serializer.EncodeRequest(s, req, raw)
	if err != nil {
		t.Fatal(err)
	}

	out := make([]byte, common.MaxResponseSize(req))
	m := c.handler(transport.CallInfo{Domain: domain, Command: req.CommandID(), EUID: euid}, raw[:n], out)
	return serializer.DecodeResponse(s, out[:m], req.CommandID())
}

func TestServeLocalDomain(t *testing.T) {
	for _, engine := range []string{common.EngineOak, common.EngineRing} {
		t.Run(engine, func(t *testing.T) {
			ct := newTestServer(t, common.ServerConfig{
				Domains:         []common.ServerDomain{{Domain: common.DomainWifiProfiles, Type: common.DomainTypeLocal}},
				Engine:          engine,
				KeyringDir:      t.TempDir(),
				KeyringPassword: "test",
				Version:         "0.1.0",
			})
			id := wifiProfilesID(t)

			if _, err := ct.roundTrip(t, id, 1000, common.PutRequest{Key: "home", Val: []byte("hunter2")}); err != nil {
				t.Fatalf("Put failed: %v", err)
			}

			resp, err := ct.roundTrip(t, id, 1000, common.GetRequest{Key: "home"})
			if err != nil {
				t.Fatalf("Get failed: %v", err)
			}
			if get := resp.(common.GetResponse); !get.Found || string(get.Val) != "hunter2" {
				t.Errorf("Get returned %+v", get)
			}

			resp, err = ct.roundTrip(t, id, 1000, common.ListRequest{})
			if err != nil {
				t.Fatalf("List failed: %v", err)
			}
			want := common.Key{EUID: 1000, UserKey: "home"}
			if keys := resp.(common.ListResponse).Keys; len(keys) != 1 || keys[0] != want {
				t.Errorf("List returned %v", keys)
			}

			resp, err = ct.roundTrip(t, id, 0, common.VersionRequest{})
			if err != nil || resp.(common.VersionResponse).Version != "0.1.0" {
				t.Errorf("Version returned %v, %v", resp, err)
			}
		})
	}
}

func TestDomainIsolation(t *testing.T) {
	for _, engine := range []string{common.EngineOak, common.EngineRing} {
		t.Run(engine, func(t *testing.T) {
			dir := t.TempDir()
			ct := &captureTransport{}
			s := NewRPCServer(common.ServerConfig{
				Domains:         []common.ServerDomain{{Domain: common.DomainWifiProfiles, Type: common.DomainTypeLocal}},
				Engine:          engine,
				KeyringDir:      dir,
				KeyringPassword: "test",
				Version:         "0.1.0",
			}, ct, serializer.NewJSONSerializer())
			if err := s.Serve(); err != nil {
				t.Fatalf("Serve failed: %v", err)
			}
			t.Cleanup(func() { s.Close() })

			// a second domain served next to wifi-profiles with its own store
			otherDomain := common.StorageDomain(1)
			otherID := uuid.MustParse("0d8f2a6b-3c1e-4b7a-9e5d-2f4c6a8b1e07")
			factory, err := s.localDBFactory(otherDomain)
			if err != nil {
				t.Fatalf("Failed to create store of second domain: %v", err)
			}
			s.domains.Store(otherID, NewDispatcher(otherDomain, lstore.NewLocalStore(factory), NewIStoreServerAdapter("0.1.0"), s.serializer))

			wifiID := wifiProfilesID(t)
			put := func(domain uuid.UUID, key, value string) {
				t.Helper()
				if _, err := ct.roundTrip(t, domain, 1000, common.PutRequest{Key: key, Val: []byte(value)}); err != nil {
					t.Fatalf("Put failed: %v", err)
				}
			}
			get := func(domain uuid.UUID, key string) common.GetResponse {
				t.Helper()
				resp, err := ct.roundTrip(t, domain, 1000, common.GetRequest{Key: key})
				if err != nil {
					t.Fatalf("Get failed: %v", err)
				}
				return resp.(common.GetResponse)
			}
			list := func(domain uuid.UUID) []common.Key {
				t.Helper()
				resp, err := ct.roundTrip(t, domain, 1000, common.ListRequest{})
				if err != nil {
					t.Fatalf("List failed: %v", err)
				}
				return resp.(common.ListResponse).Keys
			}

			put(wifiID, "home", "wifi-secret")
			put(otherID, "home", "other-secret")
			put(wifiID, "office", "wifi-only")

			if got := get(wifiID, "home"); !got.Found || string(got.Val) != "wifi-secret" {
				t.Errorf("wifi-profiles: Get returned %+v", got)
			}
			if got := get(otherID, "home"); !got.Found || string(got.Val) != "other-secret" {
				t.Errorf("second domain: Get returned %+v", got)
			}
			if got := get(otherID, "office"); got.Found {
				t.Errorf("second domain sees value of wifi-profiles: %q", got.Val)
			}

			wantWifi := []common.Key{{EUID: 1000, UserKey: "home"}, {EUID: 1000, UserKey: "office"}}
			if keys := list(wifiID); !reflect.DeepEqual(keys, wantWifi) {
				t.Errorf("wifi-profiles: List returned %v, want %v", keys, wantWifi)
			}
			wantOther := []common.Key{{EUID: 1000, UserKey: "home"}}
			if keys := list(otherID); !reflect.DeepEqual(keys, wantOther) {
				t.Errorf("second domain: List returned %v, want %v", keys, wantOther)
			}

			if engine != common.EngineRing {
				return
			}
			// every domain has its own keyring directory
			entries, err := os.ReadDir(dir)
			if err != nil {
				t.Fatal(err)
			}
			var names []string
			for _, e := range entries {
				names = append(names, e.Name())
			}
			wantDirs := []string{otherDomain.String(), common.DomainWifiProfiles.String()}
			if !reflect.DeepEqual(names, wantDirs) {
				t.Errorf("keyring directories = %v, want %v", names, wantDirs)
			}
			for _, name := range wantDirs {
				if items, err := os.ReadDir(filepath.Join(dir, name)); err != nil || len(items) == 0 {
					t.Errorf("keyring %s holds no items (%v)", name, err)
				}
			}
		})
	}
}

func TestUnknownDomain(t *testing.T) {
	ct := newTestServer(t, common.ServerConfig{
		Domains: []common.ServerDomain{{Domain: common.DomainWifiProfiles, Type: common.DomainTypeLocal}},
		Engine:  common.EngineOak,
	})

	_, err := ct.roundTrip(t, uuid.New(), 0, common.GetRequest{Key: "home"})
	var remoteErr *common.RemoteError
	if !errors.As(err, &remoteErr) || !strings.Contains(remoteErr.Msg, "not served") {
		t.Errorf("expected unknown domain error, got %v", err)
	}
}

func TestInvalidConfig(t *testing.T) {
	tests := []struct {
		name   string
		config common.ServerConfig
	}{
		{"no domains", common.ServerConfig{Engine: common.EngineOak}},
		{"duplicate domain", common.ServerConfig{
			Engine: common.EngineOak,
			Domains: []common.ServerDomain{
				{Domain: common.DomainWifiProfiles, Type: common.DomainTypeLocal},
				{Domain: common.DomainWifiProfiles, Type: common.DomainTypeLocal},
			},
		}},
		{"unknown store type", common.ServerConfig{
			Engine:  common.EngineOak,
			Domains: []common.ServerDomain{{Domain: common.DomainWifiProfiles, Type: "tape"}},
		}},
		{"unknown engine", common.ServerConfig{
			Engine:  "floppy",
			Domains: []common.ServerDomain{{Domain: common.DomainWifiProfiles, Type: common.DomainTypeLocal}},
		}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := NewRPCServer(tt.config, &captureTransport{}, serializer.NewJSONSerializer())
			if err := s.Serve(); err == nil {
				t.Error("expected Serve to fail")
			}
		})
	}
}
