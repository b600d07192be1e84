package common

import (
	"encoding/json"
	"errors"
	"reflect"
	"testing"
)

func TestCommandIDs(t *testing.T) {
	tests := []struct {
		cmd     CommandID
		value   uint32
		name    string
		maxSize uint32
	}{
		{CmdPut, 1, "put", 1024 * 1024},
		{CmdGet, 2, "get", 1024 * 1024},
		{CmdVersion, 3, "version", 1024},
		{CmdList, 4, "list", 1024 * 1024},
	}
	for _, tt := range tests {
		if uint32(tt.cmd) != tt.value {
			t.Errorf("%s has id %d, want %d", tt.name, uint32(tt.cmd), tt.value)
		}
		if tt.cmd.String() != tt.name {
			t.Errorf("CommandID(%d).String() = %q, want %q", tt.value, tt.cmd.String(), tt.name)
		}
		if tt.cmd.MaxResponseSize() != tt.maxSize {
			t.Errorf("%s max response size = %d, want %d", tt.name, tt.cmd.MaxResponseSize(), tt.maxSize)
		}
		parsed, err := ParseCommandID(tt.name)
		if err != nil || parsed != tt.cmd {
			t.Errorf("ParseCommandID(%q) = %v, %v", tt.name, parsed, err)
		}
	}

	if CmdUnknown.Valid() || CommandID(5).Valid() {
		t.Error("unknown command ids must not be valid")
	}
	if CommandID(99).MaxResponseSize() != 0 {
		t.Error("unknown command must have max response size 0")
	}
}

func TestCommandIDJSON(t *testing.T) {
	data, err := json.Marshal(CmdList)
	if err != nil {
		t.Fatal(err)
	}
	if string(data) != `"list"` {
		t.Errorf("json of CmdList = %s", data)
	}

	var cmd CommandID
	if err := json.Unmarshal([]byte(`"version"`), &cmd); err != nil || cmd != CmdVersion {
		t.Errorf("unmarshal version = %v, %v", cmd, err)
	}
	if err := json.Unmarshal([]byte(`"ping"`), &cmd); !errors.Is(err, ErrUnknownCommand) {
		t.Errorf("unmarshal ping error = %v", err)
	}
	if _, err := json.Marshal(CommandID(42)); err == nil {
		t.Error("marshal of unknown command must fail")
	}
}

func TestRequestMessageConversion(t *testing.T) {
	euid := uint32(0x3E8)
	requests := []Request{
		PutRequest{Key: "ssid", Val: []byte("secret")},
		GetRequest{Key: "ssid"},
		VersionRequest{},
		ListRequest{},
		ListRequest{EUID: &euid, Prefix: "home-"},
	}

	for _, req := range requests {
		msg := req.ToMessage()
		if msg.Cmd != req.CommandID() {
			t.Errorf("%T message has cmd %s, want %s", req, msg.Cmd, req.CommandID())
		}
		got, err := RequestFromMessage(&msg)
		if err != nil {
			t.Fatalf("RequestFromMessage(%T) returned error: %v", req, err)
		}
		if !reflect.DeepEqual(got, req) {
			t.Errorf("request round trip: got %#v, want %#v", got, req)
		}
		if MaxResponseSize(req) != req.CommandID().MaxResponseSize() {
			t.Errorf("MaxResponseSize(%T) mismatch", req)
		}
	}

	if _, err := RequestFromMessage(&Message{Cmd: 9}); !errors.Is(err, ErrDecode) {
		t.Errorf("unknown command error = %v, want ErrDecode", err)
	}
}

func TestResponseMessageConversion(t *testing.T) {
	responses := []Response{
		PutResponse{},
		PutResponse{PrevVal: []byte("old"), Replaced: true},
		PutResponse{PrevVal: []byte{}, Replaced: true},
		GetResponse{},
		GetResponse{Val: []byte("v"), Found: true},
		VersionResponse{Version: "git-0123456789abcdef"},
		NewListResponse([]Key{{EUID: 1, UserKey: "a"}}),
		NewListResponse(nil),
	}

	for _, resp := range responses {
		msg := resp.ToMessage()
		got, err := ResponseFromMessage(&msg)
		if err != nil {
			t.Fatalf("ResponseFromMessage(%T) returned error: %v", resp, err)
		}
		if !reflect.DeepEqual(got, resp) {
			t.Errorf("response round trip: got %#v, want %#v", got, resp)
		}
	}
}

func TestResponseFromErrorMessage(t *testing.T) {
	msg := NewErrorResponse(CmdGet, errors.New("store unavailable"))
	_, err := ResponseFromMessage(msg)

	var remote *RemoteError
	if !errors.As(err, &remote) {
		t.Fatalf("error = %v, want *RemoteError", err)
	}
	if remote.Cmd != CmdGet || remote.Msg != "store unavailable" {
		t.Errorf("remote error = %+v", remote)
	}
}

func TestListResponseDecodeRejectsBadKeys(t *testing.T) {
	msg := Message{Cmd: CmdList, Keys: []string{"v=1,euid=0x1/a", "v=2,euid=0x1/b"}}
	if _, err := ResponseFromMessage(&msg); !errors.Is(err, ErrDecode) {
		t.Errorf("error = %v, want ErrDecode", err)
	}
}

func TestListResponseDeterminism(t *testing.T) {
	input := []Key{
		{EUID: 2, UserKey: "b"},
		{EUID: 1, UserKey: "z"},
		{EUID: 2, UserKey: "b"},
		{EUID: 1, UserKey: "a"},
		{EUID: 1, UserKey: "z"},
	}
	want := []Key{
		{EUID: 1, UserKey: "a"},
		{EUID: 1, UserKey: "z"},
		{EUID: 2, UserKey: "b"},
	}

	resp := NewListResponse(input)
	if !reflect.DeepEqual(resp.Keys, want) {
		t.Errorf("NewListResponse = %v, want %v", resp.Keys, want)
	}
	if input[0] != (Key{EUID: 2, UserKey: "b"}) {
		t.Error("NewListResponse must not modify its input")
	}

	// unsorted keys on the wire are normalized as well
	msg := Message{Cmd: CmdList, Keys: []string{
		"v=1,euid=0x2/b", "v=1,euid=0x1/z", "v=1,euid=0x1/a", "v=1,euid=0x2/b",
	}}
	decoded, err := ResponseFromMessage(&msg)
	if err != nil {
		t.Fatal(err)
	}
	if !reflect.DeepEqual(decoded.(ListResponse).Keys, want) {
		t.Errorf("decoded keys = %v, want %v", decoded.(ListResponse).Keys, want)
	}
}
