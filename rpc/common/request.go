package common

import (
	"slices"
)

// --------------------------------------------------------------------------
// Requests
// --------------------------------------------------------------------------

// Request is one of PutRequest, GetRequest, VersionRequest or ListRequest.
type Request interface {
	// CommandID returns the command this request is sent as
	CommandID() CommandID
	// ToMessage converts the request into its wire representation
	ToMessage() Message
	isRequest()
}

// PutRequest stores Val under Key, replacing any previous value.
type PutRequest struct {
	Key string
	Val []byte
}

// GetRequest retrieves the value stored under Key.
type GetRequest struct {
	Key string
}

// VersionRequest asks for the version of the storage service.
type VersionRequest struct{}

// ListRequest enumerates stored keys. A nil EUID lists the keys of all
// callers, an empty Prefix disables filtering by user key.
type ListRequest struct {
	EUID   *uint32
	Prefix string
}

func (PutRequest) CommandID() CommandID     { return CmdPut }
func (GetRequest) CommandID() CommandID     { return CmdGet }
func (VersionRequest) CommandID() CommandID { return CmdVersion }
func (ListRequest) CommandID() CommandID    { return CmdList }

func (PutRequest) isRequest()     {}
func (GetRequest) isRequest()     {}
func (VersionRequest) isRequest() {}
func (ListRequest) isRequest()    {}

func (r PutRequest) ToMessage() Message {
	return Message{Cmd: CmdPut, Key: r.Key, Value: r.Val}
}

func (r GetRequest) ToMessage() Message {
	return Message{Cmd: CmdGet, Key: r.Key}
}

func (r VersionRequest) ToMessage() Message {
	return Message{Cmd: CmdVersion}
}

func (r ListRequest) ToMessage() Message {
	return Message{Cmd: CmdList, EUID: r.EUID, Prefix: r.Prefix}
}

// MaxResponseSize returns the size of the buffer needed to receive the
// response to req.
func MaxResponseSize(req Request) uint32 {
	return req.CommandID().MaxResponseSize()
}

// RequestFromMessage converts a wire message into a typed request.
func RequestFromMessage(msg *Message) (Request, error) {
	info, ok := commands[msg.Cmd]
	if !ok {
		return nil, decodeErrorf("unknown command id %d", uint32(msg.Cmd))
	}
	return info.request(msg), nil
}

// --------------------------------------------------------------------------
// Responses
// --------------------------------------------------------------------------

// Response is one of PutResponse, GetResponse, VersionResponse or ListResponse.
type Response interface {
	// CommandID returns the command this response answers
	CommandID() CommandID
	// ToMessage converts the response into its wire representation
	ToMessage() Message
	isResponse()
}

// PutResponse holds the value that was stored before the put. Replaced is
// false (and PrevVal nil) if there was no previous value.
type PutResponse struct {
	PrevVal  []byte
	Replaced bool
}

// GetResponse holds the stored value. Found is false if there is none.
type GetResponse struct {
	Val   []byte
	Found bool
}

// VersionResponse holds the version string of the storage service.
type VersionResponse struct {
	Version string
}

// ListResponse holds keys in ascending order without duplicates. Use
// NewListResponse to construct one from arbitrary keys.
type ListResponse struct {
	Keys []Key
}

// NewListResponse sorts and de-duplicates keys.
func NewListResponse(keys []Key) ListResponse {
	sorted := slices.Clone(keys)
	slices.SortFunc(sorted, Key.Compare)
	sorted = slices.Compact(sorted)
	if sorted == nil {
		sorted = []Key{}
	}
	return ListResponse{Keys: sorted}
}

func (PutResponse) CommandID() CommandID     { return CmdPut }
func (GetResponse) CommandID() CommandID     { return CmdGet }
func (VersionResponse) CommandID() CommandID { return CmdVersion }
func (ListResponse) CommandID() CommandID    { return CmdList }

func (PutResponse) isResponse()     {}
func (GetResponse) isResponse()     {}
func (VersionResponse) isResponse() {}
func (ListResponse) isResponse()    {}

func (r PutResponse) ToMessage() Message {
	return Message{Cmd: CmdPut, Value: r.PrevVal, Ok: r.Replaced}
}

func (r GetResponse) ToMessage() Message {
	return Message{Cmd: CmdGet, Value: r.Val, Ok: r.Found}
}

func (r VersionResponse) ToMessage() Message {
	return Message{Cmd: CmdVersion, Version: r.Version}
}

func (r ListResponse) ToMessage() Message {
	keys := make([]string, len(r.Keys))
	for i, key := range r.Keys {
		keys[i] = key.String()
	}
	return Message{Cmd: CmdList, Keys: keys}
}

// ResponseFromMessage converts a wire message into a typed response. Error
// responses are returned as *RemoteError.
func ResponseFromMessage(msg *Message) (Response, error) {
	info, ok := commands[msg.Cmd]
	if !ok {
		return nil, decodeErrorf("unknown command id %d", uint32(msg.Cmd))
	}
	if msg.Err != "" {
		return nil, &RemoteError{Cmd: msg.Cmd, Msg: msg.Err}
	}
	return info.response(msg)
}
