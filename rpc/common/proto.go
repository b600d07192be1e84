package common

import (
	"encoding/json"
	"fmt"
)

// --------------------------------------------------------------------------
// Message Structure
// --------------------------------------------------------------------------

// Message is the wire representation shared by all requests and responses.
// Which fields are used depends on the command. The Cmd field is always set,
// so every encoded message identifies its own variant.
type Message struct {
	// Command this message belongs to
	Cmd CommandID `json:"cmd"`

	// Request fields
	Key    string  `json:"key,omitempty"`    // Used for: Put, Get
	EUID   *uint32 `json:"euid,omitempty"`   // Used for: List (nil = all callers)
	Prefix string  `json:"prefix,omitempty"` // Used for: List

	// Shared fields
	Value []byte `json:"value,omitempty"` // Used for: Put (request), Put/Get (response)

	// Response only fields
	Ok      bool     `json:"ok,omitempty"`      // Used for: Put (replaced), Get (found)
	Keys    []string `json:"keys,omitempty"`    // Used for: List, canonical key text
	Version string   `json:"version,omitempty"` // Used for: Version
	Err     string   `json:"err,omitempty"`     // Empty if no error, otherwise contains the error message
}

// NewErrorResponse creates an error response for the given command
func NewErrorResponse(cmd CommandID, err error) *Message {
	return &Message{
		Cmd: cmd,
		Err: err.Error(),
	}
}

// --------------------------------------------------------------------------
// Command IDs
// --------------------------------------------------------------------------

// CommandID identifies an operation. The numeric values are part of the wire
// contract: new commands are only ever appended, existing ids never change.
type CommandID uint32

const (
	CmdUnknown CommandID = 0 // Never valid on the wire
	CmdPut     CommandID = 1 // Store a value, returning the previous one
	CmdGet     CommandID = 2 // Retrieve a value
	CmdVersion CommandID = 3 // Query the service version
	CmdList    CommandID = 4 // Enumerate stored keys
)

// Maximum number of bytes a serialized response may occupy.
const (
	MaxDataResponseSize    uint32 = 1024 * 1024
	MaxVersionResponseSize uint32 = 1024
)

// commandInfo holds everything that is known about a command
type commandInfo struct {
	name            string
	maxResponseSize uint32
	request         func(msg *Message) Request
	response        func(msg *Message) (Response, error)
}

var commands = map[CommandID]commandInfo{
	CmdPut: {
		name:            "put",
		maxResponseSize: MaxDataResponseSize,
		request: func(msg *Message) Request {
			val := msg.Value
			if val == nil {
				val = []byte{}
			}
			return PutRequest{Key: msg.Key, Val: val}
		},
		response: func(msg *Message) (Response, error) {
			return PutResponse{PrevVal: optionalValue(msg), Replaced: msg.Ok}, nil
		},
	},
	CmdGet: {
		name:            "get",
		maxResponseSize: MaxDataResponseSize,
		request: func(msg *Message) Request {
			return GetRequest{Key: msg.Key}
		},
		response: func(msg *Message) (Response, error) {
			return GetResponse{Val: optionalValue(msg), Found: msg.Ok}, nil
		},
	},
	CmdVersion: {
		name:            "version",
		maxResponseSize: MaxVersionResponseSize,
		request: func(msg *Message) Request {
			return VersionRequest{}
		},
		response: func(msg *Message) (Response, error) {
			return VersionResponse{Version: msg.Version}, nil
		},
	},
	CmdList: {
		name:            "list",
		maxResponseSize: MaxDataResponseSize,
		request: func(msg *Message) Request {
			req := ListRequest{Prefix: msg.Prefix}
			if msg.EUID != nil {
				euid := *msg.EUID
				req.EUID = &euid
			}
			return req
		},
		response: func(msg *Message) (Response, error) {
			keys := make([]Key, 0, len(msg.Keys))
			for _, text := range msg.Keys {
				key, err := ParseKey(text)
				if err != nil {
					return nil, fmt.Errorf("%w: list entry %q: %v", ErrDecode, text, err)
				}
				keys = append(keys, key)
			}
			return NewListResponse(keys), nil
		},
	},
}

// optionalValue returns the value of msg when Ok is set and nil otherwise.
// An empty but present value is returned as a non-nil empty slice.
func optionalValue(msg *Message) []byte {
	if !msg.Ok {
		return nil
	}
	if msg.Value == nil {
		return []byte{}
	}
	return msg.Value
}

// Commands returns all known command ids in ascending order.
func Commands() []CommandID {
	return []CommandID{CmdPut, CmdGet, CmdVersion, CmdList}
}

// Valid reports whether c is a known command.
func (c CommandID) Valid() bool {
	_, ok := commands[c]
	return ok
}

// MaxResponseSize returns the largest number of bytes a serialized response
// to this command may occupy. Unknown commands return 0.
func (c CommandID) MaxResponseSize() uint32 {
	return commands[c].maxResponseSize
}

// String returns the string representation of a CommandID.
func (c CommandID) String() string {
	if info, ok := commands[c]; ok {
		return info.name
	}
	return "unknown"
}

// ParseCommandID converts the name of a command back to its id.
func ParseCommandID(name string) (CommandID, error) {
	for id, info := range commands {
		if info.name == name {
			return id, nil
		}
	}
	return CmdUnknown, fmt.Errorf("%w: %s", ErrUnknownCommand, name)
}

// MarshalJSON implements the json.Marshaller interface for CommandID.
// This allows CommandID to be serialized as a string in JSON.
func (c CommandID) MarshalJSON() ([]byte, error) {
	if !c.Valid() {
		return nil, fmt.Errorf("%w: %d", ErrUnknownCommand, uint32(c))
	}
	return json.Marshal(c.String())
}

// UnmarshalJSON implements the json.Unmarshaler interface for CommandID.
func (c *CommandID) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	id, err := ParseCommandID(s)
	if err != nil {
		return err
	}
	*c = id
	return nil
}
