package internal

import (
	"bytes"
	"testing"
)

func TestSizeBytes(t *testing.T) {
	tests := []struct {
		name     string
		command  Command
		expected int
	}{
		{
			name:     "Command with key and value",
			command:  Command{Type: CommandTPut, Key: "testkey", Value: []byte("testvalue")},
			expected: 1 + 4 + 7 + 9,
		},
		{
			name:     "Command with empty key",
			command:  Command{Type: CommandTPut, Key: "", Value: []byte("testvalue")},
			expected: 1 + 4 + 0 + 9,
		},
		{
			name:     "Command with nil value",
			command:  Command{Type: CommandTPut, Key: "k"},
			expected: 1 + 4 + 1,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if size := tt.command.SizeBytes(); size != tt.expected {
				t.Errorf("SizeBytes() = %v, want %v", size, tt.expected)
			}
		})
	}
}

func TestSerializeDeserialize(t *testing.T) {
	tests := []struct {
		name    string
		command Command
	}{
		{"Standard command", Command{Type: CommandTPut, Key: "v=1,euid=0x0/home", Value: []byte("psk=secret")}},
		{"Empty key", Command{Type: CommandTPut, Key: "", Value: []byte("value")}},
		{"Empty value", Command{Type: CommandTPut, Key: "key", Value: []byte{}}},
		{"Binary value", Command{Type: CommandTPut, Key: "key", Value: []byte{0, 1, 2, 255}}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			data := tt.command.Serialize()
			if len(data) != tt.command.SizeBytes() {
				t.Fatalf("Serialize() returned %d bytes, want %d", len(data), tt.command.SizeBytes())
			}

			var decoded Command
			if err := decoded.Deserialize(data); err != nil {
				t.Fatalf("Deserialize() error = %v", err)
			}
			if decoded.Type != tt.command.Type {
				t.Errorf("Type = %v, want %v", decoded.Type, tt.command.Type)
			}
			if decoded.Key != tt.command.Key {
				t.Errorf("Key = %q, want %q", decoded.Key, tt.command.Key)
			}
			if !bytes.Equal(decoded.Value, tt.command.Value) || decoded.Value == nil {
				t.Errorf("Value = %v, want %v", decoded.Value, tt.command.Value)
			}
		})
	}
}

func TestDeserializeCopiesValue(t *testing.T) {
	data := (&Command{Type: CommandTPut, Key: "k", Value: []byte("value")}).Serialize()

	var decoded Command
	if err := decoded.Deserialize(data); err != nil {
		t.Fatal(err)
	}
	data[len(data)-1] = 'X'
	if string(decoded.Value) != "value" {
		t.Errorf("Value shares memory with the input: %q", decoded.Value)
	}
}

func TestDeserializeErrors(t *testing.T) {
	tests := []struct {
		name string
		data []byte
	}{
		{"Empty", nil},
		{"Too short for header", []byte{1, 0, 0}},
		{"Key length exceeds data", []byte{1, 0, 0, 0, 10, 'a'}},
		{"Huge key length", []byte{1, 0xFF, 0xFF, 0xFF, 0xFF}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var c Command
			if err := c.Deserialize(tt.data); err == nil {
				t.Errorf("Deserialize(%v) expected error", tt.data)
			}
		})
	}
}

func TestCommandTypeFeature(t *testing.T) {
	if _, err := CommandTPut.ToDBFeature(); err != nil {
		t.Errorf("Put must map to a feature: %v", err)
	}
	if _, err := CommandType(0).ToDBFeature(); err == nil {
		t.Errorf("Unknown command type must not map to a feature")
	}
	if CommandType(42).String() != "Unknown(42)" {
		t.Errorf("Unexpected string for unknown type: %s", CommandType(42))
	}
}

func TestPutResult(t *testing.T) {
	tests := []struct {
		name     string
		prev     []byte
		replaced bool
	}{
		{"Not replaced", nil, false},
		{"Replaced", []byte("old"), true},
		{"Replaced empty value", []byte{}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			prev, replaced, err := DecodePutResult(EncodePutResult(tt.prev, tt.replaced))
			if err != nil {
				t.Fatalf("DecodePutResult() error = %v", err)
			}
			if replaced != tt.replaced || !bytes.Equal(prev, tt.prev) {
				t.Errorf("got (%q, %v), want (%q, %v)", prev, replaced, tt.prev, tt.replaced)
			}
			if replaced && prev == nil {
				t.Errorf("replaced value must not be nil")
			}
		})
	}

	if _, _, err := DecodePutResult(nil); err == nil {
		t.Errorf("expected error for empty result")
	}
	if _, _, err := DecodePutResult([]byte{7}); err == nil {
		t.Errorf("expected error for invalid flag")
	}
}
