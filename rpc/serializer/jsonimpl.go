package serializer

import (
	"encoding/json"
	"fmt"
	"unicode/utf8"

	"github.com/ValentinKolb/secstore/rpc/common"
)

// NewJSONSerializer creates a new serializer using json encoding.
// This is the reference wire format.
//
// JSON strings are unicode text. encoding/json replaces invalid UTF-8 and
// unpaired surrogate escapes with U+FFFD, which would map distinct keys to
// the same one, so both directions reject such strings instead.
func NewJSONSerializer() IRPCSerializer {
	return &jsonSerializerImpl{}
}

// jsonSerializerImpl implements the IRPCSerializer interface using json encoding
type jsonSerializerImpl struct {
}

// --------------------------------------------------------------------------
// Interface Methods (docu see serializer.IRPCSerializer)
// --------------------------------------------------------------------------

func (j jsonSerializerImpl) Serialize(msg common.Message, out []byte) (int, error) {
	if err := checkUTF8(msg); err != nil {
		return 0, err
	}
	data, err := json.Marshal(msg)
	if err != nil {
		return 0, fmt.Errorf("failed to encode json: %w", err)
	}
	return copyOut(data, out)
}

func (j jsonSerializerImpl) Deserialize(b []byte, msg *common.Message) error {
	*msg = common.Message{}
	if !utf8.Valid(b) {
		return decodeError("json input is not valid UTF-8")
	}
	if err := checkSurrogates(b); err != nil {
		return err
	}
	if err := json.Unmarshal(b, msg); err != nil {
		return fmt.Errorf("%w: %v", common.ErrDecode, err)
	}
	return checkCommand(msg)
}

// --------------------------------------------------------------------------
// Helper Functions
// --------------------------------------------------------------------------

// checkUTF8 fails if a string field of msg cannot be represented in json
// without being altered.
func checkUTF8(msg common.Message) error {
	fields := []struct {
		name  string
		value string
	}{
		{"key", msg.Key},
		{"prefix", msg.Prefix},
		{"version", msg.Version},
		{"err", msg.Err},
	}
	for _, f := range fields {
		if !utf8.ValidString(f.value) {
			return fmt.Errorf("%w: %s is not valid UTF-8", common.ErrInvalidText, f.name)
		}
	}
	for i, key := range msg.Keys {
		if !utf8.ValidString(key) {
			return fmt.Errorf("%w: keys[%d] is not valid UTF-8", common.ErrInvalidText, i)
		}
	}
	return nil
}

// checkSurrogates rejects \u escapes of unpaired UTF-16 surrogates. b must be
// valid UTF-8; backslashes only occur inside json strings.
func checkSurrogates(b []byte) error {
	for i := 0; i < len(b); i++ {
		if b[i] != '\\' {
			continue
		}
		if i+1 >= len(b) || b[i+1] != 'u' {
			i++ // skip the escaped character
			continue
		}

		r, ok := hexRune(b[i+2:])
		switch {
		case !ok:
			return nil // malformed escape, json.Unmarshal reports it
		case r >= 0xDC00 && r <= 0xDFFF:
			return decodeError("unpaired surrogate escape at offset %d", i)
		case r >= 0xD800 && r <= 0xDBFF:
			rest := b[i+6:]
			if len(rest) < 2 || rest[0] != '\\' || rest[1] != 'u' {
				return decodeError("unpaired surrogate escape at offset %d", i)
			}
			if low, ok := hexRune(rest[2:]); !ok || low < 0xDC00 || low > 0xDFFF {
				return decodeError("unpaired surrogate escape at offset %d", i)
			}
			i += 11
		default:
			i += 5
		}
	}
	return nil
}

// hexRune decodes the four hex digits at the start of b
func hexRune(b []byte) (rune, bool) {
	if len(b) < 4 {
		return 0, false
	}
	var r rune
	for _, c := range b[:4] {
		r <<= 4
		switch {
		case c >= '0' && c <= '9':
			r |= rune(c - '0')
		case c >= 'a' && c <= 'f':
			r |= rune(c - 'a' + 10)
		case c >= 'A' && c <= 'F':
			r |= rune(c - 'A' + 10)
		default:
			return 0, false
		}
	}
	return r, true
}
