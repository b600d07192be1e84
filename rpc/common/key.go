package common

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
)

// KeyVersion is the only version of the key grammar this package reads and writes.
const KeyVersion = 1

// --------------------------------------------------------------------------
// Key
// --------------------------------------------------------------------------

// Key addresses a value in a storage domain. Keys are namespaced by the
// effective user id of the caller that created them, so two callers can use
// the same user key without seeing each other's values.
//
// The canonical text form is
//
//	v=1,euid=0x<HEX>/<user_key>
//
// Keys are ordered by EUID first and by UserKey (bytewise) second.
type Key struct {
	EUID    uint32
	UserKey string
}

// String renders the canonical form of the key. The euid is written in upper
// case hex without leading zeros, the user key is written verbatim.
func (k Key) String() string {
	return fmt.Sprintf("v=%d,euid=0x%X/%s", KeyVersion, k.EUID, k.UserKey)
}

// Compare returns -1, 0 or +1 depending on whether k sorts before, equal to
// or after other.
func (k Key) Compare(other Key) int {
	switch {
	case k.EUID < other.EUID:
		return -1
	case k.EUID > other.EUID:
		return 1
	}
	return strings.Compare(k.UserKey, other.UserKey)
}

// Less reports whether k sorts before other.
func (k Key) Less(other Key) bool {
	return k.Compare(other) < 0
}

// KeyPrefix returns the canonical text all keys of euid starting with
// userKeyPrefix begin with.
func KeyPrefix(euid uint32, userKeyPrefix string) string {
	return Key{EUID: euid, UserKey: userKeyPrefix}.String()
}

// --------------------------------------------------------------------------
// Parse errors
// --------------------------------------------------------------------------

// ParseKeyErrorKind classifies why a key could not be parsed.
type ParseKeyErrorKind uint8

const (
	// ParseKeyInvalidSyntax means the text does not follow the key grammar.
	ParseKeyInvalidSyntax ParseKeyErrorKind = iota + 1
	// ParseKeyUnsupportedVersion means the text is well formed but uses a
	// version other than KeyVersion.
	ParseKeyUnsupportedVersion
)

func (k ParseKeyErrorKind) String() string {
	switch k {
	case ParseKeyInvalidSyntax:
		return "invalid syntax"
	case ParseKeyUnsupportedVersion:
		return "unsupported version"
	default:
		return "unknown"
	}
}

var (
	// ErrInvalidSyntax matches (errors.Is) every ParseKeyError of kind ParseKeyInvalidSyntax
	ErrInvalidSyntax = errors.New("invalid key syntax")
	// ErrUnsupportedVersion matches (errors.Is) every ParseKeyError of kind ParseKeyUnsupportedVersion
	ErrUnsupportedVersion = errors.New("unsupported key version")
)

// ParseKeyError is returned by ParseKey.
type ParseKeyError struct {
	Kind   ParseKeyErrorKind
	Reason string
}

func (e *ParseKeyError) Error() string {
	return fmt.Sprintf("failed to parse key: %s: %s", e.Kind, e.Reason)
}

// Is allows matching against ErrInvalidSyntax and ErrUnsupportedVersion.
func (e *ParseKeyError) Is(target error) bool {
	switch target {
	case ErrInvalidSyntax:
		return e.Kind == ParseKeyInvalidSyntax
	case ErrUnsupportedVersion:
		return e.Kind == ParseKeyUnsupportedVersion
	}
	return false
}

func invalidSyntax(format string, args ...any) error {
	return &ParseKeyError{Kind: ParseKeyInvalidSyntax, Reason: fmt.Sprintf(format, args...)}
}

// --------------------------------------------------------------------------
// Parser
// --------------------------------------------------------------------------

// ParseKey parses the canonical text form of a key.
//
// The version must be written in decimal. The euid must be written as hex
// with a lower case "0x" prefix followed by at least one hex digit (digits
// themselves may be either case) and must fit into 32 bits. Everything after
// the first '/' is the user key, which may be empty and may itself contain
// '/' or ','.
func ParseKey(s string) (Key, error) {
	rest, ok := strings.CutPrefix(s, "v=")
	if !ok {
		return Key{}, invalidSyntax("missing %q prefix", "v=")
	}

	versionText, rest, ok := strings.Cut(rest, ",")
	if !ok {
		return Key{}, invalidSyntax("missing ',' after version")
	}
	if !isDigits(versionText, isDecimalDigit) {
		return Key{}, invalidSyntax("version %q is not a decimal number", versionText)
	}
	version, err := strconv.ParseUint(versionText, 10, 64)
	if err != nil || version != KeyVersion {
		return Key{}, &ParseKeyError{
			Kind:   ParseKeyUnsupportedVersion,
			Reason: fmt.Sprintf("version %s is not supported, expected %d", versionText, KeyVersion),
		}
	}

	rest, ok = strings.CutPrefix(rest, "euid=")
	if !ok {
		return Key{}, invalidSyntax("missing %q field", "euid=")
	}
	euidText, userKey, ok := strings.Cut(rest, "/")
	if !ok {
		return Key{}, invalidSyntax("missing '/' after euid")
	}
	hexText, ok := strings.CutPrefix(euidText, "0x")
	if !ok {
		return Key{}, invalidSyntax("euid %q must start with 0x", euidText)
	}
	if !isDigits(hexText, isHexDigit) {
		return Key{}, invalidSyntax("euid %q is not a hex number", euidText)
	}
	euid, err := strconv.ParseUint(hexText, 16, 32)
	if err != nil {
		return Key{}, invalidSyntax("euid %q does not fit into 32 bits", euidText)
	}

	return Key{EUID: uint32(euid), UserKey: userKey}, nil
}

// isDigits reports whether s is non-empty and every byte satisfies isDigit.
// strconv alone would also accept signs and underscores.
func isDigits(s string, isDigit func(c byte) bool) bool {
	if s == "" {
		return false
	}
	for i := 0; i < len(s); i++ {
		if !isDigit(s[i]) {
			return false
		}
	}
	return true
}

func isDecimalDigit(c byte) bool {
	return c >= '0' && c <= '9'
}

func isHexDigit(c byte) bool {
	return isDecimalDigit(c) || (c >= 'a' && c <= 'f') || (c >= 'A' && c <= 'F')
}
