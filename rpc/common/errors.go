package common

import (
	"errors"
	"fmt"
)

// --------------------------------------------------------------------------
// Protocol errors
// --------------------------------------------------------------------------

var (
	// ErrBufferTooSmall is returned when an encoded message does not fit into the
	// caller provided output buffer. Nothing is written in that case.
	ErrBufferTooSmall = errors.New("could not serialize because the provided buffer was too small")

	// ErrDecode wraps every failure to turn bytes into a message, request or response.
	ErrDecode = errors.New("could not deserialize message")

	// ErrCommandMismatch is returned when the decoded request variant does not
	// match the command id it was sent with.
	ErrCommandMismatch = errors.New("request does not match command id")

	// ErrUnknownCommand is returned for command ids outside the command table.
	ErrUnknownCommand = errors.New("unknown command id")

	// ErrInvalidText is returned by text based encodings for strings that are
	// not valid UTF-8 and would not survive a round trip.
	ErrInvalidText = errors.New("string cannot be encoded as text")
)

// decodeErrorf wraps ErrDecode with additional context.
func decodeErrorf(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrDecode, fmt.Sprintf(format, args...))
}

// RemoteError is an error reported by the storage service in a response message.
type RemoteError struct {
	Cmd CommandID
	Msg string
}

func (e *RemoteError) Error() string {
	return fmt.Sprintf("remote error (%s): %s", e.Cmd, e.Msg)
}
