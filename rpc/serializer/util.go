package serializer

import (
	"fmt"

	"github.com/ValentinKolb/secstore/rpc/common"
)

// copyOut copies an encoded message into the caller's buffer
func copyOut(data []byte, out []byte) (int, error) {
	if len(data) > len(out) {
		return 0, common.ErrBufferTooSmall
	}
	return copy(out, data), nil
}

// decodeError wraps common.ErrDecode with a description of the failure
func decodeError(format string, args ...any) error {
	return fmt.Errorf("%w: %s", common.ErrDecode, fmt.Sprintf(format, args...))
}
