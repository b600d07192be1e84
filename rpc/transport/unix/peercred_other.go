//go:build !linux

package unix

import "net"

// peerEUID is only implemented on linux
func peerEUID(*net.UnixConn) (uint32, bool, error) {
	return 0, false, nil
}
