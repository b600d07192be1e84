//go:build linux

package unix

import (
	"fmt"
	"net"

	"golang.org/x/sys/unix"
)

// peerEUID returns the effective uid the peer had when it connected
func peerEUID(conn *net.UnixConn) (uint32, bool, error) {
	raw, err := conn.SyscallConn()
	if err != nil {
		return 0, false, err
	}

	var cred *unix.Ucred
	var credErr error
	if err := raw.Control(func(fd uintptr) {
		cred, credErr = unix.GetsockoptUcred(int(fd), unix.SOL_SOCKET, unix.SO_PEERCRED)
	}); err != nil {
		return 0, false, err
	}
	if credErr != nil {
		return 0, false, fmt.Errorf("SO_PEERCRED: %w", credErr)
	}
	return cred.Uid, true, nil
}
