//go:build unix

package proxy

import (
	"net"

	"golang.org/x/sys/unix"
)

// enableBroadcast lets the socket address the directed broadcast
// 255.255.255.255, which discover datagrams are sent to.
func enableBroadcast(conn *net.UDPConn) error {
	raw, err := conn.SyscallConn()
	if err != nil {
		return err
	}
	var sockErr error
	if err := raw.Control(func(fd uintptr) {
		sockErr = unix.SetsockoptInt(int(fd), unix.SOL_SOCKET, unix.SO_BROADCAST, 1)
	}); err != nil {
		return err
	}
	return sockErr
}
