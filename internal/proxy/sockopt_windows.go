//go:build windows

package proxy

import (
	"net"

	"golang.org/x/sys/windows"
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
		sockErr = windows.SetsockoptInt(windows.Handle(fd), windows.SOL_SOCKET, windows.SO_BROADCAST, 1)
	}); err != nil {
		return err
	}
	return sockErr
}
