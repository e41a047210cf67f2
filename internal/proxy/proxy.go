package proxy

import (
	"errors"
	"fmt"
	"net"
	"net/netip"
	"sync"

	"github.com/hugodutka/radioterm/internal/channels"
	"github.com/hugodutka/radioterm/internal/event"
	"github.com/hugodutka/radioterm/internal/wire"
)

var errNoSocket = errors.New("tried to write when socket was not bound")

// Socket is the UDP handle shared between the receiver, which binds and
// publishes it, and the sender, which consults it per datagram. The lock
// is held only around a single syscall.
type Socket struct {
	mu   sync.Mutex
	conn *net.UDPConn
}

func (s *Socket) publish(conn *net.UDPConn) {
	s.mu.Lock()
	s.conn = conn
	s.mu.Unlock()
}

// WriteTo sends one datagram to addr over the published socket.
func (s *Socket) WriteTo(buf []byte, addr netip.AddrPort) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.conn == nil {
		return errNoSocket
	}
	_, err := s.conn.WriteToUDPAddrPort(buf, addr)
	return err
}

// LocalAddr returns the bound address, or nil before the receiver has
// published the socket.
func (s *Socket) LocalAddr() net.Addr {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.conn == nil {
		return nil
	}
	return s.conn.LocalAddr()
}

// Run binds the listening socket, publishes it for the sender, then
// forwards every decoded datagram to the model queue. Receive and decode
// failures are logged and skipped; a bind failure crashes the worker.
func Run(b *channels.Bundle, sock *Socket, listenAddr string) {
	conn, err := bind(listenAddr)
	if err != nil {
		b.Model.Send(event.ProxyServerCrashed(err.Error()))
		return
	}
	sock.publish(conn)

	buf := make([]byte, wire.MaxDatagram)
	for {
		n, src, err := conn.ReadFromUDPAddrPort(buf)
		if err != nil {
			b.Logf("failed to receive UDP message: %v", err)
			continue
		}
		msg, err := wire.Decode(buf[:n])
		if err != nil {
			b.Logf("failed to parse UDP message: %v", err)
			continue
		}
		b.Model.Send(event.ProxyInput{Addr: src, Msg: msg})
	}
}

func bind(listenAddr string) (*net.UDPConn, error) {
	addr, err := net.ResolveUDPAddr("udp4", listenAddr)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve %s: %w", listenAddr, err)
	}
	conn, err := net.ListenUDP("udp4", addr)
	if err != nil {
		return nil, fmt.Errorf("failed to bind %s: %w", listenAddr, err)
	}
	if err := enableBroadcast(conn); err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to enable broadcast: %w", err)
	}
	return conn, nil
}

// RunWriter drains the proxy-outbound queue onto the shared socket.
// Encode and send failures are logged and the message is dropped.
func RunWriter(b *channels.Bundle, sock *Socket) {
	for {
		w := b.Proxy.Recv()
		buf, err := wire.EncodeOutgoing(w.Msg)
		if err != nil {
			b.Logf("failed to prepare message: %v", err)
			continue
		}
		if err := sock.WriteTo(buf, w.Addr); err != nil {
			b.Logf("failed to send message: %v", err)
		}
	}
}
