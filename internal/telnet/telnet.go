package telnet

import (
	"errors"
	"fmt"
	"io"
	"net"
	"strconv"
	"sync"

	"github.com/hugodutka/radioterm/internal/channels"
	"github.com/hugodutka/radioterm/internal/event"
)

const bufferSize = 1024

var errNoClient = errors.New("tried to write when no client was connected")

// Handle is the write half of the current client connection, shared
// between the acceptor, which installs it, and the sender, which writes
// through it. The lock is held only around a single syscall.
type Handle struct {
	mu   sync.Mutex
	conn net.Conn
}

func (h *Handle) set(conn net.Conn) {
	h.mu.Lock()
	h.conn = conn
	h.mu.Unlock()
}

// clear drops the handle, but only if conn is still the current one, so a
// racing accept is not clobbered.
func (h *Handle) clear(conn net.Conn) {
	h.mu.Lock()
	if h.conn == conn {
		h.conn = nil
	}
	h.mu.Unlock()
}

func (h *Handle) current() net.Conn {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.conn
}

// Write sends buf to the current client.
func (h *Handle) Write(buf []byte) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.conn == nil {
		return errNoClient
	}
	_, err := h.conn.Write(buf)
	return err
}

// Server accepts telnet clients one at a time and feeds their keystrokes
// to the model queue.
type Server struct {
	host   string
	port   uint16
	bundle *channels.Bundle
	handle *Handle

	mu sync.Mutex
	ln net.Listener
}

// NewServer creates a server that will listen on host:port.
func NewServer(host string, port uint16, bundle *channels.Bundle, handle *Handle) *Server {
	return &Server{
		host:   host,
		port:   port,
		bundle: bundle,
		handle: handle,
	}
}

// Run binds the listener and serves connections until the process exits.
// Each accepted client owns the write handle for its lifetime; the next
// accept waits until the current client disconnects. A bind failure
// crashes the worker.
func (s *Server) Run() {
	ln, err := net.Listen("tcp", net.JoinHostPort(s.host, strconv.Itoa(int(s.port))))
	if err != nil {
		s.bundle.Model.Send(event.TelnetServerCrashed(fmt.Sprintf("bind failed: %v", err)))
		return
	}
	s.mu.Lock()
	s.ln = ln
	s.mu.Unlock()

	for {
		conn, err := ln.Accept()
		if err != nil {
			s.bundle.Logf("failed to accept a TCP connection: %v", err)
			continue
		}
		s.handle.set(conn)
		s.bundle.Model.Send(event.NewTelnetConnection{})
		if err := s.serve(conn); err != nil {
			s.bundle.Logf("TCP connection dropped: %v", err)
		}
		s.handle.clear(conn)
		conn.Close()
	}
}

// Addr returns the listening address, or nil before the listener is up.
func (s *Server) Addr() net.Addr {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.ln == nil {
		return nil
	}
	return s.ln.Addr()
}

func (s *Server) serve(conn net.Conn) error {
	buf := make([]byte, bufferSize)
	for {
		n, err := conn.Read(buf)
		if n > 0 {
			s.bundle.Model.Send(event.UserInput(append([]byte(nil), buf[:n]...)))
		}
		if err == io.EOF {
			return nil
		}
		if err != nil {
			return err
		}
	}
}

// RunWriter drains the telnet-outbound queue onto the current client.
// Write failures are logged and the blob is dropped.
func RunWriter(b *channels.Bundle, handle *Handle) {
	for {
		buf := b.Telnet.Recv()
		if err := handle.Write(buf); err != nil {
			b.Logf("telnet write failure: %v", err)
		}
	}
}
