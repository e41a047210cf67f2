package event

import (
	"net/netip"

	"github.com/hugodutka/radioterm/internal/wire"
)

// Model is an event delivered to the model loop. Every producer in the
// process funnels into this one type so the loop can stay the single
// writer of application state.
type Model interface {
	model()
}

// UserInput carries raw keystroke bytes read from the telnet client.
type UserInput []byte

// ProxyInput carries one decoded datagram and the proxy it came from.
type ProxyInput struct {
	Addr netip.AddrPort
	Msg  wire.Incoming
}

// NewTelnetConnection signals that a telnet client was just accepted.
type NewTelnetConnection struct{}

// Tick is the 1 Hz heartbeat driving expiry and keepalives.
type Tick struct{}

// ProxyServerCrashed reports a fatal UDP worker failure.
type ProxyServerCrashed string

// TelnetServerCrashed reports a fatal TCP worker failure.
type TelnetServerCrashed string

func (UserInput) model()           {}
func (ProxyInput) model()          {}
func (NewTelnetConnection) model() {}
func (Tick) model()                {}
func (ProxyServerCrashed) model()  {}
func (TelnetServerCrashed) model() {}

// ProxyWrite asks the proxy sender to deliver msg to addr.
type ProxyWrite struct {
	Addr netip.AddrPort
	Msg  wire.Outgoing
}
