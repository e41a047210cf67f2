package ui

import (
	"net/netip"
	"strings"

	"github.com/hugodutka/radioterm/internal/channels"
)

// Telnet IAC (Interpret As Command) constants
const (
	IAC  = 255 // 0xFF
	WILL = 251 // 0xFB
	DO   = 253 // 0xFD
	SB   = 250 // 0xFA - Subnegotiation Begin
	SE   = 240 // 0xF0 - Subnegotiation End
)

// Telnet options
const (
	TELOPT_ECHO     = 1
	TELOPT_LINEMODE = 34
)

var (
	// screenOptions asks the client to enter line mode and announces that
	// the server owns echoing.
	screenOptions = []byte{
		IAC, DO, TELOPT_LINEMODE,
		IAC, SB, TELOPT_LINEMODE, 1, 0, IAC, SE,
		IAC, WILL, TELOPT_ECHO,
	}
	// clearScreen homes the cursor and erases the display.
	clearScreen = []byte{27, '[', 'H', 27, '[', '2', 'J'}
)

// PrepareScreen queues the option negotiation a fresh telnet client needs
// before the first screen paint.
func PrepareScreen(out *channels.Queue[[]byte]) {
	out.Send(append([]byte(nil), screenOptions...))
}

// Render queues a full screen repaint: clear-screen followed by text.
func Render(out *channels.Queue[[]byte], text string) {
	buf := make([]byte, 0, len(clearScreen)+len(text))
	buf = append(buf, clearScreen...)
	buf = append(buf, text...)
	out.Send(buf)
}

// Proxy is one menu row's worth of proxy state.
type Proxy struct {
	Addr netip.AddrPort
	Info string
	Meta string
}

// Generate builds the menu screen. Rows are the search entry, one row per
// proxy (the active one marked with an asterisk), the quit entry, and the
// active proxy's stream metadata. The row at the cursor gets an arrow
// suffix. Every row ends with CRLF for the line-mode telnet client.
func Generate(proxies []Proxy, active netip.AddrPort, cursor int) string {
	var b strings.Builder
	row := func(index int, text string) {
		b.WriteString(text)
		if index == cursor {
			b.WriteString(" <-")
		}
		b.WriteString("\r\n")
	}

	row(0, "Szukaj pośrednika")
	meta := ""
	for i, p := range proxies {
		label := "Pośrednik " + p.Info
		if active.IsValid() && p.Addr == active {
			label += " *"
			meta = p.Meta
		}
		row(i+1, label)
	}
	row(len(proxies)+1, "Koniec")
	b.WriteString(meta)
	b.WriteString("\r\n")
	return b.String()
}

// Command is a single decoded menu keystroke.
type Command int

const (
	Unrecognized Command = iota
	Up
	Down
	Select
)

// InterpretInput pushes one byte into the rolling input window and
// classifies the result. The window holds the last three bytes most
// recent first, so escape sequences that arrive one byte at a time match
// as soon as their final byte shows up. Returns the updated window.
func InterpretInput(buf []byte, c byte) ([]byte, Command) {
	if len(buf) > 2 {
		buf = buf[:2]
	}
	buf = append([]byte{c}, buf...)
	switch {
	case matches(buf, 65, 91, 27): // ESC [ A
		return buf, Up
	case matches(buf, 66, 91, 27): // ESC [ B
		return buf, Down
	case matches(buf, 0, 13), matches(buf, 10, 13): // CR NUL, CR LF
		return buf, Select
	}
	return buf, Unrecognized
}

func matches(buf []byte, pattern ...byte) bool {
	if len(buf) < len(pattern) {
		return false
	}
	for i, p := range pattern {
		if buf[i] != p {
			return false
		}
	}
	return true
}
