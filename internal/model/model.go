package model

import (
	"fmt"
	"io"
	"net/netip"
	"os"
	"regexp"
	"time"
	"unicode/utf8"

	"github.com/hugodutka/radioterm/internal/channels"
	"github.com/hugodutka/radioterm/internal/event"
	"github.com/hugodutka/radioterm/internal/ui"
	"github.com/hugodutka/radioterm/internal/wire"
)

var streamTitleRE = regexp.MustCompile(`StreamTitle='(.*)'`)

// ProxyInfo is one known radio proxy. Entries live only inside the model
// loop and never cross a goroutine boundary.
type ProxyInfo struct {
	Addr        netip.AddrPort
	Info        string
	Meta        string
	LastContact time.Time
}

type postAction int

const (
	idle postAction = iota
	render
)

// Model owns every piece of application state. Only the loop goroutine
// mutates it; every other goroutine talks to the loop through the
// bundle's queues, which is what keeps the state lock-free.
type Model struct {
	bundle       *channels.Bundle
	discoverAddr netip.AddrPort
	timeout      time.Duration

	inputBuf    []byte
	cursorLine  int
	proxies     []*ProxyInfo
	activeProxy netip.AddrPort

	audio io.Writer
	now   func() time.Time
}

// New creates a model. discoverAddr is where Discover broadcasts go;
// timeout is how long a proxy survives without contact.
func New(bundle *channels.Bundle, discoverAddr netip.AddrPort, timeout time.Duration) *Model {
	return &Model{
		bundle:       bundle,
		discoverAddr: discoverAddr,
		timeout:      timeout,
		audio:        os.Stdout,
		now:          time.Now,
	}
}

// Run consumes model events until the user quits through the menu or a
// worker crashes. Each event is handled to completion before the next is
// dequeued.
func (m *Model) Run() error {
	for {
		done, err := m.step(m.bundle.Model.Recv())
		if err != nil {
			return err
		}
		if done {
			return nil
		}
	}
}

// step handles one event, clamps the cursor, and renders if the handler
// asked for it.
func (m *Model) step(ev event.Model) (bool, error) {
	action, done, err := m.handle(ev)
	if err != nil {
		return false, err
	}
	if done {
		return true, nil
	}
	if m.cursorLine < 0 {
		m.cursorLine = 0
	}
	if limit := len(m.proxies) + 1; m.cursorLine > limit {
		m.cursorLine = limit
	}
	if action == render {
		m.render()
	}
	return false, nil
}

func (m *Model) handle(ev event.Model) (postAction, bool, error) {
	switch ev := ev.(type) {
	case event.UserInput:
		return m.handleUserInput(ev)
	case event.ProxyInput:
		return m.handleProxyInput(ev), false, nil
	case event.Tick:
		return m.handleTick(), false, nil
	case event.NewTelnetConnection:
		ui.PrepareScreen(m.bundle.Telnet)
		return render, false, nil
	case event.ProxyServerCrashed:
		return idle, false, fmt.Errorf("proxy server crashed\n%s", string(ev))
	case event.TelnetServerCrashed:
		return idle, false, fmt.Errorf("telnet server crashed\n%s", string(ev))
	}
	return idle, false, nil
}

func (m *Model) handleUserInput(input event.UserInput) (postAction, bool, error) {
	for _, c := range input {
		var cmd ui.Command
		m.inputBuf, cmd = ui.InterpretInput(m.inputBuf, c)
		switch cmd {
		case ui.Up:
			m.cursorLine--
		case ui.Down:
			m.cursorLine++
		case ui.Select:
			switch {
			case m.cursorLine == 0:
				m.bundle.Proxy.Send(event.ProxyWrite{Addr: m.discoverAddr, Msg: wire.Discover{}})
			case m.cursorLine == len(m.proxies)+1:
				return render, true, nil
			default:
				addr := m.proxies[m.cursorLine-1].Addr
				if m.activeProxy == addr {
					m.activeProxy = netip.AddrPort{}
				} else {
					m.activeProxy = addr
				}
			}
		}
	}
	return render, false, nil
}

func (m *Model) handleProxyInput(ev event.ProxyInput) postAction {
	info := m.lookup(ev.Addr)
	if info == nil {
		info = &ProxyInfo{Addr: ev.Addr}
		m.proxies = append(m.proxies, info)
	}
	info.LastContact = m.now()

	switch msg := ev.Msg.(type) {
	case wire.Audio:
		if ev.Addr == m.activeProxy {
			if _, err := m.audio.Write(msg); err != nil {
				m.bundle.Logf("could not print audio: %v", err)
			}
		}
		return idle
	case wire.Metadata:
		if len(msg) == 0 {
			return render
		}
		if !utf8.Valid(msg) {
			m.bundle.Logf("could not parse metadata: invalid UTF-8")
			return render
		}
		text := string(msg)
		if match := streamTitleRE.FindStringSubmatch(text); match != nil {
			info.Meta = match[1]
		} else {
			info.Meta = text
		}
		return render
	case wire.IAM:
		info.Info = string(msg)
		return render
	}
	return idle
}

// handleTick expires proxies that went quiet and sustains the rest with a
// keepalive. Entries whose last contact is in the future survive clock
// skew.
func (m *Model) handleTick() postAction {
	now := m.now()
	kept := make([]*ProxyInfo, 0, len(m.proxies))
	for _, p := range m.proxies {
		if now.Sub(p.LastContact) < m.timeout {
			kept = append(kept, p)
		}
	}
	expired := len(kept) != len(m.proxies)
	m.proxies = kept
	for _, p := range m.proxies {
		m.bundle.Proxy.Send(event.ProxyWrite{Addr: p.Addr, Msg: wire.KeepAlive{}})
	}
	if expired {
		return render
	}
	return idle
}

func (m *Model) lookup(addr netip.AddrPort) *ProxyInfo {
	for _, p := range m.proxies {
		if p.Addr == addr {
			return p
		}
	}
	return nil
}

func (m *Model) render() {
	rows := make([]ui.Proxy, len(m.proxies))
	for i, p := range m.proxies {
		rows[i] = ui.Proxy{Addr: p.Addr, Info: p.Info, Meta: p.Meta}
	}
	ui.Render(m.bundle.Telnet, ui.Generate(rows, m.activeProxy, m.cursorLine))
}
