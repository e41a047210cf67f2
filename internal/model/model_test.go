package model

import (
	"bytes"
	"net/netip"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hugodutka/radioterm/internal/channels"
	"github.com/hugodutka/radioterm/internal/event"
	"github.com/hugodutka/radioterm/internal/wire"
)

var (
	broadcastAddr = netip.MustParseAddrPort("255.255.255.255:16000")
	proxyAddrA    = netip.MustParseAddrPort("10.0.0.1:4321")
	proxyAddrB    = netip.MustParseAddrPort("10.0.0.2:4321")
)

type testClock struct {
	now time.Time
}

func (c *testClock) advance(d time.Duration) {
	c.now = c.now.Add(d)
}

func newTestModel(t *testing.T) (*Model, *testClock, *bytes.Buffer) {
	t.Helper()
	clock := &testClock{now: time.Date(2021, 3, 14, 12, 0, 0, 0, time.UTC)}
	m := New(channels.New(), broadcastAddr, 5*time.Second)
	audio := &bytes.Buffer{}
	m.audio = audio
	m.now = func() time.Time { return clock.now }
	return m, clock, audio
}

// dispatch runs one event through the loop body and fails the test on a
// fatal error.
func dispatch(t *testing.T, m *Model, ev event.Model) bool {
	t.Helper()
	done, err := m.step(ev)
	require.NoError(t, err)
	return done
}

func drainTelnet(m *Model) [][]byte {
	var blobs [][]byte
	for {
		blob, ok := m.bundle.Telnet.TryRecv()
		if !ok {
			return blobs
		}
		blobs = append(blobs, blob)
	}
}

func lastScreen(t *testing.T, m *Model) string {
	t.Helper()
	blobs := drainTelnet(m)
	require.NotEmpty(t, blobs, "expected at least one render")
	return string(blobs[len(blobs)-1])
}

func TestSelectOnSearchRowBroadcastsDiscover(t *testing.T) {
	// Scenario: a Select while the cursor sits on the search row.
	m, _, _ := newTestModel(t)
	dispatch(t, m, event.UserInput{13})
	dispatch(t, m, event.UserInput{0, 13})

	w, ok := m.bundle.Proxy.TryRecv()
	require.True(t, ok, "expected a proxy write")
	assert.Equal(t, broadcastAddr, w.Addr)
	assert.Equal(t, wire.Discover{}, w.Msg)

	frame, err := wire.EncodeOutgoing(w.Msg)
	require.NoError(t, err)
	assert.Equal(t, []byte{0x01, 0x00, 0x00, 0x00}, frame)

	_, ok = m.bundle.Proxy.TryRecv()
	assert.False(t, ok, "exactly one frame should be queued")
}

func TestFirstContactCreatesProxyEntry(t *testing.T) {
	m, clock, _ := newTestModel(t)
	dispatch(t, m, event.ProxyInput{Addr: proxyAddrA, Msg: wire.IAM("RadioA")})

	require.Len(t, m.proxies, 1)
	p := m.proxies[0]
	assert.Equal(t, proxyAddrA, p.Addr)
	assert.Equal(t, "RadioA", p.Info)
	assert.Equal(t, "", p.Meta)
	assert.Equal(t, clock.now, p.LastContact)

	assert.Contains(t, lastScreen(t, m), "Pośrednik RadioA\r\n")
}

func TestMetadataExtractsStreamTitle(t *testing.T) {
	m, _, _ := newTestModel(t)
	dispatch(t, m, event.ProxyInput{Addr: proxyAddrA, Msg: wire.IAM("RadioA")})
	dispatch(t, m, event.ProxyInput{Addr: proxyAddrA, Msg: wire.Metadata("StreamTitle='Song A';")})

	assert.Equal(t, "Song A", m.proxies[0].Meta)
}

func TestMetadataFallsBackToFullText(t *testing.T) {
	m, _, _ := newTestModel(t)
	dispatch(t, m, event.ProxyInput{Addr: proxyAddrA, Msg: wire.Metadata("no title here")})
	assert.Equal(t, "no title here", m.proxies[0].Meta)
}

func TestMetadataEmptyPayloadLeavesMetaAlone(t *testing.T) {
	m, _, _ := newTestModel(t)
	dispatch(t, m, event.ProxyInput{Addr: proxyAddrA, Msg: wire.Metadata("StreamTitle='Song A';")})
	dispatch(t, m, event.ProxyInput{Addr: proxyAddrA, Msg: wire.Metadata{}})
	assert.Equal(t, "Song A", m.proxies[0].Meta)
}

func TestMetadataInvalidEncodingIsLoggedAndIgnored(t *testing.T) {
	m, _, _ := newTestModel(t)
	dispatch(t, m, event.ProxyInput{Addr: proxyAddrA, Msg: wire.Metadata("StreamTitle='Song A';")})
	dispatch(t, m, event.ProxyInput{Addr: proxyAddrA, Msg: wire.Metadata{0xff, 0xfe}})

	assert.Equal(t, "Song A", m.proxies[0].Meta)
	_, ok := m.bundle.Log.TryRecv()
	assert.True(t, ok, "expected a log line about the bad metadata")
}

func TestActivationStreamsAudioToOutput(t *testing.T) {
	// Scenario: activate the first proxy, then deliver audio from it.
	m, _, audio := newTestModel(t)
	dispatch(t, m, event.ProxyInput{Addr: proxyAddrA, Msg: wire.IAM("RadioA")})

	dispatch(t, m, event.UserInput{27, 91, 66}) // Down to row 1
	dispatch(t, m, event.UserInput{13, 0})      // Select
	assert.Equal(t, proxyAddrA, m.activeProxy)

	drainTelnet(m)
	dispatch(t, m, event.ProxyInput{Addr: proxyAddrA, Msg: wire.Audio{1, 2, 3}})

	assert.Equal(t, []byte{1, 2, 3}, audio.Bytes())
	assert.Empty(t, drainTelnet(m), "audio must not trigger a render")
}

func TestAudioFromInactiveProxyIsDropped(t *testing.T) {
	m, _, audio := newTestModel(t)
	dispatch(t, m, event.ProxyInput{Addr: proxyAddrA, Msg: wire.Audio{1, 2, 3}})
	assert.Empty(t, audio.Bytes())
	require.Len(t, m.proxies, 1, "audio still counts as first contact")
	assert.Equal(t, "", m.proxies[0].Info)
}

func TestSelectTogglesActiveProxy(t *testing.T) {
	m, _, _ := newTestModel(t)
	dispatch(t, m, event.ProxyInput{Addr: proxyAddrA, Msg: wire.IAM("RadioA")})
	dispatch(t, m, event.UserInput{27, 91, 66})

	dispatch(t, m, event.UserInput{13, 0})
	assert.Equal(t, proxyAddrA, m.activeProxy)

	dispatch(t, m, event.UserInput{13, 0})
	assert.False(t, m.activeProxy.IsValid(), "selecting the active proxy should deactivate it")
}

func TestTickExpiresQuietProxies(t *testing.T) {
	m, clock, _ := newTestModel(t)
	dispatch(t, m, event.ProxyInput{Addr: proxyAddrA, Msg: wire.IAM("RadioA")})
	dispatch(t, m, event.UserInput{27, 91, 66})
	dispatch(t, m, event.UserInput{13, 0})
	drainTelnet(m)

	clock.advance(6 * time.Second)
	dispatch(t, m, event.Tick{})

	assert.Empty(t, m.proxies)
	// The active address deliberately survives as a dangling reference.
	assert.Equal(t, proxyAddrA, m.activeProxy)
	assert.NotEmpty(t, drainTelnet(m), "an expiry should repaint the screen")

	_, ok := m.bundle.Proxy.TryRecv()
	assert.False(t, ok, "no keepalive for an expired proxy")
}

func TestTickKeepsRecentProxiesAlive(t *testing.T) {
	m, clock, _ := newTestModel(t)
	dispatch(t, m, event.ProxyInput{Addr: proxyAddrA, Msg: wire.IAM("RadioA")})
	dispatch(t, m, event.ProxyInput{Addr: proxyAddrB, Msg: wire.IAM("RadioB")})
	drainTelnet(m)

	clock.advance(4 * time.Second)
	dispatch(t, m, event.Tick{})

	require.Len(t, m.proxies, 2)
	for _, p := range m.proxies {
		assert.Less(t, clock.now.Sub(p.LastContact), 5*time.Second)
	}

	// Exactly one keepalive per survivor, addressed individually.
	var targets []netip.AddrPort
	for {
		w, ok := m.bundle.Proxy.TryRecv()
		if !ok {
			break
		}
		assert.Equal(t, wire.KeepAlive{}, w.Msg)
		targets = append(targets, w.Addr)
	}
	assert.Equal(t, []netip.AddrPort{proxyAddrA, proxyAddrB}, targets)

	assert.Empty(t, drainTelnet(m), "an uneventful tick should not repaint")
}

func TestTickRetainsFutureContactTimes(t *testing.T) {
	m, clock, _ := newTestModel(t)
	dispatch(t, m, event.ProxyInput{Addr: proxyAddrA, Msg: wire.IAM("RadioA")})
	m.proxies[0].LastContact = clock.now.Add(time.Hour) // clock skew
	dispatch(t, m, event.Tick{})
	assert.Len(t, m.proxies, 1)
}

func TestTickRemovesOnlyExpiredEntries(t *testing.T) {
	m, clock, _ := newTestModel(t)
	dispatch(t, m, event.ProxyInput{Addr: proxyAddrA, Msg: wire.IAM("RadioA")})
	clock.advance(3 * time.Second)
	dispatch(t, m, event.ProxyInput{Addr: proxyAddrB, Msg: wire.IAM("RadioB")})
	clock.advance(3 * time.Second)

	dispatch(t, m, event.Tick{})
	require.Len(t, m.proxies, 1)
	assert.Equal(t, proxyAddrB, m.proxies[0].Addr)
}

func TestQuitFromMenu(t *testing.T) {
	// Scenario: with no proxies, Select on the quit row ends the loop.
	m, _, _ := newTestModel(t)
	dispatch(t, m, event.UserInput{27, 91, 66})
	assert.Equal(t, 1, m.cursorLine)

	done, err := m.step(event.UserInput{13, 0})
	require.NoError(t, err)
	assert.True(t, done)
}

func TestCursorStaysClamped(t *testing.T) {
	m, _, _ := newTestModel(t)
	dispatch(t, m, event.UserInput{27, 91, 65}) // Up at the top
	assert.Equal(t, 0, m.cursorLine)

	dispatch(t, m, event.ProxyInput{Addr: proxyAddrA, Msg: wire.IAM("RadioA")})
	for i := 0; i < 5; i++ {
		dispatch(t, m, event.UserInput{27, 91, 66})
	}
	assert.Equal(t, len(m.proxies)+1, m.cursorLine)
}

func TestCursorClampedAfterExpiryShrinksMenu(t *testing.T) {
	m, clock, _ := newTestModel(t)
	dispatch(t, m, event.ProxyInput{Addr: proxyAddrA, Msg: wire.IAM("RadioA")})
	dispatch(t, m, event.UserInput{27, 91, 66})
	dispatch(t, m, event.UserInput{27, 91, 66})
	assert.Equal(t, 2, m.cursorLine)

	clock.advance(6 * time.Second)
	dispatch(t, m, event.Tick{})
	assert.Equal(t, 1, m.cursorLine)
}

func TestNewTelnetConnectionPreparesScreen(t *testing.T) {
	m, _, _ := newTestModel(t)
	dispatch(t, m, event.NewTelnetConnection{})

	blobs := drainTelnet(m)
	require.Len(t, blobs, 2, "negotiation then first paint")
	assert.Equal(t, []byte{0xFF, 0xFD, 0x22, 0xFF, 0xFA, 0x22, 0x01, 0x00, 0xFF, 0xF0, 0xFF, 0xFB, 0x01}, blobs[0])
	assert.Contains(t, string(blobs[1]), "Szukaj pośrednika")
}

func TestWorkerCrashIsFatal(t *testing.T) {
	m, _, _ := newTestModel(t)
	_, err := m.step(event.ProxyServerCrashed("bind failed"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "proxy server crashed")
	assert.Contains(t, err.Error(), "bind failed")

	_, err = m.step(event.TelnetServerCrashed("bind failed"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "telnet server crashed")
}

func TestRunStopsOnCrashEvent(t *testing.T) {
	m, _, _ := newTestModel(t)
	m.bundle.Model.Send(event.TelnetServerCrashed("bind failed"))

	errs := make(chan error, 1)
	go func() { errs <- m.Run() }()

	select {
	case err := <-errs:
		require.Error(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("Run did not return after a crash event")
	}
}

func TestRunReturnsNilOnQuit(t *testing.T) {
	m, _, _ := newTestModel(t)
	m.bundle.Model.Send(event.UserInput{27, 91, 66})
	m.bundle.Model.Send(event.UserInput{13, 0})

	errs := make(chan error, 1)
	go func() { errs <- m.Run() }()

	select {
	case err := <-errs:
		require.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("Run did not return after quit")
	}
}

func TestActiveProxyAlwaysReferencesTableEntry(t *testing.T) {
	// Walk a busy sequence of events and check the membership invariant
	// after each one (expiry of the active entry is the documented
	// exception and is exercised separately).
	m, _, _ := newTestModel(t)
	events := []event.Model{
		event.ProxyInput{Addr: proxyAddrA, Msg: wire.IAM("RadioA")},
		event.UserInput{27, 91, 66},
		event.UserInput{13, 0},
		event.ProxyInput{Addr: proxyAddrB, Msg: wire.IAM("RadioB")},
		event.UserInput{27, 91, 66},
		event.UserInput{13, 0},
		event.Tick{},
		event.UserInput{13, 0},
	}
	for i, ev := range events {
		dispatch(t, m, ev)
		require.GreaterOrEqual(t, m.cursorLine, 0, "event %d", i)
		require.LessOrEqual(t, m.cursorLine, len(m.proxies)+1, "event %d", i)
		if m.activeProxy.IsValid() {
			require.NotNil(t, m.lookup(m.activeProxy), "event %d", i)
		}
	}
}
