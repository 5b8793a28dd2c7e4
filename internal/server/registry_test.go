package server

import (
	"fmt"
	"net"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/adcondev/relay-daemon/internal/testutil"
)

func newTestConn(t *testing.T, id, addr string) *Conn {
	t.Helper()
	local, remote := net.Pipe()
	t.Cleanup(func() { _ = remote.Close() })
	c := newConn(local, id, addr, TransportTCP, 8, 0, testutil.NopLogger())
	t.Cleanup(c.Close)
	return c
}

func TestRegistryClassify(t *testing.T) {
	r := NewRegistry()
	a := newTestConn(t, "a", "10.0.0.1")
	b := newTestConn(t, "b", "10.0.0.1")
	r.Add(a)
	r.Add(b)

	class, _ := r.Classify("a", false)
	assert.Equal(t, ClassAuthenticating, class)

	r.MarkPending("a")
	assert.True(t, r.IsPending("10.0.0.1"))

	class, _ = r.Classify("b", false)
	assert.Equal(t, ClassPendingRegistration, class, "pending set is keyed by address")

	r.ClearPending("10.0.0.1")
	assert.False(t, r.IsPending("10.0.0.1"))
}

func TestRegistryPendingSurvivesRemove(t *testing.T) {
	r := NewRegistry()
	a := newTestConn(t, "a", "10.0.0.1")
	r.Add(a)
	r.MarkPending("a")
	r.Remove("a")

	assert.True(t, r.IsPending("10.0.0.1"))
	assert.Zero(t, r.Count())
}

func TestRegistryAuthenticate(t *testing.T) {
	r := NewRegistry()
	r.Add(newTestConn(t, "a", "10.0.0.1"))
	r.Add(newTestConn(t, "b", "10.0.0.2"))

	require.NoError(t, r.Authenticate("a", "alice"))
	require.NoError(t, r.Authenticate("a", "alice"))
	assert.Error(t, r.Authenticate("a", "mallory"), "username is fixed")
	assert.Error(t, r.Authenticate("missing", "x"))

	class, username, ok := r.classOf("a")
	require.True(t, ok)
	assert.Equal(t, ClassAuthenticated, class)
	assert.Equal(t, "alice", username)

	recipients := r.Authenticated()
	require.Len(t, recipients, 1)
	assert.Equal(t, "a", recipients[0].ID())

	r.Remove("a")
	assert.Empty(t, r.Authenticated())
}

func TestRegistryTrustAddress(t *testing.T) {
	r := NewRegistry()
	r.Add(newTestConn(t, "a", "10.0.0.1"))
	r.Add(newTestConn(t, "b", "10.0.0.1"))
	r.Add(newTestConn(t, "c", "10.0.0.1"))
	require.NoError(t, r.Authenticate("a", "alice"))

	class, username := r.Classify("b", true)
	assert.Equal(t, ClassAuthenticated, class)
	assert.Equal(t, "alice", username)

	class, _ = r.Classify("c", false)
	assert.Equal(t, ClassAuthenticating, class, "connection-bound auth by default")
}

func TestRegistryConcurrentExclusivity(t *testing.T) {
	r := NewRegistry()
	const n = 64

	conns := make([]*Conn, n)
	for i := range conns {
		conns[i] = newTestConn(t, fmt.Sprintf("c%d", i), fmt.Sprintf("10.0.0.%d", i%8))
	}

	var wg sync.WaitGroup
	for i, c := range conns {
		wg.Add(1)
		go func(i int, c *Conn) {
			defer wg.Done()
			r.Add(c)
			r.Classify(c.ID(), i%3 == 0)
			switch i % 4 {
			case 0:
				_ = r.Authenticate(c.ID(), fmt.Sprintf("user%d", i))
			case 1:
				r.MarkPending(c.ID())
			case 2:
				r.ClearPending(c.Addr())
			}
			_ = r.Authenticated()
			_ = r.Stats()
			if i%5 == 0 {
				r.Remove(c.ID())
			}
		}(i, c)
	}
	wg.Wait()

	st := r.Stats()
	classified := st.Authenticating + st.PendingRegistration + st.Authenticated
	assert.Equal(t, st.Connections, classified, "every live connection has exactly one class")
	assert.Equal(t, len(r.Authenticated()), st.Authenticated)
	assert.Equal(t, st.Connections, st.TCP+st.WebSocket)

	r.ForEach(func(c *Conn) {
		class, username, ok := r.classOf(c.ID())
		require.True(t, ok)
		if class == ClassAuthenticated {
			assert.NotEmpty(t, username)
		}
	})
}

func TestRegistryHasAddress(t *testing.T) {
	r := NewRegistry()
	r.Add(newTestConn(t, "a", "10.0.0.1"))

	assert.True(t, r.HasAddress("10.0.0.1"))
	assert.False(t, r.HasAddress("10.0.0.2"))
}

func TestRegistryStatsByTransport(t *testing.T) {
	r := NewRegistry()
	r.Add(newTestConn(t, "a", "10.0.0.1"))
	r.Add(newTestConn(t, "b", "10.0.0.2"))

	local, remote := net.Pipe()
	t.Cleanup(func() { _ = remote.Close() })
	ws := newConn(local, "c", "10.0.0.3", TransportWebSocket, 8, 0, testutil.NopLogger())
	t.Cleanup(ws.Close)
	r.Add(ws)

	st := r.Stats()
	assert.Equal(t, 3, st.Connections)
	assert.Equal(t, 2, st.TCP)
	assert.Equal(t, 1, st.WebSocket)

	r.Remove("c")
	st = r.Stats()
	assert.Equal(t, 2, st.TCP)
	assert.Zero(t, st.WebSocket)
}
