package server

import (
	"io"
	"net"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/adcondev/relay-daemon/internal/relayerr"
	"github.com/adcondev/relay-daemon/internal/testutil"
)

func TestConnSendAndFlushOnClose(t *testing.T) {
	local, remote := net.Pipe()
	c := newConn(local, "c1", "10.0.0.1", TransportTCP, 4, time.Second, testutil.NopLogger())

	require.NoError(t, c.Send([]byte("one")))
	require.NoError(t, c.Send([]byte("two")))

	done := make(chan []byte)
	go func() {
		data, _ := io.ReadAll(remote)
		done <- data
	}()

	c.Close()
	assert.Equal(t, "onetwo", string(<-done))
	assert.EqualValues(t, 2, c.Delivered())

	err := c.Send([]byte("late"))
	assert.ErrorIs(t, err, relayerr.ErrDeliveryFailure)
}

func TestConnFullQueueIsDeliveryFailure(t *testing.T) {
	local, remote := net.Pipe()
	defer remote.Close()
	// Nobody reads remote, so the writer blocks on the first message.
	c := newConn(local, "c1", "10.0.0.1", TransportTCP, 1, 0, testutil.NopLogger())

	var err error
	for i := 0; i < 10 && err == nil; i++ {
		err = c.Send([]byte("x"))
	}
	require.Error(t, err)
	assert.ErrorIs(t, err, relayerr.ErrDeliveryFailure)
	assert.Equal(t, "DELIVERY: Outbound queue full", relayerr.Describe(err))

	c.Abort()
	c.Close()
}

func TestConnWriteFailureMarksFailed(t *testing.T) {
	local, remote := net.Pipe()
	c := newConn(local, "c1", "10.0.0.1", TransportTCP, 4, 50*time.Millisecond, testutil.NopLogger())
	_ = remote.Close()

	require.NoError(t, c.Send([]byte("lost")))
	assert.Eventually(t, func() bool {
		return c.Send([]byte("again")) != nil
	}, time.Second, 5*time.Millisecond)

	c.Close()
}
