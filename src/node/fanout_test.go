package node

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/fluxnet/fluxnet/src/net"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestFanout(t *testing.T) (*ConnectionRegistry, *Fanout) {
	r := NewConnectionRegistry(NewManualClock(epoch), nil)
	return r, NewFanout(r, time.Second, nil, testEntry(t))
}

func TestSendToAllPrunesFailures(t *testing.T) {
	r, fanout := newTestFanout(t)

	c1, remote1 := net.NewInmemPipe("self", "10.0.0.1")
	c2, remote2 := net.NewInmemPipe("self", "10.0.0.2")
	r.AddOutbound("10.0.0.1", c1)
	r.AddOutbound("10.0.0.2", c2)

	c1.FailSends(true)

	pruned := fanout.SendToAll(context.Background(), []byte("ping"))
	assert.Equal(t, []string{"10.0.0.1"}, pruned)
	assert.Equal(t, []string{"10.0.0.2"}, r.ListOutboundIPs())
	assertInSync(t, r)

	closed, _ := c1.Closed()
	assert.True(t, closed)
	closed, _ = c2.Closed()
	assert.False(t, closed)

	msg, err := receiveWithin(t, remote2, time.Second)
	require.NoError(t, err)
	assert.Equal(t, "ping", string(msg))

	_, err = receiveWithin(t, remote1, 10*time.Millisecond)
	assert.Error(t, err)
}

func TestSendToAllFailuresDoNotStopDelivery(t *testing.T) {
	r, fanout := newTestFanout(t)

	var remotes []*net.InmemConn
	var ips []string
	for i, ip := range []string{"10.0.0.1", "10.0.0.2", "10.0.0.3", "10.0.0.4"} {
		local, remote := net.NewInmemPipe("self", ip)
		if i%2 == 0 {
			local.FailSends(true)
		} else {
			remotes = append(remotes, remote)
		}
		r.AddOutbound(ip, local)
		ips = append(ips, ip)
	}

	pruned := fanout.SendToAll(context.Background(), []byte("data"))
	assert.Equal(t, []string{ips[0], ips[2]}, pruned)
	assert.Equal(t, []string{ips[1], ips[3]}, r.ListOutboundIPs())

	for _, remote := range remotes {
		msg, err := receiveWithin(t, remote, time.Second)
		require.NoError(t, err)
		assert.Equal(t, "data", string(msg))
	}

	// nothing left to prune
	assert.Empty(t, fanout.SendToAll(context.Background(), []byte("data")))
}

func TestSendToAllEmpty(t *testing.T) {
	_, fanout := newTestFanout(t)
	assert.Empty(t, fanout.SendToAll(context.Background(), []byte("x")))
}

func TestSendTo(t *testing.T) {
	r, fanout := newTestFanout(t)
	ctx := context.Background()

	err := fanout.SendTo(ctx, "10.0.0.9", []byte("x"))
	assert.True(t, errors.Is(err, ErrTransport))

	c1, remote1 := net.NewInmemPipe("self", "10.0.0.1")
	r.AddOutbound("10.0.0.1", c1)

	require.NoError(t, fanout.SendTo(ctx, "10.0.0.1", []byte("x")))
	msg, err := receiveWithin(t, remote1, time.Second)
	require.NoError(t, err)
	assert.Equal(t, "x", string(msg))

	c1.FailSends(true)
	err = fanout.SendTo(ctx, "10.0.0.1", []byte("y"))
	assert.True(t, errors.Is(err, ErrTransport))
	assert.False(t, r.HasOutbound("10.0.0.1"))
}

// replacedConn simulates its read loop ending and a new connection to the same
// ip being registered while its send is still failing.
type replacedConn struct {
	*net.InmemConn
	registry *ConnectionRegistry
	fresh    net.Conn
}

func (c *replacedConn) Send(ctx context.Context, data []byte) error {
	c.registry.RemoveConn(c.RemoteIP(), c)
	c.registry.AddOutbound(c.RemoteIP(), c.fresh)
	return errors.New("broken pipe")
}

func TestSendToAllKeepsReplacementConn(t *testing.T) {
	r, fanout := newTestFanout(t)

	old, _ := net.NewInmemPipe("self", "10.0.0.1")
	fresh, _ := net.NewInmemPipe("self", "10.0.0.1")
	r.AddOutbound("10.0.0.1", &replacedConn{InmemConn: old, registry: r, fresh: fresh})

	pruned := fanout.SendToAll(context.Background(), []byte("ping"))
	assert.Empty(t, pruned)

	conn, ok := r.OutboundConn("10.0.0.1")
	require.True(t, ok)
	assert.Equal(t, net.Conn(fresh), conn)
	closed, _ := fresh.Closed()
	assert.False(t, closed)
	assertInSync(t, r)
}

func TestSendToKeepsReplacementConn(t *testing.T) {
	r, fanout := newTestFanout(t)

	old, _ := net.NewInmemPipe("self", "10.0.0.1")
	fresh, _ := net.NewInmemPipe("self", "10.0.0.1")
	r.AddOutbound("10.0.0.1", &replacedConn{InmemConn: old, registry: r, fresh: fresh})

	err := fanout.SendTo(context.Background(), "10.0.0.1", []byte("ping"))
	assert.True(t, errors.Is(err, ErrTransport))

	conn, ok := r.OutboundConn("10.0.0.1")
	require.True(t, ok)
	assert.Equal(t, net.Conn(fresh), conn)
	closed, _ := fresh.Closed()
	assert.False(t, closed)
}
