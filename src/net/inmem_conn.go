package net

import (
	"context"
	"errors"
	"sync"
)

// ErrInmemSendFailure is returned by an InmemConn set to fail its sends.
var ErrInmemSendFailure = errors.New("inmem send failure")

type inmemPipe struct {
	sync.Mutex
	closed bool
	code   StatusCode
	reason string
	done   chan struct{}
}

// InmemConn implements the Conn interface, to allow the overlay to be tested
// in-memory without going over a network. Conns come in connected pairs.
type InmemConn struct {
	pipe     *inmemPipe
	remoteIP string
	in       chan []byte
	out      chan []byte

	l         sync.Mutex
	failSends bool
	sent      [][]byte
}

// NewInmemPipe returns two connected conns: a talks to b, whose peer ip is
// ipA, and b talks to a, whose peer ip is ipB.
func NewInmemPipe(ipA, ipB string) (*InmemConn, *InmemConn) {
	pipe := &inmemPipe{done: make(chan struct{})}
	ab := make(chan []byte, 64)
	ba := make(chan []byte, 64)

	a := &InmemConn{pipe: pipe, remoteIP: ipB, in: ba, out: ab}
	b := &InmemConn{pipe: pipe, remoteIP: ipA, in: ab, out: ba}

	return a, b
}

// FailSends makes every following Send fail, without closing the pipe.
func (c *InmemConn) FailSends(fail bool) {
	c.l.Lock()
	c.failSends = fail
	c.l.Unlock()
}

// Sent returns a copy of the messages successfully sent through c.
func (c *InmemConn) Sent() [][]byte {
	c.l.Lock()
	defer c.l.Unlock()
	res := make([][]byte, len(c.sent))
	copy(res, c.sent)
	return res
}

// Send implements the Conn interface.
func (c *InmemConn) Send(ctx context.Context, data []byte) error {
	c.l.Lock()
	fail := c.failSends
	c.l.Unlock()
	if fail {
		return ErrInmemSendFailure
	}

	select {
	case <-c.pipe.done:
		return ErrConnClosed
	default:
	}

	msg := make([]byte, len(data))
	copy(msg, data)

	select {
	case c.out <- msg:
	case <-c.pipe.done:
		return ErrConnClosed
	case <-ctx.Done():
		return ctx.Err()
	}

	c.l.Lock()
	c.sent = append(c.sent, msg)
	c.l.Unlock()

	return nil
}

// Receive implements the Conn interface. Messages already queued are still
// delivered after the pipe is closed.
func (c *InmemConn) Receive(ctx context.Context) ([]byte, error) {
	select {
	case msg := <-c.in:
		return msg, nil
	default:
	}

	select {
	case msg := <-c.in:
		return msg, nil
	case <-c.pipe.done:
		return nil, ErrConnClosed
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// Close implements the Conn interface. Closing either end closes the pipe;
// the first close code wins.
func (c *InmemConn) Close(code StatusCode, reason string) error {
	c.pipe.Lock()
	defer c.pipe.Unlock()

	if c.pipe.closed {
		return nil
	}
	c.pipe.closed = true
	c.pipe.code = code
	c.pipe.reason = reason
	close(c.pipe.done)

	return nil
}

// Closed reports whether the pipe is closed, and with which code.
func (c *InmemConn) Closed() (bool, StatusCode) {
	c.pipe.Lock()
	defer c.pipe.Unlock()
	return c.pipe.closed, c.pipe.code
}

// Done is closed when the pipe closes.
func (c *InmemConn) Done() <-chan struct{} {
	return c.pipe.done
}

// RemoteIP implements the Conn interface.
func (c *InmemConn) RemoteIP() string {
	return c.remoteIP
}
