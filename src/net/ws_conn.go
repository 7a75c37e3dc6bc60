package net

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"net/url"
	"strconv"
	"sync"

	"nhooyr.io/websocket"
)

// MaxMessageSize is the read limit applied to every websocket connection.
const MaxMessageSize = 1 << 20

// WSConn implements Conn on top of a websocket connection.
type WSConn struct {
	conn *websocket.Conn
	ip   string

	closeOnce sync.Once
	closeErr  error
}

// NewWSConn wraps an established websocket connection with the ip of the
// remote peer.
func NewWSConn(conn *websocket.Conn, ip string) *WSConn {
	conn.SetReadLimit(MaxMessageSize)
	return &WSConn{
		conn: conn,
		ip:   ip,
	}
}

// Send implements the Conn interface.
func (c *WSConn) Send(ctx context.Context, data []byte) error {
	if err := c.conn.Write(ctx, websocket.MessageText, data); err != nil {
		return fmt.Errorf("send to %s: %w", c.ip, err)
	}
	return nil
}

// Receive implements the Conn interface.
func (c *WSConn) Receive(ctx context.Context) ([]byte, error) {
	_, data, err := c.conn.Read(ctx)
	if err != nil {
		if websocket.CloseStatus(err) != -1 {
			return nil, fmt.Errorf("%w: %v", ErrConnClosed, err)
		}
		return nil, err
	}
	return data, nil
}

// Close implements the Conn interface. Only the first call has an effect.
func (c *WSConn) Close(code StatusCode, reason string) error {
	c.closeOnce.Do(func() {
		c.closeErr = c.conn.Close(code, reason)
	})
	return c.closeErr
}

// RemoteIP implements the Conn interface.
func (c *WSConn) RemoteIP() string {
	return c.ip
}

// PeerURL returns the websocket address a node serves the overlay on.
func PeerURL(ip string, port int, path string) string {
	u := url.URL{
		Scheme: "ws",
		Host:   net.JoinHostPort(ip, strconv.Itoa(port)),
		Path:   path,
	}
	return u.String()
}

// Dial opens an outbound websocket connection to ip.
func Dial(ctx context.Context, ip string, port int, path string) (*WSConn, error) {
	conn, _, err := websocket.Dial(ctx, PeerURL(ip, port, path), nil)
	if err != nil {
		return nil, fmt.Errorf("dial %s: %w", ip, err)
	}
	return NewWSConn(conn, ip), nil
}

// Accept upgrades an inbound HTTP request. The ip of the connection is the
// host of the request's remote address.
func Accept(w http.ResponseWriter, r *http.Request) (*WSConn, error) {
	conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{OriginPatterns: []string{"*"}})
	if err != nil {
		return nil, err
	}
	return NewWSConn(conn, HostOnly(r.RemoteAddr)), nil
}
