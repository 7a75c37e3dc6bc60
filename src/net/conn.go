package net

import (
	"context"
	"errors"
	"net"
	"strings"

	"nhooyr.io/websocket"
)

// StatusCode is a websocket close code.
type StatusCode = websocket.StatusCode

const (
	// StatusNormalClosure is used when a peer is dropped on purpose.
	StatusNormalClosure = websocket.StatusNormalClosure
	// StatusPolicyViolation is used when a peer sends a message that fails
	// authentication.
	StatusPolicyViolation = websocket.StatusPolicyViolation
)

// RegistryPort is the port suffix registry entries may carry.
const RegistryPort = "16125"

// ErrConnClosed is returned by operations on a closed connection.
var ErrConnClosed = errors.New("connection closed")

// Conn is one persistent, message oriented connection to a peer. Receive is
// called from a single read loop; Send and Close may be called concurrently.
type Conn interface {
	// Send writes one text message.
	Send(ctx context.Context, data []byte) error

	// Receive blocks until the next message arrives or the connection ends.
	Receive(ctx context.Context) ([]byte, error)

	// Close closes the connection with a close code and reason.
	Close(code StatusCode, reason string) error

	// RemoteIP is the address of the peer, without port.
	RemoteIP() string
}

// StripRegistryPort removes the registry port suffix from a registry ip entry.
func StripRegistryPort(ip string) string {
	return strings.Replace(ip, ":"+RegistryPort, "", -1)
}

// HostOnly returns the host part of a host:port address. Addresses without a
// port are returned unchanged.
func HostOnly(addr string) string {
	host, _, err := net.SplitHostPort(addr)
	if err != nil {
		return addr
	}
	return host
}
