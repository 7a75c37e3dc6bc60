package node

import (
	"context"
	"fmt"

	"github.com/fluxnet/fluxnet/src/net"
)

// AdminPrivilege is the privilege required by the mutating administrative
// operations.
const AdminPrivilege = "zelteam"

// Result statuses.
const (
	StatusSuccess = "success"
	StatusError   = "error"
)

// UnauthorizedMessage is the message of results denied by the Authorizer.
const UnauthorizedMessage = "Unauthorized. Access denied."

// Result is the outcome of an administrative operation. Listing operations
// fill Data; the others fill Message. Err is the classified failure, if any.
type Result struct {
	Status  string
	Message string
	Data    interface{}
	Err     error
}

func success(msg string) Result {
	return Result{Status: StatusSuccess, Message: msg}
}

func successData(data interface{}) Result {
	return Result{Status: StatusSuccess, Data: data}
}

func failure(err error, msg string) Result {
	return Result{Status: StatusError, Message: msg, Err: err}
}

func unauthorized() Result {
	return failure(ErrUnauthorized, UnauthorizedMessage)
}

// PeerInfo is the public view of a PeerMetric.
type PeerInfo struct {
	IP  string `json:"ip" codec:"ip"`
	RTT *int64 `json:"rtt" codec:"rtt"`
}

// AddPeer starts an outbound connection to ip.
func (n *Node) AddPeer(ctx context.Context, ip string) Result {
	if ip == "" {
		return failure(ErrInvalidInput, "No IP address specified.")
	}
	if n.conns.HasOutbound(ip) {
		return failure(ErrAlreadyConnected, fmt.Sprintf("Already connected to %s", ip))
	}
	if !n.authorized(ctx) {
		return unauthorized()
	}

	n.outbound.Initiate(ip)
	n.logger.WithField("peer", ip).Info("Admin added peer")

	return success(fmt.Sprintf("Outgoing connection to %s initiated", ip))
}

// RemovePeer closes the outbound connection to ip with a normal closure.
func (n *Node) RemovePeer(ctx context.Context, ip string) Result {
	if ip == "" {
		return failure(ErrInvalidInput, "No IP address specified.")
	}
	if !n.authorized(ctx) {
		return unauthorized()
	}

	conn, ok := n.conns.RemoveOutboundByIP(ip)
	if !ok {
		return success(fmt.Sprintf("Connection to %s does not exists.", ip))
	}
	conn.Close(net.StatusNormalClosure, "removed")
	n.logger.WithField("peer", ip).Info("Admin removed peer")

	return success(fmt.Sprintf("Outgoing connection to %s closed", ip))
}

// RemoveIncomingPeer closes the inbound connections from ip with a normal
// closure.
func (n *Node) RemoveIncomingPeer(ctx context.Context, ip string) Result {
	if ip == "" {
		return failure(ErrInvalidInput, "No IP address specified.")
	}
	if !n.authorized(ctx) {
		return unauthorized()
	}

	if n.incoming == nil || !n.incoming.Close(ip, net.StatusNormalClosure, "removed") {
		return success(fmt.Sprintf("Connection from %s does not exists.", ip))
	}
	n.logger.WithField("peer", ip).Info("Admin removed incoming peer")

	return success(fmt.Sprintf("Incoming connection from %s closed", ip))
}

// ConnectedPeers lists the IPs of outbound connections.
func (n *Node) ConnectedPeers() Result {
	return successData(n.conns.ListOutboundIPs())
}

// ConnectedPeersInfo lists the outbound peers with their round trip time.
func (n *Node) ConnectedPeersInfo() Result {
	metrics := n.conns.Metrics()
	info := make([]PeerInfo, 0, len(metrics))
	for _, m := range metrics {
		info = append(info, PeerInfo{IP: m.IP, RTT: m.RTTMillis()})
	}
	return successData(info)
}

// IncomingConnections lists the IPs of inbound connections.
func (n *Node) IncomingConnections() Result {
	if n.incoming == nil {
		return successData([]string{})
	}
	return successData(n.incoming.IPs())
}

// BroadcastMessage signs payload and sends it to every outbound peer.
func (n *Node) BroadcastMessage(ctx context.Context, payload interface{}) Result {
	if payload == nil {
		return failure(ErrInvalidInput, "No message to broadcast attached.")
	}
	if s, ok := payload.(string); ok && s == "" {
		return failure(ErrInvalidInput, "No message to broadcast attached.")
	}
	if !n.authorized(ctx) {
		return unauthorized()
	}

	if _, err := n.Broadcast(ctx, payload); err != nil {
		n.logger.WithError(err).Error("Broadcast")
		return failure(err, "Unable to sign message")
	}

	return success("Message successfully broadcasted to ZelFlux network")
}

func (n *Node) authorized(ctx context.Context) bool {
	if n.authorizer == nil {
		return false
	}
	return n.authorizer.Authorize(ctx, AdminPrivilege)
}
