package node

import (
	"context"

	"github.com/fluxnet/fluxnet/src/config"
	"github.com/fluxnet/fluxnet/src/crypto/keys"
	"github.com/fluxnet/fluxnet/src/net"
	"github.com/fluxnet/fluxnet/src/peers"
	"github.com/sirupsen/logrus"
)

// InboundConnections is the read and close access the node has to the
// connections accepted by the listener.
type InboundConnections interface {
	IPs() []string
	Close(ip string, code net.StatusCode, reason string) bool
}

// Authorizer decides whether the caller carried by ctx holds a privilege.
type Authorizer interface {
	Authorize(ctx context.Context, privilege string) bool
}

// AuthorizerFunc adapts a function to the Authorizer interface.
type AuthorizerFunc func(ctx context.Context, privilege string) bool

// Authorize implements Authorizer.
func (f AuthorizerFunc) Authorize(ctx context.Context, privilege string) bool {
	return f(ctx, privilege)
}

// Option customises a Node.
type Option func(*Node)

// WithClock replaces the wall clock, for tests.
func WithClock(clock Clock) Option {
	return func(n *Node) { n.clock = clock }
}

// WithDialer replaces the websocket dialer.
func WithDialer(dial DialFunc) Option {
	return func(n *Node) { n.dial = dial }
}

// WithSelector replaces the random peer selector.
func WithSelector(selector PeerSelector) Option {
	return func(n *Node) { n.selector = selector }
}

// WithMetrics replaces the process-wide prometheus collectors.
func WithMetrics(stats *Metrics) Option {
	return func(n *Node) { n.stats = stats }
}

//Node is a member of the overlay: it keeps outbound connections to other
//nodes, answers inbound ones, and exchanges signed broadcasts.
type Node struct {
	state

	conf   *config.Config
	logger *logrus.Entry

	clock      Clock
	dial       DialFunc
	selector   PeerSelector
	stats      *Metrics
	nodes      peers.Registry
	identity   keys.Identity
	authorizer Authorizer
	incoming   InboundConnections

	conns     *ConnectionRegistry
	auth      *Authenticator
	fanout    *Fanout
	outbound  *Outbound
	inbound   *Inbound
	discovery *Discovery
	heartbeat *HeartbeatScheduler
}

//NewNode is a factory method that returns a Node instance
func NewNode(conf *config.Config,
	nodes peers.Registry,
	identity keys.Identity,
	authorizer Authorizer,
	incoming InboundConnections,
	opts ...Option,
) *Node {
	n := &Node{
		conf:       conf,
		logger:     conf.Logger().WithField("ip", conf.IPAddress),
		nodes:      nodes,
		identity:   identity,
		authorizer: authorizer,
		incoming:   incoming,
	}

	for _, opt := range opts {
		opt(n)
	}

	if n.clock == nil {
		n.clock = NewRealClock()
	}
	if n.dial == nil {
		n.dial = WSDialer(conf.APIPort, conf.WSPath())
	}
	if n.selector == nil {
		n.selector = NewRandomPeerSelector()
	}
	if n.stats == nil {
		n.stats = DefaultMetrics()
	}

	n.conns = NewConnectionRegistry(n.clock, n.stats)

	n.auth = NewAuthenticator(
		AuthConfig{
			FutureTolerance: conf.FutureTolerance,
			StaleAfter:      conf.StaleAfter,
			RegistryTimeout: conf.RegistryTimeout,
		},
		nodes,
		identity,
		n.clock,
		n.stats,
		n.logger.WithField("component", "auth"),
	)

	n.fanout = NewFanout(n.conns, conf.WriteTimeout, n.stats, n.logger.WithField("component", "fanout"))

	n.outbound = NewOutbound(
		OutboundConfig{
			DialTimeout:  conf.DialTimeout,
			WriteTimeout: conf.WriteTimeout,
		},
		n.conns,
		n.auth,
		n.dial,
		n.clock,
		n.stats,
		n.logger.WithField("component", "outbound"),
	)

	n.inbound = NewInbound(
		InboundConfig{
			SelfIP:       conf.IPAddress,
			WriteTimeout: conf.WriteTimeout,
			Rate:         conf.InboundRate,
			Burst:        conf.InboundBurst,
		},
		n.auth,
		n.clock,
		n.stats,
		n.logger.WithField("component", "inbound"),
	)

	n.discovery = NewDiscovery(
		DiscoveryConfig{
			SelfIP:          conf.IPAddress,
			MinPeers:        conf.MinPeers,
			Fast:            conf.DiscoveryFast,
			Slow:            conf.DiscoverySlow,
			RegistryTimeout: conf.RegistryTimeout,
		},
		nodes,
		n.conns,
		n.selector,
		n.outbound,
		n.clock,
		n.logger.WithField("component", "discovery"),
	)

	n.heartbeat = NewHeartbeatScheduler(
		conf.Heartbeat,
		n.auth,
		n.fanout,
		n.clock,
		n.logger.WithField("component", "heartbeat"),
	)

	return n
}

//Start runs the first discovery round right away and schedules heartbeats.
func (n *Node) Start() {
	if !n.transition(Created, Running) {
		return
	}
	n.logger.Info("Starting node")
	n.discovery.Start(0)
	n.heartbeat.Start()
}

//Shutdown stops discovery and heartbeats and closes outbound connections.
//Inbound connections belong to the listener.
func (n *Node) Shutdown() {
	if n.getState() == Shutdown {
		return
	}
	n.setState(Shutdown)

	n.logger.Info("Shutdown")
	n.discovery.Stop()
	n.heartbeat.Stop()
	n.outbound.Shutdown()
}

//GetState returns the state of the node
func (n *Node) GetState() State {
	return n.getState()
}

//HandleInbound serves an inbound connection until it ends.
func (n *Node) HandleInbound(ctx context.Context, conn net.Conn) {
	n.inbound.Handle(ctx, conn)
}

//Broadcast signs payload and sends it to every outbound peer. It returns the
//IPs pruned because the send failed.
func (n *Node) Broadcast(ctx context.Context, payload interface{}) ([]string, error) {
	data, err := n.auth.SignAndMarshal(payload, "")
	if err != nil {
		return nil, err
	}
	return n.fanout.SendToAll(ctx, data), nil
}

//Connections returns the connection registry
func (n *Node) Connections() *ConnectionRegistry {
	return n.conns
}

//Authenticator returns the broadcast authenticator
func (n *Node) Authenticator() *Authenticator {
	return n.auth
}

//Discovery returns the discovery loop
func (n *Node) Discovery() *Discovery {
	return n.discovery
}

//Heartbeat returns the heartbeat scheduler
func (n *Node) Heartbeat() *HeartbeatScheduler {
	return n.heartbeat
}

//Outbound returns the outbound connection handler
func (n *Node) Outbound() *Outbound {
	return n.outbound
}
