package node

import (
	"context"
	"math"
	"strings"
	"time"

	"github.com/fluxnet/fluxnet/src/net"
	"github.com/fluxnet/fluxnet/src/peers"
	"github.com/sirupsen/logrus"
)

// Connector opens outbound connections on behalf of discovery.
type Connector interface {
	// Initiate starts connecting to ip in the background. It returns false
	// when a connection attempt to ip is already in flight.
	Initiate(ip string) bool

	// Pending reports whether a connection attempt to ip is in flight.
	Pending(ip string) bool
}

// DiscoveryConfig holds the parameters of the discovery loop.
type DiscoveryConfig struct {
	SelfIP          string
	MinPeers        int
	Fast            time.Duration
	Slow            time.Duration
	RegistryTimeout time.Duration
}

// Discovery keeps the number of outbound connections near its target by
// dialing one random registry node per round.
type Discovery struct {
	conf      DiscoveryConfig
	registry  peers.Registry
	conns     *ConnectionRegistry
	selector  PeerSelector
	connector Connector
	task      *RecurringTask
	logger    *logrus.Entry
}

// NewDiscovery creates a stopped discovery loop.
func NewDiscovery(conf DiscoveryConfig,
	registry peers.Registry,
	conns *ConnectionRegistry,
	selector PeerSelector,
	connector Connector,
	clock Clock,
	logger *logrus.Entry,
) *Discovery {
	if clock == nil {
		clock = NewRealClock()
	}
	if selector == nil {
		selector = NewRandomPeerSelector()
	}

	d := &Discovery{
		conf:      conf,
		registry:  registry,
		conns:     conns,
		selector:  selector,
		connector: connector,
		logger:    logger,
	}
	d.task = NewRecurringTask(clock, d.Round)

	return d
}

// Start schedules the first round after init.
func (d *Discovery) Start(init time.Duration) {
	d.logger.Info("Discovery started")
	d.task.Start(init)
}

// Stop cancels the pending round.
func (d *Discovery) Stop() {
	d.task.Stop()
}

// Target returns the number of outbound connections wanted for a registry of
// n nodes: the lesser of MinPeers and 2% of n. The result is not rounded.
func (d *Discovery) Target(n int) float64 {
	return math.Min(float64(d.conf.MinPeers), float64(n)/50)
}

// Round runs one discovery step and returns the delay before the next one.
func (d *Discovery) Round() time.Duration {
	ctx := context.Background()
	if d.conf.RegistryTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, d.conf.RegistryTimeout)
		defer cancel()
	}

	list, err := d.registry.Query(ctx, "")
	if err != nil {
		d.logger.WithError(err).Warn("Discovery registry query failed")
		list = nil
	}

	target := d.Target(len(list))
	current := len(d.conns.ListOutboundIPs())

	if float64(current) >= target {
		return d.conf.Slow
	}

	if ip, ok := d.candidate(list); ok {
		d.logger.WithFields(logrus.Fields{
			"ip":      ip,
			"current": current,
			"target":  target,
		}).Info("Adding peer")
		d.connector.Initiate(ip)
	}

	return d.conf.Fast
}

// candidate picks a random registry node and returns its ip if it can be
// dialed: not an onion address, not this node, not already connected or
// being connected.
func (d *Discovery) candidate(list []peers.NodeRecord) (string, bool) {
	rec, ok := d.selector.Next(list)
	if !ok {
		return "", false
	}

	ip := net.StripRegistryPort(rec.IPAddress)

	switch {
	case ip == "":
		return "", false
	case strings.Contains(ip, "onion"):
		return "", false
	case ip == d.conf.SelfIP:
		return "", false
	case d.conns.HasOutbound(ip):
		return "", false
	case d.connector.Pending(ip):
		return "", false
	}

	return ip, true
}
