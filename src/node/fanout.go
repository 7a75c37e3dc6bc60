package node

import (
	"context"
	"fmt"
	"time"

	"github.com/fluxnet/fluxnet/src/net"
	"github.com/sirupsen/logrus"
)

// Fanout delivers messages to every outbound connection, best effort.
type Fanout struct {
	registry     *ConnectionRegistry
	writeTimeout time.Duration
	stats        *Metrics
	logger       *logrus.Entry
}

// NewFanout creates a Fanout over registry. A writeTimeout of zero leaves
// writes bounded only by the caller's context.
func NewFanout(registry *ConnectionRegistry, writeTimeout time.Duration, stats *Metrics, logger *logrus.Entry) *Fanout {
	return &Fanout{
		registry:     registry,
		writeTimeout: writeTimeout,
		stats:        stats,
		logger:       logger,
	}
}

// SendToAll sends data to every registered connection, then removes and
// closes the connections whose send failed. It returns the pruned IPs. A
// failure never prevents the remaining sends, and nothing is retried.
func (f *Fanout) SendToAll(ctx context.Context, data []byte) []string {
	snapshot := f.registry.Snapshot()

	failed := []OutboundPeer{}
	for _, peer := range snapshot {
		if err := f.send(ctx, peer.Conn, data); err != nil {
			f.logger.WithError(err).WithField("ip", peer.IP).Debug("Send failed")
			failed = append(failed, peer)
		}
	}

	pruned := []string{}
	for _, peer := range failed {
		if f.prune(peer.IP, peer.Conn) {
			pruned = append(pruned, peer.IP)
		}
	}
	f.stats.recordPruned(len(pruned))

	return pruned
}

// SendTo sends data to the outbound connection of ip. A connection whose send
// fails is removed and closed.
func (f *Fanout) SendTo(ctx context.Context, ip string, data []byte) error {
	conn, ok := f.registry.OutboundConn(ip)
	if !ok {
		return fmt.Errorf("%w: no outbound connection to %s", ErrTransport, ip)
	}

	if err := f.send(ctx, conn, data); err != nil {
		if f.prune(ip, conn) {
			f.stats.recordPruned(1)
		}
		return err
	}

	return nil
}

func (f *Fanout) send(ctx context.Context, conn net.Conn, data []byte) error {
	if f.writeTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, f.writeTimeout)
		defer cancel()
	}

	if err := conn.Send(ctx, data); err != nil {
		return fmt.Errorf("%w: %v", ErrTransport, err)
	}

	f.stats.recordMessage("out", "broadcast")

	return nil
}

// prune removes conn if it is still the connection of ip. A connection
// registered for ip after the failed send is left alone.
func (f *Fanout) prune(ip string, conn net.Conn) bool {
	if !f.registry.RemoveConn(ip, conn) {
		return false
	}

	f.logger.WithField("ip", ip).Info("Outbound connection removed")
	conn.Close(net.StatusNormalClosure, "send failed")

	return true
}
