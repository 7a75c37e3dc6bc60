package node

import (
	"sync"
	"time"

	"github.com/fluxnet/fluxnet/src/common"
	"github.com/fluxnet/fluxnet/src/net"
)

// OutboundPeer is a connection this node opened. The registry entry owns the
// connection.
type OutboundPeer struct {
	IP          string
	Conn        net.Conn
	Established time.Time
}

// PeerMetric holds the last measured round trip time of an outbound peer.
// Measured is false until the first pong arrives.
type PeerMetric struct {
	IP       string
	RTT      time.Duration
	Measured bool
}

// RTTMillis returns the round trip time in milliseconds, or nil when it was
// never measured.
func (m PeerMetric) RTTMillis() *int64 {
	if !m.Measured {
		return nil
	}
	ms := int64(m.RTT / time.Millisecond)
	return &ms
}

// ConnectionRegistry is the set of outbound connections together with their
// metrics. Both sets always hold the same IPs: every mutation updates them in
// a single critical section.
type ConnectionRegistry struct {
	sync.Mutex
	order    []string
	outbound map[string]*OutboundPeer
	metrics  map[string]*PeerMetric
	clock    Clock
	stats    *Metrics
}

// NewConnectionRegistry creates an empty registry.
func NewConnectionRegistry(clock Clock, stats *Metrics) *ConnectionRegistry {
	if clock == nil {
		clock = NewRealClock()
	}
	return &ConnectionRegistry{
		outbound: make(map[string]*OutboundPeer),
		metrics:  make(map[string]*PeerMetric),
		clock:    clock,
		stats:    stats,
	}
}

// AddOutbound registers conn as the outbound connection to ip, with an
// unmeasured metric. It returns false, and changes nothing, when ip is already
// registered.
func (r *ConnectionRegistry) AddOutbound(ip string, conn net.Conn) bool {
	r.Lock()
	defer r.Unlock()

	if _, ok := r.outbound[ip]; ok {
		return false
	}

	r.outbound[ip] = &OutboundPeer{
		IP:          ip,
		Conn:        conn,
		Established: r.clock.Now(),
	}
	r.metrics[ip] = &PeerMetric{IP: ip}
	r.order = append(r.order, ip)

	r.stats.setOutbound(len(r.order))

	return true
}

// RemoveOutboundByIP removes the connection and the metric of ip. It returns
// the removed connection so the caller can close it. Removing an unknown ip
// is a no-op.
func (r *ConnectionRegistry) RemoveOutboundByIP(ip string) (net.Conn, bool) {
	r.Lock()
	defer r.Unlock()

	return r.removeLocked(ip)
}

// RemoveConn removes ip only if its registered connection is conn, so that a
// read loop ending late never removes a newer connection to the same ip.
func (r *ConnectionRegistry) RemoveConn(ip string, conn net.Conn) bool {
	r.Lock()
	defer r.Unlock()

	peer, ok := r.outbound[ip]
	if !ok || peer.Conn != conn {
		return false
	}

	_, removed := r.removeLocked(ip)
	return removed
}

func (r *ConnectionRegistry) removeLocked(ip string) (net.Conn, bool) {
	peer, ok := r.outbound[ip]
	if !ok {
		return nil, false
	}

	delete(r.outbound, ip)
	delete(r.metrics, ip)
	for i, o := range r.order {
		if o == ip {
			r.order = append(r.order[:i], r.order[i+1:]...)
			break
		}
	}

	r.stats.setOutbound(len(r.order))
	r.stats.forgetPeer(ip)
	r.stats.setMedianRTT(r.medianLocked())

	return peer.Conn, true
}

// RemoveAll empties the registry and returns the connections it held.
func (r *ConnectionRegistry) RemoveAll() []net.Conn {
	r.Lock()
	defer r.Unlock()

	conns := make([]net.Conn, 0, len(r.order))
	for _, ip := range r.order {
		conns = append(conns, r.outbound[ip].Conn)
		r.stats.forgetPeer(ip)
	}

	r.order = nil
	r.outbound = make(map[string]*OutboundPeer)
	r.metrics = make(map[string]*PeerMetric)
	r.stats.setOutbound(0)
	r.stats.setMedianRTT(0)

	return conns
}

// OutboundConn returns the connection registered for ip.
func (r *ConnectionRegistry) OutboundConn(ip string) (net.Conn, bool) {
	r.Lock()
	defer r.Unlock()

	peer, ok := r.outbound[ip]
	if !ok {
		return nil, false
	}
	return peer.Conn, true
}

// FindMetricByIP returns a copy of the metric of ip.
func (r *ConnectionRegistry) FindMetricByIP(ip string) (PeerMetric, bool) {
	r.Lock()
	defer r.Unlock()

	m, ok := r.metrics[ip]
	if !ok {
		return PeerMetric{}, false
	}
	return *m, true
}

// UpdateRTT records a round trip time for ip. It returns false when ip is not
// registered.
func (r *ConnectionRegistry) UpdateRTT(ip string, rtt time.Duration) bool {
	r.Lock()
	defer r.Unlock()

	m, ok := r.metrics[ip]
	if !ok {
		return false
	}
	m.RTT = rtt
	m.Measured = true

	r.stats.observeRTT(ip, float64(rtt)/float64(time.Millisecond))
	r.stats.setMedianRTT(r.medianLocked())

	return true
}

// MedianRTT returns the median round trip time of the measured peers, and
// false when none was measured yet.
func (r *ConnectionRegistry) MedianRTT() (time.Duration, bool) {
	r.Lock()
	defer r.Unlock()

	rtts := r.measuredLocked()
	if len(rtts) == 0 {
		return 0, false
	}
	return common.MedianDuration(rtts), true
}

func (r *ConnectionRegistry) measuredLocked() []time.Duration {
	var rtts []time.Duration
	for _, m := range r.metrics {
		if m.Measured {
			rtts = append(rtts, m.RTT)
		}
	}
	return rtts
}

func (r *ConnectionRegistry) medianLocked() time.Duration {
	return common.MedianDuration(r.measuredLocked())
}

// ListOutboundIPs returns the registered IPs in the order they were added.
func (r *ConnectionRegistry) ListOutboundIPs() []string {
	r.Lock()
	defer r.Unlock()

	res := make([]string, len(r.order))
	copy(res, r.order)
	return res
}

// HasOutbound reports whether ip is registered.
func (r *ConnectionRegistry) HasOutbound(ip string) bool {
	r.Lock()
	defer r.Unlock()

	_, ok := r.outbound[ip]
	return ok
}

// Metrics returns a copy of every metric, in insertion order.
func (r *ConnectionRegistry) Metrics() []PeerMetric {
	r.Lock()
	defer r.Unlock()

	res := make([]PeerMetric, 0, len(r.order))
	for _, ip := range r.order {
		res = append(res, *r.metrics[ip])
	}
	return res
}

// Snapshot returns a copy of every outbound entry, in insertion order.
func (r *ConnectionRegistry) Snapshot() []OutboundPeer {
	r.Lock()
	defer r.Unlock()

	res := make([]OutboundPeer, 0, len(r.order))
	for _, ip := range r.order {
		res = append(res, *r.outbound[ip])
	}
	return res
}

// Len returns the number of outbound connections.
func (r *ConnectionRegistry) Len() int {
	r.Lock()
	defer r.Unlock()
	return len(r.order)
}
