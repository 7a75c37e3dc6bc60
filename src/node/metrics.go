package node

import (
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	metricsInitOnce sync.Once
	sharedMetrics   *Metrics
)

// Metrics are the prometheus collectors of the overlay. A nil *Metrics
// records nothing.
type Metrics struct {
	outboundPeers prometheus.Gauge
	inboundPeers  prometheus.Gauge
	peerRTT       *prometheus.GaugeVec
	medianRTT     prometheus.Gauge
	verifications *prometheus.CounterVec
	messages      *prometheus.CounterVec
	pruned        prometheus.Counter
	dials         *prometheus.CounterVec
}

// NewMetrics creates the collectors and registers them with reg.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		outboundPeers: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "fluxnet_outbound_peers",
			Help: "Number of registered outbound connections.",
		}),
		inboundPeers: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "fluxnet_inbound_peers",
			Help: "Number of inbound connections being served.",
		}),
		peerRTT: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "fluxnet_peer_rtt_milliseconds",
			Help: "Last heartbeat round trip time per outbound peer.",
		}, []string{"ip"}),
		medianRTT: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "fluxnet_peer_rtt_median_milliseconds",
			Help: "Median round trip time over the measured outbound peers.",
		}),
		verifications: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "fluxnet_broadcast_verifications_total",
			Help: "Broadcast verification outcomes.",
		}, []string{"result"}),
		messages: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "fluxnet_messages_total",
			Help: "Messages by direction and kind.",
		}, []string{"direction", "kind"}),
		pruned: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "fluxnet_pruned_connections_total",
			Help: "Outbound connections removed after a failed send.",
		}),
		dials: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "fluxnet_dials_total",
			Help: "Outbound dial outcomes.",
		}, []string{"result"}),
	}
	reg.MustRegister(m.outboundPeers, m.inboundPeers, m.peerRTT, m.medianRTT, m.verifications, m.messages, m.pruned, m.dials)
	return m
}

// DefaultMetrics returns the collectors registered with the default
// prometheus registry. They are created once per process.
func DefaultMetrics() *Metrics {
	metricsInitOnce.Do(func() {
		sharedMetrics = NewMetrics(prometheus.DefaultRegisterer)
	})
	return sharedMetrics
}

func (m *Metrics) setOutbound(n int) {
	if m == nil {
		return
	}
	m.outboundPeers.Set(float64(n))
}

func (m *Metrics) inboundOpened() {
	if m == nil {
		return
	}
	m.inboundPeers.Inc()
}

func (m *Metrics) inboundClosed() {
	if m == nil {
		return
	}
	m.inboundPeers.Dec()
}

func (m *Metrics) observeRTT(ip string, ms float64) {
	if m == nil {
		return
	}
	m.peerRTT.WithLabelValues(ip).Set(ms)
}

func (m *Metrics) setMedianRTT(d time.Duration) {
	if m == nil {
		return
	}
	m.medianRTT.Set(float64(d) / float64(time.Millisecond))
}

func (m *Metrics) forgetPeer(ip string) {
	if m == nil {
		return
	}
	m.peerRTT.DeleteLabelValues(ip)
}

func (m *Metrics) recordVerification(result string) {
	if m == nil {
		return
	}
	if result == "" {
		result = "unknown"
	}
	m.verifications.WithLabelValues(result).Inc()
}

func (m *Metrics) recordMessage(direction, kind string) {
	if m == nil {
		return
	}
	m.messages.WithLabelValues(direction, kind).Inc()
}

func (m *Metrics) recordPruned(n int) {
	if m == nil || n == 0 {
		return
	}
	m.pruned.Add(float64(n))
}

func (m *Metrics) recordDial(result string) {
	if m == nil {
		return
	}
	m.dials.WithLabelValues(result).Inc()
}
