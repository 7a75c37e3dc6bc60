package node

import (
	"context"
	"fmt"
	"time"

	"github.com/fluxnet/fluxnet/src/net"
	"github.com/sirupsen/logrus"
	"golang.org/x/time/rate"
)

// InboundConfig holds the parameters of inbound connection handling.
type InboundConfig struct {
	SelfIP       string
	WriteTimeout time.Duration
	// Rate is the number of messages per second a connection may send. Zero
	// or less disables the limit.
	Rate  float64
	Burst int
}

// Inbound answers the messages of connections accepted by the listener.
type Inbound struct {
	conf   InboundConfig
	auth   *Authenticator
	clock  Clock
	stats  *Metrics
	logger *logrus.Entry
}

// NewInbound creates an Inbound handler.
func NewInbound(conf InboundConfig, auth *Authenticator, clock Clock, stats *Metrics, logger *logrus.Entry) *Inbound {
	if clock == nil {
		clock = NewRealClock()
	}
	return &Inbound{
		conf:   conf,
		auth:   auth,
		clock:  clock,
		stats:  stats,
		logger: logger,
	}
}

// ReceivedReply is the text sent back for an accepted broadcast.
func (h *Inbound) ReceivedReply() string {
	return fmt.Sprintf("ZelFlux %s says message received!", h.conf.SelfIP)
}

// OutdatedReply is the text sent back for an authentic but outdated
// broadcast.
func (h *Inbound) OutdatedReply() string {
	return fmt.Sprintf("ZelFlux %s says message received but your message is outdated!", h.conf.SelfIP)
}

// Handle reads the messages of conn until the connection ends or is closed
// for a policy violation. It does not track conn; the listener does.
func (h *Inbound) Handle(ctx context.Context, conn net.Conn) {
	h.stats.inboundOpened()
	defer h.stats.inboundClosed()

	logger := h.logger.WithField("ip", conn.RemoteIP())
	logger.Debug("Inbound connection open")

	var limiter *rate.Limiter
	if h.conf.Rate > 0 {
		burst := h.conf.Burst
		if burst < 1 {
			burst = 1
		}
		limiter = rate.NewLimiter(rate.Limit(h.conf.Rate), burst)
	}

	for {
		msg, err := conn.Receive(ctx)
		if err != nil {
			logger.WithError(err).Debug("Inbound read loop done")
			return
		}

		if limiter != nil && !limiter.Allow() {
			h.stats.recordMessage("in", "dropped")
			logger.Debug("Inbound message over rate limit dropped")
			continue
		}

		if !h.HandleMessage(ctx, conn, msg) {
			return
		}
	}
}

// HandleMessage answers one message. It returns false when the connection was
// closed because the message failed authentication.
func (h *Inbound) HandleMessage(ctx context.Context, conn net.Conn, msg []byte) bool {
	h.stats.recordMessage("in", "inbound")

	now := h.clock.Now()
	env, err := h.auth.Check(ctx, msg, nil, now)
	messageOK := err == nil
	freshOK := h.auth.VerifyFreshness(msg, now)

	logger := h.logger.WithField("ip", conn.RemoteIP())

	switch {
	case messageOK && freshOK:
		if ping, ok := net.HeartbeatMessage(env.Data, net.Ping); ok {
			pong, err := h.auth.SignAndMarshal(net.PongFor(ping), "")
			if err != nil {
				logger.WithError(err).Error("Signing pong")
				return true
			}
			h.reply(ctx, conn, pong, "pong")
		} else {
			h.reply(ctx, conn, []byte(h.ReceivedReply()), "received")
		}
	case messageOK:
		logger.WithError(ErrStale).Debug("Outdated broadcast")
		h.reply(ctx, conn, []byte(h.OutdatedReply()), "outdated")
	default:
		logger.WithError(err).Info("Closing inbound connection")
		conn.Close(net.StatusPolicyViolation, "broadcast authentication failed")
		return false
	}

	return true
}

func (h *Inbound) reply(ctx context.Context, conn net.Conn, data []byte, kind string) {
	if h.conf.WriteTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, h.conf.WriteTimeout)
		defer cancel()
	}

	if err := conn.Send(ctx, data); err != nil {
		h.logger.WithError(err).WithField("ip", conn.RemoteIP()).Debug("Inbound reply failed")
		return
	}
	h.stats.recordMessage("out", kind)
}
