package node

import (
	"context"
	"time"

	"github.com/fluxnet/fluxnet/src/net"
	"github.com/sirupsen/logrus"
)

// HeartbeatScheduler broadcasts a signed ping to every outbound peer once per
// period. Pongs are handled by the outbound read loops.
type HeartbeatScheduler struct {
	period time.Duration
	auth   *Authenticator
	fanout *Fanout
	clock  Clock
	task   *RecurringTask
	logger *logrus.Entry
}

// NewHeartbeatScheduler creates a stopped scheduler.
func NewHeartbeatScheduler(period time.Duration, auth *Authenticator, fanout *Fanout, clock Clock, logger *logrus.Entry) *HeartbeatScheduler {
	if clock == nil {
		clock = NewRealClock()
	}

	h := &HeartbeatScheduler{
		period: period,
		auth:   auth,
		fanout: fanout,
		clock:  clock,
		logger: logger,
	}
	h.task = NewRecurringTask(clock, func() time.Duration {
		h.Beat(context.Background())
		return h.period
	})

	return h
}

// Start schedules the first ping one period from now.
func (h *HeartbeatScheduler) Start() {
	h.task.Start(h.period)
}

// Stop cancels the pending ping.
func (h *HeartbeatScheduler) Stop() {
	h.task.Stop()
}

// Beat sends one ping to every outbound peer and returns the IPs pruned
// because the send failed.
func (h *HeartbeatScheduler) Beat(ctx context.Context) []string {
	ping := net.NewPing(h.clock.Now().UnixMilli())

	data, err := h.auth.SignAndMarshal(ping, "")
	if err != nil {
		h.logger.WithError(err).Error("Signing ping")
		return nil
	}

	pruned := h.fanout.SendToAll(ctx, data)
	if len(pruned) > 0 {
		h.logger.WithField("pruned", pruned).Debug("Heartbeat")
	}

	return pruned
}
