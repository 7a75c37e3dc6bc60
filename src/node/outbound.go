package node

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/fluxnet/fluxnet/src/net"
	"github.com/sirupsen/logrus"
)

// Greeting is the payload broadcast to a peer right after connecting to it.
const Greeting = "Hello ZelFlux"

// DialFunc opens a connection to the overlay endpoint of ip.
type DialFunc func(ctx context.Context, ip string) (net.Conn, error)

// WSDialer returns a DialFunc dialing ws://<ip>:<port><path>.
func WSDialer(port int, path string) DialFunc {
	return func(ctx context.Context, ip string) (net.Conn, error) {
		return net.Dial(ctx, ip, port, path)
	}
}

// OutboundConfig holds the timeouts of outbound connections.
type OutboundConfig struct {
	DialTimeout  time.Duration
	WriteTimeout time.Duration
}

// Outbound opens outbound connections, registers them, and runs their read
// loops. It implements Connector.
type Outbound struct {
	conf   OutboundConfig
	conns  *ConnectionRegistry
	auth   *Authenticator
	dial   DialFunc
	clock  Clock
	stats  *Metrics
	logger *logrus.Entry

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	l       sync.Mutex
	pending map[string]struct{}
}

// NewOutbound creates an Outbound handler.
func NewOutbound(conf OutboundConfig,
	conns *ConnectionRegistry,
	auth *Authenticator,
	dial DialFunc,
	clock Clock,
	stats *Metrics,
	logger *logrus.Entry,
) *Outbound {
	if clock == nil {
		clock = NewRealClock()
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Outbound{
		conf:    conf,
		conns:   conns,
		auth:    auth,
		dial:    dial,
		clock:   clock,
		stats:   stats,
		logger:  logger,
		ctx:     ctx,
		cancel:  cancel,
		pending: make(map[string]struct{}),
	}
}

// Initiate implements Connector.
func (o *Outbound) Initiate(ip string) bool {
	o.l.Lock()
	if _, ok := o.pending[ip]; ok {
		o.l.Unlock()
		return false
	}
	o.pending[ip] = struct{}{}
	o.l.Unlock()

	o.wg.Add(1)
	go func() {
		defer o.wg.Done()
		defer o.clearPending(ip)

		if err := o.Connect(o.ctx, ip); err != nil {
			o.logger.WithError(err).WithField("ip", ip).Debug("Outbound connection failed")
		}
	}()

	return true
}

// Pending implements Connector.
func (o *Outbound) Pending(ip string) bool {
	o.l.Lock()
	defer o.l.Unlock()
	_, ok := o.pending[ip]
	return ok
}

func (o *Outbound) clearPending(ip string) {
	o.l.Lock()
	delete(o.pending, ip)
	o.l.Unlock()
}

// Connect dials ip, registers the connection, greets the peer and starts the
// read loop. If ip got registered by someone else meanwhile, the new
// connection is closed.
func (o *Outbound) Connect(ctx context.Context, ip string) error {
	dialCtx := ctx
	if o.conf.DialTimeout > 0 {
		var cancel context.CancelFunc
		dialCtx, cancel = context.WithTimeout(ctx, o.conf.DialTimeout)
		defer cancel()
	}

	conn, err := o.dial(dialCtx, ip)
	if err != nil {
		o.stats.recordDial("error")
		return fmt.Errorf("%w: %v", ErrTransport, err)
	}

	if !o.conns.AddOutbound(ip, conn) {
		o.stats.recordDial("duplicate")
		conn.Close(net.StatusNormalClosure, "already connected")
		return fmt.Errorf("already connected to %s", ip)
	}
	o.stats.recordDial("ok")

	o.logger.WithFields(logrus.Fields{
		"ip":       ip,
		"outbound": o.conns.Len(),
	}).Info("Outbound connection open")

	o.wg.Add(1)
	go o.readLoop(ip, conn)

	if err := o.greet(ctx, conn); err != nil {
		o.logger.WithError(err).WithField("ip", ip).Debug("Greeting failed")
		o.drop(ip, conn)
		return err
	}

	return nil
}

func (o *Outbound) greet(ctx context.Context, conn net.Conn) error {
	data, err := o.auth.SignAndMarshal(Greeting, "")
	if err != nil {
		return err
	}

	if o.conf.WriteTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, o.conf.WriteTimeout)
		defer cancel()
	}

	if err := conn.Send(ctx, data); err != nil {
		return fmt.Errorf("%w: %v", ErrTransport, err)
	}
	o.stats.recordMessage("out", "greeting")

	return nil
}

// readLoop handles the messages of an outbound connection until it ends, then
// removes it from the registry.
func (o *Outbound) readLoop(ip string, conn net.Conn) {
	defer o.wg.Done()
	defer o.drop(ip, conn)

	for {
		msg, err := conn.Receive(o.ctx)
		if err != nil {
			o.logger.WithError(err).WithField("ip", ip).Debug("Outbound read loop done")
			return
		}
		o.handleMessage(ip, msg)
	}
}

// handleMessage records the round trip time of authentic pongs and ignores
// everything else.
func (o *Outbound) handleMessage(ip string, msg []byte) {
	o.stats.recordMessage("in", "outbound")

	env, err := o.auth.CheckOriginal(o.ctx, msg, nil, o.clock.Now())
	if err != nil {
		return
	}

	hb, ok := net.ParseHeartbeat(env.Data)
	if !ok || hb.Message != net.Pong {
		return
	}

	rtt := time.Duration(o.clock.Now().UnixMilli()-hb.Timestamp) * time.Millisecond
	if o.conns.UpdateRTT(ip, rtt) {
		o.logger.WithFields(logrus.Fields{
			"ip":  ip,
			"rtt": rtt,
		}).Debug("Pong")
	}
}

// drop unregisters conn if it is still the connection of ip, and closes it.
func (o *Outbound) drop(ip string, conn net.Conn) {
	if o.conns.RemoveConn(ip, conn) {
		o.logger.WithField("ip", ip).Info("Outbound connection closed")
	}
	conn.Close(net.StatusNormalClosure, "")
}

// Shutdown closes every outbound connection and waits for the read loops and
// pending dials to finish.
func (o *Outbound) Shutdown() {
	o.cancel()
	for _, conn := range o.conns.RemoveAll() {
		conn.Close(net.StatusNormalClosure, "shutdown")
	}
	o.wg.Wait()
}
