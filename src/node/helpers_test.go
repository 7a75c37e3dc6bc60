package node

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/fluxnet/fluxnet/src/common"
	"github.com/fluxnet/fluxnet/src/crypto/keys"
	"github.com/fluxnet/fluxnet/src/net"
	"github.com/fluxnet/fluxnet/src/peers"
	"github.com/sirupsen/logrus"
)

var epoch = time.Date(2020, time.January, 1, 0, 0, 0, 0, time.UTC)

type testIdentity struct {
	key      *keys.SigningKey
	pubKey   string
	identity *keys.KeyIdentity
}

func newTestIdentity(t testing.TB) testIdentity {
	key, err := keys.GenerateKey()
	if err != nil {
		t.Fatal(err)
	}
	id := keys.NewKeyIdentity(key)
	return testIdentity{
		key:      key,
		pubKey:   id.PublicKeyHex(key),
		identity: id,
	}
}

func testEntry(t testing.TB) *logrus.Entry {
	return common.NewTestEntry(t, common.TestLogLevel)
}

func newTestAuth(t testing.TB, registry peers.Registry, id testIdentity, clock Clock) *Authenticator {
	return NewAuthenticator(DefaultAuthConfig(), registry, id.identity, clock, nil, testEntry(t))
}

// countingRegistry counts queries and can fail filtered or unfiltered ones.
type countingRegistry struct {
	sync.Mutex
	inner          peers.Registry
	failFiltered   bool
	failUnfiltered bool
	filtered       int
	unfiltered     int
}

func (r *countingRegistry) Query(ctx context.Context, filter string) ([]peers.NodeRecord, error) {
	r.Lock()
	if filter == "" {
		r.unfiltered++
	} else {
		r.filtered++
	}
	fail := (filter == "" && r.failUnfiltered) || (filter != "" && r.failFiltered)
	r.Unlock()

	if fail {
		return nil, context.DeadlineExceeded
	}
	return r.inner.Query(ctx, filter)
}

func (r *countingRegistry) counts() (int, int) {
	r.Lock()
	defer r.Unlock()
	return r.filtered, r.unfiltered
}

// fakeConnector records initiated dials and registers an in-memory
// connection for each of them when conns is set.
type fakeConnector struct {
	sync.Mutex
	conns     *ConnectionRegistry
	pending   map[string]bool
	initiated []string
}

func newFakeConnector(conns *ConnectionRegistry) *fakeConnector {
	return &fakeConnector{
		conns:   conns,
		pending: make(map[string]bool),
	}
}

func (c *fakeConnector) Initiate(ip string) bool {
	c.Lock()
	defer c.Unlock()

	c.initiated = append(c.initiated, ip)
	if c.conns != nil {
		local, _ := net.NewInmemPipe("self", ip)
		c.conns.AddOutbound(ip, local)
	}
	return true
}

func (c *fakeConnector) Pending(ip string) bool {
	c.Lock()
	defer c.Unlock()
	return c.pending[ip]
}

func (c *fakeConnector) calls() []string {
	c.Lock()
	defer c.Unlock()
	res := make([]string, len(c.initiated))
	copy(res, c.initiated)
	return res
}

func receiveWithin(t testing.TB, conn net.Conn, d time.Duration) ([]byte, error) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), d)
	defer cancel()
	return conn.Receive(ctx)
}

// sequenceSelector returns the records at the given indexes in turn, wrapping
// around. Negative indexes count from the end of the list.
type sequenceSelector struct {
	sync.Mutex
	indexes []int
	pos     int
}

func newSequenceSelector(indexes ...int) *sequenceSelector {
	return &sequenceSelector{indexes: indexes}
}

func (ps *sequenceSelector) Next(records []peers.NodeRecord) (peers.NodeRecord, bool) {
	if len(records) == 0 || len(ps.indexes) == 0 {
		return peers.NodeRecord{}, false
	}

	ps.Lock()
	i := ps.indexes[ps.pos%len(ps.indexes)]
	ps.pos++
	ps.Unlock()

	i %= len(records)
	if i < 0 {
		i += len(records)
	}
	return records[i], true
}
