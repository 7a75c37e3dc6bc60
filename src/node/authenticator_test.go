package node

import (
	"context"
	"errors"
	"math"
	"testing"
	"time"

	"github.com/fluxnet/fluxnet/src/crypto/keys"
	"github.com/fluxnet/fluxnet/src/net"
	"github.com/fluxnet/fluxnet/src/peers"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func signedAt(t *testing.T, auth *Authenticator, clock *ManualClock, payload interface{}) ([]byte, time.Time) {
	t.Helper()
	raw, err := auth.SignAndMarshal(payload, "")
	require.NoError(t, err)
	return raw, clock.Now()
}

func TestSignEnvelope(t *testing.T) {
	id := newTestIdentity(t)
	clock := NewManualClock(epoch)
	auth := newTestAuth(t, peers.NewStaticRegistry(), id, clock)

	env, err := auth.Sign("Hello ZelFlux", "")
	require.NoError(t, err)

	assert.Equal(t, net.MessageType, env.Type)
	assert.Equal(t, epoch.UnixMilli(), env.Timestamp)
	assert.Equal(t, id.pubKey, env.PubKey)
	assert.Equal(t, "Hello ZelFlux", env.Data)
	assert.True(t, keys.VerifyMessage("Hello ZelFlux", id.pubKey, env.Signature))
}

func TestSignOverrideKey(t *testing.T) {
	id := newTestIdentity(t)
	other := newTestIdentity(t)
	auth := newTestAuth(t, peers.NewStaticRegistry(), id, NewManualClock(epoch))

	wif, err := keys.EncodeWIF(other.key)
	require.NoError(t, err)

	env, err := auth.Sign("x", wif)
	require.NoError(t, err)
	assert.Equal(t, other.pubKey, env.PubKey)

	_, err = auth.Sign("x", "garbage")
	assert.Error(t, err)
}

func TestVerify(t *testing.T) {
	id := newTestIdentity(t)
	clock := NewManualClock(epoch)
	registry := peers.NewStaticRegistry(peers.NewNodeRecord(id.pubKey, "10.0.0.1"))
	auth := newTestAuth(t, registry, id, clock)
	ctx := context.Background()

	raw, ts := signedAt(t, auth, clock, "Hello ZelFlux")

	assert.True(t, auth.Verify(ctx, raw, nil, ts))
	// a zero time means the authenticator clock
	assert.True(t, auth.Verify(ctx, raw, nil, time.Time{}))

	// up to 120 seconds in the future is tolerated
	assert.True(t, auth.Verify(ctx, raw, nil, ts.Add(-120*time.Second)))
	assert.False(t, auth.Verify(ctx, raw, nil, ts.Add(-120*time.Second-time.Millisecond)))

	// Verify does not care about age
	assert.True(t, auth.Verify(ctx, raw, nil, ts.Add(time.Hour)))
}

func TestVerifyStructuredPayload(t *testing.T) {
	id := newTestIdentity(t)
	clock := NewManualClock(epoch)
	registry := peers.NewStaticRegistry(peers.NewNodeRecord(id.pubKey, "10.0.0.1"))
	auth := newTestAuth(t, registry, id, clock)

	raw, ts := signedAt(t, auth, clock, net.NewPing(epoch.UnixMilli()))
	assert.True(t, auth.Verify(context.Background(), raw, nil, ts))

	env, err := net.UnmarshalEnvelope(raw)
	require.NoError(t, err)
	hb, ok := net.ParseHeartbeat(env.Data)
	require.True(t, ok)
	assert.Equal(t, net.Ping, hb.Message)
}

func TestVerifySignatureMismatch(t *testing.T) {
	id := newTestIdentity(t)
	clock := NewManualClock(epoch)
	registry := peers.NewStaticRegistry(peers.NewNodeRecord(id.pubKey, "10.0.0.1"))
	auth := newTestAuth(t, registry, id, clock)
	ctx := context.Background()

	env, err := auth.Sign("original", "")
	require.NoError(t, err)

	env.Data = "tampered"
	raw, err := env.Marshal()
	require.NoError(t, err)
	assert.False(t, auth.Verify(ctx, raw, nil, epoch))

	// a valid signature claimed by another registered key
	other := newTestIdentity(t)
	registry.SetRecords([]peers.NodeRecord{
		peers.NewNodeRecord(id.pubKey, "10.0.0.1"),
		peers.NewNodeRecord(other.pubKey, "10.0.0.2"),
	})
	env.Data = "original"
	env.PubKey = other.pubKey
	raw, err = env.Marshal()
	require.NoError(t, err)
	assert.False(t, auth.Verify(ctx, raw, nil, epoch))

	_, err = auth.Check(ctx, raw, nil, epoch)
	assert.True(t, errors.Is(err, ErrAuthentication))
}

func TestVerifyUnknownSigner(t *testing.T) {
	id := newTestIdentity(t)
	clock := NewManualClock(epoch)
	auth := newTestAuth(t, peers.NewStaticRegistry(), id, clock)

	raw, ts := signedAt(t, auth, clock, "x")
	assert.False(t, auth.Verify(context.Background(), raw, nil, ts))
}

func TestVerifyMalformed(t *testing.T) {
	id := newTestIdentity(t)
	auth := newTestAuth(t, peers.NewStaticRegistry(), id, NewManualClock(epoch))
	ctx := context.Background()

	for _, raw := range []string{``, `Hello`, `{"data":"x"}`, `{"pubKey":"02","timestamp":"now","data":"x"}`} {
		assert.False(t, auth.Verify(ctx, []byte(raw), nil, epoch), raw)
		assert.False(t, auth.VerifyOriginal(ctx, []byte(raw), nil, epoch), raw)
		assert.False(t, auth.VerifyFreshness([]byte(raw), epoch), raw)
	}
}

func TestVerifyOriginal(t *testing.T) {
	id := newTestIdentity(t)
	clock := NewManualClock(epoch)
	registry := peers.NewStaticRegistry(peers.NewNodeRecord(id.pubKey, "10.0.0.1"))
	auth := newTestAuth(t, registry, id, clock)
	ctx := context.Background()

	raw, ts := signedAt(t, auth, clock, "x")

	assert.True(t, auth.VerifyOriginal(ctx, raw, nil, ts))
	assert.True(t, auth.VerifyOriginal(ctx, raw, nil, ts.Add(300*time.Second)))
	assert.False(t, auth.VerifyOriginal(ctx, raw, nil, ts.Add(300*time.Second+time.Millisecond)))
	assert.False(t, auth.VerifyOriginal(ctx, raw, nil, ts.Add(time.Hour)))

	_, err := auth.CheckOriginal(ctx, raw, nil, ts.Add(time.Hour))
	assert.Equal(t, ErrStale, err)

	// still subject to the future window
	assert.False(t, auth.VerifyOriginal(ctx, raw, nil, ts.Add(-121*time.Second)))
}

func TestVerifyFreshness(t *testing.T) {
	id := newTestIdentity(t)
	clock := NewManualClock(epoch)
	// freshness never looks at the registry
	auth := newTestAuth(t, peers.NewStaticRegistry(), id, clock)

	raw, ts := signedAt(t, auth, clock, "x")

	assert.True(t, auth.VerifyFreshness(raw, ts))
	assert.True(t, auth.VerifyFreshness(raw, ts.Add(300*time.Second-time.Millisecond)))
	assert.False(t, auth.VerifyFreshness(raw, ts.Add(300*time.Second)))
}

func withTimestamp(t *testing.T, raw []byte, ts int64) []byte {
	t.Helper()
	env, err := net.UnmarshalEnvelope(raw)
	require.NoError(t, err)
	env.Timestamp = ts
	out, err := env.Marshal()
	require.NoError(t, err)
	return out
}

func TestVerifyExtremeTimestamps(t *testing.T) {
	id := newTestIdentity(t)
	clock := NewManualClock(epoch)
	registry := peers.NewStaticRegistry(peers.NewNodeRecord(id.pubKey, "10.0.0.1"))
	auth := newTestAuth(t, registry, id, clock)
	ctx := context.Background()

	raw, now := signedAt(t, auth, clock, "x")

	// the signature covers the payload only, so the timestamp can be moved
	ancient := withTimestamp(t, raw, math.MinInt64+1000)
	assert.True(t, auth.Verify(ctx, ancient, nil, now))
	assert.False(t, auth.VerifyFreshness(ancient, now))
	_, err := auth.CheckOriginal(ctx, ancient, nil, now)
	assert.Equal(t, ErrStale, err)

	distant := withTimestamp(t, raw, math.MaxInt64-1000)
	assert.False(t, auth.Verify(ctx, distant, nil, now))
	assert.True(t, auth.VerifyFreshness(distant, now))
	assert.False(t, auth.VerifyOriginal(ctx, distant, nil, now))
}

func TestVerifyNodeList(t *testing.T) {
	id := newTestIdentity(t)
	clock := NewManualClock(epoch)
	registry := &countingRegistry{inner: peers.NewStaticRegistry()}
	auth := newTestAuth(t, registry, id, clock)
	ctx := context.Background()

	raw, ts := signedAt(t, auth, clock, "x")

	list := []peers.NodeRecord{peers.NewNodeRecord(id.pubKey, "10.0.0.1")}
	assert.True(t, auth.Verify(ctx, raw, list, ts))
	f, u := registry.counts()
	assert.Equal(t, 0, f+u)

	// a supplied list without the signer falls back to the registry
	assert.False(t, auth.Verify(ctx, raw, []peers.NodeRecord{}, ts))
	f, u = registry.counts()
	assert.Equal(t, 1, f)
	assert.Equal(t, 1, u)
}

func TestVerifyRegistryFallback(t *testing.T) {
	id := newTestIdentity(t)
	clock := NewManualClock(epoch)
	registry := &countingRegistry{
		inner:        peers.NewStaticRegistry(peers.NewNodeRecord(id.pubKey, "10.0.0.1")),
		failFiltered: true,
	}
	auth := newTestAuth(t, registry, id, clock)
	ctx := context.Background()

	raw, ts := signedAt(t, auth, clock, "x")

	assert.True(t, auth.Verify(ctx, raw, nil, ts))
	f, u := registry.counts()
	assert.Equal(t, 1, f)
	assert.Equal(t, 1, u)

	registry.failFiltered = false
	assert.True(t, auth.Verify(ctx, raw, nil, ts))
	f, u = registry.counts()
	assert.Equal(t, 2, f)
	assert.Equal(t, 1, u)

	registry.failFiltered = true
	registry.failUnfiltered = true
	assert.False(t, auth.Verify(ctx, raw, nil, ts))
}

// A filtered query that returns several records is not trusted; the signer
// is looked up in the full list instead.
func TestVerifyAmbiguousFilter(t *testing.T) {
	id := newTestIdentity(t)
	clock := NewManualClock(epoch)
	registry := &countingRegistry{inner: peers.NewStaticRegistry(
		peers.NewNodeRecord(id.pubKey, "10.0.0.1"),
		peers.NewNodeRecord(id.pubKey+"00", "10.0.0.2"),
	)}
	auth := newTestAuth(t, registry, id, clock)

	raw, ts := signedAt(t, auth, clock, "x")
	assert.True(t, auth.Verify(context.Background(), raw, nil, ts))
	_, u := registry.counts()
	assert.Equal(t, 1, u)
}

func TestVerifyStatusFlip(t *testing.T) {
	id := newTestIdentity(t)
	clock := NewManualClock(epoch)
	registry := peers.NewStaticRegistry(peers.NewNodeRecord(id.pubKey, "10.0.0.1"))
	auth := newTestAuth(t, registry, id, clock)
	ctx := context.Background()

	raw, ts := signedAt(t, auth, clock, "x")
	require.True(t, auth.Verify(ctx, raw, nil, ts))

	registry.SetStatus(id.pubKey, "EXPIRED")
	assert.False(t, auth.Verify(ctx, raw, nil, ts))

	registry.SetStatus(id.pubKey, peers.StatusEnabled)
	assert.True(t, auth.Verify(ctx, raw, nil, ts))
}
