package node

import (
	"context"
	"fmt"
	"time"

	"github.com/fluxnet/fluxnet/src/crypto/keys"
	"github.com/fluxnet/fluxnet/src/net"
	"github.com/fluxnet/fluxnet/src/peers"
	"github.com/sirupsen/logrus"
)

// AuthConfig holds the time windows of broadcast verification.
type AuthConfig struct {
	// FutureTolerance is how far ahead of the local clock a timestamp may be.
	FutureTolerance time.Duration
	// StaleAfter is the age after which a broadcast is outdated.
	StaleAfter time.Duration
	// RegistryTimeout bounds each node registry query. Zero means no bound
	// other than the caller's context.
	RegistryTimeout time.Duration
}

// DefaultAuthConfig returns 120 seconds of clock skew tolerance and a 5 minute
// staleness window.
func DefaultAuthConfig() AuthConfig {
	return AuthConfig{
		FutureTolerance: 120 * time.Second,
		StaleAfter:      300 * time.Second,
		RegistryTimeout: 10 * time.Second,
	}
}

// Authenticator signs outgoing broadcasts and verifies incoming ones against
// the node registry. Registry lookups are never cached.
type Authenticator struct {
	conf     AuthConfig
	registry peers.Registry
	identity keys.Identity
	clock    Clock
	stats    *Metrics
	logger   *logrus.Entry
}

// NewAuthenticator creates an Authenticator.
func NewAuthenticator(conf AuthConfig,
	registry peers.Registry,
	identity keys.Identity,
	clock Clock,
	stats *Metrics,
	logger *logrus.Entry,
) *Authenticator {
	if clock == nil {
		clock = NewRealClock()
	}
	return &Authenticator{
		conf:     conf,
		registry: registry,
		identity: identity,
		clock:    clock,
		stats:    stats,
		logger:   logger,
	}
}

// Sign builds an envelope around payload, stamped with the current time and
// signed with the node's key, or with privateKeyOverride when it is not
// empty.
func (a *Authenticator) Sign(payload interface{}, privateKeyOverride string) (*net.Envelope, error) {
	key, err := a.identity.PrivateKey(privateKeyOverride)
	if err != nil {
		return nil, fmt.Errorf("signing key: %w", err)
	}

	message, err := net.CanonicalPayload(payload)
	if err != nil {
		return nil, fmt.Errorf("canonical payload: %w", err)
	}

	data, err := net.NormalizePayload(payload)
	if err != nil {
		return nil, fmt.Errorf("normalize payload: %w", err)
	}

	signature, err := a.identity.Sign(message, key)
	if err != nil {
		return nil, fmt.Errorf("sign: %w", err)
	}

	return &net.Envelope{
		Data:      data,
		PubKey:    a.identity.PublicKeyHex(key),
		Signature: signature,
		Timestamp: a.clock.Now().UnixMilli(),
		Type:      net.MessageType,
	}, nil
}

// SignAndMarshal signs payload and returns the wire bytes of the envelope.
func (a *Authenticator) SignAndMarshal(payload interface{}, privateKeyOverride string) ([]byte, error) {
	env, err := a.Sign(payload, privateKeyOverride)
	if err != nil {
		return nil, err
	}
	return env.Marshal()
}

// Verify reports whether raw is an envelope signed by an ENABLED node and
// whose timestamp is not too far in the future. nodeList, when not nil, is
// searched before the registry. A zero now means the current time.
func (a *Authenticator) Verify(ctx context.Context, raw []byte, nodeList []peers.NodeRecord, now time.Time) bool {
	_, err := a.Check(ctx, raw, nodeList, now)
	return err == nil
}

// VerifyOriginal is Verify, also rejecting envelopes older than the staleness
// window.
func (a *Authenticator) VerifyOriginal(ctx context.Context, raw []byte, nodeList []peers.NodeRecord, now time.Time) bool {
	_, err := a.CheckOriginal(ctx, raw, nodeList, now)
	return err == nil
}

// VerifyFreshness reports whether the timestamp of raw is within the
// staleness window. It checks nothing else.
func (a *Authenticator) VerifyFreshness(raw []byte, now time.Time) bool {
	env, err := net.UnmarshalEnvelope(raw)
	if err != nil {
		return false
	}
	return a.millis(now)-a.conf.StaleAfter.Milliseconds() < env.Timestamp
}

// CheckOriginal is Check with the staleness window applied first. Outdated
// envelopes fail with ErrStale.
func (a *Authenticator) CheckOriginal(ctx context.Context, raw []byte, nodeList []peers.NodeRecord, now time.Time) (*net.Envelope, error) {
	if now.IsZero() {
		now = a.clock.Now()
	}

	env, err := net.UnmarshalEnvelope(raw)
	if err != nil {
		return nil, a.reject("malformed", "", err)
	}

	if a.millis(now)-a.conf.StaleAfter.Milliseconds() > env.Timestamp {
		a.stats.recordVerification("stale")
		a.logger.WithFields(logrus.Fields{
			"pub_key":   env.PubKey,
			"timestamp": env.Timestamp,
		}).Debug("Broadcast outdated")
		return env, ErrStale
	}

	return a.authenticate(ctx, env, nodeList, now)
}

// Check parses and authenticates raw, returning the envelope. Failures wrap
// ErrAuthentication.
func (a *Authenticator) Check(ctx context.Context, raw []byte, nodeList []peers.NodeRecord, now time.Time) (*net.Envelope, error) {
	if now.IsZero() {
		now = a.clock.Now()
	}

	env, err := net.UnmarshalEnvelope(raw)
	if err != nil {
		return nil, a.reject("malformed", "", err)
	}

	return a.authenticate(ctx, env, nodeList, now)
}

func (a *Authenticator) authenticate(ctx context.Context, env *net.Envelope, nodeList []peers.NodeRecord, now time.Time) (*net.Envelope, error) {
	if env.Timestamp > a.millis(now)+a.conf.FutureTolerance.Milliseconds() {
		return nil, a.reject("future", env.PubKey, fmt.Errorf("timestamp %d is ahead of %d", env.Timestamp, a.millis(now)))
	}

	node, ok := a.resolveSigner(ctx, env.PubKey, nodeList)
	if !ok {
		return nil, a.reject("unknown", env.PubKey, fmt.Errorf("signer not in node registry"))
	}

	if !node.Enabled() {
		return nil, a.reject("disabled", env.PubKey, fmt.Errorf("signer status %q", node.Status))
	}

	message, err := net.CanonicalPayload(env.Data)
	if err != nil {
		return nil, a.reject("malformed", env.PubKey, err)
	}

	if !a.identity.Verify(message, env.PubKey, env.Signature) {
		return nil, a.reject("bad_signature", env.PubKey, fmt.Errorf("signature mismatch"))
	}

	a.stats.recordVerification("ok")

	return env, nil
}

// resolveSigner finds the record of pubKey: first in nodeList, then through a
// registry query filtered on the key, then in the unfiltered registry list for
// registries that cannot filter.
func (a *Authenticator) resolveSigner(ctx context.Context, pubKey string, nodeList []peers.NodeRecord) (peers.NodeRecord, bool) {
	if nodeList != nil {
		if node, ok := peers.FindByPubKey(nodeList, pubKey); ok {
			return node, true
		}
	}

	filtered, err := a.query(ctx, pubKey)
	if err != nil {
		a.logger.WithError(err).WithField("pub_key", pubKey).Debug("Filtered registry query failed")
	} else if len(filtered) == 1 && filtered[0].PubKey == pubKey {
		return filtered[0], true
	}

	all, err := a.query(ctx, "")
	if err != nil {
		a.logger.WithError(err).Debug("Registry query failed")
		return peers.NodeRecord{}, false
	}

	return peers.FindByPubKey(all, pubKey)
}

func (a *Authenticator) query(ctx context.Context, filter string) ([]peers.NodeRecord, error) {
	if a.conf.RegistryTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, a.conf.RegistryTimeout)
		defer cancel()
	}
	return a.registry.Query(ctx, filter)
}

func (a *Authenticator) reject(result, pubKey string, reason error) error {
	a.stats.recordVerification(result)
	a.logger.WithFields(logrus.Fields{
		"pub_key": pubKey,
		"result":  result,
		"reason":  reason,
	}).Debug("Broadcast rejected")
	return fmt.Errorf("%w: %s: %v", ErrAuthentication, result, reason)
}

func (a *Authenticator) millis(now time.Time) int64 {
	if now.IsZero() {
		now = a.clock.Now()
	}
	return now.UnixMilli()
}
