package keys

import (
	"errors"
	"sync"
)

// ErrNoKey is returned when neither an override nor a configured key is
// available.
var ErrNoKey = errors.New("no private key configured")

// Identity is the signing collaborator used to authenticate broadcasts.
type Identity interface {
	// PrivateKey parses override when it is not empty, otherwise returns the
	// node's configured key.
	PrivateKey(override string) (*SigningKey, error)
	PublicKeyHex(key *SigningKey) string
	Sign(message string, key *SigningKey) (string, error)
	Verify(message, pubKeyHex, signature string) bool
}

// KeyIdentity implements Identity on top of a configured key. The parsed
// default key is cached; overrides are parsed on every call.
type KeyIdentity struct {
	mu      sync.Mutex
	source  func() (*SigningKey, error)
	current *SigningKey
}

// NewKeyIdentity returns an Identity whose default key is key.
func NewKeyIdentity(key *SigningKey) *KeyIdentity {
	return &KeyIdentity{current: key}
}

// NewKeyIdentityFromString parses the default key lazily from s, which may be
// WIF or hex.
func NewKeyIdentityFromString(s string) *KeyIdentity {
	return &KeyIdentity{source: func() (*SigningKey, error) {
		if s == "" {
			return nil, ErrNoKey
		}
		return ParseKeyString(s)
	}}
}

// NewKeyIdentityFromFile reads the default key from a SimpleKeyfile on first
// use.
func NewKeyIdentityFromFile(keyfile *SimpleKeyfile) *KeyIdentity {
	return &KeyIdentity{source: keyfile.ReadKey}
}

// PrivateKey implements Identity.
func (i *KeyIdentity) PrivateKey(override string) (*SigningKey, error) {
	if override != "" {
		return ParseKeyString(override)
	}

	i.mu.Lock()
	defer i.mu.Unlock()

	if i.current != nil {
		return i.current, nil
	}
	if i.source == nil {
		return nil, ErrNoKey
	}

	key, err := i.source()
	if err != nil {
		return nil, err
	}
	i.current = key

	return key, nil
}

// PublicKeyHex implements Identity.
func (i *KeyIdentity) PublicKeyHex(key *SigningKey) string {
	if key == nil || key.Priv == nil {
		return ""
	}
	return PublicKeyHex(key.PublicKey(), key.Compressed)
}

// Sign implements Identity.
func (i *KeyIdentity) Sign(message string, key *SigningKey) (string, error) {
	return SignMessage(key, message)
}

// Verify implements Identity.
func (i *KeyIdentity) Verify(message, pubKeyHex, signature string) bool {
	return VerifyMessage(message, pubKeyHex, signature)
}
