package keys

import (
	"encoding/hex"
	"errors"
	"fmt"
	"math/big"
	"strings"

	"github.com/btcsuite/btcd/btcec"
)

// ErrInvalidKey is returned when key material cannot be parsed.
var ErrInvalidKey = errors.New("invalid private key")

//Parameters of the secp256k1 curve. They are used to verify that a private key
//is valid.
var (
	secp256k1N = Curve().Params().N
)

// SigningKey is a private key together with the public key serialization it
// advertises. WIF keys carry the compression flag; raw keys default to
// compressed.
type SigningKey struct {
	Priv       *btcec.PrivateKey
	Compressed bool
}

// PublicKey returns the public half of the key.
func (k *SigningKey) PublicKey() *btcec.PublicKey {
	return k.Priv.PubKey()
}

//GenerateKey creates a new private key on the secp256k1 curve.
func GenerateKey() (*SigningKey, error) {
	priv, err := btcec.NewPrivateKey(Curve())
	if err != nil {
		return nil, err
	}
	return &SigningKey{Priv: priv, Compressed: true}, nil
}

//DumpPrivateKey exports a private key into a 32 byte binary dump.
func DumpPrivateKey(key *SigningKey) []byte {
	if key == nil || key.Priv == nil {
		return nil
	}
	return key.Priv.Serialize()
}

//ParsePrivateKey creates a private key with the given D value.
func ParsePrivateKey(d []byte) (*SigningKey, error) {
	if len(d) != btcec.PrivKeyBytesLen {
		return nil, fmt.Errorf("%w: need %d bytes, got %d", ErrInvalidKey, btcec.PrivKeyBytesLen, len(d))
	}

	v := new(big.Int).SetBytes(d)

	// The D value must < N
	if v.Cmp(secp256k1N) >= 0 {
		return nil, fmt.Errorf("%w: >=N", ErrInvalidKey)
	}

	// The D value must not be zero
	if v.Sign() <= 0 {
		return nil, fmt.Errorf("%w: zero", ErrInvalidKey)
	}

	priv, _ := btcec.PrivKeyFromBytes(Curve(), d)

	return &SigningKey{Priv: priv, Compressed: true}, nil
}

//PrivateKeyHex returns the hexadecimal representation of a raw private key as
//returned by DumpPrivateKey
func PrivateKeyHex(key *SigningKey) string {
	return hex.EncodeToString(DumpPrivateKey(key))
}

// ParseKeyString accepts either a WIF string or the hex dump of a raw key.
func ParseKeyString(s string) (*SigningKey, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil, fmt.Errorf("%w: empty", ErrInvalidKey)
	}

	if key, err := DecodeWIF(s); err == nil {
		return key, nil
	}

	raw, err := hex.DecodeString(s)
	if err != nil {
		return nil, fmt.Errorf("%w: neither WIF nor hex", ErrInvalidKey)
	}

	return ParsePrivateKey(raw)
}
