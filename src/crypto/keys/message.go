package keys

import (
	"bytes"
	"encoding/base64"
	"errors"
	"fmt"

	"github.com/btcsuite/btcd/btcec"
	"github.com/btcsuite/btcd/chaincfg/chainhash"
	"github.com/btcsuite/btcd/wire"
)

// MessageMagic is prepended to every signed message.
const MessageMagic = "Bitcoin Signed Message:\n"

// ErrBadSignature is returned by RecoverMessageSigner for undecodable or
// unrecoverable signatures.
var ErrBadSignature = errors.New("bad message signature")

// MessageHash is the double SHA256 of the magic-prefixed message, both parts
// encoded as varstrings.
func MessageHash(message string) []byte {
	var buf bytes.Buffer
	wire.WriteVarString(&buf, 0, MessageMagic)
	wire.WriteVarString(&buf, 0, message)
	return chainhash.DoubleHashB(buf.Bytes())
}

// SignMessage produces a base64 compact signature of message.
func SignMessage(key *SigningKey, message string) (string, error) {
	if key == nil || key.Priv == nil {
		return "", ErrInvalidKey
	}
	sig, err := btcec.SignCompact(Curve(), key.Priv, MessageHash(message), key.Compressed)
	if err != nil {
		return "", err
	}
	return base64.StdEncoding.EncodeToString(sig), nil
}

// RecoverMessageSigner returns the public key that produced signature over
// message.
func RecoverMessageSigner(message, signature string) (*btcec.PublicKey, error) {
	sig, err := base64.StdEncoding.DecodeString(signature)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrBadSignature, err)
	}
	pub, _, err := btcec.RecoverCompact(Curve(), sig, MessageHash(message))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrBadSignature, err)
	}
	return pub, nil
}

// VerifyMessage reports whether signature over message was produced by the
// key whose hex serialization is pubKeyHex.
func VerifyMessage(message, pubKeyHex, signature string) bool {
	pub, err := ParsePublicKeyHex(pubKeyHex)
	if err != nil {
		return false
	}
	signer, err := RecoverMessageSigner(message, signature)
	if err != nil {
		return false
	}
	return signer.IsEqual(pub)
}
