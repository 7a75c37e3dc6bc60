package keys

import (
	"encoding/hex"
	"fmt"
	"strings"

	"github.com/btcsuite/btcd/btcec"
)

// PublicKeyHex returns the lowercase hex serialization of the public key,
// compressed (33 bytes) or uncompressed (65 bytes).
func PublicKeyHex(pub *btcec.PublicKey, compressed bool) string {
	if pub == nil {
		return ""
	}
	if compressed {
		return hex.EncodeToString(pub.SerializeCompressed())
	}
	return hex.EncodeToString(pub.SerializeUncompressed())
}

// ParsePublicKeyHex parses either serialization produced by PublicKeyHex. An
// optional 0x prefix is tolerated.
func ParsePublicKeyHex(s string) (*btcec.PublicKey, error) {
	s = strings.TrimSpace(s)
	if strings.HasPrefix(s, "0x") || strings.HasPrefix(s, "0X") {
		s = s[2:]
	}
	raw, err := hex.DecodeString(s)
	if err != nil {
		return nil, fmt.Errorf("decode public key: %w", err)
	}
	return btcec.ParsePubKey(raw, Curve())
}
