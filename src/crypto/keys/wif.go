package keys

import (
	"github.com/btcsuite/btcd/chaincfg"
	"github.com/btcsuite/btcutil"
)

// DecodeWIF parses a key in Wallet Import Format. The network byte is not
// checked; zelnode keys share the mainnet prefix.
func DecodeWIF(s string) (*SigningKey, error) {
	wif, err := btcutil.DecodeWIF(s)
	if err != nil {
		return nil, err
	}
	return &SigningKey{Priv: wif.PrivKey, Compressed: wif.CompressPubKey}, nil
}

// EncodeWIF returns the mainnet WIF form of the key.
func EncodeWIF(key *SigningKey) (string, error) {
	wif, err := btcutil.NewWIF(key.Priv, &chaincfg.MainNetParams, key.Compressed)
	if err != nil {
		return "", err
	}
	return wif.String(), nil
}
