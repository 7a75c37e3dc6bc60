package keys

import (
	"github.com/btcsuite/btcd/btcec"
)

/*
Keys and signing are based on elliptic curve cryptography over secp256k1, the
curve used by Bitcoin and by the daemon whose node list we trust.
*/

//Curve returns the secp256k1 curve. We use btcsuite's golang implementation.
func Curve() *btcec.KoblitzCurve {
	return btcec.S256()
}
