// Package keys implements the public key cryptography used by fluxnet nodes.
//
// A node owns a secp256k1 key-pair. The private key is usually configured in
// Wallet Import Format (WIF), the same format the node's daemon uses for its
// zelnode key, but a raw hex dump written by `fluxnet keygen` is also
// accepted. The public key is advertised in the node registry, hex encoded,
// and is what other nodes use to authenticate broadcasts.
//
// Broadcasts are signed with the Bitcoin message-signing scheme: the message
// is prefixed with a magic string, double-SHA256 hashed, and signed with a
// recoverable compact signature which travels base64 encoded. Verification
// recovers the public key from the signature and compares it to the claimed
// one.
package keys
