// Package net implements the wire side of the overlay: the broadcast envelope
// codec and the connections messages travel on.
//
// Envelopes are JSON objects
//
//	{"data": ..., "pubKey": "<hex>", "signature": "<base64>", "timestamp": <ms>, "type": "message"}
//
// where data is either a plain string or an arbitrary JSON value. The message
// covered by the signature is the string itself, or the canonical JSON text of
// the value (sorted keys, no whitespace), so that the signer and every
// verifier derive the same bytes regardless of how the value was built.
//
// Connections implement the Conn interface. There are two implementations:
//
// - WSConn: a websocket connection, dialed with Dial or accepted with Accept
//
// - InmemConn: connected in-memory pairs, used only for testing
//
// InboundSet tracks the connections accepted by the listener so that they can
// be listed and closed by ip.
package net
