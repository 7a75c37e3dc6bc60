// Package node implements the reactive part of a fluxnet node: the overlay of
// websocket connections it keeps with other nodes and the signed broadcasts
// it exchanges on them.
//
// Connections
//
// A node opens outbound connections and accepts inbound ones. Outbound
// connections are kept in the ConnectionRegistry together with their last
// measured round trip time. Inbound connections belong to the listener (see
// the service package); the node only answers their messages, and can list or
// close them through the InboundConnections interface.
//
// Discovery
//
// Every round, the discovery loop fetches the node registry and compares the
// number of outbound connections with its target, the lesser of MinPeers and
// 2% of the registry size. When short, it picks one registry node at random
// and, unless it is this node, an onion address, or already connected, dials
// it in the background. It then runs again after DiscoveryFast; otherwise
// after DiscoverySlow.
//
// Broadcasts
//
// Every message is an envelope signed with the node's key (Bitcoin message
// signing over secp256k1). A broadcast is authentic when its signer is an
// ENABLED node of the registry, its signature matches, and its timestamp is at
// most FutureTolerance ahead of the local clock. It is fresh when it is less
// than StaleAfter old.
//
// Inbound connections get a plain text acknowledgement for authentic and
// fresh broadcasts, a notice for outdated ones, and are closed with status
// 1008 otherwise. An authentic ping is answered with a signed pong that
// echoes the ping's timestamp.
//
// Heartbeat
//
// Every Heartbeat period the node sends a signed ping to all outbound peers.
// When the pong comes back on the outbound connection, the round trip time is
// the current time minus the echoed timestamp. Sends that fail remove the
// connection from the registry.
//
// Scheduling
//
// Discovery and heartbeat are RecurringTasks on a Clock. No goroutine sleeps
// between runs, and tests replace the wall clock with a ManualClock.
package node
