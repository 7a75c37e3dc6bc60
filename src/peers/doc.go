// Package peers defines the node records of the network registry and the
// lookups the overlay uses to find them.
//
// A node record binds a public key to the IP address the node serves its API
// on, together with the status the registry assigns to it. Only records whose
// status is ENABLED are trusted to sign broadcasts, and only ENABLED-or-not
// records returned by an unfiltered query are candidates for discovery.
//
// Records are never cached: every verification and every discovery attempt
// asks the Registry afresh, so a node that flips status is seen on the next
// lookup.
//
// Three Registry implementations are provided. StaticRegistry holds a mutable
// in-memory list and is used by tests and small private networks. JSONRegistry
// reads a nodes.json file from the data directory on every query, so human
// operators can edit it while the node runs. DaemonRegistry asks the local
// chain daemon through its JSON-RPC interface (listzelnodes).
package peers
