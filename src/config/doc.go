// Package config defines the configuration for a fluxnet node.
//
// Whether the node is started from Go code or as a standalone process from the
// command line, it uses the Config object defined in this package to store and
// forward configuration options. On top of these options, the node relies on
// a data directory, defined by Config.DataDir, where it may find a few
// additional files:
//
//  priv_key // a plain text file containing the WIF or hex private key (cf. fluxnet keygen).
//  nodes.json // the node registry, when the json registry is selected.
//  fluxnet.toml // (optional) configuration values, also .yaml or .json.
package config
