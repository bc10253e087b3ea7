// Package protocol implements the server-to-server protocol core: parsing
// inbound traffic, maintaining per-network state (users, channels, servers),
// generating collision-free identifiers, negotiating capabilities, and
// propagating topology changes such as netsplits.
//
// The package is dialect-independent. Concrete dialects (TS6 token
// protocols, P10 numeric protocols) supply a Dialect value describing their
// token translations, identifier alphabet, and configuration requirements;
// everything else is shared.
package protocol
