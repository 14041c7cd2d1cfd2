// Package types defines the core data structures of the transaction-locking
// protocol: outpoints, votes, lock requests, their canonical wire encoding,
// and the consensus parameters that size a committee and its deadlines.
//
// # Core Types
//
// Outpoint: a (tx hash, output index) pair. It identifies both a spendable
// coin and, when that coin is a validator's collateral, the validator itself
// (ValidatorID is an Outpoint).
//
// Vote: one validator's signed assertion that one input of one candidate
// transaction should be locked. A vote's identity — used for deduplication —
// is derived only from (tx hash, input, signer), never from its signature or
// timestamp; two votes with the same identity but different signatures are
// the same vote arriving twice, not two votes.
//
// Request: the announced transaction nominated for locking.
//
// Params: the consensus-parameters bundle (committee size, thresholds,
// timeouts) injected at construction rather than compiled in.
//
// # Serialization
//
// Network-facing types encode to a fixed, hand-rolled binary wire format
// (see wire.go) rather than a reflection-based codec, matching the low-level
// style this protocol's sibling implementations use for their own wire
// types.
//
// # Hashing
//
// Identity and sign-message hashing use BLAKE2b-256 rather than SHA-256.
package types
