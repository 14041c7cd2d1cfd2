// Package signer implements the collateral-key signing collaborator used to
// produce and verify lock votes.
//
// # Core Interface
//
// CollateralSigner signs the exact byte sequence a vote commits to (see
// types.Vote.SignMessage) with the secp256k1 key backing a validator's
// collateral outpoint, and verifies such signatures against any validator's
// known public key.
//
// # Double-Vote Protection
//
// A validator must never submit two votes for the same input. The
// authoritative guard lives in the engine, which consults its
// own voted_outpoints index before calling Sign at all. InMemorySigner
// additionally keeps its own watermark of outpoints it has signed for,
// mirroring the belt-and-suspenders double-sign watermark this protocol's
// file-based validator signer keeps for height/round/step — adapted here to
// a flat set of outpoints, since lock voting has no rounds.
//
// # Implementations
//
// InMemorySigner: holds the key only in process memory, for tests and
// non-persistent hosts.
//
// FileCollateralSigner: persists the secp256k1 key to a JSON file with
// owner-only permissions, generating one on first use, following this
// protocol's file-based key-material conventions.
package signer
