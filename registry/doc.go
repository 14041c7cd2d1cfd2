// Package registry implements the validator-committee collaborator the
// engine package consults to rank signers and to record PoSe bans.
//
// # Core Type
//
// CommitteeRegistry: an in-memory adapter over a snapshot of validators
// (their collateral outpoint and public key). It answers Has, PubKey, and
// Rank queries, and exposes PoseBan for the engine to call when it detects
// equivocation.
//
// # Deterministic Ranking
//
// Committee election itself — the algorithm that decides which collateral
// outpoints are masternodes at all — is out of scope; this package assumes
// it has already been given a validator snapshot. What it does provide is a
// deterministic per-height ranking within that snapshot: for a given
// (validator, height) pair, every honest node observing the same snapshot
// computes the same rank, by sorting on BLAKE2b(outpoint || height) rather
// than relying on map iteration order or registration order.
//
// # Thread Safety
//
// CommitteeRegistry uses an internal lock: PoseBan mutates the active set,
// while Rank/Has/PubKey read it. UpdateValidatorSet swaps the whole
// snapshot atomically, mirroring how the consensus engine this package was
// adapted from treats its ValidatorSet as replaced wholesale on election
// boundaries rather than mutated field-by-field.
package registry
