// Package engine implements the transaction-locking consensus engine: the
// replicated state machine that lets a quorum of elected validators
// pre-confirm a transaction by signing each of its inputs ahead of a block.
//
// # Components
//
// OutpointLock: a per-input accumulator of validator votes and a readiness
// predicate (see outpoint_lock.go).
//
// LockCandidate: a per-transaction aggregate of OutpointLocks plus the
// original lock request, if one has arrived yet (see candidate.go).
//
// ValidateVote: the stateless predicate a vote must satisfy before it is
// accepted — known signer, eligible committee rank, valid signature (see
// vote_validator.go).
//
// OrphanBuffer: holds votes whose candidate has not arrived yet, and
// rate-limits orphan votes per signer (see orphan.go).
//
// Engine: the top-level state machine that ties the above together —
// ingests requests and votes, drives candidates to completion, resolves
// conflicts between racing or equivocating candidates, and garbage-collects
// state as new block tips arrive (see engine.go).
//
// # Locking
//
// A single engine-wide mutex guards every map the Engine owns. No Engine
// method blocks while holding it: collaborator calls (UTXO lookups,
// registry queries, signature verification) are assumed synchronous and
// bounded, per the concurrency model this package was adapted from.
package engine
