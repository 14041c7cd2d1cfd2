// Package evidence implements equivocation detection for lock votes.
//
// The evidence pool remembers which candidate transaction each validator
// has voted for, per input, and detects equivocation: the same validator
// signing votes for the same input under two different candidate
// transactions. A validator that does this is attempting to help lock two
// conflicting spends of one coin.
//
// # Evidence Type
//
// DuplicateVoteEvidence: proof that a validator double-voted. Contains two
// conflicting votes (VoteA and VoteB) from the same signer for the same
// input but referencing different candidate transactions.
//
// # Detection
//
// Pool.CheckVote remembers the first vote it is shown for each (signer,
// input) pair; later votes for that pair are compared against it but not
// stored. A later vote from the
// same signer for the same input referencing a different transaction
// produces DuplicateVoteEvidence; a repeat observation of the same
// (signer, input, transaction) triple does not.
//
// # Evidence Lifecycle
//
//	1. Detect: the engine shows the pool every peer vote it attaches
//	2. Create: the pool pairs the conflicting votes into evidence
//	3. React: the engine marks both affected inputs attacked and
//	   PoSe-bans the signer through the validator registry
//	4. Commit: the engine marks the evidence committed; it leaves the
//	   pending set and is not re-reported
//
// Both conflicting votes remain stored by the engine even after the ban:
// evidence must keep propagating so every node reaches the same verdict.
//
// # Verification
//
// VerifyDuplicateVoteEvidence independently re-checks evidence relayed
// from a peer: same signer, same input, different transactions, and both
// signatures valid under the signer's registered public key.
//
// # Bounds
//
// The per-(signer, input) memory is an LRU cache capped at MaxSeenVotes,
// so a flood of distinct inputs cannot grow the pool without bound.
//
// # Thread Safety
//
// Pool uses internal locking; multiple goroutines can add and query
// evidence concurrently.
package evidence
