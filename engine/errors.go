package engine

import "errors"

// Rejection and spam reasons returned by the engine. Every Ingest* method
// returns a plain bool for the fast path plus one of these sentinels via
// errors.Is, mirroring how the protocol this engine was adapted from scores
// peer misbehavior from a typed reason rather than an exception.
var (
	// ErrMalformed covers well-formedness failures: empty vout, an
	// unrecognized output script, an unresolvable input coin, a
	// non-finalized transaction, or a vote whose signature does not
	// verify.
	ErrMalformed = errors.New("directsend: malformed request or vote")
	// ErrTooEarly means an input coin's age is below the confirmation
	// threshold required before it may be locked.
	ErrTooEarly = errors.New("directsend: input coin age below confirmation threshold")
	// ErrTooLarge means total input value exceeds the configured cap.
	ErrTooLarge = errors.New("directsend: total input value exceeds max lock value")
	// ErrFeeTooLow means the request's fee is below the minimum required.
	ErrFeeTooLow = errors.New("directsend: fee below minimum required")
	// ErrUnknownSigner means the vote's signer is not a known validator.
	ErrUnknownSigner = errors.New("directsend: signer not in validator registry")
	// ErrOutOfCommittee means the signer's rank at the derived height
	// exceeds the committee size.
	ErrOutOfCommittee = errors.New("directsend: signer rank exceeds committee size")
	// ErrDuplicate means the vote is already known; callers should treat
	// this as success when reporting to peers. A duplicate request is
	// reported as plain success, with a nil error.
	ErrDuplicate = errors.New("directsend: already known")
	// ErrConflictMempool means a different transaction already spends one
	// of the candidate's inputs in the mempool.
	ErrConflictMempool = errors.New("directsend: conflicting spend already in mempool")
	// ErrConflictCompleted means one of the candidate's inputs is already
	// locked under a different transaction hash.
	ErrConflictCompleted = errors.New("directsend: conflicts with a completed lock")
	// ErrConflictMined means one of the candidate's inputs is no longer
	// in the UTXO set: a conflicting transaction was mined first.
	ErrConflictMined = errors.New("directsend: conflicting transaction already mined")
	// ErrTimedOut means the candidate exceeded its lock timeout before
	// reaching readiness.
	ErrTimedOut = errors.New("directsend: candidate timed out")
	// ErrSpamOrphanRate means an orphan vote was dropped by the per-signer
	// rate limiter.
	ErrSpamOrphanRate = errors.New("directsend: orphan vote rate exceeded")
	// ErrInvalidVote means the vote was well-formed but could not be
	// attached to its candidate (e.g. its input is not one of the
	// candidate's declared inputs).
	ErrInvalidVote = errors.New("directsend: vote rejected by candidate")
	// ErrDisabled means the directsend feature flag is off.
	ErrDisabled = errors.New("directsend: feature disabled")
)
