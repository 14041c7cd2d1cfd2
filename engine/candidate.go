package engine

import "github.com/blockberries/lockberry/types"

// LockCandidate is the per-transaction aggregate of OutpointLocks plus the
// original lock request, which may be absent when the candidate was
// created by an orphan vote before its request arrived.
type LockCandidate struct {
	TxHash  types.Hash
	Request *types.Request
	Locks   map[types.Outpoint]*OutpointLock

	CreatedAt       int64
	ConfirmedHeight int64

	sigsRequired int
}

// NewLockCandidate creates a candidate from a lock request, pre-creating an
// empty OutpointLock for every declared input.
func NewLockCandidate(req *types.Request, sigsRequired int, now int64) *LockCandidate {
	c := &LockCandidate{
		TxHash:          req.TxHash,
		Request:         req,
		Locks:           make(map[types.Outpoint]*OutpointLock, len(req.Vin)),
		CreatedAt:       now,
		ConfirmedHeight: -1,
		sigsRequired:    sigsRequired,
	}
	for _, in := range req.Vin {
		c.AddOutpoint(in)
	}
	return c
}

// NewOrphanCandidate creates an empty placeholder candidate for a vote that
// arrived before its request: no inputs are known yet, but the timeout
// clock starts now.
func NewOrphanCandidate(txHash types.Hash, sigsRequired int, now int64) *LockCandidate {
	return &LockCandidate{
		TxHash:          txHash,
		Locks:           make(map[types.Outpoint]*OutpointLock),
		CreatedAt:       now,
		ConfirmedHeight: -1,
		sigsRequired:    sigsRequired,
	}
}

// HasRequest reports whether this candidate's lock request has arrived.
func (c *LockCandidate) HasRequest() bool {
	return c.Request != nil
}

// AttachRequest fills in a request for a candidate that was created as an
// orphan placeholder, creating the OutpointLocks its inputs need.
func (c *LockCandidate) AttachRequest(req *types.Request) {
	c.Request = req
	for _, in := range req.Vin {
		c.AddOutpoint(in)
	}
}

// AddOutpoint pre-creates an empty OutpointLock for o if one does not
// already exist.
func (c *LockCandidate) AddOutpoint(o types.Outpoint) {
	if _, exists := c.Locks[o]; !exists {
		c.Locks[o] = NewOutpointLock(o, c.sigsRequired)
	}
}

// AddVote delegates to the OutpointLock for vote.Input, failing if that
// input is not part of this candidate.
func (c *LockCandidate) AddVote(vote *types.Vote) bool {
	lock, ok := c.Locks[vote.Input]
	if !ok {
		return false
	}
	return lock.AddVote(vote)
}

// HasVoted reports whether signer has a vote recorded for input on this
// candidate.
func (c *LockCandidate) HasVoted(input types.Outpoint, signer types.ValidatorID) bool {
	lock, ok := c.Locks[input]
	if !ok {
		return false
	}
	return lock.HasVoter(signer)
}

// IsAllReady reports whether this candidate has at least one input and
// every one of its OutpointLocks is ready.
func (c *LockCandidate) IsAllReady() bool {
	if len(c.Locks) == 0 {
		return false
	}
	for _, lock := range c.Locks {
		if !lock.IsReady() {
			return false
		}
	}
	return true
}

// AnyAttacked reports whether any of this candidate's OutpointLocks has
// been flagged attacked.
func (c *LockCandidate) AnyAttacked() bool {
	for _, lock := range c.Locks {
		if lock.Attacked() {
			return true
		}
	}
	return false
}

// CountVotes sums the per-input vote counts, for reporting only: readiness
// is decided per input, not on this total.
func (c *LockCandidate) CountVotes() int {
	total := 0
	for _, lock := range c.Locks {
		total += lock.Count()
	}
	return total
}

// IsExpired reports whether this candidate is far enough past its
// confirmation height to be garbage-collected. A candidate that has never
// been confirmed (ConfirmedHeight == -1) is never expired by this rule.
func (c *LockCandidate) IsExpired(tipHeight, keepLockBlocks int64) bool {
	return c.ConfirmedHeight != -1 && tipHeight-c.ConfirmedHeight > keepLockBlocks
}

// IsTimedOut reports whether this candidate has sat without reaching
// readiness for longer than lockTimeoutSeconds.
func (c *LockCandidate) IsTimedOut(now, lockTimeoutSeconds int64) bool {
	return now-c.CreatedAt > lockTimeoutSeconds
}

// SetConfirmedHeight records the chain height at which this candidate's
// transaction was observed (or -1 if it reverted), and propagates that
// height into every vote held by its OutpointLocks so per-vote expiry
// tracks candidate inclusion.
func (c *LockCandidate) SetConfirmedHeight(h int64) {
	c.ConfirmedHeight = h
	for _, lock := range c.Locks {
		lock.setConfirmedHeight(h)
	}
}
