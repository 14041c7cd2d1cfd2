package engine

import "github.com/blockberries/lockberry/types"

// OutpointLock guards one transaction input across votes from many
// validators: at most one vote per validator, with a configurable
// readiness threshold.
type OutpointLock struct {
	input        types.Outpoint
	sigsRequired int
	votes        map[types.ValidatorID]*types.Vote
	attacked     bool
}

// NewOutpointLock creates an empty lock for input, ready once sigsRequired
// distinct validators have voted.
func NewOutpointLock(input types.Outpoint, sigsRequired int) *OutpointLock {
	return &OutpointLock{
		input:        input,
		sigsRequired: sigsRequired,
		votes:        make(map[types.ValidatorID]*types.Vote),
	}
}

// Input returns the outpoint this lock tracks.
func (l *OutpointLock) Input() types.Outpoint {
	return l.input
}

// AddVote inserts vote, failing if its signer already has a vote recorded
// here. Votes are accepted even when the lock is attacked: conflict
// evidence must keep propagating.
func (l *OutpointLock) AddVote(vote *types.Vote) bool {
	if _, exists := l.votes[vote.Signer]; exists {
		return false
	}
	l.votes[vote.Signer] = vote
	return true
}

// IsReady reports whether enough distinct validators have voted.
func (l *OutpointLock) IsReady() bool {
	return len(l.votes) >= l.sigsRequired
}

// MarkAttacked flags this lock as having received conflicting votes from at
// least one validator. An attacked lock keeps accepting votes but its
// candidate must not be allowed to complete while attacked.
func (l *OutpointLock) MarkAttacked() {
	l.attacked = true
}

// Attacked reports whether this lock has been flagged attacked.
func (l *OutpointLock) Attacked() bool {
	return l.attacked
}

// Count returns the number of distinct validators that have voted.
func (l *OutpointLock) Count() int {
	return len(l.votes)
}

// HasVoter reports whether signer has a vote recorded on this lock.
func (l *OutpointLock) HasVoter(signer types.ValidatorID) bool {
	_, ok := l.votes[signer]
	return ok
}

// VoteBySigner returns the vote signer cast on this lock, if any.
func (l *OutpointLock) VoteBySigner(signer types.ValidatorID) (*types.Vote, bool) {
	v, ok := l.votes[signer]
	return v, ok
}

// Votes returns every vote recorded on this lock, in no particular order.
func (l *OutpointLock) Votes() []*types.Vote {
	out := make([]*types.Vote, 0, len(l.votes))
	for _, v := range l.votes {
		out = append(out, v)
	}
	return out
}

// setConfirmedHeight propagates a candidate's confirmation height into
// every vote this lock holds, so per-vote expiry tracks the candidate.
func (l *OutpointLock) setConfirmedHeight(h int64) {
	for _, v := range l.votes {
		v.ConfirmedHeight = h
	}
}
