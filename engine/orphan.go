package engine

import "github.com/blockberries/lockberry/types"

// OrphanBuffer holds votes whose candidate or request has not yet arrived,
// and rate-limits orphan votes per signer.
//
// The rate limiter keeps one deadline timestamp per signer and compares it
// against the average of every signer's deadline. This is dimensionally
// odd, but it is kept because the behavior is observable on the wire of
// the protocol this engine was adapted from. A per-signer token bucket
// would be cleaner; it is not adopted, to preserve that observable
// behavior.
type OrphanBuffer struct {
	votes    map[types.Hash]*types.Vote
	byTx     map[types.Hash]map[types.Hash]bool
	rateLast map[types.ValidatorID]int64
}

// NewOrphanBuffer creates an empty orphan buffer.
func NewOrphanBuffer() *OrphanBuffer {
	return &OrphanBuffer{
		votes:    make(map[types.Hash]*types.Vote),
		byTx:     make(map[types.Hash]map[types.Hash]bool),
		rateLast: make(map[types.ValidatorID]int64),
	}
}

// Add inserts vote into the buffer, keyed by its identity hash.
func (b *OrphanBuffer) Add(vote *types.Vote) {
	id := vote.ID()
	b.votes[id] = vote
	set, ok := b.byTx[vote.TxHash]
	if !ok {
		set = make(map[types.Hash]bool)
		b.byTx[vote.TxHash] = set
	}
	set[id] = true
}

// Remove deletes the vote with identity id from the buffer, if present.
func (b *OrphanBuffer) Remove(id types.Hash) {
	vote, ok := b.votes[id]
	if !ok {
		return
	}
	delete(b.votes, id)
	if set, ok := b.byTx[vote.TxHash]; ok {
		delete(set, id)
		if len(set) == 0 {
			delete(b.byTx, vote.TxHash)
		}
	}
}

// Get returns the orphan vote with identity id, if present.
func (b *OrphanBuffer) Get(id types.Hash) (*types.Vote, bool) {
	v, ok := b.votes[id]
	return v, ok
}

// VotesForTx returns every orphan vote buffered for txHash.
func (b *OrphanBuffer) VotesForTx(txHash types.Hash) []*types.Vote {
	set, ok := b.byTx[txHash]
	if !ok {
		return nil
	}
	out := make([]*types.Vote, 0, len(set))
	for id := range set {
		if v, ok := b.votes[id]; ok {
			out = append(out, v)
		}
	}
	return out
}

// Len returns the number of orphan votes currently buffered.
func (b *OrphanBuffer) Len() int {
	return len(b.votes)
}

// All returns every buffered orphan vote, in no particular order.
func (b *OrphanBuffer) All() []*types.Vote {
	out := make([]*types.Vote, 0, len(b.votes))
	for _, v := range b.votes {
		out = append(out, v)
	}
	return out
}

// CheckAndRefreshRate reports whether a new orphan vote from signer
// should be classified as spam. A signer whose rate deadline is still in
// the future AND above the fleet average is spamming; otherwise its
// deadline is refreshed to now+window and the orphan is allowed.
func (b *OrphanBuffer) CheckAndRefreshRate(signer types.ValidatorID, now, window int64) bool {
	last, tracked := b.rateLast[signer]
	if tracked && last > now {
		if last > b.averageDeadline() {
			return true
		}
	}
	b.rateLast[signer] = now + window
	return false
}

func (b *OrphanBuffer) averageDeadline() int64 {
	if len(b.rateLast) == 0 {
		return 0
	}
	var sum int64
	for _, deadline := range b.rateLast {
		sum += deadline
	}
	return sum / int64(len(b.rateLast))
}

// EvictRateEntries drops every rate-limit deadline that has already passed.
func (b *OrphanBuffer) EvictRateEntries(now int64) {
	for signer, deadline := range b.rateLast {
		if deadline <= now {
			delete(b.rateLast, signer)
		}
	}
}
