package evidence

import (
	"errors"
	"sync"

	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/blockberries/lockberry/types"
)

// Errors
var (
	ErrDuplicateEvidence = errors.New("evidence: duplicate evidence")
	ErrInvalidEvidence   = errors.New("evidence: votes are not equivocation")
)

// MaxSeenVotes bounds the per-(signer, input) vote cache used for
// equivocation detection. This is a real LRU cache: the oldest entries
// are evicted automatically rather than leaking forever.
const MaxSeenVotes = 100000

// voteKey identifies "a vote from this signer for this input", independent
// of which candidate it was cast in — equivocation is exactly two such
// votes disagreeing on the candidate.
type voteKey struct {
	Signer types.ValidatorID
	Input  types.Outpoint
}

// DuplicateVoteEvidence proves that a validator signed two votes for the
// same input under two different candidate transactions.
type DuplicateVoteEvidence struct {
	Signer   types.ValidatorID
	Input    types.Outpoint
	VoteA    *types.Vote
	VoteB    *types.Vote
	Detected int64
}

// Pool remembers the first vote seen per (signer, input) and detects equivocation:
// a second vote from the same signer for the same input but a different
// candidate transaction.
type Pool struct {
	mu sync.Mutex

	seenVotes *lru.Cache[voteKey, *types.Vote]

	pending   map[types.Hash]*DuplicateVoteEvidence
	committed map[types.Hash]bool
}

// NewPool creates an empty evidence pool.
func NewPool() *Pool {
	cache, err := lru.New[voteKey, *types.Vote](MaxSeenVotes)
	if err != nil {
		// Only returns an error for a non-positive size, which MaxSeenVotes
		// never is.
		panic(err)
	}
	return &Pool{
		seenVotes: cache,
		pending:   make(map[types.Hash]*DuplicateVoteEvidence),
		committed: make(map[types.Hash]bool),
	}
}

// CheckVote reports equivocation if the prior vote remembered for the same
// signer and input referenced a different transaction. Only the first vote
// observed for a (signer, input) pair is remembered; later votes for that
// pair are compared against it but not stored. The first vote is never
// itself "evidence" until a conflicting second vote arrives.
func (p *Pool) CheckVote(vote *types.Vote) (*DuplicateVoteEvidence, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()

	key := voteKey{Signer: vote.Signer, Input: vote.Input}

	prior, ok := p.seenVotes.Get(key)
	if !ok {
		p.seenVotes.Add(key, vote)
		return nil, false
	}
	if prior.TxHash == vote.TxHash {
		// Same candidate: not equivocation, just a repeat observation.
		return nil, false
	}

	ev := &DuplicateVoteEvidence{
		Signer:   vote.Signer,
		Input:    vote.Input,
		VoteA:    prior,
		VoteB:    vote,
		Detected: vote.CreatedAt,
	}
	p.pending[evidenceID(ev)] = ev
	return ev, true
}

// AddEvidence inserts externally-sourced evidence (e.g. relayed from a
// peer) into the pending set.
func (p *Pool) AddEvidence(ev *DuplicateVoteEvidence) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	id := evidenceID(ev)
	if p.committed[id] {
		return ErrDuplicateEvidence
	}
	if ev.VoteA.TxHash == ev.VoteB.TxHash {
		return ErrInvalidEvidence
	}
	p.pending[id] = ev
	return nil
}

// PendingEvidence returns all evidence not yet marked committed.
func (p *Pool) PendingEvidence() []*DuplicateVoteEvidence {
	p.mu.Lock()
	defer p.mu.Unlock()

	out := make([]*DuplicateVoteEvidence, 0, len(p.pending))
	for _, ev := range p.pending {
		out = append(out, ev)
	}
	return out
}

// MarkCommitted records evidence as committed (PoSe-banned, reported, or
// otherwise finally handled) and removes it from the pending set.
func (p *Pool) MarkCommitted(ev *DuplicateVoteEvidence) {
	p.mu.Lock()
	defer p.mu.Unlock()

	id := evidenceID(ev)
	p.committed[id] = true
	delete(p.pending, id)
}

// Size returns the number of pending evidence items.
func (p *Pool) Size() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.pending)
}

// VerifyDuplicateVoteEvidence independently re-checks that ev's two votes
// truly conflict and both carry valid signatures under pubkey.
func VerifyDuplicateVoteEvidence(ev *DuplicateVoteEvidence, pubkey types.PublicKey, verify func(pubkey types.PublicKey, message []byte, sig types.Signature) bool) error {
	if ev.VoteA.Signer != ev.VoteB.Signer {
		return ErrInvalidEvidence
	}
	if ev.VoteA.Input != ev.VoteB.Input {
		return ErrInvalidEvidence
	}
	if ev.VoteA.TxHash == ev.VoteB.TxHash {
		return ErrInvalidEvidence
	}
	if !verify(pubkey, ev.VoteA.SignMessage(), ev.VoteA.Signature) {
		return ErrInvalidEvidence
	}
	if !verify(pubkey, ev.VoteB.SignMessage(), ev.VoteB.Signature) {
		return ErrInvalidEvidence
	}
	return nil
}

func evidenceID(ev *DuplicateVoteEvidence) types.Hash {
	a, b := ev.VoteA.ID(), ev.VoteB.ID()
	// Order-independent: the same pair of votes always yields the same id
	// regardless of which one was "prior" and which was "new".
	if lessBytes(b[:], a[:]) {
		a, b = b, a
	}
	buf := make([]byte, 0, 64)
	buf = append(buf, a[:]...)
	buf = append(buf, b[:]...)
	return types.HashBytes(buf)
}

func lessBytes(a, b []byte) bool {
	for i := range a {
		if a[i] != b[i] {
			return a[i] < b[i]
		}
	}
	return false
}
