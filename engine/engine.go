package engine

import (
	"errors"
	"fmt"
	"log"
	"os/exec"
	"strings"
	"sync"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/blockberries/lockberry/evidence"
	"github.com/blockberries/lockberry/types"
)

// Bounds on the engine's cache-backed collections. The protocol this
// engine was adapted from kept its rejected-request and vote maps
// unbounded and leaked entries; these are real LRU caches instead, on
// top of the explicit deadline-driven GC sweep.
const (
	rejectedRequestsCacheSize = 8192
	votesCacheSize            = 200000
)

// Deps bundles every external collaborator the engine needs. Only Params,
// Registry, UTXO, Chain, Mempool, Blocks, Flags, Gossip, and Verify are
// required; the rest may be left at their zero value.
type Deps struct {
	Params *types.Params
	Config *Config

	Registry Registry
	UTXO     UTXOSource
	Chain    ChainSource
	Mempool  MempoolSource
	Blocks   BlockSource
	Finality TxFinality // optional; nil means "always finalized"
	Flags    FeatureFlags
	Gossip   Gossip
	Verify   VerifyFunc

	Notifier LockNotifier // optional
	Metrics  Metrics      // optional, defaults to NopMetrics

	Self *SelfValidator // optional; nil means this node never self-votes

	// Clock returns the current unix time. Defaults to time.Now().Unix();
	// overridable so tests can control deadlines deterministically.
	Clock func() int64
}

// Engine is the top-level lock-candidate state machine. All exported
// methods take engine-wide mutex mu for their full duration and never
// block while holding it: every collaborator call is assumed synchronous.
type Engine struct {
	mu sync.Mutex

	params *types.Params
	cfg    *Config

	registry Registry
	utxo     UTXOSource
	chain    ChainSource
	mempool  MempoolSource
	blocks   BlockSource
	finality TxFinality
	flags    FeatureFlags
	gossip   Gossip
	verify   VerifyFunc
	notifier LockNotifier
	metrics  Metrics
	self     *SelfValidator
	clock    func() int64

	evidencePool *evidence.Pool

	candidates       map[types.Hash]*LockCandidate
	votesByHash      *lru.Cache[types.Hash, *types.Vote]
	orphans          *OrphanBuffer
	votedOutpoints   map[types.Outpoint]map[types.Hash]bool
	lockedOutpoints  map[types.Outpoint]types.Hash
	acceptedRequests map[types.Hash]*types.Request
	rejectedRequests *lru.Cache[types.Hash, *types.Request]

	tipHeight      int64
	completedLocks int64
}

// NewEngine validates deps and constructs an Engine. It returns an error if
// any required collaborator is missing or Params fails validation.
func NewEngine(deps Deps) (*Engine, error) {
	if deps.Params == nil {
		return nil, fmt.Errorf("engine: params is required")
	}
	if err := deps.Params.Validate(); err != nil {
		return nil, fmt.Errorf("engine: invalid params: %w", err)
	}
	if deps.Registry == nil || deps.UTXO == nil || deps.Chain == nil || deps.Mempool == nil || deps.Blocks == nil || deps.Flags == nil || deps.Gossip == nil || deps.Verify == nil {
		return nil, fmt.Errorf("engine: registry, utxo, chain, mempool, blocks, flags, gossip, and verify are all required")
	}
	cfg := deps.Config
	if cfg == nil {
		cfg = DefaultConfig()
	}
	metrics := deps.Metrics
	if metrics == nil {
		metrics = NopMetrics{}
	}
	clock := deps.Clock
	if clock == nil {
		clock = func() int64 { return time.Now().Unix() }
	}

	votesCache, err := lru.New[types.Hash, *types.Vote](votesCacheSize)
	if err != nil {
		return nil, fmt.Errorf("engine: votes cache: %w", err)
	}
	rejectedCache, err := lru.New[types.Hash, *types.Request](rejectedRequestsCacheSize)
	if err != nil {
		return nil, fmt.Errorf("engine: rejected requests cache: %w", err)
	}

	return &Engine{
		params:           deps.Params,
		cfg:              cfg,
		registry:         deps.Registry,
		utxo:             deps.UTXO,
		chain:            deps.Chain,
		mempool:          deps.Mempool,
		blocks:           deps.Blocks,
		finality:         deps.Finality,
		flags:            deps.Flags,
		gossip:           deps.Gossip,
		verify:           deps.Verify,
		notifier:         deps.Notifier,
		metrics:          metrics,
		self:             deps.Self,
		clock:            clock,
		evidencePool:     evidence.NewPool(),
		candidates:       make(map[types.Hash]*LockCandidate),
		votesByHash:      votesCache,
		orphans:          NewOrphanBuffer(),
		votedOutpoints:   make(map[types.Outpoint]map[types.Hash]bool),
		lockedOutpoints:  make(map[types.Outpoint]types.Hash),
		acceptedRequests: make(map[types.Hash]*types.Request),
		rejectedRequests: rejectedCache,
	}, nil
}

// CompletedLocksCount returns the monotonic count of completed locks.
func (e *Engine) CompletedLocksCount() int64 {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.completedLocks
}

// IsLocked reports whether outpoint is currently locked, and by which
// transaction.
func (e *Engine) IsLocked(outpoint types.Outpoint) (types.Hash, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	h, ok := e.lockedOutpoints[outpoint]
	return h, ok
}

// Candidate returns the candidate tracked for txHash, if any.
func (e *Engine) Candidate(txHash types.Hash) (*LockCandidate, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	c, ok := e.candidates[txHash]
	return c, ok
}

// PendingCandidates returns the number of candidates currently tracked.
func (e *Engine) PendingCandidates() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return len(e.candidates)
}

// OrphanVoteCount returns the number of votes currently buffered awaiting
// their request.
func (e *Engine) OrphanVoteCount() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.orphans.Len()
}

func (e *Engine) now() int64 { return e.clock() }

// IngestRequest validates req, creates or completes its
// candidate, self-votes, reprocesses any orphans waiting on it, and tries
// to finalize.
func (e *Engine) IngestRequest(req *types.Request) (bool, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.ingestRequestLocked(req)
}

func (e *Engine) ingestRequestLocked(req *types.Request) (bool, error) {
	if err := e.wellFormed(req); err != nil {
		e.rejectedRequests.Add(req.TxHash, req)
		e.metrics.IncRejectedRequests()
		return false, err
	}

	e.surveyConflicts(req)

	cand, exists := e.candidates[req.TxHash]
	switch {
	case !exists:
		cand = NewLockCandidate(req, e.params.SigsRequired, e.now())
		e.candidates[req.TxHash] = cand
	case !cand.HasRequest():
		if cand.IsTimedOut(e.now(), e.params.LockTimeoutSeconds) {
			e.rejectedRequests.Add(req.TxHash, req)
			e.metrics.IncRejectedRequests()
			return false, ErrTimedOut
		}
		cand.AttachRequest(req)
	default:
		return true, nil // duplicate: idempotent
	}
	e.acceptedRequests[req.TxHash] = req
	e.gossip.RelayRequest(req.TxHash)

	if len(req.Vin) > e.params.WarnManyInputs {
		log.Printf("[WARN] directsend: request %s has %d inputs (> %d), possible spam", req.TxHash.ShortString(), len(req.Vin), e.params.WarnManyInputs)
	}

	e.voteRound(cand)
	e.reprocessOrphans(cand)
	e.tryFinalize(cand)
	e.refreshGauges()
	return true, nil
}

// wellFormed checks the request's shape, input coins, value cap, and fee.
func (e *Engine) wellFormed(req *types.Request) error {
	if len(req.Vout) == 0 {
		return ErrMalformed
	}
	for _, out := range req.Vout {
		class := types.ClassifyScript(out.Script)
		if class != types.ScriptClassPayment && class != types.ScriptClassUnspendable {
			return ErrMalformed
		}
	}
	if e.finality != nil && !e.finality.IsFinalized(req.TxHash) {
		return ErrMalformed
	}

	tip := e.chain.TipHeight()
	var sumIn, sumOut int64
	for _, in := range req.Vin {
		coin, ok := e.utxo.Coin(in)
		if !ok {
			return ErrMalformed
		}
		age := tip - coin.Height + 1
		if age < e.params.ConfirmationsRequired-1 {
			return ErrTooEarly
		}
		sumIn += int64(coin.Value)
	}
	if sumIn > int64(e.params.MaxLockValue) {
		return ErrTooLarge
	}
	for _, out := range req.Vout {
		sumOut += int64(out.Amount)
	}
	fee := sumIn - sumOut
	minFee := int64(e.params.MinFee)
	if perInput := int64(e.params.MinFee) * int64(len(req.Vin)); perInput > minFee {
		minFee = perInput
	}
	if fee < minFee {
		return ErrFeeTooLow
	}
	return nil
}

// surveyConflicts logs conflicts between the incoming request and locks
// or votes already held. Informational only: it never aborts ingestion.
func (e *Engine) surveyConflicts(req *types.Request) {
	for _, in := range req.Vin {
		if t, ok := e.lockedOutpoints[in]; ok && t != req.TxHash {
			log.Printf("[INFO] directsend: input %s already locked by completed tx %s, conflicts with incoming %s", in.ShortString(), t.ShortString(), req.TxHash.ShortString())
		}
		if set, ok := e.votedOutpoints[in]; ok {
			for other := range set {
				if other != req.TxHash {
					log.Printf("[WARN] directsend: possible double-spend: input %s has votes for both %s and %s", in.ShortString(), other.ShortString(), req.TxHash.ShortString())
				}
			}
		}
	}
}

// voteRound casts this node's own votes for the candidate's inputs, a
// no-op on non-validator nodes.
func (e *Engine) voteRound(cand *LockCandidate) {
	if e.self == nil {
		return
	}
	for input := range cand.Locks {
		coin, ok := e.utxo.Coin(input)
		if !ok {
			return // transient: abort the whole round
		}
		nH := coin.Height + rankDelayBlocks
		rank, eligible := e.registry.Rank(e.self.ID, nH)
		if !eligible || rank > e.params.SigsTotal {
			continue
		}
		if e.selfAlreadyVoted(input) {
			continue
		}

		v := &types.Vote{
			TxHash:          cand.TxHash,
			Input:           input,
			Signer:          e.self.ID,
			CreatedAt:       e.now(),
			ConfirmedHeight: -1,
		}
		sig, err := e.self.Signer.Sign(input, v.SignMessage())
		if err != nil {
			log.Printf("[ERROR] directsend: self-sign failed for %s: %v", input.ShortString(), err)
			continue
		}
		v.Signature = sig
		if !e.verify(e.self.Signer.PublicKey(), v.SignMessage(), v.Signature) {
			log.Printf("[ERROR] directsend: self-signed vote failed self-verification for %s", input.ShortString())
			continue
		}

		e.storeVote(v)
		cand.AddVote(v)
		e.markVotedOutpoint(input, cand.TxHash)
		e.gossip.RelayVote(v.ID())
	}
}

// selfAlreadyVoted reports whether this node has already voted for input in
// any candidate — a validator must never double-vote on an input.
func (e *Engine) selfAlreadyVoted(input types.Outpoint) bool {
	set, ok := e.votedOutpoints[input]
	if !ok {
		return false
	}
	for txHash := range set {
		if c, ok := e.candidates[txHash]; ok && c.HasVoted(input, e.self.ID) {
			return true
		}
	}
	return false
}

// reprocessOrphans attaches any buffered orphan votes
// that now match this candidate's declared inputs.
func (e *Engine) reprocessOrphans(cand *LockCandidate) {
	for _, v := range e.orphans.VotesForTx(cand.TxHash) {
		if _, ok := cand.Locks[v.Input]; !ok {
			continue
		}
		if ev, equivocated := e.evidencePool.CheckVote(v); equivocated {
			e.handleEquivocation(ev)
		}
		if cand.AddVote(v) {
			e.orphans.Remove(v.ID())
		}
	}
}

// IngestVote validates v and attaches it to its candidate, buffering it
// as an orphan when the candidate's request has not arrived yet.
func (e *Engine) IngestVote(v *types.Vote, peer string) (bool, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.ingestVoteLocked(v, peer)
}

func (e *Engine) ingestVoteLocked(v *types.Vote, peer string) (bool, error) {
	id := v.ID()
	if _, known := e.votesByHash.Peek(id); known {
		return true, ErrDuplicate
	}

	if err := ValidateVote(v, e.registry, e.utxo, e.verify, e.params.SigsTotal); err != nil {
		if errors.Is(err, ErrUnknownSigner) {
			e.registry.AskFor(v.Signer, peer)
		}
		return false, err
	}

	e.gossip.RelayVote(id)

	cand, exists := e.candidates[v.TxHash]
	if !exists {
		cand = NewOrphanCandidate(v.TxHash, e.params.SigsRequired, e.now())
		e.candidates[v.TxHash] = cand
	}

	if !cand.HasRequest() {
		ok, err := e.ingestOrphanVote(v)
		e.refreshGauges()
		return ok, err
	}

	if cand.IsTimedOut(e.now(), e.params.LockTimeoutSeconds) {
		return false, ErrTimedOut
	}

	if ev, equivocated := e.evidencePool.CheckVote(v); equivocated {
		e.handleEquivocation(ev)
	}

	if !cand.AddVote(v) {
		return false, ErrInvalidVote
	}
	e.storeVote(v)
	e.markVotedOutpoint(v.Input, v.TxHash)
	e.orphans.Remove(id)

	e.tryFinalize(cand)
	e.refreshGauges()
	return true, nil
}

func (e *Engine) ingestOrphanVote(v *types.Vote) (bool, error) {
	if e.orphans.CheckAndRefreshRate(v.Signer, e.now(), e.params.OrphanExpireSeconds) {
		return false, ErrSpamOrphanRate
	}
	e.orphans.Add(v)
	e.storeVote(v)
	e.markVotedOutpoint(v.Input, v.TxHash)

	if req, ok := e.lookupPastRequest(v.TxHash); ok && e.orphanCoversAllInputs(req) {
		return e.ingestRequestLocked(req)
	}
	return true, nil
}

func (e *Engine) lookupPastRequest(txHash types.Hash) (*types.Request, bool) {
	if req, ok := e.acceptedRequests[txHash]; ok {
		return req, true
	}
	if req, ok := e.rejectedRequests.Peek(txHash); ok {
		return req, true
	}
	return nil, false
}

func (e *Engine) orphanCoversAllInputs(req *types.Request) bool {
	counts := make(map[types.Outpoint]int, len(req.Vin))
	for _, v := range e.orphans.VotesForTx(req.TxHash) {
		counts[v.Input]++
	}
	for _, in := range req.Vin {
		if counts[in] < e.params.SigsRequired {
			return false
		}
	}
	return true
}

// handleEquivocation reacts to a confirmed double-vote: both
// candidates' locks for the shared input are marked attacked, the signer is
// PoSe-banned exactly once, and the evidence remains stored.
func (e *Engine) handleEquivocation(ev *evidence.DuplicateVoteEvidence) {
	log.Printf("[WARN] directsend: equivocation: signer %s voted for input %s in both %s and %s", ev.Signer.ShortString(), ev.Input.ShortString(), ev.VoteA.TxHash.ShortString(), ev.VoteB.TxHash.ShortString())
	e.markAttacked(ev.VoteA.TxHash, ev.Input)
	e.markAttacked(ev.VoteB.TxHash, ev.Input)
	e.registry.PoseBan(ev.Signer)
	e.metrics.IncEquivocations()
	e.evidencePool.MarkCommitted(ev)
}

func (e *Engine) markAttacked(txHash types.Hash, input types.Outpoint) {
	cand, ok := e.candidates[txHash]
	if !ok {
		return
	}
	if lock, ok := cand.Locks[input]; ok {
		lock.MarkAttacked()
	}
}

func (e *Engine) storeVote(v *types.Vote) {
	e.votesByHash.Add(v.ID(), v)
}

func (e *Engine) markVotedOutpoint(input types.Outpoint, txHash types.Hash) {
	set, ok := e.votedOutpoints[input]
	if !ok {
		set = make(map[types.Hash]bool)
		e.votedOutpoints[input] = set
	}
	set[txHash] = true
}

func (e *Engine) removeVotedOutpoint(input types.Outpoint, txHash types.Hash) {
	set, ok := e.votedOutpoints[input]
	if !ok {
		return
	}
	delete(set, txHash)
	if len(set) == 0 {
		delete(e.votedOutpoints, input)
	}
}

// TryFinalize exposes try_finalize for hosts/tests that want to force a
// finalize attempt outside of ingest; normal operation drives it
// automatically after every ingest.
func (e *Engine) TryFinalize(txHash types.Hash) (bool, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	cand, ok := e.candidates[txHash]
	if !ok {
		return false, ErrInvalidVote
	}
	return e.tryFinalize(cand)
}

// tryFinalize completes a candidate whose every input is ready, after
// resolving conflicts against completed locks, the mempool, and the chain.
func (e *Engine) tryFinalize(cand *LockCandidate) (bool, error) {
	if !e.flags.DirectSendEnabled() {
		return false, ErrDisabled
	}
	if !cand.IsAllReady() {
		return false, nil
	}
	if e.alreadyLocked(cand) {
		return true, nil
	}
	if cand.AnyAttacked() {
		return false, nil
	}

	for input := range cand.Locks {
		if t, ok := e.lockedOutpoints[input]; ok && t != cand.TxHash {
			e.resolveCompletedConflict(cand, t)
			return false, ErrConflictCompleted
		}
	}
	for input := range cand.Locks {
		if spender, ok := e.mempool.Spender(input); ok && spender != cand.TxHash {
			return false, ErrConflictMempool
		}
	}
	if _, ok := e.blocks.IsInBlock(cand.TxHash); ok {
		return true, nil
	}
	for input := range cand.Locks {
		if _, ok := e.utxo.Coin(input); !ok {
			return false, ErrConflictMined
		}
	}

	for input := range cand.Locks {
		e.lockedOutpoints[input] = cand.TxHash
	}
	e.completedLocks++
	e.metrics.IncCompletedLocks()
	if e.notifier != nil && cand.Request != nil {
		e.notifier.TransactionLocked(cand.Request)
	}
	e.runNotifyCommand(cand.TxHash)
	return true, nil
}

// alreadyLocked reports whether this candidate's lock has already completed
// (finalization is idempotent): since I1 guarantees every locked input of a
// candidate agrees, checking any single input suffices.
func (e *Engine) alreadyLocked(cand *LockCandidate) bool {
	for input := range cand.Locks {
		t, ok := e.lockedOutpoints[input]
		return ok && t == cand.TxHash
	}
	return false
}

// resolveCompletedConflict handles two completed locks claiming one input,
// which means at least a full quorum of validators equivocated:
// both candidates are marked expired and rejected, their shared inputs'
// completed locks are cleared, and GC runs immediately.
func (e *Engine) resolveCompletedConflict(cand *LockCandidate, other types.Hash) {
	log.Printf("[WARN] directsend: completed-vs-completed conflict on a shared input between %s and %s; committee for that input is compromised", cand.TxHash.ShortString(), other.ShortString())

	cand.SetConfirmedHeight(0)
	e.rejectAndForget(cand.TxHash, cand.Request)

	if otherCand, ok := e.candidates[other]; ok {
		otherCand.SetConfirmedHeight(0)
		e.rejectAndForget(other, otherCand.Request)
	}

	for input := range cand.Locks {
		if t, ok := e.lockedOutpoints[input]; ok && (t == cand.TxHash || t == other) {
			delete(e.lockedOutpoints, input)
		}
	}
	e.runGC()
}

func (e *Engine) rejectAndForget(txHash types.Hash, req *types.Request) {
	if req != nil {
		e.rejectedRequests.Add(txHash, req)
		e.metrics.IncRejectedRequests()
	}
	delete(e.acceptedRequests, txHash)
}

func (e *Engine) runNotifyCommand(txHash types.Hash) {
	if e.cfg.NotifyCommand == "" {
		return
	}
	cmdStr := strings.ReplaceAll(e.cfg.NotifyCommand, "%s", txHash.String())
	go func() {
		if err := exec.Command("sh", "-c", cmdStr).Run(); err != nil {
			log.Printf("[WARN] directsend: notify command failed: %v", err)
		}
	}()
}

// UpdateTip is the block-tip tick: it advances the tracked tip and runs
// the GC sweep.
func (e *Engine) UpdateTip(height int64) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.tipHeight = height
	e.runGC()
	e.refreshGauges()
}

// SyncTransaction records the height at
// which tx was observed on-chain (or -1 if it reverted), propagating that
// height into the candidate's votes and any mirrored orphan votes.
func (e *Engine) SyncTransaction(txHash types.Hash, height int64) {
	e.mu.Lock()
	defer e.mu.Unlock()

	cand, ok := e.candidates[txHash]
	if !ok {
		return
	}
	cand.SetConfirmedHeight(height)
	for _, v := range e.orphans.VotesForTx(txHash) {
		v.ConfirmedHeight = height
	}
}

// runGC sweeps expired candidates, stale orphan votes, failed votes, and
// dead rate-limit entries.
func (e *Engine) runGC() {
	now := e.now()

	for txHash, cand := range e.candidates {
		if cand.IsExpired(e.tipHeight, e.params.KeepLockBlocks) {
			e.evictCandidate(txHash, cand)
		}
	}

	for _, v := range e.orphans.All() {
		expired := v.ConfirmedHeight != -1 && e.tipHeight-v.ConfirmedHeight > e.params.KeepLockBlocks
		timedOut := now-v.CreatedAt > e.params.LockTimeoutSeconds
		if !expired && !timedOut {
			continue
		}
		e.removeVotedOutpoint(v.Input, v.TxHash)
		e.orphans.Remove(v.ID())
		e.votesByHash.Remove(v.ID())
	}

	// Placeholder candidates whose request never arrived persist while any
	// of their orphan votes do, so a late request is still refused as
	// timed out; once the votes are gone the placeholder goes too.
	for txHash, cand := range e.candidates {
		if !cand.HasRequest() && cand.IsTimedOut(now, e.params.LockTimeoutSeconds) && len(e.orphans.VotesForTx(txHash)) == 0 {
			delete(e.candidates, txHash)
		}
	}

	e.evictFailedVotes(now)
	e.orphans.EvictRateEntries(now)
}

func (e *Engine) evictCandidate(txHash types.Hash, cand *LockCandidate) {
	for input, lock := range cand.Locks {
		if t, ok := e.lockedOutpoints[input]; ok && t == txHash {
			delete(e.lockedOutpoints, input)
		}
		e.removeVotedOutpoint(input, txHash)
		for _, v := range lock.Votes() {
			e.votesByHash.Remove(v.ID())
		}
	}
	delete(e.candidates, txHash)
	delete(e.acceptedRequests, txHash)
	e.rejectedRequests.Remove(txHash)
}

// evictFailedVotes implements the is_failed sweep: a vote older than
// FailedTimeoutSeconds whose transaction was never locked is swept from the
// global vote cache (it stays in its OutpointLock until the candidate
// itself expires; this sweep only bounds the standalone index).
func (e *Engine) evictFailedVotes(now int64) {
	for _, id := range e.votesByHash.Keys() {
		v, ok := e.votesByHash.Peek(id)
		if !ok {
			continue
		}
		if now-v.CreatedAt <= e.params.FailedTimeoutSeconds {
			continue
		}
		if lockedTx, locked := e.lockedOutpoints[v.Input]; locked && lockedTx == v.TxHash {
			continue
		}
		e.votesByHash.Remove(id)
	}
}

func (e *Engine) refreshGauges() {
	e.metrics.SetPendingCandidates(len(e.candidates))
	e.metrics.SetOrphanVotes(e.orphans.Len())
}
