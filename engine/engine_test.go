package engine

import (
	"errors"
	"testing"

	"github.com/btcsuite/btcd/btcutil"

	"github.com/blockberries/lockberry/signer"
	"github.com/blockberries/lockberry/types"
)

type testHarness struct {
	t        *testing.T
	engine   *Engine
	utxo     *fakeUTXO
	gossip   *fakeGossip
	notifier *fakeNotifier
	now      int64
}

func newTestHarness(t *testing.T, validators []testValidator, self *SelfValidator) *testHarness {
	t.Helper()
	reg, err := registryFrom(validators)
	if err != nil {
		t.Fatalf("registryFrom: %v", err)
	}
	utxo := newFakeUTXO()
	gossip := &fakeGossip{}
	notifier := &fakeNotifier{}

	h := &testHarness{t: t, utxo: utxo, gossip: gossip, notifier: notifier, now: 1000}

	params := types.DefaultParams()
	params.SigsTotal = len(validators)
	params.SigsRequired = 6

	cfg := DefaultConfig()
	e, err := NewEngine(Deps{
		Params:   params,
		Config:   cfg,
		Registry: reg,
		UTXO:     utxo,
		Chain:    utxo,
		Mempool:  utxo,
		Blocks:   utxo,
		Flags:    cfg,
		Gossip:   gossip,
		Verify:   signer.Verify,
		Notifier: notifier,
		Self:     self,
		Clock:    func() int64 { return h.now },
	})
	if err != nil {
		t.Fatalf("NewEngine: %v", err)
	}
	h.engine = e
	return h
}

func makeRequest(txHash types.Hash, vin []types.Outpoint) *types.Request {
	return &types.Request{
		TxHash: txHash,
		Vin:    vin,
		Vout: []types.TxOut{
			{Amount: btcutil.Amount(1_0000_0000), Script: []byte{0x76, 0xa9, 0x14}},
		},
	}
}

// fundInput places a spendable coin behind outpoint at the given height.
func (h *testHarness) fundInput(o types.Outpoint, height int64, value btcutil.Amount) {
	h.utxo.coins[o] = types.Coin{Height: height, Value: value, Script: []byte{0x76, 0xa9, 0x14}}
}

func TestS1HappyPathLocksOnSixVotesPerInput(t *testing.T) {
	validators := makeTestValidators(t, 10)
	h := newTestHarness(t, validators, nil)
	h.utxo.tip = 100

	txHash := types.HashBytes([]byte("tx-s1"))
	inputA := types.NewOutpoint(types.HashBytes([]byte("coinA")), 0)
	inputB := types.NewOutpoint(types.HashBytes([]byte("coinB")), 0)
	h.fundInput(inputA, 50, 5_0000_0000)
	h.fundInput(inputB, 50, 5_0000_0000)

	req := makeRequest(txHash, []types.Outpoint{inputA, inputB})
	ok, err := h.engine.IngestRequest(req)
	if !ok || err != nil {
		t.Fatalf("IngestRequest: ok=%v err=%v", ok, err)
	}

	for i := 0; i < 6; i++ {
		for _, input := range []types.Outpoint{inputA, inputB} {
			v := signVoteFor(validators[i], txHash, input, h.now)
			ok, err := h.engine.IngestVote(v, "peer")
			if !ok || err != nil {
				t.Fatalf("IngestVote[%d][%s]: ok=%v err=%v", i, input.ShortString(), ok, err)
			}
		}
	}

	if _, locked := h.engine.IsLocked(inputA); !locked {
		t.Error("input A should be locked")
	}
	if _, locked := h.engine.IsLocked(inputB); !locked {
		t.Error("input B should be locked")
	}
	if h.engine.CompletedLocksCount() != 1 {
		t.Errorf("completed locks = %d, want 1", h.engine.CompletedLocksCount())
	}
	if len(h.notifier.locked) != 1 {
		t.Errorf("notifier fired %d times, want 1", len(h.notifier.locked))
	}
}

func TestS2OrphanVotesAdoptedOnRequestArrival(t *testing.T) {
	validators := makeTestValidators(t, 10)
	h := newTestHarness(t, validators, nil)
	h.utxo.tip = 100

	txHash := types.HashBytes([]byte("tx-s2"))
	inputA := types.NewOutpoint(types.HashBytes([]byte("orphanCoin")), 0)
	h.fundInput(inputA, 50, 5_0000_0000)

	for i := 0; i < 6; i++ {
		v := signVoteFor(validators[i], txHash, inputA, h.now)
		ok, err := h.engine.IngestVote(v, "peer")
		if !ok || err != nil {
			t.Fatalf("orphan IngestVote[%d]: ok=%v err=%v", i, ok, err)
		}
	}
	if h.engine.OrphanVoteCount() != 6 {
		t.Fatalf("orphan votes = %d, want 6", h.engine.OrphanVoteCount())
	}

	req := makeRequest(txHash, []types.Outpoint{inputA})
	ok, err := h.engine.IngestRequest(req)
	if !ok || err != nil {
		t.Fatalf("IngestRequest: ok=%v err=%v", ok, err)
	}

	if _, locked := h.engine.IsLocked(inputA); !locked {
		t.Error("input should be locked after orphan adoption")
	}
	if h.engine.OrphanVoteCount() != 0 {
		t.Errorf("orphan votes after adoption = %d, want 0", h.engine.OrphanVoteCount())
	}
}

func TestS3DoubleSpendRaceFirstWins(t *testing.T) {
	all := makeTestValidators(t, 12)
	validatorsA, validatorsB := all[:6], all[6:]
	h := newTestHarness(t, all, nil)
	h.utxo.tip = 100

	shared := types.NewOutpoint(types.HashBytes([]byte("contested")), 0)
	h.fundInput(shared, 50, 5_0000_0000)

	tx1 := types.HashBytes([]byte("tx-race-1"))
	tx2 := types.HashBytes([]byte("tx-race-2"))

	req1 := makeRequest(tx1, []types.Outpoint{shared})
	req2 := makeRequest(tx2, []types.Outpoint{shared})

	if ok, err := h.engine.IngestRequest(req1); !ok || err != nil {
		t.Fatalf("ingest req1: %v %v", ok, err)
	}
	if ok, err := h.engine.IngestRequest(req2); !ok || err != nil {
		t.Fatalf("ingest req2: %v %v", ok, err)
	}

	for _, v := range validatorsA {
		vote := signVoteFor(v, tx1, shared, h.now)
		if ok, err := h.engine.IngestVote(vote, "peer"); !ok || err != nil {
			t.Fatalf("vote for tx1: %v %v", ok, err)
		}
	}
	// tx1 should now be locked (first to reach readiness among the two).
	if lockedTx, locked := h.engine.IsLocked(shared); !locked || lockedTx != tx1 {
		t.Fatalf("expected tx1 locked first, got locked=%v tx=%v", locked, lockedTx)
	}

	for _, v := range validatorsB {
		vote := signVoteFor(v, tx2, shared, h.now)
		h.engine.IngestVote(vote, "peer")
	}

	// Conflict resolution cancels both.
	if _, locked := h.engine.IsLocked(shared); locked {
		t.Error("shared input should be unlocked after completed-vs-completed conflict")
	}
}

func TestS4EquivocationMarksAttackedAndBans(t *testing.T) {
	validators := makeTestValidators(t, 10)
	h := newTestHarness(t, validators, nil)
	h.utxo.tip = 100

	shared := types.NewOutpoint(types.HashBytes([]byte("attacked-input")), 0)
	h.fundInput(shared, 50, 5_0000_0000)

	tx1 := types.HashBytes([]byte("tx-equiv-1"))
	tx2 := types.HashBytes([]byte("tx-equiv-2"))
	req1 := makeRequest(tx1, []types.Outpoint{shared})
	req2 := makeRequest(tx2, []types.Outpoint{shared})
	h.engine.IngestRequest(req1)
	h.engine.IngestRequest(req2)

	cheater := validators[0]
	v1 := signVoteFor(cheater, tx1, shared, h.now)
	if ok, err := h.engine.IngestVote(v1, "peer"); !ok || err != nil {
		t.Fatalf("vote1: %v %v", ok, err)
	}

	// The cheater signs a second vote for the SAME input under a different
	// tx_hash. InMemorySigner's own watermark (keyed by input) would refuse
	// this for an honest process, so the equivocating signature is produced
	// directly with the same key material, simulating a validator that
	// reused its key out of band.
	v2 := &types.Vote{
		TxHash:          tx2,
		Input:           shared,
		Signer:          cheater.id,
		CreatedAt:       h.now,
		ConfirmedHeight: -1,
	}
	v2.Signature = signRawUnwatermarked(cheater, v2.SignMessage())

	ok, err := h.engine.IngestVote(v2, "peer")
	if !ok {
		t.Fatalf("equivocating vote should still be accepted (evidence must propagate): ok=%v err=%v", ok, err)
	}

	cand1, _ := h.engine.Candidate(tx1)
	cand2, _ := h.engine.Candidate(tx2)
	if !cand1.Locks[shared].Attacked() {
		t.Error("tx1's lock on shared input should be attacked")
	}
	if !cand2.Locks[shared].Attacked() {
		t.Error("tx2's lock on shared input should be attacked")
	}

	if _, present := h.engine.votesByHash.Peek(v1.ID()); !present {
		t.Error("vote1 should remain stored as evidence")
	}
	if _, present := h.engine.votesByHash.Peek(v2.ID()); !present {
		t.Error("vote2 should remain stored as evidence")
	}

	reg := h.engine.registry.(interface {
		IsBanned(id types.ValidatorID) bool
	})
	if !reg.IsBanned(cheater.id) {
		t.Error("the equivocating signer should be PoSe-banned")
	}
}

func TestS5OrphanSpamRateLimited(t *testing.T) {
	validators := makeTestValidators(t, 7)
	h := newTestHarness(t, validators, nil)
	h.utxo.tip = 100

	input := types.NewOutpoint(types.HashBytes([]byte("spam-coin")), 0)
	h.fundInput(input, 50, 1_0000_0000)

	// A background fleet of honest validators each buffers one orphan vote
	// first, so the spammer's freshly-refreshed deadline sits above the
	// fleet average on its second attempt.
	for i, v := range validators[1:] {
		txHash := types.HashBytes([]byte("fleet-tx-" + string(rune('a'+i))))
		vote := &types.Vote{TxHash: txHash, Input: input, Signer: v.id, CreatedAt: h.now, ConfirmedHeight: -1}
		vote.Signature = signRawUnwatermarked(v, vote.SignMessage())
		if ok, err := h.engine.IngestVote(vote, "peer"); !ok || err != nil {
			t.Fatalf("fleet orphan vote[%d]: ok=%v err=%v", i, ok, err)
		}
	}

	h.now += 100
	spammer := validators[0]
	accepted, rejected := 0, 0
	for i := 0; i < 20; i++ {
		txHash := types.HashBytes([]byte{0xFF, byte(i), byte(i >> 8)})
		// Every spam vote references the same input under a fresh fake tx
		// hash; the signer's key is reused directly since the watermarked
		// Sign path would refuse a second vote on the same outpoint.
		v := &types.Vote{TxHash: txHash, Input: input, Signer: spammer.id, CreatedAt: h.now, ConfirmedHeight: -1}
		v.Signature = signRawUnwatermarked(spammer, v.SignMessage())
		ok, err := h.engine.IngestVote(v, "peer")
		if ok {
			accepted++
		} else if errors.Is(err, ErrSpamOrphanRate) {
			rejected++
		}
	}
	if accepted == 0 {
		t.Error("at least the first orphan vote should be accepted")
	}
	if rejected == 0 {
		t.Error("subsequent orphan votes from the same signer should be rate-limited")
	}
}

func TestS6ExpiryEvictsCandidateAndVotes(t *testing.T) {
	validators := makeTestValidators(t, 10)
	h := newTestHarness(t, validators, nil)
	h.utxo.tip = 100

	txHash := types.HashBytes([]byte("tx-s6"))
	input := types.NewOutpoint(types.HashBytes([]byte("expiring-coin")), 0)
	h.fundInput(input, 50, 5_0000_0000)

	req := makeRequest(txHash, []types.Outpoint{input})
	h.engine.IngestRequest(req)
	for i := 0; i < 6; i++ {
		v := signVoteFor(validators[i], txHash, input, h.now)
		h.engine.IngestVote(v, "peer")
	}
	if _, locked := h.engine.IsLocked(input); !locked {
		t.Fatal("input should be locked before expiry test")
	}

	h.engine.SyncTransaction(txHash, 100)
	h.engine.UpdateTip(100 + h.engine.params.KeepLockBlocks + 1)

	if _, locked := h.engine.IsLocked(input); locked {
		t.Error("input should be unlocked after expiry")
	}
	if _, exists := h.engine.Candidate(txHash); exists {
		t.Error("candidate should be evicted after expiry")
	}
}

func TestVoteIngestIsIdempotent(t *testing.T) {
	validators := makeTestValidators(t, 10)
	h := newTestHarness(t, validators, nil)
	h.utxo.tip = 100

	txHash := types.HashBytes([]byte("tx-idem"))
	input := types.NewOutpoint(types.HashBytes([]byte("idem-coin")), 0)
	h.fundInput(input, 50, 5_0000_0000)
	h.engine.IngestRequest(makeRequest(txHash, []types.Outpoint{input}))

	v := signVoteFor(validators[0], txHash, input, h.now)
	if ok, err := h.engine.IngestVote(v, "peer"); !ok || err != nil {
		t.Fatalf("first ingest: ok=%v err=%v", ok, err)
	}

	ok, err := h.engine.IngestVote(v, "peer")
	if !ok || !errors.Is(err, ErrDuplicate) {
		t.Errorf("second ingest: ok=%v err=%v, want ok=true ErrDuplicate", ok, err)
	}
	cand, _ := h.engine.Candidate(txHash)
	if got := cand.CountVotes(); got != 1 {
		t.Errorf("vote count after duplicate ingest = %d, want 1", got)
	}
	if relayed := len(h.gossip.relayedVotes); relayed != 1 {
		t.Errorf("duplicate vote relayed %d times, want 1", relayed)
	}
}

func TestLateVoteOnTimedOutCandidateRejected(t *testing.T) {
	validators := makeTestValidators(t, 10)
	h := newTestHarness(t, validators, nil)
	h.utxo.tip = 100

	txHash := types.HashBytes([]byte("tx-late"))
	input := types.NewOutpoint(types.HashBytes([]byte("late-coin")), 0)
	h.fundInput(input, 50, 5_0000_0000)
	h.engine.IngestRequest(makeRequest(txHash, []types.Outpoint{input}))

	h.now += h.engine.params.LockTimeoutSeconds + 1

	v := signVoteFor(validators[0], txHash, input, h.now)
	ok, err := h.engine.IngestVote(v, "peer")
	if ok || !errors.Is(err, ErrTimedOut) {
		t.Errorf("late vote: ok=%v err=%v, want rejection with ErrTimedOut", ok, err)
	}
}

func TestRequestRejectedOnLowFee(t *testing.T) {
	validators := makeTestValidators(t, 10)
	h := newTestHarness(t, validators, nil)
	h.utxo.tip = 100

	txHash := types.HashBytes([]byte("tx-lowfee"))
	input := types.NewOutpoint(types.HashBytes([]byte("lowfee-coin")), 0)
	// Coin value exactly equals the output value: zero fee.
	h.fundInput(input, 50, 1_0000_0000)

	req := makeRequest(txHash, []types.Outpoint{input})
	ok, err := h.engine.IngestRequest(req)
	if ok || !errors.Is(err, ErrFeeTooLow) {
		t.Fatalf("IngestRequest: ok=%v err=%v, want rejection with ErrFeeTooLow", ok, err)
	}
	if _, exists := h.engine.Candidate(txHash); exists {
		t.Error("rejected request should not create a candidate")
	}
	if _, rejected := h.engine.rejectedRequests.Peek(txHash); !rejected {
		t.Error("rejected request should be recorded")
	}
}

func TestRequestRejectedOnYoungCoin(t *testing.T) {
	validators := makeTestValidators(t, 10)
	h := newTestHarness(t, validators, nil)
	h.utxo.tip = 100

	txHash := types.HashBytes([]byte("tx-young"))
	input := types.NewOutpoint(types.HashBytes([]byte("young-coin")), 0)
	h.fundInput(input, 100, 5_0000_0000) // age 1, needs ConfirmationsRequired-1

	ok, err := h.engine.IngestRequest(makeRequest(txHash, []types.Outpoint{input}))
	if ok || !errors.Is(err, ErrTooEarly) {
		t.Errorf("IngestRequest: ok=%v err=%v, want rejection with ErrTooEarly", ok, err)
	}
}

func TestUnknownSignerTriggersAskFor(t *testing.T) {
	validators := makeTestValidators(t, 10)
	h := newTestHarness(t, validators, nil)
	h.utxo.tip = 100

	reg := h.engine.registry.(interface {
		SetAskForHook(func(id types.ValidatorID, peer string))
	})
	var askedID types.ValidatorID
	var askedPeer string
	reg.SetAskForHook(func(id types.ValidatorID, peer string) {
		askedID = id
		askedPeer = peer
	})

	txHash := types.HashBytes([]byte("tx-unknown"))
	input := types.NewOutpoint(types.HashBytes([]byte("unknown-coin")), 0)
	h.fundInput(input, 50, 5_0000_0000)

	stranger := makeTestValidators(t, 1)[0]
	stranger.id = types.NewOutpoint(types.HashBytes([]byte("stranger")), 0)
	v := signVoteFor(stranger, txHash, input, h.now)

	ok, err := h.engine.IngestVote(v, "peer-7")
	if ok || !errors.Is(err, ErrUnknownSigner) {
		t.Fatalf("IngestVote: ok=%v err=%v, want rejection with ErrUnknownSigner", ok, err)
	}
	if askedID != stranger.id || askedPeer != "peer-7" {
		t.Error("rejection should ask the sending peer for the unknown validator")
	}
}

func TestOrphanPlaceholderEvictedAfterTimeout(t *testing.T) {
	validators := makeTestValidators(t, 10)
	h := newTestHarness(t, validators, nil)
	h.utxo.tip = 100

	txHash := types.HashBytes([]byte("tx-orphan-gc"))
	input := types.NewOutpoint(types.HashBytes([]byte("orphan-gc-coin")), 0)
	h.fundInput(input, 50, 5_0000_0000)

	v := signVoteFor(validators[0], txHash, input, h.now)
	if ok, err := h.engine.IngestVote(v, "peer"); !ok || err != nil {
		t.Fatalf("orphan vote: ok=%v err=%v", ok, err)
	}
	if h.engine.OrphanVoteCount() != 1 {
		t.Fatalf("orphan count = %d, want 1", h.engine.OrphanVoteCount())
	}

	h.now += h.engine.params.LockTimeoutSeconds + 1
	h.engine.UpdateTip(101)

	if h.engine.OrphanVoteCount() != 0 {
		t.Errorf("orphan count after GC = %d, want 0", h.engine.OrphanVoteCount())
	}
	if _, exists := h.engine.Candidate(txHash); exists {
		t.Error("orphan placeholder candidate should be evicted once its votes are gone")
	}
}

func TestDirectSendDisabledNeverFinalizes(t *testing.T) {
	validators := makeTestValidators(t, 10)
	h := newTestHarness(t, validators, nil)
	h.utxo.tip = 100
	h.engine.cfg.EnableDirectSend = false

	txHash := types.HashBytes([]byte("tx-disabled"))
	input := types.NewOutpoint(types.HashBytes([]byte("disabled-coin")), 0)
	h.fundInput(input, 50, 5_0000_0000)
	h.engine.IngestRequest(makeRequest(txHash, []types.Outpoint{input}))

	for i := 0; i < 6; i++ {
		v := signVoteFor(validators[i], txHash, input, h.now)
		h.engine.IngestVote(v, "peer")
	}
	if _, locked := h.engine.IsLocked(input); locked {
		t.Error("nothing should lock while directsend is disabled")
	}
}

func TestMempoolConflictBlocksFinalize(t *testing.T) {
	validators := makeTestValidators(t, 10)
	h := newTestHarness(t, validators, nil)
	h.utxo.tip = 100

	txHash := types.HashBytes([]byte("tx-mempool"))
	input := types.NewOutpoint(types.HashBytes([]byte("mempool-coin")), 0)
	h.fundInput(input, 50, 5_0000_0000)
	h.utxo.mempool[input] = types.HashBytes([]byte("racing-tx"))

	h.engine.IngestRequest(makeRequest(txHash, []types.Outpoint{input}))
	for i := 0; i < 6; i++ {
		v := signVoteFor(validators[i], txHash, input, h.now)
		h.engine.IngestVote(v, "peer")
	}

	if _, locked := h.engine.IsLocked(input); locked {
		t.Error("candidate must not lock while a conflicting spend sits in the mempool")
	}
	ok, err := h.engine.TryFinalize(txHash)
	if ok || !errors.Is(err, ErrConflictMempool) {
		t.Errorf("TryFinalize: ok=%v err=%v, want ErrConflictMempool", ok, err)
	}
}

func TestSelfVoteRoundCastsOwnVotes(t *testing.T) {
	validators := makeTestValidators(t, 10)
	self := &SelfValidator{ID: validators[0].id, Signer: validators[0].signer}
	h := newTestHarness(t, validators, self)
	h.utxo.tip = 100

	txHash := types.HashBytes([]byte("tx-self"))
	input := types.NewOutpoint(types.HashBytes([]byte("self-coin")), 0)
	h.fundInput(input, 50, 5_0000_0000)

	if ok, err := h.engine.IngestRequest(makeRequest(txHash, []types.Outpoint{input})); !ok || err != nil {
		t.Fatalf("IngestRequest: ok=%v err=%v", ok, err)
	}

	cand, _ := h.engine.Candidate(txHash)
	if !cand.HasVoted(input, self.ID) {
		t.Fatal("engine should have cast its own vote for the request's input")
	}
	if len(h.gossip.relayedVotes) != 1 {
		t.Errorf("self vote relayed %d times, want 1", len(h.gossip.relayedVotes))
	}

	// A second request spending the same input must not trigger a second
	// self vote for it.
	tx2 := types.HashBytes([]byte("tx-self-2"))
	h.engine.IngestRequest(makeRequest(tx2, []types.Outpoint{input}))
	cand2, _ := h.engine.Candidate(tx2)
	if cand2.HasVoted(input, self.ID) {
		t.Error("engine must not double-vote on an input across candidates")
	}
}
