package engine

import (
	"testing"

	"github.com/decred/dcrd/dcrec/secp256k1/v4"
	"github.com/decred/dcrd/dcrec/secp256k1/v4/ecdsa"

	"github.com/blockberries/lockberry/registry"
	"github.com/blockberries/lockberry/signer"
	"github.com/blockberries/lockberry/types"
)

// fakeUTXO is an in-memory UTXOSource/MempoolSource/BlockSource/ChainSource
// test double.
type fakeUTXO struct {
	coins   map[types.Outpoint]types.Coin
	tip     int64
	mempool map[types.Outpoint]types.Hash
	blocks  map[types.Hash]types.Hash
}

func newFakeUTXO() *fakeUTXO {
	return &fakeUTXO{
		coins:   make(map[types.Outpoint]types.Coin),
		mempool: make(map[types.Outpoint]types.Hash),
		blocks:  make(map[types.Hash]types.Hash),
	}
}

func (f *fakeUTXO) Coin(o types.Outpoint) (types.Coin, bool) {
	c, ok := f.coins[o]
	return c, ok
}

func (f *fakeUTXO) TipHeight() int64 { return f.tip }

func (f *fakeUTXO) Spender(o types.Outpoint) (types.Hash, bool) {
	h, ok := f.mempool[o]
	return h, ok
}

func (f *fakeUTXO) IsInBlock(txHash types.Hash) (types.Hash, bool) {
	h, ok := f.blocks[txHash]
	return h, ok
}

// fakeGossip just records relayed ids.
type fakeGossip struct {
	relayedVotes []types.Hash
	relayedReqs  []types.Hash
}

func (g *fakeGossip) RelayVote(id types.Hash)    { g.relayedVotes = append(g.relayedVotes, id) }
func (g *fakeGossip) RelayRequest(tx types.Hash) { g.relayedReqs = append(g.relayedReqs, tx) }

// fakeNotifier records locked requests.
type fakeNotifier struct {
	locked []*types.Request
}

func (n *fakeNotifier) TransactionLocked(req *types.Request) {
	n.locked = append(n.locked, req)
}

// testValidator bundles a committee member's signer and registry entry. priv
// is kept alongside the watermarked signer so tests that need to construct a
// byzantine equivocating vote (impossible through the watermarked Sign path)
// can sign directly with the same key material.
type testValidator struct {
	id     types.ValidatorID
	signer *signer.InMemorySigner
	priv   *secp256k1.PrivateKey
}

func makeTestValidators(t *testing.T, n int) []testValidator {
	vs := make([]testValidator, n)
	for i := 0; i < n; i++ {
		priv, err := secp256k1.GeneratePrivateKey()
		if err != nil {
			t.Fatalf("GeneratePrivateKey: %v", err)
		}
		s, err := signer.NewInMemorySignerFromBytes(priv.Serialize())
		if err != nil {
			t.Fatalf("NewInMemorySignerFromBytes: %v", err)
		}
		hash := types.HashBytes([]byte{byte(i), byte(i >> 8), byte(i >> 16)})
		vs[i] = testValidator{
			id:     types.NewOutpoint(hash, uint32(i)),
			signer: s,
			priv:   priv,
		}
	}
	return vs
}

func registryFrom(vs []testValidator) (*registry.CommitteeRegistry, error) {
	infos := make([]registry.ValidatorInfo, len(vs))
	for i, v := range vs {
		infos[i] = registry.ValidatorInfo{ID: v.id, PubKey: v.signer.PublicKey()}
	}
	return registry.NewCommitteeRegistry(infos)
}

// signVoteFor builds a validly-signed vote for validator v on input,
// targeting candidate txHash, at createdAt.
func signVoteFor(v testValidator, txHash types.Hash, input types.Outpoint, createdAt int64) *types.Vote {
	vote := &types.Vote{
		TxHash:          txHash,
		Input:           input,
		Signer:          v.id,
		CreatedAt:       createdAt,
		ConfirmedHeight: -1,
	}
	sig, err := v.signer.Sign(input, vote.SignMessage())
	if err != nil {
		panic(err)
	}
	vote.Signature = sig
	return vote
}

// signRawUnwatermarked signs message with v's private key directly,
// bypassing InMemorySigner's one-vote-per-outpoint watermark. Used only to
// construct equivocation fixtures: a real byzantine validator reuses its key
// out of band, which the watermark exists precisely to prevent honest nodes
// from doing by accident.
func signRawUnwatermarked(v testValidator, message []byte) types.Signature {
	hash := types.HashBytes(message)
	sig := ecdsa.Sign(v.priv, hash[:])
	return types.NewSignature(sig.Serialize())
}
