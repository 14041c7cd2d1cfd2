package engine

import "github.com/blockberries/lockberry/types"

// UTXOSource resolves a spendable coin by its outpoint. The engine never
// mutates the UTXO set; it only queries it.
type UTXOSource interface {
	Coin(outpoint types.Outpoint) (types.Coin, bool)
}

// ChainSource exposes the current best-chain tip height.
type ChainSource interface {
	TipHeight() int64
}

// MempoolSource resolves the transaction currently spending outpoint in the
// mempool, if any.
type MempoolSource interface {
	Spender(outpoint types.Outpoint) (types.Hash, bool)
}

// BlockSource answers whether a transaction has already been mined.
type BlockSource interface {
	IsInBlock(txHash types.Hash) (types.Hash, bool)
}

// TxFinality answers whether a transaction's lock-time gate is fully
// resolved ("final"), a chain-consensus predicate this package treats as an
// external collaborator rather than reimplementing.
type TxFinality interface {
	IsFinalized(txHash types.Hash) bool
}

// Registry is the validator-committee collaborator: membership, per-height
// rank, public keys, and PoSe bans.
type Registry interface {
	Has(id types.ValidatorID) bool
	PubKey(id types.ValidatorID) (types.PublicKey, bool)
	Rank(id types.ValidatorID, height int64) (int, bool)
	PoseBan(id types.ValidatorID)
	AskFor(id types.ValidatorID, peer string)
}

// VerifyFunc checks a signature over message against pubkey. The free
// function signer.Verify satisfies this without requiring a full signer.
type VerifyFunc func(pubkey types.PublicKey, message []byte, sig types.Signature) bool

// FeatureFlags exposes the spork-style toggles the engine consults.
type FeatureFlags interface {
	DirectSendEnabled() bool
	BlockFilteringEnabled() bool
	LiteMode() bool
}

// Gossip relays accepted votes and requests to peers.
type Gossip interface {
	RelayVote(id types.Hash)
	RelayRequest(txHash types.Hash)
}

// LockNotifier is notified exactly once per candidate, when it completes.
type LockNotifier interface {
	TransactionLocked(req *types.Request)
}

// SelfSigner is the narrow signing surface the engine's own vote round
// needs; signer.InMemorySigner and signer.FileCollateralSigner both satisfy
// it without the engine depending on the signer package directly.
type SelfSigner interface {
	PublicKey() types.PublicKey
	Sign(input types.Outpoint, message []byte) (types.Signature, error)
}

// SelfValidator identifies this process as a validator, when present. A nil
// *SelfValidator in Deps means this node never casts its own votes.
type SelfValidator struct {
	ID     types.ValidatorID
	Signer SelfSigner
}
