package engine

import "github.com/blockberries/lockberry/types"

// ValidateVote is the stateless predicate a vote must satisfy before the
// engine will accept it: the signer must be an elected validator, its
// input's coin must resolve, its deterministic rank at the coin's height
// plus the reorg-safety delay must fall within the committee, and its
// signature over the vote's sign-message must verify.
//
// Rank is computed at coin.Height+4 rather than the chain tip: the four
// block delay ensures every honest node, even one lagging slightly behind
// the tip, computes the same committee for this input.
const rankDelayBlocks = 4

func ValidateVote(v *types.Vote, registry Registry, utxo UTXOSource, verify VerifyFunc, sigsTotal int) error {
	if !registry.Has(v.Signer) {
		return ErrUnknownSigner
	}

	coin, ok := utxo.Coin(v.Input)
	if !ok {
		return ErrMalformed
	}

	nH := coin.Height + rankDelayBlocks
	rank, eligible := registry.Rank(v.Signer, nH)
	if !eligible || rank > sigsTotal {
		return ErrOutOfCommittee
	}

	pub, ok := registry.PubKey(v.Signer)
	if !ok {
		return ErrUnknownSigner
	}
	if !verify(pub, v.SignMessage(), v.Signature) {
		return ErrMalformed
	}
	return nil
}
