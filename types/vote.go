package types

// Vote is one validator's signed assertion that a specific input of a
// specific candidate transaction should be locked.
//
// A vote's identity — used everywhere for deduplication and map keys — is
// derived only from (TxHash, Input, Signer); Signature and CreatedAt never
// participate in identity. Two votes with the same identity but different
// signatures are the same vote observed twice, never two distinct votes.
type Vote struct {
	TxHash    Hash
	Input     Outpoint
	Signer    ValidatorID
	Signature Signature
	CreatedAt int64

	// ConfirmedHeight mirrors the containing candidate's confirmation
	// height once the underlying transaction is observed on-chain; -1
	// means "not yet confirmed". It is not part of the vote's identity.
	ConfirmedHeight int64
}

// ID returns the vote's identity hash: BLAKE2b-256 over the canonical
// encoding of (TxHash, Input, Signer) only. See encodeVoteIdentity for the
// byte layout.
func (v *Vote) ID() Hash {
	return HashBytes(encodeVoteIdentity(v))
}

// SignMessage returns the exact byte sequence a validator signs (and a
// verifier checks) for this vote: the hex transaction hash followed by the
// short string of the input outpoint.
func (v *Vote) SignMessage() []byte {
	return []byte(v.TxHash.String() + v.Input.ShortString())
}

// CopyVote returns a defensive deep copy of v, so callers handed a vote from
// engine state cannot mutate the engine's internal copy.
func CopyVote(v *Vote) *Vote {
	cp := *v
	cp.Signature = NewSignature(v.Signature)
	return &cp
}

func encodeVoteIdentity(v *Vote) []byte {
	buf := make([]byte, 0, 32+32+4+32+4)
	buf = append(buf, v.TxHash[:]...)
	buf = append(buf, v.Input.Hash[:]...)
	buf = appendUint32LE(buf, v.Input.Index)
	buf = append(buf, v.Signer.Hash[:]...)
	buf = appendUint32LE(buf, v.Signer.Index)
	return buf
}
