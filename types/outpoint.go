package types

import "fmt"

// Outpoint identifies a spendable transaction output: the hash of the
// transaction that created it and the index of the output within that
// transaction's vout list.
//
// Outpoint does double duty in this protocol: it also identifies a
// validator, whose ValidatorID is the outpoint of its collateral coin.
type Outpoint struct {
	Hash  Hash
	Index uint32
}

// ValidatorID is a validator's identity: the outpoint of its collateral.
type ValidatorID = Outpoint

// NewOutpoint builds an Outpoint from a hash and index.
func NewOutpoint(hash Hash, index uint32) Outpoint {
	return Outpoint{Hash: hash, Index: index}
}

// Equal reports whether two outpoints refer to the same output.
func (o Outpoint) Equal(other Outpoint) bool {
	return o.Hash == other.Hash && o.Index == other.Index
}

// String renders the full outpoint as "<hash>-<index>".
func (o Outpoint) String() string {
	return fmt.Sprintf("%s-%d", o.Hash.String(), o.Index)
}

// ShortString renders a truncated debug identifier: "<hash prefix>-<index>".
// This is the exact byte sequence appended to a vote's sign-message.
func (o Outpoint) ShortString() string {
	return fmt.Sprintf("%s-%d", o.Hash.ShortString(), o.Index)
}
