package signer

import (
	"errors"
	"sync"

	"github.com/decred/dcrd/dcrec/secp256k1/v4"
	"github.com/decred/dcrd/dcrec/secp256k1/v4/ecdsa"

	"github.com/blockberries/lockberry/types"
)

// Errors returned by CollateralSigner implementations.
var (
	ErrDoubleVote    = errors.New("signer: already signed a vote for this outpoint")
	ErrInvalidPubKey = errors.New("signer: invalid public key")
)

// CollateralSigner signs and verifies vote messages with a validator's
// collateral key.
type CollateralSigner interface {
	// PublicKey returns this signer's compressed secp256k1 public key.
	PublicKey() types.PublicKey
	// Sign signs message on behalf of input, which must not have been
	// signed before by this signer (see ErrDoubleVote).
	Sign(input types.Outpoint, message []byte) (types.Signature, error)
	// Verify checks sig over message against pubkey. It does not consult
	// any watermark: verification is a pure function, usable for votes
	// from any validator, not just this process's own.
	Verify(pubkey types.PublicKey, message []byte, sig types.Signature) bool
	// LastVotedOutpoints returns the set of inputs this signer has
	// produced a vote for since process start. Exposed for tests.
	LastVotedOutpoints() []types.Outpoint
}

// InMemorySigner is a CollateralSigner backed by a secp256k1 key held only
// in process memory.
type InMemorySigner struct {
	mu    sync.Mutex
	priv  *secp256k1.PrivateKey
	pub   types.PublicKey
	voted map[types.Outpoint]bool
}

// NewInMemorySigner generates a fresh secp256k1 keypair.
func NewInMemorySigner() (*InMemorySigner, error) {
	priv, err := secp256k1.GeneratePrivateKey()
	if err != nil {
		return nil, err
	}
	return newInMemorySignerFromKey(priv)
}

// NewInMemorySignerFromBytes builds a signer from an existing 32-byte
// secp256k1 private key, e.g. one loaded by a caller from its own storage.
func NewInMemorySignerFromBytes(priv []byte) (*InMemorySigner, error) {
	key := secp256k1.PrivKeyFromBytes(priv)
	return newInMemorySignerFromKey(key)
}

func newInMemorySignerFromKey(priv *secp256k1.PrivateKey) (*InMemorySigner, error) {
	pub, err := types.NewPublicKey(priv.PubKey().SerializeCompressed())
	if err != nil {
		return nil, err
	}
	return &InMemorySigner{
		priv:  priv,
		pub:   pub,
		voted: make(map[types.Outpoint]bool),
	}, nil
}

// PublicKey implements CollateralSigner.
func (s *InMemorySigner) PublicKey() types.PublicKey {
	return s.pub
}

// Sign implements CollateralSigner.
func (s *InMemorySigner) Sign(input types.Outpoint, message []byte) (types.Signature, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.voted[input] {
		return nil, ErrDoubleVote
	}

	hash := types.HashBytes(message)
	sig := ecdsa.Sign(s.priv, hash[:])
	s.voted[input] = true
	return types.NewSignature(sig.Serialize()), nil
}

// Verify implements CollateralSigner.
func (s *InMemorySigner) Verify(pubkey types.PublicKey, message []byte, sig types.Signature) bool {
	return verify(pubkey, message, sig)
}

// LastVotedOutpoints implements CollateralSigner.
func (s *InMemorySigner) LastVotedOutpoints() []types.Outpoint {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]types.Outpoint, 0, len(s.voted))
	for o := range s.voted {
		out = append(out, o)
	}
	return out
}

func verify(pubkey types.PublicKey, message []byte, sig types.Signature) bool {
	parsedKey, err := secp256k1.ParsePubKey(pubkey[:])
	if err != nil {
		return false
	}
	parsedSig, err := ecdsa.ParseDERSignature(sig)
	if err != nil {
		return false
	}
	hash := types.HashBytes(message)
	return parsedSig.Verify(hash[:], parsedKey)
}

// Verify is a free function usable without constructing a signer, for
// collaborators (e.g. engine.ValidateVote) that only ever verify.
func Verify(pubkey types.PublicKey, message []byte, sig types.Signature) bool {
	return verify(pubkey, message, sig)
}

var _ CollateralSigner = (*InMemorySigner)(nil)
