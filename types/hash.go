package types

import (
	"bytes"
	"encoding/hex"
	"fmt"

	"golang.org/x/crypto/blake2b"
)

// HashSize is the size of a Hash in bytes.
const HashSize = 32

// PublicKeySize is the size of a compressed secp256k1 public key in bytes.
const PublicKeySize = 33

// Hash is a fixed-width 32-byte digest.
type Hash [HashSize]byte

// PublicKey is a compressed secp256k1 public key.
type PublicKey [PublicKeySize]byte

// Signature is a DER-encoded secp256k1 signature. Unlike Hash and
// PublicKey, signatures are variable-length, so this is a defensive copy of
// a byte slice rather than a fixed array.
type Signature []byte

// NewHash builds a Hash from bytes, returning an error if the length is wrong.
// Use for untrusted input (network, files).
func NewHash(data []byte) (Hash, error) {
	if len(data) != HashSize {
		return Hash{}, fmt.Errorf("hash must be %d bytes, got %d", HashSize, len(data))
	}
	var h Hash
	copy(h[:], data)
	return h, nil
}

// MustNewHash builds a Hash, panicking if the length is wrong.
// Use only for trusted internal data.
func MustNewHash(data []byte) Hash {
	h, err := NewHash(data)
	if err != nil {
		panic(err)
	}
	return h
}

// HashBytes computes the BLAKE2b-256 digest of data.
func HashBytes(data []byte) Hash {
	return blake2b.Sum256(data)
}

// IsHashEmpty reports whether h is the zero hash.
func IsHashEmpty(h Hash) bool {
	return h == Hash{}
}

// HashEqual compares two hashes for equality.
func HashEqual(a, b Hash) bool {
	return a == b
}

// String returns the hex encoding of h.
func (h Hash) String() string {
	return hex.EncodeToString(h[:])
}

// ShortString returns the first 8 hex characters of h, for logging.
func (h Hash) ShortString() string {
	s := h.String()
	if len(s) > 8 {
		return s[:8]
	}
	return s
}

// NewPublicKey builds a PublicKey from bytes, returning an error if the
// length is wrong. Use for untrusted input (network, files).
func NewPublicKey(data []byte) (PublicKey, error) {
	if len(data) != PublicKeySize {
		return PublicKey{}, fmt.Errorf("public key must be %d bytes, got %d", PublicKeySize, len(data))
	}
	var p PublicKey
	copy(p[:], data)
	return p, nil
}

// PublicKeyEqual compares two public keys for equality.
func PublicKeyEqual(a, b PublicKey) bool {
	return a == b
}

// NewSignature makes a defensive copy of data into a Signature.
func NewSignature(data []byte) Signature {
	copied := make([]byte, len(data))
	copy(copied, data)
	return Signature(copied)
}

// SignatureEqual compares two signatures for equality.
func SignatureEqual(a, b Signature) bool {
	return bytes.Equal(a, b)
}
