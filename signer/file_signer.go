package signer

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/blockberries/lockberry/types"
)

const keyFilePerm = 0600

// fileSignerKey is the on-disk JSON key file structure.
type fileSignerKey struct {
	PubKey  []byte `json:"pub_key"`
	PrivKey []byte `json:"priv_key"`
}

// FileCollateralSigner is a CollateralSigner whose secp256k1 key is
// persisted to a JSON file with owner-only permissions, generating one on
// first use. It does not persist the per-outpoint watermark: the watermark
// is held in memory by the wrapped InMemorySigner and starts empty after a
// restart, as does the engine's in-memory voted_outpoints index.
type FileCollateralSigner struct {
	mu          sync.Mutex
	keyFilePath string
	inner       *InMemorySigner
}

// NewFileCollateralSigner loads the key at keyFilePath, generating and
// saving a new one if the file does not exist.
func NewFileCollateralSigner(keyFilePath string) (*FileCollateralSigner, error) {
	fs := &FileCollateralSigner{keyFilePath: keyFilePath}
	if err := fs.load(); err != nil {
		return nil, err
	}
	return fs, nil
}

func (fs *FileCollateralSigner) load() error {
	data, err := os.ReadFile(fs.keyFilePath)
	if os.IsNotExist(err) {
		inner, genErr := NewInMemorySigner()
		if genErr != nil {
			return fmt.Errorf("signer: generate key: %w", genErr)
		}
		fs.inner = inner
		return fs.save()
	}
	if err != nil {
		return fmt.Errorf("signer: read key file: %w", err)
	}

	var key fileSignerKey
	if err := json.Unmarshal(data, &key); err != nil {
		return fmt.Errorf("signer: parse key file: %w", err)
	}
	inner, err := NewInMemorySignerFromBytes(key.PrivKey)
	if err != nil {
		return fmt.Errorf("signer: load key: %w", err)
	}
	fs.inner = inner
	return nil
}

func (fs *FileCollateralSigner) save() error {
	dir := filepath.Dir(fs.keyFilePath)
	if err := os.MkdirAll(dir, 0700); err != nil {
		return fmt.Errorf("signer: create key directory: %w", err)
	}

	key := fileSignerKey{
		PubKey:  fs.inner.pub[:],
		PrivKey: fs.inner.priv.Serialize(),
	}
	data, err := json.MarshalIndent(key, "", "  ")
	if err != nil {
		return fmt.Errorf("signer: marshal key: %w", err)
	}
	if err := os.WriteFile(fs.keyFilePath, data, keyFilePerm); err != nil {
		return fmt.Errorf("signer: write key file: %w", err)
	}
	return nil
}

// PublicKey implements CollateralSigner.
func (fs *FileCollateralSigner) PublicKey() types.PublicKey {
	fs.mu.Lock()
	defer fs.mu.Unlock()
	return fs.inner.PublicKey()
}

// Sign implements CollateralSigner.
func (fs *FileCollateralSigner) Sign(input types.Outpoint, message []byte) (types.Signature, error) {
	fs.mu.Lock()
	defer fs.mu.Unlock()
	return fs.inner.Sign(input, message)
}

// Verify implements CollateralSigner.
func (fs *FileCollateralSigner) Verify(pubkey types.PublicKey, message []byte, sig types.Signature) bool {
	return verify(pubkey, message, sig)
}

// LastVotedOutpoints implements CollateralSigner.
func (fs *FileCollateralSigner) LastVotedOutpoints() []types.Outpoint {
	fs.mu.Lock()
	defer fs.mu.Unlock()
	return fs.inner.LastVotedOutpoints()
}

var _ CollateralSigner = (*FileCollateralSigner)(nil)
