package signer

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/blockberries/lockberry/types"
)

func TestInMemorySignerSignAndVerify(t *testing.T) {
	s, err := NewInMemorySigner()
	if err != nil {
		t.Fatalf("NewInMemorySigner: %v", err)
	}

	input := types.NewOutpoint(types.HashBytes([]byte("coin1")), 0)
	msg := []byte("tx1" + input.ShortString())

	sig, err := s.Sign(input, msg)
	if err != nil {
		t.Fatalf("Sign: %v", err)
	}
	if !s.Verify(s.PublicKey(), msg, sig) {
		t.Error("signature should verify against its own public key")
	}
	if s.Verify(s.PublicKey(), []byte("different message"), sig) {
		t.Error("signature should not verify against a different message")
	}
}

func TestInMemorySignerRejectsDoubleVote(t *testing.T) {
	s, _ := NewInMemorySigner()
	input := types.NewOutpoint(types.HashBytes([]byte("coin1")), 0)

	if _, err := s.Sign(input, []byte("msg1")); err != nil {
		t.Fatalf("first sign should succeed: %v", err)
	}
	if _, err := s.Sign(input, []byte("msg2")); !errors.Is(err, ErrDoubleVote) {
		t.Errorf("expected ErrDoubleVote, got %v", err)
	}
}

func TestInMemorySignerDistinctOutpointsIndependent(t *testing.T) {
	s, _ := NewInMemorySigner()
	a := types.NewOutpoint(types.HashBytes([]byte("coin1")), 0)
	b := types.NewOutpoint(types.HashBytes([]byte("coin2")), 0)

	if _, err := s.Sign(a, []byte("msg")); err != nil {
		t.Fatalf("sign a: %v", err)
	}
	if _, err := s.Sign(b, []byte("msg")); err != nil {
		t.Fatalf("sign b should succeed independently: %v", err)
	}
	if got := len(s.LastVotedOutpoints()); got != 2 {
		t.Errorf("expected 2 voted outpoints, got %d", got)
	}
}

func TestFileCollateralSignerPersistsAcrossLoads(t *testing.T) {
	dir := t.TempDir()
	keyPath := filepath.Join(dir, "keys", "collateral_key.json")

	s1, err := NewFileCollateralSigner(keyPath)
	if err != nil {
		t.Fatalf("NewFileCollateralSigner: %v", err)
	}
	if _, err := os.Stat(keyPath); err != nil {
		t.Fatalf("expected key file to be created: %v", err)
	}

	s2, err := NewFileCollateralSigner(keyPath)
	if err != nil {
		t.Fatalf("reload NewFileCollateralSigner: %v", err)
	}
	if s1.PublicKey() != s2.PublicKey() {
		t.Error("reloading the key file should produce the same public key")
	}
}

func TestFileCollateralSignerKeyFilePermissions(t *testing.T) {
	dir := t.TempDir()
	keyPath := filepath.Join(dir, "collateral_key.json")

	if _, err := NewFileCollateralSigner(keyPath); err != nil {
		t.Fatalf("NewFileCollateralSigner: %v", err)
	}
	info, err := os.Stat(keyPath)
	if err != nil {
		t.Fatalf("Stat: %v", err)
	}
	if perm := info.Mode().Perm(); perm != keyFilePerm {
		t.Errorf("expected key file perm %o, got %o", keyFilePerm, perm)
	}
}
