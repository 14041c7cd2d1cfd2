package types

import (
	"fmt"

	"github.com/btcsuite/btcd/btcutil"
)

// Params bundles the numeric consensus constants that size a committee and
// its deadlines. It is injected into the engine at construction instead of
// compiled in, so a host can tune it (or run distinct test/main-net
// parameter sets) without touching engine code.
type Params struct {
	// SigsTotal is the size of the elected committee for each input.
	SigsTotal int
	// SigsRequired is the number of distinct validator votes an input
	// needs before its OutpointLock is ready.
	SigsRequired int

	// LockTimeoutSeconds bounds how long a candidate may sit without
	// reaching readiness before it is considered timed out.
	LockTimeoutSeconds int64
	// FailedTimeoutSeconds bounds how long an unlocked candidate's votes
	// may live before they are swept as failed.
	FailedTimeoutSeconds int64
	// OrphanExpireSeconds is the per-signer orphan rate-limit window: each
	// accepted orphan vote pushes its signer's deadline to now plus this.
	// Orphan votes themselves are evicted after LockTimeoutSeconds.
	OrphanExpireSeconds int64

	// ConfirmationsRequired sets the coin-age threshold: an input's age in
	// blocks (tip height - coin height + 1) must be at least
	// ConfirmationsRequired-1 before it is eligible for locking.
	ConfirmationsRequired int64
	// KeepLockBlocks is how many confirmations past a lock's inclusion
	// height its state is retained before garbage collection.
	KeepLockBlocks int64

	// MaxLockValue caps the total input value a single request may lock.
	MaxLockValue btcutil.Amount
	// MinFee is the minimum fee (MinFee * len(vin) at least) a request
	// must pay to be eligible.
	MinFee btcutil.Amount

	// WarnManyInputs is a soft threshold: requests with more inputs than
	// this are accepted but logged at a higher severity as a spam smell.
	WarnManyInputs int
}

// DefaultParams returns the constants observed on the reference network:
// a 10-member committee requiring 6 votes, a 15s lock timeout, a 60s failed
// sweep, and a 600s orphan window.
func DefaultParams() *Params {
	return &Params{
		SigsTotal:             10,
		SigsRequired:          6,
		LockTimeoutSeconds:    15,
		FailedTimeoutSeconds:  60,
		OrphanExpireSeconds:   600,
		ConfirmationsRequired: 6,
		KeepLockBlocks:        6,
		MaxLockValue:          1000 * btcutil.SatoshiPerBitcoin,
		MinFee:                1000,
		WarnManyInputs:        100,
	}
}

// Validate checks internal consistency of the parameter set.
func (p *Params) Validate() error {
	if p.SigsTotal <= 0 {
		return fmt.Errorf("types: params: sigs_total must be positive, got %d", p.SigsTotal)
	}
	if p.SigsRequired <= 0 || p.SigsRequired > p.SigsTotal {
		return fmt.Errorf("types: params: sigs_required (%d) must be in (0, sigs_total=%d]", p.SigsRequired, p.SigsTotal)
	}
	if p.LockTimeoutSeconds <= 0 {
		return fmt.Errorf("types: params: lock_timeout_seconds must be positive, got %d", p.LockTimeoutSeconds)
	}
	if p.FailedTimeoutSeconds <= 0 {
		return fmt.Errorf("types: params: failed_timeout_seconds must be positive, got %d", p.FailedTimeoutSeconds)
	}
	if p.OrphanExpireSeconds <= 0 {
		return fmt.Errorf("types: params: orphan_expire_seconds must be positive, got %d", p.OrphanExpireSeconds)
	}
	if p.ConfirmationsRequired < 0 {
		return fmt.Errorf("types: params: confirmations_required must be non-negative, got %d", p.ConfirmationsRequired)
	}
	if p.KeepLockBlocks < 0 {
		return fmt.Errorf("types: params: keep_lock_blocks must be non-negative, got %d", p.KeepLockBlocks)
	}
	if p.MaxLockValue <= 0 {
		return fmt.Errorf("types: params: max_lock_value must be positive, got %d", p.MaxLockValue)
	}
	if p.MinFee < 0 {
		return fmt.Errorf("types: params: min_fee must be non-negative, got %d", p.MinFee)
	}
	return nil
}
