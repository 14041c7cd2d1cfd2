package types

import "testing"

func TestDefaultParamsValid(t *testing.T) {
	if err := DefaultParams().Validate(); err != nil {
		t.Fatalf("default params should validate: %v", err)
	}
}

func TestParamsValidateRejectsBadSigsRequired(t *testing.T) {
	p := DefaultParams()
	p.SigsRequired = p.SigsTotal + 1
	if err := p.Validate(); err == nil {
		t.Error("sigs_required > sigs_total should be rejected")
	}
}

func TestParamsValidateRejectsNonPositiveTimeouts(t *testing.T) {
	p := DefaultParams()
	p.LockTimeoutSeconds = 0
	if err := p.Validate(); err == nil {
		t.Error("zero lock_timeout_seconds should be rejected")
	}
}

func TestParamsValidateRejectsZeroMaxLockValue(t *testing.T) {
	p := DefaultParams()
	p.MaxLockValue = 0
	if err := p.Validate(); err == nil {
		t.Error("zero max_lock_value should be rejected")
	}
}
