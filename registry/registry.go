package registry

import (
	"errors"
	"fmt"
	"sort"
	"sync"

	"github.com/blockberries/lockberry/types"
)

// Errors returned by CommitteeRegistry construction.
var (
	ErrEmptyValidatorSet = errors.New("registry: validator set must be non-empty")
	ErrDuplicateID       = errors.New("registry: duplicate validator id")
)

// ValidatorInfo describes one committee member.
type ValidatorInfo struct {
	ID     types.ValidatorID
	PubKey types.PublicKey
}

type validatorEntry struct {
	info   ValidatorInfo
	banned bool
}

// CommitteeRegistry is an in-memory validator_registry collaborator: it
// answers membership, per-height rank, and public-key lookups, and tracks
// PoSe bans applied by the engine.
type CommitteeRegistry struct {
	mu         sync.RWMutex
	byID       map[types.ValidatorID]*validatorEntry
	askForHook func(id types.ValidatorID, peer string)
}

// NewCommitteeRegistry builds a registry from a validator snapshot.
// Validators must be non-empty and have distinct IDs.
func NewCommitteeRegistry(validators []ValidatorInfo) (*CommitteeRegistry, error) {
	if len(validators) == 0 {
		return nil, ErrEmptyValidatorSet
	}
	byID := make(map[types.ValidatorID]*validatorEntry, len(validators))
	for _, v := range validators {
		if _, exists := byID[v.ID]; exists {
			return nil, fmt.Errorf("%w: %s", ErrDuplicateID, v.ID.String())
		}
		byID[v.ID] = &validatorEntry{info: v}
	}
	return &CommitteeRegistry{byID: byID}, nil
}

// SetAskForHook installs a callback invoked by AskFor. Hosts wire this to
// their own peer-fetch logic; the registry itself performs no network I/O.
func (r *CommitteeRegistry) SetAskForHook(hook func(id types.ValidatorID, peer string)) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.askForHook = hook
}

// Has reports whether id is a known validator, active or banned.
func (r *CommitteeRegistry) Has(id types.ValidatorID) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.byID[id]
	return ok
}

// PubKey returns the public key for a known validator.
func (r *CommitteeRegistry) PubKey(id types.ValidatorID) (types.PublicKey, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	e, ok := r.byID[id]
	if !ok {
		return types.PublicKey{}, false
	}
	return e.info.PubKey, true
}

// Rank returns id's 1-based rank among active validators for height, and
// whether id is eligible at all (known and not PoSe-banned). Rank is
// deterministic: validators are ordered by BLAKE2b(outpoint || height)
// ascending, ties broken by outpoint bytes.
func (r *CommitteeRegistry) Rank(id types.ValidatorID, height int64) (int, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	e, ok := r.byID[id]
	if !ok || e.banned {
		return 0, false
	}

	type scored struct {
		id    types.ValidatorID
		score types.Hash
	}
	active := make([]scored, 0, len(r.byID))
	for vid, entry := range r.byID {
		if entry.banned {
			continue
		}
		active = append(active, scored{id: vid, score: rankScore(vid, height)})
	}
	sort.Slice(active, func(i, j int) bool {
		if active[i].score != active[j].score {
			return lessHash(active[i].score, active[j].score)
		}
		return lessOutpoint(active[i].id, active[j].id)
	})
	for i, s := range active {
		if s.id == id {
			return i + 1, true
		}
	}
	return 0, false
}

// PoseBan disqualifies a validator from all future committees. It is
// idempotent: banning an already-banned or unknown validator is a no-op.
func (r *CommitteeRegistry) PoseBan(id types.ValidatorID) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if e, ok := r.byID[id]; ok {
		e.banned = true
	}
}

// IsBanned reports whether id has been PoSe-banned.
func (r *CommitteeRegistry) IsBanned(id types.ValidatorID) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	e, ok := r.byID[id]
	return ok && e.banned
}

// AskFor invokes the host's peer-fetch hook, if any, to request the full
// object (typically a request or vote) referencing an unknown validator.
func (r *CommitteeRegistry) AskFor(id types.ValidatorID, peer string) {
	r.mu.RLock()
	hook := r.askForHook
	r.mu.RUnlock()
	if hook != nil {
		hook(id, peer)
	}
}

// UpdateValidatorSet atomically replaces the committee snapshot, e.g. on
// a new block. PoSe bans are not carried across an update: the new
// snapshot is the source of truth for membership going forward.
func (r *CommitteeRegistry) UpdateValidatorSet(validators []ValidatorInfo) error {
	if len(validators) == 0 {
		return ErrEmptyValidatorSet
	}
	byID := make(map[types.ValidatorID]*validatorEntry, len(validators))
	for _, v := range validators {
		if _, exists := byID[v.ID]; exists {
			return fmt.Errorf("%w: %s", ErrDuplicateID, v.ID.String())
		}
		byID[v.ID] = &validatorEntry{info: v}
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.byID = byID
	return nil
}

// Size returns the number of known validators (active or banned).
func (r *CommitteeRegistry) Size() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.byID)
}

func rankScore(id types.ValidatorID, height int64) types.Hash {
	buf := make([]byte, 0, 32+4+8)
	buf = append(buf, id.Hash[:]...)
	buf = appendU32(buf, id.Index)
	buf = appendI64(buf, height)
	return types.HashBytes(buf)
}

func lessHash(a, b types.Hash) bool {
	for i := range a {
		if a[i] != b[i] {
			return a[i] < b[i]
		}
	}
	return false
}

func lessOutpoint(a, b types.Outpoint) bool {
	if a.Hash != b.Hash {
		return lessHash(a.Hash, b.Hash)
	}
	return a.Index < b.Index
}

func appendU32(buf []byte, v uint32) []byte {
	return append(buf, byte(v), byte(v>>8), byte(v>>16), byte(v>>24))
}

func appendI64(buf []byte, v int64) []byte {
	u := uint64(v)
	return append(buf, byte(u), byte(u>>8), byte(u>>16), byte(u>>24), byte(u>>32), byte(u>>40), byte(u>>48), byte(u>>56))
}
