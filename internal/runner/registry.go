package runner

import (
	"sync"

	"github.com/sovereign-rollup/core/pkg/types"
)

// Registry tracks bonded sequencers, satisfying both stf.SequencerRegistry
// (which the STF driver consults to decide Ignored vs. proceeding) and
// blobselect.Registry (which the selection kernel consults when deferring
// or re-filtering blobs) — the runner is the one component that owns both
// edges of that shared fact.
type Registry struct {
	mu    sync.RWMutex
	bonds map[types.Address]uint64
}

// NewRegistry returns an empty sequencer registry.
func NewRegistry() *Registry {
	return &Registry{bonds: make(map[types.Address]uint64)}
}

// Register posts bond for addr, making it eligible to have its blobs
// executed rather than ignored.
func (r *Registry) Register(addr types.Address, bond uint64) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.bonds[addr] = bond
}

// Unregister removes addr, e.g. after its bond is slashed for an invalid
// batch signature.
func (r *Registry) Unregister(addr types.Address) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.bonds, addr)
}

// SequencerInfo implements stf.SequencerRegistry.
func (r *Registry) SequencerInfo(addr types.Address) (uint64, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	bond, ok := r.bonds[addr]
	return bond, ok
}

// IsRegistered implements blobselect.Registry.
func (r *Registry) IsRegistered(addr types.Address) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.bonds[addr]
	return ok
}
