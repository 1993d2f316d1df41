// Package storage implements the prover storage described in spec.md §4.3
// (C3): a versioned authenticated key/value store atop internal/storage/jmt,
// a parallel non-authenticated accessory store, and the witness recording
// that lets a zk guest replay the same lookups. Grounded on
// core/merkle_tree_operations.go (same hash-based proof idea, generalized
// here into the sparse keyed tree jmt.Tree implements) and core/storage.go's
// diskLRU eviction discipline (adapted in diskcache.go).
package storage

import (
	"encoding/json"
	"fmt"
	"path/filepath"
	"sync"

	"github.com/sovereign-rollup/core/internal/cachelog"
	"github.com/sovereign-rollup/core/internal/storage/jmt"
	"github.com/sovereign-rollup/core/internal/witness"
)

// StateUpdate is the output of ComputeStateUpdate: the new root plus the
// node batch Commit must persist to make that root reachable.
type StateUpdate struct {
	Version    uint64
	PrevRoot   jmt.NodeHash
	NewRoot    jmt.NodeHash
	NodeBatch  *jmt.NodeBatch
	Preimages  map[jmt.KeyHash][]byte
}

// AccessoryWrite is a single accessory-store mutation, kept structurally
// distinct from an authenticated write so the two paths can never be
// confused at the call site (spec.md §9's accessory/authenticated split).
type AccessoryWrite struct {
	Key       []byte
	Value     []byte
	Tombstone bool
}

// Storage is the prover storage facade. It is safe for concurrent readers
// once committed state stops changing; Commit itself must be called by a
// single writer (the STF driver owns this invariant, mirroring the teacher's
// single-writer ledger discipline in core/ledger.go).
type Storage struct {
	mu sync.RWMutex

	tree  *jmt.Tree
	nodes jmt.NodeStore

	roots      map[uint64]jmt.NodeHash // version -> root hash
	preimages  map[jmt.KeyHash][]byte
	accessory  map[string][]byte
	version    uint64 // next_version - 1 once is_empty() is false; 0 before genesis
	committed  bool
}

// New returns prover storage backed by an in-memory node store, suitable for
// tests and for a prover that never needs to survive a restart.
func New() *Storage {
	nodes := jmt.NewMemStore()
	return &Storage{
		tree:      jmt.New(nodes),
		nodes:     nodes,
		roots:     make(map[uint64]jmt.NodeHash),
		preimages: make(map[jmt.KeyHash][]byte),
		accessory: make(map[string][]byte),
	}
}

// Open returns prover storage whose JMT nodes and leaves are written as files
// under dir/jmt. Version roots, the current version, key preimages and
// accessory values are held in memory only and are not reloaded by Open, so
// a Storage reopened on an existing dir reports IsEmpty.
func Open(dir string, cacheEntries int) (*Storage, error) {
	nodes, err := newDiskNodeCache(filepath.Join(dir, "jmt"), cacheEntries)
	if err != nil {
		return nil, fmt.Errorf("storage: open node cache: %w", err)
	}
	return &Storage{
		tree:      jmt.New(nodes),
		nodes:     nodes,
		roots:     make(map[uint64]jmt.NodeHash),
		preimages: make(map[jmt.KeyHash][]byte),
		accessory: make(map[string][]byte),
	}, nil
}

// IsEmpty reports whether any commit has ever happened.
func (s *Storage) IsEmpty() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return !s.committed
}

// currentRoot returns the root of the latest committed version, or the
// empty-tree root if no commit has happened yet. Caller must hold s.mu.
func (s *Storage) currentRoot() jmt.NodeHash {
	if !s.committed {
		return jmt.EmptyRootHash()
	}
	return s.roots[s.version]
}

// Get looks up key at the current version, recording the observed value (or
// its absence) into w.
func (s *Storage) Get(key []byte, w *witness.Witness) ([]byte, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	kh := jmt.HashKey(key)
	v, _, err := s.tree.Get(s.currentRoot(), kh)
	if err != nil {
		// A dangling hash indicates store corruption; surface it as a miss
		// rather than panicking mid-execution. The STF driver treats every
		// miss the same whether due to absence or corruption detection.
		if w != nil {
			w.AddStorageValue(nil)
		}
		return nil, false
	}
	if w != nil {
		w.AddStorageValue(v)
	}
	if v == nil {
		return nil, false
	}
	return v, true
}

// GetAccessory performs an accessory-only read, never recorded into a
// witness — accessory state is not observed inside zk (spec.md §4.3's
// get_accessory contract).
func (s *Storage) GetAccessory(key []byte) ([]byte, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	v, ok := s.accessory[string(key)]
	return v, ok
}

// ComputeStateUpdate takes the ordered write set from a slot's cache log and
// computes the next JMT version's root and node batch, recording the
// pre-state root, the update proof, and the post-state root into w.
func (s *Storage) ComputeStateUpdate(writes []cachelog.Record, w *witness.Witness) (*StateUpdate, error) {
	s.mu.RLock()
	prevRoot := s.currentRoot()
	nextVersion := s.version + 1
	s.mu.RUnlock()

	jmtWrites := make([]jmt.Write, len(writes))
	preimages := make(map[jmt.KeyHash][]byte, len(writes))
	for i, rec := range writes {
		kh := jmt.HashKey(rec.Key)
		preimages[kh] = append([]byte(nil), rec.Key...)
		jmtWrites[i] = jmt.Write{Key: kh, Value: rec.Value, Tombstone: rec.Tombstone}
	}

	if w != nil {
		w.AddStateRoot(prevRoot[:])
	}

	newRoot, batch, proofs, err := s.tree.PutValueSetWithProof(prevRoot, jmtWrites)
	if err != nil {
		return nil, fmt.Errorf("storage: compute state update: %w", err)
	}
	if w != nil {
		for _, p := range proofs {
			encoded, err := json.Marshal(p)
			if err != nil {
				return nil, fmt.Errorf("storage: encode proof for witness: %w", err)
			}
			w.AddMerkleProof(encoded)
		}
		w.AddStateRoot(newRoot[:])
	}

	return &StateUpdate{
		Version:   nextVersion,
		PrevRoot:  prevRoot,
		NewRoot:   newRoot,
		NodeBatch: batch,
		Preimages: preimages,
	}, nil
}

// Commit atomically persists the JMT node batch, the key preimages, and the
// accessory writes, then advances the version (spec.md §4.3 step 3).
func (s *Storage) Commit(update *StateUpdate, accessoryWrites []AccessoryWrite) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := jmt.Commit(s.nodes, update.NodeBatch); err != nil {
		return fmt.Errorf("storage: commit node batch: %w", err)
	}
	for kh, preimage := range update.Preimages {
		s.preimages[kh] = preimage
	}
	for _, aw := range accessoryWrites {
		if aw.Tombstone {
			delete(s.accessory, string(aw.Key))
			continue
		}
		s.accessory[string(aw.Key)] = append([]byte(nil), aw.Value...)
	}

	s.roots[update.Version] = update.NewRoot
	s.version = update.Version
	s.committed = true
	return nil
}

// OpenProof verifies a single inclusion/exclusion proof against a prior
// root, returning the key hash it proves and the value attested (nil for an
// exclusion proof).
func OpenProof(root jmt.NodeHash, keyHash jmt.KeyHash, value []byte, proof jmt.Proof) (jmt.KeyHash, []byte, error) {
	return jmt.OpenProof(root, keyHash, value, proof)
}

// RootAt returns the root hash committed for version v, if any.
func (s *Storage) RootAt(version uint64) (jmt.NodeHash, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	r, ok := s.roots[version]
	return r, ok
}

// CurrentVersion returns the highest committed version (0 before genesis).
func (s *Storage) CurrentVersion() uint64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.version
}

// Preimage looks up the original key bytes behind a KeyHash, if known.
func (s *Storage) Preimage(kh jmt.KeyHash) ([]byte, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	v, ok := s.preimages[kh]
	return v, ok
}
