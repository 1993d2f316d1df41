// Package stf implements the state-transition driver described in
// spec.md §4.5 (C7): the Idle -> InSlot -> PerBlob* -> Idle pipeline that
// turns a slot's worth of DA blobs into a new state root and a set of
// batch/transaction receipts. Grounded on core/rollups.go's Aggregator
// (SubmitBatch/FinalizeBatch batch-state machine, generalized here from an
// optimistic-rollup challenge period into an immediate per-tx
// checkpoint/commit/revert discipline) and
// original_source/examples/demo-stf/src/runtime.rs +
// genesis_config.rs for the module-DAG/genesis shape.
package stf

import (
	"encoding/json"
	"fmt"

	"github.com/sovereign-rollup/core/internal/workingset"
	"github.com/sovereign-rollup/core/pkg/types"
)

// Module is the minimum every rollup module implements: a stable name used
// both for genesis config lookup and for CallMessage dispatch.
type Module interface {
	Name() string
}

// Genesizer modules run once, at chain genesis.
type Genesizer interface {
	Genesis(ws *workingset.WorkingSet, config json.RawMessage) error
}

// BeginSlotHooker modules observe the start of every slot.
type BeginSlotHooker interface {
	BeginSlotHook(ws *workingset.WorkingSet, header SlotHeader, validityCond []byte, preRoot types.Hash) error
}

// EndSlotHooker modules observe the end of every slot.
type EndSlotHooker interface {
	EndSlotHook(ws *workingset.WorkingSet) error
}

// BeginBlobHooker modules observe the start of each blob within a slot.
type BeginBlobHooker interface {
	BeginBlobHook(ws *workingset.WorkingSet, sender types.Address) error
}

// PreDispatchTxHooker modules may reject a transaction before dispatch,
// charging no gas and causing no state change.
type PreDispatchTxHooker interface {
	PreDispatchTxHook(ws *workingset.WorkingSet, tx *Transaction) (skip bool, err error)
}

// PostDispatchTxHooker modules observe every transaction after dispatch,
// whether it succeeded or reverted, running against the post-checkpoint
// state either way.
type PostDispatchTxHooker interface {
	PostDispatchTxHook(ws *workingset.WorkingSet, tx *Transaction, outcome TxOutcome) error
}

// Dispatcher modules handle CallMessage payloads addressed to them by name.
// sender is the transaction's signer, for modules that gate a call on who
// sent it (e.g. an admin-only ValueSetter).
type Dispatcher interface {
	DispatchCall(ws *workingset.WorkingSet, payload json.RawMessage, sender types.Address) error
}

// Runtime holds the chain's modules in declaration order — the order every
// hook and genesis call runs in, matching
// original_source/examples/demo-stf/src/runtime.rs's field-declaration-order
// dispatch convention.
type Runtime struct {
	modules []Module
	byName  map[string]Module
}

// NewRuntime builds a Runtime from modules in declaration order. Module
// names must be unique.
func NewRuntime(modules ...Module) (*Runtime, error) {
	byName := make(map[string]Module, len(modules))
	for _, m := range modules {
		if _, dup := byName[m.Name()]; dup {
			return nil, fmt.Errorf("stf: duplicate module name %q", m.Name())
		}
		byName[m.Name()] = m
	}
	return &Runtime{modules: modules, byName: byName}, nil
}

func (r *Runtime) runGenesis(ws *workingset.WorkingSet, cfg GenesisConfig) error {
	for _, m := range r.modules {
		g, ok := m.(Genesizer)
		if !ok {
			continue
		}
		payload := cfg[m.Name()]
		if err := g.Genesis(ws, payload); err != nil {
			return fmt.Errorf("stf: genesis %s: %w", m.Name(), err)
		}
	}
	return nil
}

func (r *Runtime) runBeginSlot(ws *workingset.WorkingSet, header SlotHeader, validityCond []byte, preRoot types.Hash) error {
	for _, m := range r.modules {
		h, ok := m.(BeginSlotHooker)
		if !ok {
			continue
		}
		if err := h.BeginSlotHook(ws, header, validityCond, preRoot); err != nil {
			return fmt.Errorf("stf: begin_slot_hook %s: %w", m.Name(), err)
		}
	}
	return nil
}

func (r *Runtime) runEndSlot(ws *workingset.WorkingSet) error {
	for _, m := range r.modules {
		h, ok := m.(EndSlotHooker)
		if !ok {
			continue
		}
		if err := h.EndSlotHook(ws); err != nil {
			return fmt.Errorf("stf: end_slot_hook %s: %w", m.Name(), err)
		}
	}
	return nil
}

func (r *Runtime) runBeginBlob(ws *workingset.WorkingSet, sender types.Address) error {
	for _, m := range r.modules {
		h, ok := m.(BeginBlobHooker)
		if !ok {
			continue
		}
		if err := h.BeginBlobHook(ws, sender); err != nil {
			return fmt.Errorf("stf: begin_blob_hook %s: %w", m.Name(), err)
		}
	}
	return nil
}

// runPreDispatch returns skip=true if any module rejects the transaction.
func (r *Runtime) runPreDispatch(ws *workingset.WorkingSet, tx *Transaction) (bool, error) {
	for _, m := range r.modules {
		h, ok := m.(PreDispatchTxHooker)
		if !ok {
			continue
		}
		skip, err := h.PreDispatchTxHook(ws, tx)
		if err != nil {
			return false, fmt.Errorf("stf: pre_dispatch_tx_hook %s: %w", m.Name(), err)
		}
		if skip {
			return true, nil
		}
	}
	return false, nil
}

func (r *Runtime) runPostDispatch(ws *workingset.WorkingSet, tx *Transaction, outcome TxOutcome) error {
	for _, m := range r.modules {
		h, ok := m.(PostDispatchTxHooker)
		if !ok {
			continue
		}
		if err := h.PostDispatchTxHook(ws, tx, outcome); err != nil {
			return fmt.Errorf("stf: post_dispatch_tx_hook %s: %w", m.Name(), err)
		}
	}
	return nil
}

// dispatchCall forwards a CallMessage to the named module.
func (r *Runtime) dispatchCall(ws *workingset.WorkingSet, call CallMessage, sender types.Address) error {
	m, ok := r.byName[call.ModuleName]
	if !ok {
		return fmt.Errorf("stf: unknown module %q", call.ModuleName)
	}
	d, ok := m.(Dispatcher)
	if !ok {
		return fmt.Errorf("stf: module %q does not accept calls", call.ModuleName)
	}
	return d.DispatchCall(ws, call.Payload, sender)
}
