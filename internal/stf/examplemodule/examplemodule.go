// Package examplemodule is a minimal value-setter module. It exercises
// internal/stf's Runtime dispatch, genesis, and hook plumbing in tests and
// is the only module cmd/rollupd wires into its runtime. Grounded on
// original_source/examples/demo-stf's sov_value_setter: an admin address
// set at genesis is the only sender allowed to overwrite the stored value.
package examplemodule

import (
	"encoding/json"
	"fmt"

	"github.com/sovereign-rollup/core/internal/statecontainer"
	"github.com/sovereign-rollup/core/internal/workingset"
	"github.com/sovereign-rollup/core/pkg/types"
)

// ModuleName is the name this module registers under and that CallMessage
// payloads must address to reach it.
const ModuleName = "value_setter"

// GenesisConfig is the payload Module.Genesis expects.
type GenesisConfig struct {
	Admin types.Address `json:"admin"`
	Value uint64        `json:"value"`
}

// SetValueCall is the only call this module accepts.
type SetValueCall struct {
	NewValue uint64 `json:"new_value"`
}

// Module stores a single admin-writable uint64. It holds no working-set
// reference itself — every hook receives a fresh *workingset.WorkingSet
// scoped to the current slot, so the state containers are constructed
// on demand from whatever working set the call arrives with.
type Module struct{}

// New returns a value-setter module.
func New() *Module { return &Module{} }

func adminValue(ws *workingset.WorkingSet) *statecontainer.Value[types.Address] {
	return statecontainer.NewValue[types.Address](ws, []byte("value_setter:admin"))
}

func storedValue(ws *workingset.WorkingSet) *statecontainer.Value[uint64] {
	return statecontainer.NewValue[uint64](ws, []byte("value_setter:value"))
}

// Name implements stf.Module.
func (m *Module) Name() string { return ModuleName }

// Genesis implements stf.Genesizer.
func (m *Module) Genesis(ws *workingset.WorkingSet, config json.RawMessage) error {
	var cfg GenesisConfig
	if err := json.Unmarshal(config, &cfg); err != nil {
		return fmt.Errorf("examplemodule: decode genesis config: %w", err)
	}
	if err := adminValue(ws).Set(cfg.Admin); err != nil {
		return err
	}
	return storedValue(ws).Set(cfg.Value)
}

// DispatchCall implements stf.Dispatcher.
func (m *Module) DispatchCall(ws *workingset.WorkingSet, payload json.RawMessage, sender types.Address) error {
	admin, ok := adminValue(ws).Get()
	if !ok {
		return fmt.Errorf("examplemodule: admin not set (genesis not run)")
	}
	if sender != admin {
		return fmt.Errorf("examplemodule: sender %s is not admin", sender)
	}
	var call SetValueCall
	if err := json.Unmarshal(payload, &call); err != nil {
		return fmt.Errorf("examplemodule: decode call: %w", err)
	}
	return storedValue(ws).Set(call.NewValue)
}

// Value reads the currently stored value from ws, for tests and RPC
// queries.
func (m *Module) Value(ws *workingset.WorkingSet) (uint64, bool) { return storedValue(ws).Get() }
