// Package workingset implements the transactional execution handle
// described in spec.md §4.4 (C4): a cache-log-backed view over prover
// storage, an event buffer, and a checked gas meter, with nested
// checkpoint/commit/revert scopes for transaction-within-batch-within-slot
// execution. Grounded on core/gas_table.go's flat fee-table arithmetic
// style for charge_gas, and spec.md §4.4 directly for the rest — no teacher
// file models a working set this shape, so the checkpoint/freeze plumbing
// is original, built from the cachelog/witness primitives it already
// established.
package workingset

import (
	"errors"
	"fmt"

	"github.com/sovereign-rollup/core/internal/cachelog"
	"github.com/sovereign-rollup/core/internal/storage"
	"github.com/sovereign-rollup/core/internal/witness"
)

// ErrOutOfGas is returned by ChargeGas when the requested amount would
// underflow the remaining gas balance.
var ErrOutOfGas = errors.New("workingset: out of gas")

// Event is a single application event appended during execution.
type Event struct {
	Key   []byte
	Value []byte
}

// storageBacking adapts *storage.Storage (whose Get takes a witness) to
// cachelog.Backing (whose Get does not), so the root cache log can read
// through to prover storage exactly like any nested child log reads through
// to its parent.
type storageBacking struct {
	storage *storage.Storage
	witness *witness.Witness
}

func (b storageBacking) Get(key []byte) ([]byte, bool) {
	return b.storage.Get(key, b.witness)
}

// Checkpoint is an opaque handle returned by WorkingSet.Checkpoint; pass it
// to Commit or Revert to resolve the scope it opened. Checkpoints must be
// resolved in LIFO order, like the nested transaction/batch/slot scopes
// they model.
type Checkpoint struct {
	parentLog        *cachelog.Log
	eventsLen        int
	accessoryLen     int
	gasRemainingWas  uint64
}

// WorkingSet is a transactional handle combining storage, a nested cache
// log, an event buffer, and a gas meter (spec.md §4.4). It is
// single-threaded per slot: concurrency happens at the slot boundary, never
// within a WorkingSet.
type WorkingSet struct {
	storage   *storage.Storage
	witness   *witness.Witness
	log       *cachelog.Log
	events    []Event
	accessory []storage.AccessoryWrite
	gas       uint64
}

// New opens a working set over st, recording storage misses into w, with an
// initial gas allowance of gasLimit.
func New(st *storage.Storage, w *witness.Witness, gasLimit uint64) *WorkingSet {
	backing := storageBacking{storage: st, witness: w}
	return &WorkingSet{
		storage: st,
		witness: w,
		log:     cachelog.New(backing),
		gas:     gasLimit,
	}
}

// Get reads key, cache-through to storage (recording a miss into the
// witness).
func (ws *WorkingSet) Get(key []byte) ([]byte, bool) { return ws.log.Get(key) }

// Set writes key=value into the current scope.
func (ws *WorkingSet) Set(key, value []byte) { ws.log.Set(key, value) }

// Delete tombstones key in the current scope.
func (ws *WorkingSet) Delete(key []byte) { ws.log.Delete(key) }

// SetAccessory writes to the non-authenticated accessory store. This is a
// structurally distinct operation from Set: accessory writes never reach
// the JMT node batch and so can never influence the state root, even by
// mistake (spec.md §9's accessory/authenticated split).
func (ws *WorkingSet) SetAccessory(key, value []byte) {
	ws.accessory = append(ws.accessory, storage.AccessoryWrite{
		Key: append([]byte(nil), key...), Value: append([]byte(nil), value...),
	})
}

// DeleteAccessory tombstones key in the accessory store.
func (ws *WorkingSet) DeleteAccessory(key []byte) {
	ws.accessory = append(ws.accessory, storage.AccessoryWrite{
		Key: append([]byte(nil), key...), Tombstone: true,
	})
}

// AddEvent appends an application event to the current slot's event buffer.
func (ws *WorkingSet) AddEvent(key, value []byte) {
	ws.events = append(ws.events, Event{Key: append([]byte(nil), key...), Value: append([]byte(nil), value...)})
}

// ChargeGas decrements the remaining gas balance by config*price using
// checked arithmetic, failing the current transaction on underflow
// (spec.md §4.4's charge_gas contract).
func (ws *WorkingSet) ChargeGas(config, price uint64) error {
	cost := config * price
	if config != 0 && cost/config != price {
		return fmt.Errorf("%w: gas cost overflow", ErrOutOfGas)
	}
	if cost > ws.gas {
		return ErrOutOfGas
	}
	ws.gas -= cost
	return nil
}

// GasRemaining reports the current gas balance.
func (ws *WorkingSet) GasRemaining() uint64 { return ws.gas }

// EventsLen reports how many events have been appended so far, for a caller
// that wants to slice out exactly the events a later scope contributes (the
// STF driver uses this to attribute events to the transaction that emitted
// them before they're flattened into one slot-wide buffer at Freeze).
func (ws *WorkingSet) EventsLen() int { return len(ws.events) }

// EventsSince returns a copy of the events appended after index n, as
// reported by a prior EventsLen call.
func (ws *WorkingSet) EventsSince(n int) []Event {
	if n >= len(ws.events) {
		return nil
	}
	return append([]Event(nil), ws.events[n:]...)
}

// Checkpoint opens a nested scope: a fresh cache log sits in front of the
// current one, and events/accessory/gas are snapshotted so Revert can
// unwind them. The caller must resolve the returned Checkpoint with exactly
// one of Commit or Revert before opening (or resolving) any sibling scope.
func (ws *WorkingSet) Checkpoint() *Checkpoint {
	cp := &Checkpoint{
		parentLog:       ws.log,
		eventsLen:       len(ws.events),
		accessoryLen:    len(ws.accessory),
		gasRemainingWas: ws.gas,
	}
	ws.log = cachelog.New(cp.parentLog)
	return cp
}

// Commit merges the checkpoint's scope back into its parent: cache-log
// writes are folded in, and the snapshotted events/accessory/gas prefixes
// are dropped in favor of whatever the scope actually produced.
func (ws *WorkingSet) Commit(cp *Checkpoint) error {
	if err := cp.parentLog.Merge(ws.log); err != nil {
		return fmt.Errorf("workingset: commit checkpoint: %w", err)
	}
	ws.log = cp.parentLog
	return nil
}

// Revert discards the checkpoint's scope entirely: its cache-log writes,
// any events or accessory writes appended since, and any gas charged since
// are all undone. Gas already charged before the checkpoint was opened
// remains charged — only gas spent inside the reverted scope is restored,
// matching "discard events but still advance nonce and charge base gas"
// (spec.md §4.5): base gas is charged by the caller outside the checkpoint.
func (ws *WorkingSet) Revert(cp *Checkpoint) {
	ws.log = cp.parentLog
	ws.events = ws.events[:cp.eventsLen]
	ws.accessory = ws.accessory[:cp.accessoryLen]
	ws.gas = cp.gasRemainingWas
}

// Freeze is the terminal call at slot end: it returns the ordered reads and
// writes accumulated across every resolved scope, the witness recorded
// during execution, and the event buffer.
func (ws *WorkingSet) Freeze() (reads, writes []cachelog.Record, w *witness.Witness, events []Event) {
	reads, writes = ws.log.Checkpoint()
	return reads, writes, ws.witness, append([]Event(nil), ws.events...)
}

// AccessoryWrites returns the accessory writes accumulated so far, for the
// STF driver to hand to storage.Commit alongside the computed state update.
func (ws *WorkingSet) AccessoryWrites() []storage.AccessoryWrite {
	return append([]storage.AccessoryWrite(nil), ws.accessory...)
}
