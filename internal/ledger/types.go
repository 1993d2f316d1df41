// Package ledger implements the persisted ledger store described in
// spec.md §6 "Persisted layout" + RPC surface (C8): slots, batches,
// transactions, and events keyed by monotonic numbers, each referencing a
// half-open range of the next-finer-grained record, with hash->number
// indexes and a mode-controlled child-expansion RPC surface. Records go to
// an append-only WAL that is replayed on Open; there is no snapshot file
// and no pruning. Grounded on core/ledger.go's WAL discipline, adapted
// from a block/UTXO model to a slot/batch/tx/event model, plus
// original_source/full-node/sov-ledger-rpc for the mode semantics.
package ledger

import (
	"github.com/sovereign-rollup/core/pkg/types"
)

// Mode controls how deep a getter expands child records.
type Mode uint8

const (
	// Compact returns only the requested record's own fields.
	Compact Mode = iota
	// Standard additionally expands one level of direct children.
	Standard
	// Full recursively expands every descendant down to events.
	Full
)

// StoredEvent is one application event emitted by a transaction.
type StoredEvent struct {
	Number types.EventNumber
	TxNumber types.TxNumber
	Key    []byte
	Value  []byte
}

// StoredTransaction is one dispatched transaction's outcome.
type StoredTransaction struct {
	Number      types.TxNumber
	BatchNumber types.BatchNumber
	Hash        types.Hash
	Sender      types.Address
	Nonce       uint64
	Outcome     uint8 // mirrors stf.TxOutcome
	GasUsed     uint64
	Events      types.Range // half-open event-number range
}

// StoredBatch is one blob's batch outcome.
type StoredBatch struct {
	Number      types.BatchNumber
	SlotNumber  types.SlotNumber
	Hash        types.Hash
	Sender      types.Address
	Outcome     uint8 // mirrors stf.BatchOutcomeKind
	SlashReason uint8
	GasConsumed uint64
	Txs         types.Range // half-open tx-number range
}

// StoredSlot is one applied slot.
type StoredSlot struct {
	Number    types.SlotNumber
	Hash      types.Hash
	StateRoot types.Hash
	Batches   types.Range // half-open batch-number range
}

// SlotView is the expanded form of a slot returned by the RPC surface, its
// depth controlled by Mode.
type SlotView struct {
	Slot    StoredSlot
	Batches []BatchView `json:"batches,omitempty"`
}

// BatchView is the expanded form of a batch.
type BatchView struct {
	Batch StoredBatch
	Txs   []TxView `json:"txs,omitempty"`
}

// TxView is the expanded form of a transaction.
type TxView struct {
	Tx     StoredTransaction
	Events []StoredEvent `json:"events,omitempty"`
}
