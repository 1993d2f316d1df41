package stf

import (
	"encoding/json"

	"github.com/sovereign-rollup/core/internal/witness"
	"github.com/sovereign-rollup/core/internal/workingset"
	"github.com/sovereign-rollup/core/pkg/types"
)

// CallMessage is the tagged union a decoded transaction dispatches through:
// ModuleName picks the target module, Payload is handed to it verbatim.
// This stands in for the generated dispatch sum type original_source's
// DispatchCall derive macro produces — Go has no macro layer, so the
// Runtime does the name-keyed dispatch explicitly instead.
type CallMessage struct {
	ModuleName string          `json:"module"`
	Payload    json.RawMessage `json:"payload"`
}

// Transaction is one decoded, not-yet-dispatched call within a batch.
type Transaction struct {
	Sender types.Address `json:"sender"`
	Nonce  uint64         `json:"nonce"`
	Call   CallMessage    `json:"call"`
}

// SignedBatch is the wire format a sequencer publishes: an ordered list of
// transactions plus its own signature over their encoding.
type SignedBatch struct {
	Txs       []Transaction `json:"txs"`
	Signature []byte        `json:"signature"`
}

// SlotHeader carries whatever the DA block header exposes that the STF
// needs without depending on pkg/da directly (keeping internal/stf free of
// an import cycle risk and testable with a bare struct).
type SlotHeader struct {
	Height uint64
	Hash   types.Hash
}

// Blob is one DA blob selected for execution this slot.
type Blob struct {
	Sender types.Address
	Data   []byte // RLP-encoded SignedBatch
}

// TxOutcome tags how a single transaction's dispatch resolved.
type TxOutcome int

const (
	TxSuccessful TxOutcome = iota
	TxReverted
	TxSkipped
)

func (o TxOutcome) String() string {
	switch o {
	case TxSuccessful:
		return "Successful"
	case TxReverted:
		return "Reverted"
	case TxSkipped:
		return "Skipped"
	default:
		return "Unknown"
	}
}

// TxReceipt records the outcome of dispatching a single transaction.
type TxReceipt struct {
	Sender  types.Address
	Nonce   uint64
	Hash    types.Hash
	Outcome TxOutcome
	GasUsed uint64
	Error   string `json:"error,omitempty"`
	// Events is everything this transaction (and its hooks) appended to the
	// slot's event buffer, sliced out before the buffer is flattened at
	// Freeze so the ledger can assign contiguous per-transaction ranges.
	Events []workingset.Event
}

// SlashReason names why a batch was slashed.
type SlashReason int

const (
	SlashInvalidSignature SlashReason = iota
	SlashInvalidSerialization
)

func (r SlashReason) String() string {
	switch r {
	case SlashInvalidSignature:
		return "InvalidSignature"
	case SlashInvalidSerialization:
		return "InvalidSerialization"
	default:
		return "Unknown"
	}
}

// BatchOutcomeKind tags how an entire blob's batch resolved.
type BatchOutcomeKind int

const (
	BatchRewarded BatchOutcomeKind = iota
	BatchIgnored
	BatchSlashed
)

// BatchReceipt records the outcome of one blob's batch.
type BatchReceipt struct {
	Sender      types.Address
	Hash        types.Hash
	Kind        BatchOutcomeKind
	GasConsumed uint64
	SlashReason SlashReason
	TxReceipts  []TxReceipt
}

// GenesisConfig carries per-module genesis payloads keyed by module name,
// mirroring original_source/examples/demo-stf/src/genesis_config.rs's
// per-module config struct.
type GenesisConfig map[string]json.RawMessage

// SlotResult is the output of Driver.ApplySlot: the new state root, every
// blob's batch outcome, and the witness recorded while producing them — the
// last of which the runner hands to the prover service for replay.
type SlotResult struct {
	StateRoot     types.Hash
	BatchReceipts []BatchReceipt
	Witness       *witness.Witness
}
