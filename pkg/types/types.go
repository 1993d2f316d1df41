// Package types holds the small value types shared across the rollup core:
// addresses, hashes, and the monotonic counters that key slots, batches,
// transactions, and events.
package types

import "encoding/hex"

// Address is a DA-layer account address (sequencer, sender, rewarded party).
type Address [20]byte

// String renders the address as a 0x-prefixed hex string.
func (a Address) String() string {
	return "0x" + hex.EncodeToString(a[:])
}

// Hash is a generic 32-byte digest: DA block hash, state root, tx hash, etc.
type Hash [32]byte

// String renders the hash as a 0x-prefixed hex string.
func (h Hash) String() string {
	return "0x" + hex.EncodeToString(h[:])
}

// IsZero reports whether h is the all-zero hash (used for the pre-genesis root).
func (h Hash) IsZero() bool {
	return h == Hash{}
}

// SlotNumber is the monotonically increasing index of a DA block's rollup
// progress. The ledger numbers committed slots from 0, in commit order.
type SlotNumber uint64

// BatchNumber is a global, monotonic, never-reset counter over all batches
// ever committed across every slot.
type BatchNumber uint64

// TxNumber is a global, monotonic, never-reset counter over all transactions
// ever committed across every batch.
type TxNumber uint64

// EventNumber is a global, monotonic, never-reset counter over all events
// ever emitted across every transaction.
type EventNumber uint64

// Range is a half-open [Start, End) range over one of the monotonic counters
// above, used to point a StoredSlot at its batches, a StoredBatch at its
// transactions, and a StoredTransaction at its events.
type Range struct {
	Start uint64 `json:"start"`
	End   uint64 `json:"end"` // exclusive
}

// Len returns the number of items the range covers.
func (r Range) Len() uint64 { return r.End - r.Start }
