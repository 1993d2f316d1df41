// Package witness implements the ordered hint buffer described in
// spec.md §4.2 (C2): every storage value observed on a miss, every merkle
// proof compute_state_update produces, the pre/post state roots, and any
// extra hint the STF chooses to expose, in the exact order a zk guest must
// consume them to replay the same execution.
package witness

import (
	"encoding/json"
	"errors"
	"fmt"
)

// ErrExhausted is returned by Next when every hint previously added has
// already been consumed, in order, by the replay side.
var ErrExhausted = errors.New("witness: exhausted")

// Kind tags a hint so the replay side can sanity-check it's reading the
// value it expects, catching STF/guest drift early instead of silently
// misinterpreting bytes.
type Kind string

const (
	KindStorageValue Kind = "storage_value"
	KindMerkleProof  Kind = "merkle_proof"
	KindStateRoot    Kind = "state_root"
	KindExtra        Kind = "extra"
)

// Hint is one entry in the witness.
type Hint struct {
	Kind Kind   `json:"kind"`
	Data []byte `json:"data"`
}

// Witness is an ordered sequence of hints. The zero value is an empty,
// writable witness. Witness has value semantics for the purpose of spec.md
// §9 ("do not share them across threads mutably, pass by value into the
// prover service") — callers that need to hand a witness to another
// goroutine should call Clone first.
type Witness struct {
	hints  []Hint
	cursor int
}

// New returns an empty witness, ready for native-side recording.
func New() *Witness {
	return &Witness{}
}

// AddHint appends a hint built natively during execution.
func (w *Witness) AddHint(kind Kind, data []byte) {
	w.hints = append(w.hints, Hint{Kind: kind, Data: append([]byte(nil), data...)})
}

// AddStorageValue records a value observed on a storage miss.
func (w *Witness) AddStorageValue(data []byte) { w.AddHint(KindStorageValue, data) }

// AddMerkleProof records a merkle proof observed by compute_state_update.
func (w *Witness) AddMerkleProof(data []byte) { w.AddHint(KindMerkleProof, data) }

// AddStateRoot records a pre- or post-state root.
func (w *Witness) AddStateRoot(data []byte) { w.AddHint(KindStateRoot, data) }

// AddExtra records an arbitrary extra hint the STF chooses to expose.
func (w *Witness) AddExtra(data []byte) { w.AddHint(KindExtra, data) }

// Next pops the next hint in order, checking it has the expected kind. The
// same operation sequence replayed against the same initial state must
// consume hints with exactly the kinds and values they were recorded with;
// a Kind mismatch indicates the guest and native code have diverged.
func (w *Witness) Next(want Kind) ([]byte, error) {
	if w.cursor >= len(w.hints) {
		return nil, ErrExhausted
	}
	h := w.hints[w.cursor]
	w.cursor++
	if h.Kind != want {
		return nil, fmt.Errorf("witness: expected hint kind %q at index %d, got %q", want, w.cursor-1, h.Kind)
	}
	return h.Data, nil
}

// Len reports the total number of hints recorded.
func (w *Witness) Len() int { return len(w.hints) }

// Remaining reports how many hints have not yet been consumed by Next.
func (w *Witness) Remaining() int { return len(w.hints) - w.cursor }

// Clone returns an independent copy of w, safe to hand to another
// goroutine (e.g. the prover service) while the original continues to be
// used natively.
func (w *Witness) Clone() *Witness {
	cp := &Witness{hints: make([]Hint, len(w.hints)), cursor: w.cursor}
	for i, h := range w.hints {
		cp.hints[i] = Hint{Kind: h.Kind, Data: append([]byte(nil), h.Data...)}
	}
	return cp
}

// MarshalJSON serializes the full hint sequence (not the read cursor),
// for handing a witness to the prover service across a process boundary.
func (w *Witness) MarshalJSON() ([]byte, error) {
	return json.Marshal(w.hints)
}

// UnmarshalJSON restores a witness with its cursor reset to the start.
func (w *Witness) UnmarshalJSON(data []byte) error {
	var hints []Hint
	if err := json.Unmarshal(data, &hints); err != nil {
		return err
	}
	w.hints = hints
	w.cursor = 0
	return nil
}
