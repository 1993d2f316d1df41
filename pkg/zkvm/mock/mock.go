// Package mock implements pkg/zkvm entirely in memory: hints are replayed
// as-is, and "proofs" are a hash of the committed outputs. Sufficient to
// exercise every zkvm.Mode except cryptographic verification. Grounded on
// original_source/adapters/risc0/src/host.rs's add_hint/run/simulate shape.
package mock

import (
	"crypto/sha256"
	"errors"

	"github.com/sovereign-rollup/core/pkg/zkvm"
)

// ErrNoMoreHints is returned by Guest.ReadHint once every hint added by the
// host has been consumed.
var ErrNoMoreHints = errors.New("mockzkvm: no more hints")

// Host implements zkvm.Host.
type Host struct {
	hints     [][]byte
	committed [][]byte
}

// NewHost returns an empty host.
func NewHost() *Host { return &Host{} }

func (h *Host) AddHint(data []byte) {
	cp := make([]byte, len(data))
	copy(cp, data)
	h.hints = append(h.hints, cp)
}

// Run drives the guest against every hint added so far. withProof only
// changes whether Proof.Data is populated; the mock backend never fails to
// "prove" once execution succeeds.
func (h *Host) Run(withProof bool) (zkvm.Proof, error) {
	g := h.SimulateWithHints()
	for {
		if _, err := g.ReadHint(); err != nil {
			if errors.Is(err, ErrNoMoreHints) {
				break
			}
			return zkvm.Proof{}, err
		}
	}
	mg := g.(*Guest)
	hasher := sha256.New()
	for _, c := range mg.committed {
		hasher.Write(c)
	}
	var data []byte
	if withProof {
		data = hasher.Sum(nil)
	}
	return zkvm.Proof{Data: data}, nil
}

func (h *Host) SimulateWithHints() zkvm.Guest {
	hints := make([][]byte, len(h.hints))
	copy(hints, h.hints)
	return &Guest{hints: hints}
}

// Guest implements zkvm.Guest.
type Guest struct {
	hints     [][]byte
	cursor    int
	committed [][]byte
}

func (g *Guest) ReadHint() ([]byte, error) {
	if g.cursor >= len(g.hints) {
		return nil, ErrNoMoreHints
	}
	h := g.hints[g.cursor]
	g.cursor++
	return h, nil
}

func (g *Guest) Commit(data []byte) {
	cp := make([]byte, len(data))
	copy(cp, data)
	g.committed = append(g.committed, cp)
}

// Verifier implements zkvm.Verifier. Verify accepts any non-empty proof and
// returns it unchanged; it does not recompute or check the mock Host.Run hash.
type Verifier struct{}

func (Verifier) Verify(serializedProof []byte, commitment zkvm.CodeCommitment) ([]byte, error) {
	if len(serializedProof) == 0 {
		return nil, errors.New("mockzkvm: empty proof")
	}
	return serializedProof, nil
}

func (Verifier) VerifyAndExtractOutput(serializedProof []byte, commitment zkvm.CodeCommitment) (zkvm.StateTransition, error) {
	return zkvm.StateTransition{}, errors.New("mockzkvm: VerifyAndExtractOutput requires a caller-supplied output decoder; use Verify and decode the committed bytes directly")
}
