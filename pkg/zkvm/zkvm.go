// Package zkvm declares the zkVM host/guest/verifier interface consumed by
// the prover service (C11) and replayed by the STF driver (C7), per
// spec.md §6 "ZkVM interface". Concrete backends (Risc0 and equivalents)
// are plug-ins; only a mock backend (package mock) lives in this repository.
package zkvm

import (
	"github.com/sovereign-rollup/core/pkg/types"
)

// Mode selects how the prover service drives the zkVM for a given job,
// per spec.md §4.7 start_proving.
type Mode int

const (
	// ModeSkip produces an empty proof without running the guest at all.
	ModeSkip Mode = iota
	// ModeSimulate runs the guest natively, for testing, without a real proof.
	ModeSimulate
	// ModeExecute runs inside the zkVM without producing a proof.
	ModeExecute
	// ModeProver runs inside the zkVM and produces a proof.
	ModeProver
)

func (m Mode) String() string {
	switch m {
	case ModeSkip:
		return "skip"
	case ModeSimulate:
		return "simulate"
	case ModeExecute:
		return "execute"
	case ModeProver:
		return "prover"
	default:
		return "unknown"
	}
}

// ParseMode parses the runner config's "skip|simulate|execute|prover" string.
func ParseMode(s string) Mode {
	switch s {
	case "simulate":
		return ModeSimulate
	case "execute":
		return ModeExecute
	case "prover":
		return ModeProver
	default:
		return ModeSkip
	}
}

// Proof is an opaque, serialized zero-knowledge proof plus the public
// outputs it commits to.
type Proof struct {
	Data   []byte
	Output StateTransition
}

// StateTransition is the public output a verified proof exposes, per
// spec.md §6.
type StateTransition struct {
	InitialStateRoot  types.Hash
	FinalStateRoot    types.Hash
	SlotHash          types.Hash
	RewardedAddress   types.Address
	ValidityCondition []byte
}

// Host is the native side of a zkVM backend: it accumulates hints and
// drives guest execution.
type Host interface {
	// AddHint appends a native value to the witness fed to the guest.
	AddHint(data []byte)
	// Run drives the zkVM. withProof selects whether a receipt/proof is
	// produced (ModeProver) or execution merely verified (ModeExecute).
	Run(withProof bool) (Proof, error)
	// SimulateWithHints returns a Guest pre-loaded with every hint added so
	// far, for native-side testing of the guest program without the zkVM.
	SimulateWithHints() Guest
}

// Guest is the in-circuit side: it reads hints back in the order they were
// added and commits public outputs.
type Guest interface {
	// ReadHint pops the next hint in FIFO order.
	ReadHint() ([]byte, error)
	// Commit publishes a value as part of the proof's public output.
	Commit(data []byte)
}

// CodeCommitment is a digest of the zkVM program binary used to verify
// proofs produced by it.
type CodeCommitment []byte

// Verifier checks proofs out-of-circuit, independent of any specific
// zkVM backend's native library.
type Verifier interface {
	Verify(serializedProof []byte, commitment CodeCommitment) ([]byte, error)
	VerifyAndExtractOutput(serializedProof []byte, commitment CodeCommitment) (StateTransition, error)
}
