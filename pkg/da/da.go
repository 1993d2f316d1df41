// Package da declares the data-availability interface consumed by the
// runner (C10) and STF driver (C7), per spec.md §6 "DA interface". Concrete
// DA adapters (Celestia/Avail/Solana/mock) are plug-ins implementing this
// interface; only the mock adapter (package mock) lives in this repository.
package da

import (
	"context"

	"github.com/sovereign-rollup/core/pkg/types"
)

// BlockHeader is the minimal shape the core needs from a DA block header:
// enough to identify it and order it.
type BlockHeader interface {
	Hash() types.Hash
	Height() uint64
}

// Block is a finalized DA block as returned by GetFinalizedAt.
type Block interface {
	Header() BlockHeader
}

// Blob is a byte string posted to the DA layer by a known sender.
type Blob interface {
	Sender() types.Address
	Hash() types.Hash
	// VerifiedData returns the bytes the DA verifier vouches for; this may
	// differ from the raw posted bytes once completeness/inclusion proofs
	// are accounted for.
	VerifiedData() []byte
}

// InclusionProof proves that a set of blobs is included in a DA block.
type InclusionProof []byte

// CompletenessProof proves that the set of extracted blobs is complete
// (no relevant blob was omitted).
type CompletenessProof []byte

// ValidityCondition is an opaque, DA-specific condition threaded through
// the STF and later checked by the verifier.
type ValidityCondition []byte

// DA is the interface a concrete adapter implements. The runner depends on
// this and only this — it never knows the concrete chain behind it.
type DA interface {
	// GetFinalizedAt blocks until a finalized block exists at height, or
	// returns a transient error (per spec.md §7) for the runner to retry.
	GetFinalizedAt(ctx context.Context, height uint64) (Block, error)

	// ExtractRelevantBlobs is deterministic: given the same block, it
	// always returns the same ordered blob list.
	ExtractRelevantBlobs(block Block) ([]Blob, error)

	// GetExtractionProof returns the inclusion and completeness proofs for
	// the blobs returned by ExtractRelevantBlobs on the same block.
	GetExtractionProof(block Block, blobs []Blob) (InclusionProof, CompletenessProof, error)

	// SendTransaction submits raw bytes (a batch) to the DA layer.
	SendTransaction(ctx context.Context, data []byte) error
}

// Verifier checks a DA adapter's extraction proofs without needing a live
// connection to the DA layer — the zk-replayable side of the interface.
type Verifier interface {
	VerifyRelevantTxList(header BlockHeader, blobs []Blob, inclusion InclusionProof, completeness CompletenessProof) (ValidityCondition, error)
}
