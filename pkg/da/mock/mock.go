// Package mock implements pkg/da.DA entirely in memory, for tests and as
// the DA adapter rollupd always uses. Grounded on
// original_source/adapters/mock-da/src/types/mod.rs (MockBlockHeader,
// MockHash, deterministic height-derived hashing).
package mock

import (
	"context"
	"crypto/sha256"
	"encoding/binary"
	"errors"
	"sync"

	"github.com/sovereign-rollup/core/pkg/da"
	"github.com/sovereign-rollup/core/pkg/types"
)

// ErrNotFinalized is returned by GetFinalizedAt when height has not been
// produced yet; the runner treats this as a DA-transient error and retries.
var ErrNotFinalized = errors.New("mockda: block not finalized")

// Header implements da.BlockHeader with height-derived hashes, matching the
// Rust MockBlockHeader::from_height helper.
type Header struct {
	PrevHash types.Hash
	ThisHash types.Hash
	HeightNo uint64
}

func (h Header) Hash() types.Hash { return h.ThisHash }
func (h Header) Height() uint64   { return h.HeightNo }

func headerFromHeight(height uint64) Header {
	return Header{
		PrevHash: hashOfHeight(height),
		ThisHash: hashOfHeight(height + 1),
		HeightNo: height,
	}
}

func hashOfHeight(height uint64) types.Hash {
	var buf [8]byte
	binary.BigEndian.PutUint64(buf[:], height)
	return sha256.Sum256(buf[:])
}

// Block implements da.Block.
type Block struct {
	Hdr   Header
	Blobs []Blob
}

func (b Block) Header() da.BlockHeader { return b.Hdr }

// Blob implements da.Blob.
type Blob struct {
	From types.Address
	Data []byte
}

func (b Blob) Sender() types.Address  { return b.From }
func (b Blob) Hash() types.Hash       { return sha256.Sum256(b.Data) }
func (b Blob) VerifiedData() []byte   { return b.Data }

// DA is an in-memory, single-process implementation of da.DA. Blocks must be
// registered via Produce before GetFinalizedAt will return them, modeling
// DA finality arriving asynchronously.
type DA struct {
	mu     sync.Mutex
	blocks map[uint64]Block
	sent   [][]byte
}

// New returns an empty mock DA layer.
func New() *DA {
	return &DA{blocks: make(map[uint64]Block)}
}

// Produce finalizes a block at height carrying the given blobs, each posted
// by sender from.
func (d *DA) Produce(height uint64, blobs []Blob) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.blocks[height] = Block{Hdr: headerFromHeight(height), Blobs: blobs}
}

func (d *DA) GetFinalizedAt(ctx context.Context, height uint64) (da.Block, error) {
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	default:
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	b, ok := d.blocks[height]
	if !ok {
		return nil, ErrNotFinalized
	}
	return b, nil
}

func (d *DA) ExtractRelevantBlobs(block da.Block) ([]da.Blob, error) {
	b, ok := block.(Block)
	if !ok {
		return nil, errors.New("mockda: unexpected block type")
	}
	out := make([]da.Blob, len(b.Blobs))
	for i, blob := range b.Blobs {
		out[i] = blob
	}
	return out, nil
}

// GetExtractionProof returns deterministic, non-cryptographic stand-in
// proofs: the mock adapter's whole point is to skip real DA verification.
func (d *DA) GetExtractionProof(block da.Block, blobs []da.Blob) (da.InclusionProof, da.CompletenessProof, error) {
	return da.InclusionProof{0x01}, da.CompletenessProof{0x01}, nil
}

func (d *DA) SendTransaction(ctx context.Context, data []byte) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	default:
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	cp := make([]byte, len(data))
	copy(cp, data)
	d.sent = append(d.sent, cp)
	return nil
}

// Sent returns every blob submitted via SendTransaction, in order.
func (d *DA) Sent() [][]byte {
	d.mu.Lock()
	defer d.mu.Unlock()
	out := make([][]byte, len(d.sent))
	copy(out, d.sent)
	return out
}

// Verifier implements da.Verifier by unconditionally accepting the proofs
// the mock DA produces.
type Verifier struct{}

func (Verifier) VerifyRelevantTxList(header da.BlockHeader, blobs []da.Blob, inclusion da.InclusionProof, completeness da.CompletenessProof) (da.ValidityCondition, error) {
	if len(inclusion) == 0 || len(completeness) == 0 {
		return nil, errors.New("mockda: missing proof")
	}
	return da.ValidityCondition{0x01}, nil
}
