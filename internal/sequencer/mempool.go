// Package sequencer implements the mempool and batch-building service
// described in spec.md §6 (C9): a nonce-ordered mempool keyed by sender,
// drained into signed batches published to the DA layer.
//
// Grounded on original_source/full-node/sov-sequencer/src/lib.rs's
// Sequencer<BatchBuilder, DaService> (accept_tx / submit_batch, a mutex
// around a single batch builder), translated to Go with the batch-signature
// scheme internal/stf already verifies with.
package sequencer

import (
	"errors"
	"fmt"
	"sync"

	"github.com/ethereum/go-ethereum/rlp"

	"github.com/sovereign-rollup/core/internal/stf"
	"github.com/sovereign-rollup/core/pkg/types"
)

// ErrStaleNonce is returned by Accept when tx's nonce does not strictly
// exceed the nonce of the sender's last transaction still queued.
var ErrStaleNonce = errors.New("sequencer: stale or duplicate nonce")

// ErrEmptyMempool is returned by BuildBatch when there is nothing to drain.
var ErrEmptyMempool = errors.New("sequencer: mempool is empty")

// Mempool holds pending transactions grouped by sender, each group kept in
// strictly increasing nonce order, with senders served round-robin when
// draining so no single sender can starve the others out of a batch.
type Mempool struct {
	mu       sync.Mutex
	bySender map[types.Address][]stf.Transaction
	order    []types.Address
}

// NewMempool returns an empty mempool.
func NewMempool() *Mempool {
	return &Mempool{bySender: make(map[types.Address][]stf.Transaction)}
}

// Accept enqueues tx, rejecting it if it does not strictly increase on the
// sender's last-queued nonce.
func (m *Mempool) Accept(tx stf.Transaction) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	q := m.bySender[tx.Sender]
	if len(q) > 0 && tx.Nonce <= q[len(q)-1].Nonce {
		return fmt.Errorf("%w: sender %s nonce %d, last queued %d", ErrStaleNonce, tx.Sender, tx.Nonce, q[len(q)-1].Nonce)
	}
	if len(q) == 0 {
		m.order = append(m.order, tx.Sender)
	}
	m.bySender[tx.Sender] = append(q, tx)
	return nil
}

// BuildBatch drains the mempool round-robin across senders, keeping each
// sender's relative nonce order intact, up to maxBytes of RLP-encoded
// transaction payload (maxBytes <= 0 means unlimited). Drained transactions
// are removed; anything left over stays queued for the next batch.
func (m *Mempool) BuildBatch(maxBytes int) ([]stf.Transaction, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if len(m.order) == 0 {
		return nil, ErrEmptyMempool
	}

	var out []stf.Transaction
	size := 0
	taken := make(map[types.Address]int, len(m.order))
	for {
		progressed := false
		for _, addr := range m.order {
			idx := taken[addr]
			q := m.bySender[addr]
			if idx >= len(q) {
				continue
			}
			tx := q[idx]
			encoded, err := rlp.EncodeToBytes(tx)
			if err != nil {
				return nil, fmt.Errorf("sequencer: encode tx: %w", err)
			}
			if maxBytes > 0 && len(out) > 0 && size+len(encoded) > maxBytes {
				continue
			}
			out = append(out, tx)
			size += len(encoded)
			taken[addr] = idx + 1
			progressed = true
		}
		if !progressed {
			break
		}
	}

	m.drain(taken)
	if len(out) == 0 {
		return nil, ErrEmptyMempool
	}
	return out, nil
}

func (m *Mempool) drain(taken map[types.Address]int) {
	var newOrder []types.Address
	for _, addr := range m.order {
		n := taken[addr]
		remaining := m.bySender[addr][n:]
		if len(remaining) == 0 {
			delete(m.bySender, addr)
			continue
		}
		m.bySender[addr] = append([]stf.Transaction(nil), remaining...)
		newOrder = append(newOrder, addr)
	}
	m.order = newOrder
}

// Len reports the total number of queued transactions across all senders.
func (m *Mempool) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := 0
	for _, q := range m.bySender {
		n += len(q)
	}
	return n
}
