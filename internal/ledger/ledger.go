package ledger

import (
	"bufio"
	"encoding/binary"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"

	"github.com/ethereum/go-ethereum/rlp"
	"github.com/sirupsen/logrus"

	"github.com/sovereign-rollup/core/pkg/types"
)

const (
	kindSlot uint8 = iota + 1
	kindBatch
	kindTx
	kindEvent
)

// walEnvelope tags a WAL entry's record kind so heterogeneous records can
// share one length-prefixed log, since RLP has no native tagged-union
// support the way the teacher's JSON WAL gets for free from interface{}.
type walEnvelope struct {
	Kind    uint8
	Payload []byte
}

// Config configures a Ledger's on-disk layout.
type Config struct {
	// Dir holds ledger.wal. Empty means in-memory only
	// (tests, or a prover-only process with no ledger RPC surface).
	Dir string
	// SubscriberBuffer bounds the per-subscriber push channel; a
	// subscriber slower than this is dropped (spec.md §5 shared-resource
	// policy), mirroring the teacher's bounded-channel discipline.
	SubscriberBuffer int
}

// Ledger is the persisted, append-only slot/batch/tx/event store.
type Ledger struct {
	mu sync.RWMutex

	slots []StoredSlot
	batches []StoredBatch
	txs     []StoredTransaction
	events  []StoredEvent

	slotByHash map[types.Hash]types.SlotNumber
	batchByHash map[types.Hash]types.BatchNumber
	txByHash    map[types.Hash]types.TxNumber

	wal *os.File

	subMu sync.Mutex
	subs  map[int]chan StoredSlot
	nextSubID int
	subBuffer int

	log *logrus.Entry
}

// Open creates or replays a ledger at cfg.Dir (or an in-memory-only ledger
// if cfg.Dir is empty).
func Open(cfg Config) (*Ledger, error) {
	l := &Ledger{
		slotByHash:  make(map[types.Hash]types.SlotNumber),
		batchByHash: make(map[types.Hash]types.BatchNumber),
		txByHash:    make(map[types.Hash]types.TxNumber),
		subs:        make(map[int]chan StoredSlot),
		subBuffer:   cfg.SubscriberBuffer,
		log:         logrus.StandardLogger().WithField("component", "ledger"),
	}
	if l.subBuffer <= 0 {
		l.subBuffer = 16
	}
	if cfg.Dir == "" {
		return l, nil
	}
	if err := os.MkdirAll(cfg.Dir, 0o755); err != nil {
		return nil, fmt.Errorf("ledger: mkdir: %w", err)
	}
	walPath := filepath.Join(cfg.Dir, "ledger.wal")
	f, err := os.OpenFile(walPath, os.O_CREATE|os.O_RDWR|os.O_APPEND, 0o600)
	if err != nil {
		return nil, fmt.Errorf("ledger: open WAL: %w", err)
	}
	l.wal = f
	if err := l.replay(); err != nil {
		_ = f.Close()
		return nil, fmt.Errorf("ledger: replay WAL: %w", err)
	}
	return l, nil
}

func (l *Ledger) replay() error {
	if _, err := l.wal.Seek(0, io.SeekStart); err != nil {
		return err
	}
	r := bufio.NewReader(l.wal)
	for {
		var lenBuf [4]byte
		if _, err := io.ReadFull(r, lenBuf[:]); err != nil {
			if err == io.EOF {
				break
			}
			return err
		}
		n := binary.BigEndian.Uint32(lenBuf[:])
		buf := make([]byte, n)
		if _, err := io.ReadFull(r, buf); err != nil {
			return fmt.Errorf("truncated WAL record: %w", err)
		}
		var env walEnvelope
		if err := rlp.DecodeBytes(buf, &env); err != nil {
			return err
		}
		if err := l.applyEnvelope(env, false); err != nil {
			return err
		}
	}
	if _, err := l.wal.Seek(0, io.SeekEnd); err != nil {
		return err
	}
	return nil
}

func (l *Ledger) applyEnvelope(env walEnvelope, persist bool) error {
	switch env.Kind {
	case kindSlot:
		var s StoredSlot
		if err := rlp.DecodeBytes(env.Payload, &s); err != nil {
			return err
		}
		l.slots = append(l.slots, s)
		l.slotByHash[s.Hash] = s.Number
	case kindBatch:
		var b StoredBatch
		if err := rlp.DecodeBytes(env.Payload, &b); err != nil {
			return err
		}
		l.batches = append(l.batches, b)
		l.batchByHash[b.Hash] = b.Number
	case kindTx:
		var tx StoredTransaction
		if err := rlp.DecodeBytes(env.Payload, &tx); err != nil {
			return err
		}
		l.txs = append(l.txs, tx)
		l.txByHash[tx.Hash] = tx.Number
	case kindEvent:
		var e StoredEvent
		if err := rlp.DecodeBytes(env.Payload, &e); err != nil {
			return err
		}
		l.events = append(l.events, e)
	default:
		return fmt.Errorf("ledger: unknown WAL record kind %d", env.Kind)
	}
	return nil
}

func (l *Ledger) writeWAL(kind uint8, payload interface{}) error {
	if l.wal == nil {
		return nil
	}
	encoded, err := rlp.EncodeToBytes(payload)
	if err != nil {
		return err
	}
	env := walEnvelope{Kind: kind, Payload: encoded}
	envBytes, err := rlp.EncodeToBytes(env)
	if err != nil {
		return err
	}
	var lenBuf [4]byte
	binary.BigEndian.PutUint32(lenBuf[:], uint32(len(envBytes)))
	if _, err := l.wal.Write(lenBuf[:]); err != nil {
		return err
	}
	if _, err := l.wal.Write(envBytes); err != nil {
		return err
	}
	return l.wal.Sync()
}

// CommitSlotInput is what the runner hands the ledger after a slot commits
// in storage: the slot's own header/root plus one batch (with its
// transactions and events) per executed blob.
type CommitSlotInput struct {
	Hash      types.Hash
	StateRoot types.Hash
	Batches   []CommitBatchInput
}

// CommitBatchInput is one batch within a committed slot.
type CommitBatchInput struct {
	Hash        types.Hash
	Sender      types.Address
	Outcome     uint8
	SlashReason uint8
	GasConsumed uint64
	Txs         []CommitTxInput
}

// CommitTxInput is one transaction within a committed batch.
type CommitTxInput struct {
	Hash    types.Hash
	Sender  types.Address
	Nonce   uint64
	Outcome uint8
	GasUsed uint64
	Events  []StoredEvent // Number/TxNumber filled in by CommitSlot
}

// CommitSlot persists one slot's worth of batches/transactions/events,
// assigning monotonic numbers and updating hash indexes, then broadcasts
// the new slot to every subscriber (spec.md §6's ledger_subscribeSlots).
func (l *Ledger) CommitSlot(in CommitSlotInput) (StoredSlot, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	slotNumber := types.SlotNumber(len(l.slots))
	batchStart := types.BatchNumber(len(l.batches))

	for _, bi := range in.Batches {
		batchNumber := types.BatchNumber(len(l.batches))
		txStart := types.TxNumber(len(l.txs))

		for _, ti := range bi.Txs {
			txNumber := types.TxNumber(len(l.txs))
			eventStart := types.EventNumber(len(l.events))
			for _, ev := range ti.Events {
				ev.Number = types.EventNumber(len(l.events))
				ev.TxNumber = txNumber
				l.events = append(l.events, ev)
				if err := l.writeWAL(kindEvent, ev); err != nil {
					return StoredSlot{}, err
				}
			}
			eventEnd := types.EventNumber(len(l.events))

			tx := StoredTransaction{
				Number:      txNumber,
				BatchNumber: batchNumber,
				Hash:        ti.Hash,
				Sender:      ti.Sender,
				Nonce:       ti.Nonce,
				Outcome:     ti.Outcome,
				GasUsed:     ti.GasUsed,
				Events:      types.Range{Start: uint64(eventStart), End: uint64(eventEnd)},
			}
			l.txs = append(l.txs, tx)
			l.txByHash[tx.Hash] = tx.Number
			if err := l.writeWAL(kindTx, tx); err != nil {
				return StoredSlot{}, err
			}
		}
		txEnd := types.TxNumber(len(l.txs))

		batch := StoredBatch{
			Number:      batchNumber,
			SlotNumber:  slotNumber,
			Hash:        bi.Hash,
			Sender:      bi.Sender,
			Outcome:     bi.Outcome,
			SlashReason: bi.SlashReason,
			GasConsumed: bi.GasConsumed,
			Txs:         types.Range{Start: uint64(txStart), End: uint64(txEnd)},
		}
		l.batches = append(l.batches, batch)
		l.batchByHash[batch.Hash] = batch.Number
		if err := l.writeWAL(kindBatch, batch); err != nil {
			return StoredSlot{}, err
		}
	}
	batchEnd := types.BatchNumber(len(l.batches))

	slot := StoredSlot{
		Number:    slotNumber,
		Hash:      in.Hash,
		StateRoot: in.StateRoot,
		Batches:   types.Range{Start: uint64(batchStart), End: uint64(batchEnd)},
	}
	l.slots = append(l.slots, slot)
	l.slotByHash[slot.Hash] = slot.Number
	if err := l.writeWAL(kindSlot, slot); err != nil {
		return StoredSlot{}, err
	}

	l.broadcast(slot)
	l.log.WithField("slot", slot.Number).Info("slot committed")
	return slot, nil
}

func (l *Ledger) broadcast(slot StoredSlot) {
	l.subMu.Lock()
	defer l.subMu.Unlock()
	for id, ch := range l.subs {
		select {
		case ch <- slot:
		default:
			l.log.WithField("subscriber", id).Warn("dropping slow ledger subscriber")
			close(ch)
			delete(l.subs, id)
		}
	}
}

// Subscribe registers a new subscriber for committed slots, returning its
// channel and an id to pass to Unsubscribe.
func (l *Ledger) Subscribe() (int, <-chan StoredSlot) {
	l.subMu.Lock()
	defer l.subMu.Unlock()
	id := l.nextSubID
	l.nextSubID++
	ch := make(chan StoredSlot, l.subBuffer)
	l.subs[id] = ch
	return id, ch
}

// Unsubscribe removes and closes subscriber id's channel, if still present.
func (l *Ledger) Unsubscribe(id int) {
	l.subMu.Lock()
	defer l.subMu.Unlock()
	if ch, ok := l.subs[id]; ok {
		close(ch)
		delete(l.subs, id)
	}
}

// Close closes the underlying WAL file, if any.
func (l *Ledger) Close() error {
	if l.wal == nil {
		return nil
	}
	return l.wal.Close()
}
