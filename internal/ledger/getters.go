package ledger

import "github.com/sovereign-rollup/core/pkg/types"

func (l *Ledger) eventsInRange(r types.Range) []StoredEvent {
	if r.Start >= r.End {
		return nil
	}
	return append([]StoredEvent(nil), l.events[r.Start:r.End]...)
}

func (l *Ledger) txView(tx StoredTransaction, mode Mode) TxView {
	v := TxView{Tx: tx}
	if mode != Compact {
		v.Events = l.eventsInRange(tx.Events)
	}
	return v
}

func (l *Ledger) batchView(batch StoredBatch, mode Mode) BatchView {
	v := BatchView{Batch: batch}
	if mode == Compact {
		return v
	}
	childMode := Compact
	if mode == Full {
		childMode = Full
	}
	for i := batch.Txs.Start; i < batch.Txs.End; i++ {
		v.Txs = append(v.Txs, l.txView(l.txs[i], childMode))
	}
	return v
}

func (l *Ledger) slotView(slot StoredSlot, mode Mode) SlotView {
	v := SlotView{Slot: slot}
	if mode == Compact {
		return v
	}
	childMode := Compact
	if mode == Full {
		childMode = Full
	}
	for i := slot.Batches.Start; i < slot.Batches.End; i++ {
		v.Batches = append(v.Batches, l.batchView(l.batches[i], childMode))
	}
	return v
}

// GetHead returns the most recently committed slot, expanded per mode.
func (l *Ledger) GetHead(mode Mode) (*SlotView, bool) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	if len(l.slots) == 0 {
		return nil, false
	}
	v := l.slotView(l.slots[len(l.slots)-1], mode)
	return &v, true
}

// GetSlotByNumber looks up a slot by its monotonic number.
func (l *Ledger) GetSlotByNumber(n types.SlotNumber, mode Mode) (*SlotView, bool) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	if n >= types.SlotNumber(len(l.slots)) {
		return nil, false
	}
	v := l.slotView(l.slots[n], mode)
	return &v, true
}

// GetSlotByHash looks up a slot by its hash.
func (l *Ledger) GetSlotByHash(h types.Hash, mode Mode) (*SlotView, bool) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	n, ok := l.slotByHash[h]
	if !ok {
		return nil, false
	}
	v := l.slotView(l.slots[n], mode)
	return &v, true
}

// GetBatchByNumber looks up a batch by its monotonic number.
func (l *Ledger) GetBatchByNumber(n types.BatchNumber, mode Mode) (*BatchView, bool) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	if n >= types.BatchNumber(len(l.batches)) {
		return nil, false
	}
	v := l.batchView(l.batches[n], mode)
	return &v, true
}

// GetBatchByHash looks up a batch by its hash.
func (l *Ledger) GetBatchByHash(h types.Hash, mode Mode) (*BatchView, bool) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	n, ok := l.batchByHash[h]
	if !ok {
		return nil, false
	}
	v := l.batchView(l.batches[n], mode)
	return &v, true
}

// GetTransactionByNumber looks up a transaction by its monotonic number.
func (l *Ledger) GetTransactionByNumber(n types.TxNumber, mode Mode) (*TxView, bool) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	if n >= types.TxNumber(len(l.txs)) {
		return nil, false
	}
	v := l.txView(l.txs[n], mode)
	return &v, true
}

// GetTransactionByHash looks up a transaction by its hash.
func (l *Ledger) GetTransactionByHash(h types.Hash, mode Mode) (*TxView, bool) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	n, ok := l.txByHash[h]
	if !ok {
		return nil, false
	}
	v := l.txView(l.txs[n], mode)
	return &v, true
}

// GetEvents returns the events emitted by transaction number n.
func (l *Ledger) GetEvents(n types.TxNumber) ([]StoredEvent, bool) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	if n >= types.TxNumber(len(l.txs)) {
		return nil, false
	}
	return l.eventsInRange(l.txs[n].Events), true
}

// LastSlotNumber returns the number of the most recently committed slot and
// whether any slot has been committed yet.
func (l *Ledger) LastSlotNumber() (types.SlotNumber, bool) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	if len(l.slots) == 0 {
		return 0, false
	}
	return types.SlotNumber(len(l.slots) - 1), true
}
