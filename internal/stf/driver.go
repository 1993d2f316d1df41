package stf

import (
	"errors"
	"fmt"

	"github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/rlp"
	"github.com/sirupsen/logrus"

	"github.com/sovereign-rollup/core/internal/storage"
	"github.com/sovereign-rollup/core/internal/witness"
	"github.com/sovereign-rollup/core/internal/workingset"
	"github.com/sovereign-rollup/core/pkg/types"
)

// ErrNotEmpty is returned by InitChain when storage already has a committed
// version — genesis is only idempotent at empty storage.
var ErrNotEmpty = errors.New("stf: storage is not empty, cannot run genesis")

// SequencerRegistry answers whether addr is a registered sequencer and, if
// so, its posted bond — the two facts ApplySlot's batch-outcome state
// machine needs to decide Ignored vs. proceeding to dispatch.
type SequencerRegistry interface {
	SequencerInfo(addr types.Address) (bond uint64, registered bool)
}

// State names the STF driver's current phase, for logging/observability —
// mirrors the exported lifecycle enums core/rollups.go uses for batch state.
type State uint8

const (
	Idle State = iota
	InSlot
	PerBlob
)

func (s State) String() string {
	switch s {
	case Idle:
		return "Idle"
	case InSlot:
		return "InSlot"
	case PerBlob:
		return "PerBlob"
	default:
		return "Unknown"
	}
}

// Driver runs the Idle -> InSlot -> PerBlob* -> Idle state-transition
// pipeline over a Runtime.
type Driver struct {
	runtime  *Runtime
	registry SequencerRegistry
	minBond  uint64
	gasLimit uint64
	log      *logrus.Entry
	state    State
}

// NewDriver returns a Driver over runtime, consulting registry for
// sequencer eligibility and requiring at least minBond posted to avoid the
// Ignored outcome.
func NewDriver(runtime *Runtime, registry SequencerRegistry, minBond, gasLimit uint64, log *logrus.Logger) *Driver {
	if log == nil {
		log = logrus.StandardLogger()
	}
	return &Driver{
		runtime:  runtime,
		registry: registry,
		minBond:  minBond,
		gasLimit: gasLimit,
		log:      log.WithField("component", "stf"),
		state:    Idle,
	}
}

// InitChain runs every module's genesis hook once, commits the resulting
// state, and returns the genesis state root (spec.md §4.5's init_chain,
// next_version = 1 per §4.3's genesis edge case).
func (d *Driver) InitChain(st *storage.Storage, cfg GenesisConfig) (types.Hash, error) {
	if !st.IsEmpty() {
		return types.Hash{}, ErrNotEmpty
	}
	ws := workingset.New(st, nil, d.gasLimit)
	if err := d.runtime.runGenesis(ws, cfg); err != nil {
		return types.Hash{}, err
	}
	_, writes, w, _ := ws.Freeze()
	update, err := st.ComputeStateUpdate(writes, w)
	if err != nil {
		return types.Hash{}, fmt.Errorf("stf: genesis compute_state_update: %w", err)
	}
	if err := st.Commit(update, ws.AccessoryWrites()); err != nil {
		return types.Hash{}, fmt.Errorf("stf: genesis commit: %w", err)
	}
	d.log.WithField("root", fmt.Sprintf("%x", update.NewRoot)).Info("genesis committed")
	return types.Hash(update.NewRoot), nil
}

// ApplySlot runs one full slot: hooks, blob-ordered dispatch, and the
// resulting storage commit (spec.md §4.5's apply_slot, steps 1-7).
func (d *Driver) ApplySlot(st *storage.Storage, header SlotHeader, validityCond []byte, blobs []Blob) (*SlotResult, error) {
	d.state = InSlot
	defer func() { d.state = Idle }()

	preRootArr, _ := st.RootAt(st.CurrentVersion())
	preRoot := types.Hash(preRootArr)

	w := witness.New()
	ws := workingset.New(st, w, d.gasLimit)

	if err := d.runtime.runBeginSlot(ws, header, validityCond, preRoot); err != nil {
		return nil, err
	}

	var receipts []BatchReceipt
	for _, blob := range blobs {
		d.state = PerBlob
		receipt := d.applyBlob(ws, blob)
		receipts = append(receipts, receipt)
	}
	d.state = InSlot

	if err := d.runtime.runEndSlot(ws); err != nil {
		return nil, err
	}

	_, writes, witnessOut, _ := ws.Freeze()
	update, err := st.ComputeStateUpdate(writes, witnessOut)
	if err != nil {
		return nil, fmt.Errorf("stf: apply_slot compute_state_update: %w", err)
	}
	if err := st.Commit(update, ws.AccessoryWrites()); err != nil {
		return nil, fmt.Errorf("stf: apply_slot commit: %w", err)
	}

	return &SlotResult{StateRoot: types.Hash(update.NewRoot), BatchReceipts: receipts, Witness: witnessOut}, nil
}

// applyBlob decodes, validates, and dispatches one blob's batch, returning
// its BatchReceipt. It never returns an error: every failure mode is
// expressed as a receipt kind per spec.md §4.5's failure semantics table.
func (d *Driver) applyBlob(ws *workingset.WorkingSet, blob Blob) BatchReceipt {
	hash := types.Hash(crypto.Keccak256Hash(blob.Data))

	bond, registered := d.registry.SequencerInfo(blob.Sender)
	if !registered || bond < d.minBond {
		return BatchReceipt{Sender: blob.Sender, Hash: hash, Kind: BatchIgnored}
	}

	var batch SignedBatch
	if err := rlp.DecodeBytes(blob.Data, &batch); err != nil {
		return BatchReceipt{Sender: blob.Sender, Hash: hash, Kind: BatchSlashed, SlashReason: SlashInvalidSerialization}
	}

	if !verifyBatchSignature(blob.Sender, batch) {
		return BatchReceipt{Sender: blob.Sender, Hash: hash, Kind: BatchSlashed, SlashReason: SlashInvalidSignature}
	}

	if err := d.runtime.runBeginBlob(ws, blob.Sender); err != nil {
		return BatchReceipt{Sender: blob.Sender, Hash: hash, Kind: BatchSlashed, SlashReason: SlashInvalidSerialization}
	}

	var gasConsumed uint64
	txReceipts := make([]TxReceipt, 0, len(batch.Txs))
	for i := range batch.Txs {
		tx := &batch.Txs[i]
		receipt := d.applyTx(ws, tx)
		gasConsumed += receipt.GasUsed
		txReceipts = append(txReceipts, receipt)
	}

	return BatchReceipt{Sender: blob.Sender, Hash: hash, Kind: BatchRewarded, GasConsumed: gasConsumed, TxReceipts: txReceipts}
}

const baseTxGas = 21_000

// applyTx runs the full per-transaction pipeline: pre-dispatch hook,
// checkpointed dispatch, post-dispatch hook.
func (d *Driver) applyTx(ws *workingset.WorkingSet, tx *Transaction) TxReceipt {
	eventsBefore := ws.EventsLen()
	hash := hashTx(tx)

	finish := func(outcome TxOutcome, gasUsed uint64, errMsg string) TxReceipt {
		return TxReceipt{
			Sender:  tx.Sender,
			Nonce:   tx.Nonce,
			Hash:    hash,
			Outcome: outcome,
			GasUsed: gasUsed,
			Error:   errMsg,
			Events:  ws.EventsSince(eventsBefore),
		}
	}

	skip, err := d.runtime.runPreDispatch(ws, tx)
	if err != nil {
		return finish(TxSkipped, 0, err.Error())
	}
	if skip {
		return finish(TxSkipped, 0, "")
	}

	if err := ws.ChargeGas(baseTxGas, 1); err != nil {
		return finish(TxReverted, 0, err.Error())
	}

	cp := ws.Checkpoint()
	dispatchErr := d.runtime.dispatchCall(ws, tx.Call, tx.Sender)

	var outcome TxOutcome
	var errMsg string
	if dispatchErr == nil {
		if err := ws.Commit(cp); err != nil {
			ws.Revert(cp)
			outcome, errMsg = TxReverted, err.Error()
		} else {
			outcome = TxSuccessful
		}
	} else {
		ws.Revert(cp)
		outcome, errMsg = TxReverted, dispatchErr.Error()
	}

	if err := d.runtime.runPostDispatch(ws, tx, outcome); err != nil {
		d.log.WithError(err).Warn("post_dispatch_tx_hook failed")
	}

	return finish(outcome, baseTxGas, errMsg)
}

// hashTx derives a transaction's ledger identity from its RLP encoding, the
// same codec the batch signature is computed over.
func hashTx(tx *Transaction) types.Hash {
	encoded, err := rlp.EncodeToBytes(tx)
	if err != nil {
		return types.Hash{}
	}
	return types.Hash(crypto.Keccak256Hash(encoded))
}

// verifyBatchSignature checks that batch.Signature is a valid secp256k1
// signature over the RLP encoding of batch.Txs, recoverable to sender —
// grounded on the teacher's use of go-ethereum/crypto for ECDSA wherever
// the pack touches chain code.
func verifyBatchSignature(sender types.Address, batch SignedBatch) bool {
	if len(batch.Signature) != 65 {
		return false
	}
	encoded, err := rlp.EncodeToBytes(batch.Txs)
	if err != nil {
		return false
	}
	hash := crypto.Keccak256(encoded)
	pub, err := crypto.SigToPub(hash, batch.Signature)
	if err != nil {
		return false
	}
	recovered := crypto.PubkeyToAddress(*pub)
	return types.Address(recovered) == sender
}
