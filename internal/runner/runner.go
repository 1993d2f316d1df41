// Package runner implements the state-transition runner described in
// spec.md §6 (C10): a cooperative loop polling the DA layer for newly
// finalized blocks, driving the STF over each one, committing the result to
// both prover storage and the ledger, and submitting the slot's witness to
// the prover service, alongside the process's RPC surface.
//
// Grounded on original_source/full-node/sov-stf-runner/src/lib.rs's
// StateTransitionRunner::run (the get_finalized_at -> extract_relevant_txs
// -> apply_slot -> commit_slot loop) and core/consensus.go's main-loop shape
// (a single mutex-guarded driver advancing height with backoff on adapter
// errors), generalized from consensus's sub-block/block ticker pair into one
// height-advancing loop.
package runner

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"github.com/sovereign-rollup/core/internal/blobselect"
	"github.com/sovereign-rollup/core/internal/ledger"
	"github.com/sovereign-rollup/core/internal/prover"
	"github.com/sovereign-rollup/core/internal/sequencer"
	"github.com/sovereign-rollup/core/internal/stf"
	"github.com/sovereign-rollup/core/internal/storage"
	"github.com/sovereign-rollup/core/pkg/da"
	"github.com/sovereign-rollup/core/pkg/types"
	"github.com/sovereign-rollup/core/pkg/zkvm"
)

const (
	minBackoff = 200 * time.Millisecond
	maxBackoff = 10 * time.Second
)

// Config parameterizes a Runner.
type Config struct {
	StartHeight uint64

	DeferredSlots                      uint64
	PreferredSequencer                 *types.Address
	BlobsRequestedForExecutionNextSlot int
	RefilterOnExecution                bool

	// ProverMode is the mode in which the runner submits and starts proving
	// every slot's witness; under zkvm.ModeSkip each slot still gets a job,
	// which resolves to an empty proof without running the guest.
	ProverMode zkvm.Mode

	// RPCBindAddr is the host:port the runner's HTTP server listens on.
	// Empty disables RPC serving (useful in tests driving Run's loop only).
	RPCBindAddr string
}

// Runner drives the STF over newly finalized DA blocks and serves the
// node's RPC surface.
type Runner struct {
	cfg Config

	da       da.DA
	verifier da.Verifier
	driver   *stf.Driver
	storage  *storage.Storage
	ledger   *ledger.Ledger
	prover   *prover.Service
	registry *Registry
	deferred *blobselect.DeferralMap

	// sequencer, if set, is mounted under the RPC surface's /sequencer
	// prefix — a full node runs its own sequencer in the same process, but
	// a runner-only deployment leaves this nil and relies on a remote one.
	sequencer *sequencer.Sequencer

	log *logrus.Entry
}

// New returns a Runner over driver/st/ledger/reg, polling d for finalized
// blocks and optionally submitting witnesses to prv (nil disables proving
// entirely).
func New(cfg Config, d da.DA, verifier da.Verifier, driver *stf.Driver, st *storage.Storage, l *ledger.Ledger, prv *prover.Service, reg *Registry, seq *sequencer.Sequencer, log *logrus.Logger) *Runner {
	if log == nil {
		log = logrus.StandardLogger()
	}
	return &Runner{
		cfg:       cfg,
		da:        d,
		verifier:  verifier,
		driver:    driver,
		storage:   st,
		ledger:    l,
		prover:    prv,
		registry:  reg,
		deferred:  blobselect.NewDeferralMap(),
		sequencer: seq,
		log:       log.WithField("component", "runner"),
	}
}

// Run drives the DA-poll loop and, if cfg.RPCBindAddr is set, the HTTP RPC
// server, as one supervised unit: either returning stops the other.
func (r *Runner) Run(ctx context.Context) error {
	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error { return r.loop(ctx) })

	if r.cfg.RPCBindAddr != "" {
		srv := &http.Server{Addr: r.cfg.RPCBindAddr, Handler: r.router()}
		g.Go(func() error {
			r.log.WithField("addr", r.cfg.RPCBindAddr).Info("rpc server listening")
			if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				return fmt.Errorf("runner: rpc server: %w", err)
			}
			return nil
		})
		g.Go(func() error {
			<-ctx.Done()
			return srv.Shutdown(context.Background())
		})
	}

	return g.Wait()
}

func (r *Runner) router() http.Handler {
	mux := chi.NewRouter()
	mux.Mount("/", ledger.Router(r.ledger))
	if r.sequencer != nil {
		mux.Mount("/sequencer", sequencer.Router(r.sequencer))
	}
	return mux
}

// loop advances height starting from cfg.StartHeight, blocking on DA
// finality with exponential backoff between transient misses.
func (r *Runner) loop(ctx context.Context) error {
	height := r.cfg.StartHeight
	backoff := minBackoff

	for {
		if err := ctx.Err(); err != nil {
			return err
		}

		block, err := r.da.GetFinalizedAt(ctx, height)
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			r.log.WithError(err).WithField("height", height).Debug("waiting for DA finality")
			select {
			case <-time.After(backoff):
			case <-ctx.Done():
				return ctx.Err()
			}
			if backoff *= 2; backoff > maxBackoff {
				backoff = maxBackoff
			}
			continue
		}
		backoff = minBackoff

		if err := r.applyHeight(height, block); err != nil {
			return fmt.Errorf("runner: apply height %d: %w", height, err)
		}
		height++
	}
}

// applyHeight extracts, selects, and executes one DA height's blobs, then
// commits the result and hands the slot's witness to the prover service.
func (r *Runner) applyHeight(height uint64, block da.Block) error {
	blobs, err := r.da.ExtractRelevantBlobs(block)
	if err != nil {
		return fmt.Errorf("extract_relevant_blobs: %w", err)
	}

	inclusion, completeness, err := r.da.GetExtractionProof(block, blobs)
	if err != nil {
		return fmt.Errorf("get_extraction_proof: %w", err)
	}

	header := block.Header()
	var validityCond []byte
	if r.verifier != nil {
		vc, err := r.verifier.VerifyRelevantTxList(header, blobs, inclusion, completeness)
		if err != nil {
			return fmt.Errorf("verify_relevant_tx_list: %w", err)
		}
		validityCond = vc
	}

	selectable := make([]blobselect.Blob, len(blobs))
	for i, b := range blobs {
		selectable[i] = b
	}
	selected := blobselect.Select(blobselect.Config{
		DeferredSlots:                       r.cfg.DeferredSlots,
		PreferredSequencer:                  r.cfg.PreferredSequencer,
		BlobsRequestedForExecutionNextSlot:  r.cfg.BlobsRequestedForExecutionNextSlot,
		RefilterOnExecution:                 r.cfg.RefilterOnExecution,
	}, r.registry, r.deferred, height, selectable)

	stfBlobs := make([]stf.Blob, 0, len(selected))
	for _, sb := range selected {
		db := sb.(da.Blob)
		stfBlobs = append(stfBlobs, stf.Blob{Sender: db.Sender(), Data: db.VerifiedData()})
	}

	preRootArr, _ := r.storage.RootAt(r.storage.CurrentVersion())
	preRoot := types.Hash(preRootArr)

	result, err := r.driver.ApplySlot(r.storage, stf.SlotHeader{Height: header.Height(), Hash: header.Hash()}, validityCond, stfBlobs)
	if err != nil {
		return fmt.Errorf("apply_slot: %w", err)
	}

	var rewarded types.Address
	for _, br := range result.BatchReceipts {
		if br.Kind == stf.BatchSlashed && br.SlashReason == stf.SlashInvalidSignature {
			r.registry.Unregister(br.Sender)
		}
		if br.Kind == stf.BatchRewarded && rewarded == (types.Address{}) {
			rewarded = br.Sender
		}
	}

	if _, err := r.ledger.CommitSlot(toLedgerInput(header, result)); err != nil {
		return fmt.Errorf("commit_slot: %w", err)
	}

	if r.prover != nil {
		data := prover.StateTransitionData{
			DABlockHash:       header.Hash(),
			DABlockHeight:     header.Height(),
			PreStateRoot:      preRoot,
			PostStateRoot:     result.StateRoot,
			RewardedAddress:   rewarded,
			ValidityCondition: validityCond,
			Witness:           result.Witness,
		}
		if r.prover.SubmitWitness(data) == prover.SubmittedForProving {
			if _, err := r.prover.StartProving(header.Hash(), r.cfg.ProverMode); err != nil {
				r.log.WithError(err).WithField("height", height).Warn("start_proving failed")
			}
		}
	}

	r.log.WithFields(logrus.Fields{"height": height, "batches": len(result.BatchReceipts), "root": result.StateRoot.String()}).Info("slot applied")
	return nil
}

func toLedgerInput(header da.BlockHeader, result *stf.SlotResult) ledger.CommitSlotInput {
	in := ledger.CommitSlotInput{Hash: header.Hash(), StateRoot: result.StateRoot}
	for _, br := range result.BatchReceipts {
		cb := ledger.CommitBatchInput{
			Hash:        br.Hash,
			Sender:      br.Sender,
			Outcome:     uint8(br.Kind),
			SlashReason: uint8(br.SlashReason),
			GasConsumed: br.GasConsumed,
		}
		for _, tr := range br.TxReceipts {
			events := make([]ledger.StoredEvent, 0, len(tr.Events))
			for _, ev := range tr.Events {
				events = append(events, ledger.StoredEvent{Key: ev.Key, Value: ev.Value})
			}
			cb.Txs = append(cb.Txs, ledger.CommitTxInput{
				Hash:    tr.Hash,
				Sender:  tr.Sender,
				Nonce:   tr.Nonce,
				Outcome: uint8(tr.Outcome),
				GasUsed: tr.GasUsed,
				Events:  events,
			})
		}
		in.Batches = append(in.Batches, cb)
	}
	return in
}
