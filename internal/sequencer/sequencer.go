package sequencer

import (
	"context"
	"crypto/ecdsa"
	"fmt"
	"sync"

	"github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/rlp"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/sovereign-rollup/core/internal/stf"
	"github.com/sovereign-rollup/core/pkg/da"
	"github.com/sovereign-rollup/core/pkg/types"
)

// SubmitTransactionResponse mirrors the Rust source's
// SubmitTransaction{Registered, Failed(String)} enum.
type SubmitTransactionResponse struct {
	Registered bool
	Failed     string
}

// Config configures a Sequencer's signing identity and batch policy.
type Config struct {
	// Key signs every published batch; its address is what
	// the stf.SequencerRegistry passed to stf.NewDriver must recognize as
	// this sequencer's identity.
	Key *ecdsa.PrivateKey
	// MaxBatchBytes bounds BuildBatch's RLP-encoded payload; <= 0 is
	// unlimited.
	MaxBatchBytes int
}

// Sequencer accepts transactions into a mempool and, on demand, drains and
// signs a batch for publication to the DA layer — grounded on
// original_source/full-node/sov-sequencer/src/lib.rs's
// Sequencer<BatchBuilder, DaService>.
type Sequencer struct {
	mu      sync.Mutex
	mempool *Mempool
	cfg     Config
	da      da.DA
	log     *logrus.Entry
}

// New returns a Sequencer that signs batches with cfg.Key and publishes them
// through d.
func New(cfg Config, d da.DA, log *logrus.Logger) *Sequencer {
	if log == nil {
		log = logrus.StandardLogger()
	}
	return &Sequencer{
		mempool: NewMempool(),
		cfg:     cfg,
		da:      d,
		log:     log.WithField("component", "sequencer"),
	}
}

// Address is this sequencer's signing identity, the same address the runner
// must register with stf.Driver's SequencerRegistry.
func (s *Sequencer) Address() types.Address {
	return types.Address(crypto.PubkeyToAddress(s.cfg.Key.PublicKey))
}

// AcceptTx decodes an RLP-encoded stf.Transaction and enqueues it, matching
// sequencer_acceptTx's RPC contract.
func (s *Sequencer) AcceptTx(body []byte) SubmitTransactionResponse {
	var tx stf.Transaction
	if err := rlp.DecodeBytes(body, &tx); err != nil {
		return SubmitTransactionResponse{Failed: fmt.Sprintf("decode tx: %v", err)}
	}
	id := uuid.NewString()
	if err := s.mempool.Accept(tx); err != nil {
		s.log.WithFields(logrus.Fields{"tx": id, "sender": tx.Sender}).WithError(err).Warn("tx rejected")
		return SubmitTransactionResponse{Failed: err.Error()}
	}
	s.log.WithFields(logrus.Fields{"tx": id, "sender": tx.Sender, "nonce": tx.Nonce}).Debug("tx accepted")
	return SubmitTransactionResponse{Registered: true}
}

// PublishBatch drains the mempool into a batch, signs it, and sends it to
// the DA layer as a blob — sequencer_publishBatch's RPC contract.
func (s *Sequencer) PublishBatch(ctx context.Context) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	txs, err := s.mempool.BuildBatch(s.cfg.MaxBatchBytes)
	if err != nil {
		return 0, err
	}

	encoded, err := rlp.EncodeToBytes(txs)
	if err != nil {
		return 0, fmt.Errorf("sequencer: encode batch txs: %w", err)
	}
	hash := crypto.Keccak256(encoded)
	sig, err := crypto.Sign(hash, s.cfg.Key)
	if err != nil {
		return 0, fmt.Errorf("sequencer: sign batch: %w", err)
	}

	batch := stf.SignedBatch{Txs: txs, Signature: sig}
	blob, err := rlp.EncodeToBytes(batch)
	if err != nil {
		return 0, fmt.Errorf("sequencer: encode signed batch: %w", err)
	}

	if err := s.da.SendTransaction(ctx, blob); err != nil {
		return 0, fmt.Errorf("sequencer: send to DA: %w", err)
	}

	s.log.WithField("txs", len(txs)).Info("batch published")
	return len(txs), nil
}

// PendingTxs reports how many transactions are currently queued.
func (s *Sequencer) PendingTxs() int {
	return s.mempool.Len()
}
