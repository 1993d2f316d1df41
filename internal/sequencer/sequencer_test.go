package sequencer

import (
	"context"
	"testing"

	gethcrypto "github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/rlp"

	"github.com/sovereign-rollup/core/internal/stf"
	mockda "github.com/sovereign-rollup/core/pkg/da/mock"
	"github.com/sovereign-rollup/core/pkg/types"
)

func TestMempoolAcceptRejectsStaleNonce(t *testing.T) {
	m := NewMempool()
	sender := types.Address{0x01}
	if err := m.Accept(stf.Transaction{Sender: sender, Nonce: 0}); err != nil {
		t.Fatalf("first accept: %v", err)
	}
	if err := m.Accept(stf.Transaction{Sender: sender, Nonce: 0}); err == nil {
		t.Fatal("expected stale-nonce rejection")
	}
	if err := m.Accept(stf.Transaction{Sender: sender, Nonce: 1}); err != nil {
		t.Fatalf("second accept: %v", err)
	}
}

func TestBuildBatchDrainsRoundRobin(t *testing.T) {
	m := NewMempool()
	a, b := types.Address{0x01}, types.Address{0x02}
	for i := uint64(0); i < 2; i++ {
		_ = m.Accept(stf.Transaction{Sender: a, Nonce: i})
		_ = m.Accept(stf.Transaction{Sender: b, Nonce: i})
	}

	txs, err := m.BuildBatch(0)
	if err != nil {
		t.Fatalf("BuildBatch: %v", err)
	}
	if len(txs) != 4 {
		t.Fatalf("len = %d, want 4", len(txs))
	}
	if m.Len() != 0 {
		t.Fatalf("mempool should be drained, len = %d", m.Len())
	}

	if _, err := m.BuildBatch(0); err != ErrEmptyMempool {
		t.Fatalf("second BuildBatch = %v, want ErrEmptyMempool", err)
	}
}

func TestPublishBatchSignsAndSends(t *testing.T) {
	key, err := gethcrypto.GenerateKey()
	if err != nil {
		t.Fatalf("GenerateKey: %v", err)
	}
	d := mockda.New()
	seq := New(Config{Key: key}, d, nil)

	tx := stf.Transaction{Sender: types.Address{0xAA}, Nonce: 0}
	body, err := rlp.EncodeToBytes(tx)
	if err != nil {
		t.Fatalf("encode tx: %v", err)
	}
	resp := seq.AcceptTx(body)
	if !resp.Registered {
		t.Fatalf("AcceptTx failed: %+v", resp)
	}

	n, err := seq.PublishBatch(context.Background())
	if err != nil {
		t.Fatalf("PublishBatch: %v", err)
	}
	if n != 1 {
		t.Fatalf("n = %d, want 1", n)
	}

	sent := d.Sent()
	if len(sent) != 1 {
		t.Fatalf("sent = %d blobs, want 1", len(sent))
	}

	var batch stf.SignedBatch
	if err := rlp.DecodeBytes(sent[0], &batch); err != nil {
		t.Fatalf("decode sent batch: %v", err)
	}
	if len(batch.Txs) != 1 || batch.Txs[0].Sender != tx.Sender {
		t.Fatalf("batch txs = %+v", batch.Txs)
	}

	encoded, _ := rlp.EncodeToBytes(batch.Txs)
	hash := gethcrypto.Keccak256(encoded)
	pub, err := gethcrypto.SigToPub(hash, batch.Signature)
	if err != nil {
		t.Fatalf("SigToPub: %v", err)
	}
	if gethcrypto.PubkeyToAddress(*pub) != seq.Address() {
		t.Fatal("recovered signer does not match sequencer address")
	}
}
