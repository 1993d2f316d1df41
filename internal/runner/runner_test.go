package runner

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	gethcrypto "github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/rlp"

	"github.com/sovereign-rollup/core/internal/ledger"
	"github.com/sovereign-rollup/core/internal/prover"
	"github.com/sovereign-rollup/core/internal/stf"
	"github.com/sovereign-rollup/core/internal/stf/examplemodule"
	"github.com/sovereign-rollup/core/internal/storage"
	"github.com/sovereign-rollup/core/internal/workingset"
	mockda "github.com/sovereign-rollup/core/pkg/da/mock"
	"github.com/sovereign-rollup/core/pkg/types"
	"github.com/sovereign-rollup/core/pkg/zkvm"
	mockzkvm "github.com/sovereign-rollup/core/pkg/zkvm/mock"
)

func mustJSON(t *testing.T, v interface{}) json.RawMessage {
	t.Helper()
	b, err := json.Marshal(v)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	return b
}

func TestRunnerAppliesOneHeightAndCommitsToLedger(t *testing.T) {
	mod := examplemodule.New()
	rt, err := stf.NewRuntime(mod)
	if err != nil {
		t.Fatalf("NewRuntime: %v", err)
	}

	reg := NewRegistry()
	driver := stf.NewDriver(rt, reg, 50, 1_000_000, nil)
	st := storage.New()

	admin := types.Address{0xAA}
	if _, err := driver.InitChain(st, stf.GenesisConfig{
		examplemodule.ModuleName: mustJSON(t, examplemodule.GenesisConfig{Admin: admin, Value: 1}),
	}); err != nil {
		t.Fatalf("InitChain: %v", err)
	}

	l, err := ledger.Open(ledger.Config{})
	if err != nil {
		t.Fatalf("ledger.Open: %v", err)
	}
	defer l.Close()

	prv := prover.New(1, func() zkvm.Host { return mockzkvm.NewHost() }, nil)

	key, err := gethcrypto.GenerateKey()
	if err != nil {
		t.Fatalf("GenerateKey: %v", err)
	}
	seqAddr := types.Address(gethcrypto.PubkeyToAddress(key.PublicKey))
	reg.Register(seqAddr, 100)

	txs := []stf.Transaction{
		{Sender: admin, Nonce: 0, Call: stf.CallMessage{ModuleName: examplemodule.ModuleName, Payload: mustJSON(t, examplemodule.SetValueCall{NewValue: 42})}},
	}
	encoded, err := rlp.EncodeToBytes(txs)
	if err != nil {
		t.Fatalf("encode txs: %v", err)
	}
	sig, err := gethcrypto.Sign(gethcrypto.Keccak256(encoded), key)
	if err != nil {
		t.Fatalf("sign: %v", err)
	}
	batch := stf.SignedBatch{Txs: txs, Signature: sig}
	blobData, err := rlp.EncodeToBytes(batch)
	if err != nil {
		t.Fatalf("encode batch: %v", err)
	}

	d := mockda.New()
	d.Produce(0, []mockda.Blob{{From: seqAddr, Data: blobData}})

	r := New(Config{
		StartHeight: 0,
		ProverMode:  zkvm.ModeProver,
	}, d, mockda.Verifier{}, driver, st, l, prv, reg, nil, nil)

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	errCh := make(chan error, 1)
	go func() { errCh <- r.Run(ctx) }()

	deadline := time.Now().Add(1 * time.Second)
	for time.Now().Before(deadline) {
		if n, ok := l.LastSlotNumber(); ok && n == 0 {
			break
		}
		time.Sleep(5 * time.Millisecond)
	}

	head, ok := l.GetHead(ledger.Full)
	if !ok {
		t.Fatal("expected a committed slot")
	}
	if len(head.Batches) != 1 || head.Batches[0].Batch.Outcome != uint8(stf.BatchRewarded) {
		t.Fatalf("head = %+v", head)
	}
	if len(head.Batches[0].Txs) != 1 || head.Batches[0].Txs[0].Tx.Outcome != uint8(stf.TxSuccessful) {
		t.Fatalf("txs = %+v", head.Batches[0].Txs)
	}

	readWS := workingset.New(st, nil, 1_000_000)
	value, ok := mod.Value(readWS)
	if !ok || value != 42 {
		t.Fatalf("stored value = %v, %v, want 42, true", value, ok)
	}

	cancel()
	if err := <-errCh; err != nil && err != context.DeadlineExceeded && err != context.Canceled {
		t.Fatalf("Run returned %v", err)
	}
}
