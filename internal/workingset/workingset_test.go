package workingset

import (
	"testing"

	"github.com/sovereign-rollup/core/internal/storage"
	"github.com/sovereign-rollup/core/internal/witness"
)

func TestGetSetDelete(t *testing.T) {
	st := storage.New()
	w := witness.New()
	ws := New(st, w, 1000)

	if _, ok := ws.Get([]byte("alice")); ok {
		t.Fatal("expected miss on empty storage")
	}
	ws.Set([]byte("alice"), []byte("100"))
	if v, ok := ws.Get([]byte("alice")); !ok || string(v) != "100" {
		t.Fatalf("Get(alice) = %q, %v; want 100, true", v, ok)
	}
	ws.Delete([]byte("alice"))
	if _, ok := ws.Get([]byte("alice")); ok {
		t.Fatal("expected miss after delete")
	}
}

func TestCheckpointCommit(t *testing.T) {
	st := storage.New()
	ws := New(st, witness.New(), 1000)

	ws.Set([]byte("alice"), []byte("100"))
	cp := ws.Checkpoint()
	ws.Set([]byte("bob"), []byte("200"))
	if err := ws.Commit(cp); err != nil {
		t.Fatalf("Commit: %v", err)
	}
	if v, ok := ws.Get([]byte("bob")); !ok || string(v) != "200" {
		t.Fatalf("Get(bob) after commit = %q, %v; want 200, true", v, ok)
	}
}

func TestCheckpointRevert(t *testing.T) {
	st := storage.New()
	ws := New(st, witness.New(), 1000)

	ws.Set([]byte("alice"), []byte("100"))
	cp := ws.Checkpoint()
	ws.Set([]byte("bob"), []byte("200"))
	ws.AddEvent([]byte("e"), []byte("v"))
	if err := ws.ChargeGas(10, 1); err != nil {
		t.Fatalf("ChargeGas: %v", err)
	}
	ws.Revert(cp)

	if _, ok := ws.Get([]byte("bob")); ok {
		t.Fatal("bob should not be visible after revert")
	}
	if v, ok := ws.Get([]byte("alice")); !ok || string(v) != "100" {
		t.Fatalf("alice should survive revert of a later checkpoint: %q, %v", v, ok)
	}
	_, _, _, events := ws.Freeze()
	if len(events) != 0 {
		t.Fatalf("events after revert = %d, want 0", len(events))
	}
	if ws.GasRemaining() != 1000 {
		t.Fatalf("gas after revert = %d, want 1000 (restored)", ws.GasRemaining())
	}
}

func TestChargeGasOutOfGas(t *testing.T) {
	st := storage.New()
	ws := New(st, witness.New(), 5)

	if err := ws.ChargeGas(2, 2); err != nil {
		t.Fatalf("ChargeGas within budget: %v", err)
	}
	if ws.GasRemaining() != 1 {
		t.Fatalf("GasRemaining = %d, want 1", ws.GasRemaining())
	}
	if err := ws.ChargeGas(1, 2); err != ErrOutOfGas {
		t.Fatalf("ChargeGas over budget = %v, want ErrOutOfGas", err)
	}
}

func TestAccessoryWritesAreNotSetWrites(t *testing.T) {
	st := storage.New()
	ws := New(st, witness.New(), 1000)

	ws.SetAccessory([]byte("idx"), []byte("row"))
	if _, ok := ws.Get([]byte("idx")); ok {
		t.Fatal("accessory write must not be visible through Get")
	}
	writes := ws.AccessoryWrites()
	if len(writes) != 1 || string(writes[0].Value) != "row" {
		t.Fatalf("AccessoryWrites = %+v", writes)
	}
}

func TestFreezeReturnsOrderedReadsWrites(t *testing.T) {
	st := storage.New()
	ws := New(st, witness.New(), 1000)

	ws.Set([]byte("a"), []byte("1"))
	ws.Set([]byte("b"), []byte("2"))
	reads, writes, w, _ := ws.Freeze()
	if len(writes) != 2 {
		t.Fatalf("writes = %d, want 2", len(writes))
	}
	if len(reads) != 0 {
		t.Fatalf("reads = %d, want 0", len(reads))
	}
	if w == nil {
		t.Fatal("witness should not be nil")
	}
}
