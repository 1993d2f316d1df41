package storage

import (
	"testing"

	"github.com/sovereign-rollup/core/internal/cachelog"
	"github.com/sovereign-rollup/core/internal/storage/jmt"
	"github.com/sovereign-rollup/core/internal/witness"
)

func TestGenesisIsEmpty(t *testing.T) {
	s := New()
	if !s.IsEmpty() {
		t.Fatal("fresh storage should report IsEmpty")
	}
	w := witness.New()
	if v, ok := s.Get([]byte("alice"), w); ok || v != nil {
		t.Fatalf("Get on empty storage = %q, %v; want miss", v, ok)
	}
	if w.Len() != 1 {
		t.Fatalf("witness should record the miss, Len = %d", w.Len())
	}
}

func TestCommitAdvancesVersionAndRoot(t *testing.T) {
	s := New()
	w := witness.New()

	writes := []cachelog.Record{
		{Key: []byte("alice"), Value: []byte("100")},
		{Key: []byte("bob"), Value: []byte("200")},
	}
	update, err := s.ComputeStateUpdate(writes, w)
	if err != nil {
		t.Fatalf("ComputeStateUpdate: %v", err)
	}
	if update.Version != 1 {
		t.Fatalf("genesis commit version = %d, want 1", update.Version)
	}
	if err := s.Commit(update, nil); err != nil {
		t.Fatalf("Commit: %v", err)
	}
	if s.IsEmpty() {
		t.Fatal("storage should no longer be empty after commit")
	}
	if s.CurrentVersion() != 1 {
		t.Fatalf("CurrentVersion = %d, want 1", s.CurrentVersion())
	}

	w2 := witness.New()
	v, ok := s.Get([]byte("alice"), w2)
	if !ok || string(v) != "100" {
		t.Fatalf("Get(alice) = %q, %v; want 100, true", v, ok)
	}
}

func TestCommitIsVersionedAndPreimageRecorded(t *testing.T) {
	s := New()

	u1, err := s.ComputeStateUpdate([]cachelog.Record{{Key: []byte("alice"), Value: []byte("100")}}, nil)
	if err != nil {
		t.Fatalf("update1: %v", err)
	}
	if err := s.Commit(u1, nil); err != nil {
		t.Fatalf("commit1: %v", err)
	}

	u2, err := s.ComputeStateUpdate([]cachelog.Record{{Key: []byte("alice"), Value: []byte("200")}}, nil)
	if err != nil {
		t.Fatalf("update2: %v", err)
	}
	if err := s.Commit(u2, nil); err != nil {
		t.Fatalf("commit2: %v", err)
	}

	if v, ok := s.Get([]byte("alice"), nil); !ok || string(v) != "200" {
		t.Fatalf("Get(alice) after second commit = %q, %v; want 200, true", v, ok)
	}

	root1, ok := s.RootAt(1)
	if !ok {
		t.Fatal("RootAt(1) missing")
	}
	root2, ok := s.RootAt(2)
	if !ok {
		t.Fatal("RootAt(2) missing")
	}
	if root1 == root2 {
		t.Fatal("root should change between versions with different values")
	}

	kh := jmt.HashKey([]byte("alice"))
	if preimage, ok := s.Preimage(kh); !ok || string(preimage) != "alice" {
		t.Fatalf("Preimage = %q, %v; want alice, true", preimage, ok)
	}
}

func TestAccessoryWritesAreSeparateFromAuthenticatedState(t *testing.T) {
	s := New()

	u, err := s.ComputeStateUpdate([]cachelog.Record{{Key: []byte("alice"), Value: []byte("100")}}, nil)
	if err != nil {
		t.Fatalf("update: %v", err)
	}
	rootBefore := u.NewRoot
	if err := s.Commit(u, []AccessoryWrite{{Key: []byte("idx:alice"), Value: []byte("row-1")}}); err != nil {
		t.Fatalf("commit: %v", err)
	}

	if v, ok := s.GetAccessory([]byte("idx:alice")); !ok || string(v) != "row-1" {
		t.Fatalf("GetAccessory = %q, %v; want row-1, true", v, ok)
	}
	if _, ok := s.Get([]byte("idx:alice"), nil); ok {
		t.Fatal("accessory key should not be visible through authenticated Get")
	}
	root, _ := s.RootAt(1)
	if root != rootBefore {
		t.Fatal("accessory write must not affect the authenticated root")
	}
}

func TestTombstoneDeletesKey(t *testing.T) {
	s := New()
	u1, _ := s.ComputeStateUpdate([]cachelog.Record{{Key: []byte("alice"), Value: []byte("100")}}, nil)
	if err := s.Commit(u1, nil); err != nil {
		t.Fatalf("commit1: %v", err)
	}
	u2, err := s.ComputeStateUpdate([]cachelog.Record{{Key: []byte("alice"), Tombstone: true}}, nil)
	if err != nil {
		t.Fatalf("update2: %v", err)
	}
	if err := s.Commit(u2, nil); err != nil {
		t.Fatalf("commit2: %v", err)
	}
	if v, ok := s.Get([]byte("alice"), nil); ok || v != nil {
		t.Fatalf("Get(alice) after tombstone = %q, %v; want miss", v, ok)
	}
}
