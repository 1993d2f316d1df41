package blobselect

import (
	"testing"

	"github.com/sovereign-rollup/core/pkg/types"
)

type testBlob struct {
	sender types.Address
	id     string
}

func (b testBlob) Sender() types.Address { return b.sender }

func addr(b byte) types.Address {
	var a types.Address
	a[0] = b
	return a
}

type setRegistry map[types.Address]bool

func (r setRegistry) IsRegistered(a types.Address) bool { return r[a] }

func TestNoPreferredSequencerPassesThrough(t *testing.T) {
	cfg := Config{DeferredSlots: 2}
	reg := setRegistry{}
	dm := NewDeferralMap()

	current := []Blob{testBlob{sender: addr(1), id: "a"}}
	out := Select(cfg, reg, dm, 5, current)
	if len(out) != 1 {
		t.Fatalf("len(out) = %d, want 1", len(out))
	}
}

func TestDeferralWithPreferredSequencer(t *testing.T) {
	pref := addr(9)
	cfg := Config{DeferredSlots: 2, PreferredSequencer: &pref}
	reg := setRegistry{addr(1): true}
	dm := NewDeferralMap()

	// Slot 1: blob from addr(1), non-preferred, registered -> deferred to
	// become due at slot 1+2=3.
	b1 := testBlob{sender: addr(1), id: "b1"}
	out1 := Select(cfg, reg, dm, 1, []Blob{b1})
	if len(out1) != 0 {
		t.Fatalf("slot1 out = %v, want empty (deferred)", out1)
	}

	// Slots 2: nothing due yet (due slot = 2-2=0).
	out2 := Select(cfg, reg, dm, 2, nil)
	if len(out2) != 0 {
		t.Fatalf("slot2 out = %v, want empty", out2)
	}

	// Slot 3: due slot = 3-2=1, b1 becomes due.
	out3 := Select(cfg, reg, dm, 3, nil)
	if len(out3) != 1 {
		t.Fatalf("slot3 out = %v, want [b1]", out3)
	}
}

func TestUnregisteredSenderFilteredAtAdmission(t *testing.T) {
	pref := addr(9)
	cfg := Config{DeferredSlots: 1, PreferredSequencer: &pref}
	reg := setRegistry{} // addr(1) never registered
	dm := NewDeferralMap()

	b1 := testBlob{sender: addr(1), id: "b1"}
	Select(cfg, reg, dm, 1, []Blob{b1})

	// Due at slot 2 (1+1); should never appear since it was filtered out at
	// admission for being unregistered.
	out := Select(cfg, reg, dm, 2, nil)
	if len(out) != 0 {
		t.Fatalf("out = %v, want empty: unregistered sender should be dropped", out)
	}
}

func TestPriorityBlobsExecuteImmediately(t *testing.T) {
	pref := addr(9)
	cfg := Config{DeferredSlots: 3, PreferredSequencer: &pref}
	reg := setRegistry{}
	dm := NewDeferralMap()

	pb := testBlob{sender: pref, id: "priority"}
	out := Select(cfg, reg, dm, 1, []Blob{pb})
	if len(out) != 1 {
		t.Fatalf("priority blob should execute immediately, got %v", out)
	}
}

func TestDoubleDeferralOnSenderExit(t *testing.T) {
	pref := addr(9)
	reg := setRegistry{addr(1): true}

	t.Run("commitment at admission (default)", func(t *testing.T) {
		cfg := Config{DeferredSlots: 2, PreferredSequencer: &pref, RefilterOnExecution: false}
		dm := NewDeferralMap()
		b1 := testBlob{sender: addr(1), id: "b1"}
		Select(cfg, reg, dm, 1, []Blob{b1})
		delete(reg, addr(1)) // sender exits before slot 3
		out := Select(cfg, reg, dm, 3, nil)
		if len(out) != 1 {
			t.Fatalf("expected blob still executed under commitment-at-admission, got %v", out)
		}
		reg[addr(1)] = true // restore for other subtests
	})

	t.Run("refilter at execution", func(t *testing.T) {
		cfg := Config{DeferredSlots: 2, PreferredSequencer: &pref, RefilterOnExecution: true}
		dm := NewDeferralMap()
		b1 := testBlob{sender: addr(1), id: "b1"}
		Select(cfg, reg, dm, 1, []Blob{b1})
		delete(reg, addr(1))
		out := Select(cfg, reg, dm, 3, nil)
		if len(out) != 0 {
			t.Fatalf("expected blob dropped under refilter-at-execution, got %v", out)
		}
	})
}

func TestDueBlobsAtOrAboveRequestPullNothingMore(t *testing.T) {
	pref := addr(9)
	cfg := Config{DeferredSlots: 1, PreferredSequencer: &pref, BlobsRequestedForExecutionNextSlot: 2}
	reg := setRegistry{addr(1): true}
	dm := NewDeferralMap()

	// Admit three blobs from addr(1) at slot 1; due at slot 2.
	Select(cfg, reg, dm, 1, []Blob{
		testBlob{sender: addr(1), id: "x"},
		testBlob{sender: addr(1), id: "y"},
		testBlob{sender: addr(1), id: "z"},
	})

	// Slot 2: due slot = 1, all three become "due" (due count = 3, already
	// exceeds n=2 so pullAdditional pulls nothing more).
	out := Select(cfg, reg, dm, 2, nil)
	if len(out) != 3 {
		t.Fatalf("out = %v, want all 3 due blobs", out)
	}
}
