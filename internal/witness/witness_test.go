package witness

import "testing"

func TestAddAndNextInOrder(t *testing.T) {
	w := New()
	w.AddStorageValue([]byte("v1"))
	w.AddMerkleProof([]byte("proof1"))
	w.AddStateRoot([]byte("root1"))

	v, err := w.Next(KindStorageValue)
	if err != nil || string(v) != "v1" {
		t.Fatalf("Next(storage) = %q, %v", v, err)
	}
	p, err := w.Next(KindMerkleProof)
	if err != nil || string(p) != "proof1" {
		t.Fatalf("Next(proof) = %q, %v", p, err)
	}
	r, err := w.Next(KindStateRoot)
	if err != nil || string(r) != "root1" {
		t.Fatalf("Next(root) = %q, %v", r, err)
	}
	if _, err := w.Next(KindExtra); err != ErrExhausted {
		t.Fatalf("Next past end = %v, want ErrExhausted", err)
	}
}

func TestNextKindMismatch(t *testing.T) {
	w := New()
	w.AddStorageValue([]byte("v1"))
	if _, err := w.Next(KindMerkleProof); err == nil {
		t.Fatal("expected kind mismatch error")
	}
}

func TestRoundTripJSON(t *testing.T) {
	w := New()
	w.AddStorageValue([]byte("v1"))
	w.AddExtra([]byte("x"))

	data, err := w.MarshalJSON()
	if err != nil {
		t.Fatalf("MarshalJSON: %v", err)
	}

	var w2 Witness
	if err := w2.UnmarshalJSON(data); err != nil {
		t.Fatalf("UnmarshalJSON: %v", err)
	}
	if w2.Len() != 2 {
		t.Fatalf("Len = %d, want 2", w2.Len())
	}
	v, err := w2.Next(KindStorageValue)
	if err != nil || string(v) != "v1" {
		t.Fatalf("Next after round trip = %q, %v", v, err)
	}
}

func TestCloneIndependence(t *testing.T) {
	w := New()
	w.AddExtra([]byte("a"))
	clone := w.Clone()
	w.AddExtra([]byte("b"))

	if clone.Len() != 1 {
		t.Fatalf("clone.Len() = %d, want 1 (should not see post-clone writes)", clone.Len())
	}
	if w.Len() != 2 {
		t.Fatalf("w.Len() = %d, want 2", w.Len())
	}
}

func TestRemaining(t *testing.T) {
	w := New()
	w.AddExtra([]byte("a"))
	w.AddExtra([]byte("b"))
	if w.Remaining() != 2 {
		t.Fatalf("Remaining = %d, want 2", w.Remaining())
	}
	if _, err := w.Next(KindExtra); err != nil {
		t.Fatalf("Next: %v", err)
	}
	if w.Remaining() != 1 {
		t.Fatalf("Remaining after Next = %d, want 1", w.Remaining())
	}
}
