package statecontainer

import "testing"

type fakeWS struct {
	data map[string][]byte
}

func newFakeWS() *fakeWS { return &fakeWS{data: make(map[string][]byte)} }

func (f *fakeWS) Get(key []byte) ([]byte, bool) {
	v, ok := f.data[string(key)]
	return v, ok
}
func (f *fakeWS) Set(key, value []byte) { f.data[string(key)] = append([]byte(nil), value...) }
func (f *fakeWS) Delete(key []byte)     { delete(f.data, string(key)) }

func TestValue(t *testing.T) {
	w := newFakeWS()
	v := NewValue[uint64](w, []byte("total_supply"))

	if _, ok := v.Get(); ok {
		t.Fatal("expected unset value to report absent")
	}
	if err := v.Set(42); err != nil {
		t.Fatalf("Set: %v", err)
	}
	got, ok := v.Get()
	if !ok || got != 42 {
		t.Fatalf("Get = %d, %v; want 42, true", got, ok)
	}
	v.Delete()
	if _, ok := v.Get(); ok {
		t.Fatal("expected absent after Delete")
	}
}

func TestMap(t *testing.T) {
	w := newFakeWS()
	m := NewMap[string, uint64](w, []byte("balances"), JSONKeyCodec[string]())

	if _, ok, err := m.Get("alice"); ok || err != nil {
		t.Fatalf("Get(alice) on empty map = %v, %v", ok, err)
	}
	if err := m.Set("alice", 100); err != nil {
		t.Fatalf("Set: %v", err)
	}
	if err := m.Set("bob", 200); err != nil {
		t.Fatalf("Set: %v", err)
	}
	v, ok, err := m.Get("alice")
	if err != nil || !ok || v != 100 {
		t.Fatalf("Get(alice) = %d, %v, %v; want 100, true, nil", v, ok, err)
	}
	if err := m.Delete("alice"); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if _, ok, _ := m.Get("alice"); ok {
		t.Fatal("expected alice absent after Delete")
	}
	v, ok, err = m.Get("bob")
	if err != nil || !ok || v != 200 {
		t.Fatalf("Get(bob) after unrelated delete = %d, %v, %v", v, ok, err)
	}
}

func TestVec(t *testing.T) {
	w := newFakeWS()
	vec := NewVec[string](w, []byte("log"))

	if vec.Len() != 0 {
		t.Fatalf("Len on empty vec = %d, want 0", vec.Len())
	}
	idx, err := vec.Push("a")
	if err != nil || idx != 0 {
		t.Fatalf("Push(a) = %d, %v; want 0, nil", idx, err)
	}
	idx, err = vec.Push("b")
	if err != nil || idx != 1 {
		t.Fatalf("Push(b) = %d, %v; want 1, nil", idx, err)
	}
	if vec.Len() != 2 {
		t.Fatalf("Len = %d, want 2", vec.Len())
	}
	v, ok, err := vec.Get(0)
	if err != nil || !ok || v != "a" {
		t.Fatalf("Get(0) = %q, %v, %v; want a, true, nil", v, ok, err)
	}
	popped, ok, err := vec.Pop()
	if err != nil || !ok || popped != "b" {
		t.Fatalf("Pop = %q, %v, %v; want b, true, nil", popped, ok, err)
	}
	if vec.Len() != 1 {
		t.Fatalf("Len after Pop = %d, want 1", vec.Len())
	}
}
