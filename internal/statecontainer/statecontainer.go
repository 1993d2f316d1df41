// Package statecontainer implements the typed module state accessors
// described in spec.md §2 (C5): Value, Map, and Vec, each a thin generic
// codec wrapper over a workingset.WorkingSet key namespace. Grounded on
// original_source/module-system's typed call-handler state accessors
// (StateValue/StateMap/StateVec wrapping a generic working set with a
// codec), reimplemented here with Go generics instead of Rust trait bounds.
package statecontainer

import (
	"encoding/binary"
	"encoding/json"
	"fmt"
)

// ws is the subset of *workingset.WorkingSet the containers need, kept
// narrow so container code can be unit-tested against a fake.
type ws interface {
	Get(key []byte) ([]byte, bool)
	Set(key, value []byte)
	Delete(key []byte)
}

// Value is a single JSON-codec-backed typed slot, namespaced by prefix.
type Value[T any] struct {
	ws     ws
	prefix []byte
}

// NewValue returns a Value namespaced under prefix within w.
func NewValue[T any](w ws, prefix []byte) *Value[T] {
	return &Value[T]{ws: w, prefix: append([]byte(nil), prefix...)}
}

// Get returns the stored value, or the zero value and false if unset.
func (v *Value[T]) Get() (T, bool) {
	var zero T
	raw, ok := v.ws.Get(v.prefix)
	if !ok {
		return zero, false
	}
	var out T
	if err := json.Unmarshal(raw, &out); err != nil {
		return zero, false
	}
	return out, true
}

// Set stores val.
func (v *Value[T]) Set(val T) error {
	raw, err := json.Marshal(val)
	if err != nil {
		return fmt.Errorf("statecontainer: encode value: %w", err)
	}
	v.ws.Set(v.prefix, raw)
	return nil
}

// Delete clears the stored value.
func (v *Value[T]) Delete() { v.ws.Delete(v.prefix) }

// Map is a JSON-codec-backed typed key/value namespace.
type Map[K comparable, V any] struct {
	ws       ws
	prefix   []byte
	keyCodec func(K) ([]byte, error)
}

// NewMap returns a Map namespaced under prefix, using keyCodec to turn a
// typed key into the byte suffix appended to prefix. Callers with a simple
// key type can use JSONKeyCodec[K]().
func NewMap[K comparable, V any](w ws, prefix []byte, keyCodec func(K) ([]byte, error)) *Map[K, V] {
	return &Map[K, V]{ws: w, prefix: append([]byte(nil), prefix...), keyCodec: keyCodec}
}

// JSONKeyCodec returns a key codec that JSON-encodes the key, suitable for
// any comparable key type with a sensible JSON representation.
func JSONKeyCodec[K comparable]() func(K) ([]byte, error) {
	return func(k K) ([]byte, error) { return json.Marshal(k) }
}

func (m *Map[K, V]) entryKey(k K) ([]byte, error) {
	suffix, err := m.keyCodec(k)
	if err != nil {
		return nil, fmt.Errorf("statecontainer: encode map key: %w", err)
	}
	out := make([]byte, 0, len(m.prefix)+1+len(suffix))
	out = append(out, m.prefix...)
	out = append(out, ':')
	out = append(out, suffix...)
	return out, nil
}

// Get looks up k.
func (m *Map[K, V]) Get(k K) (V, bool, error) {
	var zero V
	ek, err := m.entryKey(k)
	if err != nil {
		return zero, false, err
	}
	raw, ok := m.ws.Get(ek)
	if !ok {
		return zero, false, nil
	}
	var out V
	if err := json.Unmarshal(raw, &out); err != nil {
		return zero, false, fmt.Errorf("statecontainer: decode map value: %w", err)
	}
	return out, true, nil
}

// Set stores k=v.
func (m *Map[K, V]) Set(k K, v V) error {
	ek, err := m.entryKey(k)
	if err != nil {
		return err
	}
	raw, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("statecontainer: encode map value: %w", err)
	}
	m.ws.Set(ek, raw)
	return nil
}

// Delete removes k.
func (m *Map[K, V]) Delete(k K) error {
	ek, err := m.entryKey(k)
	if err != nil {
		return err
	}
	m.ws.Delete(ek)
	return nil
}

// Vec is a JSON-codec-backed typed append-only-indexed vector: a length
// counter plus one entry per index, both namespaced under prefix.
type Vec[T any] struct {
	ws     ws
	prefix []byte
}

// NewVec returns a Vec namespaced under prefix.
func NewVec[T any](w ws, prefix []byte) *Vec[T] {
	return &Vec[T]{ws: w, prefix: append([]byte(nil), prefix...)}
}

func (v *Vec[T]) lenKey() []byte { return append(append([]byte(nil), v.prefix...), ":len"...) }

func (v *Vec[T]) itemKey(i uint64) []byte {
	k := append([]byte(nil), v.prefix...)
	k = append(k, ':')
	var buf [8]byte
	binary.BigEndian.PutUint64(buf[:], i)
	return append(k, buf[:]...)
}

// Len returns the number of elements pushed so far.
func (v *Vec[T]) Len() uint64 {
	raw, ok := v.ws.Get(v.lenKey())
	if !ok {
		return 0
	}
	return binary.BigEndian.Uint64(raw)
}

func (v *Vec[T]) setLen(n uint64) {
	var buf [8]byte
	binary.BigEndian.PutUint64(buf[:], n)
	v.ws.Set(v.lenKey(), buf[:])
}

// Get returns the element at index i.
func (v *Vec[T]) Get(i uint64) (T, bool, error) {
	var zero T
	if i >= v.Len() {
		return zero, false, nil
	}
	raw, ok := v.ws.Get(v.itemKey(i))
	if !ok {
		return zero, false, nil
	}
	var out T
	if err := json.Unmarshal(raw, &out); err != nil {
		return zero, false, fmt.Errorf("statecontainer: decode vec element: %w", err)
	}
	return out, true, nil
}

// Push appends val, returning its new index.
func (v *Vec[T]) Push(val T) (uint64, error) {
	raw, err := json.Marshal(val)
	if err != nil {
		return 0, fmt.Errorf("statecontainer: encode vec element: %w", err)
	}
	n := v.Len()
	v.ws.Set(v.itemKey(n), raw)
	v.setLen(n + 1)
	return n, nil
}

// Pop removes and returns the last element, if any.
func (v *Vec[T]) Pop() (T, bool, error) {
	var zero T
	n := v.Len()
	if n == 0 {
		return zero, false, nil
	}
	idx := n - 1
	out, ok, err := v.Get(idx)
	if err != nil {
		return zero, false, err
	}
	v.ws.Delete(v.itemKey(idx))
	v.setLen(idx)
	if !ok {
		return zero, false, nil
	}
	return out, true, nil
}
