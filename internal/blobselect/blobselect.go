// Package blobselect implements the blob-selection kernel described in
// spec.md §4.6 (C6): per-slot deferral and priority policy deciding which
// blobs the STF driver executes this slot, and which get pushed out to a
// future slot. Grounded on spec.md §4.6 verbatim; no teacher file models a
// deferred-execution queue, so the deferral map itself is original, built
// on top of the same "ordered slice + map index" shape C1's cache log uses.
package blobselect

import (
	"github.com/sovereign-rollup/core/pkg/types"
)

// Blob is the minimal shape the selector needs from a DA blob: its sender,
// for partitioning into priority/deferred, and an opaque payload the STF
// driver will later decode.
type Blob interface {
	Sender() types.Address
}

// Registry answers whether addr is currently a registered sequencer. The
// selector always consults it at admission (slot h, when a non-priority
// blob is first seen and deferred); with RefilterOnExecution set it is
// consulted a second time at execution (slot h+d, when the blob is pulled).
type Registry interface {
	IsRegistered(addr types.Address) bool
}

// Config parameterizes the selector (spec.md §4.6 "Parameters").
type Config struct {
	// DeferredSlots is d: how many slots a non-priority blob sits in the
	// deferral map before it becomes eligible for execution.
	DeferredSlots uint64
	// PreferredSequencer, if set, makes blobs from this address priority
	// (executed immediately, never deferred).
	PreferredSequencer *types.Address
	// BlobsRequestedForExecutionNextSlot is n: the target number of blobs
	// to pull into this slot's execution sequence beyond what's already due.
	BlobsRequestedForExecutionNextSlot int
	// RefilterOnExecution resolves spec.md §9's open question: if true, a
	// blob deferred while its sender was registered is re-checked against
	// the registry at pull time and dropped if the sender has since
	// exited. If false (the default), registration is checked only once,
	// at admission — "commitment at admission" semantics.
	RefilterOnExecution bool
}

// DeferralMap is the persistent slot_height -> blobs store the kernel reads
// and writes across calls. It must be a single instance shared across
// consecutive calls to Select within one chain's lifetime.
type DeferralMap struct {
	bySlot map[uint64][]Blob
}

// NewDeferralMap returns an empty deferral map.
func NewDeferralMap() *DeferralMap {
	return &DeferralMap{bySlot: make(map[uint64][]Blob)}
}

func (d *DeferralMap) take(slot uint64) []Blob {
	blobs := d.bySlot[slot]
	delete(d.bySlot, slot)
	return blobs
}

func (d *DeferralMap) store(slot uint64, blobs []Blob) {
	if len(blobs) == 0 {
		delete(d.bySlot, slot)
		return
	}
	d.bySlot[slot] = blobs
}

func (d *DeferralMap) prepend(slot uint64, blobs []Blob) {
	d.bySlot[slot] = append(append([]Blob(nil), blobs...), d.bySlot[slot]...)
}

// Select computes the execution sequence for slot height h given the raw
// blobs observed on the DA layer this slot, per spec.md §4.6's policy.
func Select(cfg Config, reg Registry, deferred *DeferralMap, h uint64, current []Blob) []Blob {
	dueSlot := uint64(0)
	if h > cfg.DeferredSlots {
		dueSlot = h - cfg.DeferredSlots
	}
	due := deferred.take(dueSlot)
	if cfg.RefilterOnExecution {
		due = filterRegistered(reg, due)
	}

	if cfg.PreferredSequencer == nil {
		return append(append([]Blob(nil), due...), current...)
	}

	var priority, toDefer []Blob
	for _, b := range current {
		if b.Sender() == *cfg.PreferredSequencer {
			priority = append(priority, b)
		} else {
			toDefer = append(toDefer, b)
		}
	}

	survivors := make([]Blob, 0, len(toDefer))
	for _, b := range toDefer {
		if reg.IsRegistered(b.Sender()) {
			survivors = append(survivors, b)
		}
	}
	deferred.store(h, survivors)

	additional := pullAdditional(cfg, reg, deferred, dueSlot, h, len(due))

	out := make([]Blob, 0, len(priority)+len(due)+len(additional))
	out = append(out, priority...)
	out = append(out, due...)
	out = append(out, additional...)
	return out
}

// filterRegistered returns the subset of blobs whose sender is currently
// registered, used by RefilterOnExecution to re-check admission-time
// survivors at pull time.
func filterRegistered(reg Registry, blobs []Blob) []Blob {
	out := make([]Blob, 0, len(blobs))
	for _, b := range blobs {
		if reg.IsRegistered(b.Sender()) {
			out = append(out, b)
		}
	}
	return out
}

// pullAdditional implements step 4: if the caller wants more blobs executed
// this slot than were already due, pull from successive future deferred
// slots in order, splitting (and re-storing the unused tail of) the last
// group it touches if it would overshoot the request.
func pullAdditional(cfg Config, reg Registry, deferred *DeferralMap, dueSlot, h uint64, dueCount int) []Blob {
	want := cfg.BlobsRequestedForExecutionNextSlot - dueCount
	if want <= 0 {
		return nil
	}
	var out []Blob
	for slot := dueSlot + 1; slot < h && len(out) < want; slot++ {
		group := deferred.take(slot)
		if len(group) == 0 {
			continue
		}
		filtered := group
		if cfg.RefilterOnExecution {
			filtered = filterRegistered(reg, group)
		}
		remaining := want - len(out)
		if len(filtered) > remaining {
			out = append(out, filtered[:remaining]...)
			deferred.prepend(slot, filtered[remaining:])
		} else {
			out = append(out, filtered...)
		}
	}
	return out
}
