// Package cachelog implements the ordered, deduplicated read/write log for
// one in-flight execution (spec.md §4.1, C1). It lets transaction, batch,
// and slot scopes nest without cloning the underlying storage: a child log
// is created at each scope boundary and merged back into its parent on
// success, or discarded on revert.
package cachelog

import (
	"bytes"
	"errors"
)

// ErrWriteThenRead is returned by Merge when the child's first observed
// value for a key disagrees with the parent's last write to that key.
var ErrWriteThenRead = errors.New("cachelog: write-then-read conflict")

// ErrReadThenRead is returned by Merge when two reads of the same key
// disagree across the merge boundary.
var ErrReadThenRead = errors.New("cachelog: read-then-read conflict")

// Backing is the underlying storage a Log reads through to on a cache miss.
type Backing interface {
	Get(key []byte) ([]byte, bool)
}

// Touch records which Record (read or write) last affected a key, so Get
// can resolve the most recent value without re-scanning every prior Touch.
type Touch struct {
	isWrite bool
	index   int // index into reads or writes, depending on isWrite
}

// Record is a single observed or applied value. A nil Value with
// Tombstone == true represents a delete.
type Record struct {
	Key       []byte
	Value     []byte
	Tombstone bool
}

// Log is the ordered read/write log for one execution scope.
type Log struct {
	backing Backing
	reads   []Record
	writes  []Record
	last    map[string]Touch
}

// New creates a Log that reads through to backing on a miss. backing may be
// nil for a root-level log with no parent (e.g. in isolated unit tests).
func New(backing Backing) *Log {
	return &Log{backing: backing, last: make(map[string]Touch)}
}

// Get returns the value implied by the log's last Touch of key, reading
// through to the backing store (and recording the observation) on a miss.
// The second return value is false if the key is absent (including after
// an observed or applied delete).
func (l *Log) Get(key []byte) ([]byte, bool) {
	if t, ok := l.last[string(key)]; ok {
		r := l.Record(t)
		if r.Tombstone {
			return nil, false
		}
		return r.Value, true
	}
	if l.backing == nil {
		return nil, false
	}
	v, ok := l.backing.Get(key)
	idx := len(l.reads)
	l.reads = append(l.reads, Record{Key: append([]byte(nil), key...), Value: v, Tombstone: !ok})
	l.last[string(key)] = Touch{isWrite: false, index: idx}
	if !ok {
		return nil, false
	}
	return v, true
}

// Set appends a write of value for key.
func (l *Log) Set(key, value []byte) {
	l.appendWrite(key, append([]byte(nil), value...), false)
}

// Delete appends a tombstone write for key.
func (l *Log) Delete(key []byte) {
	l.appendWrite(key, nil, true)
}

func (l *Log) appendWrite(key, value []byte, tombstone bool) {
	idx := len(l.writes)
	l.writes = append(l.writes, Record{Key: append([]byte(nil), key...), Value: value, Tombstone: tombstone})
	l.last[string(key)] = Touch{isWrite: true, index: idx}
}

func (l *Log) Record(t Touch) Record {
	if t.isWrite {
		return l.writes[t.index]
	}
	return l.reads[t.index]
}

// Checkpoint returns the ordered reads and writes accumulated so far,
// without clearing the log — used by Freeze and by tests asserting shape.
func (l *Log) Checkpoint() (reads []Record, writes []Record) {
	return append([]Record(nil), l.reads...), append([]Record(nil), l.writes...)
}

// Reads exposes the accumulated read log for merge/consistency checks.
func (l *Log) Reads() []Record { return l.reads }

// Writes exposes the accumulated write log for merge/consistency checks,
// replay, and feeding storage.ComputeStateUpdate.
func (l *Log) Writes() []Record { return l.writes }

// Merge folds child into l as if every operation child performed had been
// performed directly against l: child's writes are appended to l's writes,
// and any key child only read is carried forward so a grandchild merge can
// still resolve it. Merge validates consistency first and performs no
// partial merge on error.
func (l *Log) Merge(child *Log) error {
	if err := l.checkConsistency(child); err != nil {
		return err
	}
	for _, w := range child.writes {
		if w.Tombstone {
			l.Delete(w.Key)
		} else {
			l.Set(w.Key, w.Value)
		}
	}
	for _, r := range child.reads {
		if _, ok := l.last[string(r.Key)]; !ok {
			idx := len(l.reads)
			l.reads = append(l.reads, r)
			l.last[string(r.Key)] = Touch{isWrite: false, index: idx}
		}
	}
	return nil
}

// checkConsistency implements spec.md §3's mergeability definition: for
// every key present in both logs, the parent's last-visible value for that
// key must equal the child's first observation of that key.
func (l *Log) checkConsistency(child *Log) error {
	for k, parentTouch := range l.last {
		childRead, hasRead := firstChildRead(child, k)
		if !hasRead {
			continue
		}
		parentRecord := l.Record(parentTouch)
		if !sameValue(parentRecord, childRead) {
			if parentTouch.isWrite {
				return ErrWriteThenRead
			}
			return ErrReadThenRead
		}
	}
	return nil
}

func firstChildRead(child *Log, key string) (Record, bool) {
	for _, r := range child.reads {
		if string(r.Key) == key {
			return r, true
		}
	}
	return Record{}, false
}

func sameValue(a, b Record) bool {
	if a.Tombstone != b.Tombstone {
		return false
	}
	if a.Tombstone {
		return true
	}
	return bytes.Equal(a.Value, b.Value)
}
