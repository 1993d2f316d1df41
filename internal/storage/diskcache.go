package storage

// On-disk jmt.NodeStore with a bounded in-memory index, adapted from
// core/storage.go's diskLRU (itself built for IPFS/Arweave blobs keyed by
// CID): same fixed-capacity eviction-by-insertion-order discipline, applied
// here to the index only (node files stay on disk), keyed by NodeHash
// instead of CID, and storing JSON-encoded jmt.Node / jmt.LeafRecord values
// instead of opaque blobs.

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/sovereign-rollup/core/internal/storage/jmt"
)

const defaultNodeCacheEntries = 100_000

type diskEntry struct {
	idxKey string
	path   string
	size   int64
	at     time.Time
}

// diskNodeCache is a jmt.NodeStore backed by a directory of small JSON
// files, with a bounded in-memory index evicted oldest-first once it fills.
// Every read/write still hits disk on a miss; the index only remembers
// which hashes are resident, mirroring diskLRU's shape.
type diskNodeCache struct {
	mu    sync.Mutex
	dir   string
	max   int
	index map[string]*diskEntry
	order []*diskEntry
}

func newDiskNodeCache(dir string, maxEntries int) (*diskNodeCache, error) {
	if maxEntries <= 0 {
		maxEntries = defaultNodeCacheEntries
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, err
	}
	return &diskNodeCache{
		dir:   dir,
		max:   maxEntries,
		index: make(map[string]*diskEntry),
	}, nil
}

func (c *diskNodeCache) put(kind, key string, data []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	idxKey := kind + ":" + key
	if ent, ok := c.index[idxKey]; ok {
		ent.at = time.Now()
		return nil
	}

	if len(c.index) >= c.max && len(c.order) > 0 {
		oldest := c.order[0]
		delete(c.index, oldest.idxKey)
		c.order = c.order[1:]
	}

	p := filepath.Join(c.dir, kind+"_"+key)
	if err := os.WriteFile(p, data, 0o644); err != nil {
		return err
	}
	ent := &diskEntry{idxKey: idxKey, path: p, size: int64(len(data)), at: time.Now()}
	c.index[idxKey] = ent
	c.order = append(c.order, ent)
	return nil
}

func (c *diskNodeCache) get(kind, key string) ([]byte, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	idxKey := kind + ":" + key
	ent, ok := c.index[idxKey]
	if !ok {
		p := filepath.Join(c.dir, kind+"_"+key)
		b, err := os.ReadFile(p)
		if err != nil {
			return nil, false
		}
		ent = &diskEntry{idxKey: idxKey, path: p, size: int64(len(b)), at: time.Now()}
		c.index[idxKey] = ent
		c.order = append(c.order, ent)
		return b, true
	}
	ent.at = time.Now()
	b, err := os.ReadFile(ent.path)
	if err != nil {
		return nil, false
	}
	return b, true
}

func hashKey(h jmt.NodeHash) string { return fmt.Sprintf("%x", h) }

// GetNode implements jmt.NodeStore.
func (c *diskNodeCache) GetNode(h jmt.NodeHash) (jmt.Node, bool, error) {
	b, ok := c.get("node", hashKey(h))
	if !ok {
		return jmt.Node{}, false, nil
	}
	var n jmt.Node
	if err := json.Unmarshal(b, &n); err != nil {
		return jmt.Node{}, false, fmt.Errorf("storage: decode node %x: %w", h, err)
	}
	return n, true, nil
}

// PutNode implements jmt.NodeStore.
func (c *diskNodeCache) PutNode(h jmt.NodeHash, n jmt.Node) error {
	b, err := json.Marshal(n)
	if err != nil {
		return fmt.Errorf("storage: encode node %x: %w", h, err)
	}
	return c.put("node", hashKey(h), b)
}

// GetLeaf implements jmt.NodeStore.
func (c *diskNodeCache) GetLeaf(h jmt.NodeHash) (jmt.LeafRecord, bool, error) {
	b, ok := c.get("leaf", hashKey(h))
	if !ok {
		return jmt.LeafRecord{}, false, nil
	}
	var l jmt.LeafRecord
	if err := json.Unmarshal(b, &l); err != nil {
		return jmt.LeafRecord{}, false, fmt.Errorf("storage: decode leaf %x: %w", h, err)
	}
	return l, true, nil
}

// PutLeaf implements jmt.NodeStore.
func (c *diskNodeCache) PutLeaf(h jmt.NodeHash, l jmt.LeafRecord) error {
	b, err := json.Marshal(l)
	if err != nil {
		return fmt.Errorf("storage: encode leaf %x: %w", h, err)
	}
	return c.put("leaf", hashKey(h), b)
}
