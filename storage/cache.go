package storage

import (
	"errors"
	"sort"
)

var errCacheClosed = errors.New("storage: cache already written or discarded")

// Cache stages writes on top of a parent store. Reads see the staged values;
// nothing reaches the parent until Write. Discard drops everything. Caches
// nest, so a call can stage on top of another call's cache.
//
// Cache is not safe for concurrent use.
type Cache struct {
	parent  KVStore
	puts    map[string][]byte
	deletes map[string]struct{}
	closed  bool
}

// NewCache wraps parent in a fresh scratch pad.
func NewCache(parent KVStore) *Cache {
	return &Cache{
		parent:  parent,
		puts:    make(map[string][]byte),
		deletes: make(map[string]struct{}),
	}
}

func (c *Cache) Get(key []byte) ([]byte, error) {
	if c.closed {
		return nil, errCacheClosed
	}
	k := string(key)
	if _, gone := c.deletes[k]; gone {
		return nil, ErrNotFound
	}
	if value, ok := c.puts[k]; ok {
		return append([]byte(nil), value...), nil
	}
	return c.parent.Get(key)
}

func (c *Cache) Put(key []byte, value []byte) error {
	if c.closed {
		return errCacheClosed
	}
	k := string(key)
	delete(c.deletes, k)
	c.puts[k] = append([]byte(nil), value...)
	return nil
}

func (c *Cache) Delete(key []byte) error {
	if c.closed {
		return errCacheClosed
	}
	k := string(key)
	delete(c.puts, k)
	c.deletes[k] = struct{}{}
	return nil
}

// Dirty reports whether any write is staged.
func (c *Cache) Dirty() bool {
	return len(c.puts) > 0 || len(c.deletes) > 0
}

// Write flushes the staged writes into the parent. When the parent is a
// Batcher the flush is a single atomic batch; otherwise keys are applied in
// lexical order.
func (c *Cache) Write() error {
	if c.closed {
		return errCacheClosed
	}
	c.closed = true
	deletes := make([]string, 0, len(c.deletes))
	for key := range c.deletes {
		deletes = append(deletes, key)
	}
	sort.Strings(deletes)

	if batcher, ok := c.parent.(Batcher); ok {
		return batcher.WriteBatch(c.puts, deletes)
	}

	for _, key := range deletes {
		if err := c.parent.Delete([]byte(key)); err != nil {
			return err
		}
	}
	keys := make([]string, 0, len(c.puts))
	for key := range c.puts {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	for _, key := range keys {
		if err := c.parent.Put([]byte(key), c.puts[key]); err != nil {
			return err
		}
	}
	return nil
}

// Discard drops all staged writes. Calling it after Write is a no-op.
func (c *Cache) Discard() {
	if c.closed {
		return
	}
	c.closed = true
	c.puts = nil
	c.deletes = nil
}
