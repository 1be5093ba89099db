// Package audio provides shared playback and caching infrastructure used by
// the sink adapters. Cache is a two-tier memory+disk design keyed by
// sha256(voice+":"+text), so repeated identical humanized sentences don't
// get re-synthesized across process restarts.
package audio

import (
	"crypto/sha256"
	"encoding/hex"
	"os"
	"path/filepath"
	"sync"

	"github.com/narrator-dev/narrator/internal/logger"
)

// Cache is a thread-safe two-tier (memory + filesystem) store for
// synthesized audio bytes, keyed by voice+text.
type Cache struct {
	mu        sync.RWMutex
	entries   map[string][]byte
	log       *logger.Logger
	voice     string
	cacheDir  string
	diskWrite bool
	hits      int64
	misses    int64
}

// NewCache creates an audio cache. If cacheDir is empty the disk layer is
// disabled entirely. diskWrite controls whether new entries are persisted;
// existing on-disk entries are read regardless.
func NewCache(voice, cacheDir string, diskWrite bool, log *logger.Logger) *Cache {
	c := &Cache{
		entries:   make(map[string][]byte),
		log:       log,
		voice:     voice,
		cacheDir:  cacheDir,
		diskWrite: diskWrite,
	}
	if cacheDir != "" && diskWrite {
		if err := os.MkdirAll(cacheDir, 0o755); err != nil {
			log.Error("audio cache: failed to create cache dir %s: %v", cacheDir, err)
		}
	}
	return c
}

// Get returns cached audio for text, checking memory then disk.
func (c *Cache) Get(text string) ([]byte, bool) {
	key := c.hashKey(text)

	c.mu.RLock()
	data, ok := c.entries[key]
	c.mu.RUnlock()
	if ok {
		c.mu.Lock()
		c.hits++
		c.mu.Unlock()
		return data, true
	}

	if c.cacheDir != "" {
		if diskData, diskOK := c.readDisk(key); diskOK {
			c.mu.Lock()
			c.entries[key] = diskData
			c.hits++
			c.mu.Unlock()
			return diskData, true
		}
	}

	c.mu.Lock()
	c.misses++
	c.mu.Unlock()
	return nil, false
}

// Put stores audio for text. Always written to memory; written to disk
// only when diskWrite is enabled.
func (c *Cache) Put(text string, data []byte) {
	key := c.hashKey(text)

	c.mu.Lock()
	c.entries[key] = data
	c.mu.Unlock()

	if c.cacheDir != "" && c.diskWrite {
		c.writeDisk(key, data)
	}
}

// Has reports whether audio for text is cached, in memory or on disk.
func (c *Cache) Has(text string) bool {
	key := c.hashKey(text)

	c.mu.RLock()
	_, ok := c.entries[key]
	c.mu.RUnlock()
	if ok {
		return true
	}
	if c.cacheDir != "" {
		return c.existsOnDisk(key)
	}
	return false
}

// Stats returns hit and miss counts.
func (c *Cache) Stats() (hits, misses int64) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.hits, c.misses
}

func (c *Cache) hashKey(text string) string {
	h := sha256.Sum256([]byte(c.voice + ":" + text))
	return hex.EncodeToString(h[:])
}

func (c *Cache) diskPath(key string) string {
	return filepath.Join(c.cacheDir, key+".bin")
}

func (c *Cache) readDisk(key string) ([]byte, bool) {
	data, err := os.ReadFile(c.diskPath(key))
	if err != nil {
		return nil, false
	}
	return data, true
}

func (c *Cache) writeDisk(key string, data []byte) {
	path := c.diskPath(key)
	if err := os.WriteFile(path, data, 0o644); err != nil {
		c.log.Error("audio cache: disk write failed for %s: %v", path, err)
	}
}

func (c *Cache) existsOnDisk(key string) bool {
	_, err := os.Stat(c.diskPath(key))
	return err == nil
}
