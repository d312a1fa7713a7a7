package speech

import (
	"crypto/sha256"
	"encoding/hex"
	"os"
	"path/filepath"
	"sync"

	"github.com/hammamikhairi/voxturn/internal/logger"
)

// AudioCache is a two-tier cache (memory, then disk) for synthesized audio,
// keyed by sha256(voice + ":" + text). The in-memory tier holds at most
// maxEntries items and evicts the oldest first. Safe for concurrent use.
type AudioCache struct {
	mu         sync.Mutex
	entries    map[string][]byte // hash -> WAV bytes
	order      []string          // insertion order for eviction
	maxEntries int
	cacheDir   string // empty = no disk layer
	log        *logger.Logger
	hits       int64
	misses     int64
}

// NewAudioCache creates an audio cache. An empty cacheDir disables the disk
// layer; maxEntries <= 0 leaves the memory tier unbounded.
func NewAudioCache(cacheDir string, maxEntries int, log *logger.Logger) *AudioCache {
	c := &AudioCache{
		entries:    make(map[string][]byte),
		maxEntries: maxEntries,
		cacheDir:   cacheDir,
		log:        log,
	}
	if cacheDir != "" {
		if err := os.MkdirAll(cacheDir, 0o755); err != nil {
			log.Error("cache: failed to create cache dir %s: %v", cacheDir, err)
			c.cacheDir = ""
		}
	}
	return c
}

// Get returns cached audio for the voice and text.
func (c *AudioCache) Get(voice, text string) ([]byte, bool) {
	key := hashKey(voice, text)

	c.mu.Lock()
	data, ok := c.entries[key]
	if ok {
		c.hits++
	}
	c.mu.Unlock()
	if ok {
		c.log.Debug("cache hit (mem): %s (%d bytes)", truncate(text, 40), len(data))
		return data, true
	}

	if c.cacheDir != "" {
		if diskData, err := os.ReadFile(c.diskPath(key)); err == nil {
			c.mu.Lock()
			c.hits++
			c.storeLocked(key, diskData)
			c.mu.Unlock()
			c.log.Debug("cache hit (disk): %s (%d bytes)", truncate(text, 40), len(diskData))
			return diskData, true
		}
	}

	c.mu.Lock()
	c.misses++
	c.mu.Unlock()
	return nil, false
}

// Put stores audio in memory and, when enabled, on disk.
func (c *AudioCache) Put(voice, text string, audio []byte) {
	key := hashKey(voice, text)

	c.mu.Lock()
	c.storeLocked(key, audio)
	size := len(c.entries)
	c.mu.Unlock()

	c.log.Debug("cache store (mem): %s (%d bytes, %d entries)", truncate(text, 40), len(audio), size)

	if c.cacheDir != "" {
		path := c.diskPath(key)
		if err := os.WriteFile(path, audio, 0o644); err != nil {
			c.log.Error("cache: disk write failed for %s: %v", path, err)
		}
	}
}

// storeLocked inserts an entry and evicts the oldest when over capacity.
// Must be called with c.mu held.
func (c *AudioCache) storeLocked(key string, audio []byte) {
	if _, exists := c.entries[key]; !exists {
		c.order = append(c.order, key)
	}
	c.entries[key] = audio
	for c.maxEntries > 0 && len(c.order) > c.maxEntries {
		oldest := c.order[0]
		c.order = c.order[1:]
		delete(c.entries, oldest)
	}
}

// Len returns the number of in-memory entries.
func (c *AudioCache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}

// Stats returns hit and miss counts.
func (c *AudioCache) Stats() (hits, misses int64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.hits, c.misses
}

func hashKey(voice, text string) string {
	h := sha256.Sum256([]byte(voice + ":" + text))
	return hex.EncodeToString(h[:])
}

func (c *AudioCache) diskPath(key string) string {
	return filepath.Join(c.cacheDir, key+".wav")
}
