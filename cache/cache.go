// Package cache implements a fixed-size, fully associative sector cache with
// least-recently-used eviction.
//
// Recency is tracked with a logical clock shared by every line: each insert
// and each hit stamps the line with the next clock value. Lines that have never
// held data carry the stamp [neverUsed] and are always filled before any line
// holding data is evicted.
//
// The cache never aliases caller memory. Put copies the payload into a buffer
// owned by the line and Get copies it back out.
package cache

import (
	"fmt"
	"log/slog"

	"github.com/fs3io/fs3/common"
	"github.com/fs3io/fs3/errors"
)

// DefaultLines is the number of lines used when no size is configured.
const DefaultLines = 8

const neverUsed = int64(-1)

type line struct {
	addr       common.DiskAddress
	data       []byte
	lastAccess int64
}

// SectorCache is the LRU cache sitting between the driver and the transport.
// It is not safe for concurrent use.
type SectorCache struct {
	lines          []line
	bytesPerSector uint
	nextAccess     int64
	initialized    bool
	logger         *slog.Logger

	items   uint
	inserts uint64
	gets    uint64
	hits    uint64
	misses  uint64
}

// New creates an uninitialized cache for sectors of `bytesPerSector` bytes. A
// nil logger means [slog.Default].
func New(bytesPerSector uint, logger *slog.Logger) *SectorCache {
	if logger == nil {
		logger = slog.Default()
	}
	return &SectorCache{
		bytesPerSector: bytesPerSector,
		logger:         logger.With("component", "cache"),
	}
}

// Init allocates `capacity` empty lines. It fails if the cache is already
// initialized or `capacity` is zero.
func (c *SectorCache) Init(capacity uint) error {
	if c.initialized {
		return errors.NewWithMessage(errors.EALREADY, "cache already initialized")
	}
	if capacity == 0 {
		return errors.NewWithMessage(errors.EINVAL, "a cache with 0 lines is useless")
	}

	c.lines = make([]line, capacity)
	for i := range c.lines {
		c.lines[i].lastAccess = neverUsed
	}
	c.initialized = true

	c.logger.Info("cache initialized", "lines", capacity, "bytes_per_sector", c.bytesPerSector)
	return nil
}

// Close releases every line's buffer and resets all counters. The cache can be
// initialized again afterwards.
func (c *SectorCache) Close() error {
	if !c.initialized {
		return errors.NewWithMessage(errors.ENODEV, "cache was never initialized")
	}

	c.lines = nil
	c.items = 0
	c.nextAccess = 0
	c.inserts = 0
	c.gets = 0
	c.hits = 0
	c.misses = 0
	c.initialized = false

	c.logger.Info("cache closed")
	return nil
}

// Initialized reports whether Init has been called without a matching Close.
func (c *SectorCache) Initialized() bool {
	return c.initialized
}

// Capacity gives the number of lines, or 0 if the cache isn't initialized.
func (c *SectorCache) Capacity() uint {
	return uint(len(c.lines))
}

// Items gives the number of lines holding data.
func (c *SectorCache) Items() uint {
	return c.items
}

// BytesPerSector gives the size of one cached payload.
func (c *SectorCache) BytesPerSector() uint {
	return c.bytesPerSector
}

func (c *SectorCache) find(addr common.DiskAddress) int {
	for i := range c.lines {
		if c.lines[i].lastAccess != neverUsed && c.lines[i].addr == addr {
			return i
		}
	}
	return -1
}

func (c *SectorCache) touch(index int) {
	c.lines[index].lastAccess = c.nextAccess
	c.nextAccess++
}

// Get returns a copy of the cached payload for `addr`. A hit makes the line the
// most recently used one.
func (c *SectorCache) Get(addr common.DiskAddress) ([]byte, bool) {
	c.gets++

	if !c.initialized {
		c.logger.Debug("get on uninitialized cache", "addr", addr)
		return nil, false
	}

	index := c.find(addr)
	if index < 0 {
		c.misses++
		c.logger.Debug("cache miss", "addr", addr, "misses", c.misses)
		return nil, false
	}

	c.touch(index)
	c.hits++
	c.logger.Debug("cache hit", "addr", addr, "hits", c.hits)

	payload := make([]byte, len(c.lines[index].data))
	copy(payload, c.lines[index].data)
	return payload, true
}

// Contains reports whether `addr` is cached without touching recency or
// counters.
func (c *SectorCache) Contains(addr common.DiskAddress) bool {
	return c.initialized && c.find(addr) >= 0
}

// Put stores a copy of `payload` for `addr`. An address already in the cache is
// overwritten in place. Otherwise the first never-used line is filled, and only
// once every line holds data is the least recently used one evicted.
func (c *SectorCache) Put(addr common.DiskAddress, payload []byte) error {
	if !c.initialized {
		return errors.NewWithMessage(
			errors.ENODEV, fmt.Sprintf("can't put %s: cache not initialized", addr))
	}
	if uint(len(payload)) != c.bytesPerSector {
		return errors.NewWithMessage(
			errors.EINVAL,
			fmt.Sprintf(
				"payload for %s is %d bytes, expected %d",
				addr,
				len(payload),
				c.bytesPerSector),
		)
	}

	if index := c.find(addr); index >= 0 {
		copy(c.lines[index].data, payload)
		c.touch(index)
		c.inserts++
		c.logger.Debug("overwrote cached sector", "addr", addr)
		return nil
	}

	for i := range c.lines {
		if c.lines[i].lastAccess == neverUsed {
			c.lines[i].addr = addr
			c.lines[i].data = make([]byte, c.bytesPerSector)
			copy(c.lines[i].data, payload)
			c.touch(i)
			c.items++
			c.inserts++
			c.logger.Debug(
				"filled empty cache line",
				"addr", addr,
				"items", c.items,
				"bytes_used", c.items*c.bytesPerSector)
			return nil
		}
	}

	victim := c.leastRecentlyUsed()
	evicted := c.lines[victim].addr
	c.lines[victim].addr = addr
	copy(c.lines[victim].data, payload)
	c.touch(victim)
	c.inserts++
	c.logger.Debug("evicted least recently used line", "addr", addr, "evicted", evicted)
	return nil
}

// leastRecentlyUsed returns the index of the line with the smallest stamp. On a
// tie the first such line in scan order wins. Only called when every line
// holds data.
func (c *SectorCache) leastRecentlyUsed() int {
	victim := 0
	for i := 1; i < len(c.lines); i++ {
		if c.lines[i].lastAccess < c.lines[victim].lastAccess {
			victim = i
		}
	}
	return victim
}
