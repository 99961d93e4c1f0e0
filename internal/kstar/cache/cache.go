// Package cache stores per-attribute kernel parameters so repeated
// evaluations of the same test value skip the parameter search.
package cache

import (
	"encoding/binary"
	"errors"
	"math"

	"github.com/coocood/freecache"
)

// DefaultSizeBytes is the memory budget of one attribute cache.
// freecache rounds smaller budgets up to 512KiB.
const DefaultSizeBytes = 512 * 1024

const (
	noExpiry = 0
	keyBytes = 16
	valBytes = 24
)

// Key identifies a parameter set: the query's attribute value and a
// fingerprint of the window column it was derived against.
type Key struct {
	TestValue float64
	Reference uint64
}

// Entry is a cached parameter set. Param is the scale factor of a numeric
// attribute or the stop probability of a nominal attribute. Offset is the
// distance subtracted before scaling (numeric only).
type Entry struct {
	Param       float64
	MissingProb float64
	Offset      float64
}

// Cache is a bounded parameter store for one attribute.
type Cache struct {
	fc *freecache.Cache
}

// New creates a cache with the given byte budget.
func New(sizeBytes int) *Cache {
	if sizeBytes <= 0 {
		sizeBytes = DefaultSizeBytes
	}
	return &Cache{fc: freecache.NewCache(sizeBytes)}
}

// Get returns the entry stored for k.
func (c *Cache) Get(k Key) (Entry, bool) {
	var kb [keyBytes]byte
	encodeKey(kb[:], k)
	v, err := c.fc.Get(kb[:])
	if err != nil || len(v) != valBytes {
		return Entry{}, false
	}
	return Entry{
		Param:       math.Float64frombits(binary.LittleEndian.Uint64(v[0:8])),
		MissingProb: math.Float64frombits(binary.LittleEndian.Uint64(v[8:16])),
		Offset:      math.Float64frombits(binary.LittleEndian.Uint64(v[16:24])),
	}, true
}

// Store records e under k. Older entries may be evicted when the budget is exhausted.
func (c *Cache) Store(k Key, e Entry) error {
	var kb [keyBytes]byte
	var vb [valBytes]byte
	encodeKey(kb[:], k)
	binary.LittleEndian.PutUint64(vb[0:8], math.Float64bits(e.Param))
	binary.LittleEndian.PutUint64(vb[8:16], math.Float64bits(e.MissingProb))
	binary.LittleEndian.PutUint64(vb[16:24], math.Float64bits(e.Offset))
	if err := c.fc.Set(kb[:], vb[:], noExpiry); err != nil {
		return errors.Join(errors.New("cache store failed"), err)
	}
	return nil
}

// Clear drops every entry.
func (c *Cache) Clear() {
	c.fc.Clear()
}

// Len returns the number of stored entries.
func (c *Cache) Len() int64 {
	return c.fc.EntryCount()
}

// HitRate returns the ratio of hits to lookups since creation or the last ResetStats.
func (c *Cache) HitRate() float64 {
	return c.fc.HitRate()
}

// Lookups returns hit and miss counters.
func (c *Cache) Lookups() (hits, misses int64) {
	return c.fc.HitCount(), c.fc.MissCount()
}

// ResetStats zeroes the hit and miss counters.
func (c *Cache) ResetStats() {
	c.fc.ResetStatistics()
}

func encodeKey(dst []byte, k Key) {
	binary.LittleEndian.PutUint64(dst[0:8], math.Float64bits(canonical(k.TestValue)))
	binary.LittleEndian.PutUint64(dst[8:16], k.Reference)
}

// canonical folds -0 into 0 so both spellings of zero share an entry.
func canonical(v float64) float64 {
	if v == 0 {
		return 0
	}
	return v
}
