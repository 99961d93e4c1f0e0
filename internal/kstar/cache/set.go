package cache

// Set holds one cache per attribute index.
type Set struct {
	caches []*Cache
}

// NewSet allocates n fresh caches of sizeBytes each.
func NewSet(n, sizeBytes int) *Set {
	caches := make([]*Cache, n)
	for i := range caches {
		caches[i] = New(sizeBytes)
	}
	return &Set{caches: caches}
}

// For returns the cache of attribute i.
func (s *Set) For(i int) *Cache {
	return s.caches[i]
}

// Len returns the number of attribute caches.
func (s *Set) Len() int {
	return len(s.caches)
}

// Clear empties every attribute cache.
func (s *Set) Clear() {
	for _, c := range s.caches {
		c.Clear()
	}
}

// Stats aggregates entry and lookup counts over all attributes.
type Stats struct {
	Entries int64   `json:"entries"`
	Hits    int64   `json:"hits"`
	Misses  int64   `json:"misses"`
	HitRate float64 `json:"hit_rate"`
}

// Stats returns aggregated statistics.
func (s *Set) Stats() Stats {
	var st Stats
	for _, c := range s.caches {
		st.Entries += c.Len()
		h, m := c.Lookups()
		st.Hits += h
		st.Misses += m
	}
	if total := st.Hits + st.Misses; total > 0 {
		st.HitRate = float64(st.Hits) / float64(total)
	}
	return st
}
