package cache

// Metrics is a snapshot of the cache's counters. The csv tags are used when the
// CLI exports metrics.
type Metrics struct {
	Lines   uint   `csv:"lines"`
	Items   uint   `csv:"items"`
	Inserts uint64 `csv:"inserts"`
	Gets    uint64 `csv:"gets"`
	Hits    uint64 `csv:"hits"`
	Misses  uint64 `csv:"misses"`
}

// HitRatio gives hits / (hits + misses) as a percentage. The second return
// value is false if there have been neither hits nor misses, in which case the
// ratio is undefined.
func (m Metrics) HitRatio() (float64, bool) {
	total := m.Hits + m.Misses
	if total == 0 {
		return 0, false
	}
	return 100.0 * float64(m.Hits) / float64(total), true
}

// Metrics returns a snapshot of the counters.
func (c *SectorCache) Metrics() Metrics {
	return Metrics{
		Lines:   c.Capacity(),
		Items:   c.items,
		Inserts: c.inserts,
		Gets:    c.gets,
		Hits:    c.hits,
		Misses:  c.misses,
	}
}

// LogMetrics writes the counters to the cache's logger.
func (c *SectorCache) LogMetrics() {
	m := c.Metrics()
	ratio, ok := m.HitRatio()
	if !ok {
		c.logger.Info(
			"cache metrics",
			"inserts", m.Inserts,
			"gets", m.Gets,
			"hits", m.Hits,
			"misses", m.Misses,
			"hit_ratio", "undefined")
		return
	}
	c.logger.Info(
		"cache metrics",
		"inserts", m.Inserts,
		"gets", m.Gets,
		"hits", m.Hits,
		"misses", m.Misses,
		"hit_ratio_pct", ratio)
}
