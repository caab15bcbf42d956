package fit

// SignalCacheEntry records one event that was signal in at least one sub-sample.
type SignalCacheEntry struct {
	Input int // index into the scheduler's input list
	Event int // event index within that input
	// Signal holds one bit per sub-sample in declaration order.
	Signal Bitset
	// Projections holds one snapshot per raised bit, in sub-sample order.
	Projections []Projection
	// SplineCoeffs is a private copy of the event's coefficients for spline-backed inputs,
	// stored with the weights needed to rebuild the event without re-reading it.
	SplineCoeffs []float64
	InputWeight  float64
	CustomWeight float64
}

// SignalEventCache is the ordered index of signal events built by a Full Pass and replayed
// by a Fast Pass. Entries are kept in ascending (input, event) order; that ordering is the
// contract between the two passes.
type SignalEventCache struct {
	nSub       int
	entries    []SignalCacheEntry
	populated  bool
	classified int
}

// NewSignalEventCache creates an empty cache for n sub-samples.
func NewSignalEventCache(nSub int) *SignalEventCache {
	return &SignalEventCache{nSub: nSub}
}

// Reset drops every entry and marks the cache unpopulated.
func (c *SignalEventCache) Reset() {
	c.entries = c.entries[:0]
	c.populated = false
	c.classified = 0
}

// Append adds an entry. Callers must append in ascending (input, event) order.
func (c *SignalEventCache) Append(e SignalCacheEntry) {
	if n := len(c.entries); n > 0 {
		last := c.entries[n-1]
		if e.Input < last.Input || (e.Input == last.Input && e.Event <= last.Event) {
			panic("SignalEventCache.Append: entries must be appended in ascending (input, event) order")
		}
	}
	c.entries = append(c.entries, e)
}

// MarkPopulated records that a Full Pass classified this many events.
func (c *SignalEventCache) MarkPopulated(classified int) {
	c.populated = true
	c.classified = classified
}

// Classified returns the number of events the last Full Pass classified.
func (c *SignalEventCache) Classified() int { return c.classified }

// Populated reports whether a Full Pass has filled the cache.
func (c *SignalEventCache) Populated() bool { return c.populated }

// Len returns the number of cached signal events.
func (c *SignalEventCache) Len() int { return len(c.entries) }

// Empty reports whether no events were ever classified into the cache. A populated cache
// with zero signal entries is not empty: replaying it legitimately fills nothing.
func (c *SignalEventCache) Empty() bool { return !c.populated || c.classified == 0 }

// SubSampleCount is the width of each entry's signal bitset.
func (c *SignalEventCache) SubSampleCount() int { return c.nSub }

// Entry returns the i-th entry.
func (c *SignalEventCache) Entry(i int) SignalCacheEntry { return c.entries[i] }

// Entries returns the backing slice; callers must not modify it.
func (c *SignalEventCache) Entries() []SignalCacheEntry { return c.entries }
