package tf

import (
	"slices"
	"sort"
	"time"
)

// Chain is the time-ordered transform history of one (parent, child) frame
// pair.
//
// Samples are kept sorted by stamp; samples sharing a stamp keep their
// arrival order. For non-static chains every insertion evicts samples older
// than CacheDuration relative to the newest stamp. A static chain holds a
// time-invariant relation: lookups always return the newest sample and
// nothing is evicted by age.
//
// Chain is not safe for concurrent use.
type Chain struct {
	cacheDuration time.Duration
	static        bool
	samples       []Stamped
}

// NewChain creates an empty chain. A negative cacheDuration is treated as zero.
func NewChain(static bool, cacheDuration time.Duration) *Chain {
	if cacheDuration < 0 {
		cacheDuration = 0
	}
	return &Chain{
		cacheDuration: cacheDuration,
		static:        static,
	}
}

// Static reports whether the chain holds a time-invariant relation.
func (c *Chain) Static() bool { return c.static }

// CacheDuration returns the retention window.
func (c *Chain) CacheDuration() time.Duration { return c.cacheDuration }

// Len returns the number of retained samples.
func (c *Chain) Len() int { return len(c.samples) }

// Oldest returns the earliest retained sample.
func (c *Chain) Oldest() (Stamped, bool) {
	if len(c.samples) == 0 {
		return Stamped{}, false
	}
	return c.samples[0], true
}

// Newest returns the latest retained sample.
func (c *Chain) Newest() (Stamped, bool) {
	if len(c.samples) == 0 {
		return Stamped{}, false
	}
	return c.samples[len(c.samples)-1], true
}

// Samples returns a copy of the retained samples, oldest first.
func (c *Chain) Samples() []Stamped {
	return slices.Clone(c.samples)
}

// AddToBuffer inserts s in stamp order and evicts samples that fell out of
// the retention window. Samples with an equal stamp are placed after the
// existing ones.
func (c *Chain) AddToBuffer(s Stamped) {
	i := sort.Search(len(c.samples), func(i int) bool {
		return c.samples[i].Stamp.After(s.Stamp)
	})
	c.samples = slices.Insert(c.samples, i, s)

	if c.static {
		// static lookups only ever read the newest sample
		if n := len(c.samples) - 1; n > 0 {
			c.samples = slices.Delete(c.samples, 0, n)
		}
		return
	}

	// Only evict once the newest stamp is past epoch+cacheDuration so the
	// cutoff never underflows. The cutoff itself is retained.
	newest := c.samples[len(c.samples)-1].Stamp
	if newest.Nanos() > int64(c.cacheDuration) {
		cutoff := newest.Add(-c.cacheDuration)
		if n := c.lowerBound(cutoff); n > 0 {
			c.samples = slices.Delete(c.samples, 0, n)
		}
	}
}

// GetClosestTransform resolves q against the retained samples.
//
// Latest queries and static chains return the newest sample. Otherwise an
// exact stamp match is returned as-is, a stamp between two samples is
// interpolated, and a stamp outside the retained window fails with a
// *LookupInPastError or *LookupInFutureError.
//
// Calling GetClosestTransform on an empty chain panics; check
// HasValidTransform or Len first.
func (c *Chain) GetClosestTransform(q Query) (Stamped, error) {
	if len(c.samples) == 0 {
		panic("tf: GetClosestTransform on empty chain")
	}

	last := len(c.samples) - 1
	if q.IsLatest() || c.static {
		return c.samples[last], nil
	}

	t := q.Stamp()
	i := c.lowerBound(t)
	if i <= last && c.samples[i].Stamp == t {
		return c.samples[i], nil
	}
	if i == 0 {
		return Stamped{}, &LookupInPastError{Requested: t, Oldest: c.samples[0]}
	}
	if i > last {
		return Stamped{}, &LookupInFutureError{Newest: c.samples[last], Requested: t}
	}

	// i-1 < t < i, so the bracket spans a non-zero duration.
	older, newer := c.samples[i-1], c.samples[i]
	total := newer.Stamp.Sub(older.Stamp).Seconds()
	desired := t.Sub(older.Stamp).Seconds()
	weight := 1 - desired/total

	return Stamped{
		Stamp:         t,
		ParentFrameID: newer.ParentFrameID,
		ChildFrameID:  newer.ChildFrameID,
		Transform:     Interpolate(older.Transform, newer.Transform, weight),
	}, nil
}

// HasValidTransform reports whether GetClosestTransform(q) would succeed.
func (c *Chain) HasValidTransform(q Query) bool {
	if len(c.samples) == 0 {
		return false
	}
	if c.static || q.IsLatest() {
		return true
	}

	t := q.Stamp()
	first := c.samples[0].Stamp
	last := c.samples[len(c.samples)-1].Stamp
	return t.Compare(first) >= 0 && t.Compare(last) <= 0
}

// lowerBound returns the index of the first sample not earlier than t.
func (c *Chain) lowerBound(t Stamp) int {
	return sort.Search(len(c.samples), func(i int) bool {
		return !c.samples[i].Stamp.Before(t)
	})
}
