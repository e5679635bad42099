package tf

import (
	"errors"
	"math/rand/v2"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/spatial/r3"
)

const tol = 1e-9

func sec(s float64) Stamp { return StampFromSeconds(s) }

func sampleAt(s float64, x float64) Stamped {
	return Stamped{
		Stamp:         sec(s),
		ParentFrameID: "map",
		ChildFrameID:  "base_link",
		Transform:     NewTransform(r3.Vec{X: x}, Identity().Rotation),
	}
}

func assertSorted(t *testing.T, c *Chain) {
	t.Helper()
	samples := c.Samples()
	for i := 1; i < len(samples); i++ {
		if samples[i].Stamp.Before(samples[i-1].Stamp) {
			t.Fatalf("samples out of order at %d: %s before %s", i, samples[i].Stamp, samples[i-1].Stamp)
		}
	}
}

func TestChain_OrderInvariant(t *testing.T) {
	t.Parallel()

	rng := rand.New(rand.NewPCG(7, 11))
	for trial := 0; trial < 20; trial++ {
		c := NewChain(false, time.Hour)
		for _, i := range rng.Perm(50) {
			c.AddToBuffer(sampleAt(float64(i)*0.1+1, float64(i)))
			assertSorted(t, c)
		}
		require.Equal(t, 50, c.Len())
	}
}

func TestChain_RetentionInvariant(t *testing.T) {
	t.Parallel()

	const d = 2 * time.Second
	c := NewChain(false, d)
	for i := 0; i <= 10; i++ {
		c.AddToBuffer(sampleAt(float64(i), float64(i)))

		newest, ok := c.Newest()
		require.True(t, ok)
		for _, s := range c.Samples() {
			assert.LessOrEqual(t, newest.Stamp.Sub(s.Stamp), d, "sample %s outside window", s.Stamp)
		}
	}

	// Cutoff is inclusive: 10-2=8 stays.
	samples := c.Samples()
	require.Len(t, samples, 3)
	assert.Equal(t, sec(8), samples[0].Stamp)
	assert.Equal(t, sec(10), samples[2].Stamp)
}

func TestChain_NoEvictionBeforeWindowElapsed(t *testing.T) {
	t.Parallel()

	c := NewChain(false, 10*time.Second)
	c.AddToBuffer(sampleAt(0, 0))
	c.AddToBuffer(sampleAt(4, 0))
	c.AddToBuffer(sampleAt(10, 0))

	// newest == epoch+cacheDuration, nothing is evicted yet
	assert.Equal(t, 3, c.Len())

	c.AddToBuffer(sampleAt(11, 0))
	assert.Equal(t, 3, c.Len())
	oldest, _ := c.Oldest()
	assert.Equal(t, sec(4), oldest.Stamp)
}

func TestChain_LateSampleOutsideWindowIsDropped(t *testing.T) {
	t.Parallel()

	c := NewChain(false, time.Second)
	c.AddToBuffer(sampleAt(10, 0))
	c.AddToBuffer(sampleAt(5, 0))

	require.Equal(t, 1, c.Len())
	oldest, _ := c.Oldest()
	assert.Equal(t, sec(10), oldest.Stamp)
}

func TestChain_ExactMatch(t *testing.T) {
	t.Parallel()

	c := NewChain(false, 10*time.Second)
	c.AddToBuffer(sampleAt(1, 1))
	s := Stamped{
		Stamp:         sec(2.25),
		ParentFrameID: "map",
		ChildFrameID:  "base_link",
		Transform:     NewTransform(r3.Vec{X: 3, Y: -1, Z: 0.5}, rotZ(0.3)),
	}
	c.AddToBuffer(s)
	c.AddToBuffer(sampleAt(3, 3))

	got, err := c.GetClosestTransform(At(s.Stamp))
	require.NoError(t, err)
	assert.Equal(t, s, got)
}

func TestChain_InterpolationMidpoint(t *testing.T) {
	t.Parallel()

	c := NewChain(false, 20*time.Second)
	c.AddToBuffer(Stamped{Stamp: sec(0), ParentFrameID: "map", ChildFrameID: "odom", Transform: Identity()})
	c.AddToBuffer(Stamped{Stamp: sec(10), ParentFrameID: "map", ChildFrameID: "odom",
		Transform: NewTransform(r3.Vec{X: 10}, Identity().Rotation)})

	got, err := c.GetClosestTransform(At(sec(5)))
	require.NoError(t, err)

	assert.InDelta(t, 5.0, got.Transform.Translation.X, tol)
	assert.InDelta(t, 0.0, got.Transform.Translation.Y, tol)
	assert.InDelta(t, 0.0, got.Transform.Translation.Z, tol)
	assert.Equal(t, sec(5), got.Stamp)
	assert.Equal(t, "map", got.ParentFrameID)
	assert.Equal(t, "odom", got.ChildFrameID)
}

func TestChain_InterpolationWeightsOlderSample(t *testing.T) {
	t.Parallel()

	c := NewChain(false, time.Minute)
	c.AddToBuffer(sampleAt(10, 0))
	c.AddToBuffer(sampleAt(14, 8))

	got, err := c.GetClosestTransform(At(sec(11)))
	require.NoError(t, err)
	// weight of the older sample is 0.75
	assert.InDelta(t, 2.0, got.Transform.Translation.X, tol)
}

func TestChain_InterpolationTakesFramesFromNewerSample(t *testing.T) {
	t.Parallel()

	c := NewChain(false, time.Minute)
	c.AddToBuffer(Stamped{Stamp: sec(1), ParentFrameID: "old_parent", ChildFrameID: "old_child", Transform: Identity()})
	c.AddToBuffer(Stamped{Stamp: sec(2), ParentFrameID: "map", ChildFrameID: "base_link", Transform: Identity()})

	got, err := c.GetClosestTransform(At(sec(1.5)))
	require.NoError(t, err)
	assert.Equal(t, "map", got.ParentFrameID)
	assert.Equal(t, "base_link", got.ChildFrameID)
}

func TestChain_PastAndFuture(t *testing.T) {
	t.Parallel()

	c := NewChain(false, 10*time.Second)
	c.AddToBuffer(sampleAt(5, 5))
	c.AddToBuffer(sampleAt(10, 10))

	_, err := c.GetClosestTransform(At(sec(1)))
	require.ErrorIs(t, err, ErrLookupInPast)
	var past *LookupInPastError
	require.True(t, errors.As(err, &past))
	assert.Equal(t, sec(1), past.Requested)
	assert.Equal(t, sec(5), past.Oldest.Stamp)

	_, err = c.GetClosestTransform(At(sec(20)))
	require.ErrorIs(t, err, ErrLookupInFuture)
	var future *LookupInFutureError
	require.True(t, errors.As(err, &future))
	assert.Equal(t, sec(20), future.Requested)
	assert.Equal(t, sec(10), future.Newest.Stamp)

	assert.NotErrorIs(t, err, ErrLookupInPast)
}

func TestChain_LatestQuery(t *testing.T) {
	t.Parallel()

	for _, static := range []bool{false, true} {
		c := NewChain(static, 10*time.Second)
		c.AddToBuffer(sampleAt(100, 1))
		c.AddToBuffer(sampleAt(101, 2))
		c.AddToBuffer(sampleAt(102, 3))

		got, err := c.GetClosestTransform(Latest())
		require.NoError(t, err)
		assert.Equal(t, sec(102), got.Stamp, "static=%v", static)

		got, err = c.GetClosestTransform(QueryFromStamp(Stamp{}))
		require.NoError(t, err)
		assert.Equal(t, sec(102), got.Stamp, "static=%v", static)

		var zero Query
		assert.True(t, zero.IsLatest())
	}
}

func TestChain_Static(t *testing.T) {
	t.Parallel()

	c := NewChain(true, time.Second)
	c.AddToBuffer(sampleAt(1, 1))
	c.AddToBuffer(sampleAt(2, 2))
	c.AddToBuffer(sampleAt(50, 3))
	// a late republish does not displace the newest sample
	c.AddToBuffer(sampleAt(10, 9))

	// no eviction by age, and only the newest sample is kept
	assert.Equal(t, 1, c.Len())
	assert.True(t, c.Static())
	oldest, _ := c.Oldest()
	assert.Equal(t, sec(50), oldest.Stamp)

	for _, q := range []Query{At(sec(0.5)), At(sec(1.5)), At(sec(2)), At(sec(1000)), Latest()} {
		got, err := c.GetClosestTransform(q)
		require.NoError(t, err, "query %s", q)
		assert.Equal(t, sec(50), got.Stamp, "query %s", q)
		assert.InDelta(t, 3.0, got.Transform.Translation.X, tol)
		assert.True(t, c.HasValidTransform(q))
	}
}

func TestChain_DuplicateStamps(t *testing.T) {
	t.Parallel()

	c := NewChain(false, time.Minute)
	c.AddToBuffer(sampleAt(10, 0))
	c.AddToBuffer(sampleAt(5, 1))
	c.AddToBuffer(sampleAt(5, 2))
	c.AddToBuffer(sampleAt(5, 3))

	samples := c.Samples()
	require.Len(t, samples, 4)
	// arrival order is kept among equal stamps
	assert.InDelta(t, 1.0, samples[0].Transform.Translation.X, tol)
	assert.InDelta(t, 2.0, samples[1].Transform.Translation.X, tol)
	assert.InDelta(t, 3.0, samples[2].Transform.Translation.X, tol)

	exact, err := c.GetClosestTransform(At(sec(5)))
	require.NoError(t, err)
	assert.InDelta(t, 1.0, exact.Transform.Translation.X, tol)

	// The bracket for 7.5 is (last duplicate at 5, sample at 10), never two
	// equal stamps.
	mid, err := c.GetClosestTransform(At(sec(7.5)))
	require.NoError(t, err)
	assert.InDelta(t, 1.5, mid.Transform.Translation.X, tol)
	assert.False(t, isNaNVec(mid.Transform.Translation))
}

func TestChain_HasValidTransformConsistency(t *testing.T) {
	t.Parallel()

	c := NewChain(false, 30*time.Second)
	assert.False(t, c.HasValidTransform(Latest()))
	assert.False(t, c.HasValidTransform(At(sec(1))))

	for _, s := range []float64{3, 7, 4, 9, 9} {
		c.AddToBuffer(sampleAt(s, s))
	}

	queries := []Query{Latest(), At(Stamp{})}
	for s := 0.0; s <= 12; s += 0.25 {
		queries = append(queries, At(sec(s)))
	}
	for _, q := range queries {
		_, err := c.GetClosestTransform(q)
		assert.Equal(t, err == nil, c.HasValidTransform(q), "query %s err %v", q, err)
	}

	assert.True(t, c.HasValidTransform(At(sec(3))))
	assert.True(t, c.HasValidTransform(At(sec(9))))
	assert.False(t, c.HasValidTransform(At(sec(9.25))))
}

func TestChain_EmptyLookupPanics(t *testing.T) {
	t.Parallel()

	c := NewChain(false, time.Second)
	assert.Panics(t, func() { _, _ = c.GetClosestTransform(Latest()) })
	_, ok := c.Newest()
	assert.False(t, ok)
	_, ok = c.Oldest()
	assert.False(t, ok)
}

func TestChain_ZeroCacheDurationKeepsNewestStamp(t *testing.T) {
	t.Parallel()

	c := NewChain(false, -time.Second)
	assert.Equal(t, time.Duration(0), c.CacheDuration())

	c.AddToBuffer(sampleAt(1, 1))
	c.AddToBuffer(sampleAt(2, 2))
	c.AddToBuffer(sampleAt(2, 3))

	assert.Equal(t, 2, c.Len())
	got, err := c.GetClosestTransform(At(sec(2)))
	require.NoError(t, err)
	assert.InDelta(t, 2.0, got.Transform.Translation.X, tol)
}

func TestChain_SamplesIsACopy(t *testing.T) {
	t.Parallel()

	c := NewChain(false, time.Minute)
	c.AddToBuffer(sampleAt(1, 1))
	samples := c.Samples()
	samples[0].ChildFrameID = "mutated"

	got, err := c.GetClosestTransform(Latest())
	require.NoError(t, err)
	assert.Equal(t, "base_link", got.ChildFrameID)
}

func isNaNVec(v r3.Vec) bool {
	return v.X != v.X || v.Y != v.Y || v.Z != v.Z
}
