package api

import (
	"github.com/banshee-data/tfcache/internal/tf"
	"github.com/banshee-data/tfcache/internal/tfbuffer"
)

type errorResponse struct {
	Error string `json:"error"`
	// Boundary is the oldest or newest retained sample when a lookup falls
	// outside the buffered window.
	Boundary *Sample `json:"boundary,omitempty"`
}

// Vector is a translation in metres.
type Vector struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
	Z float64 `json:"z"`
}

// Rotation is a unit quaternion in x, y, z, w order.
type Rotation struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
	Z float64 `json:"z"`
	W float64 `json:"w"`
}

// Sample is the JSON form of a tf.Stamped.
type Sample struct {
	Parent      string   `json:"parent"`
	Child       string   `json:"child"`
	Stamp       float64  `json:"stamp"`
	Secs        uint32   `json:"secs"`
	Nsecs       uint32   `json:"nsecs"`
	Translation Vector   `json:"translation"`
	Rotation    Rotation `json:"rotation"`
}

func newSample(s tf.Stamped) *Sample {
	t, q := s.Transform.Translation, s.Transform.Rotation
	return &Sample{
		Parent:      s.ParentFrameID,
		Child:       s.ChildFrameID,
		Stamp:       s.Stamp.Seconds(),
		Secs:        s.Stamp.Sec,
		Nsecs:       s.Stamp.Nsec,
		Translation: Vector{X: t.X, Y: t.Y, Z: t.Z},
		Rotation:    Rotation{X: q.Imag, Y: q.Jmag, Z: q.Kmag, W: q.Real},
	}
}

func newSamples(samples []tf.Stamped) []*Sample {
	out := make([]*Sample, 0, len(samples))
	for _, s := range samples {
		out = append(out, newSample(s))
	}
	return out
}

// Pair describes one buffered frame pair.
type Pair struct {
	Parent  string  `json:"parent"`
	Child   string  `json:"child"`
	Static  bool    `json:"static"`
	Samples int     `json:"samples"`
	Oldest  float64 `json:"oldest"`
	Newest  float64 `json:"newest"`
}

func newPair(info tfbuffer.PairInfo) Pair {
	return Pair{
		Parent:  info.Pair.Parent,
		Child:   info.Pair.Child,
		Static:  info.Static,
		Samples: info.Samples,
		Oldest:  info.Oldest.Seconds(),
		Newest:  info.Newest.Seconds(),
	}
}

// BufferStats is the JSON form of tfbuffer.Stats.
type BufferStats struct {
	Pairs         int     `json:"pairs"`
	Samples       int     `json:"samples"`
	Inserts       uint64  `json:"inserts"`
	Lookups       uint64  `json:"lookups"`
	FailedLookups uint64  `json:"failed_lookups"`
	CacheDuration float64 `json:"cache_duration_seconds"`
}
