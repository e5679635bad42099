// Package tfbuffer keeps one transform chain per (parent, child) frame pair
// and serialises access to each chain with its own lock, so producers and
// consumers of different pairs never contend.
package tfbuffer

import (
	"errors"
	"fmt"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/banshee-data/tfcache/internal/monitoring"
	"github.com/banshee-data/tfcache/internal/tf"
)

// DefaultCacheDuration is the retention window used when Options leaves it unset.
const DefaultCacheDuration = 10 * time.Second

var (
	// ErrUnknownFramePair is returned when neither direction of a pair has data.
	ErrUnknownFramePair = errors.New("unknown frame pair")
	// ErrInvalidSample is returned for samples with missing or identical frame ids.
	ErrInvalidSample = errors.New("invalid transform sample")
)

// Pair names a directed parent -> child frame relation.
type Pair struct {
	Parent string `json:"parent"`
	Child  string `json:"child"`
}

// Reverse returns the child -> parent pair.
func (p Pair) Reverse() Pair { return Pair{Parent: p.Child, Child: p.Parent} }

func (p Pair) String() string { return p.Parent + " -> " + p.Child }

// PairInfo summarises one chain for listings.
type PairInfo struct {
	Pair    Pair
	Static  bool
	Samples int
	Oldest  tf.Stamp
	Newest  tf.Stamp
}

// Stats holds running counters for a Buffer.
type Stats struct {
	Pairs         int
	Samples       int
	Inserts       uint64
	Lookups       uint64
	FailedLookups uint64
}

// Options configures a Buffer.
type Options struct {
	// CacheDuration bounds how far behind the newest sample each dynamic
	// chain retains history. Zero selects DefaultCacheDuration.
	CacheDuration time.Duration
	// StaticPairs are always created as static chains, even when their
	// samples arrive on the dynamic stream.
	StaticPairs []Pair
}

// guardedChain is one independently lockable frame pair.
type guardedChain struct {
	mu    sync.RWMutex
	chain *tf.Chain

	// set once a static sample has been logged against a dynamic chain
	warnedStatic atomic.Bool
}

// Buffer is a registry of per-pair transform chains. It is safe for
// concurrent use.
type Buffer struct {
	cacheDuration time.Duration
	staticPairs   map[Pair]bool

	mu     sync.RWMutex
	chains map[Pair]*guardedChain

	inserts       atomic.Uint64
	lookups       atomic.Uint64
	failedLookups atomic.Uint64
}

// New creates an empty Buffer.
func New(opts Options) *Buffer {
	d := opts.CacheDuration
	if d <= 0 {
		d = DefaultCacheDuration
	}
	static := make(map[Pair]bool, len(opts.StaticPairs))
	for _, p := range opts.StaticPairs {
		static[p] = true
	}
	return &Buffer{
		cacheDuration: d,
		staticPairs:   static,
		chains:        make(map[Pair]*guardedChain),
	}
}

// CacheDuration returns the retention window applied to dynamic chains.
func (b *Buffer) CacheDuration() time.Duration { return b.cacheDuration }

// AddTransform stores s on the chain for its frame pair, creating the chain
// on first sight. static marks a newly created chain as static; it has no
// effect on an existing chain, and a static sample for a dynamic pair is
// logged once.
func (b *Buffer) AddTransform(s tf.Stamped, static bool) error {
	if s.ParentFrameID == "" || s.ChildFrameID == "" {
		return fmt.Errorf("%w: empty frame id (parent %q, child %q)", ErrInvalidSample, s.ParentFrameID, s.ChildFrameID)
	}
	if s.ParentFrameID == s.ChildFrameID {
		return fmt.Errorf("%w: parent and child are both %q", ErrInvalidSample, s.ParentFrameID)
	}

	p := Pair{Parent: s.ParentFrameID, Child: s.ChildFrameID}
	gc := b.chainFor(p, static)
	if static && !gc.chain.Static() && gc.warnedStatic.CompareAndSwap(false, true) {
		monitoring.Logf("tfbuffer: static sample for %s stored on its dynamic chain", p)
	}
	gc.mu.Lock()
	gc.chain.AddToBuffer(s)
	gc.mu.Unlock()

	b.inserts.Add(1)
	return nil
}

// AddTransforms stores every sample. Invalid samples are skipped and
// reported together.
func (b *Buffer) AddTransforms(samples []tf.Stamped, static bool) error {
	var errs []error
	for _, s := range samples {
		if err := b.AddTransform(s, static); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// LookupTransform resolves the parent -> child transform for q. When only
// the reverse pair has been published the result is inverted.
func (b *Buffer) LookupTransform(parent, child string, q tf.Query) (tf.Stamped, error) {
	b.lookups.Add(1)
	s, err := b.lookup(Pair{Parent: parent, Child: child}, q)
	if err != nil {
		b.failedLookups.Add(1)
	}
	return s, err
}

// CanTransform reports whether LookupTransform would succeed.
func (b *Buffer) CanTransform(parent, child string, q tf.Query) bool {
	p := Pair{Parent: parent, Child: child}
	for _, candidate := range []Pair{p, p.Reverse()} {
		gc, ok := b.get(candidate)
		if !ok {
			continue
		}
		gc.mu.RLock()
		valid := gc.chain.HasValidTransform(q)
		gc.mu.RUnlock()
		if valid {
			return true
		}
	}
	return false
}

// History returns a copy of the samples retained for p, oldest first.
func (b *Buffer) History(p Pair) ([]tf.Stamped, error) {
	gc, ok := b.get(p)
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownFramePair, p)
	}
	gc.mu.RLock()
	defer gc.mu.RUnlock()
	return gc.chain.Samples(), nil
}

// Pairs lists every known pair sorted by parent then child.
func (b *Buffer) Pairs() []PairInfo {
	b.mu.RLock()
	pairs := make([]Pair, 0, len(b.chains))
	for p := range b.chains {
		pairs = append(pairs, p)
	}
	b.mu.RUnlock()

	sort.Slice(pairs, func(i, j int) bool {
		if pairs[i].Parent != pairs[j].Parent {
			return pairs[i].Parent < pairs[j].Parent
		}
		return pairs[i].Child < pairs[j].Child
	})

	infos := make([]PairInfo, 0, len(pairs))
	for _, p := range pairs {
		gc, _ := b.get(p)
		gc.mu.RLock()
		info := PairInfo{Pair: p, Static: gc.chain.Static(), Samples: gc.chain.Len()}
		if oldest, ok := gc.chain.Oldest(); ok {
			info.Oldest = oldest.Stamp
		}
		if newest, ok := gc.chain.Newest(); ok {
			info.Newest = newest.Stamp
		}
		gc.mu.RUnlock()
		infos = append(infos, info)
	}
	return infos
}

// Stats returns a snapshot of the running counters.
func (b *Buffer) Stats() Stats {
	b.mu.RLock()
	chains := make([]*guardedChain, 0, len(b.chains))
	for _, gc := range b.chains {
		chains = append(chains, gc)
	}
	b.mu.RUnlock()

	samples := 0
	for _, gc := range chains {
		gc.mu.RLock()
		samples += gc.chain.Len()
		gc.mu.RUnlock()
	}
	return Stats{
		Pairs:         len(chains),
		Samples:       samples,
		Inserts:       b.inserts.Load(),
		Lookups:       b.lookups.Load(),
		FailedLookups: b.failedLookups.Load(),
	}
}

// lookup answers from the direct chain and falls back to the reverse chain
// when the direct one is missing, empty, or cannot cover q. A failure on
// both reports the direct chain's error, so the order matches CanTransform.
func (b *Buffer) lookup(p Pair, q tf.Query) (tf.Stamped, error) {
	s, found, err := b.lookupChain(p, q)
	if found && err == nil {
		return s, nil
	}
	rs, rfound, rerr := b.lookupChain(p.Reverse(), q)
	switch {
	case rfound && rerr == nil:
		return rs.Inverse(), nil
	case found:
		return tf.Stamped{}, err
	case rfound:
		return tf.Stamped{}, rerr
	}
	return tf.Stamped{}, fmt.Errorf("%w: %s", ErrUnknownFramePair, p)
}

// lookupChain reports found=false when p has no chain or an empty one.
func (b *Buffer) lookupChain(p Pair, q tf.Query) (tf.Stamped, bool, error) {
	gc, ok := b.get(p)
	if !ok {
		return tf.Stamped{}, false, nil
	}
	gc.mu.RLock()
	defer gc.mu.RUnlock()
	if gc.chain.Len() == 0 {
		return tf.Stamped{}, false, nil
	}
	s, err := gc.chain.GetClosestTransform(q)
	return s, true, err
}

func (b *Buffer) get(p Pair) (*guardedChain, bool) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	gc, ok := b.chains[p]
	return gc, ok
}

func (b *Buffer) chainFor(p Pair, static bool) *guardedChain {
	if gc, ok := b.get(p); ok {
		return gc
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	if gc, ok := b.chains[p]; ok {
		return gc
	}
	gc := &guardedChain{chain: tf.NewChain(static || b.staticPairs[p], b.cacheDuration)}
	b.chains[p] = gc
	return gc
}
