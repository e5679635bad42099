package ingress

import (
	"context"
	"sync/atomic"
	"time"

	"github.com/banshee-data/tfcache/internal/monitoring"
	"github.com/banshee-data/tfcache/internal/tf"
	"github.com/banshee-data/tfcache/internal/tfbuffer"
	"github.com/banshee-data/tfcache/internal/timeutil"
)

// Recorder persists accepted samples.
type Recorder interface {
	RecordSamples(samples []tf.Stamped, static bool) error
}

// Sink receives decoded samples. *tfbuffer.Buffer implements it.
type Sink interface {
	AddTransform(s tf.Stamped, static bool) error
}

var _ Sink = (*tfbuffer.Buffer)(nil)

// ListenerStats counts what a Listener has processed.
type ListenerStats struct {
	Lines        uint64 `json:"lines"`
	Samples      uint64 `json:"samples"`
	Rejected     uint64 `json:"rejected"`
	RecordErrors uint64 `json:"record_errors"`
}

// ListenerConfig configures a Listener.
type ListenerConfig struct {
	Sink        Sink
	Recorder    Recorder // optional
	LogInterval time.Duration
	Clock       timeutil.Clock
}

// Listener decodes lines from a mux subscription into the Sink.
type Listener struct {
	sink        Sink
	recorder    Recorder
	logInterval time.Duration
	clock       timeutil.Clock

	lines        atomic.Uint64
	samples      atomic.Uint64
	rejected     atomic.Uint64
	recordErrors atomic.Uint64
}

// NewListener creates a Listener. A zero LogInterval disables periodic stats
// logging and a nil Clock selects the real clock.
func NewListener(cfg ListenerConfig) *Listener {
	clock := cfg.Clock
	if clock == nil {
		clock = timeutil.RealClock{}
	}
	return &Listener{
		sink:        cfg.Sink,
		recorder:    cfg.Recorder,
		logInterval: cfg.LogInterval,
		clock:       clock,
	}
}

// Run subscribes to m and processes lines until the subscription closes or
// ctx is cancelled.
func (l *Listener) Run(ctx context.Context, m MuxInterface) error {
	id, lines := m.Subscribe()
	defer m.Unsubscribe(id)
	return l.Consume(ctx, lines)
}

// Consume processes lines from an existing subscription. Callers that must not
// miss the first lines of a finite source subscribe before starting Monitor.
func (l *Listener) Consume(ctx context.Context, lines <-chan string) error {
	var tick <-chan time.Time
	if l.logInterval > 0 {
		ticker := l.clock.NewTicker(l.logInterval)
		defer ticker.Stop()
		tick = ticker.C()
	}

	for {
		select {
		case <-ctx.Done():
			l.LogStats()
			return ctx.Err()
		case <-tick:
			l.LogStats()
		case line, ok := <-lines:
			if !ok {
				l.LogStats()
				return nil
			}
			l.HandleLine(line)
		}
	}
}

// HandleLine decodes one message and stores its samples. Malformed lines are
// counted and logged, never fatal.
func (l *Listener) HandleLine(line string) {
	l.lines.Add(1)
	if line == "" {
		return
	}

	samples, static, err := DecodeMessage([]byte(line))
	if err != nil {
		l.rejected.Add(1)
		monitoring.Logf("ingress: dropping line: %v", err)
		return
	}

	accepted := samples[:0]
	for _, s := range samples {
		if err := l.sink.AddTransform(s, static); err != nil {
			l.rejected.Add(1)
			monitoring.Logf("ingress: rejected sample: %v", err)
			continue
		}
		monitoring.Debugf("ingress: %s static=%v", s, static)
		accepted = append(accepted, s)
	}
	l.samples.Add(uint64(len(accepted)))

	if l.recorder != nil && len(accepted) > 0 {
		if err := l.recorder.RecordSamples(accepted, static); err != nil {
			l.recordErrors.Add(1)
			monitoring.Logf("ingress: failed to record samples: %v", err)
		}
	}
}

// Stats returns a snapshot of the counters.
func (l *Listener) Stats() ListenerStats {
	return ListenerStats{
		Lines:        l.lines.Load(),
		Samples:      l.samples.Load(),
		Rejected:     l.rejected.Load(),
		RecordErrors: l.recordErrors.Load(),
	}
}

// LogStats writes the counters through the monitoring logger.
func (l *Listener) LogStats() {
	s := l.Stats()
	monitoring.Logf("ingress: lines=%d samples=%d rejected=%d record_errors=%d",
		s.Lines, s.Samples, s.Rejected, s.RecordErrors)
}
