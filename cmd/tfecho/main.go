// Command tfecho reads transforms from a source and periodically prints the
// transform between two frames, both at the current time and the latest
// available sample.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/banshee-data/tfcache/internal/config"
	"github.com/banshee-data/tfcache/internal/ingress"
	"github.com/banshee-data/tfcache/internal/monitoring"
	"github.com/banshee-data/tfcache/internal/tf"
	"github.com/banshee-data/tfcache/internal/tfbuffer"
	"github.com/banshee-data/tfcache/internal/timeutil"
)

var (
	configPath = flag.String("config", "", "Path to a JSON or YAML config file")
	source     = flag.String("source", "", "Message source: stdin, serial, udp or pcap (overrides config)")
	parent     = flag.String("parent", "", "Parent frame (overrides config)")
	child      = flag.String("child", "", "Child frame (overrides config)")
	interval   = flag.Duration("interval", 0, "Print interval (overrides config)")
	debugLog   = flag.Bool("debug", false, "Enable per-sample debug logging")
)

// lookuper is the part of the buffer the echo loop reads.
type lookuper interface {
	LookupTransform(parent, child string, q tf.Query) (tf.Stamped, error)
}

// printLookup writes one lookup result in the tf_echo layout.
func printLookup(w io.Writer, l lookuper, parent, child string, q tf.Query) {
	s, err := l.LookupTransform(parent, child, q)
	if err != nil {
		fmt.Fprintf(w, "Failure at %s: %v\n", q, err)
		return
	}
	v := s.Transform.Translation
	r := s.Transform.Rotation
	fmt.Fprintf(w, "At time %s (%s)\n", s.Stamp, q)
	fmt.Fprintf(w, "- Translation: [%.3f, %.3f, %.3f]\n", v.X, v.Y, v.Z)
	fmt.Fprintf(w, "- Rotation: in Quaternion [%.3f, %.3f, %.3f, %.3f]\n", r.Imag, r.Jmag, r.Kmag, r.Real)
}

// echo prints parent -> child on every tick until ctx is cancelled.
func echo(ctx context.Context, w io.Writer, l lookuper, parent, child string, clock timeutil.Clock, tick <-chan time.Time) {
	for {
		select {
		case <-ctx.Done():
			return
		case <-tick:
			printLookup(w, l, parent, child, tf.At(timeutil.StampNow(clock)))
			printLookup(w, l, parent, child, tf.Latest())
		}
	}
}

func main() {
	flag.Parse()

	cfg := config.DefaultConfig()
	if *configPath != "" {
		var err error
		if cfg, err = config.LoadConfig(*configPath); err != nil {
			log.Fatalf("invalid configuration: %v", err)
		}
	}
	if *source != "" {
		cfg.Source = source
	}
	if *parent != "" {
		cfg.EchoParent = parent
	}
	if *child != "" {
		cfg.EchoChild = child
	}
	if *interval > 0 {
		d := interval.String()
		cfg.EchoInterval = &d
	}
	if err := cfg.Validate(); err != nil {
		log.Fatalf("invalid configuration: %v", err)
	}
	monitoring.SetDebug(*debugLog || cfg.GetDebug())

	buf := tfbuffer.New(cfg.BufferOptions())
	srcCfg := cfg.IngressSource()
	stream, err := ingress.OpenSource(srcCfg)
	if err != nil {
		log.Fatalf("failed to open source %s: %v", srcCfg, err)
	}
	defer stream.Close()

	listener := ingress.NewListener(ingress.ListenerConfig{Sink: buf})
	clock := timeutil.RealClock{}

	var wg sync.WaitGroup
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	id, lines := stream.Subscribe()

	wg.Add(1)
	go func() {
		defer wg.Done()
		if err := stream.Monitor(ctx); err != nil && !errors.Is(err, context.Canceled) {
			log.Printf("failed to monitor source: %v", err)
		}
	}()

	wg.Add(1)
	go func() {
		defer wg.Done()
		defer stream.Unsubscribe(id)
		listener.Consume(ctx, lines)
	}()

	wg.Add(1)
	go func() {
		defer wg.Done()
		ticker := clock.NewTicker(cfg.GetEchoInterval())
		defer ticker.Stop()
		log.Printf("echoing %s -> %s every %s from %s", cfg.GetEchoParent(), cfg.GetEchoChild(), cfg.GetEchoInterval(), srcCfg)
		echo(ctx, os.Stdout, buf, cfg.GetEchoParent(), cfg.GetEchoChild(), clock, ticker.C())
	}()

	wg.Wait()
}
