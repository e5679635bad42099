// Command tfbuffer keeps a time-buffered cache of frame-pair transforms fed
// from a line-delimited message source and serves lookups over HTTP.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os/signal"
	"sync"
	"syscall"

	"github.com/banshee-data/tfcache/internal/api"
	"github.com/banshee-data/tfcache/internal/config"
	"github.com/banshee-data/tfcache/internal/ingress"
	"github.com/banshee-data/tfcache/internal/monitoring"
	"github.com/banshee-data/tfcache/internal/store"
	"github.com/banshee-data/tfcache/internal/tfbuffer"
	"github.com/banshee-data/tfcache/internal/version"
)

var (
	configPath  = flag.String("config", "", "Path to a JSON or YAML config file")
	listen      = flag.String("listen", "", "HTTP listen address (overrides config)")
	source      = flag.String("source", "", "Message source: stdin, serial, udp or pcap (overrides config)")
	dbPath      = flag.String("db", "", "SQLite database path; empty disables persistence (overrides config)")
	record      = flag.Bool("record", false, "Record accepted samples to the database")
	debugLog    = flag.Bool("debug", false, "Enable per-sample debug logging")
	showVersion = flag.Bool("version", false, "Print version and exit")
)

// overrides carries command-line values that take precedence over the config
// file. Zero values leave the config untouched.
type overrides struct {
	Listen string
	Source string
	DBPath string
	Record bool
	Debug  bool
}

// buildConfig loads path (or the defaults when empty), applies o and
// validates the result.
func buildConfig(path string, o overrides) (*config.Config, error) {
	cfg := config.DefaultConfig()
	if path != "" {
		var err error
		if cfg, err = config.LoadConfig(path); err != nil {
			return nil, err
		}
	}
	if o.Listen != "" {
		cfg.Listen = &o.Listen
	}
	if o.Source != "" {
		cfg.Source = &o.Source
	}
	if o.DBPath != "" {
		cfg.DBPath = &o.DBPath
	}
	if o.Record {
		cfg.Record = &o.Record
	}
	if o.Debug {
		cfg.Debug = &o.Debug
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if cfg.GetRecord() && cfg.GetDBPath() == "" {
		return nil, errors.New("record requires a database path")
	}
	return cfg, nil
}

// openStore opens the database, warms buf from the most recent session and
// starts a new recording session when asked to.
func openStore(cfg *config.Config, buf *tfbuffer.Buffer, src string) (*store.Store, *store.Recorder, error) {
	st, err := store.Open(cfg.GetDBPath())
	if err != nil {
		return nil, nil, err
	}

	last, err := st.LatestSession()
	switch {
	case err == nil:
		n, err := st.WarmBuffer(buf, last.ID)
		if err != nil {
			st.Close()
			return nil, nil, fmt.Errorf("warm buffer: %w", err)
		}
		log.Printf("warmed buffer with %d samples from session %s", n, last.ID)
	case errors.Is(err, store.ErrNoSession):
	default:
		st.Close()
		return nil, nil, err
	}

	if !cfg.GetRecord() {
		return st, nil, nil
	}
	rec, err := store.NewRecorder(st, src)
	if err != nil {
		st.Close()
		return nil, nil, err
	}
	log.Printf("recording to session %s", rec.Session().ID)
	return st, rec, nil
}

func main() {
	flag.Parse()

	if *showVersion {
		fmt.Println(version.String())
		return
	}

	cfg, err := buildConfig(*configPath, overrides{
		Listen: *listen,
		Source: *source,
		DBPath: *dbPath,
		Record: *record,
		Debug:  *debugLog,
	})
	if err != nil {
		log.Fatalf("invalid configuration: %v", err)
	}
	monitoring.SetDebug(cfg.GetDebug())
	log.Printf("tfbuffer %s", version.String())

	buf := tfbuffer.New(cfg.BufferOptions())
	srcCfg := cfg.IngressSource()

	var (
		st  *store.Store
		rec *store.Recorder
	)
	opts := api.Options{}
	if cfg.GetDBPath() != "" {
		st, rec, err = openStore(cfg, buf, srcCfg.String())
		if err != nil {
			log.Fatalf("failed to open database: %v", err)
		}
		defer st.Close()
		opts.Store = st
	}

	stream, err := ingress.OpenSource(srcCfg)
	if err != nil {
		log.Fatalf("failed to open source %s: %v", srcCfg, err)
	}
	defer stream.Close()
	log.Printf("reading transforms from %s", srcCfg)

	lcfg := ingress.ListenerConfig{Sink: buf, LogInterval: cfg.GetLogInterval()}
	if rec != nil {
		lcfg.Recorder = rec
	}
	listener := ingress.NewListener(lcfg)
	opts.Listener = listener

	var wg sync.WaitGroup
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// subscribe before the monitor starts so a pcap replay is seen from its
	// first line
	id, lines := stream.Subscribe()

	wg.Add(1)
	go func() {
		defer wg.Done()
		if err := stream.Monitor(ctx); err != nil && !errors.Is(err, context.Canceled) {
			log.Printf("failed to monitor source: %v", err)
		}
		log.Print("monitor routine terminated")
	}()

	wg.Add(1)
	go func() {
		defer wg.Done()
		defer stream.Unsubscribe(id)
		if err := listener.Consume(ctx, lines); err != nil && !errors.Is(err, context.Canceled) {
			log.Printf("listener stopped: %v", err)
		}
		log.Print("listener routine terminated")
	}()

	wg.Add(1)
	go func() {
		defer wg.Done()
		server := api.NewServer(buf, opts)
		mux := server.ServeMux()
		server.AttachAdminRoutes(mux)
		stream.AttachAdminRoutes(mux)
		if st != nil {
			if err := st.AttachAdminRoutes(mux); err != nil {
				log.Printf("failed to attach database admin routes: %v", err)
			}
		}

		var h http.Handler = mux
		if cfg.GetDebug() {
			h = api.LoggingMiddleware(mux)
		}
		if err := api.Run(ctx, cfg.GetListen(), h); err != nil {
			log.Printf("HTTP server: %v", err)
			stop()
		}
		log.Printf("HTTP server routine stopped")
	}()

	wg.Wait()
	if rec != nil {
		log.Printf("recorded session %s", rec.Session().ID)
	}
	log.Printf("Graceful shutdown complete")
}
