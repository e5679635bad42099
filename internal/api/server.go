// Package api serves the transform buffer over HTTP.
package api

import (
	"context"
	"errors"
	"fmt"
	"log"
	"math"
	"net/http"
	"strconv"
	"time"

	"github.com/banshee-data/tfcache/internal/ingress"
	"github.com/banshee-data/tfcache/internal/store"
	"github.com/banshee-data/tfcache/internal/tf"
	"github.com/banshee-data/tfcache/internal/tfbuffer"
	"github.com/banshee-data/tfcache/internal/version"
)

// ANSI escape codes for request logging
const colorCyan = "\033[36m"
const colorReset = "\033[0m"
const colorYellow = "\033[33m"
const colorBoldGreen = "\033[1;32m"
const colorBoldRed = "\033[1;31m"

// Server exposes lookups against a Buffer.
type Server struct {
	buf      *tfbuffer.Buffer
	store    *store.Store
	listener *ingress.Listener
}

// Options carries the optional collaborators of a Server.
type Options struct {
	// Store backs /api/sessions and plot fallbacks. May be nil.
	Store *store.Store
	// Listener contributes ingress counters to /api/stats. May be nil.
	Listener *ingress.Listener
}

// NewServer creates a Server over buf.
func NewServer(buf *tfbuffer.Buffer, opts Options) *Server {
	return &Server{
		buf:      buf,
		store:    opts.Store,
		listener: opts.Listener,
	}
}

type loggingResponseWriter struct {
	http.ResponseWriter
	statusCode int
}

func (lrw *loggingResponseWriter) WriteHeader(code int) {
	lrw.statusCode = code
	lrw.ResponseWriter.WriteHeader(code)
}

func (lrw *loggingResponseWriter) Flush() {
	if flusher, ok := lrw.ResponseWriter.(http.Flusher); ok {
		flusher.Flush()
	}
}

func statusCodeColor(statusCode int) string {
	code := strconv.Itoa(statusCode)
	switch {
	case statusCode >= 200 && statusCode < 300:
		return colorBoldGreen + code + colorReset
	case statusCode >= 300 && statusCode < 400:
		return colorYellow + code + colorReset
	case statusCode >= 400:
		return colorBoldRed + code + colorReset
	default:
		return code
	}
}

// LoggingMiddleware logs method, path, query, status, and duration
func LoggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		lrw := &loggingResponseWriter{w, http.StatusOK}
		next.ServeHTTP(lrw, r)
		log.Printf(
			"[%s] %s %s%s%s %vms",
			statusCodeColor(lrw.statusCode), r.Method,
			colorCyan, r.RequestURI, colorReset,
			float64(time.Since(start).Nanoseconds())/1e6,
		)
	})
}

// ServeMux returns a mux with every API route mounted.
func (s *Server) ServeMux() *http.ServeMux {
	mux := http.NewServeMux()
	mux.HandleFunc("/api/frames", s.listFrames)
	mux.HandleFunc("/api/transform", s.lookupTransform)
	mux.HandleFunc("/api/can_transform", s.canTransform)
	mux.HandleFunc("/api/history", s.history)
	mux.HandleFunc("/api/stats", s.showStats)
	mux.HandleFunc("/api/sessions", s.listSessions)
	mux.HandleFunc("/api/version", s.showVersion)
	return mux
}

// Run serves handler on addr until ctx is cancelled.
func Run(ctx context.Context, addr string, handler http.Handler) error {
	server := &http.Server{
		Addr:              addr,
		Handler:           handler,
		ReadHeaderTimeout: 5 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()
	log.Printf("HTTP server listening on %s", addr)

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("failed to start server: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	log.Println("shutting down HTTP server...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Printf("HTTP server shutdown error: %v", err)
		if err := server.Close(); err != nil {
			log.Printf("HTTP server force close error: %v", err)
		}
	}
	return nil
}

func (s *Server) listFrames(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w)
		return
	}
	infos := s.buf.Pairs()
	pairs := make([]Pair, 0, len(infos))
	for _, info := range infos {
		pairs = append(pairs, newPair(info))
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"pairs": pairs})
}

// lookupParams reads parent, child and the optional time parameter. An
// absent or zero time selects the latest sample.
func lookupParams(r *http.Request) (parent, child string, q tf.Query, err error) {
	query := r.URL.Query()
	parent, child = query.Get("parent"), query.Get("child")
	if parent == "" || child == "" {
		return "", "", tf.Query{}, errors.New("parent and child are required")
	}

	q = tf.Latest()
	if raw := query.Get("time"); raw != "" {
		secs, perr := strconv.ParseFloat(raw, 64)
		if perr != nil || secs < 0 || math.IsNaN(secs) || math.IsInf(secs, 0) || secs > math.MaxUint32 {
			return "", "", tf.Query{}, fmt.Errorf("invalid time %q: want non-negative decimal seconds", raw)
		}
		q = tf.QueryFromStamp(tf.StampFromSeconds(secs))
	}
	return parent, child, q, nil
}

func (s *Server) lookupTransform(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w)
		return
	}
	parent, child, q, err := lookupParams(r)
	if err != nil {
		badRequest(w, err.Error())
		return
	}

	sample, err := s.buf.LookupTransform(parent, child, q)
	if err != nil {
		s.writeLookupError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, newSample(sample))
}

// writeLookupError maps buffer errors onto HTTP statuses.
func (s *Server) writeLookupError(w http.ResponseWriter, err error) {
	var past *tf.LookupInPastError
	var future *tf.LookupInFutureError
	switch {
	case errors.Is(err, tfbuffer.ErrUnknownFramePair):
		notFound(w, err.Error())
	case errors.As(err, &past):
		writeJSON(w, http.StatusUnprocessableEntity, errorResponse{Error: err.Error(), Boundary: newSample(past.Oldest)})
	case errors.As(err, &future):
		writeJSON(w, http.StatusUnprocessableEntity, errorResponse{Error: err.Error(), Boundary: newSample(future.Newest)})
	default:
		internalServerError(w, err.Error())
	}
}

func (s *Server) canTransform(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w)
		return
	}
	parent, child, q, err := lookupParams(r)
	if err != nil {
		badRequest(w, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"ok": s.buf.CanTransform(parent, child, q)})
}

func (s *Server) history(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w)
		return
	}
	pair := tfbuffer.Pair{Parent: r.URL.Query().Get("parent"), Child: r.URL.Query().Get("child")}
	if pair.Parent == "" || pair.Child == "" {
		badRequest(w, "parent and child are required")
		return
	}
	samples, err := s.buf.History(pair)
	if err != nil {
		notFound(w, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"samples": newSamples(samples)})
}

func (s *Server) showStats(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w)
		return
	}
	st := s.buf.Stats()
	resp := map[string]interface{}{
		"buffer": BufferStats{
			Pairs:         st.Pairs,
			Samples:       st.Samples,
			Inserts:       st.Inserts,
			Lookups:       st.Lookups,
			FailedLookups: st.FailedLookups,
			CacheDuration: s.buf.CacheDuration().Seconds(),
		},
	}
	if s.listener != nil {
		resp["ingress"] = s.listener.Stats()
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) listSessions(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w)
		return
	}
	if s.store == nil {
		notFound(w, "recording is not enabled")
		return
	}
	sessions, err := s.store.Sessions()
	if err != nil {
		internalServerError(w, err.Error())
		return
	}
	if sessions == nil {
		sessions = []store.Session{}
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"sessions": sessions})
}

func (s *Server) showVersion(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w)
		return
	}
	writeJSON(w, http.StatusOK, version.Current())
}
