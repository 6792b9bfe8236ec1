package server

import (
	"context"
	"embed"
	"encoding/json"
	"errors"
	"io/fs"
	"net/http"
	"time"

	"github.com/agente-metalurgico/server/internal/agent/graph"
	"github.com/agente-metalurgico/server/internal/agent/rag"
	errx "github.com/agente-metalurgico/server/internal/core/error"
	logx "github.com/agente-metalurgico/server/pkg/logger"
)

//go:embed static/*
var staticFS embed.FS

const maxBodyBytes = 1 << 20

type Config struct {
	Addr         string        `envconfig:"HTTP_ADDR" default:":8000"`
	ReadTimeout  time.Duration `envconfig:"HTTP_READ_TIMEOUT" default:"15s"`
	WriteTimeout time.Duration `envconfig:"HTTP_WRITE_TIMEOUT" default:"120s"`
}

// Defaults are applied to ask and retrieval requests that omit a value.
type Defaults struct {
	TopK              int
	MaxCharsPerDoc    int
	DebugMaxChars     int
	CredentialPresent bool
}

// DocumentCounter reports the size of the knowledge base.
type DocumentCounter interface {
	Count() int
}

// Server is the HTTP boundary of the assistant and serves the chat client.
type Server struct {
	cfg       Config
	runner    graph.Runner
	assembler *rag.Assembler
	docs      DocumentCounter
	defaults  Defaults
}

func New(cfg Config, runner graph.Runner, assembler *rag.Assembler, docs DocumentCounter, defaults Defaults) *Server {
	if defaults.TopK <= 0 {
		defaults.TopK = 3
	}
	if defaults.MaxCharsPerDoc <= 0 {
		defaults.MaxCharsPerDoc = 2000
	}
	if defaults.DebugMaxChars <= 0 {
		defaults.DebugMaxChars = 2500
	}
	return &Server{
		cfg:       cfg,
		runner:    runner,
		assembler: assembler,
		docs:      docs,
		defaults:  defaults,
	}
}

// Handler returns the routed handler wrapped in CORS and request logging.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /{$}", s.handleRoot)
	mux.HandleFunc("GET /health", s.handleHealth)
	mux.HandleFunc("POST /ask", s.handleAsk)
	mux.HandleFunc("POST /messages", s.handleMessages)
	mux.HandleFunc("POST /search", s.handleSearch)
	mux.HandleFunc("POST /rag_debug", s.handleRAGDebug)
	mux.HandleFunc("GET /conversations/{id}", s.handleHistory)
	mux.HandleFunc("DELETE /conversations/{id}", s.handleClearHistory)

	staticContent, _ := fs.Sub(staticFS, "static")
	mux.Handle("GET /ui/", http.StripPrefix("/ui/", http.FileServer(http.FS(staticContent))))
	mux.HandleFunc("GET /ui", func(w http.ResponseWriter, r *http.Request) {
		http.Redirect(w, r, "/ui/", http.StatusMovedPermanently)
	})

	return corsMiddleware(loggingMiddleware(mux))
}

// Start serves until ctx is cancelled, then shuts down gracefully.
func (s *Server) Start(ctx context.Context) error {
	server := &http.Server{
		Addr:         s.cfg.Addr,
		Handler:      s.Handler(),
		ReadTimeout:  s.cfg.ReadTimeout,
		WriteTimeout: s.cfg.WriteTimeout,
	}

	logx.Info().Str("addr", s.cfg.Addr).Msg("HTTP server starting")

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			logx.Error().Err(err).Msg("HTTP server shutdown failed")
		}
	}()

	if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		logx.Error().Err(err).Msg("Error encoding response")
	}
}

// writeError maps err onto its status and safe message; unclassified errors become 500.
func writeError(w http.ResponseWriter, r *http.Request, err error) {
	status := errx.StatusOf(err)
	ev := logx.Warn()
	if status >= http.StatusInternalServerError {
		ev = logx.Error()
	}
	ev.Err(err).
		Str("path", r.URL.Path).
		Str("kind", errx.KindOf(err).String()).
		Int("status", status).
		Msg("Request failed")
	writeJSON(w, status, map[string]string{"error": errx.MessageOf(err)})
}

func decodeJSON(w http.ResponseWriter, r *http.Request, dst any) error {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		return errx.InvalidRequest("cuerpo JSON mal formado")
	}
	return nil
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(status int) {
	r.status = status
	r.ResponseWriter.WriteHeader(status)
}

func loggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r)
		logx.Info().
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Int("status", rec.status).
			Dur("duration", time.Since(start)).
			Msg("HTTP request")
	})
}

func corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, DELETE, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type")
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		next.ServeHTTP(w, r)
	})
}
