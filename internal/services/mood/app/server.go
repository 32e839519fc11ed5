// Package server wires the mood runtime and HTTP lifecycle.
package server

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/gorilla/handlers"
	"github.com/moodtide/moodtide.app/internal/platform/config"
	"github.com/moodtide/moodtide.app/internal/services/mood/aggregator"
	"github.com/moodtide/moodtide.app/internal/services/mood/api/httpapi"
	"github.com/moodtide/moodtide.app/internal/services/mood/archive"
	moodbbolt "github.com/moodtide/moodtide.app/internal/services/mood/storage/bbolt"
	moodsqlite "github.com/moodtide/moodtide.app/internal/services/mood/storage/sqlite"
	"github.com/moodtide/moodtide.app/internal/telemetry"
)

type serverEnv struct {
	DBPath      string `env:"MOODTIDE_MOOD_DB_PATH"`
	HistoryPath string `env:"MOODTIDE_HISTORY_DB_PATH"`
}

func loadServerEnv() serverEnv {
	var cfg serverEnv
	_ = config.ParseEnv(&cfg)
	if strings.TrimSpace(cfg.DBPath) == "" {
		cfg.DBPath = filepath.Join("data", "mood.db")
	}
	if strings.TrimSpace(cfg.HistoryPath) == "" {
		cfg.HistoryPath = filepath.Join("data", "history.db")
	}
	return cfg
}

// Server hosts the mood HTTP API and storage lifecycle.
type Server struct {
	listener   net.Listener
	httpServer *http.Server
	docs       *moodbbolt.Store
	history    *moodsqlite.Store
}

// New creates a configured mood server listening on the provided port.
func New(port int) (*Server, error) {
	return NewWithAddr(fmt.Sprintf(":%d", port))
}

// NewWithAddr creates a configured mood server for the provided address.
func NewWithAddr(addr string) (*Server, error) {
	listener, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("listen on %s: %w", addr, err)
	}

	env := loadServerEnv()
	docs, err := openDocumentStore(env.DBPath)
	if err != nil {
		_ = listener.Close()
		return nil, err
	}
	history, err := openHistoryStore(env.HistoryPath)
	if err != nil {
		_ = listener.Close()
		_ = docs.Close()
		return nil, err
	}

	emitter := telemetry.NewEmitter(history)
	agg := aggregator.New(docs, docs, emitter)
	archiver := archive.New(docs, history, emitter)
	api := httpapi.NewServer(agg, archiver)
	router := httpapi.NewRouter(api)

	httpServer := &http.Server{
		Handler:      handlers.LoggingHandler(os.Stdout, router),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
	}

	return &Server{
		listener:   listener,
		httpServer: httpServer,
		docs:       docs,
		history:    history,
	}, nil
}

// Addr returns the listener address for the server.
func (s *Server) Addr() string {
	if s == nil || s.listener == nil {
		return ""
	}
	return s.listener.Addr().String()
}

// Run creates and serves a mood server until context cancellation.
func Run(ctx context.Context, port int) error {
	server, err := New(port)
	if err != nil {
		return err
	}
	return server.Serve(ctx)
}

// Serve starts the HTTP server until context cancellation.
func (s *Server) Serve(ctx context.Context) error {
	if s == nil {
		return errors.New("server is nil")
	}
	if ctx == nil {
		ctx = context.Background()
	}
	defer s.Close()

	log.Printf("mood server listening at %v", s.listener.Addr())
	serveErr := make(chan error, 1)
	go func() {
		serveErr <- s.httpServer.Serve(s.listener)
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		_ = s.httpServer.Shutdown(shutdownCtx)
		err := <-serveErr
		if err == nil || errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("serve HTTP: %w", err)
	case err := <-serveErr:
		if err == nil || errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("serve HTTP: %w", err)
	}
}

// Close releases mood server resources.
func (s *Server) Close() {
	if s == nil {
		return
	}
	if s.httpServer != nil {
		_ = s.httpServer.Close()
	}
	if s.listener != nil {
		_ = s.listener.Close()
	}
	if s.docs != nil {
		if err := s.docs.Close(); err != nil {
			log.Printf("close mood document store: %v", err)
		}
	}
	if s.history != nil {
		if err := s.history.Close(); err != nil {
			log.Printf("close mood history store: %v", err)
		}
	}
}

func openDocumentStore(path string) (*moodbbolt.Store, error) {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create storage dir: %w", err)
		}
	}
	store, err := moodbbolt.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open mood bbolt store: %w", err)
	}
	return store, nil
}

func openHistoryStore(path string) (*moodsqlite.Store, error) {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create storage dir: %w", err)
		}
	}
	store, err := moodsqlite.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open mood history store: %w", err)
	}
	return store, nil
}
