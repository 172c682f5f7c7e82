// Package server constructs and runs the chat relay with its TCP listener,
// HTTP server and shared hub.
package server

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"

	"github.com/Tyrowin/linechat/internal/filter"
	"github.com/Tyrowin/linechat/internal/history"
)

// Server owns the hub, the chat log and both listeners.
type Server struct {
	cfg      Config
	hub      *Hub
	sink     *history.Log
	http     *http.Server
	upgrader websocket.Upgrader

	mu        sync.Mutex
	listeners []net.Listener
	shutdown  bool
}

// NewServer builds the filter, history, chat log and hub described by cfg.
// The chat log file is truncated here.
func NewServer(cfg Config) (*Server, error) {
	cfg = sanitizeConfig(cfg)

	f := newFilter(cfg.Lemmatizer)

	var sink *history.Log
	if cfg.LogFile != "" {
		var err error
		sink, err = history.OpenLog(cfg.LogFile)
		if err != nil {
			return nil, err
		}
	}

	s := &Server{
		cfg:  cfg,
		hub:  NewHub(f, history.NewStore(cfg.HistoryLimit), sink),
		sink: sink,
	}
	origins := newOriginPolicy(cfg.AllowedOrigins)
	s.upgrader = websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin:     origins.checkOrigin,
	}
	if cfg.HTTPAddr != "" {
		s.http = CreateServer(cfg.HTTPAddr, SetupRoutes(s))
	}
	return s, nil
}

func newFilter(provider string) *filter.Filter {
	terms := filter.New().Terms()
	lem, err := filter.NewLemmatizer(provider, terms)
	if err != nil {
		log.Warn().Err(err).Str("provider", provider).Msg("Falling back to rule-based lemmatizer")
		lem = filter.NewRuleLemmatizer(terms)
	}
	return filter.New(filter.WithLemmatizer(lem))
}

// Hub returns the server's hub.
func (s *Server) Hub() *Hub {
	return s.hub
}

// CreateServer creates and configures an HTTP server with the specified address and handler.
// It sets reasonable timeout values; hijacked WebSocket connections are not affected.
func CreateServer(addr string, handler http.Handler) *http.Server {
	return &http.Server{
		Addr:              addr,
		Handler:           handler,
		ReadHeaderTimeout: 15 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      15 * time.Second,
		IdleTimeout:       60 * time.Second,
	}
}

// ListenAndServe binds the TCP listener and, if configured, the HTTP
// server, and blocks until both stop. A bind failure is returned at once.
func (s *Server) ListenAndServe() error {
	ln, err := net.Listen("tcp", s.cfg.Addr)
	if err != nil {
		return fmt.Errorf("listen %s: %w", s.cfg.Addr, err)
	}

	if !s.trackListener(ln) {
		return nil
	}

	var g errgroup.Group
	g.Go(func() error {
		return s.ServeTCP(ln)
	})

	if s.http != nil {
		httpLn, err := net.Listen("tcp", s.http.Addr)
		if err != nil {
			_ = ln.Close()
			_ = g.Wait()
			return fmt.Errorf("listen %s: %w", s.http.Addr, err)
		}
		if !s.trackListener(httpLn) {
			return g.Wait()
		}
		g.Go(func() error {
			log.Info().Str("addr", httpLn.Addr().String()).Msg("HTTP server listening")
			if err := s.http.Serve(httpLn); err != nil && !errors.Is(err, http.ErrServerClosed) {
				return err
			}
			return nil
		})
	}

	return g.Wait()
}

// trackListener registers ln so Shutdown closes it. Once Shutdown has run,
// ln is closed at once and trackListener reports false.
func (s *Server) trackListener(ln net.Listener) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.shutdown {
		_ = ln.Close()
		return false
	}
	for _, tracked := range s.listeners {
		if tracked == ln {
			return true
		}
	}
	s.listeners = append(s.listeners, ln)
	return true
}

// Shutdown stops accepting connections, shuts the HTTP server down, closes
// every session and finally closes the chat log.
func (s *Server) Shutdown(ctx context.Context) error {
	s.mu.Lock()
	s.shutdown = true
	listeners := s.listeners
	s.listeners = nil
	s.mu.Unlock()

	var errs []error
	for _, ln := range listeners {
		if err := ln.Close(); err != nil && !errors.Is(err, net.ErrClosed) {
			errs = append(errs, err)
		}
	}

	if s.http != nil {
		log.Info().Msg("Shutting down HTTP server...")
		if err := s.http.Shutdown(ctx); err != nil {
			errs = append(errs, fmt.Errorf("http shutdown: %w", err))
		}
	}

	if err := s.hub.Shutdown(ctx); err != nil {
		errs = append(errs, fmt.Errorf("hub shutdown: %w", err))
	}

	if s.sink != nil {
		if err := s.sink.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close chat log: %w", err))
		}
	}

	return errors.Join(errs...)
}
