// Package api provides HTTP handlers and the main API server logic for DuetLoop.
//
// It exposes the presentation-facing control surface: starting and stopping
// the conversation, polling for the next turn, acknowledging presented turns,
// and reading status. The API integrates the dialogue, genai, and feed modules.
package api

import (
	"log/slog"
	"net/http"

	"github.com/duetloop/duetloop/internal/dialogue"
	"github.com/duetloop/duetloop/internal/feed"
	"github.com/duetloop/duetloop/internal/genai"
)

// DefaultAddr is the default API listen address.
const DefaultAddr = ":8080"

// Opts holds configuration for the API server.
type Opts struct {
	Addr string
}

// Option configures the API server.
type Option func(*Opts)

// WithAddr sets the listen address (overrides $API_ADDR).
func WithAddr(addr string) Option {
	return func(o *Opts) { o.Addr = addr }
}

// Server hosts the HTTP control surface over a turn scheduler.
type Server struct {
	sched *dialogue.TurnScheduler
	addr  string
}

// NewServer creates an API server over the given scheduler.
func NewServer(sched *dialogue.TurnScheduler, opts ...Option) *Server {
	cfg := Opts{Addr: DefaultAddr}
	for _, opt := range opts {
		opt(&cfg)
	}
	if cfg.Addr == "" {
		cfg.Addr = DefaultAddr
	}
	return &Server{sched: sched, addr: cfg.Addr}
}

// Handler returns the routed HTTP handler.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/conversation/start", s.startHandler)
	mux.HandleFunc("/conversation/next", s.nextHandler)
	mux.HandleFunc("/conversation/ack", s.ackHandler)
	mux.HandleFunc("/conversation/status", s.statusHandler)
	mux.HandleFunc("/conversation/stop", s.stopHandler)
	return mux
}

// ListenAndServe starts serving the API.
func (s *Server) ListenAndServe() error {
	slog.Info("Server.ListenAndServe: DuetLoop API running", "addr", s.addr)
	return http.ListenAndServe(s.addr, s.Handler())
}

// Run wires the configured modules together and serves the API until the
// listener fails.
func Run(genaiOpts []genai.Option, feedOpts []feed.Option, schedCfg dialogue.Config, apiOpts []Option) error {
	client, err := genai.NewClient(genaiOpts...)
	if err != nil {
		return err
	}
	source, err := feed.NewSource(feedOpts...)
	if err != nil {
		return err
	}
	sched := dialogue.NewTurnScheduler(client, source, schedCfg)
	srv := NewServer(sched, apiOpts...)
	return srv.ListenAndServe()
}
