package http

import (
	"context"
	"errors"
	"net"
	stdhttp "net/http"
	"time"

	"ruleexplain/internal/platform/config"
	"ruleexplain/internal/platform/logger"

	"github.com/go-chi/chi/v5"
)

// Server owns the root chi mux and the listener
type Server struct {
	mux *chi.Mux
	srv *stdhttp.Server
}

// NewServer reads PORT (default 4000) and the header and idle timeouts from cfg
// There is no write timeout; event streams stay open for a whole run
func NewServer(cfg config.Conf) *Server {
	m := chi.NewRouter()
	return &Server{
		mux: m,
		srv: &stdhttp.Server{
			Addr:              cfg.MayPort("PORT", 4000),
			Handler:           m,
			ReadHeaderTimeout: cfg.MayDuration("READ_HEADER_TIMEOUT", 10*time.Second),
			IdleTimeout:       cfg.MayDuration("IDLE_TIMEOUT", 2*time.Minute),
		},
	}
}

// Router is the root Router
func (s *Server) Router() Router { return AdaptChi(s.mux) }

// Handler is the root handler, for tests and embedding
func (s *Server) Handler() stdhttp.Handler { return s.mux }

// Addr is the listen address
func (s *Server) Addr() string { return s.srv.Addr }

// Run serves until Shutdown; a clean shutdown returns nil
func (s *Server) Run(ctx context.Context) error {
	s.srv.BaseContext = func(_ net.Listener) context.Context { return ctx }
	logger.Named("http").Info().Str("addr", s.srv.Addr).Msg("http listening")
	if err := s.srv.ListenAndServe(); !errors.Is(err, stdhttp.ErrServerClosed) {
		return err
	}
	return nil
}

// Shutdown stops accepting and waits for handlers until ctx ends
func (s *Server) Shutdown(ctx context.Context) error { return s.srv.Shutdown(ctx) }
