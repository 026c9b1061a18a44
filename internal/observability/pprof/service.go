// Package pprof runs the optional profiling listener.
package pprof

import (
	"context"
	"errors"
	"net"
	"net/http"
	hpprof "net/http/pprof"
	"strings"
	"sync"
	"time"

	logx "netoptimizer/pkg/logx"
)

const DefaultAddr = "127.0.0.1:6060"

// Config controls the pprof listener. Non-loopback binds require Token.
type Config struct {
	Enabled bool
	Addr    string
	Token   string
}

type Service struct {
	mu   sync.Mutex
	log  logx.Logger
	cfg  Config
	srv  *http.Server
	done chan struct{}
}

func New(log logx.Logger) *Service {
	if log.IsZero() {
		log = logx.Nop()
	}
	return &Service{log: log.With(logx.String("comp", "pprof"))}
}

// Addr returns the bound address, or "" when stopped.
func (s *Service) Addr() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.srv == nil {
		return ""
	}
	return s.srv.Addr
}

// Reconfigure starts, stops or restarts the listener to match cfg.
func (s *Service) Reconfigure(ctx context.Context, cfg Config) error {
	cfg.Addr = strings.TrimSpace(cfg.Addr)
	if cfg.Addr == "" {
		cfg.Addr = DefaultAddr
	}

	s.mu.Lock()
	prev := s.cfg
	running := s.srv != nil
	s.mu.Unlock()

	if running && cfg.Enabled && prev.Addr == cfg.Addr && prev.Token == cfg.Token {
		return nil
	}
	if running {
		s.Stop(ctx)
	}
	s.mu.Lock()
	s.cfg = cfg
	s.mu.Unlock()
	if !cfg.Enabled {
		return nil
	}
	return s.start(cfg)
}

func (s *Service) start(cfg Config) error {
	if cfg.Token == "" && !isLoopbackAddr(cfg.Addr) {
		return errors.New("pprof refused to start: non-loopback addr requires a token")
	}
	ln, err := net.Listen("tcp", cfg.Addr)
	if err != nil {
		return err
	}
	srv := &http.Server{
		Addr:              ln.Addr().String(),
		Handler:           newMux(cfg.Token),
		ReadHeaderTimeout: 5 * time.Second,
	}
	done := make(chan struct{})

	s.mu.Lock()
	s.srv, s.done = srv, done
	s.mu.Unlock()

	go func() {
		defer close(done)
		if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.log.Warn("pprof serve failed", logx.Err(err))
		}
	}()
	s.log.Info("pprof started", logx.String("addr", srv.Addr), logx.Bool("token_set", cfg.Token != ""))
	return nil
}

func (s *Service) Stop(ctx context.Context) {
	s.mu.Lock()
	srv, done := s.srv, s.done
	s.srv, s.done = nil, nil
	s.mu.Unlock()
	if srv == nil {
		return
	}
	if err := srv.Shutdown(ctx); err != nil {
		_ = srv.Close()
	}
	<-done
	s.log.Info("pprof stopped")
}

func newMux(token string) *http.ServeMux {
	mux := http.NewServeMux()
	wrap := func(h http.HandlerFunc) http.HandlerFunc { return withAuth(token, h) }
	mux.HandleFunc("/debug/pprof/", wrap(hpprof.Index))
	mux.HandleFunc("/debug/pprof/cmdline", wrap(hpprof.Cmdline))
	mux.HandleFunc("/debug/pprof/profile", wrap(hpprof.Profile))
	mux.HandleFunc("/debug/pprof/symbol", wrap(hpprof.Symbol))
	mux.HandleFunc("/debug/pprof/trace", wrap(hpprof.Trace))
	return mux
}

// withAuth accepts "Authorization: Bearer <token>" or ?token=<token>.
func withAuth(token string, h http.HandlerFunc) http.HandlerFunc {
	tok := strings.TrimSpace(token)
	if tok == "" {
		return h
	}
	return func(w http.ResponseWriter, r *http.Request) {
		got := r.URL.Query().Get("token")
		if got == "" {
			got = strings.TrimSpace(strings.TrimPrefix(r.Header.Get("Authorization"), "Bearer "))
		}
		if got != tok {
			w.Header().Set("WWW-Authenticate", "Bearer")
			http.Error(w, "unauthorized", http.StatusUnauthorized)
			return
		}
		h(w, r)
	}
}

func isLoopbackAddr(addr string) bool {
	h, _, err := net.SplitHostPort(addr)
	if err != nil || strings.TrimSpace(h) == "" {
		return false
	}
	if strings.EqualFold(h, "localhost") {
		return true
	}
	ip := net.ParseIP(h)
	return ip != nil && ip.IsLoopback()
}
