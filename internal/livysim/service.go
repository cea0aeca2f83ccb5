package livysim

import (
	"context"
	"errors"
	"net/http"
	"os/signal"
	"strings"
	"sync/atomic"
	"syscall"
	"time"

	"github.com/rs/zerolog"
)

// ServiceConfig configures one simulator instance.
type ServiceConfig struct {
	// Node names this instance in logs and metrics.
	Node       string
	ListenAddr string

	// ReadyAfterPolls is how many status reads observe starting before
	// the session turns idle.
	ReadyAfterPolls int
	// StatementPolls is how many status reads observe a non-terminal
	// statement before it turns available.
	StatementPolls int

	// FailFirst answers that many API requests with 503 before serving
	// normally, to exercise client retry paths.
	FailFirst int
	// RequireAuth rejects API requests without a SigV4 authorization
	// header. Signatures are not verified.
	RequireAuth bool

	Logger zerolog.Logger
}

// Livysim service defaults matching the classic Livy port.
func DefaultServiceConfig() ServiceConfig {
	return ServiceConfig{
		Node:            "livysim.local",
		ListenAddr:      ":8998",
		ReadyAfterPolls: 2,
		StatementPolls:  1,
	}
}

// Service runs the simulated Livy surface as a standalone process.
type Service struct {
	cfg    ServiceConfig
	store  *Store
	logger zerolog.Logger

	started       time.Time
	failRemaining atomic.Int64
}

// Livysim service constructor using default configuration.
func NewService() *Service {
	return NewServiceWithConfig(DefaultServiceConfig())
}

// Livysim service constructor using explicit configuration.
func NewServiceWithConfig(cfg ServiceConfig) *Service {
	def := DefaultServiceConfig()
	if strings.TrimSpace(cfg.Node) == "" {
		cfg.Node = def.Node
	}
	if strings.TrimSpace(cfg.ListenAddr) == "" {
		cfg.ListenAddr = def.ListenAddr
	}
	if cfg.ReadyAfterPolls < 0 {
		cfg.ReadyAfterPolls = 0
	}
	if cfg.StatementPolls < 0 {
		cfg.StatementPolls = 0
	}
	svc := &Service{
		cfg:     cfg,
		store:   NewStore(cfg.ReadyAfterPolls, cfg.StatementPolls),
		logger:  cfg.Logger,
		started: time.Now(),
	}
	svc.failRemaining.Store(int64(cfg.FailFirst))
	return svc
}

// Store exposes lifecycle state for in-process scenario control.
func (s *Service) Store() *Store {
	return s.store
}

// Livysim runtime entrypoint that blocks until signal shutdown.
func (s *Service) Run() error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	server := &http.Server{Addr: s.cfg.ListenAddr, Handler: s.Handler()}
	serveErr := make(chan error, 1)
	go func() {
		serveErr <- server.ListenAndServe()
	}()
	s.logger.Info().
		Str("node", s.cfg.Node).
		Str("addr", s.cfg.ListenAddr).
		Msg("livysim_listening")

	select {
	case err := <-serveErr:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return server.Shutdown(shutdownCtx)
	}
}

// takeFailure consumes one synthetic failure when any remain.
func (s *Service) takeFailure() bool {
	return s.failRemaining.Add(-1) >= 0
}
