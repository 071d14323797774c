// Package gateway exposes the operator-facing HTTP surface: health, status,
// Prometheus metrics, the take log API, and a live watchdog event feed.
package gateway

import (
	"context"
	"errors"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/stagehand-vp/stagehand/internal/metrics"
	"github.com/stagehand-vp/stagehand/internal/takelog"
	"github.com/stagehand-vp/stagehand/internal/watchdog"
)

// WatchdogSource is the watchdog view the gateway needs.
type WatchdogSource interface {
	Snapshot() []watchdog.TaskStatus
	Subscribe() (<-chan watchdog.Event, func())
}

// TakeSource is the take-log view the gateway needs.
type TakeSource interface {
	List(ctx context.Context, limit int) ([]takelog.Entry, error)
	Record(ctx context.Context, slateName string, take int) (takelog.Entry, error)
	NextTake(ctx context.Context, slateName string) (int, error)
}

// Config holds gateway configuration.
type Config struct {
	Bind         string
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
	Logger       *slog.Logger
}

func (c Config) withDefaults() Config {
	if c.Bind == "" {
		c.Bind = "127.0.0.1:8990"
	}
	if c.ReadTimeout <= 0 {
		c.ReadTimeout = 10 * time.Second
	}
	if c.WriteTimeout <= 0 {
		c.WriteTimeout = 30 * time.Second
	}
	if c.Logger == nil {
		c.Logger = slog.Default()
	}
	return c
}

// Gateway is the operator HTTP server.
type Gateway struct {
	cfg       Config
	watchdog  WatchdogSource
	takes     TakeSource
	metrics   *metrics.Set
	version   string

	fetcher      Fetcher
	downloadsDir string

	server    *http.Server
	addr      string
	startedAt time.Time
}

// New creates a Gateway. The watchdog, take log, and metrics set are all
// optional; endpoints degrade gracefully when their backing service is absent.
func New(cfg Config, wd WatchdogSource, takes TakeSource, m *metrics.Set, version string) *Gateway {
	return &Gateway{
		cfg:      cfg.withDefaults(),
		watchdog: wd,
		takes:    takes,
		metrics:  m,
		version:  version,
	}
}

// Start binds the listener and serves in a background goroutine.
func (g *Gateway) Start(ctx context.Context) error {
	g.startedAt = time.Now()

	g.server = &http.Server{
		Addr:         g.cfg.Bind,
		Handler:      g.buildRouter(),
		ReadTimeout:  g.cfg.ReadTimeout,
		WriteTimeout: g.cfg.WriteTimeout,
	}

	var lc net.ListenConfig
	ln, err := lc.Listen(ctx, "tcp", g.cfg.Bind)
	if err != nil {
		return errors.New("gateway: listen failed: " + err.Error())
	}

	g.addr = ln.Addr().String()

	go func() {
		if err := g.server.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			g.cfg.Logger.Error("gateway: serve failed", "error", err)
		}
	}()

	g.cfg.Logger.Info("gateway started", "bind", g.addr)
	return nil
}

// Addr returns the bound listener address. Only valid after Start.
func (g *Gateway) Addr() string {
	return g.addr
}

// Stop shuts the server down gracefully.
func (g *Gateway) Stop(ctx context.Context) error {
	if g.server == nil {
		return nil
	}
	return g.server.Shutdown(ctx)
}
