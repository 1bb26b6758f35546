// Package app orchestrates all components of razorwire.
package app

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/codewired/razorwire/internal/config"
	"github.com/codewired/razorwire/internal/hub"
	"github.com/codewired/razorwire/internal/reload"
	httpserver "github.com/codewired/razorwire/internal/server/http"
	"github.com/codewired/razorwire/internal/server/http/middleware"
	"github.com/codewired/razorwire/internal/server/sse"
	"github.com/codewired/razorwire/internal/server/websocket"
)

// shutdownTimeout bounds graceful HTTP shutdown.
const shutdownTimeout = 10 * time.Second

// App is the main application struct that wires all components.
type App struct {
	cfg     *config.Config
	version string

	hub         *hub.Hub
	httpServer  *httpserver.Server
	rateLimiter *middleware.RateLimiter
	reloader    *reload.Publisher

	mu      sync.RWMutex
	running bool
}

// New creates a new App instance.
func New(cfg *config.Config, version string) (*App, error) {
	h := hub.NewWithCapacity(cfg.Hub.BufferCapacity)
	authorizer := hub.NewPatternAuthorizer(cfg.Auth.ChannelPatterns...)

	sseHandler := sse.NewHandler(h, authorizer, time.Duration(cfg.Hub.HeartbeatSecs)*time.Second)
	wsHandler := websocket.NewHandler(h, authorizer)

	limiter := middleware.NewRateLimiter(
		middleware.WithMaxRequests(cfg.Limits.PublishPerMinute),
		middleware.WithWindow(time.Minute),
	)

	a := &App{
		cfg:         cfg,
		version:     version,
		hub:         h,
		rateLimiter: limiter,
		httpServer: httpserver.New(
			cfg.Server.Host,
			cfg.Server.Port,
			h,
			sseHandler,
			wsHandler,
			cfg.Auth.PublishToken,
			limiter,
		),
	}

	if cfg.Reload.Enabled {
		a.reloader = reload.NewPublisher(cfg.Reload.Path, h, cfg.Reload.DebounceMS)
	}

	return a, nil
}

// Hub returns the application's stream hub, for embedding producers.
func (a *App) Hub() *hub.Hub {
	return a.hub
}

// Start starts all components and blocks until ctx is cancelled.
func (a *App) Start(ctx context.Context) error {
	a.mu.Lock()
	if a.running {
		a.mu.Unlock()
		return fmt.Errorf("application is already running")
	}
	a.running = true
	a.mu.Unlock()

	if err := a.httpServer.Start(); err != nil {
		return fmt.Errorf("failed to start http server: %w", err)
	}

	if a.reloader != nil {
		if err := a.reloader.Start(ctx); err != nil {
			return fmt.Errorf("failed to start reload publisher: %w", err)
		}
	}

	log.Info().Str("version", a.version).Msg("razorwire started")

	<-ctx.Done()

	return a.stop()
}

// stop shuts components down in reverse start order.
func (a *App) stop() error {
	a.mu.Lock()
	if !a.running {
		a.mu.Unlock()
		return nil
	}
	a.running = false
	a.mu.Unlock()

	if a.reloader != nil {
		if err := a.reloader.Stop(); err != nil {
			log.Warn().Err(err).Msg("reload publisher stop failed")
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := a.httpServer.Stop(shutdownCtx); err != nil {
		return fmt.Errorf("http server shutdown: %w", err)
	}

	a.rateLimiter.Close()

	log.Info().Msg("razorwire stopped")
	return nil
}

// IsRunning returns true while Start is active.
func (a *App) IsRunning() bool {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.running
}
