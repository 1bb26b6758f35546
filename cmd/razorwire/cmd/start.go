package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/codewired/razorwire/internal/app"
	"github.com/codewired/razorwire/internal/config"
)

var (
	host       string
	port       int
	reloadPath string
)

// startCmd represents the start command.
var startCmd = &cobra.Command{
	Use:   "start",
	Short: "Start the razorwire server",
	Long: `Start the razorwire server and begin accepting publishes and
stream subscriptions.

Endpoints:
  POST /streams/{channel}      publish a message to a channel
  GET  /streams/{channel}      subscribe via server-sent events
  GET  /streams/{channel}/ws   subscribe via WebSocket
  GET  /api/status             channel and subscriber counts

Example:
  razorwire start
  razorwire start --port 9000
  razorwire start --reload-path ./fragments   # publish file changes live`,
	RunE: runStart,
}

func init() {
	startCmd.Flags().StringVar(&host, "host", "", "bind address (default: 127.0.0.1)")
	startCmd.Flags().IntVar(&port, "port", 0, "server port (default: 8970)")
	startCmd.Flags().StringVar(&reloadPath, "reload-path", "", "fragment directory to watch and publish on change")
}

func runStart(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	// Override config with flags
	if host != "" {
		cfg.Server.Host = host
	}
	if port != 0 {
		cfg.Server.Port = port
	}
	if reloadPath != "" {
		cfg.Reload.Enabled = true
		cfg.Reload.Path = reloadPath
	}

	// Re-validate after overrides
	if err := config.Validate(cfg); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}

	setupLogging(cfg)

	log.Info().
		Str("version", version).
		Str("host", cfg.Server.Host).
		Int("port", cfg.Server.Port).
		Bool("reload", cfg.Reload.Enabled).
		Msg("starting razorwire")

	application, err := app.New(cfg, version)
	if err != nil {
		return fmt.Errorf("failed to create application: %w", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		sig := <-sigChan
		log.Info().Str("signal", sig.String()).Msg("received shutdown signal")
		cancel()
	}()

	if err := application.Start(ctx); err != nil {
		return fmt.Errorf("application error: %w", err)
	}

	return nil
}

func loadConfig() (*config.Config, error) {
	return config.Load(cfgFile)
}

func setupLogging(cfg *config.Config) {
	level, err := zerolog.ParseLevel(cfg.Logging.Level)
	if err != nil {
		level = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(level)

	if cfg.Logging.Format == "console" || verbose {
		log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})
	}

	if verbose {
		zerolog.SetGlobalLevel(zerolog.DebugLevel)
	}
}
