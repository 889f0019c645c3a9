// lumen-core - networked lighting control engine
//
// lumend drives DMX lighting over Art-Net and sACN (E1.31). It accepts
// device commands over MQTT, renders fades through the animation
// engine, and transmits the resulting universes to nodes on the
// network. Inbound DMX from consoles is merged through the same
// priority-arbitrated universe buffer.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	_ "github.com/openlumen/lumen-core/migrations"

	"github.com/openlumen/lumen-core/internal/controller"
	"github.com/openlumen/lumen-core/internal/infrastructure/config"
	"github.com/openlumen/lumen-core/internal/infrastructure/logging"
)

// Version information - set at build time via ldflags
// Example: go build -ldflags "-X main.version=1.0.0 -X main.commit=abc123"
var (
	version = "dev"     // Semantic version (e.g., "1.0.0")
	commit  = "unknown" // Git commit hash
	date    = "unknown" // Build date
)

// Default configuration file path
const defaultConfigPath = "configs/config.yaml"

func main() {
	// Create a context that cancels on interrupt signals (Ctrl+C, SIGTERM)
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	if err := run(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// run is the actual application logic, separated from main for testability.
// Returning an error allows main to handle exit codes consistently.
func run(ctx context.Context) error {
	// Use default logger until config is loaded
	log := logging.Default()
	log.Info("starting lumen-core",
		"version", version,
		"commit", commit,
		"build_date", date,
	)

	configPath := getConfigPath()
	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}
	log.Info("configuration loaded", "path", configPath, "site", cfg.Site.Name)

	// Reinitialise logger with config settings
	log = logging.New(cfg.Logging, version)
	log.Info("logger initialised",
		"level", cfg.Logging.Level,
		"format", cfg.Logging.Format,
	)

	// The controller owns the state store, MQTT session, telemetry
	// client, and both transports. Run blocks until ctx is cancelled
	// and tears everything down in reverse order.
	ctrl, err := controller.New(cfg, log)
	if err != nil {
		return fmt.Errorf("building controller: %w", err)
	}

	if err := ctrl.Run(ctx); err != nil {
		return fmt.Errorf("running controller: %w", err)
	}

	log.Info("lumen-core stopped")
	return nil
}

// getConfigPath returns the configuration file path.
// Uses LUMEN_CONFIG environment variable if set, otherwise default.
func getConfigPath() string {
	if path := os.Getenv("LUMEN_CONFIG"); path != "" {
		return path
	}
	return defaultConfigPath
}
