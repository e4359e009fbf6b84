package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/charmbracelet/log"

	"github.com/fabrica-dev/fabrica/internal/catalog"
	"github.com/fabrica-dev/fabrica/internal/config"
	"github.com/fabrica-dev/fabrica/internal/persist"
	"github.com/fabrica-dev/fabrica/internal/server"
	"github.com/fabrica-dev/fabrica/internal/sim"
	"github.com/fabrica-dev/fabrica/internal/world"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatal("Failed to load configuration", "error", err)
	}

	host := flag.String("host", cfg.Server.Host, "listen address")
	port := flag.String("port", cfg.Server.Port, "listen port")
	saveDir := flag.String("save-dir", "", "directory holding the world database")
	flag.Parse()

	cfg.Server.Host = *host
	cfg.Server.Port = *port
	if *saveDir != "" {
		cfg.World.DBPath = filepath.Join(*saveDir, "world.db")
	}

	setupLogging(cfg.Logging)
	log.Debug("Configuration loaded", "host", cfg.Server.Host, "port", cfg.Server.Port, "db_path", cfg.World.DBPath, "tick_rate", cfg.World.TickRate)

	if dir := filepath.Dir(cfg.World.DBPath); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			log.Fatal("Failed to create save directory", "dir", dir, "error", err)
		}
	}

	db, err := persist.Open(cfg.World.DBPath)
	if err != nil {
		log.Fatal("Failed to open world database", "path", cfg.World.DBPath, "error", err)
	}
	defer db.Close()

	ctx := context.Background()
	seed, err := resolveSeed(ctx, db, cfg.World.Seed)
	if err != nil {
		log.Fatal("Failed to resolve world seed", "error", err)
	}

	cat := catalog.Load(cfg.World.ContentDB)
	store := world.NewStore(world.NewGenerator(seed), db)
	if err := restoreCounters(ctx, db, store); err != nil {
		log.Fatal("Failed to restore world state", "error", err)
	}

	srv, err := server.New(cfg, cat, sim.New(store, cat), db)
	if err != nil {
		log.Fatal("Failed to assemble server", "error", err)
	}
	if err := srv.Listen(); err != nil {
		log.Fatal("Failed to start server", "error", err)
	}

	runCtx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() {
		quit := make(chan os.Signal, 1)
		signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
		sig := <-quit
		log.Info("Shutting down server...", "signal", sig.String())
		cancel()
		time.AfterFunc(cfg.Server.ShutdownTimeout, func() {
			log.Error("Shutdown timed out, exiting", "timeout", cfg.Server.ShutdownTimeout)
			os.Exit(1)
		})
	}()

	log.Info("Starting Fabrica server", "addr", srv.Addr().String(), "seed", seed, "tick", store.Tick)
	if err := srv.Run(runCtx); err != nil {
		log.Fatal("Server failed", "error", err)
	}
	log.Info("Server exited")
}

func setupLogging(cfg config.LoggingConfig) {
	switch cfg.Level {
	case "debug":
		log.SetLevel(log.DebugLevel)
	case "info":
		log.SetLevel(log.InfoLevel)
	case "warn":
		log.SetLevel(log.WarnLevel)
	case "error":
		log.SetLevel(log.ErrorLevel)
	default:
		log.Warn("Invalid log level, using info", "level", cfg.Level)
		log.SetLevel(log.InfoLevel)
	}

	if cfg.Format == "pretty" || !cfg.Structured {
		log.SetReportCaller(true)
		log.SetReportTimestamp(true)
	}

	log.SetPrefix("[fabrica] ")
}

// resolveSeed prefers the seed baked into an existing save; a configured
// seed only applies to a fresh world.
func resolveSeed(ctx context.Context, db *persist.Store, configured int64) (int64, error) {
	seed, ok, err := db.Seed(ctx)
	if err != nil {
		return 0, err
	}
	if ok {
		if configured != 0 && configured != seed {
			log.Warn("Ignoring configured seed, world already generated", "saved", seed, "configured", configured)
		}
		return seed, nil
	}

	if configured == 0 {
		configured = time.Now().UnixNano()
	}
	if err := db.SetSeed(ctx, configured); err != nil {
		return 0, err
	}
	log.Info("Generated new world", "seed", configured)
	return configured, nil
}

// restoreCounters carries the tick count and entity id sequence across
// restarts so saved entities never collide with new ones.
func restoreCounters(ctx context.Context, db *persist.Store, store *world.Store) error {
	if tick, ok, err := db.Tick(ctx); err != nil {
		return err
	} else if ok {
		store.Tick = tick
	}
	if id, ok, err := db.NextEntityID(ctx); err != nil {
		return err
	} else if ok {
		store.SetNextEntityID(id)
	}
	return nil
}
