package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/infectnet/server/internal/config"
	"github.com/infectnet/server/internal/core/status"
	"github.com/infectnet/server/internal/engine"
	gonet "github.com/infectnet/server/internal/net"
	"github.com/infectnet/server/internal/net/record"
	"github.com/infectnet/server/internal/persist"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"golang.org/x/sync/errgroup"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "fatal: %v\n", err)
		os.Exit(1)
	}
}

// ── Startup display helpers ────────────────────────────────────────

func printBanner(serverName string) {
	fmt.Println()
	fmt.Println("\033[36;1m  ┌───────────────────────────────────────────┐\033[0m")
	fmt.Println("\033[36;1m  │\033[0m              InfectNet server             \033[36;1m│\033[0m")
	fmt.Println("\033[36;1m  └───────────────────────────────────────────┘\033[0m")
	fmt.Println()
	fmt.Printf("  \033[1mserver:\033[0m %s\n\n", serverName)
}

func printSection(title string) {
	lineLen := max(46-len(title)-1, 3)
	fmt.Printf("  \033[33m── %s %s\033[0m\n", title, strings.Repeat("─", lineLen))
}

func printOK(msg string) {
	fmt.Printf("  \033[32m✓\033[0m %s\n", msg)
}

func printReady(msg string) {
	fmt.Printf("  \033[32m▶\033[0m %s\n", msg)
}

// ── Main server logic ─────────────────────────────────────────────

func run() error {
	// 1. Load config
	cfgPath := "config/server.toml"
	if p := os.Getenv("INFECTNET_CONFIG"); p != "" {
		cfgPath = p
	}
	cfg, err := config.Load(cfgPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	// 2. Init logger
	log, err := newLogger(cfg.Logging)
	if err != nil {
		return fmt.Errorf("init logger: %w", err)
	}
	defer log.Sync()

	printBanner(cfg.Server.Name)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// 3. Archive database, if configured
	deps := engine.Deps{Log: log.Named("engine")}
	if cfg.Database.Driver != "" {
		printSection("database")
		dbCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
		defer cancel()

		db, err := persist.NewDB(dbCtx, cfg.Database, log.Named("db"))
		if err != nil {
			return fmt.Errorf("database: %w", err)
		}
		defer db.Close()
		printOK(fmt.Sprintf("%s connected", db.Dialect()))

		if err := persist.RunMigrations(dbCtx, db); err != nil {
			return fmt.Errorf("migrations: %w", err)
		}
		printOK("migrations applied")
		fmt.Println()

		deps.Codes = persist.NewCodeArchive(db)
		deps.Players = persist.NewPlayerArchive(db)
	}

	// 4. Engine
	printSection("engine")
	eng, err := engine.New(cfg, deps)
	if err != nil {
		return fmt.Errorf("engine: %w", err)
	}
	printOK(fmt.Sprintf("world %dx%d (%s)", cfg.World.Width, cfg.World.Height, cfg.World.Generator))

	if err := eng.Restore(ctx); err != nil {
		return fmt.Errorf("restore: %w", err)
	}
	printOK(fmt.Sprintf("%d players", eng.Players().Count()))
	fmt.Println()

	// 5. Status consumers
	hub := gonet.NewHub(eng.Players(), gonet.Options{
		SendBuffer:   cfg.Status.SessionBuffer,
		WriteTimeout: cfg.HTTP.WriteTimeout,
		ReadTimeout:  cfg.HTTP.ReadTimeout,
	}, log.Named("hub"))
	consumers := status.Fanout{hub}
	if cfg.Status.RecordDir != "" {
		rec := record.NewRecorder(filepath.Clean(cfg.Status.RecordDir), "status", log.Named("record"))
		defer rec.Close()
		consumers = append(consumers, rec)
	}
	if err := eng.SetStatusConsumer(consumers); err != nil {
		return err
	}

	// 6. HTTP
	mux := http.NewServeMux()
	mux.Handle("GET /status", hub.Handler())
	gonet.NewAPI(eng, log.Named("api")).Register(mux)
	srv := &http.Server{
		Addr:              cfg.HTTP.BindAddress,
		Handler:           mux,
		ReadHeaderTimeout: 10 * time.Second,
	}

	if cfg.Engine.AutoStart {
		if err := eng.Start(cfg.Engine.TickRate); err != nil {
			return fmt.Errorf("start engine: %w", err)
		}
	}

	printSection("ready")
	printReady(fmt.Sprintf("listening on %s", cfg.HTTP.BindAddress))
	printReady(fmt.Sprintf("tick %s", cfg.Engine.TickRate))
	fmt.Println()

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		log.Info("shutting down")

		stopCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if !eng.StopBlocking(stopCtx) {
			log.Warn("game loop did not confirm stop")
		}
		hub.Close()
		return srv.Shutdown(stopCtx)
	})

	err = g.Wait()
	log.Info("server stopped", zap.Uint64("ticks", eng.Tick()))
	return err
}

func newLogger(cfg config.LoggingConfig) (*zap.Logger, error) {
	var level zapcore.Level
	if err := level.UnmarshalText([]byte(cfg.Level)); err != nil {
		level = zapcore.InfoLevel
	}

	var zapCfg zap.Config
	if cfg.Format == "json" {
		zapCfg = zap.NewProductionConfig()
	} else {
		zapCfg = zap.NewDevelopmentConfig()
		zapCfg.EncoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder
		zapCfg.EncoderConfig.EncodeTime = zapcore.TimeEncoderOfLayout("15:04:05")
		zapCfg.EncoderConfig.ConsoleSeparator = "  "
		zapCfg.DisableCaller = true
		zapCfg.DisableStacktrace = true
	}
	zapCfg.Level = zap.NewAtomicLevelAt(level)

	return zapCfg.Build()
}
