package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"vividd/internal/cache"
	"vividd/internal/common/fsutil"
	"vividd/internal/config"
	"vividd/internal/httpapi"
	"vividd/internal/ledger"
	"vividd/internal/registry"
	"vividd/internal/tasks"
)

func buildServeCmd(flags *rootFlags) *cobra.Command {
	var addr string
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP daemon",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(flags)
			if err != nil {
				return err
			}
			if addr != "" {
				cfg.Addr = addr
			}
			return runServe(cfg, newLogger(flags.logLevel))
		},
	}
	cmd.Flags().StringVar(&addr, "addr", "", "HTTP listen address, e.g. :8090 (overrides config)")
	return cmd
}

// loadConfig reads the config file when given and fills defaults.
func loadConfig(flags *rootFlags) (config.Config, error) {
	var cfg config.Config
	if flags.configPath != "" {
		loaded, err := config.Load(flags.configPath)
		if err != nil {
			return cfg, err
		}
		cfg = loaded
	}
	if cfg.Addr == "" {
		cfg.Addr = ":8090"
	}
	if v := os.Getenv("VIVIDD_ADDR"); v != "" {
		cfg.Addr = v
	}
	if cfg.CacheDir == "" {
		cfg.CacheDir = "./models"
	}
	if cfg.DataDir == "" {
		cfg.DataDir = "./data"
	}
	if cfg.OutputDir == "" {
		cfg.OutputDir = "./videos"
	}
	if cfg.SignupCredits == 0 {
		cfg.SignupCredits = 300
	}
	for _, dir := range []*string{&cfg.CacheDir, &cfg.DataDir, &cfg.OutputDir} {
		expanded, err := fsutil.ExpandHome(*dir)
		if err != nil {
			return cfg, err
		}
		*dir = expanded
	}
	return cfg, nil
}

// buildComponents wires ledger, cache and task store from config.
func buildComponents(cfg config.Config, log zerolog.Logger) (*ledger.Ledger, *cache.Manager, *tasks.Store, error) {
	lg, err := ledger.Open(cfg.DataDir, ledger.WithLogger(log.With().Str("component", "ledger").Logger()))
	if err != nil {
		return nil, nil, nil, fmt.Errorf("open ledger: %w", err)
	}

	var fetcher cache.Fetcher
	if cfg.DownloadTimeoutMinutes > 0 {
		fetcher = cache.NewHTTPFetcher(time.Duration(cfg.DownloadTimeoutMinutes) * time.Minute)
	}
	mgr, err := cache.New(registry.New(), cache.Config{
		CacheDir:            cfg.CacheDir,
		MarginPercent:       cfg.DiskMarginPercent,
		ProgressStepPercent: cfg.ProgressStepPercent,
		Fetcher:             fetcher,
		Logger:              log.With().Str("component", "cache").Logger(),
	})
	if err != nil {
		lg.Close()
		return nil, nil, nil, fmt.Errorf("open cache: %w", err)
	}

	// The real diffusion pipeline binds here once integrated; the stub
	// keeps the daemon end-to-end exercisable until then.
	var inf tasks.Inferencer = &tasks.StubInferencer{OutputDir: cfg.OutputDir}
	ts, err := tasks.New(lg, mgr, inf, tasks.Config{
		DataDir:         cfg.DataDir,
		Workers:         cfg.Workers,
		RefundOnFailure: cfg.RefundOnFailure,
		Logger:          log.With().Str("component", "tasks").Logger(),
	})
	if err != nil {
		lg.Close()
		return nil, nil, nil, fmt.Errorf("open task store: %w", err)
	}
	return lg, mgr, ts, nil
}

func runServe(cfg config.Config, log zerolog.Logger) error {
	lg, mgr, ts, err := buildComponents(cfg, log)
	if err != nil {
		return err
	}
	defer lg.Close()
	defer ts.Close()

	baseCtx, cancelBase := context.WithCancel(context.Background())
	defer cancelBase()
	httpapi.SetBaseContext(baseCtx)
	httpapi.SetLogger(log.With().Str("component", "http").Logger())

	mux := httpapi.NewMux(httpapi.Services{
		Ledger: lg, Cache: mgr, Tasks: ts,
		SignupCredits: cfg.SignupCredits,
	})
	srv := &http.Server{Addr: cfg.Addr, Handler: mux}

	go func() {
		log.Info().Str("addr", cfg.Addr).Str("cache_dir", cfg.CacheDir).Msg("vividd listening")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("server error")
		}
	}()

	// Graceful shutdown (Ctrl+C / SIGTERM)
	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	<-stop
	cancelBase()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		log.Error().Err(err).Msg("graceful shutdown error")
	}
	return nil
}
