package main

import (
	"context"
	"database/sql"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"sort"
	"strings"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	_ "modernc.org/sqlite"

	"github.com/koopmanstack/koopman-verify/internal/api"
	"github.com/koopmanstack/koopman-verify/internal/bounds"
	"github.com/koopmanstack/koopman-verify/internal/config"
	"github.com/koopmanstack/koopman-verify/internal/history"
	"github.com/koopmanstack/koopman-verify/internal/metrics"
	"github.com/koopmanstack/koopman-verify/internal/services"
	"github.com/koopmanstack/koopman-verify/internal/trajectory"
	"github.com/koopmanstack/koopman-verify/internal/utils"
	"github.com/koopmanstack/koopman-verify/pkg/cache"
)

func main() {
	var (
		configPath      string
		calibrationPath string
		dataArg         string
		outPath         string
		serve           bool
		listRuns        bool
	)
	flag.StringVar(&configPath, "config", "", "Path to configuration file")
	flag.StringVar(&calibrationPath, "calibration", "", "Path to calibration parameter file (overrides config)")
	flag.StringVar(&dataArg, "data", "", "Comma-separated trajectory files or globs (overrides config data dir)")
	flag.StringVar(&outPath, "out", "", "Report destination; stdout when empty")
	flag.BoolVar(&serve, "serve", false, "Run the HTTP validation API instead of a one-shot batch")
	flag.BoolVar(&listRuns, "runs", false, "List recorded validation runs and exit")
	flag.Parse()

	cfg, err := config.Load(configPath)
	if err != nil {
		slog.Error("failed to load config", slog.String("path", configPath), slog.Any("error", err))
		os.Exit(1)
	}
	if calibrationPath != "" {
		cfg.Calibration.Path = calibrationPath
	}

	logger := utils.NewLogger(cfg.Logging.Level, cfg.Logging.JSON)

	if err := metrics.Register(prometheus.DefaultRegisterer); err != nil {
		logger.Error("failed to register metrics", slog.Any("error", err))
		os.Exit(1)
	}

	var hist *history.Store
	if cfg.History.Enabled {
		db, err := sql.Open("sqlite", cfg.History.Path)
		if err != nil {
			logger.Error("failed to open history database", slog.String("path", cfg.History.Path), slog.Any("error", err))
			os.Exit(1)
		}
		defer db.Close()
		hist, err = history.NewStore(db)
		if err != nil {
			logger.Error("failed to initialise history store", slog.Any("error", err))
			os.Exit(1)
		}
	}

	if listRuns {
		if hist == nil {
			logger.Error("run history is disabled; enable history in the configuration")
			os.Exit(1)
		}
		printRuns(hist)
		return
	}

	params, err := bounds.LoadParams(cfg.Calibration.Path)
	if err != nil {
		logger.Error("failed to load calibration", slog.String("path", cfg.Calibration.Path), slog.Any("error", err))
		os.Exit(1)
	}

	loader := services.NewCachingLoader(trajectory.NewLoader(), trajectoryCache(serve, cfg))

	svc, err := services.NewValidationService(logger, params, cfg.Validation, cfg.Data.Workers, loader, hist)
	if err != nil {
		logger.Error("failed to build validation service", slog.Any("error", err))
		os.Exit(1)
	}
	bound := svc.Bound()
	logger.Info("theoretical bound derived",
		slog.Float64("delta_r", bound.DeltaR),
		slog.Float64("probability", bound.Probability),
	)

	if serve {
		runServer(cfg, logger, svc)
		return
	}

	sources, err := resolveSources(dataArg, cfg.Data)
	if err != nil {
		logger.Error("failed to resolve trajectory sources", slog.Any("error", err))
		os.Exit(1)
	}
	if len(sources) == 0 {
		logger.Error("no trajectory files found", slog.String("dir", cfg.Data.Dir), slog.String("pattern", cfg.Data.Pattern))
		os.Exit(1)
	}

	_, batch, text, err := svc.Run(context.Background(), sources)
	if err != nil {
		logger.Error("validation run failed", slog.Any("error", err))
		os.Exit(1)
	}

	if outPath == "" {
		fmt.Print(text)
	} else if err := os.WriteFile(outPath, []byte(text), 0o644); err != nil {
		logger.Error("failed to write report", slog.String("path", outPath), slog.Any("error", err))
		os.Exit(1)
	}

	if len(batch.Failures) > 0 {
		os.Exit(2)
	}
}

// trajectoryCache is only useful in serve mode; one-shot runs read each file
// exactly once.
func trajectoryCache(serve bool, cfg *config.Config) *cache.TrajectoryCache {
	if !serve {
		return nil
	}
	return cache.New(cfg.Data.CacheTTL)
}

func resolveSources(dataArg string, data config.DataConfig) ([]string, error) {
	patterns := make([]string, 0, 1)
	if dataArg != "" {
		for _, part := range strings.Split(dataArg, ",") {
			if part = strings.TrimSpace(part); part != "" {
				patterns = append(patterns, part)
			}
		}
	} else {
		patterns = append(patterns, filepath.Join(data.Dir, data.Pattern))
	}

	seen := make(map[string]struct{})
	sources := make([]string, 0)
	for _, pattern := range patterns {
		matches, err := filepath.Glob(pattern)
		if err != nil {
			return nil, fmt.Errorf("bad glob %q: %w", pattern, err)
		}
		if matches == nil {
			// Not a glob hit; treat the pattern as a literal path so missing
			// files surface as per-source load errors.
			matches = []string{pattern}
		}
		for _, m := range matches {
			if _, ok := seen[m]; ok {
				continue
			}
			seen[m] = struct{}{}
			sources = append(sources, m)
		}
	}
	sort.Strings(sources)
	return sources, nil
}

func printRuns(hist *history.Store) {
	runs, err := hist.ListRuns(context.Background(), 20)
	if err != nil {
		slog.Error("failed to list runs", slog.Any("error", err))
		os.Exit(1)
	}
	for _, run := range runs {
		fmt.Printf("%s  %s  validated=%d passed=%d failures=%d mean_empirical=%.1f%%\n",
			run.ID, run.CreatedAt.Format(time.RFC3339), run.Total, run.Passed, run.Failures, run.MeanEmpirical*100)
	}
}

func runServer(cfg *config.Config, logger *slog.Logger, svc *services.ValidationService) {
	handler := api.NewHandler(svc, logger)
	server, err := api.NewServer(cfg.Server, handler.Routes())
	if err != nil {
		logger.Error("failed to create HTTP server", slog.Any("error", err))
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	var metricsServer *http.Server
	if cfg.Server.MetricsAddress != "" {
		mux := http.NewServeMux()
		mux.Handle("/metrics", promhttp.Handler())
		metricsServer = &http.Server{
			Addr:         cfg.Server.MetricsAddress,
			Handler:      mux,
			ReadTimeout:  5 * time.Second,
			WriteTimeout: 15 * time.Second,
		}
		go func() {
			logger.Info("metrics server listening", slog.String("address", cfg.Server.MetricsAddress))
			if err := metricsServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				logger.Error("metrics server exited", slog.Any("error", err))
				stop()
			}
		}()
	}

	go func() {
		logger.Info("validation API listening", slog.String("address", server.Address()))
		if serveErr := server.Start(); serveErr != nil {
			logger.Error("HTTP server exited", slog.Any("error", serveErr))
			stop()
		}
	}()

	<-ctx.Done()
	logger.Info("shutdown signal received")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.GracefulTimeout)
	defer cancel()
	server.Shutdown(shutdownCtx)

	if metricsServer != nil {
		metricsCtx, cancelMetrics := context.WithTimeout(context.Background(), 5*time.Second)
		if err := metricsServer.Shutdown(metricsCtx); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Warn("metrics server shutdown", slog.Any("error", err))
		}
		cancelMetrics()
	}

	logger.Info("verify-engine stopped")
}
