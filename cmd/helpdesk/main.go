package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/miradorstack/helpdesk/internal/backend"
	"github.com/miradorstack/helpdesk/internal/classifier"
	"github.com/miradorstack/helpdesk/internal/config"
	"github.com/miradorstack/helpdesk/internal/incident"
	"github.com/miradorstack/helpdesk/internal/metrics"
	"github.com/miradorstack/helpdesk/internal/patterns"
	"github.com/miradorstack/helpdesk/internal/pipeline"
	"github.com/miradorstack/helpdesk/internal/store"
	"github.com/miradorstack/helpdesk/internal/sysinfo"
	"github.com/miradorstack/helpdesk/internal/utils"
)

func main() {
	var (
		configPath string
		model      string
		ask        string
		list       bool
		report     bool
	)
	flag.StringVar(&configPath, "config", "", "Path to configuration file")
	flag.StringVar(&model, "model", "", "Local model name (overrides backend.model)")
	flag.StringVar(&ask, "ask", "", "Answer a single question and exit")
	flag.BoolVar(&list, "list", false, "Print logged incidents and exit")
	flag.BoolVar(&report, "report", false, "Print recurring incident hotspots and exit")
	flag.Parse()

	cfg, err := config.Load(configPath)
	if err != nil {
		slog.Error("failed to load config", slog.String("path", configPath), slog.Any("error", err))
		os.Exit(1)
	}
	// The model may also be given as the only positional argument.
	if model == "" && flag.NArg() > 0 {
		model = flag.Arg(0)
	}
	if model != "" {
		cfg.Backend.Model = model
	}

	var logOut io.Writer
	if cfg.Logging.File != "" {
		rotating := utils.NewRotatingWriter(utils.RotatingFile{
			Path:       cfg.Logging.File,
			MaxSizeMB:  cfg.Logging.MaxSizeMB,
			MaxBackups: cfg.Logging.MaxBackups,
			MaxAgeDays: cfg.Logging.MaxAgeDays,
			Compress:   cfg.Logging.Compress,
		})
		defer rotating.Close()
		logOut = rotating
	}
	logger := utils.NewLogger(cfg.Logging.Level, cfg.Logging.JSON, logOut)
	slog.SetDefault(logger)

	if err := run(cfg, logger, ask, list, report); err != nil {
		logger.Error("helpdesk exited with error", slog.Any("error", err))
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func run(cfg *config.Config, logger *slog.Logger, ask string, list, report bool) error {
	appender, err := store.New(cfg.Store.Mode, cfg.Store.Path, cfg.Store.Dir)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if list || report {
		records, err := appender.ReadAll(ctx)
		if err != nil {
			return err
		}
		if report {
			return printHotspots(os.Stdout, patterns.NewMiner(logger, 3).Mine(records))
		}
		return printRecords(os.Stdout, records)
	}

	cls, err := classifier.NewFromFile(cfg.Rules.Path, logger)
	if err != nil {
		return fmt.Errorf("load rule pack: %w", err)
	}
	builder, err := incident.NewBuilder(cfg.Pipeline.NodeID)
	if err != nil {
		return err
	}
	completer, err := newCompleter(cfg.Backend)
	if err != nil {
		return err
	}
	logger.Info("starting helpdesk",
		slog.String("backend", cfg.Backend.Kind),
		slog.String("model", cfg.Backend.Model),
		slog.String("store", appender.Location()),
	)
	if pinger, ok := completer.(interface{ Ping(context.Context) error }); ok {
		pingCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
		if err := pinger.Ping(pingCtx); err != nil {
			logger.Warn("completion backend unreachable, answers will be placeholders", slog.Any("error", err))
		}
		cancel()
	}

	if err := metrics.Register(prometheus.DefaultRegisterer); err != nil {
		return fmt.Errorf("register metrics: %w", err)
	}
	metricsServer := startMetricsServer(cfg.Metrics.Address, logger)

	p := pipeline.NewPipeline(
		logger,
		sysinfo.NewCollector(),
		completer,
		cls,
		builder,
		appender,
		pipeline.Options{
			SystemPrompt:   cfg.Backend.SystemPrompt,
			BackendTimeout: cfg.Backend.Timeout,
			LatencyWindow:  cfg.Pipeline.LatencyWindow,
		},
	)

	if strings.TrimSpace(ask) != "" {
		err = answerOnce(ctx, p, ask, os.Stdout)
	} else {
		err = newSession(p, os.Stdin, os.Stdout).Run(ctx)
	}

	if metricsServer != nil {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		if shutdownErr := metricsServer.Shutdown(shutdownCtx); shutdownErr != nil && !errors.Is(shutdownErr, http.ErrServerClosed) {
			logger.Warn("metrics server shutdown", slog.Any("error", shutdownErr))
		}
		cancel()
	}
	logger.Info("helpdesk stopped")
	return err
}

func newCompleter(cfg config.BackendConfig) (backend.Completer, error) {
	switch cfg.Kind {
	case config.BackendOllama:
		return backend.NewOllamaClient(cfg.URL, cfg.Model, cfg.Timeout, backend.OllamaOptions{
			Temperature: cfg.Temperature,
			NumPredict:  cfg.NumPredict,
		}), nil
	case config.BackendOllamaCLI:
		return backend.NewOllamaCLI(cfg.Command, cfg.Model), nil
	case config.BackendStatic:
		return backend.Static{Answer: cfg.StaticAnswer}, nil
	default:
		return nil, fmt.Errorf("unknown backend kind %q", cfg.Kind)
	}
}

func startMetricsServer(address string, logger *slog.Logger) *http.Server {
	if address == "" {
		return nil
	}
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	server := &http.Server{
		Addr:         address,
		Handler:      mux,
		ReadTimeout:  5 * time.Second,
		WriteTimeout: 15 * time.Second,
	}
	go func() {
		logger.Info("metrics server listening", slog.String("address", address))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("metrics server exited", slog.Any("error", err))
		}
	}()
	return server
}
