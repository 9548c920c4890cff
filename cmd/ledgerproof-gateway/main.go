package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/davidahmann/ledgerproof/internal/api"
	"github.com/davidahmann/ledgerproof/internal/audit"
	"github.com/davidahmann/ledgerproof/internal/audit/pgstore"
	"github.com/davidahmann/ledgerproof/internal/audit/sqlstore"
	"github.com/davidahmann/ledgerproof/internal/auth"
	"github.com/davidahmann/ledgerproof/internal/batch"
	"github.com/davidahmann/ledgerproof/internal/config"
	"github.com/davidahmann/ledgerproof/internal/logging"
	"github.com/davidahmann/ledgerproof/internal/metrics"
)

const (
	defaultNamespace    = "ledgerproof"
	defaultMaxBatchSize = 1000
	defaultAuditCap     = 10000
	shutdownGrace       = 10 * time.Second
)

func main() {
	if err := runFn(os.Args[1:], os.Getenv, listenAndServe, newServer); err != nil {
		fatalf("server error: %v", err)
	}
}

var runFn = run
var fatalf = log.Fatalf

func newServer(cfg config.Config, logger *zap.Logger) (*http.Server, error) {
	h := &api.Handler{
		Auth:         auth.NewTokenAuthenticator(cfg.Auth.DevToken),
		Options:      cfg.LedgerOptions(),
		Logger:       logger,
		MaxBatchSize: defaultMaxBatchSize,
		BatchTimeout: cfg.BatchTimeout(),
	}

	if cfg.Metrics.Enabled {
		reg := prometheus.NewRegistry()
		reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

		namespace := firstNonEmpty(cfg.Metrics.Namespace, defaultNamespace)
		m, err := metrics.New(reg, namespace)
		if err != nil {
			return nil, err
		}
		h.Metrics = m
		h.MetricsHandler = promhttp.HandlerFor(reg, promhttp.HandlerOpts{Registry: reg})
	}

	h.Batch = &batch.Verifier{
		Concurrency: cfg.Batch.Concurrency,
		Options:     h.Options,
		Metrics:     h.Metrics,
	}

	store, err := openAuditStore(cfg.Audit)
	if err != nil {
		return nil, err
	}
	h.Audit = store

	server := &http.Server{
		Addr:              cfg.ListenAddr,
		Handler:           api.NewRouter(h),
		ReadHeaderTimeout: 5 * time.Second,
	}
	if store != nil {
		server.RegisterOnShutdown(func() { _ = store.Close() })
	}
	return server, nil
}

// openAuditStore returns nil when the audit log is disabled.
func openAuditStore(cfg config.AuditConfig) (audit.Store, error) {
	switch cfg.Driver {
	case "":
		return nil, nil
	case config.AuditMemory:
		capacity := cfg.Capacity
		if capacity == 0 {
			capacity = defaultAuditCap
		}
		return audit.NewInMemoryStore(capacity), nil
	case config.AuditSQLite:
		s, err := sqlstore.OpenSQLite(cfg.DSN)
		if err != nil {
			return nil, err
		}
		return s, nil
	case config.AuditPostgres:
		s, err := pgstore.OpenPostgres(cfg.DSN)
		if err != nil {
			return nil, err
		}
		return s, nil
	default:
		return nil, fmt.Errorf("unsupported audit driver: %s", cfg.Driver)
	}
}

type envFn func(string) string
type listenFn func(*http.Server) error
type serverFactory func(cfg config.Config, logger *zap.Logger) (*http.Server, error)

func run(args []string, getenv envFn, listen listenFn, factory serverFactory) error {
	fs := flag.NewFlagSet("ledgerproof-gateway", flag.ContinueOnError)
	configPath := fs.String("config", "", "path to ledgerproof config file")
	if err := fs.Parse(args); err != nil {
		return err
	}

	cfgFile := *configPath
	if cfgFile == "" {
		cfgFile = getenv("LEDGERPROOF_CONFIG_PATH")
	}

	var cfg config.Config
	if cfgFile != "" {
		loaded, err := config.Load(cfgFile)
		if err != nil {
			return err
		}
		cfg = loaded
	}

	cfg.ListenAddr = firstNonEmpty(getenv("LEDGERPROOF_LISTEN_ADDR"), cfg.ListenAddr, ":8080")
	cfg.Auth.DevToken = firstNonEmpty(getenv("LEDGERPROOF_DEV_TOKEN"), cfg.Auth.DevToken)
	if raw := getenv("LEDGERPROOF_METRICS_ENABLED"); raw != "" {
		enabled, err := strconv.ParseBool(raw)
		if err != nil {
			return err
		}
		cfg.Metrics.Enabled = enabled
	}

	logger, err := logging.New(os.Stderr, cfg.Log.Level, cfg.Log.JSON)
	if err != nil {
		return err
	}
	defer func() { _ = logger.Sync() }()

	server, err := factory(cfg, logger)
	if err != nil {
		return err
	}

	logger.Info("ledgerproof-gateway listening",
		zap.String("addr", cfg.ListenAddr),
		zap.Bool("auth", cfg.Auth.DevToken != ""),
		zap.Bool("metrics", cfg.Metrics.Enabled),
		zap.String("audit", cfg.Audit.Driver),
	)
	if err := listen(server); err != nil && err != http.ErrServerClosed {
		return err
	}
	return nil
}

func listenAndServe(server *http.Server) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	return serveUntil(ctx, server)
}

// serveUntil serves until ctx ends, then drains in-flight requests and runs
// the server's shutdown hooks.
func serveUntil(ctx context.Context, server *http.Server) error {
	errCh := make(chan error, 1)
	go func() { errCh <- server.ListenAndServe() }()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownGrace)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		return err
	}
	if err := <-errCh; err != http.ErrServerClosed {
		return err
	}
	return nil
}

func firstNonEmpty(values ...string) string {
	for _, value := range values {
		if value != "" {
			return value
		}
	}
	return ""
}
