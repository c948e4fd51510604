// Command hostel serves the hostel mess-bill API.
package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/shopspring/decimal"
	"github.com/xraph/go-utils/metrics"

	"github.com/jitheshjr/hostel"
	"github.com/jitheshjr/hostel/api"
	audithook "github.com/jitheshjr/hostel/audit_hook"
	"github.com/jitheshjr/hostel/observability"
	"github.com/jitheshjr/hostel/store"
	"github.com/jitheshjr/hostel/store/bolt"
	"github.com/jitheshjr/hostel/store/memory"
)

func main() {
	cfg, err := loadConfig()
	if err != nil {
		slog.Error("hostel: config", "error", err)
		os.Exit(1)
	}

	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		AddSource: true,
		Level:     cfg.LogLevel,
	}))

	if err := run(cfg, logger); err != nil {
		logger.Error("hostel: exited", "error", err)
		os.Exit(1)
	}
}

func run(cfg config, logger *slog.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	s, err := openStore(cfg)
	if err != nil {
		return err
	}

	collector := metrics.NewMetricsCollector("hostel")
	if err := collector.Start(ctx); err != nil {
		return err
	}
	defer func() { _ = collector.Stop(context.Background()) }()

	opts := []hostel.Option{
		hostel.WithLogger(logger),
		hostel.WithPlugin(audithook.New(audithook.LogRecorder(logger), audithook.WithLogger(logger))),
		hostel.WithPlugin(observability.NewMetricsExtension(collector)),
	}
	if cfg.MinStreakDays > 0 {
		opts = append(opts, hostel.WithMinStreakDays(cfg.MinStreakDays))
	}
	if cfg.StipendSupplement != "" {
		supplement, err := decimal.NewFromString(cfg.StipendSupplement)
		if err != nil {
			return hostel.ValidationError{Field: "stipend_supplement", Message: err.Error()}
		}
		opts = append(opts, hostel.WithStipendSupplement(supplement))
	}

	eng := hostel.New(s, opts...)
	if err := eng.Start(ctx); err != nil {
		return err
	}
	defer func() {
		if err := eng.Stop(); err != nil {
			logger.Warn("hostel: stop engine", "error", err)
		}
	}()

	a := api.New(eng,
		api.WithLogger(logger),
		api.WithBasePath(cfg.BasePath),
		api.WithCORSOrigins(cfg.CORSOrigins...),
		api.WithRateLimit(cfg.RateLimit, cfg.RateWindow),
		api.WithMetrics(collector),
	)
	srv := &http.Server{
		Addr:              cfg.Addr,
		Handler:           a.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("hostel: listening",
			"addr", cfg.Addr,
			"base_path", a.BasePath(),
			"store", cfg.Store,
		)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	logger.Info("hostel: shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}

func openStore(cfg config) (store.Store, error) {
	if cfg.Store == storeBolt {
		return bolt.Open(cfg.BoltPath)
	}
	return memory.New(), nil
}
