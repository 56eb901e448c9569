package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"go.uber.org/zap"

	"refdesk/auditlog"
	"refdesk/auth"
	"refdesk/conflict"
	"refdesk/db"
	"refdesk/lookup"
)

const version = "1.0.0"

func main() {
	_ = godotenv.Load()

	logger, err := zap.NewProduction()
	if err != nil {
		os.Exit(1)
	}
	defer logger.Sync()

	if err := run(logger); err != nil {
		logger.Fatal("bootstrap", zap.Error(err))
	}
}

func run(logger *zap.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := LoadConfig()
	if err != nil {
		return err
	}

	pool, err := db.NewPool(ctx, cfg.DatabaseURL)
	if err != nil {
		return err
	}
	defer pool.Close()

	// The optional parts of the billing schema are probed once here; every
	// later request trusts this snapshot.
	caps, err := conflict.DetectCapabilities(ctx, pool)
	if err != nil {
		return err
	}
	logger.Info("schema capabilities",
		zap.Bool("legacy_referrer_column", caps.LegacyReferrerColumn),
		zap.Bool("referrers_table", caps.ReferrersTable),
		zap.Bool("history_table", caps.HistoryTable),
		zap.Bool("custom_fields", caps.CustomFields),
		zap.Bool("ticket_replies", caps.TicketReplies),
	)

	auditService := auditlog.NewService(auditlog.NewRepository(pool))

	lookupService := lookup.NewService(lookup.NewRepository(pool)).
		WithMaxResults(cfg.ResultsPerPage).
		WithMaxDepth(cfg.TreeMaxDepth)
	if cfg.EnableDetailedLogs {
		lookupService = lookupService.WithAudit(auditService)
	}

	conflictService := conflict.NewService(conflict.NewRepository(pool), caps).
		WithHighThreshold(cfg.ConflictHighThreshold)

	server := &Server{
		logger:          logger,
		lookupService:   lookupService,
		conflictService: conflictService,
		authService:     auth.NewService(auth.NewRepository(pool), cfg.JWTSecret),
		ping: func(ctx context.Context) error {
			return db.Ping(ctx, pool)
		},
		version: version,
		pageConfig: pageConfig{
			ResultsPerPage: cfg.ResultsPerPage,
			AutoRefresh:    cfg.AutoRefresh,
			DetailedLogs:   cfg.EnableDetailedLogs,
		},
	}
	if cfg.EnableDetailedLogs {
		server.audit = auditService
	}

	httpServer := &http.Server{
		Addr:              cfg.ListenAddr,
		Handler:           server.routes(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("listening", zap.String("addr", cfg.ListenAddr), zap.String("version", version))
		errCh <- httpServer.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil && !errors.Is(err, context.DeadlineExceeded) {
		return err
	}
	logger.Info("shutdown complete")
	return nil
}
