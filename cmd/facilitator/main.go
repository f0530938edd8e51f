package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	x402 "github.com/x402-foundation/x402-cardano"
	"github.com/x402-foundation/x402-cardano/config"
	"github.com/x402-foundation/x402-cardano/extensions/idempotency"
	x402http "github.com/x402-foundation/x402-cardano/http"
	"github.com/x402-foundation/x402-cardano/ledger"
	"github.com/x402-foundation/x402-cardano/ledger/blockfrost"
	"github.com/x402-foundation/x402-cardano/logging"
	"github.com/x402-foundation/x402-cardano/mcp"
	"github.com/x402-foundation/x402-cardano/metrics"
)

const shutdownTimeout = 10 * time.Second

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "facilitator: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}

	logger, err := logging.New(cfg.LogLevel)
	if err != nil {
		return fmt.Errorf("failed to build logger: %w", err)
	}
	defer logger.Sync() //nolint:errcheck

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if cfg.BlockfrostProjectID == "" {
		logger.Warn("BLOCKFROST_PROJECT_ID is not set; ledger requests will be unauthenticated")
	}
	if cfg.PayTo == "" {
		logger.Warn("PAY_TO is not set; the protected resource cannot be paid for")
	}

	// ========================================================================
	// Ledger
	// ========================================================================

	recorder := metrics.NewPrometheusRecorder()

	backend := blockfrost.NewClient(blockfrost.Config{
		BaseURL:           cfg.BlockfrostURL,
		ProjectID:         cfg.BlockfrostProjectID,
		SubmitTimeout:     cfg.SubmitTimeout,
		FetchTimeout:      cfg.FetchTimeout,
		RequestsPerSecond: cfg.BlockfrostRPS,
	})
	policy := ledger.DefaultPollPolicy()
	policy.Interval = cfg.PollInterval
	gateway := ledger.NewGateway(backend,
		ledger.WithPollPolicy(policy),
		ledger.WithLogger(logger.Named("ledger")),
		ledger.WithCallObserver(recorder.ObserveBackendCall),
	)

	// ========================================================================
	// Facilitator
	// ========================================================================

	opts := []x402.FacilitatorOption{
		x402.WithNetwork(x402.Network(cfg.Network)),
		x402.WithAcceptedNetworks(cfg.Networks()...),
		x402.WithConfirmBudget(cfg.ConfirmBudget),
		x402.WithLogger(logger.Named("facilitator")),
	}
	if cfg.DatabaseURL != "" {
		store, err := idempotency.OpenPostgresStore(ctx, cfg.DatabaseURL,
			idempotency.WithLogger(logger.Named("store")))
		if err != nil {
			return err
		}
		defer store.Close()
		opts = append(opts, x402.WithSettlementStore(store))
		logger.Info("using postgres settlement store")
	}
	facilitator := x402.NewFacilitator(gateway, opts...)
	recorder.Instrument(facilitator)

	// ========================================================================
	// HTTP
	// ========================================================================

	if cfg.GinMode != "" {
		gin.SetMode(cfg.GinMode)
	} else {
		gin.SetMode(gin.ReleaseMode)
	}

	requirements := cfg.PaymentRequirements()
	router := x402http.NewRouter(x402http.ServerConfig{
		Facilitator:    facilitator,
		Resource:       &requirements,
		MetricsHandler: recorder.Handler(),
		MCPHandler:     mcp.NewServer(facilitator, mcp.Options{}).SSEHandler(),
		Logger:         logger.Named("http"),
	})

	server := &http.Server{
		Addr:              cfg.Addr(),
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	group, groupCtx := errgroup.WithContext(ctx)
	group.Go(func() error {
		logger.Info("facilitator listening",
			zap.String("addr", server.Addr),
			zap.String("network", cfg.Network),
			zap.Strings("accepted_networks", cfg.AcceptedNetworks),
			zap.String("ledger", cfg.BlockfrostURL))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	group.Go(func() error {
		<-groupCtx.Done()
		logger.Info("shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		return server.Shutdown(shutdownCtx)
	})

	return group.Wait()
}
