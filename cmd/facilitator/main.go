// Command facilitator runs the x402 payment facilitator HTTP server:
// it loads configuration from the environment, dials every configured
// EVM network, and serves /verify, /settle, /supported, /health, and
// /api/info until terminated.
package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/evmrelay/x402-facilitator/internal/confirmer"
	"github.com/evmrelay/x402-facilitator/internal/config"
	"github.com/evmrelay/x402-facilitator/internal/gateway"
	"github.com/evmrelay/x402-facilitator/internal/hooks"
	"github.com/evmrelay/x402-facilitator/internal/logging"
	"github.com/evmrelay/x402-facilitator/internal/metrics"
	"github.com/evmrelay/x402-facilitator/internal/registry"
	"github.com/evmrelay/x402-facilitator/internal/settler"
	"github.com/evmrelay/x402-facilitator/internal/verifier"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	log, err := logging.New(cfg.LogLevel)
	if err != nil {
		return fmt.Errorf("init logger: %w", err)
	}
	defer log.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	reg, err := registry.New(ctx, cfg)
	if err != nil {
		return fmt.Errorf("init registry: %w", err)
	}

	lifecycle := &hooks.Hooks{
		AfterVerify: func(_ context.Context, req hooks.VerifyContext, outcome hooks.VerifyOutcome) {
			result := "invalid"
			if outcome.IsValid {
				result = "valid"
			}
			metrics.VerifyOutcomes.WithLabelValues(req.Network, result).Inc()
			log.Debug("verify", zap.String("network", req.Network), zap.Bool("isValid", outcome.IsValid))
		},
		OnVerifyFailure: func(_ context.Context, req hooks.VerifyContext, err error) {
			metrics.VerifyOutcomes.WithLabelValues(req.Network, "error").Inc()
			log.Warn("verify failed", zap.String("network", req.Network), zap.Error(err))
		},
		AfterSettle: func(_ context.Context, req hooks.SettleContext, outcome hooks.SettleOutcome) {
			metrics.SettleOutcomes.WithLabelValues(req.Network, outcome.Status).Inc()
			log.Info("settle", zap.String("network", req.Network), zap.String("status", outcome.Status), zap.String("txHash", outcome.TxHash))
		},
		OnSettleFailure: func(_ context.Context, req hooks.SettleContext, err error) {
			metrics.SettleOutcomes.WithLabelValues(req.Network, "error").Inc()
			log.Warn("settle failed", zap.String("network", req.Network), zap.Error(err))
		},
	}

	v := verifier.New(reg).WithHooks(lifecycle)
	txStore := confirmer.NewInMemoryStore()
	s := settler.New(reg, v, cfg).WithTransactionStore(txStore).WithHooks(lifecycle)

	conf := confirmer.New(txStore, reg, log)
	go conf.Run(ctx)

	gw := gateway.New(reg, v, s, cfg, log)

	metricsRegistry := prometheus.NewRegistry()
	metrics.Register(metricsRegistry)

	gin.SetMode(gin.ReleaseMode)
	router := gin.New()
	router.Use(gin.Recovery())
	router.GET("/metrics", gin.WrapH(promhttp.HandlerFor(metricsRegistry, promhttp.HandlerOpts{})))
	gw.RegisterRoutes(router)

	srv := &http.Server{
		Addr:    fmt.Sprintf(":%d", cfg.Port),
		Handler: router,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info("facilitator listening", zap.Int("port", cfg.Port), zap.String("mode", string(cfg.FacilitatorMode)), zap.Strings("networks", reg.SupportedNetworks()))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	select {
	case <-ctx.Done():
		log.Info("shutdown signal received")
	case err := <-errCh:
		return fmt.Errorf("server error: %w", err)
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("graceful shutdown: %w", err)
	}
	return nil
}
