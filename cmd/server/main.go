package main

import (
	"context"
	"database/sql"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"storefront-be/internal/auth"
	"storefront-be/internal/config"
	"storefront-be/internal/db"
	"storefront-be/internal/logger"
	"storefront-be/internal/metrics"
	"storefront-be/internal/middleware"
	"storefront-be/internal/order"
	"storefront-be/internal/payment"
	"storefront-be/internal/product"
	"storefront-be/internal/transport"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"go.uber.org/zap"
)

const shutdownTimeout = 10 * time.Second

var (
	initDBFunc      = db.InitDB
	startServerFunc = listenAndServe
)

func main() {
	if err := run(); err != nil {
		logger.L().Fatal("server stopped", zap.Error(err))
	}
}

func run() error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	logger.Init(cfg.AppEnv)
	defer logger.Sync()

	database := initDBFunc(cfg)
	defer database.Close()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	router := newServer(ctx, cfg, database)

	logger.L().Info("http server starting",
		zap.String("port", cfg.AppPort),
		zap.Bool("payment_simulation", cfg.Payment.Simulation),
	)
	return startServerFunc(ctx, ":"+cfg.AppPort, router)
}

// newServer wires stores, gateway and service into the HTTP router. The rate
// limiter's cleanup loop runs until ctx is done.
func newServer(ctx context.Context, cfg *config.Config, database *sql.DB) http.Handler {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	m := metrics.New(reg)

	gateway := payment.Instrument(payment.NewGateway(cfg.Payment), m)

	orderSvc := order.NewService(
		order.NewRepository(database),
		payment.NewRepository(database),
		gateway,
		order.Options{
			Currency:       cfg.Payment.Currency,
			GatewayTimeout: cfg.Payment.GatewayTimeout,
			SuccessURL:     cfg.Payment.CheckoutSuccessURL,
			CancelURL:      cfg.Payment.CheckoutCancelURL,
			Recorder:       m,
		},
	)

	limiter := middleware.NewRateLimiter(cfg.InternalSecretKey)
	go limiter.Run(ctx)

	return transport.NewRouter(transport.Deps{
		Orders:   orderSvc,
		Products: product.NewService(product.NewRepository(database)),
		Tokens:   auth.NewTokens(cfg.JWTSecret),
		Limiter:  limiter,
		Metrics:  m,
		Gatherer: reg,
	})
}

func listenAndServe(ctx context.Context, addr string, handler http.Handler) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           handler,
		ReadHeaderTimeout: 5 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() { errCh <- srv.ListenAndServe() }()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
		logger.L().Info("shutting down http server")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	}
}
