package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/Freeeeeet/paybook/internal/app"
	"github.com/Freeeeeet/paybook/internal/catalog"
	"github.com/Freeeeeet/paybook/internal/ratelimit"
	"github.com/Freeeeeet/paybook/internal/repository"
	"github.com/Freeeeeet/paybook/internal/service"
	"github.com/Freeeeeet/paybook/internal/transport/httpapi"
	"github.com/gin-gonic/gin"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

const shutdownTimeout = 15 * time.Second

func serveCmd() *cobra.Command {
	var migrate bool

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the HTTP API and the reconciliation scheduler",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			rt, err := bootstrap(ctx)
			if err != nil {
				return err
			}
			defer rt.Close()

			return serve(ctx, rt, migrate)
		},
	}

	cmd.Flags().BoolVar(&migrate, "migrate", false, "Apply database migrations before start")

	return cmd
}

func serve(ctx context.Context, rt *deps, migrate bool) error {
	cfg, logger := rt.cfg, rt.logger

	if migrate {
		m, err := rt.migrator()
		if err != nil {
			return err
		}
		_, err = m.Up(ctx)
		_ = m.Close()
		if err != nil {
			return err
		}
	}

	cat, err := catalog.Load(cfg.CatalogPath)
	if err != nil {
		return err
	}

	// Репозитории
	slotRepo := repository.NewSlotRepository(rt.pool)
	paymentRepo := repository.NewPaymentRepository(rt.pool)
	discountRepo := repository.NewDiscountRepository(rt.pool)
	bookingRepo := repository.NewBookingRepository(rt.pool)

	gateway := rt.gateway()
	dispatcher := rt.dispatcher()

	// Сервисы
	guard := service.NewSlotGuard(slotRepo, paymentRepo)
	payments := service.NewPaymentService(guard, paymentRepo, discountRepo, cat, gateway, dispatcher,
		service.PaymentConfig{
			ExpirationWindow: cfg.Payments.ExpirationWindow(),
			MinAmount:        cfg.Payments.MinAmount,
			PublicBaseURL:    cfg.PublicBaseURL,
		}, logger)
	reconciler := service.NewReconciler(paymentRepo, gateway, dispatcher, logger)
	finalizer := service.NewFinalizer(guard, paymentRepo, bookingRepo, dispatcher, logger)

	limiter, err := newLimiter(rt)
	if err != nil {
		return err
	}

	if cfg.IsProduction() {
		gin.SetMode(gin.ReleaseMode)
	}
	handler := httpapi.NewHandler(payments, reconciler, finalizer, slotRepo, rt.pool.Ping, logger)

	server := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           httpapi.NewRouter(handler, limiter, logger),
		ReadHeaderTimeout: 10 * time.Second,
	}

	scheduler := app.NewScheduler(reconciler, cfg.Payments.ReconcileInterval, logger)
	scheduler.Start(ctx)
	defer scheduler.Stop()

	errCh := make(chan error, 1)
	go func() {
		logger.Info("HTTP server listening", zap.String("addr", cfg.HTTPAddr))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("http server: %w", err)
		}
	case <-ctx.Done():
		logger.Info("Shutting down")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown http server: %w", err)
	}

	return nil
}

// newLimiter подключает Redis для лимита запросов; без REDIS_URL лимит выключен
func newLimiter(rt *deps) (ratelimit.Limiter, error) {
	if rt.cfg.RedisURL == "" {
		rt.logger.Warn("REDIS_URL not set, rate limiting disabled")
		return ratelimit.Nop{}, nil
	}

	client, err := ratelimit.NewClient(rt.cfg.RedisURL)
	if err != nil {
		return nil, err
	}
	rt.onClose(func() { _ = client.Close() })

	return ratelimit.NewRedisLimiter(client, rt.cfg.RateLimitPerMinute, time.Minute), nil
}

func migrateCmd() *cobra.Command {
	var down bool

	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Apply database migrations",
		RunE: func(cmd *cobra.Command, args []string) error {
			rt, err := bootstrap(cmd.Context())
			if err != nil {
				return err
			}
			defer rt.Close()

			m, err := rt.migrator()
			if err != nil {
				return err
			}
			defer m.Close()

			if down {
				if err := m.Down(cmd.Context()); err != nil {
					return err
				}
			} else if _, err := m.Up(cmd.Context()); err != nil {
				return err
			}

			version, err := m.Version(cmd.Context())
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "schema version: %d\n", version)
			return nil
		},
	}

	cmd.Flags().BoolVar(&down, "down", false, "Roll back the latest migration")

	return cmd
}

func reconcileCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "reconcile",
		Short: "Run one reconciliation pass against the gateway",
		RunE: func(cmd *cobra.Command, args []string) error {
			rt, err := bootstrap(cmd.Context())
			if err != nil {
				return err
			}
			defer rt.Close()

			reconciler := rt.reconciler(rt.gateway(), rt.dispatcher())

			expired, err := reconciler.ExpireStale(cmd.Context())
			if err != nil {
				return err
			}
			resolved, err := reconciler.PollUnresolved(cmd.Context())
			if err != nil {
				return err
			}

			fmt.Fprintf(cmd.OutOrStdout(), "expired: %d, resolved: %d\n", expired, resolved)
			return nil
		},
	}
}
