package main

import (
	"context"
	"fmt"
	"time"

	"github.com/Freeeeeet/paybook/internal/acquiring"
	"github.com/Freeeeeet/paybook/internal/app"
	"github.com/Freeeeeet/paybook/internal/config"
	"github.com/Freeeeeet/paybook/internal/notify"
	"github.com/Freeeeeet/paybook/internal/repository"
	"github.com/Freeeeeet/paybook/internal/service"
	"github.com/go-telegram/bot"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"
)

// deps хранит общие зависимости подкоманд
type deps struct {
	cfg    *config.Config
	logger *zap.Logger
	pool   *pgxpool.Pool

	closers []func()
}

func bootstrap(ctx context.Context) (*deps, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}

	logger, err := app.NewLogger(cfg.Environment, cfg.LogLevel)
	if err != nil {
		return nil, err
	}

	connectCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	pool, err := pgxpool.New(connectCtx, cfg.DBDSN)
	if err != nil {
		return nil, fmt.Errorf("create pool: %w", err)
	}
	if err := pool.Ping(connectCtx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	logger.Info("Connected to database", zap.String("environment", cfg.Environment))

	return &deps{cfg: cfg, logger: logger, pool: pool}, nil
}

func (r *deps) onClose(fn func()) {
	r.closers = append(r.closers, fn)
}

// Close освобождает ресурсы в обратном порядке
func (r *deps) Close() {
	for i := len(r.closers) - 1; i >= 0; i-- {
		r.closers[i]()
	}
	r.pool.Close()
	_ = r.logger.Sync()
}

func (r *deps) migrator() (*app.Migrator, error) {
	return app.NewMigrator(r.pool, r.cfg.MigrationsPath, r.logger)
}

func (r *deps) gateway() *acquiring.Client {
	return acquiring.NewClient(acquiring.Config{
		BaseURL:     r.cfg.Acquiring.APIURL,
		TerminalKey: r.cfg.Acquiring.TerminalKey,
		Password:    r.cfg.Acquiring.Password,
		Timeout:     r.cfg.Acquiring.Timeout,
	}, r.logger)
}

// dispatcher собирает каналы уведомлений из конфига. Лог пишется всегда.
func (r *deps) dispatcher() *notify.Dispatcher {
	sinks := []notify.Sink{notify.NewLogSink(r.logger)}

	if r.cfg.TelegramToken != "" && r.cfg.AdminChatID != 0 {
		b, err := bot.New(r.cfg.TelegramToken)
		if err != nil {
			r.logger.Warn("Telegram notifications disabled", zap.Error(err))
		} else {
			sinks = append(sinks, notify.NewTelegramSink(b, r.cfg.AdminChatID))
		}
	}

	if r.cfg.RabbitURL != "" {
		sink, err := notify.NewAMQPSink(r.cfg.RabbitURL, r.cfg.NotifyExchange)
		if err != nil {
			r.logger.Warn("RabbitMQ notifications disabled", zap.Error(err))
		} else {
			sinks = append(sinks, sink)
			r.onClose(func() { _ = sink.Close() })
		}
	}

	d := notify.NewDispatcher(r.logger, sinks...)
	r.onClose(d.Close)
	return d
}

func (r *deps) reconciler(gateway service.Gateway, notifier service.Notifier) *service.Reconciler {
	return service.NewReconciler(repository.NewPaymentRepository(r.pool), gateway, notifier, r.logger)
}
