package app

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"
)

// Reconciliation проход сверки платёжных сессий
type Reconciliation interface {
	ExpireStale(ctx context.Context) (int64, error)
	PollUnresolved(ctx context.Context) (int, error)
}

// Scheduler периодически сверяет платёжные сессии с шлюзом
type Scheduler struct {
	reconciler Reconciliation
	interval   time.Duration
	logger     *zap.Logger
	stopChan   chan struct{}
	stopOnce   sync.Once
	done       chan struct{}
}

func NewScheduler(reconciler Reconciliation, interval time.Duration, logger *zap.Logger) *Scheduler {
	return &Scheduler{
		reconciler: reconciler,
		interval:   interval,
		logger:     logger,
		stopChan:   make(chan struct{}),
		done:       make(chan struct{}),
	}
}

// Start запускает сверку в фоне
func (s *Scheduler) Start(ctx context.Context) {
	s.logger.Info("Starting reconciliation scheduler", zap.Duration("interval", s.interval))
	go s.run(ctx)
}

// Stop останавливает сверку и ждёт завершения текущего прохода
func (s *Scheduler) Stop() {
	s.stopOnce.Do(func() {
		s.logger.Info("Stopping reconciliation scheduler")
		close(s.stopChan)
	})
	<-s.done
}

func (s *Scheduler) run(ctx context.Context) {
	defer close(s.done)

	// Первый проход сразу при старте
	s.RunOnce(ctx)

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			s.RunOnce(ctx)
		case <-s.stopChan:
			return
		case <-ctx.Done():
			s.logger.Info("Reconciliation scheduler cancelled")
			return
		}
	}
}

// RunOnce выполняет один проход: фиксирует просроченные сессии и опрашивает шлюз
func (s *Scheduler) RunOnce(ctx context.Context) {
	expired, err := s.reconciler.ExpireStale(ctx)
	if err != nil {
		s.logger.Error("Failed to expire stale sessions", zap.Error(err))
	}

	resolved, err := s.reconciler.PollUnresolved(ctx)
	if err != nil {
		s.logger.Error("Failed to poll unresolved sessions", zap.Error(err))
	}

	s.logger.Debug("Reconciliation pass completed",
		zap.Int64("expired", expired),
		zap.Int("resolved", resolved),
	)
}
