package notify

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"
)

const (
	defaultAttempts = 3
	defaultBackoff  = 2 * time.Second
	deliveryTimeout = 10 * time.Second
)

// Sink канал доставки
type Sink interface {
	Name() string
	Deliver(ctx context.Context, e Event) error
}

// Dispatcher рассылает события по каналам в фоне.
// Send не блокирует вызывающего, ошибки доставки только логируются.
type Dispatcher struct {
	sinks    []Sink
	logger   *zap.Logger
	attempts int
	backoff  time.Duration

	mu     sync.Mutex
	closed bool
	wg     sync.WaitGroup
}

// NewDispatcher создаёт диспетчер уведомлений
func NewDispatcher(logger *zap.Logger, sinks ...Sink) *Dispatcher {
	return &Dispatcher{
		sinks:    sinks,
		logger:   logger,
		attempts: defaultAttempts,
		backoff:  defaultBackoff,
	}
}

// Send ставит событие в доставку во все каналы. После Close события отбрасываются.
func (d *Dispatcher) Send(e Event) {
	if e.OccurredAt.IsZero() {
		e.OccurredAt = time.Now().UTC()
	}

	d.mu.Lock()
	defer d.mu.Unlock()

	if d.closed {
		d.logger.Warn("Notification dropped: dispatcher closed", zap.String("kind", string(e.Kind)))
		return
	}

	for _, sink := range d.sinks {
		d.wg.Add(1)
		go d.deliver(sink, e)
	}
}

// Wait ждёт завершения всех начатых доставок
func (d *Dispatcher) Wait() {
	d.wg.Wait()
}

// Close перестаёт принимать события и дожидается начатых доставок
func (d *Dispatcher) Close() {
	d.mu.Lock()
	d.closed = true
	d.mu.Unlock()

	d.wg.Wait()
}

func (d *Dispatcher) deliver(sink Sink, e Event) {
	defer d.wg.Done()

	for attempt := 1; attempt <= d.attempts; attempt++ {
		ctx, cancel := context.WithTimeout(context.Background(), deliveryTimeout)
		err := sink.Deliver(ctx, e)
		cancel()

		if err == nil {
			return
		}

		d.logger.Warn("Notification delivery failed",
			zap.String("sink", sink.Name()),
			zap.String("kind", string(e.Kind)),
			zap.Int("attempt", attempt),
			zap.Error(err),
		)

		if attempt < d.attempts {
			time.Sleep(d.backoff * time.Duration(attempt))
		}
	}

	d.logger.Error("Notification dropped after retries",
		zap.String("sink", sink.Name()),
		zap.String("kind", string(e.Kind)),
	)
}
