// internal/app/system/notify/dispatcher.go
package notify

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/dalemusser/memberhub/internal/app/system/metrics"
	"go.uber.org/zap"
)

// ErrStopped is reported for events handed to a dispatcher after Stop.
var ErrStopped = errors.New("notify: dispatcher stopped")

// DispatcherConfig tunes queueing and retry behavior.
type DispatcherConfig struct {
	QueueSize   int           // buffered events; default 256
	MaxAttempts int           // publish attempts per event; default 3
	Backoff     time.Duration // initial retry delay, doubled per attempt; default 500ms
	Timeout     time.Duration // per-attempt publish timeout; default 10s
}

// Dispatcher is a background worker that publishes queued events. Events
// that exhaust their retries are logged with enough detail to resend.
type Dispatcher struct {
	pub     Publisher
	log     *zap.Logger
	metrics *metrics.Metrics
	cfg     DispatcherConfig

	queue  chan Event
	stopCh chan struct{}
	wg     sync.WaitGroup

	mu      sync.RWMutex
	running bool
	stopped bool
}

// NewDispatcher creates a dispatcher around pub. Call Start before Notify
// to publish asynchronously; until then Notify publishes inline. Once
// stopped, events are logged as undeliverable.
func NewDispatcher(pub Publisher, logger *zap.Logger, m *metrics.Metrics, cfg DispatcherConfig) *Dispatcher {
	if cfg.QueueSize <= 0 {
		cfg.QueueSize = 256
	}
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = 3
	}
	if cfg.Backoff <= 0 {
		cfg.Backoff = 500 * time.Millisecond
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 10 * time.Second
	}
	return &Dispatcher{
		pub:     pub,
		log:     logger,
		metrics: m,
		cfg:     cfg,
		queue:   make(chan Event, cfg.QueueSize),
		stopCh:  make(chan struct{}),
	}
}

// Start begins the background publish loop.
func (d *Dispatcher) Start() {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.running || d.stopped {
		return
	}
	d.running = true
	d.wg.Add(1)
	go d.run()
	d.log.Info("notification dispatcher started", zap.Int("queue_size", d.cfg.QueueSize))
}

// Stop drains queued events, then closes the publisher.
func (d *Dispatcher) Stop() {
	d.mu.Lock()
	if !d.running {
		d.mu.Unlock()
		return
	}
	d.running = false
	d.stopped = true
	close(d.stopCh)
	d.mu.Unlock()

	d.wg.Wait()
	if err := d.pub.Close(); err != nil {
		d.log.Warn("notification publisher close failed", zap.Error(err))
	}
	d.log.Info("notification dispatcher stopped")
}

// Notify queues ev. It waits for queue space until ctx is done, so a full
// queue applies backpressure instead of silently dropping credentials.
func (d *Dispatcher) Notify(ctx context.Context, ev Event) {
	d.mu.RLock()
	if !d.running {
		stopped := d.stopped
		d.mu.RUnlock()
		if stopped {
			d.failed(ev, ErrStopped)
			return
		}
		d.deliver(ev)
		return
	}
	// Held across the send so Stop cannot close the loop under a queued event.
	defer d.mu.RUnlock()

	select {
	case d.queue <- ev:
	case <-ctx.Done():
		d.failed(ev, ctx.Err())
	}
}

func (d *Dispatcher) run() {
	defer d.wg.Done()
	for {
		select {
		case ev := <-d.queue:
			d.deliver(ev)
		case <-d.stopCh:
			for {
				select {
				case ev := <-d.queue:
					d.deliver(ev)
				default:
					return
				}
			}
		}
	}
}

func (d *Dispatcher) deliver(ev Event) {
	delay := d.cfg.Backoff
	var err error
	for attempt := 1; attempt <= d.cfg.MaxAttempts; attempt++ {
		ctx, cancel := context.WithTimeout(context.Background(), d.cfg.Timeout)
		err = d.pub.Publish(ctx, ev)
		cancel()
		if err == nil {
			d.metrics.IncNotification(string(ev.Kind), "sent")
			return
		}
		d.log.Warn("notification publish failed",
			zap.String("kind", string(ev.Kind)),
			zap.String("event_id", ev.EventID),
			zap.Int("attempt", attempt),
			zap.Error(err))
		if attempt < d.cfg.MaxAttempts {
			select {
			case <-time.After(delay):
			case <-d.stopCh:
				// shutting down: retry immediately
			}
			delay *= 2
		}
	}
	d.failed(ev, err)
}

func (d *Dispatcher) failed(ev Event, err error) {
	d.metrics.IncNotification(string(ev.Kind), "failed")
	d.log.Error("notification undeliverable",
		zap.String("kind", string(ev.Kind)),
		zap.String("event_id", ev.EventID),
		zap.String("user_id", ev.UserID),
		zap.String("email", ev.Email),
		zap.String("subject", ev.Subject),
		zap.Error(err))
}
