package notify_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/dalemusser/memberhub/internal/app/system/metrics"
	"github.com/dalemusser/memberhub/internal/app/system/notify"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
)

type recordingPublisher struct {
	mu       sync.Mutex
	events   []notify.Event
	failures int // fail this many calls before succeeding
	closed   bool
}

func (p *recordingPublisher) Publish(_ context.Context, ev notify.Event) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.failures > 0 {
		p.failures--
		return errors.New("broker unavailable")
	}
	p.events = append(p.events, ev)
	return nil
}

func (p *recordingPublisher) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.closed = true
	return nil
}

func (p *recordingPublisher) sent() []notify.Event {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]notify.Event(nil), p.events...)
}

func TestDispatcher_DrainsOnStop(t *testing.T) {
	pub := &recordingPublisher{}
	d := notify.NewDispatcher(pub, zap.NewNop(), nil, notify.DispatcherConfig{QueueSize: 8})
	d.Start()

	for i := 0; i < 5; i++ {
		d.Notify(context.Background(), notify.NewEvent(notify.KindRenewalReminder, "u1", "a@example.com", ""))
	}
	d.Stop()

	assert.Len(t, pub.sent(), 5)
	assert.True(t, pub.closed)
}

func TestDispatcher_RetriesThenSucceeds(t *testing.T) {
	pub := &recordingPublisher{failures: 2}
	m := metrics.New(prometheus.NewRegistry())
	d := notify.NewDispatcher(pub, zap.NewNop(), m, notify.DispatcherConfig{
		MaxAttempts: 3,
		Backoff:     time.Millisecond,
	})

	// not started: delivers inline
	d.Notify(context.Background(), notify.NewEvent(notify.KindCredentialsIssued, "u1", "a@example.com", ""))

	require.Len(t, pub.sent(), 1)
	assert.Equal(t, notify.KindCredentialsIssued, pub.sent()[0].Kind)
	assert.Equal(t, 1.0, testutil.ToFloat64(m.Notifications.WithLabelValues("credentials_issued", "sent")))
}

func TestDispatcher_GivesUpAfterMaxAttempts(t *testing.T) {
	pub := &recordingPublisher{failures: 10}
	m := metrics.New(prometheus.NewRegistry())
	d := notify.NewDispatcher(pub, zap.NewNop(), m, notify.DispatcherConfig{
		MaxAttempts: 2,
		Backoff:     time.Millisecond,
	})

	d.Notify(context.Background(), notify.NewEvent(notify.KindMembershipExpired, "u1", "a@example.com", ""))

	assert.Empty(t, pub.sent())
	assert.Equal(t, 8, pub.failures)
	assert.Equal(t, 1.0, testutil.ToFloat64(m.Notifications.WithLabelValues("membership_expired", "failed")))
}

func TestDispatcher_NotifyAfterStopIsUndeliverable(t *testing.T) {
	pub := &recordingPublisher{}
	m := metrics.New(prometheus.NewRegistry())
	core, logs := observer.New(zap.ErrorLevel)
	d := notify.NewDispatcher(pub, zap.New(core), m, notify.DispatcherConfig{Backoff: time.Millisecond})
	d.Start()
	d.Stop()
	d.Stop()

	d.Notify(context.Background(), notify.NewEvent(notify.KindCredentialsIssued, "u1", "a@example.com", ""))

	assert.Empty(t, pub.sent())
	assert.Equal(t, 1.0, testutil.ToFloat64(m.Notifications.WithLabelValues("credentials_issued", "failed")))
	entries := logs.FilterMessage("notification undeliverable").All()
	require.Len(t, entries, 1)
	assert.Equal(t, notify.ErrStopped.Error(), entries[0].ContextMap()["error"])

	// a stopped dispatcher does not restart
	d.Start()
	d.Notify(context.Background(), notify.NewEvent(notify.KindRenewalReminder, "u1", "a@example.com", ""))
	assert.Empty(t, pub.sent())
}

func TestNewKafkaPublisher_RequiresTopic(t *testing.T) {
	_, err := notify.NewKafkaPublisher(notify.KafkaConfig{Brokers: []string{"localhost:9092"}})
	assert.Error(t, err)

	p, err := notify.NewKafkaPublisher(notify.KafkaConfig{Brokers: []string{"localhost:9092"}, Topic: "member-notifications"})
	require.NoError(t, err)
	assert.NoError(t, p.Close())
}
