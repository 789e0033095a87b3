// internal/app/bootstrap/startup.go
package bootstrap

import (
	"context"
	"fmt"

	"github.com/dalemusser/memberhub/internal/app/lifecycle"
	"github.com/dalemusser/memberhub/internal/app/store/audit"
	communitystore "github.com/dalemusser/memberhub/internal/app/store/communities"
	feestore "github.com/dalemusser/memberhub/internal/app/store/fees"
	intentstore "github.com/dalemusser/memberhub/internal/app/store/intents"
	profilestore "github.com/dalemusser/memberhub/internal/app/store/profiles"
	userstore "github.com/dalemusser/memberhub/internal/app/store/users"
	"github.com/dalemusser/memberhub/internal/app/system/auditlog"
	"github.com/dalemusser/memberhub/internal/app/system/gateway"
	"github.com/dalemusser/memberhub/internal/app/system/locks"
	"github.com/dalemusser/memberhub/internal/app/system/metrics"
	"github.com/dalemusser/memberhub/internal/app/system/notify"
	"github.com/dalemusser/memberhub/internal/app/system/ratelimit"
	"github.com/dalemusser/memberhub/internal/app/system/tasks"
	"github.com/dalemusser/memberhub/internal/app/system/timeouts"
	"github.com/dalemusser/memberhub/internal/app/system/workers"
	"github.com/dalemusser/memberhub/internal/domain/feeschedule"
	"github.com/dalemusser/waffle/config"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"go.uber.org/zap"
)

// services holds everything Startup builds that BuildHandler and Shutdown
// need. WAFFLE passes DBDeps by value, so long-lived workers live here.
type services struct {
	engine     *lifecycle.Engine
	auditStore *audit.Store
	audit      *auditlog.Logger
	registry   *prometheus.Registry
	metrics    *metrics.Metrics
	publisher  notify.Publisher
	dispatcher *notify.Dispatcher
	scheduler  *workers.Scheduler
	limiter    *ratelimit.RegistrationLimiter
}

var svc *services

// Startup runs one-time application initialization after DB connections and
// schema setup are complete, but before the HTTP handler is built. It builds
// the lifecycle engine, starts the notification dispatcher and schedules the
// background jobs.
func Startup(ctx context.Context, coreCfg *config.CoreConfig, appCfg AppConfig, deps DBDeps, logger *zap.Logger) error {
	timeouts.Configure(timeouts.Config{
		Short:  appCfg.TimeoutShort,
		Medium: appCfg.TimeoutMedium,
		Long:   appCfg.TimeoutLong,
		Sweep:  appCfg.TimeoutSweep,
	})

	s, err := buildServices(appCfg, deps, logger)
	if err != nil {
		return err
	}
	s.dispatcher.Start()
	s.scheduler.Start()
	svc = s

	logger.Info("memberhub started",
		zap.String("currency", appCfg.Currency),
		zap.String("notify_channel", appCfg.NotifyChannel),
		zap.Duration("sweep_interval", appCfg.SweepInterval),
		zap.Bool("shared_leases", deps.Redis != nil))
	return nil
}

// buildServices wires stores, engine and workers without starting anything.
func buildServices(appCfg AppConfig, deps DBDeps, logger *zap.Logger) (*services, error) {
	db := deps.MongoDatabase

	schedule, err := feeschedule.New(appCfg.Currency, feeschedule.DefaultTable())
	if err != nil {
		return nil, err
	}

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	m := metrics.New(reg)

	auditStore := audit.New(db)
	auditLogger := auditlog.New(auditStore, logger, auditlog.Config{
		Payment:    appCfg.AuditLogPayment,
		Membership: appCfg.AuditLogMembership,
		Security:   appCfg.AuditLogSecurity,
	})

	pub, err := newPublisher(appCfg, logger)
	if err != nil {
		return nil, err
	}
	dispatcher := notify.NewDispatcher(pub, logger.Named("notify"), m, notify.DispatcherConfig{})

	gw := gateway.NewClient(gateway.Config{
		BaseURL:   appCfg.GatewayBaseURL,
		KeyID:     appCfg.GatewayKeyID,
		KeySecret: appCfg.GatewayKeySecret,
		Timeout:   appCfg.GatewayTimeout,
	}, logger.Named("gateway"))

	intentStore := intentstore.New(db)
	engine, err := lifecycle.New(lifecycle.Deps{
		Users:       userstore.New(db),
		Profiles:    profilestore.New(db),
		Communities: communitystore.New(db),
		Fees:        feestore.New(db),
		Intents:     intentStore,
		Gateway:     gw,
		Notifier:    dispatcher,
		Schedule:    schedule,
		Audit:       auditLogger,
		Metrics:     m,
		Log:         logger.Named("lifecycle"),
	}, lifecycle.Config{
		SiteName:       appCfg.SiteName,
		ReminderWindow: appCfg.ReminderWindow,
		IntentTTL:      appCfg.IntentTTL,
	})
	if err != nil {
		_ = pub.Close()
		return nil, fmt.Errorf("build lifecycle engine: %w", err)
	}

	var locker locks.Locker = locks.NewLocalLocker()
	if deps.Redis != nil {
		locker = locks.NewRedisLocker(deps.Redis)
	}
	jobs := []tasks.Job{
		tasks.RenewalSweepJob(engine, appCfg.SweepInterval),
		tasks.IntentCleanupJob(intentStore, logger),
		tasks.MemberGaugesJob(db, m, appCfg.GaugeInterval),
	}

	return &services{
		engine:     engine,
		auditStore: auditStore,
		audit:      auditLogger,
		registry:   reg,
		metrics:    m,
		publisher:  pub,
		dispatcher: dispatcher,
		scheduler:  workers.NewScheduler(jobs, locker, logger.Named("jobs")),
		limiter:    ratelimit.NewRegistrationLimiter(),
	}, nil
}

func newPublisher(appCfg AppConfig, logger *zap.Logger) (notify.Publisher, error) {
	if appCfg.NotifyChannel != "kafka" {
		return notify.LogPublisher{Log: logger.Named("notify")}, nil
	}
	pub, err := notify.NewKafkaPublisher(notify.KafkaConfig{
		Brokers:  appCfg.KafkaBrokers,
		Topic:    appCfg.KafkaTopic,
		Username: appCfg.KafkaUsername,
		Password: appCfg.KafkaPassword,
	})
	if err != nil {
		return nil, fmt.Errorf("kafka publisher: %w", err)
	}
	logger.Info("notifications go to kafka",
		zap.Strings("brokers", appCfg.KafkaBrokers),
		zap.String("topic", appCfg.KafkaTopic))
	return pub, nil
}
