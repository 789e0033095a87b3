// internal/app/bootstrap/config.go
package bootstrap

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/dalemusser/memberhub/internal/domain/feeschedule"
	"github.com/dalemusser/waffle/config"
	wafflemongo "github.com/dalemusser/waffle/pantry/mongo"
	"go.uber.org/zap"
)

// appConfigKeys defines the configuration keys for MemberHub.
// These are loaded via WAFFLE's config system with support for:
//   - Config files: mongo_uri, gateway_key_secret, etc.
//   - Environment variables: MEMBERHUB_MONGO_URI, MEMBERHUB_GATEWAY_KEY_SECRET, etc.
//   - Command-line flags: --mongo_uri, --gateway_key_secret, etc.
var appConfigKeys = []config.AppKey{
	{Name: "mongo_uri", Default: "mongodb://localhost:27017", Desc: "MongoDB connection URI"},
	{Name: "mongo_database", Default: "memberhub", Desc: "MongoDB database name"},
	{Name: "mongo_max_pool_size", Default: 100, Desc: "MongoDB max connection pool size (default: 100)"},
	{Name: "mongo_min_pool_size", Default: 10, Desc: "MongoDB min connection pool size (default: 10)"},

	// Payment gateway
	{Name: "gateway_base_url", Default: "", Desc: "Payment gateway API base URL (blank mints order ids locally)"},
	{Name: "gateway_key_id", Default: "", Desc: "Payment gateway key id"},
	{Name: "gateway_key_secret", Default: "", Desc: "Payment gateway key secret used to verify signatures"},
	{Name: "gateway_timeout", Default: "10s", Desc: "Payment gateway request timeout"},
	{Name: "currency", Default: "INR", Desc: "Currency code for all fee amounts"},

	// Lifecycle timing
	{Name: "reminder_window", Default: "720h", Desc: "Send renewal reminders this long before renewal_date"},
	{Name: "sweep_interval", Default: "24h", Desc: "Renewal sweep interval (0 disables the job)"},
	{Name: "intent_ttl", Default: "24h", Desc: "Lifetime of pay-first registration orders"},
	{Name: "gauge_interval", Default: "5m", Desc: "Membership gauge refresh interval"},

	// Operation timeouts (0 keeps the built-in default)
	{Name: "timeout_short", Default: "0s", Desc: "Timeout for single-document operations"},
	{Name: "timeout_medium", Default: "0s", Desc: "Timeout for registration and payment confirmation"},
	{Name: "timeout_long", Default: "0s", Desc: "Timeout for reconciliation and gateway calls"},
	{Name: "timeout_sweep", Default: "0s", Desc: "Timeout for one renewal sweep pass"},

	// Notifications
	{Name: "notify_channel", Default: "log", Desc: "Notification channel: 'kafka' or 'log'"},
	{Name: "kafka_brokers", Default: "", Desc: "Comma-separated Kafka brokers (host:port)"},
	{Name: "kafka_topic", Default: "memberhub.notifications", Desc: "Kafka topic for notification events"},
	{Name: "kafka_username", Default: "", Desc: "Kafka SASL/PLAIN username"},
	{Name: "kafka_password", Default: "", Desc: "Kafka SASL/PLAIN password"},

	{Name: "redis_url", Default: "", Desc: "Redis URL for job leases (blank uses in-process leases)"},
	{Name: "admin_token", Default: "", Desc: "Shared token for admin endpoints (blank disables them)"},
	{Name: "site_name", Default: "MemberHub", Desc: "Site name used in notifications"},

	// Audit logging settings
	{Name: "audit_log_payment", Default: "all", Desc: "Payment event logging: 'all' (db+log), 'db', 'log', or 'off'"},
	{Name: "audit_log_membership", Default: "all", Desc: "Membership event logging: 'all' (db+log), 'db', 'log', or 'off'"},
	{Name: "audit_log_security", Default: "all", Desc: "Security event logging: 'all' (db+log), 'db', 'log', or 'off'"},
}

// LoadConfig loads WAFFLE core config and app-specific config.
//
// WAFFLE's config.LoadWithAppConfig handles .env files, config files,
// environment variables (WAFFLE_* for core, MEMBERHUB_* for app) and
// flags, merged with precedence flags > env > files > defaults.
func LoadConfig(logger *zap.Logger) (*config.CoreConfig, AppConfig, error) {
	coreCfg, appValues, err := config.LoadWithAppConfig(logger, "MEMBERHUB", appConfigKeys)
	if err != nil {
		return nil, AppConfig{}, err
	}

	appCfg := AppConfig{
		MongoURI:         appValues.String("mongo_uri"),
		MongoDatabase:    appValues.String("mongo_database"),
		MongoMaxPoolSize: uint64(appValues.Int("mongo_max_pool_size")),
		MongoMinPoolSize: uint64(appValues.Int("mongo_min_pool_size")),

		// Gateway
		GatewayBaseURL:   appValues.String("gateway_base_url"),
		GatewayKeyID:     appValues.String("gateway_key_id"),
		GatewayKeySecret: appValues.String("gateway_key_secret"),
		GatewayTimeout:   appValues.Duration("gateway_timeout", 10*time.Second),
		Currency:         strings.ToUpper(strings.TrimSpace(appValues.String("currency"))),

		// Timing
		ReminderWindow: appValues.Duration("reminder_window", 30*24*time.Hour),
		SweepInterval:  appValues.Duration("sweep_interval", 24*time.Hour),
		IntentTTL:      appValues.Duration("intent_ttl", 24*time.Hour),
		GaugeInterval:  appValues.Duration("gauge_interval", 5*time.Minute),

		TimeoutShort:  appValues.Duration("timeout_short", 0),
		TimeoutMedium: appValues.Duration("timeout_medium", 0),
		TimeoutLong:   appValues.Duration("timeout_long", 0),
		TimeoutSweep:  appValues.Duration("timeout_sweep", 0),

		// Notifications
		NotifyChannel: strings.ToLower(strings.TrimSpace(appValues.String("notify_channel"))),
		KafkaBrokers:  splitList(appValues.String("kafka_brokers")),
		KafkaTopic:    appValues.String("kafka_topic"),
		KafkaUsername: appValues.String("kafka_username"),
		KafkaPassword: appValues.String("kafka_password"),

		RedisURL:   appValues.String("redis_url"),
		AdminToken: appValues.String("admin_token"),
		SiteName:   appValues.String("site_name"),

		// Audit logging
		AuditLogPayment:    appValues.String("audit_log_payment"),
		AuditLogMembership: appValues.String("audit_log_membership"),
		AuditLogSecurity:   appValues.String("audit_log_security"),
	}

	if appCfg.AdminToken == "" {
		logger.Warn("admin_token is not set; admin endpoints will refuse every request")
	}

	return coreCfg, appCfg, nil
}

// ValidateConfig performs app-specific config validation.
//
// Return nil to accept the loaded config, or an error to abort startup.
func ValidateConfig(coreCfg *config.CoreConfig, appCfg AppConfig, logger *zap.Logger) error {
	if err := wafflemongo.ValidateURI(appCfg.MongoURI); err != nil {
		logger.Error("invalid MongoDB URI", zap.Error(err))
		return fmt.Errorf("invalid MongoDB URI: %w", err)
	}
	return validateAppConfig(appCfg)
}

// validateAppConfig checks everything that does not need the core config.
func validateAppConfig(appCfg AppConfig) error {
	if appCfg.MongoDatabase == "" {
		return errors.New("mongo_database is required")
	}
	if appCfg.GatewayKeySecret == "" {
		return errors.New("gateway_key_secret is required to verify payment signatures")
	}
	if _, err := feeschedule.New(appCfg.Currency, feeschedule.DefaultTable()); err != nil {
		return err
	}

	durations := []struct {
		name string
		d    time.Duration
	}{
		{"reminder_window", appCfg.ReminderWindow},
		{"intent_ttl", appCfg.IntentTTL},
		{"gateway_timeout", appCfg.GatewayTimeout},
	}
	for _, c := range durations {
		if c.d <= 0 {
			return fmt.Errorf("%s must be positive, got %s", c.name, c.d)
		}
	}
	if appCfg.SweepInterval < 0 || appCfg.GaugeInterval < 0 {
		return errors.New("sweep_interval and gauge_interval must not be negative")
	}

	switch appCfg.NotifyChannel {
	case "log":
	case "kafka":
		if len(appCfg.KafkaBrokers) == 0 {
			return errors.New("notify_channel=kafka requires kafka_brokers")
		}
		if appCfg.KafkaTopic == "" {
			return errors.New("notify_channel=kafka requires kafka_topic")
		}
	default:
		return fmt.Errorf("notify_channel must be 'kafka' or 'log', got %q", appCfg.NotifyChannel)
	}

	for name, v := range map[string]string{
		"audit_log_payment":    appCfg.AuditLogPayment,
		"audit_log_membership": appCfg.AuditLogMembership,
		"audit_log_security":   appCfg.AuditLogSecurity,
	} {
		switch v {
		case "", "all", "db", "log", "off":
		default:
			return fmt.Errorf("%s must be one of all, db, log, off; got %q", name, v)
		}
	}
	return nil
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}
