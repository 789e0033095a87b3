// internal/app/bootstrap/appconfig.go
package bootstrap

import "time"

// AppConfig holds service-specific configuration for this WAFFLE app.
//
// These values come from environment variables, configuration files, or
// command-line flags (loaded in LoadConfig). WAFFLE's CoreConfig handles
// framework-level settings like ports, TLS, logging and CORS; everything
// the membership engine needs lives here.
type AppConfig struct {
	// MongoDB connection configuration
	MongoURI         string // MongoDB connection string (e.g., mongodb://localhost:27017)
	MongoDatabase    string // Database name within MongoDB
	MongoMaxPoolSize uint64
	MongoMinPoolSize uint64

	// Payment gateway
	GatewayBaseURL   string // blank mints order ids locally (dev)
	GatewayKeyID     string
	GatewayKeySecret string // HMAC key for payment signatures
	GatewayTimeout   time.Duration
	Currency         string // ISO 4217 code for every fee amount

	// Lifecycle timing
	ReminderWindow time.Duration // how far ahead of renewal_date reminders go out
	SweepInterval  time.Duration // renewal sweep period; 0 disables the job
	IntentTTL      time.Duration // lifetime of pay-first registration orders
	GaugeInterval  time.Duration // refresh period for membership gauges

	// Operation timeouts; zero keeps the package defaults
	TimeoutShort  time.Duration
	TimeoutMedium time.Duration
	TimeoutLong   time.Duration
	TimeoutSweep  time.Duration

	// Notifications
	NotifyChannel string   // "kafka" or "log"
	KafkaBrokers  []string // host:port list
	KafkaTopic    string
	KafkaUsername string // SASL/PLAIN when set
	KafkaPassword string

	// Redis (optional). When set, exclusive jobs take their lease in Redis
	// so only one instance sweeps at a time.
	RedisURL string

	// Admin endpoints require X-Admin-Token to equal this value.
	// Blank disables every admin endpoint.
	AdminToken string

	// SiteName appears in notification subjects and bodies.
	SiteName string

	// Audit logging: "all", "db", "log" or "off" per category
	AuditLogPayment    string
	AuditLogMembership string
	AuditLogSecurity   string
}
