// internal/app/system/auditlog/logger.go
package auditlog

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"github.com/dalemusser/memberhub/internal/app/store/audit"
	"github.com/dalemusser/memberhub/internal/domain/models"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.uber.org/zap"
)

// Config holds audit logging configuration. Each value is one of
// "all" (MongoDB + zap), "db" (MongoDB only), "log" (zap only) or "off".
type Config struct {
	Payment    string // fee opened/completed/reopened, payment intents
	Membership string // registration, activation, expiry, community assignment
	Security   string // signature failures, order mismatches, reused payments, admin token denials
}

// Logger provides convenience methods for logging audit events.
// It logs to both MongoDB (via audit.Store) and structured logs (via zap).
type Logger struct {
	store  *audit.Store
	zapLog *zap.Logger
	config Config
}

// New creates a new audit Logger. store may be nil when only zap output is wanted.
func New(store *audit.Store, zapLog *zap.Logger, config Config) *Logger {
	return &Logger{
		store:  store,
		zapLog: zapLog,
		config: config,
	}
}

// ClientIP extracts the client IP from the request.
func ClientIP(r *http.Request) string {
	// Check X-Forwarded-For header first (for reverse proxies)
	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		return xff
	}
	if xri := r.Header.Get("X-Real-IP"); xri != "" {
		return xri
	}
	return r.RemoteAddr
}

// logToZap logs the event to zap with consistent structure.
func (l *Logger) logToZap(event audit.Event) {
	fields := []zap.Field{
		zap.Bool("audit", true),
		zap.String("category", event.Category),
		zap.String("event_type", event.EventType),
		zap.Bool("success", event.Success),
	}

	if event.UserID != nil {
		fields = append(fields, zap.String("user_id", event.UserID.Hex()))
	}
	if event.CommunityID != nil {
		fields = append(fields, zap.String("community_id", event.CommunityID.Hex()))
	}
	if event.Actor != "" {
		fields = append(fields, zap.String("actor", event.Actor))
	}
	if event.IP != "" {
		fields = append(fields, zap.String("ip", event.IP))
	}
	if event.FailureReason != "" {
		fields = append(fields, zap.String("failure_reason", event.FailureReason))
	}
	for k, v := range event.Details {
		fields = append(fields, zap.String("detail_"+k, v))
	}

	if event.Success {
		l.zapLog.Info("audit event", fields...)
	} else {
		l.zapLog.Warn("audit event", fields...)
	}
}

// Log records an audit event based on configuration.
// If the logger is nil, this is a no-op (allows tests to use nil audit logger).
func (l *Logger) Log(ctx context.Context, event audit.Event) {
	if l == nil {
		return
	}

	var setting string
	switch event.Category {
	case audit.CategoryPayment:
		setting = l.config.Payment
	case audit.CategoryMembership:
		setting = l.config.Membership
	case audit.CategorySecurity:
		setting = l.config.Security
	default:
		setting = "all"
	}
	if setting == "" {
		setting = "all"
	}
	if setting == "off" {
		return
	}

	if setting == "all" || setting == "log" {
		l.logToZap(event)
	}

	if (setting == "all" || setting == "db") && l.store != nil {
		if err := l.store.Log(ctx, event); err != nil {
			l.zapLog.Error("failed to store audit event",
				zap.Error(err),
				zap.String("event_type", event.EventType),
			)
		}
	}
}

// --- Payment Events ---

// FeeOpened logs a new pending fee record.
func (l *Logger) FeeOpened(ctx context.Context, f models.FeeRecord) {
	l.Log(ctx, audit.Event{
		Category:  audit.CategoryPayment,
		EventType: audit.EventFeeOpened,
		UserID:    &f.UserID,
		Actor:     "system",
		Success:   true,
		Details: map[string]string{
			"fee_record_id": f.ID.Hex(),
			"fee_type":      string(f.FeeType),
			"amount":        strconv.FormatInt(f.Amount, 10),
		},
	})
}

// FeeCompleted logs a fee settled through the gateway or by an administrator.
func (l *Logger) FeeCompleted(ctx context.Context, f models.FeeRecord, method models.PaymentMethod, ref string) {
	eventType := audit.EventFeeCompleted
	actor := "gateway"
	if method != models.MethodGateway {
		eventType = audit.EventFeeCompletedManual
		actor = "admin"
	}
	l.Log(ctx, audit.Event{
		Category:  audit.CategoryPayment,
		EventType: eventType,
		UserID:    &f.UserID,
		Actor:     actor,
		Success:   true,
		Details: map[string]string{
			"fee_record_id": f.ID.Hex(),
			"fee_type":      string(f.FeeType),
			"method":        string(method),
			"reference":     ref,
		},
	})
}

// FeeReopened logs a renewal fee returned to pending.
func (l *Logger) FeeReopened(ctx context.Context, userID primitive.ObjectID, feeType models.FeeType) {
	l.Log(ctx, audit.Event{
		Category:  audit.CategoryPayment,
		EventType: audit.EventFeeReopened,
		UserID:    &userID,
		Actor:     "system",
		Success:   true,
		Details:   map[string]string{"fee_type": string(feeType)},
	})
}

// IntentOpened logs a pay-first registration order.
func (l *Logger) IntentOpened(ctx context.Context, in models.PaymentIntent) {
	l.Log(ctx, audit.Event{
		Category:  audit.CategoryPayment,
		EventType: audit.EventPaymentIntentOpened,
		Actor:     "system",
		Success:   true,
		Details: map[string]string{
			"order_id": in.OrderID,
			"email":    in.Email,
			"tier":     string(in.MembershipTier),
			"amount":   strconv.FormatInt(in.Amount, 10),
		},
	})
}

// --- Security Events ---

// SignatureInvalid logs a payment callback whose signature did not verify.
func (l *Logger) SignatureInvalid(ctx context.Context, userID *primitive.ObjectID, orderID, paymentID, reason string) {
	l.Log(ctx, audit.Event{
		Category:      audit.CategorySecurity,
		EventType:     audit.EventSignatureInvalid,
		UserID:        userID,
		Actor:         "gateway",
		Success:       false,
		FailureReason: reason,
		Details: map[string]string{
			"order_id":   orderID,
			"payment_id": paymentID,
		},
	})
}

// OrderMismatch logs a callback naming an order other than the one on record.
func (l *Logger) OrderMismatch(ctx context.Context, userID primitive.ObjectID, expected, got string) {
	l.Log(ctx, audit.Event{
		Category:      audit.CategorySecurity,
		EventType:     audit.EventOrderMismatch,
		UserID:        &userID,
		Actor:         "gateway",
		Success:       false,
		FailureReason: "order id does not match fee record",
		Details: map[string]string{
			"expected_order_id": expected,
			"order_id":          got,
		},
	})
}

// PaymentReused logs a gateway payment id presented for a second settlement.
func (l *Logger) PaymentReused(ctx context.Context, userID primitive.ObjectID, paymentID string) {
	l.Log(ctx, audit.Event{
		Category:      audit.CategorySecurity,
		EventType:     audit.EventPaymentReused,
		UserID:        &userID,
		Actor:         "gateway",
		Success:       false,
		FailureReason: "payment id already settled a fee",
		Details:       map[string]string{"payment_id": paymentID},
	})
}

// AdminTokenDenied logs a request to an admin endpoint without a valid token.
func (l *Logger) AdminTokenDenied(ctx context.Context, r *http.Request) {
	l.Log(ctx, audit.Event{
		Category:      audit.CategorySecurity,
		EventType:     audit.EventAdminTokenDenied,
		IP:            ClientIP(r),
		Success:       false,
		FailureReason: "admin token required",
		Details:       map[string]string{"path": r.URL.Path},
	})
}

// --- Membership Events ---

// UserRegistered logs a provisioned user.
func (l *Logger) UserRegistered(ctx context.Context, u models.User) {
	l.Log(ctx, audit.Event{
		Category:  audit.CategoryMembership,
		EventType: audit.EventUserRegistered,
		UserID:    &u.ID,
		Actor:     "system",
		Success:   true,
		Details: map[string]string{
			"tier":     string(u.MembershipTier),
			"username": u.Username,
		},
	})
}

// RegistrationRolledBack logs a compensated registration. orphaned is true
// when compensation itself failed and rows were left behind.
func (l *Logger) RegistrationRolledBack(ctx context.Context, userID primitive.ObjectID, cause string, orphaned bool) {
	l.Log(ctx, audit.Event{
		Category:      audit.CategoryMembership,
		EventType:     audit.EventRegistrationRolledBack,
		UserID:        &userID,
		Actor:         "system",
		Success:       !orphaned,
		FailureReason: cause,
		Details:       map[string]string{"orphaned": boolToString(orphaned)},
	})
}

// UserActivated logs a user becoming active. renewed is true for
// re-activation after an expired period.
func (l *Logger) UserActivated(ctx context.Context, userID primitive.ObjectID, renewalDate time.Time, renewed bool) {
	eventType := audit.EventUserActivated
	if renewed {
		eventType = audit.EventUserRenewed
	}
	l.Log(ctx, audit.Event{
		Category:  audit.CategoryMembership,
		EventType: eventType,
		UserID:    &userID,
		Actor:     "system",
		Success:   true,
		Details:   map[string]string{"renewal_date": renewalDate.UTC().Format(time.RFC3339)},
	})
}

// UserExpired logs a user demoted by the renewal sweep.
func (l *Logger) UserExpired(ctx context.Context, userID primitive.ObjectID, due time.Time) {
	l.Log(ctx, audit.Event{
		Category:  audit.CategoryMembership,
		EventType: audit.EventUserExpired,
		UserID:    &userID,
		Actor:     "system",
		Success:   true,
		Details:   map[string]string{"renewal_date": due.UTC().Format(time.RFC3339)},
	})
}

// CommunityJoined logs a user bound to a community. created is true when
// the community was founded for this user.
func (l *Logger) CommunityJoined(ctx context.Context, userID, communityID primitive.ObjectID, role models.CommunityRole, created bool) {
	eventType := audit.EventCommunityJoined
	if created {
		eventType = audit.EventCommunityCreated
	}
	l.Log(ctx, audit.Event{
		Category:    audit.CategoryMembership,
		EventType:   eventType,
		UserID:      &userID,
		CommunityID: &communityID,
		Actor:       "system",
		Success:     true,
		Details:     map[string]string{"role": string(role)},
	})
}

// CommunityBlocked logs an assignment refused for the given reason code.
func (l *Logger) CommunityBlocked(ctx context.Context, userID primitive.ObjectID, code string) {
	l.Log(ctx, audit.Event{
		Category:      audit.CategoryMembership,
		EventType:     audit.EventCommunityBlocked,
		UserID:        &userID,
		Actor:         "system",
		Success:       false,
		FailureReason: code,
	})
}

func boolToString(b bool) string {
	if b {
		return "true"
	}
	return "false"
}
