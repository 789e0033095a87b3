// internal/app/system/gateway/client.go
package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// Config holds payment gateway credentials.
type Config struct {
	BaseURL   string // e.g. https://api.razorpay.com; blank mints order ids locally
	KeyID     string
	KeySecret string
	Timeout   time.Duration
}

// Order is a gateway order the client pays against.
type Order struct {
	ID       string `json:"id"`
	Amount   int64  `json:"amount"`
	Currency string `json:"currency"`
	Receipt  string `json:"receipt"`
	Status   string `json:"status"`
}

// ErrGateway wraps non-2xx responses from the gateway.
var ErrGateway = errors.New("gateway request failed")

// Client creates orders with the payment gateway and verifies the
// signatures it returns.
type Client struct {
	cfg  Config
	http *http.Client
	log  *zap.Logger
}

// NewClient constructs a gateway Client.
func NewClient(cfg Config, logger *zap.Logger) *Client {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &Client{
		cfg:  cfg,
		http: &http.Client{Timeout: timeout},
		log:  logger,
	}
}

// Verify checks a payment callback signature with the configured secret.
func (c *Client) Verify(orderID, paymentID, signature string) bool {
	return VerifySignature(orderID, paymentID, signature, c.cfg.KeySecret)
}

// CreateOrder asks the gateway for a new order of amount (minor units).
// receipt is an opaque reference echoed back by the gateway.
func (c *Client) CreateOrder(ctx context.Context, amount int64, currency, receipt string) (Order, error) {
	if c.cfg.BaseURL == "" {
		id := "order_" + strings.ReplaceAll(uuid.NewString(), "-", "")
		c.log.Debug("gateway: minted local order", zap.String("order_id", id), zap.Int64("amount", amount))
		return Order{ID: id, Amount: amount, Currency: currency, Receipt: receipt, Status: "created"}, nil
	}

	body, err := json.Marshal(map[string]any{
		"amount":   amount,
		"currency": currency,
		"receipt":  receipt,
	})
	if err != nil {
		return Order{}, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, strings.TrimRight(c.cfg.BaseURL, "/")+"/v1/orders", bytes.NewReader(body))
	if err != nil {
		return Order{}, err
	}
	req.SetBasicAuth(c.cfg.KeyID, c.cfg.KeySecret)
	req.Header.Set("Content-Type", "application/json")

	start := time.Now()
	resp, err := c.http.Do(req)
	if err != nil {
		return Order{}, fmt.Errorf("create order: %w", err)
	}
	defer resp.Body.Close()

	raw, _ := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		c.log.Warn("gateway: create order rejected",
			zap.Int("status", resp.StatusCode),
			zap.String("receipt", receipt),
			zap.Duration("took", time.Since(start)))
		return Order{}, fmt.Errorf("%w: status %d", ErrGateway, resp.StatusCode)
	}

	var o Order
	if err := json.Unmarshal(raw, &o); err != nil {
		return Order{}, fmt.Errorf("create order: decode response: %w", err)
	}
	if o.ID == "" {
		return Order{}, fmt.Errorf("%w: response has no order id", ErrGateway)
	}
	return o, nil
}
