package webhook

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
)

// deliveryAttempts bounds redelivery of one event to a flaky endpoint.
const deliveryAttempts = 3

// Dispatcher posts signed events to subscriber endpoints from a single
// background loop. Transient failures (network errors, 5xx) are retried
// up to deliveryAttempts; a 4xx means the endpoint rejected the event
// and is terminal. Every outcome is recorded in webhook_deliveries with
// the attempt count.
type Dispatcher struct {
	db         *pgxpool.Pool
	httpClient *http.Client
	queue      chan Delivery
	retryWait  time.Duration
}

// Delivery is one event bound for one endpoint.
type Delivery struct {
	WebhookID uuid.UUID
	URL       string
	Secret    string
	Event     string
	Payload   []byte
}

func NewDispatcher(db *pgxpool.Pool) *Dispatcher {
	d := &Dispatcher{
		db:         db,
		httpClient: &http.Client{Timeout: 10 * time.Second},
		queue:      make(chan Delivery, 1000),
		retryWait:  2 * time.Second,
	}
	go d.loop()
	return d
}

func (d *Dispatcher) Enqueue(dv Delivery) {
	select {
	case d.queue <- dv:
	default:
		slog.Warn("webhook queue full, dropping event", "webhook_id", dv.WebhookID, "event", dv.Event)
	}
}

func (d *Dispatcher) loop() {
	for dv := range d.queue {
		d.deliver(dv)
	}
}

func (d *Dispatcher) deliver(dv Delivery) {
	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()

	var status int
	var lastErr error
	attempts := 0
	for attempts < deliveryAttempts {
		attempts++
		status, lastErr = d.post(ctx, dv)
		if lastErr == nil && status < 400 {
			break
		}
		if status >= 400 && status < 500 {
			// The endpoint answered and refused; redelivering the same
			// payload will not change its mind.
			break
		}
		if attempts < deliveryAttempts {
			time.Sleep(d.retryWait)
		}
	}

	if lastErr != nil || status >= 400 {
		slog.Warn("webhook delivery failed",
			"webhook_id", dv.WebhookID,
			"event", dv.Event,
			"status", status,
			"attempts", attempts,
			"error", lastErr,
		)
	}
	d.record(ctx, dv, status, attempts, lastErr)
}

func (d *Dispatcher) post(ctx context.Context, dv Delivery) (int, error) {
	req, err := http.NewRequestWithContext(ctx, "POST", dv.URL, bytes.NewReader(dv.Payload))
	if err != nil {
		return 0, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Webhook-Event", dv.Event)
	req.Header.Set("X-Webhook-Signature", sign(dv.Payload, dv.Secret))
	req.Header.Set("X-Webhook-ID", dv.WebhookID.String())

	resp, err := d.httpClient.Do(req)
	if err != nil {
		return 0, err
	}
	defer resp.Body.Close()
	return resp.StatusCode, nil
}

func (d *Dispatcher) record(ctx context.Context, dv Delivery, status, attempts int, deliveryErr error) {
	var deliveredAt *time.Time
	if deliveryErr == nil && status < 400 {
		now := time.Now()
		deliveredAt = &now
	}

	_, err := d.db.Exec(ctx,
		`INSERT INTO webhook_deliveries (webhook_id, event, payload, response_status, attempts, delivered_at)
		 VALUES ($1, $2, $3, $4, $5, $6)`,
		dv.WebhookID, dv.Event, dv.Payload, status, attempts, deliveredAt,
	)
	if err != nil {
		slog.Error("failed to record webhook delivery", "webhook_id", dv.WebhookID, "error", err)
	}
}

func sign(payload []byte, secret string) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(payload)
	return fmt.Sprintf("sha256=%s", hex.EncodeToString(mac.Sum(nil)))
}
