// Package webhooks pushes high-urgency reports to an external alerting
// endpoint, signed so the receiver can verify them.
package webhooks

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/CrowdShield/CS-Backend/internal/logging"
	"github.com/CrowdShield/CS-Backend/internal/reports"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

const (
	SignatureHeader = "CrowdShield-Signature"
	DeliveryHeader  = "CrowdShield-Delivery-Id"

	maxAttempts = 3
)

// Alert is the JSON body of one delivery.
type Alert struct {
	Type   string         `json:"type"`
	Report reports.Report `json:"report"`
}

const AlertHighUrgency = "high_urgency_report"

// Dispatcher posts an Alert for every inserted high-urgency report.
type Dispatcher struct {
	url        string
	secret     string
	httpClient *http.Client
	backoff    time.Duration
}

func NewDispatcher(url, secret string, timeout time.Duration) *Dispatcher {
	return &Dispatcher{
		url:        url,
		secret:     secret,
		httpClient: &http.Client{Timeout: timeout},
		backoff:    time.Second,
	}
}

// Run delivers alerts until ctx is done or events is closed. Deliveries are
// sequential; a slow receiver delays later alerts, never report intake.
func (d *Dispatcher) Run(ctx context.Context, events <-chan reports.Event) {
	for {
		select {
		case <-ctx.Done():
			return
		case ev, ok := <-events:
			if !ok {
				return
			}
			if !shouldAlert(ev) {
				continue
			}
			if err := d.Deliver(ctx, Alert{Type: AlertHighUrgency, Report: ev.Report}); err != nil {
				logging.LogError("webhooks", "deliver alert", err)
			}
		}
	}
}

func shouldAlert(ev reports.Event) bool {
	return ev.Type == reports.EventInsert && ev.Report.Urgency != nil && *ev.Report.Urgency == reports.UrgencyHigh
}

// Deliver posts a with retries. Every attempt carries the same delivery id
// so the receiver can drop repeats.
func (d *Dispatcher) Deliver(ctx context.Context, a Alert) error {
	raw, err := json.Marshal(a)
	if err != nil {
		return fmt.Errorf("encode alert: %w", err)
	}
	id := uuid.NewString()
	sig := Sign(d.secret, id, raw)

	var lastErr error
	for attempt := 1; attempt <= maxAttempts; attempt++ {
		lastErr = d.post(ctx, id, sig, raw)
		if lastErr == nil {
			return nil
		}
		zap.L().Debug("alert attempt failed",
			zap.String("delivery_id", id),
			zap.Int("attempt", attempt),
			zap.Error(lastErr),
		)
		if attempt == maxAttempts {
			break
		}
		select {
		case <-time.After(d.backoff * time.Duration(attempt)):
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	return fmt.Errorf("alert %s: %w", id, lastErr)
}

func (d *Dispatcher) post(ctx context.Context, id, sig string, raw []byte) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, d.url, bytes.NewReader(raw))
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set(DeliveryHeader, id)
	req.Header.Set(SignatureHeader, sig)

	start := time.Now()
	logging.LogRequest("webhooks", http.MethodPost, d.url)
	resp, err := d.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	logging.LogResponse("webhooks", resp.StatusCode, time.Since(start))

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("receiver status %d", resp.StatusCode)
	}
	return nil
}

// Sign returns "sha256=<hex>" over the body followed by the delivery id.
func Sign(secret, deliveryID string, raw []byte) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(raw)
	mac.Write([]byte(deliveryID))
	return "sha256=" + hex.EncodeToString(mac.Sum(nil))
}

// Verify checks a signature produced by Sign.
func Verify(secret, sig, deliveryID string, raw []byte) bool {
	if !strings.HasPrefix(sig, "sha256=") {
		return false
	}
	expected := Sign(secret, deliveryID, raw)
	return hmac.Equal([]byte(sig), []byte(expected))
}
