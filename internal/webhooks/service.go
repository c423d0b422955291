// Package webhooks delivers PostCreated notifications to configured HTTP
// endpoints, signed with HMAC-SHA256.
package webhooks

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/jmerrifield20/postledger/internal/events"
	"github.com/jmerrifield20/postledger/internal/postledger"
	"go.uber.org/zap"
)

// DeliveryRecorder is an optional callback invoked after every attempt.
type DeliveryRecorder func(d Delivery)

// Dispatcher posts each event to every configured endpoint.
type Dispatcher struct {
	urls       []string
	secret     string
	httpClient *http.Client
	delays     []time.Duration
	onDelivery DeliveryRecorder
	logger     *zap.Logger
}

// NewDispatcher creates a Dispatcher for urls. Payloads are signed with secret.
func NewDispatcher(urls []string, secret string, logger *zap.Logger) *Dispatcher {
	return &Dispatcher{
		urls:       urls,
		secret:     secret,
		httpClient: &http.Client{Timeout: 10 * time.Second},
		// Retry with exponential backoff: 1s, 5s, 25s.
		delays: []time.Duration{0, 1 * time.Second, 5 * time.Second, 25 * time.Second},
		logger: logger,
	}
}

// SetRetryDelays overrides the wait before each attempt. delays[0] applies to
// the first attempt; len(delays) is the number of attempts.
func (d *Dispatcher) SetRetryDelays(delays []time.Duration) {
	d.delays = delays
}

// SetDeliveryRecorder configures the per-attempt callback.
func (d *Dispatcher) SetDeliveryRecorder(fn DeliveryRecorder) {
	d.onDelivery = fn
}

// Deliver implements events.DeliverFunc. It returns an error naming every
// endpoint that still failed after the last attempt.
func (d *Dispatcher) Deliver(ctx context.Context, ev postledger.PostCreated) error {
	body, err := events.Encode(ev)
	if err != nil {
		return fmt.Errorf("encode event: %w", err)
	}
	signature := signPayload(body, d.secret)

	var errs []error
	for _, url := range d.urls {
		if err := d.deliverTo(ctx, url, ev.ID, body, signature); err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", url, err))
		}
	}
	return errors.Join(errs...)
}

func (d *Dispatcher) deliverTo(ctx context.Context, url string, postID uint64, body []byte, signature string) error {
	deliveryID := uuid.New().String()
	var lastErr string

	for attempt := 1; attempt <= len(d.delays); attempt++ {
		if wait := d.delays[attempt-1]; wait > 0 {
			select {
			case <-time.After(wait):
			case <-ctx.Done():
				return ctx.Err()
			}
		}

		success, statusCode, errMsg := d.doDelivery(ctx, url, deliveryID, body, signature)
		if d.onDelivery != nil {
			d.onDelivery(Delivery{
				ID:           deliveryID,
				URL:          url,
				PostID:       postID,
				StatusCode:   statusCode,
				Attempt:      attempt,
				Success:      success,
				ErrorMessage: errMsg,
				DeliveredAt:  time.Now().UTC(),
			})
		}
		if success {
			return nil
		}

		lastErr = errMsg
		d.logger.Warn("webhook: delivery failed",
			zap.String("url", url),
			zap.Uint64("post_id", postID),
			zap.Int("attempt", attempt),
			zap.String("error", errMsg),
		)
	}
	return fmt.Errorf("gave up after %d attempts: %s", len(d.delays), lastErr)
}

// doDelivery performs a single HTTP POST delivery.
func (d *Dispatcher) doDelivery(ctx context.Context, url, deliveryID string, body []byte, signature string) (bool, int, string) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return false, 0, err.Error()
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set(HeaderSignature, signature)
	req.Header.Set(HeaderDelivery, deliveryID)
	req.Header.Set(HeaderEvent, events.TypePostCreated)

	resp, err := d.httpClient.Do(req)
	if err != nil {
		return false, 0, err.Error()
	}
	defer resp.Body.Close()
	io.ReadAll(io.LimitReader(resp.Body, 1024)) //nolint:errcheck

	success := resp.StatusCode >= 200 && resp.StatusCode < 300
	errMsg := ""
	if !success {
		errMsg = fmt.Sprintf("HTTP %d", resp.StatusCode)
	}
	return success, resp.StatusCode, errMsg
}

// signPayload computes an HMAC-SHA256 signature.
func signPayload(body []byte, secret string) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(body)
	return "sha256=" + hex.EncodeToString(mac.Sum(nil))
}

// VerifySignature reports whether signature matches body under secret.
// Receivers use it to authenticate deliveries.
func VerifySignature(body []byte, secret, signature string) bool {
	return hmac.Equal([]byte(signPayload(body, secret)), []byte(signature))
}
