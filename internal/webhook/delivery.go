// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

package webhook

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"math"
	"net/http"
	"time"

	"github.com/olegiv/svcportal/internal/model"
)

// Delivery configuration constants
const (
	MaxAttempts    = 5                // Maximum number of delivery attempts
	InitialBackoff = 2 * time.Second  // Delay before the first retry
	MaxBackoff     = 5 * time.Minute  // Maximum backoff delay
	RequestTimeout = 10 * time.Second // HTTP request timeout
	MaxResponseLen = 10 * 1024        // Maximum response body read (10KB)
	UserAgent      = "svcportal/1.0"  // User-Agent header value
)

// Header names set on every delivery.
const (
	HeaderSignature  = "X-Webhook-Signature"
	HeaderEvent      = "X-Webhook-Event"
	HeaderDeliveryID = "X-Webhook-Delivery-ID"
)

// DeliveryResult represents the result of a delivery attempt.
type DeliveryResult struct {
	Success      bool
	StatusCode   int
	ResponseBody string
	Error        error
	ShouldRetry  bool
}

// httpClient is the shared HTTP client with appropriate timeouts.
var httpClient = &http.Client{
	Timeout: RequestTimeout,
	Transport: &http.Transport{
		MaxIdleConns:        100,
		MaxIdleConnsPerHost: 10,
		IdleConnTimeout:     90 * time.Second,
	},
}

// processDelivery attempts a delivery until it succeeds, fails permanently,
// runs out of attempts or the dispatcher stops.
func (d *Dispatcher) processDelivery(ctx context.Context, delivery *QueuedDelivery) {
	for {
		result := d.attemptDelivery(ctx, delivery)
		delivery.Attempts++

		if result.Success {
			d.logger.Info("webhook delivered",
				"delivery_id", delivery.DeliveryID,
				"url", delivery.URL,
				"status_code", result.StatusCode,
				"attempts", delivery.Attempts)
			return
		}

		if !result.ShouldRetry || delivery.Attempts >= MaxAttempts {
			d.logger.Warn("webhook delivery abandoned",
				"delivery_id", delivery.DeliveryID,
				"url", delivery.URL,
				"attempts", delivery.Attempts,
				"error", result.Error,
				"category", model.EventCategoryAccess)
			return
		}

		backoff := d.backoff(delivery.Attempts)
		d.logger.Info("webhook delivery scheduled for retry",
			"delivery_id", delivery.DeliveryID,
			"attempt", delivery.Attempts,
			"backoff", backoff.String(),
			"error", result.Error)

		timer := time.NewTimer(backoff)
		select {
		case <-timer.C:
		case <-d.done:
			timer.Stop()
			return
		case <-ctx.Done():
			timer.Stop()
			return
		}
	}
}

// attemptDelivery performs the actual HTTP POST request.
func (d *Dispatcher) attemptDelivery(ctx context.Context, delivery *QueuedDelivery) DeliveryResult {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, delivery.URL, bytes.NewReader(delivery.Payload))
	if err != nil {
		return DeliveryResult{
			Error:       fmt.Errorf("failed to create request: %w", err),
			ShouldRetry: false, // Bad URL, don't retry
		}
	}

	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("User-Agent", UserAgent)
	req.Header.Set(HeaderSignature, GenerateSignature(delivery.Payload, d.secret))
	req.Header.Set(HeaderEvent, delivery.Event)
	req.Header.Set(HeaderDeliveryID, delivery.DeliveryID)

	resp, err := d.client.Do(req)
	if err != nil {
		return DeliveryResult{
			Error:       fmt.Errorf("request failed: %w", err),
			ShouldRetry: true, // Network error, retry
		}
	}
	defer func() { _ = resp.Body.Close() }()

	body, _ := io.ReadAll(io.LimitReader(resp.Body, MaxResponseLen))
	result := DeliveryResult{StatusCode: resp.StatusCode, ResponseBody: string(body)}

	switch {
	case resp.StatusCode >= 200 && resp.StatusCode < 300:
		result.Success = true
	case resp.StatusCode >= 400 && resp.StatusCode < 500:
		// Client errors are final except 408 Request Timeout and 429 Too Many Requests
		result.ShouldRetry = resp.StatusCode == http.StatusRequestTimeout || resp.StatusCode == http.StatusTooManyRequests
		result.Error = fmt.Errorf("HTTP %d: %s", resp.StatusCode, http.StatusText(resp.StatusCode))
	default:
		result.ShouldRetry = true
		result.Error = fmt.Errorf("HTTP %d: %s", resp.StatusCode, http.StatusText(resp.StatusCode))
	}
	return result
}

// backoff returns initialBackoff * 2^(attempt-1), capped at MaxBackoff.
func (d *Dispatcher) backoff(attempt int) time.Duration {
	if attempt <= 0 {
		attempt = 1
	}
	b := time.Duration(float64(d.initialBackoff) * math.Pow(2, float64(attempt-1)))
	if b > MaxBackoff {
		b = MaxBackoff
	}
	return b
}
