package livy

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/danmuck/livyctl/internal/observability"
)

var ErrSignerRequired = errors.New("livy: signer required")

// DefaultHTTPTimeout bounds one network exchange.
const DefaultHTTPTimeout = 30 * time.Second

const (
	invocationIDHeader = "amz-sdk-invocation-id"
	attemptHeader      = "amz-sdk-request"
)

// DispatcherConfig configures the signed-request dispatch boundary.
type DispatcherConfig struct {
	Signer     *Signer
	HTTPClient *http.Client
	Logger     zerolog.Logger
}

// Dispatcher sends signed requests with bounded retry and backoff.
type Dispatcher struct {
	signer *Signer
	client *http.Client
	logger zerolog.Logger

	sleep func(ctx context.Context, d time.Duration) error
}

// NewDispatcher validates cfg and builds a Dispatcher.
func NewDispatcher(cfg DispatcherConfig) (*Dispatcher, error) {
	if cfg.Signer == nil {
		return nil, ErrSignerRequired
	}
	client := cfg.HTTPClient
	if client == nil {
		client = &http.Client{Timeout: DefaultHTTPTimeout}
	}
	return &Dispatcher{
		signer: cfg.Signer,
		client: client,
		logger: cfg.Logger,
		sleep:  sleepContext,
	}, nil
}

// retryableStatus reports whether a response status is worth retrying.
func retryableStatus(code int) bool {
	switch code {
	case http.StatusTooManyRequests,
		http.StatusInternalServerError,
		http.StatusBadGateway,
		http.StatusServiceUnavailable,
		http.StatusGatewayTimeout:
		return true
	}
	return false
}

// Send signs and dispatches one request, retrying transient failures.
//
// Retryable statuses and network errors are retried up to
// policy.MaxRetries times with BackoffBase^N second delays. A retryable
// status that survives the budget is returned as the final Response with
// a nil error so the caller can classify it; network failure after the
// budget returns ErrRetriesExhausted. Any other non-2xx response returns
// immediately. Signing failures abort without retry.
func (d *Dispatcher) Send(ctx context.Context, method Method, url string, body []byte, policy RetryPolicy) (*Response, error) {
	if !method.Known() {
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedMethod, string(method))
	}
	retries := policy.MaxRetries
	if retries < 0 {
		retries = 0
	}

	// One invocation id spans every attempt of this call.
	invocationID := uuid.NewString()

	attempt := 0
	for {
		attempt++
		start := time.Now()
		resp, err := d.exchange(ctx, method, url, body, invocationID, attempt, retries+1)
		if err != nil {
			if errors.Is(err, ErrSigning) {
				return nil, err
			}
			if ctx.Err() != nil {
				return nil, err
			}
			observability.RecordClientRequest(string(method), 0, time.Since(start))
			d.logger.Warn().
				Str("method", string(method)).
				Str("url", url).
				Int("attempt", attempt).
				Err(err).
				Msg("livy_request_failed")
			if attempt > retries {
				return nil, fmt.Errorf("%w: attempts=%d last=%v", ErrRetriesExhausted, attempt, err)
			}
			observability.RecordClientRetry(string(method), "network")
			if err := d.backoff(ctx, policy, attempt); err != nil {
				return nil, err
			}
			continue
		}

		observability.RecordClientRequest(string(method), resp.StatusCode, time.Since(start))
		if resp.OK() {
			d.logger.Debug().
				Str("method", string(method)).
				Str("url", url).
				Int("status", resp.StatusCode).
				Int("attempt", attempt).
				Msg("livy_request")
			return resp, nil
		}
		if !retryableStatus(resp.StatusCode) || attempt > retries {
			d.logger.Warn().
				Str("method", string(method)).
				Str("url", url).
				Int("status", resp.StatusCode).
				Int("attempt", attempt).
				Msg("livy_request_status")
			return resp, nil
		}
		d.logger.Warn().
			Str("method", string(method)).
			Str("url", url).
			Int("status", resp.StatusCode).
			Int("attempt", attempt).
			Msg("livy_request_retry")
		observability.RecordClientRetry(string(method), "status")
		if err := d.backoff(ctx, policy, attempt); err != nil {
			return nil, err
		}
	}
}

// exchange builds, signs, and performs one attempt.
func (d *Dispatcher) exchange(ctx context.Context, method Method, url string, body []byte, invocationID string, attempt, maxAttempts int) (*Response, error) {
	var reader io.Reader
	if len(body) > 0 {
		reader = bytes.NewReader(body)
	}
	req, err := http.NewRequestWithContext(ctx, string(method), url, reader)
	if err != nil {
		return nil, fmt.Errorf("livy: build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set(invocationIDHeader, invocationID)
	req.Header.Set(attemptHeader, fmt.Sprintf("attempt=%d; max=%d", attempt, maxAttempts))

	// Signatures are time-scoped; each attempt gets a fresh one.
	if err := d.signer.Sign(ctx, req, body); err != nil {
		return nil, err
	}

	resp, err := d.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	payload, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}
	return &Response{
		StatusCode: resp.StatusCode,
		Header:     resp.Header.Clone(),
		Body:       payload,
	}, nil
}

func (d *Dispatcher) backoff(ctx context.Context, policy RetryPolicy, attempt int) error {
	delay := NextBackoffDelay(policy, attempt)
	d.logger.Debug().Int("attempt", attempt).Dur("delay", delay).Msg("livy_backoff")
	return d.sleep(ctx, delay)
}

func sleepContext(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
