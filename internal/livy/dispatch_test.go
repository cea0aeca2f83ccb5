package livy

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/rs/zerolog"

	"github.com/danmuck/livyctl/internal/testutil/testlog"
)

// sleepRecorder replaces the dispatcher sleep hook so retry tests finish
// instantly while still observing the requested delays.
type sleepRecorder struct {
	mu     sync.Mutex
	delays []time.Duration
}

func (r *sleepRecorder) sleep(ctx context.Context, d time.Duration) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.delays = append(r.delays, d)
	return nil
}

func (r *sleepRecorder) recorded() []time.Duration {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]time.Duration(nil), r.delays...)
}

func newTestDispatcher(t *testing.T, logger zerolog.Logger, creds aws.CredentialsProvider) (*Dispatcher, *sleepRecorder) {
	t.Helper()
	signer, err := NewSigner(SignerConfig{Credentials: creds, Region: "us-east-1"})
	if err != nil {
		t.Fatalf("new signer: %v", err)
	}
	d, err := NewDispatcher(DispatcherConfig{Signer: signer, Logger: logger})
	if err != nil {
		t.Fatalf("new dispatcher: %v", err)
	}
	rec := &sleepRecorder{}
	d.sleep = rec.sleep
	return d, rec
}

func TestSendRetriesRetryableStatusUntilSuccess(t *testing.T) {
	logger := testlog.Start(t)

	var mu sync.Mutex
	var attempts []string
	var invocations []string
	statuses := []int{http.StatusServiceUnavailable, http.StatusBadGateway, http.StatusOK}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		mu.Lock()
		attempts = append(attempts, r.Header.Get("amz-sdk-request"))
		invocations = append(invocations, r.Header.Get("amz-sdk-invocation-id"))
		status := statuses[len(attempts)-1]
		mu.Unlock()
		if status != http.StatusOK {
			w.WriteHeader(status)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"id": 0, "state": "starting"}`))
	}))
	defer srv.Close()

	creds := testCredentials()
	d, rec := newTestDispatcher(t, logger, creds)
	resp, err := d.Send(context.Background(), MethodGet, srv.URL+"/sessions/0", nil, DefaultRetryPolicy())
	if err != nil {
		t.Fatalf("send: %v", err)
	}
	if !resp.OK() || resp.Header.Get("Content-Type") != "application/json" {
		t.Fatalf("unexpected response: %+v", resp)
	}
	var decoded Session
	if err := json.Unmarshal(resp.Body, &decoded); err != nil {
		t.Fatalf("decode body: %v", err)
	}
	if decoded.State != SessionStarting {
		t.Fatalf("unexpected body: %+v", decoded)
	}

	if delays := rec.recorded(); len(delays) != 2 || delays[0] != 2*time.Second || delays[1] != 4*time.Second {
		t.Fatalf("unexpected backoff delays: %v", delays)
	}
	if creds.calls != 3 {
		t.Fatalf("expected one signature per attempt, got %d", creds.calls)
	}

	mu.Lock()
	defer mu.Unlock()
	if len(attempts) != 3 || attempts[0] != "attempt=1; max=4" || attempts[2] != "attempt=3; max=4" {
		t.Fatalf("unexpected attempt headers: %v", attempts)
	}
	if invocations[0] == "" || invocations[0] != invocations[1] || invocations[1] != invocations[2] {
		t.Fatalf("invocation id should span attempts: %v", invocations)
	}
}

func TestSendReturnsFinalResponseAfterRetryBudget(t *testing.T) {
	logger := testlog.Start(t)

	var hits atomic.Int64
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	d, rec := newTestDispatcher(t, logger, testCredentials())
	resp, err := d.Send(context.Background(), MethodGet, srv.URL+"/sessions", nil,
		RetryPolicy{MaxRetries: 1, BackoffBase: 2.0})
	if err != nil {
		t.Fatalf("send: %v", err)
	}
	if resp.StatusCode != http.StatusServiceUnavailable {
		t.Fatalf("unexpected status: %d", resp.StatusCode)
	}
	if got := hits.Load(); got != 2 {
		t.Fatalf("expected 2 attempts, got %d", got)
	}
	if delays := rec.recorded(); len(delays) != 1 || delays[0] != 2*time.Second {
		t.Fatalf("unexpected backoff delays: %v", delays)
	}
}

func TestSendDoesNotRetryClientErrors(t *testing.T) {
	logger := testlog.Start(t)

	var hits atomic.Int64
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		w.WriteHeader(http.StatusNotFound)
		_, _ = w.Write([]byte(`{"msg": "Session '9' not found."}`))
	}))
	defer srv.Close()

	d, rec := newTestDispatcher(t, logger, testCredentials())
	resp, err := d.Send(context.Background(), MethodGet, srv.URL+"/sessions/9", nil, DefaultRetryPolicy())
	if err != nil {
		t.Fatalf("send: %v", err)
	}
	if resp.OK() || resp.StatusCode != http.StatusNotFound {
		t.Fatalf("unexpected response: %+v", resp)
	}
	if got := hits.Load(); got != 1 {
		t.Fatalf("expected single attempt, got %d", got)
	}
	if delays := rec.recorded(); len(delays) != 0 {
		t.Fatalf("unexpected backoff delays: %v", delays)
	}
}

func TestSendNetworkFailureExhaustsRetries(t *testing.T) {
	logger := testlog.Start(t)

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	srv.Close() // keep the address, refuse every connection

	creds := testCredentials()
	d, rec := newTestDispatcher(t, logger, creds)
	_, err := d.Send(context.Background(), MethodPost, srv.URL+"/sessions", []byte(`{"kind":"pyspark"}`),
		RetryPolicy{MaxRetries: 2, BackoffBase: 2.0})
	if !errors.Is(err, ErrRetriesExhausted) {
		t.Fatalf("expected ErrRetriesExhausted, got %v", err)
	}
	if delays := rec.recorded(); len(delays) != 2 {
		t.Fatalf("unexpected backoff delays: %v", delays)
	}
	if creds.calls != 3 {
		t.Fatalf("expected a fresh signature per attempt, got %d", creds.calls)
	}
}

func TestSendRejectsUnknownMethod(t *testing.T) {
	logger := testlog.Start(t)

	creds := testCredentials()
	d, rec := newTestDispatcher(t, logger, creds)
	_, err := d.Send(context.Background(), Method("PATCH"), "http://127.0.0.1:0/sessions", nil, DefaultRetryPolicy())
	if !errors.Is(err, ErrUnsupportedMethod) {
		t.Fatalf("expected ErrUnsupportedMethod, got %v", err)
	}
	if creds.calls != 0 {
		t.Fatalf("no signing expected before method validation, got %d retrievals", creds.calls)
	}
	if delays := rec.recorded(); len(delays) != 0 {
		t.Fatalf("unexpected backoff delays: %v", delays)
	}
}

func TestSendSigningFailureIsTerminal(t *testing.T) {
	logger := testlog.Start(t)

	var hits atomic.Int64
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
	}))
	defer srv.Close()

	creds := &countingCredentials{err: errors.New("token expired")}
	d, rec := newTestDispatcher(t, logger, creds)
	_, err := d.Send(context.Background(), MethodGet, srv.URL+"/sessions", nil, DefaultRetryPolicy())
	if !errors.Is(err, ErrSigning) {
		t.Fatalf("expected ErrSigning, got %v", err)
	}
	if got := hits.Load(); got != 0 {
		t.Fatalf("request should never reach the server, got %d hits", got)
	}
	if creds.calls != 1 {
		t.Fatalf("signing failures must not retry, got %d retrievals", creds.calls)
	}
	if delays := rec.recorded(); len(delays) != 0 {
		t.Fatalf("unexpected backoff delays: %v", delays)
	}
}

func TestSendContextCancelInterruptsBackoff(t *testing.T) {
	logger := testlog.Start(t)

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	signer, err := NewSigner(SignerConfig{Credentials: testCredentials(), Region: "us-east-1"})
	if err != nil {
		t.Fatalf("new signer: %v", err)
	}
	d, err := NewDispatcher(DispatcherConfig{Signer: signer, Logger: logger})
	if err != nil {
		t.Fatalf("new dispatcher: %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()
	start := time.Now()
	_, err = d.Send(ctx, MethodGet, srv.URL+"/sessions", nil, DefaultRetryPolicy())
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("expected context deadline, got %v", err)
	}
	if elapsed := time.Since(start); elapsed > 2*time.Second {
		t.Fatalf("backoff ignored cancellation, took %v", elapsed)
	}
}
