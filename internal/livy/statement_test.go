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

	"github.com/rs/zerolog"

	"github.com/danmuck/livyctl/internal/testutil/testlog"
)

func newTestStatementClient(t *testing.T, logger zerolog.Logger, endpoint string, mutate func(*StatementClientConfig)) *StatementClient {
	t.Helper()
	d, _ := newTestDispatcher(t, logger, testCredentials())
	cfg := DefaultStatementClientConfig()
	cfg.Endpoint = endpoint
	cfg.PollInterval = time.Millisecond
	cfg.WaitTimeout = 250 * time.Millisecond
	cfg.Logger = logger
	if mutate != nil {
		mutate(&cfg)
	}
	sc, err := NewStatementClient(d, cfg)
	if err != nil {
		t.Fatalf("new statement client: %v", err)
	}
	return sc
}

func TestStatementSubmit(t *testing.T) {
	logger := testlog.Start(t)

	var mu sync.Mutex
	var gotBody submitStatementRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost || r.URL.Path != "/sessions/0/statements" {
			t.Errorf("unexpected request: %s %s", r.Method, r.URL.Path)
			w.WriteHeader(http.StatusNotFound)
			return
		}
		mu.Lock()
		if err := json.NewDecoder(r.Body).Decode(&gotBody); err != nil {
			t.Errorf("decode submit body: %v", err)
		}
		mu.Unlock()
		w.Header().Set("location", "/sessions/0/statements/0")
		w.WriteHeader(http.StatusCreated)
		_, _ = w.Write([]byte(`{"id": 0, "code": "1 + 1", "state": "waiting"}`))
	}))
	defer srv.Close()

	sc := newTestStatementClient(t, logger, srv.URL, nil)
	sess := &Session{ID: 0, State: SessionIdle, Location: "/sessions/0"}
	st, err := sc.Submit(context.Background(), sess, "1 + 1")
	if err != nil {
		t.Fatalf("submit: %v", err)
	}
	if st.ID != 0 || st.State != StatementWaiting || st.Location != "/sessions/0/statements/0" {
		t.Fatalf("unexpected statement: %+v", st)
	}

	mu.Lock()
	defer mu.Unlock()
	if gotBody.Code != "1 + 1" {
		t.Fatalf("unexpected submit payload: %+v", gotBody)
	}
}

func TestStatementSubmitRequiresActiveSession(t *testing.T) {
	logger := testlog.Start(t)
	sc := newTestStatementClient(t, logger, "http://127.0.0.1:0", nil)
	if _, err := sc.Submit(context.Background(), &Session{ID: 1}, "1 + 1"); !errors.Is(err, ErrNoSession) {
		t.Fatalf("expected ErrNoSession, got %v", err)
	}
}

func TestStatementSubmitMissingLocation(t *testing.T) {
	logger := testlog.Start(t)

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusCreated)
		_, _ = w.Write([]byte(`{"id": 0, "state": "waiting"}`))
	}))
	defer srv.Close()

	sc := newTestStatementClient(t, logger, srv.URL, nil)
	sess := &Session{ID: 0, Location: "/sessions/0"}
	if _, err := sc.Submit(context.Background(), sess, "1 + 1"); !errors.Is(err, ErrMissingLocation) {
		t.Fatalf("expected ErrMissingLocation, got %v", err)
	}
}

func TestStatementGetRequiresHandle(t *testing.T) {
	logger := testlog.Start(t)
	sc := newTestStatementClient(t, logger, "http://127.0.0.1:0", nil)
	if _, err := sc.Get(context.Background(), &Statement{ID: 2}); !errors.Is(err, ErrNoStatement) {
		t.Fatalf("expected ErrNoStatement, got %v", err)
	}
	if _, err := sc.WaitResult(context.Background(), &Statement{ID: 2}); !errors.Is(err, ErrNoStatement) {
		t.Fatalf("expected ErrNoStatement from wait, got %v", err)
	}
}

func TestStatementWaitResultPollsToAvailable(t *testing.T) {
	logger := testlog.Start(t)

	var polls atomic.Int64
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet || r.URL.Path != "/sessions/0/statements/0" {
			t.Errorf("unexpected request: %s %s", r.Method, r.URL.Path)
			w.WriteHeader(http.StatusNotFound)
			return
		}
		if polls.Add(1) < 3 {
			_, _ = w.Write([]byte(`{"id": 0, "state": "running", "progress": 0.5}`))
			return
		}
		_, _ = w.Write([]byte(`{"id": 0, "state": "available", "progress": 1.0, "output": ` +
			`{"status": "ok", "execution_count": 0, "data": {"text/plain": "2"}}}`))
	}))
	defer srv.Close()

	sc := newTestStatementClient(t, logger, srv.URL, nil)
	st := &Statement{ID: 0, State: StatementWaiting, Location: "/sessions/0/statements/0"}
	result, err := sc.WaitResult(context.Background(), st)
	if err != nil {
		t.Fatalf("wait result: %v", err)
	}
	if !result.State.Succeeded() {
		t.Fatalf("unexpected state: %q", result.State)
	}
	text, ok := result.Output.Text()
	if !ok || text != "2" {
		t.Fatalf("unexpected output text: %q ok=%v", text, ok)
	}
	if got := polls.Load(); got != 3 {
		t.Fatalf("expected 3 polls, got %d", got)
	}
}

func TestStatementWaitResultReturnsFailureAsValue(t *testing.T) {
	logger := testlog.Start(t)

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"id": 0, "state": "error", "output": ` +
			`{"status": "error", "ename": "NameError", "evalue": "name 'x' is not defined"}}`))
	}))
	defer srv.Close()

	sc := newTestStatementClient(t, logger, srv.URL, nil)
	st := &Statement{ID: 0, Location: "/sessions/0/statements/0"}
	result, err := sc.WaitResult(context.Background(), st)
	if err != nil {
		t.Fatalf("failed statement should not be an error: %v", err)
	}
	if result.State != StatementError || result.State.Succeeded() {
		t.Fatalf("unexpected state: %q", result.State)
	}
	if result.Output == nil || result.Output.EName != "NameError" {
		t.Fatalf("unexpected output: %+v", result.Output)
	}
}

func TestStatementWaitResultTimesOut(t *testing.T) {
	logger := testlog.Start(t)

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"id": 0, "state": "running", "progress": 0.5}`))
	}))
	defer srv.Close()

	sc := newTestStatementClient(t, logger, srv.URL, func(cfg *StatementClientConfig) {
		cfg.WaitTimeout = 25 * time.Millisecond
	})
	st := &Statement{ID: 0, Location: "/sessions/0/statements/0"}
	if _, err := sc.WaitResult(context.Background(), st); !errors.Is(err, ErrWaitTimeout) {
		t.Fatalf("expected ErrWaitTimeout, got %v", err)
	}
}

func TestStatementWaitResultAbsorbsTransientPollFailure(t *testing.T) {
	logger := testlog.Start(t)

	var polls atomic.Int64
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if polls.Add(1) == 1 {
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		_, _ = w.Write([]byte(`{"id": 0, "state": "available", "output": ` +
			`{"status": "ok", "data": {"text/plain": "done"}}}`))
	}))
	defer srv.Close()

	sc := newTestStatementClient(t, logger, srv.URL, func(cfg *StatementClientConfig) {
		cfg.Retry = RetryPolicy{MaxRetries: 0, BackoffBase: 2.0}
	})
	st := &Statement{ID: 0, Location: "/sessions/0/statements/0"}
	result, err := sc.WaitResult(context.Background(), st)
	if err != nil {
		t.Fatalf("wait result: %v", err)
	}
	if !result.State.Succeeded() {
		t.Fatalf("unexpected state: %q", result.State)
	}
	if got := polls.Load(); got != 2 {
		t.Fatalf("expected 2 polls, got %d", got)
	}
}
