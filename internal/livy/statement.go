package livy

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/danmuck/livyctl/internal/observability"
)

// DefaultStatementPollInterval spaces statement completion polls.
const DefaultStatementPollInterval = 2 * time.Second

// StatementClientConfig configures statement calls against one endpoint.
type StatementClientConfig struct {
	Endpoint     string
	PollInterval time.Duration
	WaitTimeout  time.Duration
	Retry        RetryPolicy
	Logger       zerolog.Logger
}

// DefaultStatementClientConfig returns service-default statement settings.
func DefaultStatementClientConfig() StatementClientConfig {
	return StatementClientConfig{
		PollInterval: DefaultStatementPollInterval,
		WaitTimeout:  DefaultWaitTimeout,
		Retry:        DefaultRetryPolicy(),
	}
}

// WithDefaults fills unset fields from DefaultStatementClientConfig.
func (cfg StatementClientConfig) WithDefaults() StatementClientConfig {
	def := DefaultStatementClientConfig()
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = def.PollInterval
	}
	if cfg.WaitTimeout <= 0 {
		cfg.WaitTimeout = def.WaitTimeout
	}
	cfg.Retry = cfg.Retry.WithDefaults()
	cfg.Endpoint = strings.TrimRight(strings.TrimSpace(cfg.Endpoint), "/")
	return cfg
}

// StatementClient submits code to a session and tracks completion.
type StatementClient struct {
	cfg        StatementClientConfig
	dispatcher *Dispatcher
	logger     zerolog.Logger
}

// NewStatementClient validates cfg and builds a StatementClient over d.
func NewStatementClient(d *Dispatcher, cfg StatementClientConfig) (*StatementClient, error) {
	if d == nil {
		return nil, ErrDispatcherRequired
	}
	cfg = cfg.WithDefaults()
	if cfg.Endpoint == "" {
		return nil, ErrEndpointRequired
	}
	return &StatementClient{cfg: cfg, dispatcher: d, logger: cfg.Logger}, nil
}

type submitStatementRequest struct {
	Code string `json:"code"`
}

// Submit sends one code fragment to the session and returns the
// statement handle from the response location header.
func (c *StatementClient) Submit(ctx context.Context, sess *Session, code string) (*Statement, error) {
	if !sess.Active() {
		return nil, ErrNoSession
	}
	body, err := json.Marshal(submitStatementRequest{Code: code})
	if err != nil {
		return nil, fmt.Errorf("livy: encode statement request: %w", err)
	}

	url := c.cfg.Endpoint + sess.Location + "/statements"
	resp, err := c.dispatcher.Send(ctx, MethodPost, url, body, c.cfg.Retry)
	if err != nil {
		return nil, err
	}
	if !resp.OK() {
		return nil, &StatusError{Method: MethodPost, URL: url, StatusCode: resp.StatusCode, Body: resp.Body}
	}
	location := strings.TrimSpace(resp.Header.Get("Location"))
	if location == "" {
		return nil, ErrMissingLocation
	}

	var st Statement
	if err := json.Unmarshal(resp.Body, &st); err != nil {
		return nil, fmt.Errorf("livy: decode statement response: %w", err)
	}
	st.Location = location
	c.logger.Info().
		Int("session_id", sess.ID).
		Int("statement_id", st.ID).
		Str("location", location).
		Msg("statement_submitted")
	return &st, nil
}

// Get refreshes statement state from the service.
func (c *StatementClient) Get(ctx context.Context, st *Statement) (*Statement, error) {
	if !st.Active() {
		return nil, ErrNoStatement
	}
	url := c.cfg.Endpoint + st.Location
	resp, err := c.dispatcher.Send(ctx, MethodGet, url, nil, c.cfg.Retry)
	if err != nil {
		return nil, err
	}
	if !resp.OK() {
		return nil, &StatusError{Method: MethodGet, URL: url, StatusCode: resp.StatusCode, Body: resp.Body}
	}
	var out Statement
	if err := json.Unmarshal(resp.Body, &out); err != nil {
		return nil, fmt.Errorf("livy: decode statement response: %w", err)
	}
	out.Location = st.Location
	return &out, nil
}

// WaitResult polls until the statement reaches a terminal state or the
// wait window closes.
//
// Failed and cancelled statements are results carrying whatever output
// the service reported; only the timeout produces an error. Individual
// poll failures are absorbed until the window closes.
func (c *StatementClient) WaitResult(ctx context.Context, st *Statement) (*Statement, error) {
	if !st.Active() {
		return nil, ErrNoStatement
	}
	deadline := time.Now().Add(c.cfg.WaitTimeout)
	for {
		current, err := c.Get(ctx, st)
		switch {
		case err != nil:
			if ctx.Err() != nil {
				return nil, err
			}
			observability.RecordPoll("statement", "error")
			c.logger.Warn().
				Int("statement_id", st.ID).
				Err(err).
				Msg("statement_poll_failed")
		case current.State.Terminal():
			observability.RecordPoll("statement", string(current.State))
			c.logger.Info().
				Int("statement_id", current.ID).
				Str("state", string(current.State)).
				Msg("statement_complete")
			return current, nil
		default:
			observability.RecordPoll("statement", string(current.State))
			c.logger.Debug().
				Int("statement_id", current.ID).
				Str("state", string(current.State)).
				Float64("progress", current.Progress).
				Msg("statement_poll")
		}

		if time.Now().After(deadline) {
			return nil, fmt.Errorf("%w: statement not complete after %s", ErrWaitTimeout, c.cfg.WaitTimeout)
		}
		if err := sleepContext(ctx, c.cfg.PollInterval); err != nil {
			return nil, err
		}
	}
}
