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

const (
	DefaultKind                = "pyspark"
	DefaultHeartbeatTimeout    = 60 * time.Second
	DefaultSessionPollInterval = 5 * time.Second
	DefaultWaitTimeout         = 300 * time.Second

	executionRoleConfKey = "emr-serverless.session.executionRoleArn"
)

// SessionClientConfig configures session lifecycle calls against one
// endpoint.
type SessionClientConfig struct {
	Endpoint         string
	Kind             string
	ExecutionRoleARN string
	HeartbeatTimeout time.Duration
	PollInterval     time.Duration
	WaitTimeout      time.Duration
	Retry            RetryPolicy
	Logger           zerolog.Logger
}

// DefaultSessionClientConfig returns service-default session settings.
func DefaultSessionClientConfig() SessionClientConfig {
	return SessionClientConfig{
		Kind:             DefaultKind,
		HeartbeatTimeout: DefaultHeartbeatTimeout,
		PollInterval:     DefaultSessionPollInterval,
		WaitTimeout:      DefaultWaitTimeout,
		Retry:            DefaultRetryPolicy(),
	}
}

// WithDefaults fills unset fields from DefaultSessionClientConfig.
func (cfg SessionClientConfig) WithDefaults() SessionClientConfig {
	def := DefaultSessionClientConfig()
	if strings.TrimSpace(cfg.Kind) == "" {
		cfg.Kind = def.Kind
	}
	if cfg.HeartbeatTimeout <= 0 {
		cfg.HeartbeatTimeout = def.HeartbeatTimeout
	}
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

// SessionClient drives remote session lifecycle operations.
type SessionClient struct {
	cfg        SessionClientConfig
	dispatcher *Dispatcher
	logger     zerolog.Logger
}

// NewSessionClient validates cfg and builds a SessionClient over d.
func NewSessionClient(d *Dispatcher, cfg SessionClientConfig) (*SessionClient, error) {
	if d == nil {
		return nil, ErrDispatcherRequired
	}
	cfg = cfg.WithDefaults()
	if cfg.Endpoint == "" {
		return nil, ErrEndpointRequired
	}
	return &SessionClient{cfg: cfg, dispatcher: d, logger: cfg.Logger}, nil
}

type createSessionRequest struct {
	Kind                     string            `json:"kind"`
	HeartbeatTimeoutInSecond int               `json:"heartbeatTimeoutInSecond"`
	Conf                     map[string]string `json:"conf,omitempty"`
}

// Create starts a new session and returns its handle.
//
// The handle's Location comes from the create response location header;
// a 2xx response without one is an API contract violation.
func (c *SessionClient) Create(ctx context.Context) (*Session, error) {
	payload := createSessionRequest{
		Kind:                     c.cfg.Kind,
		HeartbeatTimeoutInSecond: int(c.cfg.HeartbeatTimeout / time.Second),
	}
	if role := strings.TrimSpace(c.cfg.ExecutionRoleARN); role != "" {
		payload.Conf = map[string]string{executionRoleConfKey: role}
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("livy: encode session request: %w", err)
	}

	url := c.cfg.Endpoint + "/sessions"
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

	var sess Session
	if err := json.Unmarshal(resp.Body, &sess); err != nil {
		return nil, fmt.Errorf("livy: decode session response: %w", err)
	}
	sess.Location = location
	c.logger.Info().
		Int("session_id", sess.ID).
		Str("location", location).
		Str("state", string(sess.State)).
		Msg("session_created")
	return &sess, nil
}

// Get refreshes session state from the service.
func (c *SessionClient) Get(ctx context.Context, sess *Session) (*Session, error) {
	if !sess.Active() {
		return nil, ErrNoSession
	}
	url := c.cfg.Endpoint + sess.Location
	resp, err := c.dispatcher.Send(ctx, MethodGet, url, nil, c.cfg.Retry)
	if err != nil {
		return nil, err
	}
	if !resp.OK() {
		return nil, &StatusError{Method: MethodGet, URL: url, StatusCode: resp.StatusCode, Body: resp.Body}
	}
	var out Session
	if err := json.Unmarshal(resp.Body, &out); err != nil {
		return nil, fmt.Errorf("livy: decode session response: %w", err)
	}
	out.Location = sess.Location
	return &out, nil
}

// WaitReady polls until the session is idle, reaches a terminal failure
// state, or the wait window closes.
//
// A terminal failure state is a result, not an error: the caller still
// holds a live handle to inspect or delete. Individual poll failures are
// absorbed; only the cumulative WaitTimeout bounds the loop.
func (c *SessionClient) WaitReady(ctx context.Context, sess *Session) (SessionState, error) {
	if !sess.Active() {
		return "", ErrNoSession
	}
	deadline := time.Now().Add(c.cfg.WaitTimeout)
	for {
		current, err := c.Get(ctx, sess)
		switch {
		case err != nil:
			if ctx.Err() != nil {
				return "", err
			}
			observability.RecordPoll("session", "error")
			c.logger.Warn().
				Int("session_id", sess.ID).
				Err(err).
				Msg("session_poll_failed")
		case current.State.Ready():
			observability.RecordPoll("session", string(current.State))
			sess.State = current.State
			c.logger.Info().
				Int("session_id", current.ID).
				Msg("session_ready")
			return current.State, nil
		case current.State.Terminal():
			observability.RecordPoll("session", string(current.State))
			sess.State = current.State
			c.logger.Warn().
				Int("session_id", current.ID).
				Str("state", string(current.State)).
				Msg("session_failed")
			return current.State, nil
		default:
			observability.RecordPoll("session", string(current.State))
			sess.State = current.State
			c.logger.Debug().
				Int("session_id", current.ID).
				Str("state", string(current.State)).
				Msg("session_poll")
		}

		if time.Now().After(deadline) {
			return "", fmt.Errorf("%w: session not ready after %s", ErrWaitTimeout, c.cfg.WaitTimeout)
		}
		if err := sleepContext(ctx, c.cfg.PollInterval); err != nil {
			return "", err
		}
	}
}

// List fetches the session collection snapshot.
func (c *SessionClient) List(ctx context.Context) (*SessionList, error) {
	url := c.cfg.Endpoint + "/sessions"
	resp, err := c.dispatcher.Send(ctx, MethodGet, url, nil, c.cfg.Retry)
	if err != nil {
		return nil, err
	}
	if !resp.OK() {
		return nil, &StatusError{Method: MethodGet, URL: url, StatusCode: resp.StatusCode, Body: resp.Body}
	}
	var out SessionList
	if err := json.Unmarshal(resp.Body, &out); err != nil {
		return nil, fmt.Errorf("livy: decode session list: %w", err)
	}
	return &out, nil
}

// Delete removes the remote session and deactivates the handle.
//
// Deleting an already-inactive handle is a no-op reporting false.
func (c *SessionClient) Delete(ctx context.Context, sess *Session) (bool, error) {
	if !sess.Active() {
		c.logger.Warn().Msg("session_delete_skipped")
		return false, nil
	}
	url := c.cfg.Endpoint + sess.Location
	resp, err := c.dispatcher.Send(ctx, MethodDelete, url, nil, c.cfg.Retry)
	if err != nil {
		return false, err
	}
	if !resp.OK() {
		return false, &StatusError{Method: MethodDelete, URL: url, StatusCode: resp.StatusCode, Body: resp.Body}
	}
	c.logger.Info().
		Int("session_id", sess.ID).
		Str("location", sess.Location).
		Msg("session_deleted")
	sess.Location = ""
	return true, nil
}
