package livy

import (
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/rs/zerolog"
)

var ErrApplicationIDRequired = errors.New("livy: application id or endpoint required")

// DefaultRegion scopes signatures when no region is configured.
const DefaultRegion = "us-east-1"

// Endpoint returns the Livy endpoint for one EMR Serverless application.
func Endpoint(applicationID, region string) string {
	return fmt.Sprintf("https://%s.livy.emr-serverless-services.%s.amazonaws.com",
		strings.TrimSpace(applicationID), strings.TrimSpace(region))
}

// ClientConfig configures the full client facade for one application.
type ClientConfig struct {
	ApplicationID    string
	Region           string
	ExecutionRoleARN string

	// Endpoint overrides the derived application endpoint when set,
	// which points the client at a simulator or test server.
	Endpoint string

	Kind                  string
	HeartbeatTimeout      time.Duration
	WaitTimeout           time.Duration
	SessionPollInterval   time.Duration
	StatementPollInterval time.Duration
	HTTPTimeout           time.Duration
	Retry                 RetryPolicy

	Credentials aws.CredentialsProvider
	Logger      zerolog.Logger
}

// DefaultClientConfig returns client defaults mirroring the service ones.
func DefaultClientConfig() ClientConfig {
	return ClientConfig{
		Region:                DefaultRegion,
		Kind:                  DefaultKind,
		HeartbeatTimeout:      DefaultHeartbeatTimeout,
		WaitTimeout:           DefaultWaitTimeout,
		SessionPollInterval:   DefaultSessionPollInterval,
		StatementPollInterval: DefaultStatementPollInterval,
		HTTPTimeout:           DefaultHTTPTimeout,
		Retry:                 DefaultRetryPolicy(),
	}
}

// WithDefaults fills unset fields from DefaultClientConfig.
func (cfg ClientConfig) WithDefaults() ClientConfig {
	def := DefaultClientConfig()
	if strings.TrimSpace(cfg.Region) == "" {
		cfg.Region = def.Region
	}
	if strings.TrimSpace(cfg.Kind) == "" {
		cfg.Kind = def.Kind
	}
	if cfg.HeartbeatTimeout <= 0 {
		cfg.HeartbeatTimeout = def.HeartbeatTimeout
	}
	if cfg.WaitTimeout <= 0 {
		cfg.WaitTimeout = def.WaitTimeout
	}
	if cfg.SessionPollInterval <= 0 {
		cfg.SessionPollInterval = def.SessionPollInterval
	}
	if cfg.StatementPollInterval <= 0 {
		cfg.StatementPollInterval = def.StatementPollInterval
	}
	if cfg.HTTPTimeout <= 0 {
		cfg.HTTPTimeout = def.HTTPTimeout
	}
	cfg.Retry = cfg.Retry.WithDefaults()
	return cfg
}

// Validate reports missing required identity fields.
func (cfg ClientConfig) Validate() error {
	if cfg.Credentials == nil {
		return ErrCredentialsRequired
	}
	if strings.TrimSpace(cfg.Endpoint) == "" && strings.TrimSpace(cfg.ApplicationID) == "" {
		return ErrApplicationIDRequired
	}
	return nil
}

// Client bundles session and statement operations over one dispatcher.
type Client struct {
	cfg        ClientConfig
	endpoint   string
	dispatcher *Dispatcher

	Sessions   *SessionClient
	Statements *StatementClient
}

// NewClient validates cfg and wires signer, dispatcher, and controllers.
func NewClient(cfg ClientConfig) (*Client, error) {
	cfg = cfg.WithDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	signer, err := NewSigner(SignerConfig{Credentials: cfg.Credentials, Region: cfg.Region})
	if err != nil {
		return nil, err
	}
	dispatcher, err := NewDispatcher(DispatcherConfig{
		Signer:     signer,
		HTTPClient: &http.Client{Timeout: cfg.HTTPTimeout},
		Logger:     cfg.Logger,
	})
	if err != nil {
		return nil, err
	}

	endpoint := strings.TrimSpace(cfg.Endpoint)
	if endpoint == "" {
		endpoint = Endpoint(cfg.ApplicationID, cfg.Region)
	}

	sessions, err := NewSessionClient(dispatcher, SessionClientConfig{
		Endpoint:         endpoint,
		Kind:             cfg.Kind,
		ExecutionRoleARN: cfg.ExecutionRoleARN,
		HeartbeatTimeout: cfg.HeartbeatTimeout,
		PollInterval:     cfg.SessionPollInterval,
		WaitTimeout:      cfg.WaitTimeout,
		Retry:            cfg.Retry,
		Logger:           cfg.Logger,
	})
	if err != nil {
		return nil, err
	}
	statements, err := NewStatementClient(dispatcher, StatementClientConfig{
		Endpoint:     endpoint,
		PollInterval: cfg.StatementPollInterval,
		WaitTimeout:  cfg.WaitTimeout,
		Retry:        cfg.Retry,
		Logger:       cfg.Logger,
	})
	if err != nil {
		return nil, err
	}

	return &Client{
		cfg:        cfg,
		endpoint:   strings.TrimRight(endpoint, "/"),
		dispatcher: dispatcher,
		Sessions:   sessions,
		Statements: statements,
	}, nil
}

// Endpoint returns the resolved base URL this client targets.
func (c *Client) Endpoint() string {
	return c.endpoint
}
