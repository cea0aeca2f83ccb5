package livy

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	v4 "github.com/aws/aws-sdk-go-v2/aws/signer/v4"
)

var (
	ErrCredentialsRequired = errors.New("livy: credentials provider required")
	ErrRegionRequired      = errors.New("livy: signing region required")
)

// ServiceName is the SigV4 service namespace for EMR Serverless Livy
// endpoints.
const ServiceName = "emr-serverless"

// SignerConfig configures SigV4 signing identity and scope.
type SignerConfig struct {
	Credentials aws.CredentialsProvider
	Region      string
	Service     string
}

// Signer produces SigV4 signatures for outgoing requests.
type Signer struct {
	creds   aws.CredentialsProvider
	region  string
	service string
	signer  *v4.Signer
	now     func() time.Time
}

// NewSigner validates cfg and builds a Signer for one region/service scope.
func NewSigner(cfg SignerConfig) (*Signer, error) {
	if cfg.Credentials == nil {
		return nil, ErrCredentialsRequired
	}
	region := strings.TrimSpace(cfg.Region)
	if region == "" {
		return nil, ErrRegionRequired
	}
	service := strings.TrimSpace(cfg.Service)
	if service == "" {
		service = ServiceName
	}
	return &Signer{
		creds:   cfg.Credentials,
		region:  region,
		service: service,
		signer:  v4.NewSigner(),
		now:     time.Now,
	}, nil
}

// Sign resolves credentials and signs req in place over payload.
//
// Signatures embed the signing time, so callers must re-sign before every
// network attempt. Failures wrap ErrSigning and are never retryable.
func (s *Signer) Sign(ctx context.Context, req *http.Request, payload []byte) error {
	creds, err := s.creds.Retrieve(ctx)
	if err != nil {
		return fmt.Errorf("%w: resolve credentials: %v", ErrSigning, err)
	}
	sum := sha256.Sum256(payload)
	payloadHash := hex.EncodeToString(sum[:])
	if err := s.signer.SignHTTP(ctx, creds, req, payloadHash, s.service, s.region, s.now().UTC()); err != nil {
		return fmt.Errorf("%w: %v", ErrSigning, err)
	}
	return nil
}
