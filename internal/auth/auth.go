// Package auth provides minimal AWS credential helpers.
//
// It intentionally avoids policy decisions and credential storage concerns.
package auth

import (
	"context"
	"errors"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
)

var ErrAccessKeyRequired = errors.New("auth: access key id and secret required")

// DefaultCredentials resolves the ambient credential chain: environment,
// shared config files, then instance metadata.
func DefaultCredentials(ctx context.Context) (aws.CredentialsProvider, error) {
	cfg, err := awsconfig.LoadDefaultConfig(ctx)
	if err != nil {
		return nil, err
	}
	return cfg.Credentials, nil
}

// StaticCredentials builds a fixed-key provider. It is intended only for
// development and local simulators.
func StaticCredentials(accessKeyID, secretAccessKey, sessionToken string) (aws.CredentialsProvider, error) {
	if strings.TrimSpace(accessKeyID) == "" || strings.TrimSpace(secretAccessKey) == "" {
		return nil, ErrAccessKeyRequired
	}
	return credentials.NewStaticCredentialsProvider(accessKeyID, secretAccessKey, sessionToken), nil
}

// FuncProvider adapts a function into an aws.CredentialsProvider.
type FuncProvider func(ctx context.Context) (aws.Credentials, error)

func (f FuncProvider) Retrieve(ctx context.Context) (aws.Credentials, error) {
	return f(ctx)
}
