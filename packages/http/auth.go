package http

import (
	"context"

	awsconfig "github.com/aws/aws-sdk-go-v2/config"
)

// AuthMode selects how a logical request authenticates.
type AuthMode string

const (
	AuthNone   AuthMode = "none"
	AuthBasic  AuthMode = "basic"
	AuthBearer AuthMode = "bearer"
	AuthDigest AuthMode = "digest"
	AuthAWSV4  AuthMode = "awsv4"
)

type BasicAuth struct {
	Username string `yaml:"username"`
	Password string `yaml:"password"`
}

type BearerAuth struct {
	Token string `yaml:"token"`
}

// DigestAuthCredentials holds credentials for digest auth
type DigestAuthCredentials struct {
	Username string `yaml:"username"`
	Password string `yaml:"password"`
}

// AWSAuthCredentials holds credentials for AWS Signature v4 authentication.
// When ProfileName is set and the keys are empty, the keys are loaded from the
// shared AWS config for that profile.
type AWSAuthCredentials struct {
	AccessKeyID     string `yaml:"accessKeyId"`
	SecretAccessKey string `yaml:"secretAccessKey"`
	SessionToken    string `yaml:"sessionToken"`
	Service         string `yaml:"service"`
	Region          string `yaml:"region"`
	ProfileName     string `yaml:"profileName"`
}

// AuthConfig is the resolved auth configuration of a logical request.
type AuthConfig struct {
	Mode   AuthMode               `yaml:"mode"`
	Basic  *BasicAuth             `yaml:"basic"`
	Bearer *BearerAuth            `yaml:"bearer"`
	Digest *DigestAuthCredentials `yaml:"digest"`
	AWS    *AWSAuthCredentials    `yaml:"awsv4"`
}

// AuthContext is the per-logical-request auth state. Digest challenge data
// and the nonce counter live here and die with the logical request.
type AuthContext struct {
	Mode   AuthMode
	Digest *DigestState
	AWS    *AWSAuthCredentials
}

// AWSCredentialResolver loads credentials for a shared-config profile.
type AWSCredentialResolver func(ctx context.Context, profile string) (AWSAuthCredentials, error)

// resolveAWSProfile reads the profile through the AWS SDK's default chain.
func resolveAWSProfile(ctx context.Context, profile string) (AWSAuthCredentials, error) {
	cfg, err := awsconfig.LoadDefaultConfig(ctx, awsconfig.WithSharedConfigProfile(profile))
	if err != nil {
		return AWSAuthCredentials{}, err
	}
	creds, err := cfg.Credentials.Retrieve(ctx)
	if err != nil {
		return AWSAuthCredentials{}, err
	}
	return AWSAuthCredentials{
		AccessKeyID:     creds.AccessKeyID,
		SecretAccessKey: creds.SecretAccessKey,
		SessionToken:    creds.SessionToken,
		Region:          cfg.Region,
	}, nil
}

// newAuthContext validates the auth configuration and creates the state for
// one logical request.
func newAuthContext(ctx context.Context, cfg AuthConfig, resolve AWSCredentialResolver) (*AuthContext, error) {
	ac := &AuthContext{Mode: cfg.Mode}
	switch cfg.Mode {
	case "", AuthNone:
		ac.Mode = AuthNone
	case AuthBasic:
		if cfg.Basic == nil {
			return nil, &AuthConfigurationError{Mode: cfg.Mode, Reason: "missing username/password"}
		}
	case AuthBearer:
		if cfg.Bearer == nil {
			return nil, &AuthConfigurationError{Mode: cfg.Mode, Reason: "missing token"}
		}
	case AuthDigest:
		if cfg.Digest == nil || cfg.Digest.Username == "" {
			return nil, &AuthConfigurationError{Mode: cfg.Mode, Reason: "missing username"}
		}
		ac.Digest = NewDigestState(cfg.Digest.Username, cfg.Digest.Password)
	case AuthAWSV4:
		if cfg.AWS == nil {
			return nil, &AuthConfigurationError{Mode: cfg.Mode, Reason: "missing credentials"}
		}
		creds := *cfg.AWS
		if creds.ProfileName != "" && (creds.AccessKeyID == "" || creds.SecretAccessKey == "") {
			if resolve == nil {
				resolve = resolveAWSProfile
			}
			loaded, err := resolve(ctx, creds.ProfileName)
			if err != nil {
				return nil, &AuthConfigurationError{Mode: cfg.Mode, Reason: "loading profile " + creds.ProfileName, Err: err}
			}
			creds.AccessKeyID = loaded.AccessKeyID
			creds.SecretAccessKey = loaded.SecretAccessKey
			creds.SessionToken = loaded.SessionToken
			if creds.Region == "" {
				creds.Region = loaded.Region
			}
		}
		ac.AWS = &creds
	default:
		return nil, &AuthConfigurationError{Mode: cfg.Mode, Reason: "unsupported auth mode"}
	}
	return ac, nil
}
