package credentials

import (
	"context"
	"errors"
	"fmt"
	"os"
	"time"
)

// StaticProvider provides fixed credentials. Intended for development.
type StaticProvider struct {
	creds *Credentials
}

// NewStaticTokenProvider creates a provider with a static token that expires
// after ttl, or never when ttl is zero
func NewStaticTokenProvider(token string, ttl time.Duration) *StaticProvider {
	var expiresAt *time.Time
	if ttl > 0 {
		exp := time.Now().Add(ttl)
		expiresAt = &exp
	}

	return &StaticProvider{
		creds: &Credentials{
			Type:      CredentialTypeToken,
			Token:     token,
			ExpiresAt: expiresAt,
			Metadata:  map[string]string{"provider": "static"},
		},
	}
}

// NewStaticUserPasswordProvider creates a provider with static username/password
func NewStaticUserPasswordProvider(user, password string) *StaticProvider {
	return &StaticProvider{
		creds: &Credentials{
			Type:     CredentialTypeUserPassword,
			User:     user,
			Password: password,
			Metadata: map[string]string{"provider": "static"},
		},
	}
}

// GetCredentials returns the static credentials
func (p *StaticProvider) GetCredentials(context.Context) (*Credentials, error) {
	if p.creds.IsExpired() {
		return nil, ErrCredentialsExpired
	}
	return p.creds, nil
}

// Close is a no-op
func (p *StaticProvider) Close() error {
	return nil
}

// EnvProvider reads a token from an environment variable on every call, so
// the value can be replaced at runtime
type EnvProvider struct {
	tokenVar string
}

// NewEnvTokenProvider creates a provider that reads the token from tokenEnvVar
func NewEnvTokenProvider(tokenEnvVar string) *EnvProvider {
	return &EnvProvider{tokenVar: tokenEnvVar}
}

// GetCredentials reads the token from the environment
func (p *EnvProvider) GetCredentials(context.Context) (*Credentials, error) {
	token := os.Getenv(p.tokenVar)
	if token == "" {
		return nil, fmt.Errorf("environment variable %s not set", p.tokenVar)
	}

	return &Credentials{
		Type:     CredentialTypeToken,
		Token:    token,
		Metadata: map[string]string{"provider": "environment", "env_var": p.tokenVar},
	}, nil
}

// Close is a no-op
func (p *EnvProvider) Close() error {
	return nil
}

// ChainProvider tries providers in order until one succeeds, e.g. a secret
// keeper with an environment fallback
type ChainProvider struct {
	providers []Provider
}

// NewChainProvider creates a provider that chains multiple providers
func NewChainProvider(providers ...Provider) *ChainProvider {
	return &ChainProvider{providers: providers}
}

// GetCredentials tries each provider in order
func (p *ChainProvider) GetCredentials(ctx context.Context) (*Credentials, error) {
	if len(p.providers) == 0 {
		return nil, fmt.Errorf("no providers configured")
	}

	var errs []error
	for i, provider := range p.providers {
		creds, err := provider.GetCredentials(ctx)
		if err == nil {
			return creds, nil
		}
		errs = append(errs, fmt.Errorf("provider %d failed: %w", i, err))
	}
	return nil, fmt.Errorf("all providers failed: %w", errors.Join(errs...))
}

// Close closes all providers
func (p *ChainProvider) Close() error {
	var errs []error
	for _, provider := range p.providers {
		if err := provider.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
