// Package credentials supplies the credentials used to connect the command
// receiver to its NATS broker.
//
// Secrets are kept encrypted at rest with gocloud.dev/secrets, which works
// across AWS KMS, GCP KMS, Azure Key Vault, HashiCorp Vault and local keys:
//
//	provider, err := credentials.NewSecretProvider(ctx, "base64key://...", "/etc/gateway/nats.enc")
//	opt, err := credentials.NATSOption(ctx, provider)
//	nc, err := nats.Connect(url, opt)
package credentials

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"
)

var (
	// ErrCredentialsExpired is returned when credentials have expired
	ErrCredentialsExpired = errors.New("credentials expired")

	// ErrInvalidCredentials is returned when credentials are malformed
	ErrInvalidCredentials = errors.New("invalid credentials")

	// ErrProviderClosed is returned when attempting to use a closed provider
	ErrProviderClosed = errors.New("provider is closed")
)

// CredentialType defines the type of credential
type CredentialType string

const (
	// CredentialTypeToken is a bearer token
	CredentialTypeToken CredentialType = "token"

	// CredentialTypeUserPassword is username/password authentication
	CredentialTypeUserPassword CredentialType = "user_password"

	// CredentialTypeJWT is a NATS user JWT signed with an NKey seed
	CredentialTypeJWT CredentialType = "jwt"
)

// Credentials are broker credentials with metadata
type Credentials struct {
	Type CredentialType `json:"type"`

	Token    string `json:"token,omitempty"`
	User     string `json:"user,omitempty"`
	Password string `json:"password,omitempty"`
	JWTToken string `json:"jwt_token,omitempty"`
	Seed     string `json:"seed,omitempty"`

	// ExpiresAt indicates when credentials expire (optional)
	ExpiresAt *time.Time `json:"expires_at,omitempty"`

	Metadata map[string]string `json:"metadata,omitempty"`
}

// IsExpired checks if the credentials have expired
func (c *Credentials) IsExpired() bool {
	if c.ExpiresAt == nil {
		return false
	}
	return time.Now().After(*c.ExpiresAt)
}

// Validate ensures credentials are well-formed for their type
func (c *Credentials) Validate() error {
	switch c.Type {
	case "":
		return fmt.Errorf("%w: type is required", ErrInvalidCredentials)
	case CredentialTypeToken:
		if c.Token == "" {
			return fmt.Errorf("%w: token is required", ErrInvalidCredentials)
		}
	case CredentialTypeUserPassword:
		if c.User == "" || c.Password == "" {
			return fmt.Errorf("%w: user and password are required", ErrInvalidCredentials)
		}
	case CredentialTypeJWT:
		if c.JWTToken == "" || c.Seed == "" {
			return fmt.Errorf("%w: jwt_token and seed are required", ErrInvalidCredentials)
		}
	default:
		return fmt.Errorf("%w: unknown type '%s'", ErrInvalidCredentials, c.Type)
	}
	return nil
}

// String redacts secrets so credentials can be logged
func (c *Credentials) String() string {
	return fmt.Sprintf("Credentials{type=%s, user=%s}", c.Type, c.User)
}

// Provider supplies credentials
type Provider interface {
	// GetCredentials retrieves the current credentials
	GetCredentials(ctx context.Context) (*Credentials, error)

	// Close releases any resources held by the provider
	Close() error
}

// SecretData is the plaintext document stored encrypted in the secret backend
type SecretData struct {
	Credentials *Credentials      `json:"credentials"`
	Version     int               `json:"version"`
	CreatedAt   time.Time         `json:"created_at"`
	Metadata    map[string]string `json:"metadata,omitempty"`
}

func decodeSecretData(plaintext []byte) (*Credentials, error) {
	var data SecretData
	if err := json.Unmarshal(plaintext, &data); err != nil {
		return nil, fmt.Errorf("failed to unmarshal secret data: %w", err)
	}
	if data.Credentials == nil {
		return nil, fmt.Errorf("%w: secret holds no credentials", ErrInvalidCredentials)
	}
	if err := data.Credentials.Validate(); err != nil {
		return nil, fmt.Errorf("invalid credentials in secret: %w", err)
	}
	return data.Credentials, nil
}
