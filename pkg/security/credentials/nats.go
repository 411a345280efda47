package credentials

import (
	"context"
	"fmt"

	"github.com/nats-io/nats.go"
)

// NATSOption resolves the provider's current credentials into a connection option
func NATSOption(ctx context.Context, provider Provider) (nats.Option, error) {
	creds, err := provider.GetCredentials(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to get NATS credentials: %w", err)
	}

	switch creds.Type {
	case CredentialTypeToken:
		return nats.Token(creds.Token), nil
	case CredentialTypeUserPassword:
		return nats.UserInfo(creds.User, creds.Password), nil
	case CredentialTypeJWT:
		return nats.UserJWTAndSeed(creds.JWTToken, creds.Seed), nil
	default:
		return nil, fmt.Errorf("%w: unsupported type '%s'", ErrInvalidCredentials, creds.Type)
	}
}
