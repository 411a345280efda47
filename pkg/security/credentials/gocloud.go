package credentials

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"sync"
	"time"

	"gocloud.dev/secrets"
	// Keeper drivers are opt-in; import the one you use in the application:
	// _ "gocloud.dev/secrets/awskms"
	// _ "gocloud.dev/secrets/gcpkms"
	// _ "gocloud.dev/secrets/azurekeyvault"
	// _ "gocloud.dev/secrets/hashivault"
	// _ "gocloud.dev/secrets/localsecrets"
)

// DefaultCacheTTL is how long decrypted credentials are reused
const DefaultCacheTTL = 5 * time.Minute

// SecretProvider decrypts credentials stored in a file with a gocloud
// secrets keeper. The file is re-read once the cache expires, so rotating
// the credentials only requires replacing the file.
type SecretProvider struct {
	keeper   *secrets.Keeper
	path     string
	cacheTTL time.Duration
	now      func() time.Time

	mu          sync.Mutex
	cachedCreds *Credentials
	cacheExpiry time.Time
	closed      bool
}

// NewSecretProvider opens the keeper at keeperURL and loads the encrypted
// credentials file at path.
//
// Keeper URL formats:
//   - AWS KMS: "awskms://alias/gateway?region=us-east-1"
//   - GCP KMS: "gcpkms://projects/P/locations/L/keyRings/R/cryptoKeys/K"
//   - Azure Key Vault: "azurekeyvault://VAULT.vault.azure.net/keys/KEY"
//   - HashiCorp Vault: "hashivault://KEY"
//   - Local (dev): "base64key://..."
func NewSecretProvider(ctx context.Context, keeperURL, path string) (*SecretProvider, error) {
	return NewSecretProviderWithTTL(ctx, keeperURL, path, DefaultCacheTTL)
}

// NewSecretProviderWithTTL is like NewSecretProvider with a custom cache TTL
func NewSecretProviderWithTTL(ctx context.Context, keeperURL, path string, cacheTTL time.Duration) (*SecretProvider, error) {
	if keeperURL == "" {
		return nil, fmt.Errorf("secret keeper URL is required")
	}
	if path == "" {
		return nil, fmt.Errorf("credentials file is required")
	}

	keeper, err := secrets.OpenKeeper(ctx, keeperURL)
	if err != nil {
		return nil, fmt.Errorf("failed to open secret keeper: %w", err)
	}

	p := &SecretProvider{
		keeper:   keeper,
		path:     path,
		cacheTTL: cacheTTL,
		now:      time.Now,
	}

	if _, err := p.GetCredentials(ctx); err != nil {
		keeper.Close()
		return nil, fmt.Errorf("failed to load initial credentials: %w", err)
	}

	return p, nil
}

// GetCredentials returns cached credentials or decrypts the file again
func (p *SecretProvider) GetCredentials(ctx context.Context) (*Credentials, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.closed {
		return nil, ErrProviderClosed
	}

	if p.cachedCreds == nil || !p.now().Before(p.cacheExpiry) {
		creds, err := p.load(ctx)
		if err != nil {
			return nil, err
		}
		p.cachedCreds = creds
		p.cacheExpiry = p.now().Add(p.cacheTTL)
	}

	if p.cachedCreds.IsExpired() {
		return nil, ErrCredentialsExpired
	}
	return p.cachedCreds, nil
}

func (p *SecretProvider) load(ctx context.Context) (*Credentials, error) {
	ciphertext, err := os.ReadFile(p.path)
	if err != nil {
		return nil, fmt.Errorf("failed to read credentials file: %w", err)
	}

	plaintext, err := p.keeper.Decrypt(ctx, ciphertext)
	if err != nil {
		return nil, fmt.Errorf("failed to decrypt secret: %w", err)
	}

	return decodeSecretData(plaintext)
}

// Invalidate drops the cached credentials so the next call re-reads the file
func (p *SecretProvider) Invalidate() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.cachedCreds = nil
}

// Close releases the keeper
func (p *SecretProvider) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.closed {
		return nil
	}
	p.closed = true
	return p.keeper.Close()
}

// StoreCredentials encrypts creds with the keeper at keeperURL and writes the
// ciphertext to path, readable only by the owner
func StoreCredentials(ctx context.Context, keeperURL, path string, creds *Credentials) error {
	if err := creds.Validate(); err != nil {
		return fmt.Errorf("invalid credentials: %w", err)
	}

	keeper, err := secrets.OpenKeeper(ctx, keeperURL)
	if err != nil {
		return fmt.Errorf("failed to open keeper: %w", err)
	}
	defer keeper.Close()

	plaintext, err := json.Marshal(SecretData{
		Credentials: creds,
		Version:     1,
		CreatedAt:   time.Now().UTC(),
		Metadata:    map[string]string{"created_by": "commandgateway"},
	})
	if err != nil {
		return fmt.Errorf("failed to marshal credentials: %w", err)
	}

	ciphertext, err := keeper.Encrypt(ctx, plaintext)
	if err != nil {
		return fmt.Errorf("failed to encrypt credentials: %w", err)
	}

	if err := os.WriteFile(path, ciphertext, 0o600); err != nil {
		return fmt.Errorf("failed to write credentials file: %w", err)
	}
	return nil
}
