package secrets

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/hashicorp/vault/api"
	"github.com/ruteri/templatizer-backend/interfaces"
)

// vaultValueKey is the key inside a KV v2 secret that holds the secret value.
const vaultValueKey = "value"

// VaultProvider reads secrets from a HashiCorp Vault KV v2 mount.
// Authentication uses the token from VAULT_TOKEN (or the token argument).
type VaultProvider struct {
	client    *api.Client
	mountPath string
	dataPath  string
	log       *slog.Logger
}

// NewVaultProvider creates a Vault secret provider.
//
// Parameters:
//   - address: Vault server address (e.g. https://vault.example.com:8200)
//   - mountPath: Vault mount path (e.g. "secret")
//   - dataPath: Path within the mount (e.g. "templatizer")
//   - token: Vault token; empty means VAULT_TOKEN from the environment
//   - log: Structured logger for operational insights
func NewVaultProvider(address, mountPath, dataPath, token string, log *slog.Logger) (*VaultProvider, error) {
	config := api.DefaultConfig()
	config.Address = address
	config.HttpClient = &http.Client{
		Timeout: 30 * time.Second,
	}

	client, err := api.NewClient(config)
	if err != nil {
		return nil, fmt.Errorf("failed to create Vault client: %w", err)
	}
	if token != "" {
		client.SetToken(token)
	}

	mountPath = strings.Trim(mountPath, "/")
	dataPath = strings.Trim(dataPath, "/")
	if mountPath == "" {
		return nil, fmt.Errorf("%w: vault mount path is required", interfaces.ErrInvalidLocationURI)
	}

	return &VaultProvider{
		client:    client,
		mountPath: mountPath,
		dataPath:  dataPath,
		log:       log,
	}, nil
}

func (p *VaultProvider) secretPath(name string) string {
	if p.dataPath == "" {
		return fmt.Sprintf("%s/data/%s", p.mountPath, name)
	}
	return fmt.Sprintf("%s/data/%s/%s", p.mountPath, p.dataPath, name)
}

// GetSecret reads the "value" key of the KV v2 secret at mount/dataPath/name.
func (p *VaultProvider) GetSecret(ctx context.Context, name string) (string, error) {
	start := time.Now()
	path := p.secretPath(name)

	secret, err := p.client.Logical().ReadWithContext(ctx, path)
	if err != nil {
		p.log.Error("Failed to read from Vault",
			slog.String("path", path),
			"err", err)
		return "", fmt.Errorf("%w: %v", interfaces.ErrBackendUnavailable, err)
	}

	if secret == nil || secret.Data == nil {
		return "", fmt.Errorf("%w: %s", interfaces.ErrSecretNotFound, name)
	}

	data, ok := secret.Data["data"].(map[string]interface{})
	if !ok {
		return "", fmt.Errorf("invalid data format in Vault response for %s", name)
	}

	value, ok := data[vaultValueKey]
	if !ok {
		return "", fmt.Errorf("%w: %s has no %q key", interfaces.ErrSecretNotFound, name, vaultValueKey)
	}

	valueStr, ok := value.(string)
	if !ok {
		return "", fmt.Errorf("invalid value format in Vault secret %s", name)
	}

	p.log.Debug("Fetched secret from Vault",
		slog.String("name", name),
		slog.Duration("duration", time.Since(start)))

	return valueStr, nil
}

func (p *VaultProvider) Name() string {
	return fmt.Sprintf("vault-%s-%s", p.mountPath, p.dataPath)
}
