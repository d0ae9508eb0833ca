package secrets

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/ruteri/templatizer-backend/interfaces"
)

// EnvProvider reads secrets from environment variables.
type EnvProvider struct {
	prefix string
	lookup func(string) (string, bool)
}

// NewEnvProvider creates a provider that maps a secret name such as
// "templatizer-webhook-secret" to the variable PREFIX + "TEMPLATIZER_WEBHOOK_SECRET".
func NewEnvProvider(prefix string) *EnvProvider {
	return &EnvProvider{prefix: prefix, lookup: os.LookupEnv}
}

// VariableName returns the environment variable consulted for name.
func (p *EnvProvider) VariableName(name string) string {
	normalized := strings.ToUpper(strings.NewReplacer("-", "_", ".", "_", "/", "_").Replace(name))
	return p.prefix + normalized
}

func (p *EnvProvider) GetSecret(ctx context.Context, name string) (string, error) {
	variable := p.VariableName(name)
	value, ok := p.lookup(variable)
	if !ok {
		return "", fmt.Errorf("%w: %s (env %s)", interfaces.ErrSecretNotFound, name, variable)
	}
	return value, nil
}

func (p *EnvProvider) Name() string {
	return "env"
}
