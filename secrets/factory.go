package secrets

import (
	"fmt"
	"log/slog"
	"strings"

	"github.com/ruteri/templatizer-backend/interfaces"
)

// ProviderFor creates a secret provider from a location URI.
//
// Supported schemes:
//   - env://?prefix=TEMPLATIZER_
//   - file:///path/to/dir
//   - vault://host:port/mount/path[?tls=false]
//   - awssm://region[?prefix=...&endpoint=...]
func ProviderFor(uri string, log *slog.Logger) (interfaces.SecretProvider, error) {
	loc, err := interfaces.NewStoreLocation(uri)
	if err != nil {
		return nil, err
	}

	switch strings.ToLower(loc.Scheme) {
	case "env":
		return NewEnvProvider(loc.GetParam("prefix")), nil
	case "file":
		return NewFileProvider(loc.Path, log)
	case "vault":
		return createVaultProvider(loc, log)
	case "awssm":
		if loc.Host == "" {
			return nil, fmt.Errorf("%w: awssm location requires a region host", interfaces.ErrInvalidLocationURI)
		}
		return NewAWSSecretsManagerProvider(loc.Host, loc.GetParam("endpoint"), loc.GetParam("prefix"), log)
	default:
		return nil, fmt.Errorf("%w: unsupported secret provider scheme: %s", interfaces.ErrInvalidLocationURI, loc.Scheme)
	}
}

func createVaultProvider(loc interfaces.StoreLocation, log *slog.Logger) (interfaces.SecretProvider, error) {
	if loc.Host == "" {
		return nil, fmt.Errorf("%w: vault location requires a host", interfaces.ErrInvalidLocationURI)
	}

	scheme := "https"
	if tls := loc.GetParam("tls"); tls == "false" || tls == "0" {
		scheme = "http"
	}
	address := fmt.Sprintf("%s://%s", scheme, loc.Host)

	// First path segment is the mount, the rest is the data path.
	mountPath, dataPath, _ := strings.Cut(strings.Trim(loc.Path, "/"), "/")

	return NewVaultProvider(address, mountPath, dataPath, "", log)
}
