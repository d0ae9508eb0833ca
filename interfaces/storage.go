package interfaces

import (
	"context"
	"errors"
	"fmt"
	"net/url"
)

// StoreLocation represents the URI of a persisted config store or secret
// provider backend.
type StoreLocation struct {
	Raw    string     // Original URI
	Scheme string     // Protocol
	Host   string     // Hostname
	Path   string     // Resource path
	Query  url.Values // Query parameters
	User   *url.Userinfo
}

// NewStoreLocation parses a backend URI. Scheme validation is left to the
// factory that consumes the location.
func NewStoreLocation(uri string) (StoreLocation, error) {
	parsed, err := url.Parse(uri)
	if err != nil {
		return StoreLocation{}, fmt.Errorf("%w: %v", ErrInvalidLocationURI, err)
	}
	if parsed.Scheme == "" {
		return StoreLocation{}, fmt.Errorf("%w: missing scheme in %q", ErrInvalidLocationURI, uri)
	}

	return StoreLocation{
		Raw:    uri,
		Scheme: parsed.Scheme,
		Host:   parsed.Host,
		Path:   parsed.Path,
		Query:  parsed.Query(),
		User:   parsed.User,
	}, nil
}

// String returns the original URI string.
func (loc StoreLocation) String() string {
	return loc.Raw
}

// Redacted returns the URI with any password masked.
func (loc StoreLocation) Redacted() string {
	parsed, err := url.Parse(loc.Raw)
	if err != nil {
		return loc.Scheme + "://***"
	}
	return parsed.Redacted()
}

// GetParam returns a query parameter value.
func (loc StoreLocation) GetParam(name string) string {
	return loc.Query.Get(name)
}

// GetParamBool returns a boolean query parameter value.
func (loc StoreLocation) GetParamBool(name string) bool {
	value := loc.Query.Get(name)
	return value == "true" || value == "1" || value == "yes"
}

var (
	// ErrConfigNotFound is returned when no configuration is stored for a repository.
	ErrConfigNotFound = errors.New("config not found")

	// ErrBackendUnavailable is returned when a store backend is not accessible.
	// This could be due to network issues, authentication failures, or service outages.
	ErrBackendUnavailable = errors.New("store backend unavailable")

	// ErrInvalidLocationURI is returned when a backend location URI is malformed or unsupported.
	ErrInvalidLocationURI = errors.New("invalid backend location URI")

	// ErrSecretNotFound is returned when the named secret does not exist.
	ErrSecretNotFound = errors.New("secret not found")
)

// ConfigStore persists the last-known configuration of every repository.
// Writes are last-writer-wins upserts.
type ConfigStore interface {
	// Upsert stores cfg under repoID, replacing any previous record.
	Upsert(ctx context.Context, repoID int64, cfg FullConfig) error

	// Get returns the stored record or ErrConfigNotFound.
	Get(ctx context.Context, repoID int64) (*FullConfig, error)

	// FindBySubscriptionRef returns every stored record whose config sets
	// include ref. Malformed records are skipped.
	FindBySubscriptionRef(ctx context.Context, ref string) ([]FullConfig, error)

	// Available checks if backend is accessible.
	Available(ctx context.Context) bool

	// Name returns identifier for logging.
	Name() string

	// Close releases the backend's resources.
	Close() error
}

// SecretProvider resolves named secrets.
type SecretProvider interface {
	// GetSecret returns the secret value or an error wrapping ErrSecretNotFound.
	GetSecret(ctx context.Context, name string) (string, error)

	// Name returns identifier for logging.
	Name() string
}
