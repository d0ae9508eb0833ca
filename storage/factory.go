package storage

import (
	"fmt"
	"log/slog"
	"strings"

	redis "github.com/redis/go-redis/v9"
	"github.com/ruteri/templatizer-backend/interfaces"
)

// StoreFactory creates config stores from URI strings and combines them
// for redundant storage.
type StoreFactory struct {
	log *slog.Logger
}

func NewStoreFactory(logger *slog.Logger) *StoreFactory {
	if logger == nil {
		logger = slog.Default()
	}
	return &StoreFactory{log: logger}
}

// StoreFor creates a config store from a location URI.
// The URI format should be [scheme]://[auth@]host[:port][/path][?params]
//
// Supported schemes:
//   - memory:// - In-process map, lost on restart
//   - redis:// or rediss:// - Redis or KeyDB server, db number as path
//   - bolt:// - Embedded BoltDB file
//   - s3:// - Amazon S3 or compatible object storage
//   - file:// - Local filesystem, one JSON file per repository
//
// Returns an error if the URI is invalid or the scheme is unsupported.
func (sf *StoreFactory) StoreFor(locationURI string) (interfaces.ConfigStore, error) {
	loc, err := interfaces.NewStoreLocation(locationURI)
	if err != nil {
		return nil, err
	}

	switch strings.ToLower(loc.Scheme) {
	case "memory":
		return NewMemoryStore(), nil
	case "redis", "rediss":
		return sf.createRedisStore(loc)
	case "bolt":
		return sf.createBoltStore(loc)
	case "s3":
		return sf.createS3Store(loc)
	case "file":
		return sf.createFileStore(loc)
	default:
		return nil, fmt.Errorf("%w: unsupported store scheme: %s", interfaces.ErrInvalidLocationURI, loc.Scheme)
	}
}

// CreateMultiStore creates a multi-backend store from a list of location URIs.
// Locations that fail to initialize are logged and skipped. Returns an error
// if no store could be created.
func (sf *StoreFactory) CreateMultiStore(locationURIs []string) (interfaces.ConfigStore, error) {
	backends := make([]interfaces.ConfigStore, 0, len(locationURIs))

	for _, uri := range locationURIs {
		backend, err := sf.StoreFor(uri)
		if err != nil {
			sf.log.Warn("Failed to create config store",
				"err", err,
				slog.String("locationURI", redactURI(uri)))
			continue
		}
		backends = append(backends, backend)
	}

	if len(backends) == 0 {
		return nil, fmt.Errorf("no valid config stores created")
	}
	if len(backends) == 1 {
		return backends[0], nil
	}

	return NewMultiStore(backends, sf.log), nil
}

// createRedisStore creates a Redis store.
// URI format: redis://[user:password@]host:port/db?prefix=templatizer
func (sf *StoreFactory) createRedisStore(loc interfaces.StoreLocation) (interfaces.ConfigStore, error) {
	sf.log.Debug("Creating redis store", slog.String("uri", loc.Redacted()))

	prefix := loc.GetParam("prefix")

	// go-redis rejects query parameters it does not know.
	query := loc.Query
	query.Del("prefix")
	raw := strings.SplitN(loc.Raw, "?", 2)[0]
	if encoded := query.Encode(); encoded != "" {
		raw += "?" + encoded
	}

	opts, err := redis.ParseURL(raw)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", interfaces.ErrInvalidLocationURI, err)
	}

	return NewRedisStore(opts, prefix, sf.log)
}

// createBoltStore creates an embedded store.
// URI format: bolt:///var/lib/templatizer/configs.db
func (sf *StoreFactory) createBoltStore(loc interfaces.StoreLocation) (interfaces.ConfigStore, error) {
	sf.log.Debug("Creating bolt store", slog.String("uri", loc.String()))

	path := joinHostPath(loc)
	if path == "" {
		return nil, fmt.Errorf("%w: empty path in bolt URI: %s", interfaces.ErrInvalidLocationURI, loc.String())
	}
	return NewBoltStore(path, sf.log)
}

// createS3Store creates an S3 or S3-compatible store.
// URI format: s3://[ACCESS_KEY:SECRET_KEY@]bucket-name/path/?region=us-west-2&endpoint=custom.s3.com
func (sf *StoreFactory) createS3Store(loc interfaces.StoreLocation) (interfaces.ConfigStore, error) {
	sf.log.Debug("Creating S3 store", slog.String("uri", loc.Redacted()))

	bucketName := loc.Host
	if bucketName == "" {
		return nil, fmt.Errorf("%w: missing bucket in S3 URI", interfaces.ErrInvalidLocationURI)
	}

	prefix := strings.TrimPrefix(loc.Path, "/")

	region := loc.GetParam("region")
	if region == "" {
		region = "us-east-1"
	}

	var accessKey, secretKey string
	if loc.User != nil {
		accessKey = loc.User.Username()
		secretKey, _ = loc.User.Password()
		sf.log.Debug("Using embedded S3 credentials")
	}

	return NewS3Store(bucketName, prefix, region, loc.GetParam("endpoint"), accessKey, secretKey, sf.log)
}

// createFileStore creates a file system store.
// URI format: file:///absolute/path/ or file://./relative/path/
func (sf *StoreFactory) createFileStore(loc interfaces.StoreLocation) (interfaces.ConfigStore, error) {
	sf.log.Debug("Creating file store", slog.String("uri", loc.String()))

	path := joinHostPath(loc)
	if path == "" {
		return nil, fmt.Errorf("%w: empty path in file URI: %s", interfaces.ErrInvalidLocationURI, loc.String())
	}
	return NewFileStore(path, sf.log)
}

// joinHostPath treats the host of file-like URIs as the first path segment,
// so file://./data and file:///data both work.
func joinHostPath(loc interfaces.StoreLocation) string {
	if loc.Host == "" {
		return loc.Path
	}
	return loc.Host + "/" + strings.TrimPrefix(loc.Path, "/")
}

func redactURI(uri string) string {
	loc, err := interfaces.NewStoreLocation(uri)
	if err != nil {
		return "<invalid>"
	}
	return loc.Redacted()
}
