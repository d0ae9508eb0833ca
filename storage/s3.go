package storage

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"path"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/aws/awserr"
	"github.com/aws/aws-sdk-go/aws/credentials"
	"github.com/aws/aws-sdk-go/aws/session"
	"github.com/aws/aws-sdk-go/service/s3"
	"github.com/aws/aws-sdk-go/service/s3/s3iface"
	"github.com/ruteri/templatizer-backend/interfaces"
)

// S3Store implements a config store using Amazon S3 or compatible services.
// Each record is one JSON object under <prefix>/configs/. Subscription
// queries list and read every object under that prefix.
type S3Store struct {
	client      s3iface.S3API
	bucketName  string
	prefix      string
	log         *slog.Logger
	locationURI string
}

// NewS3Store creates a new S3 config store. Static credentials are used
// when accessKey and secretKey are given, the default AWS credential chain
// otherwise.
func NewS3Store(bucketName, prefix, region, endpoint, accessKey, secretKey string, log *slog.Logger) (*S3Store, error) {
	// Format the URI for tracking
	uri := fmt.Sprintf("s3://%s/%s?region=%s", bucketName, prefix, region)
	if accessKey != "" {
		uri = fmt.Sprintf("s3://%s:***@%s/%s?region=%s", accessKey, bucketName, prefix, region)
	}
	if endpoint != "" {
		uri += fmt.Sprintf("&endpoint=%s", endpoint)
	}

	cfg := aws.Config{
		Region: aws.String(region),
	}
	if endpoint != "" {
		// S3-compatible services rarely support virtual-hosted buckets.
		cfg.Endpoint = aws.String(endpoint)
		cfg.S3ForcePathStyle = aws.Bool(true)
	}
	if accessKey != "" && secretKey != "" {
		cfg.Credentials = credentials.NewStaticCredentials(accessKey, secretKey, "")
	}

	sess, err := session.NewSession(&cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to create AWS session: %w", err)
	}

	store := newS3Store(s3.New(sess), bucketName, prefix, log)
	store.locationURI = uri
	return store, nil
}

func newS3Store(client s3iface.S3API, bucketName, prefix string, log *slog.Logger) *S3Store {
	return &S3Store{
		client:      client,
		bucketName:  bucketName,
		prefix:      strings.Trim(prefix, "/"),
		log:         log,
		locationURI: fmt.Sprintf("s3://%s/%s", bucketName, prefix),
	}
}

func (b *S3Store) configsPrefix() string {
	if b.prefix == "" {
		return "configs/"
	}
	return path.Join(b.prefix, "configs") + "/"
}

func (b *S3Store) objectKey(repoID int64) string {
	return b.configsPrefix() + formatRepoID(repoID) + ".json"
}

func (b *S3Store) Upsert(ctx context.Context, repoID int64, cfg interfaces.FullConfig) error {
	record, err := prepareRecord(repoID, cfg)
	if err != nil {
		return storeError(b.Name(), "upsert", err)
	}
	data, err := encodeRecord(record)
	if err != nil {
		return storeError(b.Name(), "upsert", err)
	}

	key := b.objectKey(repoID)
	_, err = b.client.PutObjectWithContext(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(b.bucketName),
		Key:         aws.String(key),
		Body:        bytes.NewReader(data),
		ContentType: aws.String("application/json"),
	})
	if err != nil {
		return storeError(b.Name(), "upsert", fmt.Errorf("failed to upload object to S3: %w", err))
	}

	b.log.Debug("Stored config in S3",
		slog.String("bucket", b.bucketName),
		slog.String("key", key))
	return nil
}

func (b *S3Store) Get(ctx context.Context, repoID int64) (*interfaces.FullConfig, error) {
	data, err := b.readObject(ctx, b.objectKey(repoID))
	if err != nil {
		if errors.Is(err, interfaces.ErrConfigNotFound) {
			return nil, err
		}
		return nil, storeError(b.Name(), "get", err)
	}

	record, err := decodeRecord(data)
	if err != nil {
		return nil, storeError(b.Name(), "get", err)
	}
	return &record, nil
}

func (b *S3Store) FindBySubscriptionRef(ctx context.Context, ref string) ([]interfaces.FullConfig, error) {
	start := time.Now()

	var keys []string
	err := b.client.ListObjectsV2PagesWithContext(ctx, &s3.ListObjectsV2Input{
		Bucket: aws.String(b.bucketName),
		Prefix: aws.String(b.configsPrefix()),
	}, func(page *s3.ListObjectsV2Output, lastPage bool) bool {
		for _, object := range page.Contents {
			if key := aws.StringValue(object.Key); strings.HasSuffix(key, ".json") {
				keys = append(keys, key)
			}
		}
		return true
	})
	if err != nil {
		return nil, storeError(b.Name(), "find", fmt.Errorf("failed to list objects: %w", err))
	}

	result := []interfaces.FullConfig{}
	for _, key := range keys {
		data, err := b.readObject(ctx, key)
		if errors.Is(err, interfaces.ErrConfigNotFound) {
			continue
		}
		if err != nil {
			return nil, storeError(b.Name(), "find", err)
		}

		record, err := decodeRecord(data)
		if err != nil {
			b.log.Warn("Skipping malformed config record",
				slog.String("bucket", b.bucketName),
				slog.String("key", key),
				"err", err)
			continue
		}
		if record.Subscribes(ref) {
			result = append(result, record)
		}
	}

	b.log.Debug("Scanned S3 configs",
		slog.String("ref", ref),
		slog.Int("objects", len(keys)),
		slog.Int("matches", len(result)),
		slog.Duration("duration", time.Since(start)))

	sortByRepoID(result)
	return result, nil
}

func (b *S3Store) readObject(ctx context.Context, key string) ([]byte, error) {
	result, err := b.client.GetObjectWithContext(ctx, &s3.GetObjectInput{
		Bucket: aws.String(b.bucketName),
		Key:    aws.String(key),
	})
	if err != nil {
		var aerr awserr.Error
		if errors.As(err, &aerr) && aerr.Code() == s3.ErrCodeNoSuchKey {
			return nil, interfaces.ErrConfigNotFound
		}
		b.log.Error("Failed to get object from S3",
			slog.String("bucket", b.bucketName),
			slog.String("key", key),
			"err", err)
		return nil, fmt.Errorf("failed to get object from S3: %w", err)
	}
	defer result.Body.Close()

	data, err := io.ReadAll(result.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read object body: %w", err)
	}
	return data, nil
}

// Available checks if the S3 store is accessible by attempting to head the bucket.
func (b *S3Store) Available(ctx context.Context) bool {
	start := time.Now()

	_, err := b.client.HeadBucketWithContext(ctx, &s3.HeadBucketInput{
		Bucket: aws.String(b.bucketName),
	})
	if err != nil {
		b.log.Warn("S3 store unavailable",
			slog.String("bucket", b.bucketName),
			"err", err,
			slog.Duration("duration", time.Since(start)))
		return false
	}
	return true
}

func (b *S3Store) Name() string {
	return fmt.Sprintf("s3-%s", b.bucketName)
}

func (b *S3Store) Close() error {
	return nil
}

// LocationURI returns the URI that identifies this store, credentials masked.
func (b *S3Store) LocationURI() string {
	return b.locationURI
}
