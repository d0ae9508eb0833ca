package secrets

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/aws/awserr"
	"github.com/aws/aws-sdk-go/aws/session"
	"github.com/aws/aws-sdk-go/service/secretsmanager"
	"github.com/aws/aws-sdk-go/service/secretsmanager/secretsmanageriface"
	"github.com/ruteri/templatizer-backend/interfaces"
)

// AWSSecretsManagerProvider reads secrets from AWS Secrets Manager. The
// requested name is prefixed before lookup and the AWSCURRENT version is read.
type AWSSecretsManagerProvider struct {
	client secretsmanageriface.SecretsManagerAPI
	prefix string
	region string
	log    *slog.Logger
}

// NewAWSSecretsManagerProvider creates a provider using the default AWS
// credential chain.
func NewAWSSecretsManagerProvider(region, endpoint, prefix string, log *slog.Logger) (*AWSSecretsManagerProvider, error) {
	cfg := aws.Config{
		Region: aws.String(region),
	}
	if endpoint != "" {
		cfg.Endpoint = aws.String(endpoint)
	}

	sess, err := session.NewSession(&cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to create AWS session: %w", err)
	}

	return newAWSSecretsManagerProvider(secretsmanager.New(sess), region, prefix, log), nil
}

func newAWSSecretsManagerProvider(client secretsmanageriface.SecretsManagerAPI, region, prefix string, log *slog.Logger) *AWSSecretsManagerProvider {
	return &AWSSecretsManagerProvider{
		client: client,
		prefix: prefix,
		region: region,
		log:    log,
	}
}

func (p *AWSSecretsManagerProvider) GetSecret(ctx context.Context, name string) (string, error) {
	start := time.Now()
	secretID := p.prefix + name

	out, err := p.client.GetSecretValueWithContext(ctx, &secretsmanager.GetSecretValueInput{
		SecretId: aws.String(secretID),
	})
	if err != nil {
		var aerr awserr.Error
		if errors.As(err, &aerr) && aerr.Code() == secretsmanager.ErrCodeResourceNotFoundException {
			return "", fmt.Errorf("%w: %s", interfaces.ErrSecretNotFound, secretID)
		}
		p.log.Error("Failed to read from AWS Secrets Manager",
			slog.String("secret_id", secretID),
			"err", err)
		return "", fmt.Errorf("%w: %v", interfaces.ErrBackendUnavailable, err)
	}

	p.log.Debug("Fetched secret from AWS Secrets Manager",
		slog.String("secret_id", secretID),
		slog.Duration("duration", time.Since(start)))

	if out.SecretString != nil {
		return *out.SecretString, nil
	}
	return string(out.SecretBinary), nil
}

func (p *AWSSecretsManagerProvider) Name() string {
	return "awssm-" + p.region
}
