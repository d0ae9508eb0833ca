// Package credentials mints and caches the GitHub App credentials used by
// the service and verifies webhook signatures.
//
// Two credentials are managed: the signed assertion (an RS256 JWT that
// authenticates as the App) and installation access tokens (exchanged for an
// assertion, keyed by installation id). Both are held in process memory and
// reused while the clock is strictly before their expiry.
package credentials

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v4"
	"github.com/ruteri/templatizer-backend/githubapi"
	"github.com/ruteri/templatizer-backend/interfaces"
	"github.com/ruteri/templatizer-backend/metrics"
	"golang.org/x/sync/singleflight"
)

const (
	// DefaultPrivateKeySecret names the secret holding the App private key.
	DefaultPrivateKeySecret = "templatizer-github-key"

	// DefaultWebhookSecretSecret names the secret holding the webhook HMAC key.
	DefaultWebhookSecretSecret = "templatizer-webhook-secret"

	// DefaultAssertionTTL is the lifetime of a signed assertion.
	DefaultAssertionTTL = 9 * time.Minute

	// assertionBackdate offsets iat for clock skew between us and GitHub.
	assertionBackdate = 60 * time.Second

	// DefaultMintTimeout bounds a shared mint once detached from its callers.
	DefaultMintTimeout = 30 * time.Second
)

// TokenExchanger exchanges a signed assertion for an installation token.
// *githubapi.Client implements it.
type TokenExchanger interface {
	CreateInstallationToken(ctx context.Context, assertion string, installationID int64) (*githubapi.InstallationToken, error)
}

// Config wires a Manager to its collaborators.
type Config struct {
	AppID int64

	// Secret names looked up in Secrets. Defaults apply when empty.
	PrivateKeySecret    string
	WebhookSecretSecret string

	// AssertionTTL defaults to DefaultAssertionTTL.
	AssertionTTL time.Duration

	// MintTimeout defaults to DefaultMintTimeout.
	MintTimeout time.Duration

	Secrets   interfaces.SecretProvider
	Exchanger TokenExchanger

	// Clock defaults to time.Now.
	Clock   func() time.Time
	Metrics *metrics.Collectors
	Log     *slog.Logger
}

type credential struct {
	value     string
	expiresAt time.Time
}

// validAt reports whether the credential may still be used. A credential
// whose expiry equals now is expired.
func (c credential) validAt(now time.Time) bool {
	return c.value != "" && now.Before(c.expiresAt)
}

// Manager is safe for concurrent use. Concurrent misses for the same
// credential share one mint.
type Manager struct {
	appID               int64
	privateKeySecret    string
	webhookSecretSecret string
	assertionTTL        time.Duration
	mintTimeout         time.Duration

	secrets   interfaces.SecretProvider
	exchanger TokenExchanger
	clock     func() time.Time
	metrics   *metrics.Collectors
	log       *slog.Logger

	mu        sync.Mutex
	assertion credential
	tokens    map[int64]credential

	flight singleflight.Group
}

func NewManager(cfg Config) (*Manager, error) {
	if cfg.AppID <= 0 {
		return nil, fmt.Errorf("credentials: app id must be positive, got %d", cfg.AppID)
	}
	if cfg.Secrets == nil {
		return nil, fmt.Errorf("credentials: secret provider is required")
	}
	if cfg.Exchanger == nil {
		return nil, fmt.Errorf("credentials: token exchanger is required")
	}

	m := &Manager{
		appID:               cfg.AppID,
		privateKeySecret:    cfg.PrivateKeySecret,
		webhookSecretSecret: cfg.WebhookSecretSecret,
		assertionTTL:        cfg.AssertionTTL,
		mintTimeout:         cfg.MintTimeout,
		secrets:             cfg.Secrets,
		exchanger:           cfg.Exchanger,
		clock:               cfg.Clock,
		metrics:             cfg.Metrics,
		log:                 cfg.Log,
		tokens:              make(map[int64]credential),
	}
	if m.privateKeySecret == "" {
		m.privateKeySecret = DefaultPrivateKeySecret
	}
	if m.webhookSecretSecret == "" {
		m.webhookSecretSecret = DefaultWebhookSecretSecret
	}
	if m.assertionTTL <= 0 {
		m.assertionTTL = DefaultAssertionTTL
	}
	if m.mintTimeout <= 0 {
		m.mintTimeout = DefaultMintTimeout
	}
	if m.clock == nil {
		m.clock = time.Now
	}
	if m.metrics == nil {
		m.metrics = metrics.Nop()
	}
	if m.log == nil {
		m.log = slog.Default()
	}
	return m, nil
}

// GetSignedAssertion returns a JWT that authenticates as the App, minting
// a new one when the cached assertion has expired.
func (m *Manager) GetSignedAssertion(ctx context.Context) (string, error) {
	if value, ok := m.cachedAssertion(); ok {
		return value, nil
	}

	return m.shared(ctx, "assertion", func(mintCtx context.Context) (string, error) {
		if value, ok := m.cachedAssertion(); ok {
			return value, nil
		}
		return m.mintAssertion(mintCtx)
	})
}

// shared runs mint once per key for all concurrent callers. The mint does
// not inherit the cancellation of whichever caller started it; each caller
// stops waiting when its own ctx is done.
func (m *Manager) shared(ctx context.Context, key string, mint func(context.Context) (string, error)) (string, error) {
	ch := m.flight.DoChan(key, func() (any, error) {
		mintCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), m.mintTimeout)
		defer cancel()
		return mint(mintCtx)
	})

	select {
	case <-ctx.Done():
		return "", ctx.Err()
	case res := <-ch:
		if res.Err != nil {
			return "", res.Err
		}
		return res.Val.(string), nil
	}
}

func (m *Manager) cachedAssertion() (string, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.assertion.validAt(m.clock()) {
		return m.assertion.value, true
	}
	return "", false
}

func (m *Manager) mintAssertion(ctx context.Context) (string, error) {
	signed, expiresAt, err := m.signAssertion(ctx)
	if err != nil {
		m.metrics.CredentialMints.WithLabelValues("assertion", "error").Inc()
		m.log.Error("Failed to mint signed assertion", "err", err)
		return "", err
	}
	m.metrics.CredentialMints.WithLabelValues("assertion", "ok").Inc()

	m.mu.Lock()
	m.assertion = credential{value: signed, expiresAt: expiresAt}
	m.mu.Unlock()

	m.log.Debug("Minted signed assertion", slog.Time("expires_at", expiresAt))
	return signed, nil
}

func (m *Manager) signAssertion(ctx context.Context) (string, time.Time, error) {
	material, err := m.secrets.GetSecret(ctx, m.privateKeySecret)
	if err != nil {
		return "", time.Time{}, &CredentialError{Op: "fetch private key", Err: err}
	}

	key, err := ParsePrivateKey(material)
	if err != nil {
		return "", time.Time{}, &CredentialError{Op: "parse private key", Err: err}
	}

	now := m.clock()
	expiresAt := now.Add(m.assertionTTL)
	claims := jwt.RegisteredClaims{
		Issuer:    strconv.FormatInt(m.appID, 10),
		IssuedAt:  jwt.NewNumericDate(now.Add(-assertionBackdate)),
		ExpiresAt: jwt.NewNumericDate(expiresAt),
	}

	signed, err := jwt.NewWithClaims(jwt.SigningMethodRS256, claims).SignedString(key)
	if err != nil {
		return "", time.Time{}, &CredentialError{Op: "sign assertion", Err: err}
	}
	return signed, expiresAt, nil
}

// GetAccessToken returns an access token for the installation, exchanging a
// signed assertion for a new one when the cached token has expired.
func (m *Manager) GetAccessToken(ctx context.Context, installationID int64) (string, error) {
	if value, ok := m.cachedToken(installationID); ok {
		return value, nil
	}

	key := "token:" + strconv.FormatInt(installationID, 10)
	return m.shared(ctx, key, func(mintCtx context.Context) (string, error) {
		if value, ok := m.cachedToken(installationID); ok {
			return value, nil
		}
		return m.mintToken(mintCtx, installationID)
	})
}

func (m *Manager) cachedToken(installationID int64) (string, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if token, ok := m.tokens[installationID]; ok && token.validAt(m.clock()) {
		return token.value, true
	}
	return "", false
}

func (m *Manager) mintToken(ctx context.Context, installationID int64) (string, error) {
	assertion, err := m.GetSignedAssertion(ctx)
	if err != nil {
		return "", err
	}

	token, err := m.exchanger.CreateInstallationToken(ctx, assertion, installationID)
	if err != nil {
		status := githubapi.StatusCode(err)
		m.metrics.CredentialMints.WithLabelValues("access_token", "error").Inc()
		m.log.Error("Failed to exchange signed assertion for access token",
			slog.Int64("installation_id", installationID),
			slog.Int("status_code", status),
			"err", err)
		return "", &CredentialError{Op: "exchange token", StatusCode: status, Err: err}
	}
	if token.Token == "" {
		m.metrics.CredentialMints.WithLabelValues("access_token", "error").Inc()
		return "", &CredentialError{Op: "exchange token", Err: ErrEmptyToken}
	}
	m.metrics.CredentialMints.WithLabelValues("access_token", "ok").Inc()

	m.mu.Lock()
	m.tokens[installationID] = credential{value: token.Token, expiresAt: token.ExpiresAt}
	m.mu.Unlock()

	m.log.Debug("Minted access token",
		slog.Int64("installation_id", installationID),
		slog.Time("expires_at", token.ExpiresAt))
	return token.Token, nil
}

// Invalidate drops every cached credential.
func (m *Manager) Invalidate() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.assertion = credential{}
	m.tokens = make(map[int64]credential)
}
