package credentials

import (
	"context"
	"crypto/hmac"
	"crypto/sha1"
	"encoding/hex"
	"strings"
)

// SignaturePrefix precedes the hex digest in X-Hub-Signature.
const SignaturePrefix = "sha1="

// ComputeSignature returns the X-Hub-Signature value GitHub sends for body.
// Surrounding whitespace in secret is ignored.
func ComputeSignature(secret string, body []byte) string {
	mac := hmac.New(sha1.New, []byte(strings.TrimSpace(secret)))
	mac.Write(body)
	return SignaturePrefix + hex.EncodeToString(mac.Sum(nil))
}

// ValidateSignature checks an X-Hub-Signature header against the raw request
// body. The comparison is exact and constant-time: an upper-case digest or a
// missing prefix does not match. An empty header is reported as invalid
// without consulting the secret store.
func (m *Manager) ValidateSignature(ctx context.Context, header string, body []byte) (bool, error) {
	if header == "" {
		return false, nil
	}

	secret, err := m.secrets.GetSecret(ctx, m.webhookSecretSecret)
	if err != nil {
		m.log.Error("Failed to fetch webhook secret", "secret", m.webhookSecretSecret, "err", err)
		return false, &CredentialError{Op: "fetch webhook secret", Err: err}
	}

	expected := ComputeSignature(secret, body)
	return hmac.Equal([]byte(expected), []byte(header)), nil
}
