package credentials

import (
	"crypto/rsa"
	"crypto/x509"
	"encoding/base64"
	"errors"
	"fmt"
	"strings"

	"github.com/golang-jwt/jwt/v4"
)

// ParsePrivateKey accepts a PEM encoded RSA key or the bare base64 body of
// one (PEM framing already stripped). Both PKCS1 and PKCS8 are accepted.
func ParsePrivateKey(material string) (*rsa.PrivateKey, error) {
	material = strings.TrimSpace(material)
	if material == "" {
		return nil, errors.New("private key is empty")
	}

	if strings.HasPrefix(material, "-----BEGIN") {
		key, err := jwt.ParseRSAPrivateKeyFromPEM([]byte(material))
		if err != nil {
			return nil, fmt.Errorf("parsing PEM private key: %w", err)
		}
		return key, nil
	}

	der, err := base64.StdEncoding.DecodeString(strings.Join(strings.Fields(material), ""))
	if err != nil {
		return nil, fmt.Errorf("decoding base64 private key: %w", err)
	}

	key, err := x509.ParsePKCS1PrivateKey(der)
	if err == nil {
		return key, nil
	}
	parsed, pkcs8Err := x509.ParsePKCS8PrivateKey(der)
	if pkcs8Err != nil {
		return nil, fmt.Errorf("parsing private key: %w (also tried PKCS8: %v)", err, pkcs8Err)
	}
	rsaKey, ok := parsed.(*rsa.PrivateKey)
	if !ok {
		return nil, errors.New("private key is not RSA")
	}
	return rsaKey, nil
}
