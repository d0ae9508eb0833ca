package credentials

import (
	"errors"
	"fmt"
)

// CredentialError is returned when a signed assertion, access token or
// webhook secret cannot be produced. It is fatal to every authenticated call
// of the delivery that hit it.
type CredentialError struct {
	// Op names the failed step, e.g. "sign assertion" or "exchange token".
	Op string

	// StatusCode is the Platform API status for failed exchanges, 0 otherwise.
	StatusCode int

	Err error
}

func (e *CredentialError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("credentials: %s: HTTP %d: %v", e.Op, e.StatusCode, e.Err)
	}
	return fmt.Sprintf("credentials: %s: %v", e.Op, e.Err)
}

func (e *CredentialError) Unwrap() error {
	return e.Err
}

// IsCredentialError reports whether err carries a *CredentialError.
func IsCredentialError(err error) bool {
	var credErr *CredentialError
	return errors.As(err, &credErr)
}

// ErrEmptyToken is returned when the token exchange succeeds with no token.
var ErrEmptyToken = errors.New("token exchange returned an empty token")
