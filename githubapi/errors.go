package githubapi

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/google/go-github/v48/github"
)

// APIError represents a non-2xx response from the GitHub REST API.
type APIError struct {
	// StatusCode is the HTTP response status code.
	StatusCode int

	// Message is the top-level error description from GitHub.
	Message string

	// Err is the error returned by the underlying client.
	Err error
}

func (err *APIError) Error() string {
	return fmt.Sprintf("github: HTTP %d: %s", err.StatusCode, err.Message)
}

func (err *APIError) Unwrap() error {
	return err.Err
}

// IsNotFound reports whether err is a GitHub API 404 Not Found response.
func IsNotFound(err error) bool {
	return StatusCode(err) == http.StatusNotFound
}

// StatusCode returns the HTTP status of an *APIError, or 0.
func StatusCode(err error) int {
	var apiError *APIError
	if errors.As(err, &apiError) {
		return apiError.StatusCode
	}
	return 0
}

// wrapError converts go-github failures into *APIError when the server
// answered. Transport failures and context errors are returned wrapped as-is.
func wrapError(op string, resp *github.Response, err error) error {
	if resp == nil || resp.Response == nil {
		return fmt.Errorf("github: %s: %w", op, err)
	}

	message := http.StatusText(resp.StatusCode)
	var errorResponse *github.ErrorResponse
	if errors.As(err, &errorResponse) && errorResponse.Message != "" {
		message = errorResponse.Message
	}
	return &APIError{StatusCode: resp.StatusCode, Message: message, Err: err}
}
