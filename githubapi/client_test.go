package githubapi

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewClient(t *testing.T) {
	c, err := NewClient("", nil)
	require.NoError(t, err)
	assert.Equal(t, DefaultBaseURL, c.BaseURL())

	c, err = NewClient("https://ghe.example.com/api/v3", nil)
	require.NoError(t, err)
	assert.Equal(t, "https://ghe.example.com/api/v3/", c.BaseURL())
	assert.Equal(t,
		"https://ghe.example.com/api/v3/repos/acme/.github/contents/.github/templatizer.yml",
		c.ContentsURL("acme", ".github", ".github/templatizer.yml"))

	_, err = NewClient("ftp://example.com", nil)
	assert.Error(t, err)
}

func TestCreateInstallationToken(t *testing.T) {
	expiresAt := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/app/installations/42/access_tokens", r.URL.Path)
		assert.Equal(t, "Bearer signed-assertion", r.Header.Get("Authorization"))
		assert.Equal(t, DefaultUserAgent, r.Header.Get("User-Agent"))

		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusCreated)
		_ = json.NewEncoder(w).Encode(map[string]any{
			"token":      "ghs_installation",
			"expires_at": expiresAt.Format(time.RFC3339),
		})
	}))
	defer server.Close()

	c, err := NewClient(server.URL, server.Client())
	require.NoError(t, err)

	token, err := c.CreateInstallationToken(context.Background(), "signed-assertion", 42)
	require.NoError(t, err)
	assert.Equal(t, "ghs_installation", token.Token)
	assert.True(t, expiresAt.Equal(token.ExpiresAt))
}

func TestCreateInstallationToken_Unauthorized(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusUnauthorized)
		_, _ = w.Write([]byte(`{"message":"A JSON web token could not be decoded"}`))
	}))
	defer server.Close()

	c, err := NewClient(server.URL, server.Client())
	require.NoError(t, err)

	_, err = c.CreateInstallationToken(context.Background(), "bad", 42)
	require.Error(t, err)
	assert.Equal(t, http.StatusUnauthorized, StatusCode(err))

	var apiErr *APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, "A JSON web token could not be decoded", apiErr.Message)
}

func TestGetContents(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "Bearer ghs_token", r.Header.Get("Authorization"))
		switch r.URL.Path {
		case "/repos/acme/app/contents/.github/templatizer.yml":
			w.Header().Set("Content-Type", "application/json")
			_ = json.NewEncoder(w).Encode(map[string]any{
				"type":     "file",
				"path":     ".github/templatizer.yml",
				"sha":      "abc123",
				"encoding": "base64",
				"content":  "Y29uZmlnU2V0czoKICAtIGFjbWUvdGVtcGxhdGVzL2NpCg==\n",
			})
		default:
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusNotFound)
			_, _ = w.Write([]byte(`{"message":"Not Found"}`))
		}
	}))
	defer server.Close()

	c, err := NewClient(server.URL, server.Client())
	require.NoError(t, err)
	ctx := context.Background()

	contents, err := c.GetContents(ctx, "ghs_token", c.ContentsURL("acme", "app", ".github/templatizer.yml"))
	require.NoError(t, err)
	assert.Equal(t, "base64", contents.Encoding)
	assert.Equal(t, "abc123", contents.SHA)
	assert.Equal(t, "Y29uZmlnU2V0czoKICAtIGFjbWUvdGVtcGxhdGVzL2NpCg==\n", contents.Content, "content stays encoded")

	// Relative URLs resolve against the base URL.
	_, err = c.GetContents(ctx, "ghs_token", "repos/acme/app/contents/.github/templatizer.yml")
	require.NoError(t, err)

	_, err = c.GetContents(ctx, "ghs_token", c.ContentsURL("acme", "missing", ".github/templatizer.yml"))
	require.Error(t, err)
	assert.True(t, IsNotFound(err))
}

func TestGetContents_TransportError(t *testing.T) {
	server := httptest.NewServer(http.NotFoundHandler())
	url := server.URL
	server.Close()

	c, err := NewClient(url, nil)
	require.NoError(t, err)

	_, err = c.GetContents(context.Background(), "tok", "repos/a/b/contents/x")
	require.Error(t, err)
	assert.Equal(t, 0, StatusCode(err))
}
