// Package githubapi is the thin Platform API client of the service. It issues
// bearer-authenticated calls to the GitHub REST API through go-github: the
// installation token exchange (authenticated with the App's signed
// assertion) and repository contents reads (authenticated with an
// installation token).
package githubapi

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/google/go-github/v48/github"
	"golang.org/x/oauth2"
)

// DefaultBaseURL is the base URL for the public GitHub API.
const DefaultBaseURL = "https://api.github.com/"

// DefaultUserAgent identifies the service on outbound requests.
const DefaultUserAgent = "Templatizer"

// InstallationToken is an installation-scoped access token and its expiry.
type InstallationToken struct {
	Token     string
	ExpiresAt time.Time
}

// Contents is the subset of the repository contents response the
// configuration resolver needs.
type Contents struct {
	Path     string
	SHA      string
	Encoding string
	Content  string
}

// Client issues authenticated requests to one GitHub API endpoint. Each call
// carries its own bearer token; the client holds no credentials.
type Client struct {
	baseURL    *url.URL
	httpClient *http.Client
	userAgent  string
}

// NewClient creates a client for baseURL (DefaultBaseURL when empty). A nil
// httpClient uses http.DefaultClient.
func NewClient(baseURL string, httpClient *http.Client) (*Client, error) {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	if !strings.HasSuffix(baseURL, "/") {
		baseURL += "/"
	}
	parsed, err := url.Parse(baseURL)
	if err != nil {
		return nil, fmt.Errorf("github: invalid base URL %q: %w", baseURL, err)
	}
	if parsed.Scheme != "https" && parsed.Scheme != "http" {
		return nil, fmt.Errorf("github: unsupported base URL scheme %q", parsed.Scheme)
	}

	if httpClient == nil {
		httpClient = http.DefaultClient
	}

	return &Client{
		baseURL:    parsed,
		httpClient: httpClient,
		userAgent:  DefaultUserAgent,
	}, nil
}

// BaseURL returns the API root the client talks to, with a trailing slash.
func (c *Client) BaseURL() string {
	return c.baseURL.String()
}

// ContentsURL returns the contents endpoint URL of path in owner/repo.
func (c *Client) ContentsURL(owner, repo, path string) string {
	rel := &url.URL{Path: fmt.Sprintf("repos/%s/%s/contents/%s", owner, repo, strings.TrimPrefix(path, "/"))}
	return c.baseURL.ResolveReference(rel).String()
}

// withToken returns a go-github client sending token as a bearer credential.
func (c *Client) withToken(ctx context.Context, token string) *github.Client {
	ctx = context.WithValue(ctx, oauth2.HTTPClient, c.httpClient)
	tokenSource := oauth2.StaticTokenSource(&oauth2.Token{AccessToken: token, TokenType: "Bearer"})

	gh := github.NewClient(oauth2.NewClient(ctx, tokenSource))
	gh.BaseURL = c.baseURL
	gh.UserAgent = c.userAgent
	return gh
}

// CreateInstallationToken exchanges the App's signed assertion for an
// installation access token (POST /app/installations/{id}/access_tokens).
func (c *Client) CreateInstallationToken(ctx context.Context, assertion string, installationID int64) (*InstallationToken, error) {
	gh := c.withToken(ctx, assertion)

	token, resp, err := gh.Apps.CreateInstallationToken(ctx, installationID, nil)
	if err != nil {
		return nil, wrapError("creating installation token", resp, err)
	}

	return &InstallationToken{
		Token:     token.GetToken(),
		ExpiresAt: token.GetExpiresAt(),
	}, nil
}

// GetContents performs an authenticated GET of a contents endpoint. rawURL
// may be absolute or relative to the base URL.
func (c *Client) GetContents(ctx context.Context, token, rawURL string) (*Contents, error) {
	gh := c.withToken(ctx, token)

	req, err := gh.NewRequest(http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, fmt.Errorf("github: creating contents request: %w", err)
	}

	var content github.RepositoryContent
	resp, err := gh.Do(ctx, req, &content)
	if err != nil {
		return nil, wrapError("fetching contents", resp, err)
	}

	// Content is kept encoded; GetContent would decode it.
	var raw string
	if content.Content != nil {
		raw = *content.Content
	}
	return &Contents{
		Path:     content.GetPath(),
		SHA:      content.GetSHA(),
		Encoding: content.GetEncoding(),
		Content:  raw,
	}, nil
}
