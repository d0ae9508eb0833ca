package clients

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/ruteri/templatizer-backend/api"
	"github.com/ruteri/templatizer-backend/credentials"
	"github.com/ruteri/templatizer-backend/interfaces"
)

// ConfigClient implements api.ConfigProvider and api.WebhookSender over HTTP.
type ConfigClient struct {
	// ServerAddr is the base URL of the templatizer server
	ServerAddr string

	// WebhookSecret signs payloads sent with SendWebhook
	WebhookSecret string

	// HTTPClient defaults to http.DefaultClient
	HTTPClient *http.Client
}

func (c *ConfigClient) httpClient() *http.Client {
	if c.HTTPClient != nil {
		return c.HTTPClient
	}
	return http.DefaultClient
}

func (c *ConfigClient) endpoint(path string) string {
	return strings.TrimSuffix(c.ServerAddr, "/") + path
}

// GetConfig fetches the stored configuration of a repository.
func (c *ConfigClient) GetConfig(ctx context.Context, repoID int64) (*interfaces.FullConfig, error) {
	var cfg interfaces.FullConfig
	if err := c.get(ctx, c.endpoint("/api/configs/"+strconv.FormatInt(repoID, 10)), &cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// FindSubscribers lists the stored configurations subscribing to ref.
func (c *ConfigClient) FindSubscribers(ctx context.Context, ref string) ([]interfaces.FullConfig, error) {
	var configs []interfaces.FullConfig
	query := url.Values{"ref": []string{ref}}
	if err := c.get(ctx, c.endpoint("/api/subscribers?"+query.Encode()), &configs); err != nil {
		return nil, err
	}
	return configs, nil
}

// SendWebhook signs body with WebhookSecret and posts it as the given event.
// It is used to replay deliveries against a running server.
func (c *ConfigClient) SendWebhook(ctx context.Context, event, deliveryID string, body []byte) (*api.DeliveryResponse, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint("/api/github/webhook"), bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set(api.EventHeader, event)
	req.Header.Set(api.SignatureHeader, credentials.ComputeSignature(c.WebhookSecret, body))
	if deliveryID != "" {
		req.Header.Set(api.DeliveryHeader, deliveryID)
	}

	var response api.DeliveryResponse
	if err := c.do(req, &response); err != nil {
		return nil, err
	}
	return &response, nil
}

func (c *ConfigClient) get(ctx context.Context, rawURL string, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return err
	}
	return c.do(req, out)
}

func (c *ConfigClient) do(req *http.Request, out any) error {
	resp, err := c.httpClient().Do(req)
	if err != nil {
		return fmt.Errorf("could not request %s: %w", req.URL.Path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return fmt.Errorf("%s: %w", req.URL.Path, interfaces.ErrConfigNotFound)
	}
	if resp.StatusCode != http.StatusOK {
		bodyBytes, err := io.ReadAll(resp.Body)
		if err != nil {
			return fmt.Errorf("%s returned non-200 response: %d", req.URL.Path, resp.StatusCode)
		}
		return fmt.Errorf("%s returned error %d: %s", req.URL.Path, resp.StatusCode, strings.TrimSpace(string(bodyBytes)))
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("could not parse response: %w", err)
	}
	return nil
}
