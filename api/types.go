package api

import (
	"context"

	"github.com/ruteri/templatizer-backend/interfaces"
)

// Header constants used in webhook deliveries.
const (
	// SignatureHeader carries "sha1=" followed by the hex HMAC-SHA1 of the body.
	SignatureHeader = "X-Hub-Signature"

	// EventHeader names the event type, e.g. "push" or "ping".
	EventHeader = "X-GitHub-Event"

	// DeliveryHeader is the platform's unique id of a delivery.
	DeliveryHeader = "X-GitHub-Delivery"
)

// DeliveryResponse summarizes how the server handled one webhook delivery.
type DeliveryResponse struct {
	// Delivery is the X-GitHub-Delivery id, or a generated one if absent
	Delivery string `json:"delivery"`

	// Event is the X-GitHub-Event type
	Event string `json:"event"`

	// State is the terminal planner state, e.g. "plan_emitted" or "ignored"
	State string `json:"state"`

	// Reason explains ignored deliveries and empty plans
	Reason string `json:"reason,omitempty"`

	// Entries is the number of plan entries handed to the executor
	Entries int `json:"entries"`
}

// ConfigProvider reads the persisted configuration store through the
// service's read-only API.
type ConfigProvider interface {
	// GetConfig returns the stored record of a repository, or an error
	// wrapping interfaces.ErrConfigNotFound.
	GetConfig(ctx context.Context, repoID int64) (*interfaces.FullConfig, error)

	// FindSubscribers returns every stored record subscribing to ref.
	FindSubscribers(ctx context.Context, ref string) ([]interfaces.FullConfig, error)
}

// WebhookSender delivers a signed payload to the webhook endpoint.
type WebhookSender interface {
	SendWebhook(ctx context.Context, event, deliveryID string, body []byte) (*DeliveryResponse, error)
}
