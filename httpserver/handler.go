package httpserver

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/go-github/v48/github"
	"github.com/google/uuid"
	"github.com/ruteri/templatizer-backend/api"
	"github.com/ruteri/templatizer-backend/credentials"
	"github.com/ruteri/templatizer-backend/interfaces"
	"github.com/ruteri/templatizer-backend/metrics"
	"github.com/ruteri/templatizer-backend/planner"
	"github.com/ruteri/templatizer-backend/storage"
)

const (
	// maxBodySize is the largest payload the platform sends (25MB).
	maxBodySize = 25 * 1024 * 1024

	// DefaultDeliveryTimeout bounds all outbound calls made for one delivery.
	DefaultDeliveryTimeout = 30 * time.Second
)

// SignatureValidator checks the signature header of a delivery.
// *credentials.Manager implements it.
type SignatureValidator interface {
	ValidateSignature(ctx context.Context, header string, body []byte) (bool, error)
}

// PushHandler turns a verified push into a planner result.
// *planner.Planner implements it.
type PushHandler interface {
	HandlePush(ctx context.Context, event *interfaces.PushEvent) (*planner.Result, error)
}

type HandlerConfig struct {
	Signatures SignatureValidator
	Planner    PushHandler
	Executor   planner.Executor
	Store      interfaces.ConfigStore

	// DeliveryTimeout defaults to DefaultDeliveryTimeout.
	DeliveryTimeout time.Duration
	Metrics         *metrics.Collectors
	Log             *slog.Logger
}

// Handler serves the webhook endpoint and the read-only config API.
type Handler struct {
	signatures SignatureValidator
	planner    PushHandler
	executor   planner.Executor
	store      interfaces.ConfigStore
	timeout    time.Duration
	metrics    *metrics.Collectors
	log        *slog.Logger
}

func NewHandler(cfg HandlerConfig) (*Handler, error) {
	if cfg.Signatures == nil || cfg.Planner == nil || cfg.Store == nil {
		return nil, errors.New("handler requires a signature validator, a planner and a store")
	}

	h := &Handler{
		signatures: cfg.Signatures,
		planner:    cfg.Planner,
		executor:   cfg.Executor,
		store:      cfg.Store,
		timeout:    cfg.DeliveryTimeout,
		metrics:    cfg.Metrics,
		log:        cfg.Log,
	}
	if h.timeout <= 0 {
		h.timeout = DefaultDeliveryTimeout
	}
	if h.metrics == nil {
		h.metrics = metrics.Nop()
	}
	if h.log == nil {
		h.log = slog.Default()
	}
	if h.executor == nil {
		h.executor = planner.NewLogExecutor(h.log, h.metrics)
	}
	return h, nil
}

// HandleWebhook processes a platform webhook delivery.
//
// URL format: POST /api/github/webhook
// Required headers:
//   - X-Hub-Signature: sha1=<hex hmac of the body>
//   - X-GitHub-Event: event type
//
// Responses:
//   - 403 if the signature does not verify
//   - 400 if a push payload cannot be decoded
//   - 500 if the secret, the configuration or the store cannot be reached
//   - 200 with a DeliveryResponse otherwise, including ignored events
func (h *Handler) HandleWebhook(w http.ResponseWriter, r *http.Request) {
	eventType := github.WebHookType(r)
	deliveryID := github.DeliveryID(r)
	if deliveryID == "" {
		deliveryID = uuid.NewString()
	}
	log := h.log.With("delivery", deliveryID, "event", eventType)

	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxBodySize))
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			log.Warn("Webhook payload too large", "limit", tooLarge.Limit)
			http.Error(w, "Payload too large", http.StatusRequestEntityTooLarge)
			return
		}
		log.Error("Failed to read request body", "err", err)
		http.Error(w, "Failed to read request body", http.StatusBadRequest)
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	result := planner.NewResult()
	valid, err := h.signatures.ValidateSignature(ctx, r.Header.Get(api.SignatureHeader), body)
	if err != nil {
		log.Error("Failed to validate signature", "err", err)
		h.record(eventType, planner.StateRejected)
		http.Error(w, "Internal server error", http.StatusInternalServerError)
		return
	}
	if !valid {
		log.Warn("Rejected delivery with invalid signature")
		result.Reject(planner.ReasonInvalidSignature)
		h.record(eventType, result.State)
		http.Error(w, "Invalid signature", http.StatusForbidden)
		return
	}
	result.SignatureChecked()

	if eventType != "push" {
		// ping is the only non-push event the app subscribes to.
		log.Debug("Ignoring event")
		h.respond(w, log, deliveryID, eventType, result.Ignore(planner.ReasonUnsupportedEvent))
		return
	}

	event, err := ParsePushEvent(body)
	if err != nil {
		log.Warn("Failed to parse push payload", "err", err)
		h.record(eventType, planner.StateRejected)
		http.Error(w, "Invalid push payload", http.StatusBadRequest)
		return
	}
	event.DeliveryID = deliveryID

	result, err = h.planner.HandlePush(ctx, event)
	if err != nil {
		attrs := []any{"err", err}
		var credErr *credentials.CredentialError
		if errors.As(err, &credErr) {
			attrs = append(attrs, "credential_op", credErr.Op, "status", credErr.StatusCode)
		}
		var storeErr *storage.StoreError
		if errors.As(err, &storeErr) {
			attrs = append(attrs, "backend", storeErr.Backend)
		}
		log.Error("Failed to plan push", attrs...)
		h.record(eventType, "error")
		http.Error(w, "Failed to process push", http.StatusInternalServerError)
		return
	}

	if result.Plan != nil && !result.Plan.Empty() {
		if err := h.executor.Execute(ctx, result.Plan); err != nil {
			log.Error("Failed to execute plan", "err", err, "entries", len(result.Plan.Entries))
			h.record(eventType, "error")
			http.Error(w, "Failed to execute plan", http.StatusInternalServerError)
			return
		}
	}

	h.respond(w, log, deliveryID, eventType, result)
}

func (h *Handler) respond(w http.ResponseWriter, log *slog.Logger, deliveryID, eventType string, result *planner.Result) {
	h.record(eventType, result.State)
	log.Info("Delivery handled", "state", result.State, "reason", result.Reason)

	response := api.DeliveryResponse{
		Delivery: deliveryID,
		Event:    eventType,
		State:    string(result.State),
		Reason:   result.Reason,
	}
	if result.Plan != nil {
		response.Entries = len(result.Plan.Entries)
	}
	writeJSON(w, log, response)
}

func (h *Handler) record(eventType string, state planner.State) {
	if eventType == "" {
		eventType = "unknown"
	}
	h.metrics.WebhookDeliveries.WithLabelValues(eventType, string(state)).Inc()
}

// HandleGetConfig returns the stored configuration of a repository.
//
// URL format: GET /api/configs/{repo_id}
func (h *Handler) HandleGetConfig(w http.ResponseWriter, r *http.Request) {
	repoID, err := strconv.ParseInt(chi.URLParam(r, "repo_id"), 10, 64)
	if err != nil || repoID <= 0 {
		http.Error(w, "Invalid repository id", http.StatusBadRequest)
		return
	}

	cfg, err := h.store.Get(r.Context(), repoID)
	if errors.Is(err, interfaces.ErrConfigNotFound) {
		http.Error(w, "Config not found", http.StatusNotFound)
		return
	}
	if err != nil {
		h.log.Error("Failed to load config", "err", err, "repo_id", repoID)
		http.Error(w, "Internal server error", http.StatusInternalServerError)
		return
	}

	writeJSON(w, h.log, cfg)
}

// HandleSubscribers lists the stored configurations subscribing to a group.
//
// URL format: GET /api/subscribers?ref=owner/repo/group
func (h *Handler) HandleSubscribers(w http.ResponseWriter, r *http.Request) {
	ref, err := interfaces.ParseSubscriptionRef(r.URL.Query().Get("ref"))
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	configs, err := h.store.FindBySubscriptionRef(r.Context(), ref.String())
	if err != nil {
		h.log.Error("Failed to query subscribers", "err", err, "ref", ref.String())
		http.Error(w, "Internal server error", http.StatusInternalServerError)
		return
	}

	writeJSON(w, h.log, configs)
}

// Ready reports whether the config store answers.
func (h *Handler) Ready(ctx context.Context) bool {
	return h.store.Available(ctx)
}

func writeJSON(w http.ResponseWriter, log *slog.Logger, v any) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Error("Failed to encode response", "err", err)
	}
}
