package handlers

import (
	"errors"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/waypost-systems/waypost/internal/httputil"
	"github.com/waypost-systems/waypost/internal/logging"
	"github.com/waypost-systems/waypost/internal/models"
	"github.com/waypost-systems/waypost/internal/normalizer"
	"github.com/waypost-systems/waypost/internal/ratelimit"
	"github.com/waypost-systems/waypost/internal/service"
)

// WebhookHandler exposes the ingestion endpoint over HTTP.
type WebhookHandler struct {
	service      *service.IngestService
	limiter      ratelimit.RateLimiter
	maxEventSize int64
	logger       *logging.Logger
}

func NewWebhookHandler(svc *service.IngestService, limiter ratelimit.RateLimiter, maxEventSize int64, logger *logging.Logger) *WebhookHandler {
	if limiter == nil {
		limiter = &ratelimit.NoOpRateLimiter{}
	}
	if logger == nil {
		logger = logging.Default()
	}
	return &WebhookHandler{
		service:      svc,
		limiter:      limiter,
		maxEventSize: maxEventSize,
		logger:       logger,
	}
}

// HandleWebhook accepts a single JSON object per call. 2xx means the
// event is durably stored; 4xx means the payload is bad and retrying the
// same bytes will not help; 5xx means the producer should retry.
func (h *WebhookHandler) HandleWebhook(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		httputil.WriteError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	sourceIP := getClientIP(r)

	allowed, err := h.limiter.Allow(r.Context(), sourceIP)
	if err != nil {
		h.logger.WarnContext(r.Context(), "rate limiter unavailable, allowing request", logging.Error(err))
	} else if !allowed {
		httputil.WriteError(w, http.StatusTooManyRequests, "rate limit exceeded")
		return
	}

	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, h.maxEventSize))
	if err != nil {
		var maxErr *http.MaxBytesError
		if errors.As(err, &maxErr) {
			httputil.WriteError(w, http.StatusRequestEntityTooLarge, "payload too large")
			return
		}
		httputil.WriteError(w, http.StatusBadRequest, "failed to read request body")
		return
	}
	defer r.Body.Close()

	if len(body) == 0 {
		h.reject(w, &normalizer.ValidationError{Reason: normalizer.ReasonParseError})
		return
	}

	raw := models.RawEvent{
		Payload:    body,
		ReceivedAt: time.Now().UTC(),
		SourceIP:   sourceIP,
	}

	result, err := h.service.Ingest(r.Context(), raw)
	if err != nil {
		var verr *normalizer.ValidationError
		if errors.As(err, &verr) {
			h.reject(w, verr)
			return
		}
		h.logger.ErrorContext(r.Context(), "ingestion failed", logging.Error(err))
		httputil.WriteError(w, http.StatusInternalServerError, "failed to store event")
		return
	}

	httputil.WriteJSON(w, http.StatusOK, map[string]any{
		"message":         "accepted",
		"idempotency_key": result.Key,
		"duplicate":       result.Duplicate,
	})
}

// reject surfaces the validation reason so the producer can debug the
// payload.
func (h *WebhookHandler) reject(w http.ResponseWriter, verr *normalizer.ValidationError) {
	httputil.WriteJSON(w, http.StatusBadRequest, map[string]any{
		"error":  verr.Error(),
		"reason": string(verr.Reason),
		"field":  verr.Field,
	})
}

func (h *WebhookHandler) Health(w http.ResponseWriter, r *http.Request) {
	httputil.WriteJSON(w, http.StatusOK, map[string]string{"status": "healthy"})
}

func (h *WebhookHandler) Ready(w http.ResponseWriter, r *http.Request) {
	httputil.WriteJSON(w, http.StatusOK, map[string]string{"status": "ready"})
}

func getClientIP(r *http.Request) string {
	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		parts := strings.Split(xff, ",")
		return strings.TrimSpace(parts[0])
	}
	if xri := r.Header.Get("X-Real-IP"); xri != "" {
		return xri
	}
	return r.RemoteAddr
}
