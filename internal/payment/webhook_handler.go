package payment

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"

	"github.com/go-chi/chi"

	"github.com/frahmantamala/payment-gateway/internal/paymentgateway"
	"github.com/frahmantamala/payment-gateway/internal/transport"
)

// WebhookHandler receives provider callbacks. The raw body is read before
// any parsing so the signature can be verified over exactly the bytes the
// provider signed.
type WebhookHandler struct {
	transport.BaseHandler
	paymentService ServiceAPI
	logger         *slog.Logger
}

func NewWebhookHandler(paymentService ServiceAPI, logger *slog.Logger) *WebhookHandler {
	return &WebhookHandler{
		BaseHandler:    transport.BaseHandler{Logger: logger},
		paymentService: paymentService,
		logger:         logger,
	}
}

// HandleCallback handles POST /api/v1/payments/callback/{gateway}.
//
// Providers redeliver webhooks, so every accepted delivery is answered 200
// even when it is a duplicate; the state machine underneath makes
// duplicates harmless.
func (h *WebhookHandler) HandleCallback(w http.ResponseWriter, r *http.Request) {
	gatewayName := chi.URLParam(r, "gateway")

	body, err := io.ReadAll(io.LimitReader(r.Body, 1<<20))
	if err != nil {
		h.logger.Error("failed to read callback body", "error", err, "gateway", gatewayName)
		h.WriteError(w, http.StatusBadRequest, "unable to read request body")
		return
	}
	r.Body = io.NopCloser(bytes.NewReader(body))

	signature := r.Header.Get("X-Signature")
	if err := h.paymentService.VerifyCallbackSignature(gatewayName, body, signature); err != nil {
		h.logger.Warn("callback signature rejected", "gateway", gatewayName, "error", err)
		h.HandleServiceError(w, err)
		return
	}

	params, err := parseCallbackParams(r, body)
	if err != nil {
		h.logger.Error("failed to parse callback payload", "error", err, "gateway", gatewayName)
		h.WriteError(w, http.StatusBadRequest, "unable to parse callback payload")
		return
	}

	h.logger.Info("received payment callback",
		"gateway", gatewayName,
		"params", len(params))

	result, err := h.paymentService.HandleCallback(r.Context(), gatewayName, params)
	if err != nil {
		h.logger.Error("failed to process payment callback",
			"error", err,
			"gateway", gatewayName)
		h.HandleServiceError(w, err)
		return
	}

	h.WriteJSON(w, http.StatusOK, map[string]interface{}{
		"status":         "received",
		"success":        result.Success,
		"payment_status": result.Status,
	})
}

// parseCallbackParams normalizes the webhook payload into flat string
// params. ToyyibPay posts a form; CHIP-IN posts JSON; query parameters are
// merged in either way.
func parseCallbackParams(r *http.Request, body []byte) (paymentgateway.CallbackParams, error) {
	params := paymentgateway.CallbackParams{}

	for key, values := range r.URL.Query() {
		if len(values) > 0 {
			params[key] = values[0]
		}
	}

	contentType := r.Header.Get("Content-Type")
	switch {
	case strings.HasPrefix(contentType, "application/json"):
		var payload map[string]interface{}
		if len(body) > 0 {
			if err := json.Unmarshal(body, &payload); err != nil {
				return nil, fmt.Errorf("invalid JSON payload: %w", err)
			}
		}
		flattenJSON("", payload, params)

	default:
		form, err := url.ParseQuery(string(body))
		if err != nil {
			return nil, fmt.Errorf("invalid form payload: %w", err)
		}
		for key, values := range form {
			if len(values) > 0 {
				params[key] = values[0]
			}
		}
	}

	return params, nil
}

// flattenJSON folds nested objects into dotted keys so adapters can read
// fields like "purchase.currency" without re-parsing the body.
func flattenJSON(prefix string, data map[string]interface{}, out paymentgateway.CallbackParams) {
	for key, value := range data {
		name := key
		if prefix != "" {
			name = prefix + "." + key
		}
		switch v := value.(type) {
		case map[string]interface{}:
			flattenJSON(name, v, out)
		case string:
			out[name] = v
		case float64:
			out[name] = formatJSONNumber(v)
		case bool:
			out[name] = fmt.Sprintf("%t", v)
		case nil:
			// skip
		default:
			encoded, err := json.Marshal(v)
			if err == nil {
				out[name] = string(encoded)
			}
		}
	}
}

func formatJSONNumber(v float64) string {
	if v == float64(int64(v)) {
		return fmt.Sprintf("%d", int64(v))
	}
	return fmt.Sprintf("%g", v)
}
