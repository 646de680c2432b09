package payment

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi"

	apperrors "github.com/frahmantamala/payment-gateway/internal"
	"github.com/frahmantamala/payment-gateway/internal/core/datamodel/payment"
	"github.com/frahmantamala/payment-gateway/internal/paymentgateway"
	"github.com/frahmantamala/payment-gateway/internal/transport"
)

// ServiceAPI is the surface of the payment service the HTTP layer depends on.
type ServiceAPI interface {
	CreatePayment(ctx context.Context, data paymentgateway.CreatePaymentData) (*paymentgateway.Result, error)
	HandleCallback(ctx context.Context, gatewayName string, params paymentgateway.CallbackParams) (*paymentgateway.Result, error)
	VerifyCallbackSignature(gatewayName string, body []byte, signature string) error
	VerifyPayment(ctx context.Context, gatewayName, transactionID string) (*paymentgateway.Result, error)
	UploadProof(ctx context.Context, paymentID string, file paymentgateway.ProofFile) (*paymentgateway.Result, error)
	ApprovePayment(ctx context.Context, paymentID, adminID string) (*paymentgateway.Result, error)
	RejectPayment(ctx context.Context, paymentID, adminID, reason string) (*paymentgateway.Result, error)
	GetPayment(id string) (*payment.Payment, error)
	GetPaymentByReference(referenceID string) (*payment.Payment, error)
	GetPaymentsByStatus(status string, limit, offset int) ([]*payment.Payment, error)
	FindByExternalReference(externalRefID, refType string) ([]*payment.Payment, error)
	LatestByExternalReference(externalRefID, refType string) (*payment.Payment, error)
	HasSuccessfulPayment(externalRefID, refType string) (bool, error)
	AvailableGateways() []string
}

type Handler struct {
	transport.BaseHandler
	PaymentService ServiceAPI
	Logger         *slog.Logger

	maxUploadBytes int64
}

func NewHandler(paymentService ServiceAPI, logger *slog.Logger, maxUploadKB int64) *Handler {
	if maxUploadKB <= 0 {
		maxUploadKB = 5120
	}
	return &Handler{
		BaseHandler:    transport.BaseHandler{Logger: logger},
		PaymentService: paymentService,
		Logger:         logger,
		maxUploadBytes: maxUploadKB * 1024,
	}
}

// CreatePayment handles POST /api/v1/payments
func (h *Handler) CreatePayment(w http.ResponseWriter, r *http.Request) {
	var req CreatePaymentRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.Logger.Error("CreatePayment: failed to parse request body", "error", err)
		h.HandleError(w, apperrors.NewValidationError("invalid request body", apperrors.ErrCodeValidationFailed))
		return
	}

	if err := req.Validate(); err != nil {
		h.Logger.Error("CreatePayment: validation error", "error", err)
		h.HandleServiceError(w, err)
		return
	}

	result, err := h.PaymentService.CreatePayment(r.Context(), req.ToCreateData())
	if err != nil {
		h.Logger.Error("CreatePayment: service error", "error", err, "gateway", req.Gateway)
		h.HandleServiceError(w, err)
		return
	}

	status := http.StatusCreated
	if !result.Success {
		status = http.StatusBadGateway
	}

	h.WriteJSON(w, status, CreatePaymentResponse{
		Payment:        ToPaymentResponse(result.Payment),
		PaymentURL:     result.PaymentURL,
		RequiresUpload: result.RequiresUpload,
		Message:        result.Message,
	})
}

// GetPayment handles GET /api/v1/payments/{paymentID}
func (h *Handler) GetPayment(w http.ResponseWriter, r *http.Request) {
	paymentID := chi.URLParam(r, "paymentID")

	p, err := h.PaymentService.GetPayment(paymentID)
	if err != nil {
		h.HandleServiceError(w, err)
		return
	}

	h.WriteJSON(w, http.StatusOK, ToPaymentResponse(p))
}

// GetPaymentByReference handles GET /api/v1/payments/reference/{referenceID}
func (h *Handler) GetPaymentByReference(w http.ResponseWriter, r *http.Request) {
	referenceID := chi.URLParam(r, "referenceID")

	p, err := h.PaymentService.GetPaymentByReference(referenceID)
	if err != nil {
		h.HandleServiceError(w, err)
		return
	}

	h.WriteJSON(w, http.StatusOK, ToPaymentResponse(p))
}

// ListPayments handles GET /api/v1/payments?status=pending&limit=20&offset=0
func (h *Handler) ListPayments(w http.ResponseWriter, r *http.Request) {
	status := r.URL.Query().Get("status")
	if status == "" {
		status = payment.StatusPending
	}

	limit := queryInt(r, "limit", 20)
	offset := queryInt(r, "offset", 0)

	payments, err := h.PaymentService.GetPaymentsByStatus(status, limit, offset)
	if err != nil {
		h.HandleServiceError(w, err)
		return
	}

	h.WriteJSON(w, http.StatusOK, map[string]interface{}{
		"payments": ToPaymentResponses(payments),
		"status":   status,
		"limit":    limit,
		"offset":   offset,
	})
}

// GetExternalReference handles GET /api/v1/payments/external/{refType}/{externalRefID}
func (h *Handler) GetExternalReference(w http.ResponseWriter, r *http.Request) {
	refType := chi.URLParam(r, "refType")
	externalRefID := chi.URLParam(r, "externalRefID")

	payments, err := h.PaymentService.FindByExternalReference(externalRefID, refType)
	if err != nil {
		h.HandleServiceError(w, err)
		return
	}

	hasSuccessful, err := h.PaymentService.HasSuccessfulPayment(externalRefID, refType)
	if err != nil {
		h.HandleServiceError(w, err)
		return
	}

	response := map[string]interface{}{
		"external_reference_id":  externalRefID,
		"reference_type":         refType,
		"payments":               ToPaymentResponses(payments),
		"has_successful_payment": hasSuccessful,
	}
	if len(payments) > 0 {
		response["latest"] = ToPaymentResponse(payments[0])
	}

	h.WriteJSON(w, http.StatusOK, response)
}

// VerifyPayment handles POST /api/v1/payments/{paymentID}/verify. It asks
// the provider for the current status of the payment's transaction.
func (h *Handler) VerifyPayment(w http.ResponseWriter, r *http.Request) {
	paymentID := chi.URLParam(r, "paymentID")

	p, err := h.PaymentService.GetPayment(paymentID)
	if err != nil {
		h.HandleServiceError(w, err)
		return
	}

	if p.GatewayTransactionID == nil || *p.GatewayTransactionID == "" {
		h.HandleError(w, apperrors.NewValidationError(
			"payment has no gateway transaction to verify", apperrors.ErrCodeValidationFailed))
		return
	}

	result, err := h.PaymentService.VerifyPayment(r.Context(), p.Gateway, *p.GatewayTransactionID)
	if err != nil {
		h.HandleServiceError(w, err)
		return
	}

	h.WriteJSON(w, http.StatusOK, result)
}

// UploadProof handles POST /api/v1/payments/{paymentID}/proof as a
// multipart form with a "proof" file field.
func (h *Handler) UploadProof(w http.ResponseWriter, r *http.Request) {
	paymentID := chi.URLParam(r, "paymentID")

	r.Body = http.MaxBytesReader(w, r.Body, h.maxUploadBytes+64*1024)
	if err := r.ParseMultipartForm(h.maxUploadBytes); err != nil {
		h.Logger.Error("UploadProof: failed to parse multipart form", "error", err, "payment_id", paymentID)
		h.HandleError(w, apperrors.NewValidationError("invalid multipart form", apperrors.ErrCodeValidationFailed))
		return
	}

	file, header, err := r.FormFile("proof")
	if err != nil {
		h.HandleError(w, apperrors.ErrMissingProof)
		return
	}
	defer file.Close()

	result, err := h.PaymentService.UploadProof(r.Context(), paymentID, paymentgateway.ProofFile{
		Name:    header.Filename,
		Size:    header.Size,
		Content: file,
	})
	if err != nil {
		h.Logger.Error("UploadProof: service error", "error", err, "payment_id", paymentID)
		h.HandleServiceError(w, err)
		return
	}

	status := http.StatusOK
	if !result.Success {
		status = http.StatusConflict
	}
	h.WriteJSON(w, status, result)
}

// ApprovePayment handles POST /api/v1/payments/{paymentID}/approve
func (h *Handler) ApprovePayment(w http.ResponseWriter, r *http.Request) {
	paymentID := chi.URLParam(r, "paymentID")

	adminID, ok := apperrors.AdminIDFromContext(r.Context())
	if !ok {
		h.HandleError(w, apperrors.NewUnauthorizedError("authentication required", apperrors.ErrCodeInvalidToken))
		return
	}

	result, err := h.PaymentService.ApprovePayment(r.Context(), paymentID, adminID)
	if err != nil {
		h.Logger.Error("ApprovePayment: service error", "error", err, "payment_id", paymentID, "admin_id", adminID)
		h.HandleServiceError(w, err)
		return
	}

	h.Logger.Info("ApprovePayment: payment reviewed",
		"payment_id", paymentID,
		"admin_id", adminID,
		"status", result.Status)

	h.WriteJSON(w, http.StatusOK, result)
}

// RejectPayment handles POST /api/v1/payments/{paymentID}/reject
func (h *Handler) RejectPayment(w http.ResponseWriter, r *http.Request) {
	paymentID := chi.URLParam(r, "paymentID")

	adminID, ok := apperrors.AdminIDFromContext(r.Context())
	if !ok {
		h.HandleError(w, apperrors.NewUnauthorizedError("authentication required", apperrors.ErrCodeInvalidToken))
		return
	}

	var req RejectPaymentRequest
	if r.Body != nil && r.ContentLength != 0 {
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			h.HandleError(w, apperrors.NewValidationError("invalid request body", apperrors.ErrCodeValidationFailed))
			return
		}
	}
	if err := req.Validate(); err != nil {
		h.HandleServiceError(w, err)
		return
	}

	result, err := h.PaymentService.RejectPayment(r.Context(), paymentID, adminID, req.Reason)
	if err != nil {
		h.Logger.Error("RejectPayment: service error", "error", err, "payment_id", paymentID, "admin_id", adminID)
		h.HandleServiceError(w, err)
		return
	}

	h.Logger.Info("RejectPayment: payment reviewed",
		"payment_id", paymentID,
		"admin_id", adminID,
		"status", result.Status)

	h.WriteJSON(w, http.StatusOK, result)
}

// ListGateways handles GET /api/v1/gateways
func (h *Handler) ListGateways(w http.ResponseWriter, r *http.Request) {
	h.WriteJSON(w, http.StatusOK, map[string]interface{}{
		"gateways": h.PaymentService.AvailableGateways(),
	})
}

func queryInt(r *http.Request, name string, fallback int) int {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return fallback
	}
	value, err := strconv.Atoi(raw)
	if err != nil {
		return fallback
	}
	return value
}
