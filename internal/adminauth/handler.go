package adminauth

import (
	"encoding/json"
	"log/slog"
	"net/http"

	apperrors "github.com/frahmantamala/payment-gateway/internal"
	"github.com/frahmantamala/payment-gateway/internal/transport"
)

type Handler struct {
	transport.BaseHandler
	Service *Service
	Logger  *slog.Logger
}

func NewHandler(service *Service, logger *slog.Logger) *Handler {
	return &Handler{
		BaseHandler: transport.BaseHandler{Logger: logger},
		Service:     service,
		Logger:      logger,
	}
}

// Login handles POST /api/v1/admin/login
func (h *Handler) Login(w http.ResponseWriter, r *http.Request) {
	var req LoginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.HandleError(w, apperrors.NewValidationError("invalid request body", apperrors.ErrCodeValidationFailed))
		return
	}

	tokens, err := h.Service.Authenticate(req)
	if err != nil {
		h.HandleError(w, apperrors.NewUnauthorizedError("invalid credentials", apperrors.ErrCodeInvalidCredentials))
		return
	}

	h.WriteJSON(w, http.StatusOK, tokens)
}

// Middleware authenticates admin routes with a Bearer token.
func (h *Handler) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		tokenString := h.ExtractTokenFromHeader(r)
		if tokenString == "" {
			h.HandleError(w, apperrors.NewUnauthorizedError("authentication required", apperrors.ErrCodeInvalidToken))
			return
		}

		claims, err := h.Service.ValidateToken(tokenString)
		if err != nil {
			h.Logger.Warn("admin token rejected", "error", err)
			h.HandleError(w, apperrors.NewUnauthorizedError("invalid or expired token", apperrors.ErrCodeInvalidToken))
			return
		}

		ctx := apperrors.ContextWithAdminID(r.Context(), claims.AdminID)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}
