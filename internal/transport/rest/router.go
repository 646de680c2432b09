package rest

import (
	"database/sql"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi"
	chiMiddleware "github.com/go-chi/chi/middleware"

	"github.com/frahmantamala/payment-gateway/internal/adminauth"
	"github.com/frahmantamala/payment-gateway/internal/payment"
	"github.com/frahmantamala/payment-gateway/internal/transport/middleware"
	"github.com/frahmantamala/payment-gateway/internal/transport/swagger"
)

func RegisterAllRoutes(router *chi.Mux, db *sql.DB, paymentHandler *payment.Handler, webhookHandler *payment.WebhookHandler, adminHandler *adminauth.Handler, logger *slog.Logger) {
	healthHandler := NewHealthHandler(db)

	// Apply global middleware
	router.Use(middleware.CORS)
	router.Use(chiMiddleware.RequestID)
	router.Use(middleware.RequestID)
	router.Use(middleware.RecoveryMiddleware(logger))
	router.Use(middleware.LoggingMiddleware(logger))

	// Serve OpenAPI spec at root (outside API prefix)
	router.Get("/openapi.yml", func(w http.ResponseWriter, r *http.Request) {
		http.ServeFile(w, r, "./api/openapi.yml")
	})
	// Swagger UI route at root
	router.Handle("/swagger/*", swagger.Handler())

	router.Route("/api/v1", func(r chi.Router) {
		// Health check routes
		r.Get("/health", healthHandler.healthCheckHandler)
		r.Get("/ping", healthHandler.pingHandler)

		// Provider webhooks: authenticated by signature, not by session
		if webhookHandler != nil {
			r.Post("/payments/callback/{gateway}", webhookHandler.HandleCallback)
		}

		if adminHandler != nil {
			r.Post("/admin/login", adminHandler.Login)
		}

		if paymentHandler != nil {
			r.Get("/gateways", paymentHandler.ListGateways)

			r.Route("/payments", func(pr chi.Router) {
				pr.Post("/", paymentHandler.CreatePayment)
				pr.Get("/reference/{referenceID}", paymentHandler.GetPaymentByReference)
				pr.Get("/external/{refType}/{externalRefID}", paymentHandler.GetExternalReference)
				pr.Get("/{paymentID}", paymentHandler.GetPayment)
				pr.Post("/{paymentID}/proof", paymentHandler.UploadProof)
				pr.Post("/{paymentID}/verify", paymentHandler.VerifyPayment)

				// Admin review routes
				if adminHandler != nil {
					pr.Group(func(ar chi.Router) {
						ar.Use(adminHandler.Middleware)
						ar.Get("/", paymentHandler.ListPayments)
						ar.Post("/{paymentID}/approve", paymentHandler.ApprovePayment)
						ar.Post("/{paymentID}/reject", paymentHandler.RejectPayment)
					})
				}
			})
		}
	})
}
