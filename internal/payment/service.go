// Package payment is the orchestration layer in front of the gateway
// adapters: it resolves the right adapter per request, fans webhook and
// admin decisions into the shared state machine, and answers the
// external-reference queries host systems correlate on.
package payment

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/frahmantamala/payment-gateway/internal"
	"github.com/frahmantamala/payment-gateway/internal/core/datamodel/payment"
	"github.com/frahmantamala/payment-gateway/internal/core/events"
	"github.com/frahmantamala/payment-gateway/internal/paymentgateway"
)

// Repository is the read side the orchestrator needs on top of the
// adapters' write interface.
type Repository interface {
	paymentgateway.Repository
	GetByReferenceID(referenceID string) (*payment.Payment, error)
	ListByStatus(status string, limit, offset int) ([]*payment.Payment, error)
	FindByExternalReference(externalRefID, refType string) ([]*payment.Payment, error)
	LatestByExternalReference(externalRefID, refType string) (*payment.Payment, error)
}

// GatewayResolver resolves adapters by name; satisfied by
// paymentgateway.Registry.
type GatewayResolver interface {
	Get(name string) (paymentgateway.Gateway, error)
	Available() []string
}

type Service struct {
	registry       GatewayResolver
	repo           Repository
	eventBus       *events.EventBus
	defaultGateway string
	logger         *slog.Logger
}

func NewService(registry GatewayResolver, repo Repository, eventBus *events.EventBus, defaultGateway string, logger *slog.Logger) *Service {
	return &Service{
		registry:       registry,
		repo:           repo,
		eventBus:       eventBus,
		defaultGateway: defaultGateway,
		logger:         logger,
	}
}

// CreatePayment resolves the requested gateway (falling back to the
// configured default) and delegates creation to it. An unknown gateway
// fails before any record is created.
func (s *Service) CreatePayment(ctx context.Context, data paymentgateway.CreatePaymentData) (result *paymentgateway.Result, err error) {
	defer s.recoverToError(&result, &err, "CreatePayment")

	name := data.Gateway
	if name == "" {
		name = s.defaultGateway
	}

	gateway, err := s.registry.Get(name)
	if err != nil {
		s.logger.Error("payment creation for unknown gateway", "gateway", name)
		return nil, err
	}

	data.Gateway = name
	return gateway.CreatePayment(ctx, data)
}

// CreatePaymentForReference creates a payment correlated to a host-system
// entity. refType defaults to "order".
func (s *Service) CreatePaymentForReference(ctx context.Context, data paymentgateway.CreatePaymentData, externalRefID, refType string) (*paymentgateway.Result, error) {
	if externalRefID == "" {
		return nil, internal.NewValidationFieldError("external_reference_id",
			"external_reference_id is required", internal.ErrCodeValidationFailed)
	}
	data.ExternalReferenceID = externalRefID
	data.ReferenceType = refType
	return s.CreatePayment(ctx, data)
}

// HandleCallback dispatches an inbound webhook to its gateway and publishes
// lifecycle events when the delivery settles the payment. Duplicate
// deliveries are acknowledged without re-publishing.
func (s *Service) HandleCallback(ctx context.Context, gatewayName string, params paymentgateway.CallbackParams) (result *paymentgateway.Result, err error) {
	defer s.recoverToError(&result, &err, "HandleCallback")

	gateway, err := s.registry.Get(gatewayName)
	if err != nil {
		return nil, err
	}

	result, err = gateway.HandleCallback(ctx, params)
	if err != nil {
		return nil, err
	}

	s.publishOutcome(ctx, result)
	return result, nil
}

// VerifyCallbackSignature authenticates a raw webhook body for the named
// gateway before its parameters are parsed.
func (s *Service) VerifyCallbackSignature(gatewayName string, body []byte, signature string) error {
	gateway, err := s.registry.Get(gatewayName)
	if err != nil {
		return err
	}
	return gateway.VerifySignature(body, signature)
}

// VerifyPayment queries the provider for the current status of a
// transaction without mutating the local record.
func (s *Service) VerifyPayment(ctx context.Context, gatewayName, transactionID string) (*paymentgateway.Result, error) {
	gateway, err := s.registry.Get(gatewayName)
	if err != nil {
		return nil, err
	}
	return gateway.VerifyPayment(ctx, transactionID)
}

// UploadProof attaches a proof-of-payment file to a manual payment.
func (s *Service) UploadProof(ctx context.Context, paymentID string, file paymentgateway.ProofFile) (*paymentgateway.Result, error) {
	manual, err := s.manualGateway()
	if err != nil {
		return nil, err
	}
	return manual.HandleProofUpload(ctx, paymentID, file)
}

// ApprovePayment settles a manual payment as paid on an admin's decision.
func (s *Service) ApprovePayment(ctx context.Context, paymentID, adminID string) (*paymentgateway.Result, error) {
	manual, err := s.manualGateway()
	if err != nil {
		return nil, err
	}
	result, err := manual.Approve(ctx, paymentID, adminID)
	if err != nil {
		return nil, err
	}
	s.publishOutcome(ctx, result)
	return result, nil
}

// RejectPayment settles a manual payment as failed on an admin's decision.
func (s *Service) RejectPayment(ctx context.Context, paymentID, adminID, reason string) (*paymentgateway.Result, error) {
	manual, err := s.manualGateway()
	if err != nil {
		return nil, err
	}
	result, err := manual.Reject(ctx, paymentID, adminID, reason)
	if err != nil {
		return nil, err
	}
	s.publishOutcome(ctx, result)
	return result, nil
}

func (s *Service) GetPayment(id string) (*payment.Payment, error) {
	p, err := s.repo.GetByID(id)
	if err != nil {
		return nil, internal.ErrPaymentNotFound
	}
	return p, nil
}

func (s *Service) GetPaymentByReference(referenceID string) (*payment.Payment, error) {
	p, err := s.repo.GetByReferenceID(referenceID)
	if err != nil {
		return nil, internal.ErrPaymentNotFound
	}
	return p, nil
}

func (s *Service) GetPaymentsByStatus(status string, limit, offset int) ([]*payment.Payment, error) {
	if limit <= 0 || limit > 100 {
		limit = 20
	}
	if offset < 0 {
		offset = 0
	}
	return s.repo.ListByStatus(status, limit, offset)
}

// FindByExternalReference lists every payment attempt recorded against a
// host-system entity, newest first.
func (s *Service) FindByExternalReference(externalRefID, refType string) ([]*payment.Payment, error) {
	return s.repo.FindByExternalReference(externalRefID, refType)
}

// LatestByExternalReference returns the most recent attempt for a
// host-system entity.
func (s *Service) LatestByExternalReference(externalRefID, refType string) (*payment.Payment, error) {
	p, err := s.repo.LatestByExternalReference(externalRefID, refType)
	if err != nil {
		return nil, internal.ErrPaymentNotFound
	}
	return p, nil
}

// HasSuccessfulPayment reports whether any attempt against the entity is
// currently paid. A refunded attempt no longer counts: the money went back.
func (s *Service) HasSuccessfulPayment(externalRefID, refType string) (bool, error) {
	attempts, err := s.repo.FindByExternalReference(externalRefID, refType)
	if err != nil {
		return false, err
	}
	for _, p := range attempts {
		if p.Status == payment.StatusPaid {
			return true, nil
		}
	}
	return false, nil
}

// AvailableGateways lists the gateway names requests may target.
func (s *Service) AvailableGateways() []string {
	return s.registry.Available()
}

func (s *Service) manualGateway() (*paymentgateway.ManualGateway, error) {
	gateway, err := s.registry.Get("manual")
	if err != nil {
		return nil, err
	}
	manual, ok := gateway.(*paymentgateway.ManualGateway)
	if !ok {
		return nil, internal.NewInternalError("manual gateway has unexpected type", nil)
	}
	return manual, nil
}

// publishOutcome emits lifecycle events for deliveries that actually moved
// the payment to a terminal status.
func (s *Service) publishOutcome(ctx context.Context, result *paymentgateway.Result) {
	if s.eventBus == nil || result == nil || result.Payment == nil || !result.Transitioned {
		return
	}

	p := result.Payment
	externalRefID, refType := "", ""
	if p.ExternalReferenceID != nil {
		externalRefID = *p.ExternalReferenceID
	}
	if p.ReferenceType != nil {
		refType = *p.ReferenceType
	}

	switch p.Status {
	case payment.StatusPaid:
		txnID := ""
		if p.GatewayTransactionID != nil {
			txnID = *p.GatewayTransactionID
		}
		s.eventBus.Publish(ctx, events.NewPaymentPaidEvent(
			p.ID, p.ReferenceID, p.Gateway, p.Amount.String(), p.Currency,
			txnID, externalRefID, refType))

	case payment.StatusFailed:
		s.eventBus.Publish(ctx, events.NewPaymentFailedEvent(
			p.ID, p.ReferenceID, p.Gateway, result.Message, externalRefID, refType))
	}
}

// recoverToError converts a panic inside a gateway adapter into an internal
// error so one malformed delivery cannot take the process down.
func (s *Service) recoverToError(result **paymentgateway.Result, err *error, operation string) {
	if r := recover(); r != nil {
		s.logger.Error("recovered from panic in payment operation",
			"operation", operation,
			"panic", fmt.Sprintf("%v", r))
		*result = nil
		*err = internal.NewInternalError(fmt.Sprintf("%s failed unexpectedly", operation), nil)
	}
}
