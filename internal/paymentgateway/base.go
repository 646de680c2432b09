package paymentgateway

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/frahmantamala/payment-gateway/internal"
	"github.com/frahmantamala/payment-gateway/internal/core/datamodel/payment"
)

// URLBuilder composes the callback/redirect URLs injected into provider
// requests from the server base URL.
type URLBuilder struct {
	BaseURL     string
	SuccessPath string
	FailedPath  string
}

func (u URLBuilder) CallbackURL(gatewayName string) string {
	return fmt.Sprintf("%s/api/v1/payments/callback/%s", strings.TrimRight(u.BaseURL, "/"), gatewayName)
}

func (u URLBuilder) SuccessURL(paymentID string) string {
	return fmt.Sprintf("%s%s?payment_id=%s", strings.TrimRight(u.BaseURL, "/"), u.SuccessPath, paymentID)
}

func (u URLBuilder) FailedURL(paymentID string) string {
	return fmt.Sprintf("%s%s?payment_id=%s", strings.TrimRight(u.BaseURL, "/"), u.FailedPath, paymentID)
}

func (u URLBuilder) UploadURL(paymentID string) string {
	return fmt.Sprintf("%s/api/v1/payments/%s/proof", strings.TrimRight(u.BaseURL, "/"), paymentID)
}

// baseGateway carries the shared adapter wiring: configuration, persistence,
// URL building, default currency and a bounded-timeout HTTP client for the
// single-attempt outbound calls.
type baseGateway struct {
	name            string
	cfg             internal.GatewayConfig
	repo            Repository
	urls            URLBuilder
	defaultCurrency string
	client          *http.Client
	logger          *slog.Logger
}

func newBaseGateway(name string, cfg internal.GatewayConfig, repo Repository, urls URLBuilder, defaultCurrency string, timeout time.Duration, logger *slog.Logger) baseGateway {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return baseGateway{
		name:            name,
		cfg:             cfg,
		repo:            repo,
		urls:            urls,
		defaultCurrency: defaultCurrency,
		client:          &http.Client{Timeout: timeout},
		logger:          logger,
	}
}

func (b *baseGateway) Name() string {
	return b.name
}

func (b *baseGateway) Enabled() bool {
	return b.cfg.Enabled
}

func (b *baseGateway) Config() internal.GatewayConfig {
	return b.cfg
}

// VerifySignature checks an HMAC-SHA256 hex digest of the raw webhook body.
// Gateways without a configured webhook secret accept every payload.
func (b *baseGateway) VerifySignature(body []byte, signature string) error {
	if b.cfg.WebhookSecret == "" {
		return nil
	}
	mac := hmac.New(sha256.New, []byte(b.cfg.WebhookSecret))
	mac.Write(body)
	expected := hex.EncodeToString(mac.Sum(nil))
	if !hmac.Equal([]byte(expected), []byte(strings.ToLower(signature))) {
		return internal.NewUnauthorizedError(
			fmt.Sprintf("invalid webhook signature for %s gateway", b.name),
			internal.ErrCodeInvalidSignature)
	}
	return nil
}

func (b *baseGateway) validateRequired(data CreatePaymentData, fields ...string) error {
	values := map[string]string{
		"customer_name":  data.CustomerName,
		"customer_email": data.CustomerEmail,
		"customer_phone": data.CustomerPhone,
		"description":    data.Description,
	}
	for _, field := range fields {
		if field == "amount" {
			if data.Amount.LessThanOrEqual(decimal.Zero) {
				return internal.NewValidationFieldError("amount",
					fmt.Sprintf("Field 'amount' is required for %s gateway", b.name),
					internal.ErrCodeInvalidAmount)
			}
			continue
		}
		if strings.TrimSpace(values[field]) == "" {
			return internal.NewValidationFieldError(field,
				fmt.Sprintf("Field '%s' is required for %s gateway", field, b.name),
				internal.ErrCodeValidationFailed)
		}
	}
	return nil
}

// formatAmount rounds to 2 decimal places before any minor-unit conversion.
func (b *baseGateway) formatAmount(amount decimal.Decimal) decimal.Decimal {
	return amount.Round(2)
}

// toMinorUnits converts a decimal currency amount to integer minor units
// (cents). Rounding happens before multiplication to avoid float drift.
func (b *baseGateway) toMinorUnits(amount decimal.Decimal) int64 {
	return b.formatAmount(amount).Mul(decimal.NewFromInt(100)).IntPart()
}

// createPaymentRecord persists the pending record every adapter starts from.
func (b *baseGateway) createPaymentRecord(data CreatePaymentData) (*payment.Payment, error) {
	currency := data.Currency
	if currency == "" {
		currency = b.defaultCurrency
	}

	p := &payment.Payment{
		ID:          uuid.NewString(),
		ReferenceID: payment.NewReferenceID(),
		Gateway:     b.name,
		Amount:      b.formatAmount(data.Amount),
		Currency:    strings.ToUpper(currency),
		Status:      payment.StatusPending,
	}

	if data.Description != "" {
		p.Description = &data.Description
	}
	if data.CustomerName != "" {
		p.CustomerName = &data.CustomerName
	}
	if data.CustomerEmail != "" {
		p.CustomerEmail = &data.CustomerEmail
	}
	if data.CustomerPhone != "" {
		p.CustomerPhone = &data.CustomerPhone
	}
	if data.ExternalReferenceID != "" {
		p.ExternalReferenceID = &data.ExternalReferenceID
		refType := data.ReferenceType
		if refType == "" {
			refType = "order"
		}
		p.ReferenceType = &refType
	}
	if len(data.Metadata) > 0 {
		raw, err := json.Marshal(data.Metadata)
		if err != nil {
			return nil, internal.NewInternalError("failed to encode payment metadata", err)
		}
		p.Metadata = raw
	}

	if err := b.repo.Create(p); err != nil {
		b.logger.Error("failed to create payment record", "error", err, "gateway", b.name)
		return nil, internal.NewInternalError("failed to create payment record", err)
	}

	b.logger.Info("payment record created",
		"payment_id", p.ID,
		"reference_id", p.ReferenceID,
		"gateway", b.name,
		"amount", p.Amount.String(),
		"currency", p.Currency)

	return p, nil
}

// lookupByTransactionID resolves a callback correlation id to the payment
// record owned by this gateway.
func (b *baseGateway) lookupByTransactionID(transactionID string) (*payment.Payment, error) {
	p, err := b.repo.GetByGatewayTransactionID(b.name, transactionID)
	if err != nil {
		b.logger.Warn("no payment matches callback transaction id",
			"gateway", b.name,
			"transaction_id", transactionID,
			"error", err)
		return nil, internal.ErrPaymentNotFound
	}
	return p, nil
}

// applyOutcome stores raw callback data for audit, then runs the state
// machine and reports the resulting status.
func (b *baseGateway) applyOutcome(p *payment.Payment, params CallbackParams, out Outcome) (*Result, error) {
	raw, err := json.Marshal(params)
	if err == nil {
		if saveErr := b.repo.SaveCallbackData(p.ID, raw); saveErr != nil {
			b.logger.Error("failed to store callback data", "error", saveErr, "payment_id", p.ID)
		}
	}
	if out.Payload == nil {
		out.Payload = raw
	}

	updated, transitioned, err := ApplyOutcome(b.repo, b.logger, p, out)
	if err != nil {
		return nil, internal.NewInternalError("failed to apply payment transition", err)
	}

	// Report the stored status, not the classified one: a late conflicting
	// delivery answers with the terminal state the record already holds.
	return &Result{
		Success:      true,
		Status:       updated.Status,
		Payment:      updated,
		Transitioned: transitioned,
	}, nil
}

func notSupportedResult(gatewayName, operation string) *Result {
	return &Result{
		Success: false,
		Message: fmt.Sprintf("%s not supported for %s", operation, gatewayName),
	}
}
