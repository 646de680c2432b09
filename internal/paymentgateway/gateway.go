// Package paymentgateway holds the provider adapters behind a single
// interface contract. Each adapter normalizes one provider's request,
// response and webhook shapes onto the shared payment lifecycle; the
// Registry resolves adapters by name from configuration at startup.
package paymentgateway

import (
	"context"
	"encoding/json"
	"io"

	"github.com/shopspring/decimal"

	"github.com/frahmantamala/payment-gateway/internal"
	"github.com/frahmantamala/payment-gateway/internal/core/datamodel/payment"
)

// Gateway is the capability set every provider adapter implements.
type Gateway interface {
	Name() string
	Enabled() bool
	Config() internal.GatewayConfig

	// CreatePayment validates provider-specific required fields, creates a
	// pending payment record and initiates checkout with the provider. A
	// failed outbound call returns an unsuccessful Result and leaves the
	// record pending; it never marks the payment failed.
	CreatePayment(ctx context.Context, data CreatePaymentData) (*Result, error)

	// HandleCallback correlates an inbound webhook to a payment record by
	// the provider transaction id and applies the classified outcome.
	HandleCallback(ctx context.Context, params CallbackParams) (*Result, error)

	// VerifyPayment queries the provider for the current status of a
	// transaction, mapped through the same classification as callbacks.
	VerifyPayment(ctx context.Context, transactionID string) (*Result, error)

	// VerifySignature authenticates a raw webhook body against the
	// configured webhook secret. A gateway without a secret accepts all
	// payloads.
	VerifySignature(body []byte, signature string) error
}

// Repository is the slice of payment persistence the adapters need. The
// terminal-transition methods are guarded: they only move a record in the
// expected prior status. The returned bool reports whether this call made
// the transition, so duplicate webhook deliveries read false and stay
// no-ops even under concurrent delivery.
type Repository interface {
	Create(p *payment.Payment) error
	GetByID(id string) (*payment.Payment, error)
	GetByGatewayTransactionID(gateway, transactionID string) (*payment.Payment, error)
	UpdateCheckout(id, paymentURL, transactionID string, gatewayResponse json.RawMessage) error
	SaveCallbackData(id string, data json.RawMessage) error
	MarkPaid(id string, transactionID *string, response json.RawMessage) (*payment.Payment, bool, error)
	MarkFailed(id, reason string, response json.RawMessage) (*payment.Payment, bool, error)
	MarkRefunded(id string, response json.RawMessage) (*payment.Payment, bool, error)
	SetProofFile(id, path string, metadata json.RawMessage) error
}

// CreatePaymentData is the uniform creation input shared by all adapters.
// Amounts are decimal currency units; adapters convert to provider minor
// units at their boundary.
type CreatePaymentData struct {
	Gateway       string
	Amount        decimal.Decimal
	Currency      string
	Description   string
	CustomerName  string
	CustomerEmail string
	CustomerPhone string

	Metadata map[string]interface{}
	Products []Product

	ExternalReferenceID string
	ReferenceType       string
}

type Product struct {
	Name     string
	Price    decimal.Decimal
	Quantity int64
}

// CallbackParams carries the provider-specific webhook fields after
// transport decoding. Values keep their wire form; adapters interpret them.
type CallbackParams map[string]string

// ProofFile is an uploaded manual-payment proof. Size is in bytes.
type ProofFile struct {
	Name    string
	Size    int64
	Content io.Reader
}

// Result is the uniform outcome returned by every gateway operation.
type Result struct {
	Success        bool             `json:"success"`
	Message        string           `json:"message,omitempty"`
	Status         string           `json:"status,omitempty"`
	PaymentURL     string           `json:"payment_url,omitempty"`
	TransactionID  string           `json:"transaction_id,omitempty"`
	RequiresUpload bool             `json:"requires_upload,omitempty"`
	Payment        *payment.Payment `json:"payment,omitempty"`
	Data           json.RawMessage  `json:"data,omitempty"`

	// Transitioned is true when this operation moved the payment to a new
	// status, false for duplicate or conflicting deliveries.
	Transitioned bool `json:"-"`
}

// StatusClass is the normalized classification of a provider-reported
// status. Every provider value maps to exactly one class; unrecognized
// values classify as pending so an undocumented status string never fails a
// payment silently.
type StatusClass string

const (
	ClassPaid       StatusClass = "paid"
	ClassFailed     StatusClass = "failed"
	ClassPending    StatusClass = "pending"
	ClassAuthorized StatusClass = "authorized"
	ClassRefunded   StatusClass = "refunded"
	ClassError      StatusClass = "error"
)
