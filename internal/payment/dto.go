package payment

import (
	"encoding/json"
	"time"

	"github.com/shopspring/decimal"

	"github.com/frahmantamala/payment-gateway/internal/core/common/validation"
	"github.com/frahmantamala/payment-gateway/internal/core/datamodel/payment"
	"github.com/frahmantamala/payment-gateway/internal/paymentgateway"
)

// CreatePaymentRequest is the payload for POST /api/v1/payments.
type CreatePaymentRequest struct {
	Gateway       string          `json:"gateway,omitempty"`
	Amount        decimal.Decimal `json:"amount"`
	Currency      string          `json:"currency,omitempty"`
	Description   string          `json:"description,omitempty"`
	CustomerName  string          `json:"customer_name,omitempty"`
	CustomerEmail string          `json:"customer_email,omitempty"`
	CustomerPhone string          `json:"customer_phone,omitempty"`

	Metadata map[string]interface{} `json:"metadata,omitempty"`
	Products []ProductRequest       `json:"products,omitempty"`

	ExternalReferenceID string `json:"external_reference_id,omitempty"`
	ReferenceType       string `json:"reference_type,omitempty"`
}

type ProductRequest struct {
	Name     string          `json:"name"`
	Price    decimal.Decimal `json:"price"`
	Quantity int64           `json:"quantity"`
}

func (r *CreatePaymentRequest) Validate() error {
	validator := validation.NewValidator()

	validator.Field("amount", r.Amount).Required().PositiveAmount()
	if r.Currency != "" {
		validator.Field("currency", r.Currency).CurrencyCode()
	}
	validator.Field("description", r.Description).MaxLength(255)
	validator.Field("customer_name", r.CustomerName).MaxLength(255)
	validator.Field("customer_email", r.CustomerEmail).MaxLength(255)

	if appErr := validator.Validate(); appErr != nil {
		return appErr
	}
	return nil
}

func (r *CreatePaymentRequest) ToCreateData() paymentgateway.CreatePaymentData {
	products := make([]paymentgateway.Product, 0, len(r.Products))
	for _, p := range r.Products {
		products = append(products, paymentgateway.Product{
			Name:     p.Name,
			Price:    p.Price,
			Quantity: p.Quantity,
		})
	}

	return paymentgateway.CreatePaymentData{
		Gateway:             r.Gateway,
		Amount:              r.Amount,
		Currency:            r.Currency,
		Description:         r.Description,
		CustomerName:        r.CustomerName,
		CustomerEmail:       r.CustomerEmail,
		CustomerPhone:       r.CustomerPhone,
		Metadata:            r.Metadata,
		Products:            products,
		ExternalReferenceID: r.ExternalReferenceID,
		ReferenceType:       r.ReferenceType,
	}
}

// RejectPaymentRequest is the payload for the admin reject endpoint.
type RejectPaymentRequest struct {
	Reason string `json:"reason,omitempty"`
}

func (r *RejectPaymentRequest) Validate() error {
	validator := validation.NewValidator()
	validator.Field("reason", r.Reason).MaxLength(500)

	if appErr := validator.Validate(); appErr != nil {
		return appErr
	}
	return nil
}

// PaymentResponse is the wire shape of a payment record.
type PaymentResponse struct {
	ID          string          `json:"id"`
	ReferenceID string          `json:"reference_id"`
	Gateway     string          `json:"gateway"`
	Amount      decimal.Decimal `json:"amount"`
	Currency    string          `json:"currency"`
	Status      string          `json:"status"`

	Description   *string `json:"description,omitempty"`
	CustomerName  *string `json:"customer_name,omitempty"`
	CustomerEmail *string `json:"customer_email,omitempty"`

	PaymentURL           *string `json:"payment_url,omitempty"`
	GatewayTransactionID *string `json:"gateway_transaction_id,omitempty"`
	ProofFilePath        *string `json:"proof_file_path,omitempty"`

	ExternalReferenceID *string `json:"external_reference_id,omitempty"`
	ReferenceType       *string `json:"reference_type,omitempty"`

	Metadata json.RawMessage `json:"metadata,omitempty"`

	PaidAt    *time.Time `json:"paid_at,omitempty"`
	FailedAt  *time.Time `json:"failed_at,omitempty"`
	CreatedAt time.Time  `json:"created_at"`
	UpdatedAt time.Time  `json:"updated_at"`
}

func ToPaymentResponse(p *payment.Payment) *PaymentResponse {
	return &PaymentResponse{
		ID:                   p.ID,
		ReferenceID:          p.ReferenceID,
		Gateway:              p.Gateway,
		Amount:               p.Amount,
		Currency:             p.Currency,
		Status:               p.Status,
		Description:          p.Description,
		CustomerName:         p.CustomerName,
		CustomerEmail:        p.CustomerEmail,
		PaymentURL:           p.PaymentURL,
		GatewayTransactionID: p.GatewayTransactionID,
		ProofFilePath:        p.ProofFilePath,
		ExternalReferenceID:  p.ExternalReferenceID,
		ReferenceType:        p.ReferenceType,
		Metadata:             p.Metadata,
		PaidAt:               p.PaidAt,
		FailedAt:             p.FailedAt,
		CreatedAt:            p.CreatedAt,
		UpdatedAt:            p.UpdatedAt,
	}
}

func ToPaymentResponses(payments []*payment.Payment) []*PaymentResponse {
	responses := make([]*PaymentResponse, 0, len(payments))
	for _, p := range payments {
		responses = append(responses, ToPaymentResponse(p))
	}
	return responses
}

// CreatePaymentResponse is returned from payment creation, carrying the
// next action the caller should take.
type CreatePaymentResponse struct {
	Payment        *PaymentResponse `json:"payment"`
	PaymentURL     string           `json:"payment_url,omitempty"`
	RequiresUpload bool             `json:"requires_upload,omitempty"`
	Message        string           `json:"message,omitempty"`
}
