package payment

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Payment statuses. Pending is the only non-terminal status.
const (
	StatusPending   = "pending"
	StatusPaid      = "paid"
	StatusFailed    = "failed"
	StatusCancelled = "cancelled"
	StatusRefunded  = "refunded"
)

type Payment struct {
	ID          string          `gorm:"primaryKey;size:36"`
	ReferenceID string          `gorm:"column:reference_id;not null;uniqueIndex"`
	Gateway     string          `gorm:"column:gateway;not null;index;uniqueIndex:idx_payments_gateway_txn"`
	Amount      decimal.Decimal `gorm:"column:amount;type:numeric(14,2);not null"`
	Currency    string          `gorm:"column:currency;size:3;not null"`
	Status      string          `gorm:"column:status;default:pending;index"`

	Description   *string `gorm:"column:description"`
	CustomerName  *string `gorm:"column:customer_name"`
	CustomerEmail *string `gorm:"column:customer_email"`
	CustomerPhone *string `gorm:"column:customer_phone"`

	PaymentURL           *string `gorm:"column:payment_url"`
	GatewayTransactionID *string `gorm:"column:gateway_transaction_id;uniqueIndex:idx_payments_gateway_txn"`

	GatewayResponse json.RawMessage `gorm:"column:gateway_response;type:jsonb"`
	CallbackData    json.RawMessage `gorm:"column:callback_data;type:jsonb"`
	Metadata        json.RawMessage `gorm:"column:metadata;type:jsonb"`

	ProofFilePath *string `gorm:"column:proof_file_path"`

	ExternalReferenceID *string `gorm:"column:external_reference_id;index:idx_payments_external_ref"`
	ReferenceType       *string `gorm:"column:reference_type;index:idx_payments_external_ref"`

	PaidAt   *time.Time `gorm:"column:paid_at"`
	FailedAt *time.Time `gorm:"column:failed_at"`

	CreatedAt time.Time `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt time.Time `gorm:"column:updated_at;autoUpdateTime"`
}

func (Payment) TableName() string {
	return "payments"
}

func (p *Payment) IsTerminal() bool {
	return p.Status != StatusPending
}

func (p *Payment) IsManual() bool {
	return p.Gateway == "manual"
}

// NewReferenceID builds the human-shareable identifier in the
// PAY-<random>-<timestamp> format.
func NewReferenceID() string {
	random := strings.ToUpper(strings.ReplaceAll(uuid.NewString(), "-", "")[:12])
	return fmt.Sprintf("PAY-%s-%d", random, time.Now().Unix())
}

// MergedMetadata returns the metadata bag with extra merged in; existing keys
// are preserved unless explicitly overwritten by extra.
func (p *Payment) MergedMetadata(extra map[string]interface{}) (json.RawMessage, error) {
	merged := map[string]interface{}{}
	if len(p.Metadata) > 0 {
		if err := json.Unmarshal(p.Metadata, &merged); err != nil {
			return nil, fmt.Errorf("unmarshal existing metadata: %w", err)
		}
	}
	for k, v := range extra {
		merged[k] = v
	}
	return json.Marshal(merged)
}
