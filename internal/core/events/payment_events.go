package events

import (
	"time"

	"github.com/google/uuid"
)

const (
	EventTypePaymentPaid   = "payment.paid"
	EventTypePaymentFailed = "payment.failed"
)

// PaymentPaidEvent fires once a payment reaches the paid status, whether
// through a provider callback, verification, or admin approval. External
// reference fields are included so host systems can locate their own entity.
type PaymentPaidEvent struct {
	BaseEvent
	PaymentID            string `json:"payment_id"`
	ReferenceID          string `json:"reference_id"`
	Gateway              string `json:"gateway"`
	Amount               string `json:"amount"`
	Currency             string `json:"currency"`
	GatewayTransactionID string `json:"gateway_transaction_id,omitempty"`
	ExternalReferenceID  string `json:"external_reference_id,omitempty"`
	ReferenceType        string `json:"reference_type,omitempty"`
}

func NewPaymentPaidEvent(paymentID, referenceID, gateway, amount, currency, gatewayTxnID, externalRefID, refType string) *PaymentPaidEvent {
	return &PaymentPaidEvent{
		BaseEvent: BaseEvent{
			ID:        uuid.New().String(),
			Type:      EventTypePaymentPaid,
			Timestamp: time.Now(),
			Data: map[string]interface{}{
				"payment_id":             paymentID,
				"reference_id":           referenceID,
				"gateway":                gateway,
				"amount":                 amount,
				"currency":               currency,
				"gateway_transaction_id": gatewayTxnID,
				"external_reference_id":  externalRefID,
				"reference_type":         refType,
			},
		},
		PaymentID:            paymentID,
		ReferenceID:          referenceID,
		Gateway:              gateway,
		Amount:               amount,
		Currency:             currency,
		GatewayTransactionID: gatewayTxnID,
		ExternalReferenceID:  externalRefID,
		ReferenceType:        refType,
	}
}

type PaymentFailedEvent struct {
	BaseEvent
	PaymentID           string `json:"payment_id"`
	ReferenceID         string `json:"reference_id"`
	Gateway             string `json:"gateway"`
	FailureReason       string `json:"failure_reason,omitempty"`
	ExternalReferenceID string `json:"external_reference_id,omitempty"`
	ReferenceType       string `json:"reference_type,omitempty"`
}

func NewPaymentFailedEvent(paymentID, referenceID, gateway, failureReason, externalRefID, refType string) *PaymentFailedEvent {
	return &PaymentFailedEvent{
		BaseEvent: BaseEvent{
			ID:        uuid.New().String(),
			Type:      EventTypePaymentFailed,
			Timestamp: time.Now(),
			Data: map[string]interface{}{
				"payment_id":            paymentID,
				"reference_id":          referenceID,
				"gateway":               gateway,
				"failure_reason":        failureReason,
				"external_reference_id": externalRefID,
				"reference_type":        refType,
			},
		},
		PaymentID:           paymentID,
		ReferenceID:         referenceID,
		Gateway:             gateway,
		FailureReason:       failureReason,
		ExternalReferenceID: externalRefID,
		ReferenceType:       refType,
	}
}
