package postgres

import (
	"encoding/json"
	"time"

	"gorm.io/gorm"

	"github.com/frahmantamala/payment-gateway/internal/core/datamodel/payment"
	paymentpkg "github.com/frahmantamala/payment-gateway/internal/payment"
)

type PaymentRepository struct {
	db *gorm.DB
}

func NewPaymentRepository(db *gorm.DB) paymentpkg.Repository {
	return &PaymentRepository{
		db: db,
	}
}

func (r *PaymentRepository) Create(p *payment.Payment) error {
	return r.db.Create(p).Error
}

func (r *PaymentRepository) GetByID(id string) (*payment.Payment, error) {
	var p payment.Payment
	err := r.db.Where("id = ?", id).First(&p).Error
	if err != nil {
		return nil, err
	}
	return &p, nil
}

func (r *PaymentRepository) GetByReferenceID(referenceID string) (*payment.Payment, error) {
	var p payment.Payment
	err := r.db.Where("reference_id = ?", referenceID).First(&p).Error
	if err != nil {
		return nil, err
	}
	return &p, nil
}

func (r *PaymentRepository) GetByGatewayTransactionID(gateway, transactionID string) (*payment.Payment, error) {
	var p payment.Payment
	err := r.db.Where("gateway = ? AND gateway_transaction_id = ?", gateway, transactionID).First(&p).Error
	if err != nil {
		return nil, err
	}
	return &p, nil
}

func (r *PaymentRepository) ListByStatus(status string, limit, offset int) ([]*payment.Payment, error) {
	var payments []*payment.Payment
	err := r.db.Where("status = ?", status).
		Order("created_at DESC").
		Limit(limit).
		Offset(offset).
		Find(&payments).Error
	return payments, err
}

// FindByExternalReference returns every payment attempt recorded against an
// external entity, newest first. An empty refType matches all types.
func (r *PaymentRepository) FindByExternalReference(externalRefID, refType string) ([]*payment.Payment, error) {
	var payments []*payment.Payment
	query := r.db.Where("external_reference_id = ?", externalRefID)
	if refType != "" {
		query = query.Where("reference_type = ?", refType)
	}
	err := query.Order("created_at DESC").Find(&payments).Error
	return payments, err
}

func (r *PaymentRepository) LatestByExternalReference(externalRefID, refType string) (*payment.Payment, error) {
	var p payment.Payment
	query := r.db.Where("external_reference_id = ?", externalRefID)
	if refType != "" {
		query = query.Where("reference_type = ?", refType)
	}
	err := query.Order("created_at DESC").First(&p).Error
	if err != nil {
		return nil, err
	}
	return &p, nil
}

func (r *PaymentRepository) UpdateCheckout(id, paymentURL, transactionID string, gatewayResponse json.RawMessage) error {
	updates := map[string]interface{}{
		"payment_url":            paymentURL,
		"gateway_transaction_id": transactionID,
		"updated_at":             time.Now(),
	}
	if gatewayResponse != nil {
		updates["gateway_response"] = gatewayResponse
	}
	return r.db.Model(&payment.Payment{}).Where("id = ?", id).Updates(updates).Error
}

func (r *PaymentRepository) SaveCallbackData(id string, data json.RawMessage) error {
	return r.db.Model(&payment.Payment{}).Where("id = ?", id).Updates(map[string]interface{}{
		"callback_data": data,
		"updated_at":    time.Now(),
	}).Error
}

// MarkPaid moves a pending payment to paid. The status predicate makes the
// update a no-op against concurrent or duplicate deliveries; the stored
// record is returned either way, and the bool reports whether this call
// touched a row.
func (r *PaymentRepository) MarkPaid(id string, transactionID *string, response json.RawMessage) (*payment.Payment, bool, error) {
	now := time.Now()
	updates := map[string]interface{}{
		"status":     payment.StatusPaid,
		"paid_at":    now,
		"updated_at": now,
	}
	if transactionID != nil {
		updates["gateway_transaction_id"] = *transactionID
	}
	if response != nil {
		updates["gateway_response"] = response
	}

	result := r.db.Model(&payment.Payment{}).
		Where("id = ? AND status = ?", id, payment.StatusPending).
		Updates(updates)
	if result.Error != nil {
		return nil, false, result.Error
	}
	p, err := r.GetByID(id)
	if err != nil {
		return nil, false, err
	}
	return p, result.RowsAffected > 0, nil
}

// MarkFailed moves a pending payment to failed, recording the reason in the
// metadata bag.
func (r *PaymentRepository) MarkFailed(id, reason string, response json.RawMessage) (*payment.Payment, bool, error) {
	p, err := r.GetByID(id)
	if err != nil {
		return nil, false, err
	}
	metadata, err := p.MergedMetadata(map[string]interface{}{"failure_reason": reason})
	if err != nil {
		return nil, false, err
	}

	now := time.Now()
	updates := map[string]interface{}{
		"status":     payment.StatusFailed,
		"failed_at":  now,
		"metadata":   metadata,
		"updated_at": now,
	}
	if response != nil {
		updates["gateway_response"] = response
	}

	result := r.db.Model(&payment.Payment{}).
		Where("id = ? AND status = ?", id, payment.StatusPending).
		Updates(updates)
	if result.Error != nil {
		return nil, false, result.Error
	}
	p, err = r.GetByID(id)
	if err != nil {
		return nil, false, err
	}
	return p, result.RowsAffected > 0, nil
}

// MarkRefunded moves a paid payment to refunded. Refunds of anything not
// currently paid do not apply.
func (r *PaymentRepository) MarkRefunded(id string, response json.RawMessage) (*payment.Payment, bool, error) {
	updates := map[string]interface{}{
		"status":     payment.StatusRefunded,
		"updated_at": time.Now(),
	}
	if response != nil {
		updates["gateway_response"] = response
	}

	result := r.db.Model(&payment.Payment{}).
		Where("id = ? AND status = ?", id, payment.StatusPaid).
		Updates(updates)
	if result.Error != nil {
		return nil, false, result.Error
	}
	p, err := r.GetByID(id)
	if err != nil {
		return nil, false, err
	}
	return p, result.RowsAffected > 0, nil
}

func (r *PaymentRepository) SetProofFile(id, path string, metadata json.RawMessage) error {
	updates := map[string]interface{}{
		"proof_file_path": path,
		"updated_at":      time.Now(),
	}
	if metadata != nil {
		updates["metadata"] = metadata
	}
	return r.db.Model(&payment.Payment{}).
		Where("id = ? AND status = ?", id, payment.StatusPending).
		Updates(updates).Error
}
