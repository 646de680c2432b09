package paymentgateway

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"path/filepath"
	"strings"
	"time"

	"github.com/frahmantamala/payment-gateway/internal"
	"github.com/frahmantamala/payment-gateway/internal/core/datamodel/payment"
	"github.com/frahmantamala/payment-gateway/internal/storage"
)

// ManualGateway handles bank-transfer style payments: the customer uploads
// a proof of payment and an admin settles the record by approving or
// rejecting it. There is no provider webhook in this flow.
type ManualGateway struct {
	baseGateway
	store storage.ProofStorage
}

const (
	defaultMaxFileSizeKB = 5120
	defaultUploadPath    = "payment-proofs"
)

var defaultAllowedExtensions = []string{"jpg", "jpeg", "png", "pdf"}

func NewManualGateway(cfg internal.GatewayConfig, repo Repository, urls URLBuilder, defaultCurrency string, store storage.ProofStorage, logger *slog.Logger) *ManualGateway {
	if cfg.MaxFileSizeKB <= 0 {
		cfg.MaxFileSizeKB = defaultMaxFileSizeKB
	}
	if cfg.UploadPath == "" {
		cfg.UploadPath = defaultUploadPath
	}
	if len(cfg.AllowedExtensions) == 0 {
		cfg.AllowedExtensions = defaultAllowedExtensions
	}
	return &ManualGateway{
		baseGateway: newBaseGateway("manual", cfg, repo, urls, defaultCurrency, 0, logger),
		store:       store,
	}
}

func (g *ManualGateway) CreatePayment(ctx context.Context, data CreatePaymentData) (*Result, error) {
	if err := g.validateRequired(data, "amount"); err != nil {
		return nil, err
	}

	p, err := g.createPaymentRecord(data)
	if err != nil {
		return nil, err
	}

	return &Result{
		Success:        true,
		Message:        "Payment created. Please upload proof of payment.",
		PaymentURL:     g.urls.UploadURL(p.ID),
		RequiresUpload: true,
		Payment:        p,
	}, nil
}

// HandleCallback always fails: manual payments are settled by admin review,
// never by an inbound webhook.
func (g *ManualGateway) HandleCallback(ctx context.Context, params CallbackParams) (*Result, error) {
	return &Result{Success: false, Message: "Manual payments do not support callbacks"}, nil
}

func (g *ManualGateway) VerifyPayment(ctx context.Context, transactionID string) (*Result, error) {
	return notSupportedResult(g.name, "verification"), nil
}

// HandleProofUpload validates and stores the customer's proof file against a
// pending manual payment. Size is checked before the extension so an
// oversized file is rejected without inspecting its name.
func (g *ManualGateway) HandleProofUpload(ctx context.Context, paymentID string, file ProofFile) (*Result, error) {
	p, err := g.repo.GetByID(paymentID)
	if err != nil {
		return nil, internal.ErrPaymentNotFound
	}
	if p.Gateway != g.name {
		return nil, internal.NewValidationError(
			fmt.Sprintf("Payment %s does not belong to the manual gateway", paymentID),
			internal.ErrCodeValidationFailed)
	}
	if p.IsTerminal() {
		return &Result{
			Success: false,
			Message: fmt.Sprintf("Payment is already %s", p.Status),
			Status:  p.Status,
			Payment: p,
		}, nil
	}

	maxBytes := int64(g.cfg.MaxFileSizeKB) * 1024
	if file.Size > maxBytes {
		return nil, internal.NewFileRejectedError(
			fmt.Sprintf("File size exceeds maximum allowed size of %dKB", g.cfg.MaxFileSizeKB))
	}

	ext := strings.TrimPrefix(strings.ToLower(filepath.Ext(file.Name)), ".")
	if !g.extensionAllowed(ext) {
		return nil, internal.NewFileRejectedError(
			fmt.Sprintf("File type not allowed. Allowed types: %s", strings.Join(g.cfg.AllowedExtensions, ", ")))
	}

	content, err := io.ReadAll(io.LimitReader(file.Content, maxBytes+1))
	if err != nil {
		return nil, internal.NewInternalError("failed to read proof file", err)
	}
	if int64(len(content)) > maxBytes {
		return nil, internal.NewFileRejectedError(
			fmt.Sprintf("File size exceeds maximum allowed size of %dKB", g.cfg.MaxFileSizeKB))
	}

	previousPath := ""
	if p.ProofFilePath != nil {
		previousPath = *p.ProofFilePath
	}

	storedPath, err := g.store.Save(ctx, g.cfg.UploadPath, file.Name, bytes.NewReader(content))
	if err != nil {
		return nil, internal.NewInternalError("failed to store proof file", err)
	}

	metadata, err := p.MergedMetadata(map[string]interface{}{
		"proof_uploaded_at": time.Now().UTC().Format(time.RFC3339),
		"original_filename": file.Name,
	})
	if err != nil {
		return nil, internal.NewInternalError("failed to merge payment metadata", err)
	}

	if err := g.repo.SetProofFile(p.ID, storedPath, metadata); err != nil {
		return nil, internal.NewInternalError("failed to record proof file", err)
	}
	p.ProofFilePath = &storedPath
	p.Metadata = metadata

	// A re-upload replaces the previous proof; the superseded file is
	// removed once the record points at the new one.
	if previousPath != "" && previousPath != storedPath {
		if delErr := g.store.Delete(ctx, previousPath); delErr != nil {
			g.logger.Warn("failed to remove superseded proof file",
				"payment_id", p.ID,
				"path", previousPath,
				"error", delErr)
		}
	}

	g.logger.Info("payment proof uploaded",
		"payment_id", p.ID,
		"stored_path", storedPath,
		"size_bytes", len(content))

	return &Result{
		Success: true,
		Message: "Proof of payment uploaded. Awaiting admin review.",
		Status:  p.Status,
		Payment: p,
	}, nil
}

// Approve settles a manual payment as paid. A proof file must be on record
// first, and a payment that already reached a terminal state is returned
// unchanged.
func (g *ManualGateway) Approve(ctx context.Context, paymentID string, adminID string) (*Result, error) {
	p, err := g.loadOwn(paymentID)
	if err != nil {
		return nil, err
	}
	if p.IsTerminal() {
		return g.terminalResult(p), nil
	}
	if p.ProofFilePath == nil || *p.ProofFilePath == "" {
		return nil, internal.ErrMissingProof
	}

	response, _ := json.Marshal(map[string]string{
		"approved_by": adminID,
		"approved_at": time.Now().UTC().Format(time.RFC3339),
	})

	updated, transitioned, err := g.repo.MarkPaid(p.ID, nil, response)
	if err != nil {
		return nil, internal.NewInternalError("failed to approve payment", err)
	}

	g.logger.Info("manual payment approved",
		"payment_id", p.ID,
		"admin_id", adminID)

	return &Result{
		Success:      true,
		Message:      "Payment approved",
		Status:       updated.Status,
		Payment:      updated,
		Transitioned: transitioned,
	}, nil
}

// Reject settles a manual payment as failed with the admin's reason.
func (g *ManualGateway) Reject(ctx context.Context, paymentID string, adminID string, reason string) (*Result, error) {
	p, err := g.loadOwn(paymentID)
	if err != nil {
		return nil, err
	}
	if p.IsTerminal() {
		return g.terminalResult(p), nil
	}
	if reason == "" {
		reason = "Payment proof rejected by admin"
	}

	response, _ := json.Marshal(map[string]string{
		"rejected_by": adminID,
		"rejected_at": time.Now().UTC().Format(time.RFC3339),
		"reason":      reason,
	})

	updated, transitioned, err := g.repo.MarkFailed(p.ID, reason, response)
	if err != nil {
		return nil, internal.NewInternalError("failed to reject payment", err)
	}

	g.logger.Info("manual payment rejected",
		"payment_id", p.ID,
		"admin_id", adminID,
		"reason", reason)

	return &Result{
		Success:      true,
		Message:      "Payment rejected",
		Status:       updated.Status,
		Payment:      updated,
		Transitioned: transitioned,
	}, nil
}

func (g *ManualGateway) loadOwn(paymentID string) (*payment.Payment, error) {
	p, err := g.repo.GetByID(paymentID)
	if err != nil {
		return nil, internal.ErrPaymentNotFound
	}
	if p.Gateway != g.name {
		return nil, internal.NewValidationError(
			fmt.Sprintf("Payment %s does not belong to the manual gateway", paymentID),
			internal.ErrCodeValidationFailed)
	}
	return p, nil
}

func (g *ManualGateway) terminalResult(p *payment.Payment) *Result {
	return &Result{
		Success: true,
		Message: fmt.Sprintf("Payment is already %s", p.Status),
		Status:  p.Status,
		Payment: p,
	}
}

func (g *ManualGateway) extensionAllowed(ext string) bool {
	for _, allowed := range g.cfg.AllowedExtensions {
		if strings.EqualFold(allowed, ext) {
			return true
		}
	}
	return false
}
