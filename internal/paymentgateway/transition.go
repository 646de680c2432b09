package paymentgateway

import (
	"encoding/json"
	"log/slog"

	"github.com/frahmantamala/payment-gateway/internal/core/datamodel/payment"
)

// Outcome is a classified provider report about one payment, ready to be
// applied to the record.
type Outcome struct {
	Class         StatusClass
	TransactionID string
	Reason        string
	Payload       json.RawMessage
}

// ApplyOutcome drives the payment state machine. Webhook delivery is
// at-least-once, so the transition rules are status-aware:
//
//	pending -> paid      on ClassPaid
//	pending -> failed    on ClassFailed or ClassError
//	paid    -> refunded  on ClassRefunded
//
// Any outcome against an already-terminal record returns the record
// unchanged: a duplicate terminal report is a no-op and a late conflicting
// report never regresses or flips a terminal state. ClassPending and
// ClassAuthorized leave a pending record pending.
//
// The returned bool reports whether this call made the transition. It comes
// from the repository's guarded update, so of two concurrent deliveries of
// the same terminal report exactly one reads true.
func ApplyOutcome(repo Repository, logger *slog.Logger, p *payment.Payment, out Outcome) (*payment.Payment, bool, error) {
	switch out.Class {
	case ClassPaid:
		if p.IsTerminal() {
			logTerminalSkip(logger, p, out)
			return p, false, nil
		}
		var txnID *string
		if out.TransactionID != "" {
			txnID = &out.TransactionID
		}
		return repo.MarkPaid(p.ID, txnID, out.Payload)

	case ClassFailed, ClassError:
		if p.IsTerminal() {
			logTerminalSkip(logger, p, out)
			return p, false, nil
		}
		reason := out.Reason
		if reason == "" {
			reason = "Payment failed or cancelled"
		}
		return repo.MarkFailed(p.ID, reason, out.Payload)

	case ClassRefunded:
		if p.Status != payment.StatusPaid {
			logTerminalSkip(logger, p, out)
			return p, false, nil
		}
		return repo.MarkRefunded(p.ID, out.Payload)

	default:
		// pending / authorized: no transition.
		return p, false, nil
	}
}

func logTerminalSkip(logger *slog.Logger, p *payment.Payment, out Outcome) {
	logger.Info("skipping transition for terminal payment",
		"payment_id", p.ID,
		"current_status", p.Status,
		"reported_class", string(out.Class),
		"transaction_id", out.TransactionID)
}

// ReportedStatus maps a classification to the status string surfaced to
// callback and verify callers.
func ReportedStatus(class StatusClass) string {
	switch class {
	case ClassPaid:
		return payment.StatusPaid
	case ClassFailed, ClassError:
		return payment.StatusFailed
	case ClassRefunded:
		return payment.StatusRefunded
	default:
		return payment.StatusPending
	}
}
