package paymentgateway

import (
	"context"
	"log/slog"
	"time"

	"github.com/frahmantamala/payment-gateway/internal"
)

// PayPalGateway is a placeholder adapter: it validates input and creates the
// pending record, but checkout with the provider is not yet implemented.
type PayPalGateway struct {
	baseGateway
}

func NewPayPalGateway(cfg internal.GatewayConfig, repo Repository, urls URLBuilder, defaultCurrency string, timeout time.Duration, logger *slog.Logger) *PayPalGateway {
	return &PayPalGateway{
		baseGateway: newBaseGateway("paypal", cfg, repo, urls, defaultCurrency, timeout, logger),
	}
}

func (g *PayPalGateway) CreatePayment(ctx context.Context, data CreatePaymentData) (*Result, error) {
	if err := g.validateRequired(data, "amount", "customer_email"); err != nil {
		return nil, err
	}

	p, err := g.createPaymentRecord(data)
	if err != nil {
		return nil, err
	}

	return &Result{
		Success: false,
		Message: "PayPal integration is not yet implemented",
		Payment: p,
	}, nil
}

func (g *PayPalGateway) HandleCallback(ctx context.Context, params CallbackParams) (*Result, error) {
	return notSupportedResult(g.name, "callback handling"), nil
}

func (g *PayPalGateway) VerifyPayment(ctx context.Context, transactionID string) (*Result, error) {
	return notSupportedResult(g.name, "verification"), nil
}
