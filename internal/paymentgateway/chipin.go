package paymentgateway

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/frahmantamala/payment-gateway/internal"
)

// ChipInGateway integrates the CHIP-IN purchases API. A purchase is created
// with a JSON payload and Bearer authentication; the provider reports status
// changes through the success_callback webhook.
type ChipInGateway struct {
	baseGateway
	apiURL string
}

const (
	chipInLiveURL    = "https://gate.chip-in.asia/api/v1/"
	chipInSandboxURL = "https://gate.test.chip-in.asia/api/v1/"
)

func NewChipInGateway(cfg internal.GatewayConfig, repo Repository, urls URLBuilder, defaultCurrency string, timeout time.Duration, logger *slog.Logger) *ChipInGateway {
	base := chipInLiveURL
	if cfg.Sandbox {
		base = chipInSandboxURL
	}
	return &ChipInGateway{
		baseGateway: newBaseGateway("chipin", cfg, repo, urls, defaultCurrency, timeout, logger),
		apiURL:      base,
	}
}

type chipInPurchaseRequest struct {
	BrandID         string         `json:"brand_id"`
	ClientReference string         `json:"reference"`
	Purchase        chipInPurchase `json:"purchase"`
	Client          chipInClient   `json:"client"`
	SuccessCallback string         `json:"success_callback"`
	SuccessRedirect string         `json:"success_redirect"`
	FailureRedirect string         `json:"failure_redirect"`
	CancelRedirect  string         `json:"cancel_redirect"`
}

type chipInPurchase struct {
	TotalOverride int64           `json:"total_override"`
	Currency      string          `json:"currency"`
	Products      []chipInProduct `json:"products"`
}

type chipInProduct struct {
	Name     string `json:"name"`
	Price    int64  `json:"price"`
	Quantity int64  `json:"quantity"`
}

type chipInClient struct {
	Email    string `json:"email"`
	Phone    string `json:"phone,omitempty"`
	FullName string `json:"full_name,omitempty"`
}

type chipInPurchaseResponse struct {
	ID          string `json:"id"`
	Status      string `json:"status"`
	CheckoutURL string `json:"checkout_url"`
}

func (g *ChipInGateway) CreatePayment(ctx context.Context, data CreatePaymentData) (*Result, error) {
	if err := g.validateRequired(data, "amount", "customer_email"); err != nil {
		return nil, err
	}

	p, err := g.createPaymentRecord(data)
	if err != nil {
		return nil, err
	}

	currency := data.Currency
	if currency == "" {
		currency = g.defaultCurrency
	}

	products := make([]chipInProduct, 0, len(data.Products))
	for _, item := range data.Products {
		products = append(products, chipInProduct{
			Name:     item.Name,
			Price:    g.toMinorUnits(item.Price),
			Quantity: item.Quantity,
		})
	}
	if len(products) == 0 {
		name := data.Description
		if name == "" {
			name = "Payment"
		}
		products = append(products, chipInProduct{
			Name:     name,
			Price:    g.toMinorUnits(data.Amount),
			Quantity: 1,
		})
	}

	payload := chipInPurchaseRequest{
		BrandID:         g.cfg.BrandID,
		ClientReference: p.ReferenceID,
		Purchase: chipInPurchase{
			TotalOverride: g.toMinorUnits(data.Amount),
			Currency:      currency,
			Products:      products,
		},
		Client: chipInClient{
			Email:    data.CustomerEmail,
			Phone:    data.CustomerPhone,
			FullName: data.CustomerName,
		},
		SuccessCallback: g.urls.CallbackURL(g.name),
		SuccessRedirect: g.urls.SuccessURL(p.ID),
		FailureRedirect: g.urls.FailedURL(p.ID),
		CancelRedirect:  g.urls.FailedURL(p.ID),
	}

	body, err := g.doJSON(ctx, http.MethodPost, "purchases/", payload)
	if err != nil {
		g.logger.Error("chip-in purchase creation failed", "error", err, "payment_id", p.ID)
		return &Result{
			Success: false,
			Message: fmt.Sprintf("Failed to create CHIP-IN purchase: %s", err.Error()),
			Payment: p,
		}, nil
	}

	var purchase chipInPurchaseResponse
	if err := json.Unmarshal(body, &purchase); err != nil || purchase.ID == "" {
		g.logger.Error("chip-in returned no purchase id", "payment_id", p.ID, "response", string(body))
		return &Result{
			Success: false,
			Message: "Failed to create CHIP-IN purchase",
			Payment: p,
			Data:    body,
		}, nil
	}

	if err := g.repo.UpdateCheckout(p.ID, purchase.CheckoutURL, purchase.ID, body); err != nil {
		return nil, internal.NewInternalError("failed to store checkout details", err)
	}
	p.PaymentURL = &purchase.CheckoutURL
	p.GatewayTransactionID = &purchase.ID

	g.logger.Info("chip-in purchase created",
		"payment_id", p.ID,
		"purchase_id", purchase.ID)

	return &Result{
		Success:       true,
		PaymentURL:    purchase.CheckoutURL,
		TransactionID: purchase.ID,
		Payment:       p,
	}, nil
}

func (g *ChipInGateway) HandleCallback(ctx context.Context, params CallbackParams) (*Result, error) {
	purchaseID := params["id"]
	if purchaseID == "" {
		return &Result{Success: false, Message: "Missing purchase id"}, nil
	}

	p, err := g.lookupByTransactionID(purchaseID)
	if err != nil {
		return nil, err
	}

	out := Outcome{
		Class:         g.classifyStatus(params["status"]),
		TransactionID: purchaseID,
	}
	return g.applyOutcome(p, params, out)
}

func (g *ChipInGateway) VerifyPayment(ctx context.Context, transactionID string) (*Result, error) {
	body, err := g.doJSON(ctx, http.MethodGet, "purchases/"+transactionID+"/", nil)
	if err != nil {
		return &Result{Success: false, Message: err.Error()}, nil
	}

	var purchase chipInPurchaseResponse
	if err := json.Unmarshal(body, &purchase); err != nil || purchase.ID == "" {
		return &Result{Success: false, Message: "Purchase not found"}, nil
	}

	return &Result{
		Success: true,
		Status:  ReportedStatus(g.classifyStatus(purchase.Status)),
		Data:    body,
	}, nil
}

// classifyStatus maps CHIP-IN purchase statuses onto the shared outcome
// classes. The pre-payment lifecycle (created, sent, viewed, pending_*)
// all stay pending.
func (g *ChipInGateway) classifyStatus(status string) StatusClass {
	switch status {
	case "paid":
		return ClassPaid
	case "error", "cancelled", "expired", "overdue":
		return ClassFailed
	case "refunded":
		return ClassRefunded
	case "hold":
		return ClassAuthorized
	default:
		return ClassPending
	}
}

func (g *ChipInGateway) doJSON(ctx context.Context, method, endpoint string, payload interface{}) ([]byte, error) {
	var reqBody io.Reader
	if payload != nil {
		encoded, err := json.Marshal(payload)
		if err != nil {
			return nil, internal.NewProviderError(g.name, 0, "", err)
		}
		reqBody = bytes.NewReader(encoded)
	}

	req, err := http.NewRequestWithContext(ctx, method, g.apiURL+endpoint, reqBody)
	if err != nil {
		return nil, internal.NewProviderError(g.name, 0, "", err)
	}
	req.Header.Set("Authorization", "Bearer "+g.cfg.SecretKey)
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := g.client.Do(req)
	if err != nil {
		return nil, internal.NewProviderError(g.name, 0, "", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, internal.NewProviderError(g.name, resp.StatusCode, "", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, internal.NewProviderError(g.name, resp.StatusCode, string(body), nil)
	}

	return body, nil
}
