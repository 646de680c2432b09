package paymentgateway

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/frahmantamala/payment-gateway/internal"
)

// ToyyibpayGateway integrates the ToyyibPay redirect-bill provider. A
// created bill yields a BillCode which doubles as the hosted checkout URL
// segment and the webhook correlation id.
type ToyyibpayGateway struct {
	baseGateway
	apiURL      string
	checkoutURL string
}

const (
	toyyibpayLiveURL    = "https://toyyibpay.com"
	toyyibpaySandboxURL = "https://dev.toyyibpay.com"
)

func NewToyyibpayGateway(cfg internal.GatewayConfig, repo Repository, urls URLBuilder, defaultCurrency string, timeout time.Duration, logger *slog.Logger) *ToyyibpayGateway {
	base := toyyibpayLiveURL
	if cfg.Sandbox {
		base = toyyibpaySandboxURL
	}
	return &ToyyibpayGateway{
		baseGateway: newBaseGateway("toyyibpay", cfg, repo, urls, defaultCurrency, timeout, logger),
		apiURL:      base + "/index.php/api/",
		checkoutURL: base + "/",
	}
}

func (g *ToyyibpayGateway) CreatePayment(ctx context.Context, data CreatePaymentData) (*Result, error) {
	if err := g.validateRequired(data, "amount", "customer_name", "customer_email"); err != nil {
		return nil, err
	}

	p, err := g.createPaymentRecord(data)
	if err != nil {
		return nil, err
	}

	description := data.Description
	if description == "" {
		description = "Payment"
	}

	bill := url.Values{}
	bill.Set("userSecretKey", g.cfg.SecretKey)
	bill.Set("categoryCode", g.cfg.CategoryCode)
	bill.Set("billName", description)
	bill.Set("billDescription", description)
	bill.Set("billPriceSetting", "1")
	bill.Set("billPayorInfo", "1")
	bill.Set("billAmount", strconv.FormatInt(g.toMinorUnits(data.Amount), 10))
	bill.Set("billReturnUrl", g.urls.SuccessURL(p.ID))
	bill.Set("billCallbackUrl", g.urls.CallbackURL(g.name))
	bill.Set("billExternalReferenceNo", p.ReferenceID)
	bill.Set("billTo", data.CustomerName)
	bill.Set("billEmail", data.CustomerEmail)
	bill.Set("billPhone", data.CustomerPhone)

	body, err := g.postForm(ctx, "createBill", bill)
	if err != nil {
		g.logger.Error("toyyibpay bill creation failed", "error", err, "payment_id", p.ID)
		return &Result{
			Success: false,
			Message: fmt.Sprintf("Failed to create ToyyibPay bill: %s", err.Error()),
			Payment: p,
		}, nil
	}

	var bills []struct {
		BillCode string `json:"BillCode"`
	}
	if err := json.Unmarshal(body, &bills); err != nil || len(bills) == 0 || bills[0].BillCode == "" {
		g.logger.Error("toyyibpay returned no bill code", "payment_id", p.ID, "response", string(body))
		return &Result{
			Success: false,
			Message: "Failed to create ToyyibPay bill",
			Payment: p,
			Data:    body,
		}, nil
	}

	billCode := bills[0].BillCode
	paymentURL := g.checkoutURL + billCode

	if err := g.repo.UpdateCheckout(p.ID, paymentURL, billCode, body); err != nil {
		return nil, internal.NewInternalError("failed to store checkout details", err)
	}
	p.PaymentURL = &paymentURL
	p.GatewayTransactionID = &billCode

	g.logger.Info("toyyibpay bill created",
		"payment_id", p.ID,
		"bill_code", billCode)

	return &Result{
		Success:       true,
		PaymentURL:    paymentURL,
		TransactionID: billCode,
		Payment:       p,
	}, nil
}

func (g *ToyyibpayGateway) HandleCallback(ctx context.Context, params CallbackParams) (*Result, error) {
	billCode := params["billcode"]
	if billCode == "" {
		return &Result{Success: false, Message: "Missing bill code"}, nil
	}

	p, err := g.lookupByTransactionID(billCode)
	if err != nil {
		return nil, err
	}

	out := Outcome{
		Class:         g.classifyStatus(params["status_id"]),
		TransactionID: billCode,
		Reason:        params["reason"],
	}
	return g.applyOutcome(p, params, out)
}

func (g *ToyyibpayGateway) VerifyPayment(ctx context.Context, transactionID string) (*Result, error) {
	form := url.Values{}
	form.Set("userSecretKey", g.cfg.SecretKey)
	form.Set("billCode", transactionID)

	body, err := g.postForm(ctx, "getBillTransactions", form)
	if err != nil {
		return &Result{Success: false, Message: err.Error()}, nil
	}

	var transactions []map[string]interface{}
	if err := json.Unmarshal(body, &transactions); err != nil || len(transactions) == 0 {
		return &Result{Success: false, Message: "Transaction not found"}, nil
	}

	status, _ := transactions[0]["billpaymentStatus"].(string)
	data, _ := json.Marshal(transactions[0])

	return &Result{
		Success: true,
		Status:  ReportedStatus(g.classifyStatus(status)),
		Data:    data,
	}, nil
}

// classifyStatus maps ToyyibPay's status_id values: 1 success, 2 pending,
// 3 failed. Anything unrecognized stays pending.
func (g *ToyyibpayGateway) classifyStatus(statusID string) StatusClass {
	switch statusID {
	case "1":
		return ClassPaid
	case "3":
		return ClassFailed
	case "2":
		return ClassPending
	default:
		return ClassPending
	}
}

func (g *ToyyibpayGateway) postForm(ctx context.Context, endpoint string, form url.Values) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, g.apiURL+endpoint, strings.NewReader(form.Encode()))
	if err != nil {
		return nil, internal.NewProviderError(g.name, 0, "", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := g.client.Do(req)
	if err != nil {
		return nil, internal.NewProviderError(g.name, 0, "", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, internal.NewProviderError(g.name, resp.StatusCode, "", err)
	}

	if resp.StatusCode != http.StatusOK {
		return nil, internal.NewProviderError(g.name, resp.StatusCode, string(body), nil)
	}

	return body, nil
}
