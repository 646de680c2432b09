package payment_test

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"os"

	"github.com/go-chi/chi"
	"github.com/onsi/ginkgo/v2"
	"github.com/onsi/gomega"
	"github.com/shopspring/decimal"

	"github.com/frahmantamala/payment-gateway/internal"
	"github.com/frahmantamala/payment-gateway/internal/core/datamodel/payment"
	paymentpkg "github.com/frahmantamala/payment-gateway/internal/payment"
	"github.com/frahmantamala/payment-gateway/internal/paymentgateway"
)

type mockPaymentAPI struct {
	createResult *paymentgateway.Result
	createError  error

	callbackResult *paymentgateway.Result
	callbackError  error
	callbackParams paymentgateway.CallbackParams
	callbackGW     string

	signatureError error

	verifyResult *paymentgateway.Result
	verifyError  error

	uploadResult *paymentgateway.Result
	uploadError  error
	uploadedFile *paymentgateway.ProofFile

	approveResult *paymentgateway.Result
	approveError  error
	approvedBy    string

	rejectResult *paymentgateway.Result
	rejectError  error
	rejectReason string

	payment       *payment.Payment
	paymentError  error
	listPayments  []*payment.Payment
	listError     error
	hasSuccessful bool
	gateways      []string
}

func (m *mockPaymentAPI) CreatePayment(ctx context.Context, data paymentgateway.CreatePaymentData) (*paymentgateway.Result, error) {
	if m.createError != nil {
		return nil, m.createError
	}
	return m.createResult, nil
}

func (m *mockPaymentAPI) HandleCallback(ctx context.Context, gatewayName string, params paymentgateway.CallbackParams) (*paymentgateway.Result, error) {
	m.callbackGW = gatewayName
	m.callbackParams = params
	if m.callbackError != nil {
		return nil, m.callbackError
	}
	return m.callbackResult, nil
}

func (m *mockPaymentAPI) VerifyCallbackSignature(gatewayName string, body []byte, signature string) error {
	return m.signatureError
}

func (m *mockPaymentAPI) VerifyPayment(ctx context.Context, gatewayName, transactionID string) (*paymentgateway.Result, error) {
	if m.verifyError != nil {
		return nil, m.verifyError
	}
	return m.verifyResult, nil
}

func (m *mockPaymentAPI) UploadProof(ctx context.Context, paymentID string, file paymentgateway.ProofFile) (*paymentgateway.Result, error) {
	m.uploadedFile = &file
	if m.uploadError != nil {
		return nil, m.uploadError
	}
	return m.uploadResult, nil
}

func (m *mockPaymentAPI) ApprovePayment(ctx context.Context, paymentID, adminID string) (*paymentgateway.Result, error) {
	m.approvedBy = adminID
	if m.approveError != nil {
		return nil, m.approveError
	}
	return m.approveResult, nil
}

func (m *mockPaymentAPI) RejectPayment(ctx context.Context, paymentID, adminID, reason string) (*paymentgateway.Result, error) {
	m.rejectReason = reason
	if m.rejectError != nil {
		return nil, m.rejectError
	}
	return m.rejectResult, nil
}

func (m *mockPaymentAPI) GetPayment(id string) (*payment.Payment, error) {
	if m.paymentError != nil {
		return nil, m.paymentError
	}
	return m.payment, nil
}

func (m *mockPaymentAPI) GetPaymentByReference(referenceID string) (*payment.Payment, error) {
	if m.paymentError != nil {
		return nil, m.paymentError
	}
	return m.payment, nil
}

func (m *mockPaymentAPI) GetPaymentsByStatus(status string, limit, offset int) ([]*payment.Payment, error) {
	if m.listError != nil {
		return nil, m.listError
	}
	return m.listPayments, nil
}

func (m *mockPaymentAPI) FindByExternalReference(externalRefID, refType string) ([]*payment.Payment, error) {
	if m.listError != nil {
		return nil, m.listError
	}
	return m.listPayments, nil
}

func (m *mockPaymentAPI) LatestByExternalReference(externalRefID, refType string) (*payment.Payment, error) {
	if m.paymentError != nil {
		return nil, m.paymentError
	}
	return m.payment, nil
}

func (m *mockPaymentAPI) HasSuccessfulPayment(externalRefID, refType string) (bool, error) {
	return m.hasSuccessful, nil
}

func (m *mockPaymentAPI) AvailableGateways() []string {
	return m.gateways
}

func requestWithParams(method, target string, body []byte, params map[string]string) *http.Request {
	req := httptest.NewRequest(method, target, bytes.NewBuffer(body))
	req.Header.Set("Content-Type", "application/json")

	rctx := chi.NewRouteContext()
	for key, value := range params {
		rctx.URLParams.Add(key, value)
	}
	return req.WithContext(context.WithValue(req.Context(), chi.RouteCtxKey, rctx))
}

func samplePayment(status string) *payment.Payment {
	txnID := "txn-abc"
	return &payment.Payment{
		ID:                   "9f6b7c1e-0000-4000-8000-000000000001",
		ReferenceID:          "PAY-1A2B3C4D5E6F-1706000000",
		Gateway:              "toyyibpay",
		Amount:               decimal.NewFromFloat(100.50),
		Currency:             "MYR",
		Status:               status,
		GatewayTransactionID: &txnID,
	}
}

var _ = ginkgo.Describe("PaymentHandler", func() {
	var (
		handler  *paymentpkg.Handler
		service  *mockPaymentAPI
		recorder *httptest.ResponseRecorder
		logger   *slog.Logger
	)

	ginkgo.BeforeEach(func() {
		service = &mockPaymentAPI{}
		logger = slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelError}))
		handler = paymentpkg.NewHandler(service, logger, 0)
		recorder = httptest.NewRecorder()
	})

	ginkgo.Context("CreatePayment", func() {
		ginkgo.It("should return 201 with the checkout URL", func() {
			p := samplePayment(payment.StatusPending)
			service.createResult = &paymentgateway.Result{
				Success:    true,
				Status:     payment.StatusPending,
				PaymentURL: "https://dev.toyyibpay.com/abc123",
				Payment:    p,
			}

			body, _ := json.Marshal(map[string]interface{}{
				"gateway":        "toyyibpay",
				"amount":         "100.50",
				"customer_name":  "Alice",
				"customer_email": "alice@example.com",
			})
			req := requestWithParams("POST", "/api/v1/payments", body, nil)

			handler.CreatePayment(recorder, req)

			gomega.Expect(recorder.Code).To(gomega.Equal(http.StatusCreated))
			var response map[string]interface{}
			gomega.Expect(json.Unmarshal(recorder.Body.Bytes(), &response)).To(gomega.Succeed())
			gomega.Expect(response["payment_url"]).To(gomega.Equal("https://dev.toyyibpay.com/abc123"))
		})

		ginkgo.It("should return 400 for invalid JSON", func() {
			req := requestWithParams("POST", "/api/v1/payments", []byte("not json"), nil)

			handler.CreatePayment(recorder, req)

			gomega.Expect(recorder.Code).To(gomega.Equal(http.StatusBadRequest))
		})

		ginkgo.It("should return 400 when amount is missing", func() {
			body, _ := json.Marshal(map[string]interface{}{
				"gateway": "toyyibpay",
			})
			req := requestWithParams("POST", "/api/v1/payments", body, nil)

			handler.CreatePayment(recorder, req)

			gomega.Expect(recorder.Code).To(gomega.Equal(http.StatusBadRequest))
		})

		ginkgo.It("should return 404 for an unknown gateway", func() {
			service.createError = internal.NewGatewayNotFoundError("bitcoin")

			body, _ := json.Marshal(map[string]interface{}{
				"gateway": "bitcoin",
				"amount":  "50.00",
			})
			req := requestWithParams("POST", "/api/v1/payments", body, nil)

			handler.CreatePayment(recorder, req)

			gomega.Expect(recorder.Code).To(gomega.Equal(http.StatusNotFound))
		})

		ginkgo.It("should return 502 when the provider rejects the payment", func() {
			service.createResult = &paymentgateway.Result{
				Success: false,
				Status:  payment.StatusFailed,
				Message: "provider rejected the request",
				Payment: samplePayment(payment.StatusFailed),
			}

			body, _ := json.Marshal(map[string]interface{}{
				"amount": "50.00",
			})
			req := requestWithParams("POST", "/api/v1/payments", body, nil)

			handler.CreatePayment(recorder, req)

			gomega.Expect(recorder.Code).To(gomega.Equal(http.StatusBadGateway))
		})
	})

	ginkgo.Context("GetPayment", func() {
		ginkgo.It("should return the payment", func() {
			service.payment = samplePayment(payment.StatusPaid)

			req := requestWithParams("GET", "/api/v1/payments/abc", nil, map[string]string{"paymentID": service.payment.ID})

			handler.GetPayment(recorder, req)

			gomega.Expect(recorder.Code).To(gomega.Equal(http.StatusOK))
			var response map[string]interface{}
			gomega.Expect(json.Unmarshal(recorder.Body.Bytes(), &response)).To(gomega.Succeed())
			gomega.Expect(response["status"]).To(gomega.Equal(payment.StatusPaid))
		})

		ginkgo.It("should return 404 when the payment does not exist", func() {
			service.paymentError = internal.ErrPaymentNotFound

			req := requestWithParams("GET", "/api/v1/payments/missing", nil, map[string]string{"paymentID": "missing"})

			handler.GetPayment(recorder, req)

			gomega.Expect(recorder.Code).To(gomega.Equal(http.StatusNotFound))
		})
	})

	ginkgo.Context("GetExternalReference", func() {
		ginkgo.It("should report correlated payments with the latest first", func() {
			paid := samplePayment(payment.StatusPaid)
			failed := samplePayment(payment.StatusFailed)
			service.listPayments = []*payment.Payment{paid, failed}
			service.hasSuccessful = true

			req := requestWithParams("GET", "/api/v1/payments/external/order/ORDER-1", nil,
				map[string]string{"refType": "order", "externalRefID": "ORDER-1"})

			handler.GetExternalReference(recorder, req)

			gomega.Expect(recorder.Code).To(gomega.Equal(http.StatusOK))
			var response map[string]interface{}
			gomega.Expect(json.Unmarshal(recorder.Body.Bytes(), &response)).To(gomega.Succeed())
			gomega.Expect(response["has_successful_payment"]).To(gomega.BeTrue())
			gomega.Expect(response["payments"]).To(gomega.HaveLen(2))
			latest := response["latest"].(map[string]interface{})
			gomega.Expect(latest["status"]).To(gomega.Equal(payment.StatusPaid))
		})

		ginkgo.It("should omit latest when no attempts exist", func() {
			service.listPayments = nil

			req := requestWithParams("GET", "/api/v1/payments/external/order/ORDER-2", nil,
				map[string]string{"refType": "order", "externalRefID": "ORDER-2"})

			handler.GetExternalReference(recorder, req)

			gomega.Expect(recorder.Code).To(gomega.Equal(http.StatusOK))
			var response map[string]interface{}
			gomega.Expect(json.Unmarshal(recorder.Body.Bytes(), &response)).To(gomega.Succeed())
			gomega.Expect(response["has_successful_payment"]).To(gomega.BeFalse())
			gomega.Expect(response).NotTo(gomega.HaveKey("latest"))
		})
	})

	ginkgo.Context("VerifyPayment", func() {
		ginkgo.It("should verify against the payment's own gateway", func() {
			service.payment = samplePayment(payment.StatusPending)
			service.verifyResult = &paymentgateway.Result{Success: true, Status: payment.StatusPaid}

			req := requestWithParams("POST", "/api/v1/payments/abc/verify", nil,
				map[string]string{"paymentID": service.payment.ID})

			handler.VerifyPayment(recorder, req)

			gomega.Expect(recorder.Code).To(gomega.Equal(http.StatusOK))
		})

		ginkgo.It("should return 400 when the payment has no provider transaction", func() {
			p := samplePayment(payment.StatusPending)
			p.GatewayTransactionID = nil
			service.payment = p

			req := requestWithParams("POST", "/api/v1/payments/abc/verify", nil,
				map[string]string{"paymentID": p.ID})

			handler.VerifyPayment(recorder, req)

			gomega.Expect(recorder.Code).To(gomega.Equal(http.StatusBadRequest))
		})
	})

	ginkgo.Context("UploadProof", func() {
		buildMultipart := func(field, filename string, content []byte) (*bytes.Buffer, string) {
			buf := &bytes.Buffer{}
			writer := multipart.NewWriter(buf)
			part, err := writer.CreateFormFile(field, filename)
			gomega.Expect(err).ToNot(gomega.HaveOccurred())
			_, err = part.Write(content)
			gomega.Expect(err).ToNot(gomega.HaveOccurred())
			gomega.Expect(writer.Close()).To(gomega.Succeed())
			return buf, writer.FormDataContentType()
		}

		ginkgo.It("should pass the uploaded file through to the service", func() {
			service.uploadResult = &paymentgateway.Result{Success: true, Status: payment.StatusPending}

			body, contentType := buildMultipart("proof", "receipt.png", []byte("fake png bytes"))
			req := requestWithParams("POST", "/api/v1/payments/abc/proof", body.Bytes(),
				map[string]string{"paymentID": "abc"})
			req.Header.Set("Content-Type", contentType)

			handler.UploadProof(recorder, req)

			gomega.Expect(recorder.Code).To(gomega.Equal(http.StatusOK))
			gomega.Expect(service.uploadedFile).ToNot(gomega.BeNil())
			gomega.Expect(service.uploadedFile.Name).To(gomega.Equal("receipt.png"))
			gomega.Expect(service.uploadedFile.Size).To(gomega.Equal(int64(len("fake png bytes"))))
		})

		ginkgo.It("should return 400 when the proof field is missing", func() {
			body, contentType := buildMultipart("attachment", "receipt.png", []byte("data"))
			req := requestWithParams("POST", "/api/v1/payments/abc/proof", body.Bytes(),
				map[string]string{"paymentID": "abc"})
			req.Header.Set("Content-Type", contentType)

			handler.UploadProof(recorder, req)

			gomega.Expect(recorder.Code).To(gomega.Equal(http.StatusBadRequest))
		})

		ginkgo.It("should return 409 when the payment is already settled", func() {
			service.uploadResult = &paymentgateway.Result{
				Success: false,
				Status:  payment.StatusPaid,
				Message: "Payment is already paid",
			}

			body, contentType := buildMultipart("proof", "receipt.png", []byte("data"))
			req := requestWithParams("POST", "/api/v1/payments/abc/proof", body.Bytes(),
				map[string]string{"paymentID": "abc"})
			req.Header.Set("Content-Type", contentType)

			handler.UploadProof(recorder, req)

			gomega.Expect(recorder.Code).To(gomega.Equal(http.StatusConflict))
		})
	})

	ginkgo.Context("admin review endpoints", func() {
		ginkgo.It("should approve with the admin from the context", func() {
			service.approveResult = &paymentgateway.Result{Success: true, Status: payment.StatusPaid}

			req := requestWithParams("POST", "/api/v1/payments/abc/approve", nil,
				map[string]string{"paymentID": "abc"})
			req = req.WithContext(internal.ContextWithAdminID(req.Context(), "admin-1"))

			handler.ApprovePayment(recorder, req)

			gomega.Expect(recorder.Code).To(gomega.Equal(http.StatusOK))
			gomega.Expect(service.approvedBy).To(gomega.Equal("admin-1"))
		})

		ginkgo.It("should return 401 when no admin is authenticated", func() {
			req := requestWithParams("POST", "/api/v1/payments/abc/approve", nil,
				map[string]string{"paymentID": "abc"})

			handler.ApprovePayment(recorder, req)

			gomega.Expect(recorder.Code).To(gomega.Equal(http.StatusUnauthorized))
		})

		ginkgo.It("should pass the rejection reason through", func() {
			service.rejectResult = &paymentgateway.Result{Success: true, Status: payment.StatusFailed}

			body, _ := json.Marshal(map[string]string{"reason": "receipt unreadable"})
			req := requestWithParams("POST", "/api/v1/payments/abc/reject", body,
				map[string]string{"paymentID": "abc"})
			req = req.WithContext(internal.ContextWithAdminID(req.Context(), "admin-1"))

			handler.RejectPayment(recorder, req)

			gomega.Expect(recorder.Code).To(gomega.Equal(http.StatusOK))
			gomega.Expect(service.rejectReason).To(gomega.Equal("receipt unreadable"))
		})

		ginkgo.It("should reject without a body using the default reason", func() {
			service.rejectResult = &paymentgateway.Result{Success: true, Status: payment.StatusFailed}

			req := requestWithParams("POST", "/api/v1/payments/abc/reject", nil,
				map[string]string{"paymentID": "abc"})
			req.ContentLength = 0
			req = req.WithContext(internal.ContextWithAdminID(req.Context(), "admin-1"))

			handler.RejectPayment(recorder, req)

			gomega.Expect(recorder.Code).To(gomega.Equal(http.StatusOK))
			gomega.Expect(service.rejectReason).To(gomega.Equal(""))
		})
	})

	ginkgo.Context("ListGateways", func() {
		ginkgo.It("should list enabled gateways", func() {
			service.gateways = []string{"chipin", "manual", "toyyibpay"}

			req := requestWithParams("GET", "/api/v1/gateways", nil, nil)

			handler.ListGateways(recorder, req)

			gomega.Expect(recorder.Code).To(gomega.Equal(http.StatusOK))
			var response map[string]interface{}
			gomega.Expect(json.Unmarshal(recorder.Body.Bytes(), &response)).To(gomega.Succeed())
			gomega.Expect(response["gateways"]).To(gomega.HaveLen(3))
		})
	})
})

var _ = ginkgo.Describe("WebhookHandler", func() {
	var (
		handler  *paymentpkg.WebhookHandler
		service  *mockPaymentAPI
		recorder *httptest.ResponseRecorder
	)

	ginkgo.BeforeEach(func() {
		service = &mockPaymentAPI{}
		logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelError}))
		handler = paymentpkg.NewWebhookHandler(service, logger)
		recorder = httptest.NewRecorder()
	})

	ginkgo.It("should parse form-encoded callbacks", func() {
		service.callbackResult = &paymentgateway.Result{Success: true, Status: payment.StatusPaid}

		body := []byte("billcode=abc123&status_id=1&order_id=PAY-XYZ")
		req := requestWithParams("POST", "/api/v1/payments/callback/toyyibpay", body,
			map[string]string{"gateway": "toyyibpay"})
		req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

		handler.HandleCallback(recorder, req)

		gomega.Expect(recorder.Code).To(gomega.Equal(http.StatusOK))
		gomega.Expect(service.callbackGW).To(gomega.Equal("toyyibpay"))
		gomega.Expect(service.callbackParams["billcode"]).To(gomega.Equal("abc123"))
		gomega.Expect(service.callbackParams["status_id"]).To(gomega.Equal("1"))

		var response map[string]interface{}
		gomega.Expect(json.Unmarshal(recorder.Body.Bytes(), &response)).To(gomega.Succeed())
		gomega.Expect(response["status"]).To(gomega.Equal("received"))
		gomega.Expect(response["payment_status"]).To(gomega.Equal(payment.StatusPaid))
	})

	ginkgo.It("should flatten JSON callbacks into dotted keys", func() {
		service.callbackResult = &paymentgateway.Result{Success: true, Status: payment.StatusPaid}

		body := []byte(`{"id":"purchase-1","status":"paid","purchase":{"currency":"MYR","total":10050}}`)
		req := requestWithParams("POST", "/api/v1/payments/callback/chipin", body,
			map[string]string{"gateway": "chipin"})
		req.Header.Set("Content-Type", "application/json")

		handler.HandleCallback(recorder, req)

		gomega.Expect(recorder.Code).To(gomega.Equal(http.StatusOK))
		gomega.Expect(service.callbackParams["id"]).To(gomega.Equal("purchase-1"))
		gomega.Expect(service.callbackParams["status"]).To(gomega.Equal("paid"))
		gomega.Expect(service.callbackParams["purchase.currency"]).To(gomega.Equal("MYR"))
		gomega.Expect(service.callbackParams["purchase.total"]).To(gomega.Equal("10050"))
	})

	ginkgo.It("should merge query string parameters", func() {
		service.callbackResult = &paymentgateway.Result{Success: true, Status: payment.StatusPaid}

		req := requestWithParams("POST", "/api/v1/payments/callback/toyyibpay?billcode=qs123&status_id=1", nil,
			map[string]string{"gateway": "toyyibpay"})
		req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

		handler.HandleCallback(recorder, req)

		gomega.Expect(recorder.Code).To(gomega.Equal(http.StatusOK))
		gomega.Expect(service.callbackParams["billcode"]).To(gomega.Equal("qs123"))
	})

	ginkgo.It("should return 401 when the signature check fails", func() {
		service.signatureError = internal.NewUnauthorizedError("invalid webhook signature", internal.ErrCodeInvalidSignature)

		req := requestWithParams("POST", "/api/v1/payments/callback/chipin", []byte(`{"id":"x"}`),
			map[string]string{"gateway": "chipin"})
		req.Header.Set("Content-Type", "application/json")
		req.Header.Set("X-Signature", "deadbeef")

		handler.HandleCallback(recorder, req)

		gomega.Expect(recorder.Code).To(gomega.Equal(http.StatusUnauthorized))
		gomega.Expect(service.callbackParams).To(gomega.BeNil())
	})

	ginkgo.It("should return 400 for malformed JSON", func() {
		req := requestWithParams("POST", "/api/v1/payments/callback/chipin", []byte("{broken"),
			map[string]string{"gateway": "chipin"})
		req.Header.Set("Content-Type", "application/json")

		handler.HandleCallback(recorder, req)

		gomega.Expect(recorder.Code).To(gomega.Equal(http.StatusBadRequest))
	})

	ginkgo.It("should surface unknown-gateway errors from the service", func() {
		service.callbackError = internal.NewGatewayNotFoundError("bitcoin")

		req := requestWithParams("POST", "/api/v1/payments/callback/bitcoin", []byte("a=b"),
			map[string]string{"gateway": "bitcoin"})
		req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

		handler.HandleCallback(recorder, req)

		gomega.Expect(recorder.Code).To(gomega.Equal(http.StatusNotFound))
	})
})
