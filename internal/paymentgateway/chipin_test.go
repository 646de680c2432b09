package paymentgateway

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"github.com/shopspring/decimal"

	"github.com/frahmantamala/payment-gateway/internal"
	"github.com/frahmantamala/payment-gateway/internal/core/datamodel/payment"
)

var _ = Describe("ChipInGateway", func() {
	var (
		repo    *mockRepository
		gateway *ChipInGateway
		server  *httptest.Server
	)

	urls := URLBuilder{BaseURL: "https://pay.example.com", SuccessPath: "/payment/success", FailedPath: "/payment/failed"}
	cfg := internal.GatewayConfig{Enabled: true, Sandbox: true, SecretKey: "chip-secret", BrandID: "brand-1"}

	newGateway := func(handler http.HandlerFunc) {
		server = httptest.NewServer(handler)
		gateway = NewChipInGateway(cfg, repo, urls, "MYR", 0, newTestLogger())
		gateway.apiURL = server.URL + "/"
	}

	BeforeEach(func() {
		repo = newMockRepository()
	})

	AfterEach(func() {
		if server != nil {
			server.Close()
		}
	})

	Describe("CreatePayment", func() {
		data := CreatePaymentData{
			Amount:        decimal.NewFromFloat(250.75),
			CustomerEmail: "farid@example.com",
			CustomerName:  "Farid",
			Description:   "Subscription",
		}

		Context("when the provider accepts the purchase", func() {
			var captured chipInPurchaseRequest

			BeforeEach(func() {
				newGateway(func(w http.ResponseWriter, r *http.Request) {
					Expect(r.Method).To(Equal(http.MethodPost))
					Expect(r.URL.Path).To(Equal("/purchases/"))
					Expect(r.Header.Get("Authorization")).To(Equal("Bearer chip-secret"))
					Expect(json.NewDecoder(r.Body).Decode(&captured)).To(Succeed())
					w.Write([]byte(`{"id":"purch-1","status":"created","checkout_url":"https://gate.test.chip-in.asia/p/purch-1"}`))
				})
			})

			It("should send minor units and store the checkout details", func() {
				result, err := gateway.CreatePayment(context.Background(), data)

				Expect(err).NotTo(HaveOccurred())
				Expect(result.Success).To(BeTrue())
				Expect(result.TransactionID).To(Equal("purch-1"))
				Expect(result.PaymentURL).To(Equal("https://gate.test.chip-in.asia/p/purch-1"))

				Expect(captured.BrandID).To(Equal("brand-1"))
				Expect(captured.Purchase.TotalOverride).To(Equal(int64(25075)))
				Expect(captured.Purchase.Currency).To(Equal("MYR"))
				Expect(captured.Client.Email).To(Equal("farid@example.com"))
				Expect(captured.Purchase.Products).To(HaveLen(1))
				Expect(captured.Purchase.Products[0].Name).To(Equal("Subscription"))
			})

			It("should pass explicit product lines through", func() {
				withProducts := data
				withProducts.Products = []Product{
					{Name: "Widget", Price: decimal.NewFromFloat(100.25), Quantity: 2},
					{Name: "Gadget", Price: decimal.NewFromFloat(50.25), Quantity: 1},
				}

				_, err := gateway.CreatePayment(context.Background(), withProducts)

				Expect(err).NotTo(HaveOccurred())
				Expect(captured.Purchase.Products).To(HaveLen(2))
				Expect(captured.Purchase.Products[0].Price).To(Equal(int64(10025)))
				Expect(captured.Purchase.Products[1].Quantity).To(Equal(int64(1)))
			})
		})

		Context("when the provider rejects the purchase", func() {
			BeforeEach(func() {
				newGateway(func(w http.ResponseWriter, r *http.Request) {
					w.WriteHeader(http.StatusUnprocessableEntity)
					w.Write([]byte(`{"error":"invalid brand"}`))
				})
			})

			It("should report failure and keep the record pending", func() {
				result, err := gateway.CreatePayment(context.Background(), data)

				Expect(err).NotTo(HaveOccurred())
				Expect(result.Success).To(BeFalse())
				Expect(result.Message).To(ContainSubstring("chipin"))
				Expect(result.Payment.Status).To(Equal(payment.StatusPending))
			})
		})

		It("should reject a missing customer email without creating a record", func() {
			newGateway(func(w http.ResponseWriter, r *http.Request) {})

			_, err := gateway.CreatePayment(context.Background(), CreatePaymentData{
				Amount: decimal.NewFromInt(10),
			})

			Expect(err).To(HaveOccurred())
			Expect(repo.payments).To(BeEmpty())
		})
	})

	Describe("HandleCallback", func() {
		var p *payment.Payment

		BeforeEach(func() {
			newGateway(func(w http.ResponseWriter, r *http.Request) {})
			txn := "purch-1"
			p = &payment.Payment{
				ID:                   "pay-1",
				ReferenceID:          payment.NewReferenceID(),
				Gateway:              "chipin",
				Amount:               decimal.NewFromInt(250),
				Currency:             "MYR",
				Status:               payment.StatusPending,
				GatewayTransactionID: &txn,
			}
			Expect(repo.Create(p)).To(Succeed())
		})

		DescribeTable("status classification",
			func(providerStatus, wantStatus string) {
				result, err := gateway.HandleCallback(context.Background(), CallbackParams{
					"id":     "purch-1",
					"status": providerStatus,
				})

				Expect(err).NotTo(HaveOccurred())
				Expect(result.Status).To(Equal(wantStatus))
			},
			Entry("paid settles the payment", "paid", payment.StatusPaid),
			Entry("error fails the payment", "error", payment.StatusFailed),
			Entry("cancelled fails the payment", "cancelled", payment.StatusFailed),
			Entry("expired fails the payment", "expired", payment.StatusFailed),
			Entry("overdue fails the payment", "overdue", payment.StatusFailed),
			Entry("created stays pending", "created", payment.StatusPending),
			Entry("viewed stays pending", "viewed", payment.StatusPending),
			Entry("hold stays pending", "hold", payment.StatusPending),
			Entry("unknown stays pending", "something_new", payment.StatusPending),
		)

		It("should refund only after the payment was paid", func() {
			_, err := gateway.HandleCallback(context.Background(), CallbackParams{"id": "purch-1", "status": "paid"})
			Expect(err).NotTo(HaveOccurred())

			result, err := gateway.HandleCallback(context.Background(), CallbackParams{"id": "purch-1", "status": "refunded"})
			Expect(err).NotTo(HaveOccurred())
			Expect(result.Status).To(Equal(payment.StatusRefunded))
		})

		It("should fail on a missing purchase id", func() {
			result, err := gateway.HandleCallback(context.Background(), CallbackParams{"status": "paid"})

			Expect(err).NotTo(HaveOccurred())
			Expect(result.Success).To(BeFalse())
		})
	})

	Describe("VerifyPayment", func() {
		It("should query the purchase and map its status", func() {
			newGateway(func(w http.ResponseWriter, r *http.Request) {
				Expect(r.Method).To(Equal(http.MethodGet))
				Expect(r.URL.Path).To(Equal("/purchases/purch-1/"))
				Expect(r.Header.Get("Authorization")).To(Equal("Bearer chip-secret"))
				w.Write([]byte(`{"id":"purch-1","status":"paid"}`))
			})

			result, err := gateway.VerifyPayment(context.Background(), "purch-1")

			Expect(err).NotTo(HaveOccurred())
			Expect(result.Success).To(BeTrue())
			Expect(result.Status).To(Equal(payment.StatusPaid))
		})
	})

	Describe("VerifySignature", func() {
		It("should reject a bad digest when a webhook secret is configured", func() {
			withSecret := cfg
			withSecret.WebhookSecret = "hmac-secret"
			server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
			gateway = NewChipInGateway(withSecret, repo, urls, "MYR", 0, newTestLogger())

			err := gateway.VerifySignature([]byte(`{"id":"purch-1"}`), "deadbeef")
			Expect(err).To(HaveOccurred())
		})
	})
})
