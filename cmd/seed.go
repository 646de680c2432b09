package cmd

import (
	"fmt"
	"log"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/frahmantamala/payment-gateway/internal/core/datamodel/payment"
)

var seedCmd = &cobra.Command{
	Use:   "seed",
	Short: "Seed the database with sample payments",
	Long:  `Seed the database with sample payments for development and testing purposes.`,
	Run: func(cmd *cobra.Command, args []string) {
		cfg, err := loadConfig(".")
		if err != nil {
			log.Fatalf("failed to load config: %v", err)
		}

		db, err := initDB(cfg.Database)
		if err != nil {
			log.Fatalf("failed to init db: %v", err)
		}
		defer db.Close()

		if clearData {
			if _, err := db.Exec("DELETE FROM payments"); err != nil {
				log.Fatalf("failed to clear payments: %v", err)
			}
			fmt.Println("Cleared existing payments")
		}

		samples := []struct {
			gateway  string
			amount   string
			status   string
			refID    string
			refType  string
			txnID    *string
		}{
			{"toyyibpay", "150.00", payment.StatusPaid, "ORDER-1001", "order", strptr("demo-bill-1")},
			{"toyyibpay", "89.90", payment.StatusFailed, "ORDER-1002", "order", strptr("demo-bill-2")},
			{"chipin", "420.00", payment.StatusPending, "ORDER-1003", "order", strptr("demo-purchase-1")},
			{"manual", "1250.00", payment.StatusPending, "INV-2024-07", "invoice", nil},
		}

		for _, s := range samples {
			_, err := db.Exec(`
				INSERT INTO payments (id, reference_id, gateway, amount, currency, status,
					gateway_transaction_id, external_reference_id, reference_type, created_at, updated_at)
				VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, now(), now())
				ON CONFLICT (reference_id) DO NOTHING`,
				uuid.NewString(), payment.NewReferenceID(), s.gateway, s.amount, cfg.Payment.Currency,
				s.status, s.txnID, s.refID, s.refType)
			if err != nil {
				log.Fatalf("failed to seed payment for %s: %v", s.refID, err)
			}
			fmt.Printf("Seeded %s payment for %s (%s)\n", s.status, s.refID, s.gateway)
		}
	},
}

func strptr(s string) *string {
	return &s
}
