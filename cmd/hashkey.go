package cmd

import (
	"fmt"
	"log"

	"github.com/spf13/cobra"

	"github.com/frahmantamala/payment-gateway/internal/adminauth"
)

// hashKeyCmd derives the bcrypt hash to put in admin.api_key_hash.
var hashKeyCmd = &cobra.Command{
	Use:   "hash-key [api-key]",
	Short: "Hash an admin API key for the config file",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		hash, err := adminauth.HashAPIKey(args[0])
		if err != nil {
			log.Fatalf("failed to hash key: %v", err)
		}
		fmt.Println(hash)
	},
}
