package commands

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/benvon/taskboard/internal/database"
	"github.com/benvon/taskboard/internal/services/oidc"
)

// NewTestCmd creates the test command
func NewTestCmd() *cobra.Command {
	var provider string

	cmd := &cobra.Command{
		Use:   "test",
		Short: "Test OIDC configuration",
		Long:  "Test OIDC provider configuration by resolving its endpoints and fetching its signing keys",
		RunE: func(cmd *cobra.Command, args []string) error {
			if provider == "" {
				return fmt.Errorf("--provider is required")
			}
			db, closeDB, err := openDatabase()
			if err != nil {
				return err
			}
			defer closeDB()

			ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
			defer cancel()

			resolver := oidc.NewProvider(database.NewOIDCConfigRepository(db))
			config, err := resolver.GetConfig(ctx, provider)
			if err != nil {
				return err
			}

			fmt.Printf("Testing OIDC configuration for provider: %s\n", provider)
			fmt.Printf("Issuer: %s\n", config.Issuer)

			ep := resolver.Endpoints(ctx, config)
			fmt.Println("\nResolved endpoints:")
			fmt.Printf("  Authorization: %s\n", ep.Authorization)
			fmt.Printf("  Token: %s\n", ep.Token)
			fmt.Printf("  JWKS: %s\n", ep.JWKS)
			if ep.EndSession != "" {
				fmt.Printf("  End session: %s\n", ep.EndSession)
			}

			fmt.Printf("\nFetching signing keys: %s\n", ep.JWKS)
			keys, err := oidc.NewJWKSManager().GetJWKS(ctx, ep.JWKS)
			if err != nil {
				return fmt.Errorf("failed to fetch JWKS: %w", err)
			}
			if keys.Len() == 0 {
				return fmt.Errorf("JWKS at %s has no keys", ep.JWKS)
			}
			fmt.Printf("✓ JWKS endpoint returned %d key(s)\n", keys.Len())

			fmt.Println("\n✓ OIDC configuration test passed")
			return nil
		},
	}

	cmd.Flags().StringVar(&provider, "provider", "", "Provider name to test (required)")

	return cmd
}
