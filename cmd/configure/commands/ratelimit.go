package commands

import (
	"context"
	"fmt"
	"slices"
	"strings"

	"github.com/spf13/cobra"
	"github.com/ulule/limiter/v3"

	"github.com/benvon/taskboard/internal/database"
	"github.com/benvon/taskboard/internal/models"
)

var ratelimitScopes = []string{models.RatelimitScopeAPI, models.RatelimitScopeAuth, models.RatelimitScopeUploads}

// NewRatelimitCmd creates the ratelimit configuration command with list and set subcommands
func NewRatelimitCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "ratelimit",
		Short: "Manage rate limit configuration",
		Long: "List or update the rate (e.g. 5-S, 100-M) for each scope. Stored in database.\n" +
			"Scopes: api (signed-in API calls), auth (sign-in and password reset), uploads (attachment uploads).",
	}
	cmd.AddCommand(newRatelimitListCmd())
	cmd.AddCommand(newRatelimitSetCmd())
	return cmd
}

func newRatelimitListCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List rate limits per scope",
		RunE: func(cmd *cobra.Command, args []string) error {
			db, closeDB, err := openDatabase()
			if err != nil {
				return err
			}
			defer closeDB()

			configs, err := database.NewRatelimitConfigRepository(db).List(context.Background())
			if err != nil {
				return fmt.Errorf("list ratelimit configs: %w", err)
			}
			printRates(cmd.OutOrStdout(), configs)
			return nil
		},
	}
}

func newRatelimitSetCmd() *cobra.Command {
	var rate, scope string
	cmd := &cobra.Command{
		Use:   "set",
		Short: "Set the rate limit for a scope",
		Long:  "Update the rate (e.g. 5-S, 100-M, 1000-H) for one scope. Stored in database.",
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := parseRatelimit(scope, rate)
			if err != nil {
				return err
			}
			db, closeDB, err := openDatabase()
			if err != nil {
				return err
			}
			defer closeDB()

			if err := database.NewRatelimitConfigRepository(db).Set(context.Background(), c); err != nil {
				return fmt.Errorf("set ratelimit config: %w", err)
			}
			fmt.Printf("Rate limit for %s updated to %s.\n", c.ConfigKey, c.Rate)
			return nil
		},
	}
	cmd.Flags().StringVar(&rate, "rate", "", "Rate (e.g. 5-S, 100-M, 1000-H) (required)")
	cmd.Flags().StringVar(&scope, "scope", models.RatelimitScopeAPI, "Scope: api, auth or uploads")
	return cmd
}

// parseRatelimit checks scope and rate before anything is written
func parseRatelimit(scope, rate string) (*models.RatelimitConfig, error) {
	rate = strings.TrimSpace(rate)
	if rate == "" {
		return nil, fmt.Errorf("--rate is required (e.g. 5-S, 100-M)")
	}
	scope = strings.ToLower(strings.TrimSpace(scope))
	if !slices.Contains(ratelimitScopes, scope) {
		return nil, fmt.Errorf("unknown scope %q (want one of %s)", scope, strings.Join(ratelimitScopes, ", "))
	}
	if _, err := limiter.NewRateFromFormatted(rate); err != nil {
		return nil, fmt.Errorf("invalid rate %q: %w", rate, err)
	}
	return &models.RatelimitConfig{ConfigKey: scope, Rate: rate}, nil
}
