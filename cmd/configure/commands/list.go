package commands

import (
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"github.com/benvon/taskboard/internal/database"
	"github.com/benvon/taskboard/internal/middleware"
	"github.com/benvon/taskboard/internal/models"
)

// settings is everything the configure tool stores for a deployment
type settings struct {
	providers []*models.OIDCConfig
	cors      *models.CorsConfig
	rates     []models.RatelimitConfig
}

// NewListCmd creates the list command
func NewListCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "Show all stored settings",
		Long:  "Show the OIDC providers, CORS origins and rate limits the server loads from the database",
		RunE: func(cmd *cobra.Command, args []string) error {
			db, closeDB, err := openDatabase()
			if err != nil {
				return err
			}
			defer closeDB()

			ctx := context.Background()
			var s settings
			if s.providers, err = database.NewOIDCConfigRepository(db).GetAll(ctx); err != nil {
				return fmt.Errorf("failed to list OIDC configs: %w", err)
			}
			if s.cors, err = database.NewCorsConfigRepository(db).Get(ctx); err != nil {
				return fmt.Errorf("failed to get cors config: %w", err)
			}
			if s.rates, err = database.NewRatelimitConfigRepository(db).List(ctx); err != nil {
				return fmt.Errorf("failed to list ratelimit configs: %w", err)
			}
			printSettings(cmd.OutOrStdout(), s)
			return nil
		},
	}
}

func printSettings(w io.Writer, s settings) {
	if len(s.providers) == 0 {
		fmt.Fprintln(w, "OIDC providers: none (sign-in is disabled)")
	} else {
		fmt.Fprintln(w, "OIDC providers:")
		for _, c := range s.providers {
			fmt.Fprintf(w, "  - Provider: %s\n", c.Provider)
			fmt.Fprintf(w, "    Issuer: %s\n", c.Issuer)
			fmt.Fprintf(w, "    Client ID: %s\n", c.ClientID)
			fmt.Fprintf(w, "    Redirect URI: %s\n", c.RedirectURI)
			printOptional(w, "Domain", c.Domain)
			printOptional(w, "JWKS URL", c.JWKSUrl)
			printOptional(w, "Password reset page", c.RecoveryURL)
			printOptional(w, "Password change page", c.AccountURL)
		}
	}

	if s.cors == nil {
		fmt.Fprintln(w, "CORS: not stored, FRONTEND_URL is used")
	} else {
		fmt.Fprintf(w, "CORS: %s (credentials %v, max-age %ds)\n",
			strings.Join(s.cors.AllowedOrigins, ", "), s.cors.AllowCredentials, s.cors.MaxAge)
	}

	printRates(w, s.rates)
}

// printRates shows every scope, falling back to the built-in default
func printRates(w io.Writer, rates []models.RatelimitConfig) {
	stored := make(map[string]string, len(rates))
	for _, c := range rates {
		stored[c.ConfigKey] = c.Rate
	}
	fmt.Fprintln(w, "Rate limits:")
	for _, scope := range ratelimitScopes {
		if rate, ok := stored[scope]; ok {
			fmt.Fprintf(w, "  %-8s %s\n", scope, rate)
		} else {
			fmt.Fprintf(w, "  %-8s %s (default)\n", scope, middleware.DefaultRates[scope])
		}
	}
}

func printOptional(w io.Writer, label string, v *string) {
	if v != nil && *v != "" {
		fmt.Fprintf(w, "    %s: %s\n", label, *v)
	}
}
