package commands

import (
	"context"
	"fmt"
	"net/url"
	"strings"

	"github.com/spf13/cobra"

	"github.com/benvon/taskboard/internal/database"
	"github.com/benvon/taskboard/internal/models"
)

type oidcFlags struct {
	issuer, domain, clientID, clientSecret, redirectURI string
	jwksURL, recoveryURL, accountURL                    string
}

// NewOIDCCmd creates the OIDC configuration command
func NewOIDCCmd() *cobra.Command {
	var f oidcFlags

	cmd := &cobra.Command{
		Use:   "oidc <provider-name>",
		Short: "Configure OIDC provider",
		Long: "Configure an OIDC provider for sign-in. Provider name can be any identifier (e.g., 'cognito', 'okta', 'auth0') " +
			"and must match OIDC_PROVIDER on the server.",
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			config, err := f.config(args[0])
			if err != nil {
				return err
			}
			db, closeDB, err := openDatabase()
			if err != nil {
				return err
			}
			defer closeDB()

			if err := database.NewOIDCConfigRepository(db).Set(context.Background(), config); err != nil {
				return err
			}
			fmt.Printf("Saved OIDC configuration for provider: %s\n", config.Provider)
			return nil
		},
	}

	cmd.Flags().StringVar(&f.issuer, "issuer", "", "OIDC issuer URL (required)")
	cmd.Flags().StringVar(&f.domain, "domain", "", "Hosted UI domain (optional, e.g., for Cognito custom domains like 'auth.example.com')")
	cmd.Flags().StringVar(&f.clientID, "client-id", "", "OAuth2 client ID (required)")
	cmd.Flags().StringVar(&f.clientSecret, "client-secret", "", "OAuth2 client secret (optional for public clients)")
	cmd.Flags().StringVar(&f.redirectURI, "redirect-uri", "", "OAuth2 redirect URI (required)")
	cmd.Flags().StringVar(&f.jwksURL, "jwks-url", "", "JWKS URL (defaults to <issuer>/.well-known/jwks.json)")
	cmd.Flags().StringVar(&f.recoveryURL, "recovery-url", "", "Provider-hosted password reset page (optional)")
	cmd.Flags().StringVar(&f.accountURL, "account-url", "", "Provider-hosted password change page (optional)")

	return cmd
}

// config validates the flags and builds the registration for provider
func (f oidcFlags) config(provider string) (*models.OIDCConfig, error) {
	provider = strings.TrimSpace(provider)
	if provider == "" {
		return nil, fmt.Errorf("provider name cannot be empty")
	}
	if f.issuer == "" || f.clientID == "" || f.redirectURI == "" {
		return nil, fmt.Errorf("required flags: --issuer, --client-id, --redirect-uri (--client-secret is optional for public clients)")
	}
	for name, raw := range map[string]string{
		"issuer":       f.issuer,
		"redirect-uri": f.redirectURI,
		"jwks-url":     f.jwksURL,
		"recovery-url": f.recoveryURL,
		"account-url":  f.accountURL,
	} {
		if raw == "" {
			continue
		}
		if u, err := url.Parse(raw); err != nil || u.Scheme == "" || u.Host == "" {
			return nil, fmt.Errorf("--%s must be an absolute URL", name)
		}
	}

	issuer := strings.TrimSuffix(f.issuer, "/")
	jwksURL := f.jwksURL
	if jwksURL == "" {
		jwksURL = issuer + "/.well-known/jwks.json"
	}
	return &models.OIDCConfig{
		Provider:     provider,
		Issuer:       issuer,
		Domain:       optional(f.domain),
		ClientID:     f.clientID,
		ClientSecret: optional(f.clientSecret),
		RedirectURI:  f.redirectURI,
		JWKSUrl:      &jwksURL,
		RecoveryURL:  optional(f.recoveryURL),
		AccountURL:   optional(f.accountURL),
	}, nil
}
