package models

import (
	"time"

	"github.com/google/uuid"
)

// OIDCConfig is the identity provider registration used for sign-in
type OIDCConfig struct {
	ID           uuid.UUID `json:"id"`
	Provider     string    `json:"provider"`
	Issuer       string    `json:"issuer"`
	Domain       *string   `json:"domain,omitempty"` // hosted-UI domain when it differs from the issuer host
	ClientID     string    `json:"client_id"`
	ClientSecret *string   `json:"client_secret,omitempty"`
	RedirectURI  string    `json:"redirect_uri"`
	JWKSUrl      *string   `json:"jwks_url,omitempty"`
	RecoveryURL  *string   `json:"recovery_url,omitempty"` // provider-hosted password reset page
	AccountURL   *string   `json:"account_url,omitempty"`  // provider-hosted password change page
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}
