package models

import (
	"time"

	"github.com/google/uuid"
)

// AuthSession is a signed-in browser session. The token is the opaque
// cookie value; tokens from the provider never reach the browser.
type AuthSession struct {
	Token     string    `json:"token"`
	UserID    uuid.UUID `json:"user_id"`
	IDToken   string    `json:"id_token,omitempty"`
	CreatedAt time.Time `json:"created_at"`
	ExpiresAt time.Time `json:"expires_at"`
}

// LoginFlow tells the callback which kind of sign-in started it
type LoginFlow string

const (
	LoginFlowSignIn   LoginFlow = "signin"
	LoginFlowRecovery LoginFlow = "recovery"
)

// LoginState is kept between the redirect to the provider and the callback
type LoginState struct {
	State    string    `json:"state"`
	Verifier string    `json:"verifier"`
	Nonce    string    `json:"nonce"`
	Flow     LoginFlow `json:"flow"`
	ReturnTo string    `json:"return_to,omitempty"`
}
