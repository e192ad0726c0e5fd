package oidc

import (
	"context"
	"errors"
	"fmt"

	"github.com/benvon/taskboard/internal/models"
	"github.com/lestrrat-go/jwx/v2/jwk"
	"github.com/lestrrat-go/jwx/v2/jws"
	"github.com/lestrrat-go/jwx/v2/jwt"
)

// ErrNonceMismatch is returned when the id token was not issued for this login
var ErrNonceMismatch = errors.New("id token nonce mismatch")

// Verifier verifies JWT tokens
type Verifier struct {
	jwksManager *JWKSManager
	issuer      string
	audience    string
}

// NewVerifier creates a new JWT verifier
func NewVerifier(jwksManager *JWKSManager, issuer, audience string) *Verifier {
	return &Verifier{
		jwksManager: jwksManager,
		issuer:      issuer,
		audience:    audience,
	}
}

// Verify checks an id token's signature, issuer, audience, expiry and
// nonce, and extracts its claims. An empty nonce skips the nonce check.
func (v *Verifier) Verify(ctx context.Context, tokenString, jwksURL, nonce string) (*models.JWTClaims, error) {
	keys, err := v.keysFor(ctx, []byte(tokenString), jwksURL)
	if err != nil {
		return nil, err
	}

	opts := []jwt.ParseOption{
		jwt.WithKeySet(keys),
		jwt.WithValidate(true),
		jwt.WithIssuer(v.issuer),
	}
	if v.audience != "" {
		opts = append(opts, jwt.WithAudience(v.audience))
	}
	token, err := jwt.Parse([]byte(tokenString), opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to parse/verify token: %w", err)
	}

	if nonce != "" {
		got, _ := token.Get("nonce")
		if s, ok := got.(string); !ok || s != nonce {
			return nil, ErrNonceMismatch
		}
	}

	claims := &models.JWTClaims{
		Sub: token.Subject(),
		Iss: token.Issuer(),
		Exp: token.Expiration().Unix(),
		Iat: token.IssuedAt().Unix(),
	}
	if aud := token.Audience(); len(aud) > 0 {
		claims.Aud = aud[0]
	}
	if email, ok := token.PrivateClaims()["email"].(string); ok {
		claims.Email = email
	}
	if name, ok := token.PrivateClaims()["name"].(string); ok {
		claims.Name = name
	}
	if verified, ok := token.PrivateClaims()["email_verified"].(bool); ok {
		claims.EmailVerified = verified
	}
	if claims.Sub == "" {
		return nil, fmt.Errorf("token missing subject claim")
	}

	return claims, nil
}

// keysFor returns the provider's key set, refetching it once when the
// token names a key id the cached set does not hold (key rotation).
func (v *Verifier) keysFor(ctx context.Context, token []byte, jwksURL string) (jwk.Set, error) {
	keys, err := v.jwksManager.GetJWKS(ctx, jwksURL)
	if err != nil {
		return nil, fmt.Errorf("failed to get JWKS: %w", err)
	}
	kid := keyID(token)
	if kid == "" {
		return keys, nil
	}
	if _, ok := keys.LookupKeyID(kid); ok {
		return keys, nil
	}
	if !v.jwksManager.Invalidate(jwksURL) {
		return keys, nil
	}
	keys, err = v.jwksManager.GetJWKS(ctx, jwksURL)
	if err != nil {
		return nil, fmt.Errorf("failed to refresh JWKS: %w", err)
	}
	return keys, nil
}

func keyID(token []byte) string {
	msg, err := jws.Parse(token)
	if err != nil || len(msg.Signatures()) == 0 {
		return ""
	}
	return msg.Signatures()[0].ProtectedHeaders().KeyID()
}
