package oidc

import (
	"context"
	"errors"
	"fmt"

	"github.com/benvon/taskboard/internal/models"
	"golang.org/x/oauth2"
)

// ErrNoIDToken is returned when the token response carries no id_token
var ErrNoIDToken = errors.New("token response has no id_token")

// Client wraps OAuth2 client functionality
type Client struct {
	config *oauth2.Config
}

// NewClient creates a new OAuth2 client from OIDC config
func NewClient(oidcConfig *models.OIDCConfig, endpoints Endpoints) *Client {
	clientSecret := ""
	if oidcConfig.ClientSecret != nil {
		clientSecret = *oidcConfig.ClientSecret
	}

	config := &oauth2.Config{
		ClientID:     oidcConfig.ClientID,
		ClientSecret: clientSecret,
		RedirectURL:  oidcConfig.RedirectURI,
		Scopes:       []string{"openid", "email", "profile"},
		Endpoint: oauth2.Endpoint{
			AuthURL:  endpoints.Authorization,
			TokenURL: endpoints.Token,
		},
	}

	return &Client{config: config}
}

// WithRedirect returns a copy of the client that uses another callback URL
func (c *Client) WithRedirect(redirectURL string) *Client {
	cfg := *c.config
	cfg.RedirectURL = redirectURL
	return &Client{config: &cfg}
}

// AuthCodeURL returns the authorization URL with a PKCE challenge for verifier
func (c *Client) AuthCodeURL(state, verifier, nonce string, extra ...oauth2.AuthCodeOption) string {
	opts := append([]oauth2.AuthCodeOption{
		oauth2.S256ChallengeOption(verifier),
		oauth2.SetAuthURLParam("nonce", nonce),
	}, extra...)
	return c.config.AuthCodeURL(state, opts...)
}

// ExchangeCode exchanges an authorization code for tokens and returns the raw id token
func (c *Client) ExchangeCode(ctx context.Context, code, verifier string) (*oauth2.Token, string, error) {
	token, err := c.config.Exchange(ctx, code, oauth2.VerifierOption(verifier))
	if err != nil {
		return nil, "", fmt.Errorf("failed to exchange code: %w", err)
	}
	idToken, ok := token.Extra("id_token").(string)
	if !ok || idToken == "" {
		return nil, "", ErrNoIDToken
	}
	return token, idToken, nil
}
