package types

import (
	"image"
	"strings"
	"time"

	"golang.org/x/oauth2"
)

// OAuthToken is the bearer credential held by the authorizer and written to
// the keychain. A token is replaced as a whole on refresh and never edited
// in place.
type OAuthToken struct {
	AccessToken  string    `json:"access_token"`
	TokenType    string    `json:"token_type,omitempty"`
	RefreshToken string    `json:"refresh_token,omitempty"`
	Expiry       time.Time `json:"expiry,omitempty"`
	Scope        []string  `json:"scope,omitempty"`
}

// TokenFromOAuth2 converts an exchange or refresh result. The granted scopes
// are read from the "scope" field of the token response.
func TokenFromOAuth2(tok *oauth2.Token) *OAuthToken {
	if tok == nil {
		return nil
	}

	var scope []string
	if raw, ok := tok.Extra("scope").(string); ok {
		scope = strings.Fields(raw)
	}

	return &OAuthToken{
		AccessToken:  tok.AccessToken,
		TokenType:    tok.TokenType,
		RefreshToken: tok.RefreshToken,
		Expiry:       tok.Expiry,
		Scope:        scope,
	}
}

// OAuth2 returns the token in golang.org/x/oauth2 form.
func (t *OAuthToken) OAuth2() *oauth2.Token {
	if t == nil {
		return nil
	}
	return &oauth2.Token{
		AccessToken:  t.AccessToken,
		TokenType:    t.TokenType,
		RefreshToken: t.RefreshToken,
		Expiry:       t.Expiry,
	}
}

// Expired reports whether the access token is missing or expires within
// delta of now. A zero Expiry never expires.
func (t *OAuthToken) Expired(now time.Time, delta time.Duration) bool {
	if t == nil || t.AccessToken == "" {
		return true
	}
	if t.Expiry.IsZero() {
		return false
	}
	return !now.Add(delta).Before(t.Expiry)
}

// CanRefresh reports whether the token carries a refresh token.
func (t *OAuthToken) CanRefresh() bool {
	return t != nil && t.RefreshToken != ""
}

// HasScope reports whether scope was granted.
func (t *OAuthToken) HasScope(scope string) bool {
	if t == nil {
		return false
	}
	for _, s := range t.Scope {
		if s == scope || s == "*" {
			return true
		}
	}
	return false
}

// CAPTCHAImage is a decoded CAPTCHA challenge. Format is the name of the
// codec that recognised the bytes ("png", "gif" or "jpeg").
type CAPTCHAImage struct {
	Image  image.Image
	Format string
}
