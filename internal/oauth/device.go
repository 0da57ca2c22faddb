// Package oauth obtains identity-provider tokens with the OAuth2 device
// code flow, for exchange into a Mobile Services session via
// zumo.Client.LoginWithProvider.
package oauth

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/endpoints"
	"golang.org/x/oauth2/microsoft"

	"github.com/tonimelisma/zumo-go/pkg/zumo"
)

// ErrDeviceFlowUnsupported is returned for providers without a device
// authorization endpoint (Twitter, Facebook).
var ErrDeviceFlowUnsupported = errors.New("oauth: provider does not support the device code flow")

// ErrMissingClientID is returned when no client id is configured.
var ErrMissingClientID = errors.New("oauth: client id is required")

var (
	microsoftScopes = []string{"openid", "profile", "offline_access", "User.Read"}
	googleScopes    = []string{"openid", "email", "profile"}
)

// DeviceAuth holds the device code response fields that the CLI displays to the user.
type DeviceAuth struct {
	UserCode        string
	VerificationURI string
}

// Config builds the oauth2 configuration for provider. Microsoft accounts
// use the personal-account ("consumers") tenant. clientSecret is only
// needed by Google.
func Config(provider zumo.Provider, clientID, clientSecret string) (*oauth2.Config, error) {
	if clientID == "" {
		return nil, fmt.Errorf("%w for %s", ErrMissingClientID, provider)
	}

	switch provider {
	case zumo.ProviderMicrosoftAccount:
		return &oauth2.Config{
			ClientID: clientID,
			Endpoint: microsoft.AzureADEndpoint("consumers"),
			Scopes:   microsoftScopes,
		}, nil
	case zumo.ProviderGoogle:
		return &oauth2.Config{
			ClientID:     clientID,
			ClientSecret: clientSecret,
			Endpoint:     endpoints.Google,
			Scopes:       googleScopes,
		}, nil
	default:
		return nil, fmt.Errorf("%w: %s", ErrDeviceFlowUnsupported, provider)
	}
}

// DeviceLogin performs the device code flow:
//  1. Requests a device code from the provider
//  2. Calls display so the CLI can show the user code and verification URL
//  3. Polls until the user authorizes (blocking, respects ctx cancellation)
//
// The token is returned, not stored: only the Mobile Services session that
// is obtained with it is persisted.
func DeviceLogin(
	ctx context.Context,
	cfg *oauth2.Config,
	display func(DeviceAuth),
	logger *slog.Logger,
) (*oauth2.Token, error) {
	logger.Info("starting device code auth flow",
		slog.String("device_auth_url", cfg.Endpoint.DeviceAuthURL),
	)

	da, err := cfg.DeviceAuth(ctx)
	if err != nil {
		return nil, fmt.Errorf("oauth: device auth request failed: %w", err)
	}

	logger.Info("device code received, waiting for user authorization")

	display(DeviceAuth{
		UserCode:        da.UserCode,
		VerificationURI: da.VerificationURI,
	})

	tok, err := cfg.DeviceAccessToken(ctx, da)
	if err != nil {
		return nil, fmt.Errorf("oauth: device code authorization failed: %w", err)
	}

	logger.Info("user authorized",
		slog.Time("expiry", tok.Expiry),
	)

	return tok, nil
}

// ProviderPayload converts a provider token into the body expected by
// login/{provider}: the access token, plus the id token when the provider
// issued one.
func ProviderPayload(tok *oauth2.Token) map[string]any {
	payload := map[string]any{"access_token": tok.AccessToken}

	if id, ok := tok.Extra("id_token").(string); ok && id != "" {
		payload["id_token"] = id
	}

	return payload
}
