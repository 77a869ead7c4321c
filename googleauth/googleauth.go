// Package googleauth builds OAuth2 token sources for the Google Workspace APIs.
package googleauth

import (
	"context"
	"errors"

	"roofcrm-backend/config"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"
	"golang.org/x/oauth2/jwt"
)

var ErrNoCredentials = errors.New("no Google credentials configured")

// TokenSource returns a service-account token source when GOOGLE_SA_EMAIL and
// GOOGLE_SA_PRIVATE_KEY are set, otherwise an OAuth client refresh-token source.
// subject is the Workspace user to impersonate; empty acts as the service account itself.
func TokenSource(ctx context.Context, cfg config.GoogleConfig, subject string, scopes ...string) (oauth2.TokenSource, error) {
	switch {
	case cfg.HasServiceAccount():
		jwtCfg := &jwt.Config{
			Email:      cfg.ServiceAccountEmail,
			PrivateKey: []byte(cfg.PrivateKey),
			Scopes:     scopes,
			TokenURL:   google.JWTTokenURL,
			Subject:    subject,
		}
		return jwtCfg.TokenSource(ctx), nil

	case cfg.HasOAuthClient():
		oauthCfg := &oauth2.Config{
			ClientID:     cfg.OAuthClientID,
			ClientSecret: cfg.OAuthClientSecret,
			Endpoint:     google.Endpoint,
			Scopes:       scopes,
		}
		return oauthCfg.TokenSource(ctx, &oauth2.Token{RefreshToken: cfg.OAuthRefreshToken}), nil

	default:
		return nil, ErrNoCredentials
	}
}
