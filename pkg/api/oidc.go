package api

import (
	"context"
	"fmt"

	"github.com/coreos/go-oidc/v3/oidc"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/clientcredentials"
)

// OIDCConfig configures a client-credentials token source for headless use
// (sync daemons, CI). Interactive logins happen in the app shell; the engine
// only ever consumes the resulting bearer token.
type OIDCConfig struct {
	IssuerURL    string
	ClientID     string
	ClientSecret string
	Scopes       []string
}

// NewOIDCTokenSource discovers the issuer's token endpoint and returns a
// self-refreshing token source for the client-credentials grant.
func NewOIDCTokenSource(ctx context.Context, cfg OIDCConfig) (oauth2.TokenSource, error) {
	if cfg.IssuerURL == "" {
		return nil, &ValidationError{Field: "issuerURL", Reason: "must not be empty"}
	}
	if cfg.ClientID == "" {
		return nil, &ValidationError{Field: "clientID", Reason: "must not be empty"}
	}

	provider, err := oidc.NewProvider(ctx, cfg.IssuerURL)
	if err != nil {
		return nil, fmt.Errorf("oidc discovery: %w", err)
	}

	cc := clientcredentials.Config{
		ClientID:     cfg.ClientID,
		ClientSecret: cfg.ClientSecret,
		TokenURL:     provider.Endpoint().TokenURL,
		Scopes:       cfg.Scopes,
	}
	return cc.TokenSource(ctx), nil
}
