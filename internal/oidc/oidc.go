package oidc

import (
	"context"
	"fmt"
	"strings"

	"github.com/AbiyasX/FirebaseActt/pkg/middleware"
	"github.com/coreos/go-oidc/v3/oidc"
)

// Verifier checks ID and access tokens issued by an OIDC provider.
type Verifier struct {
	provider *oidc.Provider
	verifier *oidc.IDTokenVerifier
}

// NewVerifier discovers the provider at issuer and verifies tokens for
// clientID.
func NewVerifier(ctx context.Context, issuer, clientID string) (*Verifier, error) {
	provider, err := oidc.NewProvider(ctx, issuer)
	if err != nil {
		return nil, fmt.Errorf("failed to discover OIDC provider: %w", err)
	}
	verifier := provider.Verifier(&oidc.Config{ClientID: clientID})
	return &Verifier{provider: provider, verifier: verifier}, nil
}

// KeycloakIssuer returns the issuer URL of realm on a Keycloak host. With an
// empty realm the URL is assumed to already point at the realm.
func KeycloakIssuer(url, realm string) string {
	url = strings.TrimRight(url, "/")
	if realm == "" {
		return url
	}
	return url + "/realms/" + realm
}

// NewKeycloakVerifier discovers the realm issuer, falling back to the bare URL
// for deployments that put the realm path in it.
func NewKeycloakVerifier(ctx context.Context, url, realm, clientID string) (*Verifier, error) {
	v, err := NewVerifier(ctx, KeycloakIssuer(url, realm), clientID)
	if err == nil || realm == "" {
		return v, err
	}
	if fv, ferr := NewVerifier(ctx, KeycloakIssuer(url, ""), clientID); ferr == nil {
		return fv, nil
	}
	return nil, err
}

func (v *Verifier) Verify(ctx context.Context, raw string) (middleware.Token, error) {
	idToken, err := v.verifier.Verify(ctx, raw)
	if err != nil {
		return nil, err
	}
	return idToken, nil
}
