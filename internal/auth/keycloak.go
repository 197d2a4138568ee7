package auth

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	"github.com/AbiyasX/FirebaseActt/pkg/middleware"
)

// KeycloakProvider signs users in with the resource owner password grant and
// verifies the returned ID token.
type KeycloakProvider struct {
	TokenURL     string
	ClientID     string
	ClientSecret string
	Verifier     middleware.Verifier
	Client       *http.Client
}

// NewKeycloakProvider builds a provider for the realm token endpoint under
// host.
func NewKeycloakProvider(host, realm, clientID, clientSecret string, ver middleware.Verifier) *KeycloakProvider {
	return &KeycloakProvider{
		TokenURL:     strings.TrimRight(host, "/") + "/realms/" + realm + "/protocol/openid-connect/token",
		ClientID:     clientID,
		ClientSecret: clientSecret,
		Verifier:     ver,
		Client:       http.DefaultClient,
	}
}

type tokenResponse struct {
	AccessToken string `json:"access_token"`
	IDToken     string `json:"id_token"`
}

type tokenError struct {
	Error       string `json:"error"`
	Description string `json:"error_description"`
}

func (p *KeycloakProvider) SignIn(ctx context.Context, email, password string) (*Identity, error) {
	tr, err := p.requestPasswordToken(ctx, email, password)
	if err != nil {
		return nil, err
	}
	if p.Verifier == nil {
		return nil, fmt.Errorf("keycloak: no id token verifier configured")
	}
	tok, err := p.Verifier.Verify(ctx, tr.IDToken)
	if err != nil {
		return nil, fmt.Errorf("verify id token: %w", err)
	}
	var claims map[string]interface{}
	if err := tok.Claims(&claims); err != nil {
		return nil, fmt.Errorf("id token claims: %w", err)
	}
	id := IdentityFromClaims(claims)
	if id == nil {
		return nil, fmt.Errorf("id token has no subject")
	}
	if id.Email == "" {
		id.Email = email
		id.Username = UsernameFromEmail(email)
	}
	return id, nil
}

func (p *KeycloakProvider) requestPasswordToken(ctx context.Context, username, password string) (*tokenResponse, error) {
	form := url.Values{}
	form.Set("grant_type", "password")
	form.Set("client_id", p.ClientID)
	if p.ClientSecret != "" {
		form.Set("client_secret", p.ClientSecret)
	}
	form.Set("username", username)
	form.Set("password", password)
	form.Set("scope", "openid email")

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.TokenURL, strings.NewReader(form.Encode()))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	client := p.Client
	if client == nil {
		client = http.DefaultClient
	}
	resp, err := client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("token request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		b, _ := io.ReadAll(resp.Body)
		return nil, classifyTokenError(resp.StatusCode, b)
	}
	var tr tokenResponse
	if err := json.NewDecoder(resp.Body).Decode(&tr); err != nil {
		return nil, fmt.Errorf("decode token response: %w", err)
	}
	return &tr, nil
}

// classifyTokenError turns a token endpoint failure into ErrUserNotFound,
// ErrWrongPassword or a generic error. Keycloak answers invalid_grant for
// rejected credentials; only the description tells a missing user apart.
func classifyTokenError(status int, body []byte) error {
	var te tokenError
	_ = json.Unmarshal(body, &te)
	desc := strings.ToLower(te.Description)
	if te.Error == "invalid_grant" || status == http.StatusUnauthorized {
		switch {
		case strings.Contains(desc, "not found"), strings.Contains(desc, "does not exist"):
			return fmt.Errorf("%w: %s", ErrUserNotFound, te.Description)
		case strings.Contains(desc, "invalid user credentials"), strings.Contains(desc, "password"):
			return fmt.Errorf("%w: %s", ErrWrongPassword, te.Description)
		}
	}
	return fmt.Errorf("token endpoint returned %d: %s", status, strings.TrimSpace(string(body)))
}

// IdentityFromClaims reads sub and email from verified token claims. It
// returns nil when there is no subject.
func IdentityFromClaims(claims map[string]interface{}) *Identity {
	sub, _ := claims["sub"].(string)
	if sub == "" {
		return nil
	}
	email, _ := claims["email"].(string)
	id := NewIdentity(sub, email)
	if id.Username == "" {
		if u, ok := claims["preferred_username"].(string); ok {
			id.Username = u
		}
	}
	return id
}
