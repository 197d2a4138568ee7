package tokens

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/AbiyasX/FirebaseActt/internal/auth"
	"github.com/AbiyasX/FirebaseActt/internal/config"
	"github.com/AbiyasX/FirebaseActt/pkg/middleware"
	"github.com/golang-jwt/jwt/v5"
)

// Issuer is set as the iss claim of every access token.
const Issuer = "articles-api"

var ErrNoSecret = errors.New("no signing secret configured")

// GenerateAccessToken creates a signed JWT access token for the identity
func GenerateAccessToken(cfg *config.Config, id *auth.Identity, ttl time.Duration) (string, error) {
	if cfg.JWT.Secret == "" {
		return "", ErrNoSecret
	}
	now := time.Now()
	claims := jwt.MapClaims{
		"iss":                Issuer,
		"sub":                id.ID,
		"email":              id.Email,
		"preferred_username": id.Username,
		"iat":                now.Unix(),
		"exp":                now.Add(ttl).Unix(),
	}
	jt := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return jt.SignedString([]byte(cfg.JWT.Secret))
}

// ExpiresAt reads the exp claim without checking the signature. Only use it
// on tokens that were verified elsewhere.
func ExpiresAt(raw string) (time.Time, error) {
	claims := jwt.MapClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(raw, claims); err != nil {
		return time.Time{}, err
	}
	exp, err := claims.GetExpirationTime()
	if err != nil {
		return time.Time{}, err
	}
	if exp == nil {
		return time.Time{}, errors.New("exp claim not present")
	}
	return exp.Time, nil
}

type mapToken jwt.MapClaims

func (t mapToken) Claims(v interface{}) error {
	b, err := json.Marshal(t)
	if err != nil {
		return err
	}
	return json.Unmarshal(b, v)
}

// Verifier checks access tokens signed by GenerateAccessToken.
type Verifier struct {
	secret []byte
	parser *jwt.Parser
}

func NewVerifier(secret string) *Verifier {
	return &Verifier{
		secret: []byte(secret),
		parser: jwt.NewParser(
			jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
			jwt.WithIssuer(Issuer),
		),
	}
}

func (v *Verifier) Verify(ctx context.Context, raw string) (middleware.Token, error) {
	if len(v.secret) == 0 {
		return nil, ErrNoSecret
	}
	claims := jwt.MapClaims{}
	if _, err := v.parser.ParseWithClaims(raw, claims, func(t *jwt.Token) (interface{}, error) {
		return v.secret, nil
	}); err != nil {
		return nil, fmt.Errorf("access token: %w", err)
	}
	if _, ok := claims["exp"]; !ok {
		return nil, errors.New("access token: exp claim not present")
	}
	return mapToken(claims), nil
}
