package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestLoadConfig(t *testing.T) {
	t.Setenv("ARTICLES_STORE", "mongo")
	t.Setenv("MONGODB_URI", "mongodb://localhost:27017/testdb")
	t.Setenv("MONGODB_DATABASE", "articles_test")
	t.Setenv("REDIS_HOST", "localhost")
	t.Setenv("REDIS_PORT", "6379")
	t.Setenv("JWT_SECRET", "testsecret123456789012345678901234")
	t.Setenv("ARTICLES_REDIRECT_DELAY_MS", "1500")

	cfg, err := LoadConfig()
	require.NoError(t, err)
	require.Equal(t, StoreMongo, cfg.Articles.Store)
	require.Equal(t, "articles_test", cfg.MongoDB.Database)
	require.Equal(t, "localhost:6379", cfg.Redis.Addr())
	require.Equal(t, 1500*time.Millisecond, cfg.Articles.RedirectDelay)
	require.Equal(t, NotifierChangeStream, cfg.Articles.Notifier)
	require.Equal(t, AuthLocal, cfg.Auth.Provider)
	require.Equal(t, 15*time.Minute, cfg.JWT.AccessTokenTTL)
}

func TestLoadConfig_MongoStoreNeedsURI(t *testing.T) {
	t.Setenv("ARTICLES_STORE", "mongo")
	t.Setenv("MONGODB_URI", "")
	_, err := LoadConfig()
	require.ErrorContains(t, err, "MONGODB_URI")
}

func TestLoadConfig_MemoryDefaults(t *testing.T) {
	t.Setenv("ARTICLES_STORE", "memory")
	t.Setenv("MONGODB_URI", "")
	t.Setenv("REDIS_HOST", "")
	cfg, err := LoadConfig()
	require.NoError(t, err)
	require.Equal(t, 3*time.Second, cfg.Articles.RedirectDelay)
	require.Empty(t, cfg.Redis.Addr())
	require.Equal(t, "articles", cfg.Articles.Collection)
}

func TestLoadConfig_SignInNeedsJWTSecret(t *testing.T) {
	t.Setenv("ARTICLES_STORE", "memory")
	t.Setenv("AUTH_PROVIDER", "local")
	t.Setenv("MONGODB_URI", "mongodb://localhost:27017")
	t.Setenv("JWT_SECRET", "")
	_, err := LoadConfig()
	require.ErrorContains(t, err, "JWT_SECRET")

	t.Setenv("AUTH_PROVIDER", "keycloak")
	t.Setenv("KEYCLOAK_URL", "http://kc:8080")
	t.Setenv("KEYCLOAK_CLIENT_ID", "articles")
	_, err = LoadConfig()
	require.ErrorContains(t, err, "JWT_SECRET")

	t.Setenv("JWT_SECRET", "testsecret123456789012345678901234")
	cfg, err := LoadConfig()
	require.NoError(t, err)
	require.True(t, cfg.SignInEnabled())
}

func TestSignInEnabled_LocalWithoutMongo(t *testing.T) {
	cfg := &Config{}
	cfg.Auth.Provider = AuthLocal
	require.False(t, cfg.SignInEnabled())
	cfg.MongoDB.URI = "mongodb://localhost:27017"
	require.True(t, cfg.SignInEnabled())
}

func TestLoadConfig_RejectsUnknownValues(t *testing.T) {
	t.Setenv("ARTICLES_STORE", "firestore")
	_, err := LoadConfig()
	require.Error(t, err)

	t.Setenv("ARTICLES_STORE", "memory")
	t.Setenv("AUTH_PROVIDER", "keycloak")
	t.Setenv("KEYCLOAK_URL", "")
	_, err = LoadConfig()
	require.ErrorContains(t, err, "KEYCLOAK_URL")
}
