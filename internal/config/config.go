package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Store backends for ARTICLES_STORE.
const (
	StoreMemory = "memory"
	StoreMongo  = "mongo"
)

// Change notifiers for ARTICLES_NOTIFIER.
const (
	NotifierChangeStream = "changestream"
	NotifierRedis        = "redis"
)

// Sign-in providers for AUTH_PROVIDER.
const (
	AuthLocal    = "local"
	AuthKeycloak = "keycloak"
)

// Config holds application configuration
type Config struct {
	Server    ServerConfig
	MongoDB   MongoDBConfig
	Articles  ArticlesConfig
	Redis     RedisConfig
	Keycloak  KeycloakConfig
	Auth      AuthConfig
	JWT       JWTConfig
	RateLimit RateLimitConfig
	MinIO     MinIOConfig
}

type ServerConfig struct {
	Port         string
	Host         string
	Environment  string
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
}

type MongoDBConfig struct {
	URI      string
	Database string
	Timeout  time.Duration
}

type ArticlesConfig struct {
	Collection    string
	Store         string
	Notifier      string
	Channel       string
	RedirectDelay time.Duration
}

type RedisConfig struct {
	Host     string
	Port     string
	Password string
	DB       int
}

// Addr is host:port, or empty when Redis is not configured.
func (r RedisConfig) Addr() string {
	if r.Host == "" {
		return ""
	}
	return r.Host + ":" + r.Port
}

type KeycloakConfig struct {
	URL          string
	Realm        string
	ClientID     string
	ClientSecret string
}

type AuthConfig struct {
	Provider string
	// AllowInsecureToken accepts unsigned Keycloak tokens. Local runs only.
	AllowInsecureToken bool
}

type JWTConfig struct {
	Secret          string
	AccessTokenTTL  time.Duration
	RefreshTokenTTL time.Duration
}

type RateLimitConfig struct {
	Enabled       bool
	UseRedis      bool
	RPS           float64
	Burst         int
	WindowSeconds int
}

type MinIOConfig struct {
	Endpoint  string
	AccessKey string
	SecretKey string
	UseSSL    bool
	Bucket    string
}

// LoadConfig loads configuration from environment variables and .env file
func LoadConfig() (*Config, error) {
	_ = godotenv.Load()

	viper.AutomaticEnv()

	viper.SetDefault("SERVER_PORT", "5001")
	viper.SetDefault("SERVER_HOST", "0.0.0.0")
	viper.SetDefault("SERVER_ENVIRONMENT", "development")
	viper.SetDefault("MONGODB_DATABASE", "articles")
	viper.SetDefault("MONGODB_TIMEOUT", 10)
	viper.SetDefault("ARTICLES_COLLECTION", "articles")
	viper.SetDefault("ARTICLES_STORE", StoreMemory)
	viper.SetDefault("ARTICLES_NOTIFIER", NotifierChangeStream)
	viper.SetDefault("ARTICLES_CHANNEL", "articles:changed")
	viper.SetDefault("ARTICLES_REDIRECT_DELAY_MS", 3000)
	viper.SetDefault("REDIS_PORT", "6379")
	viper.SetDefault("REDIS_DB", 0)
	viper.SetDefault("AUTH_PROVIDER", AuthLocal)
	viper.SetDefault("JWT_ACCESS_TOKEN_TTL", 15)
	viper.SetDefault("JWT_REFRESH_TOKEN_TTL", 10080)
	viper.SetDefault("RATE_LIMIT_ENABLED", false)
	viper.SetDefault("RATE_LIMIT_USE_REDIS", false)
	viper.SetDefault("RATE_LIMIT_RPS", 10)
	viper.SetDefault("RATE_LIMIT_BURST", 20)
	viper.SetDefault("RATE_LIMIT_WINDOW_SECONDS", 1)
	viper.SetDefault("MINIO_BUCKET", "articles")

	cfg := &Config{
		Server: ServerConfig{
			Port:         viper.GetString("SERVER_PORT"),
			Host:         viper.GetString("SERVER_HOST"),
			Environment:  viper.GetString("SERVER_ENVIRONMENT"),
			ReadTimeout:  30 * time.Second,
			WriteTimeout: 30 * time.Second,
		},
		MongoDB: MongoDBConfig{
			URI:      viper.GetString("MONGODB_URI"),
			Database: viper.GetString("MONGODB_DATABASE"),
			Timeout:  time.Duration(viper.GetInt("MONGODB_TIMEOUT")) * time.Second,
		},
		Articles: ArticlesConfig{
			Collection:    viper.GetString("ARTICLES_COLLECTION"),
			Store:         strings.ToLower(viper.GetString("ARTICLES_STORE")),
			Notifier:      strings.ToLower(viper.GetString("ARTICLES_NOTIFIER")),
			Channel:       viper.GetString("ARTICLES_CHANNEL"),
			RedirectDelay: time.Duration(viper.GetInt("ARTICLES_REDIRECT_DELAY_MS")) * time.Millisecond,
		},
		Redis: RedisConfig{
			Host:     viper.GetString("REDIS_HOST"),
			Port:     viper.GetString("REDIS_PORT"),
			Password: os.Getenv("REDIS_PASSWORD"),
			DB:       viper.GetInt("REDIS_DB"),
		},
		Keycloak: KeycloakConfig{
			URL:          viper.GetString("KEYCLOAK_URL"),
			Realm:        viper.GetString("KEYCLOAK_REALM"),
			ClientID:     viper.GetString("KEYCLOAK_CLIENT_ID"),
			ClientSecret: viper.GetString("KEYCLOAK_CLIENT_SECRET"),
		},
		Auth: AuthConfig{
			Provider:           strings.ToLower(viper.GetString("AUTH_PROVIDER")),
			AllowInsecureToken: viper.GetBool("ALLOW_INSECURE_TOKEN"),
		},
		JWT: JWTConfig{
			Secret:          os.Getenv("JWT_SECRET"),
			AccessTokenTTL:  time.Duration(viper.GetInt("JWT_ACCESS_TOKEN_TTL")) * time.Minute,
			RefreshTokenTTL: time.Duration(viper.GetInt("JWT_REFRESH_TOKEN_TTL")) * time.Minute,
		},
		RateLimit: RateLimitConfig{
			Enabled:       viper.GetBool("RATE_LIMIT_ENABLED"),
			UseRedis:      viper.GetBool("RATE_LIMIT_USE_REDIS"),
			RPS:           viper.GetFloat64("RATE_LIMIT_RPS"),
			Burst:         viper.GetInt("RATE_LIMIT_BURST"),
			WindowSeconds: viper.GetInt("RATE_LIMIT_WINDOW_SECONDS"),
		},
		MinIO: MinIOConfig{
			Endpoint:  viper.GetString("MINIO_ENDPOINT"),
			AccessKey: os.Getenv("MINIO_ACCESS_KEY"),
			SecretKey: os.Getenv("MINIO_SECRET_KEY"),
			UseSSL:    viper.GetBool("MINIO_USE_SSL"),
			Bucket:    viper.GetString("MINIO_BUCKET"),
		},
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// SignInEnabled reports whether the /auth endpoints can be served: Keycloak
// sign-in, or local accounts, which live in MongoDB.
func (c *Config) SignInEnabled() bool {
	switch c.Auth.Provider {
	case AuthKeycloak:
		return true
	case AuthLocal:
		return c.MongoDB.URI != ""
	}
	return false
}

func (c *Config) validate() error {
	switch c.Articles.Store {
	case StoreMemory:
	case StoreMongo:
		if c.MongoDB.URI == "" {
			return fmt.Errorf("environment variable MONGODB_URI is required when ARTICLES_STORE=%s", StoreMongo)
		}
	default:
		return fmt.Errorf("unknown ARTICLES_STORE %q", c.Articles.Store)
	}
	switch c.Articles.Notifier {
	case NotifierChangeStream:
	case NotifierRedis:
		if c.Articles.Store == StoreMongo && c.Redis.Host == "" {
			return fmt.Errorf("ARTICLES_NOTIFIER=%s needs REDIS_HOST", NotifierRedis)
		}
	default:
		return fmt.Errorf("unknown ARTICLES_NOTIFIER %q", c.Articles.Notifier)
	}
	switch c.Auth.Provider {
	case AuthLocal:
	case AuthKeycloak:
		if c.Keycloak.URL == "" || c.Keycloak.ClientID == "" {
			return fmt.Errorf("AUTH_PROVIDER=%s needs KEYCLOAK_URL and KEYCLOAK_CLIENT_ID", AuthKeycloak)
		}
	default:
		return fmt.Errorf("unknown AUTH_PROVIDER %q", c.Auth.Provider)
	}
	if c.SignInEnabled() && c.JWT.Secret == "" {
		return fmt.Errorf("JWT_SECRET is required when sign-in is enabled (AUTH_PROVIDER=%s)", c.Auth.Provider)
	}
	if c.Articles.RedirectDelay < 0 {
		return fmt.Errorf("ARTICLES_REDIRECT_DELAY_MS must not be negative")
	}
	return nil
}
