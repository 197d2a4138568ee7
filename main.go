package main

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/AbiyasX/FirebaseActt/handlers"
	"github.com/AbiyasX/FirebaseActt/internal/article/handler"
	"github.com/AbiyasX/FirebaseActt/internal/article/service"
	"github.com/AbiyasX/FirebaseActt/internal/auth"
	"github.com/AbiyasX/FirebaseActt/internal/config"
	"github.com/AbiyasX/FirebaseActt/internal/database"
	"github.com/AbiyasX/FirebaseActt/internal/oidc"
	"github.com/AbiyasX/FirebaseActt/internal/sessions"
	"github.com/AbiyasX/FirebaseActt/internal/storage"
	"github.com/AbiyasX/FirebaseActt/internal/tokens"
	"github.com/AbiyasX/FirebaseActt/internal/users"
	"github.com/AbiyasX/FirebaseActt/pkg/logger"
	"github.com/AbiyasX/FirebaseActt/pkg/metrics"
	"github.com/AbiyasX/FirebaseActt/pkg/middleware"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	"go.mongodb.org/mongo-driver/mongo"
)

var startTime = time.Now()

func main() {
	// LOG_LEVEL: debug|info|warn|error|fatal
	logger.Init(os.Getenv("LOG_LEVEL"))
	logger.Debugf("startup: LOG_LEVEL=%s", logger.LevelString())

	cfg, err := config.LoadConfig()
	if err != nil {
		logger.Fatalf("failed to load config: %v", err)
	}
	logger.Infof("config loaded: store=%s notifier=%s auth=%s mongo=%v redis=%v minio=%v",
		cfg.Articles.Store, cfg.Articles.Notifier, cfg.Auth.Provider,
		cfg.MongoDB.URI != "", cfg.Redis.Host != "", cfg.MinIO.Endpoint != "")

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	r := gin.New()

	r.Use(middleware.CORS(), gin.Logger(), gin.Recovery())

	// Redis backs token revocation, the shared rate limiter, sessions and
	// the pub/sub notifier when configured.
	var rdb *redis.Client
	if addr := cfg.Redis.Addr(); addr != "" {
		client := redis.NewClient(&redis.Options{Addr: addr, Password: cfg.Redis.Password, DB: cfg.Redis.DB})
		if err := client.Ping(ctx).Err(); err != nil {
			logger.Warnf("failed to connect to Redis (%s): %v", addr, err)
			_ = client.Close()
		} else {
			rdb = client
			defer func() { _ = rdb.Close() }()
			sessions.SetBlacklistClient(rdb)
			logger.Infof("connected to Redis at %s", addr)
		}
	}

	// Optional global rate limiter (per-user when authenticated, otherwise per-IP)
	if cfg.RateLimit.Enabled {
		if cfg.RateLimit.UseRedis && rdb != nil {
			win := time.Duration(cfg.RateLimit.WindowSeconds) * time.Second
			r.Use(middleware.RedisRateLimitMiddleware(rdb, cfg.RateLimit.RPS, cfg.RateLimit.Burst, win))
		} else {
			r.Use(middleware.RateLimitMiddleware(cfg.RateLimit.RPS, cfg.RateLimit.Burst))
		}
	}

	var mongoClient *mongo.Client
	if cfg.MongoDB.URI != "" {
		mongoClient, err = database.ConnectMongoWithRetry(ctx, cfg.MongoDB.URI, cfg.MongoDB.Timeout, 5, time.Second)
		if err != nil {
			if cfg.Articles.Store == config.StoreMongo {
				logger.Fatalf("%v", err)
			}
			logger.Warnf("%v", err)
		} else {
			defer func() { _ = mongoClient.Disconnect(context.Background()) }()
		}
	}

	// article store, archived to object storage before delete when MinIO is set
	var svcOpts []service.Option
	if cfg.MinIO.Endpoint != "" {
		objects, err := storage.NewMinIOStorage(&cfg.MinIO)
		if err != nil {
			logger.Warnf("article archive disabled: %v", err)
		} else {
			svcOpts = append(svcOpts, service.WithArchive(storage.NewArticleArchive(objects)))
			logger.Infof("archiving deleted articles to bucket %s", cfg.MinIO.Bucket)
		}
	}
	articles, err := service.Open(ctx, cfg, mongoClient, rdb, svcOpts...)
	if err != nil {
		logger.Fatalf("failed to open article store: %v", err)
	}

	// sessions: Redis preferred, Mongo otherwise
	var sessionsSvc *sessions.Service
	if rdb != nil {
		sessionsSvc = sessions.NewService(sessions.NewRedisRepository(rdb, "session:"))
		logger.Infof("using Redis for session storage")
	} else if mongoClient != nil {
		sessionsSvc = sessions.NewService(sessions.NewMongoRepository(mongoClient.Database(cfg.MongoDB.Database).Collection("sessions")))
		logger.Infof("using MongoDB for session storage")
	}

	var accounts *users.Service
	if mongoClient != nil {
		accounts = users.NewService(users.NewMongoAccountRepository(mongoClient.Database(cfg.MongoDB.Database).Collection("accounts")))
	}

	// Keycloak OIDC verifier, with the insecure parser as an integration-test fallback
	var oidcVerifier middleware.Verifier
	if cfg.Keycloak.URL != "" && cfg.Keycloak.ClientID != "" {
		ver, err := oidc.NewKeycloakVerifier(ctx, cfg.Keycloak.URL, cfg.Keycloak.Realm, cfg.Keycloak.ClientID)
		if err != nil {
			logger.Warnf("failed to initialize OIDC verifier: %v", err)
		} else {
			oidcVerifier = ver
		}
	}
	if oidcVerifier == nil && cfg.Auth.AllowInsecureToken {
		logger.Warnf("enabling insecure OIDC verifier (integration mode)")
		var issuer string
		if cfg.Keycloak.URL != "" {
			issuer = oidc.KeycloakIssuer(cfg.Keycloak.URL, cfg.Keycloak.Realm)
		}
		oidcVerifier = oidc.NewInsecureVerifier(issuer, cfg.Keycloak.ClientID)
	}

	var provider auth.Provider
	switch cfg.Auth.Provider {
	case config.AuthKeycloak:
		if oidcVerifier != nil {
			provider = auth.NewKeycloakProvider(cfg.Keycloak.URL, cfg.Keycloak.Realm, cfg.Keycloak.ClientID, cfg.Keycloak.ClientSecret, oidcVerifier)
		}
	default:
		if accounts != nil {
			provider = accounts
		}
	}

	verifiers := []middleware.Verifier{oidcVerifier}
	if cfg.JWT.Secret != "" {
		verifiers = append([]middleware.Verifier{tokens.NewVerifier(cfg.JWT.Secret)}, verifiers...)
	}
	verifier := middleware.FirstOf(verifiers...)

	r.GET("/health", func(c *gin.Context) {
		c.String(http.StatusOK, "healthy")
	})

	// readiness: 200 only when the dependencies the config asks for are up
	r.GET("/ready", func(c *gin.Context) {
		deps := map[string]bool{"articles": true}
		if cfg.Articles.Store == config.StoreMongo {
			pctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
			deps["articles"] = mongoClient.Ping(pctx, nil) == nil
			cancel()
		}
		deps["sessions"] = sessionsSvc != nil
		deps["auth"] = provider != nil
		if cfg.Keycloak.URL != "" {
			deps["oidc"] = oidcVerifier != nil
		}
		if cfg.Redis.Host != "" {
			deps["redis"] = rdb != nil
		}
		ready := true
		for _, ok := range deps {
			ready = ready && ok
		}
		status, code := "ready", http.StatusOK
		if !ready {
			status, code = "not_ready", http.StatusServiceUnavailable
		}
		c.JSON(code, gin.H{"status": status, "deps": deps, "uptime": time.Since(startTime).String()})
	})

	handler.RegisterArticleRoutes(r, articles,
		handler.WithAuth(middleware.AuthMiddleware(verifier)),
		handler.WithRedirectDelay(cfg.Articles.RedirectDelay),
	)

	if provider != nil && sessionsSvc != nil && cfg.SignInEnabled() {
		// registration only makes sense for local accounts
		registrar := accounts
		if cfg.Auth.Provider == config.AuthKeycloak {
			registrar = nil
		}
		h := handlers.NewAuthHandler(cfg, provider, registrar, sessionsSvc)
		h.Register(r.Group("/"))
	} else {
		logger.Warnf("auth handlers not registered: provider=%v sessions=%v", provider != nil, sessionsSvc != nil)
	}

	r.GET("/api/me", middleware.AuthMiddleware(verifier), func(c *gin.Context) {
		claims := middleware.Claims(c)
		id := auth.IdentityFromClaims(claims)
		if id == nil {
			c.JSON(http.StatusOK, gin.H{"claims": claims})
			return
		}
		if accounts != nil {
			if a, err := accounts.GetByID(c.Request.Context(), id.ID); err == nil && a != nil {
				c.JSON(http.StatusOK, gin.H{"user": id, "account": a})
				return
			}
		}
		c.JSON(http.StatusOK, gin.H{"user": id})
	})

	handlers.RegisterSwagger(r)

	metrics.RegisterCollectors(prometheus.DefaultRegisterer)
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	addr := fmt.Sprintf("%s:%s", cfg.Server.Host, cfg.Server.Port)
	// no write timeout: article streams stay open
	srv := &http.Server{
		Addr:        addr,
		Handler:     r,
		ReadTimeout: cfg.Server.ReadTimeout,
		BaseContext: func(net.Listener) context.Context { return ctx },
	}
	go func() {
		logger.Infof("Starting articles API on %s", addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatalf("server failed: %v", err)
		}
	}()

	<-ctx.Done()
	logger.Infof("shutting down")
	sctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(sctx); err != nil {
		logger.Errorf("shutdown: %v", err)
	}
}
