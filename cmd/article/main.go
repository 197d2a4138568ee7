package main

import (
	"context"
	"os"
	"time"

	"github.com/AbiyasX/FirebaseActt/internal/article/handler"
	"github.com/AbiyasX/FirebaseActt/internal/article/service"
	"github.com/AbiyasX/FirebaseActt/internal/config"
	"github.com/AbiyasX/FirebaseActt/internal/database"
	"github.com/AbiyasX/FirebaseActt/internal/tokens"
	"github.com/AbiyasX/FirebaseActt/pkg/logger"
	"github.com/AbiyasX/FirebaseActt/pkg/middleware"
	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"go.mongodb.org/mongo-driver/mongo"
)

// Standalone article service without the account endpoints. Writes are
// guarded by locally issued tokens when JWT_SECRET is set.
func main() {
	logger.Init(os.Getenv("LOG_LEVEL"))

	port := os.Getenv("ARTICLE_SERVICE_PORT")
	if port == "" {
		port = "5010"
	}

	cfg, err := config.LoadConfig()
	if err != nil {
		logger.Fatalf("failed to load config: %v", err)
	}

	r := gin.New()
	r.Use(gin.Recovery())

	var client *mongo.Client
	if cfg.Articles.Store == config.StoreMongo {
		client, err = database.ConnectMongo(context.Background(), cfg.MongoDB.URI, 10*time.Second)
		if err != nil {
			logger.Warnf("cannot connect to MongoDB (%v), using memory-backed store", err)
			cfg.Articles.Store = config.StoreMemory
		} else {
			defer func() { _ = client.Disconnect(context.Background()) }()
		}
	}
	var rdb *redis.Client
	if cfg.Articles.Notifier == config.NotifierRedis && cfg.Redis.Addr() != "" {
		rdb = redis.NewClient(&redis.Options{Addr: cfg.Redis.Addr(), Password: cfg.Redis.Password, DB: cfg.Redis.DB})
		defer func() { _ = rdb.Close() }()
	}
	svc, err := service.Open(context.Background(), cfg, client, rdb)
	if err != nil {
		logger.Fatalf("failed to open article store: %v", err)
	}

	opts := []handler.Option{handler.WithRedirectDelay(cfg.Articles.RedirectDelay)}
	if cfg.JWT.Secret != "" {
		opts = append(opts, handler.WithAuth(middleware.AuthMiddleware(tokens.NewVerifier(cfg.JWT.Secret))))
	}
	handler.RegisterArticleRoutes(r, svc, opts...)

	logger.Infof("article service listening on :%s", port)
	if err := r.Run(":" + port); err != nil {
		logger.Fatalf("%v", err)
	}
}
