package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/AbiyasX/FirebaseActt/internal/article/repository"
	"github.com/AbiyasX/FirebaseActt/internal/config"
	"github.com/redis/go-redis/v9"
	"go.mongodb.org/mongo-driver/mongo"
)

// Open builds the Service selected by cfg.Articles. The Mongo store needs mc,
// and the Redis notifier needs rdb.
func Open(ctx context.Context, cfg *config.Config, mc *mongo.Client, rdb *redis.Client, opts ...Option) (Service, error) {
	switch cfg.Articles.Store {
	case config.StoreMemory, "":
		log.Infof("using in-memory article store")
		return NewMemoryService(opts...), nil
	case config.StoreMongo:
		if mc == nil {
			return nil, errors.New("mongo article store selected but no MongoDB connection")
		}
		col := mc.Database(cfg.MongoDB.Database).Collection(cfg.Articles.Collection)
		var notifier repository.Notifier
		switch cfg.Articles.Notifier {
		case config.NotifierRedis:
			if rdb == nil {
				return nil, errors.New("redis notifier selected but no Redis connection")
			}
			notifier = repository.NewRedisNotifier(rdb, cfg.Articles.Channel)
		default:
			notifier = repository.NewChangeStreamNotifier(col)
		}
		log.Infof("using MongoDB article store %s.%s (notifier=%s)", cfg.MongoDB.Database, cfg.Articles.Collection, cfg.Articles.Notifier)
		return NewMongoService(ctx, col, notifier, opts...), nil
	default:
		return nil, fmt.Errorf("unknown article store %q", cfg.Articles.Store)
	}
}
