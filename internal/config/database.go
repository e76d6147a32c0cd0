package config

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/uzleague/league-api/internal/logging"
	"github.com/uzleague/league-api/internal/redisclient"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.mongodb.org/mongo-driver/mongo/readpref"
	"go.opentelemetry.io/contrib/instrumentation/go.mongodb.org/mongo-driver/mongo/otelmongo"
	"go.uber.org/zap"
)

var (
	// MongoDB client
	MongoDB *mongo.Database
	// Redis client
	Redis *redisclient.Client
)

// InitMongoDB initializes the MongoDB connection and required indexes
func InitMongoDB() error {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	opts := options.Client().
		ApplyURI(AppConfig.MongoURI).
		SetMonitor(otelmongo.NewMonitor()).
		SetMaxPoolSize(100).
		SetMinPoolSize(10).
		SetMaxConnIdleTime(5 * time.Minute).
		SetRetryWrites(true).
		SetRetryReads(true)

	client, err := mongo.Connect(ctx, opts)
	if err != nil {
		return fmt.Errorf("failed to connect to MongoDB: %w", err)
	}

	if err := client.Ping(ctx, readpref.Primary()); err != nil {
		return fmt.Errorf("failed to ping MongoDB: %w", err)
	}

	MongoDB = client.Database(AppConfig.MongoDatabase)

	if err := EnsureIndexes(context.Background(), MongoDB); err != nil {
		logging.Logger.Error("failed to ensure indexes on startup", zap.Error(err))
	}

	logging.Logger.Info("connected to MongoDB",
		zap.String("uri", maskMongoURI(AppConfig.MongoURI)),
		zap.String("database", AppConfig.MongoDatabase),
	)
	return nil
}

// InitRedis initializes the Redis connection
func InitRedis() error {
	redisClient := redis.NewClient(&redis.Options{
		Addr:         AppConfig.RedisURI,
		Password:     AppConfig.RedisPassword,
		DB:           AppConfig.RedisDB,
		DialTimeout:  AppConfig.RedisDialTimeout,
		ReadTimeout:  AppConfig.RedisReadTimeout,
		WriteTimeout: AppConfig.RedisWriteTimeout,
		PoolSize:     AppConfig.RedisPoolSize,
		MinIdleConns: AppConfig.RedisPoolSize / 2,
	})

	// Wrap with traced client
	Redis = redisclient.NewClient(redisClient)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := Redis.Ping(ctx).Err(); err != nil {
		return fmt.Errorf("failed to connect to Redis at %s: %w", AppConfig.RedisURI, err)
	}

	logging.Logger.Info("connected to Redis", zap.String("uri", AppConfig.RedisURI))
	return nil
}

// maskMongoURI masks sensitive information in MongoDB URI
func maskMongoURI(uri string) string {
	at := strings.LastIndex(uri, "@")
	if at < 0 {
		return uri
	}
	return "mongodb://****:****@" + uri[at+1:]
}

// EnsureIndexes creates required indexes if they don't exist
func EnsureIndexes(ctx context.Context, db *mongo.Database) error {
	logger := logging.Logger.With(zap.String("component", "database"))
	logger.Info("ensuring required indexes exist")

	ctx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	// One active code per phone; expires_at backs the cleanup sweep.
	otpIndexes := []mongo.IndexModel{
		{
			Keys:    bson.D{{Key: "phone", Value: 1}},
			Options: options.Index().SetName("phone_1").SetUnique(true),
		},
		{
			Keys:    bson.D{{Key: "expires_at", Value: 1}},
			Options: options.Index().SetName("expires_at_1"),
		},
	}
	if err := ensureCollectionIndexes(ctx, logger, db.Collection(AppConfig.OTPCollection), otpIndexes); err != nil {
		return err
	}

	playerIndexes := []mongo.IndexModel{
		{
			Keys:    bson.D{{Key: "phone", Value: 1}},
			Options: options.Index().SetName("phone_1").SetUnique(true),
		},
	}
	if err := ensureCollectionIndexes(ctx, logger, db.Collection(AppConfig.PlayerCollection), playerIndexes); err != nil {
		return err
	}

	logger.Info("all required indexes verified")
	return nil
}

// ensureCollectionIndexes creates the named indexes that are missing from a collection
func ensureCollectionIndexes(ctx context.Context, logger *logging.SafeLogger, collection *mongo.Collection, models []mongo.IndexModel) error {
	cursor, err := collection.Indexes().List(ctx)
	if err != nil {
		logger.Error("failed to list indexes", zap.String("collection", collection.Name()), zap.Error(err))
		return err
	}
	defer cursor.Close(ctx)

	existing := make(map[string]bool)
	for cursor.Next(ctx) {
		var index bson.M
		if err := cursor.Decode(&index); err != nil {
			continue
		}
		if name, ok := index["name"].(string); ok {
			existing[name] = true
		}
	}

	created := 0
	for _, model := range models {
		name := indexName(model)
		if existing[name] {
			continue
		}
		if _, err := collection.Indexes().CreateOne(ctx, model); err != nil {
			// Another instance may have created it concurrently
			if mongo.IsDuplicateKeyError(err) || strings.Contains(err.Error(), "already exists") {
				logger.Info("index already exists (created by another instance)",
					zap.String("collection", collection.Name()),
					zap.String("index", name))
				continue
			}
			logger.Error("failed to create index",
				zap.String("collection", collection.Name()),
				zap.String("index", name),
				zap.Error(err))
			return err
		}
		created++
	}

	if created > 0 {
		logger.Info("created collection indexes",
			zap.String("collection", collection.Name()),
			zap.Int("count", created))
	}
	return nil
}

func indexName(model mongo.IndexModel) string {
	if model.Options != nil && model.Options.Name != nil {
		return *model.Options.Name
	}
	return ""
}
