package bootstrap

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	_ "github.com/lib/pq"
	"github.com/redis/go-redis/v9"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"indexer/internal/config"
	"indexer/internal/constants"
	"indexer/internal/logger"
	"indexer/pkg/migrations"
)

// Stores holds the optional backing stores. A nil field means that section
// of database config was left empty.
type Stores struct {
	Postgres *sql.DB
	Redis    *redis.Client
	Mongo    *mongo.Client
	MongoDB  *mongo.Database
}

func (s *Stores) Close(ctx context.Context) error {
	var errs []error
	if s.Redis != nil {
		if err := s.Redis.Close(); err != nil {
			errs = append(errs, fmt.Errorf("redis: %w", err))
		}
	}
	if s.Postgres != nil {
		if err := s.Postgres.Close(); err != nil {
			errs = append(errs, fmt.Errorf("postgres: %w", err))
		}
	}
	if s.Mongo != nil {
		if err := s.Mongo.Disconnect(ctx); err != nil {
			errs = append(errs, fmt.Errorf("mongodb: %w", err))
		}
	}
	return errors.Join(errs...)
}

type DatabaseConnector struct {
	Config config.DatabaseConfig
	Logger logger.Logger
}

func NewDatabaseConnector(cfg config.DatabaseConfig, log logger.Logger) *DatabaseConnector {
	return &DatabaseConnector{
		Config: cfg,
		Logger: log,
	}
}

// Connect opens every configured store and, when run_migrations is set,
// brings its schema up to date. On failure anything already opened is closed.
func (dc *DatabaseConnector) Connect(ctx context.Context) (*Stores, error) {
	stores := &Stores{}
	fail := func(err error) (*Stores, error) {
		stores.Close(context.Background())
		return nil, err
	}

	var err error
	if stores.Postgres, err = dc.connectPostgres(ctx); err != nil {
		return fail(err)
	}
	if stores.Redis, err = dc.connectRedis(ctx); err != nil {
		return fail(err)
	}
	if stores.Mongo, err = dc.connectMongo(ctx); err != nil {
		return fail(err)
	}
	if stores.Mongo != nil {
		stores.MongoDB = stores.Mongo.Database(dc.mongoDatabaseName())
		if dc.Config.RunMigrations {
			if err := migrations.EnsureMappingIndexes(ctx, stores.MongoDB); err != nil {
				return fail(err)
			}
		}
	}
	return stores, nil
}

func (dc *DatabaseConnector) connectPostgres(ctx context.Context) (*sql.DB, error) {
	pg := dc.Config.Postgres
	if pg.Host == "" {
		return nil, nil
	}

	dsn := fmt.Sprintf("postgres://%s:%s@%s:%d/%s?sslmode=%s",
		pg.User, pg.Password, pg.Host, pg.Port, pg.DBName, pg.SSLMode)

	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	if dc.Config.RunMigrations {
		if err := migrations.RunPostgres(db); err != nil {
			db.Close()
			return nil, err
		}
		dc.Logger.Infow("PostgreSQL migrations applied", "table", constants.RunLogTable)
	}

	dc.Logger.Infow("PostgreSQL connected", "host", pg.Host, "dbname", pg.DBName)
	return db, nil
}

func (dc *DatabaseConnector) connectRedis(ctx context.Context) (*redis.Client, error) {
	rc := dc.Config.Redis
	if rc.Host == "" {
		return nil, nil
	}

	client := redis.NewClient(&redis.Options{
		Addr:     fmt.Sprintf("%s:%d", rc.Host, rc.Port),
		Password: rc.Password,
		DB:       rc.DB,
	})
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("failed to ping Redis: %w", err)
	}

	dc.Logger.Infow("Redis connected", "addr", client.Options().Addr)
	return client, nil
}

func (dc *DatabaseConnector) connectMongo(ctx context.Context) (*mongo.Client, error) {
	if dc.Config.MongoDB.URI == "" {
		return nil, nil
	}

	client, err := mongo.Connect(ctx, options.Client().ApplyURI(dc.Config.MongoDB.URI))
	if err != nil {
		return nil, fmt.Errorf("failed to connect to MongoDB: %w", err)
	}
	if err := client.Ping(ctx, nil); err != nil {
		client.Disconnect(ctx)
		return nil, fmt.Errorf("failed to ping MongoDB: %w", err)
	}

	dc.Logger.Infow("MongoDB connected", "database", dc.mongoDatabaseName())
	return client, nil
}

func (dc *DatabaseConnector) mongoDatabaseName() string {
	if dc.Config.MongoDB.Database != "" {
		return dc.Config.MongoDB.Database
	}
	return constants.DefaultMongoDBName
}
