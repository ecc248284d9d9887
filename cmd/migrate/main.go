// Command migrate prepares the configured stores: it applies the PostgreSQL
// migrations and creates the MongoDB indexes, then exits.
package main

import (
	"context"
	"time"

	"github.com/modernplatform/modern-platform/internal/config"
	"github.com/modernplatform/modern-platform/internal/database"
	"github.com/modernplatform/modern-platform/internal/rowstore"
	"github.com/modernplatform/modern-platform/internal/sessions"
	"github.com/modernplatform/modern-platform/pkg/logger"
	"go.mongodb.org/mongo-driver/mongo/options"
)

func main() {
	cfg, err := config.LoadConfig()
	if err != nil {
		logger.Fatalf("failed to load config: %v", err)
	}
	logger.Init(cfg.Server.LogLevel)

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	did := false
	if cfg.Postgres.DSN != "" {
		pool, err := database.ConnectPostgres(ctx, cfg.Postgres.DSN, cfg.Postgres.Timeout)
		if err != nil {
			logger.Fatalf("postgres: %v", err)
		}
		defer pool.Close()
		if err := database.RunMigrations(ctx, pool); err != nil {
			logger.Fatalf("migrations: %v", err)
		}
		logger.Infof("postgres migrations applied")
		did = true
	}

	if cfg.MongoDB.URI != "" {
		client, err := database.ConnectMongo(ctx, cfg.MongoDB.URI, cfg.MongoDB.Timeout, options.Client().SetMaxPoolSize(2))
		if err != nil {
			logger.Fatalf("mongodb: %v", err)
		}
		defer func() { _ = client.Disconnect(context.Background()) }()
		db := client.Database(cfg.MongoDB.Database)
		if err := rowstore.NewMongoStore(db).EnsureIndexes(ctx); err != nil {
			logger.Fatalf("row indexes: %v", err)
		}
		for _, name := range []string{"refresh_sessions", "browser_sessions"} {
			if err := sessions.NewMongoRepository(db.Collection(name)).EnsureIndexes(ctx); err != nil {
				logger.Fatalf("%s indexes: %v", name, err)
			}
		}
		logger.Infof("mongodb indexes ensured in %s", cfg.MongoDB.Database)
		did = true
	}

	if !did {
		logger.Warnf("nothing to migrate: set POSTGRES_DSN or MONGODB_URI")
	}
}
