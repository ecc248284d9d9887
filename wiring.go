package main

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/modernplatform/modern-platform/handlers"
	"github.com/modernplatform/modern-platform/internal/backend"
	"github.com/modernplatform/modern-platform/internal/backend/hosted"
	"github.com/modernplatform/modern-platform/internal/backend/local"
	"github.com/modernplatform/modern-platform/internal/blobstore"
	"github.com/modernplatform/modern-platform/internal/config"
	"github.com/modernplatform/modern-platform/internal/database"
	"github.com/modernplatform/modern-platform/internal/rowstore"
	"github.com/modernplatform/modern-platform/internal/sessions"
	"github.com/modernplatform/modern-platform/internal/tokens"
	"github.com/modernplatform/modern-platform/internal/users"
	"github.com/modernplatform/modern-platform/pkg/logger"
	"github.com/redis/go-redis/v9"
	"go.mongodb.org/mongo-driver/mongo"
)

// infra holds the shared connections. Any of them may be nil.
type infra struct {
	redis  *redis.Client
	mongo  *mongo.Client
	pg     *pgxpool.Pool
	checks map[string]handlers.ReadinessCheck
}

func connectInfra(ctx context.Context, cfg *config.Config) *infra {
	in := &infra{checks: map[string]handlers.ReadinessCheck{}}

	if addr := cfg.Redis.Addr(); addr != "" {
		c := redis.NewClient(&redis.Options{Addr: addr, Password: cfg.Redis.Password, DB: cfg.Redis.DB})
		if err := c.Ping(ctx).Err(); err != nil {
			logger.Warnf("failed to connect to Redis (%s): %v", addr, err)
			_ = c.Close()
		} else {
			logger.Infof("Connected to Redis: %s", addr)
			in.redis = c
			in.checks["redis"] = func(ctx context.Context) error { return c.Ping(ctx).Err() }
		}
	}

	if cfg.MongoDB.URI != "" {
		// retry with backoff to tolerate startup races
		const maxAttempts = 5
		backoff := time.Second
		var errConn error
		for attempt := 1; attempt <= maxAttempts; attempt++ {
			in.mongo, errConn = database.ConnectMongo(ctx, cfg.MongoDB.URI, cfg.MongoDB.Timeout)
			if errConn == nil {
				break
			}
			logger.Warnf("attempt %d/%d: failed to connect to MongoDB: %v", attempt, maxAttempts, errConn)
			if attempt < maxAttempts {
				time.Sleep(backoff)
				backoff *= 2
			}
		}
		if errConn != nil {
			logger.Warnf("could not connect to MongoDB after %d attempts: %v", maxAttempts, errConn)
		} else {
			m := in.mongo
			in.checks["mongodb"] = func(ctx context.Context) error { return m.Ping(ctx, nil) }
		}
	}

	if cfg.Backend.Mode == "local" && cfg.Backend.RowStore == "postgres" {
		pool, err := database.ConnectPostgres(ctx, cfg.Postgres.DSN, cfg.Postgres.Timeout)
		if err != nil {
			logger.Warnf("failed to connect to PostgreSQL: %v", err)
		} else {
			in.pg = pool
			in.checks["postgres"] = func(ctx context.Context) error { return pool.Ping(ctx) }
		}
	}
	return in
}

func (in *infra) close() {
	if in.redis != nil {
		_ = in.redis.Close()
	}
	if in.mongo != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = in.mongo.Disconnect(ctx)
	}
	if in.pg != nil {
		in.pg.Close()
	}
}

type builtBackend struct {
	client *backend.Client
	// memoryBlobs is set when blobs live in process and must be served by us.
	memoryBlobs *blobstore.MemoryStore
}

func buildBackend(ctx context.Context, cfg *config.Config, in *infra) (*builtBackend, error) {
	if cfg.Backend.Mode == "hosted" {
		c, err := hosted.New(hosted.Config{URL: cfg.Backend.URL, AnonKey: cfg.Backend.AnonKey, Timeout: cfg.Backend.Timeout})
		if err != nil {
			return nil, err
		}
		logger.Infof("using hosted backend at %s", cfg.Backend.URL)
		return &builtBackend{client: c}, nil
	}

	rows, err := rowStore(ctx, cfg, in)
	if err != nil {
		return nil, err
	}
	out := &builtBackend{}
	var blobs backend.Blobs
	switch cfg.Blobs.Store {
	case "minio":
		blobs, err = blobstore.NewMinIOStore(&blobstore.MinIOConfig{
			Endpoint:      cfg.Blobs.MinIO.Endpoint,
			AccessKey:     cfg.Blobs.MinIO.AccessKey,
			SecretKey:     cfg.Blobs.MinIO.SecretKey,
			UseSSL:        cfg.Blobs.MinIO.UseSSL,
			PublicBaseURL: cfg.Blobs.PublicBaseURL,
		})
	case "s3":
		blobs, err = blobstore.NewS3Store(ctx, blobstore.S3Config{
			Region:        cfg.Blobs.S3.Region,
			Endpoint:      cfg.Blobs.S3.Endpoint,
			AccessKey:     cfg.Blobs.S3.AccessKey,
			SecretKey:     cfg.Blobs.S3.SecretKey,
			PathStyle:     cfg.Blobs.S3.PathStyle,
			PublicBaseURL: cfg.Blobs.PublicBaseURL,
		})
	default:
		out.memoryBlobs = blobstore.NewMemoryStore("")
		blobs = out.memoryBlobs
	}
	if err != nil {
		return nil, fmt.Errorf("blob store: %w", err)
	}

	secret := cfg.JWT.Secret
	if secret == "" {
		secret = randomSecret()
		logger.Warnf("using an ephemeral JWT secret; sessions end on restart")
	}

	var refreshRepo sessions.Repository
	var blacklist sessions.Blacklist
	switch {
	case in.redis != nil:
		refreshRepo = sessions.NewRedisRepository(in.redis, "refresh:")
		blacklist = sessions.NewRedisBlacklist(in.redis)
	case in.mongo != nil:
		repo := sessions.NewMongoRepository(in.mongo.Database(cfg.MongoDB.Database).Collection("refresh_sessions"))
		if err := repo.EnsureIndexes(ctx); err != nil {
			logger.Warnf("refresh session indexes: %v", err)
		}
		refreshRepo = repo
		blacklist = sessions.NewMemoryBlacklist()
	default:
		refreshRepo = sessions.NewMemoryRepository()
		blacklist = sessions.NewMemoryBlacklist()
	}

	out.client = local.New(local.Deps{
		Rows:      rows,
		Blobs:     blobs,
		Accounts:  users.NewService(users.NewStoreAccountRepository(rows)),
		Issuer:    tokens.NewIssuer(secret, cfg.JWT.AccessTokenTTL),
		Refresh:   sessions.NewService(refreshRepo, cfg.JWT.RefreshTokenTTL),
		Blacklist: blacklist,
	})
	logger.Infof("using local backend (rows=%s, blobs=%s)", cfg.Backend.RowStore, cfg.Blobs.Store)
	return out, nil
}

func rowStore(ctx context.Context, cfg *config.Config, in *infra) (rowstore.Store, error) {
	switch cfg.Backend.RowStore {
	case "mongo":
		if in.mongo == nil {
			return nil, fmt.Errorf("ROW_STORE=mongo but MongoDB is unavailable")
		}
		s := rowstore.NewMongoStore(in.mongo.Database(cfg.MongoDB.Database))
		if err := s.EnsureIndexes(ctx); err != nil {
			return nil, err
		}
		return s, nil
	case "postgres":
		if in.pg == nil {
			return nil, fmt.Errorf("ROW_STORE=postgres but PostgreSQL is unavailable")
		}
		if err := database.RunMigrations(ctx, in.pg); err != nil {
			return nil, err
		}
		return rowstore.NewPostgresStore(in.pg), nil
	default:
		logger.Warnf("rows are kept in memory and lost on restart")
		return rowstore.NewMemoryStore(), nil
	}
}

// browserSessionRepo prefers Redis, then MongoDB, then memory.
func browserSessionRepo(ctx context.Context, cfg *config.Config, in *infra) sessions.Repository {
	if in.redis != nil {
		return sessions.NewRedisRepository(in.redis, "session:")
	}
	if in.mongo != nil {
		repo := sessions.NewMongoRepository(in.mongo.Database(cfg.MongoDB.Database).Collection("browser_sessions"))
		if err := repo.EnsureIndexes(ctx); err != nil {
			logger.Warnf("browser session indexes: %v", err)
		}
		return repo
	}
	return sessions.NewMemoryRepository()
}

func randomSecret() string {
	b := make([]byte, 32)
	_, _ = rand.Read(b)
	return hex.EncodeToString(b)
}
