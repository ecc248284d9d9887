package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/modernplatform/modern-platform/handlers"
	"github.com/modernplatform/modern-platform/internal/blobstore"
	"github.com/modernplatform/modern-platform/internal/config"
	"github.com/modernplatform/modern-platform/internal/content"
	"github.com/modernplatform/modern-platform/internal/sessions"
	"github.com/modernplatform/modern-platform/internal/upload"
	"github.com/modernplatform/modern-platform/pkg/logger"
	"github.com/modernplatform/modern-platform/pkg/metrics"
	"github.com/modernplatform/modern-platform/pkg/middleware"
	"github.com/modernplatform/modern-platform/web"
	"github.com/prometheus/client_golang/prometheus"
)

func main() {
	// LOG_LEVEL: debug|info|warn|error|fatal
	logger.Init(os.Getenv("LOG_LEVEL"))

	cfg, err := config.LoadConfig()
	if err != nil {
		logger.Fatalf("failed to load config: %v", err)
	}
	logger.Init(cfg.Server.LogLevel)
	logger.Infof("config loaded: backend=%s rows=%s blobs=%s mongo=%v redis=%v",
		cfg.Backend.Mode, cfg.Backend.RowStore, cfg.Blobs.Store, cfg.MongoDB.URI != "", cfg.Redis.Host != "")

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	infra := connectInfra(ctx, cfg)
	defer infra.close()

	be, err := buildBackend(ctx, cfg, infra)
	if err != nil {
		logger.Fatalf("backend setup failed: %v", err)
	}

	pages, err := web.NewRenderer()
	if err != nil {
		logger.Fatalf("templates: %v", err)
	}

	if cfg.Server.Environment == "production" {
		gin.SetMode(gin.ReleaseMode)
	}
	r := gin.New()
	r.Use(middleware.RequestLogger(), gin.Recovery())

	metrics.RegisterCollectors(prometheus.DefaultRegisterer)
	handlers.RegisterOps(r, infra.checks, prometheus.DefaultGatherer)
	handlers.RegisterSwagger(r)

	mgr := &middleware.SessionManager{
		Sessions: sessions.NewService(browserSessionRepo(ctx, cfg, infra), cfg.Session.TTL),
		Client:   be.client,
		Cookie:   cfg.Session.Cookie,
		TTL:      cfg.Session.TTL,
		Secure:   cfg.Session.Secure,
	}
	r.Use(mgr.Middleware())

	avatars := upload.New(be.client.Blobs, blobstore.BucketAvatars)
	avatars.MaxSize = cfg.Upload.MaxBytes
	postImages := upload.New(be.client.Blobs, blobstore.BucketPosts)
	postImages.MaxSize = cfg.Upload.MaxBytes

	var limit gin.HandlerFunc
	if cfg.RateLimit.Enabled {
		if cfg.RateLimit.Redis && infra.redis != nil {
			limit = middleware.RedisRateLimitMiddleware(infra.redis, cfg.RateLimit.Rate, cfg.RateLimit.Burst, cfg.RateLimit.Window)
		} else {
			limit = middleware.RateLimitMiddleware(cfg.RateLimit.Rate, cfg.RateLimit.Burst)
		}
	}

	handlers.New(handlers.Deps{
		Content:     content.NewService(be.client.Rows),
		Sessions:    mgr,
		Avatars:     avatars,
		PostImages:  postImages,
		Pages:       pages,
		MemoryBlobs: be.memoryBlobs,
		RateLimit:   limit,
	}).Register(r)

	addr := fmt.Sprintf("%s:%s", cfg.Server.Host, cfg.Server.Port)
	srv := &http.Server{
		Addr:         addr,
		Handler:      r,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}
	go func() {
		logger.Infof("Starting modern-platform on %s", addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatalf("server failed: %v", err)
		}
	}()

	<-ctx.Done()
	logger.Infof("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Errorf("shutdown: %v", err)
	}
}
