package main

import (
	"log"
	"log/slog"
	"net/http"
	"time"

	"petsphere/internal/ratelimit"
	"petsphere/internal/upload"
	"petsphere/internal/usertoken"
	"petsphere/internal/util"
	"petsphere/pkg/queue"
	"petsphere/pkg/storage"
	"petsphere/pkg/store"
	"petsphere/services/api/internal/app"
	"petsphere/services/api/internal/config"
	"petsphere/services/api/internal/server"
)

func main() {
	cfg, err := config.Load(config.ConfigPath)
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	logger := util.InitLogger(cfg.LogLevel)

	tokenTTL, err := config.ParseTokenTTL(cfg.TokenTTL)
	if err != nil {
		log.Fatalf("failed to parse token TTL: %v", err)
	}
	tokenLeeway, err := config.ParseTokenLeeway(cfg.TokenLeeway)
	if err != nil {
		log.Fatalf("failed to parse token leeway: %v", err)
	}
	connMaxLifetime, err := config.ParseConnMaxLifetime(cfg.DBConnMaxLife)
	if err != nil {
		log.Fatalf("failed to parse db connection lifetime: %v", err)
	}

	tokens, err := usertoken.New(usertoken.Config{
		Secret: cfg.TokenSecret,
		Issuer: cfg.TokenIssuer,
		TTL:    tokenTTL,
		Leeway: tokenLeeway,
	})
	if err != nil {
		log.Fatalf("failed to init token signer: %v", err)
	}

	db, err := store.NewGormStore(cfg.DatabaseURL, store.PoolConfig{
		MaxOpenConns:    cfg.DBMaxOpenConns,
		MaxIdleConns:    cfg.DBMaxIdleConns,
		ConnMaxLifetime: connMaxLifetime,
	})
	if err != nil {
		log.Fatalf("failed to init database: %v", err)
	}

	limiter, err := ratelimit.NewPerUserLimiter(cfg.RedisAddr, cfg.RedisPassword, cfg.RateLimitPrefix, cfg.RateLimitPerMinute)
	if err != nil {
		log.Fatalf("failed to init rate limiter: %v", err)
	}

	photos, staticDir, err := buildPhotoStore(cfg)
	if err != nil {
		log.Fatalf("failed to init photo storage: %v", err)
	}

	events, err := queue.NewRedisJobQueue(queue.RedisQueueConfig{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
		Stream:   cfg.QueueStream,
		Group:    cfg.QueueGroup,
	})
	if err != nil {
		log.Fatalf("failed to init job queue: %v", err)
	}

	appCore, err := app.New(app.Config{
		Store:     db,
		Tokens:    tokens,
		Limiter:   limiter,
		Photos:    photos,
		Validator: upload.NewValidator(cfg.AllowedFileTypes, cfg.MaxUploadBytes),
		Events:    events,
	})
	if err != nil {
		log.Fatalf("failed to init app: %v", err)
	}

	httpServer := server.New(server.Config{
		App:            appCore,
		MaxUploadBytes: cfg.MaxUploadBytes,
		StaticDir:      staticDir,
		StaticPrefix:   cfg.PhotoPublic,
	})

	addr := ":" + cfg.Port
	srv := &http.Server{
		Addr:         addr,
		Handler:      httpServer.Router(),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	slog.Info("api server listening", "addr", addr, "storage", cfg.StorageBackend)
	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		logger.Error("server error", "err", err)
	}
}

// buildPhotoStore returns the configured photo backend. The static dir is
// only served for disk storage; minio objects are fetched from the bucket's
// public URL instead.
func buildPhotoStore(cfg config.FileConfig) (storage.PhotoStore, string, error) {
	switch cfg.StorageBackend {
	case config.StorageMinio:
		s, err := storage.NewMinioStore(cfg.MinioEndpoint, cfg.MinioAccessKey, cfg.MinioSecretKey, cfg.MinioBucket, cfg.MinioPublicURL, cfg.MinioUseSSL)
		if err != nil {
			return nil, "", err
		}
		return s, "", nil
	default:
		s, err := storage.NewDiskStore(cfg.PhotoDir, cfg.PhotoPublic)
		if err != nil {
			return nil, "", err
		}
		return s, s.Dir(), nil
	}
}
