package main

import (
	"context"
	"log"
	"log/slog"
	"net/http"
	"time"

	"petsphere/internal/util"
	"petsphere/services/sysinfo/internal/collector"
	"petsphere/services/sysinfo/internal/config"
	"petsphere/services/sysinfo/internal/server"
	"petsphere/services/sysinfo/internal/store"
)

func main() {
	cfg, err := config.Load(config.ConfigPath)
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	logger := util.InitLogger(cfg.LogLevel)

	snaps, err := store.NewMongoStore(context.Background(), cfg.MongoURI, cfg.MongoDatabase, cfg.MongoCollection)
	if err != nil {
		log.Fatalf("failed to init mongo store: %v", err)
	}

	httpServer := server.New(server.Config{
		Collector: collector.New(cfg.DiskPath),
		Store:     snaps,
	})

	addr := ":" + cfg.Port
	srv := &http.Server{
		Addr:         addr,
		Handler:      httpServer.Router(),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	slog.Info("sysinfo server listening", "addr", addr)
	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		logger.Error("server error", "err", err)
	}
}
