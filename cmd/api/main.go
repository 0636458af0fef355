package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"pawhaven/api/internal/blob"
	"pawhaven/api/internal/config"
	"pawhaven/api/internal/identity"
	"pawhaven/api/internal/ops"
	"pawhaven/api/internal/store"
)

func main() {
	cfg := config.Load()
	ctx := context.Background()

	db, err := store.Open(ctx, cfg.DatabaseURL)
	if err != nil {
		log.Fatalf("database connection failed: %v", err)
	}
	defer db.Close()

	if err := store.ApplyMigrations(ctx, db, cfg.MigrationsDir); err != nil {
		log.Fatalf("migrations failed: %v", err)
	}

	dataStore := store.NewPostgresStore(db)

	blobStore, err := blob.New(ctx, blob.Config{
		Endpoint:  cfg.MinioEndpoint,
		AccessKey: cfg.MinioAccessKey,
		SecretKey: cfg.MinioSecretKey,
		Bucket:    cfg.MinioBucket,
		UseSSL:    cfg.MinioUseSSL,
	})
	if err != nil {
		log.Fatalf("object store connection failed: %v", err)
	}

	var claimsCache *identity.ClaimsCache
	if strings.TrimSpace(cfg.RedisURL) != "" {
		claimsCache, err = identity.NewClaimsCache(cfg.RedisURL, cfg.ClaimsTTL)
		if err != nil {
			log.Fatalf("redis connection failed: %v", err)
		}
		defer claimsCache.Close()
		log.Printf("Using Redis for claims caching")
	} else {
		log.Printf("Claims caching disabled")
	}

	identityService := identity.NewService(dataStore, claimsCache)
	buildHook := ops.NewBuildHook(cfg.BuildHookURL)
	service := ops.NewService(cfg, dataStore, identityService, blobStore, buildHook)

	httpServer := ops.NewHTTPServer(service, cfg.CORSOrigin)
	server := &http.Server{
		Addr:              cfg.Addr,
		Handler:           httpServer.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	go func() {
		log.Printf("PawHaven API listening on %s", cfg.Addr)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("server failed: %v", err)
		}
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	<-sigCh

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Printf("shutdown error: %v", err)
	}
}
