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

	"planwright/api/internal/app"
	"planwright/api/internal/archive"
	"planwright/api/internal/authpw"
	"planwright/api/internal/catalog"
	"planwright/api/internal/coach"
	"planwright/api/internal/config"
	"planwright/api/internal/email"
	"planwright/api/internal/export"
	"planwright/api/internal/planrepo"
	"planwright/api/internal/search"
	"planwright/api/internal/session"
	"planwright/api/internal/store"
)

func main() {
	cfg := config.Load()
	ctx := context.Background()

	cat, err := catalog.Default()
	if err != nil {
		log.Fatalf("interview catalog invalid: %v", err)
	}

	db, err := store.Open(ctx, cfg.DatabaseURL)
	if err != nil {
		log.Fatalf("database connection failed: %v", err)
	}
	defer db.Close()

	if err := store.ApplyMigrations(ctx, db, cfg.MigrationsDir); err != nil {
		log.Fatalf("migrations failed: %v", err)
	}

	if err := os.MkdirAll(cfg.PlansDir, 0o755); err != nil {
		log.Fatalf("failed to create plans dir: %v", err)
	}

	dataStore := store.NewPostgresStore(db)
	planVault := planrepo.New(cfg.PlansDir)

	pgfts := search.NewPgFTS(db)
	var meiliClient *search.Meili
	if strings.TrimSpace(cfg.MeiliURL) != "" {
		meiliClient = search.NewMeili(cfg.MeiliURL, cfg.MeiliMasterKey)
		defer meiliClient.Close()
	}
	searchService := search.NewService(meiliClient, pgfts)

	var snapshots *session.RedisStore
	if strings.TrimSpace(cfg.RedisURL) != "" {
		snapshots, err = session.NewRedisStore(cfg.RedisURL, cfg.SessionTTL)
		if err != nil {
			log.Fatalf("redis connection failed: %v", err)
		}
		defer snapshots.Close()
		log.Printf("Using Redis for live session snapshots")
	} else {
		log.Printf("Redis not configured, sessions reload from PostgreSQL only")
	}

	var artifacts *archive.Store
	if strings.TrimSpace(cfg.MinioEndpoint) != "" {
		artifacts, err = archive.New(cfg.MinioEndpoint, cfg.MinioAccessKey, cfg.MinioSecretKey, cfg.MinioBucket, cfg.MinioUseSSL)
		if err != nil {
			log.Fatalf("minio connection failed: %v", err)
		}
		log.Printf("Archiving exports to %s/%s", cfg.MinioEndpoint, cfg.MinioBucket)
	}

	coachService := &coach.Service{
		Client: coach.NewClient(cfg.CoachURL, cfg.CoachToken, cfg.CoachTimeout),
		Policy: coach.RetryPolicy{
			MaxAttempts: cfg.CoachMaxAttempts,
			BaseDelay:   cfg.CoachBaseDelay,
			MaxDelay:    cfg.CoachMaxDelay,
		},
	}

	mailer := email.NewService(email.Config{
		Host:     cfg.SMTPHost,
		Port:     cfg.SMTPPort,
		Username: cfg.SMTPUsername,
		Password: cfg.SMTPPassword,
		From:     cfg.SMTPFrom,
		FromName: cfg.SMTPFromName,
	})
	if !mailer.IsConfigured() {
		log.Printf("SMTP not configured, notification mail disabled")
	}

	deps := app.Deps{
		Store:     dataStore,
		Coach:     coachService,
		Search:    searchService,
		Export:    export.NewService(),
		Repo:      planVault,
		Email:     mailer,
		Passwords: authpw.NewService(dataStore),
	}
	if snapshots != nil {
		deps.Snapshots = snapshots
	}
	if artifacts != nil {
		deps.Archive = artifacts
	}
	service := app.New(cfg, cat, deps)

	httpServer := app.NewHTTPServer(service, cfg.CORSOrigin)
	server := &http.Server{
		Addr:              cfg.Addr,
		Handler:           httpServer.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      60 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	go func() {
		log.Printf("Planwright API listening on %s", cfg.Addr)
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
