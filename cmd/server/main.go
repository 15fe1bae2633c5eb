package main

import (
	"context"
	"errors"
	"log"
	"log/slog"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/zaidhuda/wedding-gallery-sub000/internal/accesstoken"
	"github.com/zaidhuda/wedding-gallery-sub000/internal/app"
	"github.com/zaidhuda/wedding-gallery-sub000/internal/config"
	"github.com/zaidhuda/wedding-gallery-sub000/internal/moderation"
	"github.com/zaidhuda/wedding-gallery-sub000/internal/server"
	"github.com/zaidhuda/wedding-gallery-sub000/internal/util"
	"github.com/zaidhuda/wedding-gallery-sub000/pkg/ai"
	"github.com/zaidhuda/wedding-gallery-sub000/pkg/audit"
	"github.com/zaidhuda/wedding-gallery-sub000/pkg/auth"
	"github.com/zaidhuda/wedding-gallery-sub000/pkg/storage"
	"github.com/zaidhuda/wedding-gallery-sub000/pkg/store"
)

func main() {
	cfg, err := config.Load("")
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}
	logger := util.InitLogger("gallery", cfg.LogLevel)

	catalog, err := cfg.Catalog()
	if err != nil {
		log.Fatalf("failed to build event catalog: %v", err)
	}
	guestPass, err := auth.NewGuestPass(cfg.GuestPassword, cfg.GuestPasswordHash)
	if err != nil {
		log.Fatalf("failed to init guest pass: %v", err)
	}
	trusted, err := util.NewTrustedProxies(cfg.TrustedProxyCIDRs)
	if err != nil {
		log.Fatalf("failed to parse trusted proxies: %v", err)
	}

	var photoStore store.Store
	var gormStore *store.GormStore
	if cfg.DatabaseURL == "" {
		slog.Warn("databaseURL not set, photos are kept in memory only")
		photoStore = store.NewMemoryStore()
	} else {
		gormStore, err = store.NewGormStore(cfg.DatabaseURL)
		if err != nil {
			log.Fatalf("failed to open database: %v", err)
		}
		defer gormStore.Close()
		photoStore = gormStore
	}

	var objects storage.ObjectStore
	var media http.Handler
	switch cfg.StorageBackend {
	case "minio":
		objects, err = storage.NewMinioStore(storage.MinioConfig{
			Endpoint:  cfg.MinioEndpoint,
			AccessKey: cfg.MinioAccessKey,
			SecretKey: cfg.MinioSecretKey,
			Bucket:    cfg.MinioBucket,
			Region:    cfg.MinioRegion,
			UseSSL:    cfg.MinioUseSSL,
			Prefix:    cfg.MinioPrefix,
		})
		if err != nil {
			log.Fatalf("failed to init object store: %v", err)
		}
	default:
		fileStore, err := storage.NewFileStore(cfg.FileStorePath, "/media")
		if err != nil {
			log.Fatalf("failed to init file store: %v", err)
		}
		objects = fileStore
		media = fileStore.Handler()
	}

	var auditLog audit.Log = audit.Nop{}
	switch cfg.AuditSink {
	case "redis":
		redisLog, err := audit.NewRedisLog(audit.RedisLogConfig{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
			Stream:   cfg.AuditStream,
		})
		if err != nil {
			log.Fatalf("failed to init audit stream: %v", err)
		}
		defer redisLog.Close()
		auditLog = redisLog
	case "database":
		if gormStore == nil {
			log.Fatalf("auditSink database requires databaseURL")
		}
		auditLog = gormStore
	}

	textGen, visionGen, err := ai.New(ai.Config{
		Provider:    cfg.AIProvider,
		APIKey:      cfg.AIAPIKey,
		BaseURL:     cfg.AIBaseURL,
		TextModel:   cfg.AITextModel,
		VisionModel: cfg.AIVisionModel,
	})
	if err != nil {
		log.Fatalf("failed to init classifier: %v", err)
	}
	if textGen == nil && visionGen == nil {
		slog.Warn("no classifier configured, every submission waits for review")
	}

	appCore, err := app.New(app.Config{
		Store:          photoStore,
		Objects:        objects,
		Audit:          auditLog,
		Moderator:      moderation.NewEngine(textGen, visionGen, cfg.ModerationTimeoutDuration()),
		GuestPass:      guestPass,
		Catalog:        catalog,
		MaxUploadBytes: cfg.MaxUploadBytes,
		PublicBaseURL:  cfg.PublicBaseURL,
		PresignExpiry:  cfg.PresignExpiryDuration(),
	})
	if err != nil {
		log.Fatalf("failed to init app: %v", err)
	}

	serverCfg := server.Config{
		App:            appCore,
		Media:          media,
		AllowedOrigins: cfg.AllowedOrigins,
		TrustedProxies: trusted,
	}
	if cfg.AccessJWKSURL != "" {
		verifier, err := accesstoken.NewVerifier(accesstoken.Config{
			JWKSURL:       cfg.AccessJWKSURL,
			Issuer:        cfg.AccessIssuer,
			Audience:      cfg.AccessAudience,
			AllowedEmails: cfg.AdminEmails,
			Leeway:        cfg.AccessLeewayDuration(),
			HTTPClient:    &http.Client{Timeout: 5 * time.Second},
		})
		if err != nil {
			log.Fatalf("failed to init access verifier: %v", err)
		}
		serverCfg.Admin = verifier
	} else {
		slog.Warn("accessJwksURL not set, admin endpoints are disabled")
	}
	httpServer, err := server.New(serverCfg)
	if err != nil {
		log.Fatalf("failed to init server: %v", err)
	}

	addr := ":" + cfg.Port
	srv := &http.Server{
		Addr:              addr,
		Handler:           httpServer.Router(),
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       60 * time.Second,
		WriteTimeout:      90 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			logger.Error("shutdown error", "err", err)
		}
	}()

	slog.Info("gallery server listening", "addr", addr, "storage", cfg.StorageBackend, "audit", cfg.AuditSink)
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.Error("server error", "err", err)
	}
}
