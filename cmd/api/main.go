package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	"github.com/Jm9710/appProducotres/internal/config"
	"github.com/Jm9710/appProducotres/internal/database"
	"github.com/Jm9710/appProducotres/internal/domain"
	"github.com/Jm9710/appProducotres/internal/domain/account"
	"github.com/Jm9710/appProducotres/internal/domain/ingest"
	"github.com/Jm9710/appProducotres/internal/domain/syncfolder"
	"github.com/Jm9710/appProducotres/internal/filesync"
	"github.com/Jm9710/appProducotres/internal/middleware"
	jwtsvc "github.com/Jm9710/appProducotres/internal/pkg/jwt"
	"github.com/Jm9710/appProducotres/internal/pkg/logger"
	"github.com/Jm9710/appProducotres/internal/repository"
	"github.com/Jm9710/appProducotres/internal/storage"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		boot := logger.New("info", "json")
		boot.Fatal().Err(err).Msg("invalid configuration")
	}
	log := logger.New(cfg.LogLevel, cfg.LogFormat)

	if cfg.IsProdLike() {
		gin.SetMode(gin.ReleaseMode)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	db, err := database.Connect(cfg.DatabaseURL, log, database.Options{
		MaxOpenConns: cfg.DBMaxOpenConns,
		Debug:        cfg.DBDebug,
	})
	if err != nil {
		log.Fatal().Err(err).Msg("database connect failed")
	}
	defer func() { _ = database.Close(db) }()

	if err := database.AutoMigrate(db); err != nil {
		log.Fatal().Err(err).Msg("database migration failed")
	}

	store, memStore, err := newStore(ctx, cfg, log)
	if err != nil {
		log.Fatal().Err(err).Msg("object storage init failed")
	}

	ledger := repository.NewLedger(db)
	j := jwtsvc.New(cfg.JWTSecret, cfg.JWTAccessTTL)
	hub := ingest.NewHub(log)

	ingestService := ingest.NewService(ledger, store, hub, log, ingest.Options{
		MaxUploadSize: cfg.MaxUploadSize,
		ListingTTL:    cfg.ListingSignedURLTTL,
		SignTTL:       cfg.SignedURLTTL,
	})
	ingestHandler := ingest.NewHandler(ingestService, hub, j, log)

	accountService := account.NewService(ledger, j, ingestService, log)
	accountHandler := account.NewHandler(accountService, log)

	r := gin.New()
	r.Use(middleware.RequestID())
	r.Use(middleware.RequestLogger(log))
	r.Use(middleware.ErrorLogger(log))
	r.Use(middleware.CORS(cfg.CORSAllowedOrigins))
	r.Use(middleware.Metrics())

	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))
	if memStore != nil {
		r.GET("/objects/*key", gin.WrapH(memStore))
	}

	api := r.Group("/api")
	admin := api.Group("/")
	admin.Use(middleware.JWTAuth(j), middleware.AdminOnly())

	accountHandler.RegisterRoutes(api, admin)
	ingestHandler.RegisterRoutes(api, admin)
	ingestHandler.RegisterWebSocket(r)

	registerSync(r, cfg, j, log)

	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		log.Info().Str("port", cfg.Port).Str("storage", cfg.StorageDriver).Msg("server starting")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal().Err(err).Msg("server failed")
		}
	}()

	<-ctx.Done()
	log.Info().Msg("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("graceful shutdown failed")
	}
}

// newStore returns the configured object store. The memory store is also
// returned on its own so its signed downloads can be served.
func newStore(ctx context.Context, cfg *config.Config, log zerolog.Logger) (storage.Store, *storage.MemoryStore, error) {
	if cfg.StorageDriver == config.StorageMemory {
		log.Warn().Str("base_url", cfg.MemoryStoreBaseURL).Msg("using in-memory object storage")
		mem := storage.NewMemoryStore(cfg.MemoryStoreBaseURL)
		return mem, mem, nil
	}

	s3Store, err := storage.NewS3Store(ctx, storage.S3Config{
		Bucket:          cfg.S3Bucket,
		Region:          cfg.S3Region,
		Endpoint:        cfg.S3Endpoint,
		AccessKeyID:     cfg.AWSAccessKeyID,
		SecretAccessKey: cfg.AWSSecretAccessKey,
	}, log)
	if err != nil {
		return nil, nil, err
	}
	return s3Store, nil, nil
}

// registerSync mounts the file-sync routes when Dropbox credentials are
// present. Machines authenticate with SYNC_API_TOKEN; without it the routes
// need an admin token.
func registerSync(r *gin.Engine, cfg *config.Config, j *jwtsvc.Service, log zerolog.Logger) {
	dbxCfg := filesync.DropboxConfig{
		AppKey:       cfg.DropboxAppKey,
		AppSecret:    cfg.DropboxAppSecret,
		RefreshToken: cfg.DropboxRefreshToken,
		AccessToken:  cfg.DropboxAccessToken,
	}
	if !dbxCfg.Enabled() {
		log.Warn().Msg("dropbox credentials missing, file sync routes disabled")
		return
	}

	backend, err := filesync.NewDropbox(dbxCfg, log)
	if err != nil {
		log.Warn().Err(err).Msg("dropbox client init failed, file sync routes disabled")
		return
	}

	group := r.Group("/")
	if cfg.SyncAPIToken != "" {
		group.Use(middleware.InternalTokenAuth(cfg.SyncAPIToken, cfg.SyncAllowedIPs, log))
	} else {
		group.Use(middleware.JWTAuth(j), middleware.RequireRole(domain.RoleAdmin))
	}
	syncfolder.NewHandler(backend, log).RegisterRoutes(group)
}
