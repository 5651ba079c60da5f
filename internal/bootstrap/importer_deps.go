// Package bootstrap wires configuration, backing stores, adapters and
// services into a running API.
package bootstrap

import (
	"context"
	"strings"
	"time"

	"drive_import_server/adapter/out/blobstore"
	"drive_import_server/adapter/out/catalog"
	"drive_import_server/adapter/out/drive"
	"drive_import_server/adapter/out/mongodb"
	"drive_import_server/adapter/out/persistence"
	"drive_import_server/adapter/out/redislock"
	"drive_import_server/config"
	"drive_import_server/core/domain"
	"drive_import_server/core/port/out"
	"drive_import_server/core/service/auth"
	"drive_import_server/core/service/imports"
	"drive_import_server/infra/database"
	"drive_import_server/pkg/httputil"
	"drive_import_server/pkg/logger"
	"drive_import_server/pkg/metrics"

	"github.com/jackc/pgx/v5/pgxpool"
	_ "github.com/jackc/pgx/v5/stdlib" // pgx driver for database/sql
	"github.com/jmoiron/sqlx"
	"github.com/redis/go-redis/v9"
	"go.mongodb.org/mongo-driver/mongo"
)

type Dependencies struct {
	Config  *config.Config
	DB      *pgxpool.Pool
	SQLDB   *sqlx.DB
	Redis   *redis.Client
	MongoDB *mongo.Client

	// Adapters
	BlobStore   out.BlobStore
	TokenRepo   out.TokenRepository
	DrivePort   out.DrivePort
	CatalogPort out.CatalogPort
	ImportLock  out.ImportLock
	HistoryRepo out.ImportHistoryRepository
	ReportRepo  out.ImportReportRepository

	// Services
	TokenService  *auth.TokenManager
	ImportService *imports.Orchestrator
}

func NewDependencies(cfg *config.Config) (*Dependencies, func(), error) {
	deps := &Dependencies{Config: cfg}
	var cleanups []func()
	cleanup := func() {
		for i := len(cleanups) - 1; i >= 0; i-- {
			cleanups[i]()
		}
	}

	// Postgres (pgxpool + sqlx for the audit trail)
	if cfg.DatabaseURL != "" {
		db, err := database.NewPostgres(cfg.DatabaseURL)
		if err != nil {
			logger.Warn("Postgres connection failed, audit trail disabled: %v", err)
		} else {
			deps.DB = db
			cleanups = append(cleanups, func() { db.Close() })

			sqlxURL := cfg.DatabaseURL
			if strings.Contains(sqlxURL, "?") {
				sqlxURL += "&default_query_exec_mode=simple_protocol"
			} else {
				sqlxURL += "?default_query_exec_mode=simple_protocol"
			}
			sqlDB, err := sqlx.Connect("pgx", sqlxURL)
			if err != nil {
				logger.Warn("sqlx connection failed, audit trail disabled: %v", err)
			} else {
				sqlDB.SetMaxOpenConns(25)
				sqlDB.SetMaxIdleConns(10)
				sqlDB.SetConnMaxLifetime(30 * time.Minute)
				sqlDB.SetConnMaxIdleTime(5 * time.Minute)
				deps.SQLDB = sqlDB
				cleanups = append(cleanups, func() { sqlDB.Close() })
				metrics.RegisterPool("postgres", sqlDB.DB)

				history := persistence.NewHistoryAdapter(sqlDB)
				if err := history.EnsureSchema(context.Background()); err != nil {
					logger.WithError(err).Warn("failed to ensure import_history schema")
				}
				deps.HistoryRepo = history
			}
		}
	}

	// Redis backs the per-tenant import lock and is not optional:
	// without it overlapping runs cannot be rejected.
	redisClient, err := database.NewRedis(cfg.RedisURL)
	if err != nil {
		cleanup()
		return nil, nil, err
	}
	deps.Redis = redisClient
	cleanups = append(cleanups, func() { redisClient.Close() })
	deps.ImportLock = redislock.NewLock(redisClient)

	// MongoDB (run reports)
	if cfg.MongoDBURL != "" {
		mongoClient, err := mongodb.NewClient(cfg.MongoDBURL)
		if err != nil {
			logger.Warn("MongoDB connection failed, run reports disabled: %v", err)
		} else {
			deps.MongoDB = mongoClient
			cleanups = append(cleanups, func() {
				mongoClient.Disconnect(context.Background())
			})

			reports := mongodb.NewReportAdapter(mongoClient.Database(cfg.MongoDBName), cfg.ReportTTL)
			if err := reports.EnsureIndexes(context.Background()); err != nil {
				logger.WithError(err).Warn("failed to ensure report indexes")
			}
			deps.ReportRepo = reports
		}
	}

	// Blob store and OAuth state
	deps.BlobStore = blobstore.NewClient(cfg.BlobStoreURL, nil)
	deps.TokenRepo = persistence.NewTokenAdapter(deps.BlobStore)

	// Token lifecycle
	defaults := &domain.Credentials{
		ClientID:     cfg.GoogleClientID,
		ClientSecret: cfg.GoogleClientSecret,
		AuthURI:      cfg.GoogleAuthURI,
		TokenURI:     cfg.GoogleTokenURI,
	}
	deps.TokenService = auth.NewTokenManager(deps.TokenRepo, defaults, cfg.GoogleRevokeURI, cfg.OAuthRedirectURL,
		auth.WithHTTPClient(httputil.IdentityClient()))

	// Outbound adapters
	deps.DrivePort = drive.NewAdapter(deps.TokenService)
	deps.CatalogPort = catalog.NewAdapter(cfg.CatalogBaseURL, nil)

	// Import pipeline
	updater := imports.NewCatalogUpdater(deps.CatalogPort, cfg.SkuUpdateWorkers)
	deps.ImportService = imports.NewOrchestrator(
		deps.DrivePort,
		updater,
		deps.TokenRepo,
		deps.ImportLock,
		deps.HistoryRepo,
		deps.ReportRepo,
		imports.OrchestratorConfig{
			LockTTL:            cfg.ImportLockTTL,
			WatchRenewalWindow: cfg.WatchRenewalWindow,
			WatchLifetime:      cfg.WatchLifetime,
		},
	)

	return deps, cleanup, nil
}
