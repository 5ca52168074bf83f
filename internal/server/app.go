package server

import (
	"context"
	"errors"
	"fmt"

	"github.com/gin-gonic/gin"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"

	"github.com/aura-webinar/eventdesk/config"
	"github.com/aura-webinar/eventdesk/internal/auth"
	"github.com/aura-webinar/eventdesk/internal/checkin"
	"github.com/aura-webinar/eventdesk/internal/codes"
	"github.com/aura-webinar/eventdesk/internal/forms"
	"github.com/aura-webinar/eventdesk/internal/realtime"
	"github.com/aura-webinar/eventdesk/internal/registrations"
	"github.com/aura-webinar/eventdesk/internal/worker"
	"github.com/aura-webinar/eventdesk/pkg/database"
	"github.com/aura-webinar/eventdesk/pkg/queue"
	"github.com/aura-webinar/eventdesk/pkg/redis"
	"github.com/aura-webinar/eventdesk/pkg/storage"
	"github.com/aura-webinar/eventdesk/pkg/utils"
)

// Stores holds the persistence layer selected by STORAGE_DRIVER.
type Stores struct {
	Forms         forms.Store
	Registrations registrations.Store
	pool          *pgxpool.Pool
}

// OpenStores connects the configured storage driver and applies migrations.
func OpenStores(ctx context.Context, cfg *config.Config, logger *zap.Logger) (*Stores, error) {
	if cfg.Storage.Driver == config.DriverMemory {
		formStore := forms.NewInMemory()
		logger.Warn("using in-memory storage; data is lost on restart")
		return &Stores{Forms: formStore, Registrations: registrations.NewInMemory(formStore)}, nil
	}

	pool, err := database.NewPostgresPool(ctx, database.PoolConfig{
		DSN:      cfg.Database.DSN(),
		MaxConns: int32(cfg.Database.MaxConns),
	}, logger)
	if err != nil {
		return nil, fmt.Errorf("database: %w", err)
	}
	if err := database.Migrate(ctx, pool, logger); err != nil {
		pool.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}
	return &Stores{
		Forms:         forms.NewRepository(pool),
		Registrations: registrations.NewRepository(pool),
		pool:          pool,
	}, nil
}

// Close releases the database pool, if any.
func (s *Stores) Close() {
	if s.pool != nil {
		s.pool.Close()
	}
}

// App is the assembled API server.
type App struct {
	Router *gin.Engine
	// Archiver is set when QR archiving is enabled and WORKER_IN_PROCESS is on.
	Archiver *worker.CodeArchiver
	closers  []func()
}

// New wires stores, services and handlers from cfg.
func New(ctx context.Context, cfg *config.Config, logger *zap.Logger) (*App, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	app := &App{}

	stores, err := OpenStores(ctx, cfg, logger)
	if err != nil {
		return nil, err
	}
	app.closers = append(app.closers, stores.Close)

	codeSvc, err := codes.NewService(cfg.Codes.VerifyBaseURL, cfg.Codes.QRSize)
	if err != nil {
		app.Close()
		return nil, err
	}

	var rdb *redis.Client
	if cfg.Redis.Addr != "" {
		rdb, err = redis.NewClient(ctx, cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB, logger)
		if err != nil {
			app.Close()
			return nil, err
		}
		app.closers = append(app.closers, func() { _ = rdb.Close() })
	}

	var s3Client *storage.S3
	if cfg.AWS.CodesBucket != "" {
		s3Client, err = storage.NewS3(ctx, s3Config(cfg), logger)
		if err != nil {
			logger.Warn("s3 disabled", zap.Error(err))
			s3Client = nil
		}
	}

	// Interface values stay nil unless the backing client exists.
	var (
		archive   registrations.ArchiveQueue
		presigner registrations.Presigner
		jobs      *queue.Queue
	)
	if rdb != nil && s3Client != nil {
		jobs = queue.NewQueue(rdb.Client, logger)
		archive = jobs
	}
	if s3Client != nil {
		presigner = s3Client
	}

	var hub *realtime.Hub
	if rdb != nil {
		bus := realtime.NewRedisPubSub(rdb.Client, logger)
		hub = realtime.NewHub(logger, bus, bus)
	} else {
		hub = realtime.NewHub(logger, nil, nil)
	}

	creds, err := adminCredentials(cfg.Admin, logger)
	if err != nil {
		app.Close()
		return nil, err
	}
	jwtService := auth.NewJWTService(cfg.Admin.JWTSecret, cfg.Admin.SessionHours)
	gate := auth.SessionGate{}

	formSvc := forms.NewService(stores.Forms, stores.Registrations, gate, logger)
	regSvc := registrations.NewService(stores.Registrations, formSvc, codeSvc, gate, archive, presigner, logger)
	checkinSvc := checkin.NewService(stores.Registrations, codeSvc, gate, hub, logger)

	app.Router = NewRouter(Handlers{
		Auth:          auth.NewHandler(creds, jwtService, gate, cfg.Admin.SecureCookie, logger),
		Forms:         forms.NewHandler(formSvc, logger),
		Registrations: registrations.NewHandler(regSvc, logger),
		CheckIn:       checkin.NewHandler(checkinSvc, logger),
		Hub:           hub,
	}, Options{
		JWT:                jwtService,
		Gate:               gate,
		CORSAllowedOrigins: cfg.Server.CORSAllowedOrigins,
		Logger:             logger,
	})

	if jobs != nil && cfg.Worker.InProcess {
		app.Archiver = worker.NewCodeArchiver(stores.Registrations, codeSvc, s3Client, jobs, logger)
	}
	if archive == nil {
		logger.Info("QR archiving disabled (needs REDIS_ADDR and AWS_S3_CODES_BUCKET)")
	}
	return app, nil
}

// Close releases every connection the app opened, newest first.
func (a *App) Close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		a.closers[i]()
	}
	a.closers = nil
}

func s3Config(cfg *config.Config) storage.S3Config {
	return storage.S3Config{
		Region:               cfg.AWS.Region,
		AccessKeyID:          cfg.AWS.AccessKeyID,
		SecretAccessKey:      cfg.AWS.SecretAccessKey,
		CodesBucket:          cfg.AWS.CodesBucket,
		Endpoint:             cfg.AWS.S3Endpoint,
		PresignExpireMinutes: cfg.AWS.PresignExpireMinutes,
	}
}

// adminCredentials prefers the configured bcrypt hash and hashes the plaintext
// development password otherwise. With neither set, every login is rejected.
func adminCredentials(cfg config.AdminConfig, logger *zap.Logger) (auth.Credentials, error) {
	creds := auth.Credentials{Username: cfg.Username, PasswordHash: cfg.PasswordHash}
	if creds.PasswordHash != "" {
		return creds, nil
	}
	if cfg.Password == "" {
		logger.Warn("no admin password configured; admin login is disabled")
		return creds, nil
	}
	hash, err := utils.HashPassword(cfg.Password)
	if err != nil {
		return creds, fmt.Errorf("hash admin password: %w", err)
	}
	logger.Warn("using plaintext ADMIN_PASSWORD; set ADMIN_PASSWORD_HASH in production")
	creds.PasswordHash = hash
	return creds, nil
}

// NewArchiver wires a standalone code archive worker. It needs shared storage,
// Redis and S3, so it refuses the in-memory driver.
func NewArchiver(ctx context.Context, cfg *config.Config, logger *zap.Logger) (*worker.CodeArchiver, func(), error) {
	if cfg.Storage.Driver != config.DriverPostgres {
		return nil, nil, errors.New("worker requires STORAGE_DRIVER=postgres")
	}
	if !cfg.ArchiveEnabled() {
		return nil, nil, errors.New("worker requires REDIS_ADDR and AWS_S3_CODES_BUCKET")
	}
	stores, err := OpenStores(ctx, cfg, logger)
	if err != nil {
		return nil, nil, err
	}
	rdb, err := redis.NewClient(ctx, cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB, logger)
	if err != nil {
		stores.Close()
		return nil, nil, err
	}
	closeAll := func() {
		_ = rdb.Close()
		stores.Close()
	}
	s3Client, err := storage.NewS3(ctx, s3Config(cfg), logger)
	if err != nil {
		closeAll()
		return nil, nil, err
	}
	codeSvc, err := codes.NewService(cfg.Codes.VerifyBaseURL, cfg.Codes.QRSize)
	if err != nil {
		closeAll()
		return nil, nil, err
	}
	archiver := worker.NewCodeArchiver(stores.Registrations, codeSvc, s3Client, queue.NewQueue(rdb.Client, logger), logger)
	return archiver, closeAll, nil
}
