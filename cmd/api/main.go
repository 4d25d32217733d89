// server/cmd/api/main.go
package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"ecotrack-api-server/config"
	"ecotrack-api-server/internal/api/routes"
	"ecotrack-api-server/internal/auth"
	"ecotrack-api-server/internal/database"
	"ecotrack-api-server/internal/events"
	"ecotrack-api-server/internal/s3"
	"ecotrack-api-server/internal/socket"
	"ecotrack-api-server/internal/store"
	"ecotrack-api-server/internal/store/memstore"
	"ecotrack-api-server/internal/store/mongostore"
	"ecotrack-api-server/internal/upload"

	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

func main() {
	if err := run(); err != nil {
		log.Fatal().Err(err).Msg("startup failed")
	}
}

func run() error {
	// .env là tùy chọn; biến môi trường thật vẫn được ưu tiên.
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("load .env: %w", err)
	}

	// 1. Load configuration
	cfg, err := config.LoadConfig("./config")
	if err != nil {
		return fmt.Errorf("could not load config: %w", err)
	}
	setupLogger(cfg.Log)
	gin.SetMode(cfg.Server.Mode)

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	// 2. Storage
	st, closeStore, err := openStore(ctx, cfg)
	if err != nil {
		return err
	}
	defer closeStore()

	if err := database.Seed(ctx, st, cfg.Seed); err != nil {
		return fmt.Errorf("seed database: %w", err)
	}

	// 3. Event bus, Redis relay nếu được cấu hình
	var relay events.Relay
	if cfg.Redis.Addr != "" {
		redisRelay, err := events.NewRedisRelay(ctx, cfg.Redis)
		if err != nil {
			return err
		}
		defer redisRelay.Close()
		relay = redisRelay
		log.Info().Str("addr", cfg.Redis.Addr).Str("channel", redisRelay.Channel()).Msg("events relayed through Redis")
	}
	bus := events.NewBus(relay)

	wsHub := socket.NewHub()
	bus.Attach(wsHub)
	go func() {
		if err := bus.Run(ctx); err != nil {
			log.Error().Err(err).Msg("event bus stopped")
		}
	}()

	// 4. Upload storage: S3 khi có bucket, ngược lại ghi ra đĩa
	var storage upload.Storage
	serveLocal := cfg.S3.Bucket == ""
	if serveLocal {
		storage = &upload.LocalStorage{Dir: cfg.Upload.LocalDir, BaseURL: cfg.Upload.BaseURL}
		log.Info().Str("dir", cfg.Upload.LocalDir).Msg("uploads stored on local disk")
	} else {
		s3Uploader, err := s3.NewUploader(ctx, cfg.S3)
		if err != nil {
			return err
		}
		storage = s3Uploader
	}

	expiration, err := cfg.JWTExpiration()
	if err != nil {
		return err
	}
	secret := cfg.JWT.Secret
	if secret == "" {
		log.Warn().Msg("jwt.secret is empty, using an insecure development secret")
		secret = "ecotrack-dev-secret"
	}

	// 5. Truyền tất cả các thành phần cần thiết vào router
	router, err := routes.SetupRouter(ctx, routes.Dependencies{
		Config:            cfg,
		Store:             st,
		Tokens:            auth.NewTokenManager(secret, expiration),
		Events:            bus,
		Hub:               wsHub,
		Uploads:           upload.NewService(storage, cfg.Upload.MaxBytes),
		ServeLocalUploads: serveLocal,
	})
	if err != nil {
		return err
	}

	srv := &http.Server{
		Addr:    ":" + cfg.Server.Port,
		Handler: router,
	}

	// 6. Start server
	go func() {
		log.Info().Str("port", cfg.Server.Port).Str("storage", cfg.Storage.Driver).Msg("starting API server")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error().Err(err).Msg("server error")
			cancel()
		}
	}()

	<-ctx.Done()
	log.Info().Msg("shutting down")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer shutdownCancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}

	log.Info().Msg("stopped")
	return nil
}

func setupLogger(cfg config.LogConfig) {
	level, err := zerolog.ParseLevel(cfg.Level)
	if err != nil || cfg.Level == "" {
		level = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(level)

	if cfg.Pretty {
		log.Logger = zerolog.New(zerolog.ConsoleWriter{Out: os.Stdout}).With().Timestamp().Logger()
	} else {
		log.Logger = zerolog.New(os.Stdout).With().Timestamp().Logger()
	}
}

func openStore(ctx context.Context, cfg config.Config) (store.Store, func(), error) {
	if cfg.Storage.Driver == "memory" {
		log.Warn().Msg("using in-memory storage, data is lost on restart")
		return memstore.New(), func() {}, nil
	}

	client, err := database.Connect(ctx, cfg.Mongo)
	if err != nil {
		return nil, nil, err
	}
	db := client.Database(cfg.Mongo.DBName)
	if err := mongostore.EnsureIndexes(ctx, db); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, nil, err
	}

	closeFn := func() {
		if err := client.Disconnect(context.Background()); err != nil {
			log.Error().Err(err).Msg("disconnect mongo")
		}
	}
	return mongostore.New(db), closeFn, nil
}
