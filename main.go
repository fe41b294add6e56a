package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/go-redis/redis/v8"
	"go.uber.org/zap"
	"google.golang.org/grpc"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"github.com/example/cardio-risk/internal/config"
	"github.com/example/cardio-risk/internal/grpcserver"
	"github.com/example/cardio-risk/internal/handlers"
	"github.com/example/cardio-risk/internal/logging"
	"github.com/example/cardio-risk/internal/model"
	"github.com/example/cardio-risk/internal/repository"
	"github.com/example/cardio-risk/internal/usecase"
)

func main() {
	configPath := flag.String("config", "", "path to the YAML configuration file")
	importScaler := flag.String("import-scaler", "", "store this scaler export in the artifact database and exit")
	importModel := flag.String("import-model", "", "store this classifier export in the artifact database and exit")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "unable to load configuration: %v\n", err)
		os.Exit(1)
	}

	logger, err := logging.NewLogger(logging.Options{
		Level:      cfg.Logger.Level,
		File:       cfg.Logger.File,
		MaxSizeMB:  cfg.Logger.MaxSizeMB,
		MaxBackups: cfg.Logger.MaxBackups,
		MaxAgeDays: cfg.Logger.MaxAgeDays,
	})
	if err != nil {
		panic(err)
	}
	defer logger.Sync() //nolint:errcheck

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if *importScaler != "" || *importModel != "" {
		if err := importArtifacts(ctx, cfg, logger, *importScaler, *importModel); err != nil {
			logger.Fatal("artifact import failed", zap.Error(err))
		}
		return
	}

	source := initArtifactSource(ctx, cfg, logger)
	artifacts, err := model.LoadArtifacts(ctx, source)
	if err != nil {
		logger.Fatal("failed to load artifacts", zap.Error(err))
	}
	logger.Info("artifacts loaded",
		zap.String("source", cfg.Artifacts.Source),
		zap.String("fingerprint", artifacts.Fingerprint()),
	)

	cache := initCache(ctx, cfg.Cache, logger)
	uc := usecase.NewPredictionUseCase(artifacts, cache, cfg.Cache.TTL, logger)

	if cfg.Server.GRPCAddress != "" {
		grpcServer := grpcserver.New(uc, logger)
		lis, err := net.Listen("tcp", cfg.Server.GRPCAddress)
		if err != nil {
			logger.Fatal("failed to listen for grpc", zap.Error(err))
		}
		go func() {
			logger.Info("gRPC server listening", zap.String("addr", cfg.Server.GRPCAddress))
			if err := grpcServer.Serve(lis); err != nil && !errors.Is(err, grpc.ErrServerStopped) {
				logger.Error("grpc server failed", zap.Error(err))
			}
		}()
		defer grpcServer.GracefulStop()
	}

	gin.SetMode(gin.ReleaseMode)
	r := gin.New()
	r.Use(gin.Recovery(), handlers.RequestLogger(logger))
	handlers.RegisterRoutes(r, uc)

	server := &http.Server{
		Addr:              cfg.Server.Address,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	logger.Info("HTTP server listening", zap.String("addr", cfg.Server.Address))
	if err := serveHTTPServer(server, cfg.Server.ShutdownTimeout, logger); err != nil {
		logger.Fatal("server failed", zap.Error(err))
	}
}

func initArtifactSource(ctx context.Context, cfg *config.Config, logger *zap.Logger) model.Source {
	if cfg.Artifacts.Source != config.SourceDatabase {
		return model.FileSource{ScalerPath: cfg.Artifacts.ScalerPath, ModelPath: cfg.Artifacts.ModelPath}
	}
	return initArtifactRepository(ctx, cfg.Artifacts.Database, logger)
}

func initArtifactRepository(ctx context.Context, cfg config.DatabaseConfig, logger *zap.Logger) *repository.ArtifactRepository {
	db := initDatabase(ctx, cfg.Driver, cfg.DSN, logger)
	repo := repository.NewArtifactRepository(db, logger, cfg.ScalerName, cfg.ModelName)
	if err := repo.AutoMigrate(ctx); err != nil {
		logger.Fatal("auto migrate failed", zap.Error(err))
	}
	return repo
}

func initDatabase(ctx context.Context, driver, dsn string, zapLogger *zap.Logger) *gorm.DB {
	dialector, err := repository.Dialector(driver, dsn)
	if err != nil {
		zapLogger.Fatal("invalid database driver", zap.Error(err))
	}
	db, err := gorm.Open(dialector, &gorm.Config{Logger: gormlogger.Default.LogMode(gormlogger.Warn)})
	if err != nil {
		zapLogger.Fatal("failed to connect to database", zap.Error(err))
	}

	sqlDB, err := db.DB()
	if err != nil {
		zapLogger.Fatal("failed to access db handle", zap.Error(err))
	}
	sqlDB.SetMaxIdleConns(2)
	sqlDB.SetMaxOpenConns(4)
	sqlDB.SetConnMaxLifetime(time.Hour)

	if err := sqlDB.PingContext(ctx); err != nil {
		zapLogger.Fatal("database ping failed", zap.Error(err))
	}
	return db
}

func initCache(ctx context.Context, cfg config.CacheConfig, logger *zap.Logger) usecase.Cache {
	switch cfg.Type {
	case config.CacheRedis:
		redisCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
		defer cancel()
		client := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr})
		if err := client.Ping(redisCtx).Err(); err != nil {
			logger.Fatal("redis connection failed", zap.Error(err))
		}
		return usecase.NewRedisCache(client)
	case config.CacheLRU:
		cache, err := usecase.NewLRUCache(cfg.Size)
		if err != nil {
			logger.Fatal("failed to build lru cache", zap.Error(err))
		}
		return cache
	default:
		return usecase.NoopCache{}
	}
}

// importArtifacts validates the exports before storing them so the service
// can never start on a blob it cannot decode.
func importArtifacts(ctx context.Context, cfg *config.Config, logger *zap.Logger, scalerPath, modelPath string) error {
	if cfg.Artifacts.Source != config.SourceDatabase {
		return errors.New("artifact import requires artifacts.source=database")
	}
	repo := initArtifactRepository(ctx, cfg.Artifacts.Database, logger)

	if scalerPath != "" {
		blob, err := os.ReadFile(scalerPath)
		if err != nil {
			return err
		}
		if _, err := model.ParseScaler(blob); err != nil {
			return err
		}
		saved, err := repo.Save(ctx, cfg.Artifacts.Database.ScalerName, model.KindScaler, blob)
		if err != nil {
			return err
		}
		logger.Info("scaler imported", zap.String("name", saved.Name), zap.Int("version", saved.Version))
	}
	if modelPath != "" {
		blob, err := os.ReadFile(modelPath)
		if err != nil {
			return err
		}
		if _, err := model.ParseClassifier(blob); err != nil {
			return err
		}
		saved, err := repo.Save(ctx, cfg.Artifacts.Database.ModelName, model.KindClassifier, blob)
		if err != nil {
			return err
		}
		logger.Info("classifier imported", zap.String("name", saved.Name), zap.Int("version", saved.Version))
	}
	return nil
}

func serveHTTPServer(server *http.Server, shutdownTimeout time.Duration, logger *zap.Logger) error {
	return serveHTTPServerWithOptions(server, shutdownTimeout, logger, nil, nil)
}

func serveHTTPServerWithOptions(server *http.Server, shutdownTimeout time.Duration, logger *zap.Logger, listener net.Listener, signalCh <-chan os.Signal) error {
	errCh := make(chan error, 1)
	go func() {
		var err error
		if listener != nil {
			err = server.Serve(listener)
		} else {
			err = server.ListenAndServe()
		}
		if errors.Is(err, http.ErrServerClosed) {
			err = nil
		}
		errCh <- err
	}()

	var (
		sigCh       <-chan os.Signal
		stopSignals func()
	)

	if signalCh != nil {
		sigCh = signalCh
		stopSignals = func() {}
	} else {
		ch := make(chan os.Signal, 1)
		signal.Notify(ch, os.Interrupt, syscall.SIGTERM)
		sigCh = ch
		stopSignals = func() {
			signal.Stop(ch)
		}
	}
	defer stopSignals()

	select {
	case err := <-errCh:
		return err
	case sig, ok := <-sigCh:
		if !ok {
			return <-errCh
		}
		logger.Info("received shutdown signal", zap.String("signal", sig.String()))
		ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := server.Shutdown(ctx); err != nil && !errors.Is(err, context.Canceled) {
			return err
		}
		return <-errCh
	}
}
