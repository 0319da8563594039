// Command tl-server starts the trustlend gRPC server.
package main

import (
	"context"
	"errors"
	"fmt"
	"net"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/spf13/pflag"
	"go.uber.org/zap"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/reflection"

	"github.com/and161185/trustlend/internal/config"
	"github.com/and161185/trustlend/internal/limiter"
	"github.com/and161185/trustlend/internal/migrate"
	"github.com/and161185/trustlend/internal/repository"
	"github.com/and161185/trustlend/internal/repository/memory"
	"github.com/and161185/trustlend/internal/repository/postgres"
	grpcserver "github.com/and161185/trustlend/internal/server/grpc"
	"github.com/and161185/trustlend/internal/service"
)

var (
	version   = "dev"
	buildDate = "unknown"
)

func main() {
	fs := pflag.NewFlagSet("tl-server", pflag.ExitOnError)
	config.Flags(fs)
	_ = fs.Parse(os.Args[1:])

	cfg, err := config.Load(fs)
	if err != nil {
		fmt.Fprintln(os.Stderr, "config:", err)
		os.Exit(2)
	}

	logger, err := newLogger(cfg.Dev)
	if err != nil {
		fmt.Fprintln(os.Stderr, "logger:", err)
		os.Exit(1)
	}
	defer func() { _ = logger.Sync() }()
	logger.Info("starting",
		zap.String("version", version),
		zap.String("buildDate", buildDate),
		zap.String("addr", cfg.Addr),
		zap.String("store", cfg.Store),
	)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, logger); err != nil {
		logger.Error("server error", zap.Error(err))
		os.Exit(1)
	}
	logger.Info("shutdown complete")
}

func newLogger(dev bool) (*zap.Logger, error) {
	if dev {
		return zap.NewDevelopment()
	}
	return zap.NewProduction()
}

// backend opens the configured store and the matching login limiter.
func backend(ctx context.Context, cfg config.Config, logger *zap.Logger) (repository.Repos, limiter.Limiter, func(), error) {
	if cfg.Store == config.StoreMemory {
		return memory.New().Repos(), limiter.NewMemory(cfg.Limiter), func() {}, nil
	}

	version, err := migrate.Up(ctx, cfg.DSN)
	if err != nil {
		return repository.Repos{}, nil, nil, fmt.Errorf("migrate up: %w", err)
	}
	logger.Info("schema migrated", zap.Int64("version", version))
	pool, err := pgxpool.New(ctx, cfg.DSN)
	if err != nil {
		return repository.Repos{}, nil, nil, fmt.Errorf("pgxpool: %w", err)
	}
	db := &postgres.DB{Pool: pool}
	return db.Repos(), limiter.NewPostgres(pool, cfg.Limiter), pool.Close, nil
}

func run(ctx context.Context, cfg config.Config, logger *zap.Logger) error {
	repos, lim, closeStore, err := backend(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer closeStore()

	eng := service.NewEngine(repos, service.AuthConfig{
		SignKey:   []byte(cfg.JWTKey),
		AccessTTL: cfg.AccessTTL,
		Limiter:   lim,
	}, logger)

	opts := []grpc.ServerOption{
		grpc.ChainUnaryInterceptor(
			grpcserver.RecoverUnary(logger),
			grpcserver.AuthUnary([]byte(cfg.JWTKey)),
			grpcserver.LoggingUnary(logger),
		),
	}
	if cfg.TLS() {
		creds, err := credentials.NewServerTLSFromFile(cfg.TLSCert, cfg.TLSKey)
		if err != nil {
			return fmt.Errorf("load TLS cert/key: %w", err)
		}
		opts = append(opts, grpc.Creds(creds))
	} else {
		logger.Warn("TLS disabled; serving plaintext")
	}
	s := grpc.NewServer(opts...)

	grpcserver.RegisterLendingServer(s, grpcserver.New(grpcserver.Services{
		Auth:    eng.Auth,
		Trust:   eng.Trust,
		Catalog: eng.Catalog,
		Vis:     eng.Vis,
		Loans:   eng.Loans,
		Access:  eng.Access,
	}, logger))

	hs := health.NewServer()
	healthpb.RegisterHealthServer(s, hs)
	hs.SetServingStatus(grpcserver.ServiceName, healthpb.HealthCheckResponse_SERVING)
	if cfg.Dev {
		reflection.Register(s)
	}

	lis, err := net.Listen("tcp", cfg.Addr)
	if err != nil {
		return fmt.Errorf("listen: %w", err)
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("listening", zap.String("addr", lis.Addr().String()), zap.Bool("tls", cfg.TLS()))
		errCh <- s.Serve(lis)
	}()

	select {
	case <-ctx.Done():
		hs.Shutdown()
		done := make(chan struct{})
		go func() {
			s.GracefulStop()
			close(done)
		}()
		select {
		case <-done:
		case <-time.After(5 * time.Second):
			s.Stop()
		}
		return nil
	case err := <-errCh:
		if errors.Is(err, grpc.ErrServerStopped) {
			return nil
		}
		return err
	}
}
