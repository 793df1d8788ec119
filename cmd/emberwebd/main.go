// Command emberwebd is the standalone daemon wrapping the emberweb
// embedding library: it loads configuration, opens a Server against a
// document root and auth/route file, and serves until an interrupt or
// terminate signal arrives.
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"

	"github.com/aras-services/emberweb"
	"github.com/aras-services/emberweb/config"
	"github.com/aras-services/emberweb/internal/auth"
	"github.com/aras-services/emberweb/internal/reqstate"
	"github.com/aras-services/emberweb/internal/server"
)

var (
	version   = "0.1.0"
	buildTime = "unknown"
	gitCommit = "unknown"
)

func printVersion() {
	fmt.Printf("emberwebd version %s\n", version)
	if buildTime != "unknown" {
		fmt.Printf("Build Time: %s\n", buildTime)
	}
	if gitCommit != "unknown" {
		fmt.Printf("Git Commit: %s\n", gitCommit)
	}
	os.Exit(0)
}

func main() {
	configPath := flag.String("config", "", "path to a YAML config file")
	showVersion := flag.Bool("version", false, "print version and exit")
	flag.Parse()
	if *showVersion {
		printVersion()
	}

	// PHASE 1: Configuration and Infrastructure Setup
	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	// PHASE 2: Structured Logger Initialization
	logger, err := zap.NewProduction()
	if err != nil {
		log.Fatalf("failed to initialize logger: %v", err)
	}
	defer logger.Sync()

	// PHASE 3: Server Construction
	opts := []emberweb.Option{
		emberweb.WithLogger(logger),
		emberweb.WithServerConfig(server.Config{
			IdleTimeout:     cfg.Server.IdleTimeout,
			RequestDeadline: cfg.Server.RequestDeadline,
			Limits: reqstate.Limits{
				MaxContentLength: cfg.Limits.MaxContentLength,
				MaxHeaderLine:    cfg.Limits.MaxHeaderLine,
				MaxHeaderCount:   cfg.Limits.MaxHeaderCount,
			},
		}),
		emberweb.WithDefaultDocument("index.html"),
	}
	if cfg.Storage.ReadOnly {
		opts = append(opts, emberweb.WithReadOnly())
	}
	if cfg.Auth.BasicRealm != "" {
		opts = append(opts, emberweb.WithBasicRealm(cfg.Auth.BasicRealm))
	}
	if cfg.Auth.DigestRealm != "" {
		opts = append(opts, emberweb.WithDigestRealm(cfg.Auth.DigestRealm))
	}
	if cfg.Auth.FormLoginPage != "" {
		opts = append(opts, emberweb.WithFormLogin(cfg.Auth.FormLoginPage))
	}
	if cfg.Auth.BearerSecret != "" {
		opts = append(opts, emberweb.WithBearerAuth([]byte(cfg.Auth.BearerSecret), cfg.Auth.BearerIssuer, cfg.Auth.BearerLifetime))
	}
	if cfg.Auth.PostgresDSN != "" {
		pool, err := pgxpool.New(context.Background(), cfg.Auth.PostgresDSN)
		if err != nil {
			logger.Fatal("failed to connect to auth database", zap.Error(err))
		}
		defer pool.Close()
		opts = append(opts, emberweb.WithAuthStore(auth.NewPgStore(pool)))
	}

	srv, err := emberweb.Open(cfg.Storage.DocRoot, cfg.Storage.AuthFile, opts...)
	if err != nil {
		logger.Fatal("failed to open emberweb server", zap.Error(err))
	}

	if err := srv.Listen(cfg.Addr()); err != nil {
		logger.Fatal("failed to bind listener", zap.Error(err))
	}

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		if err := srv.ServeEvents(ctx); err != nil {
			logger.Error("serve loop exited with error", zap.Error(err))
		}
	}()
	logger.Info("emberwebd listening", zap.String("addr", cfg.Addr()))

	// PHASE 4: Optional Admin API
	var adminSrv *http.Server
	if cfg.Admin.Enabled {
		adminSrv = startAdminAPI(logger, cfg, srv)
	}

	// PHASE 5: Graceful Shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("shutting down emberwebd...")
	cancel()
	if err := srv.Close(); err != nil {
		logger.Error("error during shutdown", zap.Error(err))
	}
	if adminSrv != nil {
		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer shutdownCancel()
		if err := adminSrv.Shutdown(shutdownCtx); err != nil {
			logger.Error("error shutting down admin API", zap.Error(err))
		}
	}
	logger.Info("emberwebd exited")
}

func startAdminAPI(logger *zap.Logger, cfg *config.Config, embedded *emberweb.Server) *http.Server {
	srv := &http.Server{Addr: cfg.Admin.Addr, Handler: embedded.AdminAPI().Handler()}
	go func() {
		logger.Info("admin API listening", zap.String("addr", cfg.Admin.Addr))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("admin API server error", zap.Error(err))
		}
	}()
	return srv
}
