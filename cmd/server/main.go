// Package main starts the MedKeeper API sandbox: a local implementation of
// the clinical records API used to develop and test the client.
package main

import (
	"cmp"
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/atinyakov/MedKeeper/internal/config"
	"github.com/atinyakov/MedKeeper/internal/db"
	"github.com/atinyakov/MedKeeper/internal/logger"
	"github.com/atinyakov/MedKeeper/internal/repository"
	"github.com/atinyakov/MedKeeper/internal/server"
	"github.com/atinyakov/MedKeeper/internal/token"
	"go.uber.org/zap"
)

var (
	// version holds the build version set via ldflags.
	version string
	// buildDate holds the build timestamp set via ldflags.
	buildDate string
)

func main() {
	fmt.Printf("Build version: %s\n", cmp.Or(version, "N/A"))
	fmt.Printf("Build date: %s\n", cmp.Or(buildDate, "N/A"))

	cfg, err := config.LoadSandbox()
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}

	log := logger.New()
	defer func() { _ = log.Log.Sync() }()
	if err := log.Init(cfg.LogLevel); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	zapLogger := log.Log

	var store repository.Store = repository.NewMemoryStore()
	if cfg.DatabaseDSN != "" {
		postgresDB, err := db.InitPostgres(cfg.DatabaseDSN)
		if err != nil {
			zapLogger.Fatal("cannot init database", zap.Error(err))
		}
		defer postgresDB.Close()
		store = repository.NewPostgresStore(postgresDB)
	}

	sb := server.New(store, token.NewJWT(cfg.JWTSecret, cfg.TokenTTL), cfg.UploadDir, zapLogger)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := sb.Seed(ctx, cfg.AdminUsername, cfg.AdminPassword); err != nil {
		zapLogger.Fatal("failed to seed admin", zap.Error(err))
	}

	srv := &http.Server{
		Addr:              cfg.Addr,
		Handler:           sb.Handler,
		ReadHeaderTimeout: 10 * time.Second,
	}
	if cfg.TLSCert != "" {
		srv.TLSConfig, err = server.TLSConfig(cfg.TLSCert, cfg.TLSKey, cfg.TLSClientCA)
		if err != nil {
			zapLogger.Fatal("failed to configure TLS", zap.Error(err))
		}
	}

	errc := make(chan error, 1)
	go func() {
		zapLogger.Info("starting sandbox",
			zap.String("addr", cfg.Addr),
			zap.Bool("tls", srv.TLSConfig != nil),
			zap.Bool("postgres", cfg.DatabaseDSN != ""),
		)
		if srv.TLSConfig != nil {
			errc <- srv.ListenAndServeTLS("", "")
			return
		}
		errc <- srv.ListenAndServe()
	}()

	select {
	case err := <-errc:
		if !errors.Is(err, http.ErrServerClosed) {
			zapLogger.Fatal("server failed", zap.Error(err))
		}
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			zapLogger.Error("graceful shutdown failed", zap.Error(err))
		}
		zapLogger.Info("sandbox stopped")
	}
}
