package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"sigepic.org/internal/audit"
	"sigepic.org/internal/auth"
	"sigepic.org/internal/config"
	"sigepic.org/internal/httpapi"
	"sigepic.org/internal/obs"
	"sigepic.org/internal/store/pg"
)

var (
	version = "1.0.0"
	commit  = "dev"
)

func main() {
	obs.Init()
	obs.InitBuildInfo(version, commit)

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config: %v", err)
	}

	if cfg.PGDSN == "" {
		log.Fatal("SIGEPIC_PG_DSN must be set")
	}
	store, err := pg.Open(cfg.PGDSN)
	if err != nil {
		log.Fatalf("open db: %v", err)
	}

	tokens, err := auth.NewTokenService(cfg.JWTSecret, cfg.JWTRefreshSecret,
		auth.WithAccessTTL(cfg.AccessTTL()),
		auth.WithRefreshTTL(cfg.RefreshTTL()),
	)
	if err != nil {
		log.Fatalf("tokens: %v", err)
	}

	svc, err := auth.NewService(store, tokens,
		auth.WithHasher(auth.NewHasher(cfg.BcryptCost)),
		auth.WithMaxAttempts(cfg.MaxLoginAttempts),
		auth.WithLockoutWindow(cfg.LockoutWindow()),
		auth.WithRecorder(audit.NewRecorder(store)),
	)
	if err != nil {
		log.Fatalf("auth service: %v", err)
	}

	api := httpapi.New(httpapi.ReadyProbe{DB: store.DB()}, version, svc)

	srv := &http.Server{
		Addr:              cfg.Addr,
		Handler:           api.Handler(),
		ReadTimeout:       15 * time.Second,
		ReadHeaderTimeout: 15 * time.Second,
		WriteTimeout:      15 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	log.Printf("Starting sigepic-api %s on %s", version, srv.Addr)
	obs.SetReady(true)

	// graceful shutdown
	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("listen: %v", err)
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)

	<-stop
	log.Println("Shutting down...")
	obs.SetReady(false)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	_ = srv.Shutdown(ctx)
	_ = store.Close()
	log.Println("Stopped")
}
