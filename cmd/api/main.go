package main

import (
	"context"
	"database/sql"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/joho/godotenv"

	"unihr.org/internal/config"
	"unihr.org/internal/docstore"
	"unihr.org/internal/httpapi"
	"unihr.org/internal/identity"
	"unihr.org/internal/jobs"
	"unihr.org/internal/kv"
	"unihr.org/internal/obs"
	"unihr.org/internal/provider"
	"unihr.org/internal/session"
)

var (
	version = "0.3.0"
	commit  = "dev"
)

func main() {
	// .env is optional; real deployments set the environment directly.
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config: %v", err)
	}

	obs.Init()
	obs.InitBuildInfo(version, commit)

	// Document store: postgres when a DSN is configured, in-memory otherwise.
	var (
		db   *sql.DB
		docs docstore.Store
	)
	if cfg.Database.DSN != "" {
		db, err = sql.Open("pgx", cfg.Database.DSN)
		if err != nil {
			log.Fatalf("open db: %v", err)
		}
		db.SetMaxOpenConns(10)
		db.SetMaxIdleConns(10)
		db.SetConnMaxLifetime(30 * time.Minute)
		docs = docstore.NewPG(db)
	} else {
		docs = docstore.NewMemory()
	}

	// Session kv store: redis when configured, in-memory otherwise.
	var (
		kvs    kv.Store
		pinger httpapi.Pinger
	)
	if cfg.Redis.Addr != "" {
		rd, err := kv.NewRedis(cfg.Redis.Addr)
		if err != nil {
			log.Fatalf("redis: %v", err)
		}
		kvs = rd
		pinger = rd
	} else {
		kvs = kv.NewMemory()
	}

	prov := provider.NewLocal(docs)
	store := identity.NewDocStore(docs)

	resolver, err := identity.NewResolver(store, prov,
		identity.WithCallTimeout(cfg.Auth.CallTimeout))
	if err != nil {
		log.Fatalf("resolver: %v", err)
	}

	sessions, err := session.NewManager(kvs, prov, resolver, cfg.Session.Secret,
		session.WithTTLs(cfg.Session.HRTTL, cfg.Session.LocalTTL))
	if err != nil {
		log.Fatalf("sessions: %v", err)
	}

	jobsSvc, err := jobs.NewService(docs,
		jobs.WithRetention(cfg.Jobs.Retention),
		jobs.WithCallTimeout(cfg.Auth.CallTimeout))
	if err != nil {
		log.Fatalf("jobs: %v", err)
	}

	api := httpapi.New(httpapi.ReadyProbe{DB: db, KV: pinger}, version, resolver, sessions, jobsSvc)

	handler := api.Handler()
	handler = httpapi.MaxBodyBytes(handler, 1<<20)
	handler = httpapi.RateLimit(handler, cfg.RateLimit.Burst, cfg.RateLimit.PerSecond)
	handler = httpapi.Logging(handler)
	handler = httpapi.CORS(handler)
	handler = httpapi.SecurityHeaders(handler)
	handler = httpapi.RequestID(handler)

	srv := &http.Server{
		Addr:              cfg.ListenAddr,
		Handler:           handler,
		ReadTimeout:       15 * time.Second,
		ReadHeaderTimeout: 15 * time.Second,
		WriteTimeout:      15 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	log.Printf("Starting unihr-api %s on %s", version, srv.Addr)

	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("listen: %v", err)
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)

	<-stop
	log.Println("Shutting down...")

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	_ = srv.Shutdown(ctx)
	if db != nil {
		_ = db.Close()
	}
	log.Println("Stopped")
}
