package main

import (
	"context"
	"flag"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"flipscout/config"
	"flipscout/httputil"
	"flipscout/logging"
	"flipscout/models"
	"flipscout/scheduler"
	"flipscout/scraper"
	"flipscout/services"
	"flipscout/storage"
	"flipscout/workers"
)

var (
	scanNow = flag.Bool("scan", false, "Run scan once and exit")
)

func main() {
	flag.Parse()
	log.SetFlags(log.LstdFlags | log.Lshortfile)

	logFile, err := logging.Setup("daemon.log")
	if err != nil {
		log.Printf("Warning: could not set up file logging: %v", err)
	} else {
		defer logFile.Close()
	}

	log.Println("Starting flipscout...")

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	log.Printf("Loaded %d site configs", len(cfg.Sites))
	for id, site := range cfg.Sites {
		log.Printf("  - %s (%s)", site.Name, id)
	}

	clients := httputil.NewClients(&cfg.Proxy)

	ctx := context.Background()

	sqliteStore, err := storage.NewSQLiteStore(cfg.DBPath)
	if err != nil {
		log.Fatalf("Failed to open SQLite: %v", err)
	}
	defer sqliteStore.Close()
	log.Printf("SQLite database: %s", cfg.DBPath)

	// Optional central Postgres sink
	var pgStore *storage.PostgresStore
	if cfg.Postgres.DBURL != "" {
		pgStore, err = storage.NewPostgresStore(ctx, cfg.Postgres.DBURL)
		if err != nil {
			log.Fatalf("Failed to connect to Postgres: %v", err)
		}
		defer pgStore.Close()
		log.Printf("Connected to Postgres: %s", maskConnectionString(cfg.Postgres.DBURL))
	}

	sessions, err := newSessionStore(ctx, cfg, sqliteStore)
	if err != nil {
		log.Fatalf("Failed to set up session store: %v", err)
	}
	log.Printf("Session backend: %s", cfg.Session.Backend)

	flipService := services.NewFlipService(sqliteStore, pgStore)
	drafter := services.NewDrafter(&cfg.Drafter, clients.API)
	log.Println("Services initialized")

	orchestrator := scraper.NewOrchestrator(cfg, sqliteStore, sessions)
	orchestrator.SetServices(flipService, drafter)

	// Handle one-shot commands
	if *scanNow {
		log.Println("Running scan...")
		if err := orchestrator.RunAll(ctx); err != nil {
			log.Fatalf("Scan failed: %v", err)
		}
		log.Println("Scan complete!")
		return
	}

	// Daemon mode
	sched := scheduler.New(cfg, orchestrator, sqliteStore)
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	// Start background workers
	enrichmentWorker := workers.NewEnrichmentWorker(sqliteStore, cfg.Sites, clients.Scraping)
	go enrichmentWorker.Run(ctx, 10, 5*time.Minute) // batch of 10 every 5 min
	log.Println("Enrichment worker started")

	healthcheckWorker := workers.NewHealthcheckWorker(sqliteStore, flipService, cfg.Sites, clients.Scraping)
	healthcheckWorker.SetLogger(func(level models.LogLevel, source, message string) {
		sqliteStore.Log(nil, level, message, source)
	})
	go healthcheckWorker.Run(ctx, 24*time.Hour, 20, 30*time.Minute) // listings unseen for 24h, batch 20, every 30 min
	log.Println("Healthcheck worker started")

	sched.SetWorkers(enrichmentWorker, healthcheckWorker)
	if err := sched.Start(ctx); err != nil {
		log.Fatalf("Failed to start scheduler: %v", err)
	}

	log.Println("Daemon running. Press Ctrl+C to stop.")

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	<-sigCh

	log.Println("Shutting down...")
	sched.Stop()
	log.Println("Goodbye!")
}

// newSessionStore picks the session backend from config. SQLite is the
// default; S3 is for deployments without a persistent disk.
func newSessionStore(ctx context.Context, cfg *config.Config, store *storage.SQLiteStore) (scraper.SessionStore, error) {
	if cfg.Session.Backend == "s3" {
		return storage.NewS3SessionStore(ctx, storage.S3Config{
			Bucket:          cfg.Session.S3Bucket,
			Region:          cfg.Session.S3Region,
			Endpoint:        cfg.Session.S3Endpoint,
			AccessKeyID:     cfg.Session.AccessKeyID,
			SecretAccessKey: cfg.Session.SecretAccessKey,
		})
	}
	return storage.NewSQLiteSessionStore(store), nil
}

// maskConnectionString masks password in connection string for logging
func maskConnectionString(connStr string) string {
	// Simple mask - find :// and mask until @
	start := 0
	for i := 0; i < len(connStr)-3; i++ {
		if connStr[i:i+3] == "://" {
			start = i + 3
			break
		}
	}
	if start == 0 {
		return connStr
	}

	// Find : after user
	colonIdx := -1
	atIdx := -1
	for i := start; i < len(connStr); i++ {
		if connStr[i] == ':' && colonIdx == -1 {
			colonIdx = i
		}
		if connStr[i] == '@' {
			atIdx = i
			break
		}
	}

	if colonIdx > 0 && atIdx > colonIdx {
		return connStr[:colonIdx+1] + "****" + connStr[atIdx:]
	}
	return connStr
}
