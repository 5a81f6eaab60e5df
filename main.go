package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"

	"dealwatch/config"
	"dealwatch/email"
	"dealwatch/logging"
	"dealwatch/monitor"
	"dealwatch/report"
	"dealwatch/scheduler"
	"dealwatch/scraper"
	"dealwatch/storage"
)

var (
	searchNow  = flag.String("search", "", "Run one search for the given keyword and exit")
	category   = flag.String("category", "", "Category filter for -search")
	pages      = flag.Int("pages", 0, "Result pages to fetch for -search (1-5)")
	runMonitor = flag.String("run-monitor", "", "Run one monitor by id and exit")
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

	log.Println("Starting dealwatch...")

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}
	log.Printf("Loaded %d categories", len(cfg.Categories))

	ctx := context.Background()

	// SQLite holds operational data (run records, logs, command queue).
	sqliteStore, err := storage.NewSQLiteStore(cfg.DBPath)
	if err != nil {
		log.Fatalf("Failed to open SQLite: %v", err)
	}
	defer sqliteStore.Close()
	log.Printf("SQLite database: %s", cfg.DBPath)

	orchestrator := scraper.NewOrchestrator(cfg, sqliteStore)

	renderer := report.New(cfg.AffiliateTag)
	monitors := monitor.NewStore(cfg.RegistryPath, orchestrator.Fetcher(), renderer,
		email.NewSender(&cfg.SMTP), cfg.CategoryID)
	monitors.SetRunRecorder(sqliteStore)
	log.Printf("Monitor registry: %s", cfg.RegistryPath)

	// Postgres archive is optional; without DATABASE_URL analyses are
	// only reported, not retained.
	if cfg.DatabaseURL != "" {
		pgStore, err := storage.NewPostgresStore(ctx, cfg.DatabaseURL)
		if err != nil {
			log.Fatalf("Failed to connect to Postgres: %v", err)
		}
		defer pgStore.Close()
		orchestrator.SetArchive(pgStore)
		monitors.SetArchive(pgStore)
		log.Println("Postgres archive enabled")
	}

	if *searchNow != "" {
		result, err := orchestrator.Search(ctx, *searchNow, *category, *pages)
		if err != nil {
			log.Fatalf("Search failed: %v", err)
		}
		fmt.Println(renderer.Markdown(result))
		return
	}

	if *runMonitor != "" {
		creds := email.Credentials{Email: cfg.SMTP.Username, Password: cfg.SMTP.Password}
		record, err := monitors.Run(ctx, *runMonitor, creds)
		if err != nil {
			log.Fatalf("Monitor run failed: %v", err)
		}
		if record.Success {
			log.Printf("Monitor run completed: %d/%d products usable, email sent: %t",
				record.ValidProducts, record.TotalProducts, record.EmailSent)
		} else {
			log.Fatalf("Monitor run failed at %s stage: %s", record.FailedStage, record.Error)
		}
		return
	}

	sched := scheduler.New(cfg, orchestrator, monitors, sqliteStore)
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	if err := sched.Start(ctx); err != nil {
		log.Fatalf("Failed to start scheduler: %v", err)
	}

	log.Println("Daemon running. Press Ctrl+C to stop.")

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	<-sigCh

	log.Println("Shutting down...")
	sched.Stop()
}
