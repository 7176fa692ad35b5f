package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"log"
	"os"
	"os/signal"
	"syscall"

	"civicmon/internal/analytics"
	"civicmon/internal/api"
	"civicmon/internal/app"
	"civicmon/internal/config"
	"civicmon/internal/health"
	"civicmon/internal/source"
	"civicmon/internal/storage"
	"civicmon/internal/summary"
	"civicmon/internal/telegram"
	"civicmon/internal/translate"
)

func main() {
	once := flag.Bool("once", false, "refresh once, print the dashboard and exit")
	importPath := flag.String("import", "", "import a complaint CSV into the SQLite store and exit")
	thresholdsPath := flag.String("thresholds", "", "YAML thresholds file (overrides THRESHOLDS_FILE)")
	flag.Parse()

	log.Println("🚀 Starting civicmon...")

	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatal("❌ Failed to load configuration: ", err)
	}
	if *thresholdsPath != "" {
		cfg.ThresholdsFile = *thresholdsPath
	}
	log.Printf("✓ Configuration loaded (source: %s)", cfg.Source)

	api.Configure(cfg.HTTPTimeout, cfg.HTTPMaxConns)

	thresholds := analytics.DefaultConfig()
	if cfg.ThresholdsFile != "" {
		thresholds, err = config.LoadThresholds(cfg.ThresholdsFile, thresholds)
		if err != nil {
			log.Fatal("❌ Failed to load thresholds: ", err)
		}
		log.Printf("✓ Thresholds loaded from %s", cfg.ThresholdsFile)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	log.Println("📋 Opening complaint store...")
	store, err := storage.Open(cfg.SQLitePath)
	if err != nil {
		log.Fatal("❌ Failed to open store: ", err)
	}
	defer store.Close()

	if *importPath != "" {
		res, err := store.ImportCSV(ctx, *importPath)
		if err != nil {
			log.Fatal("❌ Import failed: ", err)
		}
		log.Printf("✓ Imported %d complaints (%d rows skipped)", res.Imported, res.Skipped)
		return
	}

	src, err := source.New(ctx, cfg, store)
	if err != nil {
		log.Fatal("❌ Failed to initialize source: ", err)
	}
	if closer, ok := src.(io.Closer); ok {
		defer closer.Close()
	}

	localizer, err := translate.NewLocalizer(ctx, cfg.TranslateAPIKey, cfg.TranslateLanguage)
	if err != nil {
		log.Println("⚠️  Reason localization disabled:", err)
	}
	defer localizer.Close()

	a := app.New(cfg, thresholds, app.Deps{
		Source:    src,
		Store:     store,
		Monitor:   health.NewMonitor(),
		Telegram:  telegram.NewClient(cfg),
		Localizer: localizer,
	})

	if *once {
		d, err := a.Refresh(ctx)
		if err != nil {
			log.Fatal("❌ Refresh failed: ", err)
		}
		fmt.Println(summary.RenderTerminal(d))
		return
	}

	if err := a.Run(ctx); err != nil {
		log.Fatal("❌ ", err)
	}
	log.Println("👋 civicmon stopped")
}
