package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/buitanphat247/crawl-data-thegioididong/internal/app"
	"github.com/buitanphat247/crawl-data-thegioididong/internal/config"
	"github.com/buitanphat247/crawl-data-thegioididong/internal/logger"
)

func main() {
	var (
		categoryName = flag.String("category", "all", "Category to crawl (phones, laptops, tablets, smartwatches or all)")
		outputDir    = flag.String("output", "", "Directory for result documents (overrides OUTPUT_DIR)")
		cacheFile    = flag.String("cache", "", "Detail cache file (overrides CACHE_FILE)")
		headless     = flag.Bool("headless", true, "Run browser in headless mode")
	)
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
		os.Exit(1)
	}
	if *outputDir != "" {
		cfg.Scraper.OutputDir = *outputDir
	}
	if *cacheFile != "" {
		cfg.Scraper.CacheFile = *cacheFile
	}
	cfg.Browser.Headless = *headless

	log := logger.New(cfg.Logging.Level, cfg.Logging.Format)
	if err := cfg.Validate(); err != nil {
		log.Error("invalid config", "error", err)
		os.Exit(1)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	go func() {
		<-sigChan
		log.Info("shutdown signal received")
		cancel()
	}()

	a, err := app.New(ctx, cfg, log)
	if err != nil {
		log.Error("failed to initialize", "error", err)
		os.Exit(1)
	}
	defer a.Close()

	a.StartRelay(ctx)

	var names []string
	if strings.EqualFold(*categoryName, "all") {
		for _, c := range a.Service.Categories() {
			names = append(names, c.Name)
		}
	} else {
		names = []string{*categoryName}
	}

	failed := 0
	for _, name := range names {
		if ctx.Err() != nil {
			break
		}

		log.Info("crawling category", "category", name)
		doc, err := a.Service.Crawl(ctx, name)
		if err != nil {
			log.Error("crawl failed", "category", name, "error", err)
			failed++
			continue
		}

		log.Info("category done", "category", name, "total", doc.Data.Total, "message", doc.Message)
	}

	if failed > 0 {
		a.Close()
		os.Exit(1)
	}
}
