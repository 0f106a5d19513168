package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"sort"

	"github.com/LJTian/NewsFlow/internal/config"
	"github.com/LJTian/NewsFlow/internal/manager"
	"github.com/LJTian/NewsFlow/internal/pipeline"
	"github.com/LJTian/NewsFlow/internal/scraper"
	"github.com/LJTian/NewsFlow/internal/storage"
)

// 只執行一輪採集任務的命令列入口，適合手動觸發或 crontab 驅動
func main() {
	source := flag.String("source", "", "只跑單一來源（SETN / LTN / TVBS / ChinaTimes），留空跑全部")
	maxPages := flag.Int("pages", 0, "最多掃幾頁列表，0 表示用設定值")
	flag.Parse()

	cfg := config.Load()
	if *maxPages > 0 {
		cfg.MaxPages = *maxPages
	}

	store, err := storage.New(storage.Options{
		Driver:      cfg.DatabaseType,
		SQLitePath:  cfg.SQLitePath,
		PostgresDSN: cfg.PostgresDSN,
		RedisAddr:   cfg.RedisAddr,
	})
	if err != nil {
		log.Fatalf("init store failed: %v", err)
	}

	client := scraper.NewClient(cfg.RequestTimeout, cfg.RetryAttempts, cfg.DelayMin, cfg.DelayMax)
	p := pipeline.New(store, client)

	m := manager.New(p, pipeline.Options{
		MaxPages:                 cfg.MaxPages,
		SkipExisting:             true,
		MaxConsecutiveDuplicates: cfg.MaxConsecutiveDuplicates,
	}, cfg.MaxConcurrentScrapers)

	for _, name := range cfg.EnabledSources {
		switch name {
		case "SETN":
			m.Register(scraper.NewSETN(client))
		case "LTN":
			m.Register(scraper.NewLTN(client))
		case "TVBS":
			m.Register(scraper.NewTVBS(client))
		case "ChinaTimes":
			m.Register(scraper.NewChinaTimes(client))
		}
	}

	ctx := context.Background()

	if *source != "" {
		stats, err := m.RunOne(ctx, *source)
		if err != nil {
			log.Fatalf("%s: run failed: %v", *source, err)
		}
		fmt.Printf("%s: %s\n", *source, stats)
		printDBStats(store)
		return
	}

	result := m.RunAll(ctx)

	names := make([]string, 0, len(result.PerSource))
	for name := range result.PerSource {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		fmt.Printf("%-12s %s\n", name, result.PerSource[name])
	}
	for _, msg := range result.SourceErrors() {
		fmt.Printf("error: %s\n", msg)
	}
	fmt.Printf("%-12s %s\n", "total", result.Total)

	printDBStats(store)
}

func printDBStats(store storage.Store) {
	total, err := store.Count()
	if err != nil {
		log.Printf("count failed: %v", err)
		return
	}
	fmt.Printf("\ndatabase: %d records\n", total)

	bySource, err := store.CountBySource()
	if err != nil {
		log.Printf("count by source failed: %v", err)
		return
	}
	for _, sc := range bySource {
		fmt.Printf("  %-12s %d\n", sc.Source, sc.Count)
	}
}
